package tick_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/melee/internal/game/tick"
)

func TestAfter_RunsWhenDue(t *testing.T) {
	s := tick.NewScheduler(zaptest.NewLogger(t))
	fired := 0
	s.After(time.Second, func() { fired++ })

	s.Advance(500 * time.Millisecond)
	assert.Equal(t, 0, fired)
	s.Advance(500 * time.Millisecond)
	assert.Equal(t, 1, fired)
	s.Advance(time.Second)
	assert.Equal(t, 1, fired, "one-shot task must not run twice")
}

func TestAfter_StopPreventsRun(t *testing.T) {
	s := tick.NewScheduler(zaptest.NewLogger(t))
	fired := false
	task := s.After(time.Second, func() { fired = true })
	task.Stop()
	task.Stop()
	s.Advance(2 * time.Second)
	assert.False(t, fired)
	assert.True(t, task.Stopped())
}

func TestNilTaskStopIsSafe(t *testing.T) {
	var task *tick.Task
	assert.NotPanics(t, task.Stop)
	assert.True(t, task.Stopped())
}

func TestAdvance_SystemsRunBeforeTasks(t *testing.T) {
	s := tick.NewScheduler(zaptest.NewLogger(t))
	var order []string
	s.After(0, func() { order = append(order, "task") })
	s.AddSystem("first", func(time.Duration) { order = append(order, "first") })
	s.AddSystem("second", func(time.Duration) { order = append(order, "second") })

	s.Advance(time.Millisecond)
	assert.Equal(t, []string{"first", "second", "task"}, order)
}

func TestAdvance_TaskScheduledDuringTickWaitsForNextTick(t *testing.T) {
	s := tick.NewScheduler(zaptest.NewLogger(t))
	var ran []time.Duration
	s.After(0, func() {
		s.After(0, func() { ran = append(ran, s.Now()) })
	})

	s.Advance(10 * time.Millisecond)
	assert.Empty(t, ran)
	s.Advance(10 * time.Millisecond)
	require.Len(t, ran, 1)
	assert.Equal(t, 20*time.Millisecond, ran[0])
}

func TestAdvance_OrdersByDueThenScheduling(t *testing.T) {
	s := tick.NewScheduler(zaptest.NewLogger(t))
	var order []int
	s.After(2*time.Second, func() { order = append(order, 3) })
	s.After(time.Second, func() { order = append(order, 1) })
	s.After(time.Second, func() { order = append(order, 2) })

	s.Advance(5 * time.Second)
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestRepeat_RunsUntilFalse(t *testing.T) {
	s := tick.NewScheduler(zaptest.NewLogger(t))
	var at []time.Duration
	s.Repeat(0, 10*time.Second, func() bool {
		at = append(at, s.Now())
		return len(at) < 3
	})

	s.RunFor(60*time.Second, time.Second)
	assert.Equal(t, []time.Duration{time.Second, 11 * time.Second, 21 * time.Second}, at)
}

func TestRepeat_StopFromOutside(t *testing.T) {
	s := tick.NewScheduler(zaptest.NewLogger(t))
	count := 0
	task := s.Repeat(time.Second, time.Second, func() bool {
		count++
		return true
	})
	s.RunFor(3*time.Second, time.Second)
	task.Stop()
	s.RunFor(3*time.Second, time.Second)
	assert.Equal(t, 3, count)
}

func TestRunFor_ElapsesExactly(t *testing.T) {
	s := tick.NewScheduler(zaptest.NewLogger(t))
	s.RunFor(1050*time.Millisecond, 100*time.Millisecond)
	assert.Equal(t, 1050*time.Millisecond, s.Now())
	assert.Equal(t, uint64(11), s.Ticks())
}

func TestSeconds_Rounds(t *testing.T) {
	assert.Equal(t, 1200*time.Millisecond, tick.Seconds(1.2))
	assert.Equal(t, 3*time.Second, tick.Seconds(1.0/1.0+2.0))
}

func TestPropertyTasksNeverRunEarly(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		s := tick.NewScheduler(zaptest.NewLogger(t))
		delays := rapid.SliceOfN(rapid.Int64Range(0, 5000), 1, 20).Draw(rt, "delays_ms")
		step := time.Duration(rapid.Int64Range(1, 500).Draw(rt, "step_ms")) * time.Millisecond

		fired := make([]time.Duration, len(delays))
		for i, ms := range delays {
			i := i
			fired[i] = -1
			s.After(time.Duration(ms)*time.Millisecond, func() { fired[i] = s.Now() })
		}
		s.RunFor(6*time.Second, step)

		for i, ms := range delays {
			due := time.Duration(ms) * time.Millisecond
			if fired[i] < due {
				rt.Fatalf("task %d due %s fired at %s", i, due, fired[i])
			}
			if fired[i] >= due+step+step {
				rt.Fatalf("task %d due %s fired late at %s (step %s)", i, due, fired[i], step)
			}
		}
	})
}
