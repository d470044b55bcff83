package server_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/melee/internal/server"
)

type blockingService struct {
	started atomic.Bool
	stopped atomic.Bool
	once    sync.Once
	done    chan struct{}
}

func newBlockingService() *blockingService {
	return &blockingService{done: make(chan struct{})}
}

func (b *blockingService) Start() error {
	b.started.Store(true)
	<-b.done
	return nil
}

func (b *blockingService) Stop() {
	b.stopped.Store(true)
	b.once.Do(func() { close(b.done) })
}

func waitStarted(t *testing.T, svcs ...*blockingService) {
	t.Helper()
	require.Eventually(t, func() bool {
		for _, s := range svcs {
			if !s.started.Load() {
				return false
			}
		}
		return true
	}, 2*time.Second, 5*time.Millisecond)
}

func TestLifecycleStartsAndStopsServices(t *testing.T) {
	lc := server.NewLifecycle(zaptest.NewLogger(t))

	svc1 := newBlockingService()
	svc2 := newBlockingService()
	lc.Add("svc1", svc1)
	lc.Add("svc2", svc2)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- lc.Run(ctx) }()

	waitStarted(t, svc1, svc2)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("lifecycle did not shut down in time")
	}
	assert.True(t, svc1.stopped.Load())
	assert.True(t, svc2.stopped.Load())
}

func TestLifecycleFinishedServiceShutsDownOthers(t *testing.T) {
	lc := server.NewLifecycle(zaptest.NewLogger(t))

	long := newBlockingService()
	lc.Add("long", long)
	lc.Add("short", &server.FuncService{StartFn: func() error { return nil }})

	done := make(chan error, 1)
	go func() { done <- lc.Run(context.Background()) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("lifecycle did not shut down in time")
	}
	assert.True(t, long.stopped.Load())
}

func TestLifecycleReturnsServiceError(t *testing.T) {
	lc := server.NewLifecycle(zaptest.NewLogger(t))
	boom := errors.New("boom")
	lc.Add("failing", &server.FuncService{StartFn: func() error { return boom }})

	err := lc.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "failing")
}

func TestFuncService(t *testing.T) {
	started := false
	stopped := false

	svc := &server.FuncService{
		StartFn: func() error {
			started = true
			return nil
		},
		StopFn: func() {
			stopped = true
		},
	}

	require.NoError(t, svc.Start())
	assert.True(t, started)

	svc.Stop()
	assert.True(t, stopped)
}

func TestFuncService_NilStopIsNoop(t *testing.T) {
	svc := &server.FuncService{StartFn: func() error { return nil }}
	assert.NotPanics(t, svc.Stop)
}
