package scripting_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/melee/internal/scripting"
)

func sandbox(t *testing.T, limit int) (*lua.LState, *scripting.Budget) {
	t.Helper()
	budget := scripting.NewBudget(limit)
	L, cancel := scripting.NewSandboxedState(budget)
	require.NotNil(t, L)
	t.Cleanup(func() {
		cancel()
		L.Close()
	})
	return L, budget
}

func TestNewSandboxedState_UnsafeGlobalsNil(t *testing.T) {
	L, _ := sandbox(t, 0)
	for _, name := range []string{"os", "io", "debug", "dofile", "loadfile", "load", "loadstring", "collectgarbage", "require"} {
		assert.Equal(t, lua.LNil, L.GetGlobal(name), "expected %s to be nil", name)
	}
}

func TestNewSandboxedState_SafeLibsAvailable(t *testing.T) {
	L, _ := sandbox(t, 0)
	err := L.DoString(`
		local x = math.sqrt(4)
		assert(x == 2.0, "math.sqrt failed")
		local s = string.upper("hello")
		assert(s == "HELLO", "string.upper failed")
		local t = {}
		table.insert(t, 1)
		assert(#t == 1, "table.insert failed")
	`)
	assert.NoError(t, err)
}

func TestBudget_DefaultLimit(t *testing.T) {
	assert.Equal(t, scripting.DefaultInstructionLimit, scripting.NewBudget(0).Limit())
	assert.Equal(t, 25, scripting.NewBudget(25).Limit())
}

func TestBudget_StopsRunawayLoop(t *testing.T) {
	L, budget := sandbox(t, 10)
	assert.Error(t, L.DoString(`while true do end`))
	assert.Equal(t, 10, budget.Used())
}

func TestBudget_ArmRefills(t *testing.T) {
	L, budget := sandbox(t, 1000)
	require.NoError(t, L.DoString(`for i = 1, 50 do end`))
	first := budget.Used()
	assert.Positive(t, first)

	cancel := budget.Arm(L)
	defer cancel()
	assert.Zero(t, budget.Used())
	require.NoError(t, L.DoString(`for i = 1, 50 do end`))
	assert.Equal(t, first, budget.Used())
}

func TestProperty_InstructionLimitAlwaysErrors(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		limit := rapid.IntRange(1, 50).Draw(rt, "limit")
		budget := scripting.NewBudget(limit)
		L, cancel := scripting.NewSandboxedState(budget)
		defer cancel()
		defer L.Close()
		if err := L.DoString(`while true do end`); err == nil {
			rt.Fatalf("expected error with limit=%d but got nil", limit)
		}
		assert.LessOrEqual(rt, budget.Used(), limit)
	})
}
