// Package scripting provides a sandboxed GopherLua execution environment for
// scripted ability effects. It has no dependency on the combat packages; every
// world interaction is injected via Manager callback fields.
package scripting

import (
	"context"
	"sync/atomic"

	lua "github.com/yuin/gopher-lua"
)

// DefaultInstructionLimit is the maximum number of Lua opcodes a single load
// or hook call may execute when no override is configured.
const DefaultInstructionLimit = 100_000

// unsafeGlobals are removed from every sandboxed state after OpenBase.
var unsafeGlobals = []string{"dofile", "loadfile", "load", "loadstring", "collectgarbage", "require"}

// Budget caps the opcodes a state executes between two Arm calls. GopherLua
// polls its context's Done channel once per opcode, so counting those polls
// gives an exact instruction count.
type Budget struct {
	limit     int64
	remaining atomic.Int64
}

// NewBudget returns a Budget of limit opcodes per arming; limit <= 0 selects
// DefaultInstructionLimit.
func NewBudget(limit int) *Budget {
	if limit <= 0 {
		limit = DefaultInstructionLimit
	}
	return &Budget{limit: int64(limit)}
}

// Limit returns the opcodes allowed per arming.
func (b *Budget) Limit() int {
	return int(b.limit)
}

// Arm refills the budget and installs it on L. The returned cancel releases
// the budget's context and must be called once the guarded run finishes.
func (b *Budget) Arm(L *lua.LState) context.CancelFunc {
	b.remaining.Store(b.limit)
	ctx, cancel := context.WithCancel(context.Background())
	L.SetContext(&budgetContext{Context: ctx, cancel: cancel, budget: b})
	return cancel
}

// Used returns the opcodes consumed since the last Arm.
func (b *Budget) Used() int {
	used := b.limit - b.remaining.Load()
	return int(min(used, b.limit))
}

type budgetContext struct {
	context.Context
	cancel context.CancelFunc
	budget *Budget
}

func (c *budgetContext) Done() <-chan struct{} {
	if c.budget.remaining.Add(-1) <= 0 {
		c.cancel()
	}
	return c.Context.Done()
}

// NewSandboxedState creates a GopherLua LState with only the base, table,
// string and math libraries, the unsafe base globals removed, and budget armed.
//
// Postcondition: Returns a non-nil LState ready for RegisterModules and DoFile
// and the cancel of its armed budget. The caller must call cancel and L.Close.
func NewSandboxedState(budget *Budget) (*lua.LState, context.CancelFunc) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
	for _, name := range unsafeGlobals {
		L.SetGlobal(name, lua.LNil)
	}
	return L, budget.Arm(L)
}
