package scripting

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// RegisterModules registers all engine.* Lua tables into L.
//
// Precondition: L must be from NewSandboxedState.
// Postcondition: engine.log, engine.combatant and engine.random are defined in L.
func (m *Manager) RegisterModules(L *lua.LState) {
	engine := L.NewTable()
	L.SetField(engine, "log", m.logModule(L))
	L.SetField(engine, "combatant", m.combatantModule(L))
	L.SetField(engine, "random", m.randomModule(L))
	L.SetGlobal("engine", engine)
}

func (m *Manager) logModule(L *lua.LState) *lua.LTable {
	mod := L.NewTable()
	levels := map[string]func(string, ...zap.Field){
		"debug": m.logger.Debug,
		"info":  m.logger.Info,
		"warn":  m.logger.Warn,
		"error": m.logger.Error,
	}
	for name, logFn := range levels {
		logFn := logFn
		L.SetField(mod, name, L.NewFunction(func(L *lua.LState) int {
			logFn(L.CheckString(1), zap.String("source", "lua"))
			return 0
		}))
	}
	return mod
}

func (m *Manager) combatantModule(L *lua.LState) *lua.LTable {
	mod := L.NewTable()

	// engine.combatant.get(name) -> table{name, health, base_damage, x, y} | nil
	L.SetField(mod, "get", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		if m.GetCombatant == nil {
			L.Push(lua.LNil)
			return 1
		}
		info := m.GetCombatant(name)
		if info == nil {
			L.Push(lua.LNil)
			return 1
		}
		t := L.NewTable()
		L.SetField(t, "name", lua.LString(info.Name))
		L.SetField(t, "health", lua.LNumber(info.Health))
		L.SetField(t, "base_damage", lua.LNumber(info.BaseDamage))
		L.SetField(t, "x", lua.LNumber(info.X))
		L.SetField(t, "y", lua.LNumber(info.Y))
		L.Push(t)
		return 1
	}))

	// engine.combatant.health(name) -> number | nil
	L.SetField(mod, "health", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		if m.GetCombatant == nil {
			L.Push(lua.LNil)
			return 1
		}
		if info := m.GetCombatant(name); info != nil {
			L.Push(lua.LNumber(info.Health))
			return 1
		}
		L.Push(lua.LNil)
		return 1
	}))

	L.SetField(mod, "damage", m.mutator(L, "damage", func() func(string, float64) (float64, error) { return m.ApplyDamage }))
	L.SetField(mod, "heal", m.mutator(L, "heal", func() func(string, float64) (float64, error) { return m.Heal }))
	return mod
}

// mutator wraps a health callback as engine.combatant.<op>(name, amount) ->
// applied amount, or nil plus an error message.
func (m *Manager) mutator(L *lua.LState, op string, cb func() func(string, float64) (float64, error)) *lua.LFunction {
	return L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		amount := float64(L.CheckNumber(2))
		fn := cb()
		if fn == nil {
			L.Push(lua.LNil)
			return 1
		}
		if amount < 0 {
			L.ArgError(2, "amount must be >= 0")
			return 0
		}
		applied, err := fn(name, amount)
		if err != nil {
			m.logger.Warn("scripting: combatant callback failed",
				zap.String("op", op),
				zap.String("combatant", name),
				zap.Error(err),
			)
			L.Push(lua.LNil)
			L.Push(lua.LString(err.Error()))
			return 2
		}
		L.Push(lua.LNumber(applied))
		return 1
	})
}

func (m *Manager) randomModule(L *lua.LState) *lua.LTable {
	mod := L.NewTable()
	// engine.random.pick(n) -> integer in [1, n]
	L.SetField(mod, "pick", L.NewFunction(func(L *lua.LState) int {
		n := L.CheckInt(1)
		if n <= 0 {
			L.ArgError(1, "n must be > 0")
			return 0
		}
		L.Push(lua.LNumber(m.picker.Pick("lua", n) + 1))
		return 1
	}))
	return mod
}
