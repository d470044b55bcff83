package ability

import (
	"errors"
	"fmt"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/melee/internal/game/combat"
	"github.com/cory-johannsen/melee/internal/game/entity"
)

// ScriptScope is the scripting scope ability hooks are loaded into.
const ScriptScope = "abilities"

// World is the combatant surface abilities act on.
type World interface {
	Valid(c *entity.Combatant) bool
	Distance(a, b *entity.Combatant) (float64, bool)
	Face(c, target *entity.Combatant)
	BaseDamage(c *entity.Combatant) float64
	HealthPercentage(c *entity.Combatant) float64
	ApplyDamage(c *entity.Combatant, amount float64) float64
	Heal(c *entity.Combatant, amount float64) float64
}

// Scripts calls Lua ability hooks.
type Scripts interface {
	HasHook(scope, hook string) bool
	CallHook(scope, hook string, args ...lua.LValue) (lua.LValue, error)
}

// Manager activates abilities: it validates the request, plays the ability's
// presentation through the Runner, then applies its behaviour.
type Manager struct {
	runner  *Runner
	world   World
	scripts Scripts
	sink    combat.Sink
	epsilon float64
	logger  *zap.Logger
}

// ManagerDeps bundles the Manager's collaborators. Scripts may be nil when no
// scripted abilities are loaded; Sink may be nil.
type ManagerDeps struct {
	Runner  *Runner
	World   World
	Scripts Scripts
	Sink    combat.Sink
	// Epsilon is the health percentage at or below which a combatant is dead.
	Epsilon float64
	Logger  *zap.Logger
}

// NewManager returns a Manager.
//
// Precondition: Runner, World and Logger must be non-nil; Epsilon must be > 0.
func NewManager(deps ManagerDeps) (*Manager, error) {
	if deps.Runner == nil || deps.World == nil || deps.Logger == nil || deps.Epsilon <= 0 {
		return nil, fmt.Errorf("ability: NewManager: runner, world, logger and epsilon are required: %w", ErrConfiguration)
	}
	return &Manager{
		runner:  deps.Runner,
		world:   deps.World,
		scripts: deps.Scripts,
		sink:    deps.Sink,
		epsilon: deps.Epsilon,
		logger:  deps.Logger,
	}, nil
}

// Runner returns the presentation runner.
func (m *Manager) Runner() *Runner {
	return m.runner
}

// Activate uses cfg as user, optionally against target.
//
// Precondition: user must be a live combatant.
// Postcondition: Returns an error wrapping ErrConfiguration for a nil or
// unusable cfg or a user that cannot play its presentation, or ErrTargetRequired / ErrOutOfRange for a targeted ability
// without a valid target in range; in those cases nothing is triggered.
func (m *Manager) Activate(user *entity.Combatant, cfg *Config, target *entity.Combatant) error {
	if cfg == nil {
		err := fmt.Errorf("ability: Manager.Activate %s: nil config: %w", user, ErrConfiguration)
		m.logger.Error("ability activation rejected", zap.Error(err))
		return err
	}
	if err := m.check(user, cfg, target); err != nil {
		m.logger.Warn("ability activation rejected",
			zap.String("ability", cfg.ID),
			zap.Stringer("user", user),
			zap.Error(err),
		)
		return err
	}

	var errs []error
	errs = append(errs, m.runner.PlayEffect(user, cfg))
	errs = append(errs, m.runner.PlaySound(user, cfg))
	errs = append(errs, m.runner.PlayAnimation(user, cfg))
	if err := errors.Join(errs...); err != nil {
		m.logger.Error("ability presentation failed", zap.String("ability", cfg.ID), zap.Error(err))
	}

	amount, err := m.apply(user, cfg, target)
	if err != nil {
		m.logger.Error("ability behaviour failed", zap.String("ability", cfg.ID), zap.Error(err))
		return err
	}

	if m.sink != nil {
		e := combat.NewEvent(combat.EventAbilityActivated, m.runner.deps.Scheduler.Now())
		e.Attacker = user.Name
		e.AbilityID = cfg.ID
		e.Amount = amount
		if target != nil {
			e.Target = target.Name
		}
		m.sink.Record(e)
	}
	m.logger.Debug("ability activated",
		zap.String("ability", cfg.ID),
		zap.String("behaviour", string(cfg.Behaviour)),
		zap.Stringer("user", user),
		zap.Stringer("target", target),
		zap.Float64("amount", amount),
	)
	return nil
}

func (m *Manager) check(user *entity.Combatant, cfg *Config, target *entity.Combatant) error {
	if !m.world.Valid(user) {
		return fmt.Errorf("ability: %q: invalid user %s: %w", cfg.ID, user, combat.ErrInvalidCombatant)
	}
	if m.world.HealthPercentage(user) <= m.epsilon {
		return fmt.Errorf("ability: %q: user %s is dead: %w", cfg.ID, user, combat.ErrInvalidCombatant)
	}
	if cfg.RequiresTarget() {
		if !m.world.Valid(target) || m.world.HealthPercentage(target) <= m.epsilon {
			return fmt.Errorf("ability: %q: %w", cfg.ID, ErrTargetRequired)
		}
		if cfg.Range > 0 {
			if dist, ok := m.world.Distance(user, target); !ok || dist > cfg.Range {
				return fmt.Errorf("ability: %q: %s at %.2f beyond %.2f: %w", cfg.ID, target, dist, cfg.Range, ErrOutOfRange)
			}
		}
	}
	switch cfg.Behaviour {
	case BehaviourPowerAttack, BehaviourSelfHeal:
	case BehaviourScripted:
		if m.scripts == nil || !m.scripts.HasHook(ScriptScope, cfg.LuaOnUse) {
			return fmt.Errorf("ability: %q: lua hook %q not loaded: %w", cfg.ID, cfg.LuaOnUse, ErrConfiguration)
		}
	default:
		return fmt.Errorf("ability: %q: unknown behaviour %q: %w", cfg.ID, cfg.Behaviour, ErrConfiguration)
	}
	return m.runner.Validate(user, cfg)
}

// apply runs cfg's behaviour and returns the health it changed.
func (m *Manager) apply(user *entity.Combatant, cfg *Config, target *entity.Combatant) (float64, error) {
	switch cfg.Behaviour {
	case BehaviourPowerAttack:
		m.world.Face(user, target)
		return m.world.ApplyDamage(target, m.world.BaseDamage(user)+cfg.Damage), nil
	case BehaviourSelfHeal:
		return m.world.Heal(user, cfg.Heal), nil
	case BehaviourScripted:
		targetArg := lua.LValue(lua.LNil)
		if m.world.Valid(target) {
			targetArg = lua.LString(target.Name)
		}
		ret, err := m.scripts.CallHook(ScriptScope, cfg.LuaOnUse, lua.LString(user.Name), targetArg)
		if err != nil {
			return 0, fmt.Errorf("ability %q: %w", cfg.ID, err)
		}
		if n, ok := ret.(lua.LNumber); ok {
			return float64(n), nil
		}
		return 0, nil
	}
	return 0, nil
}
