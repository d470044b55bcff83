package combat

import (
	"errors"
	"fmt"
	"time"

	"github.com/yohamta/donburi"
	"go.uber.org/zap"

	"github.com/cory-johannsen/melee/internal/game/entity"
	"github.com/cory-johannsen/melee/internal/game/weapon"
)

// Engine owns the weapon system of every armed combatant and runs the
// engagement monitor once per tick.
//
// An Engine is not safe for concurrent use; every call must come from the
// goroutine that advances its scheduler.
type Engine struct {
	deps    *Deps
	monitor *Monitor
	systems map[donburi.Entity]*WeaponSystem
	order   []*WeaponSystem
	logger  *zap.Logger
}

// NewEngine validates deps and registers the engagement monitor as a
// per-tick system on deps.Scheduler.
//
// Postcondition: Returns a ready Engine or an error wrapping ErrConfiguration.
func NewEngine(deps Deps) (*Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, fmt.Errorf("combat: NewEngine: %w: %w", ErrConfiguration, err)
	}
	e := &Engine{
		deps:    &deps,
		monitor: NewMonitor(deps.Health, deps.World, deps.Epsilon),
		systems: make(map[donburi.Entity]*WeaponSystem),
		logger:  deps.Logger,
	}
	deps.Scheduler.AddSystem("engagement-monitor", e.monitorTick)
	return e, nil
}

func (e *Engine) monitorTick(time.Duration) {
	for _, ws := range e.order {
		e.monitor.Check(ws)
	}
}

func (e *Engine) system(c *entity.Combatant) (*WeaponSystem, error) {
	if c == nil {
		return nil, fmt.Errorf("combat: nil combatant: %w", ErrInvalidCombatant)
	}
	ws, ok := e.systems[c.Entity]
	if !ok {
		return nil, fmt.Errorf("combat: %s: %w", c, ErrNotArmed)
	}
	return ws, nil
}

// Arm prepares attacker for combat and equips initial when non-nil.
//
// Precondition: attacker must be a live combatant.
// Postcondition: Returns an error wrapping ErrConfiguration if attacker has no
// animation override controller or does not have exactly one dominant hand.
// Arming an already armed combatant only re-equips.
func (e *Engine) Arm(attacker *entity.Combatant, initial *weapon.Profile) error {
	if !e.deps.World.Valid(attacker) {
		return fmt.Errorf("combat: Engine.Arm %s: %w", attacker, ErrInvalidCombatant)
	}
	if ws, ok := e.systems[attacker.Entity]; ok {
		if initial == nil {
			return nil
		}
		return ws.equip(initial)
	}
	if !e.deps.Anim.HasOverride(attacker) {
		err := fmt.Errorf("combat: Engine.Arm %s: missing animation override controller: %w", attacker, ErrConfiguration)
		e.logger.Error("arming failed", zap.Error(err))
		return err
	}
	socket, err := e.deps.Sockets.FindDominantHand(attacker)
	if err != nil {
		err = fmt.Errorf("combat: Engine.Arm %s: %w: %w", attacker, ErrConfiguration, err)
		e.logger.Error("arming failed", zap.Error(err))
		return err
	}

	ws := newWeaponSystem(attacker, socket, e.deps)
	e.systems[attacker.Entity] = ws
	e.order = append(e.order, ws)
	e.logger.Info("combatant armed",
		zap.String("combatant", attacker.Name),
		zap.String("socket", socket.Name),
	)
	if initial != nil {
		return ws.equip(initial)
	}
	return nil
}

// EquipWeapon replaces attacker's weapon. A running engagement keeps its
// target; timing and damage of later strikes follow the new profile.
//
// Postcondition: The previous weapon visual is destroyed before the new one exists.
func (e *Engine) EquipWeapon(attacker *entity.Combatant, profile *weapon.Profile) error {
	if profile == nil {
		return fmt.Errorf("combat: Engine.EquipWeapon %s: nil weapon profile: %w", attacker, ErrConfiguration)
	}
	ws, err := e.system(attacker)
	if err != nil {
		return err
	}
	return ws.equip(profile)
}

// GetEquippedWeapon returns attacker's weapon. ok is false if attacker is not
// armed or holds nothing.
func (e *Engine) GetEquippedWeapon(attacker *entity.Combatant) (p *weapon.Profile, ok bool) {
	ws, err := e.system(attacker)
	if err != nil || ws.weapon == nil {
		return nil, false
	}
	return ws.weapon, true
}

// Engage starts attacker's attack loop against target, superseding any
// running engagement of attacker. The first loop iteration runs on the next
// tick, after the engagement monitor has validated the engagement once.
//
// Postcondition: Returns an error wrapping ErrConfiguration when attacker was
// never armed or has no weapon equipped; attacker then stays Idle.
func (e *Engine) Engage(attacker, target *entity.Combatant) error {
	ws, err := e.system(attacker)
	if errors.Is(err, ErrNotArmed) {
		err = fmt.Errorf("combat: Engine.Engage: %w: %w", ErrConfiguration, err)
		e.logger.Error("engage rejected", zap.Error(err))
		return err
	}
	if err != nil {
		return err
	}
	if !e.deps.World.Valid(attacker) || !e.deps.World.Valid(target) {
		return fmt.Errorf("combat: Engine.Engage %s -> %s: %w", attacker, target, ErrInvalidCombatant)
	}
	if attacker.Entity == target.Entity {
		return fmt.Errorf("combat: Engine.Engage %s: cannot target self: %w", attacker, ErrInvalidCombatant)
	}
	return ws.engage(target)
}

// Disengage cancels attacker's engagement. Idempotent; unknown combatants are ignored.
func (e *Engine) Disengage(attacker *entity.Combatant) {
	ws, err := e.system(attacker)
	if err != nil {
		return
	}
	ws.disengage(ReasonRequested)
}

// State returns attacker's engagement state; Idle for unarmed combatants.
func (e *Engine) State(attacker *entity.Combatant) State {
	ws, err := e.system(attacker)
	if err != nil {
		return StateIdle
	}
	return ws.State()
}

// Target returns attacker's current target, or nil.
func (e *Engine) Target(attacker *entity.Combatant) *entity.Combatant {
	ws, err := e.system(attacker)
	if err != nil {
		return nil
	}
	return ws.target
}

// System returns attacker's weapon system.
func (e *Engine) System(attacker *entity.Combatant) (*WeaponSystem, bool) {
	ws, err := e.system(attacker)
	return ws, err == nil
}

// Remove disengages attacker, destroys its weapon visual and forgets it.
func (e *Engine) Remove(attacker *entity.Combatant) {
	ws, err := e.system(attacker)
	if err != nil {
		return
	}
	ws.disengage(ReasonRemoved)
	ws.release()
	delete(e.systems, attacker.Entity)
	for i, o := range e.order {
		if o == ws {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
}

// Armed returns every armed combatant in arming order.
func (e *Engine) Armed() []*entity.Combatant {
	out := make([]*entity.Combatant, 0, len(e.order))
	for _, ws := range e.order {
		out = append(out, ws.attacker)
	}
	return out
}

// IsConfigurationError reports whether err is a combat configuration error.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrConfiguration)
}
