// Package combat implements real-time melee engagement: the per-attacker attack
// cycle, the per-tick engagement monitor, and delayed damage application.
package combat

import (
	"errors"

	"go.uber.org/zap"

	"github.com/cory-johannsen/melee/internal/game/anim"
	"github.com/cory-johannsen/melee/internal/game/entity"
	"github.com/cory-johannsen/melee/internal/game/fx"
	"github.com/cory-johannsen/melee/internal/game/tick"
	"github.com/cory-johannsen/melee/internal/game/weapon"
)

var (
	// ErrConfiguration marks authoring mistakes detected at setup or engage time.
	ErrConfiguration = errors.New("combat: configuration error")
	// ErrNotArmed is returned for combatants that were never armed.
	ErrNotArmed = errors.New("combat: combatant not armed")
	// ErrInvalidCombatant is returned when a required combatant reference is nil or stale.
	ErrInvalidCombatant = errors.New("combat: invalid combatant reference")
)

// HealthProvider reports and mutates combatant health.
type HealthProvider interface {
	HealthPercentage(c *entity.Combatant) float64
	ApplyDamage(c *entity.Combatant, amount float64) float64
}

// Locator resolves combatant references and their placement.
type Locator interface {
	Valid(c *entity.Combatant) bool
	Distance(a, b *entity.Combatant) (float64, bool)
	Face(c, target *entity.Combatant)
}

// SpeedSource reports a combatant's animation speed multiplier (always > 0).
type SpeedSource interface {
	AnimationSpeedMultiplier(c *entity.Combatant) float64
}

// OffenseSource reports a combatant's base damage.
type OffenseSource interface {
	BaseDamage(c *entity.Combatant) float64
}

// AnimationOverrideSlot is the per-combatant animation override surface.
type AnimationOverrideSlot interface {
	HasOverride(c *entity.Combatant) bool
	Bind(c *entity.Combatant, slot string, clip anim.Clip) error
	Trigger(c *entity.Combatant, name string) error
	StopPlayback(c *entity.Combatant)
}

// SocketResolver finds the single attachment point a weapon is held in.
type SocketResolver interface {
	FindDominantHand(c *entity.Combatant) (entity.AttachPoint, error)
}

// VisualFactory instantiates weapon visuals.
type VisualFactory interface {
	Instantiate(holder *entity.Combatant, profile *weapon.Profile, socket entity.AttachPoint) (fx.Visual, error)
}

// Deps bundles the collaborators shared by every weapon system.
type Deps struct {
	Scheduler *tick.Scheduler
	Health    HealthProvider
	World     Locator
	Speed     SpeedSource
	Offense   OffenseSource
	Anim      AnimationOverrideSlot
	Sockets   SocketResolver
	Visuals   VisualFactory
	Names     anim.Names
	// Epsilon is the health percentage at or below which a combatant is dead.
	Epsilon float64
	Sink    Sink
	Logger  *zap.Logger
}

func (d Deps) validate() error {
	var errs []error
	if d.Scheduler == nil {
		errs = append(errs, errors.New("scheduler must be non-nil"))
	}
	if d.Health == nil || d.World == nil || d.Speed == nil || d.Offense == nil {
		errs = append(errs, errors.New("health, world, speed and offense sources must be non-nil"))
	}
	if d.Anim == nil || d.Sockets == nil || d.Visuals == nil {
		errs = append(errs, errors.New("animation, socket and visual collaborators must be non-nil"))
	}
	if d.Names.AttackTrigger == "" || d.Names.DefaultAttackSlot == "" {
		errs = append(errs, errors.New("animation names must be non-empty"))
	}
	if d.Epsilon <= 0 {
		errs = append(errs, errors.New("epsilon must be > 0"))
	}
	if d.Logger == nil {
		errs = append(errs, errors.New("logger must be non-nil"))
	}
	return errors.Join(errs...)
}
