package scenario

import (
	"errors"
	"fmt"

	dmath "github.com/yohamta/donburi/features/math"
	"go.uber.org/zap"

	"github.com/cory-johannsen/melee/internal/game/ability"
	"github.com/cory-johannsen/melee/internal/game/anim"
	"github.com/cory-johannsen/melee/internal/game/combat"
	"github.com/cory-johannsen/melee/internal/game/entity"
	"github.com/cory-johannsen/melee/internal/game/fx"
	"github.com/cory-johannsen/melee/internal/game/tick"
	"github.com/cory-johannsen/melee/internal/game/weapon"
)

// ErrUnknownContent is returned when a scenario references a weapon or
// ability that was not loaded.
var ErrUnknownContent = errors.New("scenario: unknown content reference")

// Activator activates abilities.
type Activator interface {
	Activate(user *entity.Combatant, cfg *ability.Config, target *entity.Combatant) error
}

// DirectorDeps bundles the world a Director plays scenarios against.
type DirectorDeps struct {
	Scheduler *tick.Scheduler
	Roster    *entity.Roster
	Animator  *anim.Animator
	Engine    *combat.Engine
	Weapons   *weapon.Registry
	Audio     *fx.AudioLog
	// Abilities and Activator are optional; ability actions fail without them.
	Abilities *ability.Registry
	Activator Activator
	// DefaultBaseDamage applies to combatants that do not set base_damage.
	DefaultBaseDamage float64
	Logger            *zap.Logger
}

// Director spawns a scenario's combatants and plays its timeline on the
// scheduler. All methods must be called from the tick goroutine.
type Director struct {
	deps     DirectorDeps
	logger   *zap.Logger
	triggers []*fx.ProximityTrigger

	setupErrors []error
	failures    int
	finished    bool
}

// NewDirector validates deps and returns a Director.
func NewDirector(deps DirectorDeps) (*Director, error) {
	if deps.Scheduler == nil || deps.Roster == nil || deps.Animator == nil ||
		deps.Engine == nil || deps.Weapons == nil || deps.Audio == nil || deps.Logger == nil {
		return nil, errors.New("scenario: NewDirector: scheduler, roster, animator, engine, weapons, audio and logger must be non-nil")
	}
	return &Director{deps: deps, logger: deps.Logger}, nil
}

// Setup spawns every combatant, arms those carrying a weapon and registers
// the audio triggers.
//
// Postcondition: Returns an error only for problems that make the scenario
// unplayable (spawn failures, unknown weapons). Arming failures caused by a
// combatant's own configuration are logged, kept in SetupErrors and leave that
// combatant unarmed.
func (d *Director) Setup(sc *Scenario) error {
	for _, def := range sc.Combatants {
		if def.Weapon != "" {
			if _, ok := d.deps.Weapons.Get(def.Weapon); !ok {
				return fmt.Errorf("scenario %q: combatant %q weapon %q: %w", sc.Name, def.Name, def.Weapon, ErrUnknownContent)
			}
		}
	}

	for _, def := range sc.Combatants {
		c, err := d.spawn(def)
		if err != nil {
			return fmt.Errorf("scenario %q: %w", sc.Name, err)
		}
		if def.Weapon == "" {
			continue
		}
		profile, _ := d.deps.Weapons.Get(def.Weapon)
		if err := d.deps.Engine.Arm(c, profile); err != nil {
			d.setupErrors = append(d.setupErrors, err)
			d.logger.Error("arming combatant",
				zap.String("combatant", def.Name),
				zap.String("weapon", def.Weapon),
				zap.Bool("configuration", combat.IsConfigurationError(err)),
				zap.Error(err),
			)
		}
	}

	for _, z := range sc.Triggers {
		watch, _ := d.deps.Roster.Lookup(z.Watch)
		trig := fx.NewProximityTrigger(z.Name, dmath.Vec2{X: z.X, Y: z.Y}, watch, z.Radius,
			z.OneTimeOnly, z.Clip, tick.Seconds(z.ClipSeconds), d.deps.Audio, d.deps.Roster)
		d.triggers = append(d.triggers, trig)
		d.deps.Scheduler.AddSystem("audio-trigger:"+z.Name, trig.Update)
	}

	d.logger.Info("scenario set up",
		zap.String("scenario", sc.Name),
		zap.Int("combatants", len(sc.Combatants)),
		zap.Int("armed", len(d.deps.Engine.Armed())),
		zap.Int("audio_triggers", len(d.triggers)),
	)
	return nil
}

func (d *Director) spawn(def Combatant) (*entity.Combatant, error) {
	base := def.BaseDamage
	if base == 0 {
		base = d.deps.DefaultBaseDamage
	}
	c, err := d.deps.Roster.Spawn(entity.Spec{
		Name:            def.Name,
		Position:        dmath.Vec2{X: def.X, Y: def.Y},
		Health:          def.Health,
		MaxHealth:       def.MaxHealth,
		BaseDamage:      base,
		SpeedMultiplier: def.Speed,
		Sockets:         sockets(def.Hands()),
	})
	if err != nil {
		return nil, err
	}
	if def.HasController() {
		d.deps.Animator.AttachController(c)
	}
	return c, nil
}

// sockets returns n dominant hands plus an off hand.
func sockets(n int) []entity.AttachPoint {
	points := []entity.AttachPoint{{Name: "left_hand", Offset: dmath.Vec2{X: -0.3}}}
	for i := range n {
		name := "right_hand"
		if i > 0 {
			name = fmt.Sprintf("right_hand_%d", i+1)
		}
		points = append(points, entity.AttachPoint{Name: name, Dominant: true, Offset: dmath.Vec2{X: 0.3}})
	}
	return points
}

// Play schedules every timeline action relative to the current game time and
// calls onDone, if non-nil, once the scenario's duration has elapsed.
func (d *Director) Play(sc *Scenario, onDone func()) {
	for i, a := range sc.Timeline {
		d.deps.Scheduler.After(tick.Seconds(a.AtSeconds), func() {
			if err := d.Execute(a); err != nil {
				d.failures++
				d.logger.Warn("scenario action failed",
					zap.Int("index", i),
					zap.String("action", a.Kind),
					zap.String("actor", a.Actor),
					zap.Error(err),
				)
			}
		})
	}
	d.deps.Scheduler.After(tick.Seconds(sc.DurationSeconds), func() {
		d.finished = true
		d.logger.Info("scenario finished",
			zap.String("scenario", sc.Name),
			zap.Duration("game_time", d.deps.Scheduler.Now()),
			zap.Int("failed_actions", d.failures),
		)
		if onDone != nil {
			onDone()
		}
	})
}

// Execute performs a single timeline action immediately.
func (d *Director) Execute(a Action) error {
	actor, ok := d.deps.Roster.Lookup(a.Actor)
	if !ok {
		return fmt.Errorf("%s: actor %q: %w", a.Kind, a.Actor, combat.ErrInvalidCombatant)
	}
	switch a.Kind {
	case ActionEngage:
		target, ok := d.deps.Roster.Lookup(a.Target)
		if !ok {
			return fmt.Errorf("engage: target %q: %w", a.Target, combat.ErrInvalidCombatant)
		}
		return d.deps.Engine.Engage(actor, target)
	case ActionDisengage:
		d.deps.Engine.Disengage(actor)
		return nil
	case ActionMove:
		d.deps.Roster.SetPosition(actor, dmath.Vec2{X: a.X, Y: a.Y})
		return nil
	case ActionEquip:
		profile, ok := d.deps.Weapons.Get(a.Weapon)
		if !ok {
			return fmt.Errorf("equip: weapon %q: %w", a.Weapon, ErrUnknownContent)
		}
		return d.deps.Engine.EquipWeapon(actor, profile)
	case ActionAbility:
		return d.activate(actor, a)
	case ActionDamage:
		d.deps.Roster.ApplyDamage(actor, a.Amount)
		return nil
	case ActionDespawn:
		d.deps.Engine.Remove(actor)
		d.deps.Animator.DetachController(actor)
		d.deps.Roster.Despawn(actor)
		return nil
	default:
		return fmt.Errorf("unknown action %q", a.Kind)
	}
}

func (d *Director) activate(actor *entity.Combatant, a Action) error {
	if d.deps.Abilities == nil || d.deps.Activator == nil {
		return fmt.Errorf("ability %q: abilities are not loaded: %w", a.Ability, ErrUnknownContent)
	}
	cfg, ok := d.deps.Abilities.Get(a.Ability)
	if !ok {
		return fmt.Errorf("ability %q: %w", a.Ability, ErrUnknownContent)
	}
	var target *entity.Combatant
	if a.Target != "" {
		// A missing target is passed through as nil so the activator can
		// report it.
		target, _ = d.deps.Roster.Lookup(a.Target)
	}
	return d.deps.Activator.Activate(actor, cfg, target)
}

// SetupErrors returns the arming failures recorded by Setup.
func (d *Director) SetupErrors() []error {
	return append([]error(nil), d.setupErrors...)
}

// Failures returns the number of timeline actions that returned an error.
func (d *Director) Failures() int {
	return d.failures
}

// Finished reports whether the scenario's duration has elapsed.
func (d *Director) Finished() bool {
	return d.finished
}

// Triggers returns the registered audio triggers.
func (d *Director) Triggers() []*fx.ProximityTrigger {
	return append([]*fx.ProximityTrigger(nil), d.triggers...)
}

