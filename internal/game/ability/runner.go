package ability

import (
	"errors"
	"fmt"
	"time"

	dmath "github.com/yohamta/donburi/features/math"
	"go.uber.org/zap"

	"github.com/cory-johannsen/melee/internal/game/anim"
	"github.com/cory-johannsen/melee/internal/game/dice"
	"github.com/cory-johannsen/melee/internal/game/entity"
	"github.com/cory-johannsen/melee/internal/game/fx"
	"github.com/cory-johannsen/melee/internal/game/tick"
)

// DefaultCleanupInterval is the particle cleanup poll interval used when none is configured.
const DefaultCleanupInterval = 10 * time.Second

// ParticleFactory spawns particle effects.
type ParticleFactory interface {
	Known(ref string) bool
	Spawn(ref string, pos dmath.Vec2, rotation float64, parent *entity.Combatant) (fx.Effect, error)
}

// AudioPlayer plays fire-and-forget clips from a combatant.
type AudioPlayer interface {
	PlayOneShot(c *entity.Combatant, clip string)
}

// AnimationSlot is the override slot an ability shares with the weapon system.
type AnimationSlot interface {
	HasOverride(c *entity.Combatant) bool
	Bind(c *entity.Combatant, slot string, clip anim.Clip) error
	Trigger(c *entity.Combatant, name string) error
}

// Positioner reports where a combatant stands.
type Positioner interface {
	Position(c *entity.Combatant) (dmath.Vec2, bool)
}

// RunnerDeps bundles the Runner's collaborators.
type RunnerDeps struct {
	Scheduler *tick.Scheduler
	Particles ParticleFactory
	Audio     AudioPlayer
	Anim      AnimationSlot
	Positions Positioner
	Picker    *dice.Picker
	Names     anim.Names
	// CleanupInterval defaults to DefaultCleanupInterval when zero.
	CleanupInterval time.Duration
	Logger          *zap.Logger
}

// Runner plays an ability's particle, sound and animation.
//
// A Runner is not safe for concurrent use; it runs on the tick goroutine.
type Runner struct {
	deps     RunnerDeps
	watchers map[*tick.Task]fx.Effect
	logger   *zap.Logger
}

// NewRunner returns a Runner.
//
// Postcondition: Returns an error wrapping ErrConfiguration if a collaborator is nil.
func NewRunner(deps RunnerDeps) (*Runner, error) {
	var errs []error
	if deps.Scheduler == nil || deps.Particles == nil || deps.Audio == nil || deps.Anim == nil {
		errs = append(errs, errors.New("scheduler, particles, audio and animation must be non-nil"))
	}
	if deps.Positions == nil || deps.Picker == nil || deps.Logger == nil {
		errs = append(errs, errors.New("positions, picker and logger must be non-nil"))
	}
	if deps.CleanupInterval < 0 {
		errs = append(errs, fmt.Errorf("cleanup interval must be >= 0, got %v", deps.CleanupInterval))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("ability: NewRunner: %w: %w", ErrConfiguration, err)
	}
	if deps.CleanupInterval == 0 {
		deps.CleanupInterval = DefaultCleanupInterval
	}
	return &Runner{
		deps:     deps,
		watchers: make(map[*tick.Task]fx.Effect),
		logger:   deps.Logger,
	}, nil
}

// Validate checks that invoker can play cfg's presentation: its particle is
// in the catalog and, when cfg has a clip, invoker has an animation override
// controller.
//
// Postcondition: Returns an error wrapping ErrConfiguration otherwise.
func (r *Runner) Validate(invoker *entity.Combatant, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("ability: Runner.Validate: nil config: %w", ErrConfiguration)
	}
	if cfg.ParticleEffect != "" && !r.deps.Particles.Known(cfg.ParticleEffect) {
		return fmt.Errorf("ability %q: unknown particle %q: %w", cfg.ID, cfg.ParticleEffect, ErrConfiguration)
	}
	if cfg.Clip.Valid() && !r.deps.Anim.HasOverride(invoker) {
		return fmt.Errorf("ability %q: %s has no animation override controller: %w", cfg.ID, invoker, ErrConfiguration)
	}
	return nil
}

// PlayEffect spawns cfg's particle at invoker's position, parented to invoker,
// starts it and registers a cleanup watcher. It returns immediately.
//
// Postcondition: Returns an error wrapping ErrConfiguration if cfg is nil or
// names an unknown particle.
func (r *Runner) PlayEffect(invoker *entity.Combatant, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("ability: Runner.PlayEffect: nil config: %w", ErrConfiguration)
	}
	if cfg.ParticleEffect == "" {
		return nil
	}
	pos, _ := r.deps.Positions.Position(invoker)
	effect, err := r.deps.Particles.Spawn(cfg.ParticleEffect, pos, 0, invoker)
	if err != nil {
		return fmt.Errorf("ability %q: %w: %w", cfg.ID, ErrConfiguration, err)
	}
	effect.Play()
	r.watch(effect)
	return nil
}

// watch destroys effect once it stops playing. Playback is checked
// immediately, then every cleanup interval.
func (r *Runner) watch(effect fx.Effect) {
	if !effect.IsPlaying() {
		effect.Destroy()
		return
	}
	var task *tick.Task
	task = r.deps.Scheduler.Repeat(r.deps.CleanupInterval, r.deps.CleanupInterval, func() bool {
		if effect.IsPlaying() {
			return true
		}
		effect.Destroy()
		delete(r.watchers, task)
		r.logger.Debug("particle cleaned up",
			zap.String("effect", effect.ID().String()),
		)
		return false
	})
	r.watchers[task] = effect
}

// Watching returns the number of effects awaiting cleanup.
func (r *Runner) Watching() int {
	return len(r.watchers)
}

// PlaySound plays one randomly selected clip of cfg from invoker. Overlapping
// sounds are allowed.
func (r *Runner) PlaySound(invoker *entity.Combatant, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("ability: Runner.PlaySound: nil config: %w", ErrConfiguration)
	}
	clip := r.deps.Picker.PickString("ability_sound:"+cfg.ID, cfg.Sounds)
	if clip == "" {
		return nil
	}
	r.deps.Audio.PlayOneShot(invoker, clip)
	return nil
}

// PlayAnimation binds cfg's clip into the default attack slot and fires the
// attack trigger. The slot is shared with the weapon system; the last writer wins.
func (r *Runner) PlayAnimation(invoker *entity.Combatant, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("ability: Runner.PlayAnimation: nil config: %w", ErrConfiguration)
	}
	if !cfg.Clip.Valid() {
		return nil
	}
	if err := r.deps.Anim.Bind(invoker, r.deps.Names.DefaultAttackSlot, cfg.Clip); err != nil {
		return fmt.Errorf("ability %q: %w: %w", cfg.ID, ErrConfiguration, err)
	}
	if err := r.deps.Anim.Trigger(invoker, r.deps.Names.AttackTrigger); err != nil {
		return fmt.Errorf("ability %q: %w: %w", cfg.ID, ErrConfiguration, err)
	}
	return nil
}

// Shutdown stops every cleanup watcher and destroys the effects they watch.
func (r *Runner) Shutdown() {
	for task, effect := range r.watchers {
		task.Stop()
		effect.Destroy()
		delete(r.watchers, task)
	}
}
