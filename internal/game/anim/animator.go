package anim

import (
	"errors"
	"fmt"
	"time"

	"github.com/yohamta/donburi"
	"go.uber.org/zap"

	"github.com/cory-johannsen/melee/internal/game/entity"
)

// ErrNoOverrideController is returned when a combatant has no animation
// override controller to bind clips into.
var ErrNoOverrideController = errors.New("anim: no override controller")

// Names is the fixed set of animator slot and trigger names shared by the
// weapon system and the ability runner. It is built once at startup.
type Names struct {
	AttackTrigger     string
	DefaultAttackSlot string
}

// DefaultNames returns the names used when configuration does not override them.
func DefaultNames() Names {
	return Names{AttackTrigger: "Attack", DefaultAttackSlot: "DEFAULT ATTACK"}
}

type controller struct {
	slots    map[string]Clip
	triggers []string
	playing  bool
	current  Clip
	ends     time.Duration
}

// Animator holds one override controller per combatant. A slot holds one clip;
// the most recent Bind wins.
//
// An Animator is not safe for concurrent use.
type Animator struct {
	names       Names
	now         func() time.Duration
	controllers map[donburi.Entity]*controller
	logger      *zap.Logger
}

// NewAnimator returns an Animator reading game time from now.
//
// Precondition: now and logger must be non-nil.
func NewAnimator(names Names, now func() time.Duration, logger *zap.Logger) *Animator {
	return &Animator{
		names:       names,
		now:         now,
		controllers: make(map[donburi.Entity]*controller),
		logger:      logger,
	}
}

// Names returns the animator's slot and trigger names.
func (a *Animator) Names() Names {
	return a.names
}

// AttachController gives c an empty override controller. Attaching twice keeps
// the existing controller.
func (a *Animator) AttachController(c *entity.Combatant) {
	if c == nil {
		return
	}
	if _, ok := a.controllers[c.Entity]; !ok {
		a.controllers[c.Entity] = &controller{slots: make(map[string]Clip)}
	}
}

// DetachController drops c's controller.
func (a *Animator) DetachController(c *entity.Combatant) {
	if c != nil {
		delete(a.controllers, c.Entity)
	}
}

// HasOverride reports whether c has an override controller.
func (a *Animator) HasOverride(c *entity.Combatant) bool {
	if c == nil {
		return false
	}
	_, ok := a.controllers[c.Entity]
	return ok
}

func (a *Animator) controller(c *entity.Combatant) (*controller, error) {
	if c == nil {
		return nil, fmt.Errorf("anim: nil combatant: %w", ErrNoOverrideController)
	}
	ctl, ok := a.controllers[c.Entity]
	if !ok {
		return nil, fmt.Errorf("anim: combatant %s: %w", c, ErrNoOverrideController)
	}
	return ctl, nil
}

// Bind places clip into slot on c's override controller, replacing any
// previous clip.
//
// Postcondition: Returns ErrNoOverrideController if c has no controller.
func (a *Animator) Bind(c *entity.Combatant, slot string, clip Clip) error {
	ctl, err := a.controller(c)
	if err != nil {
		return err
	}
	ctl.slots[slot] = clip
	a.logger.Debug("clip bound",
		zap.String("combatant", c.Name),
		zap.String("slot", slot),
		zap.String("clip", clip.Name),
	)
	return nil
}

// Trigger fires the named trigger. The attack trigger starts playback of the
// clip bound into the default attack slot.
//
// Postcondition: Returns ErrNoOverrideController if c has no controller.
func (a *Animator) Trigger(c *entity.Combatant, name string) error {
	ctl, err := a.controller(c)
	if err != nil {
		return err
	}
	ctl.triggers = append(ctl.triggers, name)
	if name == a.names.AttackTrigger {
		if clip, ok := ctl.slots[a.names.DefaultAttackSlot]; ok {
			ctl.playing = true
			ctl.current = clip
			ctl.ends = a.now() + time.Duration(clip.Duration*float64(time.Second))
		}
	}
	return nil
}

// StopPlayback halts whatever c is playing. A combatant without a controller
// is ignored.
func (a *Animator) StopPlayback(c *entity.Combatant) {
	ctl, err := a.controller(c)
	if err != nil {
		return
	}
	ctl.playing = false
	ctl.current = Clip{}
}

// Playing returns the clip c is currently playing.
func (a *Animator) Playing(c *entity.Combatant) (Clip, bool) {
	ctl, err := a.controller(c)
	if err != nil || !ctl.playing {
		return Clip{}, false
	}
	return ctl.current, true
}

// Bound returns the clip in slot on c's controller.
func (a *Animator) Bound(c *entity.Combatant, slot string) (Clip, bool) {
	ctl, err := a.controller(c)
	if err != nil {
		return Clip{}, false
	}
	clip, ok := ctl.slots[slot]
	return clip, ok
}

// Triggers returns the triggers fired on c in order.
func (a *Animator) Triggers(c *entity.Combatant) []string {
	ctl, err := a.controller(c)
	if err != nil {
		return nil
	}
	return append([]string(nil), ctl.triggers...)
}

// Update ends playback of clips whose duration has elapsed. It is registered
// as a per-tick system.
func (a *Animator) Update(now time.Duration) {
	for _, ctl := range a.controllers {
		if ctl.playing && now >= ctl.ends {
			ctl.playing = false
			ctl.current = Clip{}
		}
	}
}
