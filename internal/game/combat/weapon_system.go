package combat

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/looplab/fsm"
	"go.uber.org/zap"

	"github.com/cory-johannsen/melee/internal/game/entity"
	"github.com/cory-johannsen/melee/internal/game/fx"
	"github.com/cory-johannsen/melee/internal/game/tick"
	"github.com/cory-johannsen/melee/internal/game/weapon"
	"github.com/cory-johannsen/melee/internal/observability"
)

// State is an engagement state of one attacker.
type State string

const (
	StateIdle     State = "idle"
	StateEngaging State = "engaging"
	StateStriking State = "striking"
	StateWaiting  State = "waiting"
)

const (
	evEngage    = "engage"
	evStrike    = "strike"
	evWait      = "wait"
	evDisengage = "disengage"
)

func newEngagementFSM(onEnter func(from, to string)) *fsm.FSM {
	return fsm.NewFSM(
		string(StateIdle),
		fsm.Events{
			{Name: evEngage, Src: []string{string(StateIdle)}, Dst: string(StateEngaging)},
			{Name: evStrike, Src: []string{string(StateEngaging), string(StateWaiting)}, Dst: string(StateStriking)},
			{Name: evWait, Src: []string{string(StateEngaging), string(StateStriking)}, Dst: string(StateWaiting)},
			{Name: evDisengage, Src: []string{string(StateEngaging), string(StateStriking), string(StateWaiting)}, Dst: string(StateIdle)},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				onEnter(e.Src, e.Dst)
			},
		},
	)
}

// EffectivePeriod returns the time between consecutive strikes with p at the
// given animation speed multiplier: clip duration / speed + cycle gap.
//
// Precondition: speed must be > 0.
func EffectivePeriod(p *weapon.Profile, speed float64) time.Duration {
	return tick.Seconds(p.Clip.Duration/speed + p.CycleGap)
}

// WeaponSystem is the attack-cycle scheduler of one attacker. It owns the
// attacker's equipped weapon, its visual, and the engagement state.
//
// A WeaponSystem is not safe for concurrent use; it runs on the tick goroutine.
type WeaponSystem struct {
	attacker *entity.Combatant
	deps     *Deps
	logger   *zap.Logger

	weapon *weapon.Profile
	visual fx.Visual
	socket entity.AttachPoint

	target       *entity.Combatant
	engagementID uuid.UUID
	running      bool
	loop         *tick.Task
	lastStrike   time.Duration
	hasStruck    bool
	strikes      int

	machine *fsm.FSM
}

func newWeaponSystem(attacker *entity.Combatant, socket entity.AttachPoint, deps *Deps) *WeaponSystem {
	ws := &WeaponSystem{
		attacker: attacker,
		deps:     deps,
		socket:   socket,
		logger:   deps.Logger.With(zap.String("attacker", attacker.Name)),
	}
	ws.machine = newEngagementFSM(func(from, to string) {
		ws.logger.Debug("engagement state changed",
			zap.String("from", from),
			zap.String("to", to),
			observability.GameTime(deps.Scheduler.Now()),
		)
	})
	return ws
}

// Attacker returns the combatant this system drives.
func (ws *WeaponSystem) Attacker() *entity.Combatant { return ws.attacker }

// Weapon returns the equipped weapon, or nil.
func (ws *WeaponSystem) Weapon() *weapon.Profile { return ws.weapon }

// Target returns the current target, or nil when idle.
func (ws *WeaponSystem) Target() *entity.Combatant { return ws.target }

// Running reports whether an engagement loop is active.
func (ws *WeaponSystem) Running() bool { return ws.running }

// State returns the current engagement state.
func (ws *WeaponSystem) State() State { return State(ws.machine.Current()) }

// Strikes returns the number of strikes issued over the system's lifetime.
func (ws *WeaponSystem) Strikes() int { return ws.strikes }

// LastStrike returns the game time of the most recent strike. ok is false if
// the attacker has never struck.
func (ws *WeaponSystem) LastStrike() (at time.Duration, ok bool) {
	return ws.lastStrike, ws.hasStruck
}

func (ws *WeaponSystem) transition(event string) {
	if !ws.machine.Can(event) {
		return
	}
	if err := ws.machine.Event(context.Background(), event); err != nil {
		ws.logger.Error("engagement transition failed",
			zap.String("event", event),
			zap.String("state", ws.machine.Current()),
			zap.Error(err),
		)
	}
}

func (ws *WeaponSystem) emit(e Event) {
	if ws.deps.Sink == nil {
		return
	}
	e.Attacker = ws.attacker.Name
	ws.deps.Sink.Record(e)
}

// equip replaces the equipped weapon. The previous visual is destroyed before
// the new one is instantiated; if instantiation fails the previous weapon is
// put back in hand.
func (ws *WeaponSystem) equip(p *weapon.Profile) error {
	prev := ws.weapon
	if ws.visual != nil {
		ws.visual.Destroy()
		ws.visual = nil
	}
	v, err := ws.deps.Visuals.Instantiate(ws.attacker, p, ws.socket)
	if err != nil {
		err = fmt.Errorf("combat: instantiating %q for %s: %w", p.ID, ws.attacker, err)
		ws.restore(prev)
		ws.logger.Error("equip failed", zap.Error(err))
		return err
	}
	ws.visual = v
	ws.weapon = p

	e := NewEvent(EventWeaponEquipped, ws.deps.Scheduler.Now())
	e.WeaponID = p.ID
	if ws.target != nil {
		e.Target = ws.target.Name
	}
	ws.emit(e)
	ws.logger.Debug("weapon equipped",
		zap.String("weapon", p.ID),
		zap.Bool("engaged", ws.running),
	)
	return nil
}

// restore re-instantiates prev after a failed equip. The attacker is left
// empty-handed only if prev cannot be instantiated either.
func (ws *WeaponSystem) restore(prev *weapon.Profile) {
	if prev == nil {
		ws.weapon = nil
		return
	}
	v, err := ws.deps.Visuals.Instantiate(ws.attacker, prev, ws.socket)
	if err != nil {
		ws.weapon = nil
		ws.logger.Error("restoring previous weapon failed",
			zap.String("weapon", prev.ID),
			zap.Error(err),
		)
		return
	}
	ws.visual = v
	ws.weapon = prev
}

// engage starts a new engagement against target, superseding any running one.
func (ws *WeaponSystem) engage(target *entity.Combatant) error {
	if ws.weapon == nil {
		err := fmt.Errorf("combat: %s has no weapon equipped: %w", ws.attacker, ErrConfiguration)
		ws.logger.Error("engage rejected", zap.Error(err))
		return err
	}
	if ws.running {
		ws.disengage(ReasonSuperseded)
	}

	ws.deps.World.Face(ws.attacker, target)
	ws.target = target
	ws.running = true
	ws.engagementID = uuid.New()
	ws.transition(evEngage)

	e := NewEvent(EventEngagementStarted, ws.deps.Scheduler.Now())
	e.Target = target.Name
	e.WeaponID = ws.weapon.ID
	ws.emit(e)
	ws.logger.Debug("engaged",
		zap.String("target", target.Name),
		zap.String("engagement_id", ws.engagementID.String()),
	)

	ws.loop = ws.deps.Scheduler.After(0, ws.iterate)
	return nil
}

// disengage cancels the loop and clears the engagement. Idempotent.
func (ws *WeaponSystem) disengage(reason string) {
	ws.loop.Stop()
	ws.loop = nil
	if !ws.running {
		return
	}
	target := ws.target
	ws.running = false
	ws.target = nil
	if ws.State() != StateIdle {
		ws.deps.Anim.StopPlayback(ws.attacker)
	}
	ws.transition(evDisengage)

	e := NewEvent(EventEngagementEnded, ws.deps.Scheduler.Now())
	e.Target = target.String()
	e.Reason = reason
	if ws.weapon != nil {
		e.WeaponID = ws.weapon.ID
	}
	ws.emit(e)
}

func (ws *WeaponSystem) iterate() {
	ws.loop = nil
	if !ws.running {
		return
	}
	if !ws.deps.World.Valid(ws.attacker) || !ws.deps.World.Valid(ws.target) {
		ws.disengage(ReasonTargetGone)
		return
	}
	if ws.weapon == nil {
		ws.disengage(ReasonUnarmed)
		return
	}

	now := ws.deps.Scheduler.Now()
	period := EffectivePeriod(ws.weapon, ws.deps.Speed.AnimationSpeedMultiplier(ws.attacker))
	if ws.hasStruck && now-ws.lastStrike < period {
		ws.transition(evWait)
		ws.loop = ws.deps.Scheduler.After(period-(now-ws.lastStrike), ws.iterate)
		return
	}

	ws.transition(evStrike)
	ws.strike(now)
	ws.lastStrike = now
	ws.hasStruck = true
	ws.transition(evWait)
	ws.loop = ws.deps.Scheduler.After(period, ws.iterate)
}

func (ws *WeaponSystem) strike(now time.Duration) {
	target := ws.target
	profile := ws.weapon
	ws.strikes++

	ws.deps.World.Face(ws.attacker, target)
	if err := ws.deps.Anim.Bind(ws.attacker, ws.deps.Names.DefaultAttackSlot, profile.Clip); err != nil {
		ws.logger.Error("binding attack clip", zap.Error(err))
	}
	if err := ws.deps.Anim.Trigger(ws.attacker, ws.deps.Names.AttackTrigger); err != nil {
		ws.logger.Error("firing attack trigger", zap.Error(err))
	}

	e := NewEvent(EventStrike, now)
	e.Target = target.Name
	e.WeaponID = profile.ID
	ws.emit(e)
	ws.logger.Debug("strike",
		zap.String("target", target.Name),
		zap.String("weapon", profile.ID),
		zap.Int("strike", ws.strikes),
		observability.GameTime(now),
	)

	amount := ws.deps.Offense.BaseDamage(ws.attacker) + profile.DamageBonus
	ws.deps.Scheduler.After(tick.Seconds(profile.DamageDelay), func() {
		ws.deliver(target, profile, amount)
	})
}

// deliver applies a strike's damage unless the target has become stale or dead.
func (ws *WeaponSystem) deliver(target *entity.Combatant, profile *weapon.Profile, amount float64) {
	now := ws.deps.Scheduler.Now()
	reason := ""
	switch {
	case !ws.deps.World.Valid(target):
		reason = ReasonTargetGone
	case ws.deps.Health.HealthPercentage(target) <= ws.deps.Epsilon:
		reason = ReasonTargetDead
	}
	if reason != "" {
		e := NewEvent(EventDamageSkipped, now)
		e.Target = target.String()
		e.WeaponID = profile.ID
		e.Reason = reason
		ws.emit(e)
		ws.logger.Debug("damage skipped",
			zap.Stringer("target", target),
			zap.String("reason", reason),
		)
		return
	}

	ws.deps.Health.ApplyDamage(target, amount)
	e := NewEvent(EventDamageApplied, now)
	e.Target = target.Name
	e.WeaponID = profile.ID
	e.Amount = amount
	ws.emit(e)
}

// release destroys the weapon visual.
func (ws *WeaponSystem) release() {
	if ws.visual != nil {
		ws.visual.Destroy()
		ws.visual = nil
	}
}
