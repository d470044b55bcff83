package fx

import (
	"time"

	dmath "github.com/yohamta/donburi/features/math"
	"go.uber.org/zap"

	"github.com/cory-johannsen/melee/internal/game/entity"
)

// Sound is one played one-shot clip.
type Sound struct {
	At     time.Duration
	Source string
	Clip   string
}

// AudioLog is an audio player that records and logs every one-shot. Overlapping
// sounds are allowed.
type AudioLog struct {
	now    func() time.Duration
	logger *zap.Logger
	played []Sound
}

// NewAudioLog returns an empty AudioLog reading game time from now.
func NewAudioLog(now func() time.Duration, logger *zap.Logger) *AudioLog {
	return &AudioLog{now: now, logger: logger}
}

// PlayOneShot plays clip from c without tracking it.
func (a *AudioLog) PlayOneShot(c *entity.Combatant, clip string) {
	a.play(c.String(), clip)
}

func (a *AudioLog) play(source, clip string) {
	s := Sound{At: a.now(), Source: source, Clip: clip}
	a.played = append(a.played, s)
	a.logger.Info("sound played",
		zap.String("source", source),
		zap.String("clip", clip),
	)
}

// Played returns every sound played so far in order.
func (a *AudioLog) Played() []Sound {
	return append([]Sound(nil), a.played...)
}

// ProximityTrigger plays a clip when a watched combatant comes within Radius of
// a fixed point. It never restarts a clip that is still playing, and a
// one-time-only trigger plays at most once.
type ProximityTrigger struct {
	Name        string
	Position    dmath.Vec2
	Watch       *entity.Combatant
	Radius      float64
	OneTimeOnly bool
	Clip        string
	ClipLength  time.Duration

	audio        *AudioLog
	locator      Locator
	hasPlayed    bool
	playingUntil time.Duration
}

// NewProximityTrigger returns a trigger that plays through audio.
//
// Precondition: audio and locator must be non-nil; radius must be >= 0.
func NewProximityTrigger(name string, pos dmath.Vec2, watch *entity.Combatant, radius float64, oneTimeOnly bool, clip string, clipLength time.Duration, audio *AudioLog, locator Locator) *ProximityTrigger {
	return &ProximityTrigger{
		Name:        name,
		Position:    pos,
		Watch:       watch,
		Radius:      radius,
		OneTimeOnly: oneTimeOnly,
		Clip:        clip,
		ClipLength:  clipLength,
		audio:       audio,
		locator:     locator,
	}
}

// HasPlayed reports whether the trigger has played at least once.
func (p *ProximityTrigger) HasPlayed() bool {
	return p.hasPlayed
}

// Update checks the watched combatant's distance. It is registered as a
// per-tick system.
func (p *ProximityTrigger) Update(now time.Duration) {
	pos, ok := p.locator.Position(p.Watch)
	if !ok {
		return
	}
	dx, dy := pos.X-p.Position.X, pos.Y-p.Position.Y
	if dx*dx+dy*dy > p.Radius*p.Radius {
		return
	}
	if p.OneTimeOnly && p.hasPlayed {
		return
	}
	if p.hasPlayed && now < p.playingUntil {
		return
	}
	p.audio.play(p.Name, p.Clip)
	p.hasPlayed = true
	p.playingUntil = now + p.ClipLength
}
