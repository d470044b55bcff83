package combat

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/melee/internal/observability"
)

// EventKind classifies a combat event.
type EventKind string

const (
	EventEngagementStarted EventKind = "engagement_started"
	EventEngagementEnded   EventKind = "engagement_ended"
	EventStrike            EventKind = "strike"
	EventDamageApplied     EventKind = "damage_applied"
	EventDamageSkipped     EventKind = "damage_skipped"
	EventWeaponEquipped    EventKind = "weapon_equipped"
	EventAbilityActivated  EventKind = "ability_activated"
)

// End reasons recorded on engagement_ended and damage_skipped events.
const (
	ReasonAttackerDead     = "attacker_dead"
	ReasonTargetDead       = "target_dead"
	ReasonTargetOutOfRange = "target_out_of_range"
	ReasonTargetGone       = "target_gone"
	ReasonSuperseded       = "superseded"
	ReasonRequested        = "requested"
	ReasonRemoved          = "removed"
	ReasonUnarmed          = "unarmed"
)

// Event is one entry of the combat journal.
type Event struct {
	ID        uuid.UUID
	Kind      EventKind
	At        time.Duration
	Attacker  string
	Target    string
	WeaponID  string
	AbilityID string
	Amount    float64
	Reason    string
}

// Sink receives combat events. Record is called from the tick goroutine and
// must not block.
type Sink interface {
	Record(e Event)
}

// SinkFunc adapts a function into a Sink.
type SinkFunc func(e Event)

// Record calls f.
func (f SinkFunc) Record(e Event) { f(e) }

// MultiSink fans events out to every sink in order.
type MultiSink []Sink

// Record forwards e to every non-nil sink.
func (m MultiSink) Record(e Event) {
	for _, s := range m {
		if s != nil {
			s.Record(e)
		}
	}
}

// LogSink writes every event to a zap logger at debug level.
type LogSink struct {
	Logger *zap.Logger
}

// Record logs e.
func (l LogSink) Record(e Event) {
	fields := []zap.Field{
		zap.String("event", string(e.Kind)),
		zap.String("event_id", e.ID.String()),
		observability.GameTime(e.At),
		zap.String("attacker", e.Attacker),
	}
	if e.Target != "" {
		fields = append(fields, zap.String("target", e.Target))
	}
	if e.WeaponID != "" {
		fields = append(fields, zap.String("weapon", e.WeaponID))
	}
	if e.AbilityID != "" {
		fields = append(fields, zap.String("ability", e.AbilityID))
	}
	if e.Amount != 0 {
		fields = append(fields, zap.Float64("amount", e.Amount))
	}
	if e.Reason != "" {
		fields = append(fields, zap.String("reason", e.Reason))
	}
	l.Logger.Debug("combat event", fields...)
}

// Recorder keeps every event in memory.
type Recorder struct {
	events []Event
}

// Record appends e.
func (r *Recorder) Record(e Event) {
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	return append([]Event(nil), r.events...)
}

// OfKind returns the recorded events of kind k in order.
func (r *Recorder) OfKind(k EventKind) []Event {
	var out []Event
	for _, e := range r.events {
		if e.Kind == k {
			out = append(out, e)
		}
	}
	return out
}

// NewEvent returns an event of kind at game time at with a fresh ID.
func NewEvent(kind EventKind, at time.Duration) Event {
	return Event{ID: uuid.New(), Kind: kind, At: at}
}
