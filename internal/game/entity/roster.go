// Package entity holds the combatants of a melee world as donburi entities and
// exposes the health, position, speed and socket queries the combat core needs.
package entity

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/yohamta/donburi"
	dmath "github.com/yohamta/donburi/features/math"
	"go.uber.org/zap"
)

var (
	// ErrNoDominantHand is returned when a combatant has no dominant attachment point.
	ErrNoDominantHand = errors.New("entity: no dominant hand attachment point")
	// ErrMultipleDominantHands is returned when more than one attachment point is dominant.
	ErrMultipleDominantHands = errors.New("entity: multiple dominant hand attachment points")
	// ErrStale is returned when a combatant reference no longer resolves to a live entity.
	ErrStale = errors.New("entity: stale combatant reference")
)

// Combatant is a typed reference to a combatant entity. The reference does not
// own the entity; it becomes stale once the entity is despawned.
type Combatant struct {
	Entity donburi.Entity
	Name   string
}

// String returns the combatant's name, or "<nil>".
func (c *Combatant) String() string {
	if c == nil {
		return "<nil>"
	}
	return c.Name
}

// Spec describes a combatant to spawn.
type Spec struct {
	Name     string
	Position dmath.Vec2
	Facing   float64
	// Health defaults to MaxHealth when zero.
	Health     float64
	MaxHealth  float64
	BaseDamage float64
	// SpeedMultiplier defaults to 1 when zero.
	SpeedMultiplier float64
	Sockets         []AttachPoint
}

// Validate checks the spec's invariants.
func (s Spec) Validate() error {
	var errs []error
	if s.Name == "" {
		errs = append(errs, errors.New("name must not be empty"))
	}
	if s.MaxHealth <= 0 {
		errs = append(errs, fmt.Errorf("max_health must be > 0, got %v", s.MaxHealth))
	}
	if s.Health < 0 || s.Health > s.MaxHealth {
		errs = append(errs, fmt.Errorf("health must be in [0, max_health], got %v", s.Health))
	}
	if s.BaseDamage < 0 {
		errs = append(errs, fmt.Errorf("base_damage must be >= 0, got %v", s.BaseDamage))
	}
	if s.SpeedMultiplier < 0 {
		errs = append(errs, fmt.Errorf("speed_multiplier must be >= 0, got %v", s.SpeedMultiplier))
	}
	return errors.Join(errs...)
}

// Roster owns the donburi world holding every combatant.
//
// A Roster is not safe for concurrent use; it is driven from the tick goroutine.
type Roster struct {
	world  donburi.World
	byName map[string]*Combatant
	logger *zap.Logger
}

// NewRoster returns an empty Roster backed by a fresh donburi world.
//
// Precondition: logger must be non-nil.
func NewRoster(logger *zap.Logger) *Roster {
	return &Roster{
		world:  donburi.NewWorld(),
		byName: make(map[string]*Combatant),
		logger: logger,
	}
}

// World returns the underlying donburi world.
func (r *Roster) World() donburi.World {
	return r.world
}

// Spawn creates a combatant entity from spec.
//
// Postcondition: Returns a valid Combatant, or an error if spec is invalid or
// the name is already taken.
func (r *Roster) Spawn(spec Spec) (*Combatant, error) {
	if spec.Health == 0 {
		spec.Health = spec.MaxHealth
	}
	if spec.SpeedMultiplier == 0 {
		spec.SpeedMultiplier = 1
	}
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("entity: Roster.Spawn %q: %w", spec.Name, err)
	}
	if _, taken := r.byName[spec.Name]; taken {
		return nil, fmt.Errorf("entity: Roster.Spawn: combatant %q already exists", spec.Name)
	}

	e := r.world.Create(Identity, Transform, Health, Offense, Animation, Sockets)
	entry := r.world.Entry(e)
	Identity.Set(entry, &IdentityData{Name: spec.Name})
	Transform.Set(entry, &TransformData{Position: spec.Position, Facing: spec.Facing})
	Health.Set(entry, &HealthData{Current: spec.Health, Max: spec.MaxHealth})
	Offense.Set(entry, &OffenseData{BaseDamage: spec.BaseDamage})
	Animation.Set(entry, &AnimationData{SpeedMultiplier: spec.SpeedMultiplier})
	points := append([]AttachPoint(nil), spec.Sockets...)
	Sockets.Set(entry, &SocketsData{Points: points})

	c := &Combatant{Entity: e, Name: spec.Name}
	r.byName[spec.Name] = c
	r.logger.Debug("combatant spawned",
		zap.String("combatant", spec.Name),
		zap.Float64("x", spec.Position.X),
		zap.Float64("y", spec.Position.Y),
		zap.Float64("health", spec.Health),
	)
	return c, nil
}

// Despawn removes the combatant's entity. Every outstanding reference to it
// becomes stale. Despawning a stale or nil reference is a no-op.
func (r *Roster) Despawn(c *Combatant) {
	if !r.Valid(c) {
		return
	}
	r.world.Remove(c.Entity)
	if cur, ok := r.byName[c.Name]; ok && cur.Entity == c.Entity {
		delete(r.byName, c.Name)
	}
	r.logger.Debug("combatant despawned", zap.String("combatant", c.Name))
}

// Lookup returns the live combatant with the given name.
func (r *Roster) Lookup(name string) (*Combatant, bool) {
	c, ok := r.byName[name]
	if !ok || !r.Valid(c) {
		return nil, false
	}
	return c, true
}

// All returns every live combatant ordered by name.
func (r *Roster) All() []*Combatant {
	out := make([]*Combatant, 0, len(r.byName))
	for _, c := range r.byName {
		if r.Valid(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Valid reports whether c is non-nil and still resolves to a live entity.
func (r *Roster) Valid(c *Combatant) bool {
	return c != nil && r.world.Valid(c.Entity)
}

func (r *Roster) entry(c *Combatant) (*donburi.Entry, bool) {
	if !r.Valid(c) {
		return nil, false
	}
	return r.world.Entry(c.Entity), true
}

// Position returns c's position. ok is false for a stale reference.
func (r *Roster) Position(c *Combatant) (pos dmath.Vec2, ok bool) {
	entry, ok := r.entry(c)
	if !ok {
		return dmath.Vec2{}, false
	}
	return Transform.Get(entry).Position, true
}

// SetPosition moves c. A stale reference is ignored.
func (r *Roster) SetPosition(c *Combatant, pos dmath.Vec2) {
	if entry, ok := r.entry(c); ok {
		Transform.Get(entry).Position = pos
	}
}

// Face turns c toward target. Nothing changes when either reference is stale
// or both share a position.
func (r *Roster) Face(c, target *Combatant) {
	from, ok := r.Position(c)
	if !ok {
		return
	}
	to, ok := r.Position(target)
	if !ok {
		return
	}
	dx, dy := to.X-from.X, to.Y-from.Y
	if dx == 0 && dy == 0 {
		return
	}
	entry, _ := r.entry(c)
	Transform.Get(entry).Facing = math.Atan2(dy, dx)
}

// Facing returns c's heading in radians; 0 for a stale reference.
func (r *Roster) Facing(c *Combatant) float64 {
	entry, ok := r.entry(c)
	if !ok {
		return 0
	}
	return Transform.Get(entry).Facing
}

// Distance returns the Euclidean distance between a and b. ok is false if
// either reference is stale.
func (r *Roster) Distance(a, b *Combatant) (dist float64, ok bool) {
	pa, ok := r.Position(a)
	if !ok {
		return 0, false
	}
	pb, ok := r.Position(b)
	if !ok {
		return 0, false
	}
	return math.Hypot(pb.X-pa.X, pb.Y-pa.Y), true
}

// HealthPercentage returns c's health in [0, 100]. A stale reference reports 0.
func (r *Roster) HealthPercentage(c *Combatant) float64 {
	entry, ok := r.entry(c)
	if !ok {
		return 0
	}
	h := Health.Get(entry)
	if h.Max <= 0 {
		return 0
	}
	return h.Current * 100 / h.Max
}

// ApplyDamage subtracts amount from c's health, flooring at zero.
//
// Precondition: amount must be >= 0; negative amounts are ignored.
// Postcondition: Returns the health actually removed.
func (r *Roster) ApplyDamage(c *Combatant, amount float64) float64 {
	entry, ok := r.entry(c)
	if !ok || amount <= 0 {
		return 0
	}
	h := Health.Get(entry)
	applied := math.Min(amount, h.Current)
	h.Current -= applied
	r.logger.Debug("damage applied",
		zap.String("combatant", c.Name),
		zap.Float64("amount", applied),
		zap.Float64("health", h.Current),
	)
	return applied
}

// Heal adds amount to c's health, capping at the maximum.
//
// Postcondition: Returns the health actually restored.
func (r *Roster) Heal(c *Combatant, amount float64) float64 {
	entry, ok := r.entry(c)
	if !ok || amount <= 0 {
		return 0
	}
	h := Health.Get(entry)
	restored := math.Min(amount, h.Max-h.Current)
	h.Current += restored
	return restored
}

// BaseDamage returns c's base damage; 0 for a stale reference.
func (r *Roster) BaseDamage(c *Combatant) float64 {
	entry, ok := r.entry(c)
	if !ok {
		return 0
	}
	return Offense.Get(entry).BaseDamage
}

// SetBaseDamage replaces c's base damage. A stale reference is ignored.
func (r *Roster) SetBaseDamage(c *Combatant, dmg float64) {
	if entry, ok := r.entry(c); ok && dmg >= 0 {
		Offense.Get(entry).BaseDamage = dmg
	}
}

// AnimationSpeedMultiplier returns c's animation speed multiplier. It is
// always > 0; a stale reference or an unset multiplier reports 1.
func (r *Roster) AnimationSpeedMultiplier(c *Combatant) float64 {
	entry, ok := r.entry(c)
	if !ok {
		return 1
	}
	if m := Animation.Get(entry).SpeedMultiplier; m > 0 {
		return m
	}
	return 1
}

// FindDominantHand returns the single dominant attachment point of c.
//
// Postcondition: Returns ErrNoDominantHand or ErrMultipleDominantHands unless
// exactly one dominant point exists; ErrStale for a stale reference.
func (r *Roster) FindDominantHand(c *Combatant) (AttachPoint, error) {
	entry, ok := r.entry(c)
	if !ok {
		return AttachPoint{}, fmt.Errorf("entity: Roster.FindDominantHand %s: %w", c, ErrStale)
	}
	var found []AttachPoint
	for _, p := range Sockets.Get(entry).Points {
		if p.Dominant {
			found = append(found, p)
		}
	}
	switch len(found) {
	case 0:
		return AttachPoint{}, fmt.Errorf("entity: Roster.FindDominantHand %s: %w", c, ErrNoDominantHand)
	case 1:
		return found[0], nil
	default:
		return AttachPoint{}, fmt.Errorf("entity: Roster.FindDominantHand %s: %d candidates: %w", c, len(found), ErrMultipleDominantHands)
	}
}
