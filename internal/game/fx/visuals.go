package fx

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/yohamta/donburi"
	"go.uber.org/zap"

	"github.com/cory-johannsen/melee/internal/game/entity"
	"github.com/cory-johannsen/melee/internal/game/weapon"
)

// ErrVisualExists is returned when a holder already has a live weapon visual.
var ErrVisualExists = errors.New("fx: holder already has a live weapon visual")

// Visual is a handle to an instantiated weapon visual.
type Visual interface {
	ID() uuid.UUID
	Destroy()
}

// WeaponVisual is the simulated weapon model held in an attachment point.
type WeaponVisual struct {
	id        uuid.UUID
	holder    *entity.Combatant
	profile   *weapon.Profile
	socket    entity.AttachPoint
	owner     *WeaponVisuals
	destroyed bool
}

// ID returns the instance identifier.
func (v *WeaponVisual) ID() uuid.UUID { return v.id }

// WeaponID returns the ID of the weapon this visual represents.
func (v *WeaponVisual) WeaponID() string { return v.profile.ID }

// Socket returns the attachment point the visual is parented to.
func (v *WeaponVisual) Socket() entity.AttachPoint { return v.socket }

// Destroy removes the visual. Safe to call multiple times.
func (v *WeaponVisual) Destroy() {
	if v.destroyed {
		return
	}
	v.destroyed = true
	v.owner.remove(v)
}

// WeaponVisuals instantiates weapon visuals and keeps at most one live visual
// per holder.
//
// A WeaponVisuals is not safe for concurrent use.
type WeaponVisuals struct {
	live   map[donburi.Entity]*WeaponVisual
	logger *zap.Logger
}

// NewWeaponVisuals returns an empty WeaponVisuals.
func NewWeaponVisuals(logger *zap.Logger) *WeaponVisuals {
	return &WeaponVisuals{
		live:   make(map[donburi.Entity]*WeaponVisual),
		logger: logger,
	}
}

// Instantiate creates the visual for profile in holder's socket, offset by the
// profile's grip.
//
// Postcondition: Returns ErrVisualExists if holder's previous visual was not
// destroyed first.
func (w *WeaponVisuals) Instantiate(holder *entity.Combatant, profile *weapon.Profile, socket entity.AttachPoint) (Visual, error) {
	if holder == nil || profile == nil {
		return nil, errors.New("fx: WeaponVisuals.Instantiate: holder and profile must be non-nil")
	}
	if cur, ok := w.live[holder.Entity]; ok {
		return nil, fmt.Errorf("fx: WeaponVisuals.Instantiate %s (%s still held): %w", holder, cur.profile.ID, ErrVisualExists)
	}
	v := &WeaponVisual{
		id:      uuid.New(),
		holder:  holder,
		profile: profile,
		socket:  socket,
		owner:   w,
	}
	w.live[holder.Entity] = v
	w.logger.Debug("weapon visual instantiated",
		zap.String("holder", holder.Name),
		zap.String("weapon", profile.ID),
		zap.String("prefab", profile.Prefab),
		zap.String("socket", socket.Name),
		zap.Float64("grip_rotation", profile.Grip.Rotation),
	)
	return v, nil
}

func (w *WeaponVisuals) remove(v *WeaponVisual) {
	if cur, ok := w.live[v.holder.Entity]; ok && cur == v {
		delete(w.live, v.holder.Entity)
	}
	w.logger.Debug("weapon visual destroyed",
		zap.String("holder", v.holder.Name),
		zap.String("weapon", v.profile.ID),
	)
}

// Held returns the live visual for holder.
func (w *WeaponVisuals) Held(holder *entity.Combatant) (*WeaponVisual, bool) {
	if holder == nil {
		return nil, false
	}
	v, ok := w.live[holder.Entity]
	return v, ok
}

// Live returns the number of live visuals.
func (w *WeaponVisuals) Live() int {
	return len(w.live)
}
