package entity

import (
	"github.com/yohamta/donburi"
	dmath "github.com/yohamta/donburi/features/math"
)

// IdentityData names a combatant.
type IdentityData struct {
	Name string
}

// TransformData is a combatant's placement on the ground plane.
type TransformData struct {
	Position dmath.Vec2
	// Facing is the heading in radians, measured from the +X axis.
	Facing float64
}

// HealthData holds hit points. Current is kept in [0, Max].
type HealthData struct {
	Current float64
	Max     float64
}

// OffenseData holds the attacker-side damage contribution.
type OffenseData struct {
	BaseDamage float64
}

// AnimationData holds animation playback settings.
type AnimationData struct {
	SpeedMultiplier float64
}

// AttachPoint is a named socket a weapon visual can be parented to.
type AttachPoint struct {
	Name     string
	Dominant bool
	Offset   dmath.Vec2
}

// SocketsData lists a combatant's attachment points.
type SocketsData struct {
	Points []AttachPoint
}

var (
	Identity  = donburi.NewComponentType[IdentityData]()
	Transform = donburi.NewComponentType[TransformData]()
	Health    = donburi.NewComponentType[HealthData]()
	Offense   = donburi.NewComponentType[OffenseData]()
	Animation = donburi.NewComponentType[AnimationData]()
	Sockets   = donburi.NewComponentType[SocketsData]()
)
