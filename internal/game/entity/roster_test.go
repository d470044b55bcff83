package entity_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	dmath "github.com/yohamta/donburi/features/math"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/melee/internal/game/entity"
)

func hand() []entity.AttachPoint {
	return []entity.AttachPoint{
		{Name: "left_hand"},
		{Name: "right_hand", Dominant: true},
	}
}

func spawn(t *testing.T, r *entity.Roster, name string, x, y float64) *entity.Combatant {
	t.Helper()
	c, err := r.Spawn(entity.Spec{
		Name:       name,
		Position:   dmath.Vec2{X: x, Y: y},
		MaxHealth:  100,
		BaseDamage: 10,
		Sockets:    hand(),
	})
	require.NoError(t, err)
	return c
}

func TestSpawn_Defaults(t *testing.T) {
	r := entity.NewRoster(zaptest.NewLogger(t))
	c := spawn(t, r, "knight", 1, 2)

	assert.True(t, r.Valid(c))
	assert.Equal(t, 100.0, r.HealthPercentage(c))
	assert.Equal(t, 1.0, r.AnimationSpeedMultiplier(c))
	assert.Equal(t, 10.0, r.BaseDamage(c))
	pos, ok := r.Position(c)
	require.True(t, ok)
	assert.Equal(t, dmath.Vec2{X: 1, Y: 2}, pos)
}

func TestSpawn_RejectsInvalidSpec(t *testing.T) {
	r := entity.NewRoster(zaptest.NewLogger(t))
	_, err := r.Spawn(entity.Spec{Name: "", MaxHealth: 0})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name must not be empty")
	assert.Contains(t, err.Error(), "max_health")
}

func TestSpawn_RejectsDuplicateName(t *testing.T) {
	r := entity.NewRoster(zaptest.NewLogger(t))
	spawn(t, r, "knight", 0, 0)
	_, err := r.Spawn(entity.Spec{Name: "knight", MaxHealth: 10})
	assert.Error(t, err)
}

func TestDespawn_MakesReferenceStale(t *testing.T) {
	r := entity.NewRoster(zaptest.NewLogger(t))
	c := spawn(t, r, "knight", 0, 0)
	r.Despawn(c)

	assert.False(t, r.Valid(c))
	assert.Equal(t, 0.0, r.HealthPercentage(c))
	assert.Equal(t, 0.0, r.ApplyDamage(c, 10))
	_, ok := r.Lookup("knight")
	assert.False(t, ok)
	assert.NotPanics(t, func() { r.Despawn(c) })
	assert.False(t, r.Valid(nil))
}

func TestDistanceAndFace(t *testing.T) {
	r := entity.NewRoster(zaptest.NewLogger(t))
	a := spawn(t, r, "a", 0, 0)
	b := spawn(t, r, "b", 3, 4)

	d, ok := r.Distance(a, b)
	require.True(t, ok)
	assert.InDelta(t, 5.0, d, 1e-12)

	r.Face(a, b)
	assert.InDelta(t, math.Atan2(4, 3), r.Facing(a), 1e-12)

	r.SetPosition(b, dmath.Vec2{X: 0, Y: -2})
	r.Face(a, b)
	assert.InDelta(t, -math.Pi/2, r.Facing(a), 1e-12)
}

func TestApplyDamage_FloorsAtZero(t *testing.T) {
	r := entity.NewRoster(zaptest.NewLogger(t))
	c := spawn(t, r, "knight", 0, 0)

	assert.Equal(t, 30.0, r.ApplyDamage(c, 30))
	assert.Equal(t, 70.0, r.HealthPercentage(c))
	assert.Equal(t, 70.0, r.ApplyDamage(c, 500))
	assert.Equal(t, 0.0, r.HealthPercentage(c))
	assert.Equal(t, 0.0, r.ApplyDamage(c, -5))
}

func TestHeal_CapsAtMax(t *testing.T) {
	r := entity.NewRoster(zaptest.NewLogger(t))
	c := spawn(t, r, "knight", 0, 0)
	r.ApplyDamage(c, 20)

	assert.Equal(t, 20.0, r.Heal(c, 50))
	assert.Equal(t, 100.0, r.HealthPercentage(c))
}

func TestFindDominantHand(t *testing.T) {
	r := entity.NewRoster(zaptest.NewLogger(t))
	c := spawn(t, r, "knight", 0, 0)
	p, err := r.FindDominantHand(c)
	require.NoError(t, err)
	assert.Equal(t, "right_hand", p.Name)

	none, err := r.Spawn(entity.Spec{Name: "none", MaxHealth: 10, Sockets: []entity.AttachPoint{{Name: "l"}}})
	require.NoError(t, err)
	_, err = r.FindDominantHand(none)
	assert.ErrorIs(t, err, entity.ErrNoDominantHand)

	two, err := r.Spawn(entity.Spec{Name: "two", MaxHealth: 10, Sockets: []entity.AttachPoint{
		{Name: "l", Dominant: true}, {Name: "r", Dominant: true},
	}})
	require.NoError(t, err)
	_, err = r.FindDominantHand(two)
	assert.ErrorIs(t, err, entity.ErrMultipleDominantHands)

	r.Despawn(c)
	_, err = r.FindDominantHand(c)
	assert.ErrorIs(t, err, entity.ErrStale)
}

func TestAll_SortedByName(t *testing.T) {
	r := entity.NewRoster(zaptest.NewLogger(t))
	spawn(t, r, "c", 0, 0)
	spawn(t, r, "a", 0, 0)
	b := spawn(t, r, "b", 0, 0)
	r.Despawn(b)

	names := []string{}
	for _, c := range r.All() {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"a", "c"}, names)
}

func TestPropertyHealthStaysInRange(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		r := entity.NewRoster(zaptest.NewLogger(t))
		c, err := r.Spawn(entity.Spec{Name: "x", MaxHealth: rapid.Float64Range(1, 1000).Draw(rt, "max")})
		if err != nil {
			rt.Fatal(err)
		}
		ops := rapid.SliceOfN(rapid.Float64Range(-500, 500), 1, 30).Draw(rt, "ops")
		for _, op := range ops {
			if op < 0 {
				r.Heal(c, -op)
			} else {
				r.ApplyDamage(c, op)
			}
			pct := r.HealthPercentage(c)
			if pct < 0 || pct > 100 {
				rt.Fatalf("health percentage %v out of range", pct)
			}
		}
	})
}
