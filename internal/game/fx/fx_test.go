package fx_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	dmath "github.com/yohamta/donburi/features/math"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/melee/internal/game/anim"
	"github.com/cory-johannsen/melee/internal/game/entity"
	"github.com/cory-johannsen/melee/internal/game/fx"
	"github.com/cory-johannsen/melee/internal/game/weapon"
)

func roster(t *testing.T) (*entity.Roster, *entity.Combatant) {
	t.Helper()
	r := entity.NewRoster(zaptest.NewLogger(t))
	c, err := r.Spawn(entity.Spec{Name: "mage", MaxHealth: 100, Position: dmath.Vec2{X: 1, Y: 1}})
	require.NoError(t, err)
	return r, c
}

func TestLoadParticleCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "particles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
particles:
  - ref: ember_burst
    lifetime_seconds: 1.2
    rotation_degrees: -90
`), 0644))
	cat, err := fx.LoadParticleCatalog(path)
	require.NoError(t, err)
	def, ok := cat.Def("ember_burst")
	require.True(t, ok)
	assert.Equal(t, 1.2, def.LifetimeSeconds)
	assert.Equal(t, -90.0, def.RotationDegrees)
}

func TestNewParticleCatalog_Invalid(t *testing.T) {
	_, err := fx.NewParticleCatalog(fx.ParticleDef{Ref: "x", LifetimeSeconds: 0})
	assert.Error(t, err)
	_, err = fx.NewParticleCatalog(fx.ParticleDef{LifetimeSeconds: 1})
	assert.Error(t, err)
}

func TestParticle_PlaysForLifetime(t *testing.T) {
	r, c := roster(t)
	cat, err := fx.NewParticleCatalog(fx.ParticleDef{Ref: "burst", LifetimeSeconds: 1})
	require.NoError(t, err)
	sys := fx.NewParticleSystem(cat, r, zaptest.NewLogger(t))

	p, err := sys.Spawn("burst", dmath.Vec2{X: 1, Y: 1}, 0, c)
	require.NoError(t, err)
	assert.False(t, p.IsPlaying(), "spawned particle waits for Play")
	p.Play()
	assert.True(t, p.IsPlaying())

	sys.Update(500 * time.Millisecond)
	assert.True(t, p.IsPlaying())
	sys.Update(1500 * time.Millisecond)
	assert.False(t, p.IsPlaying())
	assert.Equal(t, 1, sys.Live())

	p.Destroy()
	p.Destroy()
	assert.Equal(t, 0, sys.Live())
	assert.Equal(t, 1, sys.Spawned())
}

func TestParticle_FollowsParent(t *testing.T) {
	r, c := roster(t)
	cat, err := fx.NewParticleCatalog(fx.ParticleDef{Ref: "aura", LifetimeSeconds: 5})
	require.NoError(t, err)
	sys := fx.NewParticleSystem(cat, r, zaptest.NewLogger(t))

	eff, err := sys.Spawn("aura", dmath.Vec2{X: 1, Y: 1}, 0, c)
	require.NoError(t, err)
	eff.Play()
	r.SetPosition(c, dmath.Vec2{X: 4, Y: 5})
	sys.Update(100 * time.Millisecond)

	p := eff.(*fx.Particle)
	assert.Equal(t, dmath.Vec2{X: 4, Y: 5}, p.Position())
	assert.Less(t, p.Intensity(), float32(1))
}

func TestSpawn_UnknownRef(t *testing.T) {
	r, _ := roster(t)
	cat, err := fx.NewParticleCatalog()
	require.NoError(t, err)
	sys := fx.NewParticleSystem(cat, r, zaptest.NewLogger(t))
	_, err = sys.Spawn("missing", dmath.Vec2{}, 0, nil)
	assert.ErrorIs(t, err, fx.ErrUnknownParticle)
}

func TestWeaponVisuals_OnePerHolder(t *testing.T) {
	_, c := roster(t)
	w := fx.NewWeaponVisuals(zaptest.NewLogger(t))
	sword := &weapon.Profile{ID: "sword", Clip: anim.Clip{Name: "slash", Duration: 1}}
	axe := &weapon.Profile{ID: "axe", Clip: anim.Clip{Name: "chop", Duration: 1}}
	socket := entity.AttachPoint{Name: "right_hand", Dominant: true}

	v1, err := w.Instantiate(c, sword, socket)
	require.NoError(t, err)
	_, err = w.Instantiate(c, axe, socket)
	assert.ErrorIs(t, err, fx.ErrVisualExists)

	v1.Destroy()
	v2, err := w.Instantiate(c, axe, socket)
	require.NoError(t, err)
	held, ok := w.Held(c)
	require.True(t, ok)
	assert.Equal(t, "axe", held.WeaponID())
	assert.Equal(t, v2.ID(), held.ID())
	assert.Equal(t, 1, w.Live())
}

func TestProximityTrigger_OneTimeOnly(t *testing.T) {
	r, c := roster(t)
	var now time.Duration
	audio := fx.NewAudioLog(func() time.Duration { return now }, zaptest.NewLogger(t))
	trig := fx.NewProximityTrigger("gate", dmath.Vec2{X: 10, Y: 0}, c, 2, true, "creak", time.Second, audio, r)

	trig.Update(now)
	assert.Empty(t, audio.Played())

	r.SetPosition(c, dmath.Vec2{X: 9, Y: 0})
	now = time.Second
	trig.Update(now)
	now = 5 * time.Second
	trig.Update(now)

	played := audio.Played()
	require.Len(t, played, 1)
	assert.Equal(t, "creak", played[0].Clip)
	assert.Equal(t, "gate", played[0].Source)
	assert.True(t, trig.HasPlayed())
}

func TestProximityTrigger_NoRestartWhilePlaying(t *testing.T) {
	r, c := roster(t)
	audio := fx.NewAudioLog(func() time.Duration { return 0 }, zaptest.NewLogger(t))
	trig := fx.NewProximityTrigger("brook", dmath.Vec2{X: 1, Y: 1}, c, 2, false, "water", 3*time.Second, audio, r)

	trig.Update(0)
	trig.Update(time.Second)
	trig.Update(2 * time.Second)
	assert.Len(t, audio.Played(), 1)

	trig.Update(3 * time.Second)
	assert.Len(t, audio.Played(), 2)
}

func TestAudioLog_OverlappingOneShots(t *testing.T) {
	_, c := roster(t)
	audio := fx.NewAudioLog(func() time.Duration { return 0 }, zaptest.NewLogger(t))
	audio.PlayOneShot(c, "a")
	audio.PlayOneShot(c, "a")
	played := audio.Played()
	require.Len(t, played, 2)
	assert.Equal(t, "mage", played[0].Source)
}
