package ability_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/melee/internal/game/ability"
	"github.com/cory-johannsen/melee/internal/game/anim"
	"github.com/cory-johannsen/melee/internal/game/fx"
)

func catalogs(t *testing.T) (*anim.Catalog, *fx.ParticleCatalog) {
	t.Helper()
	clips, err := anim.NewCatalog(anim.Clip{Name: "cast", Duration: 0.8})
	require.NoError(t, err)
	particles, err := fx.NewParticleCatalog(fx.ParticleDef{Ref: "ember_burst", LifetimeSeconds: 1.2})
	require.NoError(t, err)
	return clips, particles
}

func writeAbility(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0644))
}

func TestLoad_ResolvesReferences(t *testing.T) {
	clips, particles := catalogs(t)
	dir := t.TempDir()
	writeAbility(t, dir, "fireball.yaml", `
id: fireball
name: Fireball
behaviour: power_attack
particle_effect: ember_burst
sounds: [whoosh_a, whoosh_b]
animation_clip: cast
damage: 15
range: 5
`)
	writeAbility(t, dir, "mend.yaml", `
id: mend
name: Mend
behaviour: self_heal
heal: 20
`)
	writeAbility(t, dir, "notes.txt", `ignored`)

	reg, err := ability.Load(dir, clips, particles)
	require.NoError(t, err)
	all := reg.All()
	require.Len(t, all, 2)
	assert.Equal(t, "fireball", all[0].ID)
	assert.Equal(t, "mend", all[1].ID)

	fb, ok := reg.Get("fireball")
	require.True(t, ok)
	assert.Equal(t, ability.BehaviourPowerAttack, fb.Behaviour)
	assert.Equal(t, 0.8, fb.Clip.Duration)
	assert.True(t, fb.RequiresTarget())
	assert.Equal(t, []string{"whoosh_a", "whoosh_b"}, fb.Sounds)

	mend, _ := reg.Get("mend")
	assert.False(t, mend.RequiresTarget())
	assert.False(t, mend.Clip.Valid())
}

func TestLoad_Errors(t *testing.T) {
	clips, particles := catalogs(t)
	cases := map[string]string{
		"unknown behaviour": "id: a\nname: A\nbehaviour: teleport\n",
		"unknown clip":      "id: a\nname: A\nbehaviour: self_heal\nheal: 1\nanimation_clip: dance\n",
		"unknown particle":  "id: a\nname: A\nbehaviour: self_heal\nheal: 1\nparticle_effect: smoke\n",
		"missing hook":      "id: a\nname: A\nbehaviour: scripted\n",
		"zero heal":         "id: a\nname: A\nbehaviour: self_heal\n",
		"unknown field":     "id: a\nname: A\nbehaviour: self_heal\nheal: 1\ncolour: red\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			writeAbility(t, dir, "a.yaml", body)
			_, err := ability.Load(dir, clips, particles)
			assert.Error(t, err)
		})
	}
}

func TestDefResolve_WrapsConfigurationError(t *testing.T) {
	clips, particles := catalogs(t)
	d := ability.Def{ID: "x", Name: "X", Behaviour: "power_attack", AnimationClip: "nope"}
	_, err := d.Resolve(clips, particles)
	assert.ErrorIs(t, err, ability.ErrConfiguration)
}

func TestRegistry_RejectsDuplicates(t *testing.T) {
	reg := ability.NewRegistry()
	require.NoError(t, reg.Register(&ability.Config{ID: "a"}))
	assert.Error(t, reg.Register(&ability.Config{ID: "a"}))
	_, ok := reg.Get("b")
	assert.False(t, ok)
}
