package weapon_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/melee/internal/game/anim"
	"github.com/cory-johannsen/melee/internal/game/weapon"
)

func catalog(t *testing.T) *anim.Catalog {
	t.Helper()
	cat, err := anim.NewCatalog(anim.Clip{Name: "slash", Duration: 1})
	require.NoError(t, err)
	return cat
}

const longsword = `
id: longsword
name: Longsword
attack_range: 2.5
damage_bonus: 5
cycle_gap_seconds: 2
damage_delay_seconds: 0.4
animation_clip: slash
prefab: weapons/longsword
grip:
  x: 0.1
  y: -0.05
  rotation_degrees: 90
`

func writeWeapon(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0644))
}

func TestLoadProfiles(t *testing.T) {
	dir := t.TempDir()
	writeWeapon(t, dir, "longsword.yaml", longsword)
	writeWeapon(t, dir, "README.md", "ignored")

	profiles, err := weapon.LoadProfiles(dir, catalog(t))
	require.NoError(t, err)
	require.Len(t, profiles, 1)

	p := profiles[0]
	assert.Equal(t, "longsword", p.ID)
	assert.Equal(t, 2.5, p.AttackRange)
	assert.Equal(t, 5.0, p.DamageBonus)
	assert.Equal(t, 2.0, p.CycleGap)
	assert.Equal(t, 0.4, p.DamageDelay)
	assert.Equal(t, "slash", p.Clip.Name)
	assert.Equal(t, 1.0, p.Clip.Duration)
	assert.Equal(t, 90.0, p.Grip.Rotation)
	assert.Equal(t, 0.1, p.Grip.Offset.X)
}

func TestLoadProfiles_UnknownClip(t *testing.T) {
	dir := t.TempDir()
	writeWeapon(t, dir, "axe.yaml", `
id: axe
name: Axe
attack_range: 2
animation_clip: chop
`)
	_, err := weapon.LoadProfiles(dir, catalog(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chop")
}

func TestLoadProfiles_UnknownField(t *testing.T) {
	dir := t.TempDir()
	writeWeapon(t, dir, "axe.yaml", "id: axe\nname: Axe\nattack_range: 2\nanimation_clip: slash\ncolour: red\n")
	_, err := weapon.LoadProfiles(dir, catalog(t))
	assert.Error(t, err)
}

func TestLoadProfiles_MissingDir(t *testing.T) {
	_, err := weapon.LoadProfiles("/nonexistent", catalog(t))
	assert.Error(t, err)
}

func TestDefValidate(t *testing.T) {
	d := weapon.Def{}
	err := d.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "id must not be empty")
	assert.Contains(t, err.Error(), "attack_range")
	assert.Contains(t, err.Error(), "animation_clip")
}

func TestRegistry(t *testing.T) {
	dir := t.TempDir()
	writeWeapon(t, dir, "longsword.yaml", longsword)
	reg, err := weapon.Load(dir, catalog(t))
	require.NoError(t, err)

	p, ok := reg.Get("longsword")
	require.True(t, ok)
	assert.Error(t, reg.Register(p))
	assert.Len(t, reg.All(), 1)
	_, ok = reg.Get("missing")
	assert.False(t, ok)
}

func TestPropertyNegativeTimingRejected(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		d := weapon.Def{
			ID:                 "w",
			Name:               "W",
			AttackRange:        rapid.Float64Range(0.1, 10).Draw(rt, "range"),
			CycleGapSeconds:    rapid.Float64Range(-10, -0.001).Draw(rt, "gap"),
			DamageDelaySeconds: rapid.Float64Range(0, 10).Draw(rt, "delay"),
			AnimationClip:      "slash",
		}
		if d.Validate() == nil {
			rt.Fatalf("negative cycle gap %v accepted", d.CycleGapSeconds)
		}
	})
}
