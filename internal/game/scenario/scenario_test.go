package scenario_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/melee/internal/game/scenario"
)

const skirmish = `
name: skirmish
duration_seconds: 8
combatants:
  - name: knight
    max_health: 100
    base_damage: 10
    weapon: sword
  - name: troll
    x: 1.5
    max_health: 40
    base_damage: 5
  - name: squire
    x: -10
    max_health: 50
    weapon: sword
    override_controller: false
  - name: bard
    x: 10
    max_health: 20
audio_triggers:
  - name: crowd
    x: 20
    radius: 1
    watch: bard
    clip: cheer
    clip_seconds: 2
    one_time_only: true
timeline:
  - {at: 0, action: engage, actor: knight, target: troll}
  - {at: 1, action: move, actor: bard, x: 20}
  - {at: 1, action: engage, actor: squire, target: troll}
  - {at: 2, action: damage, actor: bard, amount: 5}
  - {at: 2, action: ability, actor: bard, ability: war_cry}
  - {at: 3, action: despawn, actor: bard}
  - {at: 4, action: ability, actor: bard, ability: war_cry}
`

func TestParse(t *testing.T) {
	sc, err := scenario.Parse([]byte(skirmish))
	require.NoError(t, err)
	assert.Equal(t, "skirmish", sc.Name)
	assert.Equal(t, 8.0, sc.DurationSeconds)
	require.Len(t, sc.Combatants, 4)
	assert.Equal(t, 1, sc.Combatants[0].Hands())
	assert.True(t, sc.Combatants[0].HasController())
	assert.False(t, sc.Combatants[2].HasController())
	require.Len(t, sc.Triggers, 1)
	assert.True(t, sc.Triggers[0].OneTimeOnly)
	require.Len(t, sc.Timeline, 7)
	assert.Equal(t, scenario.Action{AtSeconds: 1, Kind: scenario.ActionMove, Actor: "bard", X: 20}, sc.Timeline[1])
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "skirmish.yaml")
	require.NoError(t, os.WriteFile(path, []byte(skirmish), 0o644))
	sc, err := scenario.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "skirmish", sc.Name)

	_, err = scenario.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParse_RejectsUnknownFields(t *testing.T) {
	_, err := scenario.Parse([]byte("name: x\nduration_seconds: 1\nteams: []\n"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := map[string]string{
		"no name":        "duration_seconds: 1\n",
		"no duration":    "name: x\n",
		"duplicate name": "name: x\nduration_seconds: 1\ncombatants: [{name: a, max_health: 1}, {name: a, max_health: 1}]\n",
		"no max health":  "name: x\nduration_seconds: 1\ncombatants: [{name: a}]\n",
		"unknown actor":  "name: x\nduration_seconds: 1\ntimeline: [{at: 0, action: move, actor: ghost}]\n",
		"late action":    "name: x\nduration_seconds: 1\ncombatants: [{name: a, max_health: 1}]\ntimeline: [{at: 2, action: move, actor: a}]\n",
		"unknown action": "name: x\nduration_seconds: 1\ncombatants: [{name: a, max_health: 1}]\ntimeline: [{at: 0, action: dance, actor: a}]\n",
		"engage no target": "name: x\nduration_seconds: 1\ncombatants: [{name: a, max_health: 1}]\n" +
			"timeline: [{at: 0, action: engage, actor: a}]\n",
		"zero damage": "name: x\nduration_seconds: 1\ncombatants: [{name: a, max_health: 1}]\n" +
			"timeline: [{at: 0, action: damage, actor: a}]\n",
		"bad trigger": "name: x\nduration_seconds: 1\ncombatants: [{name: a, max_health: 1}]\n" +
			"audio_triggers: [{name: z, radius: 1, clip: c, watch: b}]\n",
		"negative hands": "name: x\nduration_seconds: 1\ncombatants: [{name: a, max_health: 1, dominant_hands: -1}]\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := scenario.Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}
