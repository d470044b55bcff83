// Package scenario loads scripted arena scenarios and plays them against the
// combat engine.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Action kinds accepted in a scenario timeline.
const (
	ActionEngage    = "engage"
	ActionDisengage = "disengage"
	ActionMove      = "move"
	ActionEquip     = "equip"
	ActionAbility   = "ability"
	ActionDamage    = "damage"
	ActionDespawn   = "despawn"
)

// Scenario is a complete arena script.
type Scenario struct {
	Name            string      `yaml:"name"`
	DurationSeconds float64     `yaml:"duration_seconds"`
	Combatants      []Combatant `yaml:"combatants"`
	Triggers        []AudioZone `yaml:"audio_triggers"`
	Timeline        []Action    `yaml:"timeline"`
}

// Combatant describes one participant.
type Combatant struct {
	Name       string  `yaml:"name"`
	X          float64 `yaml:"x"`
	Y          float64 `yaml:"y"`
	Health     float64 `yaml:"health"`
	MaxHealth  float64 `yaml:"max_health"`
	BaseDamage float64 `yaml:"base_damage"`
	Speed      float64 `yaml:"animation_speed"`
	Weapon     string  `yaml:"weapon"`
	// DominantHands defaults to 1.
	DominantHands *int `yaml:"dominant_hands"`
	// OverrideController defaults to true.
	OverrideController *bool `yaml:"override_controller"`
}

// Hands returns the configured dominant hand count.
func (c Combatant) Hands() int {
	if c.DominantHands == nil {
		return 1
	}
	return *c.DominantHands
}

// HasController reports whether the combatant gets an animation override controller.
func (c Combatant) HasController() bool {
	return c.OverrideController == nil || *c.OverrideController
}

// AudioZone is a proximity audio trigger.
type AudioZone struct {
	Name        string  `yaml:"name"`
	X           float64 `yaml:"x"`
	Y           float64 `yaml:"y"`
	Radius      float64 `yaml:"radius"`
	Watch       string  `yaml:"watch"`
	Clip        string  `yaml:"clip"`
	ClipSeconds float64 `yaml:"clip_seconds"`
	OneTimeOnly bool    `yaml:"one_time_only"`
}

// Action is one timeline entry.
type Action struct {
	AtSeconds float64 `yaml:"at"`
	Kind      string  `yaml:"action"`
	Actor     string  `yaml:"actor"`
	Target    string  `yaml:"target"`
	Weapon    string  `yaml:"weapon"`
	Ability   string  `yaml:"ability"`
	X         float64 `yaml:"x"`
	Y         float64 `yaml:"y"`
	Amount    float64 `yaml:"amount"`
}

// Validate checks the scenario's structure. Content references (weapons,
// abilities) are resolved when the scenario is set up.
func (s *Scenario) Validate() error {
	var errs []error
	if s.Name == "" {
		errs = append(errs, errors.New("name must not be empty"))
	}
	if s.DurationSeconds <= 0 {
		errs = append(errs, fmt.Errorf("duration_seconds must be > 0, got %v", s.DurationSeconds))
	}
	names := make(map[string]bool, len(s.Combatants))
	for i, c := range s.Combatants {
		switch {
		case c.Name == "":
			errs = append(errs, fmt.Errorf("combatants[%d]: name must not be empty", i))
		case names[c.Name]:
			errs = append(errs, fmt.Errorf("combatants[%d]: duplicate name %q", i, c.Name))
		}
		names[c.Name] = true
		if c.MaxHealth <= 0 {
			errs = append(errs, fmt.Errorf("combatant %q: max_health must be > 0", c.Name))
		}
		if c.Hands() < 0 {
			errs = append(errs, fmt.Errorf("combatant %q: dominant_hands must be >= 0", c.Name))
		}
	}
	for i, z := range s.Triggers {
		if z.Radius <= 0 || z.Clip == "" || !names[z.Watch] {
			errs = append(errs, fmt.Errorf("audio_triggers[%d] %q: needs radius > 0, a clip and a known watch combatant", i, z.Name))
		}
	}
	for i, a := range s.Timeline {
		if a.AtSeconds < 0 || a.AtSeconds > s.DurationSeconds {
			errs = append(errs, fmt.Errorf("timeline[%d]: at must be in [0, duration_seconds], got %v", i, a.AtSeconds))
		}
		if !names[a.Actor] {
			errs = append(errs, fmt.Errorf("timeline[%d]: unknown actor %q", i, a.Actor))
		}
		switch a.Kind {
		case ActionEngage:
			if !names[a.Target] {
				errs = append(errs, fmt.Errorf("timeline[%d]: engage needs a known target, got %q", i, a.Target))
			}
		case ActionEquip:
			if a.Weapon == "" {
				errs = append(errs, fmt.Errorf("timeline[%d]: equip needs a weapon", i))
			}
		case ActionAbility:
			if a.Ability == "" {
				errs = append(errs, fmt.Errorf("timeline[%d]: ability needs an ability id", i))
			}
		case ActionDamage:
			if a.Amount <= 0 {
				errs = append(errs, fmt.Errorf("timeline[%d]: damage amount must be > 0", i))
			}
		case ActionDisengage, ActionMove, ActionDespawn:
		default:
			errs = append(errs, fmt.Errorf("timeline[%d]: unknown action %q", i, a.Kind))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("scenario validation failed: %w", errors.Join(errs...))
	}
	return nil
}

// Load reads and validates a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scenario: Load: cannot read file %q: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a scenario document.
func Parse(data []byte) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("scenario: cannot parse: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("scenario %q: %w", s.Name, err)
	}
	return &s, nil
}
