// Package weapon provides melee weapon profiles loaded from YAML content.
package weapon

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	dmath "github.com/yohamta/donburi/features/math"
	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/melee/internal/game/anim"
)

// Grip positions a weapon visual relative to the attachment point it is held in.
type Grip struct {
	Offset dmath.Vec2
	// Rotation is in degrees.
	Rotation float64
}

// Profile is the immutable description of a melee weapon.
//
// Invariant: AttackRange > 0; DamageBonus, CycleGap and DamageDelay are >= 0;
// Clip is a valid catalog clip.
type Profile struct {
	ID          string
	Name        string
	AttackRange float64
	DamageBonus float64
	// CycleGap is the pause in seconds added after the attack clip.
	CycleGap float64
	// DamageDelay is the time in seconds between a strike and its damage.
	DamageDelay float64
	Clip        anim.Clip
	Grip        Grip
	// Prefab names the visual the renderer instantiates for this weapon.
	Prefab string
}

// Def is the YAML form of a Profile.
type Def struct {
	ID                 string  `yaml:"id"`
	Name               string  `yaml:"name"`
	AttackRange        float64 `yaml:"attack_range"`
	DamageBonus        float64 `yaml:"damage_bonus"`
	CycleGapSeconds    float64 `yaml:"cycle_gap_seconds"`
	DamageDelaySeconds float64 `yaml:"damage_delay_seconds"`
	AnimationClip      string  `yaml:"animation_clip"`
	Prefab             string  `yaml:"prefab"`
	Grip               struct {
		X               float64 `yaml:"x"`
		Y               float64 `yaml:"y"`
		RotationDegrees float64 `yaml:"rotation_degrees"`
	} `yaml:"grip"`
}

// Validate checks that the Def satisfies its invariants.
//
// Postcondition: returns nil iff all fields are valid.
func (d *Def) Validate() error {
	var errs []error
	if d.ID == "" {
		errs = append(errs, errors.New("id must not be empty"))
	}
	if d.Name == "" {
		errs = append(errs, errors.New("name must not be empty"))
	}
	if d.AttackRange <= 0 {
		errs = append(errs, fmt.Errorf("attack_range must be > 0, got %v", d.AttackRange))
	}
	if d.DamageBonus < 0 {
		errs = append(errs, fmt.Errorf("damage_bonus must be >= 0, got %v", d.DamageBonus))
	}
	if d.CycleGapSeconds < 0 {
		errs = append(errs, fmt.Errorf("cycle_gap_seconds must be >= 0, got %v", d.CycleGapSeconds))
	}
	if d.DamageDelaySeconds < 0 {
		errs = append(errs, fmt.Errorf("damage_delay_seconds must be >= 0, got %v", d.DamageDelaySeconds))
	}
	if d.AnimationClip == "" {
		errs = append(errs, errors.New("animation_clip must not be empty"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("weapon validation failed: %w", errors.Join(errs...))
	}
	return nil
}

// Resolve validates d and binds its clip reference against catalog.
//
// Postcondition: Returns an immutable Profile or an error if d is invalid or
// its clip is not in catalog.
func (d *Def) Resolve(catalog *anim.Catalog) (*Profile, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	clip, ok := catalog.Clip(d.AnimationClip)
	if !ok {
		return nil, fmt.Errorf("weapon %q: unknown animation_clip %q", d.ID, d.AnimationClip)
	}
	return &Profile{
		ID:          d.ID,
		Name:        d.Name,
		AttackRange: d.AttackRange,
		DamageBonus: d.DamageBonus,
		CycleGap:    d.CycleGapSeconds,
		DamageDelay: d.DamageDelaySeconds,
		Clip:        clip,
		Grip: Grip{
			Offset:   dmath.Vec2{X: d.Grip.X, Y: d.Grip.Y},
			Rotation: d.Grip.RotationDegrees,
		},
		Prefab: d.Prefab,
	}, nil
}

// LoadProfiles reads every *.yaml file in dir, parses each as a Def, and
// resolves it against catalog.
//
// Precondition: dir is a readable directory; catalog is non-nil.
// Postcondition: returns all profiles sorted by ID, or the first error encountered.
func LoadProfiles(dir string, catalog *anim.Catalog) ([]*Profile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("weapon: LoadProfiles: cannot read directory %q: %w", dir, err)
	}

	var profiles []*Profile
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("weapon: LoadProfiles: cannot read file %q: %w", path, err)
		}
		var d Def
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&d); err != nil {
			return nil, fmt.Errorf("weapon: LoadProfiles: cannot parse file %q: %w", path, err)
		}
		p, err := d.Resolve(catalog)
		if err != nil {
			return nil, fmt.Errorf("weapon: LoadProfiles: invalid weapon in %q: %w", path, err)
		}
		profiles = append(profiles, p)
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].ID < profiles[j].ID })
	return profiles, nil
}
