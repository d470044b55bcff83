// Package ability runs special abilities: the shared particle, sound and
// animation presentation plus the behaviour each ability applies.
package ability

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/melee/internal/game/anim"
	"github.com/cory-johannsen/melee/internal/game/fx"
)

var (
	// ErrConfiguration marks ability authoring mistakes detected at load or activation time.
	ErrConfiguration = errors.New("ability: configuration error")
	// ErrTargetRequired is returned when a targeted ability is activated without a valid target.
	ErrTargetRequired = errors.New("ability: target required")
	// ErrOutOfRange is returned when a targeted ability's target is beyond its range.
	ErrOutOfRange = errors.New("ability: target out of range")
)

// Behaviour names what an ability does once its presentation has started.
type Behaviour string

const (
	BehaviourPowerAttack Behaviour = "power_attack"
	BehaviourSelfHeal    Behaviour = "self_heal"
	BehaviourScripted    Behaviour = "scripted"
)

// Config is the immutable, resolved description of an ability.
type Config struct {
	ID        string
	Name      string
	Behaviour Behaviour
	// ParticleEffect is a particle catalog reference; empty plays no particle.
	ParticleEffect string
	Sounds         []string
	// Clip is bound into the default attack slot; a zero Clip plays no animation.
	Clip anim.Clip
	// Damage is added to the user's base damage by power_attack.
	Damage float64
	// Heal is the amount self_heal restores.
	Heal float64
	// Range limits targeted behaviours; zero means unlimited.
	Range float64
	// LuaOnUse names the Lua hook a scripted ability calls.
	LuaOnUse string
}

// RequiresTarget reports whether the behaviour acts on a target.
func (c *Config) RequiresTarget() bool {
	return c.Behaviour == BehaviourPowerAttack
}

// Def is the YAML form of a Config.
type Def struct {
	ID             string   `yaml:"id"`
	Name           string   `yaml:"name"`
	Behaviour      string   `yaml:"behaviour"`
	ParticleEffect string   `yaml:"particle_effect"`
	Sounds         []string `yaml:"sounds"`
	AnimationClip  string   `yaml:"animation_clip"`
	Damage         float64  `yaml:"damage"`
	Heal           float64  `yaml:"heal"`
	Range          float64  `yaml:"range"`
	LuaOnUse       string   `yaml:"lua_on_use"`
}

// Validate checks that the Def satisfies its invariants.
func (d *Def) Validate() error {
	var errs []error
	if d.ID == "" {
		errs = append(errs, errors.New("id must not be empty"))
	}
	if d.Name == "" {
		errs = append(errs, errors.New("name must not be empty"))
	}
	switch Behaviour(d.Behaviour) {
	case BehaviourPowerAttack:
		if d.Damage < 0 {
			errs = append(errs, fmt.Errorf("damage must be >= 0, got %v", d.Damage))
		}
	case BehaviourSelfHeal:
		if d.Heal <= 0 {
			errs = append(errs, fmt.Errorf("heal must be > 0, got %v", d.Heal))
		}
	case BehaviourScripted:
		if d.LuaOnUse == "" {
			errs = append(errs, errors.New("lua_on_use must be set for scripted abilities"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown behaviour %q", d.Behaviour))
	}
	if d.Range < 0 {
		errs = append(errs, fmt.Errorf("range must be >= 0, got %v", d.Range))
	}
	for i, s := range d.Sounds {
		if s == "" {
			errs = append(errs, fmt.Errorf("sounds[%d] must not be empty", i))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("ability validation failed: %w", errors.Join(errs...))
	}
	return nil
}

// Resolve validates d and binds its clip and particle references.
//
// Postcondition: Returns an error wrapping ErrConfiguration if d is invalid or
// references content missing from clips or particles.
func (d *Def) Resolve(clips *anim.Catalog, particles *fx.ParticleCatalog) (*Config, error) {
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	cfg := &Config{
		ID:             d.ID,
		Name:           d.Name,
		Behaviour:      Behaviour(d.Behaviour),
		ParticleEffect: d.ParticleEffect,
		Sounds:         append([]string(nil), d.Sounds...),
		Damage:         d.Damage,
		Heal:           d.Heal,
		Range:          d.Range,
		LuaOnUse:       d.LuaOnUse,
	}
	if d.AnimationClip != "" {
		clip, ok := clips.Clip(d.AnimationClip)
		if !ok {
			return nil, fmt.Errorf("ability %q: unknown animation_clip %q: %w", d.ID, d.AnimationClip, ErrConfiguration)
		}
		cfg.Clip = clip
	}
	if d.ParticleEffect != "" {
		if _, ok := particles.Def(d.ParticleEffect); !ok {
			return nil, fmt.Errorf("ability %q: unknown particle_effect %q: %w", d.ID, d.ParticleEffect, ErrConfiguration)
		}
	}
	return cfg, nil
}

// LoadConfigs reads every *.yaml file in dir and resolves each as a Def.
//
// Precondition: dir is a readable directory; clips and particles are non-nil.
// Postcondition: Returns all configs sorted by ID, or the first error encountered.
func LoadConfigs(dir string, clips *anim.Catalog, particles *fx.ParticleCatalog) ([]*Config, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("ability: LoadConfigs: cannot read directory %q: %w", dir, err)
	}

	var configs []*Config
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("ability: LoadConfigs: cannot read file %q: %w", path, err)
		}
		var d Def
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&d); err != nil {
			return nil, fmt.Errorf("ability: LoadConfigs: cannot parse file %q: %w", path, err)
		}
		cfg, err := d.Resolve(clips, particles)
		if err != nil {
			return nil, fmt.Errorf("ability: LoadConfigs: invalid ability in %q: %w", path, err)
		}
		configs = append(configs, cfg)
	}
	sort.Slice(configs, func(i, j int) bool { return configs[i].ID < configs[j].ID })
	return configs, nil
}

// Registry holds ability configs indexed by ID.
type Registry struct {
	configs map[string]*Config
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{configs: make(map[string]*Config)}
}

// Register adds cfg to the registry.
//
// Postcondition: Returns an error if cfg.ID is already registered.
func (r *Registry) Register(cfg *Config) error {
	if _, exists := r.configs[cfg.ID]; exists {
		return fmt.Errorf("ability: Registry.Register: ability ID %q already registered", cfg.ID)
	}
	r.configs[cfg.ID] = cfg
	return nil
}

// Get returns the config for id.
func (r *Registry) Get(id string) (*Config, bool) {
	cfg, ok := r.configs[id]
	return cfg, ok
}

// All returns every registered config sorted by ID.
func (r *Registry) All() []*Config {
	out := make([]*Config, 0, len(r.configs))
	for _, cfg := range r.configs {
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Load builds a Registry from the ability files in dir.
func Load(dir string, clips *anim.Catalog, particles *fx.ParticleCatalog) (*Registry, error) {
	configs, err := LoadConfigs(dir, clips, particles)
	if err != nil {
		return nil, err
	}
	reg := NewRegistry()
	for _, cfg := range configs {
		if err := reg.Register(cfg); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
