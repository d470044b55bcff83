// Package fx simulates the transient visual and audio effects spawned by
// combat: particle systems, weapon visuals and one-shot sounds.
package fx

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
	dmath "github.com/yohamta/donburi/features/math"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/melee/internal/game/entity"
)

// ErrUnknownParticle is returned when a particle reference is not in the catalog.
var ErrUnknownParticle = errors.New("fx: unknown particle effect")

// Effect is a handle to a spawned particle effect.
type Effect interface {
	ID() uuid.UUID
	Play()
	IsPlaying() bool
	Destroy()
}

// ParticleDef describes a particle effect prefab.
type ParticleDef struct {
	Ref             string  `yaml:"ref"`
	LifetimeSeconds float64 `yaml:"lifetime_seconds"`
	RotationDegrees float64 `yaml:"rotation_degrees"`
}

// ParticleCatalog maps particle references to definitions.
type ParticleCatalog struct {
	defs map[string]ParticleDef
}

// NewParticleCatalog builds a catalog from defs.
//
// Postcondition: Returns an error if any def lacks a ref, has a non-positive
// lifetime, or repeats a ref.
func NewParticleCatalog(defs ...ParticleDef) (*ParticleCatalog, error) {
	c := &ParticleCatalog{defs: make(map[string]ParticleDef, len(defs))}
	var errs []error
	for _, d := range defs {
		switch {
		case d.Ref == "":
			errs = append(errs, errors.New("particle ref must not be empty"))
		case d.LifetimeSeconds <= 0:
			errs = append(errs, fmt.Errorf("particle %q: lifetime_seconds must be > 0", d.Ref))
		default:
			if _, dup := c.defs[d.Ref]; dup {
				errs = append(errs, fmt.Errorf("particle %q defined twice", d.Ref))
				continue
			}
			c.defs[d.Ref] = d
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("fx: NewParticleCatalog: %w", err)
	}
	return c, nil
}

// LoadParticleCatalog reads a particle catalog YAML file with a top-level
// "particles" list.
func LoadParticleCatalog(path string) (*ParticleCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("fx: LoadParticleCatalog: reading %q: %w", path, err)
	}
	var f struct {
		Particles []ParticleDef `yaml:"particles"`
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("fx: LoadParticleCatalog: parsing %q: %w", path, err)
	}
	return NewParticleCatalog(f.Particles...)
}

// Def returns the definition for ref.
func (c *ParticleCatalog) Def(ref string) (ParticleDef, bool) {
	d, ok := c.defs[ref]
	return d, ok
}

// Locator reports combatant positions.
type Locator interface {
	Position(c *entity.Combatant) (dmath.Vec2, bool)
}

// Particle is one spawned particle effect. Its emission intensity follows a
// tween from 1 to 0 over the definition's lifetime once Play is called.
type Particle struct {
	id        uuid.UUID
	def       ParticleDef
	sys       *ParticleSystem
	parent    *entity.Combatant
	offset    dmath.Vec2
	position  dmath.Vec2
	rotation  float64
	tween     *gween.Tween
	intensity float32
	playing   bool
	destroyed bool
}

// ID returns the instance identifier.
func (p *Particle) ID() uuid.UUID { return p.id }

// Ref returns the particle definition reference.
func (p *Particle) Ref() string { return p.def.Ref }

// Position returns the particle's world position.
func (p *Particle) Position() dmath.Vec2 { return p.position }

// Rotation returns the particle's rotation in degrees.
func (p *Particle) Rotation() float64 { return p.rotation }

// Intensity returns the current emission intensity in [0, 1].
func (p *Particle) Intensity() float32 { return p.intensity }

// Play starts emission. Playing a destroyed or already playing particle is a no-op.
func (p *Particle) Play() {
	if p.destroyed || p.playing {
		return
	}
	p.tween = gween.New(1, 0, float32(p.def.LifetimeSeconds), ease.Linear)
	p.intensity = 1
	p.playing = true
}

// IsPlaying reports whether the particle is still emitting.
func (p *Particle) IsPlaying() bool {
	return p.playing && !p.destroyed
}

// Destroy removes the particle from its system. Safe to call multiple times.
func (p *Particle) Destroy() {
	if p.destroyed {
		return
	}
	p.destroyed = true
	p.playing = false
	p.sys.remove(p)
}

// ParticleSystem owns every live particle and advances them each tick.
//
// A ParticleSystem is not safe for concurrent use.
type ParticleSystem struct {
	catalog *ParticleCatalog
	locator Locator
	logger  *zap.Logger
	live    map[uuid.UUID]*Particle
	last    time.Duration
	spawned int
}

// NewParticleSystem returns an empty ParticleSystem.
//
// Precondition: catalog, locator and logger must be non-nil.
func NewParticleSystem(catalog *ParticleCatalog, locator Locator, logger *zap.Logger) *ParticleSystem {
	return &ParticleSystem{
		catalog: catalog,
		locator: locator,
		logger:  logger,
		live:    make(map[uuid.UUID]*Particle),
	}
}

// Spawn instantiates the particle ref at pos with rotation, parented to parent
// when parent is non-nil. The particle does not emit until Play is called.
// A zero rotation uses the definition's rotation.
//
// Postcondition: Returns ErrUnknownParticle if ref is not in the catalog.
func (s *ParticleSystem) Spawn(ref string, pos dmath.Vec2, rotation float64, parent *entity.Combatant) (Effect, error) {
	def, ok := s.catalog.Def(ref)
	if !ok {
		return nil, fmt.Errorf("fx: ParticleSystem.Spawn %q: %w", ref, ErrUnknownParticle)
	}
	if rotation == 0 {
		rotation = def.RotationDegrees
	}
	p := &Particle{
		id:       uuid.New(),
		def:      def,
		sys:      s,
		parent:   parent,
		position: pos,
		rotation: rotation,
	}
	if parent != nil {
		if ppos, ok := s.locator.Position(parent); ok {
			p.offset = dmath.Vec2{X: pos.X - ppos.X, Y: pos.Y - ppos.Y}
		}
	}
	s.live[p.id] = p
	s.spawned++
	s.logger.Debug("particle spawned",
		zap.String("particle", ref),
		zap.String("id", p.id.String()),
		zap.Stringer("parent", parent),
	)
	return p, nil
}

func (s *ParticleSystem) remove(p *Particle) {
	delete(s.live, p.id)
	s.logger.Debug("particle destroyed",
		zap.String("particle", p.def.Ref),
		zap.String("id", p.id.String()),
	)
}

// Known reports whether ref is in the catalog.
func (s *ParticleSystem) Known(ref string) bool {
	_, ok := s.catalog.Def(ref)
	return ok
}

// Live returns the number of particles that have been spawned and not destroyed.
func (s *ParticleSystem) Live() int {
	return len(s.live)
}

// Spawned returns the total number of particles ever spawned.
func (s *ParticleSystem) Spawned() int {
	return s.spawned
}

// Update advances every playing particle to game time now and keeps parented
// particles attached to their parent. It is registered as a per-tick system.
func (s *ParticleSystem) Update(now time.Duration) {
	dt := now - s.last
	s.last = now
	if dt < 0 {
		dt = 0
	}
	for _, p := range s.live {
		if p.parent != nil {
			if ppos, ok := s.locator.Position(p.parent); ok {
				p.position = dmath.Vec2{X: ppos.X + p.offset.X, Y: ppos.Y + p.offset.Y}
			}
		}
		if !p.playing {
			continue
		}
		v, finished := p.tween.Update(float32(dt.Seconds()))
		p.intensity = v
		if finished {
			p.playing = false
			p.intensity = 0
		}
	}
}
