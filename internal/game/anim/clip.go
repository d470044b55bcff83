// Package anim models the animation surface the combat core drives: a catalog
// of clips with durations and per-combatant override controllers.
package anim

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Clip is an animation clip. Only its timing matters to the engine.
type Clip struct {
	Name     string
	Duration float64
}

// Valid reports whether the clip has a name and a positive duration.
func (c Clip) Valid() bool {
	return c.Name != "" && c.Duration > 0
}

type clipFile struct {
	Clips []struct {
		Name            string  `yaml:"name"`
		DurationSeconds float64 `yaml:"duration_seconds"`
	} `yaml:"clips"`
}

// Catalog maps clip names to clips.
type Catalog struct {
	clips map[string]Clip
}

// NewCatalog builds a catalog from clips.
//
// Postcondition: Returns an error if any clip is invalid or a name repeats.
func NewCatalog(clips ...Clip) (*Catalog, error) {
	c := &Catalog{clips: make(map[string]Clip, len(clips))}
	var errs []error
	for _, clip := range clips {
		if !clip.Valid() {
			errs = append(errs, fmt.Errorf("clip %q: duration must be > 0 and name non-empty", clip.Name))
			continue
		}
		if _, dup := c.clips[clip.Name]; dup {
			errs = append(errs, fmt.Errorf("clip %q defined twice", clip.Name))
			continue
		}
		c.clips[clip.Name] = clip
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("anim: NewCatalog: %w", err)
	}
	return c, nil
}

// LoadCatalog reads a clip catalog from a YAML file of the form
//
//	clips:
//	  - name: sword_slash
//	    duration_seconds: 1.0
//
// Precondition: path must be a readable file.
// Postcondition: Returns a populated Catalog or an error naming the file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("anim: LoadCatalog: reading %q: %w", path, err)
	}
	var f clipFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("anim: LoadCatalog: parsing %q: %w", path, err)
	}
	clips := make([]Clip, 0, len(f.Clips))
	for _, c := range f.Clips {
		clips = append(clips, Clip{Name: c.Name, Duration: c.DurationSeconds})
	}
	cat, err := NewCatalog(clips...)
	if err != nil {
		return nil, fmt.Errorf("%q: %w", path, err)
	}
	return cat, nil
}

// Clip returns the named clip.
func (c *Catalog) Clip(name string) (Clip, bool) {
	clip, ok := c.clips[name]
	return clip, ok
}

// Names returns every clip name in sorted order.
func (c *Catalog) Names() []string {
	out := make([]string, 0, len(c.clips))
	for name := range c.clips {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
