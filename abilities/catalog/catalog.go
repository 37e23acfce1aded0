package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"emberstaff/server/internal/cast"
)

type source interface {
	Load() ([]byte, error)
	Path() string
}

type fileSource struct {
	path string
}

func (f fileSource) Load() ([]byte, error) {
	return os.ReadFile(f.path)
}

func (f fileSource) Path() string {
	return f.path
}

var idPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// VisualDocument configures one visual actor spawned while an ability charges.
type VisualDocument struct {
	Template           string  `yaml:"template" json:"template" jsonschema:"title=Actor Template,description=Renderer-side template identifier.,minLength=1,required"`
	OffsetX            float64 `yaml:"offsetX" json:"offsetX,omitempty" jsonschema:"title=Offset X"`
	OffsetY            float64 `yaml:"offsetY" json:"offsetY,omitempty" jsonschema:"title=Offset Y"`
	OffsetZ            float64 `yaml:"offsetZ" json:"offsetZ,omitempty" jsonschema:"title=Offset Z"`
	AppearDelaySeconds float64 `yaml:"appearDelaySeconds" json:"appearDelaySeconds,omitempty" jsonschema:"title=Appear Delay,description=Seconds after charge start before the actor becomes visible.,minimum=0"`
}

// EffectDocument describes the gameplay payload executed when an ability
// releases. Kinds are resolved by the effect builder wired into Compile.
type EffectDocument struct {
	Kind   string  `yaml:"kind" json:"kind" jsonschema:"title=Effect Kind,description=Effect behavior identifier resolved at compile time.,minLength=1,required"`
	Power  float64 `yaml:"power" json:"power,omitempty" jsonschema:"title=Power,minimum=0"`
	Radius float64 `yaml:"radius" json:"radius,omitempty" jsonschema:"title=Radius,minimum=0"`
	Speed  float64 `yaml:"speed" json:"speed,omitempty" jsonschema:"title=Speed,minimum=0"`
}

// Document is one designer-authored ability as it appears on disk. It is
// exported so the schema generator can reflect over the authoring contract.
type Document struct {
	ID               string           `yaml:"id" json:"id" jsonschema:"title=Ability ID,description=Stable identifier referenced by equip commands.,pattern=^[a-z0-9-]+$,minLength=1,required"`
	Name             string           `yaml:"name" json:"name,omitempty" jsonschema:"title=Display Name"`
	ManaCost         float64          `yaml:"manaCost" json:"manaCost" jsonschema:"title=Mana Cost,minimum=0,required"`
	CooldownSeconds  float64          `yaml:"cooldownSeconds" json:"cooldownSeconds" jsonschema:"title=Cooldown,description=Seconds before the ability may fire again.,minimum=0,required"`
	MinChargeSeconds float64          `yaml:"minChargeSeconds" json:"minChargeSeconds" jsonschema:"title=Minimum Charge,description=Seconds the trigger must stay held for a successful release.,minimum=0,required"`
	Visuals          []VisualDocument `yaml:"visuals" json:"visuals,omitempty" jsonschema:"title=Charge Visuals"`
	Effect           EffectDocument   `yaml:"effect" json:"effect" jsonschema:"title=Release Effect,required"`
}

// FileDefinitions is the root shape of an ability definition file.
type FileDefinitions struct {
	Abilities []Document `yaml:"abilities" json:"abilities" jsonschema:"title=Abilities,required"`
}

// EffectBuilder turns a validated document into the executable release
// payload. Unknown kinds must return an error so bad files fail at load time
// rather than at cast time.
type EffectBuilder func(doc Document) (cast.AbilityEffect, error)

// Catalog merges one or more definition sources into a stable descriptor
// lookup. Reload re-parses the sources; readers always observe a complete
// catalog generation, never a partial one.
type Catalog struct {
	mu      sync.RWMutex
	sources []source
	build   EffectBuilder
	entries map[string]*cast.AbilityDescriptor
}

// Load constructs a Catalog from every .yaml/.yml file under dir, sorted by
// name so later files override earlier ones deterministically.
func Load(dir string, build EffectBuilder) (*Catalog, error) {
	names, err := definitionFiles(dir)
	if err != nil {
		return nil, err
	}
	sources := make([]source, 0, len(names))
	for _, name := range names {
		sources = append(sources, fileSource{path: name})
	}
	return NewCatalog(build, sources...)
}

// NewCatalog constructs a Catalog from arbitrary sources. Tests supply
// in-memory sources while production code uses files.
func NewCatalog(build EffectBuilder, sources ...source) (*Catalog, error) {
	if build == nil {
		build = NopEffectBuilder
	}
	c := &Catalog{
		sources: append([]source(nil), sources...),
		build:   build,
		entries: make(map[string]*cast.AbilityDescriptor),
	}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload re-parses all sources and atomically replaces the entry table.
func (c *Catalog) Reload() error {
	if c == nil {
		return nil
	}
	entries := make(map[string]*cast.AbilityDescriptor)
	for _, src := range c.sources {
		data, err := src.Load()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("catalog: failed loading %s: %w", src.Path(), err)
		}
		var file FileDefinitions
		if err := yaml.Unmarshal(data, &file); err != nil {
			return fmt.Errorf("catalog: failed parsing %s: %w", src.Path(), err)
		}
		seen := make(map[string]struct{}, len(file.Abilities))
		for _, doc := range file.Abilities {
			if err := validate(doc); err != nil {
				return fmt.Errorf("catalog: %s: %w", src.Path(), err)
			}
			if _, dup := seen[doc.ID]; dup {
				return fmt.Errorf("catalog: duplicate id %q in %s", doc.ID, src.Path())
			}
			seen[doc.ID] = struct{}{}

			desc, err := compile(doc, c.build)
			if err != nil {
				return fmt.Errorf("catalog: %s: ability %q: %w", src.Path(), doc.ID, err)
			}
			entries[doc.ID] = desc
		}
	}

	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()
	return nil
}

// Descriptor returns the compiled descriptor for an ability id.
func (c *Catalog) Descriptor(id string) (*cast.AbilityDescriptor, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	desc, ok := c.entries[id]
	return desc, ok
}

// IDs returns the sorted ability identifiers in the current generation.
func (c *Catalog) IDs() []string {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.entries))
	for id := range c.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len reports the number of loaded abilities.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func validate(doc Document) error {
	id := strings.TrimSpace(doc.ID)
	if id == "" {
		return errors.New("ability missing id")
	}
	if !idPattern.MatchString(id) {
		return fmt.Errorf("ability id %q must match %s", id, idPattern.String())
	}
	if doc.ManaCost < 0 {
		return fmt.Errorf("ability %q has negative manaCost", id)
	}
	if doc.CooldownSeconds < 0 {
		return fmt.Errorf("ability %q has negative cooldownSeconds", id)
	}
	if doc.MinChargeSeconds <= 0 {
		return fmt.Errorf("ability %q requires a positive minChargeSeconds", id)
	}
	if strings.TrimSpace(doc.Effect.Kind) == "" {
		return fmt.Errorf("ability %q missing effect.kind", id)
	}
	for i, visual := range doc.Visuals {
		if strings.TrimSpace(visual.Template) == "" {
			return fmt.Errorf("ability %q visual %d missing template", id, i)
		}
		if visual.AppearDelaySeconds < 0 {
			return fmt.Errorf("ability %q visual %d has negative appearDelaySeconds", id, i)
		}
	}
	return nil
}

func compile(doc Document, build EffectBuilder) (*cast.AbilityDescriptor, error) {
	effect, err := build(doc)
	if err != nil {
		return nil, err
	}
	desc := &cast.AbilityDescriptor{
		ID:        strings.TrimSpace(doc.ID),
		Name:      doc.Name,
		ManaCost:  doc.ManaCost,
		Cooldown:  seconds(doc.CooldownSeconds),
		MinCharge: seconds(doc.MinChargeSeconds),
		Effect:    effect,
	}
	for _, visual := range doc.Visuals {
		desc.VisualActors = append(desc.VisualActors, cast.VisualActorConfig{
			Template:       visual.Template,
			PositionOffset: cast.Pose{X: visual.OffsetX, Y: visual.OffsetY, Z: visual.OffsetZ},
			AppearDelay:    seconds(visual.AppearDelaySeconds),
		})
	}
	return desc, nil
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

func definitionFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("catalog: read dir %s: %w", dir, err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		names = append(names, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(names)
	return names, nil
}

// NopEffectBuilder accepts every kind and produces an inert effect. Useful
// for tooling that only needs descriptor metadata.
func NopEffectBuilder(Document) (cast.AbilityEffect, error) {
	return cast.AbilityEffectFunc(func(cast.Pose, cast.Caster) {}), nil
}
