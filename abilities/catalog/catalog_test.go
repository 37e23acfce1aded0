package catalog

import (
	"os"
	"strings"
	"testing"
	"time"
)

type memorySource struct {
	name string
	data string
}

func (m *memorySource) Load() ([]byte, error) {
	return []byte(m.data), nil
}

func (m *memorySource) Path() string {
	return m.name
}

const validFile = `
abilities:
  - id: emberbolt
    name: Emberbolt
    manaCost: 30
    cooldownSeconds: 3
    minChargeSeconds: 0.5
    visuals:
      - template: charge-glow
        offsetY: 0.12
      - template: ember-swirl
        appearDelaySeconds: 0.25
    effect:
      kind: bolt
      power: 40
`

func TestCatalogCompilesDescriptors(t *testing.T) {
	c, err := NewCatalog(nil, &memorySource{name: "core.yaml", data: validFile})
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	desc, ok := c.Descriptor("emberbolt")
	if !ok {
		t.Fatalf("expected emberbolt to resolve")
	}
	if desc.ManaCost != 30 {
		t.Fatalf("expected manaCost 30, got %v", desc.ManaCost)
	}
	if desc.Cooldown != 3*time.Second {
		t.Fatalf("expected 3s cooldown, got %v", desc.Cooldown)
	}
	if desc.MinCharge != 500*time.Millisecond {
		t.Fatalf("expected 500ms min charge, got %v", desc.MinCharge)
	}
	if len(desc.VisualActors) != 2 {
		t.Fatalf("expected 2 visual actors, got %d", len(desc.VisualActors))
	}
	if desc.VisualActors[1].AppearDelay != 250*time.Millisecond {
		t.Fatalf("expected 250ms appear delay, got %v", desc.VisualActors[1].AppearDelay)
	}
	if desc.VisualActors[0].PositionOffset.Y != 0.12 {
		t.Fatalf("expected visual offset to survive compilation")
	}
	if desc.Effect == nil {
		t.Fatalf("expected a compiled effect")
	}
}

func TestCatalogRejectsInvalidDocuments(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{
			name: "missing id",
			body: "abilities:\n  - manaCost: 1\n    cooldownSeconds: 1\n    minChargeSeconds: 1\n    effect:\n      kind: bolt\n",
			want: "missing id",
		},
		{
			name: "bad id pattern",
			body: "abilities:\n  - id: Ember_Bolt\n    manaCost: 1\n    cooldownSeconds: 1\n    minChargeSeconds: 1\n    effect:\n      kind: bolt\n",
			want: "must match",
		},
		{
			name: "zero min charge",
			body: "abilities:\n  - id: emberbolt\n    manaCost: 1\n    cooldownSeconds: 1\n    minChargeSeconds: 0\n    effect:\n      kind: bolt\n",
			want: "positive minChargeSeconds",
		},
		{
			name: "missing effect kind",
			body: "abilities:\n  - id: emberbolt\n    manaCost: 1\n    cooldownSeconds: 1\n    minChargeSeconds: 1\n    effect:\n      power: 4\n",
			want: "missing effect.kind",
		},
		{
			name: "visual without template",
			body: "abilities:\n  - id: emberbolt\n    manaCost: 1\n    cooldownSeconds: 1\n    minChargeSeconds: 1\n    visuals:\n      - offsetY: 1\n    effect:\n      kind: bolt\n",
			want: "missing template",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewCatalog(nil, &memorySource{name: tc.name, data: tc.body})
			if err == nil {
				t.Fatalf("expected load error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestCatalogRejectsDuplicateIDs(t *testing.T) {
	body := validFile + strings.Replace(validFile, "abilities:\n", "", 1)
	_, err := NewCatalog(nil, &memorySource{name: "dup.yaml", data: body})
	if err == nil || !strings.Contains(err.Error(), "duplicate id") {
		t.Fatalf("expected duplicate id error, got %v", err)
	}
}

func TestStandardEffectsRejectsUnknownKind(t *testing.T) {
	body := strings.Replace(validFile, "kind: bolt", "kind: meteor", 1)
	_, err := NewCatalog(StandardEffects(nil), &memorySource{name: "core.yaml", data: body})
	if err == nil || !strings.Contains(err.Error(), "unknown effect kind") {
		t.Fatalf("expected unknown kind error, got %v", err)
	}
}

func TestCatalogReloadReplacesGeneration(t *testing.T) {
	src := &memorySource{name: "core.yaml", data: validFile}
	c, err := NewCatalog(nil, src)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	src.data = strings.ReplaceAll(validFile, "emberbolt", "frostbolt")
	if err := c.Reload(); err != nil {
		t.Fatalf("unexpected reload error: %v", err)
	}
	if _, ok := c.Descriptor("emberbolt"); ok {
		t.Fatalf("stale entry survived reload")
	}
	if _, ok := c.Descriptor("frostbolt"); !ok {
		t.Fatalf("new entry missing after reload")
	}
}

func TestLoadReadsDefinitionDirectory(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(dir+"/core.yaml", []byte(validFile), 0o644); err != nil {
		t.Fatalf("write defs: %v", err)
	}
	if err := os.WriteFile(dir+"/notes.txt", []byte("ignored"), 0o644); err != nil {
		t.Fatalf("write notes: %v", err)
	}
	c, err := Load(dir, nil)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if got := c.IDs(); len(got) != 1 || got[0] != "emberbolt" {
		t.Fatalf("expected [emberbolt], got %v", got)
	}
}
