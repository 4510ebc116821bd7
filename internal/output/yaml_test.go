package output

import (
	"bytes"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"ctxprof/internal/ctxprof"
	"ctxprof/internal/ctxprof/ctxproftest"
)

func render(t *testing.T, p *ctxprof.Profile) string {
	t.Helper()
	var buf bytes.Buffer
	if err := WriteYAML(&buf, p); err != nil {
		t.Fatal(err)
	}
	return buf.String()
}

// parse returns the top-level mapping of a rendered document.
func parse(t *testing.T, text string) *yaml.Node {
	t.Helper()
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(text), &doc); err != nil {
		t.Fatalf("unmarshal:\n%s\n%v", text, err)
	}
	if len(doc.Content) != 1 || doc.Content[0].Kind != yaml.MappingNode {
		t.Fatalf("document is not a mapping:\n%s", text)
	}
	return doc.Content[0]
}

func keys(m *yaml.Node) []string {
	var out []string
	for i := 0; i < len(m.Content); i += 2 {
		out = append(out, m.Content[i].Value)
	}
	return out
}

func value(t *testing.T, m *yaml.Node, key string) *yaml.Node {
	t.Helper()
	for i := 0; i < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	t.Fatalf("key %q not found in %v", key, keys(m))
	return nil
}

func expectKeys(t *testing.T, m *yaml.Node, want ...string) {
	t.Helper()
	got := keys(m)
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("keys = %v, want %v", got, want)
	}
}

func load(t *testing.T, data []byte) *ctxprof.Profile {
	t.Helper()
	p, err := ctxprof.Load(data)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestWriteYAMLSingleRoot(t *testing.T) {
	p := load(t, ctxproftest.New(1).
		Begin(ctxprof.ContextsSectionBlockID).
		Root(7, []uint64{100}, 100, nil).
		Bytes())

	text := render(t, p)
	doc := parse(t, text)
	expectKeys(t, doc, "Contexts")

	roots := value(t, doc, "Contexts")
	if roots.Kind != yaml.SequenceNode || len(roots.Content) != 1 {
		t.Fatalf("Contexts is not a one-element sequence:\n%s", text)
	}
	root := roots.Content[0]
	expectKeys(t, root, "Guid", "TotalRootEntryCount", "Counters")
	if v := value(t, root, "Guid").Value; v != "7" {
		t.Errorf("Guid = %s, want 7", v)
	}
	if v := value(t, root, "TotalRootEntryCount").Value; v != "100" {
		t.Errorf("TotalRootEntryCount = %s, want 100", v)
	}
	if c := value(t, root, "Counters"); c.Style&yaml.FlowStyle == 0 {
		t.Errorf("Counters not rendered in flow style:\n%s", text)
	}
	if !strings.Contains(text, "Counters: [100]") {
		t.Errorf("missing flow counters:\n%s", text)
	}
}

func TestWriteYAMLCallsiteGaps(t *testing.T) {
	tests := []struct {
		name    string
		indices []uint32
		want    int
	}{
		{"single at 2", []uint32{2}, 3},
		{"sparse 0 and 3", []uint32{0, 3}, 4},
		{"dense", []uint32{0, 1}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := ctxproftest.New(1).Begin(ctxprof.ContextsSectionBlockID)
			c.Root(7, []uint64{100}, 100, func(c *ctxproftest.Container) {
				for _, idx := range tt.indices {
					c.Node(idx, 9, []uint64{5}, nil)
				}
			})
			text := render(t, load(t, c.Bytes()))
			root := value(t, parse(t, text), "Contexts").Content[0]
			expectKeys(t, root, "Guid", "TotalRootEntryCount", "Counters", "Callsites")

			callsites := value(t, root, "Callsites")
			if len(callsites.Content) != tt.want {
				t.Fatalf("Callsites has %d entries, want %d:\n%s", len(callsites.Content), tt.want, text)
			}
			present := make(map[int]bool)
			for _, idx := range tt.indices {
				present[int(idx)] = true
			}
			for i, site := range callsites.Content {
				if site.Kind != yaml.SequenceNode {
					t.Fatalf("call site %d is not a sequence:\n%s", i, text)
				}
				if !present[i] {
					if len(site.Content) != 0 {
						t.Errorf("call site %d should be an empty placeholder:\n%s", i, text)
					}
					continue
				}
				if len(site.Content) != 1 {
					t.Fatalf("call site %d has %d callees, want 1", i, len(site.Content))
				}
				callee := site.Content[0]
				expectKeys(t, callee, "Guid", "Counters")
				if v := value(t, callee, "Guid").Value; v != "9" {
					t.Errorf("callee Guid = %s, want 9", v)
				}
			}
		})
	}
}

func TestWriteYAMLUnhandledAndFlat(t *testing.T) {
	c := ctxproftest.New(ctxprof.CurrentVersion).Begin(ctxprof.ContextsSectionBlockID)
	c.Root(1, []uint64{10, 2}, 30, func(c *ctxproftest.Container) {
		c.Begin(ctxprof.UnhandledBlockID).Flat(40, []uint64{3}).Flat(20, []uint64{4}).End()
		c.Node(0, 3, []uint64{1}, nil)
		c.Node(0, 2, []uint64{1}, nil)
	})
	c.End()
	c.Begin(ctxprof.FlatProfilesSectionBlockID).Flat(6, []uint64{1}).Flat(5, []uint64{2, 2})

	text := render(t, load(t, c.Bytes()))
	doc := parse(t, text)
	expectKeys(t, doc, "Contexts", "FlatProfiles")

	root := value(t, doc, "Contexts").Content[0]
	expectKeys(t, root, "Guid", "TotalRootEntryCount", "Counters", "Unhandled", "Callsites")

	unhandled := value(t, root, "Unhandled")
	if len(unhandled.Content) != 2 {
		t.Fatalf("Unhandled has %d entries, want 2:\n%s", len(unhandled.Content), text)
	}
	for i, want := range []string{"20", "40"} {
		if got := value(t, unhandled.Content[i], "Guid").Value; got != want {
			t.Errorf("Unhandled[%d].Guid = %s, want %s", i, got, want)
		}
	}

	callees := value(t, root, "Callsites").Content[0]
	for i, want := range []string{"2", "3"} {
		if got := value(t, callees.Content[i], "Guid").Value; got != want {
			t.Errorf("callee %d Guid = %s, want %s", i, got, want)
		}
	}

	flat := value(t, doc, "FlatProfiles")
	for i, want := range []string{"5", "6"} {
		entry := flat.Content[i]
		expectKeys(t, entry, "Guid", "Counters")
		if got := value(t, entry, "Guid").Value; got != want {
			t.Errorf("FlatProfiles[%d].Guid = %s, want %s", i, got, want)
		}
	}
}

func TestWriteYAMLEmptyUnhandledOmitted(t *testing.T) {
	c := ctxproftest.New(1).Begin(ctxprof.ContextsSectionBlockID)
	c.Root(1, []uint64{1}, 1, func(c *ctxproftest.Container) {
		c.Begin(ctxprof.UnhandledBlockID).End()
	})
	root := value(t, parse(t, render(t, load(t, c.Bytes()))), "Contexts").Content[0]
	expectKeys(t, root, "Guid", "TotalRootEntryCount", "Counters")
}

func TestWriteYAMLEmptyProfile(t *testing.T) {
	doc := parse(t, render(t, load(t, ctxproftest.New(1).Bytes())))
	if len(doc.Content) != 0 {
		t.Errorf("empty profile rendered keys %v", keys(doc))
	}
}

func TestWriteYAMLDeterministic(t *testing.T) {
	c := ctxproftest.New(1).Begin(ctxprof.ContextsSectionBlockID)
	for guid := uint64(1); guid <= 20; guid++ {
		c.Root(guid, []uint64{guid}, guid, func(c *ctxproftest.Container) {
			for callee := uint64(100); callee < 110; callee++ {
				c.Node(uint32(callee%3), callee, []uint64{1}, nil)
			}
		})
	}
	c.End()
	c.Begin(ctxprof.FlatProfilesSectionBlockID)
	for guid := uint64(50); guid < 70; guid++ {
		c.Flat(guid, []uint64{guid, 1})
	}
	data := c.Bytes()

	first := render(t, load(t, data))
	for i := 0; i < 5; i++ {
		if again := render(t, load(t, data)); again != first {
			t.Fatalf("render %d differs:\n%s\nvs\n%s", i, first, again)
		}
	}
}
