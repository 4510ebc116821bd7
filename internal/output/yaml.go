package output

import (
	"fmt"
	"io"
	"strconv"

	"gopkg.in/yaml.v3"

	"ctxprof/internal/ctxprof"
)

// WriteYAML writes the text form of p. Roots, flat entries and callees are
// ordered by GUID; call sites are listed by index from 0 to the largest one
// present, with [] standing in for indices that have no callees. Output size
// therefore grows with the largest call-site index, not the number of callees.
func WriteYAML(w io.Writer, p *ctxprof.Profile) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(ProfileNode(p)); err != nil {
		return fmt.Errorf("output: encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("output: encode yaml: %w", err)
	}
	return nil
}

// ProfileNode builds the document tree for p.
func ProfileNode(p *ctxprof.Profile) *yaml.Node {
	doc := mapping()
	if len(p.Contexts) > 0 {
		roots := sequence()
		for _, guid := range p.SortedRoots() {
			roots.Content = append(roots.Content, contextNode(p.Contexts[guid]))
		}
		addKey(doc, "Contexts", roots)
	}
	if len(p.FlatProfiles) > 0 {
		addKey(doc, "FlatProfiles", flatNode(p.FlatProfiles))
	}
	return doc
}

func contextNode(ctx *ctxprof.Context) *yaml.Node {
	m := mapping()
	addKey(m, "Guid", uintNode(ctx.GUID))
	if ctx.TotalRootEntryCount != nil {
		addKey(m, "TotalRootEntryCount", uintNode(*ctx.TotalRootEntryCount))
	}
	addKey(m, "Counters", countersNode(ctx.Counters))
	if len(ctx.Unhandled) > 0 {
		addKey(m, "Unhandled", flatNode(ctx.Unhandled))
	}
	if len(ctx.Callsites) > 0 {
		addKey(m, "Callsites", callsitesNode(ctx.Callsites))
	}
	return m
}

func callsitesNode(cs ctxprof.CallsiteMap) *yaml.Node {
	seq := sequence()
	last := uint64(cs.MaxIndex())
	for i := uint64(0); i <= last; i++ {
		targets := cs[uint32(i)]
		if len(targets) == 0 {
			seq.Content = append(seq.Content, flowSequence())
			continue
		}
		callees := sequence()
		for _, guid := range targets.SortedGUIDs() {
			callees.Content = append(callees.Content, contextNode(targets[guid]))
		}
		seq.Content = append(seq.Content, callees)
	}
	return seq
}

func flatNode(f ctxprof.FlatProfile) *yaml.Node {
	seq := sequence()
	for _, guid := range f.SortedGUIDs() {
		m := mapping()
		addKey(m, "Guid", uintNode(guid))
		addKey(m, "Counters", countersNode(f[guid]))
		seq.Content = append(seq.Content, m)
	}
	return seq
}

func countersNode(counters []uint64) *yaml.Node {
	seq := flowSequence()
	for _, v := range counters {
		seq.Content = append(seq.Content, uintNode(v))
	}
	return seq
}

func mapping() *yaml.Node  { return &yaml.Node{Kind: yaml.MappingNode} }
func sequence() *yaml.Node { return &yaml.Node{Kind: yaml.SequenceNode} }

func flowSequence() *yaml.Node {
	return &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
}

func uintNode(v uint64) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.FormatUint(v, 10)}
}

func addKey(m *yaml.Node, key string, value *yaml.Node) {
	m.Content = append(m.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
		value)
}
