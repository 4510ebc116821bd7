package render

import (
	"fmt"
	"strings"

	"ctxprof/internal/callgraph"
	"ctxprof/internal/ctxprof"
)

// maxLabelCounters caps the counters shown per node label.
const maxLabelCounters = 8

// ContextTreeDOT renders the context tree under root. Unlike the call graph,
// every context is its own node, so a function reached along two paths
// appears twice. Edges are labeled with the call-site index. Nodes are shaded
// by their entry count relative to the root. maxNodes <= 0 means no limit;
// contexts past the limit are counted in the graph label.
func ContextTreeDOT(root *ctxprof.Context, t Theme, maxNodes int) string {
	var b strings.Builder
	b.WriteString("digraph ctxtree {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  nodesep=0.3;\n")
	b.WriteString("  ranksep=0.5;\n")
	fmt.Fprintf(&b, "  bgcolor=%q;\n", t.Background)
	fmt.Fprintf(&b, "  node [shape=rect, style=filled, fillcolor=%q, color=%q, penwidth=0.5, fontname=\"Courier,monospace\", fontsize=8, fontcolor=%q, margin=\"0.08,0.04\"];\n",
		t.NodeFill, t.NodeBorder, t.TextColor)
	fmt.Fprintf(&b, "  edge [penwidth=0.7, arrowsize=0.5, arrowhead=vee, color=%q, fontname=\"Courier,monospace\", fontsize=7];\n", t.Edge)
	b.WriteByte('\n')

	tw := &treeWriter{b: &b, t: t, max: maxNodes, rootEntries: root.EntryCount()}
	rootID := tw.node(root)
	tw.children(rootID, root)

	if len(root.Unhandled) > 0 {
		writeUnhandled(&b, rootID, root.Unhandled, t)
	}

	title := callgraph.FuncName(root.GUID)
	if root.TotalRootEntryCount != nil {
		title += fmt.Sprintf(" (total entries %d)", *root.TotalRootEntryCount)
	}
	if tw.omitted > 0 {
		title += fmt.Sprintf(", %d contexts omitted", tw.omitted)
	}
	b.WriteString("\n  labelloc=t;\n  labeljust=l;\n")
	fmt.Fprintf(&b, "  label=<<font face=\"Helvetica Neue,Helvetica\" point-size=\"9\" color=\"%s\">%s</font>>;\n",
		t.TextColor, dotEscape(title))
	b.WriteString("}\n")
	return b.String()
}

type treeWriter struct {
	b           *strings.Builder
	t           Theme
	max         int
	seq         int
	omitted     int
	rootEntries uint64
}

func (w *treeWriter) node(ctx *ctxprof.Context) string {
	id := fmt.Sprintf("c%d", w.seq)
	w.seq++

	label := fmt.Sprintf("<b>%s</b><br/>%s",
		dotEscape(callgraph.FuncName(ctx.GUID)),
		dotEscape(formatCounters(ctx.Counters, maxLabelCounters)))

	fill := w.t.NodeFill
	if w.rootEntries > 0 {
		share := float64(ctx.EntryCount()) / float64(w.rootEntries)
		switch {
		case share >= HotShare:
			fill = w.t.HotFill
		case share >= WarmShare:
			fill = w.t.WarmFill
		}
	}
	attrs := fmt.Sprintf(", fillcolor=%q", fill)
	if ctx.IsRoot() {
		attrs += fmt.Sprintf(", penwidth=1.5, color=%q", w.t.RootBorder)
	}
	fmt.Fprintf(w.b, "  %s [label=<%s>%s];\n", id, label, attrs)
	return id
}

func (w *treeWriter) children(parentID string, ctx *ctxprof.Context) {
	for _, idx := range ctx.Callsites.SortedIndices() {
		targets := ctx.Callsites[idx]
		for _, guid := range targets.SortedGUIDs() {
			callee := targets[guid]
			if w.max > 0 && w.seq >= w.max {
				w.omitted += countContexts(callee)
				continue
			}
			id := w.node(callee)
			fmt.Fprintf(w.b, "  %s -> %s [label=\"%d\"];\n", parentID, id, idx)
			w.children(id, callee)
		}
	}
}

func countContexts(ctx *ctxprof.Context) int {
	n := 1
	for _, targets := range ctx.Callsites {
		for _, callee := range targets {
			n += countContexts(callee)
		}
	}
	return n
}

func writeUnhandled(b *strings.Builder, rootID string, unhandled ctxprof.FlatProfile, t Theme) {
	b.WriteString("\n  subgraph cluster_unhandled {\n")
	fmt.Fprintf(b, "    color=%q;\n", t.ClusterBorder)
	b.WriteString("    style=dashed;\n")
	fmt.Fprintf(b, "    label=<<font point-size=\"8\" color=\"%s\">unhandled</font>>;\n", t.ClusterLabel)
	for _, guid := range unhandled.SortedGUIDs() {
		name := callgraph.FuncName(guid)
		fmt.Fprintf(b, "    %s [label=<%s<br/>%s>, fontcolor=%q];\n",
			dotID(name), dotEscape(name),
			dotEscape(formatCounters(unhandled[guid], maxLabelCounters)), t.ExternalText)
	}
	b.WriteString("  }\n")
	for _, guid := range unhandled.SortedGUIDs() {
		fmt.Fprintf(b, "  %s -> %s [style=dashed, color=%q];\n", rootID, dotID(callgraph.FuncName(guid)), t.ExternalEdge)
	}
}
