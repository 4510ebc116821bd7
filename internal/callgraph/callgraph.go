// Package callgraph projects a decoded contextual profile onto lattice graphs
// for rendering.
package callgraph

import (
	"fmt"

	"github.com/zboralski/lattice"

	"ctxprof/internal/ctxprof"
)

// FuncName is the display name of a function in rendered graphs.
func FuncName(guid ctxprof.GUID) string {
	return fmt.Sprintf("guid:0x%016x", guid)
}

// BuildCallGraph constructs a lattice.Graph with one node per function that
// appears anywhere in p and one edge per caller→callee pair observed in the
// context trees. Unhandled callees hang off their root.
func BuildCallGraph(p *ctxprof.Profile) *lattice.Graph {
	g := &lattice.Graph{}
	seen := make(map[ctxprof.GUID]bool)
	addNode := func(guid ctxprof.GUID) {
		if !seen[guid] {
			seen[guid] = true
			g.Nodes = append(g.Nodes, FuncName(guid))
		}
	}
	addEdge := func(caller, callee ctxprof.GUID) {
		g.Edges = append(g.Edges, lattice.Edge{
			Caller: FuncName(caller),
			Callee: FuncName(callee),
		})
	}

	_ = p.Walk(func(stack []ctxprof.GUID, _ uint32, ctx *ctxprof.Context) error {
		addNode(ctx.GUID)
		if len(stack) > 1 {
			addEdge(stack[len(stack)-2], ctx.GUID)
		}
		for _, guid := range ctx.Unhandled.SortedGUIDs() {
			addNode(guid)
			addEdge(ctx.GUID, guid)
		}
		return nil
	})
	for _, guid := range p.FlatProfiles.SortedGUIDs() {
		addNode(guid)
	}
	g.Dedup()
	return g
}

// BuildCallsiteCFG lays out the call sites of one context as a chain of basic
// blocks, one per index from 0 to the largest present, each listing the
// callees observed there. Block IDs equal call-site indices, so the block
// count is the largest index plus one.
func BuildCallsiteCFG(ctx *ctxprof.Context) *lattice.FuncCFG {
	f := &lattice.FuncCFG{Name: FuncName(ctx.GUID)}
	if len(ctx.Callsites) == 0 {
		return f
	}
	last := int(ctx.Callsites.MaxIndex())
	for i := 0; i <= last; i++ {
		b := &lattice.BasicBlock{
			ID:    i,
			Start: i,
			End:   i + 1,
			Term:  i == last,
		}
		if i < last {
			b.Succs = append(b.Succs, lattice.Successor{BlockID: i + 1})
		}
		targets := ctx.Callsites[uint32(i)]
		for _, guid := range targets.SortedGUIDs() {
			b.Calls = append(b.Calls, lattice.CallSite{
				Offset: i,
				Callee: FuncName(guid),
			})
		}
		f.Blocks = append(f.Blocks, b)
	}
	return f
}
