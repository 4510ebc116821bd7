package callgraph

import (
	"testing"

	"ctxprof/internal/ctxprof"
)

func sampleProfile() *ctxprof.Profile {
	total := uint64(5)
	leaf := func(g ctxprof.GUID) *ctxprof.Context {
		return &ctxprof.Context{GUID: g, Counters: []uint64{1}, Callsites: ctxprof.CallsiteMap{}}
	}
	return &ctxprof.Profile{
		Contexts: map[ctxprof.GUID]*ctxprof.Context{
			1: {
				GUID:                1,
				Counters:            []uint64{5},
				TotalRootEntryCount: &total,
				Unhandled:           ctxprof.FlatProfile{9: {1}},
				Callsites: ctxprof.CallsiteMap{
					0: {2: {GUID: 2, Counters: []uint64{2}, Callsites: ctxprof.CallsiteMap{
						1: {3: leaf(3)},
					}}},
					3: {3: leaf(3), 2: leaf(2)},
				},
			},
		},
		FlatProfiles: ctxprof.FlatProfile{4: {7}},
	}
}

func TestBuildCallGraph(t *testing.T) {
	g := BuildCallGraph(sampleProfile())

	if len(g.Nodes) != 5 {
		t.Errorf("got %d nodes, want 5: %v", len(g.Nodes), g.Nodes)
	}
	want := map[[2]string]bool{
		{FuncName(1), FuncName(2)}: true,
		{FuncName(2), FuncName(3)}: true,
		{FuncName(1), FuncName(3)}: true,
		{FuncName(1), FuncName(9)}: true,
	}
	got := make(map[[2]string]bool)
	for _, e := range g.Edges {
		got[[2]string{e.Caller, e.Callee}] = true
	}
	for e := range want {
		if !got[e] {
			t.Errorf("missing edge %s -> %s", e[0], e[1])
		}
	}
	for e := range got {
		if !want[e] {
			t.Errorf("unexpected edge %s -> %s", e[0], e[1])
		}
	}
}

func TestBuildCallsiteCFG(t *testing.T) {
	root := sampleProfile().Contexts[1]
	f := BuildCallsiteCFG(root)

	if f.Name != FuncName(1) {
		t.Errorf("Name = %s, want %s", f.Name, FuncName(1))
	}
	if len(f.Blocks) != 4 {
		t.Fatalf("got %d blocks, want 4 (indices 0..3)", len(f.Blocks))
	}
	wantCalls := [][]string{
		{FuncName(2)},
		nil,
		nil,
		{FuncName(2), FuncName(3)},
	}
	for i, b := range f.Blocks {
		if b.ID != i {
			t.Errorf("block %d has ID %d", i, b.ID)
		}
		if len(b.Calls) != len(wantCalls[i]) {
			t.Errorf("block %d has %d calls, want %d", i, len(b.Calls), len(wantCalls[i]))
			continue
		}
		for j, c := range b.Calls {
			if c.Callee != wantCalls[i][j] || c.Offset != i {
				t.Errorf("block %d call %d = %+v, want %s at %d", i, j, c, wantCalls[i][j], i)
			}
		}
		if last := i == len(f.Blocks)-1; b.Term != last || (len(b.Succs) == 0) != last {
			t.Errorf("block %d: Term=%v succs=%v", i, b.Term, b.Succs)
		}
	}
}

func TestBuildCallsiteCFGLeaf(t *testing.T) {
	f := BuildCallsiteCFG(&ctxprof.Context{GUID: 3, Counters: []uint64{1}})
	if len(f.Blocks) != 0 {
		t.Errorf("leaf context produced %d blocks", len(f.Blocks))
	}
}
