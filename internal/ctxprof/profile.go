package ctxprof

import (
	"maps"
	"slices"
)

// GUID is the stable 64-bit identifier of a function.
type GUID = uint64

// Context is one node of the call-context tree.
type Context struct {
	GUID     GUID
	Counters []uint64 // never empty; Counters[0] is the entry count

	// Set on roots only.
	TotalRootEntryCount *uint64
	Unhandled           FlatProfile

	Callsites CallsiteMap
}

// IsRoot reports whether c was decoded from a root context block.
func (c *Context) IsRoot() bool { return c.TotalRootEntryCount != nil }

// EntryCount returns the entry counter.
func (c *Context) EntryCount() uint64 { return c.Counters[0] }

// CallTargets maps callee GUID to its context at one call site.
type CallTargets map[GUID]*Context

// SortedGUIDs returns the callee GUIDs in ascending order.
func (t CallTargets) SortedGUIDs() []GUID {
	return slices.Sorted(maps.Keys(t))
}

// CallsiteMap groups callees by call-site index in the caller.
type CallsiteMap map[uint32]CallTargets

// MaxIndex returns the largest call-site index present. The map must not be
// empty.
func (m CallsiteMap) MaxIndex() uint32 {
	return slices.Max(slices.Collect(maps.Keys(m)))
}

// SortedIndices returns the populated call-site indices in ascending order.
func (m CallsiteMap) SortedIndices() []uint32 {
	return slices.Sorted(maps.Keys(m))
}

// FlatProfile maps a function to counters not attributed to any context.
type FlatProfile map[GUID][]uint64

// SortedGUIDs returns the GUIDs in ascending order.
func (f FlatProfile) SortedGUIDs() []GUID {
	return slices.Sorted(maps.Keys(f))
}

// Profile is a decoded container.
type Profile struct {
	Version      uint64
	Contexts     map[GUID]*Context
	FlatProfiles FlatProfile
}

// SortedRoots returns the root GUIDs in ascending order.
func (p *Profile) SortedRoots() []GUID {
	return slices.Sorted(maps.Keys(p.Contexts))
}

// VisitFunc is called by Walk for every context. stack holds the GUIDs from
// the root down to ctx inclusive and is reused between calls. callsite is the
// index under which ctx hangs in its parent, zero for roots.
type VisitFunc func(stack []GUID, callsite uint32, ctx *Context) error

// Walk visits every context reachable from the roots, parents before
// children, in ascending GUID and call-site order. Flat profiles and
// unhandled entries are not visited. A non-nil error from fn stops the walk.
func (p *Profile) Walk(fn VisitFunc) error {
	stack := make([]GUID, 0, 16)
	for _, guid := range p.SortedRoots() {
		if err := walk(stack, 0, p.Contexts[guid], fn); err != nil {
			return err
		}
	}
	return nil
}

func walk(stack []GUID, callsite uint32, ctx *Context, fn VisitFunc) error {
	stack = append(stack, ctx.GUID)
	if err := fn(stack, callsite, ctx); err != nil {
		return err
	}
	for _, idx := range ctx.Callsites.SortedIndices() {
		targets := ctx.Callsites[idx]
		for _, guid := range targets.SortedGUIDs() {
			if err := walk(stack, idx, targets[guid], fn); err != nil {
				return err
			}
		}
	}
	return nil
}
