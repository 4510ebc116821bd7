// Package ctxproftest writes contextual profile containers for tests.
package ctxproftest

import (
	"ctxprof/internal/bitstream"
	"ctxprof/internal/ctxprof"
)

// AbbrevWidth is the abbreviation width used for every block.
const AbbrevWidth = 2

// Container writes a container one block at a time. Methods return the
// receiver so fixtures read top-down like the stream they produce.
type Container struct {
	w     *bitstream.Writer
	depth int
}

// New starts a container: magic, block info, and an open metadata block
// holding the Version record. Sections go inside it.
func New(version uint64) *Container {
	c := NewHeader()
	c.Begin(ctxprof.MetadataBlockID).Record(ctxprof.RecordVersion, version)
	return c
}

// NewHeader writes only the magic and the block info block.
func NewHeader() *Container {
	c := &Container{w: bitstream.NewWriter()}
	c.w.EmitBytes([]byte(ctxprof.Magic))
	c.w.EnterSubblock(bitstream.BlockInfoBlockID, AbbrevWidth)
	for id := ctxprof.FirstValid; id <= ctxprof.LastValid; id++ {
		c.w.EmitRecord(1, uint64(id)) // SETBID
		name := id.String()
		chars := make([]uint64, len(name))
		for i := range name {
			chars[i] = uint64(name[i])
		}
		c.w.EmitRecord(2, chars...) // BLOCKNAME
	}
	c.w.ExitBlock()
	return c
}

// Begin opens a block.
func (c *Container) Begin(id ctxprof.BlockID) *Container {
	c.w.EnterSubblock(uint32(id), AbbrevWidth)
	c.depth++
	return c
}

// End closes the innermost block.
func (c *Container) End() *Container {
	c.w.ExitBlock()
	c.depth--
	return c
}

// Record writes a record into the current block.
func (c *Container) Record(kind ctxprof.RecordKind, vals ...uint64) *Container {
	c.w.EmitRecord(uint32(kind), vals...)
	return c
}

// Root writes a complete root context. body, if set, adds content after the
// mandatory records.
func (c *Container) Root(guid uint64, counters []uint64, total uint64, body func(*Container)) *Container {
	c.Begin(ctxprof.ContextRootBlockID).
		Record(ctxprof.RecordGUID, guid).
		Record(ctxprof.RecordTotalRootEntryCount, total).
		Record(ctxprof.RecordCounters, counters...)
	if body != nil {
		body(c)
	}
	return c.End()
}

// Node writes a complete context node.
func (c *Container) Node(index uint32, guid uint64, counters []uint64, body func(*Container)) *Container {
	c.Begin(ctxprof.ContextNodeBlockID).
		Record(ctxprof.RecordGUID, guid).
		Record(ctxprof.RecordCallsiteIndex, uint64(index)).
		Record(ctxprof.RecordCounters, counters...)
	if body != nil {
		body(c)
	}
	return c.End()
}

// Flat writes a flat profile entry.
func (c *Container) Flat(guid uint64, counters []uint64) *Container {
	return c.Begin(ctxprof.FlatProfileBlockID).
		Record(ctxprof.RecordGUID, guid).
		Record(ctxprof.RecordCounters, counters...).
		End()
}

// Bytes closes every open block and returns the container.
func (c *Container) Bytes() []byte {
	for c.depth > 0 {
		c.End()
	}
	return c.w.Bytes()
}

// Encode writes p the way the profile writer lays it out: sections inside the
// metadata block, roots and flat entries in ascending GUID order.
func Encode(p *ctxprof.Profile) []byte {
	c := New(p.Version)
	if len(p.Contexts) > 0 {
		c.Begin(ctxprof.ContextsSectionBlockID)
		for _, guid := range p.SortedRoots() {
			root := p.Contexts[guid]
			c.Root(root.GUID, root.Counters, *root.TotalRootEntryCount, func(c *Container) {
				if root.Unhandled != nil {
					c.Begin(ctxprof.UnhandledBlockID)
					c.flatList(root.Unhandled)
					c.End()
				}
				c.callsites(root)
			})
		}
		c.End()
	}
	if len(p.FlatProfiles) > 0 {
		c.Begin(ctxprof.FlatProfilesSectionBlockID)
		c.flatList(p.FlatProfiles)
		c.End()
	}
	return c.Bytes()
}

func (c *Container) flatList(f ctxprof.FlatProfile) {
	for _, guid := range f.SortedGUIDs() {
		c.Flat(guid, f[guid])
	}
}

func (c *Container) callsites(ctx *ctxprof.Context) {
	for _, idx := range ctx.Callsites.SortedIndices() {
		targets := ctx.Callsites[idx]
		for _, guid := range targets.SortedGUIDs() {
			child := targets[guid]
			c.Node(idx, child.GUID, child.Counters, func(c *Container) {
				c.callsites(child)
			})
		}
	}
}
