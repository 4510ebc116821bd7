// Package pprofconv converts decoded contextual profiles to pprof so they can
// be inspected with standard profile tooling.
package pprofconv

import (
	"fmt"
	"math"

	"github.com/google/pprof/profile"

	"ctxprof/internal/callgraph"
	"ctxprof/internal/ctxprof"
)

// Sample label values for the "kind" label.
const (
	KindContext   = "context"
	KindFlat      = "flat"
	KindUnhandled = "unhandled"
)

const (
	labelKind     = "kind"
	labelCallsite = "callsite"
)

type converter struct {
	prof *profile.Profile
	locs map[ctxprof.GUID]*profile.Location
}

// Convert builds a pprof profile with one "entries" sample per context (stack
// is the call chain, leaf first), one per flat entry and one per unhandled
// callee (stack is callee then root). Sample values are entry counters.
func Convert(p *ctxprof.Profile) (*profile.Profile, error) {
	c := &converter{
		prof: &profile.Profile{
			SampleType:        []*profile.ValueType{{Type: "entries", Unit: "count"}},
			PeriodType:        &profile.ValueType{Type: "entries", Unit: "count"},
			Period:            1,
			DefaultSampleType: "entries",
			Comments:          []string{fmt.Sprintf("ctxprof version %d", p.Version)},
		},
		locs: make(map[ctxprof.GUID]*profile.Location),
	}

	err := p.Walk(func(stack []ctxprof.GUID, callsite uint32, ctx *ctxprof.Context) error {
		s := c.sample(KindContext, ctx.EntryCount(), stack...)
		if !ctx.IsRoot() {
			s.NumLabel[labelCallsite] = []int64{int64(callsite)}
		}
		for _, guid := range ctx.Unhandled.SortedGUIDs() {
			c.sample(KindUnhandled, entryCount(ctx.Unhandled[guid]), ctx.GUID, guid)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, guid := range p.FlatProfiles.SortedGUIDs() {
		c.sample(KindFlat, entryCount(p.FlatProfiles[guid]), guid)
	}

	if err := c.prof.CheckValid(); err != nil {
		return nil, fmt.Errorf("pprofconv: %w", err)
	}
	return c.prof, nil
}

// sample appends a sample whose stack is given root first.
func (c *converter) sample(kind string, value uint64, rootFirst ...ctxprof.GUID) *profile.Sample {
	s := &profile.Sample{
		Value:    []int64{clamp(value)},
		Label:    map[string][]string{labelKind: {kind}},
		NumLabel: make(map[string][]int64),
	}
	for i := len(rootFirst) - 1; i >= 0; i-- {
		s.Location = append(s.Location, c.location(rootFirst[i]))
	}
	c.prof.Sample = append(c.prof.Sample, s)
	return s
}

func (c *converter) location(guid ctxprof.GUID) *profile.Location {
	if loc, ok := c.locs[guid]; ok {
		return loc
	}
	id := uint64(len(c.locs) + 1)
	fn := &profile.Function{
		ID:         id,
		Name:       callgraph.FuncName(guid),
		SystemName: fmt.Sprintf("%d", guid),
	}
	loc := &profile.Location{
		ID:   id,
		Line: []profile.Line{{Function: fn}},
	}
	c.prof.Function = append(c.prof.Function, fn)
	c.prof.Location = append(c.prof.Location, loc)
	c.locs[guid] = loc
	return loc
}

func entryCount(counters []uint64) uint64 {
	if len(counters) == 0 {
		return 0
	}
	return counters[0]
}

func clamp(v uint64) int64 {
	if v > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(v)
}
