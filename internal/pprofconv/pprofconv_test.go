package pprofconv

import (
	"bytes"
	"math"
	"testing"

	"github.com/google/pprof/profile"
	"github.com/stretchr/testify/require"

	"ctxprof/internal/callgraph"
	"ctxprof/internal/ctxprof"
	"ctxprof/internal/ctxprof/ctxproftest"
)

func stackNames(s *profile.Sample) []string {
	var out []string
	for _, loc := range s.Location {
		out = append(out, loc.Line[0].Function.Name)
	}
	return out
}

func samplesOfKind(p *profile.Profile, kind string) []*profile.Sample {
	var out []*profile.Sample
	for _, s := range p.Sample {
		if s.Label["kind"][0] == kind {
			out = append(out, s)
		}
	}
	return out
}

func TestConvert(t *testing.T) {
	c := ctxproftest.New(ctxprof.CurrentVersion).Begin(ctxprof.ContextsSectionBlockID)
	c.Root(1, []uint64{10}, 12, func(c *ctxproftest.Container) {
		c.Begin(ctxprof.UnhandledBlockID).Flat(7, []uint64{4}).End()
		c.Node(2, 2, []uint64{6, 1}, func(c *ctxproftest.Container) {
			c.Node(0, 3, []uint64{5}, nil)
		})
	})
	c.End()
	c.Begin(ctxprof.FlatProfilesSectionBlockID).Flat(3, []uint64{9})

	p, err := ctxprof.Load(c.Bytes())
	require.NoError(t, err)

	prof, err := Convert(p)
	require.NoError(t, err)
	require.NoError(t, prof.CheckValid())

	// One function/location per distinct GUID: 1, 2, 3, 7.
	require.Len(t, prof.Function, 4)
	require.Len(t, prof.Location, 4)

	ctxs := samplesOfKind(prof, KindContext)
	require.Len(t, ctxs, 3)
	require.Equal(t, []string{callgraph.FuncName(1)}, stackNames(ctxs[0]))
	require.Equal(t, []int64{10}, ctxs[0].Value)
	require.Empty(t, ctxs[0].NumLabel["callsite"])
	require.Equal(t, []string{callgraph.FuncName(2), callgraph.FuncName(1)}, stackNames(ctxs[1]))
	require.Equal(t, []int64{2}, ctxs[1].NumLabel["callsite"])
	require.Equal(t, []string{callgraph.FuncName(3), callgraph.FuncName(2), callgraph.FuncName(1)}, stackNames(ctxs[2]))
	require.Equal(t, []int64{5}, ctxs[2].Value)

	unhandled := samplesOfKind(prof, KindUnhandled)
	require.Len(t, unhandled, 1)
	require.Equal(t, []string{callgraph.FuncName(7), callgraph.FuncName(1)}, stackNames(unhandled[0]))
	require.Equal(t, []int64{4}, unhandled[0].Value)

	flat := samplesOfKind(prof, KindFlat)
	require.Len(t, flat, 1)
	require.Equal(t, []string{callgraph.FuncName(3)}, stackNames(flat[0]))
	require.Equal(t, []int64{9}, flat[0].Value)
}

func TestConvertWriteParse(t *testing.T) {
	p, err := ctxprof.Load(ctxproftest.New(1).
		Begin(ctxprof.FlatProfilesSectionBlockID).
		Flat(1, []uint64{math.MaxUint64}).
		Bytes())
	require.NoError(t, err)

	prof, err := Convert(p)
	require.NoError(t, err)
	require.Equal(t, []int64{math.MaxInt64}, prof.Sample[0].Value)

	var buf bytes.Buffer
	require.NoError(t, prof.Write(&buf))
	parsed, err := profile.Parse(&buf)
	require.NoError(t, err)
	require.Len(t, parsed.Sample, 1)
	require.Equal(t, "entries", parsed.SampleType[0].Type)
}
