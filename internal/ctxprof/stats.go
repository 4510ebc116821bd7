package ctxprof

// Summary holds aggregate counts over a decoded profile.
type Summary struct {
	Version          uint64 `json:"version"`
	Roots            int    `json:"roots"`
	Contexts         int    `json:"contexts"` // roots included
	MaxDepth         int    `json:"max_depth"`
	Functions        int    `json:"functions"` // distinct GUIDs anywhere
	FlatProfiles     int    `json:"flat_profiles"`
	Unhandled        int    `json:"unhandled"`
	TotalRootEntries uint64 `json:"total_root_entries"`
	MaxCallsite      uint32 `json:"max_callsite_index"`
	Diags            int    `json:"diags"`
}

// Summarize walks p and counts its contents.
func Summarize(p *Profile) Summary {
	s := Summary{
		Version:      p.Version,
		Roots:        len(p.Contexts),
		FlatProfiles: len(p.FlatProfiles),
	}
	funcs := make(map[GUID]struct{})
	_ = p.Walk(func(stack []GUID, callsite uint32, ctx *Context) error {
		s.Contexts++
		s.MaxDepth = max(s.MaxDepth, len(stack))
		funcs[ctx.GUID] = struct{}{}
		if !ctx.IsRoot() {
			s.MaxCallsite = max(s.MaxCallsite, callsite)
		}
		if ctx.IsRoot() {
			s.TotalRootEntries += *ctx.TotalRootEntryCount
			s.Unhandled += len(ctx.Unhandled)
			for guid := range ctx.Unhandled {
				funcs[guid] = struct{}{}
			}
		}
		return nil
	})
	for guid := range p.FlatProfiles {
		funcs[guid] = struct{}{}
	}
	s.Functions = len(funcs)
	return s
}
