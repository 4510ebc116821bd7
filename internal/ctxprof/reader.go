package ctxprof

import (
	"math"
	"strings"

	"go.uber.org/zap"

	"ctxprof/internal/bitstream"
)

// Option configures a Reader.
type Option func(*Reader)

// WithLogger sets the logger used for skipped content. The default discards
// everything.
func WithLogger(l *zap.Logger) Option {
	return func(r *Reader) { r.log = l }
}

// Reader decodes one container. It owns its cursor and must not be shared
// between goroutines; separate Readers are independent.
type Reader struct {
	cur   *bitstream.Cursor
	log   *zap.Logger
	diags Diags
}

// NewReader creates a reader over data. The decoded profile never references
// data.
func NewReader(data []byte, opts ...Option) *Reader {
	r := &Reader{cur: bitstream.NewCursor(data), log: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load decodes a whole container.
func Load(data []byte, opts ...Option) (*Profile, error) {
	return NewReader(data, opts...).LoadProfiles()
}

// Diags returns the content skipped so far.
func (r *Reader) Diags() []Diag { return r.diags.Items() }

func (r *Reader) advance() (bitstream.Entry, error) {
	e, err := r.cur.Advance()
	if err != nil {
		return e, r.wrap(err)
	}
	return e, nil
}

func (r *Reader) enter(id BlockID) error {
	if err := r.cur.EnterSubBlock(uint32(id)); err != nil {
		return r.wrap(err)
	}
	return nil
}

func (r *Reader) skipBlock(id BlockID) error {
	off := r.cur.BitOffset()
	if err := r.cur.SkipBlock(); err != nil {
		return r.wrap(err)
	}
	r.diags.Addf(off, DiagUnknownBlock, "skipped %s", id)
	r.log.Debug("Skipped unknown block", zap.Uint64("offset", off), zap.Stringer("id", id))
	return nil
}

func (r *Reader) readRecord() (RecordKind, []uint64, error) {
	code, vals, err := r.cur.ReadRecord()
	if err != nil {
		return 0, nil, r.wrap(err)
	}
	return RecordKind(code), vals, nil
}

func (r *Reader) skipRecord(kind RecordKind) {
	off := r.cur.BitOffset()
	if kind.Known() {
		r.diags.Addf(off, DiagUnknownRecord, "ignored %s record out of place", kind)
	} else {
		r.diags.Addf(off, DiagUnknownRecord, "ignored unknown %s", kind)
	}
	r.log.Debug("Ignored record", zap.Uint64("offset", off), zap.Stringer("code", kind), zap.Bool("known", kind.Known()))
}

// LoadProfiles validates the header and decodes both sections.
func (r *Reader) LoadProfiles() (*Profile, error) {
	version, err := r.readMetadata()
	if err != nil {
		return nil, err
	}
	p := &Profile{
		Version:      version,
		Contexts:     make(map[GUID]*Context),
		FlatProfiles: make(FlatProfile),
	}

	// Writers nest the sections inside the metadata block. Sections after
	// it are read the same way.
	var seenContexts, seenFlat bool
	for {
		e, err := r.advance()
		if err != nil {
			return nil, err
		}
		switch e.Kind {
		case bitstream.EntryEndBlock:
			if r.cur.Depth() == 0 && r.cur.AtEnd() {
				return p, nil
			}
		case bitstream.EntryRecord:
			kind, _, err := r.readRecord()
			if err != nil {
				return nil, err
			}
			r.skipRecord(kind)
		case bitstream.EntrySubBlock:
			id := BlockID(e.ID)
			switch {
			case id == ContextsSectionBlockID && !seenContexts:
				seenContexts = true
				err = r.loadContexts(p.Contexts)
			case id == FlatProfilesSectionBlockID && !seenFlat:
				seenFlat = true
				err = r.loadFlatProfiles(p.FlatProfiles)
			case !id.Known():
				err = r.skipBlock(id)
			default:
				err = r.fail(ErrUnexpectedSection, "%s block", id)
			}
			if err != nil {
				return nil, err
			}
		}
	}
}

// readMetadata checks the magic, skips the block info block and enters the
// metadata block, returning the container version.
func (r *Reader) readMetadata() (uint64, error) {
	magic, err := r.cur.ReadBytes(len(Magic))
	if err != nil || string(magic) != Magic {
		return 0, r.fail(ErrBadMagic, "want %q", Magic)
	}

	e, err := r.advance()
	if err != nil {
		return 0, err
	}
	if e.Kind != bitstream.EntrySubBlock || e.ID != bitstream.BlockInfoBlockID {
		return 0, r.fail(ErrUnexpectedStructure, "expected block info block")
	}
	// Only binary analysis tools need the block info.
	if err := r.cur.SkipBlock(); err != nil {
		return 0, r.wrap(err)
	}

	e, err = r.advance()
	if err != nil {
		return 0, err
	}
	if e.Kind != bitstream.EntrySubBlock || BlockID(e.ID) != MetadataBlockID {
		return 0, r.fail(ErrUnexpectedStructure, "expected metadata block")
	}
	if err := r.enter(MetadataBlockID); err != nil {
		return 0, err
	}

	e, err = r.advance()
	if err != nil {
		return 0, err
	}
	if e.Kind != bitstream.EntryRecord {
		return 0, r.fail(ErrUnexpectedStructure, "expected Version record")
	}
	kind, vals, err := r.readRecord()
	if err != nil {
		return 0, err
	}
	if kind != RecordVersion {
		return 0, r.fail(ErrUnexpectedStructure, "expected Version record, got %s", kind)
	}
	if len(vals) != 1 {
		return 0, r.fail(ErrMalformedField, "the Version record should have exactly one value")
	}
	if vals[0] > CurrentVersion {
		return 0, r.fail(ErrUnsupportedVersion, "version %d is higher than supported version %d", vals[0], CurrentVersion)
	}
	return vals[0], nil
}

func (r *Reader) loadContexts(dst map[GUID]*Context) error {
	if err := r.enter(ContextsSectionBlockID); err != nil {
		return err
	}
	return r.forEachBlock(ContextsSectionBlockID, ContextRootBlockID, func() error {
		ctx, _, err := r.readContext(KindRoot)
		if err != nil {
			return err
		}
		if _, dup := dst[ctx.GUID]; dup {
			return r.fail(ErrDuplicateRoot, "guid %d", ctx.GUID)
		}
		dst[ctx.GUID] = ctx
		return nil
	})
}

func (r *Reader) loadFlatProfiles(dst FlatProfile) error {
	if err := r.enter(FlatProfilesSectionBlockID); err != nil {
		return err
	}
	return r.loadFlatProfileList(FlatProfilesSectionBlockID, dst)
}

// loadFlatProfileList reads flat entries until the end of the current block.
func (r *Reader) loadFlatProfileList(in BlockID, dst FlatProfile) error {
	return r.forEachBlock(in, FlatProfileBlockID, func() error {
		ctx, _, err := r.readContext(KindFlat)
		if err != nil {
			return err
		}
		if _, dup := dst[ctx.GUID]; dup {
			return r.fail(ErrDuplicateFlatEntry, "guid %d", ctx.GUID)
		}
		dst[ctx.GUID] = ctx.Counters
		return nil
	})
}

// forEachBlock calls visit for every want sub-block of the current block (in)
// until it ends. visit must consume the sub-block. Unknown blocks and records
// are skipped.
func (r *Reader) forEachBlock(in, want BlockID, visit func() error) error {
	for {
		e, err := r.advance()
		if err != nil {
			return err
		}
		switch e.Kind {
		case bitstream.EntryEndBlock:
			return nil
		case bitstream.EntryRecord:
			kind, _, err := r.readRecord()
			if err != nil {
				return err
			}
			r.skipRecord(kind)
		case bitstream.EntrySubBlock:
			id := BlockID(e.ID)
			switch {
			case id == want:
				err = visit()
			case !id.Known():
				err = r.skipBlock(id)
			default:
				err = r.fail(ErrUnexpectedStructure, "%s block inside %s", id, in)
			}
			if err != nil {
				return err
			}
		}
	}
}

// fields collects the records of one context block as they arrive.
type fields struct {
	guid      *GUID
	counters  []uint64
	index     *uint32
	total     *uint64
	unhandled FlatProfile
}

func (f *fields) complete(kind Kind) bool {
	return f.guid != nil && f.counters != nil &&
		(kind != KindNode || f.index != nil) &&
		(kind != KindRoot || f.total != nil)
}

func (f *fields) missing(kind Kind) string {
	var m []string
	if f.guid == nil {
		m = append(m, RecordGUID.String())
	}
	if f.counters == nil {
		m = append(m, RecordCounters.String())
	}
	if kind == KindNode && f.index == nil {
		m = append(m, RecordCallsiteIndex.String())
	}
	if kind == KindRoot && f.total == nil {
		m = append(m, RecordTotalRootEntryCount.String())
	}
	return strings.Join(m, ", ")
}

// readField reads one record into f. Records this reader does not know are
// ignored so newer writers can add fields.
func (r *Reader) readField(kind Kind, f *fields) error {
	code, vals, err := r.readRecord()
	if err != nil {
		return err
	}
	switch code {
	case RecordGUID:
		if f.guid != nil {
			return r.fail(ErrMalformedField, "duplicate Guid record")
		}
		if len(vals) != 1 {
			return r.fail(ErrMalformedField, "the Guid record should have exactly one value")
		}
		f.guid = &vals[0]
	case RecordCounters:
		if f.counters != nil {
			return r.fail(ErrMalformedField, "duplicate Counters record")
		}
		if len(vals) == 0 {
			return r.fail(ErrMalformedField, "empty counters, at least the entry counter was expected")
		}
		f.counters = vals
	case RecordCallsiteIndex:
		if kind != KindNode {
			return r.fail(ErrMalformedField, "a %s should not have a call-site index", kind)
		}
		if f.index != nil {
			return r.fail(ErrMalformedField, "duplicate CallsiteIndex record")
		}
		if len(vals) != 1 {
			return r.fail(ErrMalformedField, "the call-site index should have exactly one value")
		}
		if vals[0] > math.MaxUint32 {
			return r.fail(ErrMalformedField, "call-site index %d out of range", vals[0])
		}
		idx := uint32(vals[0])
		f.index = &idx
	case RecordTotalRootEntryCount:
		if kind != KindRoot {
			return r.fail(ErrMalformedField, "a %s has a total root entry count record", kind)
		}
		if f.total != nil {
			return r.fail(ErrMalformedField, "duplicate TotalRootEntryCount record")
		}
		if len(vals) != 1 {
			return r.fail(ErrMalformedField, "the total root entry count record should have exactly one value")
		}
		f.total = &vals[0]
	default:
		r.skipRecord(code)
	}
	return nil
}

// readUnhandled decodes the unhandled-callees block of a root. The caller has
// advanced onto it.
func (r *Reader) readUnhandled(kind Kind, f *fields) error {
	if kind != KindRoot {
		return r.fail(ErrMalformedField, "a %s cannot have unhandled callees", kind)
	}
	if f.unhandled != nil {
		return r.fail(ErrMalformedField, "duplicate Unhandled block")
	}
	if err := r.enter(UnhandledBlockID); err != nil {
		return err
	}
	f.unhandled = make(FlatProfile)
	return r.loadFlatProfileList(UnhandledBlockID, f.unhandled)
}

// readContext decodes one context block of the given kind. The caller has
// advanced onto the block. For KindNode it also returns the call-site index
// under which the parent must place the node.
func (r *Reader) readContext(kind Kind) (*Context, uint32, error) {
	if err := r.enter(kind.blockID()); err != nil {
		return nil, 0, err
	}

	// Record order is not prescribed; read until every mandatory field is in.
	var f fields
	for !f.complete(kind) {
		e, err := r.advance()
		if err != nil {
			return nil, 0, err
		}
		switch e.Kind {
		case bitstream.EntryRecord:
			err = r.readField(kind, &f)
		case bitstream.EntrySubBlock:
			if BlockID(e.ID) == UnhandledBlockID {
				err = r.readUnhandled(kind, &f)
			} else {
				err = r.fail(ErrUnexpectedStructure, "expected records before %s block in %s block", BlockID(e.ID), kind)
			}
		case bitstream.EntryEndBlock:
			err = r.fail(ErrUnexpectedStructure, "%s block ended without %s", kind, f.missing(kind))
		}
		if err != nil {
			return nil, 0, err
		}
	}

	ctx := &Context{
		GUID:                *f.guid,
		Counters:            f.counters,
		TotalRootEntryCount: f.total,
		Unhandled:           f.unhandled,
		Callsites:           make(CallsiteMap),
	}
	var index uint32
	if f.index != nil {
		index = *f.index
	}

	for {
		e, err := r.advance()
		if err != nil {
			return nil, 0, err
		}
		switch e.Kind {
		case bitstream.EntryEndBlock:
			return ctx, index, nil
		case bitstream.EntryRecord:
			err = r.readField(kind, &f)
		case bitstream.EntrySubBlock:
			id := BlockID(e.ID)
			switch {
			case id == ContextNodeBlockID && kind != KindFlat:
				err = r.readCallee(ctx)
			case id == UnhandledBlockID:
				if err = r.readUnhandled(kind, &f); err == nil {
					ctx.Unhandled = f.unhandled
				}
			case !id.Known():
				err = r.skipBlock(id)
			default:
				err = r.fail(ErrUnexpectedStructure, "%s block inside %s block", id, kind)
			}
		}
		if err != nil {
			return nil, 0, err
		}
	}
}

// readCallee decodes a nested context node and files it under its call site.
func (r *Reader) readCallee(parent *Context) error {
	child, index, err := r.readContext(KindNode)
	if err != nil {
		return err
	}
	targets := parent.Callsites[index]
	if targets == nil {
		targets = make(CallTargets)
		parent.Callsites[index] = targets
	}
	if _, dup := targets[child.GUID]; dup {
		return r.fail(ErrDuplicateCallee, "guid %d at call site %d of guid %d", child.GUID, index, parent.GUID)
	}
	targets[child.GUID] = child
	return nil
}
