// Package bitstream reads and writes the nested block/record bit container
// used by contextual profiles.
//
// Bits are consumed least significant first. Every block starts with an
// ENTER_SUBBLOCK header carrying its id, the abbreviation width used inside
// it and its length in 32-bit words, and ends with END_BLOCK padded to a
// 32-bit boundary.
package bitstream

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrStreamEOF         = errors.New("bitstream: unexpected end of data")
	ErrStreamOverrun     = errors.New("bitstream: value too large")
	ErrNotPositioned     = errors.New("bitstream: cursor not positioned at expected entry")
	ErrAbbreviatedRecord = errors.New("bitstream: abbreviated records are not supported")
	ErrBlockLength       = errors.New("bitstream: block length mismatch")
)

// Reserved abbreviation IDs.
const (
	EndBlockAbbrev      = 0
	EnterSubblockAbbrev = 1
	DefineAbbrev        = 2
	UnabbrevRecord      = 3
)

// BlockInfoBlockID is the standard block carrying abbreviation and naming
// metadata for analysis tools.
const BlockInfoBlockID = 0

// TopLevelAbbrevWidth is the abbreviation width outside of any block.
const TopLevelAbbrevWidth = 2

const maxAbbrevWidth = 32

// EntryKind classifies what Advance found.
type EntryKind int

const (
	EntryEndBlock EntryKind = iota
	EntrySubBlock
	EntryRecord
)

func (k EntryKind) String() string {
	switch k {
	case EntryEndBlock:
		return "EndBlock"
	case EntrySubBlock:
		return "SubBlock"
	case EntryRecord:
		return "Record"
	default:
		return fmt.Sprintf("EntryKind(%d)", int(k))
	}
}

// Entry is one step of the stream. ID is the block id for sub-blocks and the
// abbreviation id for records.
type Entry struct {
	Kind EntryKind
	ID   uint32
}

type pendingKind int

const (
	pendingNone pendingKind = iota
	pendingSubBlock
	pendingRecord
)

type scope struct {
	outerWidth uint
	end        uint64 // bit offset just past the block
}

// Cursor walks a bit container. It is not safe for concurrent use.
type Cursor struct {
	data        []byte
	pos         uint64
	end         uint64
	abbrevWidth uint
	scopes      []scope

	pending   pendingKind
	pendingID uint32
}

// NewCursor creates a cursor over the given data.
func NewCursor(data []byte) *Cursor {
	return &Cursor{
		data:        data,
		end:         uint64(len(data)) * 8,
		abbrevWidth: TopLevelAbbrevWidth,
	}
}

// BitOffset returns the current read position in bits.
func (c *Cursor) BitOffset() uint64 { return c.pos }

// Depth returns the number of blocks currently entered.
func (c *Cursor) Depth() int { return len(c.scopes) }

// AtEnd reports whether all input has been consumed.
func (c *Cursor) AtEnd() bool { return c.pos >= c.end }

// Read reads a fixed-width field of up to 64 bits.
func (c *Cursor) Read(width uint) (uint64, error) {
	if width > 64 {
		return 0, ErrStreamOverrun
	}
	if c.end-c.pos < uint64(width) {
		return 0, ErrStreamEOF
	}
	var v uint64
	for i := uint(0); i < width; i++ {
		p := c.pos + uint64(i)
		if c.data[p>>3]>>(p&7)&1 != 0 {
			v |= 1 << i
		}
	}
	c.pos += uint64(width)
	return v, nil
}

// ReadVBR reads a variable bit rate field. Each chunk carries width-1 data
// bits; the top bit of a chunk says another chunk follows.
func (c *Cursor) ReadVBR(width uint) (uint64, error) {
	if width < 2 || width > 32 {
		return 0, ErrStreamOverrun
	}
	hi := uint64(1) << (width - 1)
	var v uint64
	var shift uint
	for {
		piece, err := c.Read(width)
		if err != nil {
			return 0, err
		}
		data := piece & (hi - 1)
		if shift > 0 && data>>(64-shift) != 0 {
			return 0, ErrStreamOverrun
		}
		v |= data << shift
		if piece&hi == 0 {
			return v, nil
		}
		shift += width - 1
		if shift >= 64 {
			return 0, ErrStreamOverrun
		}
	}
}

// ReadBytes reads n whole bytes. Used for the container magic, which precedes
// any block structure.
func (c *Cursor) ReadBytes(n int) ([]byte, error) {
	out := make([]byte, n)
	for i := range out {
		b, err := c.Read(8)
		if err != nil {
			return nil, err
		}
		out[i] = byte(b)
	}
	return out, nil
}

func (c *Cursor) align32() error {
	next := (c.pos + 31) &^ 31
	if next > c.end {
		return ErrStreamEOF
	}
	c.pos = next
	return nil
}

// Advance moves to the next entry of the current block. At depth zero with
// the input exhausted it reports EntryEndBlock for the end of the stream.
//
// A SubBlock entry must be followed by EnterSubBlock or SkipBlock, a Record
// entry by ReadRecord.
func (c *Cursor) Advance() (Entry, error) {
	if c.pending != pendingNone {
		return Entry{}, fmt.Errorf("%w: previous entry not consumed", ErrNotPositioned)
	}
	if len(c.scopes) == 0 && c.AtEnd() {
		return Entry{Kind: EntryEndBlock}, nil
	}
	code, err := c.Read(c.abbrevWidth)
	if err != nil {
		return Entry{}, err
	}
	switch code {
	case EndBlockAbbrev:
		if len(c.scopes) == 0 {
			return Entry{}, fmt.Errorf("%w: end of block at top level", ErrNotPositioned)
		}
		if err := c.align32(); err != nil {
			return Entry{}, err
		}
		s := c.scopes[len(c.scopes)-1]
		if c.pos != s.end {
			return Entry{}, fmt.Errorf("%w: block ends at bit %d, header says %d", ErrBlockLength, c.pos, s.end)
		}
		c.scopes = c.scopes[:len(c.scopes)-1]
		c.abbrevWidth = s.outerWidth
		return Entry{Kind: EntryEndBlock}, nil
	case EnterSubblockAbbrev:
		id, err := c.ReadVBR(8)
		if err != nil {
			return Entry{}, err
		}
		if id > math.MaxUint32 {
			return Entry{}, ErrStreamOverrun
		}
		c.pending, c.pendingID = pendingSubBlock, uint32(id)
		return Entry{Kind: EntrySubBlock, ID: uint32(id)}, nil
	default:
		c.pending, c.pendingID = pendingRecord, uint32(code)
		return Entry{Kind: EntryRecord, ID: uint32(code)}, nil
	}
}

// readBlockHeader consumes the rest of a sub-block header and returns the new
// abbreviation width and the bit offset just past the block.
func (c *Cursor) readBlockHeader() (uint, uint64, error) {
	width, err := c.ReadVBR(4)
	if err != nil {
		return 0, 0, err
	}
	if width == 0 || width > maxAbbrevWidth {
		return 0, 0, fmt.Errorf("%w: abbreviation width %d", ErrStreamOverrun, width)
	}
	if err := c.align32(); err != nil {
		return 0, 0, err
	}
	words, err := c.Read(32)
	if err != nil {
		return 0, 0, err
	}
	end := c.pos + words*32
	if end > c.end {
		return 0, 0, ErrStreamEOF
	}
	return uint(width), end, nil
}

// EnterSubBlock enters the sub-block the last Advance reported. It fails if
// that entry was not a sub-block with the given id.
func (c *Cursor) EnterSubBlock(id uint32) error {
	if c.pending != pendingSubBlock || c.pendingID != id {
		return fmt.Errorf("%w: want sub-block %d", ErrNotPositioned, id)
	}
	c.pending = pendingNone
	width, end, err := c.readBlockHeader()
	if err != nil {
		return err
	}
	c.scopes = append(c.scopes, scope{outerWidth: c.abbrevWidth, end: end})
	c.abbrevWidth = width
	return nil
}

// SkipBlock jumps over the sub-block the last Advance reported.
func (c *Cursor) SkipBlock() error {
	if c.pending != pendingSubBlock {
		return fmt.Errorf("%w: no sub-block to skip", ErrNotPositioned)
	}
	c.pending = pendingNone
	_, end, err := c.readBlockHeader()
	if err != nil {
		return err
	}
	c.pos = end
	return nil
}

// ReadRecord reads the unabbreviated record the last Advance reported and
// returns its code and operands.
func (c *Cursor) ReadRecord() (uint32, []uint64, error) {
	if c.pending != pendingRecord {
		return 0, nil, fmt.Errorf("%w: no record to read", ErrNotPositioned)
	}
	abbrev := c.pendingID
	c.pending = pendingNone
	if abbrev != UnabbrevRecord {
		return 0, nil, fmt.Errorf("%w: abbreviation id %d", ErrAbbreviatedRecord, abbrev)
	}
	code, err := c.ReadVBR(6)
	if err != nil {
		return 0, nil, err
	}
	if code > math.MaxUint32 {
		return 0, nil, ErrStreamOverrun
	}
	n, err := c.ReadVBR(6)
	if err != nil {
		return 0, nil, err
	}
	// Every operand takes at least one 6-bit chunk.
	if n > (c.end-c.pos)/6 {
		return 0, nil, ErrStreamEOF
	}
	ops := make([]uint64, n)
	for i := range ops {
		if ops[i], err = c.ReadVBR(6); err != nil {
			return 0, nil, err
		}
	}
	return uint32(code), ops, nil
}
