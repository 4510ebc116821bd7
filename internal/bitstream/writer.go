package bitstream

import "encoding/binary"

type openBlock struct {
	outerWidth uint
	sizeOffset int // byte offset of the length word
}

// Writer produces a bit container readable by Cursor. Records are always
// written unabbreviated.
type Writer struct {
	buf         []byte
	nbits       uint64
	abbrevWidth uint
	blocks      []openBlock
}

// NewWriter creates an empty writer at top level.
func NewWriter() *Writer {
	return &Writer{abbrevWidth: TopLevelAbbrevWidth}
}

// AbbrevWidth returns the abbreviation width of the current block.
func (w *Writer) AbbrevWidth() uint { return w.abbrevWidth }

// Emit writes the low width bits of v.
func (w *Writer) Emit(v uint64, width uint) {
	for i := uint(0); i < width; i++ {
		if w.nbits&7 == 0 {
			w.buf = append(w.buf, 0)
		}
		if v>>i&1 != 0 {
			w.buf[len(w.buf)-1] |= 1 << (w.nbits & 7)
		}
		w.nbits++
	}
}

// EmitVBR writes v as a variable bit rate field of the given chunk width.
func (w *Writer) EmitVBR(v uint64, width uint) {
	hi := uint64(1) << (width - 1)
	for v >= hi {
		w.Emit(v&(hi-1)|hi, width)
		v >>= width - 1
	}
	w.Emit(v, width)
}

// EmitBytes writes raw bytes, eight bits each.
func (w *Writer) EmitBytes(b []byte) {
	for _, c := range b {
		w.Emit(uint64(c), 8)
	}
}

// Align32 pads with zero bits to the next 32-bit boundary.
func (w *Writer) Align32() {
	for w.nbits&31 != 0 {
		w.Emit(0, 1)
	}
}

// EnterSubblock opens a block. Its length is patched in by ExitBlock.
func (w *Writer) EnterSubblock(id uint32, abbrevWidth uint) {
	w.Emit(EnterSubblockAbbrev, w.abbrevWidth)
	w.EmitVBR(uint64(id), 8)
	w.EmitVBR(uint64(abbrevWidth), 4)
	w.Align32()
	w.blocks = append(w.blocks, openBlock{outerWidth: w.abbrevWidth, sizeOffset: len(w.buf)})
	w.Emit(0, 32)
	w.abbrevWidth = abbrevWidth
}

// ExitBlock closes the innermost open block.
func (w *Writer) ExitBlock() {
	w.Emit(EndBlockAbbrev, w.abbrevWidth)
	w.Align32()
	b := w.blocks[len(w.blocks)-1]
	w.blocks = w.blocks[:len(w.blocks)-1]
	words := (len(w.buf) - b.sizeOffset - 4) / 4
	binary.LittleEndian.PutUint32(w.buf[b.sizeOffset:], uint32(words))
	w.abbrevWidth = b.outerWidth
}

// EmitRecord writes an unabbreviated record.
func (w *Writer) EmitRecord(code uint32, vals ...uint64) {
	w.Emit(UnabbrevRecord, w.abbrevWidth)
	w.EmitVBR(uint64(code), 6)
	w.EmitVBR(uint64(len(vals)), 6)
	for _, v := range vals {
		w.EmitVBR(v, 6)
	}
}

// Bytes returns the encoded data. All blocks must be closed first.
func (w *Writer) Bytes() []byte { return w.buf }
