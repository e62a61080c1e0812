// Package column implements ColumnBuffer, the per-column accumulator of
// typed cells that feeds the codec pipeline, plus the Cell/Key/Variant
// data-model types shared across the archive.
package column

import "github.com/gvzproj/gvz/gvzerr"

// Kind identifies which of FILTER/INFO/FORMAT a Key belongs to.
type Kind byte

const (
	KindFilter Kind = 0
	KindInfo   Kind = 1
	KindFormat Kind = 2
)

// ValueType identifies a Key's payload shape.
type ValueType byte

const (
	ValueFlag   ValueType = 0
	ValueInt    ValueType = 1
	ValueReal   ValueType = 2
	ValueString ValueType = 3
)

// Key describes one declared FILTER/INFO/FORMAT column.
type Key struct {
	KeyID     int
	Kind      Kind
	ValueType ValueType
	// IsGenotype marks the distinguished FORMAT key that carries allele
	// calls; at most one Key in a table may set this.
	IsGenotype bool
}

// Variant is the fixed descriptive tuple for one genomic site.
type Variant struct {
	Chrom string
	Pos   int64
	ID    string
	Ref   string
	Alt   string
	Qual  string
}

// Cell is the value for one (variant, key) pair.
type Cell struct {
	Present bool
	Payload []byte
	Count   uint32
}

// CellType selects which append rule a Cell follows in a ColumnBuffer.
type CellType int

const (
	CellFlag CellType = iota
	CellInt
	CellIntVarsize
	CellInt64Delta // pos-delta only
	CellReal
	CellText
)

// Mode selects whether a ColumnBuffer accumulates bytes (encode side)
// or serves as a source→destination byte mapping (decode-side "function"
// mode, used when GraphOptimizer has linked a column to another).
type Mode int

const (
	ModeAccumulate Mode = iota
	ModeFunction
)

// Buffer accumulates typed cells until full, as two parallel vectors:
// sizes (one entry per cell) and data (the cells' payload bytes).
type Buffer struct {
	CellType CellType
	MaxSize  int

	sizes []byte
	data  []byte

	mode    Mode
	fnTable map[uint32]uint32 // function mode: source byte value -> dest byte value (index use only)
}

// NewBuffer creates an empty accumulate-mode buffer for the given cell
// type, flushing once data-bytes + 4*len(sizes) reaches maxSize.
func NewBuffer(ct CellType, maxSize int) *Buffer {
	return &Buffer{CellType: ct, MaxSize: maxSize}
}

// AppendFlag appends a 0/1 flag cell: a single size-vector byte, no data.
func (b *Buffer) AppendFlag(v bool) {
	if v {
		b.sizes = append(b.sizes, 1)
	} else {
		b.sizes = append(b.sizes, 0)
	}
}

// AppendInt appends count 32-bit little-endian integers.
func (b *Buffer) AppendInt(values []int32) {
	appendVarintSize(&b.sizes, len(values))
	for _, v := range values {
		appendLE32(&b.data, uint32(v))
	}
}

// AppendIntVarsize appends count int32s using the variable-length code
// described in EncodeVarint32.
func (b *Buffer) AppendIntVarsize(values []int32) {
	appendVarintSize(&b.sizes, len(values))
	for _, v := range values {
		b.data = EncodeVarint32(b.data, v)
	}
}

// AppendInt64Delta appends one signed 64-bit delta value using the
// byte_count*2+sign_bit size-vector encoding.
func (b *Buffer) AppendInt64Delta(delta int64) {
	neg := delta < 0
	mag := delta
	if neg {
		mag = -mag
	}
	var be []byte
	v := uint64(mag)
	for v > 0 {
		be = append([]byte{byte(v)}, be...)
		v >>= 8
	}
	if len(be) == 0 {
		be = []byte{0}
	}
	sign := byte(0)
	if neg {
		sign = 1
	}
	b.sizes = append(b.sizes, byte(len(be))*2+sign)
	b.data = append(b.data, be...)
}

// AppendReal appends count 32-bit float bit-patterns.
func (b *Buffer) AppendReal(bits []uint32) {
	appendVarintSize(&b.sizes, len(bits))
	for _, v := range bits {
		appendLE32(&b.data, v)
	}
}

// AppendText appends count raw text bytes.
func (b *Buffer) AppendText(text []byte) {
	appendVarintSize(&b.sizes, len(text))
	b.data = append(b.data, text...)
}

// IsFull reports whether the buffer has reached its configured size
// threshold: data-bytes + 4*size-entries >= maxSize.
func (b *Buffer) IsFull() bool {
	return len(b.data)+4*len(b.sizes) >= b.MaxSize
}

// Sizes returns the accumulated size vector.
func (b *Buffer) Sizes() []byte { return b.sizes }

// Data returns the accumulated data vector.
func (b *Buffer) Data() []byte { return b.data }

// NumCells returns the size vector's length in bytes. That equals the
// number of cells appended while every size entry is one byte (flag and
// int64-delta cells, and other cells with fewer than 125 values); a
// cell whose count needs a multi-byte size entry is counted once per
// byte.
func (b *Buffer) NumCells() int { return len(b.sizes) }

// Reset clears the buffer for reuse after a flush.
func (b *Buffer) Reset() {
	b.sizes = b.sizes[:0]
	b.data = b.data[:0]
}

// SetFunction switches the buffer into decode-side "function" mode,
// where reads return values mapped from a source column's bytes rather
// than bytes owned by this buffer.
func (b *Buffer) SetFunction(fn map[uint32]uint32) {
	b.mode = ModeFunction
	b.fnTable = fn
}

// Lookup returns the mapped destination value for a source value,
// valid only in function mode.
func (b *Buffer) Lookup(sourceValue uint32) (uint32, error) {
	if b.mode != ModeFunction {
		return 0, gvzerr.ErrProtocolError
	}
	v, ok := b.fnTable[sourceValue]
	if !ok {
		return 0, gvzerr.ErrCorruptInput
	}
	return v, nil
}

func appendVarintSize(sizes *[]byte, count int) {
	*sizes = EncodeVarint32(*sizes, int32(count))
}

func appendLE32(dst *[]byte, v uint32) {
	*dst = append(*dst, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}
