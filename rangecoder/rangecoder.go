// Package rangecoder implements a carry-less range coder over a 64-bit
// state, as used by every entropy-coded stream in the archive.
//
// The arithmetic mirrors the classic Subbotin-style carry-less range
// coder: low/range renormalize whenever range drops to or below TOP,
// emitting one byte per renormalization step and patching range to
// avoid carry propagation whenever low and low+range disagree in their
// top byte.
package rangecoder

import (
	"github.com/gvzproj/gvz/gvzerr"
	"github.com/gvzproj/gvz/internal/bitio"
)

const (
	// Top is the renormalization threshold: range is kept above Top.
	Top uint64 = 0x00ff_ffff_ffff_ffff
	// mask64 isolates the top byte of a 64-bit low/range value.
	mask64 uint64 = 0xff00_0000_0000_0000
	// shift is the renormalization byte shift.
	shift = 8
)

// Model is the uniform interface every entropy model flavor exposes so
// range coders stay polymorphic over the concrete model kind.
type Model interface {
	// GetFreq returns (symFreq, cumFreq, total) for symbol.
	GetFreq(symbol int) (symFreq, cumFreq, total uint32)
	// Update folds one more occurrence of symbol into the model.
	Update(symbol int)
	// GetSym returns the symbol whose cumulative range contains cumFreq.
	GetSym(cumFreq uint32) int
	// GetTotal returns the model's current total frequency.
	GetTotal() uint32
}

// Encoder is a carry-less range encoder writing to a bitio.Writer.
type Encoder struct {
	out   *bitio.Writer
	low   uint64
	rng   uint64
	begun bool
}

// NewEncoder creates an encoder over out. Call Start before encoding.
func NewEncoder(out *bitio.Writer) *Encoder {
	return &Encoder{out: out}
}

// Start resets the encoder state. Must be called once before the first
// EncodeFrequency call.
func (e *Encoder) Start() {
	e.low = 0
	e.rng = mask64
	e.begun = true
}

// EncodeFrequency encodes one symbol described by (symFreq, cumFreq, total).
func (e *Encoder) EncodeFrequency(symFreq, cumFreq, total uint32) {
	if !e.begun {
		e.Start()
	}
	e.rng /= uint64(total)
	e.low += e.rng * uint64(cumFreq)
	e.rng *= uint64(symFreq)

	for e.rng <= Top {
		if (e.low ^ (e.low + e.rng)) & mask64 != 0 {
			r := e.low
			e.rng = (r | Top) - r
		}
		e.out.PutByte(byte(e.low >> 56))
		e.low <<= shift
		e.rng <<= shift
	}
}

// End flushes the final 8 bytes of encoder state. Must be called exactly
// once after the last EncodeFrequency call.
func (e *Encoder) End() {
	for i := 0; i < 8; i++ {
		e.out.PutByte(byte(e.low >> 56))
		e.low <<= shift
	}
}

// Decoder is a carry-less range decoder reading from a bitio.Reader.
type Decoder struct {
	in     *bitio.Reader
	low    uint64
	rng    uint64
	buffer uint64
	begun  bool
}

// NewDecoder creates a decoder over in. Call Start before decoding.
func NewDecoder(in *bitio.Reader) *Decoder {
	return &Decoder{in: in}
}

// Start primes the decoder by reading the first 8 bytes of state. It is
// a no-op (matching the source) when fewer than 8 bytes are available,
// which only legitimately happens for an empty encoded stream.
func (d *Decoder) Start() error {
	d.begun = true
	if d.in.Size() < 8 {
		return nil
	}
	var buffer uint64
	for i := 1; i <= 8; i++ {
		b, err := d.in.GetByte()
		if err != nil {
			return gvzerr.ErrCorruptInput
		}
		buffer |= uint64(b) << uint(64-i*8)
	}
	d.buffer = buffer
	d.low = 0
	d.rng = mask64
	return nil
}

// GetCumulativeFreq returns the cumulative frequency position for the
// next symbol, given the model's total. The caller must follow with a
// call to the model's GetSym and then UpdateFrequency.
func (d *Decoder) GetCumulativeFreq(total uint32) uint32 {
	if !d.begun {
		d.Start() //nolint:errcheck // Start only fails on genuinely corrupt streams, surfaced via subsequent reads
	}
	d.rng /= uint64(total)
	return uint32(d.buffer / d.rng)
}

// UpdateFrequency advances decoder state after a symbol has been
// identified from GetCumulativeFreq.
func (d *Decoder) UpdateFrequency(symFreq, cumFreq uint32) error {
	r := uint64(cumFreq) * d.rng
	d.buffer -= r
	d.low += r
	d.rng *= uint64(symFreq)

	for d.rng <= Top {
		if (d.low^(d.low+d.rng))&mask64 != 0 {
			r := d.low
			d.rng = (r | Top) - r
		}
		b, err := d.in.GetByte()
		if err != nil {
			return gvzerr.ErrCorruptInput
		}
		d.buffer = (d.buffer << shift) + uint64(b)
		d.low <<= shift
		d.rng <<= shift
	}
	return nil
}

// DecodeSymbol decodes one symbol against model m, combining
// GetCumulativeFreq, the model's GetSym, UpdateFrequency, and the
// model's own Update (mirroring CRangeCoderModel::Decode).
func (d *Decoder) DecodeSymbol(m Model) (int, error) {
	cum := d.GetCumulativeFreq(m.GetTotal())
	sym := m.GetSym(cum)
	symFreq, cumFreq, _ := m.GetFreq(sym)
	if err := d.UpdateFrequency(symFreq, cumFreq); err != nil {
		return 0, err
	}
	m.Update(sym)
	return sym, nil
}

// EncodeSymbol encodes one symbol against model m and updates it
// (mirroring CRangeCoderModel::Encode).
func (e *Encoder) EncodeSymbol(m Model, symbol int) {
	symFreq, cumFreq, total := m.GetFreq(symbol)
	e.EncodeFrequency(symFreq, cumFreq, total)
	m.Update(symbol)
}
