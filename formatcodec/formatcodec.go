// Package formatcodec implements the dictionary+context range coder
// shared by FORMAT and INFO columns: a table mapping 32-bit values
// (ints, or float bit patterns) to assigned codes, with a binary
// "known vs plain" decision ahead of each value and a context-mixed
// byte-plane coding of whichever form is chosen.
//
// Grounded on rangecoder and contextmap; the context-mixing shape
// (previous rows/samples folded into a 64-bit tag feeding one model
// per byte-plane) follows the FORMAT "one" and INFO "one" linear-
// context recipes.
package formatcodec

import (
	"github.com/gvzproj/gvz/contextmap"
	"github.com/gvzproj/gvz/entropy"
	"github.com/gvzproj/gvz/gvzerr"
	"github.com/gvzproj/gvz/rangecoder"
)

// emptySentinel is the reserved hash-table sentinel value; it is
// always coded via the plain path, never added to the dictionary.
const emptySentinel uint32 = 0x7fffffff

func binParams() entropy.Params  { return entropy.Params{Alphabet: 2, LogCounter: 14, Adder: 16} }
func byteParams() entropy.Params { return entropy.Params{Alphabet: 256, LogCounter: 16, Adder: 24} }

// Dict maps 32-bit values to assigned codes in first-seen order, the
// "known vs plain" dictionary scheme described above.
type Dict struct {
	codeOf map[uint32]uint32
	values []uint32 // value at index = its code
}

// NewDict creates an empty dictionary.
func NewDict() *Dict {
	return &Dict{codeOf: make(map[uint32]uint32)}
}

// Lookup returns the code for v and whether it is already known.
func (d *Dict) Lookup(v uint32) (uint32, bool) {
	c, ok := d.codeOf[v]
	return c, ok
}

// Assign records a new value, returning its freshly assigned code.
func (d *Dict) Assign(v uint32) uint32 {
	code := uint32(len(d.values))
	d.codeOf[v] = code
	d.values = append(d.values, v)
	return code
}

// Value returns the value assigned to code.
func (d *Dict) Value(code uint32) (uint32, bool) {
	if int(code) >= len(d.values) {
		return 0, false
	}
	return d.values[code], true
}

// Size returns the number of distinct values assigned a code.
func (d *Dict) Size() int { return len(d.values) }

// codeBytes returns the minimum number of byte-planes needed to
// represent a code under the dictionary's current size, matching
// "a code of log2(dict_size) bytes through up to four byte-planes".
func codeBytes(dictSize int) int {
	n := 1
	for (1 << (8 * n)) < dictSize && n < 4 {
		n++
	}
	return n
}

// Models bundles the per-column entropy-model state: one binary
// known/plain model, a second binary model for FORMAT "many"'s
// per-sample "same as previous row" flag, and four byte-plane
// contextmaps (new-value path and known-value path each address their
// own plane models).
type Models struct {
	known     *contextmap.Map[rangecoder.Model]
	same      *contextmap.Map[rangecoder.Model]
	planeNew  [4]*contextmap.Map[rangecoder.Model]
	planeKnwn [4]*contextmap.Map[rangecoder.Model]
}

// NewModels creates an empty model set for one column.
func NewModels() *Models {
	m := &Models{
		known: contextmap.New[rangecoder.Model](),
		same:  contextmap.New[rangecoder.Model](),
	}
	for i := range m.planeNew {
		m.planeNew[i] = contextmap.New[rangecoder.Model]()
		m.planeKnwn[i] = contextmap.New[rangecoder.Model]()
	}
	return m
}

func getOrInsertModel(m *contextmap.Map[rangecoder.Model], ctx uint64, p entropy.Params) rangecoder.Model {
	return m.GetOrInsert(ctx, func() rangecoder.Model { return entropy.NewAdjustableEmbedded(p) })
}

// Codec is the shared encode/decode machinery for one column's values,
// used by both the INFO and FORMAT entry points.
type Codec struct {
	Dict   *Dict
	Models *Models
}

// NewCodec creates an empty codec for one column.
func NewCodec() *Codec {
	return &Codec{Dict: NewDict(), Models: NewModels()}
}

// EncodeValue encodes one 32-bit value under context ctx.
func (c *Codec) EncodeValue(enc *rangecoder.Encoder, ctx uint64, v uint32) {
	if v == emptySentinel {
		c.encodeKnownFlag(enc, ctx, false)
		c.encodeNewValue(enc, ctx, v)
		return
	}

	if code, ok := c.Dict.Lookup(v); ok {
		c.encodeKnownFlag(enc, ctx, true)
		c.encodeKnownCode(enc, ctx, code)
		return
	}

	c.encodeKnownFlag(enc, ctx, false)
	c.encodeNewValue(enc, ctx, v)
	c.Dict.Assign(v)
}

// encodeSameFlag encodes FORMAT "many"'s per-sample "this entry is
// byte-identical to the previous row's" flag.
func (c *Codec) encodeSameFlag(enc *rangecoder.Encoder, ctx uint64, same bool) {
	m := getOrInsertModel(c.Models.same, ctx, binParams())
	sym := 0
	if same {
		sym = 1
	}
	enc.EncodeSymbol(m, sym)
}

// decodeSameFlag mirrors encodeSameFlag.
func (c *Codec) decodeSameFlag(dec *rangecoder.Decoder, ctx uint64) (bool, error) {
	m := getOrInsertModel(c.Models.same, ctx, binParams())
	sym, err := dec.DecodeSymbol(m)
	if err != nil {
		return false, err
	}
	return sym == 1, nil
}

func (c *Codec) encodeKnownFlag(enc *rangecoder.Encoder, ctx uint64, known bool) {
	m := getOrInsertModel(c.Models.known, ctx, binParams())
	sym := 0
	if known {
		sym = 1
	}
	enc.EncodeSymbol(m, sym)
}

func (c *Codec) encodeNewValue(enc *rangecoder.Encoder, ctx uint64, v uint32) {
	prev := byte(0)
	for plane := 0; plane < 4; plane++ {
		b := byte(v >> (8 * (3 - plane)))
		pctx := ctx ^ uint64(plane)<<56 ^ uint64(prev)<<16
		m := getOrInsertModel(c.Models.planeNew[plane], pctx, byteParams())
		enc.EncodeSymbol(m, int(b))
		prev = b
	}
}

func (c *Codec) encodeKnownCode(enc *rangecoder.Encoder, ctx uint64, code uint32) {
	n := codeBytes(c.Dict.Size())
	prev := byte(0)
	for plane := 0; plane < n; plane++ {
		b := byte(code >> (8 * (n - 1 - plane)))
		pctx := ctx ^ uint64(plane)<<56 ^ uint64(prev)<<16
		m := getOrInsertModel(c.Models.planeKnwn[plane], pctx, byteParams())
		enc.EncodeSymbol(m, int(b))
		prev = b
	}
}

// DecodeValue decodes one 32-bit value under context ctx, mirroring
// EncodeValue exactly.
func (c *Codec) DecodeValue(dec *rangecoder.Decoder, ctx uint64) (uint32, error) {
	m := getOrInsertModel(c.Models.known, ctx, binParams())
	sym, err := dec.DecodeSymbol(m)
	if err != nil {
		return 0, err
	}

	if sym == 0 {
		v, err := c.decodeNewValue(dec, ctx)
		if err != nil {
			return 0, err
		}
		if v != emptySentinel {
			c.Dict.Assign(v)
		}
		return v, nil
	}

	code, err := c.decodeKnownCode(dec, ctx)
	if err != nil {
		return 0, err
	}
	v, ok := c.Dict.Value(code)
	if !ok {
		return 0, gvzerr.ErrCorruptInput
	}
	return v, nil
}

func (c *Codec) decodeNewValue(dec *rangecoder.Decoder, ctx uint64) (uint32, error) {
	var v uint32
	prev := byte(0)
	for plane := 0; plane < 4; plane++ {
		pctx := ctx ^ uint64(plane)<<56 ^ uint64(prev)<<16
		m := getOrInsertModel(c.Models.planeNew[plane], pctx, byteParams())
		sym, err := dec.DecodeSymbol(m)
		if err != nil {
			return 0, err
		}
		v = v<<8 | uint32(sym)
		prev = byte(sym)
	}
	return v, nil
}

func (c *Codec) decodeKnownCode(dec *rangecoder.Decoder, ctx uint64) (uint32, error) {
	n := codeBytes(c.Dict.Size())
	var code uint32
	prev := byte(0)
	for plane := 0; plane < n; plane++ {
		pctx := ctx ^ uint64(plane)<<56 ^ uint64(prev)<<16
		m := getOrInsertModel(c.Models.planeKnwn[plane], pctx, byteParams())
		sym, err := dec.DecodeSymbol(m)
		if err != nil {
			return 0, err
		}
		code = code<<8 | uint32(sym)
		prev = byte(sym)
	}
	return code, nil
}
