package genotype

import (
	"github.com/gvzproj/gvz/entropy"
	"github.com/gvzproj/gvz/gvzerr"
	"github.com/gvzproj/gvz/rangecoder"
)

const missingAllele uint32 = 0x80000001

// Codec drives one genotype column's PBWT + RLE range coding across
// successive variant rows.
type Codec struct {
	pbwt         *PBWT
	noSamples    int
	ploidy       int
	neglectLimit int
	maxVal       uint32

	ctxSymbol uint32
	ctxPrefix uint32

	symbolModels map[uint32]*entropy.AdjustableEmbedded
	prefixModels map[uint32]*entropy.Adjustable
	// lengthModels[prefix] keyed by (symbol,prefix) context for prefix in [2,10)
	lengthModels map[uint64]*entropy.Adjustable
	largeModels  [3]map[uint64]*entropy.Simple
}

// NewCodec creates a genotype codec for noSamples samples at the given
// ploidy, with neglectLimit controlling PBWT permutation stability.
// maxVal bounds the allele-value alphabet after the bias/missing
// transforms (see EncodeRow).
func NewCodec(noSamples, ploidy, neglectLimit int, maxVal uint32) *Codec {
	return &Codec{
		pbwt:         NewPBWT(noSamples*ploidy, neglectLimit),
		noSamples:    noSamples,
		ploidy:       ploidy,
		neglectLimit: neglectLimit,
		maxVal:       maxVal,
		ctxSymbol:    0xffffffff,
		ctxPrefix:    0xffffffff,
		symbolModels: make(map[uint32]*entropy.AdjustableEmbedded),
		prefixModels: make(map[uint32]*entropy.Adjustable),
		lengthModels: make(map[uint64]*entropy.Adjustable),
	}
	// largeModels is initialized lazily by largeModel.
}

func symbolParams() entropy.Params { return entropy.Params{Alphabet: 16, LogCounter: 10, Adder: 1} }
func prefixParams() entropy.Params { return entropy.Params{Alphabet: 11, LogCounter: 10, Adder: 1} }
func lengthParams(span uint32) entropy.Params {
	return entropy.Params{Alphabet: int(span), LogCounter: 12, Adder: 1}
}
func largeParams() entropy.Params { return entropy.Params{Alphabet: 256, LogCounter: 14, Adder: 1} }

func (c *Codec) symbolModel(ctx uint32) *entropy.AdjustableEmbedded {
	m, ok := c.symbolModels[ctx]
	if !ok {
		m = entropy.NewAdjustableEmbedded(symbolParams())
		c.symbolModels[ctx] = m
	}
	return m
}

func (c *Codec) prefixModel(ctx uint32) *entropy.Adjustable {
	m, ok := c.prefixModels[ctx]
	if !ok {
		m = entropy.NewAdjustable(prefixParams())
		c.prefixModels[ctx] = m
	}
	return m
}

func (c *Codec) lengthModel(key uint64, span uint32) *entropy.Adjustable {
	m, ok := c.lengthModels[key]
	if !ok {
		m = entropy.NewAdjustable(lengthParams(span))
		c.lengthModels[key] = m
	}
	return m
}

func (c *Codec) largeModel(plane int, key uint64) *entropy.Simple {
	if c.largeModels[plane] == nil {
		c.largeModels[plane] = make(map[uint64]*entropy.Simple)
	}
	m, ok := c.largeModels[plane][key]
	if !ok {
		m = entropy.NewSimple(largeParams())
		c.largeModels[plane][key] = m
	}
	return m
}

// biasAndRemap folds the phase bit of the first haplotype into the
// value space and remaps missing calls to 0, shifting every other
// value by +1. grid is sample-major,
// samples*ploidy wide.
func biasAndRemap(grid []uint32, noSamples, ploidy int) []uint32 {
	out := make([]uint32, len(grid))
	copy(out, grid)
	if ploidy > 1 {
		for s := 0; s < noSamples; s++ {
			h0 := s * ploidy
			h1 := h0 + 1
			if out[h1]&1 != 0 {
				out[h0]++
			}
		}
	}
	for i, v := range out {
		if v == missingAllele {
			out[i] = 0
		} else {
			out[i] = v + 1
		}
	}
	return out
}

func unbiasAndUnmap(flat []uint32, noSamples, ploidy int) []uint32 {
	out := make([]uint32, len(flat))
	for i, v := range flat {
		if v == 0 {
			out[i] = missingAllele
		} else {
			out[i] = v - 1
		}
	}
	if ploidy > 1 {
		for s := 0; s < noSamples; s++ {
			h0 := s * ploidy
			h1 := h0 + 1
			if out[h1]&1 != 0 {
				out[h0]--
			}
		}
	}
	return out
}

// sampleMajorToHaplotypeMajor reorders a sample-major grid into
// haplotype-major order: all of haplotype 0 first, then haplotype 1, etc.
func sampleMajorToHaplotypeMajor(grid []uint32, noSamples, ploidy int) []uint32 {
	out := make([]uint32, len(grid))
	for s := 0; s < noSamples; s++ {
		for h := 0; h < ploidy; h++ {
			out[h*noSamples+s] = grid[s*ploidy+h]
		}
	}
	return out
}

func haplotypeMajorToSampleMajor(flat []uint32, noSamples, ploidy int) []uint32 {
	out := make([]uint32, len(flat))
	for s := 0; s < noSamples; s++ {
		for h := 0; h < ploidy; h++ {
			out[s*ploidy+h] = flat[h*noSamples+s]
		}
	}
	return out
}

// EncodeRow transforms and range-codes one variant row's sample-major
// genotype grid (length noSamples*ploidy).
func (c *Codec) EncodeRow(enc *rangecoder.Encoder, grid []uint32) {
	biased := biasAndRemap(grid, c.noSamples, c.ploidy)
	flat := sampleMajorToHaplotypeMajor(biased, c.noSamples, c.ploidy)

	rle := c.pbwt.EncodeFlexible(c.maxVal, flat)
	rle = append(rle, RunLength{Symbol: 0, Length: 0}) // end-of-row sentinel

	c.ctxSymbol = 0xffffffff
	c.ctxPrefix = 0xffffffff

	for _, r := range rle {
		c.encodeSymbol(enc, r.Symbol)
		c.encodeLength(enc, r.Symbol, r.Length)
	}
}

// DecodeRow mirrors EncodeRow, reproducing one sample-major genotype
// grid from the coded stream.
func (c *Codec) DecodeRow(dec *rangecoder.Decoder) ([]uint32, error) {
	c.ctxSymbol = 0xffffffff
	c.ctxPrefix = 0xffffffff

	var rle []RunLength
	for {
		sym, err := c.decodeSymbol(dec)
		if err != nil {
			return nil, err
		}
		length, err := c.decodeLength(dec, sym)
		if err != nil {
			return nil, err
		}
		if length == 0 {
			break
		}
		rle = append(rle, RunLength{Symbol: sym, Length: length})
	}

	flat, err := c.pbwt.DecodeFlexible(c.maxVal, rle)
	if err != nil {
		return nil, err
	}
	if uint32(len(flat)) != uint32(c.noSamples*c.ploidy) {
		return nil, gvzerr.ErrCorruptInput
	}

	biased := haplotypeMajorToSampleMajor(flat, c.noSamples, c.ploidy)
	return unbiasAndUnmap(biased, c.noSamples, c.ploidy), nil
}

func (c *Codec) encodeSymbol(enc *rangecoder.Encoder, symbol uint32) {
	ctx := c.ctxSymbol
	clipped := symbol
	for {
		chunk := clipped
		if chunk > 14 {
			chunk = 15
		}
		m := c.symbolModel(ctx)
		enc.EncodeSymbol(m, int(chunk))
		if chunk < 15 {
			break
		}
		clipped -= 15
	}
	norm := symbol
	if norm > 15 {
		norm = 15
	}
	c.ctxSymbol = ((c.ctxSymbol << 4) | norm) & 0xffff
}

func (c *Codec) decodeSymbol(dec *rangecoder.Decoder) (uint32, error) {
	ctx := c.ctxSymbol
	var total uint32
	for {
		m := c.symbolModel(ctx)
		sym, err := dec.DecodeSymbol(m)
		if err != nil {
			return 0, err
		}
		total += uint32(sym)
		if sym < 15 {
			break
		}
	}
	norm := total
	if norm > 15 {
		norm = 15
	}
	c.ctxSymbol = ((c.ctxSymbol << 4) | norm) & 0xffff
	return total, nil
}

func ilog2(v uint32) int {
	n := 0
	for v > 0 {
		n++
		v >>= 1
	}
	return n
}

func (c *Codec) encodeLength(enc *rangecoder.Encoder, symbol, length uint32) {
	prefix := uint32(ilog2(length))
	if prefix > 10 {
		prefix = 10
	}

	pm := c.prefixModel(c.ctxPrefix)
	enc.EncodeSymbol(pm, int(prefix))

	switch {
	case prefix < 2:
		// length fully determined by prefix (0 or 1); nothing more to send.
	case prefix < 10:
		span := uint32(1) << (prefix - 1)
		key := uint64(symbol)<<32 | uint64(prefix)
		lm := c.lengthModel(key, span)
		enc.EncodeSymbol(lm, int(length-span))
	default:
		enc.EncodeSymbol(c.largeModel(0, uint64(symbol)), int(byte(length>>16)))
		enc.EncodeSymbol(c.largeModel(1, uint64(symbol)<<8|uint64(byte(length>>16))), int(byte(length>>8)))
		enc.EncodeSymbol(c.largeModel(2, uint64(symbol)<<16|uint64(uint16(length>>8))), int(byte(length)))
	}

	c.ctxPrefix = ((c.ctxPrefix << 4) | (symbol & 0xf)) & 0xfffff
	c.ctxPrefix = ((c.ctxPrefix << 4) | prefix) & 0xfffff
}

func (c *Codec) decodeLength(dec *rangecoder.Decoder, symbol uint32) (uint32, error) {
	pm := c.prefixModel(c.ctxPrefix)
	prefixSym, err := dec.DecodeSymbol(pm)
	if err != nil {
		return 0, err
	}
	prefix := uint32(prefixSym)

	var length uint32
	switch {
	case prefix < 2:
		length = prefix
	case prefix < 10:
		span := uint32(1) << (prefix - 1)
		key := uint64(symbol)<<32 | uint64(prefix)
		lm := c.lengthModel(key, span)
		delta, err := dec.DecodeSymbol(lm)
		if err != nil {
			return 0, err
		}
		length = span + uint32(delta)
	default:
		hi, err := dec.DecodeSymbol(c.largeModel(0, uint64(symbol)))
		if err != nil {
			return 0, err
		}
		mid, err := dec.DecodeSymbol(c.largeModel(1, uint64(symbol)<<8|uint64(byte(hi))))
		if err != nil {
			return 0, err
		}
		lo, err := dec.DecodeSymbol(c.largeModel(2, uint64(symbol)<<16|uint64(uint16(hi)<<8|uint16(mid))))
		if err != nil {
			return 0, err
		}
		length = uint32(hi)<<16 | uint32(mid)<<8 | uint32(lo)
	}

	c.ctxPrefix = ((c.ctxPrefix << 4) | (symbol & 0xf)) & 0xfffff
	c.ctxPrefix = ((c.ctxPrefix << 4) | prefix) & 0xfffff
	return length, nil
}
