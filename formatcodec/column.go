package formatcodec

import (
	"github.com/gvzproj/gvz/rangecoder"
)

// EncodeFormatOne encodes a FORMAT column where every row has exactly
// noSamples values ("FORMAT one"). rows[i][j] is the
// value for sample j of record i. The context for cell (i,j) mixes
// the previous two rows' codes at sample j and the previous sample's
// code in the current row, each truncated to 20 bits.
func (c *Codec) EncodeFormatOne(enc *rangecoder.Encoder, rows [][]uint32, noSamples int) {
	prevRow := make([]uint32, noSamples)
	prevPrevRow := make([]uint32, noSamples)

	for _, row := range rows {
		var rowPrev uint32
		for j := 0; j < noSamples; j++ {
			ctx := formatOneContext(prevRow[j], prevPrevRow[j], rowPrev)
			c.EncodeValue(enc, ctx, row[j])
			rowPrev = row[j]
		}
		prevPrevRow, prevRow = prevRow, append([]uint32(nil), row...)
	}
}

// DecodeFormatOne mirrors EncodeFormatOne for noRows rows.
func (c *Codec) DecodeFormatOne(dec *rangecoder.Decoder, noRows, noSamples int) ([][]uint32, error) {
	prevRow := make([]uint32, noSamples)
	prevPrevRow := make([]uint32, noSamples)
	rows := make([][]uint32, noRows)

	for i := 0; i < noRows; i++ {
		row := make([]uint32, noSamples)
		var rowPrev uint32
		for j := 0; j < noSamples; j++ {
			ctx := formatOneContext(prevRow[j], prevPrevRow[j], rowPrev)
			v, err := c.DecodeValue(dec, ctx)
			if err != nil {
				return nil, err
			}
			row[j] = v
			rowPrev = v
		}
		rows[i] = row
		prevPrevRow, prevRow = prevRow, row
	}
	return rows, nil
}

func formatOneContext(prevSameSample, prevPrevSameSample, prevSampleInRow uint32) uint64 {
	const mask20 = 1<<20 - 1
	return uint64(prevSameSample&mask20) | uint64(prevPrevSameSample&mask20)<<20 | uint64(prevSampleInRow&mask20)<<40
}

// EncodeFormatMany encodes a FORMAT column whose items-per-sample
// varies row to row ("FORMAT many", e.g. Number=R/G fields).
// rows[i] is the flat noSamples*itemsPerRow[i] array for record i,
// samples-major: sample j's items start at j*itemsPerRow[i]. When a
// row's item count matches the previous row's, a per-sample "same"
// flag lets an unchanged entry skip re-encoding entirely.
func (c *Codec) EncodeFormatMany(enc *rangecoder.Encoder, rows [][]uint32, itemsPerRow []int, noSamples int) {
	var prevRow []uint32
	prevItems := -1
	for ri, row := range rows {
		items := itemsPerRow[ri]
		sameShape := items == prevItems
		for j := 0; j < noSamples; j++ {
			same := sameShape && sampleEntryEqual(prevRow, row, j, items)
			c.encodeSameFlag(enc, formatManySameContext(j), same)
			if same {
				continue
			}
			for k := 0; k < items; k++ {
				ctx := formatManyContext(k, j)
				c.EncodeValue(enc, ctx, row[j*items+k])
			}
		}
		prevRow, prevItems = row, items
	}
}

// DecodeFormatMany mirrors EncodeFormatMany. itemsPerRow supplies each
// record's item count, carried alongside the size vector rather than
// by this codec.
func (c *Codec) DecodeFormatMany(dec *rangecoder.Decoder, itemsPerRow []int, noSamples int) ([][]uint32, error) {
	var prevRow []uint32
	prevItems := -1
	rows := make([][]uint32, len(itemsPerRow))
	for ri, items := range itemsPerRow {
		sameShape := items == prevItems
		row := make([]uint32, noSamples*items)
		for j := 0; j < noSamples; j++ {
			same, err := c.decodeSameFlag(dec, formatManySameContext(j))
			if err != nil {
				return nil, err
			}
			if same && sameShape {
				copy(row[j*items:(j+1)*items], prevRow[j*items:(j+1)*items])
				continue
			}
			for k := 0; k < items; k++ {
				ctx := formatManyContext(k, j)
				v, err := c.DecodeValue(dec, ctx)
				if err != nil {
					return nil, err
				}
				row[j*items+k] = v
			}
		}
		rows[ri] = row
		prevRow, prevItems = row, items
	}
	return rows, nil
}

func sampleEntryEqual(prevRow, row []uint32, j, items int) bool {
	if prevRow == nil || len(prevRow) < (j+1)*items {
		return false
	}
	a := prevRow[j*items : (j+1)*items]
	b := row[j*items : (j+1)*items]
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func formatManySameContext(j int) uint64 { return uint64(uint32(j)) }

// formatManyContext mixes item index k into the upper bits and, only
// for the first item of each sample, the sample index j.
func formatManyContext(k, j int) uint64 {
	ctx := uint64(uint32(k)) << 32
	if k == 0 {
		ctx |= uint64(uint32(j))
	}
	return ctx
}

// EncodeInfoOne encodes an INFO column with one value per record
// ("INFO one"): a 1/2/3-order linear context of 20-bit
// code windows. order is chosen ahead of time by the caller (via an
// entropy-estimation pass over the block); it is not written to the
// coded stream, so the caller records it alongside (codec keeps it in
// the part's metadata word) for the decoder to mirror.
func (c *Codec) EncodeInfoOne(enc *rangecoder.Encoder, values []uint32, order int) {
	hist := make([]uint32, order)
	for _, v := range values {
		ctx := infoOneContext(hist)
		c.EncodeValue(enc, ctx, v)
		copy(hist[1:], hist[:order-1])
		hist[0] = v
	}
}

// DecodeInfoOne mirrors EncodeInfoOne.
func (c *Codec) DecodeInfoOne(dec *rangecoder.Decoder, count, order int) ([]uint32, error) {
	hist := make([]uint32, order)
	values := make([]uint32, count)
	for i := 0; i < count; i++ {
		ctx := infoOneContext(hist)
		v, err := c.DecodeValue(dec, ctx)
		if err != nil {
			return nil, err
		}
		values[i] = v
		copy(hist[1:], hist[:order-1])
		hist[0] = v
	}
	return values, nil
}

// EncodeInfoConstant encodes an INFO column that carries exactly s
// values per record ("INFO constant s"), arranged as a rows-by-s grid
// (row i, position j). candidate selects one of the nine row-lag
// (none/above/two-above) by column-lag (none/left/two-left)
// combinations the caller picked via EstimateConstantCandidate.
func (c *Codec) EncodeInfoConstant(enc *rangecoder.Encoder, grid [][]uint32, s, candidate int) {
	rowLag, colLag := candidate/3, candidate%3
	for i, row := range grid {
		for j, v := range row {
			ctx := infoConstantContext(grid, i, j, rowLag, colLag)
			c.EncodeValue(enc, ctx, v)
		}
	}
}

// DecodeInfoConstant mirrors EncodeInfoConstant for a grid of rows
// rows, each s values wide.
func (c *Codec) DecodeInfoConstant(dec *rangecoder.Decoder, rows, s, candidate int) ([][]uint32, error) {
	rowLag, colLag := candidate/3, candidate%3
	grid := make([][]uint32, rows)
	for i := range grid {
		grid[i] = make([]uint32, s)
		for j := 0; j < s; j++ {
			ctx := infoConstantContext(grid, i, j, rowLag, colLag)
			v, err := c.DecodeValue(dec, ctx)
			if err != nil {
				return nil, err
			}
			grid[i][j] = v
		}
	}
	return grid, nil
}

func infoConstantContext(grid [][]uint32, i, j, rowLag, colLag int) uint64 {
	const mask20 = 1<<20 - 1
	var ctx uint64
	if rowLag >= 1 && i-rowLag >= 0 {
		ctx |= uint64(grid[i-rowLag][j] & mask20)
	}
	if colLag >= 1 && j-colLag >= 0 {
		ctx |= uint64(grid[i][j-colLag]&mask20) << 20
	}
	ctx |= uint64(uint32(j)&mask20) << 40
	return ctx
}

// EstimateConstantCandidate mirrors EstimateOrder: a one-time entropy
// estimate over the nine row/column-lag combinations, picking whichever
// produces the fewest distinct (context, value) pairs.
func EstimateConstantCandidate(grid [][]uint32, s int) int {
	best, bestCost := 0, estimateConstantCost(grid, 0)
	for cand := 1; cand < 9; cand++ {
		cost := estimateConstantCost(grid, cand)
		if cost < bestCost {
			best, bestCost = cand, cost
		}
	}
	return best
}

func estimateConstantCost(grid [][]uint32, candidate int) int {
	rowLag, colLag := candidate/3, candidate%3
	seen := make(map[uint64]struct{})
	cost := 0
	for i, row := range grid {
		for j, v := range row {
			ctx := infoConstantContext(grid, i, j, rowLag, colLag) ^ uint64(v)<<63
			if _, ok := seen[ctx]; !ok {
				seen[ctx] = struct{}{}
				cost++
			}
		}
	}
	return cost
}

func infoOneContext(hist []uint32) uint64 {
	const mask20 = 1<<20 - 1
	var ctx uint64
	for i, h := range hist {
		ctx |= uint64(h&mask20) << uint(20*i)
	}
	return ctx
}

// EstimateOrder runs a one-time entropy estimate over values to pick
// the linear-context order (1, 2, or 3) with the lowest estimated
// cost.
func EstimateOrder(values []uint32) int {
	bestOrder, bestCost := 1, estimateCost(values, 1)
	for order := 2; order <= 3; order++ {
		cost := estimateCost(values, order)
		if cost < bestCost {
			bestOrder, bestCost = order, cost
		}
	}
	return bestOrder
}

func estimateCost(values []uint32, order int) int {
	seen := make(map[uint64]struct{})
	hist := make([]uint32, order)
	cost := 0
	for _, v := range values {
		ctx := infoOneContext(hist) ^ uint64(v)<<63
		if _, ok := seen[ctx]; !ok {
			seen[ctx] = struct{}{}
			cost++
		}
		copy(hist[1:], hist[:order-1])
		hist[0] = v
	}
	return cost
}
