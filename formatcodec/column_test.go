package formatcodec

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gvzproj/gvz/internal/bitio"
	"github.com/gvzproj/gvz/rangecoder"
)

func TestEncodeFormatOneRoundtrip(t *testing.T) {
	const noSamples = 4
	r := rand.New(rand.NewSource(1))
	rows := make([][]uint32, 50)
	for i := range rows {
		row := make([]uint32, noSamples)
		for j := range row {
			row[j] = uint32(r.Intn(8))
		}
		rows[i] = row
	}

	w := bitio.NewWriter()
	enc := rangecoder.NewEncoder(w)
	enc.Start()
	NewCodec().EncodeFormatOne(enc, rows, noSamples)
	enc.End()

	dec := rangecoder.NewDecoder(bitio.NewReader(w.Bytes()))
	require.NoError(t, dec.Start())
	got, err := NewCodec().DecodeFormatOne(dec, len(rows), noSamples)
	require.NoError(t, err)
	require.Equal(t, rows, got)
}

func TestEncodeFormatManyRoundtripVaryingItemCounts(t *testing.T) {
	const noSamples = 3
	itemsPerRow := []int{2, 2, 1, 3, 1, 1}
	rows := make([][]uint32, len(itemsPerRow))
	r := rand.New(rand.NewSource(2))
	for i, items := range itemsPerRow {
		row := make([]uint32, noSamples*items)
		for j := range row {
			row[j] = uint32(r.Intn(5))
		}
		rows[i] = row
	}
	// Make row 5 byte-identical to row 4 (both single-item) to exercise
	// the "same as previous row" short-circuit.
	rows[5] = append([]uint32(nil), rows[4]...)

	w := bitio.NewWriter()
	enc := rangecoder.NewEncoder(w)
	enc.Start()
	NewCodec().EncodeFormatMany(enc, rows, itemsPerRow, noSamples)
	enc.End()

	dec := rangecoder.NewDecoder(bitio.NewReader(w.Bytes()))
	require.NoError(t, dec.Start())
	got, err := NewCodec().DecodeFormatMany(dec, itemsPerRow, noSamples)
	require.NoError(t, err)
	require.Equal(t, rows, got)
}

func TestEncodeInfoOneRoundtrip(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	values := make([]uint32, 80)
	for i := range values {
		values[i] = uint32(r.Intn(10))
	}

	w := bitio.NewWriter()
	enc := rangecoder.NewEncoder(w)
	enc.Start()
	order := EstimateOrder(values)
	NewCodec().EncodeInfoOne(enc, values, order)
	enc.End()

	dec := rangecoder.NewDecoder(bitio.NewReader(w.Bytes()))
	require.NoError(t, dec.Start())
	got, err := NewCodec().DecodeInfoOne(dec, len(values), order)
	require.NoError(t, err)
	require.Equal(t, values, got)
}

func TestEncodeInfoConstantRoundtrip(t *testing.T) {
	const s = 3
	r := rand.New(rand.NewSource(4))
	grid := make([][]uint32, 30)
	for i := range grid {
		row := make([]uint32, s)
		for j := range row {
			row[j] = uint32(r.Intn(6))
		}
		grid[i] = row
	}

	candidate := EstimateConstantCandidate(grid, s)

	w := bitio.NewWriter()
	enc := rangecoder.NewEncoder(w)
	enc.Start()
	NewCodec().EncodeInfoConstant(enc, grid, s, candidate)
	enc.End()

	dec := rangecoder.NewDecoder(bitio.NewReader(w.Bytes()))
	require.NoError(t, dec.Start())
	got, err := NewCodec().DecodeInfoConstant(dec, len(grid), s, candidate)
	require.NoError(t, err)
	require.Equal(t, grid, got)
}

func TestEstimateConstantCandidateInRange(t *testing.T) {
	grid := [][]uint32{{1, 2, 3}, {1, 2, 3}, {1, 2, 4}}
	cand := EstimateConstantCandidate(grid, 3)
	require.True(t, cand >= 0 && cand < 9)
}
