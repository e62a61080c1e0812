package genotype

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gvzproj/gvz/internal/bitio"
	"github.com/gvzproj/gvz/rangecoder"
)

func randomGrid(r *rand.Rand, noSamples, ploidy int) []uint32 {
	grid := make([]uint32, noSamples*ploidy)
	for i := range grid {
		switch r.Intn(10) {
		case 0:
			grid[i] = missingAllele
		default:
			grid[i] = uint32(r.Intn(3))
		}
	}
	return grid
}

func TestEncodeRowDecodeRowRoundtrip(t *testing.T) {
	const noSamples, ploidy, neglectLimit = 6, 2, 20
	const maxVal = 1 << 16

	r := rand.New(rand.NewSource(7))
	var rows [][]uint32
	for i := 0; i < 50; i++ {
		rows = append(rows, randomGrid(r, noSamples, ploidy))
	}

	w := bitio.NewWriter()
	enc := rangecoder.NewEncoder(w)
	enc.Start()
	encCodec := NewCodec(noSamples, ploidy, neglectLimit, maxVal)
	for _, row := range rows {
		encCodec.EncodeRow(enc, row)
	}
	enc.End()

	dec := rangecoder.NewDecoder(bitio.NewReader(w.Bytes()))
	require.NoError(t, dec.Start())
	decCodec := NewCodec(noSamples, ploidy, neglectLimit, maxVal)
	for i, want := range rows {
		got, err := decCodec.DecodeRow(dec)
		require.NoError(t, err, "row %d", i)
		require.Equal(t, want, got, "row %d", i)
	}
}

func TestEncodeRowDecodeRowAllMissing(t *testing.T) {
	const noSamples, ploidy, neglectLimit = 4, 2, 20
	const maxVal = 1 << 16

	row := make([]uint32, noSamples*ploidy)
	for i := range row {
		row[i] = missingAllele
	}

	w := bitio.NewWriter()
	enc := rangecoder.NewEncoder(w)
	enc.Start()
	encCodec := NewCodec(noSamples, ploidy, neglectLimit, maxVal)
	encCodec.EncodeRow(enc, row)
	enc.End()

	dec := rangecoder.NewDecoder(bitio.NewReader(w.Bytes()))
	require.NoError(t, dec.Start())
	decCodec := NewCodec(noSamples, ploidy, neglectLimit, maxVal)
	got, err := decCodec.DecodeRow(dec)
	require.NoError(t, err)
	require.Equal(t, row, got)
}
