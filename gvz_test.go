package gvz

import (
	"math"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gvzproj/gvz/column"
	"github.com/gvzproj/gvz/record"
	"github.com/gvzproj/gvz/recordtest"
)

const (
	keyGenotype  = 0
	keyFormatGQ  = 1
	keyInfoDepth = 2
	keyFilterPA  = 3
	keyInfoAnno  = 4
)

// missingAlleleSentinel mirrors genotype.missingAllele (unexported):
// the allele value a genotype cell's per-sample payload uses to mark
// a missing call. A genotype cell itself is always Present — samples
// are never dropped at the whole-cell level, only individual alleles
// within it.
const missingAlleleSentinel = 0x80000001

func testKeys() []column.Key {
	return []column.Key{
		{KeyID: keyGenotype, Kind: column.KindFormat, ValueType: column.ValueInt, IsGenotype: true},
		{KeyID: keyFormatGQ, Kind: column.KindFormat, ValueType: column.ValueReal},
		{KeyID: keyInfoDepth, Kind: column.KindInfo, ValueType: column.ValueInt},
		{KeyID: keyFilterPA, Kind: column.KindFilter, ValueType: column.ValueFlag},
		{KeyID: keyInfoAnno, Kind: column.KindInfo, ValueType: column.ValueString},
	}
}

func u32sToPayload(vals []uint32) []byte {
	out := make([]byte, 4*len(vals))
	for i, v := range vals {
		out[4*i] = byte(v)
		out[4*i+1] = byte(v >> 8)
		out[4*i+2] = byte(v >> 16)
		out[4*i+3] = byte(v >> 24)
	}
	return out
}

func intsCell(vals ...int32) column.Cell {
	u := make([]uint32, len(vals))
	for i, v := range vals {
		u[i] = uint32(v)
	}
	return column.Cell{Present: true, Payload: u32sToPayload(u), Count: uint32(len(vals))}
}

// u32Cell builds a cell directly from allele grid values, for the
// genotype column, whose values (including the missing-allele
// sentinel) don't all fit in int32.
func u32Cell(vals ...uint32) column.Cell {
	return column.Cell{Present: true, Payload: u32sToPayload(vals), Count: uint32(len(vals))}
}

func realsCell(floats ...float32) column.Cell {
	bits := make([]uint32, len(floats))
	for i, f := range floats {
		bits[i] = math.Float32bits(f)
	}
	return column.Cell{Present: true, Payload: u32sToPayload(bits), Count: uint32(len(bits))}
}

func flagCell(v bool) column.Cell {
	return column.Cell{Present: v}
}

func textCell(s string) column.Cell {
	return column.Cell{Present: true, Payload: []byte(s), Count: uint32(len(s))}
}

func absentCell() column.Cell { return column.Cell{Present: false} }

// buildRows constructs a representative mix of variants: some with
// every column present, some with missing FORMAT/INFO cells, and one
// with a long annotation string (long enough to exercise TextPP in
// the generic path). Every genotype cell below carries exactly
// noSamples*ploidy=6 allele values, matching the fixed sample/ploidy
// configuration the test uses throughout.
func buildRows() []record.Row {
	return []record.Row{
		{
			Variant: column.Variant{Chrom: "chr1", Pos: 100, ID: "rs1", Ref: "A", Alt: "G", Qual: "60"},
			Cells: map[int]column.Cell{
				keyGenotype:  intsCell(0, 0, 0, 1, 1, 1),
				keyFormatGQ:  realsCell(10, 20, 30),
				keyInfoDepth: intsCell(42),
				keyFilterPA:  flagCell(true),
				keyInfoAnno:  textCell("PASS;simple"),
			},
		},
		{
			Variant: column.Variant{Chrom: "chr1", Pos: 205, ID: ".", Ref: "C", Alt: "T", Qual: "."},
			Cells: map[int]column.Cell{
				keyGenotype:  intsCell(1, 1, 0, 0, 1, 0),
				keyFormatGQ:  absentCell(),
				keyInfoDepth: absentCell(),
				keyFilterPA:  flagCell(false),
				keyInfoAnno:  absentCell(),
			},
		},
		{
			Variant: column.Variant{Chrom: "chr2", Pos: 5000, ID: "rs99", Ref: "G", Alt: "GA", Qual: "99"},
			Cells: map[int]column.Cell{
				keyGenotype:  intsCell(0, 1, 1, 1, 0, 0),
				keyFormatGQ:  realsCell(5, 5, 5),
				keyInfoDepth: intsCell(7),
				keyFilterPA:  flagCell(true),
				keyInfoAnno:  textCell("deep_intronic_variant_with_long_annotation_text_field_value_here_to_trigger_preprocessing"),
			},
		},
		{
			Variant: column.Variant{Chrom: "chr2", Pos: 5001, ID: "rs100", Ref: "T", Alt: "C,A", Qual: "12"},
			Cells: map[int]column.Cell{
				keyGenotype:  intsCell(2, 0, 0, 0, 2, 2),
				keyFormatGQ:  realsCell(1, 99, 0),
				keyInfoDepth: intsCell(1000),
				keyFilterPA:  flagCell(false),
				keyInfoAnno:  textCell("missense_variant"),
			},
		},
	}
}

func TestCompressDecompressRoundtrip(t *testing.T) {
	const noSamples, ploidy = 3, 2
	keys := testKeys()
	rows := buildRows()
	source := recordtest.NewMemSource(keys, noSamples, ploidy, rows)

	f, err := os.CreateTemp(t.TempDir(), "gvz-roundtrip-*")
	require.NoError(t, err)
	defer f.Close()

	params := DefaultParams
	params.Threads = 1
	params.Codec.RowsPerPart = 2

	require.NoError(t, Compress(source, f, params))

	fi, err := f.Stat()
	require.NoError(t, err)
	require.Greater(t, fi.Size(), int64(0))

	sink := recordtest.NewMemSink()
	require.NoError(t, Decompress(f, fi.Size(), sink, params))

	require.Equal(t, noSamples, sink.NoSamples)
	require.Equal(t, ploidy, sink.Ploidy)
	require.Len(t, sink.Keys, len(keys))
	require.Len(t, sink.Rows, len(rows))

	for i, want := range rows {
		got := sink.Rows[i]
		require.Equal(t, want.Variant, got.Variant, "row %d variant", i)
		for _, k := range keys {
			requireCellEqual(t, i, k.KeyID, want.Cells[k.KeyID], got.Cells[k.KeyID])
		}
	}
}

func requireCellEqual(t *testing.T, row, keyID int, want, got column.Cell) {
	t.Helper()
	require.Equal(t, want.Present, got.Present, "row %d key %d presence", row, keyID)
	if !want.Present {
		return
	}
	require.Equal(t, want.Payload, got.Payload, "row %d key %d payload", row, keyID)
}

func TestCompressDecompressEmptyInput(t *testing.T) {
	keys := testKeys()
	source := recordtest.NewMemSource(keys, 2, 2, nil)

	f, err := os.CreateTemp(t.TempDir(), "gvz-empty-*")
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, Compress(source, f, DefaultParams))

	fi, err := f.Stat()
	require.NoError(t, err)

	sink := recordtest.NewMemSink()
	require.NoError(t, Decompress(f, fi.Size(), sink, DefaultParams))
	require.Empty(t, sink.Rows)
	require.Equal(t, 2, sink.NoSamples)
	require.Equal(t, 2, sink.Ploidy)
}

func TestCompressDecompressAllMissingCells(t *testing.T) {
	keys := testKeys()
	row := record.Row{
		Variant: column.Variant{Chrom: "chrX", Pos: 1, ID: ".", Ref: "A", Alt: "T", Qual: "."},
		Cells: map[int]column.Cell{
			keyGenotype:  u32Cell(missingAlleleSentinel, missingAlleleSentinel, missingAlleleSentinel, missingAlleleSentinel),
			keyFormatGQ:  absentCell(),
			keyInfoDepth: absentCell(),
			keyFilterPA:  flagCell(false),
			keyInfoAnno:  absentCell(),
		},
	}
	source := recordtest.NewMemSource(keys, 2, 2, []record.Row{row})

	f, err := os.CreateTemp(t.TempDir(), "gvz-missing-*")
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, Compress(source, f, DefaultParams))

	fi, err := f.Stat()
	require.NoError(t, err)

	sink := recordtest.NewMemSink()
	require.NoError(t, Decompress(f, fi.Size(), sink, DefaultParams))
	require.Len(t, sink.Rows, 1)
	got := sink.Rows[0]
	require.Equal(t, row.Variant, got.Variant)
	for _, k := range keys {
		requireCellEqual(t, 0, k.KeyID, row.Cells[k.KeyID], got.Cells[k.KeyID])
	}
}
