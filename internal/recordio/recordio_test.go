package recordio

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gvzproj/gvz/column"
	"github.com/gvzproj/gvz/record"
)

func testKeys() []record.Key {
	return []record.Key{
		{KeyID: 0, Kind: column.KindFormat, ValueType: column.ValueInt, IsGenotype: true},
		{KeyID: 1, Kind: column.KindInfo, ValueType: column.ValueReal},
		{KeyID: 2, Kind: column.KindFilter, ValueType: column.ValueFlag},
		{KeyID: 3, Kind: column.KindInfo, ValueType: column.ValueString},
	}
}

func testRows() []record.Row {
	return []record.Row{
		{
			Variant: column.Variant{Chrom: "chr1", Pos: 100, ID: "rs1", Ref: "A", Alt: "G", Qual: "60"},
			Cells: map[int]column.Cell{
				0: {Present: true, Payload: []byte{1, 2, 3, 4}, Count: 1},
				1: {Present: true, Payload: []byte{0xde, 0xad, 0xbe, 0xef}, Count: 1},
				2: {Present: true},
				3: {Present: true, Payload: []byte("hello"), Count: 5},
			},
		},
		{
			Variant: column.Variant{Chrom: "chr2", Pos: 200, ID: ".", Ref: "C", Alt: "T", Qual: "."},
			Cells: map[int]column.Cell{
				0: {Present: false},
				1: {Present: false},
				2: {Present: false},
				3: {Present: false},
			},
		},
	}
}

func TestWriterReaderRoundtrip(t *testing.T) {
	keys := testKeys()
	rows := testRows()

	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.Open(keys, 3, 2))
	for _, r := range rows {
		require.NoError(t, w.Put(r))
	}
	require.NoError(t, w.Close())

	r := NewReader(&buf)
	gotKeys, noSamples, ploidy, err := r.Keys()
	require.NoError(t, err)
	require.Equal(t, keys, gotKeys)
	require.Equal(t, 3, noSamples)
	require.Equal(t, 2, ploidy)

	for i, want := range rows {
		got, ok, err := r.Next()
		require.NoError(t, err)
		require.True(t, ok, "row %d", i)
		require.Equal(t, want.Variant, got.Variant, "row %d", i)
		for keyID, wantCell := range want.Cells {
			gotCell := got.Cells[keyID]
			require.Equal(t, wantCell.Present, gotCell.Present, "row %d key %d presence", i, keyID)
			require.Equal(t, wantCell.Count, gotCell.Count, "row %d key %d count", i, keyID)
			if wantCell.Count > 0 {
				require.Equal(t, wantCell.Payload, gotCell.Payload, "row %d key %d payload", i, keyID)
			}
		}
	}

	_, ok, err := r.Next()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestReaderRejectsEmptyInput(t *testing.T) {
	r := NewReader(bytes.NewReader(nil))
	_, _, _, err := r.Keys()
	require.Error(t, err)
}

func TestReaderRejectsBadHeader(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte("not-a-header\n")))
	_, _, _, err := r.Keys()
	require.Error(t, err)
}

func TestReaderRejectsTruncatedRow(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.Open(testKeys(), 1, 1))
	require.NoError(t, w.Close())
	buf.WriteString("chr1\t1\trs1\tA\tG\t60\n") // missing one cell field

	r := NewReader(&buf)
	_, _, _, err := r.Keys()
	require.NoError(t, err)
	_, _, err = r.Next()
	require.Error(t, err)
}
