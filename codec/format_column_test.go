package codec

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gvzproj/gvz/archive"
	"github.com/gvzproj/gvz/column"
	"github.com/gvzproj/gvz/formatcodec"
	"github.com/gvzproj/gvz/internal/blockcoder"
	"github.com/gvzproj/gvz/internal/logging"
	"github.com/gvzproj/gvz/pipeline"
)

func tempArchiveFile(t *testing.T) (*os.File, func()) {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "gvz-codec-archive-*")
	require.NoError(t, err)
	return f, func() { f.Close() }
}

func presentCell(values ...uint32) column.Cell {
	return column.Cell{Present: true, Payload: u32ToPayload(values), Count: uint32(len(values))}
}

func absentCell() column.Cell {
	return column.Cell{Present: false}
}

// TestFormatEncDecColumnOneMode exercises the common FORMAT shape: every
// row carries exactly noSamples values.
func TestFormatEncDecColumnOneMode(t *testing.T) {
	const noSamples = 3
	cells := []column.Cell{
		presentCell(1, 2, 3),
		presentCell(4, 5, 6),
		absentCell(),
		presentCell(7, 8, 9),
	}

	f, cleanup := tempArchiveFile(t)
	defer cleanup()
	writer := archive.NewWriter(f)
	dataID, err := writer.RegisterStream("key_1_data")
	require.NoError(t, err)
	sizeID, err := writer.RegisterStream("key_1_size")
	require.NoError(t, err)

	pool := pipeline.NewWorkerPool(context.Background(), writer, logging.New(logging.LevelSilent), 2, 4)
	enc := newFormatEncColumn(formatcodec.NewCodec(), dataID, sizeID, noSamples, 2, blockcoder.DefaultParams)
	for _, c := range cells {
		require.NoError(t, enc.AppendCell(writer, pool, c))
	}
	require.NoError(t, enc.Flush(writer, pool))
	require.NoError(t, writer.SetRawSize(sizeID, enc.SizeRawTotal()))
	require.NoError(t, writer.SetRawSize(dataID, enc.RawTotal()))
	require.NoError(t, pool.Wait())
	require.NoError(t, writer.Close())

	fi, err := f.Stat()
	require.NoError(t, err)
	reader, err := archive.Open(f, fi.Size())
	require.NoError(t, err)

	dec := newFormatDecColumn(formatcodec.NewCodec(), reader, dataID, sizeID, noSamples, blockcoder.DefaultParams)
	for _, want := range cells {
		row, ok, err := dec.NextRow()
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, gridToCell(row), want)
	}
	_, ok, err := dec.NextRow()
	require.NoError(t, err)
	require.False(t, ok)
}

// TestFormatEncDecColumnManyMode exercises Number=R/G style FORMAT
// fields whose items-per-sample varies row to row.
func TestFormatEncDecColumnManyMode(t *testing.T) {
	const noSamples = 2
	cells := []column.Cell{
		presentCell(1, 1, 2, 2),          // 2 items/sample
		presentCell(3, 3, 4, 4),          // 2 items/sample, same shape as prev
		presentCell(5, 6),                // 1 item/sample
		presentCell(7, 8, 9, 10, 11, 12), // 3 items/sample
	}

	f, cleanup := tempArchiveFile(t)
	defer cleanup()
	writer := archive.NewWriter(f)
	dataID, err := writer.RegisterStream("key_1_data")
	require.NoError(t, err)
	sizeID, err := writer.RegisterStream("key_1_size")
	require.NoError(t, err)

	pool := pipeline.NewWorkerPool(context.Background(), writer, logging.New(logging.LevelSilent), 2, 4)
	enc := newFormatEncColumn(formatcodec.NewCodec(), dataID, sizeID, noSamples, 10, blockcoder.DefaultParams)
	for _, c := range cells {
		require.NoError(t, enc.AppendCell(writer, pool, c))
	}
	require.NoError(t, enc.Flush(writer, pool))
	require.NoError(t, writer.SetRawSize(sizeID, enc.SizeRawTotal()))
	require.NoError(t, writer.SetRawSize(dataID, enc.RawTotal()))
	require.NoError(t, pool.Wait())
	require.NoError(t, writer.Close())
	require.True(t, enc.many)

	fi, err := f.Stat()
	require.NoError(t, err)
	reader, err := archive.Open(f, fi.Size())
	require.NoError(t, err)

	dec := newFormatDecColumn(formatcodec.NewCodec(), reader, dataID, sizeID, noSamples, blockcoder.DefaultParams)
	for _, want := range cells {
		row, ok, err := dec.NextRow()
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, gridToCell(row), want)
	}
}

func runInfoRoundtrip(t *testing.T, cells []column.Cell) []column.Cell {
	t.Helper()
	f, cleanup := tempArchiveFile(t)
	defer cleanup()
	writer := archive.NewWriter(f)
	dataID, err := writer.RegisterStream("key_1_data")
	require.NoError(t, err)
	sizeID, err := writer.RegisterStream("key_1_size")
	require.NoError(t, err)

	pool := pipeline.NewWorkerPool(context.Background(), writer, logging.New(logging.LevelSilent), 2, 4)
	enc := newInfoEncColumn(formatcodec.NewCodec(), dataID, sizeID, len(cells), blockcoder.DefaultParams)
	for _, c := range cells {
		require.NoError(t, enc.AppendCell(writer, pool, c))
	}
	require.NoError(t, enc.Flush(writer, pool))
	require.NoError(t, writer.SetRawSize(sizeID, enc.SizeRawTotal()))
	require.NoError(t, writer.SetRawSize(dataID, enc.RawTotal()))
	require.NoError(t, pool.Wait())
	require.NoError(t, writer.Close())

	fi, err := f.Stat()
	require.NoError(t, err)
	reader, err := archive.Open(f, fi.Size())
	require.NoError(t, err)

	dec := newInfoDecColumn(formatcodec.NewCodec(), reader, dataID, sizeID, blockcoder.DefaultParams)
	got := make([]column.Cell, 0, len(cells))
	for {
		cell, ok, err := dec.NextCell()
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, cell)
	}
	return got
}

func TestInfoEncDecColumnZeroMode(t *testing.T) {
	cells := []column.Cell{absentCell(), absentCell(), absentCell()}
	got := runInfoRoundtrip(t, cells)
	require.Equal(t, cells, got)
}

func TestInfoEncDecColumnOneMode(t *testing.T) {
	cells := []column.Cell{presentCell(1), presentCell(2), presentCell(3), presentCell(4)}
	got := runInfoRoundtrip(t, cells)
	require.Equal(t, cells, got)
}

func TestInfoEncDecColumnZeroOneMode(t *testing.T) {
	cells := []column.Cell{presentCell(1), absentCell(), presentCell(3), absentCell(), presentCell(5)}
	got := runInfoRoundtrip(t, cells)
	require.Equal(t, cells, got)
}

func TestInfoEncDecColumnConstantMode(t *testing.T) {
	cells := []column.Cell{
		presentCell(1, 2, 3),
		presentCell(4, 5, 6),
		presentCell(7, 8, 9),
		presentCell(1, 2, 3),
	}
	got := runInfoRoundtrip(t, cells)
	require.Equal(t, cells, got)
}

func TestInfoEncDecColumnZeroConstantMode(t *testing.T) {
	cells := []column.Cell{
		presentCell(1, 2, 3),
		absentCell(),
		presentCell(4, 5, 6),
		absentCell(),
	}
	got := runInfoRoundtrip(t, cells)
	require.Equal(t, cells, got)
}

// TestInfoEncDecColumnAnyMode verifies the >2-distinct-counts fallback
// stays lossless: each row keeps its own real value count via the size
// stream instead of being truncated to a fixed width.
func TestInfoEncDecColumnAnyMode(t *testing.T) {
	cells := []column.Cell{
		presentCell(1),
		presentCell(2, 3),
		presentCell(4, 5, 6),
		absentCell(),
		presentCell(7, 8, 9, 10),
	}
	got := runInfoRoundtrip(t, cells)
	require.Equal(t, cells, got)
}
