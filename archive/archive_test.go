package archive

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func tempArchive(t *testing.T) (*os.File, func()) {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "gvz-archive-*")
	require.NoError(t, err)
	return f, func() { f.Close() }
}

func TestWriterReaderRoundtrip(t *testing.T) {
	f, cleanup := tempArchive(t)
	defer cleanup()

	w := NewWriter(f)
	sizeStream, err := w.RegisterStream("key_1_size")
	require.NoError(t, err)
	dataStream, err := w.RegisterStream("key_1_data")
	require.NoError(t, err)

	partID, err := w.AddPartPrepare(dataStream)
	require.NoError(t, err)
	require.NoError(t, w.AddPartComplete(dataStream, partID, []byte("hello"), 5))

	partID2, err := w.AddPartPrepare(dataStream)
	require.NoError(t, err)
	require.NoError(t, w.AddPartComplete(dataStream, partID2, []byte("world!"), 6))

	require.NoError(t, w.SetRawSize(sizeStream, 0))
	require.NoError(t, w.SetRawSize(dataStream, 11))
	require.NoError(t, w.Close())

	fi, err := f.Stat()
	require.NoError(t, err)

	rd, err := Open(f, fi.Size())
	require.NoError(t, err)

	id, ok := rd.StreamID("key_1_data")
	require.True(t, ok)
	require.Equal(t, dataStream, id)

	n, err := rd.NumParts(id)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	p0, meta0, err := rd.GetPart(id, 0)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), p0)
	require.Equal(t, uint64(5), meta0)

	p1, meta1, err := rd.GetPart(id, 1)
	require.NoError(t, err)
	require.Equal(t, []byte("world!"), p1)
	require.Equal(t, uint64(6), meta1)

	raw, err := rd.RawSize(id)
	require.NoError(t, err)
	require.Equal(t, int64(11), raw)

	_, ok = rd.StreamID("nonexistent")
	require.False(t, ok)
}

func TestLinkedStreamReadsThroughTarget(t *testing.T) {
	f, cleanup := tempArchive(t)
	defer cleanup()

	w := NewWriter(f)
	target, err := w.RegisterStream("key_1_data")
	require.NoError(t, err)
	alias, err := w.RegisterStream("key_2_data")
	require.NoError(t, err)

	partID, err := w.AddPartPrepare(target)
	require.NoError(t, err)
	require.NoError(t, w.AddPartComplete(target, partID, []byte("shared"), 6))
	require.NoError(t, w.SetRawSize(target, 6))

	require.NoError(t, w.LinkStream(alias, "key_1_data"))
	require.NoError(t, w.SetRawSize(alias, 6))
	require.NoError(t, w.Close())

	fi, err := f.Stat()
	require.NoError(t, err)
	rd, err := Open(f, fi.Size())
	require.NoError(t, err)

	aliasID, ok := rd.StreamID("key_2_data")
	require.True(t, ok)

	n, err := rd.NumParts(aliasID)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	data, _, err := rd.GetPart(aliasID, 0)
	require.NoError(t, err)
	require.Equal(t, []byte("shared"), data)
}

func TestPartMetadataPPFlag(t *testing.T) {
	p := Part{Metadata: 1000 | PPFlag}
	require.True(t, p.PPApplied())
	require.Equal(t, uint64(1000), p.RawSize())

	plain := Part{Metadata: 1000}
	require.False(t, plain.PPApplied())
	require.Equal(t, uint64(1000), plain.RawSize())
}

func TestRegisterStreamDuplicateNameFails(t *testing.T) {
	f, cleanup := tempArchive(t)
	defer cleanup()

	w := NewWriter(f)
	_, err := w.RegisterStream("dup")
	require.NoError(t, err)
	_, err = w.RegisterStream("dup")
	require.Error(t, err)
}
