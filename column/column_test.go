package column

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBufferAppendFlag(t *testing.T) {
	b := NewBuffer(CellFlag, 1<<20)
	b.AppendFlag(true)
	b.AppendFlag(false)
	b.AppendFlag(true)

	require.Equal(t, 3, b.NumCells())
	require.Equal(t, []byte{1, 0, 1}, b.Sizes())
	require.Empty(t, b.Data())
}

func TestBufferAppendInt(t *testing.T) {
	b := NewBuffer(CellInt, 1<<20)
	b.AppendInt([]int32{1, -1, 1000})
	b.AppendInt(nil)

	require.Equal(t, 2, b.NumCells())
	require.Len(t, b.Data(), 12) // 3 values * 4 bytes
}

func TestBufferAppendIntVarsize(t *testing.T) {
	b := NewBuffer(CellIntVarsize, 1<<20)
	b.AppendIntVarsize([]int32{0, 1, -1, 5000})

	require.Equal(t, 1, b.NumCells())
	require.NotEmpty(t, b.Data())

	pos := 0
	var got []int32
	for pos < len(b.Data()) {
		v, n, err := DecodeVarint32(b.Data()[pos:])
		require.NoError(t, err)
		got = append(got, v)
		pos += n
	}
	require.Equal(t, []int32{0, 1, -1, 5000}, got)
}

func TestBufferAppendInt64Delta(t *testing.T) {
	b := NewBuffer(CellInt64Delta, 1<<20)
	b.AppendInt64Delta(0)
	b.AppendInt64Delta(255)
	b.AppendInt64Delta(-1000)

	require.Equal(t, 3, b.NumCells())
	sizes := b.Sizes()
	require.Len(t, sizes, 3)
	// byte_count*2+sign: delta=0 -> 1 byte, positive -> sizes[0]=2
	require.Equal(t, byte(2), sizes[0])
	// delta=-1000 is negative -> odd size byte
	require.True(t, sizes[2]%2 == 1)
}

func TestBufferAppendReal(t *testing.T) {
	b := NewBuffer(CellReal, 1<<20)
	b.AppendReal([]uint32{0x3f800000, 0x40000000})

	require.Equal(t, 1, b.NumCells())
	require.Len(t, b.Data(), 8)
}

func TestBufferAppendText(t *testing.T) {
	b := NewBuffer(CellText, 1<<20)
	b.AppendText([]byte("hello"))
	b.AppendText(nil)
	b.AppendText([]byte("world"))

	require.Equal(t, 3, b.NumCells())
	require.Equal(t, []byte("helloworld"), b.Data())
}

func TestBufferIsFullAndReset(t *testing.T) {
	b := NewBuffer(CellText, 10)
	require.False(t, b.IsFull())
	b.AppendText([]byte("0123456789"))
	require.True(t, b.IsFull())

	b.Reset()
	require.False(t, b.IsFull())
	require.Equal(t, 0, b.NumCells())
	require.Empty(t, b.Data())
}

func TestBufferFunctionModeLookup(t *testing.T) {
	b := NewBuffer(CellInt, 1<<20)
	b.SetFunction(map[uint32]uint32{1: 100, 2: 200})

	v, err := b.Lookup(1)
	require.NoError(t, err)
	require.Equal(t, uint32(100), v)

	_, err = b.Lookup(3)
	require.Error(t, err)
}

func TestBufferLookupWithoutFunctionModeFails(t *testing.T) {
	b := NewBuffer(CellInt, 1<<20)
	_, err := b.Lookup(1)
	require.Error(t, err)
}
