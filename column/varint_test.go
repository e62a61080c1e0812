package column

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gvzproj/gvz/gvzerr"
)

func TestVarint32Roundtrip(t *testing.T) {
	values := []int32{
		0, 1, -1, 124, -124, 125, -125, 126,
		1000, -1000, 1 << 15, -(1 << 15),
		1 << 16, -(1 << 16), 1 << 23, -(1 << 23),
		1 << 24, -(1 << 24), 1<<31 - 1, -(1<<31 - 1),
		sentinel32,
	}
	for _, v := range values {
		encoded := EncodeVarint32(nil, v)
		got, n, err := DecodeVarint32(encoded)
		require.NoError(t, err, "value %d", v)
		require.Equal(t, len(encoded), n, "value %d", v)
		require.Equal(t, v, got, "value %d", v)
	}
}

func TestVarint32SmallValuesFitOneByte(t *testing.T) {
	for v := int32(-124); v <= 124; v++ {
		encoded := EncodeVarint32(nil, v)
		require.Len(t, encoded, 1, "value %d should fit in one byte", v)
		got, n, err := DecodeVarint32(encoded)
		require.NoError(t, err)
		require.Equal(t, 1, n)
		require.Equal(t, v, got)
	}
}

func TestVarint32ConcatenatedStreamDecodesInOrder(t *testing.T) {
	values := []int32{0, 1, -1, 125, -124, 5000, -5000, sentinel32}
	var buf []byte
	for _, v := range values {
		buf = EncodeVarint32(buf, v)
	}
	var got []int32
	for len(buf) > 0 {
		v, n, err := DecodeVarint32(buf)
		require.NoError(t, err)
		got = append(got, v)
		buf = buf[n:]
	}
	require.Equal(t, values, got)
}

func TestDecodeVarint32EmptyInputIsCorrupt(t *testing.T) {
	_, _, err := DecodeVarint32(nil)
	require.ErrorIs(t, err, gvzerr.ErrCorruptInput)
}

func TestDecodeVarint32TruncatedMultibyteIsCorrupt(t *testing.T) {
	cases := [][]byte{{250}, {250, 1}, {252, 1}, {252, 1, 2}, {254, 1, 2, 3}}
	for _, c := range cases {
		_, _, err := DecodeVarint32(c)
		require.ErrorIs(t, err, gvzerr.ErrCorruptInput, "input %v", c)
	}
}
