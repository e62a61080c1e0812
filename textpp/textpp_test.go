package textpp

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func roundtrip(t *testing.T, data []byte) []byte {
	t.Helper()
	enc := NewEncoder()
	coded := enc.Encode(data)
	full := append(append([]byte(nil), enc.DictBytes()...), coded...)

	dec := NewDecoder(nil)
	consumed := dec.ReadDict(full)
	return dec.Decode(full[consumed:])
}

func TestEncodeDecodeRoundtrip(t *testing.T) {
	cases := map[string][]byte{
		"empty":        {},
		"plain":        []byte("hello world"),
		"digits":       []byte("1234567890"),
		"bases":        []byte("ACGTACGTACGT"),
		"zero run":     []byte("0000000000"),
		"bars":         []byte("A|B|C|D|E"),
		"mixed":        []byte("chr1:12345-ACGT|het,0/1"),
		"repeated word": bytes.Repeat([]byte("variant "), 20),
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			got := roundtrip(t, data)
			require.Equal(t, data, got)
		})
	}
}

func TestPromotedWordsAppearInDictionary(t *testing.T) {
	word := "missense_variant"
	data := []byte(strings.Repeat(word+" ", promoteAt+4))

	enc := NewEncoder()
	coded := enc.Encode(data)
	full := append(append([]byte(nil), enc.DictBytes()...), coded...)

	dec := NewDecoder(nil)
	dec.ReadDict(full)
	require.Contains(t, dec.Words(), word)
}
