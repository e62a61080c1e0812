package rangecoder

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gvzproj/gvz/entropy"
	"github.com/gvzproj/gvz/internal/bitio"
)

func byteParams() entropy.Params {
	return entropy.Params{Alphabet: 256, LogCounter: 16, Adder: 24}
}

func TestEncodeDecodeRoundtrip(t *testing.T) {
	cases := []struct {
		name    string
		symbols []int
	}{
		{"empty", nil},
		{"single", []int{42}},
		{"repeated", repeatSymbol(7, 500)},
		{"ascending", ascending(256)},
		{"random", randomSymbols(5000, 1)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := bitio.NewWriter()
			enc := NewEncoder(w)
			enc.Start()
			model := entropy.NewSimple(byteParams())
			for _, s := range tc.symbols {
				enc.EncodeSymbol(model, s)
			}
			enc.End()

			dec := NewDecoder(bitio.NewReader(w.Bytes()))
			require.NoError(t, dec.Start())
			decModel := entropy.NewSimple(byteParams())
			got := make([]int, 0, len(tc.symbols))
			for range tc.symbols {
				sym, err := dec.DecodeSymbol(decModel)
				require.NoError(t, err)
				got = append(got, sym)
			}
			require.Equal(t, tc.symbols, got)
		})
	}
}

func TestDecodeSymbolTruncatedStreamIsCorrupt(t *testing.T) {
	w := bitio.NewWriter()
	enc := NewEncoder(w)
	enc.Start()
	model := entropy.NewSimple(byteParams())
	for _, s := range ascending(32) {
		enc.EncodeSymbol(model, s)
	}
	enc.End()

	full := w.Bytes()
	truncated := full[:len(full)-4]

	dec := NewDecoder(bitio.NewReader(truncated))
	require.NoError(t, dec.Start())
	decModel := entropy.NewSimple(byteParams())
	var err error
	for i := 0; i < 64 && err == nil; i++ {
		_, err = dec.DecodeSymbol(decModel)
	}
	require.Error(t, err)
}

func repeatSymbol(sym, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = sym
	}
	return out
}

func ascending(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i % 256
	}
	return out
}

func randomSymbols(n int, seed int64) []int {
	r := rand.New(rand.NewSource(seed))
	out := make([]int, n)
	for i := range out {
		out[i] = r.Intn(256)
	}
	return out
}
