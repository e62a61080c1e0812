// Package codec implements the per-column dispatch glue: for each
// declared key it picks GenotypeCodec, FormatCodec ("format one" /
// "info one"), or the generic ColumnBuffer+BlockCoder path, and drives
// the chosen codec from the pipeline's record-level Dispatch/Assemble
// calls.
package codec

import "github.com/gvzproj/gvz/column"

// codedSentinel marks a cell slot absent from a row entirely (an
// optional FORMAT/INFO key not set for that record) as it passes
// through the FormatCodec "one" encodings, which expect exactly one
// value per row per sample. It deliberately matches formatcodec's own
// reserved hash-table sentinel, so a missing cell is coded on the same
// plain path as that sentinel; a real value of 0x7fffffff is coded
// identically to it.
const codedSentinel uint32 = 0x7fffffff

// cellToU32 reads a Cell's packed little-endian uint32 payload into a
// slice of count values (the FORMAT/INFO int and real wire shape is
// identical: a real's bits are just reinterpreted as a uint32).
func cellToU32(cell column.Cell, count int) []uint32 {
	out := make([]uint32, count)
	if !cell.Present {
		for i := range out {
			out[i] = codedSentinel
		}
		return out
	}
	for i := 0; i < count && 4*i+4 <= len(cell.Payload); i++ {
		b := cell.Payload[4*i:]
		out[i] = uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
	}
	return out
}

// u32ToPayload packs values back into a little-endian Cell payload.
func u32ToPayload(values []uint32) []byte {
	out := make([]byte, 4*len(values))
	for i, v := range values {
		out[4*i] = byte(v)
		out[4*i+1] = byte(v >> 8)
		out[4*i+2] = byte(v >> 16)
		out[4*i+3] = byte(v >> 24)
	}
	return out
}
