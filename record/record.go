// Package record defines the collaborator boundary between the gvz
// core and whatever reads/writes the external record format (VCF/BCF
// or any other tabular variant source). The core depends only on
// these interfaces; recordtest provides an in-memory fixture so the
// pipeline can be exercised without a real parser.
package record

import "github.com/gvzproj/gvz/column"

// Key mirrors column.Key at the collaborator boundary: the source
// declares its column set once, before any records are read.
type Key = column.Key

// Variant mirrors column.Variant at the collaborator boundary.
type Variant = column.Variant

// Row is one decoded record: its descriptive Variant tuple plus one
// Cell per declared Key, indexed by Key.KeyID.
type Row struct {
	Variant Variant
	Cells   map[int]column.Cell
}

// Source supplies records for compression. Keys is called once before
// the first Next call to obtain the fixed column declaration; Next
// returns one record at a time, and io.EOF-equivalent end-of-input is
// signalled by ok=false with a nil error.
type Source interface {
	Keys() ([]Key, int /* noSamples */, int /* ploidy */, error)
	Next() (Row, bool, error)
}

// Sink receives decoded records during decompression, in the same
// shape Source produced them (modulo ordering among records sharing
// an identical (chrom, pos, alt) key).
type Sink interface {
	Open(keys []Key, noSamples, ploidy int) error
	Put(Row) error
	Close() error
}
