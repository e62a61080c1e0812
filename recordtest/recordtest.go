// Package recordtest provides an in-memory record.Source/record.Sink
// pair backed by a plain slice, standing in for the external VCF/BCF
// record-I/O collaborator so packages above record can be exercised
// in tests without a real parser.
package recordtest

import (
	"io"

	"github.com/gvzproj/gvz/record"
)

// MemSource replays a fixed, in-memory list of rows.
type MemSource struct {
	keys      []record.Key
	noSamples int
	ploidy    int
	rows      []record.Row
	pos       int
}

// NewMemSource creates a Source over rows, using the given key
// declaration.
func NewMemSource(keys []record.Key, noSamples, ploidy int, rows []record.Row) *MemSource {
	return &MemSource{keys: keys, noSamples: noSamples, ploidy: ploidy, rows: rows}
}

// Keys implements record.Source.
func (s *MemSource) Keys() ([]record.Key, int, int, error) {
	return s.keys, s.noSamples, s.ploidy, nil
}

// Next implements record.Source.
func (s *MemSource) Next() (record.Row, bool, error) {
	if s.pos >= len(s.rows) {
		return record.Row{}, false, nil
	}
	row := s.rows[s.pos]
	s.pos++
	return row, true, nil
}

// MemSink collects decoded rows into memory for assertions.
type MemSink struct {
	Keys      []record.Key
	NoSamples int
	Ploidy    int
	Rows      []record.Row
	closed    bool
}

// NewMemSink creates an empty sink.
func NewMemSink() *MemSink { return &MemSink{} }

// Open implements record.Sink.
func (s *MemSink) Open(keys []record.Key, noSamples, ploidy int) error {
	s.Keys, s.NoSamples, s.Ploidy = keys, noSamples, ploidy
	return nil
}

// Put implements record.Sink.
func (s *MemSink) Put(r record.Row) error {
	if s.closed {
		return io.ErrClosedPipe
	}
	s.Rows = append(s.Rows, r)
	return nil
}

// Close implements record.Sink.
func (s *MemSink) Close() error {
	s.closed = true
	return nil
}
