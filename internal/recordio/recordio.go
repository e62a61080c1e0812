// Package recordio is cmd/gvz's own file-backed record.Source/record.Sink
// pair. Real VCF/BCF text parsing is out of scope for the core (record
// I/O is delegated entirely to a collaborator interface), but the CLI
// still needs some concrete file format to read and write, so this
// package defines a minimal line-oriented one of its own: a small
// header declaring the key table, followed by one tab-separated line
// per record. It is CLI plumbing, not a domain codec, so it leans on
// the standard library rather than the entropy-coding stack below it.
package recordio

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gvzproj/gvz/column"
	"github.com/gvzproj/gvz/record"
)

const magic = "gvz1"

// Writer emits rows to an underlying io.Writer in recordio's line
// format. It implements record.Sink.
type Writer struct {
	w      *bufio.Writer
	opened bool
}

// NewWriter wraps w for recordio output.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Open implements record.Sink: it writes the header line plus one line
// per declared key.
func (s *Writer) Open(keys []record.Key, noSamples, ploidy int) error {
	if s.opened {
		return fmt.Errorf("recordio: Open called twice")
	}
	s.opened = true
	if _, err := fmt.Fprintf(s.w, "%s\t%d\t%d\t%d\n", magic, noSamples, ploidy, len(keys)); err != nil {
		return err
	}
	for _, k := range keys {
		gt := 0
		if k.IsGenotype {
			gt = 1
		}
		if _, err := fmt.Fprintf(s.w, "%d\t%d\t%d\t%d\n", k.KeyID, k.Kind, k.ValueType, gt); err != nil {
			return err
		}
	}
	return nil
}

// Put implements record.Sink.
func (s *Writer) Put(r record.Row) error {
	v := r.Variant
	fields := []string{v.Chrom, strconv.FormatInt(v.Pos, 10), v.ID, v.Ref, v.Alt, v.Qual}
	for i := 0; i < len(r.Cells); i++ {
		fields = append(fields, encodeCell(r.Cells[i]))
	}
	_, err := s.w.WriteString(strings.Join(fields, "\t") + "\n")
	return err
}

// Close implements record.Sink.
func (s *Writer) Close() error {
	return s.w.Flush()
}

func encodeCell(c column.Cell) string {
	if !c.Present {
		return "-"
	}
	return fmt.Sprintf("%d:%s", c.Count, base64.RawStdEncoding.EncodeToString(c.Payload))
}

func decodeCell(field string) (column.Cell, error) {
	if field == "-" {
		return column.Cell{Present: false}, nil
	}
	idx := strings.IndexByte(field, ':')
	if idx < 0 {
		return column.Cell{}, fmt.Errorf("recordio: malformed cell %q", field)
	}
	count, err := strconv.ParseUint(field[:idx], 10, 32)
	if err != nil {
		return column.Cell{}, fmt.Errorf("recordio: malformed cell count %q: %w", field, err)
	}
	payload, err := base64.RawStdEncoding.DecodeString(field[idx+1:])
	if err != nil {
		return column.Cell{}, fmt.Errorf("recordio: malformed cell payload %q: %w", field, err)
	}
	return column.Cell{Present: true, Payload: payload, Count: uint32(count)}, nil
}

// Reader reads rows back out of recordio's line format. It implements
// record.Source.
type Reader struct {
	sc        *bufio.Scanner
	keys      []record.Key
	noSamples int
	ploidy    int
}

// NewReader wraps r for recordio input.
func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	return &Reader{sc: sc}
}

// Keys implements record.Source: it parses the header line and the
// per-key declaration lines that follow it.
func (s *Reader) Keys() ([]record.Key, int, int, error) {
	if !s.sc.Scan() {
		if err := s.sc.Err(); err != nil {
			return nil, 0, 0, err
		}
		return nil, 0, 0, fmt.Errorf("recordio: empty input")
	}
	head := strings.Split(s.sc.Text(), "\t")
	if len(head) != 4 || head[0] != magic {
		return nil, 0, 0, fmt.Errorf("recordio: bad header %q", s.sc.Text())
	}
	noSamples, err := strconv.Atoi(head[1])
	if err != nil {
		return nil, 0, 0, err
	}
	ploidy, err := strconv.Atoi(head[2])
	if err != nil {
		return nil, 0, 0, err
	}
	numKeys, err := strconv.Atoi(head[3])
	if err != nil {
		return nil, 0, 0, err
	}

	keys := make([]record.Key, numKeys)
	for i := 0; i < numKeys; i++ {
		if !s.sc.Scan() {
			return nil, 0, 0, fmt.Errorf("recordio: truncated key table")
		}
		parts := strings.Split(s.sc.Text(), "\t")
		if len(parts) != 4 {
			return nil, 0, 0, fmt.Errorf("recordio: bad key line %q", s.sc.Text())
		}
		keyID, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil, 0, 0, err
		}
		kind, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, 0, 0, err
		}
		valueType, err := strconv.Atoi(parts[2])
		if err != nil {
			return nil, 0, 0, err
		}
		keys[i] = record.Key{
			KeyID:      keyID,
			Kind:       column.Kind(kind),
			ValueType:  column.ValueType(valueType),
			IsGenotype: parts[3] == "1",
		}
	}
	s.keys, s.noSamples, s.ploidy = keys, noSamples, ploidy
	return keys, noSamples, ploidy, nil
}

// Next implements record.Source.
func (s *Reader) Next() (record.Row, bool, error) {
	if !s.sc.Scan() {
		if err := s.sc.Err(); err != nil {
			return record.Row{}, false, err
		}
		return record.Row{}, false, nil
	}
	fields := strings.Split(s.sc.Text(), "\t")
	if len(fields) != 6+len(s.keys) {
		return record.Row{}, false, fmt.Errorf("recordio: row has %d fields, want %d", len(fields), 6+len(s.keys))
	}
	pos, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return record.Row{}, false, err
	}
	row := record.Row{
		Variant: record.Variant{Chrom: fields[0], Pos: pos, ID: fields[2], Ref: fields[3], Alt: fields[4], Qual: fields[5]},
		Cells:   make(map[int]column.Cell, len(s.keys)),
	}
	for i, k := range s.keys {
		cell, err := decodeCell(fields[6+i])
		if err != nil {
			return record.Row{}, false, err
		}
		row.Cells[k.KeyID] = cell
	}
	return row, true, nil
}
