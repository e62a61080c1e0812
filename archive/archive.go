// Package archive implements the self-describing container: named
// streams of ordered parts, a footer-based index, variable-length
// lead-byte integers, and stream aliasing for GraphOptimizer-driven
// dedup.
//
// Grounded on ha1tch/unz/pkg/compress's ZIP triad (local header, then
// file bytes, then a central directory plus a fixed-width
// end-of-central-directory record located by seeking from EOF):
// the same "fixed trailer located from file end, variable body found
// by walking an index" shape is reused here, generalized from ZIP's
// fixed 22/30/46-byte binary headers to a footer made of varints and
// from "one entry per file" to "one entry per column stream with an
// ordered list of parts."
package archive

import (
	"encoding/binary"
	"io"

	"github.com/gvzproj/gvz/gvzerr"
)

// PPFlag marks a part's metadata word as carrying a TextPP-preprocessed
// payload; the low bits (below the flag) still hold the true raw size,
// read as metadata^PPFlag (metadata with the flag cleared).
const PPFlag uint64 = 1 << 30

// Part describes one contiguous byte range inside a stream, plus the
// inline metadata word written just before its bytes.
type Part struct {
	Offset   int64
	Size     int64
	Metadata uint64
}

// RawSize returns the part's declared uncompressed size, independent
// of whether the TextPP flag is set.
func (p Part) RawSize() uint64 {
	if p.Metadata&PPFlag != 0 {
		return p.Metadata &^ PPFlag
	}
	return p.Metadata
}

// PPApplied reports whether the part's payload was TextPP-preprocessed.
func (p Part) PPApplied() bool { return p.Metadata&PPFlag != 0 }

// stream is one named, append-only sequence of parts.
type stream struct {
	name    string
	parts   []Part
	rawSize int64

	// linkTo, when non-empty, names the stream this one aliases: it
	// carries no bytes of its own and reads follow the target.
	linkTo string
}

// Writer builds an archive by appending parts to registered streams,
// then writing the footer.
type Writer struct {
	w       io.WriteSeeker
	offset  int64
	streams []*stream
	byName  map[string]int
}

// NewWriter creates an archive writer over w. Seek is never called:
// the writer assumes w starts at offset 0 and tracks the offset itself,
// since writes are always sequential appends.
func NewWriter(w io.WriteSeeker) *Writer {
	return &Writer{w: w, byName: make(map[string]int)}
}

// RegisterStream reserves a new named stream, returning its id.
// Re-registering the same name fails with ErrProtocolError.
func (a *Writer) RegisterStream(name string) (int, error) {
	if _, ok := a.byName[name]; ok {
		return 0, gvzerr.ErrProtocolError
	}
	id := len(a.streams)
	a.streams = append(a.streams, &stream{name: name})
	a.byName[name] = id
	return id, nil
}

// AddPartPrepare reserves the next part_id for streamID, without
// writing any bytes yet. The returned part_id is the part's index
// within the stream.
func (a *Writer) AddPartPrepare(streamID int) (int, error) {
	if streamID < 0 || streamID >= len(a.streams) {
		return 0, gvzerr.ErrCorruptArchive
	}
	s := a.streams[streamID]
	s.parts = append(s.parts, Part{})
	return len(s.parts) - 1, nil
}

// AddPartComplete writes metadata then bytes for a previously reserved
// part_id, appending at the writer's current offset. Parts must be
// completed in part_id order within a stream (the caller enforces
// ordering via the pipeline's per-stream part_id counter).
func (a *Writer) AddPartComplete(streamID, partID int, bytes []byte, metadata uint64) error {
	if streamID < 0 || streamID >= len(a.streams) {
		return gvzerr.ErrCorruptArchive
	}
	s := a.streams[streamID]
	if partID < 0 || partID >= len(s.parts) {
		return gvzerr.ErrCorruptArchive
	}

	var metaBuf [10]byte
	n := putVarUint(metaBuf[:], metadata)
	if _, err := a.w.Write(metaBuf[:n]); err != nil {
		return err
	}
	if _, err := a.w.Write(bytes); err != nil {
		return err
	}

	s.parts[partID] = Part{Offset: a.offset + int64(n), Size: int64(len(bytes)), Metadata: metadata}
	a.offset += int64(n) + int64(len(bytes))
	return nil
}

// SetRawSize records the uncompressed size accounted to streamID.
func (a *Writer) SetRawSize(streamID int, size int64) error {
	if streamID < 0 || streamID >= len(a.streams) {
		return gvzerr.ErrCorruptArchive
	}
	a.streams[streamID].rawSize = size
	return nil
}

// LinkStream makes streamID an alias for targetName: it is recorded in
// the footer with zero parts of its own and a link target. No bytes
// are allocated for a linked stream.
func (a *Writer) LinkStream(streamID int, targetName string) error {
	if streamID < 0 || streamID >= len(a.streams) {
		return gvzerr.ErrCorruptArchive
	}
	a.streams[streamID].linkTo = targetName
	a.streams[streamID].parts = nil
	return nil
}

// Close writes the footer (stream count, then per-stream name/part-
// count/raw-size/parts) followed by the fixed 8-byte footer size.
func (a *Writer) Close() error {
	footerStart := a.offset
	var hdr [10]byte

	n := putVarUint(hdr[:], uint64(len(a.streams)))
	if _, err := a.w.Write(hdr[:n]); err != nil {
		return err
	}
	a.offset += int64(n)

	for _, s := range a.streams {
		if err := a.writeString(s.name); err != nil {
			return err
		}
		if s.linkTo != "" {
			// part_count = 0 signals a link; the link target name
			// follows immediately where parts would otherwise start.
			if err := a.writeVarUint(0); err != nil {
				return err
			}
			if err := a.writeVarUint(uint64(s.rawSize)); err != nil {
				return err
			}
			if err := a.writeString(s.linkTo); err != nil {
				return err
			}
			continue
		}

		if err := a.writeVarUint(uint64(len(s.parts))); err != nil {
			return err
		}
		if err := a.writeVarUint(uint64(s.rawSize)); err != nil {
			return err
		}
		for _, p := range s.parts {
			if err := a.writeVarUint(uint64(p.Offset)); err != nil {
				return err
			}
			if err := a.writeVarUint(uint64(p.Size)); err != nil {
				return err
			}
			if err := a.writeVarUint(p.Metadata); err != nil {
				return err
			}
		}
	}

	footerSize := a.offset - footerStart
	var sizeBuf [8]byte
	binary.LittleEndian.PutUint64(sizeBuf[:], uint64(footerSize))
	_, err := a.w.Write(sizeBuf[:])
	return err
}

func (a *Writer) writeVarUint(v uint64) error {
	var buf [10]byte
	n := putVarUint(buf[:], v)
	_, err := a.w.Write(buf[:n])
	a.offset += int64(n)
	return err
}

func (a *Writer) writeString(s string) error {
	b := append([]byte(s), 0)
	_, err := a.w.Write(b)
	a.offset += int64(len(b))
	return err
}

// putVarUint encodes v as a lead byte giving the byte count followed
// by that many big-endian bytes.
func putVarUint(dst []byte, v uint64) int {
	var be []byte
	x := v
	for x > 0 {
		be = append([]byte{byte(x)}, be...)
		x >>= 8
	}
	if len(be) == 0 {
		be = []byte{0}
	}
	dst[0] = byte(len(be))
	copy(dst[1:], be)
	return 1 + len(be)
}

func getVarUint(src []byte) (uint64, int, error) {
	if len(src) == 0 {
		return 0, 0, gvzerr.ErrCorruptArchive
	}
	n := int(src[0])
	if len(src) < 1+n {
		return 0, 0, gvzerr.ErrCorruptArchive
	}
	var v uint64
	for i := 0; i < n; i++ {
		v = v<<8 | uint64(src[1+i])
	}
	return v, 1 + n, nil
}
