package archive

import (
	"bytes"
	"io"

	"github.com/gvzproj/gvz/gvzerr"
)

// streamEntry is the footer's view of one stream, after alias
// resolution has not yet been applied.
type streamEntry struct {
	name    string
	parts   []Part
	rawSize int64
	linkTo  string
}

// Reader opens a closed archive for random-access part lookup. It
// reads the whole file into memory, matching the teacher's in-memory
// []byte-oriented ZIP reading style (ListFiles/GetFileInfo operate on
// a full []byte rather than streaming).
type Reader struct {
	data    []byte
	streams []streamEntry
	byName  map[string]int
}

// Open parses the footer of an archive previously produced by Writer,
// seeking from the end of the file.
func Open(r io.ReaderAt, size int64) (*Reader, error) {
	if size < 8 {
		return nil, gvzerr.ErrCorruptArchive
	}
	data := make([]byte, size)
	if _, err := r.ReadAt(data, 0); err != nil && err != io.EOF {
		return nil, gvzerr.ErrOpenFailure
	}

	footerSize := int64(leUint64(data[size-8:]))
	if footerSize <= 0 || footerSize > size-8 {
		return nil, gvzerr.ErrCorruptArchive
	}
	footer := data[size-8-footerSize : size-8]

	rd := &Reader{data: data, byName: make(map[string]int)}
	if err := rd.parseFooter(footer); err != nil {
		return nil, err
	}
	return rd, nil
}

func leUint64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func (rd *Reader) parseFooter(footer []byte) error {
	pos := 0
	numStreams, n, err := getVarUint(footer[pos:])
	if err != nil {
		return err
	}
	pos += n

	rd.streams = make([]streamEntry, numStreams)
	for i := range rd.streams {
		name, n, err := readCString(footer[pos:])
		if err != nil {
			return err
		}
		pos += n

		partCount, n, err := getVarUint(footer[pos:])
		if err != nil {
			return err
		}
		pos += n

		rawSize, n, err := getVarUint(footer[pos:])
		if err != nil {
			return err
		}
		pos += n

		entry := streamEntry{name: name, rawSize: int64(rawSize)}

		if partCount == 0 {
			target, n, err := readCString(footer[pos:])
			if err != nil {
				return err
			}
			pos += n
			entry.linkTo = target
		} else {
			entry.parts = make([]Part, partCount)
			for p := range entry.parts {
				off, n, err := getVarUint(footer[pos:])
				if err != nil {
					return err
				}
				pos += n
				sz, n, err := getVarUint(footer[pos:])
				if err != nil {
					return err
				}
				pos += n
				meta, n, err := getVarUint(footer[pos:])
				if err != nil {
					return err
				}
				pos += n
				entry.parts[p] = Part{Offset: int64(off), Size: int64(sz), Metadata: meta}
			}
		}

		rd.streams[i] = entry
		rd.byName[name] = i
	}
	return nil
}

func readCString(src []byte) (string, int, error) {
	i := bytes.IndexByte(src, 0)
	if i < 0 {
		return "", 0, gvzerr.ErrCorruptArchive
	}
	return string(src[:i]), i + 1, nil
}

// resolve follows the alias chain for a stream index until it reaches
// a stream that owns its own parts.
func (rd *Reader) resolve(idx int) (int, error) {
	seen := make(map[int]bool)
	for rd.streams[idx].linkTo != "" {
		if seen[idx] {
			return 0, gvzerr.ErrCorruptArchive
		}
		seen[idx] = true
		next, ok := rd.byName[rd.streams[idx].linkTo]
		if !ok {
			return 0, gvzerr.ErrCorruptArchive
		}
		idx = next
	}
	return idx, nil
}

// StreamID returns the stream index for name, if registered.
func (rd *Reader) StreamID(name string) (int, bool) {
	idx, ok := rd.byName[name]
	return idx, ok
}

// NumStreams returns the number of streams recorded in the footer.
func (rd *Reader) NumStreams() int { return len(rd.streams) }

// Name returns streamID's registered name, before alias resolution.
func (rd *Reader) Name(streamID int) (string, error) {
	if streamID < 0 || streamID >= len(rd.streams) {
		return "", gvzerr.ErrCorruptArchive
	}
	return rd.streams[streamID].name, nil
}

// RawSize returns the stream's recorded uncompressed size.
func (rd *Reader) RawSize(streamID int) (int64, error) {
	if streamID < 0 || streamID >= len(rd.streams) {
		return 0, gvzerr.ErrCorruptArchive
	}
	return rd.streams[streamID].rawSize, nil
}

// NumParts returns the number of parts in streamID's stream, after
// following any alias.
func (rd *Reader) NumParts(streamID int) (int, error) {
	idx, err := rd.resolve(streamID)
	if err != nil {
		return 0, err
	}
	return len(rd.streams[idx].parts), nil
}

// GetPart returns the bytes and metadata for part i of streamID,
// following any alias first; parts are read in insertion order.
func (rd *Reader) GetPart(streamID, i int) ([]byte, uint64, error) {
	idx, err := rd.resolve(streamID)
	if err != nil {
		return nil, 0, err
	}
	parts := rd.streams[idx].parts
	if i < 0 || i >= len(parts) {
		return nil, 0, gvzerr.ErrCorruptArchive
	}
	p := parts[i]
	if p.Offset < 0 || p.Offset+p.Size > int64(len(rd.data)) {
		return nil, 0, gvzerr.ErrCorruptArchive
	}

	return rd.data[p.Offset : p.Offset+p.Size], p.Metadata, nil
}
