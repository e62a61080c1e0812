package codec

import (
	"github.com/gvzproj/gvz/column"
	"github.com/gvzproj/gvz/gvzerr"
)

// cellReader walks a flushed ColumnBuffer's (sizes, data) byte vectors
// back into cells, mirroring column.Buffer's Append* rules in reverse.
// column.Buffer itself only supports accumulate or GraphOptimizer
// function-link modes, so the read side lives here instead.
type cellReader struct {
	sizes    []byte
	data     []byte
	sizePos  int
	dataPos  int
	cellType column.CellType
}

func newCellReader(ct column.CellType, sizes, data []byte) *cellReader {
	return &cellReader{cellType: ct, sizes: sizes, data: data}
}

// Next returns the next cell's payload, or io-style ok=false once the
// size vector is exhausted. The payload is the flag byte for flag
// cells, count little-endian 32-bit values for int/real cells, the
// count varint codes for int-varsize cells, the raw bytes for text
// cells, and an 8-byte little-endian int64 for int64-delta cells.
func (r *cellReader) Next() (payload []byte, ok bool, err error) {
	if r.sizePos >= len(r.sizes) {
		return nil, false, nil
	}

	switch r.cellType {
	case column.CellFlag:
		v := r.sizes[r.sizePos]
		r.sizePos++
		return []byte{v}, true, nil

	case column.CellInt, column.CellReal:
		count, n, err := column.DecodeVarint32(r.sizes[r.sizePos:])
		if err != nil {
			return nil, false, err
		}
		r.sizePos += n
		need := 4 * int(count)
		if r.dataPos+need > len(r.data) {
			return nil, false, gvzerr.ErrCorruptInput
		}
		payload = r.data[r.dataPos : r.dataPos+need]
		r.dataPos += need
		return payload, true, nil

	case column.CellIntVarsize:
		count, n, err := column.DecodeVarint32(r.sizes[r.sizePos:])
		if err != nil {
			return nil, false, err
		}
		r.sizePos += n
		start := r.dataPos
		for i := int32(0); i < count; i++ {
			_, vn, err := column.DecodeVarint32(r.data[r.dataPos:])
			if err != nil {
				return nil, false, err
			}
			r.dataPos += vn
		}
		return r.data[start:r.dataPos], true, nil

	case column.CellText:
		count, n, err := column.DecodeVarint32(r.sizes[r.sizePos:])
		if err != nil {
			return nil, false, err
		}
		r.sizePos += n
		if r.dataPos+int(count) > len(r.data) {
			return nil, false, gvzerr.ErrCorruptInput
		}
		payload = r.data[r.dataPos : r.dataPos+int(count)]
		r.dataPos += int(count)
		return payload, true, nil

	case column.CellInt64Delta:
		if r.sizePos >= len(r.sizes) {
			return nil, false, gvzerr.ErrCorruptInput
		}
		tag := r.sizes[r.sizePos]
		r.sizePos++
		neg := tag&1 != 0
		nbytes := int(tag >> 1)
		if r.dataPos+nbytes > len(r.data) {
			return nil, false, gvzerr.ErrCorruptInput
		}
		var mag int64
		for i := 0; i < nbytes; i++ {
			mag = mag<<8 | int64(r.data[r.dataPos+i])
		}
		r.dataPos += nbytes
		if neg {
			mag = -mag
		}
		return int64Payload(mag), true, nil
	}
	return nil, false, gvzerr.ErrProtocolError
}

func int64Payload(v int64) []byte {
	u := uint64(v)
	return []byte{byte(u), byte(u >> 8), byte(u >> 16), byte(u >> 24), byte(u >> 32), byte(u >> 40), byte(u >> 48), byte(u >> 56)}
}

func decodeInt64Payload(b []byte) int64 {
	u := uint64(b[0]) | uint64(b[1])<<8 | uint64(b[2])<<16 | uint64(b[3])<<24 |
		uint64(b[4])<<32 | uint64(b[5])<<40 | uint64(b[6])<<48 | uint64(b[7])<<56
	return int64(u)
}
