package codec

import (
	"github.com/gvzproj/gvz/archive"
	"github.com/gvzproj/gvz/column"
	"github.com/gvzproj/gvz/internal/blockcoder"
	"github.com/gvzproj/gvz/pipeline"
	"github.com/gvzproj/gvz/textpp"
)

// textPPMinBytes is the smallest data-vector size worth trying TextPP
// on; below it the dictionary header itself would dominate.
const textPPMinBytes = 64

// genericEncColumn drives the generic path every key without a
// dedicated codec falls back to: a ColumnBuffer accumulating cells
// until full, flushed through BlockCoder, with an optional TextPP
// pre-pass for text columns.
type genericEncColumn struct {
	cellT      column.CellType
	buf        *column.Buffer
	sizeStream int
	dataStream int
	sizeCoder  *blockcoder.Coder
	dataCoder  *blockcoder.Coder
	sizeRaw    int64
	dataRaw    int64
}

// SizeRawTotal and DataRawTotal return the cumulative uncompressed
// byte counts flushed so far for the sizes and data streams
// respectively, for the archive's per-stream accounting.
func (c *genericEncColumn) SizeRawTotal() int64 { return c.sizeRaw }
func (c *genericEncColumn) DataRawTotal() int64 { return c.dataRaw }

func newGenericEncColumn(cellT column.CellType, maxSize, sizeStream, dataStream int, params blockcoder.Params) *genericEncColumn {
	return &genericEncColumn{
		cellT:      cellT,
		buf:        column.NewBuffer(cellT, maxSize),
		sizeStream: sizeStream,
		dataStream: dataStream,
		sizeCoder:  blockcoder.New(params),
		dataCoder:  blockcoder.New(params),
	}
}

// Append routes one cell into the ColumnBuffer per its declared type.
func (c *genericEncColumn) Append(cell column.Cell) {
	switch c.cellT {
	case column.CellFlag:
		c.buf.AppendFlag(cell.Present)
	case column.CellInt:
		var vals []int32
		if cell.Present {
			for _, v := range cellToU32(cell, int(cell.Count)) {
				vals = append(vals, int32(v))
			}
		}
		c.buf.AppendInt(vals)
	case column.CellReal:
		var bits []uint32
		if cell.Present {
			bits = cellToU32(cell, int(cell.Count))
		}
		c.buf.AppendReal(bits)
	default: // CellText
		if cell.Present {
			c.buf.AppendText(cell.Payload)
		} else {
			c.buf.AppendText(nil)
		}
	}
}

func (c *genericEncColumn) IsFull() bool { return c.buf.IsFull() }

// Flush compresses the accumulated sizes/data vectors and submits one
// WorkerPool package per vector; each part is reserved before its
// (possibly slow) compression work is handed off, so the two streams'
// part_id counters stay monotonic regardless of worker scheduling.
func (c *genericEncColumn) Flush(writer *archive.Writer, pool *pipeline.WorkerPool) error {
	if c.buf.NumCells() == 0 {
		return nil
	}
	sizes := append([]byte(nil), c.buf.Sizes()...)
	data := append([]byte(nil), c.buf.Data()...)
	c.buf.Reset()
	c.sizeRaw += int64(len(sizes))
	c.dataRaw += int64(len(data))

	sizePartID, err := writer.AddPartPrepare(c.sizeStream)
	if err != nil {
		return err
	}
	sizeCoder := c.sizeCoder
	if err := pool.Submit(pipeline.Job{
		StreamID: c.sizeStream,
		PartID:   sizePartID,
		Exec: func() ([]byte, uint64, error) {
			out, err := sizeCoder.Encode(sizes)
			return out, uint64(len(sizes)), err
		},
	}); err != nil {
		return err
	}

	dataBytes := data
	pp := false
	if c.cellT == column.CellText && len(data) >= textPPMinBytes {
		// TextPP output uses bytes 0..4 and 128..255 as codes, so a block
		// holding any of them is stored without the pre-pass.
		clean := true
		for _, b := range data {
			if b <= 4 || b >= 128 {
				clean = false
				break
			}
		}
		if clean {
			enc := textpp.NewEncoder()
			coded := enc.Encode(data)
			candidate := append(enc.DictBytes(), coded...)
			if len(candidate) < len(data) {
				dataBytes, pp = candidate, true
			}
		}
	}
	meta := uint64(len(dataBytes))
	if pp {
		meta |= archive.PPFlag
	}
	dataPartID, err := writer.AddPartPrepare(c.dataStream)
	if err != nil {
		return err
	}
	dataCoder := c.dataCoder
	return pool.Submit(pipeline.Job{
		StreamID: c.dataStream,
		PartID:   dataPartID,
		Exec: func() ([]byte, uint64, error) {
			out, err := dataCoder.Encode(dataBytes)
			return out, meta, err
		},
	})
}

// genericDecColumn mirrors genericEncColumn on the read side: it pulls
// parts lazily from the archive.Reader, decompressing (and reversing
// TextPP) one (sizes, data) pair at a time.
type genericDecColumn struct {
	cellT                  column.CellType
	reader                 *archive.Reader
	sizeStream, dataStream int
	sizeCoder, dataCoder   *blockcoder.Coder
	nextPart               int
	cur                    *cellReader
}

func newGenericDecColumn(cellT column.CellType, reader *archive.Reader, sizeStream, dataStream int, params blockcoder.Params) *genericDecColumn {
	return &genericDecColumn{
		cellT:      cellT,
		reader:     reader,
		sizeStream: sizeStream,
		dataStream: dataStream,
		sizeCoder:  blockcoder.New(params),
		dataCoder:  blockcoder.New(params),
	}
}

func (c *genericDecColumn) loadNextPart() (bool, error) {
	n, err := c.reader.NumParts(c.dataStream)
	if err != nil {
		return false, err
	}
	if c.nextPart >= n {
		return false, nil
	}

	rawSizes, sizeMeta, err := c.reader.GetPart(c.sizeStream, c.nextPart)
	if err != nil {
		return false, err
	}
	sizes, err := c.sizeCoder.Decode(rawSizes, int(archive.Part{Metadata: sizeMeta}.RawSize()))
	if err != nil {
		return false, err
	}

	rawData, dataMeta, err := c.reader.GetPart(c.dataStream, c.nextPart)
	if err != nil {
		return false, err
	}
	part := archive.Part{Metadata: dataMeta}
	data, err := c.dataCoder.Decode(rawData, int(part.RawSize()))
	if err != nil {
		return false, err
	}
	if part.PPApplied() {
		dec := textpp.NewDecoder(nil)
		consumed := dec.ReadDict(data)
		data = dec.Decode(data[consumed:])
	}

	c.cur = newCellReader(c.cellT, sizes, data)
	c.nextPart++
	return true, nil
}

// NextCell returns the next decoded cell, or ok=false once every part
// of this column's streams has been consumed.
func (c *genericDecColumn) NextCell() (column.Cell, bool, error) {
	for {
		if c.cur != nil {
			payload, ok, err := c.cur.Next()
			if err != nil {
				return column.Cell{}, false, err
			}
			if ok {
				return payloadToCell(c.cellT, payload), true, nil
			}
			c.cur = nil
		}
		more, err := c.loadNextPart()
		if err != nil {
			return column.Cell{}, false, err
		}
		if !more {
			return column.Cell{}, false, nil
		}
	}
}

func payloadToCell(cellT column.CellType, payload []byte) column.Cell {
	switch cellT {
	case column.CellFlag:
		return column.Cell{Present: payload[0] != 0}
	case column.CellInt, column.CellReal:
		return column.Cell{Present: len(payload) > 0, Payload: payload, Count: uint32(len(payload) / 4)}
	default: // CellText
		return column.Cell{Present: len(payload) > 0, Payload: payload, Count: uint32(len(payload))}
	}
}
