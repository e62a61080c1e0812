package codec

import (
	"github.com/gvzproj/gvz/archive"
	"github.com/gvzproj/gvz/column"
	"github.com/gvzproj/gvz/formatcodec"
	"github.com/gvzproj/gvz/gvzerr"
	"github.com/gvzproj/gvz/internal/bitio"
	"github.com/gvzproj/gvz/internal/blockcoder"
	"github.com/gvzproj/gvz/pipeline"
	"github.com/gvzproj/gvz/rangecoder"
)

// flushSizeStream submits one compressed size-vector part, shared by
// formatEncColumn and infoEncColumn the same way genericEncColumn
// compresses its own size vector.
func flushSizeStream(writer *archive.Writer, pool *pipeline.WorkerPool, streamID int, coder *blockcoder.Coder, buf []byte) error {
	partID, err := writer.AddPartPrepare(streamID)
	if err != nil {
		return err
	}
	rawLen := len(buf)
	return pool.Submit(pipeline.Job{
		StreamID: streamID,
		PartID:   partID,
		Exec: func() ([]byte, uint64, error) {
			out, err := coder.Encode(buf)
			return out, uint64(rawLen), err
		},
	})
}

func loadSizeVector(reader *archive.Reader, streamID int, coder *blockcoder.Coder, part int) ([]int, error) {
	raw, meta, err := reader.GetPart(streamID, part)
	if err != nil {
		return nil, err
	}
	buf, err := coder.Decode(raw, int(archive.Part{Metadata: meta}.RawSize()))
	if err != nil {
		return nil, err
	}
	var out []int
	pos := 0
	for pos < len(buf) {
		v, n, err := column.DecodeVarint32(buf[pos:])
		if err != nil {
			return nil, err
		}
		out = append(out, int(v))
		pos += n
	}
	return out, nil
}

// formatEncColumn batches whole rows of a FORMAT column and range-codes
// each batch with either EncodeFormatOne (every row carries exactly
// noSamples values) or EncodeFormatMany (items-per-sample varies row
// to row, e.g. Number=R/G fields). The column codes "one" until a
// batch holds a present row whose count isn't noSamples, and "many"
// from that batch on; each part's metadata word records which of the
// two coded it. formatcodec.Codec's dictionary and byte-plane models
// persist across batches; only the range coder's byte stream is
// finalized per part.
type formatEncColumn struct {
	codec       *formatcodec.Codec
	dataStream  int
	sizeStream  int
	noSamples   int
	rowsPerPart int
	sizeCoder   *blockcoder.Coder

	cells    []column.Cell
	rawTotal int64
	sizeRaw  int64

	modeDecided bool
	many        bool
}

func newFormatEncColumn(codec *formatcodec.Codec, dataStream, sizeStream, noSamples, rowsPerPart int, blockParams blockcoder.Params) *formatEncColumn {
	return &formatEncColumn{
		codec:       codec,
		dataStream:  dataStream,
		sizeStream:  sizeStream,
		noSamples:   noSamples,
		rowsPerPart: rowsPerPart,
		sizeCoder:   blockcoder.New(blockParams),
	}
}

// RawTotal and SizeRawTotal return nominal uncompressed byte counts
// for the archive's per-stream accounting.
func (c *formatEncColumn) RawTotal() int64     { return c.rawTotal }
func (c *formatEncColumn) SizeRawTotal() int64 { return c.sizeRaw }

func (c *formatEncColumn) AppendCell(writer *archive.Writer, pool *pipeline.WorkerPool, cell column.Cell) error {
	c.cells = append(c.cells, cell)
	c.rawTotal += int64(cell.Count) * 4
	if len(c.cells) >= c.rowsPerPart {
		return c.Flush(writer, pool)
	}
	return nil
}

// itemsForRow returns a cell's items-per-sample: 1 for an absent cell
// (filled with noSamples sentinel values, matching an "one"-shaped
// row), otherwise Count/noSamples.
func (c *formatEncColumn) itemsForRow(cell column.Cell) int {
	if !cell.Present || c.noSamples == 0 {
		return 1
	}
	items := int(cell.Count) / c.noSamples
	if items < 1 {
		items = 1
	}
	return items
}

func (c *formatEncColumn) rowValues(cell column.Cell, items int) []uint32 {
	n := c.noSamples * items
	if !cell.Present {
		out := make([]uint32, n)
		for i := range out {
			out[i] = codedSentinel
		}
		return out
	}
	return cellToU32(cell, n)
}

// decideMode inspects a batch while the column is still in "one" mode:
// any present cell whose value count isn't exactly noSamples (one value
// per sample) switches the column to "many" for this and every later
// batch.
func (c *formatEncColumn) decideMode(cells []column.Cell) {
	c.modeDecided = true
	for _, cell := range cells {
		if cell.Present && c.noSamples > 0 && int(cell.Count) != c.noSamples {
			c.many = true
			return
		}
	}
}

func (c *formatEncColumn) Flush(writer *archive.Writer, pool *pipeline.WorkerPool) error {
	if len(c.cells) == 0 {
		return nil
	}
	cells := c.cells
	c.cells = nil
	if !c.many {
		c.decideMode(cells)
	}

	items := make([]int, len(cells))
	rows := make([][]uint32, len(cells))
	var sizeBuf []byte
	for i, cell := range cells {
		n := c.itemsForRow(cell)
		items[i] = n
		rows[i] = c.rowValues(cell, n)
		sizeBuf = column.EncodeVarint32(sizeBuf, int32(n))
	}
	c.sizeRaw += int64(len(sizeBuf))

	w := bitio.NewWriter()
	enc := rangecoder.NewEncoder(w)
	enc.Start()
	if c.many {
		c.codec.EncodeFormatMany(enc, rows, items, c.noSamples)
	} else {
		c.codec.EncodeFormatOne(enc, rows, c.noSamples)
	}
	enc.End()
	bytes := w.Bytes()

	if err := flushSizeStream(writer, pool, c.sizeStream, c.sizeCoder, sizeBuf); err != nil {
		return err
	}

	partID, err := writer.AddPartPrepare(c.dataStream)
	if err != nil {
		return err
	}
	meta := uint64(len(rows)) << 1
	if c.many {
		meta |= 1
	}
	return pool.Submit(pipeline.Job{
		StreamID: c.dataStream,
		PartID:   partID,
		Exec:     func() ([]byte, uint64, error) { return bytes, meta, nil },
	})
}

type formatDecColumn struct {
	codec      *formatcodec.Codec
	reader     *archive.Reader
	dataStream int
	sizeStream int
	noSamples  int
	sizeCoder  *blockcoder.Coder
	nextPart   int

	pending [][]uint32
	pos     int
}

func newFormatDecColumn(codec *formatcodec.Codec, reader *archive.Reader, dataStream, sizeStream, noSamples int, blockParams blockcoder.Params) *formatDecColumn {
	return &formatDecColumn{
		codec:      codec,
		reader:     reader,
		dataStream: dataStream,
		sizeStream: sizeStream,
		noSamples:  noSamples,
		sizeCoder:  blockcoder.New(blockParams),
	}
}

func (c *formatDecColumn) loadNextPart() (bool, error) {
	n, err := c.reader.NumParts(c.dataStream)
	if err != nil {
		return false, err
	}
	if c.nextPart >= n {
		return false, nil
	}

	items, err := loadSizeVector(c.reader, c.sizeStream, c.sizeCoder, c.nextPart)
	if err != nil {
		return false, err
	}

	data, meta, err := c.reader.GetPart(c.dataStream, c.nextPart)
	if err != nil {
		return false, err
	}
	many := meta&1 != 0
	rowCount := int(meta >> 1)
	if rowCount != len(items) {
		return false, gvzerr.ErrCorruptArchive
	}

	dec := rangecoder.NewDecoder(bitio.NewReader(data))
	if err := dec.Start(); err != nil {
		return false, err
	}

	var rows [][]uint32
	if many {
		rows, err = c.codec.DecodeFormatMany(dec, items, c.noSamples)
	} else {
		rows, err = c.codec.DecodeFormatOne(dec, rowCount, c.noSamples)
	}
	if err != nil {
		return false, err
	}

	c.pending = rows
	c.pos = 0
	c.nextPart++
	return true, nil
}

func (c *formatDecColumn) NextRow() ([]uint32, bool, error) {
	for c.pos >= len(c.pending) {
		more, err := c.loadNextPart()
		if err != nil {
			return nil, false, err
		}
		if !more {
			return nil, false, nil
		}
	}
	row := c.pending[c.pos]
	c.pos++
	return row, true, nil
}

// infoMode is the size-vector-driven dispatch FormatCodec picks for one
// INFO column, decided from the first batch's observed per-row value
// counts. It is held for later batches, except that a zero/constant
// column switches to "any" at the first batch that holds another count.
type infoMode int

const (
	infoModeOne infoMode = iota
	infoModeZero
	infoModeZeroOne
	infoModeConstant
	infoModeZeroConstant
	infoModeAny
)

// infoEncColumn batches an INFO column's cells and, from its first
// batch, classifies the block's value-count shape into one of the named
// cases: "zero" (always absent, no bytes at all), "one" (always
// exactly one value), "zero-one"/"zero-constant" (absent or a fixed
// non-zero count s, coded over the present rows only), "constant s"
// (always exactly s values, a row/column-lag context grid), or "any"
// (more than two distinct counts observed — falls back to the
// one-value-per-record path over the full flattened value sequence,
// with each row's real count carried by the size stream so the shape
// reconstructs losslessly regardless of how ragged it is).
type infoEncColumn struct {
	codec       *formatcodec.Codec
	dataStream  int
	sizeStream  int
	rowsPerPart int
	sizeCoder   *blockcoder.Coder

	cells    []column.Cell
	rawTotal int64
	sizeRaw  int64

	modeDecided bool
	mode        infoMode
	order       int
	s           int
	candidate   int
}

func newInfoEncColumn(codec *formatcodec.Codec, dataStream, sizeStream, rowsPerPart int, blockParams blockcoder.Params) *infoEncColumn {
	return &infoEncColumn{
		codec:       codec,
		dataStream:  dataStream,
		sizeStream:  sizeStream,
		rowsPerPart: rowsPerPart,
		sizeCoder:   blockcoder.New(blockParams),
		candidate:   -1,
	}
}

// RawTotal and SizeRawTotal return nominal uncompressed byte counts
// for the archive's per-stream accounting.
func (c *infoEncColumn) RawTotal() int64     { return c.rawTotal }
func (c *infoEncColumn) SizeRawTotal() int64 { return c.sizeRaw }

func cellValueCount(cell column.Cell) int {
	if !cell.Present {
		return 0
	}
	return int(cell.Count)
}

func (c *infoEncColumn) AppendCell(writer *archive.Writer, pool *pipeline.WorkerPool, cell column.Cell) error {
	c.cells = append(c.cells, cell)
	c.rawTotal += int64(cellValueCount(cell)) * 4
	if len(c.cells) >= c.rowsPerPart {
		return c.Flush(writer, pool)
	}
	return nil
}

// decideMode runs the full-block size-vector type detection: more than
// two distinct counts fails over to "any"; otherwise the (zero, X)
// bucket shape picks one of the named cases.
func (c *infoEncColumn) decideMode(cells []column.Cell) {
	c.modeDecided = true
	counts := make(map[int]bool, 2)
	for _, cell := range cells {
		counts[cellValueCount(cell)] = true
		if len(counts) > 2 {
			c.mode = infoModeAny
			return
		}
	}
	hasZero := counts[0]
	var nonZero []int
	for n := range counts {
		if n != 0 {
			nonZero = append(nonZero, n)
		}
	}
	switch {
	case len(nonZero) == 0:
		c.mode = infoModeZero
	case len(nonZero) == 2:
		// Two distinct non-zero counts with no zero bucket isn't one
		// of the named shapes.
		c.mode = infoModeAny
	case nonZero[0] == 1 && !hasZero:
		c.mode = infoModeOne
	case nonZero[0] == 1 && hasZero:
		c.mode = infoModeZeroOne
	case !hasZero:
		c.mode = infoModeConstant
		c.s = nonZero[0]
	default:
		c.mode = infoModeZeroConstant
		c.s = nonZero[0]
	}
}

// flatValues concatenates every present cell's values in row order,
// skipping absent/zero-count rows; used by the one/zero-one/any modes.
func (c *infoEncColumn) flatValues(cells []column.Cell) []uint32 {
	var values []uint32
	for _, cell := range cells {
		n := cellValueCount(cell)
		if n == 0 {
			continue
		}
		values = append(values, cellToU32(cell, n)...)
	}
	return values
}

// constantGrid collects every row whose value count is exactly s,
// skipping absent/zero rows; used by the constant/zero-constant modes.
func (c *infoEncColumn) constantGrid(cells []column.Cell) [][]uint32 {
	var grid [][]uint32
	for _, cell := range cells {
		if cellValueCount(cell) != c.s {
			continue
		}
		grid = append(grid, cellToU32(cell, c.s))
	}
	return grid
}

func (c *infoEncColumn) Flush(writer *archive.Writer, pool *pipeline.WorkerPool) error {
	if len(c.cells) == 0 {
		return nil
	}
	cells := c.cells
	c.cells = nil
	if !c.modeDecided {
		c.decideMode(cells)
	} else if c.mode == infoModeZero || c.mode == infoModeConstant || c.mode == infoModeZeroConstant {
		// The zero/constant coders only carry rows of count 0 or s; a
		// later batch with any other count switches the column to "any".
		for _, cell := range cells {
			if n := cellValueCount(cell); n != 0 && n != c.s {
				c.mode = infoModeAny
				break
			}
		}
	}

	var sizeBuf []byte
	for _, cell := range cells {
		sizeBuf = column.EncodeVarint32(sizeBuf, int32(cellValueCount(cell)))
	}
	c.sizeRaw += int64(len(sizeBuf))

	w := bitio.NewWriter()
	enc := rangecoder.NewEncoder(w)
	enc.Start()
	switch c.mode {
	case infoModeZero:
		// nothing to encode
	case infoModeOne, infoModeZeroOne, infoModeAny:
		values := c.flatValues(cells)
		if c.order == 0 {
			c.order = formatcodec.EstimateOrder(values)
		}
		c.codec.EncodeInfoOne(enc, values, c.order)
	case infoModeConstant, infoModeZeroConstant:
		grid := c.constantGrid(cells)
		if c.candidate < 0 {
			c.candidate = formatcodec.EstimateConstantCandidate(grid, c.s)
		}
		c.codec.EncodeInfoConstant(enc, grid, c.s, c.candidate)
	}
	enc.End()
	bytes := w.Bytes()

	if err := flushSizeStream(writer, pool, c.sizeStream, c.sizeCoder, sizeBuf); err != nil {
		return err
	}

	partID, err := writer.AddPartPrepare(c.dataStream)
	if err != nil {
		return err
	}
	meta := packInfoMeta(c.mode, c.order, c.s, c.candidate, len(cells))
	return pool.Submit(pipeline.Job{
		StreamID: c.dataStream,
		PartID:   partID,
		Exec:     func() ([]byte, uint64, error) { return bytes, meta, nil },
	})
}

// packInfoMeta folds the mode, order, constant width, chosen candidate
// and row count into one archive part metadata word.
func packInfoMeta(mode infoMode, order, s, candidate, rowCount int) uint64 {
	cand := candidate
	if cand < 0 {
		cand = 0
	}
	return uint64(rowCount)<<17 | uint64(cand&0xf)<<13 | uint64(s&0xff)<<5 | uint64(order&0x3)<<3 | uint64(mode&0x7)
}

func unpackInfoMeta(meta uint64) (mode infoMode, order, s, candidate, rowCount int) {
	mode = infoMode(meta & 0x7)
	order = int((meta >> 3) & 0x3)
	s = int((meta >> 5) & 0xff)
	candidate = int((meta >> 13) & 0xf)
	rowCount = int(meta >> 17)
	return
}

type infoDecColumn struct {
	codec      *formatcodec.Codec
	reader     *archive.Reader
	dataStream int
	sizeStream int
	sizeCoder  *blockcoder.Coder
	nextPart   int

	pending []column.Cell
	pos     int
}

func newInfoDecColumn(codec *formatcodec.Codec, reader *archive.Reader, dataStream, sizeStream int, blockParams blockcoder.Params) *infoDecColumn {
	return &infoDecColumn{
		codec:      codec,
		reader:     reader,
		dataStream: dataStream,
		sizeStream: sizeStream,
		sizeCoder:  blockcoder.New(blockParams),
	}
}

func (c *infoDecColumn) loadNextPart() (bool, error) {
	n, err := c.reader.NumParts(c.dataStream)
	if err != nil {
		return false, err
	}
	if c.nextPart >= n {
		return false, nil
	}

	counts, err := loadSizeVector(c.reader, c.sizeStream, c.sizeCoder, c.nextPart)
	if err != nil {
		return false, err
	}

	data, metaRaw, err := c.reader.GetPart(c.dataStream, c.nextPart)
	if err != nil {
		return false, err
	}
	mode, order, s, candidate, rowCount := unpackInfoMeta(metaRaw)
	if rowCount != len(counts) {
		return false, gvzerr.ErrCorruptArchive
	}

	dec := rangecoder.NewDecoder(bitio.NewReader(data))
	if err := dec.Start(); err != nil {
		return false, err
	}

	cells := make([]column.Cell, rowCount)
	switch mode {
	case infoModeZero:
		for i := range cells {
			cells[i] = column.Cell{Present: false}
		}
	case infoModeOne, infoModeZeroOne, infoModeAny:
		total := 0
		for _, n := range counts {
			total += n
		}
		values, err := c.codec.DecodeInfoOne(dec, total, order)
		if err != nil {
			return false, err
		}
		pos := 0
		for i, n := range counts {
			if n == 0 {
				cells[i] = column.Cell{Present: false}
				continue
			}
			cells[i] = column.Cell{Present: true, Payload: u32ToPayload(values[pos : pos+n]), Count: uint32(n)}
			pos += n
		}
	case infoModeConstant, infoModeZeroConstant:
		rowsWithS := 0
		for _, n := range counts {
			if n == s {
				rowsWithS++
			}
		}
		grid, err := c.codec.DecodeInfoConstant(dec, rowsWithS, s, candidate)
		if err != nil {
			return false, err
		}
		gi := 0
		for i, n := range counts {
			if n != s {
				cells[i] = column.Cell{Present: false}
				continue
			}
			cells[i] = column.Cell{Present: true, Payload: u32ToPayload(grid[gi]), Count: uint32(s)}
			gi++
		}
	}

	c.pending = cells
	c.pos = 0
	c.nextPart++
	return true, nil
}

func (c *infoDecColumn) NextCell() (column.Cell, bool, error) {
	for c.pos >= len(c.pending) {
		more, err := c.loadNextPart()
		if err != nil {
			return column.Cell{}, false, err
		}
		if !more {
			return column.Cell{}, false, nil
		}
	}
	cell := c.pending[c.pos]
	c.pos++
	return cell, true, nil
}
