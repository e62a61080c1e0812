package codec

import (
	"github.com/gvzproj/gvz/archive"
	"github.com/gvzproj/gvz/genotype"
	"github.com/gvzproj/gvz/internal/bitio"
	"github.com/gvzproj/gvz/pipeline"
	"github.com/gvzproj/gvz/rangecoder"
)

// genotypeEncColumn drives GenotypeCodec across rows, finalizing and
// submitting the accumulated range-coded bytes as one archive part
// every rowsPerPart rows. The codec's PBWT and entropy model state
// carries over between parts; only the range coder's byte stream
// resets (it must be finalized to be independently decodable).
type genotypeEncColumn struct {
	codec       *genotype.Codec
	dataStream  int
	rowsPerPart int

	w        *bitio.Writer
	enc      *rangecoder.Encoder
	row      int
	rawTotal int64
}

// RawTotal returns a nominal uncompressed size (rows times allele
// grid width times 4 bytes) for the archive's per-stream accounting; the model
// never materializes an actual flat byte buffer to measure.
func (c *genotypeEncColumn) RawTotal() int64 { return c.rawTotal }

func newGenotypeEncColumn(codec *genotype.Codec, dataStream, rowsPerPart int) *genotypeEncColumn {
	c := &genotypeEncColumn{codec: codec, dataStream: dataStream, rowsPerPart: rowsPerPart}
	c.reset()
	return c
}

func (c *genotypeEncColumn) reset() {
	c.w = bitio.NewWriter()
	c.enc = rangecoder.NewEncoder(c.w)
	c.enc.Start()
	c.row = 0
}

// AppendRow range-codes one row's sample-major allele grid, flushing a
// part once rowsPerPart rows have accumulated.
func (c *genotypeEncColumn) AppendRow(writer *archive.Writer, pool *pipeline.WorkerPool, grid []uint32) error {
	c.codec.EncodeRow(c.enc, grid)
	c.rawTotal += int64(len(grid)) * 4
	c.row++
	if c.row >= c.rowsPerPart {
		return c.Flush(writer, pool)
	}
	return nil
}

// Flush finalizes the current part (if any rows are pending) and
// submits it, keyed by its row count in the metadata word so the
// decoder knows how many rows to pull back out.
func (c *genotypeEncColumn) Flush(writer *archive.Writer, pool *pipeline.WorkerPool) error {
	if c.row == 0 {
		return nil
	}
	c.enc.End()
	bytes := c.w.Bytes()
	rows := c.row
	c.reset()

	partID, err := writer.AddPartPrepare(c.dataStream)
	if err != nil {
		return err
	}
	return pool.Submit(pipeline.Job{
		StreamID: c.dataStream,
		PartID:   partID,
		Exec:     func() ([]byte, uint64, error) { return bytes, uint64(rows), nil },
	})
}

// genotypeDecColumn mirrors genotypeEncColumn on the read side.
type genotypeDecColumn struct {
	codec      *genotype.Codec
	reader     *archive.Reader
	dataStream int
	nextPart   int

	dec          *rangecoder.Decoder
	rowsRemaining int
}

func newGenotypeDecColumn(codec *genotype.Codec, reader *archive.Reader, dataStream int) *genotypeDecColumn {
	return &genotypeDecColumn{codec: codec, reader: reader, dataStream: dataStream}
}

func (c *genotypeDecColumn) loadNextPart() (bool, error) {
	n, err := c.reader.NumParts(c.dataStream)
	if err != nil {
		return false, err
	}
	if c.nextPart >= n {
		return false, nil
	}
	data, meta, err := c.reader.GetPart(c.dataStream, c.nextPart)
	if err != nil {
		return false, err
	}
	r := bitio.NewReader(data)
	dec := rangecoder.NewDecoder(r)
	if err := dec.Start(); err != nil {
		return false, err
	}
	c.dec = dec
	c.rowsRemaining = int(meta)
	c.nextPart++
	return true, nil
}

// NextRow returns the next row's sample-major allele grid.
func (c *genotypeDecColumn) NextRow() ([]uint32, bool, error) {
	for c.rowsRemaining == 0 {
		more, err := c.loadNextPart()
		if err != nil {
			return nil, false, err
		}
		if !more {
			return nil, false, nil
		}
	}
	grid, err := c.codec.DecodeRow(c.dec)
	if err != nil {
		return nil, false, err
	}
	c.rowsRemaining--
	return grid, true, nil
}
