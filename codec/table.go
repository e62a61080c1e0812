package codec

import (
	"fmt"
	"sort"

	"github.com/gvzproj/gvz/archive"
	"github.com/gvzproj/gvz/column"
	"github.com/gvzproj/gvz/formatcodec"
	"github.com/gvzproj/gvz/genotype"
	"github.com/gvzproj/gvz/internal/blockcoder"
	"github.com/gvzproj/gvz/pipeline"
	"github.com/gvzproj/gvz/record"
)

// Params configures one Table/DecodeTable pair: the per-column
// BlockCoder tuning, how many rows/values a genotype/format/info
// column's range-coded byte stream spans before it is finalized into
// a part, and the generic path's per-column buffer size.
type Params struct {
	GenericMaxSize     int
	RowsPerPart        int
	BlockParams        blockcoder.Params
	NeglectLimit       int
	FormatCodecStrings bool // opt in FORMAT string columns to the FormatCodec path
}

// DefaultParams picks reasonable defaults: a 1MB
// generic-column buffer, 4096 rows per genotype/format/info part, the
// default BlockCoder backend, and PBWT's conventional neglect limit.
var DefaultParams = Params{
	GenericMaxSize: 1 << 20,
	RowsPerPart:    4096,
	BlockParams:    blockcoder.DefaultParams,
	NeglectLimit:   20,
}

// encCol is whichever concrete per-key encode column a key routes to.
type encCol struct {
	route    route
	generic  *genericEncColumn
	genotype *genotypeEncColumn
	format   *formatEncColumn
	info     *infoEncColumn
	noFields int // grid width for genotype/format cells
}

// Table implements pipeline.CompressDispatcher, fanning each row's
// cells out to per-key columns chosen by chooseRoute, plus the fixed
// variant-description columns, and tracking each stream's cumulative
// raw byte count for the archive footer.
type Table struct {
	writer *archive.Writer
	pool   *pipeline.WorkerPool
	keys   []column.Key
	cols   map[int]*encCol
	desc   *variantDescEnc
}

// NewTable registers one stream (or stream pair) per declared key plus
// the six fixed variant-description streams, and returns a Table ready
// to dispatch rows.
func NewTable(writer *archive.Writer, pool *pipeline.WorkerPool, keys []column.Key, noSamples, ploidy int, p Params) (*Table, error) {
	t := &Table{
		writer: writer,
		pool:   pool,
		keys:   keys,
		cols:   make(map[int]*encCol),
	}

	streamOf := make(map[string][2]int)
	for _, name := range variantDescNames {
		sizeID, err := writer.RegisterStream("db_" + name + "_size")
		if err != nil {
			return nil, err
		}
		dataID, err := writer.RegisterStream("idb_" + name + "_data")
		if err != nil {
			return nil, err
		}
		streamOf[name] = [2]int{sizeID, dataID}
	}
	t.desc = newVariantDescEnc(streamOf, p.GenericMaxSize, p.BlockParams)

	for _, k := range keys {
		r := chooseRoute(k, p.FormatCodecStrings)
		switch r {
		case routeGenotype:
			dataID, err := writer.RegisterStream(fmt.Sprintf("key_%d_data", k.KeyID))
			if err != nil {
				return nil, err
			}
			gt := genotype.NewCodec(noSamples, ploidy, p.NeglectLimit, genotypeMaxVal)
			t.cols[k.KeyID] = &encCol{
				route:    r,
				genotype: newGenotypeEncColumn(gt, dataID, p.RowsPerPart),
				noFields: noSamples * ploidy,
			}
		case routeFormatOne:
			sizeID, err := writer.RegisterStream(fmt.Sprintf("key_%d_size", k.KeyID))
			if err != nil {
				return nil, err
			}
			dataID, err := writer.RegisterStream(fmt.Sprintf("key_%d_data", k.KeyID))
			if err != nil {
				return nil, err
			}
			t.cols[k.KeyID] = &encCol{
				route:  r,
				format: newFormatEncColumn(formatcodec.NewCodec(), dataID, sizeID, noSamples, p.RowsPerPart, p.BlockParams),
			}
		case routeInfoOne:
			sizeID, err := writer.RegisterStream(fmt.Sprintf("key_%d_size", k.KeyID))
			if err != nil {
				return nil, err
			}
			dataID, err := writer.RegisterStream(fmt.Sprintf("key_%d_data", k.KeyID))
			if err != nil {
				return nil, err
			}
			t.cols[k.KeyID] = &encCol{
				route: r,
				info:  newInfoEncColumn(formatcodec.NewCodec(), dataID, sizeID, p.RowsPerPart, p.BlockParams),
			}
		default: // routeGeneric
			sizeID, err := writer.RegisterStream(fmt.Sprintf("key_%d_size", k.KeyID))
			if err != nil {
				return nil, err
			}
			dataID, err := writer.RegisterStream(fmt.Sprintf("key_%d_data", k.KeyID))
			if err != nil {
				return nil, err
			}
			t.cols[k.KeyID] = &encCol{
				route:   r,
				generic: newGenericEncColumn(cellType(k), p.GenericMaxSize, sizeID, dataID, p.BlockParams),
			}
		}
	}
	return t, nil
}

// genotypeMaxVal bounds the allele alphabet after genotype.Codec's
// bias/missing transforms; every FORMAT GT value fits comfortably
// under this, so it is fixed rather than configured.
const genotypeMaxVal = 1 << 16

// DispatchRow implements pipeline.CompressDispatcher.
func (t *Table) DispatchRow(row record.Row) error {
	t.desc.Append(row.Variant)

	for _, k := range t.keys {
		c := t.cols[k.KeyID]
		cell := row.Cells[k.KeyID]
		switch c.route {
		case routeGenotype:
			grid := cellToU32(cell, c.noFields)
			if err := c.genotype.AppendRow(t.writer, t.pool, grid); err != nil {
				return err
			}
		case routeFormatOne:
			if err := c.format.AppendCell(t.writer, t.pool, cell); err != nil {
				return err
			}
		case routeInfoOne:
			if err := c.info.AppendCell(t.writer, t.pool, cell); err != nil {
				return err
			}
		default:
			c.generic.Append(cell)
			if c.generic.IsFull() {
				if err := c.generic.Flush(t.writer, t.pool); err != nil {
					return err
				}
			}
		}
	}
	if t.desc.IsFull() {
		if err := t.desc.Flush(t.writer, t.pool); err != nil {
			return err
		}
	}
	return nil
}

// FlushAll forces every column to commit its partial buffer, then
// records each stream's cumulative raw size.
func (t *Table) FlushAll() error {
	if err := t.desc.Flush(t.writer, t.pool); err != nil {
		return err
	}
	for _, k := range sortedKeyIDs(t.cols) {
		c := t.cols[k]
		switch c.route {
		case routeGenotype:
			if err := c.genotype.Flush(t.writer, t.pool); err != nil {
				return err
			}
		case routeFormatOne:
			if err := c.format.Flush(t.writer, t.pool); err != nil {
				return err
			}
		case routeInfoOne:
			if err := c.info.Flush(t.writer, t.pool); err != nil {
				return err
			}
		default:
			if err := c.generic.Flush(t.writer, t.pool); err != nil {
				return err
			}
		}
	}
	return t.recordRawSizes()
}

// recordRawSizes reports every column's cumulative raw byte count to
// the archive once, after the final flush; SetRawSize stores an
// absolute value so this must run only after every Flush call has
// happened, not incrementally.
func (t *Table) recordRawSizes() error {
	if err := setDescRawSizes(t.writer, t.desc); err != nil {
		return err
	}

	for _, k := range sortedKeyIDs(t.cols) {
		c := t.cols[k]
		switch c.route {
		case routeGenotype:
			if err := t.writer.SetRawSize(c.genotype.dataStream, c.genotype.RawTotal()); err != nil {
				return err
			}
		case routeFormatOne:
			if err := t.writer.SetRawSize(c.format.sizeStream, c.format.SizeRawTotal()); err != nil {
				return err
			}
			if err := t.writer.SetRawSize(c.format.dataStream, c.format.RawTotal()); err != nil {
				return err
			}
		case routeInfoOne:
			if err := t.writer.SetRawSize(c.info.sizeStream, c.info.SizeRawTotal()); err != nil {
				return err
			}
			if err := t.writer.SetRawSize(c.info.dataStream, c.info.RawTotal()); err != nil {
				return err
			}
		default:
			if err := t.writer.SetRawSize(c.generic.sizeStream, c.generic.SizeRawTotal()); err != nil {
				return err
			}
			if err := t.writer.SetRawSize(c.generic.dataStream, c.generic.DataRawTotal()); err != nil {
				return err
			}
		}
	}
	return nil
}

func setDescRawSizes(writer *archive.Writer, v *variantDescEnc) error {
	for _, c := range []*genericEncColumn{v.chrom, v.id, v.ref, v.alt, v.qual} {
		if err := writer.SetRawSize(c.sizeStream, c.SizeRawTotal()); err != nil {
			return err
		}
		if err := writer.SetRawSize(c.dataStream, c.DataRawTotal()); err != nil {
			return err
		}
	}
	if err := writer.SetRawSize(v.posSizeStream, 0); err != nil {
		return err
	}
	return writer.SetRawSize(v.posDataStream, v.posRawTotal)
}

func sortedKeyIDs(m map[int]*encCol) []int {
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
