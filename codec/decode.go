package codec

import (
	"fmt"

	"github.com/gvzproj/gvz/archive"
	"github.com/gvzproj/gvz/column"
	"github.com/gvzproj/gvz/formatcodec"
	"github.com/gvzproj/gvz/genotype"
	"github.com/gvzproj/gvz/gvzerr"
	"github.com/gvzproj/gvz/record"
)

// decCol is whichever concrete per-key decode column a key routes to,
// mirroring encCol.
type decCol struct {
	route    route
	generic  *genericDecColumn
	genotype *genotypeDecColumn
	format   *formatDecColumn
	info     *infoDecColumn
	noFields int
}

// DecodeTable implements pipeline.DecompressAssembler, pulling cells
// back out of per-key streams and reassembling rows in the same key
// order Table dispatched them.
type DecodeTable struct {
	reader *archive.Reader
	keys   []column.Key
	cols   map[int]*decCol
	desc   *variantDescDec
}

// NewDecodeTable resolves the stream names Table registered on encode
// and returns a DecodeTable ready to produce rows.
func NewDecodeTable(reader *archive.Reader, keys []column.Key, noSamples, ploidy int, p Params) (*DecodeTable, error) {
	t := &DecodeTable{reader: reader, keys: keys, cols: make(map[int]*decCol)}

	streamOf := make(map[string][2]int)
	for _, name := range variantDescNames {
		sizeID, err := mustStream(reader, "db_"+name+"_size")
		if err != nil {
			return nil, err
		}
		dataID, err := mustStream(reader, "idb_"+name+"_data")
		if err != nil {
			return nil, err
		}
		streamOf[name] = [2]int{sizeID, dataID}
	}
	t.desc = newVariantDescDec(reader, streamOf, p.BlockParams)

	for _, k := range keys {
		r := chooseRoute(k, p.FormatCodecStrings)
		switch r {
		case routeGenotype:
			dataID, err := mustStream(reader, fmt.Sprintf("key_%d_data", k.KeyID))
			if err != nil {
				return nil, err
			}
			gt := genotype.NewCodec(noSamples, ploidy, p.NeglectLimit, genotypeMaxVal)
			t.cols[k.KeyID] = &decCol{
				route:    r,
				genotype: newGenotypeDecColumn(gt, reader, dataID),
				noFields: noSamples * ploidy,
			}
		case routeFormatOne:
			sizeID, err := mustStream(reader, fmt.Sprintf("key_%d_size", k.KeyID))
			if err != nil {
				return nil, err
			}
			dataID, err := mustStream(reader, fmt.Sprintf("key_%d_data", k.KeyID))
			if err != nil {
				return nil, err
			}
			t.cols[k.KeyID] = &decCol{
				route:  r,
				format: newFormatDecColumn(formatcodec.NewCodec(), reader, dataID, sizeID, noSamples, p.BlockParams),
			}
		case routeInfoOne:
			sizeID, err := mustStream(reader, fmt.Sprintf("key_%d_size", k.KeyID))
			if err != nil {
				return nil, err
			}
			dataID, err := mustStream(reader, fmt.Sprintf("key_%d_data", k.KeyID))
			if err != nil {
				return nil, err
			}
			t.cols[k.KeyID] = &decCol{
				route: r,
				info:  newInfoDecColumn(formatcodec.NewCodec(), reader, dataID, sizeID, p.BlockParams),
			}
		default:
			sizeID, err := mustStream(reader, fmt.Sprintf("key_%d_size", k.KeyID))
			if err != nil {
				return nil, err
			}
			dataID, err := mustStream(reader, fmt.Sprintf("key_%d_data", k.KeyID))
			if err != nil {
				return nil, err
			}
			t.cols[k.KeyID] = &decCol{
				route:   r,
				generic: newGenericDecColumn(cellType(k), reader, sizeID, dataID, p.BlockParams),
			}
		}
	}
	return t, nil
}

func mustStream(reader *archive.Reader, name string) (int, error) {
	id, ok := reader.StreamID(name)
	if !ok {
		return 0, gvzerr.ErrCorruptArchive
	}
	return id, nil
}

// NextRow implements pipeline.DecompressAssembler.
func (t *DecodeTable) NextRow() (record.Row, bool, error) {
	variant, ok, err := t.desc.NextVariant()
	if err != nil || !ok {
		return record.Row{}, ok, err
	}

	cells := make(map[int]column.Cell, len(t.keys))
	for _, k := range t.keys {
		c := t.cols[k.KeyID]
		switch c.route {
		case routeGenotype:
			grid, _, err := c.genotype.NextRow()
			if err != nil {
				return record.Row{}, false, err
			}
			cells[k.KeyID] = gridToCell(grid)
		case routeFormatOne:
			row, _, err := c.format.NextRow()
			if err != nil {
				return record.Row{}, false, err
			}
			cells[k.KeyID] = gridToCell(row)
		case routeInfoOne:
			cell, _, err := c.info.NextCell()
			if err != nil {
				return record.Row{}, false, err
			}
			cells[k.KeyID] = cell
		default:
			cell, _, err := c.generic.NextCell()
			if err != nil {
				return record.Row{}, false, err
			}
			cells[k.KeyID] = cell
		}
	}
	return record.Row{Variant: variant, Cells: cells}, true, nil
}

// gridToCell reverses cellToU32: a row whose every slot carries the
// codedSentinel is the encode side's "cell not present" marker.
func gridToCell(values []uint32) column.Cell {
	if len(values) == 0 || values[0] == codedSentinel {
		return column.Cell{Present: false}
	}
	return column.Cell{Present: true, Payload: u32ToPayload(values), Count: uint32(len(values))}
}
