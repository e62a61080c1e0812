package codec

import (
	"github.com/gvzproj/gvz/archive"
	"github.com/gvzproj/gvz/column"
	"github.com/gvzproj/gvz/internal/blockcoder"
	"github.com/gvzproj/gvz/pipeline"
)

// variantDescNames lists the six descriptive fields every row carries,
// each taking the generic path with fixed per-stream BlockCoder
// parameters, except pos which is delta-coded.
var variantDescNames = []string{"chrom", "pos", "id", "ref", "alt", "qual"}

// variantDescEnc holds the six fixed description streams. pos is
// delta-coded against the previous row's position; the rest are text.
type variantDescEnc struct {
	chrom, id, ref, alt, qual *genericEncColumn
	posBuf                    *column.Buffer
	posSizeStream, posDataStream int
	posCoder                  *blockcoder.Coder
	prevPos                   int64
	posRawTotal               int64
}

func newVariantDescEnc(streamOf map[string][2]int, maxSize int, params blockcoder.Params) *variantDescEnc {
	s := streamOf["chrom"]
	chrom := newGenericEncColumn(column.CellText, maxSize, s[0], s[1], params)
	s = streamOf["id"]
	id := newGenericEncColumn(column.CellText, maxSize, s[0], s[1], params)
	s = streamOf["ref"]
	ref := newGenericEncColumn(column.CellText, maxSize, s[0], s[1], params)
	s = streamOf["alt"]
	alt := newGenericEncColumn(column.CellText, maxSize, s[0], s[1], params)
	s = streamOf["qual"]
	qual := newGenericEncColumn(column.CellText, maxSize, s[0], s[1], params)
	s = streamOf["pos"]
	return &variantDescEnc{
		chrom: chrom, id: id, ref: ref, alt: alt, qual: qual,
		posBuf:        column.NewBuffer(column.CellInt64Delta, maxSize),
		posSizeStream: s[0], posDataStream: s[1],
		posCoder: blockcoder.New(params),
	}
}

func (v *variantDescEnc) Append(variant column.Variant) {
	v.chrom.Append(column.Cell{Present: true, Payload: []byte(variant.Chrom), Count: uint32(len(variant.Chrom))})
	v.id.Append(column.Cell{Present: true, Payload: []byte(variant.ID), Count: uint32(len(variant.ID))})
	v.ref.Append(column.Cell{Present: true, Payload: []byte(variant.Ref), Count: uint32(len(variant.Ref))})
	v.alt.Append(column.Cell{Present: true, Payload: []byte(variant.Alt), Count: uint32(len(variant.Alt))})
	v.qual.Append(column.Cell{Present: true, Payload: []byte(variant.Qual), Count: uint32(len(variant.Qual))})

	v.posBuf.AppendInt64Delta(variant.Pos - v.prevPos)
	v.prevPos = variant.Pos
}

func (v *variantDescEnc) IsFull() bool {
	return v.chrom.IsFull() || v.id.IsFull() || v.ref.IsFull() || v.alt.IsFull() || v.qual.IsFull() || v.posBuf.IsFull()
}

func (v *variantDescEnc) Flush(writer *archive.Writer, pool *pipeline.WorkerPool) error {
	for _, c := range []*genericEncColumn{v.chrom, v.id, v.ref, v.alt, v.qual} {
		if err := c.Flush(writer, pool); err != nil {
			return err
		}
	}
	if v.posBuf.NumCells() == 0 {
		return nil
	}
	sizes := append([]byte(nil), v.posBuf.Sizes()...)
	data := append([]byte(nil), v.posBuf.Data()...)
	v.posBuf.Reset()
	v.posRawTotal += int64(len(sizes)) + int64(len(data))

	sizePartID, err := writer.AddPartPrepare(v.posSizeStream)
	if err != nil {
		return err
	}
	coder := v.posCoder
	if err := pool.Submit(pipeline.Job{
		StreamID: v.posSizeStream, PartID: sizePartID,
		Exec: func() ([]byte, uint64, error) {
			out, err := coder.Encode(sizes)
			return out, uint64(len(sizes)), err
		},
	}); err != nil {
		return err
	}
	dataPartID, err := writer.AddPartPrepare(v.posDataStream)
	if err != nil {
		return err
	}
	return pool.Submit(pipeline.Job{
		StreamID: v.posDataStream, PartID: dataPartID,
		Exec: func() ([]byte, uint64, error) {
			out, err := coder.Encode(data)
			return out, uint64(len(data)), err
		},
	})
}

// variantDescDec mirrors variantDescEnc on the read side.
type variantDescDec struct {
	chrom, id, ref, alt, qual *genericDecColumn
	posSizeStream, posDataStream int
	posCoder                  *blockcoder.Coder
	reader                    *archive.Reader
	nextPosPart               int
	posCur                    *cellReader
	runningPos                int64
}

func newVariantDescDec(reader *archive.Reader, streamOf map[string][2]int, params blockcoder.Params) *variantDescDec {
	s := streamOf["chrom"]
	chrom := newGenericDecColumn(column.CellText, reader, s[0], s[1], params)
	s = streamOf["id"]
	id := newGenericDecColumn(column.CellText, reader, s[0], s[1], params)
	s = streamOf["ref"]
	ref := newGenericDecColumn(column.CellText, reader, s[0], s[1], params)
	s = streamOf["alt"]
	alt := newGenericDecColumn(column.CellText, reader, s[0], s[1], params)
	s = streamOf["qual"]
	qual := newGenericDecColumn(column.CellText, reader, s[0], s[1], params)
	s = streamOf["pos"]
	return &variantDescDec{
		chrom: chrom, id: id, ref: ref, alt: alt, qual: qual,
		posSizeStream: s[0], posDataStream: s[1],
		posCoder: blockcoder.New(params),
		reader:   reader,
	}
}

func (v *variantDescDec) loadNextPosPart() (bool, error) {
	n, err := v.reader.NumParts(v.posDataStream)
	if err != nil {
		return false, err
	}
	if v.nextPosPart >= n {
		return false, nil
	}
	rawSizes, sizeMeta, err := v.reader.GetPart(v.posSizeStream, v.nextPosPart)
	if err != nil {
		return false, err
	}
	sizes, err := v.posCoder.Decode(rawSizes, int(sizeMeta))
	if err != nil {
		return false, err
	}
	rawData, dataMeta, err := v.reader.GetPart(v.posDataStream, v.nextPosPart)
	if err != nil {
		return false, err
	}
	data, err := v.posCoder.Decode(rawData, int(dataMeta))
	if err != nil {
		return false, err
	}
	v.posCur = newCellReader(column.CellInt64Delta, sizes, data)
	v.nextPosPart++
	return true, nil
}

func (v *variantDescDec) nextPos() (int64, bool, error) {
	for {
		if v.posCur != nil {
			payload, ok, err := v.posCur.Next()
			if err != nil {
				return 0, false, err
			}
			if ok {
				v.runningPos += decodeInt64Payload(payload)
				return v.runningPos, true, nil
			}
			v.posCur = nil
		}
		more, err := v.loadNextPosPart()
		if err != nil {
			return 0, false, err
		}
		if !more {
			return 0, false, nil
		}
	}
}

// NextVariant reassembles one Variant tuple, or ok=false once the
// chrom stream (the leading field every row carries) is exhausted.
func (v *variantDescDec) NextVariant() (column.Variant, bool, error) {
	chromCell, ok, err := v.chrom.NextCell()
	if err != nil || !ok {
		return column.Variant{}, ok, err
	}
	pos, _, err := v.nextPos()
	if err != nil {
		return column.Variant{}, false, err
	}
	idCell, _, err := v.id.NextCell()
	if err != nil {
		return column.Variant{}, false, err
	}
	refCell, _, err := v.ref.NextCell()
	if err != nil {
		return column.Variant{}, false, err
	}
	altCell, _, err := v.alt.NextCell()
	if err != nil {
		return column.Variant{}, false, err
	}
	qualCell, _, err := v.qual.NextCell()
	if err != nil {
		return column.Variant{}, false, err
	}
	return column.Variant{
		Chrom: string(chromCell.Payload),
		Pos:   pos,
		ID:    string(idCell.Payload),
		Ref:   string(refCell.Payload),
		Alt:   string(altCell.Payload),
		Qual:  string(qualCell.Payload),
	}, true, nil
}
