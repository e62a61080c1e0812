// Package gvz ties the archive, codec, and pipeline packages together
// into the two entry points a caller needs: Compress and Decompress.
package gvz

import (
	"context"
	"encoding/binary"
	"io"
	"os"
	"runtime"

	"github.com/gvzproj/gvz/archive"
	"github.com/gvzproj/gvz/codec"
	"github.com/gvzproj/gvz/column"
	"github.com/gvzproj/gvz/gvzerr"
	"github.com/gvzproj/gvz/internal/logging"
	"github.com/gvzproj/gvz/pipeline"
	"github.com/gvzproj/gvz/record"
)

// Params configures one Compress/Decompress call: the per-column codec
// tuning plus the concurrency and logging knobs the CLI exposes.
type Params struct {
	Codec codec.Params

	// Threads bounds the worker pool's goroutine count; 0 picks
	// runtime.NumCPU()-1 (minimum 1).
	Threads int
	// PerStreamInflight caps how many parts of one stream may be
	// in flight at once before Submit blocks; 0 picks 4.
	PerStreamInflight int
	// BatchSize is the pipeline's rows-per-cycle; 0 picks 256.
	BatchSize int
	// LogLevel selects internal/logging's verbosity.
	LogLevel logging.Level
}

func (p Params) resolve() (threads, perStreamCap, batchSize int) {
	threads = p.Threads
	if threads <= 0 {
		threads = runtime.NumCPU() - 1
		if threads < 1 {
			threads = 1
		}
	}
	perStreamCap = p.PerStreamInflight
	if perStreamCap <= 0 {
		perStreamCap = 4
	}
	batchSize = p.BatchSize
	if batchSize <= 0 {
		batchSize = 256
	}
	return
}

// DefaultParams mirrors codec.DefaultParams with threads/batch size
// auto-detected at call time.
var DefaultParams = Params{Codec: codec.DefaultParams}

// Compress reads every record out of source and writes a self-
// describing archive to w. w is taken as an io.WriteSeeker, but Seek
// is never called: the archive writer tracks its own offset.
//
// The main pass lands in a scratch archive on disk; once every column
// is flushed, the GraphOptimizer dedup pass (archive.Dedup) rewrites it
// into w, folding any column whose size- or data-stream content is
// byte-identical to another's into a link.
func Compress(source record.Source, w io.WriteSeeker, p Params) error {
	keys, noSamples, ploidy, err := source.Keys()
	if err != nil {
		return err
	}
	threads, perStreamCap, batchSize := p.resolve()
	log := logging.New(p.LogLevel)

	scratch, err := os.CreateTemp("", "gvz-scratch-*")
	if err != nil {
		return err
	}
	scratchPath := scratch.Name()
	defer os.Remove(scratchPath)
	defer scratch.Close()

	writer := archive.NewWriter(scratch)
	if err := writeHeader(writer, keys, noSamples, ploidy, p.Codec.NeglectLimit); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool := pipeline.NewWorkerPool(ctx, writer, log, threads, perStreamCap)

	table, err := codec.NewTable(writer, pool, keys, noSamples, ploidy, p.Codec)
	if err != nil {
		return err
	}

	pl := pipeline.NewCompressPipeline(source, table, log, batchSize)
	if err := pl.Run(); err != nil {
		cancel()
		pool.Wait()
		return err
	}
	if err := pool.Wait(); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	info, err := scratch.Stat()
	if err != nil {
		return err
	}
	reader, err := archive.Open(scratch, info.Size())
	if err != nil {
		return err
	}
	return archive.Dedup(reader, archive.NewWriter(w))
}

// Decompress reads a self-describing archive from r (backed by a
// region of size bytes) and hands every decoded record to sink in
// reconstructed row order.
func Decompress(r io.ReaderAt, size int64, sink record.Sink, p Params) error {
	reader, err := archive.Open(r, size)
	if err != nil {
		return err
	}
	_, _, batchSize := p.resolve()
	log := logging.New(p.LogLevel)

	keys, noSamples, ploidy, neglectLimit, err := readHeader(reader)
	if err != nil {
		return err
	}
	codecParams := p.Codec
	if codecParams.NeglectLimit == 0 {
		codecParams.NeglectLimit = neglectLimit
	}

	dt, err := codec.NewDecodeTable(reader, keys, noSamples, ploidy, codecParams)
	if err != nil {
		return err
	}
	if err := sink.Open(keys, noSamples, ploidy); err != nil {
		return err
	}

	pl := pipeline.NewDecompressPipeline(dt, sink, log, batchSize)
	if err := pl.Run(); err != nil {
		sink.Close()
		return err
	}
	return sink.Close()
}

// headerStreamName is the fixed stream carrying the key table and
// sample/ploidy/neglect-limit header every archive opens with.
const headerStreamName = "db_params"

// writeHeader serializes no_samples, ploidy, neglect_limit, no_keys,
// gt_key_id, then per key: key_id, kind, value_type — the db_params
// payload. This is a one-off fixed-shape header blob, not a per-column
// stream the codec package's entropy coders are built for, so it uses
// the standard library's uvarint rather than a third-party codec.
func writeHeader(writer *archive.Writer, keys []column.Key, noSamples, ploidy, neglectLimit int) error {
	streamID, err := writer.RegisterStream(headerStreamName)
	if err != nil {
		return err
	}

	gtKeyID := -1
	for _, k := range keys {
		if k.IsGenotype {
			gtKeyID = k.KeyID
			break
		}
	}

	var buf []byte
	var tmp [binary.MaxVarintLen64]byte
	putUvarint := func(v uint64) {
		n := binary.PutUvarint(tmp[:], v)
		buf = append(buf, tmp[:n]...)
	}
	putUvarint(uint64(noSamples))
	putUvarint(uint64(ploidy))
	putUvarint(uint64(neglectLimit))
	putUvarint(uint64(len(keys)))
	putUvarint(uint64(int64(gtKeyID) + 1)) // -1 (no genotype key) shifts to 0

	for _, k := range keys {
		putUvarint(uint64(k.KeyID))
		buf = append(buf, byte(k.Kind))
		buf = append(buf, byte(k.ValueType))
	}

	partID, err := writer.AddPartPrepare(streamID)
	if err != nil {
		return err
	}
	return writer.AddPartComplete(streamID, partID, buf, uint64(len(buf)))
}

func readHeader(reader *archive.Reader) ([]column.Key, int, int, int, error) {
	streamID, ok := reader.StreamID(headerStreamName)
	if !ok {
		return nil, 0, 0, 0, gvzerr.ErrCorruptArchive
	}
	data, _, err := reader.GetPart(streamID, 0)
	if err != nil {
		return nil, 0, 0, 0, err
	}

	pos := 0
	readUvarint := func() (uint64, error) {
		v, n := binary.Uvarint(data[pos:])
		if n <= 0 {
			return 0, gvzerr.ErrCorruptArchive
		}
		pos += n
		return v, nil
	}

	noSamples, err := readUvarint()
	if err != nil {
		return nil, 0, 0, 0, err
	}
	ploidy, err := readUvarint()
	if err != nil {
		return nil, 0, 0, 0, err
	}
	neglectLimit, err := readUvarint()
	if err != nil {
		return nil, 0, 0, 0, err
	}
	noKeys, err := readUvarint()
	if err != nil {
		return nil, 0, 0, 0, err
	}
	gtKeyIDPlusOne, err := readUvarint()
	if err != nil {
		return nil, 0, 0, 0, err
	}
	gtKeyID := int(gtKeyIDPlusOne) - 1

	keys := make([]column.Key, noKeys)
	for i := range keys {
		keyID, err := readUvarint()
		if err != nil {
			return nil, 0, 0, 0, err
		}
		if pos+2 > len(data) {
			return nil, 0, 0, 0, gvzerr.ErrCorruptArchive
		}
		kind := column.Kind(data[pos])
		valueType := column.ValueType(data[pos+1])
		pos += 2
		keys[i] = column.Key{
			KeyID:      int(keyID),
			Kind:       kind,
			ValueType:  valueType,
			IsGenotype: int(keyID) == gtKeyID,
		}
	}
	return keys, int(noSamples), int(ploidy), int(neglectLimit), nil
}
