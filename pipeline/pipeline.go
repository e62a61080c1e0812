package pipeline

import (
	"sync"
	"sync/atomic"

	"github.com/gvzproj/gvz/internal/logging"
	"github.com/gvzproj/gvz/record"
)

// CompressDispatcher is stage C's routing target: codec.Table
// implements it, fanning each row's cells out to per-column
// ColumnBuffers and submitting flushed buffers to a WorkerPool.
type CompressDispatcher interface {
	DispatchRow(row record.Row) error
	// FlushAll forces every column buffer to commit regardless of fill
	// level; called once at end-of-input.
	FlushAll() error
}

// DecompressAssembler is the mirror-image stage C target for
// decompression: it pulls cells back out of per-column streams and
// reassembles rows, handing each finished row to sink.
type DecompressAssembler interface {
	// NextRow produces the next reassembled row, or ok=false once every
	// column stream is exhausted.
	NextRow() (row record.Row, ok bool, err error)
}

// doubleBuffer holds two []record.Row slots and tracks which one is
// "current" (readable by the downstream stage) versus "next" (being
// filled by the upstream stage this cycle). swap flips the roles once
// a cycle, under stage D's exclusive window between the barrier's two
// rendezvous points, so no other stage ever observes a half-swapped
// buffer.
type doubleBuffer struct {
	slots [2][]record.Row
	cur   int
}

func (d *doubleBuffer) curSlice() []record.Row { return d.slots[d.cur] }
func (d *doubleBuffer) setNext(rows []record.Row) {
	d.slots[1-d.cur] = rows
}
func (d *doubleBuffer) swap() { d.cur = 1 - d.cur }

// CompressPipeline runs the four cooperating stages described for
// compression: record I/O, parse/validate, column-assembly +
// dispatch, and barrier control with double-buffer swap and
// end-of-input detection.
//
// Every cycle, each stage calls the shared barrier exactly twice: the
// first rendezvous reports "I have produced/consumed this cycle's
// data"; only stage D does anything between the two calls (the buffer
// swap and end-of-input check), which the other three stages wait out
// by going straight into their own second call. The second rendezvous
// then releases all four together into the next cycle.
//
// The four-stage rendezvous choreography has no equivalent in the
// example pack (pbzip2's pipeline is a worker-pool + ordered-
// reassembly pipe, which this package's WorkerPool separately
// models), so the barrier itself is original to this package, built
// directly to match the stage choreography above.
type CompressPipeline struct {
	source     record.Source
	dispatcher CompressDispatcher
	log        *logging.Logger
	batchSize  int

	barrier *CountdownBarrier

	raw    doubleBuffer
	parsed doubleBuffer

	sourceDone int32 // atomic bool: stage A has seen end-of-input
	stop       int32 // atomic bool: every stage exits after the current cycle

	mu       sync.Mutex
	firstErr error
}

// NewCompressPipeline wires a pipeline over source, handing finished
// column buffers to dispatcher in batches of up to batchSize rows per
// cycle.
func NewCompressPipeline(source record.Source, dispatcher CompressDispatcher, log *logging.Logger, batchSize int) *CompressPipeline {
	if batchSize < 1 {
		batchSize = 1
	}
	return &CompressPipeline{
		source:     source,
		dispatcher: dispatcher,
		log:        log,
		batchSize:  batchSize,
		barrier:    NewCountdownBarrier(4),
	}
}

func (p *CompressPipeline) fail(err error) {
	p.mu.Lock()
	if p.firstErr == nil {
		p.firstErr = err
	}
	p.mu.Unlock()
	atomic.StoreInt32(&p.stop, 1)
}

func (p *CompressPipeline) failed() bool { return atomic.LoadInt32(&p.stop) != 0 }

// Run drives the pipeline to completion, returning the first error any
// stage encountered (if any), then flushes any partial column buffers.
func (p *CompressPipeline) Run() error {
	var wg sync.WaitGroup
	wg.Add(4)

	go func() { defer wg.Done(); p.stageA() }()
	go func() { defer wg.Done(); p.stageB() }()
	go func() { defer wg.Done(); p.stageC() }()
	go func() { defer wg.Done(); p.stageD() }()

	wg.Wait()

	p.mu.Lock()
	err := p.firstErr
	p.mu.Unlock()
	if err != nil {
		return err
	}
	return p.dispatcher.FlushAll()
}

// stageA: record I/O. Reads up to batchSize rows into the raw buffer's
// next slot each cycle.
func (p *CompressPipeline) stageA() {
	for {
		if !p.failed() {
			rows := make([]record.Row, 0, p.batchSize)
			for len(rows) < p.batchSize {
				row, ok, err := p.source.Next()
				if err != nil {
					p.fail(err)
					break
				}
				if !ok {
					atomic.StoreInt32(&p.sourceDone, 1)
					break
				}
				rows = append(rows, row)
			}
			p.raw.setNext(rows)
		}
		p.barrier.Wait()
		p.barrier.Wait()
		if p.failed() {
			return
		}
	}
}

// stageB: parser. In this pipeline's collaborator model the source
// already hands back structured rows, so this stage's job narrows to
// handing the raw batch on to the parsed buffer, which is where a real
// text-format parser would instead produce (Variant, []Cell) values.
func (p *CompressPipeline) stageB() {
	for {
		if !p.failed() {
			p.parsed.setNext(p.raw.curSlice())
		}
		p.barrier.Wait()
		p.barrier.Wait()
		if p.failed() {
			return
		}
	}
}

// stageC: column assembler / compressor-dispatcher. Routes each
// ready row's cells into their ColumnBuffers, which flush (and submit
// WorkerPool packages) once full.
func (p *CompressPipeline) stageC() {
	for {
		if !p.failed() {
			for _, row := range p.parsed.curSlice() {
				if err := p.dispatcher.DispatchRow(row); err != nil {
					p.fail(err)
					break
				}
			}
		}
		p.barrier.Wait()
		p.barrier.Wait()
		if p.failed() {
			return
		}
	}
}

// stageD: control. Between the barrier's two rendezvous points, swaps
// both double buffers and decides whether the pipeline has drained:
// end-of-input is reached once the source is exhausted and both
// buffers have gone empty (the two cycles of latency between "source
// exhausted" and "last row dispatched").
func (p *CompressPipeline) stageD() {
	for {
		p.barrier.Wait()

		p.raw.swap()
		p.parsed.swap()
		if atomic.LoadInt32(&p.sourceDone) != 0 &&
			len(p.raw.curSlice()) == 0 && len(p.parsed.curSlice()) == 0 {
			atomic.StoreInt32(&p.stop, 1)
		}
		p.log.Trace("pipeline cycle: raw=%d parsed=%d", len(p.raw.curSlice()), len(p.parsed.curSlice()))

		p.barrier.Wait()
		if p.failed() {
			return
		}
	}
}

// DecompressPipeline runs the symmetric pipeline for decompression:
// stage roles reverse (column disassembly feeds row reconstruction,
// which feeds the record sink) but the same four-way barrier and
// double-buffer shape applies.
type DecompressPipeline struct {
	assembler DecompressAssembler
	sink      record.Sink
	log       *logging.Logger
	batchSize int

	barrier *CountdownBarrier

	rows    doubleBuffer
	written doubleBuffer

	assemblerDone int32
	stop          int32

	mu       sync.Mutex
	firstErr error
}

// NewDecompressPipeline wires a decompression pipeline pulling rows
// from assembler and writing them to sink in batches of up to
// batchSize rows per cycle.
func NewDecompressPipeline(assembler DecompressAssembler, sink record.Sink, log *logging.Logger, batchSize int) *DecompressPipeline {
	if batchSize < 1 {
		batchSize = 1
	}
	return &DecompressPipeline{
		assembler: assembler,
		sink:      sink,
		log:       log,
		batchSize: batchSize,
		barrier:   NewCountdownBarrier(4),
	}
}

func (p *DecompressPipeline) fail(err error) {
	p.mu.Lock()
	if p.firstErr == nil {
		p.firstErr = err
	}
	p.mu.Unlock()
	atomic.StoreInt32(&p.stop, 1)
}

func (p *DecompressPipeline) failed() bool { return atomic.LoadInt32(&p.stop) != 0 }

// Run drives the decompression pipeline to completion.
func (p *DecompressPipeline) Run() error {
	var wg sync.WaitGroup
	wg.Add(4)

	go func() { defer wg.Done(); p.stageA() }() // column disassembly (via assembler.NextRow)
	go func() { defer wg.Done(); p.stageB() }() // row reconstruction pass-through
	go func() { defer wg.Done(); p.stageC() }() // record I/O: write to sink
	go func() { defer wg.Done(); p.stageD() }() // control

	wg.Wait()
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.firstErr
}

func (p *DecompressPipeline) stageA() {
	for {
		if !p.failed() {
			rows := make([]record.Row, 0, p.batchSize)
			for len(rows) < p.batchSize {
				row, ok, err := p.assembler.NextRow()
				if err != nil {
					p.fail(err)
					break
				}
				if !ok {
					atomic.StoreInt32(&p.assemblerDone, 1)
					break
				}
				rows = append(rows, row)
			}
			p.rows.setNext(rows)
		}
		p.barrier.Wait()
		p.barrier.Wait()
		if p.failed() {
			return
		}
	}
}

func (p *DecompressPipeline) stageB() {
	for {
		if !p.failed() {
			p.written.setNext(p.rows.curSlice())
		}
		p.barrier.Wait()
		p.barrier.Wait()
		if p.failed() {
			return
		}
	}
}

func (p *DecompressPipeline) stageC() {
	for {
		if !p.failed() {
			for _, row := range p.written.curSlice() {
				if err := p.sink.Put(row); err != nil {
					p.fail(err)
					break
				}
			}
		}
		p.barrier.Wait()
		p.barrier.Wait()
		if p.failed() {
			return
		}
	}
}

func (p *DecompressPipeline) stageD() {
	for {
		p.barrier.Wait()

		p.rows.swap()
		p.written.swap()
		if atomic.LoadInt32(&p.assemblerDone) != 0 &&
			len(p.rows.curSlice()) == 0 && len(p.written.curSlice()) == 0 {
			atomic.StoreInt32(&p.stop, 1)
		}
		p.log.Trace("decompress cycle: rows=%d written=%d", len(p.rows.curSlice()), len(p.written.curSlice()))

		p.barrier.Wait()
		if p.failed() {
			return
		}
	}
}
