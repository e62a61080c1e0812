// Package pipeline implements the four-stage record/column pipeline and
// the worker pool that services compression/decompression packages
// behind it.
//
// Grounded on cosnicolaou/pbzip2's Decompressor: a shared work channel
// drained by a fixed worker count, with per-stream ordered reassembly
// via a container/heap min-heap keyed on a monotonically increasing
// id (there, block order; here, a stream's part_id) before anything
// is committed downstream. The pbzip2 decompressor reassembles a single
// stream into one pipe; this pool generalizes that to many concurrently
// open streams, one heap per stream, sharing one archive.Writer.
package pipeline

import (
	"container/heap"
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/gvzproj/gvz/archive"
	"github.com/gvzproj/gvz/gvzerr"
	"github.com/gvzproj/gvz/internal/logging"
)

// Job is one compression or decompression package: Exec runs off the
// pipeline's column-assembly stage and returns the bytes to commit
// (plus the part's metadata word) for PartID of StreamID.
type Job struct {
	StreamID int
	PartID   int
	Exec     func() (data []byte, metadata uint64, err error)
}

type jobResult struct {
	job  Job
	data []byte
	meta uint64
	err  error
}

// resultHeap orders pending results for one stream by PartID, so the
// assembler can commit them to the archive in reservation order even
// though workers finish them in arbitrary order.
type resultHeap []*jobResult

func (h resultHeap) Len() int            { return len(h) }
func (h resultHeap) Less(i, j int) bool  { return h[i].job.PartID < h[j].job.PartID }
func (h resultHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *resultHeap) Push(x interface{}) { *h = append(*h, x.(*jobResult)) }
func (h *resultHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

type streamState struct {
	expected int
	pending  resultHeap
	inflight int
}

// WorkerPool dispatches Jobs across W goroutines and commits their
// results to an archive.Writer in per-stream part_id order, enforcing
// a per-stream in-flight cap for back-pressure.
type WorkerPool struct {
	writer *archive.Writer
	log    *logging.Logger
	cap    int

	workCh chan Job
	doneCh chan *jobResult

	mu     sync.Mutex
	cond   *sync.Cond
	states map[int]*streamState

	group *errgroup.Group
	gctx  context.Context

	assembleWg sync.WaitGroup
	commitErr  error
}

// NewWorkerPool creates a pool of numWorkers goroutines writing
// completed parts to writer, with perStreamCap packages allowed
// in flight at a time for any one stream. A count below 1 for either
// is raised to 1; the default of 4 in flight is picked by gvz.Params.
func NewWorkerPool(ctx context.Context, writer *archive.Writer, log *logging.Logger, numWorkers, perStreamCap int) *WorkerPool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if perStreamCap < 1 {
		perStreamCap = 1
	}
	group, gctx := errgroup.WithContext(ctx)
	p := &WorkerPool{
		writer: writer,
		log:    log,
		cap:    perStreamCap,
		workCh: make(chan Job, numWorkers),
		doneCh: make(chan *jobResult, numWorkers),
		states: make(map[int]*streamState),
		group:  group,
		gctx:   gctx,
	}
	p.cond = sync.NewCond(&p.mu)

	for i := 0; i < numWorkers; i++ {
		group.Go(func() error { return p.work() })
	}
	p.assembleWg.Add(1)
	go func() {
		defer p.assembleWg.Done()
		p.assemble()
	}()
	return p
}

func (p *WorkerPool) state(streamID int) *streamState {
	s, ok := p.states[streamID]
	if !ok {
		s = &streamState{}
		p.states[streamID] = s
	}
	return s
}

// Submit enqueues job, blocking while its stream already has cap
// packages in flight. It returns the pool's context error if the pool
// has been cancelled by a prior failure.
func (p *WorkerPool) Submit(job Job) error {
	p.mu.Lock()
	s := p.state(job.StreamID)
	for s.inflight >= p.cap {
		select {
		case <-p.gctx.Done():
			p.mu.Unlock()
			return p.gctx.Err()
		default:
		}
		p.cond.Wait()
	}
	s.inflight++
	p.mu.Unlock()

	select {
	case p.workCh <- job:
		return nil
	case <-p.gctx.Done():
		return p.gctx.Err()
	}
}

func (p *WorkerPool) work() error {
	for {
		select {
		case job, ok := <-p.workCh:
			if !ok {
				return nil
			}
			p.log.Trace("running part stream=%d part=%d", job.StreamID, job.PartID)
			data, meta, err := job.Exec()
			res := &jobResult{job: job, data: data, meta: meta, err: err}
			select {
			case p.doneCh <- res:
			case <-p.gctx.Done():
				return p.gctx.Err()
			}
		case <-p.gctx.Done():
			return p.gctx.Err()
		}
	}
}

// assemble drains doneCh, holding each stream's out-of-order results in
// a min-heap until the next expected part_id is available, then writes
// it to the archive and releases Submit waiters for that stream.
func (p *WorkerPool) assemble() {
	for res := range p.doneCh {
		p.mu.Lock()
		s := p.state(res.job.StreamID)
		heap.Push(&s.pending, res)

		for len(s.pending) > 0 && s.pending[0].job.PartID == s.expected {
			next := heap.Pop(&s.pending).(*jobResult)
			s.expected++
			s.inflight--
			p.cond.Broadcast()

			if next.err != nil && p.commitErr == nil {
				p.commitErr = next.err
			}
			if p.commitErr == nil {
				if err := p.writer.AddPartComplete(next.job.StreamID, next.job.PartID, next.data, next.meta); err != nil {
					p.commitErr = err
				}
			}
		}
		p.mu.Unlock()
	}
}

// Wait closes the submission channel, waits for every worker and the
// assembler to finish, and returns the first error encountered (a
// worker error takes precedence over a commit error).
func (p *WorkerPool) Wait() error {
	close(p.workCh)
	workErr := p.group.Wait()
	close(p.doneCh)
	p.assembleWg.Wait()

	if workErr != nil {
		return workErr
	}
	if p.commitErr != nil {
		return p.commitErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.states {
		if len(s.pending) > 0 {
			return gvzerr.ErrProtocolError
		}
	}
	return nil
}
