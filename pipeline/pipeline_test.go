package pipeline

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gvzproj/gvz/column"
	"github.com/gvzproj/gvz/internal/logging"
	"github.com/gvzproj/gvz/record"
)

func TestCountdownBarrierReleasesTogether(t *testing.T) {
	const arity = 5
	b := NewCountdownBarrier(arity)

	var wg sync.WaitGroup
	var released int32
	start := make(chan struct{})
	for i := 0; i < arity; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			b.Wait()
			atomic.AddInt32(&released, 1)
		}()
	}
	close(start)

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("barrier did not release all participants")
	}
	require.EqualValues(t, arity, released)
}

func TestCountdownBarrierMultipleGenerations(t *testing.T) {
	const arity = 3
	b := NewCountdownBarrier(arity)

	var wg sync.WaitGroup
	for i := 0; i < arity; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for cycle := 0; cycle < 10; cycle++ {
				b.Wait()
			}
		}()
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("barrier stalled across generations")
	}
}

// fakeDispatcher records every row it's handed, for CompressPipeline
// assertions.
type fakeDispatcher struct {
	mu      sync.Mutex
	rows    []record.Row
	flushed bool
}

func (f *fakeDispatcher) DispatchRow(row record.Row) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, row)
	return nil
}

func (f *fakeDispatcher) FlushAll() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushed = true
	return nil
}

type fakeSource struct {
	rows []record.Row
	pos  int
}

func (s *fakeSource) Keys() ([]record.Key, int, int, error) { return nil, 0, 0, nil }
func (s *fakeSource) Next() (record.Row, bool, error) {
	if s.pos >= len(s.rows) {
		return record.Row{}, false, nil
	}
	row := s.rows[s.pos]
	s.pos++
	return row, true, nil
}

func makeRows(n int) []record.Row {
	rows := make([]record.Row, n)
	for i := range rows {
		rows[i] = record.Row{Variant: column.Variant{Chrom: "chr1", Pos: int64(i)}}
	}
	return rows
}

func TestCompressPipelineDispatchesEveryRowInOrder(t *testing.T) {
	rows := makeRows(37)
	source := &fakeSource{rows: rows}
	dispatcher := &fakeDispatcher{}

	pl := NewCompressPipeline(source, dispatcher, logging.Nop(), 4)
	require.NoError(t, pl.Run())

	require.True(t, dispatcher.flushed)
	require.Len(t, dispatcher.rows, len(rows))
	for i, r := range dispatcher.rows {
		require.Equal(t, int64(i), r.Variant.Pos)
	}
}

func TestCompressPipelineEmptySource(t *testing.T) {
	source := &fakeSource{}
	dispatcher := &fakeDispatcher{}

	pl := NewCompressPipeline(source, dispatcher, logging.Nop(), 8)
	require.NoError(t, pl.Run())

	require.True(t, dispatcher.flushed)
	require.Empty(t, dispatcher.rows)
}

type fakeAssembler struct {
	rows []record.Row
	pos  int
}

func (a *fakeAssembler) NextRow() (record.Row, bool, error) {
	if a.pos >= len(a.rows) {
		return record.Row{}, false, nil
	}
	row := a.rows[a.pos]
	a.pos++
	return row, true, nil
}

type fakeSink struct {
	mu     sync.Mutex
	rows   []record.Row
	closed bool
}

func (s *fakeSink) Open([]record.Key, int, int) error { return nil }
func (s *fakeSink) Put(r record.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, r)
	return nil
}
func (s *fakeSink) Close() error { s.closed = true; return nil }

func TestDecompressPipelineWritesEveryRowInOrder(t *testing.T) {
	rows := makeRows(50)
	assembler := &fakeAssembler{rows: rows}
	sink := &fakeSink{}

	pl := NewDecompressPipeline(assembler, sink, logging.Nop(), 6)
	require.NoError(t, pl.Run())

	require.Len(t, sink.rows, len(rows))
	for i, r := range sink.rows {
		require.Equal(t, int64(i), r.Variant.Pos)
	}
}
