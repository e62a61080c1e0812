package pipeline

import "sync"

// CountdownBarrier is a reusable rendezvous point for a fixed number of
// long-lived workers. Each cycle every worker calls Wait exactly once;
// the call blocks until all arity workers have arrived, then releases
// all of them together before the next cycle can begin. The generation
// counter gives the two phase-flips the pipeline's stage design calls
// for: arrivals in generation g cannot be mistaken for arrivals already
// released into g+1, even if a fast worker laps a slow one.
type CountdownBarrier struct {
	mu         sync.Mutex
	cond       *sync.Cond
	arity      int
	waiting    int
	generation uint64
}

// NewCountdownBarrier creates a barrier for exactly arity participants.
func NewCountdownBarrier(arity int) *CountdownBarrier {
	b := &CountdownBarrier{arity: arity}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Wait counts this caller down and blocks until the other arity-1
// participants have also called Wait for the current generation, then
// returns for all of them together.
func (b *CountdownBarrier) Wait() {
	b.mu.Lock()
	defer b.mu.Unlock()

	gen := b.generation
	b.waiting++
	if b.waiting == b.arity {
		b.waiting = 0
		b.generation++
		b.cond.Broadcast()
		return
	}
	for gen == b.generation {
		b.cond.Wait()
	}
}
