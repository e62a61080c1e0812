// Package contextmap implements an open-addressing map from a 64-bit
// context tag to an owned entropy model instance, as used by the
// FormatCodec context-mixing range coder (GenotypeCodec keys its
// models with plain Go maps).
//
// Grounded on arloliu/mebo's xxhash-based id hashing (internal/hash/id.go):
// the same "hash once, fold into a fixed-width bucket index" idiom is
// reused here for context lookup instead of metric-name hashing.
package contextmap

import "github.com/cespare/xxhash/v2"

const maxLoadFactor = 0.6

// Map is an open-addressing hash table keyed by a 64-bit context,
// storing one opaque model value (a rangecoder.Model in practice) per
// slot. Capacity is always a power of two.
type Map[V any] struct {
	keys     []uint64
	values   []V
	occupied []bool
	size     int
}

// New creates an empty Map with a small initial capacity.
func New[V any]() *Map[V] {
	return &Map[V]{
		keys:     make([]uint64, 8),
		values:   make([]V, 8),
		occupied: make([]bool, 8),
	}
}

func finalize(ctx uint64) uint64 {
	var b [8]byte
	for i := 0; i < 8; i++ {
		b[i] = byte(ctx >> (8 * i))
	}
	return xxhash.Sum64(b[:])
}

func (m *Map[V]) slot(ctx uint64) int {
	mask := uint64(len(m.keys) - 1)
	idx := finalize(ctx) & mask
	for m.occupied[idx] && m.keys[idx] != ctx {
		idx = (idx + 1) & mask
	}
	return int(idx)
}

func (m *Map[V]) grow() {
	oldKeys, oldVals, oldOcc := m.keys, m.values, m.occupied
	newCap := len(m.keys) * 2
	m.keys = make([]uint64, newCap)
	m.values = make([]V, newCap)
	m.occupied = make([]bool, newCap)
	m.size = 0
	for i, occ := range oldOcc {
		if occ {
			m.Insert(oldKeys[i], oldVals[i])
		}
	}
}

// Insert stores value under ctx, overwriting any existing entry.
func (m *Map[V]) Insert(ctx uint64, value V) {
	if float64(m.size+1) > maxLoadFactor*float64(len(m.keys)) {
		m.grow()
	}
	idx := m.slot(ctx)
	if !m.occupied[idx] {
		m.size++
	}
	m.keys[idx] = ctx
	m.occupied[idx] = true
	m.values[idx] = value
}

// Find returns the value stored under ctx, if any.
func (m *Map[V]) Find(ctx uint64) (V, bool) {
	idx := m.slot(ctx)
	if m.occupied[idx] {
		return m.values[idx], true
	}
	var zero V
	return zero, false
}

// GetOrInsert returns the value under ctx, creating it via make if absent.
func (m *Map[V]) GetOrInsert(ctx uint64, make func() V) V {
	if v, ok := m.Find(ctx); ok {
		return v
	}
	v := make()
	m.Insert(ctx, v)
	return v
}

// Len returns the number of populated entries.
func (m *Map[V]) Len() int { return m.size }
