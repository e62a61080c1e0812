package contextmap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInsertAndFind(t *testing.T) {
	m := New[int]()
	m.Insert(1, 100)
	m.Insert(2, 200)

	v, ok := m.Find(1)
	require.True(t, ok)
	require.Equal(t, 100, v)

	v, ok = m.Find(2)
	require.True(t, ok)
	require.Equal(t, 200, v)

	_, ok = m.Find(3)
	require.False(t, ok)
}

func TestInsertOverwritesExisting(t *testing.T) {
	m := New[string]()
	m.Insert(5, "first")
	m.Insert(5, "second")

	v, ok := m.Find(5)
	require.True(t, ok)
	require.Equal(t, "second", v)
	require.Equal(t, 1, m.Len())
}

func TestGetOrInsertCreatesOnce(t *testing.T) {
	m := New[*int]()
	calls := 0
	makeVal := func() *int {
		calls++
		v := 42
		return &v
	}

	a := m.GetOrInsert(10, makeVal)
	b := m.GetOrInsert(10, makeVal)

	require.Same(t, a, b)
	require.Equal(t, 1, calls)
}

func TestGrowPreservesAllEntries(t *testing.T) {
	m := New[int]()
	const n = 500
	for i := 0; i < n; i++ {
		m.Insert(uint64(i), i*10)
	}
	require.Equal(t, n, m.Len())
	for i := 0; i < n; i++ {
		v, ok := m.Find(uint64(i))
		require.True(t, ok, "key %d", i)
		require.Equal(t, i*10, v)
	}
}

func TestFindOnEmptyMap(t *testing.T) {
	m := New[int]()
	_, ok := m.Find(0)
	require.False(t, ok)
}
