package archive

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashEqual(t *testing.T) {
	require.True(t, HashEqual([]byte("abc"), []byte("abc")))
	require.False(t, HashEqual([]byte("abc"), []byte("abd")))
	require.False(t, HashEqual([]byte("abc"), []byte("ab")))
	require.True(t, HashEqual(nil, nil))
}

func TestGraphDropsIsolatedNodes(t *testing.T) {
	g := NewGraph()
	g.AddNode(100)
	g.AddNode(200)
	g.Optimize()

	require.False(t, g.Nodes[0].Alias)
	require.False(t, g.Nodes[1].Alias)
}

func TestGraphFoldsEqualityEdges(t *testing.T) {
	g := NewGraph()
	a := g.AddNode(50)
	b := g.AddNode(50)
	c := g.AddNode(50)
	g.AddEdge(a, b, true, 0)
	g.AddEdge(b, c, true, 0)

	g.Optimize()

	require.False(t, g.Nodes[a].Alias)
	require.True(t, g.Nodes[b].Alias)
	require.Equal(t, a, g.Nodes[b].AliasOf)
	// Folding a->b removes b's outgoing edges, so b->c never folds and
	// c stays explicit.
	require.False(t, g.Nodes[c].Alias)
	require.Equal(t, -1, g.Nodes[c].AliasOf)
}

func TestGraphPrunesEdgesCostingMoreThanTarget(t *testing.T) {
	g := NewGraph()
	from := g.AddNode(1000)
	to := g.AddNode(10) // cheap target, expensive edge
	g.AddEdge(from, to, false, 500)

	g.Optimize()

	require.False(t, g.Nodes[to].Alias, "edge cost exceeds target cost, must be pruned before greedy selection")
}

func TestGraphGreedySelectsLargestPositiveGain(t *testing.T) {
	// Two candidate sources for the same target: whichever edge yields
	// the larger gain (target cost minus edge cost) must win, even
	// though it is registered second.
	g := NewGraph()
	expensiveSource := g.AddNode(0)
	cheapSource := g.AddNode(0)
	target := g.AddNode(200)
	g.AddEdge(cheapSource, target, false, 50) // gain 150
	g.AddEdge(expensiveSource, target, false, 10) // gain 190, should win

	g.Optimize()

	require.True(t, g.Nodes[target].Alias)
	require.Equal(t, expensiveSource, g.Nodes[target].AliasOf)
}

func TestGraphGreedyRequiresOutDegreeZeroTarget(t *testing.T) {
	g := NewGraph()
	a := g.AddNode(0)
	b := g.AddNode(50)
	c := g.AddNode(200)
	// b has an outgoing edge (to c), so b is not a valid alias target
	// until that edge is resolved away.
	g.AddEdge(a, b, false, 5)
	g.AddEdge(b, c, false, 5)

	g.Optimize()

	require.False(t, g.Nodes[b].Alias, "b has out-degree>0 and cannot be selected as an alias target while c's edge stands")
	require.True(t, g.Nodes[c].Alias)
}
