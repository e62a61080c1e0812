package archive

import "github.com/cespare/xxhash/v2"

// Node is one column's size-stream or data-stream, as seen by the
// optimizer.
type Node struct {
	ID       int
	Cost     int64 // encoded size
	OutEdges []int // indices into the Graph's Edges slice
	Alias    bool  // true once folded into another node
	AliasOf  int
}

// Edge is a candidate "to's stream equals from's stream" link.
type Edge struct {
	From, To int
	Equal    bool
	Cost     int64
	dropped  bool
}

// Graph is the optimizer's working set: one node per column stream,
// plus candidate equality edges discovered by hashing stream bytes.
type Graph struct {
	Nodes []*Node
	Edges []*Edge
}

// NewGraph creates an empty graph.
func NewGraph() *Graph { return &Graph{} }

// AddNode registers a column stream with its encoded cost.
func (g *Graph) AddNode(cost int64) int {
	n := &Node{ID: len(g.Nodes), Cost: cost, AliasOf: -1}
	g.Nodes = append(g.Nodes, n)
	return n.ID
}

// AddEdge registers a candidate equality edge from -> to.
func (g *Graph) AddEdge(from, to int, equal bool, cost int64) {
	e := &Edge{From: from, To: to, Equal: equal, Cost: cost}
	g.Nodes[from].OutEdges = append(g.Nodes[from].OutEdges, len(g.Edges))
	g.Edges = append(g.Edges, e)
}

// HashEqual reports whether two stream byte slices should be treated
// as candidates for dedup: their xxhash digests match (cheap filter)
// and, to guard against collision, the bytes themselves compare equal.
func HashEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	if xxhash.Sum64(a) != xxhash.Sum64(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Optimize runs the greedy largest-positive-gain selection algorithm:
// drop isolated nodes, fold equality edges (marking the target an
// alias and discarding its outgoing edges), prune edges costing more
// than their target, then greedily commit the largest positive-gain
// edge whose target has out-degree 0, tie-breaking by dropping the
// lowest-gain edge to make progress on cycles.
func (g *Graph) Optimize() {
	g.foldEqualityEdges()
	g.pruneExpensiveEdges()
	g.greedySelect()
}

func (g *Graph) foldEqualityEdges() {
	for _, e := range g.Edges {
		if e.dropped || !e.Equal {
			continue
		}
		target := g.Nodes[e.To]
		if target.Alias {
			continue
		}
		target.Alias = true
		target.AliasOf = e.From
		for _, idx := range target.OutEdges {
			g.Edges[idx].dropped = true
		}
		target.OutEdges = nil
	}
}

func (g *Graph) pruneExpensiveEdges() {
	for _, e := range g.Edges {
		if e.dropped {
			continue
		}
		if e.Cost > g.Nodes[e.To].Cost {
			e.dropped = true
		}
	}
}

func (g *Graph) outDegree(nodeID int) int {
	d := 0
	for _, idx := range g.Nodes[nodeID].OutEdges {
		if !g.Edges[idx].dropped {
			d++
		}
	}
	return d
}

func (g *Graph) greedySelect() {
	for {
		bestIdx := -1
		bestGain := int64(0)
		for i, e := range g.Edges {
			if e.dropped || g.Nodes[e.To].Alias {
				continue
			}
			if g.outDegree(e.To) != 0 {
				continue
			}
			gain := g.Nodes[e.To].Cost - e.Cost
			if gain <= 0 {
				continue
			}
			if bestIdx == -1 || gain > bestGain ||
				(gain == bestGain && e.Cost < g.Edges[bestIdx].Cost) {
				bestIdx, bestGain = i, gain
			}
		}
		if bestIdx == -1 {
			// No candidate target has out-degree 0 (e.g. a cycle): drop
			// the lowest-gain remaining candidate and try again.
			worst := -1
			worstGain := int64(0)
			for i, e := range g.Edges {
				if e.dropped || g.Nodes[e.To].Alias {
					continue
				}
				if gain := g.Nodes[e.To].Cost - e.Cost; gain > 0 && (worst == -1 || gain < worstGain) {
					worst, worstGain = i, gain
				}
			}
			if worst == -1 {
				break
			}
			g.Edges[worst].dropped = true
			continue
		}
		e := g.Edges[bestIdx]
		target := g.Nodes[e.To]
		target.Alias = true
		target.AliasOf = e.From
		for _, idx := range target.OutEdges {
			g.Edges[idx].dropped = true
		}
	}
}
