package archive

import (
	"encoding/binary"
	"strings"
)

// Dedup runs the GraphOptimizer dedup pass described by spec.md §4.9
// over rd and rewrites the result into w: every "_size" stream forms
// one candidate graph, every "_data" stream forms another, streams the
// optimizer marks as aliases become links, and everything else is
// copied through unchanged. The four describing streams (size_nodes,
// size_edges, data_nodes, data_edges) are appended last.
func Dedup(rd *Reader, w *Writer) error {
	sizeIdx, dataIdx := partitionStreams(rd)

	sizeGraph, err := buildGraph(rd, sizeIdx)
	if err != nil {
		return err
	}
	dataGraph, err := buildGraph(rd, dataIdx)
	if err != nil {
		return err
	}
	sizeGraph.Optimize()
	dataGraph.Optimize()

	aliasTo := make(map[int]string)
	if err := collectAliases(rd, sizeGraph, sizeIdx, aliasTo); err != nil {
		return err
	}
	if err := collectAliases(rd, dataGraph, dataIdx, aliasTo); err != nil {
		return err
	}

	if err := copyStreams(rd, w, aliasTo); err != nil {
		return err
	}
	if err := writeGraphStreams(w, "size_nodes", "size_edges", sizeGraph); err != nil {
		return err
	}
	return writeGraphStreams(w, "data_nodes", "data_edges", dataGraph)
}

// partitionStreams splits rd's registered streams into the "_size"
// group and the "_data" group by name suffix; fixed streams such as
// db_params fall into neither and are left untouched by the optimizer.
func partitionStreams(rd *Reader) (sizeIdx, dataIdx []int) {
	for i := 0; i < rd.NumStreams(); i++ {
		name, err := rd.Name(i)
		if err != nil {
			continue
		}
		switch {
		case strings.HasSuffix(name, "_size"):
			sizeIdx = append(sizeIdx, i)
		case strings.HasSuffix(name, "_data"):
			dataIdx = append(dataIdx, i)
		}
	}
	return
}

// buildGraph reads every candidate stream's full content (parts and
// metadata concatenated, per spec.md §4.9's "metadata included" rule),
// adds one node per stream costed at its byte length, and adds an
// equality edge between every pair whose content passes HashEqual.
func buildGraph(rd *Reader, idxs []int) (*Graph, error) {
	g := NewGraph()
	contents := make([][]byte, len(idxs))
	for i, si := range idxs {
		buf, err := streamBytes(rd, si)
		if err != nil {
			return nil, err
		}
		contents[i] = buf
		g.AddNode(int64(len(buf)))
	}
	for i := range idxs {
		for j := range idxs {
			if i == j {
				continue
			}
			if HashEqual(contents[i], contents[j]) {
				g.AddEdge(i, j, true, 0)
			}
		}
	}
	return g, nil
}

// streamBytes concatenates every part of streamIdx, metadata varint
// first then the part's bytes, matching the byte-by-byte equality
// check GraphOptimizer is specified to run.
func streamBytes(rd *Reader, streamIdx int) ([]byte, error) {
	n, err := rd.NumParts(streamIdx)
	if err != nil {
		return nil, err
	}
	var buf []byte
	for i := 0; i < n; i++ {
		data, meta, err := rd.GetPart(streamIdx, i)
		if err != nil {
			return nil, err
		}
		var metaBuf [10]byte
		mn := putVarUint(metaBuf[:], meta)
		buf = append(buf, metaBuf[:mn]...)
		buf = append(buf, data...)
	}
	return buf, nil
}

// collectAliases records, for every node Optimize marked as an alias,
// the target stream's name (graph-local indices resolved back to rd's
// stream indices via idxs).
func collectAliases(rd *Reader, g *Graph, idxs []int, out map[int]string) error {
	for i, n := range g.Nodes {
		if !n.Alias {
			continue
		}
		targetName, err := rd.Name(idxs[n.AliasOf])
		if err != nil {
			return err
		}
		out[idxs[i]] = targetName
	}
	return nil
}

// copyStreams replays every stream rd holds into w, in original
// registration order: aliased streams become links with no bytes of
// their own, everything else is copied part-for-part unchanged.
func copyStreams(rd *Reader, w *Writer, aliasTo map[int]string) error {
	for i := 0; i < rd.NumStreams(); i++ {
		name, err := rd.Name(i)
		if err != nil {
			return err
		}
		newID, err := w.RegisterStream(name)
		if err != nil {
			return err
		}
		rawSize, err := rd.RawSize(i)
		if err != nil {
			return err
		}

		if target, ok := aliasTo[i]; ok {
			if err := w.LinkStream(newID, target); err != nil {
				return err
			}
			if err := w.SetRawSize(newID, rawSize); err != nil {
				return err
			}
			continue
		}

		n, err := rd.NumParts(i)
		if err != nil {
			return err
		}
		for p := 0; p < n; p++ {
			data, meta, err := rd.GetPart(i, p)
			if err != nil {
				return err
			}
			partID, err := w.AddPartPrepare(newID)
			if err != nil {
				return err
			}
			if err := w.AddPartComplete(newID, partID, data, meta); err != nil {
				return err
			}
		}
		if err := w.SetRawSize(newID, rawSize); err != nil {
			return err
		}
	}
	return nil
}

// writeGraphStreams serializes a Graph's final node marks and the
// edges it committed into two new fixed streams: nodesName (one
// alias-flag + alias-target varint per node) and edgesName (from/to
// varints for every edge Optimize kept).
func writeGraphStreams(w *Writer, nodesName, edgesName string, g *Graph) error {
	if err := writeNodes(w, nodesName, g); err != nil {
		return err
	}
	return writeEdges(w, edgesName, g)
}

func writeNodes(w *Writer, name string, g *Graph) error {
	var buf []byte
	putUvarint(&buf, uint64(len(g.Nodes)))
	for _, n := range g.Nodes {
		flag := byte(0)
		aliasOf := 0
		if n.Alias {
			flag = 1
			aliasOf = n.AliasOf
		}
		buf = append(buf, flag)
		putUvarint(&buf, uint64(aliasOf))
	}
	return writeFixedStream(w, name, buf)
}

func writeEdges(w *Writer, name string, g *Graph) error {
	var kept []*Edge
	for _, e := range g.Edges {
		if !e.dropped {
			kept = append(kept, e)
		}
	}
	var buf []byte
	putUvarint(&buf, uint64(len(kept)))
	for _, e := range kept {
		putUvarint(&buf, uint64(e.From))
		putUvarint(&buf, uint64(e.To))
	}
	return writeFixedStream(w, name, buf)
}

func writeFixedStream(w *Writer, name string, buf []byte) error {
	id, err := w.RegisterStream(name)
	if err != nil {
		return err
	}
	partID, err := w.AddPartPrepare(id)
	if err != nil {
		return err
	}
	if err := w.AddPartComplete(id, partID, buf, uint64(len(buf))); err != nil {
		return err
	}
	return w.SetRawSize(id, int64(len(buf)))
}

func putUvarint(buf *[]byte, v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	*buf = append(*buf, tmp[:n]...)
}
