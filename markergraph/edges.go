package markergraph

import (
	"sort"

	"github.com/exascience/pargo/parallel"

	"github.com/mudesheng/markergraph/internal/errs"
)

type edgeCandidate struct {
	target   VertexId
	interval MarkerInterval
}

// BuildEdges runs per-vertex edge emission,
// adjacency construction, and content-based reverse-complement pairing.
func (g *Graph) BuildEdges() error {
	numVertices := len(g.Vertices)
	perVertexEdges := make([][]Edge, numVertices)

	parallel.Range(0, numVertices, 1000, func(low, high int) {
		for vi := low; vi < high; vi++ {
			v := &g.Vertices[vi]
			var candidates []edgeCandidate
			for _, m := range v.Markers {
				o, ord0 := g.Store.OrdinalOf(m)
				markers := g.Store.Markers(o)
				for ord1 := int(ord0) + 1; ord1 < len(markers); ord1++ {
					target := g.VertexTable[g.Store.MarkerId(o, Ordinal(ord1))]
					if target != InvalidVertexId {
						candidates = append(candidates, edgeCandidate{
							target: target,
							interval: MarkerInterval{
								OrientedRead: o,
								Ordinal0:     ord0,
								Ordinal1:     Ordinal(ord1),
							},
						})
						break
					}
				}
			}
			sort.Slice(candidates, func(i, j int) bool { return candidates[i].target < candidates[j].target })

			var out []Edge
			for i := 0; i < len(candidates); {
				j := i + 1
				for j < len(candidates) && candidates[j].target == candidates[i].target {
					j++
				}
				intervals := make([]MarkerInterval, 0, j-i)
				for _, c := range candidates[i:j] {
					intervals = append(intervals, c.interval)
				}
				out = append(out, Edge{
					Source:            v.Id,
					Target:            candidates[i].target,
					MarkerIntervals:   intervals,
					ReverseComplement: InvalidEdgeId,
				})
				i = j
			}
			perVertexEdges[vi] = out
		}
	})

	var edges []Edge
	for _, out := range perVertexEdges {
		edges = append(edges, out...)
	}
	for i := range edges {
		edges[i].Id = EdgeId(i)
	}
	g.Edges = edges

	g.buildAdjacency()
	return g.pairReverseComplementEdges()
}

// buildAdjacency builds edgesBySource/edgesByTarget with a
// count-then-store pass.
func (g *Graph) buildAdjacency() {
	n := len(g.Vertices)
	outCount := make([]int, n)
	inCount := make([]int, n)
	for _, e := range g.Edges {
		outCount[e.Source]++
		inCount[e.Target]++
	}
	bySource := make([][]EdgeId, n)
	byTarget := make([][]EdgeId, n)
	for v := 0; v < n; v++ {
		bySource[v] = make([]EdgeId, 0, outCount[v])
		byTarget[v] = make([]EdgeId, 0, inCount[v])
	}
	for _, e := range g.Edges {
		bySource[e.Source] = append(bySource[e.Source], e.Id)
		byTarget[e.Target] = append(byTarget[e.Target], e.Id)
	}
	g.EdgesBySource = bySource
	g.EdgesByTarget = byTarget
}

// reverseComplementInterval mirrors one marker interval about its
// read's marker count, flipping strand and swapping the ordinal pair.
func (g *Graph) reverseComplementInterval(iv MarkerInterval) MarkerInterval {
	n := g.Reads.MarkerCount(iv.OrientedRead)
	rcRead := iv.OrientedRead.ReverseComplement()
	return MarkerInterval{
		OrientedRead: rcRead,
		Ordinal0:     Ordinal(n-1) - iv.Ordinal1,
		Ordinal1:     Ordinal(n-1) - iv.Ordinal0,
	}
}

func sortedIntervalKey(iv MarkerInterval) uint64 {
	return iv.OrientedRead.Int()<<32 | uint64(iv.Ordinal0)
}

func intervalListsEqual(a, b []MarkerInterval) bool {
	if len(a) != len(b) {
		return false
	}
	sa := append([]MarkerInterval(nil), a...)
	sb := append([]MarkerInterval(nil), b...)
	sort.Slice(sa, func(i, j int) bool { return sortedIntervalKey(sa[i]) < sortedIntervalKey(sa[j]) })
	sort.Slice(sb, func(i, j int) bool { return sortedIntervalKey(sb[i]) < sortedIntervalKey(sb[j]) })
	for i := range sa {
		if sa[i] != sb[i] {
			return false
		}
	}
	return true
}

// pairReverseComplementEdges finds, for every edge e: v0->v1, the
// unique edge rc(e) among v1rc's outgoing edges whose reverse-
// complemented marker intervals match e's, by content, never by id
// handled naturally by this content-based matching. A missing match
// is fatal (AlgorithmicFailure).
func (g *Graph) pairReverseComplementEdges() error {
	for i := range g.Edges {
		e := &g.Edges[i]
		if e.ReverseComplement != InvalidEdgeId {
			continue
		}
		v0rc := g.Vertices[e.Source].ReverseComplement
		v1rc := g.Vertices[e.Target].ReverseComplement

		transformed := make([]MarkerInterval, len(e.MarkerIntervals))
		for j, iv := range e.MarkerIntervals {
			transformed[j] = g.reverseComplementInterval(iv)
		}

		var match EdgeId = InvalidEdgeId
		for _, candId := range g.EdgesBySource[v1rc] {
			cand := &g.Edges[candId]
			if cand.Target != v0rc {
				continue
			}
			if intervalListsEqual(cand.MarkerIntervals, transformed) {
				if match != InvalidEdgeId {
					return errs.Algorithmic("MarkerGraphEdge", "multiple candidate reverse-complement edges matched by content")
				}
				match = candId
			}
		}
		if match == InvalidEdgeId {
			return errs.Algorithmic("MarkerGraphEdge", "no reverse-complement edge found by content match")
		}
		e.ReverseComplement = match
		g.Edges[match].ReverseComplement = e.Id
	}
	return nil
}
