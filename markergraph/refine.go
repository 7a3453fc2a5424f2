package markergraph

import (
	"fmt"

	"github.com/mudesheng/markergraph/internal/errs"
)

// strongEdgeSet tracks, per edge id, whether the edge currently
// survives every removal flag checked so far in the pass being run.
// Only the smaller-id member of each reverse-complement pair is ever
// driven through the BFS search; setWeak always flags both halves,
// halving the BFS work this pass would otherwise repeat.
type strongEdgeSet struct {
	strong []bool
	edges  []Edge
}

func newStrongEdgeSet(edges []Edge, fromFlags bool) *strongEdgeSet {
	s := &strongEdgeSet{strong: make([]bool, len(edges)), edges: edges}
	for i := range edges {
		if fromFlags {
			s.strong[i] = !edges[i].Flags.WasRemoved()
		} else {
			s.strong[i] = true
		}
	}
	return s
}

func (s *strongEdgeSet) setWeak(id EdgeId) {
	if !s.strong[id] {
		return
	}
	s.strong[id] = false
	s.strong[s.edges[id].ReverseComplement] = false
}

// bfsForwardReaches runs a breadth-first search forward from start over
// currently-strong edges (excluding excludeEdge itself), up to depth
// maxDist, and reports whether target is reached. dist is reused
// scratch reset only for the vertices touched this call, not the whole
// array, so repeated calls stay cheap on a mostly-unvisited graph.
func bfsForwardReaches(g *Graph, s *strongEdgeSet, start, target VertexId, maxDist int, excludeEdge EdgeId, dist []int) bool {
	touched := []VertexId{start}
	dist[start] = 0
	defer func() {
		for _, v := range touched {
			dist[v] = -1
		}
	}()

	queue := []VertexId{start}
	found := false
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		d := dist[cur]
		if d >= maxDist {
			continue
		}
		for _, eid := range g.EdgesBySource[cur] {
			if eid == excludeEdge || !s.strong[eid] {
				continue
			}
			next := g.Edges[eid].Target
			if dist[next] != -1 {
				continue
			}
			dist[next] = d + 1
			touched = append(touched, next)
			if next == target {
				found = true
			}
			queue = append(queue, next)
		}
	}
	return found
}

// bucketBySmallerRcId groups the smaller-id half of every reverse-
// complement pair by coverage, so both directed passes only ever walk
// half the edge set.
func bucketBySmallerRcId(edges []Edge) map[int][]EdgeId {
	byCov := make(map[int][]EdgeId)
	for _, e := range edges {
		if e.Id > e.ReverseComplement {
			continue
		}
		byCov[e.Coverage()] = append(byCov[e.Coverage()], e.Id)
	}
	return byCov
}

// ApproximateTransitiveReduction runs the forward transitive-reduction
// pass: clear flags, mark long-skip singletons and very-low-coverage
// edges weak outright, then for increasing coverage in (lowCov,highCov)
// mark an edge weak if a strong forward BFS from its source reaches its
// target without using it.
func (g *Graph) ApproximateTransitiveReduction() {
	for i := range g.Edges {
		g.Edges[i].Flags &^= FlagRemovedByTransitiveReduction
	}
	s := newStrongEdgeSet(g.Edges, true)
	byCov := bucketBySmallerRcId(g.Edges)

	lowCov := g.Opt.LowCoverageThreshold
	highCov := g.Opt.HighCoverageThreshold

	for cov := 0; cov <= lowCov; cov++ {
		for _, id := range byCov[cov] {
			s.setWeak(id)
		}
	}
	for _, id := range byCov[1] {
		e := &g.Edges[id]
		if len(e.MarkerIntervals) == 1 {
			iv := e.MarkerIntervals[0]
			if int(iv.Ordinal1)-int(iv.Ordinal0) > g.Opt.MarkerSkipThreshold {
				s.setWeak(id)
			}
		}
	}

	dist := make([]int, len(g.Vertices))
	for i := range dist {
		dist[i] = -1
	}
	for cov := lowCov + 1; cov < highCov; cov++ {
		for _, id := range byCov[cov] {
			if !s.strong[id] {
				continue
			}
			e := &g.Edges[id]
			if bfsForwardReaches(g, s, e.Source, e.Target, g.Opt.MaxTransitiveDistance, id, dist) {
				s.setWeak(id)
			}
		}
	}
	for i := range g.Edges {
		if !s.strong[i] {
			g.Edges[i].Flags |= FlagRemovedByTransitiveReduction
		}
	}
}

// ReverseTransitiveReduction runs the same algorithm in reverse: the
// BFS goes forward from the edge's target trying to
// reach its source, removing local back-edges. Only the (lowCov,
// highCov) coverage range is processed; steps 2/3 of the forward pass
// are not repeated.
func (g *Graph) ReverseTransitiveReduction() {
	s := newStrongEdgeSet(g.Edges, true)
	byCov := bucketBySmallerRcId(g.Edges)

	lowCov := g.Opt.LowCoverageThreshold
	highCov := g.Opt.HighCoverageThreshold

	dist := make([]int, len(g.Vertices))
	for i := range dist {
		dist[i] = -1
	}
	for cov := lowCov + 1; cov < highCov; cov++ {
		for _, id := range byCov[cov] {
			if !s.strong[id] {
				continue
			}
			e := &g.Edges[id]
			if bfsForwardReaches(g, s, e.Target, e.Source, g.Opt.MaxTransitiveDistance, id, dist) {
				s.setWeak(id)
			}
		}
	}
	for i := range g.Edges {
		if !s.strong[i] {
			g.Edges[i].Flags |= FlagRemovedByTransitiveReduction
		}
	}
}

// IsStrong reports whether an edge survives the pruned strong subgraph
// definition: neither removedByTransitiveReduction nor pruned is set.
func (g *Graph) IsStrong(e *Edge) bool {
	return e.Flags&(FlagRemovedByTransitiveReduction|FlagPruned) == 0
}

// PruneLeaves removes dead-end edges for iterationCount iterations,
// each iteration computing the whole set of leaves to prune before
// applying any flag change, so all leaves at the same depth are pruned
// together. Once a pass stops early because it found no leaf, a second
// pass over the same graph changes nothing.
func (g *Graph) PruneLeaves(iterationCount int) {
	for iter := 0; iter < iterationCount; iter++ {
		hasStrongIn := make([]bool, len(g.Vertices))
		hasStrongOut := make([]bool, len(g.Vertices))
		for i := range g.Edges {
			e := &g.Edges[i]
			if g.IsStrong(e) {
				hasStrongIn[e.Target] = true
				hasStrongOut[e.Source] = true
			}
		}
		var toPrune []EdgeId
		for i := range g.Edges {
			e := &g.Edges[i]
			if !g.IsStrong(e) {
				continue
			}
			if !hasStrongIn[e.Source] || !hasStrongOut[e.Target] {
				toPrune = append(toPrune, e.Id)
			}
		}
		if len(toPrune) == 0 {
			return
		}
		for _, id := range toPrune {
			g.Edges[id].Flags |= FlagPruned
			g.Edges[g.Edges[id].ReverseComplement].Flags |= FlagPruned
		}
	}
}

// CheckStrandSymmetric asserts strand symmetry across the whole
// graph: every vertex and edge must equal the reverse complement of its
// own reverse complement, and rc edge pairs must carry identical flags.
// This is the supplemented strand-symmetry self-check pass
// grounded on the original assembler's checkMarkerGraphIsStrandSymmetric.
func (g *Graph) CheckStrandSymmetric() error {
	for _, v := range g.Vertices {
		if g.Vertices[v.ReverseComplement].ReverseComplement != v.Id {
			return errs.Algorithmic("MarkerGraphVertex", fmt.Sprintf("vertex %d is not strand symmetric", v.Id))
		}
	}
	for _, e := range g.Edges {
		rc := g.Edges[e.ReverseComplement]
		if rc.ReverseComplement != e.Id {
			return errs.Algorithmic("MarkerGraphEdge", fmt.Sprintf("edge %d is not strand symmetric", e.Id))
		}
		if e.Flags != rc.Flags {
			return errs.Algorithmic("MarkerGraphEdge", fmt.Sprintf("edge %d and its reverse complement disagree on flags", e.Id))
		}
	}
	return nil
}
