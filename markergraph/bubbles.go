package markergraph

import (
	"sort"

	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
)

// StrongOutDegree and StrongInDegree are the supplemented diagnostic
// helpers, also used internally below to
// find assembly-graph branch points.
func (g *Graph) StrongOutDegree(v VertexId) int {
	n := 0
	for _, id := range g.EdgesBySource[v] {
		if g.IsStrong(&g.Edges[id]) {
			n++
		}
	}
	return n
}

func (g *Graph) StrongInDegree(v VertexId) int {
	n := 0
	for _, id := range g.EdgesByTarget[v] {
		if g.IsStrong(&g.Edges[id]) {
			n++
		}
	}
	return n
}

// assemblyEdge is one maximal run of strong marker-graph edges between
// two branch vertices (a vertex whose strong in- or out-degree is not
// exactly 1), the "assembly graph" abstraction grounded on the
// original assembler's AssemblyGraph.
type assemblyEdge struct {
	source, target   VertexId
	markerGraphEdges []EdgeId
	totalCoverage    int
}

func (a *assemblyEdge) length() int { return len(a.markerGraphEdges) }

func (a *assemblyEdge) averageCoverage() float64 {
	return float64(a.totalCoverage) / float64(a.length())
}

// isBranchVertex reports whether v has a strong in- or out-degree
// other than 1, i.e. it cannot be the interior of a compressed run.
func (g *Graph) isBranchVertex(v VertexId) bool {
	return g.StrongInDegree(v) != 1 || g.StrongOutDegree(v) != 1
}

// buildAssemblyGraph walks every maximal chain of strong edges starting
// at a branch vertex, following the unique strong out-edge until the
// next branch vertex is reached.
func (g *Graph) buildAssemblyGraph() []assemblyEdge {
	var out []assemblyEdge
	for v := VertexId(0); int(v) < len(g.Vertices); v++ {
		if !g.isBranchVertex(v) {
			continue
		}
		for _, startEdge := range g.EdgesBySource[v] {
			if !g.IsStrong(&g.Edges[startEdge]) {
				continue
			}
			run := assemblyEdge{source: v}
			cur := startEdge
			for {
				e := &g.Edges[cur]
				run.markerGraphEdges = append(run.markerGraphEdges, cur)
				run.totalCoverage += e.Coverage()
				if g.isBranchVertex(e.Target) {
					run.target = e.Target
					break
				}
				next := InvalidEdgeId
				for _, id := range g.EdgesBySource[e.Target] {
					if g.IsStrong(&g.Edges[id]) {
						next = id
						break
					}
				}
				if next == InvalidEdgeId {
					run.target = e.Target
					break
				}
				cur = next
			}
			out = append(out, run)
		}
	}
	return out
}

// markSuperBubble flags every marker-graph edge in a run, and its
// reverse complement, with FlagSuperBubble.
func (g *Graph) markSuperBubble(run *assemblyEdge) {
	for _, id := range run.markerGraphEdges {
		g.Edges[id].Flags |= FlagSuperBubble
		g.Edges[g.Edges[id].ReverseComplement].Flags |= FlagSuperBubble
	}
}

// RemoveBubbles removes parallel
// assembly-graph edges up to maxLength marker-graph edges long between the same
// pair of vertices are bubbles; keep only the highest-average-coverage
// one and flag the rest (and their reverse complements) superbubble.
// Self-reverse-complementary target pairs are left untouched, matching
// the original assembler's "skip for now" behavior for that case.
func (g *Graph) RemoveBubbles(maxLength int) {
	runs := g.buildAssemblyGraph()

	// A vertex with any outgoing run longer than maxLength contributes
	// none of its outgoing runs to bubble grouping this pass, matching
	// the original assembler's longEdgeExists gate.
	longEdgeExists := make(map[VertexId]bool)
	for _, run := range runs {
		if run.length() > maxLength {
			longEdgeExists[run.source] = true
		}
	}

	type key struct{ source, target VertexId }
	groups := make(map[key][]int)
	for i, run := range runs {
		if longEdgeExists[run.source] {
			continue
		}
		if run.target == g.Vertices[run.source].ReverseComplement {
			continue
		}
		k := key{run.source, run.target}
		groups[k] = append(groups[k], i)
	}

	for _, idxs := range groups {
		if len(idxs) < 2 {
			continue
		}
		sort.Slice(idxs, func(i, j int) bool {
			return runs[idxs[i]].averageCoverage() > runs[idxs[j]].averageCoverage()
		})
		for _, i := range idxs[1:] {
			g.markSuperBubble(&runs[i])
		}
	}
}

// SimplifySuperBubbles resolves connected
// components of the assembly graph restricted to runs no longer than
// maxLength are candidate superbubbles. Non-self-complementary
// components with at least one entry and one exit are resolved by
// keeping only the assembly-graph edges lying on a shortest path (edge
// weight 1/averageCoverage) from some entry to some reachable exit;
// everything else in the component is flagged superbubble.
// Self-complementary components and components with no entry or no
// exit (they are themselves whole connected components of the graph)
// are left untouched rather than guess at a resolution.
func (g *Graph) SimplifySuperBubbles(maxLength int) {
	runs := g.buildAssemblyGraph()
	numVertices := len(g.Vertices)

	uf := make([]VertexId, numVertices)
	for i := range uf {
		uf[i] = VertexId(i)
	}
	var find func(VertexId) VertexId
	find = func(x VertexId) VertexId {
		for uf[x] != x {
			uf[x] = uf[uf[x]]
			x = uf[x]
		}
		return x
	}
	union := func(a, b VertexId) {
		ra, rb := find(a), find(b)
		if ra != rb {
			uf[ra] = rb
		}
	}
	for _, run := range runs {
		if run.length() <= maxLength {
			union(run.source, run.target)
		}
	}

	component := make([]VertexId, numVertices)
	componentMembers := make(map[VertexId][]VertexId)
	for v := VertexId(0); int(v) < numVertices; v++ {
		c := find(v)
		component[v] = c
		componentMembers[c] = append(componentMembers[c], v)
	}

	isEntry := make(map[VertexId]bool)
	isExit := make(map[VertexId]bool)
	for _, run := range runs {
		c0, c1 := component[run.source], component[run.target]
		if run.length() > maxLength || c0 != c1 {
			isExit[run.source] = true
			isEntry[run.target] = true
		}
	}

	rcComponentOf := func(c VertexId) VertexId {
		return component[g.Vertices[c].ReverseComplement]
	}

	runsByComponent := make(map[VertexId][]int)
	for i, run := range runs {
		if run.length() > maxLength {
			continue
		}
		c := component[run.source]
		runsByComponent[c] = append(runsByComponent[c], i)
	}

	processed := make(map[VertexId]bool)
	for c, members := range componentMembers {
		if processed[c] {
			continue
		}
		rc := rcComponentOf(c)
		processed[c] = true
		processed[rc] = true
		if rc == c {
			continue // self-complementary: no well-defined resolution, leave alone
		}

		entriesExist, exitsExist := false, false
		for _, v := range members {
			if isEntry[v] {
				entriesExist = true
			}
			if isExit[v] {
				exitsExist = true
			}
		}
		if !entriesExist || !exitsExist {
			continue
		}

		g.simplifyOneComponent(runs, runsByComponent[c], members, isEntry, isExit)
	}
}

type pairKey struct{ from, to int64 }

// simplifyOneComponent builds a weighted directed gonum graph over one
// assembly-graph component (edge weight 1/averageCoverage, only the
// highest-coverage run kept per vertex pair, per the original's
// "retaining on each hop the highest-coverage assembly-graph edge"),
// computes shortest paths from every entry to every exit, and flags
// superbubble every assembly-graph edge that is not the representative
// of a pair on some entry-to-exit shortest path.
func (g *Graph) simplifyOneComponent(runs []assemblyEdge, runIdxs []int, members []VertexId, isEntry, isExit map[VertexId]bool) {
	index := make(map[VertexId]int64, len(members))
	for i, v := range members {
		index[v] = int64(i)
	}

	bestPos := make(map[pairKey]int)
	for pos, ri := range runIdxs {
		run := &runs[ri]
		from, ok0 := index[run.source]
		to, ok1 := index[run.target]
		if !ok0 || !ok1 {
			continue
		}
		pk := pairKey{from, to}
		if cur, exists := bestPos[pk]; !exists || run.averageCoverage() > runs[runIdxs[cur]].averageCoverage() {
			bestPos[pk] = pos
		}
	}

	gr := simple.NewWeightedDirectedGraph(0, 0)
	for i := range members {
		gr.AddNode(simple.Node(int64(i)))
	}
	edgeOfPair := make(map[pairKey]int, len(bestPos))
	for pk, pos := range bestPos {
		run := &runs[runIdxs[pos]]
		gr.SetWeightedEdge(simple.WeightedEdge{F: simple.Node(pk.from), T: simple.Node(pk.to), W: 1.0 / run.averageCoverage()})
		edgeOfPair[pk] = pos
	}

	keep := make(map[int]bool, len(runIdxs))
	for _, v := range members {
		if !isEntry[v] {
			continue
		}
		from := index[v]
		shortest := path.DijkstraFrom(simple.Node(from), gr)
		for _, w := range members {
			if !isExit[w] || w == v {
				continue
			}
			to := index[w]
			nodes, _ := shortest.To(to)
			for i := 0; i+1 < len(nodes); i++ {
				a, b := nodes[i].ID(), nodes[i+1].ID()
				if pos, ok := edgeOfPair[pairKey{a, b}]; ok {
					keep[pos] = true
				}
			}
		}
	}

	for pos, ri := range runIdxs {
		if !keep[pos] {
			g.markSuperBubble(&runs[ri])
		}
	}
}
