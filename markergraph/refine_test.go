package markergraph

import "testing"

// buildRcSymmetricGraph constructs a graph directly (bypassing
// BuildVertices/BuildEdges) so refinement tests can set up arbitrary
// topologies while keeping every invariant the refiner relies on:
// every edge and vertex has a distinct, correctly linked reverse
// complement.
func buildRcSymmetricGraph(numVertices int, forwardEdges []Edge) *Graph {
	// Vertex i's reverse complement is numVertices+i, and vice versa,
	// so no vertex is self-complementary.
	vertices := make([]Vertex, 2*numVertices)
	for i := 0; i < numVertices; i++ {
		vertices[i] = Vertex{Id: VertexId(i), ReverseComplement: VertexId(numVertices + i)}
		vertices[numVertices+i] = Vertex{Id: VertexId(numVertices + i), ReverseComplement: VertexId(i)}
	}

	edges := make([]Edge, 0, 2*len(forwardEdges))
	for _, e := range forwardEdges {
		edges = append(edges, e)
	}
	base := len(forwardEdges)
	for i, e := range forwardEdges {
		rcSource := (int(e.Target) + numVertices) % (2 * numVertices)
		rcTarget := (int(e.Source) + numVertices) % (2 * numVertices)
		edges = append(edges, Edge{
			Source:          VertexId(rcSource),
			Target:          VertexId(rcTarget),
			MarkerIntervals: e.MarkerIntervals,
		})
		edges[i].Id = EdgeId(i)
		edges[base+i].Id = EdgeId(base + i)
		edges[i].ReverseComplement = EdgeId(base + i)
		edges[base+i].ReverseComplement = EdgeId(i)
	}

	g := &Graph{Vertices: vertices, Edges: edges, Opt: DefaultOptions()}
	g.buildAdjacency()
	return g
}

func singleMarkerCoverage(n int) []MarkerInterval {
	ivs := make([]MarkerInterval, n)
	for i := range ivs {
		ivs[i] = MarkerInterval{OrientedRead: OrientedReadId{ReadId: ReadId(i)}, Ordinal0: 0, Ordinal1: 1}
	}
	return ivs
}

// TestTransitiveReductionRemovesShortcut builds the classic triangle
// 0->1->2 and a direct 0->2 edge with lower coverage than the two-hop
// path; the direct edge should be marked removed while the two-hop
// path survives.
func TestTransitiveReductionRemovesShortcut(t *testing.T) {
	g := buildRcSymmetricGraph(3, []Edge{
		{Source: 0, Target: 1, MarkerIntervals: singleMarkerCoverage(10)},
		{Source: 1, Target: 2, MarkerIntervals: singleMarkerCoverage(10)},
		{Source: 0, Target: 2, MarkerIntervals: singleMarkerCoverage(3)},
	})
	g.Opt.LowCoverageThreshold = 0
	g.Opt.HighCoverageThreshold = 20
	g.Opt.MaxTransitiveDistance = 5

	g.ApproximateTransitiveReduction()

	shortcut := &g.Edges[2]
	if !shortcut.Flags.WasRemoved() {
		t.Fatalf("shortcut edge 0->2 should have been removed by transitive reduction")
	}
	for _, id := range []EdgeId{0, 1} {
		if g.Edges[id].Flags.WasRemoved() {
			t.Fatalf("two-hop edge %d should survive transitive reduction", id)
		}
	}
	if err := g.CheckStrandSymmetric(); err != nil {
		t.Fatalf("CheckStrandSymmetric: %v", err)
	}
}

// TestTransitiveReductionLeavesLinearChainAlone runs the forward and
// reverse passes over a plain 4-vertex linear chain with no shortcuts:
// nothing should be removed.
func TestTransitiveReductionLeavesLinearChainAlone(t *testing.T) {
	g := buildRcSymmetricGraph(4, []Edge{
		{Source: 0, Target: 1, MarkerIntervals: singleMarkerCoverage(5)},
		{Source: 1, Target: 2, MarkerIntervals: singleMarkerCoverage(5)},
		{Source: 2, Target: 3, MarkerIntervals: singleMarkerCoverage(5)},
	})
	g.Opt.LowCoverageThreshold = 0
	g.Opt.HighCoverageThreshold = 20

	g.ApproximateTransitiveReduction()
	g.ReverseTransitiveReduction()

	for _, e := range g.Edges {
		if e.Flags.WasRemoved() {
			t.Fatalf("edge %d should not be removed in a plain linear chain", e.Id)
		}
	}
}

// TestTransitiveReductionMarksVeryLowCoverageWeak exercises step 2 of
// the forward pass directly: any edge with coverage at or below
// lowCov is marked removed regardless of topology.
func TestTransitiveReductionMarksVeryLowCoverageWeak(t *testing.T) {
	g := buildRcSymmetricGraph(2, []Edge{
		{Source: 0, Target: 1, MarkerIntervals: singleMarkerCoverage(1)},
	})
	g.Opt.LowCoverageThreshold = 2
	g.Opt.HighCoverageThreshold = 20

	g.ApproximateTransitiveReduction()

	if !g.Edges[0].Flags.WasRemoved() {
		t.Fatalf("edge with coverage 1 <= lowCov 2 should be removed")
	}
	if !g.Edges[1].Flags.WasRemoved() {
		t.Fatalf("reverse complement of a removed edge must also be removed")
	}
}

// TestPruneLeavesRemovesDeadEnd builds a cycle with a one-edge dead-end
// branch off vertex 1 (0->1->2->0 plus 1->3, where 3 has no further
// strong outgoing edge) and checks that only the dead-end edge is
// pruned: every cycle vertex has both a strong in- and out-edge.
func TestPruneLeavesRemovesDeadEnd(t *testing.T) {
	g := buildRcSymmetricGraph(4, []Edge{
		{Source: 0, Target: 1, MarkerIntervals: singleMarkerCoverage(5)},
		{Source: 1, Target: 2, MarkerIntervals: singleMarkerCoverage(5)},
		{Source: 1, Target: 3, MarkerIntervals: singleMarkerCoverage(5)},
		{Source: 2, Target: 0, MarkerIntervals: singleMarkerCoverage(5)},
	})

	g.PruneLeaves(g.Opt.LeafPruneIterations)

	if g.Edges[0].Flags&FlagPruned != 0 {
		t.Fatalf("edge 0->1 should not be pruned, it feeds a non-leaf")
	}
	if g.Edges[1].Flags&FlagPruned != 0 {
		t.Fatalf("edge 1->2 should not be pruned")
	}
	if g.Edges[2].Flags&FlagPruned == 0 {
		t.Fatalf("dead-end edge 1->3 should be pruned")
	}
	if err := g.CheckStrandSymmetric(); err != nil {
		t.Fatalf("CheckStrandSymmetric: %v", err)
	}
}

// TestPruneLeavesIsIdempotent runs a second prune pass after the first
// has already converged and checks that nothing new is pruned.
func TestPruneLeavesIsIdempotent(t *testing.T) {
	g := buildRcSymmetricGraph(4, []Edge{
		{Source: 0, Target: 1, MarkerIntervals: singleMarkerCoverage(5)},
		{Source: 1, Target: 2, MarkerIntervals: singleMarkerCoverage(5)},
		{Source: 1, Target: 3, MarkerIntervals: singleMarkerCoverage(5)},
	})
	g.PruneLeaves(g.Opt.LeafPruneIterations)

	before := make([]EdgeFlags, len(g.Edges))
	for i, e := range g.Edges {
		before[i] = e.Flags
	}
	g.PruneLeaves(g.Opt.LeafPruneIterations)
	for i, e := range g.Edges {
		if e.Flags != before[i] {
			t.Fatalf("edge %d flags changed on second prune pass: %v -> %v", i, before[i], e.Flags)
		}
	}
}
