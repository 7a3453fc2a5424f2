package markergraph

import "testing"

// buildSimpleGraph aligns two identical, non-self-reverse-complementary
// reads position-for-position (the two-reads-one-alignment scenario: "two reads,
// one alignment") and returns the built graph together with the
// options used.
func buildSimpleGraph(t *testing.T, minCoveragePerStrand int) (*Graph, Options) {
	t.Helper()
	k := 4
	seq := "ACGTTGCA" // not a reverse-complement palindrome
	store := NewMemStore(k, []string{seq, seq}, false)
	numMarkers := len(seq) - k + 1 // 5

	r0 := OrientedReadId{ReadId: 0, Strand: StrandForward}
	r1 := OrientedReadId{ReadId: 1, Strand: StrandForward}
	pairs := make([][2]Ordinal, numMarkers)
	for i := 0; i < numMarkers; i++ {
		pairs[i] = [2]Ordinal{Ordinal(i), Ordinal(i)}
	}
	alignments := &MemAlignmentStore{Alignments: []MemAlignment{{Read0: r0, Read1: r1, OrdinalPairs: pairs}}}

	opt := DefaultOptions()
	opt.MinCoverage = 2
	opt.MinCoveragePerStrand = minCoveragePerStrand

	g := NewGraph(store, store, alignments, opt)
	edges := []ReadGraphEdge{{AlignmentId: 0, Read0: r0, Read1: r1}}
	if err := g.BuildVertices(edges); err != nil {
		t.Fatalf("BuildVertices: %v", err)
	}
	return g, opt
}

func TestBuildVerticesTwoReadsOneAlignment(t *testing.T) {
	g, _ := buildSimpleGraph(t, 1)

	// Every marker-graph vertex property that does not depend on an
	// exact vertex count: nonzero coverage, a shared k-mer id, every
	// marker mapping back to its own vertex, and strand symmetry.
	for i := range g.Vertices {
		v := &g.Vertices[i]
		if v.Coverage() < 1 {
			t.Fatalf("vertex %d has zero coverage", i)
		}
		if _, err := kmerIdOf(g.Store, v.Markers); err != nil {
			t.Fatalf("vertex %d: %v", i, err)
		}
		for _, m := range v.Markers {
			if g.VertexTable[m] != v.Id {
				t.Fatalf("marker %d maps to %d, want %d", m, g.VertexTable[m], v.Id)
			}
		}
		rc := v.ReverseComplement
		if g.Vertices[rc].ReverseComplement != v.Id {
			t.Fatalf("rc(rc(%d)) = %d, want %d", v.Id, g.Vertices[rc].ReverseComplement, v.Id)
		}
	}

	// This specific alignment produces one vertex per aligned ordinal
	// on each strand: 5 forward + 5 reverse-complement = 10, each of
	// coverage 2 (one marker from each read).
	if len(g.Vertices) != 10 {
		t.Fatalf("len(Vertices) = %d, want 10", len(g.Vertices))
	}
	for i, v := range g.Vertices {
		if v.Coverage() != 2 {
			t.Fatalf("vertex %d coverage = %d, want 2", i, v.Coverage())
		}
	}
}

func TestBuildVerticesSingleMarkerVertexIsBadWhenPerStrandRequired(t *testing.T) {
	// Boundary case: a single-marker vertex with
	// minCoveragePerStrand > 1 must be rejected. Two reads aligned at
	// only one ordinal pair, but demanding 2 markers per strand, means
	// every resulting 2-marker (both same-strand) set is bad.
	k := 4
	seq := "ACGTTGCA"
	store := NewMemStore(k, []string{seq, seq}, false)
	r0 := OrientedReadId{ReadId: 0, Strand: StrandForward}
	r1 := OrientedReadId{ReadId: 1, Strand: StrandForward}
	alignments := &MemAlignmentStore{Alignments: []MemAlignment{
		{Read0: r0, Read1: r1, OrdinalPairs: [][2]Ordinal{{0, 0}}},
	}}
	opt := DefaultOptions()
	opt.MinCoverage = 1
	opt.MinCoveragePerStrand = 2

	g := NewGraph(store, store, alignments, opt)
	edges := []ReadGraphEdge{{AlignmentId: 0, Read0: r0, Read1: r1}}
	if err := g.BuildVertices(edges); err != nil {
		t.Fatalf("BuildVertices: %v", err)
	}
	if len(g.Vertices) != 0 {
		t.Fatalf("len(Vertices) = %d, want 0 (all sets should fail per-strand coverage)", len(g.Vertices))
	}
}

func TestBuildVerticesRespectsMinCoverage(t *testing.T) {
	g, opt := buildSimpleGraph(t, 1)
	for _, v := range g.Vertices {
		if v.Coverage() < opt.MinCoverage {
			t.Fatalf("vertex coverage %d below minCoverage %d", v.Coverage(), opt.MinCoverage)
		}
	}
}

func TestReverseComplementSeqInvolution(t *testing.T) {
	seqs := []string{"ACGT", "AAAA", "ACGTACGT", "TTGCA"}
	for _, s := range seqs {
		rc := ReverseComplementSeq(s)
		if got := ReverseComplementSeq(rc); got != s {
			t.Fatalf("ReverseComplementSeq(ReverseComplementSeq(%q)) = %q, want %q", s, got, s)
		}
	}
}
