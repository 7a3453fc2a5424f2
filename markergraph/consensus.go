package markergraph

import "github.com/mudesheng/markergraph/internal/errs"

// GapBase marks an alignment-column gap in a Coverage; it never appears
// as a consensus base.
const GapBase byte = '-'

// coverageEntry is one read's contribution to a consensus position: its
// base, strand, and (for run-length-encoded reads) repeat count.
type coverageEntry struct {
	base        byte
	strand      Strand
	repeatCount int
}

// Coverage collects the (base, strand, repeatCount) triples voting on
// one consensus position, matching the original assembler's
// Coverage object.
type Coverage struct {
	entries []coverageEntry
}

// AddRead records one read's vote. A gap contribution uses GapBase with
// repeatCount 0.
func (c *Coverage) AddRead(base byte, strand Strand, repeatCount int) {
	c.entries = append(c.entries, coverageEntry{base: base, strand: strand, repeatCount: repeatCount})
}

// ConsensusCaller is the single pluggable trait this package allows:
// derive a consensus (base, repeatCount) pair from a Coverage.
type ConsensusCaller interface {
	Consensus(cov Coverage) (base byte, repeatCount int)
}

// SimpleMajorityCaller picks the most-frequent base, then the
// most-frequent repeat count among reads agreeing with that base,
// breaking ties by order of first appearance, grounded on the same
// peak/majority-vote style already used elsewhere for k-mer frequency
// filtering in constructcf.go.
type SimpleMajorityCaller struct{}

func (SimpleMajorityCaller) Consensus(cov Coverage) (byte, int) {
	if len(cov.entries) == 0 {
		return GapBase, 0
	}

	baseCounts := make(map[byte]int)
	var baseOrder []byte
	for _, e := range cov.entries {
		if _, seen := baseCounts[e.base]; !seen {
			baseOrder = append(baseOrder, e.base)
		}
		baseCounts[e.base]++
	}
	bestBase := baseOrder[0]
	for _, b := range baseOrder[1:] {
		if baseCounts[b] > baseCounts[bestBase] {
			bestBase = b
		}
	}
	if bestBase == GapBase {
		return GapBase, 0
	}

	repCounts := make(map[int]int)
	var repOrder []int
	for _, e := range cov.entries {
		if e.base != bestBase {
			continue
		}
		if _, seen := repCounts[e.repeatCount]; !seen {
			repOrder = append(repOrder, e.repeatCount)
		}
		repCounts[e.repeatCount]++
	}
	bestRep := repOrder[0]
	for _, r := range repOrder[1:] {
		if repCounts[r] > repCounts[bestRep] {
			bestRep = r
		}
	}
	if bestRep == 0 {
		bestRep = 1
	}
	return bestBase, bestRep
}

// VertexConsensus computes a vertex's consensus sequence: for a vertex whose
// reads are run-length encoded, compute a (base, repeatCount) per
// position 0..K by collecting every marker's base and repeat count at
// that offset and calling caller. All markers must agree on the base at
// every position; disagreement is an AlgorithmicFailure.
func (g *Graph) VertexConsensus(v VertexId, caller ConsensusCaller) ([]byte, []int, error) {
	if !g.Reads.IsRunLengthEncoded() {
		return nil, nil, errs.Config("MarkerGraphVertex", "vertex consensus requires run-length-encoded reads")
	}
	vertex := &g.Vertices[v]
	if len(vertex.Markers) == 0 {
		return nil, nil, errs.Algorithmic("MarkerGraphVertex", "vertex has no markers")
	}

	type markerLoc struct {
		orientedRead OrientedReadId
		position     uint32
	}
	locs := make([]markerLoc, len(vertex.Markers))
	for i, m := range vertex.Markers {
		o, ord := g.Store.OrdinalOf(m)
		locs[i] = markerLoc{orientedRead: o, position: g.Store.Markers(o)[ord].Position}
	}

	k := g.Opt.K
	sequence := make([]byte, k)
	repeatCounts := make([]int, k)
	for pos := 0; pos < k; pos++ {
		var cov Coverage
		var firstBase byte
		for i, loc := range locs {
			base, repeatCount, err := g.Reads.GetBaseAndRepeatCount(loc.orientedRead, loc.position+uint32(pos))
			if err != nil {
				return nil, nil, err
			}
			if i == 0 {
				firstBase = base
			} else if base != firstBase {
				return nil, nil, errs.Algorithmic("MarkerGraphVertex", "markers disagree on base at a k-mer position")
			}
			cov.AddRead(base, loc.orientedRead.Strand, int(repeatCount))
		}
		base, repeatCount := caller.Consensus(cov)
		sequence[pos] = base
		repeatCounts[pos] = repeatCount
	}
	return sequence, repeatCounts, nil
}
