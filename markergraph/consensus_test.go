package markergraph

import (
	"reflect"
	"testing"

	"github.com/mudesheng/markergraph/markergraph/poa"
)

func TestVertexConsensusAgreesOnBases(t *testing.T) {
	ms := NewMemStore(4, []string{"ACGT"}, true)
	g := &Graph{
		Store: ms,
		Reads: ms,
		Opt:   Options{K: 4},
	}
	markerId := ms.MarkerId(OrientedReadId{ReadId: 0, Strand: StrandForward}, 0)
	g.Vertices = []Vertex{{Id: 0, Markers: []MarkerId{markerId}}}

	seq, repeatCounts, err := g.VertexConsensus(0, SimpleMajorityCaller{})
	if err != nil {
		t.Fatalf("VertexConsensus: %v", err)
	}
	if string(seq) != "ACGT" {
		t.Fatalf("sequence = %q, want ACGT", seq)
	}
	for _, r := range repeatCounts {
		if r != 1 {
			t.Fatalf("repeatCounts = %v, want all 1", repeatCounts)
		}
	}
}

func TestVertexConsensusRequiresRunLengthEncoding(t *testing.T) {
	ms := NewMemStore(4, []string{"ACGT"}, false)
	g := &Graph{Store: ms, Reads: ms, Opt: Options{K: 4}}
	markerId := ms.MarkerId(OrientedReadId{ReadId: 0, Strand: StrandForward}, 0)
	g.Vertices = []Vertex{{Id: 0, Markers: []MarkerId{markerId}}}

	if _, _, err := g.VertexConsensus(0, SimpleMajorityCaller{}); err == nil {
		t.Fatalf("expected an error for a non-run-length-encoded read store")
	}
}

// TestEdgeConsensusMode1OverlapBoundary is the boundary
// case: a single marker interval with ordinal1 = ordinal0+1 whose
// flanking markers overlap by exactly k-1 bases must take the mode-1
// path with overlappingBaseCount = k-1.
func TestEdgeConsensusMode1OverlapBoundary(t *testing.T) {
	ms := NewMemStore(4, []string{"ACGTA"}, true) // markers at position 0 and 1
	g := &Graph{
		Store: ms,
		Reads: ms,
		Opt: Options{
			K:                            4,
			EdgeConsensusLengthThreshold: 100,
			MaxBasePositionSpan:          1000,
		},
	}
	mi := MarkerInterval{
		OrientedRead: OrientedReadId{ReadId: 0, Strand: StrandForward},
		Ordinal0:     0,
		Ordinal1:     1,
	}
	g.Edges = []Edge{{Id: 0, MarkerIntervals: []MarkerInterval{mi}}}

	result, err := g.EdgeConsensus(0, SimpleMajorityCaller{}, poa.NewEngine(2, -1, -2))
	if err != nil {
		t.Fatalf("EdgeConsensus: %v", err)
	}
	if result.Mode != 1 {
		t.Fatalf("Mode = %d, want 1", result.Mode)
	}
	if result.OverlappingBaseCount != 3 {
		t.Fatalf("OverlappingBaseCount = %d, want 3 (k-1)", result.OverlappingBaseCount)
	}
	if len(result.Sequence) != 0 {
		t.Fatalf("mode 1 must not produce a sequence, got %q", result.Sequence)
	}
}

// TestEdgeConsensusMode2FrequencyOrderedConsensus is the
// scenario 6: three marker intervals with intervening sequences "AC"
// (x2) and "AG" (x1); the aligner must be presented "AC" first, and the
// consensus must be "AC".
func TestEdgeConsensusMode2FrequencyOrderedConsensus(t *testing.T) {
	sequences := []string{
		"AAAAACTTTT", // intervening "AC"
		"AAAAACTTTT", // intervening "AC"
		"AAAAAGTTTT", // intervening "AG"
	}
	ms := NewMemStore(4, sequences, true)
	g := &Graph{
		Store: ms,
		Reads: ms,
		Opt: Options{
			K:                            4,
			EdgeConsensusLengthThreshold: 100,
			MaxBasePositionSpan:          1000,
		},
	}
	var intervals []MarkerInterval
	for r := 0; r < 3; r++ {
		intervals = append(intervals, MarkerInterval{
			OrientedRead: OrientedReadId{ReadId: ReadId(r), Strand: StrandForward},
			Ordinal0:     0,
			Ordinal1:     6,
		})
	}
	g.Edges = []Edge{{Id: 0, MarkerIntervals: intervals}}

	result, err := g.EdgeConsensus(0, SimpleMajorityCaller{}, poa.NewEngine(2, -1, -2))
	if err != nil {
		t.Fatalf("EdgeConsensus: %v", err)
	}
	if result.Mode != 2 {
		t.Fatalf("Mode = %d, want 2", result.Mode)
	}
	if string(result.Sequence) != "AC" {
		t.Fatalf("Sequence = %q, want AC", result.Sequence)
	}
	if !reflect.DeepEqual(result.RepeatCounts, []int{1, 1}) {
		t.Fatalf("RepeatCounts = %v, want [1 1]", result.RepeatCounts)
	}
	if string(result.MSA[0]) != "AC" {
		t.Fatalf("expected the more frequent sequence AC to be presented first, MSA[0] = %q", result.MSA[0])
	}
}

// TestEdgeConsensusShortCircuitsOnLongInterval checks that an interval
// exceeding the length threshold takes the pathological short-circuit
// path instead of running an alignment.
func TestEdgeConsensusShortCircuitsOnLongInterval(t *testing.T) {
	ms := NewMemStore(4, []string{"AAAAACTTTT"}, true)
	g := &Graph{
		Store: ms,
		Reads: ms,
		Opt: Options{
			K:                            4,
			EdgeConsensusLengthThreshold: 1, // ordinal span of 6 exceeds this
			MaxBasePositionSpan:          1000,
		},
	}
	mi := MarkerInterval{
		OrientedRead: OrientedReadId{ReadId: 0, Strand: StrandForward},
		Ordinal0:     0,
		Ordinal1:     6,
	}
	g.Edges = []Edge{{Id: 0, MarkerIntervals: []MarkerInterval{mi}}}

	result, err := g.EdgeConsensus(0, SimpleMajorityCaller{}, poa.NewEngine(2, -1, -2))
	if err != nil {
		t.Fatalf("EdgeConsensus: %v", err)
	}
	if result.Mode != 0 {
		t.Fatalf("Mode = %d, want 0 (short-circuit)", result.Mode)
	}
	if result.ShortestIntervalIndex != 0 {
		t.Fatalf("ShortestIntervalIndex = %d, want 0", result.ShortestIntervalIndex)
	}
	if string(result.Sequence) != "AC" {
		t.Fatalf("Sequence = %q, want AC", result.Sequence)
	}
}
