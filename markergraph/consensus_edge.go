package markergraph

import (
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/mudesheng/markergraph/internal/errs"
	"github.com/mudesheng/markergraph/markergraph/poa"
)

// consensusLogMu serializes the "log the edge id, then rethrow" error
// policy across concurrent edge-consensus calls.
var consensusLogMu sync.Mutex

func logEdgeConsensusFailure(id EdgeId, cause error) {
	consensusLogMu.Lock()
	defer consensusLogMu.Unlock()
	log.Printf("[EdgeConsensus] edge %d: %v", id, cause)
}

// EdgeConsensusResult is the full output of EdgeConsensus, including the
// optional per-mode detail useful for
// debugging/visualisation.
type EdgeConsensusResult struct {
	Sequence             []byte
	RepeatCounts         []int
	OverlappingBaseCount int

	// Mode is 0 for the short-circuit (pathological) path, 1 or 2
	// otherwise.
	Mode int

	// ShortestIntervalIndex is valid only when Mode == 0: the index
	// into the edge's MarkerIntervals chosen as the representative.
	ShortestIntervalIndex int

	// The following are valid only when Mode == 2.
	DistinctSequenceOccurrences [][]int
	MSA                         [][]byte
	AlignmentRow                []int
}

type markerIntervalPositions struct {
	position0, position1 uint32
}

func (g *Graph) markerIntervalPositions(mi MarkerInterval) markerIntervalPositions {
	markers := g.Store.Markers(mi.OrientedRead)
	return markerIntervalPositions{
		position0: markers[mi.Ordinal0].Position,
		position1: markers[mi.Ordinal1].Position,
	}
}

// EdgeConsensus computes the consensus sequence of one edge. aligner is the
// partial-order aligner used for mode 2; it may be shared across calls.
func (g *Graph) EdgeConsensus(id EdgeId, caller ConsensusCaller, aligner *poa.Engine) (result *EdgeConsensusResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			cause := fmt.Errorf("%v", r)
			logEdgeConsensusFailure(id, cause)
			result = nil
			err = errs.Consensus(fmt.Sprintf("MarkerGraphEdge(%d)", id), cause)
		}
	}()

	edge := &g.Edges[id]
	intervals := edge.MarkerIntervals
	if len(intervals) == 0 {
		return nil, errs.Algorithmic("MarkerGraphEdge", "edge has no marker intervals")
	}
	k := uint32(g.Opt.K)

	positions := make([]markerIntervalPositions, len(intervals))
	hasLongInterval := false
	for i, mi := range intervals {
		positions[i] = g.markerIntervalPositions(mi)
		markerCount := int(mi.Ordinal1) - int(mi.Ordinal0)
		if markerCount > g.Opt.EdgeConsensusLengthThreshold {
			hasLongInterval = true
		}
		rleBaseCount := positions[i].position1 - positions[i].position0
		if int(rleBaseCount) > g.Opt.MaxBasePositionSpan {
			hasLongInterval = true
		}
	}

	if hasLongInterval {
		return g.shortCircuitEdgeConsensus(intervals, positions, k)
	}
	return g.edgeConsensusByMode(id, intervals, positions, k, caller, aligner)
}

// shortCircuitEdgeConsensus returns the sequence of the marker interval
// with the fewest markers, avoiding the memory/time cost of aligning a
// pathologically long interval.
func (g *Graph) shortCircuitEdgeConsensus(intervals []MarkerInterval, positions []markerIntervalPositions, k uint32) (*EdgeConsensusResult, error) {
	shortest := 0
	minLen := int(intervals[0].Ordinal1) - int(intervals[0].Ordinal0)
	for i := 1; i < len(intervals); i++ {
		l := int(intervals[i].Ordinal1) - int(intervals[i].Ordinal0)
		if l < minLen {
			minLen = l
			shortest = i
		}
	}

	mi := intervals[shortest]
	pos := positions[shortest]
	result := &EdgeConsensusResult{Mode: 0, ShortestIntervalIndex: shortest}

	if pos.position1 <= pos.position0+k {
		result.OverlappingBaseCount = int(pos.position0 + k - pos.position1)
		return result, nil
	}

	for p := pos.position0 + k; p != pos.position1; p++ {
		if g.Reads.IsRunLengthEncoded() {
			base, repeatCount, err := g.Reads.GetBaseAndRepeatCount(mi.OrientedRead, p)
			if err != nil {
				return nil, err
			}
			result.Sequence = append(result.Sequence, base)
			result.RepeatCounts = append(result.RepeatCounts, int(repeatCount))
		} else {
			base, _, err := g.Reads.GetBaseAndRepeatCount(mi.OrientedRead, p)
			if err != nil {
				return nil, err
			}
			result.Sequence = append(result.Sequence, base)
		}
	}
	return result, nil
}

func (g *Graph) edgeConsensusByMode(id EdgeId, intervals []MarkerInterval, positions []markerIntervalPositions, k uint32, caller ConsensusCaller, aligner *poa.Engine) (*EdgeConsensusResult, error) {
	mode1Count, mode2Count := 0, 0
	offsets := make([]uint32, len(intervals))
	for i := range intervals {
		offset := positions[i].position1 - positions[i].position0
		offsets[i] = offset
		if offset <= k {
			mode1Count++
		} else {
			mode2Count++
		}
	}

	if mode1Count >= mode2Count {
		return g.mode1EdgeConsensus(offsets, k), nil
	}
	return g.mode2EdgeConsensus(id, intervals, positions, k, caller, aligner)
}

// mode1EdgeConsensus handles the overlap case (mode 1): no
// intervening sequence is assembled, only the most frequent marker
// offset, expressed as overlappingBaseCount.
func (g *Graph) mode1EdgeConsensus(offsets []uint32, k uint32) *EdgeConsensusResult {
	histogram := make([]int, k+1)
	for _, offset := range offsets {
		if offset <= k {
			histogram[offset]++
		}
	}
	bestOffset := uint32(0)
	for offset := uint32(1); offset <= k; offset++ {
		if histogram[offset] > histogram[bestOffset] {
			bestOffset = offset
		}
	}
	return &EdgeConsensusResult{
		Mode:                  1,
		ShortestIntervalIndex: -1,
		OverlappingBaseCount:  int(k - bestOffset),
	}
}

type distinctSequence struct {
	bases       []byte
	occurrences []int // original interval indices sharing this sequence
}

// mode2EdgeConsensus handles the gap case (mode 2): distinct
// intervening sequences are presented to the partial-order aligner in
// descending frequency order for determinism under reordering,
// and the MSA columns are turned into a consensus base/repeatCount
// sequence via caller.
func (g *Graph) mode2EdgeConsensus(id EdgeId, intervals []MarkerInterval, positions []markerIntervalPositions, k uint32, caller ConsensusCaller, aligner *poa.Engine) (*EdgeConsensusResult, error) {
	markerCount := len(intervals)
	intervening := make([][]byte, markerCount)
	repeatCounts := make([][]int, markerCount)
	rle := g.Reads.IsRunLengthEncoded()

	bySeq := make(map[string]int) // sequence -> index into distinctSeqs
	var distinctSeqs []distinctSequence

	for i, mi := range intervals {
		offset := positions[i].position1 - positions[i].position0
		if offset <= k {
			continue // mode 1 supporter, discarded
		}
		bases := make([]byte, 0, offset-k)
		reps := make([]int, 0, offset-k)
		for p := positions[i].position0 + k; p != positions[i].position1; p++ {
			base, repeatCount, err := g.Reads.GetBaseAndRepeatCount(mi.OrientedRead, p)
			if err != nil {
				return nil, err
			}
			bases = append(bases, base)
			if rle {
				reps = append(reps, int(repeatCount))
			}
		}
		intervening[i] = bases
		repeatCounts[i] = reps

		key := string(bases)
		idx, ok := bySeq[key]
		if !ok {
			idx = len(distinctSeqs)
			bySeq[key] = idx
			distinctSeqs = append(distinctSeqs, distinctSequence{bases: bases})
		}
		distinctSeqs[idx].occurrences = append(distinctSeqs[idx].occurrences, i)
	}
	if len(distinctSeqs) == 0 {
		return nil, errs.Algorithmic("MarkerGraphEdge", "mode 2 selected but no marker interval supports it")
	}

	order := make([]int, len(distinctSeqs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return len(distinctSeqs[order[a]].occurrences) > len(distinctSeqs[order[b]].occurrences)
	})

	alignmentRow := make([]int, markerCount)
	for i := range alignmentRow {
		alignmentRow[i] = -1
	}
	occurrenceRows := make([][]int, len(order))
	for row, idx := range order {
		occurrenceRows[row] = distinctSeqs[idx].occurrences
		for _, i := range occurrenceRows[row] {
			alignmentRow[i] = row
		}
	}

	poaGraph := aligner.NewGraph(distinctSeqs[order[0]].bases)
	for _, idx := range order[1:] {
		poaGraph.AddAlignment(distinctSeqs[idx].bases)
	}
	msa := poaGraph.GenerateMSA()

	consumed := make([]int, markerCount)
	var sequence []byte
	var outRepeatCounts []int
	alignmentLength := 0
	if len(msa) > 0 {
		alignmentLength = len(msa[0])
	}
	for pos := 0; pos < alignmentLength; pos++ {
		var cov Coverage
		for row := range order {
			for _, i := range occurrenceRows[row] {
				strand := intervals[i].OrientedRead.Strand
				ch := msa[row][pos]
				if ch == GapBase {
					cov.AddRead(GapBase, strand, 0)
					continue
				}
				repeatCount := 1
				if rle {
					repeatCount = repeatCounts[i][consumed[i]]
				}
				cov.AddRead(ch, strand, repeatCount)
				consumed[i]++
			}
		}
		base, repeatCount := caller.Consensus(cov)
		if base != GapBase {
			sequence = append(sequence, base)
			outRepeatCounts = append(outRepeatCounts, repeatCount)
		}
	}

	return &EdgeConsensusResult{
		Sequence:                    sequence,
		RepeatCounts:                outRepeatCounts,
		OverlappingBaseCount:        0,
		Mode:                        2,
		ShortestIntervalIndex:       -1,
		DistinctSequenceOccurrences: occurrenceRows,
		MSA:                         msa,
		AlignmentRow:                alignmentRow,
	}, nil
}
