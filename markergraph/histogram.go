package markergraph

import "sort"

// findMinCoveragePeak is a one-dimensional histogram peak finder: it
// picks the first significant trough after the coverage peak, used to
// auto-select minCoverage when Options.MinCoverage is left at 0.
// Returns ok=false if no trough after a peak can be identified, in
// which case the caller falls back to Options.MinCoverageFallback.
func findMinCoveragePeak(hist map[int]int) (int, bool) {
	if len(hist) == 0 {
		return 0, false
	}
	sizes := make([]int, 0, len(hist))
	for s := range hist {
		sizes = append(sizes, s)
	}
	sort.Ints(sizes)

	// Locate the peak: the size with the largest count among sizes
	// beyond the noise spike at very low coverage (size 1..2, which is
	// dominated by sequencing errors and unaligned singletons).
	peakIdx := -1
	peakCount := 0
	for i, s := range sizes {
		if s < 3 {
			continue
		}
		if hist[s] > peakCount {
			peakCount = hist[s]
			peakIdx = i
		}
	}
	if peakIdx < 0 {
		return 0, false
	}

	// Walk forward from the peak until the histogram count starts
	// rising again (a trough followed by a rise marks the boundary
	// between "real coverage" and the long tail of spuriously high
	// coverage sets).
	for i := peakIdx + 1; i < len(sizes)-1; i++ {
		if hist[sizes[i]] <= hist[sizes[i-1]] && hist[sizes[i]] <= hist[sizes[i+1]] {
			return sizes[i], true
		}
	}
	return 0, false
}
