package markergraph

// Options collects every threshold the marker-graph core takes as
// input, grouped by the component that consumes it. Defaults mirror
// the habit, shared by every phase's CLI flags, of shipping a
// conservative default rather than requiring the caller to set one.
type Options struct {
	NumWorkers int
	BatchSize  int // 0 lets pargo/parallel pick a batch size
	K          int // marker (k-mer) length, shared by every component

	// WorkDir, when non-empty, backs the disjoint-set buffer with a
	// memory-mapped scratch file (internal/bigarray) under this
	// directory instead of a plain in-memory slice, so a run against a
	// large read set does not need the whole 2N-word buffer resident.
	// Left empty, BuildVertices allocates a plain []uint64.
	WorkDir string

	// C2 vertex builder.
	MinCoverage            int // 0 => auto-derive via peak-finding
	MaxCoverage            int
	MinCoveragePerStrand   int
	AllowDuplicateMarkers  bool
	MinCoverageFallback    int // default 5 when peak-finding fails

	// C4 refiner.
	LowCoverageThreshold   int
	HighCoverageThreshold  int
	MaxTransitiveDistance  int
	MarkerSkipThreshold    int
	LeafPruneIterations    int
	BubbleMaxLengthSchedule []int

	// C5 consensus engine.
	EdgeConsensusLengthThreshold int
	MaxBasePositionSpan         int // default 1000

	Debug bool
}

// DefaultOptions returns the starting thresholds; the CLI then
// overwrites every field that has a sub-command flag with that flag's
// value. The values match the conservative defaults ga.go's
// sub-commands declare (e.g. cdbg's MinKmerFreq, smfy's MinMapFreq).
func DefaultOptions() Options {
	return Options{
		NumWorkers:                   1,
		BatchSize:                    0,
		K:                            10,
		MinCoverage:                  0,
		MaxCoverage:                  1 << 30,
		MinCoveragePerStrand:         1,
		AllowDuplicateMarkers:        false,
		MinCoverageFallback:          5,
		LowCoverageThreshold:         1,
		HighCoverageThreshold:        20,
		MaxTransitiveDistance:        5,
		MarkerSkipThreshold:          100,
		LeafPruneIterations:          3,
		BubbleMaxLengthSchedule:      []int{2, 4, 8, 16},
		EdgeConsensusLengthThreshold: 100,
		MaxBasePositionSpan:          1000,
		Debug:                        false,
	}
}
