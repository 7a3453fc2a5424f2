package main

import (
	"fmt"
	"log"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/jwaldrip/odin/cli"

	"github.com/mudesheng/markergraph/markergraph"
	"github.com/mudesheng/markergraph/markergraph/poa"
)

// mgGlobalArgs mirrors utils.ArgsOpt's role for this command: the
// thresholds every sub-command needs regardless of which phase it
// stops at, read once from the global flag set.
type mgGlobalArgs struct {
	kmer    int
	numCPU  int
	rle     bool
	debug   bool
	prefix  string
	reads   []string
	workDir string
}

var app = cli.New("1.0.0", "marker graph assembly core", func(c cli.Command) {})

func init() {
	app.DefineIntFlag("K", 10, "marker (k-mer) length")
	app.DefineIntFlag("t", 1, "number of CPU used")
	app.DefineBoolFlag("rle", true, "treat -reads/-readsFile input as already run-length-encoded")
	app.DefineBoolFlag("debug", false, "write CSV/dot diagnostics under -p")
	app.DefineStringFlag("p", "", "prefix of diagnostic output files (required with -debug)")
	app.DefineStringFlag("reads", "", "comma-separated list of raw read sequences")
	app.DefineStringFlag("readsFile", "", "file with one read sequence per line")
	app.DefineStringFlag("workDir", "", "if set, back the disjoint-set buffer with a memory-mapped scratch file under this directory instead of an in-memory slice")

	vertices := app.DefineSubCommand("vertices", "run the vertex builder over the input reads", VerticesCmd)
	{
		vertices.DefineIntFlag("minCov", 0, "minimum pre-vertex coverage, 0 auto-derives via peak-finding")
		vertices.DefineIntFlag("maxCov", 0, "maximum pre-vertex coverage, 0 for unbounded")
		vertices.DefineIntFlag("minCovPerStrand", 1, "minimum marker count on each strand")
		vertices.DefineBoolFlag("allowDup", false, "allow more than one marker from the same read in a vertex")
	}

	edges := app.DefineSubCommand("edges", "run the vertex and edge builders", EdgesCmd)
	{
		edges.DefineIntFlag("minCov", 0, "minimum pre-vertex coverage, 0 auto-derives via peak-finding")
		edges.DefineIntFlag("maxCov", 0, "maximum pre-vertex coverage, 0 for unbounded")
		edges.DefineIntFlag("minCovPerStrand", 1, "minimum marker count on each strand")
		edges.DefineBoolFlag("allowDup", false, "allow more than one marker from the same read in a vertex")
	}

	refine := app.DefineSubCommand("refine", "run the vertex/edge builders and the graph refiner", RefineCmd)
	{
		refine.DefineIntFlag("minCov", 0, "minimum pre-vertex coverage, 0 auto-derives via peak-finding")
		refine.DefineIntFlag("maxCov", 0, "maximum pre-vertex coverage, 0 for unbounded")
		refine.DefineIntFlag("minCovPerStrand", 1, "minimum marker count on each strand")
		refine.DefineBoolFlag("allowDup", false, "allow more than one marker from the same read in a vertex")
		refine.DefineIntFlag("lowCov", 1, "coverage at or below which an edge is weak outright")
		refine.DefineIntFlag("highCov", 20, "coverage at or above which transitive reduction stops")
		refine.DefineIntFlag("maxDist", 5, "maximum BFS depth for transitive reduction")
		refine.DefineIntFlag("markerSkip", 100, "ordinal span above which a singleton coverage-1 edge is removed outright")
		refine.DefineIntFlag("pruneIter", 3, "number of leaf-pruning iterations")
		refine.DefineStringFlag("bubbleMaxLen", "2,4,8,16", "comma-separated bubble/superbubble length schedule")
	}

	consensus := app.DefineSubCommand("consensus", "run the full pipeline through consensus computation", ConsensusCmd)
	{
		consensus.DefineIntFlag("minCov", 0, "minimum pre-vertex coverage, 0 auto-derives via peak-finding")
		consensus.DefineIntFlag("maxCov", 0, "maximum pre-vertex coverage, 0 for unbounded")
		consensus.DefineIntFlag("minCovPerStrand", 1, "minimum marker count on each strand")
		consensus.DefineBoolFlag("allowDup", false, "allow more than one marker from the same read in a vertex")
		consensus.DefineIntFlag("lowCov", 1, "coverage at or below which an edge is weak outright")
		consensus.DefineIntFlag("highCov", 20, "coverage at or above which transitive reduction stops")
		consensus.DefineIntFlag("maxDist", 5, "maximum BFS depth for transitive reduction")
		consensus.DefineIntFlag("markerSkip", 100, "ordinal span above which a singleton coverage-1 edge is removed outright")
		consensus.DefineIntFlag("pruneIter", 3, "number of leaf-pruning iterations")
		consensus.DefineStringFlag("bubbleMaxLen", "2,4,8,16", "comma-separated bubble/superbubble length schedule")
		consensus.DefineIntFlag("lengthThreshold", 100, "marker-count threshold above which edge consensus short-circuits")
		consensus.DefineIntFlag("maxBaseSpan", 1000, "run-length-encoded base-position span above which edge consensus short-circuits")
	}

	run := app.DefineSubCommand("run", "run the full pipeline end to end (alias for consensus)", RunCmd)
	{
		run.DefineIntFlag("minCov", 0, "minimum pre-vertex coverage, 0 auto-derives via peak-finding")
		run.DefineIntFlag("maxCov", 0, "maximum pre-vertex coverage, 0 for unbounded")
		run.DefineIntFlag("minCovPerStrand", 1, "minimum marker count on each strand")
		run.DefineBoolFlag("allowDup", false, "allow more than one marker from the same read in a vertex")
		run.DefineIntFlag("lowCov", 1, "coverage at or below which an edge is weak outright")
		run.DefineIntFlag("highCov", 20, "coverage at or above which transitive reduction stops")
		run.DefineIntFlag("maxDist", 5, "maximum BFS depth for transitive reduction")
		run.DefineIntFlag("markerSkip", 100, "ordinal span above which a singleton coverage-1 edge is removed outright")
		run.DefineIntFlag("pruneIter", 3, "number of leaf-pruning iterations")
		run.DefineStringFlag("bubbleMaxLen", "2,4,8,16", "comma-separated bubble/superbubble length schedule")
		run.DefineIntFlag("lengthThreshold", 100, "marker-count threshold above which edge consensus short-circuits")
		run.DefineIntFlag("maxBaseSpan", 1000, "run-length-encoded base-position span above which edge consensus short-circuits")
	}
}

func mustInt(c cli.Command, name string) int {
	v, ok := c.Flag(name).Get().(int)
	if !ok {
		log.Fatalf("[mustInt] flag %q: %v could not be read as an int", name, c.Flag(name).String())
	}
	return v
}

func mustBool(c cli.Command, name string) bool {
	v, ok := c.Flag(name).Get().(bool)
	if !ok {
		log.Fatalf("[mustBool] flag %q: %v could not be read as a bool", name, c.Flag(name).String())
	}
	return v
}

func checkMarkerGraphGlobalArgs(c cli.Command) mgGlobalArgs {
	p := c.Parent()
	var g mgGlobalArgs
	g.kmer = mustInt(p, "K")
	if g.kmer < 2 {
		log.Fatalf("[checkMarkerGraphGlobalArgs] args 'K':%d must be at least 2\n", g.kmer)
	}
	g.numCPU = mustInt(p, "t")
	g.rle = mustBool(p, "rle")
	g.debug = mustBool(p, "debug")
	g.prefix = p.Flag("p").String()
	g.workDir = p.Flag("workDir").String()

	readsFlag := p.Flag("reads").String()
	readsFile := p.Flag("readsFile").String()
	switch {
	case readsFlag != "":
		for _, s := range strings.Split(readsFlag, ",") {
			s = strings.ToUpper(strings.TrimSpace(s))
			if s != "" {
				g.reads = append(g.reads, s)
			}
		}
	case readsFile != "":
		data, err := os.ReadFile(readsFile)
		if err != nil {
			log.Fatalf("[checkMarkerGraphGlobalArgs] readsFile %q: %v\n", readsFile, err)
		}
		for _, line := range strings.Split(string(data), "\n") {
			s := strings.ToUpper(strings.TrimSpace(line))
			if s != "" {
				g.reads = append(g.reads, s)
			}
		}
	default:
		log.Fatalf("[checkMarkerGraphGlobalArgs] one of 'reads' or 'readsFile' must be set\n")
	}
	if len(g.reads) == 0 {
		log.Fatalf("[checkMarkerGraphGlobalArgs] no read sequences parsed\n")
	}
	return g
}

func buildVertexOptions(c cli.Command, g mgGlobalArgs) markergraph.Options {
	opt := markergraph.DefaultOptions()
	opt.NumWorkers = g.numCPU
	opt.K = g.kmer
	opt.Debug = g.debug
	opt.WorkDir = g.workDir
	opt.MinCoverage = mustInt(c, "minCov")
	opt.MaxCoverage = mustInt(c, "maxCov")
	opt.MinCoveragePerStrand = mustInt(c, "minCovPerStrand")
	opt.AllowDuplicateMarkers = mustBool(c, "allowDup")
	return opt
}

func applyRefineOptions(c cli.Command, opt *markergraph.Options) {
	opt.LowCoverageThreshold = mustInt(c, "lowCov")
	opt.HighCoverageThreshold = mustInt(c, "highCov")
	opt.MaxTransitiveDistance = mustInt(c, "maxDist")
	opt.MarkerSkipThreshold = mustInt(c, "markerSkip")
	opt.LeafPruneIterations = mustInt(c, "pruneIter")
	var schedule []int
	for _, s := range strings.Split(c.Flag("bubbleMaxLen").String(), ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			log.Fatalf("[applyRefineOptions] bubbleMaxLen entry %q: %v\n", s, err)
		}
		schedule = append(schedule, n)
	}
	opt.BubbleMaxLengthSchedule = schedule
}

func applyConsensusOptions(c cli.Command, opt *markergraph.Options) {
	opt.EdgeConsensusLengthThreshold = mustInt(c, "lengthThreshold")
	opt.MaxBasePositionSpan = mustInt(c, "maxBaseSpan")
}

// buildDemoGraph wires a Graph over an in-memory read/marker/alignment
// store built directly from raw sequences. A real deployment consumes
// MarkerStore/ReadStore/AlignmentStore implementations backed by
// upstream read-alignment infrastructure; that alignment discovery is
// outside this core's scope, so the demo store pairs up reads with
// byte-identical sequences and presents them as one ordinal-for-
// ordinal identity alignment each, the simplest input the vertex
// builder can consume.
func buildDemoGraph(opt markergraph.Options, rle bool, sequences []string) (*markergraph.Graph, []markergraph.ReadGraphEdge) {
	store := markergraph.NewMemStore(opt.K, sequences, rle)
	alignStore := &markergraph.MemAlignmentStore{}
	var readEdges []markergraph.ReadGraphEdge

	for i := 0; i < len(sequences); i++ {
		for j := i + 1; j < len(sequences); j++ {
			if sequences[i] != sequences[j] {
				continue
			}
			read0 := markergraph.OrientedReadId{ReadId: markergraph.ReadId(i), Strand: markergraph.StrandForward}
			read1 := markergraph.OrientedReadId{ReadId: markergraph.ReadId(j), Strand: markergraph.StrandForward}
			n := store.MarkerCount(read0)
			pairs := make([][2]markergraph.Ordinal, n)
			for ord := 0; ord < n; ord++ {
				pairs[ord] = [2]markergraph.Ordinal{markergraph.Ordinal(ord), markergraph.Ordinal(ord)}
			}
			alignId := uint64(len(alignStore.Alignments))
			alignStore.Alignments = append(alignStore.Alignments, markergraph.MemAlignment{
				Read0: read0, Read1: read1, OrdinalPairs: pairs,
			})
			readEdges = append(readEdges, markergraph.ReadGraphEdge{
				AlignmentId: alignId,
				Read0:       read0,
				Read1:       read1,
			})
		}
	}

	g := markergraph.NewGraph(store, store, alignStore, opt)
	return g, readEdges
}

func runVerticesPhase(g *markergraph.Graph, edges []markergraph.ReadGraphEdge) {
	if err := g.BuildVertices(edges); err != nil {
		log.Fatalf("[BuildVertices] %v\n", err)
	}
	log.Printf("[BuildVertices] %d vertices\n", len(g.Vertices))
}

func runEdgesPhase(g *markergraph.Graph) {
	if err := g.BuildEdges(); err != nil {
		log.Fatalf("[BuildEdges] %v\n", err)
	}
	log.Printf("[BuildEdges] %d edges\n", len(g.Edges))
}

func runRefinePhase(g *markergraph.Graph) {
	g.ApproximateTransitiveReduction()
	g.ReverseTransitiveReduction()
	g.PruneLeaves(g.Opt.LeafPruneIterations)
	for _, maxLen := range g.Opt.BubbleMaxLengthSchedule {
		g.RemoveBubbles(maxLen)
		g.SimplifySuperBubbles(maxLen)
		if err := g.CheckStrandSymmetric(); err != nil {
			log.Fatalf("[CheckStrandSymmetric] after bubble maxLength %d: %v\n", maxLen, err)
		}
	}
	if err := g.CheckStrandSymmetric(); err != nil {
		log.Fatalf("[CheckStrandSymmetric] %v\n", err)
	}
	strong := 0
	for i := range g.Edges {
		if g.IsStrong(&g.Edges[i]) {
			strong++
		}
	}
	log.Printf("[Refine] %d/%d edges remain strong\n", strong, len(g.Edges))
}

func runConsensusPhase(g *markergraph.Graph) {
	caller := markergraph.SimpleMajorityCaller{}
	aligner := poa.NewEngine(2, -1, -2)

	vertexBases := 0
	for i := range g.Vertices {
		seq, _, err := g.VertexConsensus(markergraph.VertexId(i), caller)
		if err != nil {
			log.Fatalf("[VertexConsensus] vertex %d: %v\n", i, err)
		}
		vertexBases += len(seq)
	}

	edgeBases := 0
	consensusEdges := 0
	for i := range g.Edges {
		e := &g.Edges[i]
		if !g.IsStrong(e) {
			continue
		}
		result, err := g.EdgeConsensus(e.Id, caller, aligner)
		if err != nil {
			log.Fatalf("[EdgeConsensus] edge %d: %v\n", e.Id, err)
		}
		edgeBases += len(result.Sequence)
		consensusEdges++
	}
	log.Printf("[Consensus] %d vertex bases, %d edge bases assembled across %d strong edges\n",
		vertexBases, edgeBases, consensusEdges)
}

func writeDiagnostics(g *markergraph.Graph, g0 mgGlobalArgs, stage string) {
	if !g0.debug {
		return
	}
	if g0.prefix == "" {
		log.Fatalf("[writeDiagnostics] -debug requires -p\n")
	}
	if err := g.WriteVertexCoverageHistogramCSV(g0.prefix + ".vertexCoverage.csv"); err != nil {
		log.Fatalf("[writeDiagnostics] %v\n", err)
	}
	if err := g.WriteBadVertexSetsCSV(g0.prefix + ".badVertexSets.csv"); err != nil {
		log.Fatalf("[writeDiagnostics] %v\n", err)
	}
	if stage == "edges" || stage == "refine" || stage == "consensus" {
		if err := g.WriteEdgeCoverageCSV(g0.prefix + ".edgeCoverage.csv"); err != nil {
			log.Fatalf("[writeDiagnostics] %v\n", err)
		}
		if err := g.WriteDotGraph(g0.prefix + ".dot"); err != nil {
			log.Fatalf("[writeDiagnostics] %v\n", err)
		}
	}
}

func VerticesCmd(c cli.Command) {
	g0 := checkMarkerGraphGlobalArgs(c)
	runtime.GOMAXPROCS(g0.numCPU)
	opt := buildVertexOptions(c, g0)
	g, edges := buildDemoGraph(opt, g0.rle, g0.reads)
	runVerticesPhase(g, edges)
	writeDiagnostics(g, g0, "vertices")
}

func EdgesCmd(c cli.Command) {
	g0 := checkMarkerGraphGlobalArgs(c)
	runtime.GOMAXPROCS(g0.numCPU)
	opt := buildVertexOptions(c, g0)
	g, edges := buildDemoGraph(opt, g0.rle, g0.reads)
	runVerticesPhase(g, edges)
	runEdgesPhase(g)
	writeDiagnostics(g, g0, "edges")
}

func RefineCmd(c cli.Command) {
	g0 := checkMarkerGraphGlobalArgs(c)
	runtime.GOMAXPROCS(g0.numCPU)
	opt := buildVertexOptions(c, g0)
	applyRefineOptions(c, &opt)
	g, edges := buildDemoGraph(opt, g0.rle, g0.reads)
	runVerticesPhase(g, edges)
	runEdgesPhase(g)
	runRefinePhase(g)
	writeDiagnostics(g, g0, "refine")
}

func ConsensusCmd(c cli.Command) {
	g0 := checkMarkerGraphGlobalArgs(c)
	runtime.GOMAXPROCS(g0.numCPU)
	if !g0.rle {
		log.Fatalf("[ConsensusCmd] consensus requires -rle=true\n")
	}
	opt := buildVertexOptions(c, g0)
	applyRefineOptions(c, &opt)
	applyConsensusOptions(c, &opt)
	g, edges := buildDemoGraph(opt, g0.rle, g0.reads)
	runVerticesPhase(g, edges)
	runEdgesPhase(g)
	runRefinePhase(g)
	runConsensusPhase(g)
	writeDiagnostics(g, g0, "consensus")
}

// RunCmd runs the whole pipeline; it exists as a separate, clearly-
// named entry point for smoke-testing the full vertex/edge/refine/
// consensus chain in one invocation.
func RunCmd(c cli.Command) {
	ConsensusCmd(c)
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: markergraph <vertices|edges|refine|consensus|run> [flags]")
		os.Exit(1)
	}
	app.Start()
}
