package markergraph

import (
	"log"
	"sort"
	"sync/atomic"

	"github.com/cespare/xxhash"
	"github.com/exascience/pargo/parallel"
	pargosync "github.com/exascience/pargo/sync"

	"github.com/mudesheng/markergraph/disjointset"
	"github.com/mudesheng/markergraph/internal/bigarray"
	"github.com/mudesheng/markergraph/internal/errs"
)

// badSetReason is stored in a pargo/sync.Map keyed by pre-vertex id
// while pass 5 runs concurrently, so every worker can record why a set
// was rejected without a shared lock.
type badSetReason struct {
	preVertexId uint64
	reason      string
}

func (b badSetReason) Hash() uint64 {
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(b.preVertexId >> (8 * i))
	}
	return xxhash.Sum64(buf[:])
}

// BuildVertices runs the vertex builder's six passes over edges,
// filling g.VertexTable and g.Vertices. edges must present each
// alignment pair (an alignment and its already-known-reverse-complement
// pair) so that Unite calls preserve strand symmetry consistently.
func (g *Graph) BuildVertices(edges []ReadGraphEdge) error {
	n := g.Store.NumMarkers()
	var buf []uint64
	if g.Opt.WorkDir != "" {
		backing, err := bigarray.Create(g.Opt.WorkDir, "tmp-DisjointSets", 2*n)
		if err != nil {
			return err
		}
		defer backing.Close()
		buf = backing.Slice()
	} else {
		buf = make([]uint64, 2*n)
	}
	engine, err := disjointset.NewEngine(buf)
	if err != nil {
		return err
	}

	// Pass 1: unite aligned marker pairs, paired with their
	// reverse-complement unite to preserve strand symmetry.
	parallel.Range(0, len(edges), 10, func(low, high int) {
		for i := low; i < high; i++ {
			e := edges[i]
			if e.CrossesStrands || e.Inconsistent {
				continue
			}
			if g.Reads.IsChimeric(e.Read0.ReadId) || g.Reads.IsChimeric(e.Read1.ReadId) {
				continue
			}
			pairs, err := g.Alignments.OrdinalPairs(e.AlignmentId)
			if err != nil {
				continue
			}
			for _, p := range pairs {
				m0 := g.Store.MarkerId(e.Read0, p[0])
				m1 := g.Store.MarkerId(e.Read1, p[1])
				engine.Unite(uint64(m0), uint64(m1))
				engine.Unite(uint64(g.Store.ReverseComplement(m0)), uint64(g.Store.ReverseComplement(m1)))
			}
		}
	})

	// Pass 2: finalize (converge) and count set sizes by atomically
	// incrementing bucketSize[root] for every marker.
	if _, err := engine.Converge(g.Opt.BatchSize); err != nil {
		return err
	}
	if err := engine.Verify(g.Opt.BatchSize); err != nil {
		return err
	}
	bucketSize := make([]uint64, n)
	parallel.Range(0, int(n), 100000, func(low, high int) {
		for x := low; x < high; x++ {
			root := engine.Find(uint64(x), false)
			atomic.AddUint64(&bucketSize[root], 1)
		}
	})

	// Pass 3: coverage gating, deriving minCoverage by peak-finding
	// when it is left at 0, falling back to 5 on peak-finding failure.
	minCoverage := g.Opt.MinCoverage
	if minCoverage == 0 {
		hist := buildSizeHistogram(engine, bucketSize, n)
		if v, ok := findMinCoveragePeak(hist); ok {
			minCoverage = v
		} else {
			minCoverage = g.Opt.MinCoverageFallback
			log.Printf("[BuildVertices] warning: minCoverage peak-finding failed, falling back to %d\n", minCoverage)
		}
	}
	maxCoverage := g.Opt.MaxCoverage
	if maxCoverage == 0 {
		maxCoverage = 1 << 30
	}

	preVertexIdOfRoot := make([]int64, n)
	for i := range preVertexIdOfRoot {
		preVertexIdOfRoot[i] = -1
	}
	var nextPreVertexId int64
	parallel.Range(0, int(n), 100000, func(low, high int) {
		for x := low; x < high; x++ {
			if engine.Find(uint64(x), false) != uint64(x) {
				continue // not a root
			}
			size := bucketSize[x]
			if size < uint64(minCoverage) || size > uint64(maxCoverage) {
				continue
			}
			id := atomic.AddInt64(&nextPreVertexId, 1) - 1
			preVertexIdOfRoot[x] = id
		}
	})
	numPreVertices := int(atomic.LoadInt64(&nextPreVertexId))

	preVertexTable := make([]int64, n)
	parallel.Range(0, int(n), 100000, func(low, high int) {
		for x := low; x < high; x++ {
			root := engine.Find(uint64(x), false)
			preVertexTable[x] = preVertexIdOfRoot[root]
		}
	})

	// Pass 4: gather markers per pre-vertex with a count-then-store
	// pass, sorted by MarkerId (equivalently (orientedRead, ordinal)).
	// With Opt.WorkDir set, the row storage itself is a memory-mapped
	// bigarray.RaggedArray rather than a plain slice of slices, so a
	// large read set's marker lists don't all need to be resident at
	// once; the sorted result is still copied out into ordinary
	// []MarkerId rows before the scratch array is closed.
	counts := make([]uint64, numPreVertices)
	for x := uint64(0); x < n; x++ {
		if pv := preVertexTable[x]; pv >= 0 {
			counts[pv]++
		}
	}
	var buckets [][]MarkerId
	if g.Opt.WorkDir != "" {
		markerScratch, err := bigarray.BuildFromCounts(g.Opt.WorkDir, "tmp-VertexMarkers", counts)
		if err != nil {
			return err
		}
		if int(markerScratch.NumRows()) != numPreVertices {
			markerScratch.Close()
			return errs.Algorithmic("Vertex", "ragged marker array row count does not match pre-vertex count")
		}
		cursor := make([]uint64, numPreVertices)
		for x := uint64(0); x < n; x++ {
			if pv := preVertexTable[x]; pv >= 0 {
				row := markerScratch.Row(uint64(pv))
				row[cursor[pv]] = x
				cursor[pv]++
			}
		}
		buckets = make([][]MarkerId, numPreVertices)
		for i := 0; i < numPreVertices; i++ {
			row := markerScratch.Row(uint64(i))
			sort.Slice(row, func(a, b int) bool { return row[a] < row[b] })
			b := make([]MarkerId, len(row))
			for j, v := range row {
				b[j] = MarkerId(v)
			}
			buckets[i] = b
		}
		markerScratch.Close()
	} else {
		buckets = make([][]MarkerId, numPreVertices)
		for i, c := range counts {
			buckets[i] = make([]MarkerId, 0, c)
		}
		for x := uint64(0); x < n; x++ {
			if pv := preVertexTable[x]; pv >= 0 {
				buckets[pv] = append(buckets[pv], MarkerId(x))
			}
		}
		for _, b := range buckets {
			sort.Slice(b, func(i, j int) bool { return b[i] < b[j] })
		}
	}

	// Pass 5: bad-set filtering. Diagnostics are collected in a
	// concurrent pargo/sync.Map so parallel workers never contend on a
	// shared slice.
	badSets := pargosync.NewMap(16)
	good := make([]bool, numPreVertices)
	isGoodSet := func(pv int) bool {
		markers := buckets[pv]
		if len(markers) == 0 {
			return false
		}
		if !g.Opt.AllowDuplicateMarkers {
			for i := 1; i < len(markers); i++ {
				o1, _ := g.Store.OrdinalOf(markers[i-1])
				o2, _ := g.Store.OrdinalOf(markers[i])
				if o1.ReadId == o2.ReadId {
					badSets.LoadOrStore(badSetReason{preVertexId: uint64(pv)}, "duplicate marker in same read")
					return false
				}
			}
		}
		var cov0, cov1 int
		for _, m := range markers {
			o, _ := g.Store.OrdinalOf(m)
			if o.Strand == StrandForward {
				cov0++
			} else {
				cov1++
			}
		}
		if cov0 < g.Opt.MinCoveragePerStrand || cov1 < g.Opt.MinCoveragePerStrand {
			badSets.LoadOrStore(badSetReason{preVertexId: uint64(pv)}, "insufficient per-strand coverage")
			return false
		}
		return true
	}
	parallel.Range(0, numPreVertices, 1000, func(low, high int) {
		for pv := low; pv < high; pv++ {
			good[pv] = isGoodSet(pv)
		}
	})

	if g.Opt.Debug {
		var bad []BadVertexSet
		badSets.Range(func(key, value interface{}) bool {
			bad = append(bad, BadVertexSet{PreVertexId: key.(badSetReason).preVertexId, Reason: value.(string)})
			return true
		})
		sort.Slice(bad, func(i, j int) bool { return bad[i].PreVertexId < bad[j].PreVertexId })
		g.BadVertexSets = bad
	}

	// Pass 6: final renumbering. Good sets become final VertexIds; the
	// marker->vertex map is rewritten in place.
	finalId := make([]VertexId, numPreVertices)
	var numFinal int
	for pv := 0; pv < numPreVertices; pv++ {
		if good[pv] {
			finalId[pv] = VertexId(numFinal)
			numFinal++
		} else {
			finalId[pv] = InvalidVertexId
		}
	}

	vertexTable := make([]VertexId, n)
	for x := uint64(0); x < n; x++ {
		pv := preVertexTable[x]
		if pv < 0 || !good[pv] {
			vertexTable[x] = InvalidVertexId
			continue
		}
		vertexTable[x] = finalId[pv]
	}

	vertices := make([]Vertex, numFinal)
	for pv := 0; pv < numPreVertices; pv++ {
		if !good[pv] {
			continue
		}
		fid := finalId[pv]
		kmerId, err := kmerIdOf(g.Store, buckets[pv])
		if err != nil {
			return err
		}
		vertices[fid] = Vertex{Id: fid, Markers: buckets[pv], KmerId: kmerId}
	}

	// Reverse-complement vertex ids: map the first marker of each
	// vertex to its rc marker and look up that marker's vertex.
	for i := range vertices {
		rcMarker := g.Store.ReverseComplement(vertices[i].Markers[0])
		vertices[i].ReverseComplement = vertexTable[rcMarker]
	}

	g.VertexTable = vertexTable
	g.Vertices = vertices
	return nil
}

// kmerIdOf returns the shared k-mer id of a vertex's markers, asserting
// the constraint that all markers of a vertex share the same k-mer id.
func kmerIdOf(store MarkerStore, markers []MarkerId) (uint64, error) {
	if len(markers) == 0 {
		return 0, errs.Algorithmic("Vertex", "vertex has no markers")
	}
	o, ord := store.OrdinalOf(markers[0])
	kmerId := markerAt(store, o, ord).KmerId
	for _, m := range markers[1:] {
		o, ord := store.OrdinalOf(m)
		if markerAt(store, o, ord).KmerId != kmerId {
			return 0, errs.Algorithmic("Vertex", "markers disagree on k-mer id")
		}
	}
	return kmerId, nil
}

func markerAt(store MarkerStore, o OrientedReadId, ord Ordinal) Marker {
	return store.Markers(o)[ord]
}

func buildSizeHistogram(engine *disjointset.Engine, bucketSize []uint64, n uint64) map[int]int {
	hist := make(map[int]int)
	for x := uint64(0); x < n; x++ {
		if engine.Find(x, false) != x {
			continue
		}
		hist[int(bucketSize[x])]++
	}
	return hist
}
