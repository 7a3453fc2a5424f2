package markergraph

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/awalterschulze/gographviz"

	"github.com/mudesheng/markergraph/internal/errs"
)

// Diagnostics gated by Options.Debug export CSV/dot views of the
// graph, generalizing the original assembler's
// writeBadMarkerGraphVertices and vertexCoverageStatisticsByKmerId.

// WriteVertexCoverageHistogramCSV writes one row per distinct vertex
// coverage value, generalizing vertexCoverageStatisticsByKmerId. A
// no-op unless Opt.Debug is set.
func (g *Graph) WriteVertexCoverageHistogramCSV(path string) error {
	if !g.Opt.Debug {
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		return errs.IO("VertexCoverageHistogram", err)
	}
	defer f.Close()
	return g.writeVertexCoverageHistogram(f)
}

func (g *Graph) writeVertexCoverageHistogram(w io.Writer) error {
	hist := make(map[int]int)
	for i := range g.Vertices {
		hist[g.Vertices[i].Coverage()]++
	}
	if _, err := fmt.Fprintln(w, "coverage,count"); err != nil {
		return err
	}
	coverages := make([]int, 0, len(hist))
	for c := range hist {
		coverages = append(coverages, c)
	}
	sort.Ints(coverages)
	for _, c := range coverages {
		if _, err := fmt.Fprintf(w, "%d,%d\n", c, hist[c]); err != nil {
			return err
		}
	}
	return nil
}

// WriteBadVertexSetsCSV writes one row per pre-vertex that pass 5
// rejected during the most recent BuildVertices call, generalizing
// writeBadMarkerGraphVertices. A no-op unless Opt.Debug was set at
// BuildVertices time (BadVertexSets is empty otherwise).
func (g *Graph) WriteBadVertexSetsCSV(path string) error {
	if !g.Opt.Debug {
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		return errs.IO("BadVertexSets", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintln(f, "preVertexId,reason"); err != nil {
		return err
	}
	for _, b := range g.BadVertexSets {
		if _, err := fmt.Fprintf(f, "%d,%s\n", b.PreVertexId, b.Reason); err != nil {
			return err
		}
	}
	return nil
}

// WriteEdgeCoverageCSV writes one row per edge: id, source, target,
// coverage and flags, the marker-graph equivalent of the original's
// per-edge coverage dump.
func (g *Graph) WriteEdgeCoverageCSV(path string) error {
	if !g.Opt.Debug {
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		return errs.IO("EdgeCoverage", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintln(f, "edgeId,source,target,coverage,flags"); err != nil {
		return err
	}
	for i := range g.Edges {
		e := &g.Edges[i]
		if _, err := fmt.Fprintf(f, "%d,%d,%d,%d,%d\n", e.Id, e.Source, e.Target, e.Coverage(), e.Flags); err != nil {
			return err
		}
	}
	return nil
}

// WriteDotGraph exports every current vertex and edge as a Graphviz dot
// file, generalizing GraphvizDBGArr (constructdbg.go)
// from de-Bruijn-graph nodes/edges to marker-graph vertices/edges:
// vertex ids as record nodes, edges labeled with id/coverage, colored by
// whether they are still strong.
func (g *Graph) WriteDotGraph(path string) error {
	if !g.Opt.Debug {
		return nil
	}
	gv := gographviz.NewGraph()
	gv.SetName("G")
	gv.SetDir(true)
	gv.SetStrict(false)

	for i := range g.Vertices {
		v := &g.Vertices[i]
		attr := map[string]string{
			"shape": "record",
			"label": "\"" + strconv.FormatUint(uint64(v.Id), 10) + "\"",
			"color": "Green",
		}
		if err := gv.AddNode("G", strconv.FormatUint(uint64(v.Id), 10), attr); err != nil {
			return errs.IO("DotGraph", err)
		}
	}

	for i := range g.Edges {
		e := &g.Edges[i]
		color := "Blue"
		if !g.IsStrong(e) {
			color = "Red"
		}
		attr := map[string]string{
			"color": color,
			"label": "\"id:" + strconv.FormatUint(uint64(e.Id), 10) + " cov:" + strconv.Itoa(e.Coverage()) + "\"",
		}
		src := strconv.FormatUint(uint64(e.Source), 10)
		dst := strconv.FormatUint(uint64(e.Target), 10)
		if err := gv.AddEdge(src, dst, true, attr); err != nil {
			return errs.IO("DotGraph", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return errs.IO("DotGraph", err)
	}
	defer f.Close()
	if _, err := f.WriteString(gv.String()); err != nil {
		return errs.IO("DotGraph", err)
	}
	return nil
}
