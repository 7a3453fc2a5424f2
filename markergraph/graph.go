package markergraph

// Graph is the arena-and-index marker graph: every table is a flat
// array indexed by VertexId/EdgeId/MarkerId, rebuilt rather than
// mutated at phase boundaries.
type Graph struct {
	Store      MarkerStore
	Reads      ReadStore
	Alignments AlignmentStore
	Opt        Options

	// VertexTable maps MarkerId -> VertexId; InvalidVertexId marks
	// markers not assigned to any vertex.
	VertexTable []VertexId

	Vertices []Vertex
	Edges    []Edge

	EdgesBySource [][]EdgeId
	EdgesByTarget [][]EdgeId

	// BadVertexSets is filled by BuildVertices only when Opt.Debug is
	// set: one entry per pre-vertex that pass 5 rejected, generalizing
	// the original assembler's writeBadMarkerGraphVertices.
	BadVertexSets []BadVertexSet
}

// BadVertexSet names a pre-vertex candidate that failed the vertex
// builder's pass 5 good-set filtering, and why.
type BadVertexSet struct {
	PreVertexId uint64
	Reason      string
}

// NewGraph wires the three store collaborators and the options set;
// VertexTable/Vertices/Edges are filled by BuildVertices/BuildEdges.
func NewGraph(store MarkerStore, reads ReadStore, alignments AlignmentStore, opt Options) *Graph {
	return &Graph{Store: store, Reads: reads, Alignments: alignments, Opt: opt}
}

// vertexOf maps a marker to its vertex; InvalidMarkerId maps to
// InvalidVertexId.
func (g *Graph) vertexOf(m MarkerId) VertexId {
	if m == InvalidMarkerId {
		return InvalidVertexId
	}
	return g.VertexTable[m]
}
