package markergraph

import "github.com/mudesheng/markergraph/internal/errs"

// MarkerStore is the marker-store collaborator (a "consumed"
// external dependency): an ordered list of (kmerId, position) per oriented read,
// a dense markerId bijection with (orientedRead, ordinal), and
// reverse-complement lookup.
type MarkerStore interface {
	Markers(o OrientedReadId) []Marker
	MarkerId(o OrientedReadId, ordinal Ordinal) MarkerId
	OrdinalOf(m MarkerId) (OrientedReadId, Ordinal)
	ReverseComplement(m MarkerId) MarkerId
	// NumMarkers is the dense size N used to size the disjoint-set
	// buffer (2N words).
	NumMarkers() uint64
}

// ReadStore is the read-store collaborator: random
// access to bases/repeat counts and per-read chimeric flags.
type ReadStore interface {
	GetBaseAndRepeatCount(o OrientedReadId, position uint32) (base byte, repeatCount uint8, err error)
	MarkerCount(o OrientedReadId) int
	IsChimeric(r ReadId) bool
	// IsRunLengthEncoded selects the vertex-consensus code path used
	// only when reads are in run-length-encoded form.
	IsRunLengthEncoded() bool
}

// AlignmentStore is the alignment-store collaborator:
// a compressed alignment blob per alignment id, decompressed to a list
// of ordinal pairs.
type AlignmentStore interface {
	OrdinalPairs(alignmentId uint64) ([][2]Ordinal, error)
}

// --- in-memory fakes, used by tests and by the "run" CLI smoke path ---

func complementBase(b byte) byte {
	switch b {
	case 'A':
		return 'T'
	case 'C':
		return 'G'
	case 'G':
		return 'C'
	case 'T':
		return 'A'
	default:
		return 'N'
	}
}

// ReverseComplementSeq returns the reverse complement of an upper-case
// ACGT string.
func ReverseComplementSeq(s string) string {
	rc := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		rc[len(s)-1-i] = complementBase(s[i])
	}
	return string(rc)
}

func encodeKmer(s string) uint64 {
	var v uint64
	for i := 0; i < len(s); i++ {
		var code uint64
		switch s[i] {
		case 'A':
			code = 0
		case 'C':
			code = 1
		case 'G':
			code = 2
		case 'T':
			code = 3
		default:
			code = 0
		}
		v = v<<2 | code
	}
	return v
}

type memReadEntry struct {
	readIdx int
	strand  Strand
	ordinal Ordinal
}

type memRead struct {
	seq      [2]string
	markers  [2][]Marker
	chimeric bool
}

// MemStore is a small in-memory ReadStore+MarkerStore built directly
// from raw sequences, playing the role bam.go's/constructcf.go's read and k-mer
// front ends play for the real k-mer and read stores: a swappable
// concrete implementation of the same interfaces the core consumes.
type MemStore struct {
	k         int
	rle       bool
	reads     []memRead
	idBase    [][2]MarkerId
	byId      []memReadEntry
	repeatCnt []uint8 // never filled; GetBaseAndRepeatCount always reports 1
}

// NewMemStore builds oriented markers (every position, k-mer length k)
// for each sequence and its reverse complement, and assigns dense
// marker ids by read, strand-major, matching the "each read appears
// twice" layout the marker graph assumes.
func NewMemStore(k int, sequences []string, rle bool) *MemStore {
	ms := &MemStore{k: k, rle: rle}
	for _, seq := range sequences {
		r := memRead{seq: [2]string{seq, ReverseComplementSeq(seq)}}
		for strand := Strand(0); strand < 2; strand++ {
			s := r.seq[strand]
			n := len(s) - k + 1
			if n < 0 {
				n = 0
			}
			markers := make([]Marker, n)
			for i := 0; i < n; i++ {
				markers[i] = Marker{KmerId: encodeKmer(s[i : i+k]), Position: uint32(i)}
			}
			r.markers[strand] = markers
		}
		ms.reads = append(ms.reads, r)
	}
	ms.idBase = make([][2]MarkerId, len(ms.reads))
	var next MarkerId
	for ri := range ms.reads {
		for strand := Strand(0); strand < 2; strand++ {
			ms.idBase[ri][strand] = next
			for ord := range ms.reads[ri].markers[strand] {
				ms.byId = append(ms.byId, memReadEntry{readIdx: ri, strand: strand, ordinal: Ordinal(ord)})
			}
			next += MarkerId(len(ms.reads[ri].markers[strand]))
		}
	}
	return ms
}

// SetChimeric marks a read as chimeric (excluded from vertex building,
// the vertex builder's first pass).
func (ms *MemStore) SetChimeric(r ReadId) { ms.reads[int(r)].chimeric = true }

func (ms *MemStore) Markers(o OrientedReadId) []Marker {
	return ms.reads[int(o.ReadId)].markers[o.Strand]
}

func (ms *MemStore) MarkerId(o OrientedReadId, ordinal Ordinal) MarkerId {
	return ms.idBase[int(o.ReadId)][o.Strand] + MarkerId(ordinal)
}

func (ms *MemStore) OrdinalOf(m MarkerId) (OrientedReadId, Ordinal) {
	e := ms.byId[int(m)]
	return OrientedReadId{ReadId: ReadId(e.readIdx), Strand: e.strand}, e.ordinal
}

func (ms *MemStore) ReverseComplement(m MarkerId) MarkerId {
	o, ord := ms.OrdinalOf(m)
	rcStrand := o.Strand ^ 1
	n := len(ms.reads[int(o.ReadId)].markers[o.Strand])
	rcOrdinal := Ordinal(n - 1 - int(ord))
	return ms.MarkerId(OrientedReadId{ReadId: o.ReadId, Strand: rcStrand}, rcOrdinal)
}

func (ms *MemStore) NumMarkers() uint64 { return uint64(len(ms.byId)) }

func (ms *MemStore) GetBaseAndRepeatCount(o OrientedReadId, position uint32) (byte, uint8, error) {
	s := ms.reads[int(o.ReadId)].seq[o.Strand]
	if int(position) >= len(s) {
		return 0, 0, errs.Missing("ReadStore", "position out of range")
	}
	return s[position], 1, nil
}

func (ms *MemStore) MarkerCount(o OrientedReadId) int {
	return len(ms.reads[int(o.ReadId)].markers[o.Strand])
}

func (ms *MemStore) IsChimeric(r ReadId) bool { return ms.reads[int(r)].chimeric }

func (ms *MemStore) IsRunLengthEncoded() bool { return ms.rle }

// MemAlignmentStore is a fixed list of precomputed alignments, standing
// in for the compressed alignment-store collaborator.
type MemAlignmentStore struct {
	Alignments []MemAlignment
}

// MemAlignment is one alignment record: two oriented reads and the
// ordinal pairs the (fake) aligner found between them.
type MemAlignment struct {
	Read0, Read1 OrientedReadId
	OrdinalPairs [][2]Ordinal
}

func (s *MemAlignmentStore) OrdinalPairs(id uint64) ([][2]Ordinal, error) {
	if id >= uint64(len(s.Alignments)) {
		return nil, errs.Missing("AlignmentStore", "alignment id out of range")
	}
	return s.Alignments[id].OrdinalPairs, nil
}
