package poa

import (
	"bytes"
	"testing"
)

func TestConsensusOfIdenticalSequences(t *testing.T) {
	e := NewEngine(2, -1, -2)
	g := e.NewGraph([]byte("ACGTACGT"))
	g.AddAlignment([]byte("ACGTACGT"))
	g.AddAlignment([]byte("ACGTACGT"))

	got := g.Consensus()
	if !bytes.Equal(got, []byte("ACGTACGT")) {
		t.Fatalf("Consensus() = %q, want %q", got, "ACGTACGT")
	}
	msa := g.GenerateMSA()
	if len(msa) != 3 {
		t.Fatalf("len(GenerateMSA()) = %d, want 3", len(msa))
	}
	for _, row := range msa {
		if !bytes.Equal(row, []byte("ACGTACGT")) {
			t.Fatalf("row %q, want no gaps for identical sequences", row)
		}
	}
}

func TestConsensusBreaksTowardsMajorityBase(t *testing.T) {
	e := NewEngine(2, -1, -2)
	g := e.NewGraph([]byte("AAAA"))
	g.AddAlignment([]byte("AAAA"))
	g.AddAlignment([]byte("AAGA")) // one mismatch at position 2, in the minority

	got := g.Consensus()
	if !bytes.Equal(got, []byte("AAAA")) {
		t.Fatalf("Consensus() = %q, want %q (majority base wins)", got, "AAAA")
	}
}

func TestAddAlignmentHandlesInsertion(t *testing.T) {
	e := NewEngine(2, -1, -2)
	g := e.NewGraph([]byte("ACGT"))
	g.AddAlignment([]byte("ACCGT")) // one extra C inserted after position 1

	msa := g.GenerateMSA()
	if len(msa) != 2 {
		t.Fatalf("len(GenerateMSA()) = %d, want 2", len(msa))
	}
	// The backbone row must have picked up exactly one gap column to
	// accommodate the insertion, and stripping gaps must recover the
	// original sequences exactly.
	for i, row := range msa {
		want := []byte("ACGT")
		if i == 1 {
			want = []byte("ACCGT")
		}
		if !bytes.Equal(withoutGaps(row), want) {
			t.Fatalf("row %d ungapped = %q, want %q", i, withoutGaps(row), want)
		}
	}
	if len(msa[0]) != len(msa[1]) {
		t.Fatalf("MSA rows have unequal length: %d vs %d", len(msa[0]), len(msa[1]))
	}
}

func TestAddAlignmentHandlesDeletion(t *testing.T) {
	e := NewEngine(2, -1, -2)
	g := e.NewGraph([]byte("ACGT"))
	g.AddAlignment([]byte("AGT")) // C deleted

	msa := g.GenerateMSA()
	if !bytes.Equal(withoutGaps(msa[1]), []byte("AGT")) {
		t.Fatalf("row 1 ungapped = %q, want AGT", withoutGaps(msa[1]))
	}
	if len(msa[0]) != len(msa[1]) {
		t.Fatalf("MSA rows have unequal length after a deletion")
	}
}

// TestAddAlignmentHandlesDivergentIndelsAcrossThreeReads folds in a row
// with an insertion the backbone lacks, then a row with none at all,
// exercising the case where a later alignment's edit script does not
// touch a column an earlier alignment already inserted. GenerateMSA and
// Consensus must not panic, every column must stay the same length, and
// every row must round-trip to its original ungapped sequence.
func TestAddAlignmentHandlesDivergentIndelsAcrossThreeReads(t *testing.T) {
	e := NewEngine(2, -1, -2)
	g := e.NewGraph([]byte("ACGT"))
	g.AddAlignment([]byte("ACCGT")) // extra C inserted after position 1
	g.AddAlignment([]byte("ACGT"))  // no insertion, back against the plain backbone
	g.AddAlignment([]byte("AGT"))   // C deleted, also no insertion

	msa := g.GenerateMSA()
	if len(msa) != 4 {
		t.Fatalf("len(GenerateMSA()) = %d, want 4", len(msa))
	}
	want := [][]byte{[]byte("ACGT"), []byte("ACCGT"), []byte("ACGT"), []byte("AGT")}
	for i, row := range msa {
		if !bytes.Equal(withoutGaps(row), want[i]) {
			t.Fatalf("row %d ungapped = %q, want %q", i, withoutGaps(row), want[i])
		}
	}
	for i := 1; i < len(msa); i++ {
		if len(msa[i]) != len(msa[0]) {
			t.Fatalf("row %d length = %d, want %d (all rows must share column count)", i, len(msa[i]), len(msa[0]))
		}
	}

	// Must not panic. The insertion column has exactly one non-gap
	// vote (row 1's inserted C), and Consensus only votes among a
	// column's non-gap entries, so that lone C carries the column.
	cons := g.Consensus()
	if !bytes.Equal(withoutGaps(cons), []byte("ACCGT")) {
		t.Fatalf("Consensus() ungapped = %q, want ACCGT", withoutGaps(cons))
	}
}
