// Package bigarray implements named, memory-mapped scratch arrays used
// by the vertex builder for buffers too large to comfortably hold as
// plain Go slices: a flat fixed-width array (the disjoint-set buffer)
// and a two-array ragged container (per-vertex marker lists), both
// bulk-allocated up front. Names beginning "tmp-" are scratch and are
// removed on Close.
package bigarray

import (
	"os"
	"path/filepath"
	"reflect"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/mudesheng/markergraph/internal/errs"
)

// Uint64Array is a memory-mapped, fixed-size array of uint64 words backing
// one named persisted table (e.g. "MarkerGraphVertexTable").
type Uint64Array struct {
	Name string
	dir  string
	f    *os.File
	data []byte
	n    uint64
}

func pageAlign(nbytes int64) int64 {
	const pageSize = 4096
	if nbytes == 0 {
		return pageSize
	}
	return (nbytes + pageSize - 1) / pageSize * pageSize
}

// Create allocates a new named array of n uint64 words in dir, bulk
// up-front, before any element is read or written.
func Create(dir, name string, n uint64) (*Uint64Array, error) {
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, errs.IO(name, err)
	}
	size := pageAlign(int64(n) * 8)
	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, errs.IO(name, err)
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, errs.IO(name, err)
	}
	return &Uint64Array{Name: name, dir: dir, f: f, data: data, n: n}, nil
}

func (a *Uint64Array) Len() uint64 { return a.n }

// Slice exposes the mapped region as a []uint64 for direct atomic access
// (used by the disjoint-set engine). The backing memory is page-aligned,
// so element access is 8-byte aligned as required by sync/atomic.
func (a *Uint64Array) Slice() []uint64 {
	var out []uint64
	hdr := (*reflect.SliceHeader)(unsafe.Pointer(&out))
	hdr.Data = uintptr(unsafe.Pointer(&a.data[0]))
	hdr.Len = int(a.n)
	hdr.Cap = int(a.n)
	return out
}

func (a *Uint64Array) Get(i uint64) uint64 { return a.Slice()[i] }

func (a *Uint64Array) Set(i uint64, v uint64) { a.Slice()[i] = v }

// Close unmaps and closes the backing file. Scratch ("tmp-"-prefixed)
// arrays are removed from disk, matching the on-disk naming
// convention for temporary tables.
func (a *Uint64Array) Close() error {
	if a.data != nil {
		unix.Munmap(a.data)
		a.data = nil
	}
	if a.f != nil {
		a.f.Close()
	}
	if len(a.Name) >= 4 && a.Name[:4] == "tmp-" {
		os.Remove(filepath.Join(a.dir, a.Name))
	}
	return nil
}

// RaggedArray is a two-array container: Offsets[0..n] delimit variable
// length rows stored contiguously in Data, filled by a count-then-store
// pass, the shared shape of every ragged output container this package backs.
type RaggedArray struct {
	Offsets *Uint64Array
	Data    *Uint64Array
}

// BuildFromCounts allocates Offsets (len(counts)+1) and Data
// (sum(counts)) for a ragged array with the given per-row counts, and
// fills Offsets with the prefix sum. The caller then fills Data row by
// row using Row(i).
func BuildFromCounts(dir, name string, counts []uint64) (*RaggedArray, error) {
	offsets, err := Create(dir, name+"-offsets", uint64(len(counts))+1)
	if err != nil {
		return nil, err
	}
	var total uint64
	off := offsets.Slice()
	for i, c := range counts {
		off[i] = total
		total += c
	}
	off[len(counts)] = total
	data, err := Create(dir, name+"-data", total)
	if err != nil {
		offsets.Close()
		return nil, err
	}
	return &RaggedArray{Offsets: offsets, Data: data}, nil
}

func (r *RaggedArray) NumRows() uint64 { return r.Offsets.Len() - 1 }

// Row returns the slice of Data words belonging to row i.
func (r *RaggedArray) Row(i uint64) []uint64 {
	off := r.Offsets.Slice()
	begin, end := off[i], off[i+1]
	return r.Data.Slice()[begin:end]
}

func (r *RaggedArray) Close() error {
	r.Offsets.Close()
	r.Data.Close()
	return nil
}
