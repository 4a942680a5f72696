// Package fmindex builds and queries a Burrows-Wheeler / FM-index over a
// byte corpus whose alphabet is {0x00, 'A', 'C', 'G', 'N', 'T'} (0x00 being
// corpus.Sentinel). It supports exact-match backward search and position
// recovery via a sampled suffix array and a sampled occurrence table, the
// standard space/time trade-off described by Ferragina & Manzini and used
// by short-read aligners such as BWA and Bowtie.
//
// The LF-mapping technique below follows the same backward-search
// recurrence as a from-scratch Burrows-Wheeler implementation found
// alongside the rest of this retrieval pack, generalized here to an
// uncompressed (non run-length) occurrence table sampled at a configurable
// rate, which is the trade-off a genome-scale index needs.
package fmindex

import (
	"bytes"
	"sort"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// alphabet lists every symbol that may appear in a normalized corpus, in
// ascending byte order. C-array and occurrence-table indices follow this
// order.
var alphabet = []byte{0x00, 'A', 'C', 'G', 'N', 'T'}

func symbolIndex(c byte) int {
	switch c {
	case 0x00:
		return 0
	case 'A':
		return 1
	case 'C':
		return 2
	case 'G':
		return 3
	case 'N':
		return 4
	case 'T':
		return 5
	default:
		return -1
	}
}

// Params controls the FM-index's space/time trade-off.
type Params struct {
	// SampleSA is the suffix-array sampling rate: every corpus position that
	// is a multiple of SampleSA is stored directly, so Locate needs at most
	// SampleSA-1 LF-mapping steps. Default 32.
	SampleSA int
	// SampleOcc is the occurrence-table checkpoint interval: every
	// SampleOcc-th row stores a cumulative symbol count, and Occ scans at
	// most SampleOcc-1 BWT bytes to complete a query. Default 64.
	SampleOcc int
}

// DefaultParams returns the spec's default sampling rates.
func DefaultParams() Params {
	return Params{SampleSA: 32, SampleOcc: 64}
}

// Index is a Burrows-Wheeler FM-index over a corpus byte string.
type Index struct {
	params Params
	n      int
	bwt    []byte

	// cArray[s] is the number of corpus bytes strictly less than symbol s.
	cArray []uint64

	// sampledSA maps a BWT row index to its suffix-array value, present
	// only for rows whose suffix-array value is a multiple of
	// params.SampleSA and for rows whose BWT byte is the sentinel.
	sampledSA map[int]uint64

	// occCheckpoints[s][k] is the number of occurrences of symbol s in
	// bwt[:k*params.SampleOcc).
	occCheckpoints [][]uint64
}

// Build constructs an Index over corpus, which must end with a single
// corpus.Sentinel byte and contain no other occurrence of it anywhere
// except as a per-reference terminator. corpus is not retained.
func Build(corpusBytes []byte, params Params) (*Index, error) {
	n := len(corpusBytes)
	if n == 0 {
		return nil, errors.New("fmindex: empty corpus")
	}
	if params.SampleSA <= 0 {
		params.SampleSA = DefaultParams().SampleSA
	}
	if params.SampleOcc <= 0 {
		params.SampleOcc = DefaultParams().SampleOcc
	}

	sa := make([]int, n)
	for i := range sa {
		sa[i] = i
	}
	sort.Slice(sa, func(i, j int) bool {
		return bytes.Compare(corpusBytes[sa[i]:], corpusBytes[sa[j]:]) < 0
	})

	bwt := mmapBytes(n)
	sampledSA := make(map[int]uint64, n/params.SampleSA+1)
	for i, pos := range sa {
		if pos == 0 {
			bwt[i] = corpusBytes[n-1]
		} else {
			bwt[i] = corpusBytes[pos-1]
		}
		// Rows whose BWT byte is the sentinel are always sampled too: the
		// LF mapping cannot tell the per-reference sentinels apart, so
		// Locate must never step through such a row.
		if pos%params.SampleSA == 0 || bwt[i] == 0x00 {
			sampledSA[i] = uint64(pos)
		}
	}

	idx := &Index{params: params, n: n, bwt: bwt, sampledSA: sampledSA}
	idx.buildCArray(corpusBytes)
	idx.buildOccCheckpoints()
	return idx, nil
}

func (idx *Index) buildCArray(corpusBytes []byte) {
	var counts [6]uint64
	for _, b := range corpusBytes {
		si := symbolIndex(b)
		if si < 0 {
			continue
		}
		counts[si]++
	}
	idx.cArray = make([]uint64, len(alphabet))
	var cum uint64
	for i := range counts {
		idx.cArray[i] = cum
		cum += counts[i]
	}
}

func (idx *Index) buildOccCheckpoints() {
	nCheckpoints := idx.n/idx.params.SampleOcc + 2
	idx.occCheckpoints = make([][]uint64, len(alphabet))
	for s := range idx.occCheckpoints {
		idx.occCheckpoints[s] = make([]uint64, nCheckpoints)
	}
	var running [6]uint64
	checkpoint := 0
	for i := 0; i <= idx.n; i++ {
		if i%idx.params.SampleOcc == 0 {
			for s := range idx.occCheckpoints {
				idx.occCheckpoints[s][checkpoint] = running[s]
			}
			checkpoint++
		}
		if i < idx.n {
			si := symbolIndex(idx.bwt[i])
			if si >= 0 {
				running[si]++
			}
		}
	}
}

// Occ returns the number of occurrences of symbol c in bwt[:row], i.e. the
// standard FM-index rank query.
func (idx *Index) Occ(c byte, row int) uint64 {
	si := symbolIndex(c)
	if si < 0 || row <= 0 {
		return 0
	}
	if row > idx.n {
		row = idx.n
	}
	checkpoint := row / idx.params.SampleOcc
	count := idx.occCheckpoints[si][checkpoint]
	for i := checkpoint * idx.params.SampleOcc; i < row; i++ {
		if idx.bwt[i] == c {
			count++
		}
	}
	return count
}

// BackwardSearch returns the half-open BWT row range [lo, hi) matching
// pattern exactly. ok is false if pattern does not occur in the corpus.
func (idx *Index) BackwardSearch(pattern []byte) (lo, hi int, ok bool) {
	if len(pattern) == 0 {
		return 0, idx.n, true
	}
	loU, hiU := uint64(0), uint64(idx.n)
	for i := len(pattern) - 1; i >= 0; i-- {
		c := pattern[i]
		si := symbolIndex(c)
		if si < 0 {
			return 0, 0, false
		}
		loU = idx.cArray[si] + idx.Occ(c, int(loU))
		hiU = idx.cArray[si] + idx.Occ(c, int(hiU))
		if loU >= hiU {
			return 0, 0, false
		}
	}
	return int(loU), int(hiU), true
}

// Locate returns the corpus position corresponding to BWT row.
func (idx *Index) Locate(row int) uint64 {
	steps := uint64(0)
	for {
		if pos, ok := idx.sampledSA[row]; ok {
			return pos + steps
		}
		row = idx.lf(row)
		steps++
	}
}

// lf performs one LF-mapping step: given row i in the BWT, returns the row
// whose suffix-array value is one less than row i's. This holds for every
// row whose BWT byte is not the sentinel; Build samples all sentinel rows,
// so Locate only calls lf on rows for which it holds.
func (idx *Index) lf(row int) int {
	c := idx.bwt[row]
	si := symbolIndex(c)
	return int(idx.cArray[si] + idx.Occ(c, row))
}

// Len returns the corpus length the index was built over.
func (idx *Index) Len() int { return idx.n }

// mmapBytes backs a large flat byte array with anonymous mmap'd memory
// hinted with MADV_HUGEPAGE, the same technique fusion/kmer_index.go uses
// for its kmer hash table in the retrieval pack this module is built from:
// the BWT array is scanned at high frequency during backward search, and
// huge pages reduce the resulting TLB pressure. Falls back to a regular
// heap allocation if the mmap call fails.
func mmapBytes(n int) []byte {
	if n == 0 {
		return nil
	}
	b, err := unix.Mmap(-1, 0, n, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return make([]byte, n)
	}
	_ = unix.Madvise(b, unix.MADV_HUGEPAGE)
	return b
}

// Snapshot is the gob-serializable form of an Index, used by package
// mgindex to persist a built index to disk.
type Snapshot struct {
	Params         Params
	N              int
	BWT            []byte
	CArray         []uint64
	SampledSA      map[int]uint64
	OccCheckpoints [][]uint64
}

// Snapshot captures idx's state for serialization.
func (idx *Index) Snapshot() Snapshot {
	return Snapshot{
		Params:         idx.params,
		N:              idx.n,
		BWT:            idx.bwt,
		CArray:         idx.cArray,
		SampledSA:      idx.sampledSA,
		OccCheckpoints: idx.occCheckpoints,
	}
}

// FromSnapshot rebuilds an Index previously captured with Snapshot, without
// re-running suffix-array construction.
func FromSnapshot(s Snapshot) *Index {
	return &Index{
		params:         s.Params,
		n:              s.N,
		bwt:            s.BWT,
		cArray:         s.CArray,
		sampledSA:      s.SampledSA,
		occCheckpoints: s.OccCheckpoints,
	}
}
