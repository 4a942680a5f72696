// Package corpus assembles reference FASTA sequences into a single
// concatenated byte string plus a sorted table mapping corpus positions back
// to the taxonomic ID and sequence ID of their owning reference. This is
// component A of the MG-index: the FM-index (package fmindex) is built over
// the corpus this package produces.
package corpus

import (
	"sort"
)

// Sentinel is the byte used to separate reference sequences in the
// concatenated corpus. It never appears inside a normalized sequence, whose
// alphabet is {A,C,G,T,N}.
const Sentinel = byte(0)

// Boundary is one entry of the sorted boundary table: it records where one
// reference sequence's bytes (plus its trailing sentinel) end in the
// corpus, and which taxon/sequence owns everything up to that point.
type Boundary struct {
	EndOffset uint64
	TaxID     uint32
	SeqID     uint32
}

// BoundaryTable is a table of Boundary entries sorted by ascending
// EndOffset, with BoundaryTable[len-1].EndOffset equal to the corpus length.
type BoundaryTable []Boundary

// Owner returns the Boundary owning corpus position pos: the lowest-indexed
// entry whose EndOffset is strictly greater than pos. It returns false if
// pos is beyond the end of the corpus.
func (t BoundaryTable) Owner(pos uint64) (Boundary, bool) {
	i := sort.Search(len(t), func(i int) bool { return t[i].EndOffset > pos })
	if i == len(t) {
		return Boundary{}, false
	}
	return t[i], true
}

// SameSequence reports whether the half-open range [start, end) lies
// entirely within the span of the single reference sequence owning start
// (including that sequence's trailing sentinel), i.e. it neither runs past
// the end of the corpus nor straddles into the next sequence's boundary.
func (t BoundaryTable) SameSequence(start, end uint64) bool {
	if end <= start {
		return false
	}
	owner, ok := t.Owner(start)
	if !ok {
		return false
	}
	return end <= owner.EndOffset
}

// Corpus is the concatenated reference byte string plus its boundary table.
// The sentinel appears exactly once per original sequence, directly after
// it (the last sequence included, so the corpus ends with a sentinel), and
// never inside a sequence.
type Corpus struct {
	Bytes      []byte
	Boundaries BoundaryTable
}

// Len returns the total corpus length, including sentinels.
func (c *Corpus) Len() uint64 { return uint64(len(c.Bytes)) }
