// Package candidate buckets seed hits into alignment candidates: positions
// in the reference corpus where enough of a read's seeds agree on a common
// offset to be worth a full alignment pass.
package candidate

import (
	"math"
	"sort"

	"github.com/grailbio/mgbin/internal/corpus"
	"github.com/grailbio/mgbin/internal/seed"
)

// Params controls candidate admission.
type Params struct {
	// MinSeedFraction is the minimum fraction of a read's total seed count
	// that must hit a common (ref_start, strand) bucket for it to become a
	// candidate. The resulting threshold is never less than 1 seed.
	MinSeedFraction float64
}

// DefaultParams returns the spec's default candidate threshold.
func DefaultParams() Params {
	return Params{MinSeedFraction: 0.015}
}

// Candidate is a reference offset and strand that enough seeds agree on to
// warrant alignment.
type Candidate struct {
	RefStart uint64
	Strand   seed.Strand
	SeedHits int
}

// Locator resolves the set of corpus positions a seed's bases occur at.
type Locator func(s seed.Seed) []uint64

type bucketKey struct {
	refStart uint64
	strand   seed.Strand
}

// Build buckets every hit of every seed by the alignment offset it implies
// (corpus position minus the seed's position within its read, saturating at
// 0 if that would underflow), drops any bucket whose implied read placement
// would run past the end of the corpus or straddle into a neighboring
// reference sequence's span, and returns the buckets that clear the
// minimum-seed-fraction threshold, sorted by descending seed-hit count and
// then ascending reference start. readLen is the length of the read the
// seeds were drawn from; corpusLen and boundaries describe the reference
// corpus the seeds were located against.
func Build(seeds []seed.Seed, locate Locator, params Params, readLen int, corpusLen uint64, boundaries corpus.BoundaryTable) []Candidate {
	counts := make(map[bucketKey]int)
	for _, sd := range seeds {
		for _, corpusPos := range locate(sd) {
			var refStart uint64
			if corpusPos < uint64(sd.Pos) {
				// The implied reference start would fall before the
				// beginning of the corpus: saturate at 0 rather than
				// discarding the hit outright.
				refStart = 0
			} else {
				refStart = corpusPos - uint64(sd.Pos)
			}
			refEnd := refStart + uint64(readLen)
			if refEnd > corpusLen {
				continue
			}
			if !boundaries.SameSequence(refStart, refEnd) {
				continue
			}
			k := bucketKey{refStart: refStart, strand: sd.Strand}
			counts[k]++
		}
	}

	minSeeds := int(math.Floor(params.MinSeedFraction * float64(len(seeds))))
	if minSeeds < 1 {
		minSeeds = 1
	}

	out := make([]Candidate, 0, len(counts))
	for k, c := range counts {
		if c < minSeeds {
			continue
		}
		out = append(out, Candidate{RefStart: k.refStart, Strand: k.strand, SeedHits: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SeedHits != out[j].SeedHits {
			return out[i].SeedHits > out[j].SeedHits
		}
		return out[i].RefStart < out[j].RefStart
	})
	return out
}
