package candidate_test

import (
	"testing"

	"github.com/grailbio/mgbin/internal/candidate"
	"github.com/grailbio/mgbin/internal/corpus"
	"github.com/grailbio/mgbin/internal/seed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// a single boundary spanning the whole test corpus: every offset used by
// the tests below belongs to one reference sequence, so it never trips the
// straddling/overflow check on its own.
var testBoundaries = corpus.BoundaryTable{{EndOffset: 1 << 20, TaxID: 1, SeqID: 1}}

const testReadLen = 10

func TestBuildBucketsByImpliedOffset(t *testing.T) {
	seeds := []seed.Seed{
		{Pos: 0, Strand: seed.Forward},
		{Pos: 10, Strand: seed.Forward},
		{Pos: 20, Strand: seed.Forward},
		{Pos: 0, Strand: seed.Forward}, // repeated seed, same implied offset
	}
	locate := func(s seed.Seed) []uint64 {
		switch s.Pos {
		case 0:
			return []uint64{1000}
		case 10:
			return []uint64{1010}
		case 20:
			return []uint64{1020}
		}
		return nil
	}
	cands := candidate.Build(seeds, locate, candidate.Params{MinSeedFraction: 0.1}, testReadLen, 1<<20, testBoundaries)
	require.NotEmpty(t, cands)
	assert.Equal(t, uint64(1000), cands[0].RefStart)
	assert.Equal(t, 4, cands[0].SeedHits)
}

func TestBuildAppliesMinSeedThreshold(t *testing.T) {
	seeds := make([]seed.Seed, 100)
	for i := range seeds {
		seeds[i] = seed.Seed{Pos: i}
	}
	calls := 0
	locate := func(s seed.Seed) []uint64 {
		calls++
		if calls <= 1 {
			return []uint64{uint64(s.Pos) + 5000}
		}
		return nil
	}
	cands := candidate.Build(seeds, locate, candidate.Params{MinSeedFraction: 0.5}, testReadLen, 1<<20, testBoundaries)
	assert.Empty(t, cands, "a single hit shouldn't clear a 50-seed threshold")
}

func TestBuildSortsDescendingHitsAscendingOffset(t *testing.T) {
	seeds := []seed.Seed{{Pos: 0}, {Pos: 0}, {Pos: 0}}
	locate := func(s seed.Seed) []uint64 {
		return []uint64{100, 200}
	}
	cands := candidate.Build(seeds, locate, candidate.Params{MinSeedFraction: 0.1}, testReadLen, 1<<20, testBoundaries)
	require.Len(t, cands, 2)
	assert.Equal(t, cands[0].SeedHits, cands[1].SeedHits)
	assert.Equal(t, uint64(100), cands[0].RefStart)
	assert.Equal(t, uint64(200), cands[1].RefStart)
}

func TestBuildMinSeedsNeverZero(t *testing.T) {
	seeds := []seed.Seed{{Pos: 0}}
	locate := func(s seed.Seed) []uint64 { return []uint64{0} }
	cands := candidate.Build(seeds, locate, candidate.Params{MinSeedFraction: 0.015}, testReadLen, 1<<20, testBoundaries)
	require.Len(t, cands, 1)
}

func TestBuildSaturatesRefStartAtZero(t *testing.T) {
	// The seed's own Pos (5) is larger than its one hit's corpus position
	// (2): the implied ref_start would underflow below 0, so it must
	// saturate at 0 rather than discarding the hit outright.
	seeds := []seed.Seed{{Pos: 5, Strand: seed.Forward}}
	locate := func(s seed.Seed) []uint64 { return []uint64{2} }
	cands := candidate.Build(seeds, locate, candidate.Params{MinSeedFraction: 0.1}, testReadLen, 1<<20, testBoundaries)
	require.Len(t, cands, 1)
	assert.Equal(t, uint64(0), cands[0].RefStart)
}

func TestBuildDropsCandidateStraddlingSentinel(t *testing.T) {
	boundaries := corpus.BoundaryTable{
		{EndOffset: 100, TaxID: 1, SeqID: 1},
		{EndOffset: 200, TaxID: 2, SeqID: 2},
	}
	// implied ref_start=95 with a 10-base read spans [95,105), crossing the
	// boundary at 100 into the second reference sequence.
	seeds := []seed.Seed{{Pos: 0, Strand: seed.Forward}}
	locate := func(s seed.Seed) []uint64 { return []uint64{95} }
	cands := candidate.Build(seeds, locate, candidate.Params{MinSeedFraction: 0.1}, 10, 200, boundaries)
	assert.Empty(t, cands)
}

func TestBuildDropsCandidateOverflowingCorpus(t *testing.T) {
	seeds := []seed.Seed{{Pos: 0, Strand: seed.Forward}}
	locate := func(s seed.Seed) []uint64 { return []uint64{195} }
	cands := candidate.Build(seeds, locate, candidate.Params{MinSeedFraction: 0.1}, 10, 200, testBoundaries)
	assert.Empty(t, cands)
}
