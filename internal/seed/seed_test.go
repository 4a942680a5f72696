package seed_test

import (
	"testing"

	"github.com/grailbio/mgbin/internal/seed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constantCounter(n int) seed.HitCounter {
	return func([]byte) int { return n }
}

func TestExtractIncludesFinalSeed(t *testing.T) {
	read := []byte("ACGTACGTACGTACGTACGTACGT") // length 24
	params := seed.Params{K: 10, Interval: 5, TuneMaxHits: 200, MaxHits: 2000}
	seeds := seed.Extract(read, read, params, constantCounter(1))

	require.NotEmpty(t, seeds)
	var forwardPositions []int
	for _, s := range seeds {
		if s.Strand == seed.Forward {
			forwardPositions = append(forwardPositions, s.Pos)
		}
	}
	assert.Equal(t, len(read)-params.K, forwardPositions[len(forwardPositions)-1])
}

func TestExtractSkipsSeedsWithN(t *testing.T) {
	read := []byte("ACGTNACGTACGT")
	params := seed.Params{K: 5, Interval: 5, TuneMaxHits: 200, MaxHits: 2000}
	seeds := seed.Extract(read, read, params, constantCounter(1))
	for _, s := range seeds {
		for _, b := range s.Bases {
			assert.NotEqual(t, byte('N'), b)
		}
	}
}

func TestExtractDiscardsOverMaxHits(t *testing.T) {
	read := []byte("ACGTACGTACGTACGTACGT")
	params := seed.Params{K: 8, Interval: 4, TuneMaxHits: 10, MaxHits: 20}
	seeds := seed.Extract(read, read, params, constantCounter(21))
	assert.Empty(t, seeds)
}

func TestExtractWidensIntervalWhenRepetitive(t *testing.T) {
	read := make([]byte, 60)
	for i := range read {
		read[i] = "ACGT"[i%4]
	}
	params := seed.Params{K: 8, Interval: 4, TuneMaxHits: 1, MaxHits: 1000}
	seeds := seed.Extract(read, read, params, constantCounter(5))

	var forwardPositions []int
	for _, s := range seeds {
		if s.Strand == seed.Forward {
			forwardPositions = append(forwardPositions, s.Pos)
		}
	}
	require.Greater(t, len(forwardPositions), 1)
	gap := forwardPositions[1] - forwardPositions[0]
	assert.Equal(t, 2*params.Interval, gap)
}

func TestExtractTooShortRead(t *testing.T) {
	read := []byte("ACG")
	params := seed.DefaultParams()
	seeds := seed.Extract(read, read, params, constantCounter(1))
	assert.Empty(t, seeds)
}
