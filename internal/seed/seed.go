// Package seed extracts fixed-length seeds from a read and its reverse
// complement at a spaced interval, the way fusion/kmer.go's kmerizer walks
// a read in the retrieval pack this module is built from, generalized here
// to fixed-length exact seeds with an adaptive interval instead of a dense
// rolling k-mer stream.
package seed

// Strand identifies which orientation of a read a seed was drawn from.
type Strand int

const (
	Forward Strand = iota
	Reverse
)

func (s Strand) String() string {
	if s == Reverse {
		return "reverse"
	}
	return "forward"
}

// Params controls seed geometry.
type Params struct {
	// K is the seed length in bases.
	K int
	// Interval is the starting spacing between consecutive seed start
	// positions along a strand.
	Interval int
	// TuneMaxHits is the hit-count threshold above which a seed is kept but
	// the interval is doubled for subsequent seeds on the same strand,
	// since a highly repetitive seed suggests sparser sampling still
	// carries enough signal.
	TuneMaxHits int
	// MaxHits is the hit-count threshold above which a seed is discarded
	// entirely as uninformative.
	MaxHits int
}

// DefaultParams returns the spec's default seed geometry.
func DefaultParams() Params {
	return Params{K: 18, Interval: 15, TuneMaxHits: 200, MaxHits: 2000}
}

// Seed is one extracted seed: a K-base window at Pos on Strand.
type Seed struct {
	Pos    int
	Strand Strand
	Bases  []byte
}

// HitCounter reports how many times bases occurs in the reference corpus.
// Extract calls it once per candidate seed to decide whether to keep it,
// widen the interval, or drop it as too repetitive.
type HitCounter func(bases []byte) int

// Extract walks read (forward strand) and revcomp (its reverse complement)
// independently, producing seeds at a spaced interval that starts at
// params.Interval and doubles whenever a kept seed's hit count exceeds
// params.TuneMaxHits (a seed over params.MaxHits is dropped and does not
// widen the interval), subject to always emitting one final seed flush
// against the end of each strand and skipping any window containing 'N'.
func Extract(read, revcomp []byte, params Params, counter HitCounter) []Seed {
	seeds := extractStrand(read, Forward, params, counter)
	seeds = append(seeds, extractStrand(revcomp, Reverse, params, counter)...)
	return seeds
}

func extractStrand(seq []byte, strand Strand, params Params, counter HitCounter) []Seed {
	n := len(seq)
	if n < params.K {
		return nil
	}
	lastPos := n - params.K
	interval := params.Interval
	if interval <= 0 {
		interval = 1
	}

	var out []Seed
	pos := 0
	for {
		atEnd := pos >= lastPos
		if atEnd {
			pos = lastPos
		}
		bases := seq[pos : pos+params.K]
		if !containsN(bases) {
			hits := counter(bases)
			if hits <= params.MaxHits {
				out = append(out, Seed{Pos: pos, Strand: strand, Bases: append([]byte(nil), bases...)})
				if hits > params.TuneMaxHits {
					interval *= 2
				}
			}
		}
		if atEnd {
			break
		}
		pos += interval
		if pos > lastPos {
			pos = lastPos
		}
	}
	return out
}

func containsN(b []byte) bool {
	for _, c := range b {
		if c == 'N' {
			return true
		}
	}
	return false
}
