// Package align performs a gapped alignment of a read against a candidate
// reference window — local in the reference dimension (the window may
// carry unaligned flanking bases) but semi-global in the read dimension
// (the whole read must be accounted for, as edits if necessary) — and
// reports the edit distance implied by its optimal traceback. The
// dynamic-programming matrix and traceback-operation bookkeeping are
// adapted from util/distance.go's Levenshtein implementation in the
// retrieval pack this module is built from, generalized from a
// fixed-penalty edit-distance recurrence to a Smith-Waterman-style scoring
// pass (match +1, mismatch/gap -1) whose traceback path is then read off as
// an edit count rather than taken as the score itself.
package align

import (
	"math"
)

// Params controls alignment acceptance.
type Params struct {
	// EditRate is the maximum fraction of the read length that may be
	// spent on mismatches and indels for an alignment to be accepted.
	EditRate float64
}

// DefaultParams returns the spec's default edit-rate tolerance.
func DefaultParams() Params {
	return Params{EditRate: 0.06}
}

// EditBudget returns the maximum number of edits tolerated for a read of
// the given length under params.
func (p Params) EditBudget(readLen int) int {
	return int(math.Floor(p.EditRate * float64(readLen)))
}

// FeasibilityGate reports whether a candidate with estimatedScore (an
// upper bound on the alignment score a read could achieve, such as a
// seed-hit-derived estimate) is even worth a full alignment pass, given
// that a Smith-Waterman score of s over a read of length readLen implies at
// best (readLen-s)/2 edits: s must be at least readLen-2*editBudget.
func FeasibilityGate(estimatedScore, readLen, editBudget int) bool {
	return estimatedScore >= readLen-2*editBudget
}

const (
	matchScore    = 1
	mismatchScore = -1
	gapScore      = -1
)

// matrix is a row-major DP score matrix, following the layout convention of
// the edit-distance matrix this package is adapted from.
type matrix struct {
	nRow, nCol int
	data       []int
}

func newMatrix(n, m int) matrix {
	return matrix{nRow: n, nCol: m, data: make([]int, n*m)}
}

func (m matrix) at(i, j int) int { return m.data[i*m.nCol+j] }
func (m matrix) set(i, j, v int) { m.data[i*m.nCol+j] = v }

// Result is the outcome of aligning a read against a reference window.
type Result struct {
	// Found is true if an alignment clearing the edit-rate threshold was
	// found.
	Found bool
	// EditDistance is the number of mismatches and indels on the optimal
	// traceback path.
	EditDistance int
	// RefStart and RefEnd bound the aligned region of ref, in ref
	// coordinates (RefEnd exclusive).
	RefStart, RefEnd int
}

// Align computes the optimal alignment of read against ref using
// Smith-Waterman-style scoring (match +1, mismatch/gap-open/gap-extend -1),
// then derives an edit distance from its traceback path — charging any
// read bases traceback leaves unconsumed as edits, so the result reflects
// the edit distance between the full read and some window of ref, never
// just a partial match. It accepts the alignment only if that edit
// distance is within params's edit-rate budget for read's length.
func Align(read, ref []byte, params Params) Result {
	editBudget := params.EditBudget(len(read))
	if len(read)-len(ref) > editBudget {
		// ref is shorter than read by more than the edit budget: the read
		// bases that cannot be placed against ref alone exceed the budget,
		// so no alignment can qualify and the DP is skipped. A ref longer
		// than read is expected (flanking slack) and costs nothing.
		return Result{Found: false}
	}

	nRow, nCol := len(read)+1, len(ref)+1
	score := newMatrix(nRow, nCol)
	bestScore, bestI, bestJ := 0, 0, 0

	for i := 1; i < nRow; i++ {
		for j := 1; j < nCol; j++ {
			diag := score.at(i-1, j-1)
			if read[i-1] == ref[j-1] {
				diag += matchScore
			} else {
				diag += mismatchScore
			}
			up := score.at(i-1, j) + gapScore
			left := score.at(i, j-1) + gapScore

			v := 0
			if diag > v {
				v = diag
			}
			if up > v {
				v = up
			}
			if left > v {
				v = left
			}
			score.set(i, j, v)
			if v > bestScore {
				bestScore, bestI, bestJ = v, i, j
			}
		}
	}

	if bestScore == 0 {
		return Result{Found: false}
	}

	edits, refStart := traceback(score, read, ref, bestI, bestJ)
	if edits > editBudget {
		return Result{Found: false}
	}
	return Result{Found: true, EditDistance: edits, RefStart: refStart, RefEnd: bestJ}
}

// traceback walks the score matrix back from (i, j) until it reaches a
// zero-score cell, counting mismatches and indels along the way. The walk
// is local in the reference dimension (ref may have unaligned flanking
// bases either side, which is expected since the caller's window carries
// slack beyond the read's length) but semi-global in the read dimension:
// any read prefix left unconsumed when the zero-score cell is reached has
// not actually been aligned against ref, and charging it as free — as a
// plain local alignment would — lets an unrelated read with only a short
// matching suffix/prefix come back with a deceptively low edit distance.
// So once the local walk stops, the remaining i unaligned read bases are
// each charged as an edit, as if they were leading/trailing insertions.
func traceback(score matrix, read, ref []byte, i, j int) (edits, refStart int) {
	for i > 0 && j > 0 && score.at(i, j) > 0 {
		diag := score.at(i-1, j-1)
		up := score.at(i-1, j)
		left := score.at(i, j-1)

		match := read[i-1] == ref[j-1]
		diagScore := diag + matchScore
		if !match {
			diagScore = diag + mismatchScore
		}

		switch {
		case score.at(i, j) == diagScore:
			if !match {
				edits++
			}
			i--
			j--
		case score.at(i, j) == up+gapScore:
			edits++
			i--
		case score.at(i, j) == left+gapScore:
			edits++
			j--
		default:
			// Defensive: matrix is internally consistent by construction,
			// so this is unreachable.
			i--
			j--
		}
	}
	if i > 0 {
		edits += i
	}
	return edits, j
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
