// Package bin drives the end-to-end binning of a stream of reads against an
// MG-index: seed extraction, candidate bucketing, alignment, and
// in-order result output, run across a worker pool. The worker-pool shape
// — one read per task, a bounded request channel feeding N goroutines, a
// single downstream goroutine draining results — follows
// cmd/bio-fusion/main.go's processFASTQ/processRequests pair in the
// retrieval pack this module is built from; what's added here is the
// reorder buffer needed to write results back in input order even though
// workers finish out of order.
package bin

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/grailbio/mgbin/biosimd"
	"github.com/grailbio/mgbin/internal/align"
	"github.com/grailbio/mgbin/internal/candidate"
	"github.com/grailbio/mgbin/internal/mgindex"
	"github.com/grailbio/mgbin/internal/reads"
	"github.com/grailbio/mgbin/internal/seed"
)

// OutputFormat selects how an assignment line is rendered.
type OutputFormat int

const (
	// Default renders "READ_ID:TAXID=EDIT,...", sorted ascending by taxid.
	Default OutputFormat = iota
	// Long renders "READ_ID:TAXID-SEQID-OFFSET=EDIT,...".
	Long
)

// Config controls a binning run.
type Config struct {
	Threads        int
	Seed           seed.Params
	Candidate      candidate.Params
	Align          align.Params
	MaxCandidates  int
	MaxAssignments int
	ReadOffset     uint64
	OutputFormat   OutputFormat
}

// DefaultConfig returns the spec's default binning parameters.
func DefaultConfig() Config {
	return Config{
		Threads:        4,
		Seed:           seed.DefaultParams(),
		Candidate:      candidate.DefaultParams(),
		Align:          align.DefaultParams(),
		MaxCandidates:  2000,
		MaxAssignments: 64,
		OutputFormat:   Default,
	}
}

// Stats accumulates run-wide counters. It is value-merged the way
// fusion/stats.go's Stats.Merge combines per-worker totals.
type Stats struct {
	ReadsProcessed    uint64
	ReadsAssigned     uint64
	ReadsUnassigned   uint64
	CandidatesBuilt   uint64
	AlignmentsRun     uint64
	CandidatesDropped uint64
}

// Merge adds the field values of two Stats and returns a new Stats.
func (s Stats) Merge(o Stats) Stats {
	s.ReadsProcessed += o.ReadsProcessed
	s.ReadsAssigned += o.ReadsAssigned
	s.ReadsUnassigned += o.ReadsUnassigned
	s.CandidatesBuilt += o.CandidatesBuilt
	s.AlignmentsRun += o.AlignmentsRun
	s.CandidatesDropped += o.CandidatesDropped
	return s
}

// assignment is one taxon a read was aligned to.
type assignment struct {
	taxid, seqid uint32
	refStart     uint64
	edit         int
}

// dedupKey is the per-candidate key processRead uses to suppress repeat
// assignments: taxid alone in default output mode, (taxid, seqid) in long
// mode, per the two formats' differing granularity.
type dedupKey struct {
	taxid, seqid uint32
}

// windowBounds returns the reference window processRead should extract and
// align a read against: centered on refStart with slack editBudget on each
// side, clipped so the start never underflows.
func windowBounds(refStart uint64, readLen, editBudget int) (start, length uint64) {
	slack := uint64(editBudget)
	if refStart < slack {
		start = 0
	} else {
		start = refStart - slack
	}
	end := refStart + uint64(readLen) + slack
	return start, end - start
}

type task struct {
	idx uint64
	id  string
	seq []byte
}

type outputLine struct {
	idx  uint64
	line string
}

// CountCompletedLines counts full newline-terminated lines already present
// in an output stream, for resume support: a prior run's output file tells
// us how many reads were already fully processed.
func CountCompletedLines(r io.Reader) (uint64, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	var n uint64
	for {
		b, err := br.ReadByte()
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return 0, err
		}
		if b == '\n' {
			n++
		}
	}
}

// Run reads every record from rd, bins it against mg using cfg, and writes
// one output line per read (in input order) to w, skipping every read
// whose index is below cfg.ReadOffset. It returns the merged Stats from
// every worker.
func Run(mg *mgindex.Index, rd *reads.Reader, w io.Writer, cfg Config) (Stats, error) {
	if cfg.Threads <= 0 {
		cfg.Threads = DefaultConfig().Threads
	}
	taskCh := make(chan task, cfg.Threads*4)
	outCh := make(chan outputLine, cfg.Threads*4)
	statsCh := make(chan Stats, cfg.Threads)

	var workers sync.WaitGroup
	for i := 0; i < cfg.Threads; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			var st Stats
			for t := range taskCh {
				line := processRead(mg, t.id, t.seq, cfg, &st)
				outCh <- outputLine{idx: t.idx, line: line}
			}
			statsCh <- st
		}()
	}

	writeErrCh := make(chan error, 1)
	go func() {
		writeErrCh <- writeInOrder(w, outCh, cfg.ReadOffset)
	}()

	var idx uint64
	var readErr error
	for {
		rec, err := rd.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			readErr = err
			break
		}
		if idx >= cfg.ReadOffset {
			taskCh <- task{idx: idx, id: rec.ID, seq: rec.Seq}
		}
		idx++
	}
	close(taskCh)
	workers.Wait()
	close(outCh)
	close(statsCh)

	var total Stats
	for st := range statsCh {
		total = total.Merge(st)
	}
	if err := <-writeErrCh; err != nil {
		return total, err
	}
	return total, readErr
}

// writeInOrder buffers results that arrive out of order and flushes them to
// w strictly in ascending read-index order, starting at startIdx.
func writeInOrder(w io.Writer, outCh <-chan outputLine, startIdx uint64) error {
	pending := make(map[uint64]string)
	next := startIdx
	for o := range outCh {
		pending[o.idx] = o.line
		for {
			line, ok := pending[next]
			if !ok {
				break
			}
			if _, err := io.WriteString(w, line+"\n"); err != nil {
				return err
			}
			delete(pending, next)
			next++
		}
	}
	return nil
}

// processRead bins a single read against mg and returns its formatted
// output line.
func processRead(mg *mgindex.Index, id string, seq []byte, cfg Config, st *Stats) string {
	st.ReadsProcessed++

	normalized := make([]byte, len(seq))
	copy(normalized, seq)
	biosimd.CleanASCIISeqInplace(normalized)

	revcomp := make([]byte, len(normalized))
	biosimd.ReverseComp8NoValidate(revcomp, normalized)

	counter := func(bases []byte) int {
		lo, hi, ok := mg.FM.BackwardSearch(bases)
		if !ok {
			return 0
		}
		return hi - lo
	}
	readLen := len(normalized)
	seeds := seed.Extract(normalized, revcomp, cfg.Seed, counter)
	if len(seeds) == 0 {
		st.ReadsUnassigned++
		return formatLine(id, nil, cfg.OutputFormat)
	}

	locate := func(s seed.Seed) []uint64 {
		lo, hi, ok := mg.FM.BackwardSearch(s.Bases)
		if !ok {
			return nil
		}
		hits := make([]uint64, 0, hi-lo)
		for row := lo; row < hi; row++ {
			hits = append(hits, mg.FM.Locate(row))
		}
		return hits
	}
	cands := candidate.Build(seeds, locate, cfg.Candidate, readLen, mg.Corpus.Len(), mg.Corpus.Boundaries)
	st.CandidatesBuilt += uint64(len(cands))
	if len(cands) > cfg.MaxCandidates {
		st.CandidatesDropped += uint64(len(cands) - cfg.MaxCandidates)
		cands = cands[:cfg.MaxCandidates]
	}

	seenKeys := make(map[dedupKey]bool)
	var assignments []assignment
	editBudget := cfg.Align.EditBudget(readLen)
	for _, c := range cands {
		if len(assignments) >= cfg.MaxAssignments {
			break
		}
		if !align.FeasibilityGate(c.SeedHits*cfg.Seed.K, readLen, editBudget) {
			continue
		}
		taxid, ok := mg.TaxIDAt(c.RefStart)
		if !ok {
			continue
		}
		seqid, _ := mg.SeqIDAt(c.RefStart)
		key := dedupKey{taxid: taxid}
		if cfg.OutputFormat == Long {
			// In long mode a read may be reported once per distinct
			// (taxid, seqid) pair rather than collapsing every seqid
			// under one taxon into a single assignment.
			key.seqid = seqid
		}
		if seenKeys[key] {
			continue
		}

		winStart, winLen := windowBounds(c.RefStart, readLen, editBudget)
		window := mg.Extract(winStart, winLen)
		read := normalized
		if c.Strand == seed.Reverse {
			read = revcomp
		}
		st.AlignmentsRun++
		res := align.Align(read, window, cfg.Align)
		if !res.Found {
			continue
		}
		seenKeys[key] = true
		assignments = append(assignments, assignment{
			taxid: taxid, seqid: seqid,
			refStart: winStart + uint64(res.RefStart),
			edit:     res.EditDistance,
		})
	}

	if len(assignments) == 0 {
		st.ReadsUnassigned++
	} else {
		st.ReadsAssigned++
	}
	return formatLine(id, assignments, cfg.OutputFormat)
}

func formatLine(id string, assignments []assignment, format OutputFormat) string {
	sort.Slice(assignments, func(i, j int) bool { return assignments[i].taxid < assignments[j].taxid })
	parts := make([]string, len(assignments))
	for i, a := range assignments {
		switch format {
		case Long:
			parts[i] = fmt.Sprintf("%d-%d-%d=%d", a.taxid, a.seqid, a.refStart, a.edit)
		default:
			parts[i] = fmt.Sprintf("%d=%d", a.taxid, a.edit)
		}
	}
	return id + ":" + strings.Join(parts, ",")
}
