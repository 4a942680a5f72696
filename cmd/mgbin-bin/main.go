// Command mgbin-bin classifies a stream of reads against a prebuilt
// MG-index, assigning each read to zero or more taxa. Its flag handling
// and grail.Init bootstrapping follow cmd/bio-fusion/main.go in the
// retrieval pack this module is built from.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/mgbin/internal/align"
	"github.com/grailbio/mgbin/internal/bin"
	"github.com/grailbio/mgbin/internal/candidate"
	"github.com/grailbio/mgbin/internal/mgindex"
	"github.com/grailbio/mgbin/internal/reads"
	"github.com/grailbio/mgbin/internal/seed"
	"github.com/klauspost/compress/gzip"
)

func usage() {
	fmt.Fprintln(os.Stderr, `
mgbin-bin classifies reads against a prebuilt MG-index, one output line per
read.

Example:

  mgbin-bin -index refs.mgindex -fastq sample.fastq.gz -results sample.bins

Usage:
  mgbin-bin [flags]
`)
	os.Exit(2)
}

func main() {
	flag.Usage = usage

	indexPath := flag.String("index", "", "Path to an MG-index built by mgbin-build.")
	fastaPath := flag.String("fasta", "", "Input reads, FASTA format. Mutually exclusive with -fastq.")
	fastqPath := flag.String("fastq", "", "Input reads, FASTQ format. Mutually exclusive with -fasta.")
	resultsPath := flag.String("results", "", "Path to write per-read assignment lines to.")
	describe := flag.Bool("describe", false, "Print summary information about the index and exit.")

	defaults := bin.DefaultConfig()
	threads := flag.Int("threads", defaults.Threads, "Number of worker goroutines.")
	seedSize := flag.Int("seed-size", defaults.Seed.K, "Seed length in bases.")
	seedInterval := flag.Int("seed-interval", defaults.Seed.Interval, "Starting spacing between seed start positions.")
	tuneMaxHits := flag.Int("tune-max-hits", defaults.Seed.TuneMaxHits, "Hit count above which the seed interval is doubled.")
	maxHits := flag.Int("max-hits", defaults.Seed.MaxHits, "Hit count above which a seed is discarded.")
	minSeed := flag.Float64("min-seed", defaults.Candidate.MinSeedFraction, "Minimum fraction of a read's seeds that must agree on a candidate offset.")
	maxCandidates := flag.Int("max-candidates", defaults.MaxCandidates, "Maximum number of candidates considered per read.")
	maxAssignments := flag.Int("max-assignments", defaults.MaxAssignments, "Maximum number of taxa a single read may be assigned to.")
	editRate := flag.Float64("edit-rate", defaults.Align.EditRate, "Maximum fraction of a read's length spent on mismatches/indels.")
	readOffset := flag.Uint64("read-offset", 0, "Skip reads before this index (0-based). Combined with any already-written results when resuming.")
	outputFormat := flag.String("output-format", "default", `Output line format: "default" or "long".`)
	forceOverwrite := flag.Bool("force-overwrite", false, "Overwrite -results instead of resuming from it.")
	verbose := flag.Bool("v", false, "Enable verbose logging.")
	flag.Parse()

	if *describe {
		describeIndex(*indexPath)
		return
	}
	if *indexPath == "" || *resultsPath == "" {
		log.Error.Printf("-index and -results are required")
		usage()
	}
	if (*fastaPath == "") == (*fastqPath == "") {
		log.Error.Printf("exactly one of -fasta or -fastq is required")
		usage()
	}
	var format reads.Format
	var readsPath string
	if *fastaPath != "" {
		format, readsPath = reads.FASTA, *fastaPath
	} else {
		format, readsPath = reads.FASTQ, *fastqPath
	}
	var outFormat bin.OutputFormat
	switch *outputFormat {
	case "default":
		outFormat = bin.Default
	case "long":
		outFormat = bin.Long
	default:
		log.Error.Printf("unknown -output-format %q", *outputFormat)
		usage()
	}

	// ParameterInvalid is documented as fatal at startup, before any index
	// or read I/O begins: a bad -seed-size or -edit-rate should never turn
	// into a run that silently produces empty hit lists for every read.
	if *seedSize <= 0 {
		log.Error.Printf("-seed-size must be > 0, got %d", *seedSize)
		usage()
	}
	if *editRate < 0 || *editRate > 1 {
		log.Error.Printf("-edit-rate must be within [0,1], got %v", *editRate)
		usage()
	}
	if *minSeed < 0 || *minSeed > 1 {
		log.Error.Printf("-min-seed must be within [0,1], got %v", *minSeed)
		usage()
	}
	if *maxCandidates <= 0 {
		log.Error.Printf("-max-candidates must be > 0, got %d", *maxCandidates)
		usage()
	}
	if *maxAssignments <= 0 {
		log.Error.Printf("-max-assignments must be > 0, got %d", *maxAssignments)
		usage()
	}
	if *seedInterval <= 0 {
		log.Error.Printf("-seed-interval must be > 0, got %d", *seedInterval)
		usage()
	}

	cleanup := grail.Init()
	defer cleanup()
	ctx := vcontext.Background()
	if *verbose {
		log.Printf("verbose logging enabled")
	}

	mg, err := mgindex.Open(ctx, *indexPath)
	if err != nil {
		log.Panicf("opening index %s: %v", *indexPath, err)
	}
	log.Printf("loaded index: %d corpus bytes, %d reference sequences", mg.Corpus.Len(), len(mg.Corpus.Boundaries))

	rd, err := reads.Open(ctx, readsPath, format)
	if err != nil {
		log.Panicf("opening reads %s: %v", readsPath, err)
	}
	defer rd.Close(ctx)

	completed, out := prepareOutput(*resultsPath, *forceOverwrite)
	defer out.Close()

	offset := *readOffset
	if completed > offset {
		offset = completed
	}
	if offset > 0 {
		log.Printf("resuming at read %d", offset)
	}

	cfg := bin.Config{
		Threads:        *threads,
		Seed:           seed.Params{K: *seedSize, Interval: *seedInterval, TuneMaxHits: *tuneMaxHits, MaxHits: *maxHits},
		Candidate:      candidate.Params{MinSeedFraction: *minSeed},
		Align:          align.Params{EditRate: *editRate},
		MaxCandidates:  *maxCandidates,
		MaxAssignments: *maxAssignments,
		ReadOffset:     offset,
		OutputFormat:   outFormat,
	}

	stats, err := bin.Run(mg, rd, out, cfg)
	if err != nil {
		log.Panicf("binning %s: %v", readsPath, err)
	}
	log.Printf("processed=%d assigned=%d unassigned=%d candidates=%d alignments=%d",
		stats.ReadsProcessed, stats.ReadsAssigned, stats.ReadsUnassigned, stats.CandidatesBuilt, stats.AlignmentsRun)
}

// prepareOutput opens path for appending results, returning the number of
// already-complete lines found (0 if force is set or the file is new). A
// ".gz" path is read back through a gzip reader to count completed lines
// and, on resume, written as an additional gzip member appended to the
// file: concatenated gzip streams decode as a single logical stream, the
// same assumption grailbio/base/compress.NewReaderPath relies on elsewhere
// in this module, so a resumed run never needs to rewrite the whole file.
func prepareOutput(path string, force bool) (completed uint64, w io.WriteCloser) {
	gzipped := strings.HasSuffix(path, ".gz")
	if !force {
		if existing, err := os.Open(path); err == nil {
			var r io.Reader = existing
			if gzipped {
				gzr, err := gzip.NewReader(existing)
				if err != nil {
					log.Panicf("reading %s: %v", path, err)
				}
				r = gzr
			}
			n, err := bin.CountCompletedLines(r)
			if err != nil {
				log.Panicf("counting completed lines in %s: %v", path, err)
			}
			existing.Close()
			completed = n
		}
	}
	flags := os.O_CREATE | os.O_WRONLY
	if force {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_APPEND
	}
	out, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		log.Panicf("opening %s: %v", path, err)
	}
	if gzipped {
		return completed, gzipWriteCloser{gz: gzip.NewWriter(out), f: out}
	}
	return completed, out
}

// gzipWriteCloser closes its gzip.Writer (flushing the trailer for the
// current member) before closing the underlying file.
type gzipWriteCloser struct {
	gz *gzip.Writer
	f  *os.File
}

func (g gzipWriteCloser) Write(p []byte) (int, error) { return g.gz.Write(p) }

func (g gzipWriteCloser) Close() error {
	if err := g.gz.Close(); err != nil {
		g.f.Close()
		return err
	}
	return g.f.Close()
}

func describeIndex(indexPath string) {
	if indexPath == "" {
		log.Error.Printf("-index is required with -describe")
		usage()
	}
	ctx := vcontext.Background()
	mg, err := mgindex.Open(ctx, indexPath)
	if err != nil {
		log.Panicf("opening index %s: %v", indexPath, err)
	}
	fmt.Printf("corpus_bytes=%d\n", mg.Corpus.Len())
	fmt.Printf("reference_sequences=%d\n", len(mg.Corpus.Boundaries))
	taxa := make(map[uint32]bool)
	for _, b := range mg.Corpus.Boundaries {
		taxa[b.TaxID] = true
	}
	fmt.Printf("distinct_taxa=%d\n", len(taxa))
}
