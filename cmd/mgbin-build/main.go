// Command mgbin-build assembles one or more reference FASTA files into a
// single MG-index: a concatenated corpus, its taxon/sequence boundary
// table, and the FM-index built over it. Its flag handling and grail.Init
// bootstrapping follow cmd/bio-fusion/main.go in the retrieval pack this
// module is built from.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/mgbin/internal/corpus"
	"github.com/grailbio/mgbin/internal/fmindex"
	"github.com/grailbio/mgbin/internal/mgindex"
)

func usage() {
	fmt.Fprintln(os.Stderr, `
mgbin-build assembles a reference FASTA collection into an MG-index used by
mgbin-bin to classify reads.

Example:

  mgbin-build -fasta refs1.fa,refs2.fa.gz -output refs.mgindex

If reference headers are not of the form "<seqid>-<taxid>", supply an
external mapping file instead:

  mgbin-build -fasta refs.fa -mapping refs.mapping.tsv -output refs.mgindex

Usage:
  mgbin-build [flags]
`)
	os.Exit(2)
}

func main() {
	flag.Usage = usage

	fastaPaths := flag.String("fasta", "", "Comma-separated list of reference FASTA files (optionally gzip/zstd compressed).")
	mappingPath := flag.String("mapping", "", "Path to an external header->(taxid,seqid) mapping file. If empty, headers are parsed as \"<seqid>-<taxid>\".")
	outputPath := flag.String("output", "", "Path to write the MG-index to.")
	skipMissing := flag.Bool("skip-missing", false, "Drop reference records with no taxid/seqid mapping instead of failing the build.")
	sampleSA := flag.Int("sample-sa", fmindex.DefaultParams().SampleSA, "Suffix-array sampling rate.")
	sampleOcc := flag.Int("sample-occ", fmindex.DefaultParams().SampleOcc, "Occurrence-table checkpoint interval.")
	flag.Parse()

	if *fastaPaths == "" || *outputPath == "" {
		log.Error.Printf("both -fasta and -output are required")
		usage()
	}

	cleanup := grail.Init()
	defer cleanup()
	ctx := vcontext.Background()

	var parser corpus.HeaderParser = corpus.SplitHeaderParser{}
	if *mappingPath != "" {
		mf, err := file.Open(ctx, *mappingPath)
		if err != nil {
			log.Panicf("open %s: %v", *mappingPath, err)
		}
		p, err := corpus.LoadMapping(mf.Reader(ctx))
		if err != nil {
			log.Panicf("loading mapping %s: %v", *mappingPath, err)
		}
		if err := mf.Close(ctx); err != nil {
			log.Panicf("close %s: %v", *mappingPath, err)
		}
		parser = p
	}

	b := corpus.NewBuilder(parser, corpus.BuildOpts{SkipMissing: *skipMissing})
	for _, path := range strings.Split(*fastaPaths, ",") {
		if path == "" {
			continue
		}
		f, err := file.Open(ctx, path)
		if err != nil {
			log.Panicf("open %s: %v", path, err)
		}
		var r io.Reader = f.Reader(ctx)
		if u := compress.NewReaderPath(r, f.Name()); u != nil {
			r = u
		}
		if err := b.AddFASTA(r); err != nil {
			log.Panicf("reading %s: %v", path, err)
		}
		if err := f.Close(ctx); err != nil {
			log.Panicf("close %s: %v", path, err)
		}
		log.Printf("ingested %s", path)
	}

	c := b.Build()
	log.Printf("corpus: %d bytes, %d reference sequences", c.Len(), len(c.Boundaries))

	idx, err := mgindex.Build(c, fmindex.Params{SampleSA: *sampleSA, SampleOcc: *sampleOcc})
	if err != nil {
		log.Panicf("building FM-index: %v", err)
	}
	if err := mgindex.Write(ctx, *outputPath, idx); err != nil {
		log.Panicf("writing %s: %v", *outputPath, err)
	}
	log.Printf("wrote MG-index to %s", *outputPath)
}
