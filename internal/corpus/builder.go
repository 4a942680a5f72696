package corpus

import (
	"io"

	"github.com/grailbio/base/log"
	"github.com/grailbio/mgbin/encoding/fasta"
	"github.com/pkg/errors"
)

// BuildOpts controls Builder.AddFASTA's handling of headers with no
// (taxid, seqid) mapping.
type BuildOpts struct {
	// SkipMissing, if true, drops a record whose header has no mapping entry
	// with a warning instead of failing the build (spec §4.A, §7
	// MappingMissing).
	SkipMissing bool
}

// Builder incrementally assembles a Corpus from one or more FASTA streams.
// It is not safe for concurrent use.
type Builder struct {
	opts   BuildOpts
	parser HeaderParser

	buf        []byte
	boundaries BoundaryTable
}

// NewBuilder creates a Builder that resolves headers via parser.
func NewBuilder(parser HeaderParser, opts BuildOpts) *Builder {
	return &Builder{opts: opts, parser: parser}
}

// AddFASTA reads every record from r, normalizes its bases, and appends it
// to the corpus under construction. Empty sequences are dropped (spec
// §4.A). A header with no taxid/seqid mapping is fatal unless
// BuildOpts.SkipMissing is set, in which case the record is dropped with a
// warning.
func (b *Builder) AddFASTA(r io.Reader) error {
	fr := fasta.NewReader(r)
	for {
		rec, err := fr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "InputMalformed")
		}
		if len(rec.Seq) == 0 {
			continue
		}
		taxid, seqid, ok := b.parser.Parse(rec.Header)
		if !ok {
			if b.opts.SkipMissing {
				log.Printf("warning: MappingMissing for header %q, dropping record", rec.Header)
				continue
			}
			return errors.Errorf("MappingMissing: no taxid/seqid mapping for header %q", rec.Header)
		}
		b.buf = append(b.buf, rec.Seq...)
		b.buf = append(b.buf, Sentinel)
		b.boundaries = append(b.boundaries, Boundary{
			EndOffset: uint64(len(b.buf)),
			TaxID:     taxid,
			SeqID:     seqid,
		})
	}
}

// Build finalizes and returns the assembled Corpus. The Builder must not be
// reused afterward.
func (b *Builder) Build() *Corpus {
	return &Corpus{Bytes: b.buf, Boundaries: b.boundaries}
}
