// Package reads provides a single streaming interface over FASTA and FASTQ
// query-read files, including transparent decompression, grounded on
// cmd/bio-fusion/main.go's readFASTQ in the retrieval pack this module is
// built from: an input file is opened with github.com/grailbio/base/file
// (so local paths and remote object-store paths work identically) and
// wrapped with github.com/grailbio/base/compress's format-sniffing reader.
package reads

import (
	"context"
	"io"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/file"
	"github.com/grailbio/mgbin/encoding/fasta"
	"github.com/grailbio/mgbin/encoding/fastq"
	"github.com/pkg/errors"
)

// Format selects which of the two supported read formats a Reader parses.
type Format int

const (
	FASTA Format = iota
	FASTQ
)

// Record is one read, regardless of its source format.
type Record struct {
	ID  string
	Seq []byte
}

// Reader streams Records from a single opened file.
type Reader struct {
	file file.File
	next func() (Record, error)
}

// Open opens path (transparently decompressed if it carries a recognized
// compression suffix) and returns a Reader that parses it as format.
func Open(ctx context.Context, path string, format Format) (*Reader, error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	var r io.Reader = f.Reader(ctx)
	if u := compress.NewReaderPath(r, f.Name()); u != nil {
		r = u
	}

	reader := &Reader{file: f}
	switch format {
	case FASTA:
		fr := fasta.NewReader(r)
		reader.next = func() (Record, error) {
			rec, err := fr.Next()
			if err != nil {
				return Record{}, err
			}
			return Record{ID: rec.Header, Seq: rec.Seq}, nil
		}
	case FASTQ:
		sc := fastq.NewScanner(r, fastq.ID|fastq.Seq)
		reader.next = func() (Record, error) {
			var rd fastq.Read
			if !sc.Scan(&rd) {
				if err := sc.Err(); err != nil {
					return Record{}, err
				}
				return Record{}, io.EOF
			}
			id := rd.ID
			if len(id) > 0 && id[0] == '@' {
				id = id[1:]
			}
			return Record{ID: id, Seq: []byte(rd.Seq)}, nil
		}
	default:
		return nil, errors.Errorf("reads: unknown format %d", format)
	}
	return reader, nil
}

// Next returns the next Record, or io.EOF once the stream is exhausted.
func (r *Reader) Next() (Record, error) {
	return r.next()
}

// Close closes the underlying file.
func (r *Reader) Close(ctx context.Context) error {
	return r.file.Close(ctx)
}
