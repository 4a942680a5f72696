// Package fasta contains code for parsing FASTA files. See
// http://www.htslib.org/doc/faidx.html. Briefly, FASTA files consist of a
// number of named sequences that may be interrupted by newlines. For example:
//
// >chr7
// ACGTAC
// GAGGAC
// GCG
// >chr8
// ACGT
//
// Note: Sequence names are defined to be the stretch of characters excluding
// spaces immediately after '>'. Any text appear after a space are ignored.
// For example, '>chr1 A viral sequence' becomes 'chr1'.
package fasta

import (
	"bufio"
	"io"
	"strings"

	"github.com/grailbio/mgbin/biosimd"
	"github.com/pkg/errors"
)

const (
	mib            = 1024 * 1024
	bufferInitSize = 300 * mib
)

// Record is one named sequence read from a FASTA stream.
type Record struct {
	// Header is the sequence name: the header line's text after the leading
	// '>' up to the first space.
	Header string
	// Seq is the concatenated sequence bases, normalized: lower-case letters
	// upper-cased, anything outside {A,C,G,T,N} replaced with 'N'.
	Seq []byte
}

// Reader streams Records out of a FASTA file, one sequence at a time. Unlike
// a map-based reader, it never holds more than one sequence in memory at
// once, which matters because reference corpora can be many gigabytes.
//
// Reader is not safe for concurrent use.
type Reader struct {
	s        *bufio.Scanner
	started  bool
	nextHdr  string
	haveNext bool
	err      error
}

// NewReader creates a Reader over r.
func NewReader(r io.Reader) *Reader {
	s := bufio.NewScanner(r)
	s.Buffer(nil, bufferInitSize)
	return &Reader{s: s}
}

// Next reads and returns the next record. It returns io.EOF once the stream
// is exhausted.
func (f *Reader) Next() (Record, error) {
	if f.err != nil {
		return Record{}, f.err
	}
	var header string
	if f.haveNext {
		header = f.nextHdr
		f.haveNext = false
	} else {
		for {
			if !f.s.Scan() {
				if err := f.s.Err(); err != nil {
					f.err = errors.Wrap(err, "couldn't read FASTA data")
				} else {
					f.err = io.EOF
				}
				return Record{}, f.err
			}
			line := f.s.Text()
			if len(line) == 0 {
				continue
			}
			if line[0] != '>' {
				f.err = errors.Errorf("malformed FASTA file: expected header, got %q", line)
				return Record{}, f.err
			}
			header = strings.Split(line[1:], " ")[0]
			break
		}
	}

	var seq strings.Builder
	for f.s.Scan() {
		line := f.s.Text()
		if len(line) == 0 {
			continue
		}
		if line[0] == '>' {
			f.nextHdr = strings.Split(line[1:], " ")[0]
			f.haveNext = true
			break
		}
		seq.WriteString(line)
	}
	if err := f.s.Err(); err != nil {
		f.err = errors.Wrap(err, "couldn't read FASTA data")
		return Record{}, f.err
	}
	rec := Record{Header: header, Seq: []byte(seq.String())}
	biosimd.CleanASCIISeqInplace(rec.Seq)
	return rec, nil
}
