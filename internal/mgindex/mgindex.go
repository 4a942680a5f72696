// Package mgindex bundles a corpus, its FM-index, and the boundary table
// that maps corpus positions back to taxonomic IDs into the single index
// artifact ("MG-index") that a binning run loads. It also implements that
// artifact's on-disk format, a recordio file in the style of
// cmd/bio-fusion's candidate-dump writer/reader in the retrieval pack this
// module is built from.
package mgindex

import (
	"bytes"
	"context"
	"encoding/gob"

	farm "github.com/dgryski/go-farm"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/recordio"
	"github.com/grailbio/base/recordio/recordiozstd"
	"github.com/grailbio/mgbin/internal/corpus"
	"github.com/grailbio/mgbin/internal/fmindex"
	"github.com/pkg/errors"
)

const (
	fileVersionHeader = "mgindexversion"
	fileVersion       = "MGINDEX_V1"
)

// Index is an in-memory MG-index: a reference corpus plus the FM-index and
// boundary table built over it.
type Index struct {
	Corpus *corpus.Corpus
	FM     *fmindex.Index
}

// Build assembles an Index from a Corpus, constructing its FM-index with
// params.
func Build(c *corpus.Corpus, params fmindex.Params) (*Index, error) {
	fm, err := fmindex.Build(c.Bytes, params)
	if err != nil {
		return nil, errors.Wrap(err, "building FM-index")
	}
	return &Index{Corpus: c, FM: fm}, nil
}

// TaxIDAt returns the taxonomic ID owning corpus position pos.
func (idx *Index) TaxIDAt(pos uint64) (uint32, bool) {
	b, ok := idx.Corpus.Boundaries.Owner(pos)
	if !ok {
		return 0, false
	}
	return b.TaxID, true
}

// SeqIDAt returns the sequence ID owning corpus position pos.
func (idx *Index) SeqIDAt(pos uint64) (uint32, bool) {
	b, ok := idx.Corpus.Boundaries.Owner(pos)
	if !ok {
		return 0, false
	}
	return b.SeqID, true
}

// Extract returns the corpus bytes in [pos, pos+length), clipped to the
// corpus bounds.
func (idx *Index) Extract(pos, length uint64) []byte {
	n := idx.Corpus.Len()
	if pos >= n {
		return nil
	}
	end := pos + length
	if end > n {
		end = n
	}
	return idx.Corpus.Bytes[pos:end]
}

// fileHeader is stored in the recordio trailer: everything needed to
// rebuild the FM-index and boundary table without re-scanning the corpus.
type fileHeader struct {
	Boundaries corpus.BoundaryTable
	FMSnapshot fmindex.Snapshot
	// CorpusChecksum is a FarmHash fingerprint of the corpus bytes, checked
	// on Open so a truncated or otherwise corrupted recordio payload is
	// caught before it can produce silently wrong taxid/seqid lookups.
	CorpusChecksum uint64
}

func checksumCorpus(b []byte) uint64 {
	return farm.Hash64(b)
}

func encodeGOB(v interface{}) []byte {
	var b bytes.Buffer
	if err := gob.NewEncoder(&b).Encode(v); err != nil {
		panic(errors.Wrap(err, "mgindex: gob encode"))
	}
	return b.Bytes()
}

func decodeGOB(b []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(b)).Decode(v)
}

// Write serializes idx to path as a single recordio file: the corpus bytes
// are stored as a sequence of append()ed chunks (so a multi-gigabyte
// reference never needs to be gob-encoded whole), and the boundary table
// plus FM-index snapshot are stored in the trailer.
func Write(ctx context.Context, path string, idx *Index) error {
	recordiozstd.Init()
	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.Wrapf(err, "creating %s", path)
	}
	w := recordio.NewWriter(out.Writer(ctx), recordio.WriterOpts{
		Transformers: []string{recordiozstd.Name},
	})
	w.AddHeader(fileVersionHeader, fileVersion)
	w.AddHeader(recordio.KeyTrailer, true)

	const chunkSize = 16 << 20
	corpusBytes := idx.Corpus.Bytes
	for off := 0; off < len(corpusBytes); off += chunkSize {
		end := off + chunkSize
		if end > len(corpusBytes) {
			end = len(corpusBytes)
		}
		w.Append(corpusBytes[off:end])
	}

	h := fileHeader{
		Boundaries:     idx.Corpus.Boundaries,
		FMSnapshot:     idx.FM.Snapshot(),
		CorpusChecksum: checksumCorpus(corpusBytes),
	}
	w.SetTrailer(encodeGOB(h))
	if err := w.Finish(); err != nil {
		return errors.Wrap(err, "finishing recordio writer")
	}
	return out.Close(ctx)
}

// Open reads an Index previously written with Write.
func Open(ctx context.Context, path string) (*Index, error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	recordiozstd.Init()
	r := recordio.NewScanner(in.Reader(ctx), recordio.ScannerOpts{})

	versionFound := false
	for _, kv := range r.Header() {
		if kv.Key == fileVersionHeader {
			if kv.Value.(string) != fileVersion {
				return nil, errors.Errorf("mgindex: version mismatch, got %v, want %v", kv.Value, fileVersion)
			}
			versionFound = true
			break
		}
	}
	if !versionFound {
		return nil, errors.New("mgindex: not an MG-index file (missing version header)")
	}

	var corpusBuf []byte
	for r.Scan() {
		corpusBuf = append(corpusBuf, r.Get().([]byte)...)
	}
	if err := r.Err(); err != nil {
		return nil, errors.Wrap(err, "scanning corpus chunks")
	}

	var h fileHeader
	if err := decodeGOB(r.Trailer(), &h); err != nil {
		return nil, errors.Wrap(err, "decoding index trailer")
	}
	if err := in.Close(ctx); err != nil {
		return nil, errors.Wrap(err, "closing index file")
	}
	if got := checksumCorpus(corpusBuf); got != h.CorpusChecksum {
		return nil, errors.Errorf("mgindex: corpus checksum mismatch (got %x, want %x), file may be truncated or corrupted", got, h.CorpusChecksum)
	}

	c := &corpus.Corpus{Bytes: corpusBuf, Boundaries: h.Boundaries}
	return &Index{Corpus: c, FM: fmindex.FromSnapshot(h.FMSnapshot)}, nil
}
