package corpus

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/base/tsv"
	"github.com/pkg/errors"
)

// HeaderParser resolves a FASTA header line to the (taxid, seqid) pair that
// owns it, per spec §4.A mode (i) or (ii). ok is false when no mapping is
// found for header.
type HeaderParser interface {
	Parse(header string) (taxid, seqid uint32, ok bool)
}

// SplitHeaderParser implements mode (i): split the header on '-', parsing
// the trailing integer as taxid and the leading integer as seqid. E.g.
// "7-9606" -> seqid=7, taxid=9606.
type SplitHeaderParser struct{}

// Parse implements HeaderParser.
func (SplitHeaderParser) Parse(header string) (taxid, seqid uint32, ok bool) {
	i := strings.LastIndex(header, "-")
	if i <= 0 || i == len(header)-1 {
		return 0, 0, false
	}
	seqidU, err1 := strconv.ParseUint(header[:i], 10, 32)
	taxidU, err2 := strconv.ParseUint(header[i+1:], 10, 32)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return uint32(taxidU), uint32(seqidU), true
}

type mappingEntry struct {
	taxid, seqid uint32
}

// MappingHeaderParser implements mode (ii): an external mapping file with
// columns header, taxid, seqid, delimiter auto-detected among
// comma/tab/whitespace.
type MappingHeaderParser struct {
	entries map[string]mappingEntry
}

// Parse implements HeaderParser.
func (m *MappingHeaderParser) Parse(header string) (taxid, seqid uint32, ok bool) {
	e, found := m.entries[header]
	if !found {
		return 0, 0, false
	}
	return e.taxid, e.seqid, true
}

func detectDelimiter(line string) byte {
	switch {
	case strings.ContainsRune(line, '\t'):
		return '\t'
	case strings.ContainsRune(line, ','):
		return ','
	default:
		return 0 // whitespace
	}
}

// LoadMapping reads an external header->(taxid,seqid) mapping file. The
// first line is a header row naming the three columns; the delimiter is
// auto-detected from that line among comma, tab, and whitespace.
func LoadMapping(r io.Reader) (*MappingHeaderParser, error) {
	br := bufio.NewReaderSize(r, 1<<20)
	headerLine, err := br.ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "reading mapping file header")
	}
	headerLine = strings.TrimRight(headerLine, "\r\n")
	if headerLine == "" {
		return nil, errors.Errorf("mapping file is empty")
	}
	delim := detectDelimiter(headerLine)
	m := &MappingHeaderParser{entries: map[string]mappingEntry{}}
	rest := io.MultiReader(strings.NewReader(headerLine+"\n"), br)

	if delim == '\t' {
		// Grounded on github.com/grailbio/base/tsv's row-struct reading style,
		// as used by fusion/gene_db.go's ReadFusionEvents in the teacher repo.
		rr := tsv.NewReader(rest)
		rr.HasHeaderRow = true
		row := struct {
			Header string `tsv:"header"`
			Taxid  uint32 `tsv:"taxid"`
			Seqid  uint32 `tsv:"seqid"`
		}{}
		for {
			if err := rr.Read(&row); err != nil {
				if err == io.EOF {
					break
				}
				return nil, errors.Wrap(err, "reading mapping file")
			}
			m.entries[row.Header] = mappingEntry{taxid: row.Taxid, seqid: row.Seqid}
		}
		return m, nil
	}

	// Comma or whitespace delimited: base/tsv only supports a single fixed
	// delimiter, so the auto-detected non-tab cases are parsed by hand.
	sc := bufio.NewScanner(rest)
	sc.Buffer(nil, 64<<20)
	sc.Scan() // header row, already consulted for delimiter detection.
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var fields []string
		if delim == ',' {
			fields = strings.Split(line, ",")
		} else {
			fields = strings.Fields(line)
		}
		if len(fields) < 3 {
			return nil, errors.Errorf("malformed mapping row: %q", line)
		}
		taxid, err1 := strconv.ParseUint(strings.TrimSpace(fields[1]), 10, 32)
		seqid, err2 := strconv.ParseUint(strings.TrimSpace(fields[2]), 10, 32)
		if err1 != nil || err2 != nil {
			return nil, errors.Errorf("malformed mapping row: %q", line)
		}
		m.entries[strings.TrimSpace(fields[0])] = mappingEntry{taxid: uint32(taxid), seqid: uint32(seqid)}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "reading mapping file")
	}
	return m, nil
}
