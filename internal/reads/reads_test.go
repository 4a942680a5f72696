package reads_test

import (
	"context"
	"io"
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/grailbio/mgbin/internal/reads"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadFASTA(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reads.fa")
	require.NoError(t, ioutil.WriteFile(path, []byte(">read1\nACGTACGT\n>read2\nTTTT\n"), 0644))

	ctx := context.Background()
	r, err := reads.Open(ctx, path, reads.FASTA)
	require.NoError(t, err)
	defer r.Close(ctx)

	rec, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "read1", rec.ID)
	assert.Equal(t, []byte("ACGTACGT"), rec.Seq)

	rec, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "read2", rec.ID)

	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
}

func TestReadFASTQ(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reads.fq")
	content := "@read1\nACGTACGT\n+\nIIIIIIII\n@read2\nTTTT\n+\nIIII\n"
	require.NoError(t, ioutil.WriteFile(path, []byte(content), 0644))

	ctx := context.Background()
	r, err := reads.Open(ctx, path, reads.FASTQ)
	require.NoError(t, err)
	defer r.Close(ctx)

	rec, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "read1", rec.ID)
	assert.Equal(t, []byte("ACGTACGT"), rec.Seq)

	rec, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "read2", rec.ID)
}
