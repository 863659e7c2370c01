package reference

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFASTA = ">chr1 first\nACGTacgt\nAAAA\n>chr2\nGGGCCC\n"

func TestReadFASTA(t *testing.T) {
	g, err := ReadFASTA(strings.NewReader(testFASTA))
	require.NoError(t, err)
	assert.Equal(t, []string{"chr1", "chr2"}, g.Names())

	n, ok := g.Len("chr1")
	require.True(t, ok)
	assert.Equal(t, 12, n)

	s, err := g.Fetch("chr1", 2, 8)
	require.NoError(t, err)
	assert.Equal(t, "GTACGT", s)

	_, err = g.Fetch("chr1", 10, 20)
	assert.Error(t, err)
	_, err = g.Fetch("chrX", 0, 1)
	assert.Error(t, err)
}

func TestOpenZstd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ref.fa.zst")
	fp, err := os.Create(path)
	require.NoError(t, err)
	zw, err := zstd.NewWriter(fp)
	require.NoError(t, err)
	_, err = zw.Write([]byte(testFASTA))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, fp.Close())

	g, err := Open(path)
	require.NoError(t, err)
	s, err := g.Fetch("chr2", 0, 6)
	require.NoError(t, err)
	assert.Equal(t, "GGGCCC", s)
}

func TestReadFASTAEmpty(t *testing.T) {
	_, err := ReadFASTA(strings.NewReader(""))
	assert.Error(t, err)
}
