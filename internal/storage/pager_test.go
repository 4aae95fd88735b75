package storage

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() zerolog.Logger { return zerolog.Nop() }

func TestPagerWriteAndReadPage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table")
	p, err := OpenPager(path, testLogger())
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, int64(FirstTreePageOffset), p.Cursor())

	page := make([]byte, PageSize)
	page[1] = byte(NodeTypeLeaf)
	offset, err := p.WriteNewPage(page)
	require.NoError(t, err)
	assert.Equal(t, int64(FirstTreePageOffset), offset)
	assert.Equal(t, int64(FirstTreePageOffset+PageSize), p.Cursor())

	got, err := p.ReadPage(offset)
	require.NoError(t, err)
	assert.Equal(t, page, got)
}

func TestPagerRecomputesCursorOnReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table")
	p, err := OpenPager(path, testLogger())
	require.NoError(t, err)

	page := make([]byte, PageSize)
	_, err = p.WriteNewPage(page)
	require.NoError(t, err)
	_, err = p.WriteNewPage(page)
	require.NoError(t, err)
	require.NoError(t, p.Close())

	reopened, err := OpenPager(path, testLogger())
	require.NoError(t, err)
	defer reopened.Close()

	// Cursor must resume past both previously written pages rather than
	// resetting to FirstTreePageOffset, or the next statement would
	// silently overwrite the pages already written to this file.
	assert.Equal(t, int64(FirstTreePageOffset+2*PageSize), reopened.Cursor())
}

func TestRecomputeCursorEmptyFile(t *testing.T) {
	assert.Equal(t, int64(FirstTreePageOffset), recomputeCursor(0))
	assert.Equal(t, int64(FirstTreePageOffset), recomputeCursor(FirstTreePageOffset))
	assert.Equal(t, int64(FirstTreePageOffset+PageSize), recomputeCursor(FirstTreePageOffset+1))
	assert.Equal(t, int64(FirstTreePageOffset+PageSize), recomputeCursor(FirstTreePageOffset+PageSize))
}

func TestPagerSchemaRegionRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table")
	p, err := OpenPager(path, testLogger())
	require.NoError(t, err)
	defer p.Close()

	s := sampleSchema()
	n := &Node{Type: NodeTypeSchema, Schema: &s}
	encoded, err := EncodeNode(n)
	require.NoError(t, err)

	require.NoError(t, p.WriteSchemaBytes(encoded))

	page, err := p.ReadSchemaPage()
	require.NoError(t, err)
	got, err := DecodeNode(page)
	require.NoError(t, err)
	assert.Equal(t, s.TableName, got.Schema.TableName)
}
