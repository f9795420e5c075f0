package storage_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/minireldb/btreeindex/common"
	"github.com/minireldb/btreeindex/common/testutil"
	"github.com/minireldb/btreeindex/storage"
)

func TestOpenOrCreate_NewFile(t *testing.T) {
	dir := testutil.TempDir(t)
	path := filepath.Join(dir, "rel.0")

	pf, created, err := storage.OpenOrCreate(path, common.PageSize)
	require.NoError(t, err)
	require.True(t, created)
	defer pf.Close()

	require.EqualValues(t, 0, pf.NumPages())
	require.Equal(t, common.PageId(0), pf.GetFirstPageNo())
}

func TestAllocateReadWriteRoundTrip(t *testing.T) {
	dir := testutil.TempDir(t)
	path := filepath.Join(dir, "rel.0")

	pf, _, err := storage.OpenOrCreate(path, common.PageSize)
	require.NoError(t, err)
	defer pf.Close()

	p0, err := pf.AllocatePage()
	require.NoError(t, err)
	require.Equal(t, common.PageId(0), p0)

	p1, err := pf.AllocatePage()
	require.NoError(t, err)
	require.Equal(t, common.PageId(1), p1)

	buf := make([]byte, common.PageSize)
	buf[0] = 0xAB
	buf[common.PageSize-1] = 0xCD
	require.NoError(t, pf.WritePage(p1, buf))

	readBuf := make([]byte, common.PageSize)
	require.NoError(t, pf.ReadPage(p1, readBuf))
	require.Equal(t, buf, readBuf)

	// p0 was never written, should still read as all zero.
	zeroBuf := make([]byte, common.PageSize)
	require.NoError(t, pf.ReadPage(p0, zeroBuf))
	for _, b := range zeroBuf {
		require.Zero(t, b)
	}
}

func TestDisposePageIsReusedByAllocatePage(t *testing.T) {
	dir := testutil.TempDir(t)
	path := filepath.Join(dir, "rel.0")

	pf, _, err := storage.OpenOrCreate(path, common.PageSize)
	require.NoError(t, err)
	defer pf.Close()

	p0, err := pf.AllocatePage()
	require.NoError(t, err)
	p1, err := pf.AllocatePage()
	require.NoError(t, err)

	require.NoError(t, pf.DisposePage(p1))

	p2, err := pf.AllocatePage()
	require.NoError(t, err)
	require.Equal(t, p1, p2, "disposed page number should be reused")
	require.NotEqual(t, p0, p2)
}

func TestReadWriteOutOfRange(t *testing.T) {
	dir := testutil.TempDir(t)
	path := filepath.Join(dir, "rel.0")

	pf, _, err := storage.OpenOrCreate(path, common.PageSize)
	require.NoError(t, err)
	defer pf.Close()

	buf := make([]byte, common.PageSize)
	require.Error(t, pf.ReadPage(5, buf))
	require.Error(t, pf.WritePage(5, buf))
}

func TestReopenExistingFile(t *testing.T) {
	dir := testutil.TempDir(t)
	path := filepath.Join(dir, "rel.0")

	pf, created, err := storage.OpenOrCreate(path, common.PageSize)
	require.NoError(t, err)
	require.True(t, created)
	_, err = pf.AllocatePage()
	require.NoError(t, err)
	_, err = pf.AllocatePage()
	require.NoError(t, err)
	require.NoError(t, pf.Close())

	pf2, created2, err := storage.OpenOrCreate(path, common.PageSize)
	require.NoError(t, err)
	require.False(t, created2)
	defer pf2.Close()
	require.EqualValues(t, 2, pf2.NumPages())
}
