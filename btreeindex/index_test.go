package btreeindex

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/minireldb/btreeindex/buffer"
	"github.com/minireldb/btreeindex/common"
	"github.com/minireldb/btreeindex/common/testutil"
)

func newIntIndex(t *testing.T, numBufs int) (*genericIndex[int32], *buffer.BufMgr) {
	dir := testutil.TempDir(t)
	bm, err := buffer.New(numBufs, common.PageSize, nil)
	require.NoError(t, err)

	_, idx, err := OpenIndex(dir, "relA", 4, common.Int, bm, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })

	gi, ok := idx.(*genericIndex[int32])
	require.True(t, ok)
	return gi, bm
}

func scanAll(t *testing.T, idx Index, lowVal, highVal any) []common.RecordId {
	t.Helper()
	err := idx.StartScan(lowVal, common.GTE, highVal, common.LTE)
	if err == common.ErrNoSuchKeyFound {
		return nil
	}
	require.NoError(t, err)

	var got []common.RecordId
	for {
		rid, err := idx.ScanNext()
		if err == common.ErrIndexScanCompleted {
			break
		}
		require.NoError(t, err)
		got = append(got, rid)
	}
	return got
}

func TestInsertAndScanBasic(t *testing.T) {
	idx, _ := newIntIndex(t, 64)

	keys := []int32{50, 10, 30, 70, 20, 60, 40, 90, 80, 0}
	for i, k := range keys {
		require.NoError(t, idx.InsertEntry(k, common.RecordId{PageNo: 1, SlotNo: uint32(i)}))
	}

	got := scanAll(t, idx, int32(0), int32(90))
	require.Len(t, got, len(keys))
	// scan must return entries in ascending key order, which for this
	// relation is the slot order 0..len(keys)-1 sorted by key value.
	wantOrder := []int32{0, 10, 20, 30, 40, 50, 60, 70, 80, 90}
	for i, want := range wantOrder {
		idxInKeys := indexOf(keys, want)
		require.Equal(t, uint32(idxInKeys), got[i].SlotNo)
	}
}

func indexOf(keys []int32, v int32) int {
	for i, k := range keys {
		if k == v {
			return i
		}
	}
	return -1
}

func TestScanBoundedRange(t *testing.T) {
	idx, _ := newIntIndex(t, 64)
	for i := int32(0); i < 20; i++ {
		require.NoError(t, idx.InsertEntry(i, common.RecordId{PageNo: 1, SlotNo: uint32(i)}))
	}

	got := scanAll(t, idx, int32(5), int32(10))
	require.Len(t, got, 6) // 5,6,7,8,9,10

	err := idx.StartScan(int32(5), common.GT, int32(10), common.LT)
	require.NoError(t, err)
	var count int
	for {
		_, err := idx.ScanNext()
		if err == common.ErrIndexScanCompleted {
			break
		}
		require.NoError(t, err)
		count++
	}
	require.Equal(t, 4, count) // 6,7,8,9
}

func TestScanBadOpcodesAndRange(t *testing.T) {
	idx, _ := newIntIndex(t, 64)
	require.NoError(t, idx.InsertEntry(int32(1), common.RecordId{PageNo: 1, SlotNo: 0}))

	err := idx.StartScan(int32(1), common.LT, int32(5), common.LTE)
	require.ErrorIs(t, err, common.ErrBadOpcodes)

	err = idx.StartScan(int32(1), common.GTE, int32(5), common.GT)
	require.ErrorIs(t, err, common.ErrBadOpcodes)

	err = idx.StartScan(int32(10), common.GTE, int32(1), common.LTE)
	require.ErrorIs(t, err, common.ErrBadScanRange)
}

func TestScanNoSuchKeyFound(t *testing.T) {
	idx, _ := newIntIndex(t, 64)
	require.NoError(t, idx.InsertEntry(int32(1), common.RecordId{PageNo: 1, SlotNo: 0}))
	require.NoError(t, idx.InsertEntry(int32(2), common.RecordId{PageNo: 1, SlotNo: 1}))

	err := idx.StartScan(int32(100), common.GTE, int32(200), common.LTE)
	require.ErrorIs(t, err, common.ErrNoSuchKeyFound)
}

func TestScanNotInitializedAndCompleted(t *testing.T) {
	idx, _ := newIntIndex(t, 64)
	require.NoError(t, idx.InsertEntry(int32(1), common.RecordId{PageNo: 1, SlotNo: 0}))

	_, err := idx.ScanNext()
	require.ErrorIs(t, err, common.ErrScanNotInitialized)

	require.NoError(t, idx.StartScan(int32(0), common.GTE, int32(5), common.LTE))
	_, err = idx.ScanNext()
	require.NoError(t, err)
	_, err = idx.ScanNext()
	require.ErrorIs(t, err, common.ErrIndexScanCompleted)

	require.NoError(t, idx.EndScan())
}

func TestInsertTriggersLeafSplits(t *testing.T) {
	idx, _ := newIntIndex(t, 64)
	n := idx.leafCapacity*2 + 5

	for i := 0; i < n; i++ {
		require.NoError(t, idx.InsertEntry(int32(i), common.RecordId{PageNo: 1, SlotNo: uint32(i)}))
	}

	got := scanAll(t, idx, int32(0), int32(n-1))
	require.Len(t, got, n)
	for i := 0; i < n; i++ {
		require.Equal(t, uint32(i), got[i].SlotNo)
	}
}

func TestDeleteEntryNotFound(t *testing.T) {
	idx, _ := newIntIndex(t, 64)
	require.NoError(t, idx.InsertEntry(int32(1), common.RecordId{PageNo: 1, SlotNo: 0}))

	found, err := idx.DeleteEntry(int32(999))
	require.NoError(t, err)
	require.False(t, found)
}

func TestDeleteEntryRemovesKeyFromScan(t *testing.T) {
	idx, _ := newIntIndex(t, 64)
	for i := int32(0); i < 30; i++ {
		require.NoError(t, idx.InsertEntry(i, common.RecordId{PageNo: 1, SlotNo: uint32(i)}))
	}

	found, err := idx.DeleteEntry(int32(15))
	require.NoError(t, err)
	require.True(t, found)

	got := scanAll(t, idx, int32(0), int32(29))
	require.Len(t, got, 29)
	for _, rid := range got {
		require.NotEqual(t, uint32(15), rid.SlotNo)
	}
}

func TestDeleteCausesLeafMergeAndRebalance(t *testing.T) {
	idx, _ := newIntIndex(t, 64)
	n := idx.leafCapacity*3 + 7

	for i := 0; i < n; i++ {
		require.NoError(t, idx.InsertEntry(int32(i), common.RecordId{PageNo: 1, SlotNo: uint32(i)}))
	}

	// Delete most of the keys in the first two leaves' worth of range to
	// force repeated borrow/merge rebalancing.
	deleted := make(map[int32]bool)
	for i := 0; i < idx.leafCapacity+idx.leafCapacity/2; i++ {
		k := int32(i)
		found, err := idx.DeleteEntry(k)
		require.NoError(t, err)
		require.True(t, found)
		deleted[k] = true
	}

	got := scanAll(t, idx, int32(0), int32(n-1))
	require.Len(t, got, n-len(deleted))
	for _, rid := range got {
		require.False(t, deleted[int32(rid.SlotNo)])
	}
}

func TestStringAndDoubleDatatypes(t *testing.T) {
	dir := testutil.TempDir(t)
	bm, err := buffer.New(32, common.PageSize, nil)
	require.NoError(t, err)

	_, sidx, err := OpenIndex(dir, "relB", 0, common.String, bm, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { sidx.Close() })

	words := []string{"pear", "apple", "kiwi", "banana"}
	for i, w := range words {
		require.NoError(t, sidx.InsertEntry(common.MakeString10(w), common.RecordId{PageNo: 1, SlotNo: uint32(i)}))
	}
	require.NoError(t, sidx.StartScan(common.MakeString10(""), common.GTE, common.MakeString10("zzzzzzzzzz"), common.LTE))
	var got []string
	for {
		rid, err := sidx.ScanNext()
		if err == common.ErrIndexScanCompleted {
			break
		}
		require.NoError(t, err)
		got = append(got, words[rid.SlotNo])
	}
	require.Equal(t, []string{"apple", "banana", "kiwi", "pear"}, got)

	_, didx, err := OpenIndex(dir, "relC", 8, common.Double, bm, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { didx.Close() })

	require.NoError(t, didx.InsertEntry(float64(3.14), common.RecordId{PageNo: 1, SlotNo: 0}))
	require.NoError(t, didx.InsertEntry(float64(1.41), common.RecordId{PageNo: 1, SlotNo: 1}))
	require.NoError(t, didx.StartScan(float64(0), common.GTE, float64(10), common.LTE))
	first, err := didx.ScanNext()
	require.NoError(t, err)
	require.Equal(t, uint32(1), first.SlotNo)
}

func TestReopenPersistsRootAcrossClose(t *testing.T) {
	dir := testutil.TempDir(t)
	bm, err := buffer.New(32, common.PageSize, nil)
	require.NoError(t, err)

	name, idx, err := OpenIndex(dir, "relD", 4, common.Int, bm, nil, nil)
	require.NoError(t, err)
	for i := int32(0); i < 5; i++ {
		require.NoError(t, idx.InsertEntry(i, common.RecordId{PageNo: 1, SlotNo: uint32(i)}))
	}
	require.NoError(t, idx.Close())

	_, idx2, err := OpenIndex(dir, "relD", 4, common.Int, bm, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { idx2.Close() })
	require.NotEmpty(t, name)

	got := scanAll(t, idx2, int32(0), int32(4))
	require.Len(t, got, 5)
}

func TestOpenIndexRejectsMismatchedMetadata(t *testing.T) {
	dir := testutil.TempDir(t)
	bm, err := buffer.New(16, common.PageSize, nil)
	require.NoError(t, err)

	_, idx, err := OpenIndex(dir, "relE", 4, common.Int, bm, nil, nil)
	require.NoError(t, err)
	require.NoError(t, idx.Close())

	_, _, err = OpenIndex(dir, "relE", 4, common.Double, bm, nil, nil)
	require.ErrorIs(t, err, common.ErrBadIndexInfo)
}

func TestOpenIndexBulkLoadsFromScanner(t *testing.T) {
	dir := testutil.TempDir(t)
	bm, err := buffer.New(64, common.PageSize, nil)
	require.NoError(t, err)

	keys := []int32{50, 10, 30, 70, 20}
	values := make([]any, len(keys))
	rids := make([]common.RecordId, len(keys))
	for i, k := range keys {
		values[i] = k
		rids[i] = common.RecordId{PageNo: 1, SlotNo: uint32(i)}
	}
	scanner := common.NewSliceScanner(values, rids)

	_, idx, err := OpenIndex(dir, "relF", 4, common.Int, bm, nil, scanner)
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })

	got := scanAll(t, idx, int32(10), int32(70))
	require.Len(t, got, len(keys))
	wantOrder := []int32{10, 20, 30, 50, 70}
	for i, want := range wantOrder {
		require.Equal(t, uint32(indexOf(keys, want)), got[i].SlotNo)
	}
}

func TestClosedIndexRejectsCalls(t *testing.T) {
	idx, _ := newIntIndex(t, 16)
	require.NoError(t, idx.InsertEntry(int32(1), common.RecordId{PageNo: 1, SlotNo: 0}))
	require.NoError(t, idx.Close())

	require.ErrorIs(t, idx.InsertEntry(int32(2), common.RecordId{PageNo: 1, SlotNo: 1}), common.ErrClosed)
	_, err := idx.DeleteEntry(int32(1))
	require.ErrorIs(t, err, common.ErrClosed)
	require.ErrorIs(t, idx.StartScan(int32(0), common.GTE, int32(5), common.LTE), common.ErrClosed)
	require.ErrorIs(t, idx.Close(), common.ErrClosed)
}
