package page_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/minireldb/btreeindex/common"
	"github.com/minireldb/btreeindex/page"
)

func TestLeafNodeIntRoundTrip(t *testing.T) {
	pg := page.New(7, common.PageSize)
	leaf := page.InitLeaf(pg, page.Int32Codec{})

	require.Greater(t, leaf.Capacity(), 0)
	require.Equal(t, common.InvalidPage, leaf.RightSibPageNo())
	require.Equal(t, 0, leaf.Occupancy())

	leaf.SetKey(0, 42)
	leaf.SetRid(0, common.RecordId{PageNo: 3, SlotNo: 1})
	leaf.SetKey(1, 99)
	leaf.SetRid(1, common.RecordId{PageNo: 3, SlotNo: 2})
	leaf.SetRightSibPageNo(11)

	require.Equal(t, 2, leaf.Occupancy())
	require.Equal(t, int32(42), leaf.Key(0))
	require.Equal(t, common.RecordId{PageNo: 3, SlotNo: 1}, leaf.Rid(0))
	require.Equal(t, int32(99), leaf.Key(1))
	require.Equal(t, common.PageId(11), leaf.RightSibPageNo())

	// re-wrapping the same underlying page must see identical state
	reloaded := page.NewLeaf(pg, page.Int32Codec{})
	require.Equal(t, 2, reloaded.Occupancy())
	require.Equal(t, int32(42), reloaded.Key(0))
}

func TestLeafClearSlotShrinksOccupancy(t *testing.T) {
	pg := page.New(1, common.PageSize)
	leaf := page.InitLeaf(pg, page.Int32Codec{})
	leaf.SetKey(0, 1)
	leaf.SetRid(0, common.RecordId{PageNo: 1, SlotNo: 0})
	leaf.SetKey(1, 2)
	leaf.SetRid(1, common.RecordId{PageNo: 1, SlotNo: 1})
	require.Equal(t, 2, leaf.Occupancy())

	leaf.ClearSlot(1)
	require.Equal(t, 1, leaf.Occupancy())
}

func TestNonLeafNodeRoundTrip(t *testing.T) {
	pg := page.New(5, common.PageSize)
	nl := page.InitNonLeaf(pg, page.Float64Codec{}, 1)

	require.Equal(t, int32(1), nl.Level())
	require.Equal(t, 0, nl.Occupancy())

	nl.SetPageNo(0, 10)
	nl.SetKey(0, 3.5)
	nl.SetPageNo(1, 11)

	require.Equal(t, 2, nl.Occupancy())
	require.Equal(t, common.PageId(10), nl.PageNo(0))
	require.Equal(t, common.PageId(11), nl.PageNo(1))
	require.InDelta(t, 3.5, nl.Key(0), 0)
}

func TestStringKeyCompareMatchesStrncmpSemantics(t *testing.T) {
	codec := page.String10Codec{}
	a := common.MakeString10("ab")
	b := common.MakeString10("abc")
	require.Negative(t, codec.Compare(a, b), "shorter zero-padded prefix must sort before its own extension")

	c := common.MakeString10("ab")
	require.Zero(t, codec.Compare(a, c))
}

func TestCapacitiesDeriveFromPageSize(t *testing.T) {
	leafCap := page.LeafCapacity(page.Int32Codec{}, common.PageSize)
	nonLeafCap := page.NonLeafCapacity(page.Int32Codec{}, common.PageSize)
	require.Less(t, leafCap, nonLeafCap, "leaf entries carry an 8-byte record id, non-leaf entries only a 4-byte child pointer, so more non-leaf entries fit per page")

	stringLeafCap := page.LeafCapacity(page.String10Codec{}, common.PageSize)
	require.Less(t, stringLeafCap, leafCap, "wider keys yield lower per-page capacity")
}

func TestDeterministicByteImage(t *testing.T) {
	pg1 := page.New(9, common.PageSize)
	leaf1 := page.InitLeaf(pg1, page.Int32Codec{})
	leaf1.SetKey(0, 7)
	leaf1.SetRid(0, common.RecordId{PageNo: 2, SlotNo: 0})

	pg2 := page.New(9, common.PageSize)
	leaf2 := page.InitLeaf(pg2, page.Int32Codec{})
	leaf2.SetKey(0, 7)
	leaf2.SetRid(0, common.RecordId{PageNo: 2, SlotNo: 0})

	require.Equal(t, pg1.Bytes(), pg2.Bytes())
}
