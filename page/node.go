package page

import (
	"encoding/binary"

	"github.com/minireldb/btreeindex/common"
)

// ridSize is the fixed encoded width of a common.RecordId: a PageId (4
// bytes) followed by a slot number (4 bytes).
const ridSize = 8

func encodeRid(buf []byte, rid common.RecordId) {
	binary.BigEndian.PutUint32(buf[0:4], uint32(int32(rid.PageNo)))
	binary.BigEndian.PutUint32(buf[4:8], rid.SlotNo)
}

func decodeRid(buf []byte) common.RecordId {
	return common.RecordId{
		PageNo: common.PageId(int32(binary.BigEndian.Uint32(buf[0:4]))),
		SlotNo: binary.BigEndian.Uint32(buf[4:8]),
	}
}

// LeafNode is the fixed-offset view of a B+Tree leaf page for key domain K:
// keyArray[M], ridArray[M], and a rightSibPageNo header. M (Capacity) is
// derived so the node fits exactly in the page's payload.
//
// Invariant maintained by every mutator in this package: ridArray[i].PageNo
// == InvalidPage signals "unused from i onward" — occupied slots are always
// a contiguous prefix.
type LeafNode[K any] struct {
	codec    Codec[K]
	pg       *Page
	capacity int
}

// leaf payload layout: [0:4) rightSibPageNo, then Capacity * (keySize+ridSize)
const leafHeaderSize = 4

// LeafCapacity returns M for the given codec and page size.
func LeafCapacity[K any](codec Codec[K], pageSize int) int {
	payload := pageSize - pageIDHeaderSize - leafHeaderSize
	return payload / (codec.Size() + ridSize)
}

// NewLeaf wraps pg as a leaf node view without touching its contents.
func NewLeaf[K any](pg *Page, codec Codec[K]) *LeafNode[K] {
	return &LeafNode[K]{codec: codec, pg: pg, capacity: LeafCapacity(codec, pg.Size())}
}

// InitLeaf zero-initializes a freshly allocated page as an empty leaf: every
// rid slot's PageNo is InvalidPage and rightSibPageNo is InvalidPage.
func InitLeaf[K any](pg *Page, codec Codec[K]) *LeafNode[K] {
	n := NewLeaf(pg, codec)
	n.SetRightSibPageNo(common.InvalidPage)
	for i := 0; i < n.capacity; i++ {
		n.SetRid(i, common.RecordId{PageNo: common.InvalidPage})
	}
	return n
}

func (n *LeafNode[K]) Capacity() int { return n.capacity }

func (n *LeafNode[K]) slotOffset(i int) int {
	return leafHeaderSize + i*(n.codec.Size()+ridSize)
}

func (n *LeafNode[K]) Key(i int) K {
	off := n.slotOffset(i)
	return n.codec.Decode(n.pg.Payload()[off : off+n.codec.Size()])
}

func (n *LeafNode[K]) SetKey(i int, k K) {
	off := n.slotOffset(i)
	n.codec.Encode(n.pg.Payload()[off:off+n.codec.Size()], k)
}

func (n *LeafNode[K]) Rid(i int) common.RecordId {
	off := n.slotOffset(i) + n.codec.Size()
	return decodeRid(n.pg.Payload()[off : off+ridSize])
}

func (n *LeafNode[K]) SetRid(i int, rid common.RecordId) {
	off := n.slotOffset(i) + n.codec.Size()
	encodeRid(n.pg.Payload()[off:off+ridSize], rid)
}

func (n *LeafNode[K]) RightSibPageNo() common.PageId {
	return common.PageId(int32(binary.BigEndian.Uint32(n.pg.Payload()[0:4])))
}

func (n *LeafNode[K]) SetRightSibPageNo(id common.PageId) {
	binary.BigEndian.PutUint32(n.pg.Payload()[0:4], uint32(int32(id)))
}

// Occupancy returns the count of populated slots, which by invariant are
// always the contiguous prefix [0, Occupancy()).
func (n *LeafNode[K]) Occupancy() int {
	for i := 0; i < n.capacity; i++ {
		if !n.Rid(i).IsValid() {
			return i
		}
	}
	return n.capacity
}

// ClearSlot marks slot i (and, by the contiguous-prefix invariant, every
// slot after it) as unused.
func (n *LeafNode[K]) ClearSlot(i int) {
	var zero K
	n.SetKey(i, zero)
	n.SetRid(i, common.RecordId{PageNo: common.InvalidPage})
}

// Page returns the underlying page.
func (n *LeafNode[K]) Page() *Page { return n.pg }

// NonLeafNode is the fixed-offset view of a B+Tree non-leaf page for key
// domain K: a level header, keyArray[N], and pageNoArray[N+1]. Entry i of
// pageNoArray holds the subtree for keys < keyArray[i] when i < N, and the
// subtree for keys >= keyArray[N-1] when i == N. An unused pageNoArray
// entry holds InvalidPage.
type NonLeafNode[K any] struct {
	codec    Codec[K]
	pg       *Page
	capacity int
}

// non-leaf payload layout: [0:4) level, [4:8) pageNoArray[0], then
// Capacity * (keySize + 4) for (key[i], pageNoArray[i+1]) pairs.
const nonLeafHeaderSize = 4 + 4

// NonLeafCapacity returns N for the given codec and page size.
func NonLeafCapacity[K any](codec Codec[K], pageSize int) int {
	payload := pageSize - pageIDHeaderSize - nonLeafHeaderSize
	return payload / (codec.Size() + 4)
}

// NewNonLeaf wraps pg as a non-leaf node view without touching its
// contents.
func NewNonLeaf[K any](pg *Page, codec Codec[K]) *NonLeafNode[K] {
	return &NonLeafNode[K]{codec: codec, pg: pg, capacity: NonLeafCapacity(codec, pg.Size())}
}

// InitNonLeaf zero-initializes a freshly allocated page as an empty
// non-leaf at the given level: every pageNoArray entry is InvalidPage.
func InitNonLeaf[K any](pg *Page, codec Codec[K], level int32) *NonLeafNode[K] {
	n := NewNonLeaf(pg, codec)
	n.SetLevel(level)
	for i := 0; i <= n.capacity; i++ {
		n.SetPageNo(i, common.InvalidPage)
	}
	return n
}

func (n *NonLeafNode[K]) Capacity() int { return n.capacity }

func (n *NonLeafNode[K]) Level() int32 {
	return int32(binary.BigEndian.Uint32(n.pg.Payload()[0:4]))
}

func (n *NonLeafNode[K]) SetLevel(l int32) {
	binary.BigEndian.PutUint32(n.pg.Payload()[0:4], uint32(l))
}

func (n *NonLeafNode[K]) pageNoOffset(i int) int {
	if i == 0 {
		return 4
	}
	return nonLeafHeaderSize + (i-1)*(n.codec.Size()+4) + n.codec.Size()
}

func (n *NonLeafNode[K]) keyOffset(i int) int {
	return nonLeafHeaderSize + i*(n.codec.Size()+4)
}

// PageNo returns pageNoArray[i], for i in [0, Capacity()].
func (n *NonLeafNode[K]) PageNo(i int) common.PageId {
	off := n.pageNoOffset(i)
	return common.PageId(int32(binary.BigEndian.Uint32(n.pg.Payload()[off : off+4])))
}

func (n *NonLeafNode[K]) SetPageNo(i int, id common.PageId) {
	off := n.pageNoOffset(i)
	binary.BigEndian.PutUint32(n.pg.Payload()[off:off+4], uint32(int32(id)))
}

// Key returns keyArray[i], for i in [0, Capacity()).
func (n *NonLeafNode[K]) Key(i int) K {
	off := n.keyOffset(i)
	return n.codec.Decode(n.pg.Payload()[off : off+n.codec.Size()])
}

func (n *NonLeafNode[K]) SetKey(i int, k K) {
	off := n.keyOffset(i)
	n.codec.Encode(n.pg.Payload()[off:off+n.codec.Size()], k)
}

// Occupancy returns the count of populated pageNoArray entries (always a
// contiguous prefix by construction: splits and merges never leave a hole).
func (n *NonLeafNode[K]) Occupancy() int {
	for i := 0; i <= n.capacity; i++ {
		if n.PageNo(i) == common.InvalidPage {
			return i
		}
	}
	return n.capacity + 1
}

// Page returns the underlying page.
func (n *NonLeafNode[K]) Page() *Page { return n.pg }
