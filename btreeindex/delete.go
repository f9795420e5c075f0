package btreeindex

import (
	"github.com/minireldb/btreeindex/common"
	"github.com/minireldb/btreeindex/page"
)

// deleteEntry removes key from the tree, rebalancing underfull pages by
// borrowing from a sibling or merging with one, cascading the rebalance
// upward and shrinking the root into its sole child when a root above the
// leaf level drops to a single child. This completes the non-leaf
// borrow/merge machinery that the code this package was adapted from left
// as stubs (see DESIGN.md).
func (idx *genericIndex[K]) deleteEntry(key K) (bool, error) {
	leafPg, leafId, path, err := idx.locateLeaf(key)
	if err != nil {
		return false, err
	}
	leaf := page.NewLeaf(leafPg, idx.codec)

	slot, found := findLeafSlot(leaf, idx.codec, key)
	if !found {
		if err := idx.bufMgr.UnpinPage(idx.file, leafId, false); err != nil {
			return false, err
		}
		return false, nil
	}
	removeLeafSlot(leaf, slot)

	if leaf.Occupancy() >= idx.minLeafOccupancy() || len(path) == 0 {
		if err := idx.bufMgr.UnpinPage(idx.file, leafId, true); err != nil {
			return false, err
		}
		return true, nil
	}

	if err := idx.rebalanceLeaf(leafId, path); err != nil {
		return false, err
	}
	return true, nil
}

func (idx *genericIndex[K]) minLeafOccupancy() int {
	return idx.leafCapacity / 2
}

func (idx *genericIndex[K]) minChildOccupancy() int {
	return idx.nonLeafCapacity/2 + 1
}

func findLeafSlot[K any](leaf *page.LeafNode[K], codec page.Codec[K], key K) (int, bool) {
	occ := leaf.Occupancy()
	for i := 0; i < occ; i++ {
		if codec.Compare(leaf.Key(i), key) == 0 {
			return i, true
		}
	}
	return 0, false
}

func removeLeafSlot[K any](leaf *page.LeafNode[K], slot int) {
	occ := leaf.Occupancy()
	for i := slot; i < occ-1; i++ {
		leaf.SetKey(i, leaf.Key(i+1))
		leaf.SetRid(i, leaf.Rid(i+1))
	}
	leaf.ClearSlot(occ - 1)
}

// rebalanceLeaf fixes up an underfull leaf, then cascades any resulting
// non-leaf underflow up the recorded path.
func (idx *genericIndex[K]) rebalanceLeaf(leafId common.PageId, path []pathEntry) error {
	parentEntry := path[len(path)-1]
	parentPg, err := idx.bufMgr.ReadPage(idx.file, parentEntry.ParentPageId)
	if err != nil {
		idx.bufMgr.UnpinPage(idx.file, leafId, true)
		return err
	}
	parent := page.NewNonLeaf(parentPg, idx.codec)
	slot := parentEntry.ChildSlotIndex
	occ := parent.Occupancy()

	leafPg, err := idx.bufMgr.ReadPage(idx.file, leafId)
	if err != nil {
		idx.bufMgr.UnpinPage(idx.file, parentEntry.ParentPageId, false)
		return err
	}
	// ReadPage pins again; this function always releases leaf exactly once
	// more than it reads, matching the single pin still held by the caller.
	leaf := page.NewLeaf(leafPg, idx.codec)

	if occ == 1 {
		// The leaf is the only child of a root that has shrunk to a single
		// leaf: there is no sibling to borrow from or merge with.
		idx.bufMgr.UnpinPage(idx.file, leafId, true)
		idx.bufMgr.UnpinPage(idx.file, leafId, true)
		return idx.bufMgr.UnpinPage(idx.file, parentEntry.ParentPageId, false)
	}

	if slot > 0 {
		leftId := parent.PageNo(slot - 1)
		leftPg, err := idx.bufMgr.ReadPage(idx.file, leftId)
		if err != nil {
			idx.bufMgr.UnpinPage(idx.file, leafId, true)
			idx.bufMgr.UnpinPage(idx.file, parentEntry.ParentPageId, false)
			return err
		}
		left := page.NewLeaf(leftPg, idx.codec)
		if left.Occupancy() > idx.minLeafOccupancy() {
			borrowLeafFromLeft(leaf, left, parent, slot-1)
			idx.bufMgr.UnpinPage(idx.file, leftId, true)
			idx.bufMgr.UnpinPage(idx.file, leafId, true)
			idx.bufMgr.UnpinPage(idx.file, leafId, true)
			return idx.bufMgr.UnpinPage(idx.file, parentEntry.ParentPageId, true)
		}
		idx.bufMgr.UnpinPage(idx.file, leftId, false)
	}

	if slot+1 < occ {
		rightId := parent.PageNo(slot + 1)
		rightPg, err := idx.bufMgr.ReadPage(idx.file, rightId)
		if err != nil {
			idx.bufMgr.UnpinPage(idx.file, leafId, true)
			idx.bufMgr.UnpinPage(idx.file, parentEntry.ParentPageId, false)
			return err
		}
		right := page.NewLeaf(rightPg, idx.codec)
		if right.Occupancy() > idx.minLeafOccupancy() {
			borrowLeafFromRight(leaf, right, parent, slot)
			idx.bufMgr.UnpinPage(idx.file, rightId, true)
			idx.bufMgr.UnpinPage(idx.file, leafId, true)
			idx.bufMgr.UnpinPage(idx.file, leafId, true)
			return idx.bufMgr.UnpinPage(idx.file, parentEntry.ParentPageId, true)
		}
		idx.bufMgr.UnpinPage(idx.file, rightId, false)
	}

	// No sibling has surplus entries: merge. Prefer merging this leaf into
	// its left sibling; fall back to merging the right sibling into this
	// leaf otherwise.
	if slot > 0 {
		leftId := parent.PageNo(slot - 1)
		leftPg, err := idx.bufMgr.ReadPage(idx.file, leftId)
		if err != nil {
			idx.bufMgr.UnpinPage(idx.file, leafId, true)
			idx.bufMgr.UnpinPage(idx.file, parentEntry.ParentPageId, false)
			return err
		}
		left := page.NewLeaf(leftPg, idx.codec)
		mergeLeaves(left, leaf)
		if err := idx.bufMgr.UnpinPage(idx.file, leftId, true); err != nil {
			return err
		}
		idx.bufMgr.UnpinPage(idx.file, leafId, true)
		idx.bufMgr.UnpinPage(idx.file, leafId, true)
		if err := idx.bufMgr.DisposePage(idx.file, leafId); err != nil {
			return err
		}
		removeNonLeafSlot(parent, slot-1, slot)
		return idx.afterChildRemoved(parentEntry.ParentPageId, parent, path[:len(path)-1])
	}

	rightId := parent.PageNo(slot + 1)
	rightPg, err := idx.bufMgr.ReadPage(idx.file, rightId)
	if err != nil {
		idx.bufMgr.UnpinPage(idx.file, leafId, true)
		idx.bufMgr.UnpinPage(idx.file, parentEntry.ParentPageId, false)
		return err
	}
	right := page.NewLeaf(rightPg, idx.codec)
	mergeLeaves(leaf, right)
	idx.bufMgr.UnpinPage(idx.file, rightId, true)
	if err := idx.bufMgr.DisposePage(idx.file, rightId); err != nil {
		return err
	}
	idx.bufMgr.UnpinPage(idx.file, leafId, true)
	idx.bufMgr.UnpinPage(idx.file, leafId, true)
	removeNonLeafSlot(parent, slot, slot+1)
	return idx.afterChildRemoved(parentEntry.ParentPageId, parent, path[:len(path)-1])
}

func borrowLeafFromLeft[K any](leaf, left *page.LeafNode[K], parent *page.NonLeafNode[K], sepIdx int) {
	occ := leaf.Occupancy()
	for i := occ; i > 0; i-- {
		leaf.SetKey(i, leaf.Key(i-1))
		leaf.SetRid(i, leaf.Rid(i-1))
	}
	lastIdx := left.Occupancy() - 1
	leaf.SetKey(0, left.Key(lastIdx))
	leaf.SetRid(0, left.Rid(lastIdx))
	left.ClearSlot(lastIdx)
	parent.SetKey(sepIdx, leaf.Key(0))
}

func borrowLeafFromRight[K any](leaf, right *page.LeafNode[K], parent *page.NonLeafNode[K], sepIdx int) {
	occ := leaf.Occupancy()
	leaf.SetKey(occ, right.Key(0))
	leaf.SetRid(occ, right.Rid(0))
	rOcc := right.Occupancy()
	for i := 0; i < rOcc-1; i++ {
		right.SetKey(i, right.Key(i+1))
		right.SetRid(i, right.Rid(i+1))
	}
	right.ClearSlot(rOcc - 1)
	parent.SetKey(sepIdx, right.Key(0))
}

// mergeLeaves appends right's entries onto left and relinks the sibling
// chain around the now-empty right page; right itself is disposed by the
// caller.
func mergeLeaves[K any](left, right *page.LeafNode[K]) {
	base := left.Occupancy()
	rOcc := right.Occupancy()
	for i := 0; i < rOcc; i++ {
		left.SetKey(base+i, right.Key(i))
		left.SetRid(base+i, right.Rid(i))
	}
	left.SetRightSibPageNo(right.RightSibPageNo())
}

// removeNonLeafSlot deletes keyIdx and childIdx from parent, shifting later
// entries down by one.
func removeNonLeafSlot[K any](parent *page.NonLeafNode[K], keyIdx, childIdx int) {
	occ := parent.Occupancy()
	numKeys := occ - 1
	for i := keyIdx; i < numKeys-1; i++ {
		parent.SetKey(i, parent.Key(i+1))
	}
	for i := childIdx; i < occ-1; i++ {
		parent.SetPageNo(i, parent.PageNo(i+1))
	}
	parent.SetPageNo(occ-1, common.InvalidPage)
}

// afterChildRemoved checks node for underflow after one of its children was
// merged away, rebalancing against a sibling or, for the root, shrinking
// the tree when only one child remains.
func (idx *genericIndex[K]) afterChildRemoved(nodeId common.PageId, node *page.NonLeafNode[K], parentPath []pathEntry) error {
	if len(parentPath) == 0 {
		// node is the root. Only collapse into the sole remaining child
		// when that child is itself a non-leaf; a root wrapping a single
		// leaf stays put, since every root reader assumes rootPageNum
		// names a non-leaf page.
		if node.Occupancy() == 1 && node.Level() > 1 {
			return idx.shrinkRoot(node.PageNo(0))
		}
		return idx.bufMgr.UnpinPage(idx.file, nodeId, true)
	}

	if node.Occupancy() >= idx.minChildOccupancy() {
		return idx.bufMgr.UnpinPage(idx.file, nodeId, true)
	}
	return idx.rebalanceNonLeaf(nodeId, node, parentPath)
}

// shrinkRoot replaces the root with its sole remaining child, per the root
// shrink invariant in SPEC_FULL.md §4.5.
func (idx *genericIndex[K]) shrinkRoot(soleChild common.PageId) error {
	oldRoot := idx.rootPageNum
	idx.rootPageNum = soleChild
	if err := idx.persistRoot(); err != nil {
		return err
	}
	return idx.bufMgr.DisposePage(idx.file, oldRoot)
}

// rebalanceNonLeaf fixes up an underfull non-leaf by rotating a separator
// through its parent (redistribute) or merging with a sibling, pulling the
// parent separator down into the combined node.
func (idx *genericIndex[K]) rebalanceNonLeaf(nodeId common.PageId, node *page.NonLeafNode[K], path []pathEntry) error {
	parentEntry := path[len(path)-1]
	parentPg, err := idx.bufMgr.ReadPage(idx.file, parentEntry.ParentPageId)
	if err != nil {
		idx.bufMgr.UnpinPage(idx.file, nodeId, true)
		return err
	}
	parent := page.NewNonLeaf(parentPg, idx.codec)
	slot := parentEntry.ChildSlotIndex
	occ := parent.Occupancy()

	if slot > 0 {
		leftId := parent.PageNo(slot - 1)
		leftPg, err := idx.bufMgr.ReadPage(idx.file, leftId)
		if err != nil {
			idx.bufMgr.UnpinPage(idx.file, nodeId, true)
			idx.bufMgr.UnpinPage(idx.file, parentEntry.ParentPageId, false)
			return err
		}
		left := page.NewNonLeaf(leftPg, idx.codec)
		if left.Occupancy() > idx.minChildOccupancy() {
			borrowNonLeafFromLeft(node, left, parent, slot-1)
			if err := idx.bufMgr.UnpinPage(idx.file, leftId, true); err != nil {
				return err
			}
			if err := idx.bufMgr.UnpinPage(idx.file, nodeId, true); err != nil {
				return err
			}
			return idx.bufMgr.UnpinPage(idx.file, parentEntry.ParentPageId, true)
		}
		idx.bufMgr.UnpinPage(idx.file, leftId, false)
	}

	if slot+1 < occ {
		rightId := parent.PageNo(slot + 1)
		rightPg, err := idx.bufMgr.ReadPage(idx.file, rightId)
		if err != nil {
			idx.bufMgr.UnpinPage(idx.file, nodeId, true)
			idx.bufMgr.UnpinPage(idx.file, parentEntry.ParentPageId, false)
			return err
		}
		right := page.NewNonLeaf(rightPg, idx.codec)
		if right.Occupancy() > idx.minChildOccupancy() {
			borrowNonLeafFromRight(node, right, parent, slot)
			if err := idx.bufMgr.UnpinPage(idx.file, rightId, true); err != nil {
				return err
			}
			if err := idx.bufMgr.UnpinPage(idx.file, nodeId, true); err != nil {
				return err
			}
			return idx.bufMgr.UnpinPage(idx.file, parentEntry.ParentPageId, true)
		}
		idx.bufMgr.UnpinPage(idx.file, rightId, false)
	}

	if slot > 0 {
		leftId := parent.PageNo(slot - 1)
		leftPg, err := idx.bufMgr.ReadPage(idx.file, leftId)
		if err != nil {
			idx.bufMgr.UnpinPage(idx.file, nodeId, true)
			idx.bufMgr.UnpinPage(idx.file, parentEntry.ParentPageId, false)
			return err
		}
		left := page.NewNonLeaf(leftPg, idx.codec)
		mergeNonLeaves(left, node, parent.Key(slot-1))
		if err := idx.bufMgr.UnpinPage(idx.file, leftId, true); err != nil {
			return err
		}
		if err := idx.bufMgr.UnpinPage(idx.file, nodeId, true); err != nil {
			return err
		}
		if err := idx.bufMgr.DisposePage(idx.file, nodeId); err != nil {
			return err
		}
		removeNonLeafSlot(parent, slot-1, slot)
		return idx.afterChildRemoved(parentEntry.ParentPageId, parent, path[:len(path)-1])
	}

	rightId := parent.PageNo(slot + 1)
	rightPg, err := idx.bufMgr.ReadPage(idx.file, rightId)
	if err != nil {
		idx.bufMgr.UnpinPage(idx.file, nodeId, true)
		idx.bufMgr.UnpinPage(idx.file, parentEntry.ParentPageId, false)
		return err
	}
	right := page.NewNonLeaf(rightPg, idx.codec)
	mergeNonLeaves(node, right, parent.Key(slot))
	if err := idx.bufMgr.UnpinPage(idx.file, rightId, true); err != nil {
		return err
	}
	if err := idx.bufMgr.DisposePage(idx.file, rightId); err != nil {
		return err
	}
	if err := idx.bufMgr.UnpinPage(idx.file, nodeId, true); err != nil {
		return err
	}
	removeNonLeafSlot(parent, slot, slot+1)
	return idx.afterChildRemoved(parentEntry.ParentPageId, parent, path[:len(path)-1])
}

// borrowNonLeafFromLeft rotates the parent separator at sepIdx down into
// node as its new first key, and left's last key up into the parent.
func borrowNonLeafFromLeft[K any](node, left *page.NonLeafNode[K], parent *page.NonLeafNode[K], sepIdx int) {
	occ := node.Occupancy()
	numKeys := occ - 1
	for i := numKeys; i > 0; i-- {
		node.SetKey(i, node.Key(i-1))
	}
	for i := occ; i > 0; i-- {
		node.SetPageNo(i, node.PageNo(i-1))
	}
	node.SetKey(0, parent.Key(sepIdx))
	lastChildIdx := left.Occupancy() - 1
	node.SetPageNo(0, left.PageNo(lastChildIdx))

	parent.SetKey(sepIdx, left.Key(lastChildIdx-1))
	left.SetPageNo(lastChildIdx, common.InvalidPage)
}

// borrowNonLeafFromRight rotates the parent separator at sepIdx down into
// node as its new last key, and right's first key up into the parent.
func borrowNonLeafFromRight[K any](node, right *page.NonLeafNode[K], parent *page.NonLeafNode[K], sepIdx int) {
	occ := node.Occupancy()
	numKeys := occ - 1
	node.SetKey(numKeys, parent.Key(sepIdx))
	node.SetPageNo(occ, right.PageNo(0))

	parent.SetKey(sepIdx, right.Key(0))

	rOcc := right.Occupancy()
	rNumKeys := rOcc - 1
	for i := 0; i < rNumKeys-1; i++ {
		right.SetKey(i, right.Key(i+1))
	}
	for i := 0; i < rOcc-1; i++ {
		right.SetPageNo(i, right.PageNo(i+1))
	}
	right.SetPageNo(rOcc-1, common.InvalidPage)
}

// mergeNonLeaves pulls sepKey down from the parent between left and right,
// then appends right's keys and children onto left.
func mergeNonLeaves[K any](left, right *page.NonLeafNode[K], sepKey K) {
	leftOcc := left.Occupancy()
	leftNumKeys := leftOcc - 1
	left.SetKey(leftNumKeys, sepKey)

	rightOcc := right.Occupancy()
	for i := 0; i < rightOcc-1; i++ {
		left.SetKey(leftOcc+i, right.Key(i))
	}
	for i := 0; i < rightOcc; i++ {
		left.SetPageNo(leftOcc+i, right.PageNo(i))
	}
}
