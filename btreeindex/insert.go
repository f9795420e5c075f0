package btreeindex

import (
	"github.com/minireldb/btreeindex/common"
	"github.com/minireldb/btreeindex/page"
)

// insertEntry implements the seven insertion phases of SPEC_FULL.md §4.3.
func (idx *genericIndex[K]) insertEntry(key K, rid common.RecordId) error {
	rootPg, err := idx.bufMgr.ReadPage(idx.file, idx.rootPageNum)
	if err != nil {
		return err
	}
	root := page.NewNonLeaf(rootPg, idx.codec)

	// Phase 1: empty-root bootstrap.
	if root.PageNo(0) == common.InvalidPage {
		if err := idx.bootstrapRoot(root, key, rid); err != nil {
			idx.bufMgr.UnpinPage(idx.file, idx.rootPageNum, false)
			return err
		}
		return idx.bufMgr.UnpinPage(idx.file, idx.rootPageNum, true)
	}
	if err := idx.bufMgr.UnpinPage(idx.file, idx.rootPageNum, false); err != nil {
		return err
	}

	// Phase 2: locate leaf, recording the traversal path.
	leafPg, leafId, path, err := idx.locateLeaf(key)
	if err != nil {
		return err
	}
	leaf := page.NewLeaf(leafPg, idx.codec)
	occ := leaf.Occupancy()

	// Phase 3: leaf insertion when there is room.
	if occ < idx.leafCapacity {
		insertIntoLeaf(leaf, idx.codec, occ, key, rid)
		return idx.bufMgr.UnpinPage(idx.file, leafId, true)
	}

	// Phase 4: leaf split.
	sepKey, newLeafId, err := idx.splitLeafAndInsert(leaf, leafId, key, rid)
	if err != nil {
		idx.bufMgr.UnpinPage(idx.file, leafId, false)
		return err
	}
	if err := idx.bufMgr.UnpinPage(idx.file, leafId, true); err != nil {
		return err
	}

	// Phases 5-7: propagate the promoted separator upward, cascading
	// non-leaf splits and growing the root if the cascade reaches the top.
	return idx.propagateSplit(path, sepKey, newLeafId)
}

func (idx *genericIndex[K]) bootstrapRoot(root *page.NonLeafNode[K], key K, rid common.RecordId) error {
	leftId, leftPg, err := idx.bufMgr.AllocPage(idx.file)
	if err != nil {
		return err
	}
	rightId, rightPg, err := idx.bufMgr.AllocPage(idx.file)
	if err != nil {
		idx.bufMgr.UnpinPage(idx.file, leftId, false)
		return err
	}

	left := page.InitLeaf(leftPg, idx.codec)
	right := page.InitLeaf(rightPg, idx.codec)
	left.SetRightSibPageNo(rightId)
	right.SetKey(0, key)
	right.SetRid(0, rid)

	// Design decision: a non-leaf directly parenting leaves has level == 1,
	// consistent with the level invariant stated in the data model (§3);
	// see DESIGN.md for why this repo departs from the source text's
	// literal "level = 2" on this one bootstrap write.
	root.SetLevel(1)
	root.SetKey(0, key)
	root.SetPageNo(0, leftId)
	root.SetPageNo(1, rightId)

	if err := idx.bufMgr.UnpinPage(idx.file, leftId, true); err != nil {
		return err
	}
	return idx.bufMgr.UnpinPage(idx.file, rightId, true)
}

// insertIntoLeaf finds the first populated slot whose key is >= key (or occ
// if none), shifts entries right to make room, and writes (key, rid) at the
// resulting slot. Caller guarantees occ < leaf.Capacity().
func insertIntoLeaf[K any](leaf *page.LeafNode[K], codec page.Codec[K], occ int, key K, rid common.RecordId) int {
	insertAt := occ
	for i := 0; i < occ; i++ {
		if codec.Compare(leaf.Key(i), key) >= 0 {
			insertAt = i
			break
		}
	}
	for i := occ; i > insertAt; i-- {
		leaf.SetKey(i, leaf.Key(i-1))
		leaf.SetRid(i, leaf.Rid(i-1))
	}
	leaf.SetKey(insertAt, key)
	leaf.SetRid(insertAt, rid)
	return insertAt
}

// splitLeafAndInsert splits a full leaf at LEAF_CAPACITY/2, copying the
// smallest key of the new right leaf up as the separator (design decision
// (a): separator = smallest key in right leaf), then inserts (key, rid)
// into whichever side it belongs on.
func (idx *genericIndex[K]) splitLeafAndInsert(oldLeaf *page.LeafNode[K], oldLeafId common.PageId, key K, rid common.RecordId) (K, common.PageId, error) {
	var zero K
	median := idx.leafCapacity / 2

	newLeafId, newLeafPg, err := idx.bufMgr.AllocPage(idx.file)
	if err != nil {
		return zero, common.InvalidPage, err
	}
	newLeaf := page.InitLeaf(newLeafPg, idx.codec)

	for i := median; i < idx.leafCapacity; i++ {
		newLeaf.SetKey(i-median, oldLeaf.Key(i))
		newLeaf.SetRid(i-median, oldLeaf.Rid(i))
	}
	sepKey := oldLeaf.Key(median)

	for i := median; i < idx.leafCapacity; i++ {
		oldLeaf.ClearSlot(i)
	}

	newLeaf.SetRightSibPageNo(oldLeaf.RightSibPageNo())
	oldLeaf.SetRightSibPageNo(newLeafId)

	if idx.codec.Compare(key, sepKey) < 0 {
		insertIntoLeaf(oldLeaf, idx.codec, median, key, rid)
	} else {
		newOcc := idx.leafCapacity - median
		insertIntoLeaf(newLeaf, idx.codec, newOcc, key, rid)
	}

	if err := idx.bufMgr.UnpinPage(idx.file, newLeafId, true); err != nil {
		return zero, common.InvalidPage, err
	}
	return sepKey, newLeafId, nil
}

// propagateSplit inserts (sepKey, newChildId) into the parent recorded at
// the end of path, splitting it (median pushed up, not copied) and
// cascading upward if it too is full. If the cascade reaches past the
// current root, a new root is grown.
func (idx *genericIndex[K]) propagateSplit(path []pathEntry, sepKey K, newChildId common.PageId) error {
	var splitLevel int32

	for i := len(path) - 1; i >= 0; i-- {
		entry := path[i]
		parentPg, err := idx.bufMgr.ReadPage(idx.file, entry.ParentPageId)
		if err != nil {
			return err
		}
		parent := page.NewNonLeaf(parentPg, idx.codec)
		occ := parent.Occupancy()
		numKeys := occ - 1
		slot := entry.ChildSlotIndex

		if occ <= idx.nonLeafCapacity {
			// Room: shift right and insert in place.
			for j := numKeys; j > slot; j-- {
				parent.SetKey(j, parent.Key(j-1))
			}
			parent.SetKey(slot, sepKey)
			for j := occ; j > slot+1; j-- {
				parent.SetPageNo(j, parent.PageNo(j-1))
			}
			parent.SetPageNo(slot+1, newChildId)
			return idx.bufMgr.UnpinPage(idx.file, entry.ParentPageId, true)
		}

		// Full: split, pushing the median key up (phase 6).
		splitLevel = parent.Level()
		newSepKey, newRightId, err := idx.splitNonLeafAndInsert(parent, slot, sepKey, newChildId)
		if err != nil {
			idx.bufMgr.UnpinPage(idx.file, entry.ParentPageId, false)
			return err
		}
		if err := idx.bufMgr.UnpinPage(idx.file, entry.ParentPageId, true); err != nil {
			return err
		}
		sepKey, newChildId = newSepKey, newRightId
	}

	// Cascade reached past the root: grow a new one (phase 7).
	return idx.growRoot(splitLevel, sepKey, newChildId)
}

// splitNonLeafAndInsert builds the combined (numKeys+1)-key,
// (numKeys+2)-child array a full non-leaf would have after inserting
// (sepKey, newChildId) at slot, splits it at NONLEAF_CAPACITY/2, and
// promotes (not copies) the median key to the caller.
func (idx *genericIndex[K]) splitNonLeafAndInsert(parent *page.NonLeafNode[K], slot int, sepKey K, newChildId common.PageId) (K, common.PageId, error) {
	var zero K
	n := idx.nonLeafCapacity

	keys := make([]K, 0, n+1)
	for i := 0; i < n; i++ {
		keys = append(keys, parent.Key(i))
	}
	keys = insertKeyAt(keys, slot, sepKey)

	children := make([]common.PageId, 0, n+2)
	for i := 0; i <= n; i++ {
		children = append(children, parent.PageNo(i))
	}
	children = insertPageAt(children, slot+1, newChildId)

	median := n / 2
	promoted := keys[median]

	newRightId, newRightPg, err := idx.bufMgr.AllocPage(idx.file)
	if err != nil {
		return zero, common.InvalidPage, err
	}
	level := parent.Level()
	newRight := page.InitNonLeaf(newRightPg, idx.codec, level)

	leftKeys := keys[:median]
	leftChildren := children[:median+1]
	rightKeys := keys[median+1:]
	rightChildren := children[median+1:]

	page.InitNonLeaf(parent.Page(), idx.codec, level)
	for i, k := range leftKeys {
		parent.SetKey(i, k)
	}
	for i, c := range leftChildren {
		parent.SetPageNo(i, c)
	}
	for i, k := range rightKeys {
		newRight.SetKey(i, k)
	}
	for i, c := range rightChildren {
		newRight.SetPageNo(i, c)
	}

	if err := idx.bufMgr.UnpinPage(idx.file, newRightId, true); err != nil {
		return zero, common.InvalidPage, err
	}
	return promoted, newRightId, nil
}

func insertKeyAt[K any](keys []K, at int, k K) []K {
	keys = append(keys, k)
	copy(keys[at+1:], keys[at:len(keys)-1])
	keys[at] = k
	return keys
}

func insertPageAt(pages []common.PageId, at int, p common.PageId) []common.PageId {
	pages = append(pages, p)
	copy(pages[at+1:], pages[at:len(pages)-1])
	pages[at] = p
	return pages
}

// growRoot allocates a new root one level above oldRoot, per phase 7.
func (idx *genericIndex[K]) growRoot(oldRootLevel int32, sepKey K, newChildId common.PageId) error {
	newRootId, newRootPg, err := idx.bufMgr.AllocPage(idx.file)
	if err != nil {
		return err
	}
	newRoot := page.InitNonLeaf(newRootPg, idx.codec, oldRootLevel+1)
	newRoot.SetPageNo(0, idx.rootPageNum)
	newRoot.SetKey(0, sepKey)
	newRoot.SetPageNo(1, newChildId)

	idx.rootPageNum = newRootId
	if err := idx.persistRoot(); err != nil {
		idx.bufMgr.UnpinPage(idx.file, newRootId, false)
		return err
	}
	return idx.bufMgr.UnpinPage(idx.file, newRootId, true)
}
