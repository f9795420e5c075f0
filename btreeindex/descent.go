package btreeindex

import (
	"fmt"

	"github.com/minireldb/btreeindex/common"
	"github.com/minireldb/btreeindex/page"
)

// pathEntry records one non-leaf level visited during a descent: which
// child slot was followed, and the page id of the non-leaf that held it.
// Traversal path is a dynamic ordered sequence, not self-referential parent
// pointers inside nodes, per the design note in SPEC_FULL.md.
type pathEntry struct {
	ChildSlotIndex int
	ParentPageId   common.PageId
}

// chooseChild implements the descent rule shared by every non-leaf level:
// if key < keyArray[0], child 0; else the first i with key < keyArray[i];
// else the last populated child.
func chooseChild[K any](nl *page.NonLeafNode[K], codec page.Codec[K], key K) int {
	occ := nl.Occupancy()
	numKeys := occ - 1
	if numKeys <= 0 {
		return 0
	}
	for i := 0; i < numKeys; i++ {
		if codec.Compare(key, nl.Key(i)) < 0 {
			return i
		}
	}
	return numKeys
}

// locateLeaf descends from the root to the leaf that contains or would
// receive key, recording the traversal path. Each non-leaf touched is
// pinned and unpinned before the next child is read, so at most one
// non-leaf page is pinned at a time; the returned leaf page remains pinned
// for the caller to release.
func (idx *genericIndex[K]) locateLeaf(key K) (leafPg *page.Page, leafId common.PageId, path []pathEntry, err error) {
	cur := idx.rootPageNum
	for {
		pg, err := idx.bufMgr.ReadPage(idx.file, cur)
		if err != nil {
			return nil, common.InvalidPage, nil, err
		}
		nl := page.NewNonLeaf(pg, idx.codec)

		i := chooseChild(nl, idx.codec, key)
		child := nl.PageNo(i)
		childIsLeaf := nl.Level() == 1

		if err := idx.bufMgr.UnpinPage(idx.file, cur, false); err != nil {
			return nil, common.InvalidPage, nil, err
		}
		if child == common.InvalidPage {
			return nil, common.InvalidPage, nil, fmt.Errorf("btreeindex: descent hit an unpopulated child slot at page %d", cur)
		}

		path = append(path, pathEntry{ChildSlotIndex: i, ParentPageId: cur})

		if childIsLeaf {
			leafPg, err := idx.bufMgr.ReadPage(idx.file, child)
			if err != nil {
				return nil, common.InvalidPage, nil, err
			}
			return leafPg, child, path, nil
		}
		cur = child
	}
}
