package btreeindex

import (
	"github.com/minireldb/btreeindex/common"
	"github.com/minireldb/btreeindex/page"
)

// startScan validates the scan bounds, locates the first leaf that could
// hold a matching key, and positions the scan cursor on the first entry
// satisfying the lower bound, per SPEC_FULL.md §4.4. The matching leaf is
// pinned for the lifetime of the scan and released by ScanNext/EndScan.
func (idx *genericIndex[K]) startScan(lowVal K, lowOp common.Operator, highVal K, highOp common.Operator) error {
	if idx.scan.executing {
		if err := idx.EndScan(); err != nil {
			return err
		}
	}

	if lowOp != common.GT && lowOp != common.GTE {
		return common.ErrBadOpcodes
	}
	if highOp != common.LT && highOp != common.LTE {
		return common.ErrBadOpcodes
	}
	if idx.codec.Compare(lowVal, highVal) > 0 {
		return common.ErrBadScanRange
	}

	leafPg, leafId, _, err := idx.locateLeaf(lowVal)
	if err != nil {
		return err
	}
	leaf := page.NewLeaf(leafPg, idx.codec)

	for {
		entry, atEnd := firstSlotAtOrAfter(leaf, idx.codec, lowVal, lowOp)
		if !atEnd {
			if !withinHighBound(idx.codec, leaf.Key(entry), highVal, highOp) {
				idx.bufMgr.UnpinPage(idx.file, leafId, false)
				return common.ErrNoSuchKeyFound
			}
			idx.scan = scanState[K]{
				executing:      true,
				currentPageNum: leafId,
				currentPg:      leafPg,
				nextEntry:      entry,
				lowVal:         lowVal,
				lowOp:          lowOp,
				highVal:        highVal,
				highOp:         highOp,
			}
			return nil
		}

		// Leaf exhausted without a match: release it and follow the
		// sibling chain, which remains pinned only while examined.
		sib := leaf.RightSibPageNo()
		if err := idx.bufMgr.UnpinPage(idx.file, leafId, false); err != nil {
			return err
		}
		if sib == common.InvalidPage {
			return common.ErrNoSuchKeyFound
		}
		leafPg, err = idx.bufMgr.ReadPage(idx.file, sib)
		if err != nil {
			return err
		}
		leafId = sib
		leaf = page.NewLeaf(leafPg, idx.codec)
	}
}

// firstSlotAtOrAfter returns the first occupied slot whose key satisfies
// lowOp against lowVal, or (0, true) if the leaf has no such slot.
func firstSlotAtOrAfter[K any](leaf *page.LeafNode[K], codec page.Codec[K], lowVal K, lowOp common.Operator) (int, bool) {
	occ := leaf.Occupancy()
	for i := 0; i < occ; i++ {
		cmp := codec.Compare(leaf.Key(i), lowVal)
		if lowOp == common.GTE && cmp >= 0 {
			return i, false
		}
		if lowOp == common.GT && cmp > 0 {
			return i, false
		}
	}
	return 0, true
}

func withinHighBound[K any](codec page.Codec[K], key, highVal K, highOp common.Operator) bool {
	cmp := codec.Compare(key, highVal)
	if highOp == common.LTE {
		return cmp <= 0
	}
	return cmp < 0
}

// ScanNext returns the RecordId of the next matching entry, advancing the
// cursor across sibling leaves as needed. Until the scan is exhausted,
// exactly one leaf stays pinned across calls (idx.scan.currentPg); advancing
// to a sibling unpins it and pins the sibling in its place. Once exhausted,
// no leaf is pinned, the scan stays active for EndScan, and every further
// call returns common.ErrIndexScanCompleted.
func (idx *genericIndex[K]) ScanNext() (common.RecordId, error) {
	if idx.closed {
		return common.RecordId{}, common.ErrClosed
	}
	for {
		if !idx.scan.executing {
			return common.RecordId{}, common.ErrScanNotInitialized
		}
		if idx.scan.currentPg == nil {
			return common.RecordId{}, common.ErrIndexScanCompleted
		}

		leaf := page.NewLeaf(idx.scan.currentPg, idx.codec)
		occ := leaf.Occupancy()

		if idx.scan.nextEntry >= occ {
			sib := leaf.RightSibPageNo()
			if err := idx.bufMgr.UnpinPage(idx.file, idx.scan.currentPageNum, false); err != nil {
				return common.RecordId{}, err
			}
			if sib == common.InvalidPage {
				idx.scan.currentPageNum, idx.scan.currentPg = common.InvalidPage, nil
				return common.RecordId{}, common.ErrIndexScanCompleted
			}
			sibPg, err := idx.bufMgr.ReadPage(idx.file, sib)
			if err != nil {
				return common.RecordId{}, err
			}
			idx.scan.currentPageNum = sib
			idx.scan.currentPg = sibPg
			idx.scan.nextEntry = 0
			continue
		}

		key := leaf.Key(idx.scan.nextEntry)
		if !withinHighBound(idx.codec, key, idx.scan.highVal, idx.scan.highOp) {
			if err := idx.bufMgr.UnpinPage(idx.file, idx.scan.currentPageNum, false); err != nil {
				return common.RecordId{}, err
			}
			idx.scan.currentPageNum, idx.scan.currentPg = common.InvalidPage, nil
			return common.RecordId{}, common.ErrIndexScanCompleted
		}

		rid := leaf.Rid(idx.scan.nextEntry)
		idx.scan.nextEntry++
		return rid, nil
	}
}

// EndScan terminates the in-progress scan, unpinning its current leaf if
// the scan still holds one.
func (idx *genericIndex[K]) EndScan() error {
	if idx.closed {
		return common.ErrClosed
	}
	if !idx.scan.executing {
		return common.ErrScanNotInitialized
	}
	var err error
	if idx.scan.currentPg != nil {
		err = idx.bufMgr.UnpinPage(idx.file, idx.scan.currentPageNum, false)
	}
	idx.scan = scanState[K]{}
	return err
}
