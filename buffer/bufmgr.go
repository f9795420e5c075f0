// Package buffer implements the pinning page cache (components C and D):
// a fixed-size frame table, a per-(file,pageNo) hash directory, and
// clock-sweep (second-chance) eviction. It is deliberately synchronization
// free — the specification this module implements mandates single-threaded
// use: no locks, no atomics, no concurrent readers.
package buffer

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/minireldb/btreeindex/common"
	"github.com/minireldb/btreeindex/page"
	"github.com/minireldb/btreeindex/storage"
)

// frame is a single buffer-pool slot. Invariant: valid => (file,pageNo) is
// registered in the hash directory and maps to this frame's index;
// !valid => pinCnt == 0 && !dirty.
type frame struct {
	file   *storage.PagedFile
	pageNo common.PageId
	pinCnt int
	dirty  bool
	valid  bool
	refBit bool
	buf    []byte
}

// dirKey is the hash-directory key: a file identity (pointer equality, per
// the "any stable identity" design note) paired with a page number.
type dirKey struct {
	file   *storage.PagedFile
	pageNo common.PageId
}

// BufMgr is the buffer manager: a fixed pool of frames, a hash directory,
// and a clock hand.
type BufMgr struct {
	pageSize  int
	frames    []frame
	dir       map[dirKey]int
	clockHand int
	log       *zap.Logger
}

// New constructs a buffer manager with the given number of frames. numBufs
// must be positive.
func New(numBufs, pageSize int, log *zap.Logger) (*BufMgr, error) {
	if numBufs <= 0 {
		return nil, fmt.Errorf("buffer manager: numBufs must be positive, got %d", numBufs)
	}
	if pageSize <= 0 {
		pageSize = common.PageSize
	}

	frames := make([]frame, numBufs)
	for i := range frames {
		frames[i].buf = make([]byte, pageSize)
		frames[i].pageNo = common.InvalidPage
	}

	return &BufMgr{
		pageSize:  pageSize,
		frames:    frames,
		dir:       make(map[dirKey]int, (numBufs*12)/10+1),
		clockHand: numBufs - 1,
		log:       common.OrNop(log),
	}, nil
}

// NumBufs reports the fixed frame-table size.
func (bm *BufMgr) NumBufs() int { return len(bm.frames) }

func (bm *BufMgr) advanceClock() {
	bm.clockHand = (bm.clockHand + 1) % len(bm.frames)
}

// allocBuf runs the clock-sweep replacement algorithm and returns the index
// of a free or victim frame. A frame with pinCnt == 0 and refBit == false is
// an immediate victim; a frame with refBit == true has its bit cleared and
// is given a second chance. Two full revolutions of the clock hand are
// always enough to find a victim if one exists (the first clears every
// live refBit, the second collects whichever frame's refBit survived
// false); failing that, every frame is pinned and allocation fails.
func (bm *BufMgr) allocBuf() (int, error) {
	n := len(bm.frames)
	for visited := 0; visited < 2*n+1; visited++ {
		bm.advanceClock()
		f := &bm.frames[bm.clockHand]

		if !f.valid {
			return bm.clockHand, nil
		}
		if f.pinCnt == 0 {
			if !f.refBit {
				if err := bm.evict(bm.clockHand); err != nil {
					return 0, err
				}
				return bm.clockHand, nil
			}
			f.refBit = false
		}
	}
	return 0, common.ErrBufferExceeded
}

// evict deregisters frame i from the hash directory, writing it back if
// dirty, and clears it.
func (bm *BufMgr) evict(i int) error {
	f := &bm.frames[i]
	if f.dirty {
		if err := f.file.WritePage(f.pageNo, f.buf); err != nil {
			return fmt.Errorf("buffer manager: evict frame %d: %w", i, err)
		}
	}
	bm.log.Debug("evict frame", zap.Int("frame", i), zap.Int32("pageNo", int32(f.pageNo)), zap.Bool("wasDirty", f.dirty))
	delete(bm.dir, dirKey{f.file, f.pageNo})
	bm.clearFrame(i)
	return nil
}

func (bm *BufMgr) clearFrame(i int) {
	f := &bm.frames[i]
	f.valid = false
	f.dirty = false
	f.pinCnt = 0
	f.refBit = false
	f.file = nil
	f.pageNo = common.InvalidPage
}

// ReadPage returns the page (file,pageNo), pinning it. A directory hit
// bumps refBit and increments pinCnt; a miss allocates a victim frame, asks
// file to read the page, and installs it pinned once.
func (bm *BufMgr) ReadPage(file *storage.PagedFile, pageNo common.PageId) (*page.Page, error) {
	key := dirKey{file, pageNo}
	if i, ok := bm.dir[key]; ok {
		f := &bm.frames[i]
		f.refBit = true
		f.pinCnt++
		return page.Wrap(f.buf), nil
	}

	i, err := bm.allocBuf()
	if err != nil {
		return nil, err
	}
	f := &bm.frames[i]
	if err := file.ReadPage(pageNo, f.buf); err != nil {
		return nil, fmt.Errorf("buffer manager: read page %d: %w", pageNo, err)
	}
	f.file = file
	f.pageNo = pageNo
	f.pinCnt = 1
	f.dirty = false
	f.refBit = true
	f.valid = true
	bm.dir[key] = i

	return page.Wrap(f.buf), nil
}

// AllocPage asks file to allocate a fresh page and returns it pinned once
// and marked dirty (its contents are new and must eventually be written
// back).
func (bm *BufMgr) AllocPage(file *storage.PagedFile) (common.PageId, *page.Page, error) {
	pageNo, err := file.AllocatePage()
	if err != nil {
		return common.InvalidPage, nil, err
	}

	i, err := bm.allocBuf()
	if err != nil {
		return common.InvalidPage, nil, err
	}
	f := &bm.frames[i]
	for j := range f.buf {
		f.buf[j] = 0
	}
	f.file = file
	f.pageNo = pageNo
	f.pinCnt = 1
	f.dirty = true
	f.refBit = true
	f.valid = true
	bm.dir[dirKey{file, pageNo}] = i

	pg := page.Wrap(f.buf)
	pg.SetID(pageNo)
	return pageNo, pg, nil
}

// UnpinPage decrements the pin count of (file,pageNo). dirtyHint is
// sticky-ORed into the frame's dirty flag.
func (bm *BufMgr) UnpinPage(file *storage.PagedFile, pageNo common.PageId, dirtyHint bool) error {
	i, ok := bm.dir[dirKey{file, pageNo}]
	if !ok {
		return common.ErrHashNotFound
	}
	f := &bm.frames[i]
	if f.pinCnt == 0 {
		return common.ErrPageNotPinned
	}
	f.pinCnt--
	f.dirty = f.dirty || dirtyHint
	return nil
}

// FlushFile writes back every dirty frame belonging to file and deregisters
// all of its frames. Any frame of file still pinned, or marked valid with
// an invalid page number, is a programmer error.
func (bm *BufMgr) FlushFile(file *storage.PagedFile) error {
	for i := range bm.frames {
		f := &bm.frames[i]
		if !f.valid || f.file != file {
			continue
		}
		if f.pinCnt > 0 {
			return common.ErrPagePinned
		}
		if f.pageNo == common.InvalidPage {
			return common.ErrBadBuffer
		}
		if f.dirty {
			if err := file.WritePage(f.pageNo, f.buf); err != nil {
				return fmt.Errorf("buffer manager: flush page %d: %w", f.pageNo, err)
			}
		}
		delete(bm.dir, dirKey{file, f.pageNo})
		bm.clearFrame(i)
	}
	bm.log.Debug("flush file")
	return nil
}

// DisposePage deregisters (file,pageNo) if cached and asks file to free it.
func (bm *BufMgr) DisposePage(file *storage.PagedFile, pageNo common.PageId) error {
	key := dirKey{file, pageNo}
	if i, ok := bm.dir[key]; ok {
		delete(bm.dir, key)
		bm.clearFrame(i)
	}
	return file.DisposePage(pageNo)
}

// PrintSelf is a diagnostic dump of every valid frame's state.
func (bm *BufMgr) PrintSelf() {
	for i := range bm.frames {
		f := &bm.frames[i]
		if !f.valid {
			continue
		}
		fmt.Printf("frame %d: pageNo=%d pinCnt=%d dirty=%v refBit=%v\n", i, f.pageNo, f.pinCnt, f.dirty, f.refBit)
	}
}
