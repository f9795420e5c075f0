// Package storage implements the minimal external "paged file" collaborator
// the buffer manager and B+Tree index are layered over: allocate / read /
// write / dispose a fixed-size page, and report a stable first page number.
// It knows nothing about relations, tuples or B+Tree node layouts — that
// separation follows the component split in the specification this module
// implements (Buffer Manager and B+Tree Engine are the CORE; the paged file
// itself is an external collaborator).
package storage

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"syscall"

	"github.com/minireldb/btreeindex/common"
)

// wrapWriteErr reports common.ErrDiskFull for a write failure caused by
// ENOSPC, preserving the original error otherwise.
func wrapWriteErr(err error) error {
	if errors.Is(err, syscall.ENOSPC) {
		return common.ErrDiskFull
	}
	return err
}

// PagedFile is a single on-disk file accessed exclusively in fixed-size
// pages. It must not mutate a page while a buffer frame holds it — callers
// (the buffer manager) are trusted to respect that contract; PagedFile does
// no caching of its own.
type PagedFile struct {
	mu       sync.Mutex
	f        *os.File
	path     string
	pageSize int
	numPages int32
	freeList []common.PageId
}

// OpenOrCreate opens path if it exists, else creates it. created reports
// which happened. Page numbering always starts at the first page number
// this PagedFile hands out via GetFirstPageNo, here fixed at 0.
func OpenOrCreate(path string, pageSize int) (pf *PagedFile, created bool, err error) {
	if pageSize <= 0 {
		pageSize = common.PageSize
	}

	_, statErr := os.Stat(path)
	created = os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, false, fmt.Errorf("open paged file %q: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, false, fmt.Errorf("stat paged file %q: %w", path, err)
	}

	numPages := int32(info.Size() / int64(pageSize))

	return &PagedFile{
		f:        f,
		path:     path,
		pageSize: pageSize,
		numPages: numPages,
	}, created, nil
}

// GetFirstPageNo is the stable identifier of the first page this file ever
// hands out. This implementation always starts numbering at 0.
func (pf *PagedFile) GetFirstPageNo() common.PageId {
	return 0
}

// NumPages reports how many pages have ever been allocated (freed pages are
// not subtracted; they are eligible for reuse via AllocatePage).
func (pf *PagedFile) NumPages() int32 {
	pf.mu.Lock()
	defer pf.mu.Unlock()
	return pf.numPages
}

// Path returns the filesystem path backing this file.
func (pf *PagedFile) Path() string {
	return pf.path
}

// AllocatePage reserves a new page, reusing a previously disposed page
// number if one is available, and returns its PageId. The page's on-disk
// contents are zeroed.
func (pf *PagedFile) AllocatePage() (common.PageId, error) {
	pf.mu.Lock()
	defer pf.mu.Unlock()

	var pageNo common.PageId
	if n := len(pf.freeList); n > 0 {
		pageNo = pf.freeList[n-1]
		pf.freeList = pf.freeList[:n-1]
	} else {
		pageNo = common.PageId(pf.numPages)
		pf.numPages++
	}

	zero := make([]byte, pf.pageSize)
	if _, err := pf.f.WriteAt(zero, int64(pageNo)*int64(pf.pageSize)); err != nil {
		return common.InvalidPage, fmt.Errorf("allocate page %d in %q: %w", pageNo, pf.path, wrapWriteErr(err))
	}

	return pageNo, nil
}

// ReadPage reads pageNo's full contents into buf, which must have length
// equal to the file's page size.
func (pf *PagedFile) ReadPage(pageNo common.PageId, buf []byte) error {
	pf.mu.Lock()
	defer pf.mu.Unlock()

	if len(buf) != pf.pageSize {
		return fmt.Errorf("read page %d in %q: buffer size %d != page size %d", pageNo, pf.path, len(buf), pf.pageSize)
	}
	if pageNo < 0 || int32(pageNo) >= pf.numPages {
		return fmt.Errorf("read page %d in %q: out of range (numPages=%d)", pageNo, pf.path, pf.numPages)
	}

	_, err := pf.f.ReadAt(buf, int64(pageNo)*int64(pf.pageSize))
	if err != nil {
		return fmt.Errorf("read page %d in %q: %w", pageNo, pf.path, err)
	}
	return nil
}

// WritePage writes buf, which must have length equal to the file's page
// size, to pageNo's on-disk slot.
func (pf *PagedFile) WritePage(pageNo common.PageId, buf []byte) error {
	pf.mu.Lock()
	defer pf.mu.Unlock()

	if len(buf) != pf.pageSize {
		return fmt.Errorf("write page %d in %q: buffer size %d != page size %d", pageNo, pf.path, len(buf), pf.pageSize)
	}
	if pageNo < 0 || int32(pageNo) >= pf.numPages {
		return fmt.Errorf("write page %d in %q: out of range (numPages=%d)", pageNo, pf.path, pf.numPages)
	}

	_, err := pf.f.WriteAt(buf, int64(pageNo)*int64(pf.pageSize))
	if err != nil {
		return fmt.Errorf("write page %d in %q: %w", pageNo, pf.path, wrapWriteErr(err))
	}
	return nil
}

// DisposePage releases pageNo back to the file for reuse by a later
// AllocatePage call. It does not shrink the file.
func (pf *PagedFile) DisposePage(pageNo common.PageId) error {
	pf.mu.Lock()
	defer pf.mu.Unlock()

	if pageNo < 0 || int32(pageNo) >= pf.numPages {
		return fmt.Errorf("dispose page %d in %q: out of range (numPages=%d)", pageNo, pf.path, pf.numPages)
	}
	pf.freeList = append(pf.freeList, pageNo)
	return nil
}

// Close closes the underlying OS file handle.
func (pf *PagedFile) Close() error {
	pf.mu.Lock()
	defer pf.mu.Unlock()
	return pf.f.Close()
}
