package common

import "errors"

// Buffer manager errors. Raised when allocBuf, unPinPage, flushFile or the
// hash directory observe a programmer error rather than an I/O failure.
var (
	// ErrBufferExceeded is raised when allocBuf completes a full clock sweep
	// without finding an unpinned frame.
	ErrBufferExceeded = errors.New("buffer exceeded: no unpinned frame available")

	// ErrPageNotPinned is raised by unPinPage when the target frame already
	// has a pin count of zero.
	ErrPageNotPinned = errors.New("page not pinned")

	// ErrPagePinned is raised by flushFile when it observes a pinned frame
	// in the file being flushed.
	ErrPagePinned = errors.New("page pinned")

	// ErrBadBuffer is raised when a frame marked valid carries an invalid
	// page number, which can never happen under correct bookkeeping.
	ErrBadBuffer = errors.New("bad buffer: valid frame with invalid page number")

	// ErrHashNotFound is raised by a hash directory lookup or remove on a
	// key that isn't registered.
	ErrHashNotFound = errors.New("hash directory: entry not found")
)

// B+Tree scan and index-metadata errors.
var (
	// ErrBadOpcodes is raised by startScan when the supplied comparison
	// operators fall outside {>,>=} for the low bound or {<,<=} for the
	// high bound.
	ErrBadOpcodes = errors.New("bad scan opcodes")

	// ErrBadScanRange is raised by startScan when lowVal > highVal.
	ErrBadScanRange = errors.New("bad scan range: low bound exceeds high bound")

	// ErrNoSuchKeyFound is raised by startScan when no key satisfies the
	// requested bounds.
	ErrNoSuchKeyFound = errors.New("no key satisfies the requested scan bounds")

	// ErrScanNotInitialized is raised by scanNext or endScan when called
	// before a successful startScan.
	ErrScanNotInitialized = errors.New("scan not initialized")

	// ErrIndexScanCompleted is raised by scanNext once the scan has been
	// exhausted.
	ErrIndexScanCompleted = errors.New("index scan completed")

	// ErrBadIndexInfo is raised when an existing index's persisted metadata
	// disagrees with the constructor's arguments.
	ErrBadIndexInfo = errors.New("index metadata disagrees with constructor arguments")
)

// Ambient errors, kept from the storage-engines lineage this package is
// descended from, for the two ambient paths that fall outside the eleven
// buffer/index errors above: calling a closed index, and a paged-file write
// that fails because the underlying disk is full.
var (
	ErrClosed   = errors.New("index closed")
	ErrDiskFull = errors.New("disk full")
)
