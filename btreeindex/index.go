// Package btreeindex implements the paginated B+Tree engine (components
// F-I): root-to-leaf descent with traversal-path recording, insertion with
// leaf/non-leaf splitting and root growth, a range-scan state machine, and
// optional deletion with borrow/merge rebalancing. Every node the engine
// touches lives exclusively as a buffer-pool page.
package btreeindex

import (
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/minireldb/btreeindex/buffer"
	"github.com/minireldb/btreeindex/common"
	"github.com/minireldb/btreeindex/page"
	"github.com/minireldb/btreeindex/storage"
)

// Index is the public, type-erased handle returned by OpenIndex. Its
// methods accept and return keys as `any`; a concrete Index[K] type
// asserts them to K once at this boundary, which is the only place the
// polymorphism over key domains uses runtime dispatch rather than a
// monomorphized generic instantiation (per the Polymorphism design note).
type Index interface {
	// InsertEntry inserts (key, rid). key must be an int32, float64 or
	// common.String10 matching the index's datatype.
	InsertEntry(key any, rid common.RecordId) error

	// StartScan begins a range scan bounded by (lowVal lowOp) and
	// (highVal highOp). Ends any scan already in progress.
	StartScan(lowVal any, lowOp common.Operator, highVal any, highOp common.Operator) error

	// ScanNext returns the next matching RecordId, or
	// common.ErrIndexScanCompleted once the scan is exhausted.
	ScanNext() (common.RecordId, error)

	// EndScan terminates the current scan, unpinning its leaf.
	EndScan() error

	// DeleteEntry removes key, reporting whether it was found.
	DeleteEntry(key any) (bool, error)

	// Close ends any in-progress scan and flushes the index file.
	Close() error
}

// genericIndex[K] is the monomorphized engine for one concrete key domain.
type genericIndex[K any] struct {
	bufMgr *buffer.BufMgr
	file   *storage.PagedFile
	codec  page.Codec[K]
	log    *zap.Logger

	relationName   string
	attrByteOffset int32
	datatype       common.Datatype

	headerPageNum common.PageId
	rootPageNum   common.PageId

	leafCapacity    int
	nonLeafCapacity int

	scan   scanState[K]
	closed bool
}

type scanState[K any] struct {
	executing      bool
	currentPageNum common.PageId
	currentPg      *page.Page
	nextEntry      int
	lowVal         K
	lowOp          common.Operator
	highVal        K
	highOp         common.Operator
}

// OpenIndex opens the index file "<relationName>.<attrByteOffset>" through
// bufMgr, creating it (and writing its IndexMetaInfo + bootstrap root) if it
// does not already exist. dataDir names the directory the file lives in. If
// the file is freshly created, scanner (which may be nil) is drained to
// bulk-populate the index, one insertEntry call per tuple it yields.
func OpenIndex(dataDir, relationName string, attrByteOffset int32, datatype common.Datatype, bufMgr *buffer.BufMgr, log *zap.Logger, scanner common.RelationScanner) (string, Index, error) {
	switch datatype {
	case common.Int:
		return openTyped[int32](dataDir, relationName, attrByteOffset, datatype, page.Int32Codec{}, bufMgr, log, scanner)
	case common.Double:
		return openTyped[float64](dataDir, relationName, attrByteOffset, datatype, page.Float64Codec{}, bufMgr, log, scanner)
	case common.String:
		return openTyped[common.String10](dataDir, relationName, attrByteOffset, datatype, page.String10Codec{}, bufMgr, log, scanner)
	default:
		return "", nil, fmt.Errorf("btreeindex: unknown datatype %v", datatype)
	}
}

func indexFileName(relationName string, attrByteOffset int32) string {
	return fmt.Sprintf("%s.%d", relationName, attrByteOffset)
}

func openTyped[K any](dataDir, relationName string, attrByteOffset int32, datatype common.Datatype, codec page.Codec[K], bufMgr *buffer.BufMgr, log *zap.Logger, scanner common.RelationScanner) (string, Index, error) {
	log = common.OrNop(log)
	name := indexFileName(relationName, attrByteOffset)
	path := dataDir + "/" + name

	f, created, err := storage.OpenOrCreate(path, common.PageSize)
	if err != nil {
		return "", nil, fmt.Errorf("btreeindex: open index file %q: %w", name, err)
	}

	idx := &genericIndex[K]{
		bufMgr:          bufMgr,
		file:            f,
		codec:           codec,
		log:             log,
		relationName:    relationName,
		attrByteOffset:  attrByteOffset,
		datatype:        datatype,
		leafCapacity:    page.LeafCapacity(codec, common.PageSize),
		nonLeafCapacity: page.NonLeafCapacity(codec, common.PageSize),
	}

	if created {
		if err := idx.initNewFile(relationName, attrByteOffset, datatype, scanner); err != nil {
			return "", nil, err
		}
	} else {
		if err := idx.loadExistingFile(relationName, attrByteOffset, datatype); err != nil {
			return "", nil, err
		}
	}

	return name, idx, nil
}

func (idx *genericIndex[K]) initNewFile(relationName string, attrByteOffset int32, datatype common.Datatype, scanner common.RelationScanner) error {
	headerPageNum, headerPg, err := idx.bufMgr.AllocPage(idx.file)
	if err != nil {
		return err
	}
	idx.headerPageNum = headerPageNum

	rootPageNum, rootPg, err := idx.bufMgr.AllocPage(idx.file)
	if err != nil {
		return err
	}
	idx.rootPageNum = rootPageNum
	page.InitNonLeaf(rootPg, idx.codec, 1)

	var meta common.IndexMetaInfo
	copy(meta.RelationName[:], relationName)
	meta.AttrByteOffset = attrByteOffset
	meta.AttrType = datatype
	meta.RootPageNo = rootPageNum
	writeMetaInfo(headerPg, meta)

	if err := idx.bufMgr.UnpinPage(idx.file, headerPageNum, true); err != nil {
		return err
	}
	if err := idx.bufMgr.UnpinPage(idx.file, rootPageNum, true); err != nil {
		return err
	}
	idx.log.Debug("created index file", zap.String("relation", relationName), zap.Int32("attrByteOffset", attrByteOffset))

	if scanner == nil {
		return nil
	}
	return idx.bulkLoad(scanner)
}

// bulkLoad drains scanner, the minimal stand-in for the base-relation
// scanner an index constructor scans on first creation, inserting every
// tuple it yields.
func (idx *genericIndex[K]) bulkLoad(scanner common.RelationScanner) error {
	for {
		value, rid, err := scanner.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("btreeindex: bulk load from relation scanner: %w", err)
		}
		k, ok := value.(K)
		if !ok {
			return fmt.Errorf("btreeindex: bulk load value type %T does not match index datatype %v", value, idx.datatype)
		}
		if err := idx.insertEntry(k, rid); err != nil {
			return err
		}
	}
}

func (idx *genericIndex[K]) loadExistingFile(relationName string, attrByteOffset int32, datatype common.Datatype) error {
	idx.headerPageNum = idx.file.GetFirstPageNo()

	headerPg, err := idx.bufMgr.ReadPage(idx.file, idx.headerPageNum)
	if err != nil {
		return err
	}
	meta := readMetaInfo(headerPg)
	if err := idx.bufMgr.UnpinPage(idx.file, idx.headerPageNum, false); err != nil {
		return err
	}

	storedName := trimNullPadding(meta.RelationName[:])
	if storedName != relationName || meta.AttrByteOffset != attrByteOffset || meta.AttrType != datatype {
		return common.ErrBadIndexInfo
	}
	idx.rootPageNum = meta.RootPageNo
	return nil
}

func trimNullPadding(b []byte) string {
	n := len(b)
	for n > 0 && b[n-1] == 0 {
		n--
	}
	return string(b[:n])
}

func writeMetaInfo(pg *page.Page, meta common.IndexMetaInfo) {
	payload := pg.Payload()
	copy(payload[0:common.RelationNameSize], meta.RelationName[:])
	off := common.RelationNameSize
	putInt32(payload[off:off+4], meta.AttrByteOffset)
	putInt32(payload[off+4:off+8], int32(meta.AttrType))
	putInt32(payload[off+8:off+12], int32(meta.RootPageNo))
}

func readMetaInfo(pg *page.Page) common.IndexMetaInfo {
	payload := pg.Payload()
	var meta common.IndexMetaInfo
	copy(meta.RelationName[:], payload[0:common.RelationNameSize])
	off := common.RelationNameSize
	meta.AttrByteOffset = getInt32(payload[off : off+4])
	meta.AttrType = common.Datatype(getInt32(payload[off+4 : off+8]))
	meta.RootPageNo = common.PageId(getInt32(payload[off+8 : off+12]))
	return meta
}

func (idx *genericIndex[K]) persistRoot() error {
	headerPg, err := idx.bufMgr.ReadPage(idx.file, idx.headerPageNum)
	if err != nil {
		return err
	}
	meta := readMetaInfo(headerPg)
	meta.RootPageNo = idx.rootPageNum
	writeMetaInfo(headerPg, meta)
	return idx.bufMgr.UnpinPage(idx.file, idx.headerPageNum, true)
}

// Close ends any in-progress scan and flushes the index file. Per the error
// handling design, destructors swallow errors; Close returns the first one
// encountered only to aid callers that want to know, but it still performs
// every cleanup step regardless. A second Close call is a no-op returning
// common.ErrClosed.
func (idx *genericIndex[K]) Close() error {
	if idx.closed {
		return common.ErrClosed
	}
	idx.closed = true

	var firstErr error
	if idx.scan.executing {
		if err := idx.EndScan(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := idx.bufMgr.FlushFile(idx.file); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := idx.file.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func (idx *genericIndex[K]) InsertEntry(key any, rid common.RecordId) error {
	if idx.closed {
		return common.ErrClosed
	}
	k, ok := key.(K)
	if !ok {
		return fmt.Errorf("btreeindex: insert key type %T does not match index datatype %v", key, idx.datatype)
	}
	return idx.insertEntry(k, rid)
}

func (idx *genericIndex[K]) DeleteEntry(key any) (bool, error) {
	if idx.closed {
		return false, common.ErrClosed
	}
	k, ok := key.(K)
	if !ok {
		return false, fmt.Errorf("btreeindex: delete key type %T does not match index datatype %v", key, idx.datatype)
	}
	return idx.deleteEntry(k)
}

func (idx *genericIndex[K]) StartScan(lowVal any, lowOp common.Operator, highVal any, highOp common.Operator) error {
	if idx.closed {
		return common.ErrClosed
	}
	lo, ok := lowVal.(K)
	if !ok {
		return fmt.Errorf("btreeindex: scan lowVal type %T does not match index datatype %v", lowVal, idx.datatype)
	}
	hi, ok := highVal.(K)
	if !ok {
		return fmt.Errorf("btreeindex: scan highVal type %T does not match index datatype %v", highVal, idx.datatype)
	}
	return idx.startScan(lo, lowOp, hi, highOp)
}

func putInt32(buf []byte, v int32) {
	buf[0] = byte(v >> 24)
	buf[1] = byte(v >> 16)
	buf[2] = byte(v >> 8)
	buf[3] = byte(v)
}

func getInt32(buf []byte) int32 {
	return int32(uint32(buf[0])<<24 | uint32(buf[1])<<16 | uint32(buf[2])<<8 | uint32(buf[3]))
}
