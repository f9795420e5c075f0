// Package page implements the fixed-size, raw byte-interpreted page
// container (component A) and the per-key-domain B+Tree node layouts
// (component E). Layouts are fixed, packed and endian-explicit, and every
// byte of a freshly-initialized node is written — never left as undefined
// padding — so that a serialized page has a deterministic byte image.
package page

import (
	"encoding/binary"

	"github.com/minireldb/btreeindex/common"
)

// pageIDHeaderSize is the width, in bytes, of a page's self-identifying
// page-number header.
const pageIDHeaderSize = 4

// Page is a fixed PAGE_SIZE byte buffer whose first four bytes are its own
// page number; the remainder is opaque payload interpreted by the node
// layouts in this package.
type Page struct {
	buf []byte
}

// New allocates a zeroed page of the given size and stamps id into its
// header.
func New(id common.PageId, size int) *Page {
	p := &Page{buf: make([]byte, size)}
	p.SetID(id)
	return p
}

// Wrap reinterprets an existing byte buffer (typically a buffer-pool
// frame's backing array) as a Page. The buffer is not copied.
func Wrap(buf []byte) *Page {
	return &Page{buf: buf}
}

// ID returns the page number stamped in the page's header.
func (p *Page) ID() common.PageId {
	return common.PageId(int32(binary.BigEndian.Uint32(p.buf[0:4])))
}

// SetID overwrites the page's header with id.
func (p *Page) SetID(id common.PageId) {
	binary.BigEndian.PutUint32(p.buf[0:4], uint32(int32(id)))
}

// Payload returns the mutable slice following the page-number header.
func (p *Page) Payload() []byte {
	return p.buf[pageIDHeaderSize:]
}

// Bytes returns the full backing buffer, header included.
func (p *Page) Bytes() []byte {
	return p.buf
}

// Size returns the total page size in bytes, header included.
func (p *Page) Size() int {
	return len(p.buf)
}
