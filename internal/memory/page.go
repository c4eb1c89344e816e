package memory

import (
	"encoding/binary"
	"sync/atomic"
)

// PageSize is the size of one physical page.
const PageSize = 0x1000

// RegionAlign is the required alignment for section start addresses.
const RegionAlign = 0x10000

// Page is one fixed-size block of physical memory. Pages are shared
// between cloned processes and copied on first mutation; the reference
// count tracks how many sections currently point at the page.
type Page struct {
	perms AccessFlags
	refs  atomic.Int32
	data  []byte
}

// NewZeroPage creates a zero-filled page with the given permissions.
func NewZeroPage(perms AccessFlags) *Page {
	p := &Page{perms: perms, data: make([]byte, PageSize)}
	p.refs.Store(1)
	return p
}

// NewPageFrom creates a page initialized from data, zero-padded to
// PageSize. data longer than a page is truncated.
func NewPageFrom(data []byte, perms AccessFlags) *Page {
	p := NewZeroPage(perms)
	copy(p.data, data)
	return p
}

// Perms returns the page's own permission set.
func (p *Page) Perms() AccessFlags { return p.perms }

func (p *Page) acquire() *Page {
	p.refs.Add(1)
	return p
}

func (p *Page) release() {
	p.refs.Add(-1)
}

// shared reports whether more than one section references the page.
func (p *Page) shared() bool { return p.refs.Load() > 1 }

// clone produces a private copy with a reference count of one.
func (p *Page) clone() *Page {
	n := &Page{perms: p.perms, data: make([]byte, PageSize)}
	copy(n.data, p.data)
	n.refs.Store(1)
	return n
}

// The fixed-width accessors below are the only way page bytes are read
// and written; offsets are validated by the caller (Reader/Writer).

func (p *Page) ReadU8(off uint32) uint8 { return p.data[off] }

func (p *Page) ReadU16(off uint32) uint16 {
	return binary.LittleEndian.Uint16(p.data[off:])
}

func (p *Page) ReadU32(off uint32) uint32 {
	return binary.LittleEndian.Uint32(p.data[off:])
}

func (p *Page) ReadU64(off uint32) uint64 {
	return binary.LittleEndian.Uint64(p.data[off:])
}

func (p *Page) WriteU8(off uint32, v uint8) { p.data[off] = v }

func (p *Page) WriteU16(off uint32, v uint16) {
	binary.LittleEndian.PutUint16(p.data[off:], v)
}

func (p *Page) WriteU32(off uint32, v uint32) {
	binary.LittleEndian.PutUint32(p.data[off:], v)
}

func (p *Page) WriteU64(off uint32, v uint64) {
	binary.LittleEndian.PutUint64(p.data[off:], v)
}

// Bytes returns the page contents for read-only inspection.
func (p *Page) Bytes() []byte { return p.data }
