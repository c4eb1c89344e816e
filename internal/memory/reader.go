package memory

import (
	"math"

	"github.com/zboralski/pouchsim/internal/log"
)

// Reader streams values out of memory. It caches the current page so the
// memory only has to be consulted again when crossing a page boundary,
// re-checking permissions and region restrictions at that point.
type Reader struct {
	memory *Memory
	page   *Page

	// both pageOff and addr are needed so boundary crossings can be
	// detected without dividing on every read
	pageOff    uint32
	maxPageOff uint32
	addr       uint64

	flags AccessFlags
}

// Addr returns the current physical address of the cursor.
func (r *Reader) Addr() uint64 { return r.addr }

// Skip moves the cursor by n bytes without touching memory. Bounds are
// checked on the next read, so reading the last byte and advancing past
// the end is allowed.
func (r *Reader) Skip(n uint32) {
	r.pageOff += n
	r.addr += uint64(n)
}

// prepRead refreshes the page cache if the cursor crossed the permitted
// window, then verifies n bytes fit in the current page.
func (r *Reader) prepRead(n uint32) error {
	if r.pageOff >= r.maxPageOff {
		sectionIdx, pageIdx, pageOff, maxPageOff, err := r.memory.Calculate(r.addr, r.flags)
		if err != nil {
			return err
		}
		r.page = r.memory.PageByIndices(sectionIdx, pageIdx)
		r.pageOff = pageOff
		r.maxPageOff = maxPageOff
	}
	if r.pageOff+n > r.maxPageOff {
		return &BoundaryError{Addr: r.addr, Flags: r.flags}
	}
	return nil
}

func (r *Reader) trace(n uint32, v uint64) {
	if TraceMemory {
		log.L.Debug("ld", log.Size(uint64(n*8)), log.Addr(r.addr-uint64(n)), log.Ptr("val", v))
	}
}

// ReadU8 reads one byte and advances the cursor.
func (r *Reader) ReadU8() (uint8, error) {
	var v uint8
	switch err := r.prepRead(1); err {
	case nil:
		v = r.page.ReadU8(r.pageOff)
	case ErrBypassed:
	default:
		return 0, err
	}
	r.Skip(1)
	r.trace(1, uint64(v))
	return v, nil
}

// ReadU16 reads a little-endian u16 and advances the cursor.
func (r *Reader) ReadU16() (uint16, error) {
	var v uint16
	switch err := r.prepRead(2); err {
	case nil:
		v = r.page.ReadU16(r.pageOff)
	case ErrBypassed:
	default:
		return 0, err
	}
	r.Skip(2)
	r.trace(2, uint64(v))
	return v, nil
}

// ReadU32 reads a little-endian u32 and advances the cursor.
func (r *Reader) ReadU32() (uint32, error) {
	var v uint32
	switch err := r.prepRead(4); err {
	case nil:
		v = r.page.ReadU32(r.pageOff)
	case ErrBypassed:
	default:
		return 0, err
	}
	r.Skip(4)
	r.trace(4, uint64(v))
	return v, nil
}

// ReadU64 reads a little-endian u64 and advances the cursor.
func (r *Reader) ReadU64() (uint64, error) {
	var v uint64
	switch err := r.prepRead(8); err {
	case nil:
		v = r.page.ReadU64(r.pageOff)
	case ErrBypassed:
	default:
		return 0, err
	}
	r.Skip(8)
	r.trace(8, v)
	return v, nil
}

// ReadBool reads one byte and returns its lowest bit.
func (r *Reader) ReadBool() (bool, error) {
	v, err := r.ReadU8()
	return v&1 == 1, err
}

// ReadI8 reads a signed byte.
func (r *Reader) ReadI8() (int8, error) {
	v, err := r.ReadU8()
	return int8(v), err
}

// ReadI16 reads a little-endian i16.
func (r *Reader) ReadI16() (int16, error) {
	v, err := r.ReadU16()
	return int16(v), err
}

// ReadI32 reads a little-endian i32.
func (r *Reader) ReadI32() (int32, error) {
	v, err := r.ReadU32()
	return int32(v), err
}

// ReadI64 reads a little-endian i64.
func (r *Reader) ReadI64() (int64, error) {
	v, err := r.ReadU64()
	return int64(v), err
}

// ReadF32 reads an IEEE-754 single.
func (r *Reader) ReadF32() (float32, error) {
	v, err := r.ReadU32()
	return math.Float32frombits(v), err
}

// ReadF64 reads an IEEE-754 double.
func (r *Reader) ReadF64() (float64, error) {
	v, err := r.ReadU64()
	return math.Float64frombits(v), err
}

// ReadBytes reads n bytes into a fresh slice.
func (r *Reader) ReadBytes(n uint32) ([]byte, error) {
	out := make([]byte, 0, n)
	for i := uint32(0); i < n; i++ {
		b, err := r.ReadU8()
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}
