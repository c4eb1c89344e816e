package memory

import (
	"math"

	"github.com/zboralski/pouchsim/internal/log"
)

// Writer streams values into memory. It remembers the section and page
// indices so it can re-request a mutable page after crossing a boundary;
// stores go through PageMut so shared pages are cloned first.
type Writer struct {
	memory *Memory

	sectionIdx uint32
	pageIdx    uint32
	pageOff    uint32
	maxPageOff uint32
	addr       uint64

	page *Page // lazily fetched mutable page

	flags AccessFlags
}

// Addr returns the current physical address of the cursor.
func (w *Writer) Addr() uint64 { return w.addr }

// Skip moves the cursor by n bytes without touching memory.
func (w *Writer) Skip(n uint32) {
	w.pageOff += n
	w.addr += uint64(n)
}

func (w *Writer) prepWrite(n uint32) error {
	if w.pageOff >= w.maxPageOff {
		sectionIdx, pageIdx, pageOff, maxPageOff, err := w.memory.Calculate(w.addr, w.flags)
		if err != nil {
			return err
		}
		w.sectionIdx = sectionIdx
		w.pageIdx = pageIdx
		w.pageOff = pageOff
		w.maxPageOff = maxPageOff
		w.page = nil
	}
	if w.pageOff+n > w.maxPageOff {
		return &BoundaryError{Addr: w.addr, Flags: w.flags}
	}
	if w.page == nil {
		w.page = w.memory.PageByIndicesMut(w.sectionIdx, w.pageIdx)
	}
	return nil
}

func (w *Writer) trace(n uint32, v uint64) {
	if TraceMemory {
		log.L.Debug("st", log.Size(uint64(n*8)), log.Addr(w.addr-uint64(n)), log.Ptr("val", v))
	}
}

// WriteU8 stores one byte and advances the cursor.
func (w *Writer) WriteU8(v uint8) error {
	switch err := w.prepWrite(1); err {
	case nil:
		w.page.WriteU8(w.pageOff, v)
	case ErrBypassed:
	default:
		return err
	}
	w.Skip(1)
	w.trace(1, uint64(v))
	return nil
}

// WriteU16 stores a little-endian u16 and advances the cursor.
func (w *Writer) WriteU16(v uint16) error {
	switch err := w.prepWrite(2); err {
	case nil:
		w.page.WriteU16(w.pageOff, v)
	case ErrBypassed:
	default:
		return err
	}
	w.Skip(2)
	w.trace(2, uint64(v))
	return nil
}

// WriteU32 stores a little-endian u32 and advances the cursor.
func (w *Writer) WriteU32(v uint32) error {
	switch err := w.prepWrite(4); err {
	case nil:
		w.page.WriteU32(w.pageOff, v)
	case ErrBypassed:
	default:
		return err
	}
	w.Skip(4)
	w.trace(4, uint64(v))
	return nil
}

// WriteU64 stores a little-endian u64 and advances the cursor.
func (w *Writer) WriteU64(v uint64) error {
	switch err := w.prepWrite(8); err {
	case nil:
		w.page.WriteU64(w.pageOff, v)
	case ErrBypassed:
	default:
		return err
	}
	w.Skip(8)
	w.trace(8, v)
	return nil
}

// WriteBool stores a bool as one byte.
func (w *Writer) WriteBool(v bool) error {
	if v {
		return w.WriteU8(1)
	}
	return w.WriteU8(0)
}

// WriteI8 stores a signed byte.
func (w *Writer) WriteI8(v int8) error { return w.WriteU8(uint8(v)) }

// WriteI16 stores a little-endian i16.
func (w *Writer) WriteI16(v int16) error { return w.WriteU16(uint16(v)) }

// WriteI32 stores a little-endian i32.
func (w *Writer) WriteI32(v int32) error { return w.WriteU32(uint32(v)) }

// WriteI64 stores a little-endian i64.
func (w *Writer) WriteI64(v int64) error { return w.WriteU64(uint64(v)) }

// WriteF32 stores an IEEE-754 single.
func (w *Writer) WriteF32(v float32) error { return w.WriteU32(math.Float32bits(v)) }

// WriteF64 stores an IEEE-754 double.
func (w *Writer) WriteF64(v float64) error { return w.WriteU64(math.Float64bits(v)) }

// WriteBytes stores the slice byte by byte.
func (w *Writer) WriteBytes(data []byte) error {
	for _, b := range data {
		if err := w.WriteU8(b); err != nil {
			return err
		}
	}
	return nil
}

// WriteZeros stores n zero bytes.
func (w *Writer) WriteZeros(n uint32) error {
	for i := uint32(0); i < n; i++ {
		if err := w.WriteU8(0); err != nil {
			return err
		}
	}
	return nil
}
