package memory

import "fmt"

// Object is the contract for a struct that lives in emulated memory with
// a declared byte layout. ReadFrom and WriteTo must touch exactly the
// declared fields at their declared offsets; Construct-style zero
// initialization is provided generically by Ptr.
type Object interface {
	// MemSize returns the total footprint of the struct in bytes.
	MemSize() uint32
	// ReadFrom loads the struct field by field from the reader.
	ReadFrom(r *Reader) error
	// WriteTo stores the struct field by field to the writer.
	WriteTo(w *Writer) error
}

// Field describes one field of a declared layout.
type Field struct {
	Name string
	Off  uint32
	Size uint32
}

// Layout is the compile-time-declared layout of a struct: its total size
// and every field's offset and size.
type Layout struct {
	Name   string
	Size   uint32
	Fields []Field
}

// Check asserts that no field overlaps another and every field fits in
// the declared size. Layout tables call this from init, so a bad table
// fails at program start rather than at first access.
func (l Layout) Check() {
	for i, f := range l.Fields {
		if f.Off+f.Size > l.Size {
			panic(fmt.Sprintf("layout %s: field %s at 0x%x+0x%x exceeds size 0x%x", l.Name, f.Name, f.Off, f.Size, l.Size))
		}
		for _, g := range l.Fields[i+1:] {
			if f.Off < g.Off+g.Size && g.Off < f.Off+f.Size {
				panic(fmt.Sprintf("layout %s: fields %s and %s overlap", l.Name, f.Name, g.Name))
			}
		}
	}
}

// Ptr is a typed pointer to a struct in emulated memory. The zero value
// is the null pointer.
type Ptr[T any, PT interface {
	*T
	Object
}] struct {
	addr uint64
}

// PtrAt creates a typed pointer from a raw address.
func PtrAt[T any, PT interface {
	*T
	Object
}](addr uint64) Ptr[T, PT] {
	return Ptr[T, PT]{addr: addr}
}

// Raw returns the raw address.
func (p Ptr[T, PT]) Raw() uint64 { return p.addr }

// IsNull reports whether the pointer is null.
func (p Ptr[T, PT]) IsNull() bool { return p.addr == 0 }

// Add returns a pointer advanced by n elements.
func (p Ptr[T, PT]) Add(n uint64) Ptr[T, PT] {
	var t T
	return Ptr[T, PT]{addr: p.addr + n*uint64(PT(&t).MemSize())}
}

// Load reads the pointee from memory.
func (p Ptr[T, PT]) Load(m *Memory) (T, error) {
	var t T
	r, err := m.Reader(p.addr, 0)
	if err != nil {
		return t, err
	}
	err = PT(&t).ReadFrom(r)
	return t, err
}

// Store writes the pointee to memory.
func (p Ptr[T, PT]) Store(v *T, m *Memory) error {
	w, err := m.Writer(p.addr, 0)
	if err != nil {
		return err
	}
	return PT(v).WriteTo(w)
}

// Construct zero-initializes the pointee footprint.
func (p Ptr[T, PT]) Construct(m *Memory) error {
	var t T
	w, err := m.Writer(p.addr, 0)
	if err != nil {
		return err
	}
	return w.WriteZeros(PT(&t).MemSize())
}

// Typed primitive pointers. Field accessors on game structs return these
// so loads and stores stay width-correct.

// U8Ptr points to one byte.
type U8Ptr uint64

func (p U8Ptr) Load(m *Memory) (uint8, error) {
	r, err := m.Reader(uint64(p), 0)
	if err != nil {
		return 0, err
	}
	return r.ReadU8()
}

func (p U8Ptr) Store(v uint8, m *Memory) error {
	w, err := m.Writer(uint64(p), 0)
	if err != nil {
		return err
	}
	return w.WriteU8(v)
}

// BoolPtr points to a one-byte bool.
type BoolPtr uint64

func (p BoolPtr) Load(m *Memory) (bool, error) {
	r, err := m.Reader(uint64(p), 0)
	if err != nil {
		return false, err
	}
	return r.ReadBool()
}

func (p BoolPtr) Store(v bool, m *Memory) error {
	w, err := m.Writer(uint64(p), 0)
	if err != nil {
		return err
	}
	return w.WriteBool(v)
}

// U32Ptr points to a little-endian u32.
type U32Ptr uint64

func (p U32Ptr) Load(m *Memory) (uint32, error) {
	r, err := m.Reader(uint64(p), 0)
	if err != nil {
		return 0, err
	}
	return r.ReadU32()
}

func (p U32Ptr) Store(v uint32, m *Memory) error {
	w, err := m.Writer(uint64(p), 0)
	if err != nil {
		return err
	}
	return w.WriteU32(v)
}

// I32Ptr points to a little-endian i32.
type I32Ptr uint64

func (p I32Ptr) Load(m *Memory) (int32, error) {
	r, err := m.Reader(uint64(p), 0)
	if err != nil {
		return 0, err
	}
	return r.ReadI32()
}

func (p I32Ptr) Store(v int32, m *Memory) error {
	w, err := m.Writer(uint64(p), 0)
	if err != nil {
		return err
	}
	return w.WriteI32(v)
}

// F32Ptr points to an IEEE-754 single.
type F32Ptr uint64

func (p F32Ptr) Load(m *Memory) (float32, error) {
	r, err := m.Reader(uint64(p), 0)
	if err != nil {
		return 0, err
	}
	return r.ReadF32()
}

func (p F32Ptr) Store(v float32, m *Memory) error {
	w, err := m.Writer(uint64(p), 0)
	if err != nil {
		return err
	}
	return w.WriteF32(v)
}

// U64Ptr points to a little-endian u64 (including raw pointers).
type U64Ptr uint64

func (p U64Ptr) Load(m *Memory) (uint64, error) {
	r, err := m.Reader(uint64(p), 0)
	if err != nil {
		return 0, err
	}
	return r.ReadU64()
}

func (p U64Ptr) Store(v uint64, m *Memory) error {
	w, err := m.Writer(uint64(p), 0)
	if err != nil {
		return err
	}
	return w.WriteU64(v)
}

// ReadCString reads a NUL-terminated string of at most maxLen bytes
// starting at addr.
func ReadCString(m *Memory, addr uint64, maxLen uint32) (string, error) {
	r, err := m.Reader(addr, 0)
	if err != nil {
		return "", err
	}
	var buf []byte
	for i := uint32(0); i < maxLen; i++ {
		b, err := r.ReadU8()
		if err != nil {
			return "", err
		}
		if b == 0 {
			break
		}
		buf = append(buf, b)
	}
	return string(buf), nil
}
