package memory

import (
	"testing"
)

func newTestMemory(t *testing.T) *Memory {
	t.Helper()
	return New(0x10000000, 0x100000, 0x1000, 0x40000)
}

func TestReadWriteRoundTrip(t *testing.T) {
	m := newTestMemory(t)
	addr, err := m.Alloc(64)
	if err != nil {
		t.Fatalf("alloc: %v", err)
	}

	w, err := m.Writer(addr, 0)
	if err != nil {
		t.Fatalf("writer: %v", err)
	}
	if err := w.WriteU64(0x123456789ABCDEF0); err != nil {
		t.Fatalf("write u64: %v", err)
	}
	if err := w.WriteU32(0xCAFEBABE); err != nil {
		t.Fatalf("write u32: %v", err)
	}
	if err := w.WriteI32(-42); err != nil {
		t.Fatalf("write i32: %v", err)
	}
	if err := w.WriteF32(1.5); err != nil {
		t.Fatalf("write f32: %v", err)
	}
	if err := w.WriteBool(true); err != nil {
		t.Fatalf("write bool: %v", err)
	}

	r, err := m.Reader(addr, 0)
	if err != nil {
		t.Fatalf("reader: %v", err)
	}
	if v, _ := r.ReadU64(); v != 0x123456789ABCDEF0 {
		t.Errorf("u64 mismatch: 0x%x", v)
	}
	if v, _ := r.ReadU32(); v != 0xCAFEBABE {
		t.Errorf("u32 mismatch: 0x%x", v)
	}
	if v, _ := r.ReadI32(); v != -42 {
		t.Errorf("i32 mismatch: %d", v)
	}
	if v, _ := r.ReadF32(); v != 1.5 {
		t.Errorf("f32 mismatch: %v", v)
	}
	if v, _ := r.ReadBool(); !v {
		t.Errorf("bool mismatch")
	}
}

func TestReaderCrossesPageBoundary(t *testing.T) {
	m := newTestMemory(t)
	// allocate enough to span two pages
	addr, err := m.Alloc(2 * PageSize)
	if err != nil {
		t.Fatalf("alloc: %v", err)
	}
	last := addr + PageSize - 1
	w, err := m.Writer(last, 0)
	if err != nil {
		t.Fatalf("writer: %v", err)
	}
	if err := w.WriteU8(0xAA); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.WriteU8(0xBB); err != nil {
		t.Fatalf("write across boundary: %v", err)
	}

	r, err := m.Reader(last, 0)
	if err != nil {
		t.Fatalf("reader: %v", err)
	}
	if v, _ := r.ReadU8(); v != 0xAA {
		t.Errorf("before boundary: 0x%x", v)
	}
	if v, _ := r.ReadU8(); v != 0xBB {
		t.Errorf("after boundary: 0x%x", v)
	}
}

func TestSkipPastEndThenNoRead(t *testing.T) {
	m := newTestMemory(t)
	addr, _ := m.Alloc(16)
	r, err := m.Reader(addr, 0)
	if err != nil {
		t.Fatalf("reader: %v", err)
	}
	// reading the last byte then advancing past the end is allowed as
	// long as no further read happens
	r.Skip(15)
	if _, err := r.ReadU8(); err != nil {
		t.Fatalf("read last byte: %v", err)
	}
	r.Skip(1)
}

func TestAddressResolutionUnique(t *testing.T) {
	m := newTestMemory(t)
	for _, s := range m.sections {
		for addr := s.Start; addr < s.End(); addr += PageSize / 2 {
			idx, ok := m.findSectionIdx(addr)
			if !ok {
				t.Fatalf("address 0x%x in section %s did not resolve", addr, s.Tag)
			}
			if m.sections[idx] != s {
				t.Fatalf("address 0x%x resolved to %s, want %s", addr, m.sections[idx].Tag, s.Tag)
			}
		}
	}
}

func TestSectionsSortedNonOverlapping(t *testing.T) {
	m := newTestMemory(t)
	for i := 1; i < len(m.sections); i++ {
		prev, cur := m.sections[i-1], m.sections[i]
		if prev.Start >= cur.Start {
			t.Fatalf("sections not sorted: %s >= %s", prev.Tag, cur.Tag)
		}
		if prev.End() > cur.Start {
			t.Fatalf("sections overlap: %s and %s", prev.Tag, cur.Tag)
		}
	}
}

func TestCloneIsCopyOnWrite(t *testing.T) {
	m := newTestMemory(t)
	addr, _ := m.Alloc(256)
	w, _ := m.Writer(addr, 0)
	if err := w.WriteU64(0x1111111111111111); err != nil {
		t.Fatalf("write: %v", err)
	}

	clone := m.Clone()

	// mutate the original
	w, _ = m.Writer(addr, 0)
	if err := w.WriteU64(0x2222222222222222); err != nil {
		t.Fatalf("write after clone: %v", err)
	}

	r, _ := clone.Reader(addr, 0)
	if v, _ := r.ReadU64(); v != 0x1111111111111111 {
		t.Errorf("clone saw mutation: 0x%x", v)
	}
	r, _ = m.Reader(addr, 0)
	if v, _ := r.ReadU64(); v != 0x2222222222222222 {
		t.Errorf("original lost mutation: 0x%x", v)
	}

	// untouched pages must remain byte-identical in both copies
	other, _ := m.Alloc(16)
	_ = other
	r1, _ := m.Reader(addr+PageSize, 0)
	r2, _ := clone.Reader(addr+PageSize, 0)
	v1, _ := r1.ReadU64()
	v2, _ := r2.ReadU64()
	if v1 != v2 {
		t.Errorf("untouched page diverged: 0x%x vs 0x%x", v1, v2)
	}
}

func TestStrictHeapRejectsUnallocated(t *testing.T) {
	old := StrictHeap
	StrictHeap = true
	defer func() { StrictHeap = old }()

	m := newTestMemory(t)
	// an address inside the heap but past the watermark
	bad := m.Heap().Start() + 0x80000
	if _, err := m.Reader(bad, 0); err == nil {
		t.Fatalf("expected HeapError reading unallocated heap")
	} else if _, ok := err.(*HeapError); !ok {
		t.Fatalf("expected *HeapError, got %T: %v", err, err)
	}
}

func TestStrictPermissionOnProgramPages(t *testing.T) {
	oldPerm := StrictPermission
	StrictPermission = true
	defer func() { StrictPermission = oldPerm }()

	heap := NewSimpleHeap(0x10000000, 0x100000, 0)
	code := make([]byte, PageSize)
	m, err := NewProgram(0x8000000, 2*PageSize, 0, []Module{{
		Name:     "main",
		RelStart: 0,
		Size:     2 * PageSize,
		Regions: []ProgramRegion{
			{RelStart: 0, Perms: 0x5, Data: code},        // r-x
			{RelStart: PageSize, Perms: 0x4, Data: code}, // r--
		},
	}}, heap, 0x20000000, 0x10000)
	if err != nil {
		t.Fatalf("new program: %v", err)
	}

	if _, err := m.Writer(0x8000000, 0); err == nil {
		t.Fatalf("expected PermissionError writing to text page")
	} else if _, ok := err.(*PermissionError); !ok {
		t.Fatalf("expected *PermissionError, got %T", err)
	}

	// Force bypasses the permission check
	if _, _, _, _, err := m.Calculate(0x8000000, PermWrite|Force|RegionAll); err != nil {
		t.Fatalf("forced access failed: %v", err)
	}

	if _, err := m.ExecReader(0x8000000 + PageSize); err == nil {
		t.Fatalf("expected PermissionError executing rodata page")
	}
}

func TestFormatAddr(t *testing.T) {
	m := newTestMemory(t)
	got := m.FormatAddr(m.Heap().Start() + 0x20)
	if got != "heap+0x00000020" {
		t.Errorf("format addr: %q", got)
	}
	if got := m.FormatAddr(0x10); got != "0x0000000000000010" {
		t.Errorf("before first section: %q", got)
	}
}

func TestAllocWith(t *testing.T) {
	m := newTestMemory(t)
	data := []byte{1, 2, 3, 4, 5}
	ptr, err := m.AllocWith(data)
	if err != nil {
		t.Fatalf("alloc with: %v", err)
	}
	r, _ := m.Reader(ptr, 0)
	got, err := r.ReadBytes(5)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	for i := range data {
		if got[i] != data[i] {
			t.Fatalf("byte %d mismatch: %d != %d", i, got[i], data[i])
		}
	}
}

func TestLayoutCheck(t *testing.T) {
	good := Layout{
		Name: "good",
		Size: 0x10,
		Fields: []Field{
			{Name: "a", Off: 0x0, Size: 0x8},
			{Name: "b", Off: 0x8, Size: 0x4},
		},
	}
	good.Check()

	defer func() {
		if recover() == nil {
			t.Fatalf("overlapping layout did not panic")
		}
	}()
	bad := Layout{
		Name: "bad",
		Size: 0x10,
		Fields: []Field{
			{Name: "a", Off: 0x0, Size: 0x8},
			{Name: "b", Off: 0x4, Size: 0x4},
		},
	}
	bad.Check()
}
