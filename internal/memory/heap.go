package memory

import "sort"

// SimpleHeap is a bump allocator inside one heap section. It keeps a
// whitelist of allocated ranges so unallocated-heap accesses can be
// diagnosed in strict-heap mode.
type SimpleHeap struct {
	start uint64
	size  uint32
	next  uint64

	// allocated ranges, sorted by start
	ranges []heapRange
}

type heapRange struct {
	start uint64
	end   uint64
}

// NewSimpleHeap creates a heap at start with the given capacity.
// preAlloc bytes are allocated up front so fixed singleton addresses can
// be reserved before the first dynamic allocation.
func NewSimpleHeap(start uint64, size uint32, preAlloc uint64) *SimpleHeap {
	h := &SimpleHeap{start: start, size: size, next: start}
	if preAlloc > 0 {
		h.next = start + preAlloc
		h.ranges = append(h.ranges, heapRange{start: start, end: h.next})
	}
	return h
}

// Start returns the physical start address of the heap.
func (h *SimpleHeap) Start() uint64 { return h.start }

// End returns the exclusive end address of the heap capacity.
func (h *SimpleHeap) End() uint64 { return h.start + uint64(h.size) }

// CreateSection builds the memory section backing this heap.
func (h *SimpleHeap) CreateSection() *Section {
	return NewRegionSection("heap", RegionKindHeap, h.start, h.size, PermRead|PermWrite|RegionHeap)
}

// Alloc bumps the high-water mark by size (16-byte aligned) and records
// the range.
func (h *SimpleHeap) Alloc(size uint32) (uint64, error) {
	if size == 0 {
		size = 16
	}
	aligned := uint64(size+15) &^ 15
	addr := h.next
	if addr+aligned > h.End() {
		return 0, &HeapExhaustedError{Size: size}
	}
	h.next = addr + aligned
	h.ranges = append(h.ranges, heapRange{start: addr, end: addr + uint64(size)})
	return addr, nil
}

// CheckAllocated reports whether addr is outside the heap, or inside an
// allocated range. Only addresses inside the heap but outside every
// allocated range fail the check.
func (h *SimpleHeap) CheckAllocated(addr uint64) bool {
	if addr < h.start || addr >= h.End() {
		return true
	}
	i := sort.Search(len(h.ranges), func(i int) bool { return h.ranges[i].end > addr })
	return i < len(h.ranges) && h.ranges[i].start <= addr
}

// CheckMaxPageOffset returns the exclusive page offset a streaming access
// starting at addr may reach before it has to re-consult the memory. For
// heap addresses inside an allocated range ending mid-page, that is the
// offset of the range end; everywhere else it is PageSize.
func (h *SimpleHeap) CheckMaxPageOffset(addr uint64) uint32 {
	if addr < h.start || addr >= h.End() {
		return PageSize
	}
	i := sort.Search(len(h.ranges), func(i int) bool { return h.ranges[i].end > addr })
	if i >= len(h.ranges) || h.ranges[i].start > addr {
		return PageSize
	}
	pageBase := addr &^ (PageSize - 1)
	if h.ranges[i].end >= pageBase+PageSize {
		return PageSize
	}
	return uint32(h.ranges[i].end - pageBase)
}

// clone copies the allocator bookkeeping (the backing section is cloned
// separately by the owning Memory).
func (h *SimpleHeap) clone() *SimpleHeap {
	n := *h
	n.ranges = make([]heapRange, len(h.ranges))
	copy(n.ranges, h.ranges)
	return &n
}
