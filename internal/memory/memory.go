// Package memory implements the emulated process memory: an ordered list
// of page-backed sections with permission and region enforcement,
// clone-on-write process cloning, streaming readers and writers, a bump
// allocator heap, and host-side proxy object pools.
package memory

import (
	"fmt"
	"sort"

	"github.com/zboralski/pouchsim/internal/log"
)

// Memory is the physical memory of the simulated process.
//
// Invariant: sections are sorted by start address and non-overlapping, so
// every in-bounds address resolves to exactly one (section, page, offset)
// triple.
type Memory struct {
	sections []*Section
	heap     *SimpleHeap

	programStart uint64
	mainStart    uint64
	stackEnd     uint64
}

// New creates a memory without a program: heap plus stack only. Used by
// tests and the image-less debug paths.
func New(heapStart uint64, heapSize uint32, heapPreAlloc uint64, stackSize uint32) *Memory {
	heap := NewSimpleHeap(heapStart, heapSize, heapPreAlloc)
	heapSection := heap.CreateSection()
	stackStart := (heapSection.End() + 0x1000 + RegionAlign - 1) &^ (RegionAlign - 1)
	stackSection := NewRegionSection("stack", RegionKindStack, stackStart, stackSize, PermRead|PermWrite|RegionStack)
	m := &Memory{
		sections: []*Section{heapSection, stackSection},
		heap:     heap,
		stackEnd: stackSection.Start + uint64(stackSection.LenBytes()),
	}
	m.sortSections()
	return m
}

// Module describes one module of the program image.
type Module struct {
	Name     string
	RelStart uint32
	Size     uint32
	Regions  []ProgramRegion
}

// NewProgram creates a memory from a program image plus heap and stack.
// mainOffset is the offset of the main module inside the program range.
func NewProgram(programStart uint64, programSize uint32, mainOffset uint32, modules []Module, heap *SimpleHeap, stackStart uint64, stackSize uint32) (*Memory, error) {
	var sections []*Section
	for _, module := range modules {
		moduleStart := programStart + uint64(module.RelStart)
		section, err := NewProgramSection(module.Name, moduleStart, moduleStart, module.Size, module.Regions)
		if err != nil {
			return nil, fmt.Errorf("module %s: %w", module.Name, err)
		}
		sections = append(sections, section)
	}
	sections = append(sections, heap.CreateSection())
	stackSection := NewRegionSection("stack", RegionKindStack, stackStart, stackSize, PermRead|PermWrite|RegionStack)
	sections = append(sections, stackSection)

	m := &Memory{
		sections:     sections,
		heap:         heap,
		programStart: programStart,
		mainStart:    programStart + uint64(mainOffset),
		stackEnd:     stackSection.Start + uint64(stackSection.LenBytes()),
	}
	m.sortSections()
	for i := 1; i < len(m.sections); i++ {
		if m.sections[i-1].End() > m.sections[i].Start {
			return nil, fmt.Errorf("sections %s and %s overlap", m.sections[i-1].Tag, m.sections[i].Tag)
		}
	}
	return m, nil
}

func (m *Memory) sortSections() {
	sort.Slice(m.sections, func(i, j int) bool {
		return m.sections[i].Start < m.sections[j].Start
	})
}

// Clone produces a cheap copy sharing all pages clone-on-write.
func (m *Memory) Clone() *Memory {
	sections := make([]*Section, len(m.sections))
	for i, s := range m.sections {
		sections[i] = s.clone()
	}
	return &Memory{
		sections:     sections,
		heap:         m.heap.clone(),
		programStart: m.programStart,
		mainStart:    m.mainStart,
		stackEnd:     m.stackEnd,
	}
}

// ProgramStart returns the physical start address of the program range.
func (m *Memory) ProgramStart() uint64 { return m.programStart }

// MainStart returns the physical start address of the main module.
func (m *Memory) MainStart() uint64 { return m.mainStart }

// StackEnd returns the exclusive physical end address of the stack.
func (m *Memory) StackEnd() uint64 { return m.stackEnd }

// Heap returns the heap allocator.
func (m *Memory) Heap() *SimpleHeap { return m.heap }

// FormatAddr renders addr as section+offset for diagnostics; out-of-range
// offsets past the section end carry a '~' marker.
func (m *Memory) FormatAddr(addr uint64) string {
	i := sort.Search(len(m.sections), func(i int) bool { return m.sections[i].Start > addr })
	if i == 0 {
		// address is before the first section (probably offsetting off a
		// nullptr)
		return fmt.Sprintf("0x%016x", addr)
	}
	section := m.sections[i-1]
	marker := ""
	if addr >= section.End() {
		marker = "~"
	}
	return fmt.Sprintf("%s+0x%08x%s", section.Tag, addr-section.ModuleStart, marker)
}

func (m *Memory) findSectionIdx(addr uint64) (int, bool) {
	i := sort.Search(len(m.sections), func(i int) bool { return m.sections[i].Start > addr })
	if i == 0 {
		return 0, false
	}
	if m.sections[i-1].End() > addr {
		return i - 1, true
	}
	return 0, false
}

// Calculate resolves addr to (section index, page index, page offset,
// max page offset) and performs the heap, section, region and permission
// checks required by flags.
func (m *Memory) Calculate(addr uint64, flags AccessFlags) (sectionIdx, pageIdx, pageOff, maxPageOff uint32, err error) {
	if !m.heap.CheckAllocated(addr) {
		if StrictHeap {
			return 0, 0, 0, 0, &HeapError{Addr: addr, Flags: flags}
		}
		log.L.Bypassed("accessing unallocated heap address", addr, m.FormatAddr(addr))
	}
	idx, ok := m.findSectionIdx(addr)
	if !ok {
		if StrictSection {
			return 0, 0, 0, 0, &SectionError{Addr: addr, Flags: flags}
		}
		log.L.Bypassed("accessing invalid section", addr, m.FormatAddr(addr))
		return 0, 0, 0, 0, ErrBypassed
	}
	section := m.sections[idx]
	relAddr := addr - section.Start
	pageIdx = uint32(relAddr / PageSize)
	pageOff = uint32(relAddr % PageSize)
	page := section.Page(pageIdx)

	if flags&Force == 0 && !page.Perms().HasAll(flags.Perms()) {
		if StrictPermission {
			return 0, 0, 0, 0, &PermissionError{Addr: addr, Flags: flags}
		}
		log.L.Bypassed("accessing section without permission", addr, m.FormatAddr(addr))
	}
	if StrictSection {
		if regions := flags.Regions(); regions != 0 {
			if regions&section.regionBit(page.Perms()) == 0 {
				return 0, 0, 0, 0, &SectionError{Addr: addr, Flags: flags}
			}
		}
	}

	maxPageOff = m.heap.CheckMaxPageOffset(addr)
	if !StrictHeap {
		maxPageOff = PageSize
	}
	return uint32(idx), pageIdx, pageOff, maxPageOff, nil
}

// PageByIndices returns the page for indices previously produced by
// Calculate.
func (m *Memory) PageByIndices(sectionIdx, pageIdx uint32) *Page {
	return m.sections[sectionIdx].Page(pageIdx)
}

// PageByIndicesMut returns a mutable page for indices previously produced
// by Calculate, cloning the page if it is shared.
func (m *Memory) PageByIndicesMut(sectionIdx, pageIdx uint32) *Page {
	return m.sections[sectionIdx].PageMut(pageIdx)
}

// Reader creates a streaming reader at addr. Region bits in flags
// restrict the access; permission bits are added automatically.
func (m *Memory) Reader(addr uint64, flags AccessFlags) (*Reader, error) {
	flags = PermRead | convertRegionFlags(flags)
	sectionIdx, pageIdx, pageOff, maxPageOff, err := m.Calculate(addr, flags)
	if err != nil {
		return nil, err
	}
	return &Reader{
		memory:     m,
		page:       m.PageByIndices(sectionIdx, pageIdx),
		pageOff:    pageOff,
		maxPageOff: maxPageOff,
		addr:       addr,
		flags:      flags,
	}, nil
}

// ExecReader creates a streaming reader for instruction fetch.
func (m *Memory) ExecReader(addr uint64) (*Reader, error) {
	flags := PermRead | PermExecute | convertRegionFlags(RegionText)
	sectionIdx, pageIdx, pageOff, maxPageOff, err := m.Calculate(addr, flags)
	if err != nil {
		return nil, err
	}
	return &Reader{
		memory:     m,
		page:       m.PageByIndices(sectionIdx, pageIdx),
		pageOff:    pageOff,
		maxPageOff: maxPageOff,
		addr:       addr,
		flags:      flags,
	}, nil
}

// Writer creates a streaming writer at addr.
func (m *Memory) Writer(addr uint64, flags AccessFlags) (*Writer, error) {
	flags = PermWrite | convertRegionFlags(flags)
	sectionIdx, pageIdx, pageOff, maxPageOff, err := m.Calculate(addr, flags)
	if err != nil {
		return nil, err
	}
	return &Writer{
		memory:     m,
		sectionIdx: sectionIdx,
		pageIdx:    pageIdx,
		pageOff:    pageOff,
		maxPageOff: maxPageOff,
		addr:       addr,
		flags:      flags,
	}, nil
}

// Alloc allocates size bytes on the heap.
func (m *Memory) Alloc(size uint32) (uint64, error) {
	return m.heap.Alloc(size)
}

// AllocWith allocates space on the heap for data and copies it there,
// returning the pointer to the copy.
func (m *Memory) AllocWith(data []byte) (uint64, error) {
	ptr, err := m.heap.Alloc(uint32(len(data)))
	if err != nil {
		return 0, err
	}
	w, err := m.Writer(ptr, RegionHeap)
	if err != nil {
		return 0, err
	}
	if err := w.WriteBytes(data); err != nil {
		return 0, err
	}
	return ptr, nil
}

// convertRegionFlags widens the access to all regions unless region bits
// were requested and strict-section is enabled.
func convertRegionFlags(flags AccessFlags) AccessFlags {
	if flags.HasAny(RegionAll) && StrictSection {
		return flags
	}
	return flags | RegionAll
}
