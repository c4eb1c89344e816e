package memory

import "fmt"

// RegionKind classifies a section for tracking and diagnostics. The
// console does not order regions program -> heap -> stack like a regular
// OS; these are physical memory blocks that can be in any order.
type RegionKind int

const (
	// RegionKindProgram holds the program segments.
	RegionKindProgram RegionKind = iota
	// RegionKindStack holds the single simulated thread's stack.
	RegionKindStack
	// RegionKindHeap holds the simulated heap.
	RegionKindHeap
)

func (k RegionKind) String() string {
	switch k {
	case RegionKindProgram:
		return "program"
	case RegionKindStack:
		return "stack"
	case RegionKindHeap:
		return "heap"
	default:
		return "unknown"
	}
}

// ProgramRegion describes one permission-homogeneous slice of the program
// image, relative to the start of its module.
type ProgramRegion struct {
	RelStart uint32
	Perms    uint32 // r=4 w=2 x=1
	Data     []byte
}

// Section is a contiguous block of physical memory with a start address
// aligned to RegionAlign and a fixed capacity. Cloning a section clones
// the page table; page contents are clone-on-write.
type Section struct {
	// Tag names the module or region for diagnostics.
	Tag string
	// Kind is the region classification.
	Kind RegionKind
	// Flags are the section's permission and region bits.
	Flags AccessFlags
	// Start is the physical start address, aligned to RegionAlign.
	Start uint64
	// Capacity is the section size in bytes.
	Capacity uint32
	// ModuleStart is the physical address the Tag offset is relative to
	// when formatting addresses.
	ModuleStart uint64

	pages []*Page
}

func alignDown(v uint64, align uint64) uint64 { return v &^ (align - 1) }

func alignUp32(v uint32, align uint32) uint32 { return (v + align - 1) &^ (align - 1) }

// NewRegionSection creates a dynamic RW section for stack or heap. All
// pages are pre-allocated; the simulated program is small.
func NewRegionSection(tag string, kind RegionKind, start uint64, size uint32, flags AccessFlags) *Section {
	start = alignDown(start, RegionAlign)
	numPages := alignUp32(size, PageSize) / PageSize
	pages := make([]*Page, 0, numPages)
	for i := uint32(0); i < numPages; i++ {
		pages = append(pages, NewZeroPage(flags.Perms()))
	}
	return &Section{
		Tag:         tag,
		Kind:        kind,
		Flags:       flags,
		Start:       start,
		Capacity:    size,
		ModuleStart: start,
		pages:       pages,
	}
}

// NewProgramSection creates a section for one module of the program
// image. Pages are allocated eagerly; gaps between image regions are
// zero-filled with no permissions so they stay inaccessible.
func NewProgramSection(tag string, start, moduleStart uint64, size uint32, regions []ProgramRegion) (*Section, error) {
	start = alignDown(start, RegionAlign)
	flags := AccessFlags(0)
	var pages []*Page
	current := uint32(0)
	for _, region := range regions {
		regionStart := region.RelStart &^ (PageSize - 1)
		if current > regionStart {
			return nil, fmt.Errorf("program image has overlapping regions: current 0x%08x > next 0x%08x", current, regionStart)
		}
		for current < regionStart {
			pages = append(pages, NewZeroPage(0))
			current += PageSize
		}
		perms := PermsFromBits(region.Perms)
		flags |= perms
		dataLen := uint32(len(region.Data))
		numPages := alignUp32(dataLen, PageSize) / PageSize
		for i := uint32(0); i < numPages; i++ {
			s := i * PageSize
			e := min((i+1)*PageSize, dataLen)
			pages = append(pages, NewPageFrom(region.Data[s:e], perms))
			current += PageSize
		}
	}
	for current < size {
		pages = append(pages, NewZeroPage(0))
		current += PageSize
	}
	return &Section{
		Tag:         tag,
		Kind:        RegionKindProgram,
		Flags:       flags | RegionProgram,
		Start:       start,
		Capacity:    size,
		ModuleStart: moduleStart,
		pages:       pages,
	}, nil
}

// End returns the exclusive physical end address of the section.
func (s *Section) End() uint64 { return s.Start + uint64(s.Capacity) }

// LenBytes returns the allocated size of the section in bytes.
func (s *Section) LenBytes() uint32 { return uint32(len(s.pages)) * PageSize }

// Contains reports whether addr falls in the section's reserved range.
func (s *Section) Contains(addr uint64) bool {
	return addr >= s.Start && addr < s.End()
}

// Page returns the page at the given index for reading.
func (s *Section) Page(idx uint32) *Page { return s.pages[idx] }

// PageMut returns the page at the given index for mutation, cloning it
// first if it is currently shared with another process.
func (s *Section) PageMut(idx uint32) *Page {
	p := s.pages[idx]
	if p.shared() {
		n := p.clone()
		p.release()
		s.pages[idx] = n
		return n
	}
	return p
}

// clone shares all pages with the receiver.
func (s *Section) clone() *Section {
	pages := make([]*Page, len(s.pages))
	for i, p := range s.pages {
		pages[i] = p.acquire()
	}
	n := *s
	n.pages = pages
	return &n
}

// regionBit maps the section to the access-flag region bit an access must
// carry (or have none of) to touch it.
func (s *Section) regionBit(pagePerms AccessFlags) AccessFlags {
	switch s.Kind {
	case RegionKindStack:
		return RegionStack
	case RegionKindHeap:
		return RegionHeap
	default:
		// program: classify by page permissions
		switch {
		case pagePerms&PermExecute != 0:
			return RegionText
		case pagePerms&PermWrite != 0:
			return RegionData
		default:
			return RegionRodata
		}
	}
}
