package memory

import "strings"

// AccessFlags describes one memory access: a permission (read, write or
// execute), optional region-restriction bits, and a force bit that bypasses
// the permission check.
//
// If any region bit is set, the access is restricted to those regions.
// If none are set, every region is allowed.
type AccessFlags uint32

const (
	// PermExecute is access for instruction fetch.
	PermExecute AccessFlags = 0x1
	// PermWrite is access for writing data.
	PermWrite AccessFlags = 0x2
	// PermRead is access for reading data.
	PermRead AccessFlags = 0x4
	// Force bypasses the permission check on the section.
	Force AccessFlags = 0x8

	// RegionText allows access to the RX region of the program.
	RegionText AccessFlags = 0x20
	// RegionRodata allows access to the RO region of the program.
	RegionRodata AccessFlags = 0x40
	// RegionData allows access to the data/bss RW regions of the program.
	RegionData AccessFlags = 0x80
	// RegionStack allows access to the stack.
	RegionStack AccessFlags = 0x100
	// RegionHeap allows access to the heap.
	RegionHeap AccessFlags = 0x200
)

// PermAll is the union of all permission bits.
const PermAll = PermRead | PermWrite | PermExecute

// RegionAll is the union of all region bits.
const RegionAll = RegionText | RegionRodata | RegionData | RegionStack | RegionHeap

// RegionWritable is the union of the writable region bits.
const RegionWritable = RegionData | RegionStack | RegionHeap

// RegionProgram is the union of the program region bits.
const RegionProgram = RegionText | RegionRodata | RegionData

// ReadFlags are the default flags for reading from any region.
const ReadFlags = PermRead | RegionAll

// WriteFlags are the default flags for writing to any writable region.
const WriteFlags = PermWrite | RegionWritable

// ExecuteFlags are the default flags for instruction fetch.
const ExecuteFlags = PermExecute | PermRead | RegionText

// Perms returns only the permission bits.
func (f AccessFlags) Perms() AccessFlags { return f & PermAll }

// Regions returns only the region bits.
func (f AccessFlags) Regions() AccessFlags { return f & RegionAll }

// HasAll reports whether every bit in sub is set in f.
func (f AccessFlags) HasAll(sub AccessFlags) bool { return f&sub == sub }

// HasAny reports whether any bit in sub is set in f.
func (f AccessFlags) HasAny(sub AccessFlags) bool { return f&sub != 0 }

// PermsFromBits converts an r=4/w=2/x=1 permission bitmask, as found in
// program image descriptors, to AccessFlags.
func PermsFromBits(perm uint32) AccessFlags {
	var f AccessFlags
	if perm&0x4 != 0 {
		f |= PermRead
	}
	if perm&0x2 != 0 {
		f |= PermWrite
	}
	if perm&0x1 != 0 {
		f |= PermExecute
	}
	return f
}

func (f AccessFlags) String() string {
	var parts []string
	if f&PermRead != 0 {
		parts = append(parts, "r")
	}
	if f&PermWrite != 0 {
		parts = append(parts, "w")
	}
	if f&PermExecute != 0 {
		parts = append(parts, "x")
	}
	if f&Force != 0 {
		parts = append(parts, "force")
	}
	if r := f.Regions(); r != 0 && r != RegionAll {
		if r&RegionText != 0 {
			parts = append(parts, "text")
		}
		if r&RegionRodata != 0 {
			parts = append(parts, "rodata")
		}
		if r&RegionData != 0 {
			parts = append(parts, "data")
		}
		if r&RegionStack != 0 {
			parts = append(parts, "stack")
		}
		if r&RegionHeap != 0 {
			parts = append(parts, "heap")
		}
	}
	return strings.Join(parts, "+")
}
