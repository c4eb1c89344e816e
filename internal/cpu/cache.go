package cpu

import (
	"fmt"
	"sort"
)

// MaxFetchBytes caps how many bytes a cache miss may fetch and decode
// contiguously.
const MaxFetchBytes = 0x200000

// Executor is one entry's execution behavior. step is the instruction
// index from the start of the entry's range.
type Executor interface {
	ExecuteFrom(c *Cpu, proc *Process, step uint32) error
}

// ExecutorFunc adapts a plain function to a whole-range replacement.
// Such hooks only make sense entered at their start; entering in the
// middle is a strict-replacement error.
type ExecutorFunc func(c *Cpu, proc *Process) error

// StrictReplacementError reports a jump into the middle of a hook that
// replaces a whole function.
type StrictReplacementError struct {
	Start uint64
	Step  uint32
}

func (e *StrictReplacementError) Error() string {
	return fmt.Sprintf("jump into the middle of replaced range at 0x%016x step %d", e.Start, e.Step)
}

// ExecuteFrom implements Executor.
func (f ExecutorFunc) ExecuteFrom(c *Cpu, proc *Process, step uint32) error {
	if step != 0 {
		return &StrictReplacementError{Step: step}
	}
	return f(c, proc)
}

// OverlapError reports an attempt to insert an entry overlapping an
// existing one.
type OverlapError struct {
	NewStart      uint64
	ExistingStart uint64
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("execute cache overlap: new 0x%016x overlaps existing 0x%016x", e.NewStart, e.ExistingStart)
}

type cacheEntry struct {
	permanent bool
	start     uint64
	size      uint32
	exec      Executor
}

func (e *cacheEntry) end() uint64 { return e.start + uint64(e.size) }

// ExecuteCache is a per-core cache of decoded instruction ranges so each
// instruction is decoded at most once per address range. Entries are
// non-overlapping, sorted by start. Permanent entries are hand-installed
// hooks; transient entries are decoded on demand and dropped by Flush.
type ExecuteCache struct {
	entries []cacheEntry
}

// Flush drops the transient entries, causing instructions to be
// refetched from memory.
func (ec *ExecuteCache) Flush() {
	kept := ec.entries[:0]
	for _, e := range ec.entries {
		if e.permanent {
			kept = append(kept, e)
		}
	}
	ec.entries = kept
}

// Insert adds an entry covering [start, start+size). Inserting an entry
// that overlaps an existing one is an error.
func (ec *ExecuteCache) Insert(permanent bool, start uint64, size uint32, exec Executor) error {
	i, found := ec.find(start, size)
	if found {
		return &OverlapError{NewStart: start, ExistingStart: ec.entries[i].start}
	}
	ec.entries = append(ec.entries, cacheEntry{})
	copy(ec.entries[i+1:], ec.entries[i:])
	ec.entries[i] = cacheEntry{permanent: permanent, start: start, size: size, exec: exec}
	return nil
}

// Get looks up pc. On a hit it returns the executor and the instruction
// step inside the range. On a miss it returns the maximum number of
// bytes that may safely be fetched and decoded contiguously, capped at
// MaxFetchBytes and at the next entry's start.
func (ec *ExecuteCache) Get(pc uint64) (Executor, uint32, uint32) {
	i, found := ec.find(pc, 4)
	if found {
		entry := &ec.entries[i]
		return entry.exec, uint32((pc - entry.start) / 4), 0
	}
	if i < len(ec.entries) {
		gap := ec.entries[i].start - pc
		if gap > MaxFetchBytes {
			gap = MaxFetchBytes
		}
		return nil, 0, uint32(gap)
	}
	return nil, 0, MaxFetchBytes
}

// find locates the first entry overlapping [start, start+size). If size
// is 0, it looks for an entry starting exactly at start. When not found,
// the returned index is where a new entry at start belongs.
func (ec *ExecuteCache) find(start uint64, size uint32) (int, bool) {
	if size == 0 {
		i := sort.Search(len(ec.entries), func(i int) bool { return ec.entries[i].start >= start })
		if i < len(ec.entries) && ec.entries[i].start == start {
			return i, true
		}
		return i, false
	}
	end := start + uint64(size)
	lower := sort.Search(len(ec.entries), func(i int) bool { return ec.entries[i].end() > start })
	for i := lower; i < len(ec.entries); i++ {
		e := &ec.entries[i]
		if e.start >= end {
			return i, false
		}
		if e.end() > start {
			return i, true
		}
	}
	return len(ec.entries), false
}
