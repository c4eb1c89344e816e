package memory

import (
	"errors"
	"fmt"
)

// ErrBypassed is returned internally when a relaxed-mode check fails.
// Readers turn it into a zero value, writers drop the store.
var ErrBypassed = errors.New("access bypassed")

// HeapError reports an access to an unallocated heap address in
// strict-heap mode.
type HeapError struct {
	Addr  uint64
	Flags AccessFlags
}

func (e *HeapError) Error() string {
	return fmt.Sprintf("accessing unallocated heap address 0x%016x (%s)", e.Addr, e.Flags)
}

// SectionError reports an access outside every section in strict-section
// mode.
type SectionError struct {
	Addr  uint64
	Flags AccessFlags
}

func (e *SectionError) Error() string {
	return fmt.Sprintf("accessing invalid section at 0x%016x (%s)", e.Addr, e.Flags)
}

// PermissionError reports an access incompatible with the section
// permissions in strict-permission mode.
type PermissionError struct {
	Addr  uint64
	Flags AccessFlags
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied at 0x%016x (%s)", e.Addr, e.Flags)
}

// BoundaryError reports a read or write that would cross past the
// permitted window of the current page.
type BoundaryError struct {
	Addr  uint64
	Flags AccessFlags
}

func (e *BoundaryError) Error() string {
	return fmt.Sprintf("boundary hit at 0x%016x (%s)", e.Addr, e.Flags)
}

// HeapExhaustedError reports a heap allocation that does not fit.
type HeapExhaustedError struct {
	Size uint32
}

func (e *HeapExhaustedError) Error() string {
	return fmt.Sprintf("heap exhausted allocating %d bytes", e.Size)
}

// InvalidProxyHandleError reports a proxy token whose handle does not
// resolve to a live object.
type InvalidProxyHandleError struct {
	Handle uint32
	Addr   uint64
}

func (e *InvalidProxyHandleError) Error() string {
	return fmt.Sprintf("invalid proxy handle %d at 0x%016x", e.Handle, e.Addr)
}

// CorruptedProxyError reports proxy bytes in guest memory that no longer
// match the stored fingerprint: the emulated program scribbled over a
// host-managed object.
type CorruptedProxyError struct {
	Handle uint32
	Addr   uint64
	Size   uint32
}

func (e *CorruptedProxyError) Error() string {
	return fmt.Sprintf("corrupted proxy object %d at 0x%016x (%d bytes)", e.Handle, e.Addr, e.Size)
}

// ErrProxyOutOfMemory is returned when a proxy pool reaches MaxObjects.
var ErrProxyOutOfMemory = errors.New("proxy pool out of memory")

// ErrInvalidProxySize is returned when a proxy object declares a guest
// footprint smaller than the 4-byte handle.
var ErrInvalidProxySize = errors.New("proxy object size must be at least 4 bytes")
