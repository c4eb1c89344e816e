package memory

import "github.com/xyproto/env/v2"

// Strictness toggles. In relaxed mode a failing check logs, and the
// access degrades (reads return zero, writes are dropped). In strict mode
// the access fails with a typed error.
//
// The toggles are read once at startup; tests may override the variables
// directly.
var (
	// StrictHeap fails accesses to unallocated heap addresses.
	StrictHeap = env.Bool("POUCHSIM_STRICT_HEAP")
	// StrictSection fails accesses outside every section, and makes
	// region-restriction bits binding.
	StrictSection = env.Bool("POUCHSIM_STRICT_SECTION")
	// StrictPermission fails accesses incompatible with section permissions.
	StrictPermission = env.Bool("POUCHSIM_STRICT_PERMISSION")
	// TraceMemory logs every streamed load and store.
	TraceMemory = env.Bool("POUCHSIM_TRACE_MEMORY")
)
