package memory

import (
	"crypto/sha256"
	"encoding/binary"
	"math/rand"
	"sync"
)

// MaxObjects is the maximum number of proxy objects per pool.
const MaxObjects = 1_024_000

// ProxyObject is a host-side object represented in guest memory by a
// token: a 4-byte handle followed by deterministic pseudo-random garbage.
// Clone must produce an independent copy for copy-on-write mutation.
type ProxyObject[T any] interface {
	// MemSize returns the guest footprint of the token, at least 4 bytes.
	MemSize() uint32
	// Clone deep-copies the object.
	Clone() T
}

type proxyEntry[T any] struct {
	obj       T
	integrity [32]byte
}

// ProxyPool owns the host-side objects of one proxy type, keyed by dense
// handle. A reader/writer lock permits concurrent snapshot reads across
// cloned processes; the lock is held only for one get or insert, never
// across an emulation step.
type ProxyPool[T ProxyObject[T]] struct {
	mu      sync.RWMutex
	rng     *rand.Rand
	objects []proxyEntry[T]
}

// NewProxyPool creates an empty pool. The garbage generator is seeded
// identically for every run so runs are reproducible.
func NewProxyPool[T ProxyObject[T]]() *ProxyPool[T] {
	return &ProxyPool[T]{rng: rand.New(rand.NewSource(0))}
}

// Allocate places the token for t on the heap and registers the object,
// returning the guest pointer.
func (l *ProxyPool[T]) Allocate(m *Memory, t T) (uint64, error) {
	ptr, err := m.Heap().Alloc(t.MemSize())
	if err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.createEntry(m, ptr, t); err != nil {
		return 0, err
	}
	return ptr, nil
}

// createEntry writes a fresh token at ptr and registers the object.
// On error a potentially corrupted token is left in memory and no entry
// is created. Caller holds the write lock.
func (l *ProxyPool[T]) createEntry(m *Memory, ptr uint64, t T) (uint32, error) {
	if len(l.objects) >= MaxObjects {
		return 0, ErrProxyOutOfMemory
	}
	handle := uint32(len(l.objects))
	entry := proxyEntry[T]{obj: t}
	if err := l.writeToken(m, ptr, handle, t, &entry.integrity); err != nil {
		return 0, err
	}
	l.objects = append(l.objects, entry)
	return handle, nil
}

// writeToken writes handle + garbage to guest memory and records the
// SHA-256 fingerprint of the bytes.
func (l *ProxyPool[T]) writeToken(m *Memory, ptr uint64, handle uint32, t T, hashOut *[32]byte) error {
	size := t.MemSize()
	if size < 4 {
		return ErrInvalidProxySize
	}
	hash := sha256.New()
	w, err := m.Writer(ptr, RegionHeap)
	if err != nil {
		return err
	}
	if err := w.WriteU32(handle); err != nil {
		return err
	}
	var scratch [8]byte
	binary.LittleEndian.PutUint32(scratch[:4], handle)
	hash.Write(scratch[:4])

	garbage := size - 4
	for garbage >= 8 {
		n := l.rng.Uint64()
		if err := w.WriteU64(n); err != nil {
			return err
		}
		binary.LittleEndian.PutUint64(scratch[:], n)
		hash.Write(scratch[:])
		garbage -= 8
	}
	if garbage > 0 {
		n := l.rng.Uint64()
		binary.LittleEndian.PutUint64(scratch[:], n)
		for i := uint32(0); i < garbage; i++ {
			if err := w.WriteU8(scratch[i]); err != nil {
				return err
			}
		}
		hash.Write(scratch[:garbage])
	}
	hash.Sum(hashOut[:0])
	return nil
}

// getEntry validates the token at ptr and resolves the entry. Caller
// holds at least the read lock.
func (l *ProxyPool[T]) getEntry(m *Memory, ptr uint64) (*proxyEntry[T], uint32, error) {
	hash := sha256.New()
	r, err := m.Reader(ptr, RegionHeap)
	if err != nil {
		return nil, 0, err
	}
	handle, err := r.ReadU32()
	if err != nil {
		return nil, 0, err
	}
	var scratch [4]byte
	binary.LittleEndian.PutUint32(scratch[:], handle)
	hash.Write(scratch[:])
	if handle >= uint32(len(l.objects)) {
		return nil, 0, &InvalidProxyHandleError{Handle: handle, Addr: ptr}
	}
	entry := &l.objects[handle]
	size := entry.obj.MemSize()
	data, err := r.ReadBytes(size - 4)
	if err != nil {
		return nil, 0, err
	}
	hash.Write(data)
	var integrity [32]byte
	hash.Sum(integrity[:0])
	if integrity != entry.integrity {
		return nil, 0, &CorruptedProxyError{Handle: handle, Addr: ptr, Size: size}
	}
	return entry, handle, nil
}

// With runs f with read access to the proxy at ptr.
func (l *ProxyPool[T]) With(m *Memory, ptr uint64, f func(T)) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	entry, _, err := l.getEntry(m, ptr)
	if err != nil {
		return err
	}
	f(entry.obj)
	return nil
}

// WithMut clones the proxy at ptr, rewrites the token with a new handle,
// and runs f on the clone. The old handle stays valid for other
// references (copy-on-write semantics for proxies).
func (l *ProxyPool[T]) WithMut(m *Memory, ptr uint64, f func(T)) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, _, err := l.getEntry(m, ptr)
	if err != nil {
		return err
	}
	cloned := entry.obj.Clone()
	handle, err := l.createEntry(m, ptr, cloned)
	if err != nil {
		return err
	}
	f(l.objects[handle].obj)
	return nil
}

// Get returns the live object at ptr. The object must be treated as
// read-only; use WithMut for mutation.
func (l *ProxyPool[T]) Get(m *Memory, ptr uint64) (T, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	entry, _, err := l.getEntry(m, ptr)
	if err != nil {
		var zero T
		return zero, err
	}
	return entry.obj, nil
}
