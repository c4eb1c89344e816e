package memory

import "testing"

// stringProxy is a minimal proxy type for exercising the pool.
type stringProxy struct {
	s string
}

func (p stringProxy) MemSize() uint32    { return 0x20 }
func (p stringProxy) Clone() stringProxy { return p }

func TestProxyRoundTrip(t *testing.T) {
	m := newTestMemory(t)
	pool := NewProxyPool[stringProxy]()

	ptr, err := pool.Allocate(m, stringProxy{s: "hello"})
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	got, err := pool.Get(m, ptr)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.s != "hello" {
		t.Errorf("got %q", got.s)
	}

	// repeated reads return the same object as long as memory is untouched
	got2, err := pool.Get(m, ptr)
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	if got2.s != got.s {
		t.Errorf("second read diverged: %q", got2.s)
	}
}

func TestProxyDetectsScribble(t *testing.T) {
	m := newTestMemory(t)
	pool := NewProxyPool[stringProxy]()

	ptr, err := pool.Allocate(m, stringProxy{s: "hello"})
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	// an unauthorized write over the garbage bytes must be detected
	w, _ := m.Writer(ptr+8, 0)
	if err := w.WriteU8(0xFF); err != nil {
		t.Fatalf("scribble: %v", err)
	}

	if _, err := pool.Get(m, ptr); err == nil {
		t.Fatalf("expected CorruptedProxyError")
	} else if _, ok := err.(*CorruptedProxyError); !ok {
		t.Fatalf("expected *CorruptedProxyError, got %T: %v", err, err)
	}
}

func TestProxyBadHandle(t *testing.T) {
	m := newTestMemory(t)
	pool := NewProxyPool[stringProxy]()

	ptr, err := pool.Allocate(m, stringProxy{s: "x"})
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	w, _ := m.Writer(ptr, 0)
	if err := w.WriteU32(99); err != nil {
		t.Fatalf("overwrite handle: %v", err)
	}
	if _, err := pool.Get(m, ptr); err == nil {
		t.Fatalf("expected InvalidProxyHandleError")
	} else if _, ok := err.(*InvalidProxyHandleError); !ok {
		t.Fatalf("expected *InvalidProxyHandleError, got %T: %v", err, err)
	}
}

func TestProxyMutationIsCopyOnWrite(t *testing.T) {
	m := newTestMemory(t)
	pool := NewProxyPool[stringProxy]()

	ptr, err := pool.Allocate(m, stringProxy{s: "old"})
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	// hold the old token bytes at a second location by copying them
	// before mutation: the old handle must remain valid
	r, _ := m.Reader(ptr, 0)
	token, err := r.ReadBytes(0x20)
	if err != nil {
		t.Fatalf("read token: %v", err)
	}
	otherPtr, err := m.AllocWith(token)
	if err != nil {
		t.Fatalf("copy token: %v", err)
	}

	err = pool.WithMut(m, ptr, func(p stringProxy) {})
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}

	// mutation rewrote the token at ptr with a new handle
	if got, err := pool.Get(m, ptr); err != nil || got.s != "old" {
		t.Fatalf("new token read: %v %q", err, got.s)
	}
	// the copied old token still validates
	if got, err := pool.Get(m, otherPtr); err != nil || got.s != "old" {
		t.Fatalf("old token read: %v %q", err, got.s)
	}
}
