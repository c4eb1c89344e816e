package cpu

import "testing"

func nopExec() Executor {
	return ExecutorFunc(func(c *Cpu, proc *Process) error { return nil })
}

func makeCache() *ExecuteCache {
	ec := &ExecuteCache{}
	_ = ec.Insert(false, 10, 5, nopExec())  // [10, 15)
	_ = ec.Insert(false, 20, 10, nopExec()) // [20, 30)
	_ = ec.Insert(false, 35, 5, nopExec())  // [35, 40)
	return ec
}

func TestCacheInsertAndGet(t *testing.T) {
	ec := makeCache()

	if err := ec.Insert(true, 40, 80, nopExec()); err != nil {
		t.Fatalf("insert [40,120): %v", err)
	}
	if err := ec.Insert(true, 52, 16, nopExec()); err == nil {
		t.Fatalf("overlapping insert succeeded")
	}

	exec, step, _ := ec.Get(40)
	if exec == nil {
		t.Fatalf("get 40 missed")
	}
	if step != 0 {
		t.Errorf("step = %d, want 0", step)
	}
	exec, step, _ = ec.Get(48)
	if exec == nil {
		t.Fatalf("get 48 missed")
	}
	if step != 2 {
		t.Errorf("step = %d, want 2", step)
	}
}

func TestCacheMissHint(t *testing.T) {
	ec := makeCache()
	// miss at 16 with next entry at 20: at most 4 bytes may be fetched
	exec, _, hint := ec.Get(16)
	if exec != nil {
		t.Fatalf("unexpected hit at 16")
	}
	if hint != 4 {
		t.Errorf("hint = %d, want 4", hint)
	}
	// miss past the last entry: the cap applies
	_, _, hint = ec.Get(1000)
	if hint != MaxFetchBytes {
		t.Errorf("hint = %d, want MaxFetchBytes", hint)
	}
}

func TestCacheFlushKeepsPermanent(t *testing.T) {
	ec := makeCache()
	if err := ec.Insert(true, 100, 4, nopExec()); err != nil {
		t.Fatalf("insert permanent: %v", err)
	}
	ec.Flush()
	if exec, _, _ := ec.Get(10); exec != nil {
		t.Errorf("transient entry survived flush")
	}
	if exec, _, _ := ec.Get(100); exec == nil {
		t.Errorf("permanent entry dropped by flush")
	}
}

func TestStrictReplacementEnteredMidRange(t *testing.T) {
	ec := &ExecuteCache{}
	if err := ec.Insert(true, 0x100, 0x20, nopExec()); err != nil {
		t.Fatalf("insert: %v", err)
	}
	exec, step, _ := ec.Get(0x108)
	if exec == nil {
		t.Fatalf("miss")
	}
	err := exec.ExecuteFrom(nil, nil, step)
	if _, ok := err.(*StrictReplacementError); !ok {
		t.Fatalf("expected StrictReplacementError, got %v", err)
	}
}
