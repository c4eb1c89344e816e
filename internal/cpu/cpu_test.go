package cpu

import (
	"testing"

	"github.com/zboralski/pouchsim/internal/image"
	"github.com/zboralski/pouchsim/internal/memory"
)

const testProgramStart = 0x8000000

// makeProc builds a process whose main module contains the given
// hand-assembled instruction words.
func makeProc(t *testing.T, code []uint32) *Process {
	t.Helper()
	data := make([]byte, len(code)*4)
	for i, w := range code {
		data[i*4] = byte(w)
		data[i*4+1] = byte(w >> 8)
		data[i*4+2] = byte(w >> 16)
		data[i*4+3] = byte(w >> 24)
	}
	size := uint32((len(data) + memory.PageSize - 1) &^ (memory.PageSize - 1))
	if size == 0 {
		size = memory.PageSize
	}
	heap := memory.NewSimpleHeap(0x10000000, 0x100000, 0)
	mem, err := memory.NewProgram(testProgramStart, size, 0, []memory.Module{{
		Name:     "main",
		RelStart: 0,
		Size:     size,
		Regions:  []memory.ProgramRegion{{RelStart: 0, Perms: 0x5, Data: data}},
	}}, heap, 0x20000000, 0x40000)
	if err != nil {
		t.Fatalf("program memory: %v", err)
	}
	return NewProcess(mem, image.Environment{Game: image.GameVer150})
}

// runToRet enters the code at its start and runs until it returns.
func runToRet(t *testing.T, c *Cpu, proc *Process) {
	t.Helper()
	core := NewCore(c, proc)
	core.ResetStack()
	core.Enter(0)
	if err := core.ExecuteToComplete(); err != nil {
		if cr, ok := err.(*CrashReport); ok {
			t.Fatalf("execution crashed:\n%s", cr.Dump())
		}
		t.Fatalf("execution failed: %v", err)
	}
}

func TestBasicArithmetic(t *testing.T) {
	// MOV X0, #5; MOV X1, #3; ADD X2, X0, X1; RET
	proc := makeProc(t, []uint32{
		0xD28000A0, // movz x0, #5
		0xD2800061, // movz x1, #3
		0x8B010002, // add x2, x0, x1
		0xD65F03C0, // ret
	})
	c := New()
	runToRet(t, c, proc)
	if got := c.Regs.Get(X(2)); got != 8 {
		t.Errorf("x2 = %d, want 8", got)
	}
	if c.Regs.Get(X(0)) != 5 || c.Regs.Get(X(1)) != 3 {
		t.Errorf("sources clobbered: x0=%d x1=%d", c.Regs.Get(X(0)), c.Regs.Get(X(1)))
	}
}

func TestMovkBuildsConstant(t *testing.T) {
	proc := makeProc(t, []uint32{
		0xD2800000 | 0x5678<<5, // movz x0, #0x5678
		0xF2A00000 | 0x1234<<5, // movk x0, #0x1234, lsl #16
		0xD65F03C0,             // ret
	})
	c := New()
	runToRet(t, c, proc)
	if got := c.Regs.Get(X(0)); got != 0x12345678 {
		t.Errorf("x0 = 0x%x, want 0x12345678", got)
	}
}

func TestLoopWithFlags(t *testing.T) {
	// sum 5+4+3+2+1 by counting x0 down
	proc := makeProc(t, []uint32{
		0xD28000A0, // movz x0, #5
		0xD2800001, // movz x1, #0
		// loop:
		0x8B000021, // add x1, x1, x0
		0xF1000400, // subs x0, x0, #1
		0x54FFFFC1, // b.ne loop (-8)
		0xD65F03C0, // ret
	})
	c := New()
	runToRet(t, c, proc)
	if got := c.Regs.Get(X(1)); got != 15 {
		t.Errorf("x1 = %d, want 15", got)
	}
	if !c.Regs.Flags.Z {
		t.Errorf("Z flag should be set after the final subs")
	}
}

func TestLoadStoreIndexed(t *testing.T) {
	proc := makeProc(t, []uint32{
		0xD2800A41, // movz x1, #0x52
		0xF9000041, // str x1, [x2]
		0xF9400043, // ldr x3, [x2]
		0xF8408444, // ldr x4, [x2], #8  (post-index)
		0xD65F03C0, // ret
	})
	c := New()
	addr, err := proc.Mem.Alloc(64)
	if err != nil {
		t.Fatalf("alloc: %v", err)
	}
	c.MaxIterations = 1000
	c.Regs.Set(X(2), addr)
	runToRet(t, c, proc)
	if got := c.Regs.Get(X(3)); got != 0x52 {
		t.Errorf("x3 = 0x%x, want 0x52", got)
	}
	if got := c.Regs.Get(X(4)); got != 0x52 {
		t.Errorf("x4 = 0x%x, want 0x52", got)
	}
	if got := c.Regs.Get(X(2)); got != addr+8 {
		t.Errorf("post-index writeback: x2 = 0x%x, want 0x%x", got, addr+8)
	}
}

func TestStackPushPop(t *testing.T) {
	proc := makeProc(t, []uint32{
		0xA9BF7BFD, // stp x29, x30, [sp, #-16]!
		0x910003FD, // mov x29, sp (add x29, sp, #0)
		0xA8C17BFD, // ldp x29, x30, [sp], #16
		0xD65F03C0, // ret
	})
	c := New()
	runToRet(t, c, proc)
	if c.Regs.SP() != proc.Mem.StackEnd() {
		t.Errorf("sp not restored: 0x%x want 0x%x", c.Regs.SP(), proc.Mem.StackEnd())
	}
	if c.Regs.Get(X(30)) != lrSentinel {
		t.Errorf("lr not restored: 0x%x", c.Regs.Get(X(30)))
	}
}

func TestConditionalSelect(t *testing.T) {
	proc := makeProc(t, []uint32{
		0xF100001F, // cmp x0, #0 (subs xzr, x0, #0)
		0x9A9F07E1, // cset x1, ne
		0x9A820062, // csel x2, x3, x2, eq
		0xD65F03C0, // ret
	})
	c := New()
	c.Regs.Set(X(0), 7)
	c.Regs.Set(X(2), 100)
	c.Regs.Set(X(3), 200)
	runToRet(t, c, proc)
	if got := c.Regs.Get(X(1)); got != 1 {
		t.Errorf("cset: x1 = %d, want 1", got)
	}
	// x0 != 0, so eq fails and csel picks x2
	if got := c.Regs.Get(X(2)); got != 100 {
		t.Errorf("csel: x2 = %d, want 100", got)
	}
}

func TestBitfieldShift(t *testing.T) {
	proc := makeProc(t, []uint32{
		0xD344FC20, // lsr x0, x1, #4 (ubfm)
		0xD3607C22, // lsl x2, x1, #32 (ubfm x2, x1, #32, #31)
		0xD65F03C0, // ret
	})
	c := New()
	c.Regs.Set(X(1), 0xABCD)
	runToRet(t, c, proc)
	if got := c.Regs.Get(X(0)); got != 0xABC {
		t.Errorf("lsr: x0 = 0x%x, want 0xabc", got)
	}
	if got := c.Regs.Get(X(2)); got != 0xABCD00000000 {
		t.Errorf("lsl: x2 = 0x%x, want 0xabcd00000000", got)
	}
}

func TestMultiplyAccumulate(t *testing.T) {
	proc := makeProc(t, []uint32{
		0x9B020C20, // madd x0, x1, x2, x3
		0x9B028C24, // msub x4, x1, x2, x3
		0xD65F03C0, // ret
	})
	c := New()
	c.Regs.Set(X(1), 6)
	c.Regs.Set(X(2), 7)
	c.Regs.Set(X(3), 100)
	runToRet(t, c, proc)
	if got := c.Regs.Get(X(0)); got != 142 {
		t.Errorf("madd: x0 = %d, want 142", got)
	}
	if got := c.Regs.Get(X(4)); got != 58 {
		t.Errorf("msub: x4 = %d, want 58", got)
	}
}

func TestZeroRegisterSemantics(t *testing.T) {
	var r Registers
	r.Set(XZR, 0x1234)
	if r.Get(XZR) != 0 {
		t.Errorf("write to xzr stuck")
	}
	r.Set(X(5), 0xFFFFFFFF_FFFFFFFF)
	r.Set(W(5), 0x1234)
	if got := r.Get(X(5)); got != 0x1234 {
		t.Errorf("32-bit write did not zero upper bits: 0x%x", got)
	}
	r.Set(X(6), 0xFFFFFFFF_80000000)
	if got := r.GetSigned(W(6)); got != -0x80000000 {
		t.Errorf("signed 32-bit read: %d", got)
	}
	r.SetSP(0x5000)
	if r.Get(SP) != 0x5000 {
		t.Errorf("sp read through name: 0x%x", r.Get(SP))
	}
}

func TestCallCrashesOnBadFetch(t *testing.T) {
	proc := makeProc(t, []uint32{
		0xD2800040, // movz x0, #2
		0xD61F0000, // br x0 (jump to unmapped address 2)
	})
	c := New()
	core := NewCore(c, proc)
	core.ResetStack()
	core.Enter(0)
	err := core.ExecuteToComplete()
	if err == nil {
		t.Fatalf("expected crash")
	}
	cr, ok := err.(*CrashReport)
	if !ok {
		t.Fatalf("expected *CrashReport, got %T: %v", err, err)
	}
	if len(cr.Recent) == 0 {
		t.Errorf("crash report has no recent instructions")
	}
	if cr.Dump() == "" {
		t.Errorf("empty crash dump")
	}
}

func TestIterationCap(t *testing.T) {
	proc := makeProc(t, []uint32{
		0x14000000, // b . (infinite loop)
	})
	c := New()
	c.MaxIterations = 100
	core := NewCore(c, proc)
	core.Enter(0)
	err := core.ExecuteToComplete()
	if err == nil {
		t.Fatalf("expected TooManyIterations")
	}
	cr, ok := err.(*CrashReport)
	if !ok {
		t.Fatalf("expected crash report wrapper, got %T", err)
	}
	if _, ok := cr.Cause.(*TooManyIterationsError); !ok {
		t.Fatalf("expected TooManyIterationsError cause, got %T", cr.Cause)
	}
}

func TestStackAllocAndCheck(t *testing.T) {
	proc := makeProc(t, []uint32{0xD65F03C0})
	c := New()
	core := NewCore(c, proc)
	core.ResetStack()
	addr, err := core.StackAlloc(0x58)
	if err != nil {
		t.Fatalf("stack alloc: %v", err)
	}
	if err := core.StackCheck(addr); err != nil {
		t.Fatalf("clean check failed: %v", err)
	}
	// scribble past the end of the allocation
	w, _ := proc.Mem.Writer(addr+0x60, 0)
	if err := w.WriteU64(0); err != nil {
		t.Fatalf("scribble: %v", err)
	}
	if err := core.StackCheck(addr); err == nil {
		t.Fatalf("expected stack check failure")
	}
	// null argument always passes
	if err := core.StackCheck(0); err != nil {
		t.Fatalf("null check: %v", err)
	}
}

func TestDecodedExactlyOnce(t *testing.T) {
	proc := makeProc(t, []uint32{
		0xD28000A0, // movz x0, #5
		0xF1000400, // subs x0, x0, #1
		0x54FFFFE1, // b.ne -4
		0xD65F03C0, // ret
	})
	c := New()
	runToRet(t, c, proc)
	// after the run, the loop body must be served from one transient
	// entry covering the block
	exec1, step1, _ := c.Cache.Get(testProgramStart + 4)
	if exec1 == nil {
		t.Fatalf("loop body not cached")
	}
	if step1 != 1 {
		t.Errorf("step = %d, want 1", step1)
	}
	c.Cache.Flush()
	if exec, _, _ := c.Cache.Get(testProgramStart + 4); exec != nil {
		t.Errorf("flush did not drop transient entries")
	}
}
