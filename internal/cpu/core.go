package cpu

import (
	"fmt"

	"github.com/zboralski/pouchsim/internal/log"
)

// lrSentinel is the return address installed by Enter; reaching it means
// the entered function returned. It sits far outside any mapped section.
const lrSentinel uint64 = 0xDEAD_F00D_0000

// stackCanary guards each stack-allocated call argument.
const stackCanary uint64 = 0xA5C3_96E1_0F87_2D4B

// Core couples one Cpu with one Process and provides the call-shaped
// operations the linker and the singleton bootstrapper drive the
// emulated program with. Every entry point is wrapped so no host panic
// escapes: failures become crash reports.
type Core struct {
	Cpu  *Cpu
	Proc *Process

	stackAllocs []stackAlloc
	stackNext   uint64
}

type stackAlloc struct {
	addr uint64
	size uint32
}

// NewCore couples a cpu and a process.
func NewCore(c *Cpu, proc *Process) *Core {
	return &Core{Cpu: c, Proc: proc, stackNext: proc.Mem.StackEnd()}
}

// guard converts errors and panics from the inner loop into crash
// reports capturing PC, registers and the recent instruction window.
func (c *Core) guard(f func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = newCrashReport(c.Cpu, fmt.Errorf("host panic: %v", r))
		}
	}()
	if inner := f(); inner != nil {
		if _, ok := inner.(*CrashReport); ok {
			return inner
		}
		return newCrashReport(c.Cpu, inner)
	}
	return nil
}

// ResetStack points SP at the stack end and forgets tracked allocations.
// Call helpers reset before every call.
func (c *Core) ResetStack() {
	c.Cpu.Regs.SetSP(c.Proc.Mem.StackEnd())
	c.stackAllocs = c.stackAllocs[:0]
	c.stackNext = c.Proc.Mem.StackEnd()
}

// StackAlloc carves size bytes off the stack for a call argument,
// fencing it with canaries so the call helper can verify the callee kept
// to the argument's footprint.
func (c *Core) StackAlloc(size uint32) (uint64, error) {
	aligned := uint64(size+15) &^ 15
	// low canary | data | high canary
	top := c.stackNext - 16
	addr := top - aligned
	bottom := addr - 16
	c.stackNext = bottom
	c.Cpu.Regs.SetSP(bottom - 0x100)

	w, err := c.Proc.Mem.Writer(bottom, 0)
	if err != nil {
		return 0, err
	}
	if err := w.WriteU64(stackCanary); err != nil {
		return 0, err
	}
	if err := w.WriteU64(stackCanary); err != nil {
		return 0, err
	}
	w, err = c.Proc.Mem.Writer(top, 0)
	if err != nil {
		return 0, err
	}
	if err := w.WriteU64(stackCanary); err != nil {
		return 0, err
	}
	if err := w.WriteU64(stackCanary); err != nil {
		return 0, err
	}
	c.stackAllocs = append(c.stackAllocs, stackAlloc{addr: addr, size: size})
	return addr, nil
}

// StackCheckError reports a callee that wrote outside a stack-allocated
// argument's footprint.
type StackCheckError struct {
	Addr uint64
}

func (e *StackCheckError) Error() string {
	return fmt.Sprintf("stack corruption around argument at 0x%016x", e.Addr)
}

// StackCheck verifies the canaries around a stack-allocated argument.
// A zero address (optional argument passed as null) always passes.
func (c *Core) StackCheck(addr uint64) error {
	if addr == 0 {
		return nil
	}
	for _, a := range c.stackAllocs {
		if a.addr != addr {
			continue
		}
		aligned := uint64(a.size+15) &^ 15
		for _, canaryAddr := range []uint64{addr - 16, addr - 8, addr + aligned, addr + aligned + 8} {
			r, err := c.Proc.Mem.Reader(canaryAddr, 0)
			if err != nil {
				return err
			}
			v, err := r.ReadU64()
			if err != nil {
				return err
			}
			if v != stackCanary {
				return &StackCheckError{Addr: addr}
			}
		}
		return nil
	}
	return &StackCheckError{Addr: addr}
}

// CallAtMainOffset simulates a call: LR is pointed at the sentinel, PC
// at main+rel, and the core runs until the function returns.
func (c *Core) CallAtMainOffset(rel uint32) error {
	target := c.Proc.MainOffsetToPhys(rel)
	log.L.Call("native", target)
	return c.guard(func() error {
		c.Cpu.Regs.Set(LR, lrSentinel)
		c.Cpu.Regs.PC = target
		return c.Cpu.RunUntil(c.Proc, lrSentinel)
	})
}

// Enter simulates a branch-and-link to main+rel without running.
func (c *Core) Enter(rel uint32) {
	c.Cpu.Regs.Set(LR, lrSentinel)
	c.Cpu.Regs.PC = c.Proc.MainOffsetToPhys(rel)
}

// Jump sets PC to main+rel without doing anything else.
func (c *Core) Jump(rel uint32) {
	c.Cpu.Regs.PC = c.Proc.MainOffsetToPhys(rel)
}

// ExecuteUntil runs until the next instruction is at main+rel.
func (c *Core) ExecuteUntil(rel uint32) error {
	return c.guard(func() error {
		return c.Cpu.RunUntil(c.Proc, c.Proc.MainOffsetToPhys(rel))
	})
}

// ExecuteToComplete runs until execution leaves the function entered
// with Enter, i.e. until the sentinel return address is reached.
func (c *Core) ExecuteToComplete() error {
	return c.guard(func() error {
		return c.Cpu.RunUntil(c.Proc, lrSentinel)
	})
}

// vmRegName maps a bytecode register number (0-30 for X, 32-63 for D)
// to a register name.
func vmRegName(reg uint8) RegName {
	if reg >= 32 {
		return D(reg - 32)
	}
	return X(reg)
}

// SetRegLo sets the low 32 bits of a bytecode-numbered register,
// clearing the high half.
func (c *Core) SetRegLo(reg uint8, value uint32) {
	c.Cpu.Regs.Set(vmRegName(reg), uint64(value))
}

// SetRegHi sets the high 32 bits of a bytecode-numbered register,
// keeping the low half.
func (c *Core) SetRegHi(reg uint8, value uint32) {
	name := vmRegName(reg)
	lo := uint32(c.Cpu.Regs.Get(name))
	c.Cpu.Regs.Set(name, uint64(value)<<32|uint64(lo))
}

// CopyReg copies bits between bytecode-numbered registers exactly.
func (c *Core) CopyReg(from, to uint8) {
	c.Cpu.Regs.Set(vmRegName(to), c.Cpu.Regs.Get(vmRegName(from)))
}
