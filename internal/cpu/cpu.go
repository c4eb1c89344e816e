package cpu

import (
	"fmt"

	"github.com/zboralski/pouchsim/internal/image"
	"github.com/zboralski/pouchsim/internal/memory"
)

// DefaultMaxIterations is the hard per-call instruction cap; exceeding
// it fails with TooManyIterationsError.
const DefaultMaxIterations = 0x1000000

// TooManyIterationsError reports a run that hit the iteration cap.
type TooManyIterationsError struct {
	PC uint64
}

func (e *TooManyIterationsError) Error() string {
	return fmt.Sprintf("too many iterations, stopped at 0x%016x", e.PC)
}

// HookFn is a host handler invoked by a permanent execute-cache entry:
// a replacement for a skipped game function or a tap observing a call.
type HookFn func(c *Cpu, p *Process) error

// Process is the emulated process: its memory plus the per-process
// bookkeeping the upper layers hang off it.
type Process struct {
	Mem *memory.Memory
	Env image.Environment

	// Singletons maps singleton names to their physical addresses once
	// booted. The boot layer owns the contents.
	Singletons map[string]uint64

	// TriggerParamAddr caches the guest address of the game-data table
	// proxy token once the manager is constructed.
	TriggerParamAddr uint64

	// Hooks dispatches named permanent cache entries to host handlers.
	Hooks map[string]HookFn
}

// NewProcess wraps memory in a fresh process.
func NewProcess(mem *memory.Memory, env image.Environment) *Process {
	return &Process{Mem: mem, Env: env, Singletons: map[string]uint64{}, Hooks: map[string]HookFn{}}
}

// MainOffsetToPhys converts a main-module-relative offset to a physical
// address.
func (p *Process) MainOffsetToPhys(rel uint32) uint64 {
	return p.Mem.MainStart() + uint64(rel)
}

// Clone produces a copy sharing memory pages clone-on-write. Singleton
// bookkeeping is copied; proxies are shared by the host layers.
func (p *Process) Clone() *Process {
	singletons := make(map[string]uint64, len(p.Singletons))
	for k, v := range p.Singletons {
		singletons[k] = v
	}
	hooks := make(map[string]HookFn, len(p.Hooks))
	for k, v := range p.Hooks {
		hooks[k] = v
	}
	return &Process{
		Mem:              p.Mem.Clone(),
		Env:              p.Env,
		Singletons:       singletons,
		TriggerParamAddr: p.TriggerParamAddr,
		Hooks:            hooks,
	}
}

// Cpu is one core: registers, flags, and the execute cache. One run owns
// one Cpu and never shares it.
type Cpu struct {
	Regs  Registers
	Cache ExecuteCache

	// MaxIterations bounds every Run* loop.
	MaxIterations int

	recent recentRing
}

// New creates a core with the default iteration cap.
func New() *Cpu {
	return &Cpu{MaxIterations: DefaultMaxIterations}
}

// StepOne fetches, decodes and executes the instruction at PC. A cache
// miss decodes as many contiguous words as the cache window allows and
// installs them as one transient entry before dispatching.
func (c *Cpu) StepOne(proc *Process) error {
	pc := c.Regs.PC
	exec, step, hint := c.Cache.Get(pc)
	if exec == nil {
		if err := c.fetchAndInsert(proc, pc, hint); err != nil {
			return err
		}
		exec, step, _ = c.Cache.Get(pc)
		if exec == nil {
			return &UnimplementedError{Addr: pc}
		}
	}
	return exec.ExecuteFrom(c, proc, step)
}

// fetchAndInsert reads up to hint bytes at pc with execute permission,
// decodes each word, and installs the block as a transient cache entry.
// Decoding stops early at the first undecodable word; if the very first
// word fails, the decode error is returned so the crash points at pc.
func (c *Cpu) fetchAndInsert(proc *Process, pc uint64, hint uint32) error {
	if hint == 0 || hint&3 != 0 {
		hint &^= 3
	}
	if hint == 0 {
		return &UnimplementedError{Addr: pc}
	}
	r, err := proc.Mem.ExecReader(pc)
	if err != nil {
		return err
	}
	insts := make([]Inst, 0, min(hint/4, 256))
	for i := uint32(0); i < hint/4; i++ {
		word, err := r.ReadU32()
		if err != nil {
			break
		}
		inst, err := Decode(word, pc+uint64(i)*4)
		if err != nil {
			if i == 0 {
				return err
			}
			break
		}
		insts = append(insts, inst)
	}
	if len(insts) == 0 {
		return &UnimplementedError{Addr: pc}
	}
	block := &instBlock{start: pc, insts: insts}
	return c.Cache.Insert(false, pc, uint32(len(insts))*4, block)
}

// instBlock is a transient cache entry of decoded instructions.
type instBlock struct {
	start uint64
	insts []Inst
}

// ExecuteFrom implements Executor by executing the single instruction at
// step; the outer loop re-dispatches, so hand-installed hooks and
// PC-granular stop conditions compose.
func (b *instBlock) ExecuteFrom(c *Cpu, proc *Process, step uint32) error {
	if int(step) >= len(b.insts) {
		return &UnimplementedError{Addr: b.start + uint64(step)*4}
	}
	inst := &b.insts[step]
	c.recent.push(c.Regs.PC, inst.Word)
	return c.execute(proc, inst)
}

// RunUntil executes until PC reaches target.
func (c *Cpu) RunUntil(proc *Process, target uint64) error {
	for i := 0; i < c.MaxIterations; i++ {
		if c.Regs.PC == target {
			return nil
		}
		if err := c.StepOne(proc); err != nil {
			return err
		}
	}
	return &TooManyIterationsError{PC: c.Regs.PC}
}
