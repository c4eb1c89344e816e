package game

import (
	"fmt"

	"github.com/zboralski/pouchsim/internal/cpu"
	"github.com/zboralski/pouchsim/internal/gdt"
	"github.com/zboralski/pouchsim/internal/image"
	"github.com/zboralski/pouchsim/internal/log"
	"github.com/zboralski/pouchsim/internal/memory"
)

// dataBlob returns the embedded blob for an OpAllocateData operation.
// The actor info archive is consumed opaquely by the skipped iterator
// setup, so a reserved placeholder range suffices.
func dataBlob(id DataID) []byte {
	switch id {
	case DataActorInfoByml:
		return make([]byte, 0x100)
	default:
		return make([]byte, 0x10)
	}
}

// SingletonInstance returns the physical address of a singleton,
// running its construction recipe on first dereference.
func SingletonInstance(c *Core, name string) (uint64, error) {
	if addr, ok := c.Proc.Singletons[name]; ok {
		return addr, nil
	}
	s := SingletonFor(name, c.Proc.Env)
	if s == nil {
		return 0, fmt.Errorf("unknown singleton %q", name)
	}
	if !s.Supported() {
		return 0, &image.UnsupportedVersionError{Op: "create singleton " + name, Game: c.Proc.Env.Game}
	}
	addr := c.Proc.Mem.Heap().Start() + uint64(s.RelStart)
	log.L.Debug("creating singleton", log.Fn(name), log.Addr(addr))
	if err := c.runRecipe(s, addr); err != nil {
		return 0, fmt.Errorf("create singleton %s: %w", name, err)
	}
	// publish the instance pointer where the binary keeps its static
	w, err := c.Proc.Mem.Writer(c.Proc.MainOffsetToPhys(s.MainOffset), memory.Force)
	if err != nil {
		return 0, err
	}
	if err := w.WriteU64(addr); err != nil {
		return 0, err
	}
	c.Proc.Singletons[name] = addr
	return addr, nil
}

// runRecipe executes a singleton's bytecode on the core.
func (c *Core) runRecipe(s *Singleton, singletonAddr uint64) error {
	x0 := func(v uint64) { c.Cpu.Regs.Set(cpu.X(0), v) }
	for i, b := range s.Bytecode {
		var err error
		switch b.Op {
		case OpEnter:
			c.Enter(b.A)
		case OpExecuteUntil:
			err = c.ExecuteUntil(b.A)
		case OpExecuteUntilThenSkipOne:
			if err = c.ExecuteUntil(b.A); err == nil {
				c.Jump(b.A + 4)
			}
		case OpExecuteUntilThenAllocSingletonSkipOne:
			if err = c.ExecuteUntil(b.A); err == nil {
				x0(singletonAddr)
				c.Jump(b.A + 4)
			}
		case OpJump:
			c.Jump(b.A)
		case OpJumpExecute:
			c.Jump(b.A)
			err = c.ExecuteUntil(b.A + 4)
		case OpAllocate:
			var addr uint64
			if addr, err = c.Proc.Mem.Alloc(b.A); err == nil {
				x0(addr)
			}
		case OpAllocateProxy:
			var addr uint64
			switch b.Proxy {
			case ProxyTriggerParam:
				var tp *gdt.TriggerParam
				tp, err = gdt.Loaded(isGetFlagNames())
				if err == nil {
					addr, err = c.Proxies.TriggerParam.Allocate(c.Proc.Mem, tp)
				}
				if err == nil {
					c.Proc.TriggerParamAddr = addr
				}
			default:
				err = fmt.Errorf("unknown proxy id %d", b.Proxy)
			}
			if err == nil {
				x0(addr)
			}
		case OpAllocateData:
			var addr uint64
			if addr, err = c.Proc.Mem.AllocWith(dataBlob(b.Data)); err == nil {
				x0(addr)
			}
		case OpGetSingleton:
			c.SetRegLo(b.Reg, uint32(singletonAddr))
			c.SetRegHi(b.Reg, uint32(singletonAddr>>32))
		case OpSetRegLo:
			c.SetRegLo(b.Reg, b.A)
		case OpSetRegHi:
			c.SetRegHi(b.Reg, b.A)
		case OpCopyReg:
			c.CopyReg(uint8(b.A), uint8(b.B))
		case OpExecuteToComplete:
			err = c.ExecuteToComplete()
		default:
			err = fmt.Errorf("unknown bytecode op %d", b.Op)
		}
		if err != nil {
			return fmt.Errorf("bytecode step %d: %w", i, err)
		}
	}
	return nil
}

// isGetFlagNames derives the per-actor obtained flags from the item
// table.
func isGetFlagNames() []string {
	actors := ItemActors()
	names := make([]string, 0, len(actors))
	for _, actor := range actors {
		names = append(names, "IsGet_"+actor)
	}
	return names
}
