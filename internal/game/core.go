package game

import (
	"github.com/zboralski/pouchsim/internal/cpu"
	"github.com/zboralski/pouchsim/internal/gdt"
	"github.com/zboralski/pouchsim/internal/memory"
)

// Proxies owns the host-side proxy pools of one run. Objects too
// host-specific to emulate byte-exactly live here, with tokens in guest
// memory.
type Proxies struct {
	TriggerParam *memory.ProxyPool[*gdt.TriggerParam]
}

// NewProxies creates empty pools.
func NewProxies() *Proxies {
	return &Proxies{TriggerParam: memory.NewProxyPool[*gdt.TriggerParam]()}
}

// Core couples the CPU core with the proxy pools; the linker and the
// simulation driver work through it.
type Core struct {
	*cpu.Core
	Proxies *Proxies
}

// NewCore builds a game core.
func NewCore(c *cpu.Cpu, proc *cpu.Process, proxies *Proxies) *Core {
	return &Core{Core: cpu.NewCore(c, proc), Proxies: proxies}
}

// TriggerParamAddr returns the guest address of the game-data table
// proxy token, reading the manager's flag buffer pointer if it is not
// cached yet.
func (c *Core) TriggerParamAddr() (uint64, error) {
	if c.Proc.TriggerParamAddr != 0 {
		return c.Proc.TriggerParamAddr, nil
	}
	gdtm, err := SingletonInstance(c, SingletonGdtManager)
	if err != nil {
		return 0, err
	}
	addr, err := GdtManagerPtr(gdtm).FlagBuffer().Load(c.Proc.Mem)
	if err != nil {
		return 0, err
	}
	c.Proc.TriggerParamAddr = addr
	return addr, nil
}

// WithGdt runs f with read access to the game-data table.
func (c *Core) WithGdt(f func(*gdt.TriggerParam)) error {
	addr, err := c.TriggerParamAddr()
	if err != nil {
		return err
	}
	return c.Proxies.TriggerParam.With(c.Proc.Mem, addr, f)
}

// WithGdtMut runs f with copy-on-write access to the game-data table.
func (c *Core) WithGdtMut(f func(*gdt.TriggerParam)) error {
	addr, err := c.TriggerParamAddr()
	if err != nil {
		return err
	}
	return c.Proxies.TriggerParam.WithMut(c.Proc.Mem, addr, f)
}
