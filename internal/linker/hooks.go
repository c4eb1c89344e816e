package linker

import (
	"github.com/zboralski/pouchsim/internal/cpu"
	"github.com/zboralski/pouchsim/internal/game"
	"github.com/zboralski/pouchsim/internal/log"
	"github.com/zboralski/pouchsim/internal/memory"
)

// Named process-hook keys dispatched by the permanent entries below.
const (
	// HookSpawnActor fires when the game asks the overworld to create a
	// held-item actor; X1 carries the actor name.
	HookSpawnActor = "spawn_actor"
)

// hookDef is one permanent execute-cache entry installed over a game
// function: the named process hook runs if registered, then the entry
// simulates RET. Functions the simulator must observe or replace are
// listed here; everything else runs natively from the image.
type hookDef struct {
	fn   string
	name string
	// ret0 zeroes X0 before returning when no process hook handled the
	// call.
	ret0 bool
}

var hookDefs = []hookDef{
	{fn: "createHoldingItemActor", name: HookSpawnActor, ret0: true},
}

// InstallHooks inserts the permanent entries for the environment. Call
// once per process, after the image is mapped.
func InstallHooks(c *game.Core) error {
	for _, def := range hookDefs {
		rel, err := offsetFor(def.fn, c.Proc.Env)
		if err != nil {
			return err
		}
		addr := c.Proc.MainOffsetToPhys(rel)
		name := def.name
		ret0 := def.ret0
		exec := cpu.ExecutorFunc(func(cc *cpu.Cpu, p *cpu.Process) error {
			if h := p.Hooks[name]; h != nil {
				if err := h(cc, p); err != nil {
					return err
				}
			} else if ret0 {
				cc.Regs.Set(cpu.X(0), 0)
			}
			// simulate RET
			cc.Regs.PC = cc.Regs.Get(cpu.LR)
			return nil
		})
		if err := c.Cpu.Cache.Insert(true, addr, 4, exec); err != nil {
			return err
		}
		log.L.HookInstall(def.fn, addr)
	}
	return nil
}

// ReadActorNameArg reads a char* actor name argument from a register.
func ReadActorNameArg(cc *cpu.Cpu, p *cpu.Process, reg uint8) (string, error) {
	addr := cc.Regs.Get(cpu.X(reg))
	if addr == 0 {
		return "", nil
	}
	return memory.ReadCString(p.Mem, addr, 0x40)
}
