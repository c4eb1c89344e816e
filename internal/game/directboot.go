package game

import (
	"github.com/zboralski/pouchsim/internal/gdt"
)

// DirectBoot lays out the managers host-side instead of running the
// in-binary constructors. The low-level debug commands and image-less
// sessions use it; with a program image loaded, the recipe-driven boot
// is authoritative.
func DirectBoot(c *Core) error {
	heapStart := c.Proc.Mem.Heap().Start()

	pmdmAddr := heapStart + uint64(Pmdm(c.Proc.Env).RelStart)
	pmdm := PmdmPtr(pmdmAddr)
	if err := pmdm.List1().ConstructWithOffset(pouchItemNodeOff, c.Proc.Mem); err != nil {
		return err
	}
	if err := pmdm.List2().ConstructWithOffset(pouchItemNodeOff, c.Proc.Mem); err != nil {
		return err
	}
	for i := 0; i < NumPouchItems; i++ {
		item := pmdm.Item(i)
		if err := item.Construct(c.Proc.Mem); err != nil {
			return err
		}
		if err := pmdm.List2().PushFront(item.Node(), c.Proc.Mem); err != nil {
			return err
		}
	}
	if err := pmdm.NumTabs().Store(0, c.Proc.Mem); err != nil {
		return err
	}
	c.Proc.Singletons[SingletonPmdm] = pmdmAddr

	gdtmAddr := heapStart + uint64(GdtManager(c.Proc.Env).RelStart)
	tp, err := gdt.Loaded(isGetFlagNames())
	if err != nil {
		return err
	}
	tpAddr, err := c.Proxies.TriggerParam.Allocate(c.Proc.Mem, tp)
	if err != nil {
		return err
	}
	if err := GdtManagerPtr(gdtmAddr).FlagBuffer().Store(tpAddr, c.Proc.Mem); err != nil {
		return err
	}
	c.Proc.TriggerParamAddr = tpAddr
	c.Proc.Singletons[SingletonGdtManager] = gdtmAddr

	c.Proc.Singletons[SingletonInfoData] = heapStart + uint64(InfoData(c.Proc.Env).RelStart)
	c.Proc.Singletons[SingletonAocManager] = heapStart + uint64(AocManager(c.Proc.Env).RelStart)
	return nil
}
