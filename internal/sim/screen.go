package sim

import (
	"github.com/zboralski/pouchsim/internal/cpu"
	"github.com/zboralski/pouchsim/internal/game"
	"github.com/zboralski/pouchsim/internal/gdt"
	"github.com/zboralski/pouchsim/internal/log"
	"github.com/zboralski/pouchsim/internal/script"
)

// simCore bundles the game core for the driver layers.
type simCore struct {
	Core *game.Core
	Proc *cpu.Process
}

func newSimCore(c *game.Core) *simCore {
	return &simCore{Core: c, Proc: c.Proc}
}

func (c *simCore) WithGdt(f func(*gdt.TriggerParam)) error    { return c.Core.WithGdt(f) }
func (c *simCore) WithGdtMut(f func(*gdt.TriggerParam)) error { return c.Core.WithGdtMut(f) }

type screenKind int

const (
	screenOverworld screenKind = iota
	screenInventory
	screenShop
)

// heldEntry tracks one item grabbed in the inventory screen.
type heldEntry struct {
	ptr  game.PouchItemPtr
	name string
}

// ScreenSystem threads the screen state machine: which UI context is
// active, whether it was entered manually, and the removal bookkeeping
// that the smuggle and translucency setups depend on.
type ScreenSystem struct {
	kind     screenKind
	shopSell bool
	pouch    *PouchScreen

	// manuallySwitched suppresses automatic transitions until the next
	// explicit return to the overworld.
	manuallySwitched bool

	// MenuOverload suppresses equipment model updates on close.
	MenuOverload bool

	// removeHeldAfterDialog delays held-item removal until the dialog
	// closes; the basis of the smuggle glitch.
	removeHeldAfterDialog bool

	// equippedToRemoveAfterDialog stores equipment removals until the
	// inventory closes; they run before the removed-item flush, which
	// is what makes translucent slots possible.
	equippedToRemoveAfterDialog []string

	// HoldingInInventory locks the pouch to hold/unhold while items
	// are grabbed; the state persists across menu close.
	HoldingInInventory bool
}

// Kind returns the snapshot tag for the current screen.
func (s *ScreenSystem) Tag() Screen {
	switch s.kind {
	case screenInventory:
		return ScreenInventory
	case screenShop:
		if s.shopSell {
			return ScreenShopSell
		}
		return ScreenShopBuy
	default:
		return ScreenOverworld
	}
}

// Pouch returns the open inventory screen, or nil.
func (s *ScreenSystem) Pouch() *PouchScreen {
	if s.kind != screenInventory {
		return nil
	}
	return s.pouch
}

// SetRemoveHeldAfterDialog arms the delayed held-item removal.
func (s *ScreenSystem) SetRemoveHeldAfterDialog() { s.removeHeldAfterDialog = true }

// SetRemoveEquipmentAfterDialog stores an equipment removal until the
// screen closes.
func (s *ScreenSystem) SetRemoveEquipmentAfterDialog(name string) {
	s.equippedToRemoveAfterDialog = append(s.equippedToRemoveAfterDialog, name)
}

// TransitionToInventory opens the pouch screen.
func (s *ScreenSystem) TransitionToInventory(ctx *Context, sys *GameSystems, manual bool, errors *[]ErrorReport) (bool, error) {
	switch s.kind {
	case screenInventory:
		if manual {
			*errors = append(*errors, simWarning(ctx.span, ErrUselessScreenTransition))
		}
		return true, nil
	case screenShop:
		ok, err := s.TransitionToOverworld(ctx, sys, false, errors)
		if err != nil || !ok {
			return ok, err
		}
	}
	if manual {
		s.manuallySwitched = true
	}
	pmdmAddr, err := game.SingletonInstance(ctx.c.Core, game.SingletonPmdm)
	if err != nil {
		return false, err
	}
	pouch, err := openPouchScreen(ctx.c.Proc.Mem, game.PmdmPtr(pmdmAddr))
	if err != nil {
		return false, err
	}
	s.kind = screenInventory
	s.pouch = pouch
	log.L.Debug("inventory screen opened")
	return true, nil
}

// TransitionToShop opens the shop dialog in buying or selling mode.
func (s *ScreenSystem) TransitionToShop(ctx *Context, sys *GameSystems, sell, manual bool, errors *[]ErrorReport) (bool, error) {
	switch s.kind {
	case screenInventory:
		ok, err := s.TransitionToOverworld(ctx, sys, false, errors)
		if err != nil || !ok {
			return ok, err
		}
	case screenShop:
		if s.shopSell == sell {
			if manual {
				*errors = append(*errors, simWarning(ctx.span, ErrUselessScreenTransition))
			}
			return true, nil
		}
		// shop modes switch without going back to the overworld
		if manual {
			s.manuallySwitched = true
		}
		s.shopSell = sell
		return true, nil
	}
	// entering a dialog from the overworld is impossible while holding
	// unless the items are attached, in which case they are dropped
	// automatically and cleaned up after the dialog
	switch sys.Overworld.PredropForAction(ctx.span, errors) {
	case PreDropHolding:
		return false, nil
	case PreDropAuto:
		sys.Overworld.DropHeldItems()
		s.removeHeldAfterDialog = true
	}
	if manual {
		s.manuallySwitched = true
	}
	s.kind = screenShop
	s.shopSell = sell
	return true, nil
}

// TransitionToOverworld closes the current screen. The ordering on an
// inventory close is load-bearing for several glitch setups: equipment
// models update first (unless menu overload), held actors spawn, stored
// equipment removals run, removed slots flush, ground weapons spawn,
// and finally delayed held-item removal runs.
func (s *ScreenSystem) TransitionToOverworld(ctx *Context, sys *GameSystems, manual bool, errors *[]ErrorReport) (bool, error) {
	if s.kind == screenOverworld {
		if manual {
			*errors = append(*errors, simWarning(ctx.span, ErrUselessScreenTransition))
		}
		return true, nil
	}
	if s.manuallySwitched && !manual {
		*errors = append(*errors, simError(ctx.span, ErrCannotAutoSwitchScreen))
		return false, nil
	}
	s.manuallySwitched = false

	dropItems := s.removeHeldAfterDialog
	s.removeHeldAfterDialog = false
	removeEquipments := s.equippedToRemoveAfterDialog
	s.equippedToRemoveAfterDialog = nil

	if s.kind == screenInventory {
		if !s.MenuOverload {
			if err := sys.updateOverworldEquipment(ctx); err != nil {
				return false, err
			}
		} else {
			log.L.Debug("menu overload: not updating overworld equipment")
		}
		// held actors spawn once; re-opening the menu with the same
		// grab does not duplicate them
		if !sys.Overworld.IsHolding() {
			var spawned []string
			err := ctx.backend.CreateHoldingItems(ctx.c, sys.heldNames(), func(name string) {
				if !s.MenuOverload {
					spawned = append(spawned, name)
				}
			})
			if err != nil {
				return false, err
			}
			sys.Overworld.SpawnHeldItems(spawned)
		}
	}
	for _, name := range removeEquipments {
		log.L.Debug("removing equipment on returning to overworld", log.Fn(name))
		if err := ctx.backend.RemoveWeaponIfEquipped(ctx.c, name); err != nil {
			return false, err
		}
	}
	if err := ctx.backend.DeleteRemovedItems(ctx.c); err != nil {
		return false, err
	}
	if !s.MenuOverload {
		sys.Overworld.SpawnGroundWeapons()
	} else {
		sys.Overworld.ClearSpawningWeapons()
	}
	if dropItems {
		if err := ctx.backend.RemoveHeldItems(ctx.c, sys.heldPtrs()); err != nil {
			return false, err
		}
		sys.held = nil
		sys.Overworld.DropHeldItems()
		s.HoldingInInventory = false
	}

	s.kind = screenOverworld
	s.pouch = nil
	return true, nil
}

// GameSystems is the per-run driver state threaded alongside the
// emulated game state.
type GameSystems struct {
	Screen    ScreenSystem
	Overworld OverworldSystem

	// held tracks the items grabbed in the inventory screen.
	held []heldEntry
}

func (g *GameSystems) heldNames() []string {
	out := make([]string, 0, len(g.held))
	for _, h := range g.held {
		out = append(out, h.name)
	}
	return out
}

func (g *GameSystems) heldPtrs() []game.PouchItemPtr {
	out := make([]game.PouchItemPtr, 0, len(g.held))
	for _, h := range g.held {
		out = append(out, h.ptr)
	}
	return out
}

// updateOverworldEquipment refreshes the overworld equipment models
// from the equipped pouch slots.
func (g *GameSystems) updateOverworldEquipment(ctx *Context) error {
	pmdmAddr, err := game.SingletonInstance(ctx.c.Core, game.SingletonPmdm)
	if err != nil {
		return err
	}
	pmdm := game.PmdmPtr(pmdmAddr)
	m := ctx.c.Proc.Mem
	list1 := pmdm.List1()
	node, err := list1.Head(m)
	if err != nil {
		return err
	}
	g.Overworld.Weapon = nil
	g.Overworld.Bow = nil
	g.Overworld.Shield = nil
	for guard := 0; node != 0 && guard <= game.NumPouchItems; guard++ {
		item, err := list1.ItemOf(node, m)
		if err != nil {
			return err
		}
		equipped, err := item.Equipped().Load(m)
		if err != nil {
			return err
		}
		inInv, err := item.InInventory().Load(m)
		if err != nil {
			return err
		}
		if equipped && inInv {
			typRaw, err := item.Type().Load(m)
			if err != nil {
				return err
			}
			typ := game.PouchItemType(typRaw)
			if typ == game.PouchItemTypeSword || typ == game.PouchItemTypeBow || typ == game.PouchItemTypeShield {
				name, err := item.Name().Load(m)
				if err != nil {
					return err
				}
				value, err := item.Value().Load(m)
				if err != nil {
					return err
				}
				sell, err := item.SellPrice().Load(m)
				if err != nil {
					return err
				}
				health, err := item.HealthRecover().Load(m)
				if err != nil {
					return err
				}
				actor := &OverworldActor{Name: name, Value: value}
				if sell != 0 {
					actor.Modifier = &game.WeaponModifierInfo{Flags: uint32(sell), Value: health}
				}
				g.Overworld.ChangePlayerEquipment(actor)
			}
		}
		node, err = list1.NextOf(node, m)
		if err != nil {
			return err
		}
	}
	return nil
}

// Context is the per-step execution context.
type Context struct {
	c       *simCore
	backend backend
	span    script.Span
	handle  *RunHandle
}

// IsAborted checks the cooperative abort flag; actions poll it once per
// outer loop iteration.
func (ctx *Context) IsAborted() bool {
	return ctx.handle != nil && ctx.handle.Aborted()
}
