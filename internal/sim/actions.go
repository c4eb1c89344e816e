package sim

import (
	"sort"

	"github.com/zboralski/pouchsim/internal/game"
	"github.com/zboralski/pouchsim/internal/gdt"
	"github.com/zboralski/pouchsim/internal/script"
)

// execute dispatches one command to its action. Action-level failures
// are recorded against the step's span; only process-level failures
// (crashes) propagate as errors.
func (r *Runner) execute(ctx *Context, cmd script.Command, errors *[]ErrorReport) error {
	switch c := cmd.(type) {
	case script.CmdGet:
		return r.getItems(ctx, c.Items, false, errors)
	case script.CmdBuy:
		return r.getItems(ctx, c.Items, true, errors)
	case script.CmdPickUp:
		return r.pickUp(ctx, c.Items, errors)
	case script.CmdHold:
		return r.holdItems(ctx, c.Items, holdNormal, errors)
	case script.CmdHoldSmuggle:
		return r.holdItems(ctx, c.Items, holdSmuggle, errors)
	case script.CmdHoldAttach:
		return r.holdItems(ctx, c.Items, holdAttach, errors)
	case script.CmdUnhold:
		return r.unhold(ctx, errors)
	case script.CmdDropHeld:
		return r.dropHeld(ctx, errors)
	case script.CmdDrop:
		return r.dropItems(ctx, c.Items, false, errors)
	case script.CmdDnp:
		return r.dropItems(ctx, c.Items, true, errors)
	case script.CmdCookHeld:
		return r.cookHeld(ctx, errors)
	case script.CmdCook:
		return r.cook(ctx, c.Items, errors)
	case script.CmdEat:
		return r.eat(ctx, c.Items, errors)
	case script.CmdSell:
		return r.sell(ctx, c.Items, errors)
	case script.CmdEquip:
		return r.equip(ctx, &c.Item, true, errors)
	case script.CmdUnequip:
		return r.equip(ctx, &c.Item, false, errors)
	case script.CmdUse:
		return r.useEquipped(ctx, c.Spec, errors)
	case script.CmdRoast:
		return r.transformGround(ctx, c.Items, transformRoast, errors)
	case script.CmdBoil:
		return r.transformGround(ctx, c.Items, transformBoil, errors)
	case script.CmdFreeze:
		return r.transformGround(ctx, c.Items, transformFreeze, errors)
	case script.CmdDestroy:
		return r.transformGround(ctx, c.Items, transformDestroy, errors)
	case script.CmdSort:
		return r.sortCategory(ctx, c.Spec, errors)
	case script.CmdEntangle:
		return r.entangle(ctx, &c.Item, errors)
	case script.CmdTargeting:
		return r.setTargeting(ctx, &c.Item, errors)
	case script.CmdSave:
		return r.saveTo(manualSaveName)
	case script.CmdSaveAs:
		return r.saveTo(c.Name)
	case script.CmdReload:
		return r.reloadCmd(ctx, manualSaveName, errors)
	case script.CmdReloadFrom:
		return r.reloadCmd(ctx, c.Name, errors)
	case script.CmdCloseGame:
		r.state = stateClosed
		return nil
	case script.CmdNewGame:
		if err := r.reset(); err != nil {
			return err
		}
		return nil
	case script.CmdOpenInv:
		_, err := r.sys.Screen.TransitionToInventory(ctx, &r.sys, true, errors)
		return err
	case script.CmdCloseInv:
		_, err := r.sys.Screen.TransitionToOverworld(ctx, &r.sys, true, errors)
		return err
	case script.CmdTalk:
		_, err := r.sys.Screen.TransitionToShop(ctx, &r.sys, false, true, errors)
		return err
	case script.CmdUntalk:
		_, err := r.sys.Screen.TransitionToOverworld(ctx, &r.sys, true, errors)
		return err
	case script.CmdEnter:
		return r.enterTrial(ctx, errors)
	case script.CmdExit:
		return r.exitTrial(ctx, true, errors)
	case script.CmdLeave:
		return r.exitTrial(ctx, false, errors)
	case script.CmdBreakSlots:
		return r.breakSlots(ctx, c.N)
	case script.CmdInit:
		return r.addSlots(ctx, c.Items, true, errors)
	case script.CmdAddSlot:
		return r.addSlots(ctx, c.Items, false, errors)
	default:
		*errors = append(*errors, simError(ctx.span, ErrUnimplemented))
		return nil
	}
}

// convertAmount resolves an amount spec against the target collection
// at the current moment.
func convertAmount(spec script.AmountSpec, span script.Span, errors *[]ErrorReport, count func() (int64, error)) (int64, error) {
	switch spec.Kind {
	case script.AmountAll:
		return count()
	case script.AmountAllBut:
		have, err := count()
		if err != nil {
			return 0, err
		}
		if have < spec.N {
			*errors = append(*errors, simErrorf(span, ErrNotEnoughForAllBut, "need %d, have %d", spec.N, have))
			return 0, nil
		}
		return have - spec.N, nil
	default:
		return spec.N, nil
	}
}

// metaModifier derives the weapon modifier carried by an item meta.
func metaModifier(meta *script.ItemMeta) *game.WeaponModifierInfo {
	if meta == nil || meta.SellPrice == nil {
		return nil
	}
	mod := &game.WeaponModifierInfo{Flags: uint32(*meta.SellPrice)}
	if meta.LifeRecover != nil {
		mod.Value = *meta.LifeRecover
	}
	return mod
}

// getValueFor computes one ItemGet call's value for an actor.
func getValueFor(actor string, meta *script.ItemMeta) int32 {
	if meta != nil && meta.Value != nil {
		return *meta.Value
	}
	if life := game.GetWeaponGeneralLife(actor); life > 0 {
		return life * 100
	}
	return 1
}

// getItems materializes items into the inventory; the buy variant runs
// from the shop dialog.
func (r *Runner) getItems(ctx *Context, items []script.ItemSpec, buy bool, errors *[]ErrorReport) error {
	if buy {
		ok, err := r.sys.Screen.TransitionToShop(ctx, &r.sys, false, false, errors)
		if err != nil || !ok {
			return err
		}
	} else {
		ok, err := r.sys.Screen.TransitionToOverworld(ctx, &r.sys, false, errors)
		if err != nil || !ok {
			return err
		}
	}
	for _, item := range items {
		for n := int64(0); n < item.Amount; n++ {
			if ctx.IsAborted() {
				return nil
			}
			_, err := ctx.backend.ItemGet(ctx.c, item.Item.Actor, getValueFor(item.Item.Actor, item.Item.Meta), metaModifier(item.Item.Meta))
			if err != nil {
				return err
			}
		}
		if eq := item.Item.Meta; eq != nil && eq.Equip != nil && *eq.Equip {
			if err := r.equipByName(ctx, item.Item.Actor); err != nil {
				return err
			}
		}
	}
	return nil
}

// equipByName equips the first slot holding the actor.
func (r *Runner) equipByName(ctx *Context, actor string) error {
	item, err := hostBackend{}.findSlot(ctx.c, r.pmdm(), actor)
	if err != nil || item.IsNull() {
		return err
	}
	return ctx.backend.Equip(ctx.c, item)
}

func (r *Runner) pmdm() game.PmdmPtr {
	addr := r.core.Proc.Singletons[game.SingletonPmdm]
	return game.PmdmPtr(addr)
}

// pickUp takes items from the ground into the inventory.
func (r *Runner) pickUp(ctx *Context, items []script.ItemSelectSpec, errors *[]ErrorReport) error {
	ok, err := r.sys.Screen.TransitionToOverworld(ctx, &r.sys, false, errors)
	if err != nil || !ok {
		return err
	}
	for _, item := range items {
		amount, err := convertAmount(item.Amount, item.Span, errors, func() (int64, error) {
			var n int64
			r.sys.Overworld.iterGround(func(h groundHandle, a *OverworldActor) bool {
				if !item.Target.IsCategory && a.Name == item.Target.Item.Actor {
					n++
				} else if item.Target.IsCategory && game.GetPouchItemType(a.Name).Category() == categoryToPouch(item.Target.Category) {
					n++
				}
				return false
			})
			return n, nil
		})
		if err != nil {
			return err
		}
		for n := int64(0); n < amount; n++ {
			if ctx.IsAborted() {
				return nil
			}
			handle, found := r.sys.Overworld.GroundSelect(&item.Target, item.Span, errors)
			if !found {
				*errors = append(*errors, simError(item.Span, ErrCannotFindGroundItem))
				break
			}
			actor := r.sys.Overworld.RemoveGround(handle)
			if _, err := ctx.backend.ItemGet(ctx.c, actor.Name, actor.Value, actor.Modifier); err != nil {
				return err
			}
		}
	}
	return nil
}

type holdMode int

const (
	holdNormal holdMode = iota
	holdSmuggle
	holdAttach
)

// holdItems grabs materials in the inventory screen, with PE target
// redirection when an activated slot is held.
func (r *Runner) holdItems(ctx *Context, items []script.ItemSelectSpec, mode holdMode, errors *[]ErrorReport) error {
	ok, err := r.sys.Screen.TransitionToInventory(ctx, &r.sys, false, errors)
	if err != nil || !ok {
		return err
	}
	r.sys.Screen.HoldingInInventory = true
	pouch := r.sys.Screen.Pouch()
	m := ctx.c.Proc.Mem

outer:
	for i := range items {
		item := &items[i]
		remaining, err := convertAmount(item.Amount, item.Span, errors, func() (int64, error) {
			return pouch.GetAmount(m, &item.Target, CountValue)
		})
		if err != nil {
			return err
		}
		found := false
		for remaining > 0 {
			if ctx.IsAborted() {
				break outer
			}
			tab, slot, ok, err := pouch.Select(m, &item.Target, 1, item.Span, errors)
			if err != nil {
				return err
			}
			if !ok {
				break
			}
			state, ptr := pouch.Get(tab, slot)
			if state != SlotNormal {
				*errors = append(*errors, simError(item.Span, ErrInvalidItemTarget))
				break
			}
			typRaw, err := ptr.Type().Load(m)
			if err != nil {
				return err
			}
			if game.PouchItemType(typRaw) != game.PouchItemTypeMaterial {
				*errors = append(*errors, simError(item.Span, ErrNotHoldable))
				found = true
				break
			}
			// PE redirection: holding an activated slot operates on the
			// targeting slot instead
			useTab, useSlot := tab, slot
			if tTab, tSlot, set := pouch.PeTarget(); set && pouch.IsPeActivated(tab, slot) {
				if !pouch.IsPeActivated(tTab, tSlot) {
					*errors = append(*errors, simError(item.Span, ErrInvalidPromptTarget))
					break
				}
				useTab, useSlot = tTab, tSlot
			}
			canHold, err := ctx.backend.CanHoldAnotherItem(ctx.c, len(r.sys.held))
			if err != nil {
				return err
			}
			if !canHold {
				*errors = append(*errors, simError(item.Span, ErrCannotHoldMore))
				break outer
			}
			_, usePtr := pouch.Get(useTab, useSlot)
			name, err := usePtr.Name().Load(m)
			if err != nil {
				return err
			}
			if err := ctx.backend.TrashItem(ctx.c, int32(useTab), pouch.CorrectedSlot(useTab, useSlot), usePtr); err != nil {
				return err
			}
			r.sys.held = append(r.sys.held, heldEntry{ptr: usePtr, name: name})
			if err := pouch.Update(useTab, useSlot, m); err != nil {
				return err
			}
			remaining--
			found = true
		}
		if !found && remaining > 0 {
			*errors = append(*errors, simError(item.Span, ErrCannotFindItem))
		}
	}

	switch mode {
	case holdSmuggle, holdAttach:
		if _, err := r.sys.Screen.TransitionToOverworld(ctx, &r.sys, false, errors); err != nil {
			return err
		}
		if mode == holdAttach {
			r.sys.Overworld.SetHeldAttached(true)
		}
	}
	return nil
}

// unhold returns grabbed items to their slots.
func (r *Runner) unhold(ctx *Context, errors *[]ErrorReport) error {
	if len(r.sys.held) == 0 && !r.sys.Overworld.IsHolding() {
		*errors = append(*errors, simWarning(ctx.span, ErrNotHolding))
		return nil
	}
	m := ctx.c.Proc.Mem
	for _, h := range r.sys.held {
		value, err := h.ptr.Value().Load(m)
		if err != nil {
			return err
		}
		if err := h.ptr.Value().Store(value+1, m); err != nil {
			return err
		}
		if err := h.ptr.InInventory().Store(true, m); err != nil {
			return err
		}
	}
	r.sys.held = nil
	r.sys.Screen.HoldingInInventory = false
	r.sys.Overworld.DeleteHeldItems()
	if pouch := r.sys.Screen.Pouch(); pouch != nil {
		for ti := range pouch.tabs {
			for si := range pouch.tabs[ti] {
				if err := pouch.Update(ti, si, m); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// dropHeld drops the items held in the overworld.
func (r *Runner) dropHeld(ctx *Context, errors *[]ErrorReport) error {
	ok, err := r.sys.Screen.TransitionToOverworld(ctx, &r.sys, false, errors)
	if err != nil || !ok {
		return err
	}
	if !r.sys.Overworld.IsHolding() {
		*errors = append(*errors, simWarning(ctx.span, ErrNotHolding))
		return nil
	}
	if err := ctx.backend.RemoveHeldItems(ctx.c, r.sys.heldPtrs()); err != nil {
		return err
	}
	r.sys.held = nil
	r.sys.Screen.HoldingInInventory = false
	r.sys.Overworld.DropHeldItems()
	return nil
}

// dropItems routes by item type: holdable materials are held then
// dropped one at a time; equipment uses the drop prompt.
func (r *Runner) dropItems(ctx *Context, items []script.ItemSelectSpec, pickUpAfter bool, errors *[]ErrorReport) error {
	if r.sys.Screen.HoldingInInventory && r.sys.Screen.Tag() == ScreenInventory {
		*errors = append(*errors, simError(ctx.span, ErrCannotDoWhileHoldingInInv))
		return nil
	}
	for i := range items {
		item := &items[i]
		if item.Target.IsCategory {
			if err := r.dropEquipment(ctx, item, errors); err != nil {
				return err
			}
			continue
		}
		actor := item.Target.Item.Actor
		typ := game.GetPouchItemType(actor)
		switch typ {
		case game.PouchItemTypeSword, game.PouchItemTypeBow, game.PouchItemTypeShield:
			if err := r.dropEquipment(ctx, item, errors); err != nil {
				return err
			}
			continue
		case game.PouchItemTypeKeyItem, game.PouchItemTypeArmorHead, game.PouchItemTypeArmorUpper, game.PouchItemTypeArmorLower:
			*errors = append(*errors, simError(item.Span, ErrNotDroppable))
			continue
		}
		// materials: hold one at a time, then drop in the overworld
		if r.sys.Overworld.IsHolding() {
			if ok, err := r.sys.Screen.TransitionToOverworld(ctx, &r.sys, false, errors); err != nil || !ok {
				return err
			}
			if err := r.dropHeld(ctx, errors); err != nil {
				return err
			}
		}
		ok, err := r.sys.Screen.TransitionToInventory(ctx, &r.sys, false, errors)
		if err != nil || !ok {
			return err
		}
		pouch := r.sys.Screen.Pouch()
		amount, err := convertAmount(item.Amount, item.Span, errors, func() (int64, error) {
			return pouch.GetAmount(ctx.c.Proc.Mem, &item.Target, CountValue)
		})
		if err != nil {
			return err
		}
		one := *item
		one.Amount = script.Num(1)
		for n := int64(0); n < amount; n++ {
			if ctx.IsAborted() {
				return nil
			}
			if err := r.holdItems(ctx, []script.ItemSelectSpec{one}, holdNormal, errors); err != nil {
				return err
			}
			if ok, err := r.sys.Screen.TransitionToOverworld(ctx, &r.sys, false, errors); err != nil || !ok {
				return err
			}
			if !r.sys.Overworld.IsHolding() {
				*errors = append(*errors, simError(item.Span, ErrOperationNotComplete))
				break
			}
			if err := r.dropHeld(ctx, errors); err != nil {
				return err
			}
			if pickUpAfter {
				target := item.Target
				if target.Item.Meta != nil {
					metaCopy := *target.Item.Meta
					metaCopy.Position = nil
					target.Item.Meta = &metaCopy
				}
				handle, found := r.sys.Overworld.GroundSelect(&target, item.Span, errors)
				if !found {
					*errors = append(*errors, simError(item.Span, ErrCannotFindGroundItem))
					continue
				}
				a := r.sys.Overworld.RemoveGround(handle)
				if _, err := ctx.backend.ItemGet(ctx.c, a.Name, a.Value, a.Modifier); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// dropEquipment drops equipment through the inventory drop prompt: the
// slot empties and the actor spawns on the ground when the screen
// closes.
func (r *Runner) dropEquipment(ctx *Context, item *script.ItemSelectSpec, errors *[]ErrorReport) error {
	ok, err := r.sys.Screen.TransitionToInventory(ctx, &r.sys, false, errors)
	if err != nil || !ok {
		return err
	}
	pouch := r.sys.Screen.Pouch()
	m := ctx.c.Proc.Mem
	amount, err := convertAmount(item.Amount, item.Span, errors, func() (int64, error) {
		return pouch.GetAmount(m, &item.Target, CountSlots)
	})
	if err != nil {
		return err
	}
	for n := int64(0); n < amount; n++ {
		if ctx.IsAborted() {
			return nil
		}
		tab, slot, found, err := pouch.Select(m, &item.Target, 0, item.Span, errors)
		if err != nil {
			return err
		}
		if !found {
			*errors = append(*errors, simError(item.Span, ErrCannotFindItem))
			break
		}
		_, ptr := pouch.Get(tab, slot)
		name, err := ptr.Name().Load(m)
		if err != nil {
			return err
		}
		value, err := ptr.Value().Load(m)
		if err != nil {
			return err
		}
		sell, err := ptr.SellPrice().Load(m)
		if err != nil {
			return err
		}
		health, err := ptr.HealthRecover().Load(m)
		if err != nil {
			return err
		}
		actor := OverworldActor{Name: name, Value: value}
		if sell != 0 {
			actor.Modifier = &game.WeaponModifierInfo{Flags: uint32(sell), Value: health}
		}
		if err := ctx.backend.TrashItem(ctx.c, int32(tab), pouch.CorrectedSlot(tab, slot), ptr); err != nil {
			return err
		}
		// the dropped slot empties and is flushed when the screen closes
		if err := ptr.Value().Store(0, m); err != nil {
			return err
		}
		if err := ptr.InInventory().Store(false, m); err != nil {
			return err
		}
		if err := pouch.Update(tab, slot, m); err != nil {
			return err
		}
		r.sys.Overworld.QueueGroundWeapon(actor)
	}
	return nil
}

// cook holds the listed materials (up to five) then cooks them.
func (r *Runner) cook(ctx *Context, items []script.ItemSelectSpec, errors *[]ErrorReport) error {
	if err := r.holdItems(ctx, items, holdNormal, errors); err != nil {
		return err
	}
	return r.cookHeld(ctx, errors)
}

// cookHeld turns the held materials into one cooked dish.
func (r *Runner) cookHeld(ctx *Context, errors *[]ErrorReport) error {
	if len(r.sys.held) == 0 {
		*errors = append(*errors, simWarning(ctx.span, ErrNotHolding))
		return nil
	}
	ingredients := r.sys.heldNames()
	lifeRecover := float32(4 * len(ingredients))
	if err := ctx.backend.CookItemGet(ctx.c, "Item_Cook_A_01", ingredients, lifeRecover, 0, 10*int32(len(ingredients)), -1, 0); err != nil {
		return err
	}
	if err := ctx.backend.RemoveHeldItems(ctx.c, r.sys.heldPtrs()); err != nil {
		return err
	}
	r.sys.held = nil
	r.sys.Screen.HoldingInInventory = false
	r.sys.Overworld.DeleteHeldItems()
	return nil
}

// eat consumes items from the inventory, honoring PE redirection.
func (r *Runner) eat(ctx *Context, items []script.ItemSelectSpec, errors *[]ErrorReport) error {
	ok, err := r.sys.Screen.TransitionToInventory(ctx, &r.sys, false, errors)
	if err != nil || !ok {
		return err
	}
	pouch := r.sys.Screen.Pouch()
	m := ctx.c.Proc.Mem
	for i := range items {
		item := &items[i]
		amount, err := convertAmount(item.Amount, item.Span, errors, func() (int64, error) {
			return pouch.GetAmount(m, &item.Target, CountValue)
		})
		if err != nil {
			return err
		}
		for n := int64(0); n < amount; n++ {
			if ctx.IsAborted() {
				return nil
			}
			tab, slot, found, err := pouch.Select(m, &item.Target, 1, item.Span, errors)
			if err != nil {
				return err
			}
			if !found {
				*errors = append(*errors, simError(item.Span, ErrCannotFindItem))
				break
			}
			// PE: eating through an activated slot empties the
			// targeting slot into a translucent state instead
			if tTab, tSlot, set := pouch.PeTarget(); set && pouch.IsPeActivated(tab, slot) {
				_, target := pouch.Get(tTab, tSlot)
				if target != 0 {
					if err := target.Value().Store(0, m); err != nil {
						return err
					}
					if err := target.InInventory().Store(false, m); err != nil {
						return err
					}
					if err := pouch.Update(tTab, tSlot, m); err != nil {
						return err
					}
					continue
				}
			}
			_, ptr := pouch.Get(tab, slot)
			if err := ctx.backend.UseItem(ctx.c, ptr); err != nil {
				return err
			}
			if err := pouch.Update(tab, slot, m); err != nil {
				return err
			}
		}
	}
	return nil
}

// sell sells items through the shop dialog.
func (r *Runner) sell(ctx *Context, items []script.ItemSelectSpec, errors *[]ErrorReport) error {
	ok, err := r.sys.Screen.TransitionToShop(ctx, &r.sys, true, false, errors)
	if err != nil || !ok {
		return err
	}
	pmdm := r.pmdm()
	m := ctx.c.Proc.Mem
	for i := range items {
		item := &items[i]
		if item.Target.IsCategory {
			*errors = append(*errors, simError(item.Span, ErrUnimplemented))
			continue
		}
		actor := item.Target.Item.Actor
		if game.GetPouchItemType(actor) == game.PouchItemTypeKeyItem {
			*errors = append(*errors, simErrorf(item.Span, ErrNotSellable, "%s", actor))
			continue
		}
		amount, err := convertAmount(item.Amount, item.Span, errors, func() (int64, error) {
			slot, err := hostBackend{}.findSlot(ctx.c, pmdm, actor)
			if err != nil || slot.IsNull() {
				return 0, err
			}
			v, err := slot.Value().Load(m)
			return int64(v), err
		})
		if err != nil {
			return err
		}
		if amount == 0 {
			continue
		}
		slot, err := hostBackend{}.findSlot(ctx.c, pmdm, actor)
		if err != nil {
			return err
		}
		if slot.IsNull() {
			*errors = append(*errors, simError(item.Span, ErrCannotFindItem))
			continue
		}
		if err := ctx.backend.SellItem(ctx.c, slot, int32(amount)); err != nil {
			return err
		}
	}
	return nil
}

// equip toggles the equipped state of the selected slot.
func (r *Runner) equip(ctx *Context, item *script.ItemSelectSpec, on bool, errors *[]ErrorReport) error {
	ok, err := r.sys.Screen.TransitionToInventory(ctx, &r.sys, false, errors)
	if err != nil || !ok {
		return err
	}
	pouch := r.sys.Screen.Pouch()
	m := ctx.c.Proc.Mem
	tab, slot, found, err := pouch.Select(m, &item.Target, 0, item.Span, errors)
	if err != nil {
		return err
	}
	if !found {
		*errors = append(*errors, simError(item.Span, ErrCannotFindItem))
		return nil
	}
	_, ptr := pouch.Get(tab, slot)
	typRaw, err := ptr.Type().Load(m)
	if err != nil {
		return err
	}
	typ := game.PouchItemType(typRaw)
	switch typ {
	case game.PouchItemTypeSword, game.PouchItemTypeBow, game.PouchItemTypeShield,
		game.PouchItemTypeArrow, game.PouchItemTypeArmorHead, game.PouchItemTypeArmorUpper,
		game.PouchItemTypeArmorLower:
	default:
		*errors = append(*errors, simError(item.Span, ErrNotEquipment))
		return nil
	}
	equipped, err := ptr.Equipped().Load(m)
	if err != nil {
		return err
	}
	if on {
		if equipped {
			*errors = append(*errors, simError(item.Span, ErrItemAlreadyEquipped))
			return nil
		}
		return ctx.backend.Equip(ctx.c, ptr)
	}
	if typ == game.PouchItemTypeArrow {
		*errors = append(*errors, simError(item.Span, ErrCannotUnequipArrow))
		return nil
	}
	if !equipped {
		*errors = append(*errors, simError(item.Span, ErrItemAlreadyUnequipped))
		return nil
	}
	return ctx.backend.Unequip(ctx.c, ptr)
}

// useEquipped spends the equipped item of a category: equipment loses
// durability, bows additionally spend arrows.
func (r *Runner) useEquipped(ctx *Context, spec script.CategorySpec, errors *[]ErrorReport) error {
	ok, err := r.sys.Screen.TransitionToOverworld(ctx, &r.sys, false, errors)
	if err != nil || !ok {
		return err
	}
	pmdm := r.pmdm()
	m := ctx.c.Proc.Mem
	category := categoryToPouch(spec.Category)

	list1 := pmdm.List1()
	node, err := list1.Head(m)
	if err != nil {
		return err
	}
	var target game.PouchItemPtr
	for guard := 0; node != 0 && guard <= game.NumPouchItems; guard++ {
		item, err := list1.ItemOf(node, m)
		if err != nil {
			return err
		}
		typRaw, err := item.Type().Load(m)
		if err != nil {
			return err
		}
		equipped, err := item.Equipped().Load(m)
		if err != nil {
			return err
		}
		wantArrow := spec.Category == script.CategoryBow || spec.Category == script.CategoryArrow
		typ := game.PouchItemType(typRaw)
		if equipped && (typ.Category() == category || (wantArrow && typ == game.PouchItemTypeArrow)) {
			if spec.Category != script.CategoryBow || typ == game.PouchItemTypeArrow || target == 0 {
				target = item
			}
			if !wantArrow || typ == game.PouchItemTypeArrow {
				break
			}
		}
		node, err = list1.NextOf(node, m)
		if err != nil {
			return err
		}
	}
	if target.IsNull() {
		*errors = append(*errors, simError(ctx.span, ErrCannotFindItem))
		return nil
	}
	value, err := target.Value().Load(m)
	if err != nil {
		return err
	}
	typRaw, err := target.Type().Load(m)
	if err != nil {
		return err
	}
	spend := int32(spec.Times)
	if game.PouchItemType(typRaw) != game.PouchItemTypeArrow {
		spend *= 100
	}
	next := value - spend
	if next > 0 {
		return target.Value().Store(next, m)
	}
	return hostBackend{}.removeSlot(ctx.c, target)
}

type groundTransform int

const (
	transformRoast groundTransform = iota
	transformBoil
	transformFreeze
	transformDestroy
)

// roastMap maps raw actors to their transformed versions.
var roastMap = map[string]string{
	"Item_Fruit_A": "Item_Roast_03",
}

// transformGround applies an overworld transformation to ground items.
func (r *Runner) transformGround(ctx *Context, items []script.ItemSelectSpec, kind groundTransform, errors *[]ErrorReport) error {
	ok, err := r.sys.Screen.TransitionToOverworld(ctx, &r.sys, false, errors)
	if err != nil || !ok {
		return err
	}
	for i := range items {
		item := &items[i]
		amount, err := convertAmount(item.Amount, item.Span, errors, func() (int64, error) {
			var n int64
			r.sys.Overworld.iterGround(func(h groundHandle, a *OverworldActor) bool {
				if !item.Target.IsCategory && a.Name == item.Target.Item.Actor {
					n++
				}
				return false
			})
			return n, nil
		})
		if err != nil {
			return err
		}
		for n := int64(0); n < amount; n++ {
			if ctx.IsAborted() {
				return nil
			}
			handle, found := r.sys.Overworld.GroundSelect(&item.Target, item.Span, errors)
			if !found {
				*errors = append(*errors, simError(item.Span, ErrCannotFindGroundItem))
				break
			}
			actor := r.sys.Overworld.RemoveGround(handle)
			switch kind {
			case transformDestroy:
				// removed, nothing spawns
			case transformRoast:
				if roasted, ok := roastMap[actor.Name]; ok {
					r.sys.Overworld.groundMaterials = append(r.sys.Overworld.groundMaterials, OverworldActor{Name: roasted, Value: 1})
				} else {
					*errors = append(*errors, simError(item.Span, ErrUnimplemented))
				}
			case transformBoil:
				r.sys.Overworld.groundMaterials = append(r.sys.Overworld.groundMaterials, OverworldActor{Name: "Item_Boiled_01", Value: 1})
			case transformFreeze:
				r.sys.Overworld.groundMaterials = append(r.sys.Overworld.groundMaterials, actor)
			}
		}
	}
	return nil
}

// sortCategory reorders the materialized tab slots of a category; a
// pure screen-state effect.
func (r *Runner) sortCategory(ctx *Context, spec script.CategorySpec, errors *[]ErrorReport) error {
	ok, err := r.sys.Screen.TransitionToInventory(ctx, &r.sys, false, errors)
	if err != nil || !ok {
		return err
	}
	pouch := r.sys.Screen.Pouch()
	m := ctx.c.Proc.Mem
	category := categoryToPouch(spec.Category)
	for ti := range pouch.tabs {
		if pouch.tabTypes[ti] != category {
			continue
		}
		tab := pouch.tabs[ti]
		names := make([]string, len(tab))
		for si, it := range tab {
			if it.ptr != 0 {
				if names[si], err = it.ptr.Name().Load(m); err != nil {
					return err
				}
			}
		}
		sort.SliceStable(tab, func(a, b int) bool { return names[a] < names[b] })
	}
	return nil
}

// entangle activates prompt entanglement on the selected slot.
func (r *Runner) entangle(ctx *Context, item *script.ItemSelectSpec, errors *[]ErrorReport) error {
	ok, err := r.sys.Screen.TransitionToInventory(ctx, &r.sys, false, errors)
	if err != nil || !ok {
		return err
	}
	pouch := r.sys.Screen.Pouch()
	tab, slot, found, err := pouch.Select(ctx.c.Proc.Mem, &item.Target, 0, item.Span, errors)
	if err != nil {
		return err
	}
	if !found {
		*errors = append(*errors, simError(item.Span, ErrCannotFindItem))
		return nil
	}
	pouch.Entangle(tab, slot)
	return nil
}

// setTargeting records the PE redirection target.
func (r *Runner) setTargeting(ctx *Context, item *script.ItemSelectSpec, errors *[]ErrorReport) error {
	pouch := r.sys.Screen.Pouch()
	if pouch == nil {
		*errors = append(*errors, simError(ctx.span, ErrNotRightScreen))
		return nil
	}
	tab, slot, found, err := pouch.Select(ctx.c.Proc.Mem, &item.Target, 0, item.Span, errors)
	if err != nil {
		return err
	}
	if !found {
		*errors = append(*errors, simError(item.Span, ErrCannotFindPromptTarget))
		return nil
	}
	pouch.SetPeTarget(tab, slot)
	return nil
}

// reloadCmd restores a save slot, resetting driver state like the game
// does on load.
func (r *Runner) reloadCmd(ctx *Context, name string, errors *[]ErrorReport) error {
	if err := r.reloadFrom(name, ctx.span, errors); err != nil {
		return err
	}
	r.sys = GameSystems{Screen: ScreenSystem{MenuOverload: r.sys.Screen.MenuOverload}}
	return nil
}

// enterTrial swaps the inventory out for the trial.
func (r *Runner) enterTrial(ctx *Context, errors *[]ErrorReport) error {
	if err := r.saveTo(trialBackupName); err != nil {
		return err
	}
	// the trial empties the pouch
	pmdm := r.pmdm()
	m := ctx.c.Proc.Mem
	for {
		node, err := pmdm.List1().PopFront(m)
		if err != nil {
			return err
		}
		if node.IsNull() {
			break
		}
		item := game.ItemFromNode(node)
		if err := item.Construct(m); err != nil {
			return err
		}
		if err := pmdm.List2().PushFront(item.Node(), m); err != nil {
			return err
		}
	}
	return r.backend.UpdateListHeads(ctx.c)
}

const trialBackupName = "__trial"

// exitTrial restores the pre-trial inventory; clearing the trial and
// leaving it restore the same state.
func (r *Runner) exitTrial(ctx *Context, clear bool, errors *[]ErrorReport) error {
	if _, ok := r.saves[trialBackupName]; !ok {
		*errors = append(*errors, simError(ctx.span, ErrNotRightScreen))
		return nil
	}
	if err := r.reloadFrom(trialBackupName, ctx.span, errors); err != nil {
		return err
	}
	delete(r.saves, trialBackupName)
	r.sys = GameSystems{Screen: ScreenSystem{MenuOverload: r.sys.Screen.MenuOverload}}
	return nil
}

// breakSlots desynchronizes list 1's count from its contents.
func (r *Runner) breakSlots(ctx *Context, n int32) error {
	pmdm := r.pmdm()
	m := ctx.c.Proc.Mem
	c1, err := pmdm.List1().Count().Load(m)
	if err != nil {
		return err
	}
	c2, err := pmdm.List2().Count().Load(m)
	if err != nil {
		return err
	}
	if err := pmdm.List1().Count().Store(c1-n, m); err != nil {
		return err
	}
	return pmdm.List2().Count().Store(c2+n, m)
}

// addSlots pushes items directly through the pool helper, bypassing the
// emulator; init resets the lists first.
func (r *Runner) addSlots(ctx *Context, items []script.ItemSpec, init bool, errors *[]ErrorReport) error {
	pmdm := r.pmdm()
	m := ctx.c.Proc.Mem
	if init {
		if err := pmdm.List1().ConstructWithOffset(8, m); err != nil {
			return err
		}
		if err := pmdm.List2().ConstructWithOffset(8, m); err != nil {
			return err
		}
		for i := 0; i < game.NumPouchItems; i++ {
			item := pmdm.Item(i)
			if err := item.Construct(m); err != nil {
				return err
			}
			if err := pmdm.List2().PushFront(item.Node(), m); err != nil {
				return err
			}
		}
		r.sys = GameSystems{Screen: ScreenSystem{MenuOverload: r.sys.Screen.MenuOverload}}
	}
	for _, item := range items {
		actor := item.Item.Actor
		canStack := game.CanStack(actor)
		amount := item.Amount
		value := int32(1)
		switch {
		case item.Item.Meta != nil && item.Item.Meta.Value != nil:
			value = *item.Item.Meta.Value
		case canStack:
			// the amount becomes the stack value
			value = int32(amount)
			amount = 1
		default:
			if life := game.GetWeaponGeneralLife(actor); life > 0 {
				value = life * 100
			}
		}
		for n := int64(0); n < amount; n++ {
			added, err := r.addOneSlot(ctx, actor, value, item.Item.Meta)
			if err != nil {
				return err
			}
			if !added {
				*errors = append(*errors, simError(item.Span, ErrCannotGetMore))
				break
			}
		}
	}
	if err := r.backend.UpdateListHeads(ctx.c); err != nil {
		return err
	}
	return r.backend.SaveToGameData(ctx.c)
}

func (r *Runner) addOneSlot(ctx *Context, actor string, value int32, meta *script.ItemMeta) (bool, error) {
	pmdm := r.pmdm()
	m := ctx.c.Proc.Mem
	item, err := pmdm.PushNewItem(m)
	if err != nil {
		return false, err
	}
	if item.IsNull() {
		return false, nil
	}
	if err := item.Type().Store(int32(game.GetPouchItemType(actor)), m); err != nil {
		return false, err
	}
	if err := item.Use().Store(int32(game.GetPouchItemUse(actor)), m); err != nil {
		return false, err
	}
	if err := item.Value().Store(value, m); err != nil {
		return false, err
	}
	equipped := meta != nil && meta.Equip != nil && *meta.Equip
	if err := item.Equipped().Store(equipped, m); err != nil {
		return false, err
	}
	if err := item.InInventory().Store(true, m); err != nil {
		return false, err
	}
	if meta != nil {
		if meta.LifeRecover != nil {
			if err := item.HealthRecover().Store(*meta.LifeRecover, m); err != nil {
				return false, err
			}
		}
		if meta.EffectDuration != nil {
			if err := item.EffectDuration().Store(*meta.EffectDuration, m); err != nil {
				return false, err
			}
		}
		if meta.SellPrice != nil {
			if err := item.SellPrice().Store(*meta.SellPrice, m); err != nil {
				return false, err
			}
		}
		if meta.EffectID != nil {
			if err := item.EffectID().Store(float32(*meta.EffectID), m); err != nil {
				return false, err
			}
		}
		if meta.EffectLevel != nil {
			if err := item.EffectLevel().Store(*meta.EffectLevel, m); err != nil {
				return false, err
			}
		}
		for i, ingredient := range meta.Ingredients {
			if i >= game.NumIngredients {
				break
			}
			if err := item.Ingredient(i).Construct(m); err != nil {
				return false, err
			}
			if err := item.Ingredient(i).SafeStore(ingredient, m); err != nil {
				return false, err
			}
		}
	}
	if err := item.Name().Construct(m); err != nil {
		return false, err
	}
	if err := item.Name().SafeStore(actor, m); err != nil {
		return false, err
	}
	return true, ctx.c.WithGdtMut(func(tp *gdt.TriggerParam) {
		if f := tp.Bool.ByName("IsGet_" + actor); f != nil {
			f.Set(true)
		}
		if category := game.GetPouchItemType(actor).Category(); category != game.PouchCategoryInvalid {
			if f := tp.BoolArr.ByName("IsOpenItemCategory"); f != nil {
				f.SetAt(int(category), true)
			}
		}
	})
}
