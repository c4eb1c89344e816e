package linker

import (
	"github.com/zboralski/pouchsim/internal/cpu"
	"github.com/zboralski/pouchsim/internal/game"
	"github.com/zboralski/pouchsim/internal/memory"
)

// stackAllocString40 allocates a FixedSafeString40 on the stack and
// stores the value in it.
func stackAllocString40(c *game.Core, value string) (game.SafeString40Ptr, error) {
	addr, err := c.StackAlloc(game.FixedSafeString40Size)
	if err != nil {
		return 0, err
	}
	p := game.SafeString40Ptr(addr)
	if err := p.Construct(c.Proc.Mem); err != nil {
		return 0, err
	}
	if err := p.SafeStore(value, c.Proc.Mem); err != nil {
		return 0, err
	}
	return p, nil
}

// stackAllocModifier allocates a WeaponModifierInfo on the stack, or
// returns a null pointer for the no-modifier case.
func stackAllocModifier(c *game.Core, modifier *game.WeaponModifierInfo) (uint64, error) {
	if modifier == nil {
		return 0, nil
	}
	addr, err := c.StackAlloc(game.WeaponModifierInfoSize)
	if err != nil {
		return 0, err
	}
	ptr := memory.PtrAt[game.WeaponModifierInfo](addr)
	if err := ptr.Store(modifier, c.Proc.Mem); err != nil {
		return 0, err
	}
	return addr, nil
}

// call jumps into the function and runs it to completion.
func call(c *game.Core, fn string) error {
	rel, err := offsetFor(fn, c.Proc.Env)
	if err != nil {
		return err
	}
	return c.CallAtMainOffset(rel)
}

// pmdmThis resolves the manager's this pointer, booting it on first use.
func pmdmThis(c *game.Core) (uint64, error) {
	return game.SingletonInstance(c, game.SingletonPmdm)
}

// GetItem picks up one item with the default life. Calls the global
// item-get path.
func GetItem(c *game.Core, actor string, modifier *game.WeaponModifierInfo) error {
	c.ResetStack()
	namePtr, err := stackAllocString40(c, actor)
	if err != nil {
		return err
	}
	modPtr, err := stackAllocModifier(c, modifier)
	if err != nil {
		return err
	}
	c.Cpu.Regs.Set(cpu.X(0), uint64(namePtr))
	c.Cpu.Regs.Set(cpu.X(1), modPtr)
	if err := call(c, "doGetItem"); err != nil {
		return err
	}
	if err := c.StackCheck(uint64(namePtr)); err != nil {
		return err
	}
	return c.StackCheck(modPtr)
}

// GetCookItem adds a cooked item with the given cook data.
func GetCookItem(c *game.Core, actor string, ingredients []string, lifeRecover float32, effectTime, sellPrice, effectID int32, vitality float32, isCrit bool) error {
	c.ResetStack()
	this, err := pmdmThis(c)
	if err != nil {
		return err
	}
	addr, err := c.StackAlloc(game.CookItemSize)
	if err != nil {
		return err
	}
	item := game.CookItemPtr(addr)
	m := c.Proc.Mem
	if err := item.Construct(m); err != nil {
		return err
	}
	if err := item.ActorName().SafeStore(actor, m); err != nil {
		return err
	}
	for i, ingredient := range ingredients {
		if i >= game.NumIngredients {
			break
		}
		if err := item.Ingredient(i).SafeStore(ingredient, m); err != nil {
			return err
		}
	}
	if err := item.LifeRecover().Store(lifeRecover, m); err != nil {
		return err
	}
	if err := item.EffectTime().Store(effectTime, m); err != nil {
		return err
	}
	if err := item.SellPrice().Store(sellPrice, m); err != nil {
		return err
	}
	if err := item.EffectID().Store(effectID, m); err != nil {
		return err
	}
	if err := item.VitalityBoost().Store(vitality, m); err != nil {
		return err
	}
	if err := item.IsCrit().Store(isCrit, m); err != nil {
		return err
	}
	c.Cpu.Regs.Set(cpu.X(0), this)
	c.Cpu.Regs.Set(cpu.X(1), addr)
	if err := call(c, "cookItemGet"); err != nil {
		return err
	}
	return c.StackCheck(addr)
}

// PmdmItemGet adds an item through the manager's itemGet, with an
// explicit value and optional modifier.
func PmdmItemGet(c *game.Core, actor string, value int32, modifierFlags uint32, modifierValue int32) error {
	c.ResetStack()
	this, err := pmdmThis(c)
	if err != nil {
		return err
	}
	namePtr, err := stackAllocString40(c, actor)
	if err != nil {
		return err
	}
	var modPtr uint64
	if modifierFlags != 0 {
		modPtr, err = stackAllocModifier(c, &game.WeaponModifierInfo{Flags: modifierFlags, Value: modifierValue})
		if err != nil {
			return err
		}
	}
	c.Cpu.Regs.Set(cpu.X(0), this)
	c.Cpu.Regs.Set(cpu.X(1), uint64(namePtr))
	c.Cpu.Regs.Set(cpu.W(2), uint64(uint32(value)))
	c.Cpu.Regs.Set(cpu.X(3), modPtr)
	if err := call(c, "pmdmItemGet"); err != nil {
		return err
	}
	if err := c.StackCheck(uint64(namePtr)); err != nil {
		return err
	}
	return c.StackCheck(modPtr)
}

// LoadFromGameData rebuilds the pouch from the game-data table.
func LoadFromGameData(c *game.Core) error {
	c.ResetStack()
	this, err := pmdmThis(c)
	if err != nil {
		return err
	}
	c.Cpu.Regs.Set(cpu.X(0), this)
	return call(c, "loadFromGameData")
}

// SaveToGameData writes the pouch into the game-data table.
func SaveToGameData(c *game.Core) error {
	c.ResetStack()
	this, err := pmdmThis(c)
	if err != nil {
		return err
	}
	c.Cpu.Regs.Set(cpu.X(0), this)
	return call(c, "saveToGameData")
}

// GetActorProfile returns an actor's profile string.
func GetActorProfile(c *game.Core, actor string) (string, error) {
	c.ResetStack()
	this, err := game.SingletonInstance(c, game.SingletonInfoData)
	if err != nil {
		return "", err
	}
	outAddr, err := c.StackAlloc(8)
	if err != nil {
		return "", err
	}
	namePtr, err := stackAllocString40(c, actor)
	if err != nil {
		return "", err
	}
	nameCStr, err := namePtr.CStr(c.Proc.Mem)
	if err != nil {
		return "", err
	}
	c.Cpu.Regs.Set(cpu.X(0), this)
	c.Cpu.Regs.Set(cpu.X(1), outAddr)
	c.Cpu.Regs.Set(cpu.X(2), nameCStr)
	if err := call(c, "getActorProfile"); err != nil {
		return "", err
	}
	if err := c.StackCheck(uint64(namePtr)); err != nil {
		return "", err
	}
	if err := c.StackCheck(outAddr); err != nil {
		return "", err
	}
	profilePtr, err := memory.U64Ptr(outAddr).Load(c.Proc.Mem)
	if err != nil {
		return "", err
	}
	if profilePtr == 0 {
		return "", nil
	}
	return memory.ReadCString(c.Proc.Mem, profilePtr, 0x40)
}

// TrashItem removes one unit from the slot at (tab, slot), the hold /
// drop primitive.
func TrashItem(c *game.Core, tab, slot int32) error {
	c.ResetStack()
	this, err := pmdmThis(c)
	if err != nil {
		return err
	}
	c.Cpu.Regs.Set(cpu.X(0), this)
	c.Cpu.Regs.Set(cpu.W(1), uint64(uint32(tab)))
	c.Cpu.Regs.Set(cpu.W(2), uint64(uint32(slot)))
	return call(c, "trashItem")
}

// CanHoldAnotherItem reports whether the player can hold one more item.
func CanHoldAnotherItem(c *game.Core) (bool, error) {
	c.ResetStack()
	this, err := pmdmThis(c)
	if err != nil {
		return false, err
	}
	c.Cpu.Regs.Set(cpu.X(0), this)
	if err := call(c, "canHoldAnotherItem"); err != nil {
		return false, err
	}
	return c.Cpu.Regs.Get(cpu.W(0))&1 == 1, nil
}

// RemoveHeldItems deletes the items currently held by the player.
func RemoveHeldItems(c *game.Core) error {
	c.ResetStack()
	this, err := pmdmThis(c)
	if err != nil {
		return err
	}
	c.Cpu.Regs.Set(cpu.X(0), this)
	return call(c, "removeHeldItems")
}

// DeleteRemovedItems flushes slots marked for removal (the translucent
// slot cleanup on returning to the overworld).
func DeleteRemovedItems(c *game.Core) error {
	c.ResetStack()
	this, err := pmdmThis(c)
	if err != nil {
		return err
	}
	c.Cpu.Regs.Set(cpu.X(0), this)
	return call(c, "deleteRemovedItems")
}

// CreateHoldingItems runs the held-actor creation path; onActor fires
// for every actor the game asks the overworld to spawn.
func CreateHoldingItems(c *game.Core, onActor func(string)) error {
	c.ResetStack()
	this, err := pmdmThis(c)
	if err != nil {
		return err
	}
	prev := c.Proc.Hooks[HookSpawnActor]
	c.Proc.Hooks[HookSpawnActor] = func(cc *cpu.Cpu, p *cpu.Process) error {
		name, err := ReadActorNameArg(cc, p, 1)
		if err != nil {
			return err
		}
		if name != "" && onActor != nil {
			onActor(name)
		}
		return nil
	}
	defer func() { c.Proc.Hooks[HookSpawnActor] = prev }()
	c.Cpu.Regs.Set(cpu.X(0), this)
	return call(c, "createHoldingItems")
}

// EquipWeapon equips the item at itemAddr.
func EquipWeapon(c *game.Core, itemAddr uint64) error {
	c.ResetStack()
	this, err := pmdmThis(c)
	if err != nil {
		return err
	}
	c.Cpu.Regs.Set(cpu.X(0), this)
	c.Cpu.Regs.Set(cpu.X(1), itemAddr)
	return call(c, "equipWeapon")
}

// Unequip unequips the item at itemAddr.
func Unequip(c *game.Core, itemAddr uint64) error {
	c.ResetStack()
	this, err := pmdmThis(c)
	if err != nil {
		return err
	}
	c.Cpu.Regs.Set(cpu.X(0), this)
	c.Cpu.Regs.Set(cpu.X(1), itemAddr)
	return call(c, "unequip")
}

// RemoveWeaponIfEquipped removes the named equipment if it is equipped.
func RemoveWeaponIfEquipped(c *game.Core, actor string) error {
	c.ResetStack()
	this, err := pmdmThis(c)
	if err != nil {
		return err
	}
	namePtr, err := stackAllocString40(c, actor)
	if err != nil {
		return err
	}
	c.Cpu.Regs.Set(cpu.X(0), this)
	c.Cpu.Regs.Set(cpu.X(1), uint64(namePtr))
	if err := call(c, "removeWeaponIfEquipped"); err != nil {
		return err
	}
	return c.StackCheck(uint64(namePtr))
}

// RemoveItem removes one of the named item.
func RemoveItem(c *game.Core, actor string) error {
	c.ResetStack()
	this, err := pmdmThis(c)
	if err != nil {
		return err
	}
	namePtr, err := stackAllocString40(c, actor)
	if err != nil {
		return err
	}
	c.Cpu.Regs.Set(cpu.X(0), this)
	c.Cpu.Regs.Set(cpu.X(1), uint64(namePtr))
	if err := call(c, "removeItem"); err != nil {
		return err
	}
	return c.StackCheck(uint64(namePtr))
}

// SellItem sells count units from the slot at (tab, slot).
func SellItem(c *game.Core, tab, slot, count int32) error {
	c.ResetStack()
	this, err := pmdmThis(c)
	if err != nil {
		return err
	}
	c.Cpu.Regs.Set(cpu.X(0), this)
	c.Cpu.Regs.Set(cpu.W(1), uint64(uint32(tab)))
	c.Cpu.Regs.Set(cpu.W(2), uint64(uint32(slot)))
	c.Cpu.Regs.Set(cpu.W(3), uint64(uint32(count)))
	return call(c, "sellItem")
}

// UseItem consumes one unit of the item at itemAddr (eat, shoot).
func UseItem(c *game.Core, itemAddr uint64) error {
	c.ResetStack()
	this, err := pmdmThis(c)
	if err != nil {
		return err
	}
	c.Cpu.Regs.Set(cpu.X(0), this)
	c.Cpu.Regs.Set(cpu.X(1), itemAddr)
	return call(c, "useItem")
}

// UpdateInventoryInfo recomputes the manager's accounting fields.
func UpdateInventoryInfo(c *game.Core) error {
	c.ResetStack()
	this, err := pmdmThis(c)
	if err != nil {
		return err
	}
	c.Cpu.Regs.Set(cpu.X(0), this)
	return call(c, "updateInventoryInfo")
}

// UpdateListHeads refreshes the per-category list heads.
func UpdateListHeads(c *game.Core) error {
	c.ResetStack()
	this, err := pmdmThis(c)
	if err != nil {
		return err
	}
	c.Cpu.Regs.Set(cpu.X(0), this)
	return call(c, "updateListHeads")
}

// CreatePlayerEquipment recreates the player's overworld equipment
// actors from the equipped slots.
func CreatePlayerEquipment(c *game.Core) error {
	c.ResetStack()
	this, err := pmdmThis(c)
	if err != nil {
		return err
	}
	c.Cpu.Regs.Set(cpu.X(0), this)
	return call(c, "createPlayerEquipment")
}

// IsWeaponProfile reports whether the actor's profile starts with
// "Weapon".
func IsWeaponProfile(c *game.Core, actor string) (bool, error) {
	profile, err := GetActorProfile(c, actor)
	if err != nil {
		return false, err
	}
	return len(profile) >= 6 && profile[:6] == "Weapon", nil
}
