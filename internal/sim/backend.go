package sim

import (
	"github.com/zboralski/pouchsim/internal/game"
	"github.com/zboralski/pouchsim/internal/gdt"
	"github.com/zboralski/pouchsim/internal/linker"
)

// backend issues the game operations the actions need. The emulated
// backend drives the real in-binary functions through the CPU; the
// reference backend reproduces their semantics host-side and serves
// image-less sessions and tests.
type backend interface {
	ItemGet(c *simCore, actor string, value int32, modifier *game.WeaponModifierInfo) (bool, error)
	CookItemGet(c *simCore, actor string, ingredients []string, lifeRecover float32, effectTime, sellPrice, effectID int32, vitality float32) error
	TrashItem(c *simCore, tab, slot int32, item game.PouchItemPtr) error
	CanHoldAnotherItem(c *simCore, heldCount int) (bool, error)
	RemoveHeldItems(c *simCore, held []game.PouchItemPtr) error
	DeleteRemovedItems(c *simCore) error
	CreateHoldingItems(c *simCore, heldNames []string, onActor func(string)) error
	Equip(c *simCore, item game.PouchItemPtr) error
	Unequip(c *simCore, item game.PouchItemPtr) error
	RemoveWeaponIfEquipped(c *simCore, actor string) error
	UseItem(c *simCore, item game.PouchItemPtr) error
	SellItem(c *simCore, item game.PouchItemPtr, count int32) error
	SaveToGameData(c *simCore) error
	LoadFromGameData(c *simCore) error
	UpdateListHeads(c *simCore) error
}

// maxHeldItems is how many items the player can hold at once.
const maxHeldItems = 5

// emuBackend runs the real game functions through the CPU.
type emuBackend struct{}

func (emuBackend) ItemGet(c *simCore, actor string, value int32, modifier *game.WeaponModifierInfo) (bool, error) {
	if modifier != nil || value > 1 {
		var flags uint32
		var modValue int32
		if modifier != nil {
			flags, modValue = modifier.Flags, modifier.Value
		}
		return true, linker.PmdmItemGet(c.Core, actor, value, flags, modValue)
	}
	return true, linker.GetItem(c.Core, actor, nil)
}

func (emuBackend) CookItemGet(c *simCore, actor string, ingredients []string, lifeRecover float32, effectTime, sellPrice, effectID int32, vitality float32) error {
	return linker.GetCookItem(c.Core, actor, ingredients, lifeRecover, effectTime, sellPrice, effectID, vitality, false)
}

func (emuBackend) TrashItem(c *simCore, tab, slot int32, item game.PouchItemPtr) error {
	return linker.TrashItem(c.Core, tab, slot)
}

func (emuBackend) CanHoldAnotherItem(c *simCore, heldCount int) (bool, error) {
	return linker.CanHoldAnotherItem(c.Core)
}

func (emuBackend) RemoveHeldItems(c *simCore, held []game.PouchItemPtr) error {
	return linker.RemoveHeldItems(c.Core)
}

func (emuBackend) DeleteRemovedItems(c *simCore) error {
	return linker.DeleteRemovedItems(c.Core)
}

func (emuBackend) CreateHoldingItems(c *simCore, heldNames []string, onActor func(string)) error {
	return linker.CreateHoldingItems(c.Core, onActor)
}

func (emuBackend) Equip(c *simCore, item game.PouchItemPtr) error {
	return linker.EquipWeapon(c.Core, uint64(item))
}

func (emuBackend) Unequip(c *simCore, item game.PouchItemPtr) error {
	return linker.Unequip(c.Core, uint64(item))
}

func (emuBackend) RemoveWeaponIfEquipped(c *simCore, actor string) error {
	return linker.RemoveWeaponIfEquipped(c.Core, actor)
}

func (emuBackend) UseItem(c *simCore, item game.PouchItemPtr) error {
	return linker.UseItem(c.Core, uint64(item))
}

func (emuBackend) SellItem(c *simCore, item game.PouchItemPtr, count int32) error {
	// the sell path works on the selected slot; tab/slot bookkeeping
	// is resolved by the caller before the call
	return linker.SellItem(c.Core, 0, 0, count)
}

func (emuBackend) SaveToGameData(c *simCore) error {
	return linker.SaveToGameData(c.Core)
}

func (emuBackend) LoadFromGameData(c *simCore) error {
	return linker.LoadFromGameData(c.Core)
}

func (emuBackend) UpdateListHeads(c *simCore) error {
	return linker.UpdateListHeads(c.Core)
}

// hostBackend reproduces the manager's semantics directly against
// process memory. It exists so sessions without a program image still
// simulate faithfully at the data-structure level.
type hostBackend struct{}

func (hostBackend) pmdm(c *simCore) (game.PmdmPtr, error) {
	addr, err := game.SingletonInstance(c.Core, game.SingletonPmdm)
	return game.PmdmPtr(addr), err
}

// findSlot walks the allocated list for the first in-inventory slot
// with the given name.
func (b hostBackend) findSlot(c *simCore, pmdm game.PmdmPtr, actor string) (game.PouchItemPtr, error) {
	m := c.Proc.Mem
	list1 := pmdm.List1()
	node, err := list1.Head(m)
	if err != nil {
		return 0, err
	}
	for guard := 0; node != 0 && guard <= game.NumPouchItems; guard++ {
		item, err := list1.ItemOf(node, m)
		if err != nil {
			return 0, err
		}
		name, err := item.Name().Load(m)
		if err != nil {
			return 0, err
		}
		inInv, err := item.InInventory().Load(m)
		if err != nil {
			return 0, err
		}
		if name == actor && inInv {
			return item, nil
		}
		node, err = list1.NextOf(node, m)
		if err != nil {
			return 0, err
		}
	}
	return 0, nil
}

func (b hostBackend) ItemGet(c *simCore, actor string, value int32, modifier *game.WeaponModifierInfo) (bool, error) {
	pmdm, err := b.pmdm(c)
	if err != nil {
		return false, err
	}
	m := c.Proc.Mem
	typ := game.GetPouchItemType(actor)
	use := game.GetPouchItemUse(actor)

	if game.CanStack(actor) {
		existing, err := b.findSlot(c, pmdm, actor)
		if err != nil {
			return false, err
		}
		if !existing.IsNull() {
			cur, err := existing.Value().Load(m)
			if err != nil {
				return false, err
			}
			next := cur + value
			if next > 999 {
				next = 999
			}
			return true, existing.Value().Store(next, m)
		}
	} else if typ == game.PouchItemTypeKeyItem {
		// key items cannot be obtained twice
		existing, err := b.findSlot(c, pmdm, actor)
		if err != nil {
			return false, err
		}
		if !existing.IsNull() {
			return false, nil
		}
	}

	item, err := pmdm.PushNewItem(m)
	if err != nil {
		return false, err
	}
	if item.IsNull() {
		// the add path fails silently when the pool bookkeeping says
		// there is no room
		return false, nil
	}
	if err := item.Type().Store(int32(typ), m); err != nil {
		return false, err
	}
	if err := item.Use().Store(int32(use), m); err != nil {
		return false, err
	}
	if err := item.Value().Store(value, m); err != nil {
		return false, err
	}
	if err := item.Equipped().Store(false, m); err != nil {
		return false, err
	}
	if err := item.InInventory().Store(true, m); err != nil {
		return false, err
	}
	if err := item.Name().Construct(m); err != nil {
		return false, err
	}
	if err := item.Name().SafeStore(actor, m); err != nil {
		return false, err
	}
	if modifier != nil {
		if err := item.SellPrice().Store(int32(modifier.Flags), m); err != nil {
			return false, err
		}
		if err := item.HealthRecover().Store(modifier.Value, m); err != nil {
			return false, err
		}
	}
	if err := pmdm.LastAddedItem().Store(uint64(item), m); err != nil {
		return false, err
	}

	err = c.WithGdtMut(func(tp *gdt.TriggerParam) {
		if f := tp.Bool.ByName("IsGet_" + actor); f != nil {
			f.Set(true)
		}
		if category := typ.Category(); category != game.PouchCategoryInvalid {
			if f := tp.BoolArr.ByName("IsOpenItemCategory"); f != nil {
				f.SetAt(int(category), true)
			}
		}
	})
	return true, err
}

func (b hostBackend) CookItemGet(c *simCore, actor string, ingredients []string, lifeRecover float32, effectTime, sellPrice, effectID int32, vitality float32) error {
	pmdm, err := b.pmdm(c)
	if err != nil {
		return err
	}
	m := c.Proc.Mem
	item, err := pmdm.PushNewItem(m)
	if err != nil {
		return err
	}
	if item.IsNull() {
		return nil
	}
	if err := item.Type().Store(int32(game.PouchItemTypeFood), m); err != nil {
		return err
	}
	if err := item.Use().Store(int32(game.ItemUseCureItem), m); err != nil {
		return err
	}
	if err := item.Value().Store(1, m); err != nil {
		return err
	}
	if err := item.InInventory().Store(true, m); err != nil {
		return err
	}
	if err := item.HealthRecover().Store(int32(lifeRecover), m); err != nil {
		return err
	}
	if err := item.EffectDuration().Store(effectTime, m); err != nil {
		return err
	}
	if err := item.SellPrice().Store(sellPrice, m); err != nil {
		return err
	}
	if err := item.EffectID().Store(float32(effectID), m); err != nil {
		return err
	}
	if err := item.EffectLevel().Store(vitality, m); err != nil {
		return err
	}
	if err := item.Name().Construct(m); err != nil {
		return err
	}
	if err := item.Name().SafeStore(actor, m); err != nil {
		return err
	}
	for i, ingredient := range ingredients {
		if i >= game.NumIngredients {
			break
		}
		if err := item.Ingredient(i).Construct(m); err != nil {
			return err
		}
		if err := item.Ingredient(i).SafeStore(ingredient, m); err != nil {
			return err
		}
	}
	return pmdm.LastAddedItem().Store(uint64(item), m)
}

func (b hostBackend) TrashItem(c *simCore, tab, slot int32, item game.PouchItemPtr) error {
	m := c.Proc.Mem
	value, err := item.Value().Load(m)
	if err != nil {
		return err
	}
	if value > 1 {
		return item.Value().Store(value-1, m)
	}
	if err := item.Value().Store(0, m); err != nil {
		return err
	}
	return item.InInventory().Store(false, m)
}

func (hostBackend) CanHoldAnotherItem(c *simCore, heldCount int) (bool, error) {
	return heldCount < maxHeldItems, nil
}

func (b hostBackend) RemoveHeldItems(c *simCore, held []game.PouchItemPtr) error {
	// value was already taken when the items were grabbed; the zeroed
	// slots fall to the removal pass
	return b.DeleteRemovedItems(c)
}

func (b hostBackend) DeleteRemovedItems(c *simCore) error {
	pmdm, err := b.pmdm(c)
	if err != nil {
		return err
	}
	m := c.Proc.Mem
	list1 := pmdm.List1()
	list2 := pmdm.List2()
	node, err := list1.Head(m)
	if err != nil {
		return err
	}
	for guard := 0; node != 0 && guard <= game.NumPouchItems; guard++ {
		next, err := list1.NextOf(node, m)
		if err != nil {
			return err
		}
		item, err := list1.ItemOf(node, m)
		if err != nil {
			return err
		}
		inInv, err := item.InInventory().Load(m)
		if err != nil {
			return err
		}
		value, err := item.Value().Load(m)
		if err != nil {
			return err
		}
		if !inInv && value == 0 {
			if err := list1.Erase(node, m); err != nil {
				return err
			}
			if err := item.Construct(m); err != nil {
				return err
			}
			if err := list2.PushFront(item.Node(), m); err != nil {
				return err
			}
		}
		node = next
	}
	return nil
}

func (hostBackend) CreateHoldingItems(c *simCore, heldNames []string, onActor func(string)) error {
	for _, name := range heldNames {
		if onActor != nil {
			onActor(name)
		}
	}
	return nil
}

// unequipOthers clears the equipped bit on other items of the same
// category.
func (b hostBackend) unequipOthers(c *simCore, pmdm game.PmdmPtr, item game.PouchItemPtr) error {
	m := c.Proc.Mem
	typRaw, err := item.Type().Load(m)
	if err != nil {
		return err
	}
	category := game.PouchItemType(typRaw).Category()
	list1 := pmdm.List1()
	node, err := list1.Head(m)
	if err != nil {
		return err
	}
	for guard := 0; node != 0 && guard <= game.NumPouchItems; guard++ {
		other, err := list1.ItemOf(node, m)
		if err != nil {
			return err
		}
		if other != item {
			otherTyp, err := other.Type().Load(m)
			if err != nil {
				return err
			}
			if game.PouchItemType(otherTyp).Category() == category {
				if err := other.Equipped().Store(false, m); err != nil {
					return err
				}
			}
		}
		node, err = list1.NextOf(node, m)
		if err != nil {
			return err
		}
	}
	return nil
}

func (b hostBackend) Equip(c *simCore, item game.PouchItemPtr) error {
	pmdm, err := b.pmdm(c)
	if err != nil {
		return err
	}
	if err := b.unequipOthers(c, pmdm, item); err != nil {
		return err
	}
	return item.Equipped().Store(true, c.Proc.Mem)
}

func (hostBackend) Unequip(c *simCore, item game.PouchItemPtr) error {
	return item.Equipped().Store(false, c.Proc.Mem)
}

func (b hostBackend) RemoveWeaponIfEquipped(c *simCore, actor string) error {
	pmdm, err := b.pmdm(c)
	if err != nil {
		return err
	}
	m := c.Proc.Mem
	item, err := b.findSlot(c, pmdm, actor)
	if err != nil || item.IsNull() {
		return err
	}
	equipped, err := item.Equipped().Load(m)
	if err != nil || !equipped {
		return err
	}
	if err := item.Value().Store(0, m); err != nil {
		return err
	}
	return item.InInventory().Store(false, m)
}

func (b hostBackend) removeSlot(c *simCore, item game.PouchItemPtr) error {
	pmdm, err := b.pmdm(c)
	if err != nil {
		return err
	}
	m := c.Proc.Mem
	if err := pmdm.List1().Erase(item.Node(), m); err != nil {
		return err
	}
	if err := item.Construct(m); err != nil {
		return err
	}
	return pmdm.List2().PushFront(item.Node(), m)
}

func (b hostBackend) UseItem(c *simCore, item game.PouchItemPtr) error {
	m := c.Proc.Mem
	value, err := item.Value().Load(m)
	if err != nil {
		return err
	}
	if value > 1 {
		return item.Value().Store(value-1, m)
	}
	return b.removeSlot(c, item)
}

func (b hostBackend) SellItem(c *simCore, item game.PouchItemPtr, count int32) error {
	m := c.Proc.Mem
	value, err := item.Value().Load(m)
	if err != nil {
		return err
	}
	if value > count {
		return item.Value().Store(value-count, m)
	}
	return b.removeSlot(c, item)
}

func (b hostBackend) SaveToGameData(c *simCore) error {
	pmdm, err := b.pmdm(c)
	if err != nil {
		return err
	}
	m := c.Proc.Mem
	type savedItem struct {
		name     string
		value    int32
		equipped bool
		typ      game.PouchItemType
		health   int32
		duration int32
		sell     int32
		effectID float32
		effectLv float32
		ingr     [game.NumIngredients]string
	}
	var items []savedItem
	list1 := pmdm.List1()
	node, err := list1.Head(m)
	if err != nil {
		return err
	}
	for guard := 0; node != 0 && guard <= game.NumPouchItems; guard++ {
		item, err := list1.ItemOf(node, m)
		if err != nil {
			return err
		}
		inInv, err := item.InInventory().Load(m)
		if err != nil {
			return err
		}
		if inInv {
			var s savedItem
			if s.name, err = item.Name().Load(m); err != nil {
				return err
			}
			if s.value, err = item.Value().Load(m); err != nil {
				return err
			}
			if s.equipped, err = item.Equipped().Load(m); err != nil {
				return err
			}
			typRaw, err := item.Type().Load(m)
			if err != nil {
				return err
			}
			s.typ = game.PouchItemType(typRaw)
			if s.health, err = item.HealthRecover().Load(m); err != nil {
				return err
			}
			if s.duration, err = item.EffectDuration().Load(m); err != nil {
				return err
			}
			if s.sell, err = item.SellPrice().Load(m); err != nil {
				return err
			}
			if s.effectID, err = item.EffectID().Load(m); err != nil {
				return err
			}
			if s.effectLv, err = item.EffectLevel().Load(m); err != nil {
				return err
			}
			for i := 0; i < game.NumIngredients; i++ {
				if s.ingr[i], err = item.Ingredient(i).Load(m); err != nil {
					return err
				}
			}
			items = append(items, s)
		}
		node, err = list1.NextOf(node, m)
		if err != nil {
			return err
		}
	}

	return c.WithGdtMut(func(tp *gdt.TriggerParam) {
		porchItem := tp.Str64Arr.ByName("PorchItem")
		porchValue := tp.S32Arr.ByName("PorchItem_Value1")
		porchEquip := tp.BoolArr.ByName("PorchItem_EquipFlag")
		swordFlag := tp.S32Arr.ByName("PorchSword_FlagSp")
		swordValue := tp.S32Arr.ByName("PorchSword_ValueSp")
		bowFlag := tp.S32Arr.ByName("PorchBow_FlagSp")
		bowValue := tp.S32Arr.ByName("PorchBow_ValueSp")
		shieldFlag := tp.S32Arr.ByName("PorchShield_FlagSp")
		shieldValue := tp.S32Arr.ByName("PorchShield_ValueSp")
		stamina := tp.V2fArr.ByName("StaminaRecover")
		effect0 := tp.V2fArr.ByName("CookEffect0")
		effect1 := tp.V2fArr.ByName("CookEffect1")
		materials := [game.NumIngredients]*gdt.ArrayFlag[string]{
			tp.Str64Arr.ByName("CookMaterialName0"),
			tp.Str64Arr.ByName("CookMaterialName1"),
			tp.Str64Arr.ByName("CookMaterialName2"),
			tp.Str64Arr.ByName("CookMaterialName3"),
			tp.Str64Arr.ByName("CookMaterialName4"),
		}

		for i := 0; i < porchItem.Len(); i++ {
			porchItem.SetAt(i, "")
			porchValue.SetAt(i, 0)
			porchEquip.SetAt(i, false)
		}
		swords, bows, shields, foods := 0, 0, 0, 0
		for i, s := range items {
			if i >= porchItem.Len() {
				break
			}
			porchItem.SetAt(i, s.name)
			porchValue.SetAt(i, s.value)
			porchEquip.SetAt(i, s.equipped)
			switch s.typ {
			case game.PouchItemTypeSword:
				swordFlag.SetAt(swords, s.sell)
				swordValue.SetAt(swords, s.health)
				swords++
			case game.PouchItemTypeBow:
				bowFlag.SetAt(bows, s.sell)
				bowValue.SetAt(bows, s.health)
				bows++
			case game.PouchItemTypeShield:
				shieldFlag.SetAt(shields, s.sell)
				shieldValue.SetAt(shields, s.health)
				shields++
			case game.PouchItemTypeFood:
				stamina.SetAt(foods, gdt.Vec2f{X: float32(s.health), Y: float32(s.duration)})
				effect0.SetAt(foods, gdt.Vec2f{X: s.effectID, Y: s.effectLv})
				effect1.SetAt(foods, gdt.Vec2f{X: float32(s.sell)})
				for j := 0; j < game.NumIngredients; j++ {
					materials[j].SetAt(foods, s.ingr[j])
				}
				foods++
			}
		}
	})
}

func (b hostBackend) LoadFromGameData(c *simCore) error {
	pmdm, err := b.pmdm(c)
	if err != nil {
		return err
	}
	m := c.Proc.Mem
	list1 := pmdm.List1()
	list2 := pmdm.List2()

	// clear pass: count-gated pops, so a desynchronized count leaves
	// stale nodes linked while fresh slots get pushed behind them
	for {
		node, err := list1.PopFront(m)
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
		if err := list2.PushFront(item.Node(), m); err != nil {
			return err
		}
	}

	type entry struct {
		name     string
		value    int32
		equipped bool
	}
	var entries []entry
	var swordMods, bowMods, shieldMods []game.WeaponModifierInfo
	err = c.WithGdt(func(tp *gdt.TriggerParam) {
		porchItem := tp.Str64Arr.ByName("PorchItem")
		porchValue := tp.S32Arr.ByName("PorchItem_Value1")
		porchEquip := tp.BoolArr.ByName("PorchItem_EquipFlag")
		for i := 0; i < porchItem.Len(); i++ {
			name, _ := porchItem.GetAt(i)
			if name == "" {
				break
			}
			value, _ := porchValue.GetAt(i)
			equipped, _ := porchEquip.GetAt(i)
			entries = append(entries, entry{name: name, value: value, equipped: equipped})
		}
		loadMods := func(flags, values *gdt.ArrayFlag[int32]) []game.WeaponModifierInfo {
			var out []game.WeaponModifierInfo
			for i := 0; i < flags.Len(); i++ {
				f, _ := flags.GetAt(i)
				v, _ := values.GetAt(i)
				out = append(out, game.WeaponModifierInfo{Flags: uint32(f), Value: v})
			}
			return out
		}
		swordMods = loadMods(tp.S32Arr.ByName("PorchSword_FlagSp"), tp.S32Arr.ByName("PorchSword_ValueSp"))
		bowMods = loadMods(tp.S32Arr.ByName("PorchBow_FlagSp"), tp.S32Arr.ByName("PorchBow_ValueSp"))
		shieldMods = loadMods(tp.S32Arr.ByName("PorchShield_FlagSp"), tp.S32Arr.ByName("PorchShield_ValueSp"))
	})
	if err != nil {
		return err
	}

	swords, bows, shields := 0, 0, 0
	for _, e := range entries {
		typ := game.GetPouchItemType(e.name)
		var modifier *game.WeaponModifierInfo
		switch typ {
		case game.PouchItemTypeSword:
			if swords < len(swordMods) {
				modifier = &swordMods[swords]
			}
			swords++
		case game.PouchItemTypeBow:
			if bows < len(bowMods) {
				modifier = &bowMods[bows]
			}
			bows++
		case game.PouchItemTypeShield:
			if shields < len(shieldMods) {
				modifier = &shieldMods[shields]
			}
			shields++
		}
		if modifier != nil && modifier.Flags == 0 {
			modifier = nil
		}
		added, err := b.ItemGet(c, e.name, e.value, modifier)
		if err != nil {
			return err
		}
		if !added {
			continue
		}
		if e.equipped {
			item, err := b.findSlot(c, pmdm, e.name)
			if err != nil {
				return err
			}
			if !item.IsNull() {
				if err := item.Equipped().Store(true, m); err != nil {
					return err
				}
			}
		}
	}
	return b.UpdateListHeads(c)
}

func (b hostBackend) UpdateListHeads(c *simCore) error {
	pmdm, err := b.pmdm(c)
	if err != nil {
		return err
	}
	m := c.Proc.Mem
	list1 := pmdm.List1()
	node, err := list1.Head(m)
	if err != nil {
		return err
	}
	numTabs := 0
	curCategory := game.PouchCategoryInvalid
	slots := 0
	for guard := 0; node != 0 && guard <= game.NumPouchItems; guard++ {
		item, err := list1.ItemOf(node, m)
		if err != nil {
			return err
		}
		typRaw, err := item.Type().Load(m)
		if err != nil {
			return err
		}
		category := game.PouchItemType(typRaw).Category()
		if category != curCategory || slots >= slotsPerTab {
			if numTabs < game.NumTabs {
				if err := pmdm.Tab(numTabs).Store(uint64(item), m); err != nil {
					return err
				}
				if err := pmdm.TabType(numTabs).Store(int32(category), m); err != nil {
					return err
				}
				numTabs++
			}
			curCategory = category
			slots = 0
		}
		slots++
		node, err = list1.NextOf(node, m)
		if err != nil {
			return err
		}
	}
	for i := numTabs; i < game.NumTabs; i++ {
		if err := pmdm.Tab(i).Store(0, m); err != nil {
			return err
		}
		if err := pmdm.TabType(i).Store(int32(game.PouchCategoryInvalid), m); err != nil {
			return err
		}
	}
	return pmdm.NumTabs().Store(int32(numTabs), m)
}
