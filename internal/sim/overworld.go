package sim

import (
	"github.com/zboralski/pouchsim/internal/game"
	"github.com/zboralski/pouchsim/internal/script"
)

// groundMaterialCap is how many dropped materials stay on the ground;
// overflow moves into the despawn queue cleared on the next tick.
const groundMaterialCap = 10

// OverworldActor is one simulated actor in the overworld.
type OverworldActor struct {
	Name string
	// Value is durability for weapons, 1 for materials.
	Value int32
	// Modifier is nil for non-weapons.
	Modifier *game.WeaponModifierInfo
}

// OverworldSystem is the driver-owned model of the world outside
// menus: player equipment, ground items, and held items.
type OverworldSystem struct {
	Weapon *OverworldActor
	Bow    *OverworldActor
	Shield *OverworldActor

	groundWeapons             []OverworldActor
	groundMaterials           []OverworldActor
	groundMaterialsDespawning []OverworldActor
	holding                   []OverworldActor
	// isHoldAttached is the "hold attached" glitch state.
	isHoldAttached bool

	// spawningWeapons queues equipment to appear on the ground on the
	// next return to the overworld.
	spawningWeapons []OverworldActor
}

// PreDropResult reports whether an action can proceed while holding.
type PreDropResult int

const (
	// PreDropOk means nothing is held.
	PreDropOk PreDropResult = iota
	// PreDropHolding means a normal hold blocks the action.
	PreDropHolding
	// PreDropAuto means attached items were auto-dropped; inventory
	// cleanup must follow the action.
	PreDropAuto
)

// IsHolding reports whether the player holds items in the overworld.
func (o *OverworldSystem) IsHolding() bool { return len(o.holding) > 0 }

// SpawnHeldItems adds actors to the player's hands without replacing
// existing ones.
func (o *OverworldSystem) SpawnHeldItems(names []string) {
	for _, name := range names {
		o.holding = append(o.holding, OverworldActor{Name: name, Value: 1})
	}
}

// SetHeldAttached sets the attached-hold state; only possible while
// items are held.
func (o *OverworldSystem) SetHeldAttached(attached bool) {
	o.isHoldAttached = attached && len(o.holding) > 0
}

// IsHeldAttached reports the attached-hold state.
func (o *OverworldSystem) IsHeldAttached() bool { return o.isHoldAttached }

// PredropForAction checks whether an action blocked by holding can
// proceed, auto-dropping attached items.
func (o *OverworldSystem) PredropForAction(span script.Span, errors *[]ErrorReport) PreDropResult {
	if len(o.holding) == 0 {
		return PreDropOk
	}
	if !o.isHoldAttached {
		*errors = append(*errors, simError(span, ErrCannotDoWhileHolding))
		return PreDropHolding
	}
	return PreDropAuto
}

// DeleteHeldItems removes held actors without dropping them.
func (o *OverworldSystem) DeleteHeldItems() {
	o.isHoldAttached = false
	o.holding = nil
}

// DropHeldItems moves held actors to the ground, despawning overflow
// past the material cap.
func (o *OverworldSystem) DropHeldItems() {
	o.isHoldAttached = false
	o.groundMaterials = append(o.groundMaterials, o.holding...)
	o.holding = nil
	for len(o.groundMaterials) > groundMaterialCap {
		o.groundMaterialsDespawning = append(o.groundMaterialsDespawning, o.groundMaterials[0])
		o.groundMaterials = o.groundMaterials[1:]
	}
}

// DespawnItems clears the despawn queue (next tick).
func (o *OverworldSystem) DespawnItems() {
	o.groundMaterialsDespawning = nil
}

// QueueGroundWeapon schedules equipment to appear on the ground.
func (o *OverworldSystem) QueueGroundWeapon(actor OverworldActor) {
	o.spawningWeapons = append(o.spawningWeapons, actor)
}

// SpawnGroundWeapons materializes queued equipment.
func (o *OverworldSystem) SpawnGroundWeapons() {
	o.groundWeapons = append(o.groundWeapons, o.spawningWeapons...)
	o.spawningWeapons = nil
}

// ClearSpawningWeapons drops the queue without spawning (menu
// overload).
func (o *OverworldSystem) ClearSpawningWeapons() {
	o.spawningWeapons = nil
}

// ChangePlayerEquipment updates the equipped actor model for the slot
// matching the actor's type.
func (o *OverworldSystem) ChangePlayerEquipment(actor *OverworldActor) {
	if actor == nil {
		return
	}
	switch game.GetPouchItemType(actor.Name) {
	case game.PouchItemTypeSword:
		o.Weapon = actor
	case game.PouchItemTypeBow:
		o.Bow = actor
	case game.PouchItemTypeShield:
		o.Shield = actor
	}
}

// groundHandle addresses one ground item for removal.
type groundHandle struct {
	despawning bool
	weapon     bool
	idx        int
}

// iterGround yields ground items: despawning first, then materials,
// then weapons, matching pick-up order.
func (o *OverworldSystem) iterGround(f func(groundHandle, *OverworldActor) bool) {
	for i := range o.groundMaterialsDespawning {
		if f(groundHandle{despawning: true, idx: i}, &o.groundMaterialsDespawning[i]) {
			return
		}
	}
	for i := range o.groundMaterials {
		if f(groundHandle{idx: i}, &o.groundMaterials[i]) {
			return
		}
	}
	for i := range o.groundWeapons {
		if f(groundHandle{weapon: true, idx: i}, &o.groundWeapons[i]) {
			return
		}
	}
}

// GroundSelect finds the nth ground item matching the spec. Tab
// positions cannot address ground items.
func (o *OverworldSystem) GroundSelect(target *script.ItemOrCategory, span script.Span, errors *[]ErrorReport) (groundHandle, bool) {
	var found groundHandle
	ok := false
	if target.IsCategory {
		o.iterGround(func(h groundHandle, a *OverworldActor) bool {
			if game.GetPouchItemType(a.Name).Category() == categoryToPouch(target.Category) {
				found, ok = h, true
				return true
			}
			return false
		})
		return found, ok
	}

	item := &target.Item
	nth := 0
	if meta := item.Meta; meta != nil {
		if meta.Position != nil {
			if meta.Position.ByGrid {
				*errors = append(*errors, simError(span, ErrPositionSpecNotAllowed))
				return found, false
			}
			if meta.Position.FromSlot > 0 {
				nth = meta.Position.FromSlot - 1
			}
		}
		if meta.Equip != nil || meta.EffectDuration != nil || meta.EffectID != nil ||
			meta.EffectLevel != nil || len(meta.Ingredients) > 0 {
			*errors = append(*errors, simWarning(span, ErrUselessItemMatchProp))
		}
	}
	count := nth
	o.iterGround(func(h groundHandle, a *OverworldActor) bool {
		if a.Name != item.Actor {
			return false
		}
		if meta := item.Meta; meta != nil {
			if meta.Value != nil && *meta.Value != a.Value {
				return false
			}
			if meta.SellPrice != nil && (a.Modifier == nil || a.Modifier.Flags != uint32(*meta.SellPrice)) {
				return false
			}
			if meta.LifeRecover != nil && (a.Modifier == nil || a.Modifier.Value != *meta.LifeRecover) {
				return false
			}
		}
		if count == 0 {
			found, ok = h, true
			return true
		}
		count--
		return false
	})
	return found, ok
}

// RemoveGround takes the addressed item off the ground.
func (o *OverworldSystem) RemoveGround(h groundHandle) OverworldActor {
	var out OverworldActor
	switch {
	case h.despawning:
		out = o.groundMaterialsDespawning[h.idx]
		o.groundMaterialsDespawning = append(o.groundMaterialsDespawning[:h.idx], o.groundMaterialsDespawning[h.idx+1:]...)
	case h.weapon:
		out = o.groundWeapons[h.idx]
		o.groundWeapons = append(o.groundWeapons[:h.idx], o.groundWeapons[h.idx+1:]...)
	default:
		out = o.groundMaterials[h.idx]
		o.groundMaterials = append(o.groundMaterials[:h.idx], o.groundMaterials[h.idx+1:]...)
	}
	return out
}

// View extracts the overworld snapshot.
func (o *OverworldSystem) View() Overworld {
	var items []OverworldItem
	equipped := func(a *OverworldActor) {
		if a == nil {
			return
		}
		item := OverworldItem{Kind: OverworldEquipped, Actor: a.Name, Value: a.Value}
		if a.Modifier != nil {
			item.Modifier = WeaponModifier{Flag: int32(a.Modifier.Flags), Value: a.Modifier.Value}
		}
		items = append(items, item)
	}
	equipped(o.Weapon)
	equipped(o.Bow)
	equipped(o.Shield)
	for _, a := range o.holding {
		items = append(items, OverworldItem{Kind: OverworldHeld, Actor: a.Name})
	}
	for _, a := range o.groundWeapons {
		item := OverworldItem{Kind: OverworldGroundEquipment, Actor: a.Name, Value: a.Value}
		if a.Modifier != nil {
			item.Modifier = WeaponModifier{Flag: int32(a.Modifier.Flags), Value: a.Modifier.Value}
		}
		items = append(items, item)
	}
	for _, a := range o.groundMaterials {
		items = append(items, OverworldItem{Kind: OverworldGroundItem, Actor: a.Name})
	}
	for _, a := range o.groundMaterialsDespawning {
		items = append(items, OverworldItem{Kind: OverworldGroundItem, Actor: a.Name, Despawning: true})
	}
	return Overworld{Items: items}
}

func categoryToPouch(c script.Category) game.PouchCategory {
	switch c {
	case script.CategoryWeapon:
		return game.PouchCategorySword
	case script.CategoryBow, script.CategoryArrow:
		return game.PouchCategoryBow
	case script.CategoryShield:
		return game.PouchCategoryShield
	case script.CategoryArmor:
		return game.PouchCategoryArmor
	case script.CategoryMaterial:
		return game.PouchCategoryMaterial
	case script.CategoryFood:
		return game.PouchCategoryFood
	default:
		return game.PouchCategoryKeyItem
	}
}
