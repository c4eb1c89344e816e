package sim

import (
	"fmt"
	"reflect"
)

// Pointer renders a guest address as 64-bit hex in snapshots.
type Pointer uint64

// MarshalText implements encoding.TextMarshaler.
func (p Pointer) MarshalText() ([]byte, error) {
	return []byte(fmt.Sprintf("0x%016x", uint64(p))), nil
}

// Screen is the snapshot tag of the current UI context.
type Screen string

const (
	ScreenOverworld Screen = "overworld"
	ScreenInventory Screen = "inventory"
	ScreenShopBuy   Screen = "shop-buy"
	ScreenShopSell  Screen = "shop-sell"
)

// CommonItem is the display info shared between the pouch view and the
// game-data view.
type CommonItem struct {
	ActorName  string `json:"actorName"`
	Value      int32  `json:"value"`
	IsEquipped bool   `json:"isEquipped"`
}

// ItemData is cook or weapon sidecar data.
type ItemData struct {
	EffectValue    int32   `json:"effectValue"`
	EffectDuration int32   `json:"effectDuration"`
	SellPrice      int32   `json:"sellPrice"`
	EffectID       float32 `json:"effectId"`
	EffectLevel    float32 `json:"effectLevel"`
}

// WeaponModifier is a modifier bitset plus value.
type WeaponModifier struct {
	Flag  int32 `json:"flag"`
	Value int32 `json:"value"`
}

// PouchItemView is one slot of the pouch list view. It can represent
// both valid items and the broken slots corruption produces.
type PouchItemView struct {
	Common          CommonItem `json:"common"`
	ItemType        int32      `json:"itemType"`
	ItemUse         int32      `json:"itemUse"`
	IsInInventory   bool       `json:"isInInventory"`
	Data            ItemData   `json:"data"`
	Ingredients     [5]string  `json:"ingredients"`
	HoldingCount    uint8      `json:"holdingCount"`
	PromptEntangled bool       `json:"promptEntangled"`

	// NodeAddr is the address of the list node; the item is 8 bytes
	// below it.
	NodeAddr  Pointer `json:"nodeAddr"`
	NodeValid bool    `json:"nodeValid"`
	// NodePos is the pool index for valid nodes, or the byte offset
	// from the manager start for invalid ones.
	NodePos  int64   `json:"nodePos"`
	NodePrev Pointer `json:"nodePrev"`
	NodeNext Pointer `json:"nodeNext"`

	// AllocatedIdx / UnallocatedIdx are the hop counts from each list's
	// head, or -1 when unreachable. Corruption can make a node
	// reachable from both.
	AllocatedIdx   int32 `json:"allocatedIdx"`
	UnallocatedIdx int32 `json:"unallocatedIdx"`

	Accessible     bool `json:"accessible"`
	DpadAccessible bool `json:"dpadAccessible"`
}

// PouchTab is one mTabs/mTabsType pair.
type PouchTab struct {
	ItemIdx int     `json:"itemIdx"` // -1 when the pointer resolves to no view item
	ItemPtr Pointer `json:"itemPtr"`
	TabType int32   `json:"tabType"`
}

// PouchList is the list view of the pouch.
type PouchList struct {
	NumTabs int32           `json:"numTabs"`
	Tabs    []PouchTab      `json:"tabs"`
	Items   []PouchItemView `json:"items"`
	Count   int32           `json:"count"`
}

// GdtItemData is the typed sidecar loaded for a game-data item.
type GdtItemData struct {
	Kind string `json:"kind"` // none, sword, bow, shield, food
	Idx  uint32 `json:"idx"`
	// Info is the modifier for equipment kinds, the cook data for food.
	Modifier    *WeaponModifier `json:"modifier,omitempty"`
	Food        *ItemData       `json:"food,omitempty"`
	Ingredients *[5]string      `json:"ingredients,omitempty"`
}

// GdtItem is one PorchItem entry.
type GdtItem struct {
	Common CommonItem  `json:"common"`
	Idx    uint32      `json:"idx"`
	Data   GdtItemData `json:"data"`
}

// GdtMasterSword is the Master Sword status flags.
type GdtMasterSword struct {
	IsTrueForm   bool    `json:"isTrueForm"`
	AddPower     int32   `json:"addPower"`
	AddBeamPower int32   `json:"addBeamPower"`
	RecoverTime  float32 `json:"recoverTime"`
}

// Gdt is the game-data view of the inventory.
type Gdt struct {
	Items       []GdtItem      `json:"items"`
	MasterSword GdtMasterSword `json:"masterSword"`
}

// OverworldItemKind tags an overworld item.
type OverworldItemKind string

const (
	OverworldEquipped        OverworldItemKind = "equipped"
	OverworldHeld            OverworldItemKind = "held"
	OverworldGroundEquipment OverworldItemKind = "ground-equipment"
	OverworldGroundItem      OverworldItemKind = "ground-item"
)

// OverworldItem is one actor in the overworld view.
type OverworldItem struct {
	Kind     OverworldItemKind `json:"kind"`
	Actor    string            `json:"actor"`
	Value    int32             `json:"value,omitempty"`
	Modifier WeaponModifier    `json:"modifier"`
	// Despawning marks ground items pushed over the drop limit.
	Despawning bool `json:"despawning,omitempty"`
}

// Overworld is the overworld view.
type Overworld struct {
	Items []OverworldItem `json:"items"`
}

// Snapshot is the per-step output: a faithful view of the pouch, the
// game-data table, and the driver-owned overworld, plus the screen tag.
type Snapshot struct {
	Screen    Screen        `json:"screen"`
	Pouch     PouchList     `json:"pouch"`
	Gdt       Gdt           `json:"gdt"`
	Overworld Overworld     `json:"overworld"`
	Errors    []ErrorReport `json:"errors,omitempty"`
}

// Equal is structural equality, so tests can compress expected outputs
// as "same as previous step".
func (s *Snapshot) Equal(other *Snapshot) bool {
	return reflect.DeepEqual(s, other)
}

// StepOutput pairs a step with its snapshot.
type StepOutput struct {
	Step     int      `json:"step"`
	Command  string   `json:"command"`
	Snapshot Snapshot `json:"snapshot"`
}
