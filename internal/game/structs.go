// Package game models the game's in-memory structures bit-exactly:
// field layout tables, typed struct pointers, the intrusive offset
// lists, the pause-menu data manager, and the recipe-driven singleton
// bootstrapper.
package game

import (
	"github.com/zboralski/pouchsim/internal/memory"
)

// PouchItemType is PouchItem::mType. Raw memory may hold values outside
// the enum.
type PouchItemType int32

const (
	PouchItemTypeSword PouchItemType = iota
	PouchItemTypeBow
	PouchItemTypeArrow
	PouchItemTypeShield
	PouchItemTypeArmorHead
	PouchItemTypeArmorUpper
	PouchItemTypeArmorLower
	PouchItemTypeMaterial
	PouchItemTypeFood
	PouchItemTypeKeyItem
	PouchItemTypeInvalid PouchItemType = -1
)

// PouchCategory is the tab grouping of item types.
type PouchCategory int32

const (
	PouchCategorySword PouchCategory = iota
	PouchCategoryBow
	PouchCategoryShield
	PouchCategoryArmor
	PouchCategoryMaterial
	PouchCategoryFood
	PouchCategoryKeyItem
	PouchCategoryInvalid PouchCategory = -1
)

// Category maps an item type to its tab category.
func (t PouchItemType) Category() PouchCategory {
	switch t {
	case PouchItemTypeSword:
		return PouchCategorySword
	case PouchItemTypeBow, PouchItemTypeArrow:
		return PouchCategoryBow
	case PouchItemTypeShield:
		return PouchCategoryShield
	case PouchItemTypeArmorHead, PouchItemTypeArmorUpper, PouchItemTypeArmorLower:
		return PouchCategoryArmor
	case PouchItemTypeMaterial:
		return PouchCategoryMaterial
	case PouchItemTypeFood:
		return PouchCategoryFood
	case PouchItemTypeKeyItem:
		return PouchCategoryKeyItem
	default:
		return PouchCategoryInvalid
	}
}

// ItemUse is PouchItem::mItemUse.
type ItemUse int32

const (
	ItemUseWeaponSmallSword ItemUse = iota
	ItemUseWeaponLargeSword
	ItemUseWeaponSpear
	ItemUseWeaponBow
	ItemUseWeaponShield
	ItemUseArmorHead
	ItemUseArmorUpper
	ItemUseArmorLower
	ItemUseItem
	ItemUseImportantItem
	ItemUseCureItem
	ItemUseInvalid ItemUse = -1
)

// NumPouchItems is the fixed item pool size shared by the two lists.
const NumPouchItems = 420

// NumTabs is the size of the tab tables.
const NumTabs = 50

// NumIngredients is the fixed ingredient slot count per item.
const NumIngredients = 5

// ListNode is the intrusive doubly-linked node embedded in pool items.
type ListNode struct {
	Prev uint64
	Next uint64
}

// Field offsets. Game code writes through these offsets with absolute
// struct sizes, so they are part of the binary-compatibility surface.
const (
	ListNodeSize = 0x10

	listNodePrevOff = 0x0
	listNodeNextOff = 0x8

	OffsetListSize = 0x18

	offsetListNodeOff   = 0x0
	offsetListCountOff  = 0x10
	offsetListOffsetOff = 0x14

	FixedSafeString40Size = 0x58

	safeStringVtableOff = 0x0
	safeStringTopOff    = 0x8
	safeStringBufSize   = 0x10
	safeStringBufOff    = 0x14
	safeStringBufLen    = 0x40

	WeaponModifierInfoSize = 0x8

	weaponModifierFlagsOff = 0x0
	weaponModifierValueOff = 0x4

	CookItemSize = 0x228

	cookItemActorNameOff  = 0x0
	cookItemIngrOff       = 0x58
	cookItemLifeRecOff    = 0x210
	cookItemEffectTimeOff = 0x214
	cookItemSellPriceOff  = 0x218
	cookItemEffectIDOff   = 0x21c
	cookItemVitalityOff   = 0x220
	cookItemIsCritOff     = 0x224

	PouchItemSize = 0x298

	pouchItemVtableOff    = 0x0
	pouchItemNodeOff      = 0x8
	pouchItemTypeOff      = 0x18
	pouchItemUseOff       = 0x1c
	pouchItemValueOff     = 0x20
	pouchItemEquippedOff  = 0x24
	pouchItemInInvOff     = 0x25
	pouchItemHealthOff    = 0x28
	pouchItemDurationOff  = 0x2c
	pouchItemSellPriceOff = 0x30
	pouchItemEffectIDOff  = 0x34
	pouchItemEffectLvlOff = 0x38
	pouchItemIngrCountOff = 0x40
	pouchItemIngrCapOff   = 0x44
	pouchItemIngrPtrsOff  = 0x48
	pouchItemIngrSlotsOff = 0x50
	pouchItemIngrBufOff   = 0x78
	pouchItemNameOff      = 0x230

	PmdmSize = 0x44808

	pmdmList1Off      = 0x68
	pmdmList2Off      = 0x80
	pmdmItemBufferOff = 0x98
	pmdmListHeadsOff  = 0x444c8
	pmdmTabsOff       = 0x44500
	pmdmTabsTypeOff   = 0x44690
	pmdmLastAddedOff  = 0x44758
	pmdmLastTabOff    = 0x44760
	pmdmLastSlotOff   = 0x44764
	pmdmNumTabsOff    = 0x44768

	GdtManagerSize = 0xdc8

	gdtManagerFlagBufferOff = 0xd0
)

func init() {
	for _, l := range []memory.Layout{
		{
			Name: "ListNode", Size: ListNodeSize,
			Fields: []memory.Field{
				{Name: "mPrev", Off: listNodePrevOff, Size: 8},
				{Name: "mNext", Off: listNodeNextOff, Size: 8},
			},
		},
		{
			Name: "OffsetList", Size: OffsetListSize,
			Fields: []memory.Field{
				{Name: "mStartEnd", Off: offsetListNodeOff, Size: ListNodeSize},
				{Name: "mCount", Off: offsetListCountOff, Size: 4},
				{Name: "mOffset", Off: offsetListOffsetOff, Size: 4},
			},
		},
		{
			Name: "FixedSafeString40", Size: FixedSafeString40Size,
			Fields: []memory.Field{
				{Name: "vtable", Off: safeStringVtableOff, Size: 8},
				{Name: "mStringTop", Off: safeStringTopOff, Size: 8},
				{Name: "mBufferSize", Off: safeStringBufSize, Size: 4},
				{Name: "mBuffer", Off: safeStringBufOff, Size: safeStringBufLen},
			},
		},
		{
			Name: "WeaponModifierInfo", Size: WeaponModifierInfoSize,
			Fields: []memory.Field{
				{Name: "flags", Off: weaponModifierFlagsOff, Size: 4},
				{Name: "value", Off: weaponModifierValueOff, Size: 4},
			},
		},
		{
			Name: "CookItem", Size: CookItemSize,
			Fields: []memory.Field{
				{Name: "actor_name", Off: cookItemActorNameOff, Size: FixedSafeString40Size},
				{Name: "ingredients", Off: cookItemIngrOff, Size: NumIngredients * FixedSafeString40Size},
				{Name: "life_recover", Off: cookItemLifeRecOff, Size: 4},
				{Name: "effect_time", Off: cookItemEffectTimeOff, Size: 4},
				{Name: "sell_price", Off: cookItemSellPriceOff, Size: 4},
				{Name: "effect_id", Off: cookItemEffectIDOff, Size: 4},
				{Name: "vitality_boost", Off: cookItemVitalityOff, Size: 4},
				{Name: "is_crit", Off: cookItemIsCritOff, Size: 1},
			},
		},
		{
			Name: "PouchItem", Size: PouchItemSize,
			Fields: []memory.Field{
				{Name: "vtable", Off: pouchItemVtableOff, Size: 8},
				{Name: "mListNode", Off: pouchItemNodeOff, Size: ListNodeSize},
				{Name: "mType", Off: pouchItemTypeOff, Size: 4},
				{Name: "mItemUse", Off: pouchItemUseOff, Size: 4},
				{Name: "mValue", Off: pouchItemValueOff, Size: 4},
				{Name: "mEquipped", Off: pouchItemEquippedOff, Size: 1},
				{Name: "mInInventory", Off: pouchItemInInvOff, Size: 1},
				{Name: "mHealthRecover", Off: pouchItemHealthOff, Size: 4},
				{Name: "mEffectDuration", Off: pouchItemDurationOff, Size: 4},
				{Name: "mSellPrice", Off: pouchItemSellPriceOff, Size: 4},
				{Name: "mEffectId", Off: pouchItemEffectIDOff, Size: 4},
				{Name: "mEffectLevel", Off: pouchItemEffectLvlOff, Size: 4},
				{Name: "mIngrCount", Off: pouchItemIngrCountOff, Size: 4},
				{Name: "mIngrCapacity", Off: pouchItemIngrCapOff, Size: 4},
				{Name: "mIngrPtrs", Off: pouchItemIngrPtrsOff, Size: 8},
				{Name: "mIngrSlots", Off: pouchItemIngrSlotsOff, Size: NumIngredients * 8},
				{Name: "mIngrBuf", Off: pouchItemIngrBufOff, Size: NumIngredients * FixedSafeString40Size},
				{Name: "mName", Off: pouchItemNameOff, Size: FixedSafeString40Size},
			},
		},
		{
			Name: "PauseMenuDataMgr", Size: PmdmSize,
			Fields: []memory.Field{
				{Name: "mList1", Off: pmdmList1Off, Size: OffsetListSize},
				{Name: "mList2", Off: pmdmList2Off, Size: OffsetListSize},
				{Name: "mItemBuffer", Off: pmdmItemBufferOff, Size: NumPouchItems * PouchItemSize},
				{Name: "mListHeads", Off: pmdmListHeadsOff, Size: 7 * 8},
				{Name: "mTabs", Off: pmdmTabsOff, Size: NumTabs * 8},
				{Name: "mTabsType", Off: pmdmTabsTypeOff, Size: NumTabs * 4},
				{Name: "mLastAddedItem", Off: pmdmLastAddedOff, Size: 8},
				{Name: "mLastAddedItemTab", Off: pmdmLastTabOff, Size: 4},
				{Name: "mLastAddedItemSlot", Off: pmdmLastSlotOff, Size: 4},
				{Name: "mNumTabs", Off: pmdmNumTabsOff, Size: 4},
			},
		},
	} {
		l.Check()
	}
}

// ListNodePtr is a typed pointer to a ListNode.
type ListNodePtr uint64

// Prev points at the node's prev pointer.
func (p ListNodePtr) Prev() memory.U64Ptr { return memory.U64Ptr(uint64(p) + listNodePrevOff) }

// Next points at the node's next pointer.
func (p ListNodePtr) Next() memory.U64Ptr { return memory.U64Ptr(uint64(p) + listNodeNextOff) }

// IsNull reports a null node pointer.
func (p ListNodePtr) IsNull() bool { return p == 0 }

// SafeString40Ptr is a typed pointer to a FixedSafeString40.
type SafeString40Ptr uint64

// Construct initializes the string: the buffer pointer targets the
// inline buffer and the buffer is emptied.
func (p SafeString40Ptr) Construct(m *memory.Memory) error {
	w, err := m.Writer(uint64(p), 0)
	if err != nil {
		return err
	}
	if err := w.WriteU64(0); err != nil { // vtable, unused by the simulator
		return err
	}
	if err := w.WriteU64(uint64(p) + safeStringBufOff); err != nil {
		return err
	}
	if err := w.WriteI32(safeStringBufLen); err != nil {
		return err
	}
	return w.WriteZeros(safeStringBufLen)
}

// Top points at the string's data pointer.
func (p SafeString40Ptr) Top() memory.U64Ptr { return memory.U64Ptr(uint64(p) + safeStringTopOff) }

// SafeStore writes s into the inline buffer, truncated to fit, and
// repairs the buffer pointer.
func (p SafeString40Ptr) SafeStore(s string, m *memory.Memory) error {
	if err := p.Top().Store(uint64(p)+safeStringBufOff, m); err != nil {
		return err
	}
	data := []byte(s)
	if len(data) > safeStringBufLen-1 {
		data = data[:safeStringBufLen-1]
	}
	w, err := m.Writer(uint64(p)+safeStringBufOff, 0)
	if err != nil {
		return err
	}
	if err := w.WriteBytes(data); err != nil {
		return err
	}
	return w.WriteU8(0)
}

// CStr returns the address of the string data.
func (p SafeString40Ptr) CStr(m *memory.Memory) (uint64, error) {
	return p.Top().Load(m)
}

// Load reads the string through its data pointer.
func (p SafeString40Ptr) Load(m *memory.Memory) (string, error) {
	top, err := p.Top().Load(m)
	if err != nil {
		return "", err
	}
	if top == 0 {
		return "", nil
	}
	return memory.ReadCString(m, top, safeStringBufLen)
}

// WeaponModifierInfo is a modifier bitset plus its value.
type WeaponModifierInfo struct {
	Flags uint32
	Value int32
}

// MemSize implements memory.Object.
func (*WeaponModifierInfo) MemSize() uint32 { return WeaponModifierInfoSize }

// ReadFrom implements memory.Object.
func (w *WeaponModifierInfo) ReadFrom(r *memory.Reader) error {
	var err error
	if w.Flags, err = r.ReadU32(); err != nil {
		return err
	}
	w.Value, err = r.ReadI32()
	return err
}

// WriteTo implements memory.Object.
func (w *WeaponModifierInfo) WriteTo(wr *memory.Writer) error {
	if err := wr.WriteU32(w.Flags); err != nil {
		return err
	}
	return wr.WriteI32(w.Value)
}

// Weapon modifier flag bits.
const (
	ModifierAttackUp     uint32 = 0x1
	ModifierDurabilityUp uint32 = 0x2
	ModifierCriticalHit  uint32 = 0x4
	ModifierLongThrow    uint32 = 0x8
	ModifierMultiShot    uint32 = 0x10
	ModifierZoom         uint32 = 0x20
	ModifierQuickShot    uint32 = 0x40
	ModifierSurfMaster   uint32 = 0x80
	ModifierGuardUp      uint32 = 0x100
	ModifierYellow       uint32 = 0x80000000
)

// CookItemPtr is a typed pointer to a CookItem.
type CookItemPtr uint64

// Construct zero-fills the cook item and constructs its strings.
func (p CookItemPtr) Construct(m *memory.Memory) error {
	w, err := m.Writer(uint64(p), 0)
	if err != nil {
		return err
	}
	if err := w.WriteZeros(CookItemSize); err != nil {
		return err
	}
	if err := p.ActorName().Construct(m); err != nil {
		return err
	}
	for i := 0; i < NumIngredients; i++ {
		if err := p.Ingredient(i).Construct(m); err != nil {
			return err
		}
	}
	return nil
}

// ActorName points at the cooked actor's name.
func (p CookItemPtr) ActorName() SafeString40Ptr {
	return SafeString40Ptr(uint64(p) + cookItemActorNameOff)
}

// Ingredient points at the i-th ingredient name.
func (p CookItemPtr) Ingredient(i int) SafeString40Ptr {
	return SafeString40Ptr(uint64(p) + cookItemIngrOff + uint64(i)*FixedSafeString40Size)
}

// LifeRecover points at the HP recovery field.
func (p CookItemPtr) LifeRecover() memory.F32Ptr {
	return memory.F32Ptr(uint64(p) + cookItemLifeRecOff)
}

// EffectTime points at the effect duration field.
func (p CookItemPtr) EffectTime() memory.I32Ptr {
	return memory.I32Ptr(uint64(p) + cookItemEffectTimeOff)
}

// SellPrice points at the sell price field.
func (p CookItemPtr) SellPrice() memory.I32Ptr {
	return memory.I32Ptr(uint64(p) + cookItemSellPriceOff)
}

// EffectID points at the effect id field.
func (p CookItemPtr) EffectID() memory.I32Ptr {
	return memory.I32Ptr(uint64(p) + cookItemEffectIDOff)
}

// VitalityBoost points at the effect level field.
func (p CookItemPtr) VitalityBoost() memory.F32Ptr {
	return memory.F32Ptr(uint64(p) + cookItemVitalityOff)
}

// IsCrit points at the critical-cook flag.
func (p CookItemPtr) IsCrit() memory.BoolPtr {
	return memory.BoolPtr(uint64(p) + cookItemIsCritOff)
}

// PouchItemPtr is a typed pointer to a PouchItem in the pool.
type PouchItemPtr uint64

// IsNull reports a null item pointer.
func (p PouchItemPtr) IsNull() bool { return p == 0 }

// Node points at the embedded list node.
func (p PouchItemPtr) Node() ListNodePtr { return ListNodePtr(uint64(p) + pouchItemNodeOff) }

// ItemFromNode recovers the item pointer from its embedded node.
func ItemFromNode(n ListNodePtr) PouchItemPtr { return PouchItemPtr(uint64(n) - pouchItemNodeOff) }

// Type points at mType.
func (p PouchItemPtr) Type() memory.I32Ptr { return memory.I32Ptr(uint64(p) + pouchItemTypeOff) }

// Use points at mItemUse.
func (p PouchItemPtr) Use() memory.I32Ptr { return memory.I32Ptr(uint64(p) + pouchItemUseOff) }

// Value points at mValue.
func (p PouchItemPtr) Value() memory.I32Ptr { return memory.I32Ptr(uint64(p) + pouchItemValueOff) }

// Equipped points at mEquipped.
func (p PouchItemPtr) Equipped() memory.BoolPtr {
	return memory.BoolPtr(uint64(p) + pouchItemEquippedOff)
}

// InInventory points at mInInventory.
func (p PouchItemPtr) InInventory() memory.BoolPtr {
	return memory.BoolPtr(uint64(p) + pouchItemInInvOff)
}

// HealthRecover points at mHealthRecover.
func (p PouchItemPtr) HealthRecover() memory.I32Ptr {
	return memory.I32Ptr(uint64(p) + pouchItemHealthOff)
}

// EffectDuration points at mEffectDuration.
func (p PouchItemPtr) EffectDuration() memory.I32Ptr {
	return memory.I32Ptr(uint64(p) + pouchItemDurationOff)
}

// SellPrice points at mSellPrice.
func (p PouchItemPtr) SellPrice() memory.I32Ptr {
	return memory.I32Ptr(uint64(p) + pouchItemSellPriceOff)
}

// EffectID points at mEffectId.
func (p PouchItemPtr) EffectID() memory.F32Ptr {
	return memory.F32Ptr(uint64(p) + pouchItemEffectIDOff)
}

// EffectLevel points at mEffectLevel.
func (p PouchItemPtr) EffectLevel() memory.F32Ptr {
	return memory.F32Ptr(uint64(p) + pouchItemEffectLvlOff)
}

// Name points at the item's name string.
func (p PouchItemPtr) Name() SafeString40Ptr {
	return SafeString40Ptr(uint64(p) + pouchItemNameOff)
}

// Ingredient points at the i-th ingredient name.
func (p PouchItemPtr) Ingredient(i int) SafeString40Ptr {
	return SafeString40Ptr(uint64(p) + pouchItemIngrBufOff + uint64(i)*FixedSafeString40Size)
}

// Construct zero-initializes the item the way the pool constructor
// leaves it: empty strings constructed, everything else zero, type
// invalid.
func (p PouchItemPtr) Construct(m *memory.Memory) error {
	w, err := m.Writer(uint64(p), 0)
	if err != nil {
		return err
	}
	if err := w.WriteZeros(PouchItemSize); err != nil {
		return err
	}
	// the ingredient pointer array always holds all five slots
	if err := memory.I32Ptr(uint64(p)+pouchItemIngrCountOff).Store(NumIngredients, m); err != nil {
		return err
	}
	if err := memory.I32Ptr(uint64(p)+pouchItemIngrCapOff).Store(NumIngredients, m); err != nil {
		return err
	}
	if err := memory.U64Ptr(uint64(p)+pouchItemIngrPtrsOff).Store(uint64(p)+pouchItemIngrSlotsOff, m); err != nil {
		return err
	}
	for i := 0; i < NumIngredients; i++ {
		slot := memory.U64Ptr(uint64(p) + pouchItemIngrSlotsOff + uint64(i)*8)
		if err := slot.Store(uint64(p.Ingredient(i)), m); err != nil {
			return err
		}
		if err := p.Ingredient(i).Construct(m); err != nil {
			return err
		}
	}
	if err := p.Name().Construct(m); err != nil {
		return err
	}
	if err := p.Type().Store(int32(PouchItemTypeInvalid), m); err != nil {
		return err
	}
	return p.Value().Store(0, m)
}

// PmdmPtr is a typed pointer to the pause-menu data manager.
type PmdmPtr uint64

// List1 points at the allocated item list.
func (p PmdmPtr) List1() OffsetListPtr { return OffsetListPtr(uint64(p) + pmdmList1Off) }

// List2 points at the unallocated item list.
func (p PmdmPtr) List2() OffsetListPtr { return OffsetListPtr(uint64(p) + pmdmList2Off) }

// Item points at the i-th item in the fixed pool.
func (p PmdmPtr) Item(i int) PouchItemPtr {
	return PouchItemPtr(uint64(p) + pmdmItemBufferOff + uint64(i)*PouchItemSize)
}

// ItemIndex recovers the pool index of an item pointer, or -1 when the
// pointer is outside the pool or misaligned.
func (p PmdmPtr) ItemIndex(item PouchItemPtr) int {
	base := uint64(p) + pmdmItemBufferOff
	if uint64(item) < base {
		return -1
	}
	diff := uint64(item) - base
	if diff%PouchItemSize != 0 || diff/PouchItemSize >= NumPouchItems {
		return -1
	}
	return int(diff / PouchItemSize)
}

// Tab points at the i-th mTabs entry.
func (p PmdmPtr) Tab(i int) memory.U64Ptr {
	return memory.U64Ptr(uint64(p) + pmdmTabsOff + uint64(i)*8)
}

// TabType points at the i-th mTabsType entry.
func (p PmdmPtr) TabType(i int) memory.I32Ptr {
	return memory.I32Ptr(uint64(p) + pmdmTabsTypeOff + uint64(i)*4)
}

// NumTabs points at mNumTabs.
func (p PmdmPtr) NumTabs() memory.I32Ptr { return memory.I32Ptr(uint64(p) + pmdmNumTabsOff) }

// ListHead points at the i-th per-category list head.
func (p PmdmPtr) ListHead(i int) memory.U64Ptr {
	return memory.U64Ptr(uint64(p) + pmdmListHeadsOff + uint64(i)*8)
}

// LastAddedItem points at mLastAddedItem.
func (p PmdmPtr) LastAddedItem() memory.U64Ptr { return memory.U64Ptr(uint64(p) + pmdmLastAddedOff) }

// GdtManagerPtr is a typed pointer to the game-data manager singleton.
type GdtManagerPtr uint64

// FlagBuffer points at the trigger param buffer pointer.
func (p GdtManagerPtr) FlagBuffer() memory.U64Ptr {
	return memory.U64Ptr(uint64(p) + gdtManagerFlagBufferOff)
}
