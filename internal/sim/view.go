package sim

import (
	"github.com/zboralski/pouchsim/internal/game"
	"github.com/zboralski/pouchsim/internal/gdt"
	"github.com/zboralski/pouchsim/internal/log"
)

// snapshot extracts the per-step state view at the end-of-step
// boundary.
func (r *Runner) snapshot(errors []ErrorReport) Snapshot {
	out := Snapshot{
		Screen:    r.sys.Screen.Tag(),
		Overworld: r.sys.Overworld.View(),
		Errors:    errors,
	}
	if r.state != stateRunning {
		return out
	}
	pouch, err := r.pouchView()
	if err != nil {
		log.L.Error("pouch view failed: " + err.Error())
	} else {
		out.Pouch = pouch
	}
	gdtView, err := r.gdtView()
	if err != nil {
		log.L.Error("gdt view failed: " + err.Error())
	} else {
		out.Gdt = gdtView
	}
	return out
}

// pouchView walks mList1 from its head, producing the item array plus
// the tab table. The walk follows links, not the count, so corrupted
// states show every physically linked slot; accessibility is what the
// count gates.
func (r *Runner) pouchView() (PouchList, error) {
	var view PouchList
	pmdm := r.pmdm()
	m := r.core.Proc.Mem
	list1 := pmdm.List1()
	list2 := pmdm.List2()

	count, err := list1.Count().Load(m)
	if err != nil {
		return view, err
	}
	view.Count = count

	heldCounts := map[game.PouchItemPtr]uint8{}
	for _, h := range r.sys.held {
		heldCounts[h.ptr]++
	}
	pouchScreen := r.sys.Screen.Pouch()

	itemIdxByPtr := map[game.PouchItemPtr]int{}
	node, err := list1.Head(m)
	if err != nil {
		return view, err
	}
	for walk := 0; node != 0 && walk <= game.NumPouchItems; walk++ {
		item, err := list1.ItemOf(node, m)
		if err != nil {
			return view, err
		}
		iv := PouchItemView{
			NodeAddr: Pointer(node),
		}
		if iv.Common.ActorName, err = item.Name().Load(m); err != nil {
			return view, err
		}
		if iv.Common.Value, err = item.Value().Load(m); err != nil {
			return view, err
		}
		if iv.Common.IsEquipped, err = item.Equipped().Load(m); err != nil {
			return view, err
		}
		if iv.ItemType, err = item.Type().Load(m); err != nil {
			return view, err
		}
		if iv.ItemUse, err = item.Use().Load(m); err != nil {
			return view, err
		}
		if iv.IsInInventory, err = item.InInventory().Load(m); err != nil {
			return view, err
		}
		if iv.Data.EffectValue, err = item.HealthRecover().Load(m); err != nil {
			return view, err
		}
		if iv.Data.EffectDuration, err = item.EffectDuration().Load(m); err != nil {
			return view, err
		}
		if iv.Data.SellPrice, err = item.SellPrice().Load(m); err != nil {
			return view, err
		}
		if iv.Data.EffectID, err = item.EffectID().Load(m); err != nil {
			return view, err
		}
		if iv.Data.EffectLevel, err = item.EffectLevel().Load(m); err != nil {
			return view, err
		}
		for i := 0; i < game.NumIngredients; i++ {
			if iv.Ingredients[i], err = item.Ingredient(i).Load(m); err != nil {
				return view, err
			}
		}
		prev, err := item.Node().Prev().Load(m)
		if err != nil {
			return view, err
		}
		next, err := item.Node().Next().Load(m)
		if err != nil {
			return view, err
		}
		iv.NodePrev = Pointer(prev)
		iv.NodeNext = Pointer(next)

		poolIdx := pmdm.ItemIndex(item)
		iv.NodeValid = poolIdx >= 0
		if iv.NodeValid {
			iv.NodePos = int64(poolIdx)
		} else {
			iv.NodePos = int64(uint64(item)) - int64(uint64(pmdm))
		}
		iv.HoldingCount = heldCounts[item]
		iv.AllocatedIdx = int32(walk)
		unalloc, err := list2.WalkIndexOf(item.Node(), m)
		if err != nil {
			return view, err
		}
		iv.UnallocatedIdx = int32(unalloc)
		iv.Accessible = int32(walk) < count && iv.IsInInventory
		iv.DpadAccessible = iv.Accessible && iv.Common.IsEquipped

		if pouchScreen != nil {
			for ti := range pouchScreen.tabs {
				for si := range pouchScreen.tabs[ti] {
					if pouchScreen.tabs[ti][si].ptr == item && pouchScreen.IsEntangled(ti, si) {
						iv.PromptEntangled = true
					}
				}
			}
		}

		itemIdxByPtr[item] = len(view.Items)
		view.Items = append(view.Items, iv)
		node, err = list1.NextOf(node, m)
		if err != nil {
			return view, err
		}
	}

	numTabs, err := pmdm.NumTabs().Load(m)
	if err != nil {
		return view, err
	}
	view.NumTabs = numTabs
	for i := 0; i < int(numTabs) && i < game.NumTabs; i++ {
		ptr, err := pmdm.Tab(i).Load(m)
		if err != nil {
			return view, err
		}
		typ, err := pmdm.TabType(i).Load(m)
		if err != nil {
			return view, err
		}
		tab := PouchTab{ItemPtr: Pointer(ptr), TabType: typ, ItemIdx: -1}
		if idx, ok := itemIdxByPtr[game.PouchItemPtr(ptr)]; ok {
			tab.ItemIdx = idx
		}
		view.Tabs = append(view.Tabs, tab)
	}
	return view, nil
}

// gdtView reads the PorchItem entries and their per-type sidecar flags,
// cross-indexing by type into sword/bow/shield/food records.
func (r *Runner) gdtView() (Gdt, error) {
	var view Gdt
	err := r.core.WithGdt(func(tp *gdt.TriggerParam) {
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

		swords, bows, shields, foods := uint32(0), uint32(0), uint32(0), uint32(0)
		for i := 0; i < porchItem.Len(); i++ {
			name, _ := porchItem.GetAt(i)
			if name == "" {
				break
			}
			value, _ := porchValue.GetAt(i)
			equipped, _ := porchEquip.GetAt(i)
			item := GdtItem{
				Common: CommonItem{ActorName: name, Value: value, IsEquipped: equipped},
				Idx:    uint32(i),
				Data:   GdtItemData{Kind: "none"},
			}
			modifierAt := func(flags, values *gdt.ArrayFlag[int32], idx uint32) *WeaponModifier {
				f, _ := flags.GetAt(int(idx))
				v, _ := values.GetAt(int(idx))
				return &WeaponModifier{Flag: f, Value: v}
			}
			switch game.GetPouchItemType(name) {
			case game.PouchItemTypeSword:
				item.Data = GdtItemData{Kind: "sword", Idx: swords, Modifier: modifierAt(swordFlag, swordValue, swords)}
				swords++
			case game.PouchItemTypeBow:
				item.Data = GdtItemData{Kind: "bow", Idx: bows, Modifier: modifierAt(bowFlag, bowValue, bows)}
				bows++
			case game.PouchItemTypeShield:
				item.Data = GdtItemData{Kind: "shield", Idx: shields, Modifier: modifierAt(shieldFlag, shieldValue, shields)}
				shields++
			case game.PouchItemTypeFood:
				sr, _ := stamina.GetAt(int(foods))
				e0, _ := effect0.GetAt(int(foods))
				e1, _ := effect1.GetAt(int(foods))
				food := &ItemData{
					EffectValue:    int32(sr.X),
					EffectDuration: int32(sr.Y),
					SellPrice:      int32(e1.X),
					EffectID:       e0.X,
					EffectLevel:    e0.Y,
				}
				var ingr [game.NumIngredients]string
				for j := 0; j < game.NumIngredients; j++ {
					ingr[j], _ = materials[j].GetAt(int(foods))
				}
				item.Data = GdtItemData{Kind: "food", Idx: foods, Food: food, Ingredients: &ingr}
				foods++
			}
			view.Items = append(view.Items, item)
		}

		view.MasterSword.IsTrueForm = tp.Bool.ByName("Open_MasterSword_FullPower").Get()
		view.MasterSword.AddPower = tp.S32.ByName("MasterSword_Add_Power").Get()
		view.MasterSword.AddBeamPower = tp.S32.ByName("MasterSword_Add_BeamPower").Get()
		view.MasterSword.RecoverTime = tp.F32.ByName("MasterSwordRecoverTime").Get()
	})
	return view, err
}
