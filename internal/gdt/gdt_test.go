package gdt

import "testing"

func loaded(t *testing.T) *TriggerParam {
	t.Helper()
	tp, err := Loaded([]string{"IsGet_Item_Fruit_A", "IsGet_Weapon_Sword_001"})
	if err != nil {
		t.Fatalf("load flags: %v", err)
	}
	return tp
}

func TestListsSorted(t *testing.T) {
	tp := loaded(t)
	checkSorted := func(name string, hashes []int32) {
		for i := 1; i < len(hashes); i++ {
			if hashes[i-1] >= hashes[i] {
				t.Errorf("%s list not sorted at %d", name, i)
			}
		}
	}
	var boolHashes []int32
	for i := range tp.Bool {
		boolHashes = append(boolHashes, tp.Bool[i].Hash())
	}
	checkSorted("bool", boolHashes)
	var s32Hashes []int32
	for i := range tp.S32 {
		s32Hashes = append(s32Hashes, tp.S32[i].Hash())
	}
	checkSorted("s32", s32Hashes)
	var arrHashes []int32
	for i := range tp.S32Arr {
		arrHashes = append(arrHashes, tp.S32Arr[i].Hash())
	}
	checkSorted("s32_array", arrHashes)
}

func TestLookupByHashAndName(t *testing.T) {
	tp := loaded(t)
	byName := tp.S32.ByName("KorokNutsNum")
	if byName == nil {
		t.Fatalf("KorokNutsNum not found by name")
	}
	byHash := tp.S32.ByHash(Hash("KorokNutsNum"))
	if byHash != byName {
		t.Errorf("hash and name lookup disagree")
	}
	if byName.Get() != 0 {
		t.Errorf("initial value: %d", byName.Get())
	}
	if tp.S32.ByName("NoSuchFlag") != nil {
		t.Errorf("phantom flag found")
	}
	if tp.Bool.ByName("IsGet_Item_Fruit_A") == nil {
		t.Errorf("extra bool flag missing")
	}
}

func TestSetClampsAndReset(t *testing.T) {
	tp := loaded(t)
	f := tp.S32.ByName("MasterSword_Add_Power")
	f.Set(100)
	if f.Get() != 30 {
		t.Errorf("set did not clamp to max: %d", f.Get())
	}
	f.Set(-5)
	if f.Get() != 0 {
		t.Errorf("set did not clamp to min: %d", f.Get())
	}
	f.Set(12)
	f.Reset()
	if f.Get() != 0 {
		t.Errorf("reset: %d", f.Get())
	}
}

func TestArrayFlagOps(t *testing.T) {
	tp := loaded(t)
	f := tp.S32Arr.ByName("PorchItem_Value1")
	if f.Len() != 420 {
		t.Fatalf("len = %d", f.Len())
	}
	// the array setter bypasses clamping
	if !f.SetAt(3, 99999999) {
		t.Fatalf("set_at failed")
	}
	if v, ok := f.GetAt(3); !ok || v != 99999999 {
		t.Errorf("get_at: %d %v", v, ok)
	}
	if f.SetAt(420, 1) {
		t.Errorf("set_at out of range succeeded")
	}
	if _, ok := f.GetAt(-1); ok {
		t.Errorf("get_at negative succeeded")
	}
	if !f.ResetAt(3) {
		t.Fatalf("reset_at failed")
	}
	if v, _ := f.GetAt(3); v != 0 {
		t.Errorf("reset_at value: %d", v)
	}
}

func TestVectorInitialValue(t *testing.T) {
	tp := loaded(t)
	f := tp.V3f.ByName("PlayerSavePos")
	if f == nil {
		t.Fatalf("PlayerSavePos missing")
	}
	want := Vec3f{X: -1130.0, Y: 237.4, Z: 1914.5}
	if f.Get() != want {
		t.Errorf("initial = %+v", f.Get())
	}
}

func TestLoadSaveRoundTrip(t *testing.T) {
	tp := loaded(t)
	save := tp.Clone()
	save.S32.ByName("KorokNutsNum").Set(123)
	save.Str64Arr.ByName("PorchItem").SetAt(0, "Item_Fruit_A")
	save.BoolArr.ByName("PorchItem_EquipFlag").SetAt(0, true)

	if !tp.LoadSave(save) {
		t.Fatalf("load save failed")
	}
	if got := tp.S32.ByName("KorokNutsNum").Get(); got != 123 {
		t.Errorf("s32 not loaded: %d", got)
	}
	if v, _ := tp.Str64Arr.ByName("PorchItem").GetAt(0); v != "Item_Fruit_A" {
		t.Errorf("str64 array not loaded: %q", v)
	}
	if v, _ := tp.BoolArr.ByName("PorchItem_EquipFlag").GetAt(0); !v {
		t.Errorf("bool array not loaded")
	}
}

func TestLoadSaveSkipsNonSavable(t *testing.T) {
	tp := loaded(t)
	save := tp.Clone()
	save.S32.ByName("ArrowLimit").Set(5)
	if !tp.LoadSave(save) {
		t.Fatalf("load save failed")
	}
	if got := tp.S32.ByName("ArrowLimit").Get(); got != 999 {
		t.Errorf("non-savable flag was loaded: %d", got)
	}
}

func TestLoadSaveRejectsMismatch(t *testing.T) {
	tp := loaded(t)
	other := tp.Clone()
	other.S32 = append(other.S32, NewFlag[int32](Hash("Extra"), 0, PropSave))
	other.S32.Sort()
	if tp.LoadSave(other) {
		t.Fatalf("length mismatch accepted")
	}

	other2, err := Loaded([]string{"IsGet_Item_Fruit_A", "IsGet_Item_Fruit_B"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tp.LoadSave(other2) {
		t.Fatalf("hash mismatch accepted")
	}
}

func TestPackedBoolRoundTrip(t *testing.T) {
	var data []byte
	data = append(data, PackBoolFlag("FlagB", true, PropSave|PropProgramReadable)...)
	data = append(data, PackBoolFlag("FlagA", false, PropProgramReadable)...)
	list, err := UnpackBoolFlags(data)
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len = %d", len(list))
	}
	fb := list.ByName("FlagB")
	if fb == nil || !fb.Get() || !fb.Savable() {
		t.Errorf("FlagB wrong: %+v", fb)
	}
	fa := list.ByName("FlagA")
	if fa == nil || fa.Get() || fa.Savable() {
		t.Errorf("FlagA wrong: %+v", fa)
	}
	if _, err := UnpackBoolFlags(data[:7]); err == nil {
		t.Errorf("truncated table accepted")
	}
}

func TestPackedS32RoundTrip(t *testing.T) {
	var data []byte
	data = append(data, PackS32Flag("Count", 7, 0, 10, PropSave)...)
	list, err := UnpackS32Flags(data)
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	f := list.ByName("Count")
	if f == nil {
		t.Fatalf("Count missing")
	}
	if f.Get() != 7 {
		t.Errorf("initial: %d", f.Get())
	}
	f.Set(50)
	if f.Get() != 10 {
		t.Errorf("clamp on unpacked flag: %d", f.Get())
	}
}

func TestCloneIsDeep(t *testing.T) {
	tp := loaded(t)
	clone := tp.Clone()
	clone.S32Arr.ByName("PorchItem_Value1").SetAt(0, 42)
	if v, _ := tp.S32Arr.ByName("PorchItem_Value1").GetAt(0); v != 0 {
		t.Errorf("clone shares array storage")
	}
}
