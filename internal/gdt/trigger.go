package gdt

import "github.com/zboralski/pouchsim/internal/log"

// TriggerParam is one game-data-table instance: sixteen typed flag
// lists. There are no str32 array flags in the game.
type TriggerParam struct {
	Bool   FlagList[bool]
	S32    FlagList[int32]
	F32    FlagList[float32]
	Str32  FlagList[string]
	Str64  FlagList[string]
	Str256 FlagList[string]
	V2f    FlagList[Vec2f]
	V3f    FlagList[Vec3f]
	V4f    FlagList[Vec4f]

	BoolArr   ArrayFlagList[bool]
	S32Arr    ArrayFlagList[int32]
	F32Arr    ArrayFlagList[float32]
	Str64Arr  ArrayFlagList[string]
	Str256Arr ArrayFlagList[string]
	V2fArr    ArrayFlagList[Vec2f]
	V3fArr    ArrayFlagList[Vec3f]
}

// MemSize is the guest footprint of the trigger param proxy token.
func (t *TriggerParam) MemSize() uint32 { return 0x3f0 }

// Clone deep-copies the table, for proxy copy-on-write and save slots.
func (t *TriggerParam) Clone() *TriggerParam {
	return &TriggerParam{
		Bool:      t.Bool.clone(),
		S32:       t.S32.clone(),
		F32:       t.F32.clone(),
		Str32:     t.Str32.clone(),
		Str64:     t.Str64.clone(),
		Str256:    t.Str256.clone(),
		V2f:       t.V2f.clone(),
		V3f:       t.V3f.clone(),
		V4f:       t.V4f.clone(),
		BoolArr:   t.BoolArr.clone(),
		S32Arr:    t.S32Arr.clone(),
		F32Arr:    t.F32Arr.clone(),
		Str64Arr:  t.Str64Arr.clone(),
		Str256Arr: t.Str256Arr.clone(),
		V2fArr:    t.V2fArr.clone(),
		V3fArr:    t.V3fArr.clone(),
	}
}

// sortAll orders every list by hash; construction paths call it once.
func (t *TriggerParam) sortAll() {
	t.Bool.Sort()
	t.S32.Sort()
	t.F32.Sort()
	t.Str32.Sort()
	t.Str64.Sort()
	t.Str256.Sort()
	t.V2f.Sort()
	t.V3f.Sort()
	t.V4f.Sort()
	t.BoolArr.Sort()
	t.S32Arr.Sort()
	t.F32Arr.Sort()
	t.Str64Arr.Sort()
	t.Str256Arr.Sort()
	t.V2fArr.Sort()
	t.V3fArr.Sort()
}

// ResetAll restores every flag of every type to its initial value.
func (t *TriggerParam) ResetAll() {
	for i := range t.Bool {
		t.Bool[i].Reset()
	}
	for i := range t.S32 {
		t.S32[i].Reset()
	}
	for i := range t.F32 {
		t.F32[i].Reset()
	}
	for i := range t.Str32 {
		t.Str32[i].Reset()
	}
	for i := range t.Str64 {
		t.Str64[i].Reset()
	}
	for i := range t.Str256 {
		t.Str256[i].Reset()
	}
	for i := range t.V2f {
		t.V2f[i].Reset()
	}
	for i := range t.V3f {
		t.V3f[i].Reset()
	}
	for i := range t.V4f {
		t.V4f[i].Reset()
	}
	for i := range t.BoolArr {
		t.BoolArr[i].Reset()
	}
	for i := range t.S32Arr {
		t.S32Arr[i].Reset()
	}
	for i := range t.F32Arr {
		t.F32Arr[i].Reset()
	}
	for i := range t.Str64Arr {
		t.Str64Arr[i].Reset()
	}
	for i := range t.Str256Arr {
		t.Str256Arr[i].Reset()
	}
	for i := range t.V2fArr {
		t.V2fArr[i].Reset()
	}
	for i := range t.V3fArr {
		t.V3fArr[i].Reset()
	}
}

// LoadSave copies values from another table, only for flags with the
// IsSave property. The whole load fails if any list pair differs in
// length or any flag pair differs in hash.
func (t *TriggerParam) LoadSave(other *TriggerParam) bool {
	return loadSaveScalar(t.Bool, other.Bool) &&
		loadSaveScalar(t.S32, other.S32) &&
		loadSaveScalar(t.F32, other.F32) &&
		loadSaveScalar(t.Str32, other.Str32) &&
		loadSaveScalar(t.Str64, other.Str64) &&
		loadSaveScalar(t.Str256, other.Str256) &&
		loadSaveScalar(t.V2f, other.V2f) &&
		loadSaveScalar(t.V3f, other.V3f) &&
		loadSaveScalar(t.V4f, other.V4f) &&
		loadSaveArray(t.BoolArr, other.BoolArr) &&
		loadSaveArray(t.S32Arr, other.S32Arr) &&
		loadSaveArray(t.F32Arr, other.F32Arr) &&
		loadSaveArray(t.Str64Arr, other.Str64Arr) &&
		loadSaveArray(t.Str256Arr, other.Str256Arr) &&
		loadSaveArray(t.V2fArr, other.V2fArr) &&
		loadSaveArray(t.V3fArr, other.V3fArr)
}

func loadSaveScalar[T Value](dst, src FlagList[T]) bool {
	if len(dst) != len(src) {
		log.L.Error("fail to load save: length mismatch")
		return false
	}
	for i := range dst {
		if dst[i].hash != src[i].hash {
			log.L.Error("fail to load save: hash mismatch")
			return false
		}
		if !dst[i].Savable() {
			continue
		}
		dst[i].Set(src[i].Get())
	}
	return true
}

func loadSaveArray[T Value](dst, src ArrayFlagList[T]) bool {
	if len(dst) != len(src) {
		log.L.Error("fail to load save: length mismatch")
		return false
	}
	for i := range dst {
		if dst[i].hash != src[i].hash {
			log.L.Error("fail to load save: hash mismatch")
			return false
		}
		if !dst[i].Savable() {
			continue
		}
		if len(dst[i].value) == len(src[i].value) {
			copy(dst[i].value, src[i].value)
		}
	}
	return true
}
