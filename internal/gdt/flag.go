// Package gdt implements the game data table: typed flag lists keyed by
// the CRC32 hash of the flag name, with load-from-save semantics and
// packed initial-value tables.
package gdt

import (
	"hash/crc32"
	"sort"
)

// Property bits carried by every flag.
const (
	PropProgramReadable uint8 = 0x1
	PropProgramWritable uint8 = 0x2
	PropSave            uint8 = 0x4
	PropOneTrigger      uint8 = 0x8
	PropEventAssociated uint8 = 0x10
)

// Hash returns the CRC32 hash of a flag name, as the game computes it.
func Hash(name string) int32 {
	return int32(crc32.ChecksumIEEE([]byte(name)))
}

// Vec2f is a 2D float flag value.
type Vec2f struct {
	X float32 `yaml:"x" json:"x"`
	Y float32 `yaml:"y" json:"y"`
}

// Vec3f is a 3D float flag value.
type Vec3f struct {
	X float32 `yaml:"x" json:"x"`
	Y float32 `yaml:"y" json:"y"`
	Z float32 `yaml:"z" json:"z"`
}

// Vec4f is a 4D float flag value.
type Vec4f struct {
	X float32 `yaml:"x" json:"x"`
	Y float32 `yaml:"y" json:"y"`
	Z float32 `yaml:"z" json:"z"`
	W float32 `yaml:"w" json:"w"`
}

// Value enumerates the types a flag can carry.
type Value interface {
	bool | int32 | float32 | string | Vec2f | Vec3f | Vec4f
}

// clampValue clamps numeric values to [min, max]; other types pass
// through, matching the game's setter behavior.
func clampValue[T Value](v, minV, maxV T) T {
	switch x := any(v).(type) {
	case int32:
		lo := any(minV).(int32)
		hi := any(maxV).(int32)
		if lo == 0 && hi == 0 {
			return v
		}
		if x < lo {
			return any(lo).(T)
		}
		if x > hi {
			return any(hi).(T)
		}
		return v
	case float32:
		lo := any(minV).(float32)
		hi := any(maxV).(float32)
		if lo == 0 && hi == 0 {
			return v
		}
		if x < lo {
			return any(lo).(T)
		}
		if x > hi {
			return any(hi).(T)
		}
		return v
	default:
		return v
	}
}

// Flag is one scalar flag: hash, current and initial value, clamping
// bounds, and property bits.
type Flag[T Value] struct {
	hash    int32
	value   T
	initial T
	min     T
	max     T
	props   uint8
}

// NewFlag creates a flag at its initial value.
func NewFlag[T Value](hash int32, initial T, props uint8) Flag[T] {
	return Flag[T]{hash: hash, value: initial, initial: initial, props: props}
}

// NewFlagBounded creates a flag with clamping bounds.
func NewFlagBounded[T Value](hash int32, initial, minV, maxV T, props uint8) Flag[T] {
	return Flag[T]{hash: hash, value: initial, initial: initial, min: minV, max: maxV, props: props}
}

// Hash returns the name hash.
func (f *Flag[T]) Hash() int32 { return f.hash }

// Get returns the current value.
func (f *Flag[T]) Get() T { return f.value }

// Initial returns the initial value.
func (f *Flag[T]) Initial() T { return f.initial }

// Set stores a value, clamped to the flag's bounds.
func (f *Flag[T]) Set(v T) { f.value = clampValue(v, f.min, f.max) }

// Reset restores the initial value.
func (f *Flag[T]) Reset() { f.value = f.initial }

// Savable reports the IsSave property bit.
func (f *Flag[T]) Savable() bool { return f.props&PropSave != 0 }

// Props returns the raw property bits.
func (f *Flag[T]) Props() uint8 { return f.props }

// ArrayFlag is one array flag. The array setter bypasses clamping, as
// the game's does.
type ArrayFlag[T Value] struct {
	hash    int32
	value   []T
	initial []T
	props   uint8
}

// NewArrayFlag creates an array flag at its initial value.
func NewArrayFlag[T Value](hash int32, initial []T, props uint8) ArrayFlag[T] {
	value := make([]T, len(initial))
	copy(value, initial)
	return ArrayFlag[T]{hash: hash, value: value, initial: initial, props: props}
}

// Hash returns the name hash.
func (f *ArrayFlag[T]) Hash() int32 { return f.hash }

// Len returns the array length.
func (f *ArrayFlag[T]) Len() int { return len(f.value) }

// Get returns the whole array for reading.
func (f *ArrayFlag[T]) Get() []T { return f.value }

// GetAt returns the value at index i; ok is false when out of range.
func (f *ArrayFlag[T]) GetAt(i int) (T, bool) {
	if i < 0 || i >= len(f.value) {
		var zero T
		return zero, false
	}
	return f.value[i], true
}

// SetAt stores the value at index i without clamping; returns false when
// out of range.
func (f *ArrayFlag[T]) SetAt(i int, v T) bool {
	if i < 0 || i >= len(f.value) {
		return false
	}
	f.value[i] = v
	return true
}

// ResetAt restores the initial value at index i; returns false when out
// of range.
func (f *ArrayFlag[T]) ResetAt(i int) bool {
	if i < 0 || i >= len(f.value) {
		return false
	}
	f.value[i] = f.initial[i]
	return true
}

// Reset restores the whole array to its initial values.
func (f *ArrayFlag[T]) Reset() {
	copy(f.value, f.initial)
}

// Savable reports the IsSave property bit.
func (f *ArrayFlag[T]) Savable() bool { return f.props&PropSave != 0 }

func (f *ArrayFlag[T]) clone() ArrayFlag[T] {
	value := make([]T, len(f.value))
	copy(value, f.value)
	n := *f
	n.value = value
	return n
}

// FlagList is a list of scalar flags sorted by hash.
type FlagList[T Value] []Flag[T]

// Sort orders the list by hash; lookups require it.
func (l FlagList[T]) Sort() {
	sort.Slice(l, func(i, j int) bool { return l[i].hash < l[j].hash })
}

// ByHash binary-searches for a flag by hash.
func (l FlagList[T]) ByHash(hash int32) *Flag[T] {
	i := sort.Search(len(l), func(i int) bool { return l[i].hash >= hash })
	if i < len(l) && l[i].hash == hash {
		return &l[i]
	}
	return nil
}

// ByName hashes the name and searches.
func (l FlagList[T]) ByName(name string) *Flag[T] {
	return l.ByHash(Hash(name))
}

func (l FlagList[T]) clone() FlagList[T] {
	n := make(FlagList[T], len(l))
	copy(n, l)
	return n
}

// ArrayFlagList is a list of array flags sorted by hash.
type ArrayFlagList[T Value] []ArrayFlag[T]

// Sort orders the list by hash; lookups require it.
func (l ArrayFlagList[T]) Sort() {
	sort.Slice(l, func(i, j int) bool { return l[i].hash < l[j].hash })
}

// ByHash binary-searches for a flag by hash.
func (l ArrayFlagList[T]) ByHash(hash int32) *ArrayFlag[T] {
	i := sort.Search(len(l), func(i int) bool { return l[i].hash >= hash })
	if i < len(l) && l[i].hash == hash {
		return &l[i]
	}
	return nil
}

// ByName hashes the name and searches.
func (l ArrayFlagList[T]) ByName(name string) *ArrayFlag[T] {
	return l.ByHash(Hash(name))
}

func (l ArrayFlagList[T]) clone() ArrayFlagList[T] {
	n := make(ArrayFlagList[T], len(l))
	for i := range l {
		n[i] = l[i].clone()
	}
	return n
}
