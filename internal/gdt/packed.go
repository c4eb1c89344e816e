package gdt

import (
	"encoding/binary"
	"fmt"
)

// Packed initial-value tables. Bool flags pack to 5 bytes each: 4 bytes
// of little-endian hash plus one byte whose top bit is the initial value
// and whose low 5 bits are the properties. S32 flags pack to 17 bytes:
// 4 little-endian bytes each for hash, initial, min and max, plus one
// byte of properties.

const (
	packedBoolSize = 5
	packedS32Size  = 17
)

// UnpackBoolFlags expands a packed bool flag table. The result is
// sorted by hash.
func UnpackBoolFlags(data []byte) (FlagList[bool], error) {
	if len(data)%packedBoolSize != 0 {
		return nil, fmt.Errorf("packed bool table length %d is not a multiple of %d", len(data), packedBoolSize)
	}
	out := make(FlagList[bool], 0, len(data)/packedBoolSize)
	for off := 0; off < len(data); off += packedBoolSize {
		hash := int32(binary.LittleEndian.Uint32(data[off:]))
		meta := data[off+4]
		initial := meta&0x80 != 0
		props := meta & 0x1f
		out = append(out, NewFlag(hash, initial, props))
	}
	out.Sort()
	return out, nil
}

// UnpackS32Flags expands a packed s32 flag table. The result is sorted
// by hash.
func UnpackS32Flags(data []byte) (FlagList[int32], error) {
	if len(data)%packedS32Size != 0 {
		return nil, fmt.Errorf("packed s32 table length %d is not a multiple of %d", len(data), packedS32Size)
	}
	out := make(FlagList[int32], 0, len(data)/packedS32Size)
	for off := 0; off < len(data); off += packedS32Size {
		hash := int32(binary.LittleEndian.Uint32(data[off:]))
		initial := int32(binary.LittleEndian.Uint32(data[off+4:]))
		minV := int32(binary.LittleEndian.Uint32(data[off+8:]))
		maxV := int32(binary.LittleEndian.Uint32(data[off+12:]))
		props := data[off+16] & 0x1f
		out = append(out, NewFlagBounded(hash, initial, minV, maxV, props))
	}
	out.Sort()
	return out, nil
}

// PackBoolFlag packs one bool flag entry; the table builder and tests
// use it.
func PackBoolFlag(name string, initial bool, props uint8) []byte {
	out := make([]byte, packedBoolSize)
	binary.LittleEndian.PutUint32(out, uint32(Hash(name)))
	meta := props & 0x1f
	if initial {
		meta |= 0x80
	}
	out[4] = meta
	return out
}

// PackS32Flag packs one s32 flag entry.
func PackS32Flag(name string, initial, minV, maxV int32, props uint8) []byte {
	out := make([]byte, packedS32Size)
	binary.LittleEndian.PutUint32(out, uint32(Hash(name)))
	binary.LittleEndian.PutUint32(out[4:], uint32(initial))
	binary.LittleEndian.PutUint32(out[8:], uint32(minV))
	binary.LittleEndian.PutUint32(out[12:], uint32(maxV))
	out[16] = props & 0x1f
	return out
}
