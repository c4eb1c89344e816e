// Package linker provides thin call helpers around the game functions
// the simulator drives: they marshal arguments per the AArch64 calling
// convention, jump the core into the program image, run to completion,
// and verify stack invariants afterwards.
package linker

import (
	"github.com/zboralski/pouchsim/internal/image"
)

// fnOffsets holds a function's main-relative offset per game version.
// A zero offset means the version's table has no entry yet; calls fail
// with UnsupportedVersionError rather than guessing.
type fnOffsets struct {
	v150 uint32
	v160 uint32
}

// Game function offset table. Hard-coded addresses are part of the
// binary-compatibility surface alongside the singleton recipes.
var offsets = map[string]fnOffsets{
	"doGetItem":              {v150: 0x0071a464},
	"cookItemGet":            {v150: 0x00970158, v160: 0x010be740},
	"pmdmItemGet":            {v150: 0x0096efb8},
	"loadFromGameData":       {v150: 0x0096be24},
	"saveToGameData":         {v150: 0x0096f9bc},
	"getActorProfile":        {v150: 0x00d301fc, v160: 0x01542270},
	"trashItem":              {v150: 0x0097c924},
	"removeItem":             {v150: 0x009704bc},
	"canHoldAnotherItem":     {v150: 0x00973724},
	"removeHeldItems":        {v150: 0x00974860},
	"deleteRemovedItems":     {v150: 0x00971da0},
	"createHoldingItems":     {v150: 0x009746e8},
	"createHoldingItemActor": {v150: 0x00974b10},
	"equipWeapon":            {v150: 0x0097a944},
	"unequip":                {v150: 0x0097a9fc},
	"removeWeaponIfEquipped": {v150: 0x0097ab58},
	"createPlayerEquipment":  {v150: 0x00971504},
	"updateInventoryInfo":    {v150: 0x0096c3b4},
	"updateListHeads":        {v150: 0x0096c954},
	"sellItem":               {v150: 0x0097050c},
	"useItem":                {v150: 0x00970b2c},
	"setWeaponModifier":      {v150: 0x0097c89c},
	"infoDataGetType":        {v150: 0x0096dc34},
	"getHashForActor":        {v150: 0x00b2170c},
	"hasTag":                 {v150: 0x00d2f900},
}

// offsetFor resolves a function's offset for the environment.
func offsetFor(name string, env image.Environment) (uint32, error) {
	o, ok := offsets[name]
	if !ok {
		return 0, &image.UnsupportedVersionError{Op: name, Game: env.Game}
	}
	var rel uint32
	switch {
	case env.Is150():
		rel = o.v150
	case env.Is160():
		rel = o.v160
	}
	if rel == 0 {
		return 0, &image.UnsupportedVersionError{Op: name, Game: env.Game}
	}
	return rel, nil
}
