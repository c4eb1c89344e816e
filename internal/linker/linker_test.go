package linker

import (
	"encoding/binary"
	"testing"

	"github.com/zboralski/pouchsim/internal/cpu"
	"github.com/zboralski/pouchsim/internal/game"
	"github.com/zboralski/pouchsim/internal/image"
	"github.com/zboralski/pouchsim/internal/memory"
)

// buildTapImage assembles a tiny program whose held-item creation path
// calls the spawn-actor function once with a name argument, exercising
// the permanent hook tap end to end.
func buildTapImage(t *testing.T) *game.Core {
	t.Helper()
	const regionStart = 0x974000
	const fnCreate = 0x9746e8
	const nameOff = 0x974800

	data := make([]byte, 0xc00)
	put := func(rel uint32, word uint32) {
		binary.LittleEndian.PutUint32(data[rel-regionStart:], word)
	}
	// stp x29, x30, [sp, #-16]!
	put(fnCreate, 0xA9BF7BFD)
	// adr x1, name
	put(fnCreate+4, 0x10000000|uint32((nameOff-(fnCreate+4))>>2)<<5|1)
	// bl createHoldingItemActor
	callee, err := offsetFor("createHoldingItemActor", image.Environment{Game: image.GameVer150})
	if err != nil {
		t.Fatalf("offset: %v", err)
	}
	put(fnCreate+8, 0x94000000|uint32(callee-(fnCreate+8))>>2)
	// ldp x29, x30, [sp], #16
	put(fnCreate+12, 0xA8C17BFD)
	// ret
	put(fnCreate+16, 0xD65F03C0)
	copy(data[nameOff-regionStart:], "Item_Fruit_A\x00")

	heap := memory.NewSimpleHeap(image.DefaultHeapStart, image.DefaultHeapSize, image.SingletonPreAlloc)
	mem, err := memory.NewProgram(image.DefaultProgramStart, 0x980000, 0, []memory.Module{{
		Name:     "main",
		RelStart: 0,
		Size:     0x980000,
		Regions:  []memory.ProgramRegion{{RelStart: regionStart, Perms: 0x5, Data: data}},
	}}, heap, image.DefaultStackStart, image.DefaultStackSize)
	if err != nil {
		t.Fatalf("program memory: %v", err)
	}
	proc := cpu.NewProcess(mem, image.Environment{Game: image.GameVer150, ProgramStart: image.DefaultProgramStart})
	c := game.NewCore(cpu.New(), proc, game.NewProxies())
	if err := game.DirectBoot(c); err != nil {
		t.Fatalf("direct boot: %v", err)
	}
	if err := InstallHooks(c); err != nil {
		t.Fatalf("install hooks: %v", err)
	}
	return c
}

func TestCreateHoldingItemsTapsSpawnedActors(t *testing.T) {
	c := buildTapImage(t)
	var spawned []string
	if err := CreateHoldingItems(c, func(name string) {
		spawned = append(spawned, name)
	}); err != nil {
		t.Fatalf("create holding items: %v", err)
	}
	if len(spawned) != 1 || spawned[0] != "Item_Fruit_A" {
		t.Fatalf("spawned = %v", spawned)
	}
	// the temporary hook is removed again
	if c.Proc.Hooks[HookSpawnActor] != nil {
		t.Fatalf("spawn hook leaked")
	}
}

func TestOffsetsFallBackCleanly(t *testing.T) {
	env160 := image.Environment{Game: image.GameVer160}
	if _, err := offsetFor("trashItem", env160); err == nil {
		t.Fatalf("expected unsupported-version error for trashItem on 1.6.0")
	} else if _, ok := err.(*image.UnsupportedVersionError); !ok {
		t.Fatalf("wrong error type: %T", err)
	}
	if _, err := offsetFor("cookItemGet", env160); err != nil {
		t.Fatalf("cookItemGet has a 1.6.0 offset: %v", err)
	}
	if _, err := offsetFor("noSuchFunction", env160); err == nil {
		t.Fatalf("unknown function resolved")
	}
}

func TestStackArgumentsFencedDuringCall(t *testing.T) {
	c := buildTapImage(t)
	c.ResetStack()
	p, err := stackAllocString40(c, "Weapon_Sword_001")
	if err != nil {
		t.Fatalf("alloc: %v", err)
	}
	if err := c.StackCheck(uint64(p)); err != nil {
		t.Fatalf("clean stack check: %v", err)
	}
	got, err := p.Load(c.Proc.Mem)
	if err != nil || got != "Weapon_Sword_001" {
		t.Fatalf("load: %q %v", got, err)
	}
}
