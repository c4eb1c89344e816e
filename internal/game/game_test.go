package game

import (
	"testing"

	"github.com/zboralski/pouchsim/internal/cpu"
	"github.com/zboralski/pouchsim/internal/gdt"
	"github.com/zboralski/pouchsim/internal/image"
	"github.com/zboralski/pouchsim/internal/memory"
)

func newTestCore(t *testing.T) *Core {
	t.Helper()
	mem := memory.New(image.DefaultHeapStart, image.DefaultHeapSize, image.SingletonPreAlloc, image.DefaultStackSize)
	proc := cpu.NewProcess(mem, image.Environment{Game: image.GameVer150})
	c := NewCore(cpu.New(), proc, NewProxies())
	if err := DirectBoot(c); err != nil {
		t.Fatalf("direct boot: %v", err)
	}
	return c
}

func pmdmOf(t *testing.T, c *Core) PmdmPtr {
	t.Helper()
	addr, err := SingletonInstance(c, SingletonPmdm)
	if err != nil {
		t.Fatalf("pmdm instance: %v", err)
	}
	return PmdmPtr(addr)
}

func TestDirectBootListInvariants(t *testing.T) {
	c := newTestCore(t)
	pmdm := pmdmOf(t, c)
	m := c.Proc.Mem

	c1, _ := pmdm.List1().Count().Load(m)
	c2, _ := pmdm.List2().Count().Load(m)
	if c1 != 0 || c2 != NumPouchItems {
		t.Fatalf("counts: list1=%d list2=%d", c1, c2)
	}

	// every node reachable from list2 maps back into the pool
	seen := 0
	node, err := pmdm.List2().Head(m)
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	for node != 0 {
		item, err := pmdm.List2().ItemOf(node, m)
		if err != nil {
			t.Fatalf("item of: %v", err)
		}
		if pmdm.ItemIndex(item) < 0 {
			t.Fatalf("node 0x%x not in pool", uint64(node))
		}
		seen++
		node, err = pmdm.List2().NextOf(node, m)
		if err != nil {
			t.Fatalf("next: %v", err)
		}
	}
	if seen != NumPouchItems {
		t.Fatalf("walked %d nodes", seen)
	}
}

func TestPushNewItemMovesBetweenLists(t *testing.T) {
	c := newTestCore(t)
	pmdm := pmdmOf(t, c)
	m := c.Proc.Mem

	item, err := pmdm.PushNewItem(m)
	if err != nil {
		t.Fatalf("push new item: %v", err)
	}
	if item.IsNull() {
		t.Fatalf("push new item returned null")
	}
	c1, _ := pmdm.List1().Count().Load(m)
	c2, _ := pmdm.List2().Count().Load(m)
	if c1 != 1 || c2 != NumPouchItems-1 {
		t.Fatalf("counts after push: %d %d", c1, c2)
	}
	if c1+c2 != NumPouchItems {
		t.Fatalf("pool leak: %d", c1+c2)
	}

	// forward/backward traversal of list1 is symmetric
	head, _ := pmdm.List1().Head(m)
	if head == 0 {
		t.Fatalf("list1 empty after push")
	}
	gotItem, _ := pmdm.List1().ItemOf(head, m)
	if gotItem != item {
		t.Fatalf("list1 head is not the pushed item")
	}
	if idx, _ := pmdm.List1().WalkIndexOf(head, m); idx != 0 {
		t.Fatalf("walk index: %d", idx)
	}
}

func TestPushNewItemDrainsAtZero(t *testing.T) {
	c := newTestCore(t)
	pmdm := pmdmOf(t, c)
	m := c.Proc.Mem
	for i := 0; i < NumPouchItems; i++ {
		item, err := pmdm.PushNewItem(m)
		if err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
		if item.IsNull() {
			t.Fatalf("pool dried early at %d", i)
		}
	}
	item, err := pmdm.PushNewItem(m)
	if err != nil {
		t.Fatalf("push past end: %v", err)
	}
	if !item.IsNull() {
		t.Fatalf("push past end returned an item")
	}
}

func TestBrokenCountGatesPopFront(t *testing.T) {
	c := newTestCore(t)
	pmdm := pmdmOf(t, c)
	m := c.Proc.Mem

	// slot break: desynchronize the counts from the actual links
	cnt, _ := pmdm.List2().Count().Load(m)
	if err := pmdm.List2().Count().Store(0, m); err != nil {
		t.Fatalf("store count: %v", err)
	}
	node, err := pmdm.List2().PopFront(m)
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	if node != 0 {
		t.Fatalf("pop front ignored the broken count")
	}
	// nodes are still linked even though the count says empty
	head, _ := pmdm.List2().Head(m)
	if head == 0 {
		t.Fatalf("links were touched")
	}
	if err := pmdm.List2().Count().Store(cnt, m); err != nil {
		t.Fatalf("restore count: %v", err)
	}
}

func TestSafeString40(t *testing.T) {
	c := newTestCore(t)
	m := c.Proc.Mem
	addr, err := m.Alloc(FixedSafeString40Size)
	if err != nil {
		t.Fatalf("alloc: %v", err)
	}
	p := SafeString40Ptr(addr)
	if err := p.Construct(m); err != nil {
		t.Fatalf("construct: %v", err)
	}
	if err := p.SafeStore("Item_Fruit_A", m); err != nil {
		t.Fatalf("store: %v", err)
	}
	got, err := p.Load(m)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != "Item_Fruit_A" {
		t.Fatalf("round trip: %q", got)
	}
	// over-long values truncate to the buffer
	long := make([]byte, 100)
	for i := range long {
		long[i] = 'a'
	}
	if err := p.SafeStore(string(long), m); err != nil {
		t.Fatalf("store long: %v", err)
	}
	got, _ = p.Load(m)
	if len(got) != safeStringBufLen-1 {
		t.Fatalf("truncated length: %d", len(got))
	}
}

func TestGdtProxyThroughCore(t *testing.T) {
	c := newTestCore(t)
	if err := c.WithGdtMut(func(tp *gdt.TriggerParam) {}); err != nil {
		t.Fatalf("gdt mut: %v", err)
	}
	var korok int32 = -1
	err := c.WithGdtMut(func(tp *gdt.TriggerParam) {
		tp.S32.ByName("KorokNutsNum").Set(12)
	})
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	err = c.WithGdt(func(tp *gdt.TriggerParam) {
		korok = tp.S32.ByName("KorokNutsNum").Get()
	})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if korok != 12 {
		t.Fatalf("korok = %d", korok)
	}
}

func TestItemDataLookup(t *testing.T) {
	if err := ItemTableError(); err != nil {
		t.Fatalf("item table: %v", err)
	}
	apple := ResolveItemWord("apple")
	if apple == nil || apple.Actor != "Item_Fruit_A" {
		t.Fatalf("apple: %+v", apple)
	}
	if !CanStack("Item_Fruit_A") {
		t.Errorf("apple should stack")
	}
	if GetPouchItemType("Item_Fruit_A") != PouchItemTypeMaterial {
		t.Errorf("apple type")
	}
	if GetPouchItemType("Weapon_Sword_999") != PouchItemTypeSword {
		t.Errorf("prefix fallback for unknown sword")
	}
	if GetWeaponGeneralLife("Weapon_Sword_001") != 27 {
		t.Errorf("general life")
	}
	if !IsWeaponProfile("Weapon_Bow_001") || IsWeaponProfile("Item_Fruit_A") {
		t.Errorf("weapon profile check")
	}
	if ResolveItemWord("no-such-item") != nil {
		t.Errorf("phantom item resolved")
	}
}
