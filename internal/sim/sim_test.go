package sim

import (
	"testing"

	"github.com/zboralski/pouchsim/internal/cpu"
	"github.com/zboralski/pouchsim/internal/game"
	"github.com/zboralski/pouchsim/internal/image"
	"github.com/zboralski/pouchsim/internal/memory"
	"github.com/zboralski/pouchsim/internal/script"
)

func testFactory() (*game.Core, error) {
	mem := memory.New(image.DefaultHeapStart, image.DefaultHeapSize, image.SingletonPreAlloc, image.DefaultStackSize)
	proc := cpu.NewProcess(mem, image.Environment{Game: image.GameVer150})
	c := game.NewCore(cpu.New(), proc, game.NewProxies())
	if err := game.DirectBoot(c); err != nil {
		return nil, err
	}
	return c, nil
}

func newTestRunner(t *testing.T) *Runner {
	t.Helper()
	r, err := NewRunner(testFactory, false)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	return r
}

func resolver() script.ItemResolver {
	return script.ResolverFunc(func(word string) (string, bool) {
		if item := game.ResolveItemWord(word); item != nil {
			return item.Actor, true
		}
		return "", false
	})
}

func runScript(t *testing.T, r *Runner, text string) []StepOutput {
	t.Helper()
	steps, diags := script.Parse(text, resolver())
	for _, d := range diags {
		if !d.Warning {
			t.Fatalf("parse: %v", d)
		}
	}
	outputs, done := r.Run(steps, nil)
	if !done {
		t.Fatalf("run aborted")
	}
	return outputs
}

// findPouchItem returns the first view item with the actor name.
func findPouchItem(s *Snapshot, actor string) *PouchItemView {
	for i := range s.Pouch.Items {
		if s.Pouch.Items[i].Common.ActorName == actor {
			return &s.Pouch.Items[i]
		}
	}
	return nil
}

func stepErrors(out []StepOutput) []ErrorReport {
	var all []ErrorReport
	for _, o := range out {
		for _, e := range o.Snapshot.Errors {
			if !e.Warning {
				all = append(all, e)
			}
		}
	}
	return all
}

func TestBasicHoldUnholdDrop(t *testing.T) {
	r := newTestRunner(t)
	out := runScript(t, r, "get 2 apple 3 pepper; hold pepper; hold 2 apple; unhold; hold 1 apple; drop")
	if errs := stepErrors(out); len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	last := &out[len(out)-1].Snapshot
	if last.Screen != ScreenOverworld {
		t.Errorf("screen = %s", last.Screen)
	}
	apple := findPouchItem(last, "Item_Fruit_A")
	if apple == nil || apple.Common.Value != 1 {
		t.Errorf("apple slot: %+v", apple)
	}
	pepper := findPouchItem(last, "Item_Fruit_I")
	if pepper == nil || pepper.Common.Value != 3 {
		t.Errorf("pepper slot: %+v", pepper)
	}
	var ground []OverworldItem
	for _, it := range last.Overworld.Items {
		if it.Kind == OverworldGroundItem {
			ground = append(ground, it)
		}
	}
	if len(ground) != 1 || ground[0].Actor != "Item_Fruit_A" {
		t.Errorf("ground items: %+v", ground)
	}
}

func TestHoldingArrowFails(t *testing.T) {
	r := newTestRunner(t)
	out := runScript(t, r, "get 5 fire-arrow; hold fire-arrow")
	before := &out[0].Snapshot
	after := &out[1].Snapshot
	var found bool
	for _, e := range after.Errors {
		if e.Code == ErrNotHoldable {
			found = true
		}
	}
	if !found {
		t.Fatalf("NotHoldable not recorded: %v", after.Errors)
	}
	arrowBefore := findPouchItem(before, "FireArrow")
	arrowAfter := findPouchItem(after, "FireArrow")
	if arrowBefore == nil || arrowAfter == nil || arrowBefore.Common.Value != arrowAfter.Common.Value {
		t.Errorf("state changed: %+v -> %+v", arrowBefore, arrowAfter)
	}
}

func TestOversizedBreakNukesAccessibility(t *testing.T) {
	r := newTestRunner(t)
	out := runScript(t, r, "!init 1 apple 2 hylianshroom 3 slate; !break 5 slots; get slate")
	last := &out[len(out)-1].Snapshot
	if last.Pouch.Count != 0 {
		t.Errorf("mList1.count = %d, want 0", last.Pouch.Count)
	}
	if len(last.Pouch.Items) == 0 {
		t.Fatalf("items vanished from the pool")
	}
	for _, it := range last.Pouch.Items {
		if it.Accessible || it.DpadAccessible {
			t.Errorf("item %s accessible under nuked count", it.Common.ActorName)
		}
	}
	// the key-item dedup makes `get slate` invisible
	slates := 0
	for _, it := range last.Pouch.Items {
		if it.Common.ActorName == "Obj_DRStone_Get" {
			slates++
		}
	}
	if slates != 3 {
		t.Errorf("slate slots = %d, want 3 (get slate must not add)", slates)
	}
}

func TestSaveReloadRoundTrip(t *testing.T) {
	r := newTestRunner(t)
	out := runScript(t, r, "get 5 diamond 1 trav-sword; save; reload")
	saved := &out[1].Snapshot
	reloaded := &out[2].Snapshot
	if errs := stepErrors(out); len(errs) != 0 {
		t.Fatalf("errors: %v", errs)
	}
	// the game-data view round-trips exactly
	if len(saved.Gdt.Items) != len(reloaded.Gdt.Items) {
		t.Fatalf("gdt items: %d != %d", len(saved.Gdt.Items), len(reloaded.Gdt.Items))
	}
	for i := range saved.Gdt.Items {
		a, b := saved.Gdt.Items[i], reloaded.Gdt.Items[i]
		if a.Common != b.Common {
			t.Errorf("gdt item %d: %+v != %+v", i, a.Common, b.Common)
		}
	}
	// the pouch holds the same items modulo pool placement
	if len(saved.Pouch.Items) != len(reloaded.Pouch.Items) {
		t.Fatalf("pouch items: %d != %d", len(saved.Pouch.Items), len(reloaded.Pouch.Items))
	}
	for i := range saved.Pouch.Items {
		a, b := saved.Pouch.Items[i], reloaded.Pouch.Items[i]
		if a.Common != b.Common || a.ItemType != b.ItemType {
			t.Errorf("pouch item %d: %+v != %+v", i, a.Common, b.Common)
		}
	}
}

func TestHoldUnholdIsIdempotent(t *testing.T) {
	r := newTestRunner(t)
	out := runScript(t, r, "get 4 apple; hold 2 apple; unhold")
	apple := findPouchItem(&out[2].Snapshot, "Item_Fruit_A")
	if apple == nil || apple.Common.Value != 4 {
		t.Fatalf("apple after unhold: %+v", apple)
	}
	if out[2].Snapshot.Pouch.Count != out[0].Snapshot.Pouch.Count {
		t.Errorf("count changed: %d != %d", out[2].Snapshot.Pouch.Count, out[0].Snapshot.Pouch.Count)
	}
}

func TestOpenCloseInventoryIsNoOp(t *testing.T) {
	r := newTestRunner(t)
	out := runScript(t, r, "get 3 apple; open-inv; close-inv; open-inv; close-inv")
	base := &out[0].Snapshot
	for i := 1; i < len(out); i++ {
		s := &out[i].Snapshot
		if len(s.Pouch.Items) != len(base.Pouch.Items) || s.Pouch.Count != base.Pouch.Count {
			t.Errorf("step %d changed the pouch", i)
		}
	}
	if out[2].Snapshot.Screen != ScreenOverworld || out[1].Snapshot.Screen != ScreenInventory {
		t.Errorf("screen tags: %s %s", out[1].Snapshot.Screen, out[2].Snapshot.Screen)
	}
}

func TestManualSwitchSuppressesAutoTransitions(t *testing.T) {
	r := newTestRunner(t)
	out := runScript(t, r, "get 2 apple; open-inv; get apple")
	last := out[len(out)-1].Snapshot
	var found bool
	for _, e := range last.Errors {
		if e.Code == ErrCannotAutoSwitchScreen {
			found = true
		}
	}
	if !found {
		t.Fatalf("auto transition not suppressed: %v", last.Errors)
	}
}

func TestKeyItemDedupAcrossReload(t *testing.T) {
	r := newTestRunner(t)
	out := runScript(t, r, "get slate; save-as sor; !break 1 slots; reload sor; get slate")
	last := &out[len(out)-1].Snapshot
	slates := 0
	for _, it := range last.Pouch.Items {
		if it.Common.ActorName == "Obj_DRStone_Get" {
			slates++
		}
	}
	if slates != 1 {
		t.Errorf("slate slots = %d, want exactly one", slates)
	}
}

func TestEntangleFirstTranslucent(t *testing.T) {
	r := newTestRunner(t)
	out := runScript(t, r, "get 2 banana 2 lotus; entangle banana; :targeting lotus; eat banana")
	last := &out[len(out)-1].Snapshot
	lotus := findPouchItem(last, "Item_Fruit_E")
	if lotus == nil {
		t.Fatalf("lotus slot missing")
	}
	if lotus.IsInInventory || lotus.Common.Value != 0 {
		t.Errorf("lotus not translucent: value=%d inInv=%v", lotus.Common.Value, lotus.IsInInventory)
	}
	banana := findPouchItem(last, "Item_Fruit_H")
	if banana == nil || !banana.PromptEntangled {
		t.Errorf("banana lost the entangled flag: %+v", banana)
	}
	if banana.Common.Value != 2 {
		t.Errorf("banana was consumed: %d", banana.Common.Value)
	}
}

func TestCrashStateIsSticky(t *testing.T) {
	r := newTestRunner(t)
	// the emulated backend without an image crashes on first call
	re, err := NewRunner(testFactory, true)
	if err != nil {
		t.Fatalf("runner: %v", err)
	}
	_ = r
	out := runScript(t, re, "save; get apple; get apple; reload; get apple")
	// the save crashes on the first call; the gets after it report the sticky state
	second := out[2].Snapshot
	var sticky bool
	for _, e := range second.Errors {
		if e.Code == ErrPreviousCrash {
			sticky = true
		}
	}
	if !sticky {
		t.Fatalf("PreviousCrash not recorded: %v", second.Errors)
	}
}

func TestCloseGameThenNewGame(t *testing.T) {
	r := newTestRunner(t)
	out := runScript(t, r, "get 3 apple; close-game; get apple; new-game; get apple")
	closedStep := out[2].Snapshot
	var closed bool
	for _, e := range closedStep.Errors {
		if e.Code == ErrPreviousClosed {
			closed = true
		}
	}
	if !closed {
		t.Fatalf("PreviousClosed not recorded: %v", closedStep.Errors)
	}
	last := &out[len(out)-1].Snapshot
	apple := findPouchItem(last, "Item_Fruit_A")
	if apple == nil || apple.Common.Value != 1 {
		t.Errorf("new game pouch: %+v", apple)
	}
}

func TestAbortStopsRun(t *testing.T) {
	r := newTestRunner(t)
	steps, _ := script.Parse("get apple; get apple", resolver())
	handle := NewRunHandle()
	handle.Abort()
	outputs, done := r.Run(steps, handle)
	if done {
		t.Fatalf("aborted run reported done")
	}
	if len(outputs) != 0 {
		t.Fatalf("aborted run produced %d outputs", len(outputs))
	}
	if handle.ID().String() == "" {
		t.Fatalf("missing run id")
	}
}

func TestEquipAndOverworldModel(t *testing.T) {
	r := newTestRunner(t)
	out := runScript(t, r, "get trav-sword; equip trav-sword; close-inv")
	last := &out[len(out)-1].Snapshot
	var equipped *OverworldItem
	for i := range last.Overworld.Items {
		if last.Overworld.Items[i].Kind == OverworldEquipped {
			equipped = &last.Overworld.Items[i]
		}
	}
	if equipped == nil || equipped.Actor != "Weapon_Sword_001" {
		t.Fatalf("overworld equipment: %+v", last.Overworld.Items)
	}
	if equipped.Value != 2700 {
		t.Errorf("equipped durability: %d", equipped.Value)
	}
}

func TestDropEquipmentSpawnsOnGround(t *testing.T) {
	r := newTestRunner(t)
	out := runScript(t, r, "get trav-sword; drop trav-sword; close-inv")
	if errs := stepErrors(out); len(errs) != 0 {
		t.Fatalf("errors: %v", errs)
	}
	last := &out[len(out)-1].Snapshot
	var ground []OverworldItem
	for _, it := range last.Overworld.Items {
		if it.Kind == OverworldGroundEquipment {
			ground = append(ground, it)
		}
	}
	if len(ground) != 1 || ground[0].Actor != "Weapon_Sword_001" {
		t.Fatalf("ground equipment: %+v", ground)
	}
	if findPouchItem(last, "Weapon_Sword_001") != nil {
		sword := findPouchItem(last, "Weapon_Sword_001")
		if sword.IsInInventory {
			t.Errorf("sword still in inventory: %+v", sword)
		}
	}
}

func TestGroundMaterialCapDespawns(t *testing.T) {
	r := newTestRunner(t)
	out := runScript(t, r, "get 12 apple; drop 12 apple; get 0 apple")
	// the drop leaves at most 10 on the ground; overflow despawns on
	// the next tick
	dropStep := &out[1].Snapshot
	ground, despawning := 0, 0
	for _, it := range dropStep.Overworld.Items {
		if it.Kind == OverworldGroundItem {
			if it.Despawning {
				despawning++
			} else {
				ground++
			}
		}
	}
	if ground > groundMaterialCap {
		t.Errorf("ground over cap: %d", ground)
	}
	if despawning == 0 {
		t.Errorf("no items despawning after overflow")
	}
	last := &out[2].Snapshot
	for _, it := range last.Overworld.Items {
		if it.Despawning {
			t.Errorf("despawn queue survived the tick")
		}
	}
}

func TestTrialSwapRestoresInventory(t *testing.T) {
	r := newTestRunner(t)
	out := runScript(t, r, "get 3 apple; enter eventide; get 2 pepper; exit")
	inTrial := &out[2].Snapshot
	if findPouchItem(inTrial, "Item_Fruit_A") != nil {
		t.Errorf("trial kept the regular inventory")
	}
	if p := findPouchItem(inTrial, "Item_Fruit_I"); p == nil || p.Common.Value != 2 {
		t.Errorf("trial pepper: %+v", p)
	}
	last := &out[3].Snapshot
	if p := findPouchItem(last, "Item_Fruit_A"); p == nil || p.Common.Value != 3 {
		t.Errorf("restored apple: %+v", p)
	}
	if findPouchItem(last, "Item_Fruit_I") != nil {
		t.Errorf("trial item leaked into restored inventory")
	}
}
