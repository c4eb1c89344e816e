package script

import "testing"

var testResolver = ResolverFunc(func(word string) (string, bool) {
	switch word {
	case "apple":
		return "Item_Fruit_A", true
	case "pepper":
		return "Item_Fruit_I", true
	case "diamond":
		return "Item_Ore_A", true
	case "slate":
		return "Obj_DRStone_Get", true
	case "trav-sword":
		return "Weapon_Sword_001", true
	case "fire-arrow":
		return "FireArrow", true
	case "Item_Fruit_A":
		return "Item_Fruit_A", true
	default:
		return "", false
	}
})

func parseOne(t *testing.T, text string) Command {
	t.Helper()
	steps, diags := Parse(text, testResolver)
	for _, d := range diags {
		if !d.Warning {
			t.Fatalf("parse %q: %v", text, d)
		}
	}
	if len(steps) != 1 {
		t.Fatalf("parse %q: %d steps", text, len(steps))
	}
	return steps[0].Command
}

func TestParseGetList(t *testing.T) {
	cmd := parseOne(t, "get 2 apple 3 pepper").(CmdGet)
	if len(cmd.Items) != 2 {
		t.Fatalf("items: %d", len(cmd.Items))
	}
	if cmd.Items[0].Amount != 2 || cmd.Items[0].Item.Actor != "Item_Fruit_A" {
		t.Errorf("first: %+v", cmd.Items[0])
	}
	if cmd.Items[1].Amount != 3 || cmd.Items[1].Item.Actor != "Item_Fruit_I" {
		t.Errorf("second: %+v", cmd.Items[1])
	}
}

func TestParseImplicitAmount(t *testing.T) {
	cmd := parseOne(t, "get apple").(CmdGet)
	if len(cmd.Items) != 1 || cmd.Items[0].Amount != 1 {
		t.Fatalf("items: %+v", cmd.Items)
	}
}

func TestParseAmountSpecs(t *testing.T) {
	cmd := parseOne(t, "hold all apple").(CmdHold)
	if cmd.Items[0].Amount.Kind != AmountAll {
		t.Errorf("all: %+v", cmd.Items[0].Amount)
	}
	cmd2 := parseOne(t, "drop all-but-2 apple").(CmdDrop)
	if cmd2.Items[0].Amount.Kind != AmountAllBut || cmd2.Items[0].Amount.N != 2 {
		t.Errorf("all-but: %+v", cmd2.Items[0].Amount)
	}
}

func TestParseCategorySelect(t *testing.T) {
	cmd := parseOne(t, "drop 1 weapon").(CmdDrop)
	if !cmd.Items[0].Target.IsCategory || cmd.Items[0].Target.Category != CategoryWeapon {
		t.Fatalf("target: %+v", cmd.Items[0].Target)
	}
}

func TestParseMeta(t *testing.T) {
	cmd := parseOne(t, "get trav-sword[durability=5,equip,modifier=attack,life_recover=12]").(CmdGet)
	meta := cmd.Items[0].Item.Meta
	if meta == nil {
		t.Fatalf("no meta")
	}
	if meta.Value == nil || *meta.Value != 500 {
		t.Errorf("durability scaling: %+v", meta.Value)
	}
	if meta.Equip == nil || !*meta.Equip {
		t.Errorf("equip: %+v", meta.Equip)
	}
	if meta.SellPrice == nil || *meta.SellPrice != 0x1 {
		t.Errorf("modifier bits: %+v", meta.SellPrice)
	}
	if meta.LifeRecover == nil || *meta.LifeRecover != 12 {
		t.Errorf("life recover: %+v", meta.LifeRecover)
	}
}

func TestParseMetaDiagnostics(t *testing.T) {
	_, diags := Parse("get apple[bogus=1,star=9]", testResolver)
	var warnings, errors int
	for _, d := range diags {
		if d.Warning {
			warnings++
		} else {
			errors++
		}
	}
	if warnings != 1 {
		t.Errorf("warnings: %d", warnings)
	}
	if errors != 1 {
		t.Errorf("errors: %d (star out of range)", errors)
	}
}

func TestParseUnknownItemSkipsStep(t *testing.T) {
	steps, diags := Parse("get flurble; get apple", testResolver)
	if len(steps) != 2 {
		t.Fatalf("steps: %d", len(steps))
	}
	if len(diags) == 0 {
		t.Fatalf("no diagnostics")
	}
	first := steps[0].Command.(CmdGet)
	if len(first.Items) != 0 {
		t.Errorf("unknown item kept: %+v", first.Items)
	}
	second := steps[1].Command.(CmdGet)
	if len(second.Items) != 1 {
		t.Errorf("later step damaged")
	}
}

func TestParseSaveReload(t *testing.T) {
	steps, _ := Parse("save; save-as sor; reload; reload sor; close-game; new-game", testResolver)
	if len(steps) != 6 {
		t.Fatalf("steps: %d", len(steps))
	}
	if _, ok := steps[0].Command.(CmdSave); !ok {
		t.Errorf("save")
	}
	if cmd, ok := steps[1].Command.(CmdSaveAs); !ok || cmd.Name != "sor" {
		t.Errorf("save-as: %+v", steps[1].Command)
	}
	if _, ok := steps[2].Command.(CmdReload); !ok {
		t.Errorf("reload")
	}
	if cmd, ok := steps[3].Command.(CmdReloadFrom); !ok || cmd.Name != "sor" {
		t.Errorf("reload from: %+v", steps[3].Command)
	}
}

func TestParseDebugCommands(t *testing.T) {
	steps, diags := Parse("!break 4 slots; !init 1 apple 2 diamond", testResolver)
	for _, d := range diags {
		t.Errorf("diag: %v", d)
	}
	if cmd, ok := steps[0].Command.(CmdBreakSlots); !ok || cmd.N != 4 {
		t.Fatalf("break: %+v", steps[0].Command)
	}
	if cmd, ok := steps[1].Command.(CmdInit); !ok || len(cmd.Items) != 2 {
		t.Fatalf("init: %+v", steps[1].Command)
	}
}

func TestParseAnnotationsAndSpans(t *testing.T) {
	text := "entangle apple\n:targeting pepper"
	steps, _ := Parse(text, testResolver)
	if len(steps) != 2 {
		t.Fatalf("steps: %d", len(steps))
	}
	if _, ok := steps[0].Command.(CmdEntangle); !ok {
		t.Errorf("entangle: %+v", steps[0].Command)
	}
	if _, ok := steps[1].Command.(CmdTargeting); !ok {
		t.Errorf("targeting: %+v", steps[1].Command)
	}
	if steps[0].Span.Start != 0 || steps[1].Span.Start != 15 {
		t.Errorf("spans: %v %v", steps[0].Span, steps[1].Span)
	}
}

func TestParseCommentsAndUnknownCommand(t *testing.T) {
	steps, diags := Parse("# a comment\nget apple # trailing\nbogus-cmd", testResolver)
	if len(steps) != 2 {
		t.Fatalf("steps: %d", len(steps))
	}
	if steps[1].Command != nil {
		t.Errorf("unknown command produced a command")
	}
	if len(diags) != 1 {
		t.Errorf("diags: %v", diags)
	}
}

func TestParseUseShootSort(t *testing.T) {
	if cmd := parseOne(t, "use weapon 3").(CmdUse); cmd.Spec.Category != CategoryWeapon || cmd.Spec.Times != 3 {
		t.Errorf("use: %+v", cmd.Spec)
	}
	if cmd := parseOne(t, "shoot 2").(CmdUse); cmd.Spec.Category != CategoryBow || cmd.Spec.Times != 2 {
		t.Errorf("shoot: %+v", cmd.Spec)
	}
	if cmd := parseOne(t, "sort material").(CmdSort); cmd.Spec.Category != CategoryMaterial {
		t.Errorf("sort: %+v", cmd.Spec)
	}
}
