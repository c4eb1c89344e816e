// Package script lowers the human-written action script into the typed
// intermediate representation the simulation driver consumes.
package script

import "fmt"

// Span locates a command or argument in the script text.
type Span struct {
	Start int
	End   int
}

func (s Span) String() string { return fmt.Sprintf("%d..%d", s.Start, s.End) }

// Step is one script step: a span plus the lowered command. A step with
// a nil command failed to parse and is skipped; later steps still run.
type Step struct {
	Span    Span
	Command Command
}

// Command is the sum type of every action the driver executes.
type Command interface{ isCommand() }

// Category is a tab category token resolved from the script.
type Category int

const (
	CategoryWeapon Category = iota
	CategoryBow
	CategoryShield
	CategoryArmor
	CategoryMaterial
	CategoryFood
	CategoryKeyItem
	CategoryArrow
)

var categoryNames = map[string]Category{
	"weapon": CategoryWeapon, "weapons": CategoryWeapon, "sword": CategoryWeapon,
	"bow": CategoryBow, "bows": CategoryBow,
	"shield": CategoryShield, "shields": CategoryShield,
	"armor": CategoryArmor, "armors": CategoryArmor,
	"material": CategoryMaterial, "materials": CategoryMaterial,
	"food": CategoryFood, "foods": CategoryFood,
	"key-item": CategoryKeyItem, "key-items": CategoryKeyItem,
	"arrow": CategoryArrow, "arrows": CategoryArrow,
}

func (c Category) String() string {
	switch c {
	case CategoryWeapon:
		return "weapon"
	case CategoryBow:
		return "bow"
	case CategoryShield:
		return "shield"
	case CategoryArmor:
		return "armor"
	case CategoryMaterial:
		return "material"
	case CategoryFood:
		return "food"
	case CategoryKeyItem:
		return "key-item"
	default:
		return "arrow"
	}
}

// AmountKind selects how an amount spec resolves against the target
// collection at execution time.
type AmountKind int

const (
	// AmountNum is a literal count.
	AmountNum AmountKind = iota
	// AmountAll targets everything present.
	AmountAll
	// AmountAllBut leaves N behind.
	AmountAllBut
)

// AmountSpec is the amount clause of an item selection.
type AmountSpec struct {
	Kind AmountKind
	N    int64
}

// Num makes a literal amount.
func Num(n int64) AmountSpec { return AmountSpec{Kind: AmountNum, N: n} }

// ItemPosition selects a slot explicitly.
type ItemPosition struct {
	// FromSlot is the 1-indexed n-th matching slot; 0 means unset.
	FromSlot int
	// Tab/Row/Col address a slot by grid position when ByGrid is set.
	ByGrid bool
	Tab    int
	Row    int
	Col    int
}

// ItemMeta carries the per-item numerics of an item reference.
type ItemMeta struct {
	Value          *int32
	Equip          *bool
	LifeRecover    *int32
	EffectDuration *int32
	SellPrice      *int32
	EffectID       *int32
	EffectLevel    *float32
	Ingredients    []string
	Star           *int32
	Position       *ItemPosition
}

// Item is an item reference: the resolved actor name plus metadata.
type Item struct {
	Actor string
	Meta  *ItemMeta
}

// ItemSpec is an item with a finite amount (get/buy lists).
type ItemSpec struct {
	Amount int64
	Item   Item
	Span   Span
}

// ItemOrCategory selects either one item or a whole category.
type ItemOrCategory struct {
	// Item is valid when IsCategory is false.
	Item Item
	// Category is valid when IsCategory is true.
	Category   Category
	IsCategory bool
}

// ItemSelectSpec selects items to operate on, with amount semantics
// resolved at execution time.
type ItemSelectSpec struct {
	Amount AmountSpec
	Target ItemOrCategory
	Span   Span
}

// CategorySpec is a category with a repeat count (use/shoot/sort).
type CategorySpec struct {
	Category Category
	Times    int64
}

// Trial names a temporary-inventory quest.
type Trial int

const (
	TrialEventide Trial = iota
	TrialThunderblight
	TrialWindblight
	TrialWaterblight
	TrialFireblight
)

// The command set. Each maps to a deterministic call sequence in the
// driver.
type (
	CmdGet         struct{ Items []ItemSpec }
	CmdBuy         struct{ Items []ItemSpec }
	CmdPickUp      struct{ Items []ItemSelectSpec }
	CmdHold        struct{ Items []ItemSelectSpec }
	CmdHoldSmuggle struct{ Items []ItemSelectSpec }
	CmdHoldAttach  struct{ Items []ItemSelectSpec }
	CmdUnhold      struct{}
	CmdDropHeld    struct{}
	CmdDrop        struct{ Items []ItemSelectSpec }
	CmdDnp         struct{ Items []ItemSelectSpec }
	CmdCookHeld    struct{}
	CmdCook        struct{ Items []ItemSelectSpec }
	CmdEat         struct{ Items []ItemSelectSpec }
	CmdSell        struct{ Items []ItemSelectSpec }
	CmdEquip       struct{ Item ItemSelectSpec }
	CmdUnequip     struct{ Item ItemSelectSpec }
	CmdUse         struct{ Spec CategorySpec }
	CmdRoast       struct{ Items []ItemSelectSpec }
	CmdBoil        struct{ Items []ItemSelectSpec }
	CmdFreeze      struct{ Items []ItemSelectSpec }
	CmdDestroy     struct{ Items []ItemSelectSpec }
	CmdSort        struct{ Spec CategorySpec }
	CmdEntangle    struct{ Item ItemSelectSpec }
	CmdTargeting   struct{ Item ItemSelectSpec }
	CmdSave        struct{}
	CmdSaveAs      struct{ Name string }
	CmdReload      struct{}
	CmdReloadFrom  struct{ Name string }
	CmdCloseGame   struct{}
	CmdNewGame     struct{}
	CmdOpenInv     struct{}
	CmdCloseInv    struct{}
	CmdTalk        struct{}
	CmdUntalk      struct{}
	CmdEnter       struct{ Trial Trial }
	CmdExit        struct{}
	CmdLeave       struct{}

	// Debug-only commands that bypass the emulator.
	CmdBreakSlots struct{ N int32 }
	CmdInit       struct{ Items []ItemSpec }
	CmdAddSlot    struct{ Items []ItemSpec }
)

func (CmdGet) isCommand()         {}
func (CmdBuy) isCommand()         {}
func (CmdPickUp) isCommand()      {}
func (CmdHold) isCommand()        {}
func (CmdHoldSmuggle) isCommand() {}
func (CmdHoldAttach) isCommand()  {}
func (CmdUnhold) isCommand()      {}
func (CmdDropHeld) isCommand()    {}
func (CmdDrop) isCommand()        {}
func (CmdDnp) isCommand()         {}
func (CmdCookHeld) isCommand()    {}
func (CmdCook) isCommand()        {}
func (CmdEat) isCommand()         {}
func (CmdSell) isCommand()        {}
func (CmdEquip) isCommand()       {}
func (CmdUnequip) isCommand()     {}
func (CmdUse) isCommand()         {}
func (CmdRoast) isCommand()       {}
func (CmdBoil) isCommand()        {}
func (CmdFreeze) isCommand()      {}
func (CmdDestroy) isCommand()     {}
func (CmdSort) isCommand()        {}
func (CmdEntangle) isCommand()    {}
func (CmdTargeting) isCommand()   {}
func (CmdSave) isCommand()        {}
func (CmdSaveAs) isCommand()      {}
func (CmdReload) isCommand()      {}
func (CmdReloadFrom) isCommand()  {}
func (CmdCloseGame) isCommand()   {}
func (CmdNewGame) isCommand()     {}
func (CmdOpenInv) isCommand()     {}
func (CmdCloseInv) isCommand()    {}
func (CmdTalk) isCommand()        {}
func (CmdUntalk) isCommand()      {}
func (CmdEnter) isCommand()       {}
func (CmdExit) isCommand()        {}
func (CmdLeave) isCommand()       {}
func (CmdBreakSlots) isCommand()  {}
func (CmdInit) isCommand()        {}
func (CmdAddSlot) isCommand()     {}
