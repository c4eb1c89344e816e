package game

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed items.yaml
var itemsYaml []byte

// ItemData is the static classification of one item actor.
type ItemData struct {
	Actor     string
	Search    []string
	Type      PouchItemType
	Use       ItemUse
	Stackable bool
	// GeneralLife is the default durability for equipment, 0 otherwise.
	GeneralLife int32
}

type itemDefYaml struct {
	Actor     string   `yaml:"actor"`
	Search    []string `yaml:"search"`
	Type      string   `yaml:"type"`
	Use       string   `yaml:"use"`
	Stackable bool     `yaml:"stackable"`
	Life      int32    `yaml:"life"`
}

var (
	itemsOnce    sync.Once
	itemsByActor map[string]*ItemData
	itemsByWord  map[string]*ItemData
	itemActors   []string
	itemsErr     error
)

func loadItems() {
	itemsOnce.Do(func() {
		var table struct {
			Items []itemDefYaml `yaml:"items"`
		}
		if err := yaml.Unmarshal(itemsYaml, &table); err != nil {
			itemsErr = fmt.Errorf("parse item table: %w", err)
			return
		}
		itemsByActor = make(map[string]*ItemData, len(table.Items))
		itemsByWord = make(map[string]*ItemData)
		for _, def := range table.Items {
			typ, err := parseItemType(def.Type)
			if err != nil {
				itemsErr = fmt.Errorf("item %s: %w", def.Actor, err)
				return
			}
			item := &ItemData{
				Actor:       def.Actor,
				Search:      def.Search,
				Type:        typ,
				Use:         itemUseFor(typ, def.Use),
				Stackable:   def.Stackable,
				GeneralLife: def.Life,
			}
			itemsByActor[item.Actor] = item
			itemActors = append(itemActors, item.Actor)
			for _, word := range def.Search {
				itemsByWord[word] = item
			}
		}
	})
}

func parseItemType(s string) (PouchItemType, error) {
	switch s {
	case "sword":
		return PouchItemTypeSword, nil
	case "bow":
		return PouchItemTypeBow, nil
	case "arrow":
		return PouchItemTypeArrow, nil
	case "shield":
		return PouchItemTypeShield, nil
	case "armor-head":
		return PouchItemTypeArmorHead, nil
	case "armor-upper":
		return PouchItemTypeArmorUpper, nil
	case "armor-lower":
		return PouchItemTypeArmorLower, nil
	case "material":
		return PouchItemTypeMaterial, nil
	case "food":
		return PouchItemTypeFood, nil
	case "key-item":
		return PouchItemTypeKeyItem, nil
	default:
		return PouchItemTypeInvalid, fmt.Errorf("unknown item type %q", s)
	}
}

func itemUseFor(typ PouchItemType, use string) ItemUse {
	switch use {
	case "small-sword":
		return ItemUseWeaponSmallSword
	case "large-sword":
		return ItemUseWeaponLargeSword
	case "spear":
		return ItemUseWeaponSpear
	}
	switch typ {
	case PouchItemTypeSword:
		return ItemUseWeaponSmallSword
	case PouchItemTypeBow, PouchItemTypeArrow:
		return ItemUseWeaponBow
	case PouchItemTypeShield:
		return ItemUseWeaponShield
	case PouchItemTypeArmorHead:
		return ItemUseArmorHead
	case PouchItemTypeArmorUpper:
		return ItemUseArmorUpper
	case PouchItemTypeArmorLower:
		return ItemUseArmorLower
	case PouchItemTypeFood:
		return ItemUseCureItem
	case PouchItemTypeKeyItem:
		return ItemUseImportantItem
	default:
		return ItemUseItem
	}
}

// LookupActor returns the item data for an exact actor name.
func LookupActor(actor string) *ItemData {
	loadItems()
	return itemsByActor[actor]
}

// ResolveItemWord resolves a script item word to item data: exact actor
// names pass through, otherwise search terms match.
func ResolveItemWord(word string) *ItemData {
	loadItems()
	if item, ok := itemsByActor[word]; ok {
		return item
	}
	if item, ok := itemsByWord[strings.ToLower(word)]; ok {
		return item
	}
	return nil
}

// ItemActors returns every known actor name, for per-actor flag
// generation.
func ItemActors() []string {
	loadItems()
	return itemActors
}

// ItemTableError returns the table load error, if any.
func ItemTableError() error {
	loadItems()
	return itemsErr
}

// GetPouchItemType classifies an actor, falling back to name prefixes
// for actors outside the table the way the game's profile lookup does.
func GetPouchItemType(actor string) PouchItemType {
	if item := LookupActor(actor); item != nil {
		return item.Type
	}
	switch {
	case strings.HasPrefix(actor, "Weapon_Sword_"),
		strings.HasPrefix(actor, "Weapon_Lsword_"),
		strings.HasPrefix(actor, "Weapon_Spear_"):
		return PouchItemTypeSword
	case strings.HasPrefix(actor, "Weapon_Bow_"):
		return PouchItemTypeBow
	case strings.HasSuffix(actor, "Arrow"), strings.HasPrefix(actor, "BombArrow"):
		return PouchItemTypeArrow
	case strings.HasPrefix(actor, "Weapon_Shield_"):
		return PouchItemTypeShield
	case strings.HasPrefix(actor, "Armor_") && strings.HasSuffix(actor, "_Head"):
		return PouchItemTypeArmorHead
	case strings.HasPrefix(actor, "Armor_") && strings.HasSuffix(actor, "_Upper"):
		return PouchItemTypeArmorUpper
	case strings.HasPrefix(actor, "Armor_") && strings.HasSuffix(actor, "_Lower"):
		return PouchItemTypeArmorLower
	case strings.HasPrefix(actor, "Item_Cook_"), strings.HasPrefix(actor, "Item_Roast"),
		strings.HasPrefix(actor, "Item_Boiled"), strings.HasPrefix(actor, "Item_Chilled"):
		return PouchItemTypeFood
	case strings.HasPrefix(actor, "Obj_"), strings.HasPrefix(actor, "PlayerStole"),
		strings.HasPrefix(actor, "GameRomHorse"):
		return PouchItemTypeKeyItem
	case strings.HasPrefix(actor, "Item_"):
		return PouchItemTypeMaterial
	default:
		return PouchItemTypeInvalid
	}
}

// GetPouchItemUse classifies an actor's item use.
func GetPouchItemUse(actor string) ItemUse {
	if item := LookupActor(actor); item != nil {
		return item.Use
	}
	return itemUseFor(GetPouchItemType(actor), "")
}

// CanStack reports whether a stack of the actor shares one slot.
func CanStack(actor string) bool {
	if item := LookupActor(actor); item != nil {
		return item.Stackable
	}
	return false
}

// GetWeaponGeneralLife returns the default durability for equipment
// actors, or 0 for everything else.
func GetWeaponGeneralLife(actor string) int32 {
	if item := LookupActor(actor); item != nil {
		return item.GeneralLife
	}
	return 0
}

// IsWeaponProfile reports whether the actor's profile is a weapon kind
// (sword, bow or shield).
func IsWeaponProfile(actor string) bool {
	switch GetPouchItemType(actor) {
	case PouchItemTypeSword, PouchItemTypeBow, PouchItemTypeShield:
		return true
	}
	return false
}
