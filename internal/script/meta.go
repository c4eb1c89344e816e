package script

import (
	"fmt"
	"strconv"
	"strings"
)

// Modifier names map to weapon modifier flag bits; `modifier` entries
// add bits onto the sell-price field.
var modifierBits = map[string]int32{
	"attack":     0x1,
	"attack-up":  0x1,
	"durability": 0x2,
	"critical":   0x4,
	"long-throw": 0x8,
	"multishot":  0x10,
	"multi-shot": 0x10,
	"zoom":       0x20,
	"quickshot":  0x40,
	"quick-shot": 0x40,
	"surf":       0x80,
	"surf-up":    0x80,
	"guard":      0x100,
	"guard-up":   0x100,
	"yellow":     -0x80000000,
}

// Effect names map to cook effect ids.
var effectIDs = map[string]int32{
	"none":         -1,
	"hearty":       2,
	"life-recover": 1,
	"chilly":       4,
	"spicy":        5,
	"electro":      6,
	"mighty":       10,
	"tough":        11,
	"sneaky":       12,
	"hasty":        13,
	"energizing":   14,
	"enduring":     15,
	"fireproof":    16,
}

// Diagnostic is one parser warning or error, attached to a span.
type Diagnostic struct {
	Span    Span
	Message string
	Warning bool
}

func (d Diagnostic) String() string {
	kind := "error"
	if d.Warning {
		kind = "warning"
	}
	return fmt.Sprintf("%s at %s: %s", kind, d.Span, d.Message)
}

// parseMeta parses a bracketed metadata list `[key=value, key, ...]`
// into ItemMeta. Unknown or duplicate keys produce warnings, invalid
// values errors; both leave the rest of the meta intact.
func parseMeta(body string, span Span, diags *[]Diagnostic) *ItemMeta {
	meta := &ItemMeta{}
	seen := map[string]bool{}
	warn := func(format string, args ...any) {
		*diags = append(*diags, Diagnostic{Span: span, Message: fmt.Sprintf(format, args...), Warning: true})
	}
	fail := func(format string, args ...any) {
		*diags = append(*diags, Diagnostic{Span: span, Message: fmt.Sprintf(format, args...)})
	}
	for _, entry := range strings.Split(body, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		key, value, hasValue := strings.Cut(entry, "=")
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		if seen[key] && key != "ingr" {
			warn("duplicate meta key %q", key)
		}
		seen[key] = true

		intVal := func(scale int32) (int32, bool) {
			n, err := strconv.ParseInt(value, 0, 32)
			if err != nil {
				fail("invalid value for %q: %q", key, value)
				return 0, false
			}
			return int32(n) * scale, true
		}
		boolVal := func() (bool, bool) {
			if !hasValue || value == "" || value == "true" {
				return true, true
			}
			if value == "false" {
				return false, true
			}
			fail("invalid value for %q: %q", key, value)
			return false, false
		}

		switch key {
		case "life", "value":
			if v, ok := intVal(1); ok {
				meta.Value = &v
			}
		case "durability", "dura":
			if v, ok := intVal(100); ok {
				meta.Value = &v
			}
		case "equip", "equipped":
			if v, ok := boolVal(); ok {
				meta.Equip = &v
			}
		case "life_recover", "hp", "modpower":
			if v, ok := intVal(1); ok {
				meta.LifeRecover = &v
			}
		case "time":
			if v, ok := intVal(1); ok {
				meta.EffectDuration = &v
			}
		case "price":
			if v, ok := intVal(1); ok {
				meta.SellPrice = &v
			}
		case "modifier":
			bit, ok := modifierBits[strings.ToLower(value)]
			if !ok {
				fail("unknown modifier %q", value)
				continue
			}
			// modifiers accumulate onto the sell-price bitset
			var cur int32
			if meta.SellPrice != nil {
				cur = *meta.SellPrice
			}
			cur |= bit
			meta.SellPrice = &cur
		case "effect":
			id, ok := effectIDs[strings.ToLower(value)]
			if !ok {
				fail("unknown effect %q", value)
				continue
			}
			meta.EffectID = &id
		case "level":
			n, err := strconv.ParseFloat(value, 32)
			if err != nil {
				fail("invalid value for %q: %q", key, value)
				continue
			}
			lvl := float32(n)
			meta.EffectLevel = &lvl
		case "ingr":
			if len(meta.Ingredients) >= 5 {
				warn("at most 5 ingredients")
				continue
			}
			meta.Ingredients = append(meta.Ingredients, value)
		case "star":
			if v, ok := intVal(1); ok {
				if v < 0 || v > 4 {
					fail("star must be 0-4, got %d", v)
					continue
				}
				meta.Star = &v
			}
		case "slot":
			if v, ok := intVal(1); ok {
				meta.Position = &ItemPosition{FromSlot: int(v)}
			}
		case "tab":
			parts := strings.Split(value, ":")
			if len(parts) != 3 {
				fail("tab position needs tab:row:col, got %q", value)
				continue
			}
			nums := make([]int, 3)
			ok := true
			for i, p := range parts {
				n, err := strconv.Atoi(strings.TrimSpace(p))
				if err != nil {
					fail("invalid tab position %q", value)
					ok = false
					break
				}
				nums[i] = n
			}
			if ok {
				meta.Position = &ItemPosition{ByGrid: true, Tab: nums[0], Row: nums[1], Col: nums[2]}
			}
		default:
			warn("unknown meta key %q", key)
		}
	}
	return meta
}
