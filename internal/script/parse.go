package script

import (
	"fmt"
	"strconv"
	"strings"
)

// ItemResolver resolves a script item word to an actor name. The parser
// stays independent of the item database behind this interface.
type ItemResolver interface {
	ResolveItem(word string) (string, bool)
}

// ResolverFunc adapts a function to ItemResolver.
type ResolverFunc func(word string) (string, bool)

// ResolveItem implements ItemResolver.
func (f ResolverFunc) ResolveItem(word string) (string, bool) { return f(word) }

// token is one word of the script with its source span.
type token struct {
	text string
	span Span
}

// tokenize splits the script into statements of word tokens. Statements
// end at ';' or newline; '#' comments run to end of line. Bracketed
// metadata stays attached to its word.
func tokenize(text string) [][]token {
	var statements [][]token
	var current []token

	flush := func() {
		if len(current) > 0 {
			statements = append(statements, current)
			current = nil
		}
	}

	i := 0
	n := len(text)
	for i < n {
		c := text[i]
		switch {
		case c == '#':
			for i < n && text[i] != '\n' {
				i++
			}
		case c == ';' || c == '\n':
			flush()
			i++
		case c == ' ' || c == '\t' || c == '\r':
			i++
		default:
			start := i
			depth := 0
			for i < n {
				c := text[i]
				if depth == 0 && (c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == ';' || c == '#') {
					break
				}
				if c == '[' {
					depth++
				}
				if c == ']' && depth > 0 {
					depth--
				}
				i++
			}
			current = append(current, token{text: text[start:i], span: Span{Start: start, End: i}})
		}
	}
	flush()
	return statements
}

// Parse lowers the script text into steps. Malformed statements produce
// diagnostics and a skipped step; later statements still parse.
func Parse(text string, resolver ItemResolver) ([]Step, []Diagnostic) {
	var steps []Step
	var diags []Diagnostic
	for _, stmt := range tokenize(text) {
		span := Span{Start: stmt[0].span.Start, End: stmt[len(stmt)-1].span.End}
		cmd := parseStatement(stmt, span, resolver, &diags)
		steps = append(steps, Step{Span: span, Command: cmd})
	}
	return steps, diags
}

func parseStatement(stmt []token, span Span, resolver ItemResolver, diags *[]Diagnostic) Command {
	fail := func(format string, args ...any) Command {
		*diags = append(*diags, Diagnostic{Span: span, Message: fmt.Sprintf(format, args...)})
		return nil
	}
	head := strings.ToLower(stmt[0].text)
	rest := stmt[1:]

	switch head {
	case "get":
		return CmdGet{Items: parseFiniteList(rest, resolver, diags)}
	case "buy":
		return CmdBuy{Items: parseFiniteList(rest, resolver, diags)}
	case "pick-up", "pickup":
		return CmdPickUp{Items: parseSelectList(rest, resolver, diags)}
	case "hold":
		return CmdHold{Items: parseSelectList(rest, resolver, diags)}
	case "hold-smuggle":
		return CmdHoldSmuggle{Items: parseSelectList(rest, resolver, diags)}
	case "hold-attach":
		return CmdHoldAttach{Items: parseSelectList(rest, resolver, diags)}
	case "unhold":
		return CmdUnhold{}
	case "drop":
		if len(rest) == 0 {
			return CmdDropHeld{}
		}
		return CmdDrop{Items: parseSelectList(rest, resolver, diags)}
	case "dnp":
		return CmdDnp{Items: parseSelectList(rest, resolver, diags)}
	case "cook":
		if len(rest) == 0 {
			return CmdCookHeld{}
		}
		return CmdCook{Items: parseSelectList(rest, resolver, diags)}
	case "cook-held":
		return CmdCookHeld{}
	case "eat":
		return CmdEat{Items: parseSelectList(rest, resolver, diags)}
	case "sell":
		return CmdSell{Items: parseSelectList(rest, resolver, diags)}
	case "equip":
		items := parseSelectList(rest, resolver, diags)
		if len(items) != 1 {
			return fail("equip takes exactly one item")
		}
		return CmdEquip{Item: items[0]}
	case "unequip":
		items := parseSelectList(rest, resolver, diags)
		if len(items) != 1 {
			return fail("unequip takes exactly one item")
		}
		return CmdUnequip{Item: items[0]}
	case "use":
		spec, err := parseCategorySpec(rest)
		if err != nil {
			return fail("%v", err)
		}
		return CmdUse{Spec: spec}
	case "shoot":
		times := int64(1)
		if len(rest) > 0 {
			n, err := strconv.ParseInt(rest[0].text, 10, 64)
			if err != nil {
				return fail("invalid shot count %q", rest[0].text)
			}
			times = n
		}
		return CmdUse{Spec: CategorySpec{Category: CategoryBow, Times: times}}
	case "roast", "bake":
		return CmdRoast{Items: parseSelectList(rest, resolver, diags)}
	case "boil":
		return CmdBoil{Items: parseSelectList(rest, resolver, diags)}
	case "freeze":
		return CmdFreeze{Items: parseSelectList(rest, resolver, diags)}
	case "destroy":
		return CmdDestroy{Items: parseSelectList(rest, resolver, diags)}
	case "sort":
		spec, err := parseCategorySpec(rest)
		if err != nil {
			return fail("%v", err)
		}
		return CmdSort{Spec: spec}
	case "entangle":
		items := parseSelectList(rest, resolver, diags)
		if len(items) != 1 {
			return fail("entangle takes exactly one item")
		}
		return CmdEntangle{Item: items[0]}
	case ":targeting":
		items := parseSelectList(rest, resolver, diags)
		if len(items) != 1 {
			return fail(":targeting takes exactly one item")
		}
		return CmdTargeting{Item: items[0]}
	case "save":
		return CmdSave{}
	case "save-as":
		if len(rest) != 1 {
			return fail("save-as takes a name")
		}
		return CmdSaveAs{Name: rest[0].text}
	case "reload":
		if len(rest) == 1 {
			return CmdReloadFrom{Name: rest[0].text}
		}
		return CmdReload{}
	case "close-game":
		return CmdCloseGame{}
	case "new-game":
		return CmdNewGame{}
	case "open-inv", "open-inventory", "pause":
		return CmdOpenInv{}
	case "close-inv", "close-inventory", "unpause":
		return CmdCloseInv{}
	case "talk-to", "talk":
		return CmdTalk{}
	case "untalk", "close-dialog":
		return CmdUntalk{}
	case "enter":
		if len(rest) != 1 {
			return fail("enter takes a trial name")
		}
		trial, ok := parseTrial(rest[0].text)
		if !ok {
			return fail("unknown trial %q", rest[0].text)
		}
		return CmdEnter{Trial: trial}
	case "exit":
		return CmdExit{}
	case "leave":
		return CmdLeave{}
	case "!break":
		// "!break N slots"
		if len(rest) < 1 {
			return fail("!break takes a slot count")
		}
		n, err := strconv.ParseInt(rest[0].text, 10, 32)
		if err != nil {
			return fail("invalid slot count %q", rest[0].text)
		}
		return CmdBreakSlots{N: int32(n)}
	case "!init":
		return CmdInit{Items: parseFiniteList(rest, resolver, diags)}
	case "!add-slot":
		return CmdAddSlot{Items: parseFiniteList(rest, resolver, diags)}
	default:
		return fail("unknown command %q", head)
	}
}

func parseTrial(s string) (Trial, bool) {
	switch strings.ToLower(s) {
	case "eventide":
		return TrialEventide, true
	case "tots", "thunderblight":
		return TrialThunderblight, true
	case "totw", "windblight":
		return TrialWindblight, true
	case "totwa", "waterblight":
		return TrialWaterblight, true
	case "totf", "fireblight":
		return TrialFireblight, true
	default:
		return 0, false
	}
}

// splitMeta separates an item word from its attached bracket metadata.
func splitMeta(t token, diags *[]Diagnostic) (string, *ItemMeta) {
	text := t.text
	open := strings.IndexByte(text, '[')
	if open < 0 {
		return text, nil
	}
	body := text[open+1:]
	body = strings.TrimSuffix(body, "]")
	return text[:open], parseMeta(body, t.span, diags)
}

// parseFiniteList parses "N item [meta] N item ..." with an implicit
// count of 1.
func parseFiniteList(tokens []token, resolver ItemResolver, diags *[]Diagnostic) []ItemSpec {
	var out []ItemSpec
	amount := int64(1)
	haveAmount := false
	for _, t := range tokens {
		if n, err := strconv.ParseInt(t.text, 10, 64); err == nil {
			amount = n
			haveAmount = true
			continue
		}
		word, meta := splitMeta(t, diags)
		actor, ok := resolver.ResolveItem(word)
		if !ok {
			*diags = append(*diags, Diagnostic{Span: t.span, Message: fmt.Sprintf("unknown item %q", word)})
			amount, haveAmount = 1, false
			continue
		}
		out = append(out, ItemSpec{Amount: amount, Item: Item{Actor: actor, Meta: meta}, Span: t.span})
		amount, haveAmount = 1, false
	}
	_ = haveAmount
	return out
}

// parseSelectList parses "all item / all-but-N item / N item / item"
// sequences, where the word may also be a category.
func parseSelectList(tokens []token, resolver ItemResolver, diags *[]Diagnostic) []ItemSelectSpec {
	var out []ItemSelectSpec
	amount := AmountSpec{Kind: AmountNum, N: 1}
	for i := 0; i < len(tokens); i++ {
		t := tokens[i]
		lower := strings.ToLower(t.text)
		if lower == "all" {
			amount = AmountSpec{Kind: AmountAll}
			continue
		}
		if rest, ok := strings.CutPrefix(lower, "all-but-"); ok {
			n, err := strconv.ParseInt(rest, 10, 64)
			if err != nil {
				*diags = append(*diags, Diagnostic{Span: t.span, Message: fmt.Sprintf("invalid all-but count %q", rest)})
				continue
			}
			amount = AmountSpec{Kind: AmountAllBut, N: n}
			continue
		}
		if n, err := strconv.ParseInt(t.text, 10, 64); err == nil {
			amount = AmountSpec{Kind: AmountNum, N: n}
			continue
		}
		word, meta := splitMeta(t, diags)
		if category, ok := categoryNames[strings.ToLower(word)]; ok && meta == nil {
			out = append(out, ItemSelectSpec{
				Amount: amount,
				Target: ItemOrCategory{Category: category, IsCategory: true},
				Span:   t.span,
			})
			amount = AmountSpec{Kind: AmountNum, N: 1}
			continue
		}
		actor, ok := resolver.ResolveItem(word)
		if !ok {
			*diags = append(*diags, Diagnostic{Span: t.span, Message: fmt.Sprintf("unknown item %q", word)})
			amount = AmountSpec{Kind: AmountNum, N: 1}
			continue
		}
		out = append(out, ItemSelectSpec{
			Amount: amount,
			Target: ItemOrCategory{Item: Item{Actor: actor, Meta: meta}},
			Span:   t.span,
		})
		amount = AmountSpec{Kind: AmountNum, N: 1}
	}
	return out
}

func parseCategorySpec(tokens []token) (CategorySpec, error) {
	if len(tokens) == 0 {
		return CategorySpec{}, fmt.Errorf("missing category")
	}
	category, ok := categoryNames[strings.ToLower(tokens[0].text)]
	if !ok {
		return CategorySpec{}, fmt.Errorf("unknown category %q", tokens[0].text)
	}
	times := int64(1)
	if len(tokens) > 1 {
		n, err := strconv.ParseInt(tokens[1].text, 10, 64)
		if err != nil {
			return CategorySpec{}, fmt.Errorf("invalid repeat count %q", tokens[1].text)
		}
		times = n
	}
	return CategorySpec{Category: category, Times: times}, nil
}
