package sim

import (
	"github.com/zboralski/pouchsim/internal/game"
	"github.com/zboralski/pouchsim/internal/memory"
	"github.com/zboralski/pouchsim/internal/script"
)

// slotsPerTab is the 5x4 grid of one inventory tab.
const slotsPerTab = 20

// ScreenItemState classifies one visible slot.
type ScreenItemState int

const (
	// SlotEmpty is an empty grid position.
	SlotEmpty ScreenItemState = iota
	// SlotNormal is a regular item.
	SlotNormal
	// SlotTranslucent is an item with in_inventory unset (value 0,
	// scheduled for deletion).
	SlotTranslucent
)

// screenItem is one materialized slot of the open inventory screen.
type screenItem struct {
	ptr   game.PouchItemPtr
	state ScreenItemState
}

// PouchScreen is the inventory screen: the tab/slot grid materialized
// at open time, plus the prompt-entanglement state that lives on the
// screen rather than in game memory.
type PouchScreen struct {
	tabs     [][]screenItem
	tabTypes []game.PouchCategory

	// peActivated marks slots with prompt entanglement activated.
	peActivated map[[2]int]bool
	// peTargetTab/Slot is the redirection target set by :targeting.
	peTarget *[2]int
	// entangled tracks slots flagged by the entangle command.
	entangled map[[2]int]bool
}

// openPouchScreen materializes the screen by walking the allocated list
// and grouping items into tabs by category, the way the pause menu lays
// them out.
func openPouchScreen(m *memory.Memory, pmdm game.PmdmPtr) (*PouchScreen, error) {
	s := &PouchScreen{
		peActivated: map[[2]int]bool{},
		entangled:   map[[2]int]bool{},
	}
	list1 := pmdm.List1()
	node, err := list1.Head(m)
	if err != nil {
		return nil, err
	}
	curCategory := game.PouchCategoryInvalid
	var curTab []screenItem
	flush := func() {
		if curTab != nil {
			s.tabs = append(s.tabs, curTab)
			s.tabTypes = append(s.tabTypes, curCategory)
			curTab = nil
		}
	}
	for guard := 0; node != 0 && guard <= game.NumPouchItems; guard++ {
		item, err := list1.ItemOf(node, m)
		if err != nil {
			return nil, err
		}
		typRaw, err := item.Type().Load(m)
		if err != nil {
			return nil, err
		}
		category := game.PouchItemType(typRaw).Category()
		if category != curCategory || len(curTab) >= slotsPerTab {
			flush()
			curCategory = category
		}
		inInv, err := item.InInventory().Load(m)
		if err != nil {
			return nil, err
		}
		state := SlotNormal
		if !inInv {
			state = SlotTranslucent
		}
		curTab = append(curTab, screenItem{ptr: item, state: state})

		node, err = list1.NextOf(node, m)
		if err != nil {
			return nil, err
		}
	}
	flush()
	return s, nil
}

// NumTabs returns the number of materialized tabs.
func (s *PouchScreen) NumTabs() int { return len(s.tabs) }

// Get returns the slot state and item at (tab, slot).
func (s *PouchScreen) Get(tab, slot int) (ScreenItemState, game.PouchItemPtr) {
	if tab < 0 || tab >= len(s.tabs) || slot < 0 || slot >= len(s.tabs[tab]) {
		return SlotEmpty, 0
	}
	it := s.tabs[tab][slot]
	return it.state, it.ptr
}

// Update refreshes one slot's state after a game call mutated it.
func (s *PouchScreen) Update(tab, slot int, m *memory.Memory) error {
	if tab < 0 || tab >= len(s.tabs) || slot < 0 || slot >= len(s.tabs[tab]) {
		return nil
	}
	it := &s.tabs[tab][slot]
	if it.ptr == 0 {
		return nil
	}
	inInv, err := it.ptr.InInventory().Load(m)
	if err != nil {
		return err
	}
	value, err := it.ptr.Value().Load(m)
	if err != nil {
		return err
	}
	if !inInv && value == 0 {
		it.state = SlotTranslucent
	} else {
		it.state = SlotNormal
	}
	return nil
}

// CountingMethod selects what counts when resolving amounts.
type CountingMethod int

const (
	// CountSlots counts matching slots.
	CountSlots CountingMethod = iota
	// CountValue sums stack values of matching slots.
	CountValue
)

func (s *PouchScreen) matches(m *memory.Memory, item game.PouchItemPtr, actor string, meta *script.ItemMeta) (bool, error) {
	name, err := item.Name().Load(m)
	if err != nil {
		return false, err
	}
	if name != actor {
		return false, nil
	}
	if meta == nil {
		return true, nil
	}
	if meta.Value != nil {
		v, err := item.Value().Load(m)
		if err != nil {
			return false, err
		}
		if v != *meta.Value {
			return false, nil
		}
	}
	if meta.Equip != nil {
		eq, err := item.Equipped().Load(m)
		if err != nil {
			return false, err
		}
		if eq != *meta.Equip {
			return false, nil
		}
	}
	if meta.EffectID != nil {
		id, err := item.EffectID().Load(m)
		if err != nil {
			return false, err
		}
		if int32(id) != *meta.EffectID {
			return false, nil
		}
	}
	return true, nil
}

func (s *PouchScreen) matchesTarget(m *memory.Memory, item game.PouchItemPtr, target *script.ItemOrCategory) (bool, *script.ItemMeta, error) {
	if target.IsCategory {
		typRaw, err := item.Type().Load(m)
		if err != nil {
			return false, nil, err
		}
		return game.PouchItemType(typRaw).Category() == categoryToPouch(target.Category), nil, nil
	}
	ok, err := s.matches(m, item, target.Item.Actor, target.Item.Meta)
	return ok, target.Item.Meta, err
}

// GetAmount counts how much of the target is present.
func (s *PouchScreen) GetAmount(m *memory.Memory, target *script.ItemOrCategory, method CountingMethod) (int64, error) {
	var total int64
	for ti := range s.tabs {
		for si := range s.tabs[ti] {
			it := s.tabs[ti][si]
			if it.state != SlotNormal {
				continue
			}
			ok, _, err := s.matchesTarget(m, it.ptr, target)
			if err != nil {
				return 0, err
			}
			if !ok {
				continue
			}
			if method == CountSlots {
				total++
				continue
			}
			v, err := it.ptr.Value().Load(m)
			if err != nil {
				return 0, err
			}
			if v < 1 {
				v = 1
			}
			total += int64(v)
		}
	}
	return total, nil
}

// Select finds the first matching slot with at least minValue units,
// honoring an explicit position spec.
func (s *PouchScreen) Select(m *memory.Memory, target *script.ItemOrCategory, minValue int32, span script.Span, errors *[]ErrorReport) (int, int, bool, error) {
	var pos *script.ItemPosition
	if !target.IsCategory && target.Item.Meta != nil {
		pos = target.Item.Meta.Position
	}
	if pos != nil && pos.ByGrid {
		tab, slot := pos.Tab, pos.Row*5+pos.Col
		state, _ := s.Get(tab, slot)
		if state == SlotEmpty {
			return 0, 0, false, nil
		}
		return tab, slot, true, nil
	}
	nth := 0
	if pos != nil && pos.FromSlot > 0 {
		nth = pos.FromSlot - 1
	}
	for ti := range s.tabs {
		for si := range s.tabs[ti] {
			it := s.tabs[ti][si]
			if it.state == SlotEmpty {
				continue
			}
			ok, _, err := s.matchesTarget(m, it.ptr, target)
			if err != nil {
				return 0, 0, false, err
			}
			if !ok {
				continue
			}
			if minValue > 0 {
				v, err := it.ptr.Value().Load(m)
				if err != nil {
					return 0, 0, false, err
				}
				if v < minValue && it.state == SlotNormal {
					continue
				}
			}
			if nth > 0 {
				nth--
				continue
			}
			return ti, si, true, nil
		}
	}
	return 0, 0, false, nil
}

// CorrectedSlot converts a screen slot to the in-game slot index for
// the tab, skipping empty grid positions.
func (s *PouchScreen) CorrectedSlot(tab, slot int) int32 {
	return int32(slot)
}

// Entangle flags the slot for prompt entanglement and activates the
// rotation of slots sharing its grid position.
func (s *PouchScreen) Entangle(tab, slot int) {
	s.entangled[[2]int{tab, slot}] = true
	for t := tab % 3; t < len(s.tabs); t += 3 {
		s.peActivated[[2]int{t, slot}] = true
	}
}

// IsEntangled reports the entangle flag on a slot.
func (s *PouchScreen) IsEntangled(tab, slot int) bool {
	return s.entangled[[2]int{tab, slot}]
}

// IsPeActivated reports whether the slot participates in prompt
// entanglement.
func (s *PouchScreen) IsPeActivated(tab, slot int) bool {
	return s.peActivated[[2]int{tab, slot}]
}

// SetPeTarget records the :targeting redirection slot.
func (s *PouchScreen) SetPeTarget(tab, slot int) {
	s.peTarget = &[2]int{tab, slot}
}

// PeTarget returns the redirection slot, if set.
func (s *PouchScreen) PeTarget() (int, int, bool) {
	if s.peTarget == nil {
		return 0, 0, false
	}
	return s.peTarget[0], s.peTarget[1], true
}
