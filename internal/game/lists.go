package game

import (
	"github.com/zboralski/pouchsim/internal/memory"
)

// OffsetListPtr is a typed pointer to an intrusive offset list: a
// sentinel node, a count, and the byte offset from an element pointer to
// its embedded node. Iteration converts between node and element by
// that offset.
type OffsetListPtr uint64

// sentinel returns the list's start/end node.
func (p OffsetListPtr) sentinel() ListNodePtr { return ListNodePtr(uint64(p) + offsetListNodeOff) }

// Count points at mCount.
func (p OffsetListPtr) Count() memory.I32Ptr { return memory.I32Ptr(uint64(p) + offsetListCountOff) }

// Offset points at mOffset.
func (p OffsetListPtr) Offset() memory.I32Ptr { return memory.I32Ptr(uint64(p) + offsetListOffsetOff) }

// ConstructWithOffset initializes an empty list whose elements embed
// their node at the given byte offset.
func (p OffsetListPtr) ConstructWithOffset(offset int32, m *memory.Memory) error {
	s := p.sentinel()
	if err := s.Prev().Store(uint64(s), m); err != nil {
		return err
	}
	if err := s.Next().Store(uint64(s), m); err != nil {
		return err
	}
	if err := p.Count().Store(0, m); err != nil {
		return err
	}
	return p.Offset().Store(offset, m)
}

// Head returns the first node, or null when the list is empty.
func (p OffsetListPtr) Head(m *memory.Memory) (ListNodePtr, error) {
	s := p.sentinel()
	next, err := s.Next().Load(m)
	if err != nil {
		return 0, err
	}
	if next == uint64(s) {
		return 0, nil
	}
	return ListNodePtr(next), nil
}

// NextOf returns the node after n, or null when n is the last node.
func (p OffsetListPtr) NextOf(n ListNodePtr, m *memory.Memory) (ListNodePtr, error) {
	next, err := n.Next().Load(m)
	if err != nil {
		return 0, err
	}
	if next == uint64(p.sentinel()) {
		return 0, nil
	}
	return ListNodePtr(next), nil
}

// PrevOf returns the node before n, or null when n is the first node.
func (p OffsetListPtr) PrevOf(n ListNodePtr, m *memory.Memory) (ListNodePtr, error) {
	prev, err := n.Prev().Load(m)
	if err != nil {
		return 0, err
	}
	if prev == uint64(p.sentinel()) {
		return 0, nil
	}
	return ListNodePtr(prev), nil
}

// insertAfter splices node after at, maintaining mCount.
func (p OffsetListPtr) insertAfter(at, node ListNodePtr, m *memory.Memory) error {
	next, err := at.Next().Load(m)
	if err != nil {
		return err
	}
	if err := node.Prev().Store(uint64(at), m); err != nil {
		return err
	}
	if err := node.Next().Store(next, m); err != nil {
		return err
	}
	if err := at.Next().Store(uint64(node), m); err != nil {
		return err
	}
	if err := ListNodePtr(next).Prev().Store(uint64(node), m); err != nil {
		return err
	}
	count, err := p.Count().Load(m)
	if err != nil {
		return err
	}
	return p.Count().Store(count+1, m)
}

// PushFront inserts node at the front of the list.
func (p OffsetListPtr) PushFront(node ListNodePtr, m *memory.Memory) error {
	return p.insertAfter(p.sentinel(), node, m)
}

// PushBack inserts node at the back of the list.
func (p OffsetListPtr) PushBack(node ListNodePtr, m *memory.Memory) error {
	s := p.sentinel()
	prev, err := s.Prev().Load(m)
	if err != nil {
		return err
	}
	return p.insertAfter(ListNodePtr(prev), node, m)
}

// PopFront unlinks and returns the first node, or null when mCount says
// the list is empty. The count check (not the link check) is what makes
// slot desynchronization observable.
func (p OffsetListPtr) PopFront(m *memory.Memory) (ListNodePtr, error) {
	count, err := p.Count().Load(m)
	if err != nil {
		return 0, err
	}
	if count < 1 {
		return 0, nil
	}
	s := p.sentinel()
	first, err := s.Next().Load(m)
	if err != nil {
		return 0, err
	}
	node := ListNodePtr(first)
	next, err := node.Next().Load(m)
	if err != nil {
		return 0, err
	}
	if err := s.Next().Store(next, m); err != nil {
		return 0, err
	}
	if err := ListNodePtr(next).Prev().Store(uint64(s), m); err != nil {
		return 0, err
	}
	if err := node.Prev().Store(0, m); err != nil {
		return 0, err
	}
	if err := node.Next().Store(0, m); err != nil {
		return 0, err
	}
	if err := p.Count().Store(count-1, m); err != nil {
		return 0, err
	}
	return node, nil
}

// Erase unlinks node from the list, maintaining mCount.
func (p OffsetListPtr) Erase(node ListNodePtr, m *memory.Memory) error {
	prev, err := node.Prev().Load(m)
	if err != nil {
		return err
	}
	next, err := node.Next().Load(m)
	if err != nil {
		return err
	}
	if err := ListNodePtr(prev).Next().Store(next, m); err != nil {
		return err
	}
	if err := ListNodePtr(next).Prev().Store(prev, m); err != nil {
		return err
	}
	if err := node.Prev().Store(0, m); err != nil {
		return err
	}
	if err := node.Next().Store(0, m); err != nil {
		return err
	}
	count, err := p.Count().Load(m)
	if err != nil {
		return err
	}
	return p.Count().Store(count-1, m)
}

// ItemOf converts a node to its element using the list's stored offset.
func (p OffsetListPtr) ItemOf(node ListNodePtr, m *memory.Memory) (PouchItemPtr, error) {
	off, err := p.Offset().Load(m)
	if err != nil {
		return 0, err
	}
	return PouchItemPtr(uint64(node) - uint64(uint32(off))), nil
}

// NodeOf converts an element to its node using the list's stored offset.
func (p OffsetListPtr) NodeOf(item PouchItemPtr, m *memory.Memory) (ListNodePtr, error) {
	off, err := p.Offset().Load(m)
	if err != nil {
		return 0, err
	}
	return ListNodePtr(uint64(item) + uint64(uint32(off))), nil
}

// WalkIndexOf follows next from the head and returns how many hops reach
// node, or -1 if the node is unreachable within the pool bound.
func (p OffsetListPtr) WalkIndexOf(node ListNodePtr, m *memory.Memory) (int, error) {
	cur, err := p.Head(m)
	if err != nil {
		return -1, err
	}
	for i := 0; cur != 0 && i <= NumPouchItems; i++ {
		if cur == node {
			return i, nil
		}
		cur, err = p.NextOf(cur, m)
		if err != nil {
			return -1, err
		}
	}
	return -1, nil
}

// PushNewItem reproduces the manager's pushNewItem helper: pop one item
// from list 2; convert it to an element with list 2's offset, take its
// node with list 1's offset, push that onto list 1. Returns null when
// list 2 reports empty.
func (p PmdmPtr) PushNewItem(m *memory.Memory) (PouchItemPtr, error) {
	list2 := p.List2()
	node, err := list2.PopFront(m)
	if err != nil {
		return 0, err
	}
	if node.IsNull() {
		return 0, nil
	}
	item, err := list2.ItemOf(node, m)
	if err != nil {
		return 0, err
	}
	list1 := p.List1()
	node1, err := list1.NodeOf(item, m)
	if err != nil {
		return 0, err
	}
	if err := list1.PushBack(node1, m); err != nil {
		return 0, err
	}
	return item, nil
}
