package object

import "container/list"

// DefaultListFill is the maximum number of entries packed in a list node.
const DefaultListFill = 128

type listNode struct {
	entries [][]byte
}

// List is a doubly linked list of compact nodes, each packing up to fill
// entries.
type List struct {
	nodes *list.List
	fill  int
	count int
}

func NewList(fill int) *List {
	if fill <= 0 {
		fill = DefaultListFill
	}
	return &List{
		nodes: list.New(),
		fill:  fill,
	}
}

func (l *List) Type() Type         { return TypeList }
func (l *List) Encoding() Encoding { return EncodingQuicklist }

// Len returns the number of entries.
func (l *List) Len() int {
	return l.count
}

// NodeCount returns the number of nodes backing the list.
func (l *List) NodeCount() int {
	return l.nodes.Len()
}

func (l *List) PushBack(values ...[]byte) {
	for _, v := range values {
		tail := l.nodes.Back()
		if tail == nil || len(tail.Value.(*listNode).entries) >= l.fill {
			tail = l.nodes.PushBack(&listNode{entries: make([][]byte, 0, 1)})
		}
		node := tail.Value.(*listNode)
		node.entries = append(node.entries, v)
		l.count++
	}
}

func (l *List) PushFront(values ...[]byte) {
	for _, v := range values {
		head := l.nodes.Front()
		if head == nil || len(head.Value.(*listNode).entries) >= l.fill {
			head = l.nodes.PushFront(&listNode{})
		}
		node := head.Value.(*listNode)
		node.entries = append([][]byte{v}, node.entries...)
		l.count++
	}
}

func (l *List) PopFront() ([]byte, bool) {
	head := l.nodes.Front()
	if head == nil {
		return nil, false
	}
	node := head.Value.(*listNode)
	v := node.entries[0]
	node.entries = node.entries[1:]
	if len(node.entries) == 0 {
		l.nodes.Remove(head)
	}
	l.count--
	return v, true
}

func (l *List) PopBack() ([]byte, bool) {
	tail := l.nodes.Back()
	if tail == nil {
		return nil, false
	}
	node := tail.Value.(*listNode)
	last := len(node.entries) - 1
	v := node.entries[last]
	node.entries = node.entries[:last]
	if len(node.entries) == 0 {
		l.nodes.Remove(tail)
	}
	l.count--
	return v, true
}

// Index returns the entry at position i, counting from the head.
func (l *List) Index(i int) ([]byte, bool) {
	if i < 0 || i >= l.count {
		return nil, false
	}
	for e := l.nodes.Front(); e != nil; e = e.Next() {
		node := e.Value.(*listNode)
		if i < len(node.entries) {
			return node.entries[i], true
		}
		i -= len(node.entries)
	}
	return nil, false
}

func (l *List) FreeEffort(string, int) uint64 {
	return uint64(l.nodes.Len())
}

func (l *List) release() {
	for e := l.nodes.Front(); e != nil; {
		next := e.Next()
		e.Value.(*listNode).entries = nil
		l.nodes.Remove(e)
		e = next
	}
	l.count = 0
}
