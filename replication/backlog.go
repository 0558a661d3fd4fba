// Package replication implements the replication backlog: the tail of the
// replication stream, kept as a list of fixed size blocks plus a sparse
// offset index used to serve partial resynchronizations.
package replication

import (
	"container/list"
	"encoding/binary"

	iradix "github.com/hashicorp/go-immutable-radix"
)

const (
	// DefaultBlockSize is the capacity of a backlog block, in bytes.
	DefaultBlockSize = 16 * 1024
	// IndexEveryBlocks is the distance, in blocks, between two index entries.
	IndexEveryBlocks = 64
)

// Block is a chunk of the replication stream starting at Offset.
type Block struct {
	Offset int64
	Data   []byte
}

// BlockList is the ordered sequence of backlog blocks.
type BlockList struct {
	l *list.List
}

func NewBlockList() *BlockList {
	return &BlockList{l: list.New()}
}

func (b *BlockList) Len() int {
	return b.l.Len()
}

func (b *BlockList) Release() {
	for e := b.l.Front(); e != nil; {
		next := e.Next()
		e.Value.(*Block).Data = nil
		b.l.Remove(e)
		e = next
	}
}

// OffsetIndex maps replication offsets to the block starting there.
type OffsetIndex struct {
	tree *iradix.Tree
}

func NewOffsetIndex() *OffsetIndex {
	return &OffsetIndex{tree: iradix.New()}
}

func offsetKey(offset int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(offset))
	return buf
}

// Size returns the number of indexed blocks.
func (i *OffsetIndex) Size() int {
	return i.tree.Len()
}

func (i *OffsetIndex) insert(offset int64, e *list.Element) {
	i.tree, _, _ = i.tree.Insert(offsetKey(offset), e)
}

// floor returns the indexed element with the greatest offset not above
// offset.
func (i *OffsetIndex) floor(offset int64) *list.Element {
	var found *list.Element
	limit := offsetKey(offset)
	i.tree.Root().Walk(func(k []byte, v interface{}) bool {
		if string(k) > string(limit) {
			return true
		}
		found = v.(*list.Element)
		return false
	})
	return found
}

func (i *OffsetIndex) Release() {
	i.tree = nil
}

// Backlog accumulates the replication stream.
type Backlog struct {
	blocks    *BlockList
	index     *OffsetIndex
	blockSize int
	start     int64
	offset    int64
	appended  int
}

func NewBacklog(blockSize int) *Backlog {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	return &Backlog{
		blocks:    NewBlockList(),
		index:     NewOffsetIndex(),
		blockSize: blockSize,
	}
}

func (b *Backlog) Blocks() *BlockList  { return b.blocks }
func (b *Backlog) Index() *OffsetIndex { return b.index }

// Offset returns the replication offset following the last appended byte.
func (b *Backlog) Offset() int64 { return b.offset }

// Append feeds data to the backlog, filling the tail block first.
func (b *Backlog) Append(data []byte) {
	for len(data) > 0 {
		tail := b.blocks.l.Back()
		if tail == nil || len(tail.Value.(*Block).Data) >= b.blockSize {
			tail = b.blocks.l.PushBack(&Block{
				Offset: b.offset,
				Data:   make([]byte, 0, b.blockSize),
			})
			if b.appended%IndexEveryBlocks == 0 {
				b.index.insert(b.offset, tail)
			}
			b.appended++
		}
		block := tail.Value.(*Block)
		n := b.blockSize - len(block.Data)
		if n > len(data) {
			n = len(data)
		}
		block.Data = append(block.Data, data[:n]...)
		data = data[n:]
		b.offset += int64(n)
	}
}

// ReadFrom returns the stream content from offset to the end of the
// backlog. ok is false when offset is no longer, or not yet, available.
func (b *Backlog) ReadFrom(offset int64) ([]byte, bool) {
	if offset < b.start || offset > b.offset {
		return nil, false
	}
	e := b.index.floor(offset)
	if e == nil {
		e = b.blocks.l.Front()
	}
	var out []byte
	for ; e != nil; e = e.Next() {
		block := e.Value.(*Block)
		end := block.Offset + int64(len(block.Data))
		if end <= offset {
			continue
		}
		from := int64(0)
		if offset > block.Offset {
			from = offset - block.Offset
		}
		out = append(out, block.Data[from:]...)
	}
	return out, true
}

// Detach hands the current blocks and index over to the caller and resets
// the backlog, keeping the replication offset.
func (b *Backlog) Detach() (*BlockList, *OffsetIndex) {
	blocks, index := b.blocks, b.index
	b.blocks = NewBlockList()
	b.index = NewOffsetIndex()
	b.start = b.offset
	b.appended = 0
	return blocks, index
}
