package object

import (
	"sort"

	"github.com/google/btree"
)

type zsetItem struct {
	score  float64
	member string
}

func (z zsetItem) Less(remote btree.Item) bool {
	other := remote.(zsetItem)
	if z.score != other.score {
		return z.score < other.score
	}
	return z.member < other.member
}

// SortedSet orders members by score. Past MaxListpackEntries it keeps a
// member to score dictionary next to a B-tree ordered by (score, member).
type SortedSet struct {
	encoding Encoding
	compact  []zsetItem
	dict     map[string]float64
	index    *btree.BTree
}

func NewSortedSet() *SortedSet {
	return &SortedSet{encoding: EncodingListpack}
}

func (z *SortedSet) Type() Type         { return TypeZSet }
func (z *SortedSet) Encoding() Encoding { return z.encoding }

func (z *SortedSet) Len() int {
	if z.encoding == EncodingSkiplist {
		return z.index.Len()
	}
	return len(z.compact)
}

// Add sets the score of member and reports whether member is new.
func (z *SortedSet) Add(score float64, member string) bool {
	if z.encoding == EncodingSkiplist {
		old, exists := z.dict[member]
		if exists {
			z.index.Delete(zsetItem{score: old, member: member})
		}
		z.dict[member] = score
		z.index.ReplaceOrInsert(zsetItem{score: score, member: member})
		return !exists
	}
	exists := z.removeCompact(member)
	if !exists && len(z.compact) >= MaxListpackEntries {
		z.convert()
		return z.Add(score, member)
	}
	item := zsetItem{score: score, member: member}
	i := sort.Search(len(z.compact), func(i int) bool {
		return item.Less(z.compact[i])
	})
	z.compact = append(z.compact, zsetItem{})
	copy(z.compact[i+1:], z.compact[i:])
	z.compact[i] = item
	return !exists
}

func (z *SortedSet) Score(member string) (float64, bool) {
	if z.encoding == EncodingSkiplist {
		s, ok := z.dict[member]
		return s, ok
	}
	for _, item := range z.compact {
		if item.member == member {
			return item.score, true
		}
	}
	return 0, false
}

func (z *SortedSet) Remove(member string) bool {
	if z.encoding == EncodingSkiplist {
		score, ok := z.dict[member]
		if !ok {
			return false
		}
		delete(z.dict, member)
		z.index.Delete(zsetItem{score: score, member: member})
		return true
	}
	return z.removeCompact(member)
}

// Range returns members ranked between start and stop, both inclusive.
func (z *SortedSet) Range(start, stop int) []string {
	if start < 0 {
		start = 0
	}
	if stop >= z.Len() {
		stop = z.Len() - 1
	}
	if start > stop {
		return nil
	}
	out := make([]string, 0, stop-start+1)
	if z.encoding != EncodingSkiplist {
		for _, item := range z.compact[start : stop+1] {
			out = append(out, item.member)
		}
		return out
	}
	rank := 0
	z.index.Ascend(func(i btree.Item) bool {
		if rank > stop {
			return false
		}
		if rank >= start {
			out = append(out, i.(zsetItem).member)
		}
		rank++
		return true
	})
	return out
}

func (z *SortedSet) removeCompact(member string) bool {
	for i, item := range z.compact {
		if item.member == member {
			z.compact = append(z.compact[:i], z.compact[i+1:]...)
			return true
		}
	}
	return false
}

func (z *SortedSet) convert() {
	z.dict = make(map[string]float64, len(z.compact)*2)
	z.index = btree.New(32)
	for _, item := range z.compact {
		z.dict[item.member] = item.score
		z.index.ReplaceOrInsert(item)
	}
	z.compact = nil
	z.encoding = EncodingSkiplist
}

func (z *SortedSet) FreeEffort(string, int) uint64 {
	if z.encoding == EncodingSkiplist {
		return uint64(z.index.Len())
	}
	return 1
}

func (z *SortedSet) release() {
	if z.index != nil {
		z.index.Clear(false)
	}
	for m := range z.dict {
		delete(z.dict, m)
	}
	z.dict = nil
	z.compact = nil
}
