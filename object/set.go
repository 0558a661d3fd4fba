package object

// Set is an unordered collection of unique members. Small sets are kept in a
// compact slice and converted to a hash table past MaxListpackEntries.
type Set struct {
	encoding Encoding
	compact  []string
	table    map[string]struct{}
}

func NewSet() *Set {
	return &Set{encoding: EncodingListpack}
}

func (s *Set) Type() Type         { return TypeSet }
func (s *Set) Encoding() Encoding { return s.encoding }

func (s *Set) Len() int {
	if s.encoding == EncodingHashTable {
		return len(s.table)
	}
	return len(s.compact)
}

// Add inserts members and returns how many were not already present.
func (s *Set) Add(members ...string) int {
	added := 0
	for _, m := range members {
		if s.Contains(m) {
			continue
		}
		if s.encoding == EncodingListpack && len(s.compact) >= MaxListpackEntries {
			s.convert()
		}
		if s.encoding == EncodingHashTable {
			s.table[m] = struct{}{}
		} else {
			s.compact = append(s.compact, m)
		}
		added++
	}
	return added
}

func (s *Set) Contains(member string) bool {
	if s.encoding == EncodingHashTable {
		_, ok := s.table[member]
		return ok
	}
	for _, m := range s.compact {
		if m == member {
			return true
		}
	}
	return false
}

func (s *Set) Remove(member string) bool {
	if s.encoding == EncodingHashTable {
		if _, ok := s.table[member]; !ok {
			return false
		}
		delete(s.table, member)
		return true
	}
	for i, m := range s.compact {
		if m == member {
			s.compact = append(s.compact[:i], s.compact[i+1:]...)
			return true
		}
	}
	return false
}

// Members returns the set members in no particular order.
func (s *Set) Members() []string {
	if s.encoding != EncodingHashTable {
		out := make([]string, len(s.compact))
		copy(out, s.compact)
		return out
	}
	out := make([]string, 0, len(s.table))
	for m := range s.table {
		out = append(out, m)
	}
	return out
}

func (s *Set) convert() {
	s.table = make(map[string]struct{}, len(s.compact)*2)
	for _, m := range s.compact {
		s.table[m] = struct{}{}
	}
	s.compact = nil
	s.encoding = EncodingHashTable
}

func (s *Set) FreeEffort(string, int) uint64 {
	if s.encoding == EncodingHashTable {
		return uint64(len(s.table))
	}
	return 1
}

func (s *Set) release() {
	for m := range s.table {
		delete(s.table, m)
	}
	s.table = nil
	s.compact = nil
}
