package object

type hashField struct {
	field string
	value []byte
}

// Hash maps fields to values, compact while small.
type Hash struct {
	encoding Encoding
	compact  []hashField
	table    map[string][]byte
}

func NewHash() *Hash {
	return &Hash{encoding: EncodingListpack}
}

func (h *Hash) Type() Type         { return TypeHash }
func (h *Hash) Encoding() Encoding { return h.encoding }

func (h *Hash) Len() int {
	if h.encoding == EncodingHashTable {
		return len(h.table)
	}
	return len(h.compact)
}

// Set stores value under field and reports whether the field is new.
func (h *Hash) Set(field string, value []byte) bool {
	if h.encoding == EncodingHashTable {
		_, exists := h.table[field]
		h.table[field] = value
		return !exists
	}
	for i := range h.compact {
		if h.compact[i].field == field {
			h.compact[i].value = value
			return false
		}
	}
	if len(h.compact) >= MaxListpackEntries {
		h.convert()
		h.table[field] = value
		return true
	}
	h.compact = append(h.compact, hashField{field: field, value: value})
	return true
}

func (h *Hash) Get(field string) ([]byte, bool) {
	if h.encoding == EncodingHashTable {
		v, ok := h.table[field]
		return v, ok
	}
	for _, f := range h.compact {
		if f.field == field {
			return f.value, true
		}
	}
	return nil, false
}

func (h *Hash) Del(field string) bool {
	if h.encoding == EncodingHashTable {
		if _, ok := h.table[field]; !ok {
			return false
		}
		delete(h.table, field)
		return true
	}
	for i, f := range h.compact {
		if f.field == field {
			h.compact = append(h.compact[:i], h.compact[i+1:]...)
			return true
		}
	}
	return false
}

func (h *Hash) convert() {
	h.table = make(map[string][]byte, len(h.compact)*2)
	for _, f := range h.compact {
		h.table[f.field] = f.value
	}
	h.compact = nil
	h.encoding = EncodingHashTable
}

func (h *Hash) FreeEffort(string, int) uint64 {
	if h.encoding == EncodingHashTable {
		return uint64(len(h.table))
	}
	return 1
}

func (h *Hash) release() {
	for f := range h.table {
		delete(h.table, f)
	}
	h.table = nil
	h.compact = nil
}
