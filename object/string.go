package object

// String is a scalar value.
type String struct {
	data []byte
}

func NewString(data []byte) *String {
	return &String{data: data}
}

func (s *String) Type() Type         { return TypeString }
func (s *String) Encoding() Encoding { return EncodingRaw }
func (s *String) Bytes() []byte      { return s.data }
func (s *String) Len() int           { return len(s.data) }

func (s *String) FreeEffort(string, int) uint64 {
	return 1
}

func (s *String) release() {
	s.data = nil
}
