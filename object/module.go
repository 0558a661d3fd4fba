package object

// ModuleType describes a value type registered by an extension module.
type ModuleType interface {
	Name() string
	// FreeEffort estimates the work needed to free value. Zero means the
	// module cannot tell.
	FreeEffort(key string, value interface{}, dbid int) uint64
	Free(value interface{})
}

// Module is an opaque value owned by an extension module.
type Module struct {
	mt    ModuleType
	value interface{}
}

func NewModule(mt ModuleType, value interface{}) *Module {
	return &Module{mt: mt, value: value}
}

func (m *Module) Type() Type             { return TypeModule }
func (m *Module) Encoding() Encoding     { return EncodingModule }
func (m *Module) ModuleType() ModuleType { return m.mt }
func (m *Module) Payload() interface{}   { return m.value }

// FreeEffort asks the module type for an estimate. An unknown cost is
// reported as UnknownEffort so that the value is always freed lazily.
func (m *Module) FreeEffort(key string, dbid int) uint64 {
	effort := m.mt.FreeEffort(key, m.value, dbid)
	if effort == 0 {
		return UnknownEffort
	}
	return effort
}

func (m *Module) release() {
	m.mt.Free(m.value)
	m.value = nil
}
