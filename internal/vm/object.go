package vm

// Reference-kind backing stores. These are plain heap objects shared by
// pointer: registers, constants and container elements holding the same
// instance all observe mutations made through any alias. Lifetime is
// whatever the Go GC decides; there is no tracing of VM-level cycles.

// Object is a class instance: a fixed field slice described by ClassMeta
type Object struct {
	Class  *ClassMeta
	Fields []Value
}

// NewObject allocates an instance with all fields null.
func NewObject(class *ClassMeta) *Object {
	return &Object{
		Class:  class,
		Fields: make([]Value, class.FieldCount),
	}
}

// Array is a growable value sequence
type Array struct {
	Elems []Value
}

// MapObj is a string-keyed map. insertion order of keys is tracked so
// iteration is deterministic.
type MapObj struct {
	Entries map[string]Value
	keys    []string
}

func NewMapObj() *MapObj {
	return &MapObj{Entries: make(map[string]Value)}
}

func (m *MapObj) Set(key string, v Value) {
	if _, ok := m.Entries[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.Entries[key] = v
}

func (m *MapObj) Get(key string) (Value, bool) {
	v, ok := m.Entries[key]
	return v, ok
}

func (m *MapObj) Remove(key string) {
	if _, ok := m.Entries[key]; !ok {
		return
	}
	delete(m.Entries, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// Keys returns keys in insertion order.
func (m *MapObj) Keys() []string {
	return m.keys
}

// SetObj is a string set with insertion-ordered iteration
type SetObj struct {
	Elems map[string]struct{}
	keys  []string
}

func NewSetObj() *SetObj {
	return &SetObj{Elems: make(map[string]struct{})}
}

func (s *SetObj) Add(key string) {
	if _, ok := s.Elems[key]; ok {
		return
	}
	s.Elems[key] = struct{}{}
	s.keys = append(s.keys, key)
}

func (s *SetObj) Has(key string) bool {
	_, ok := s.Elems[key]
	return ok
}

func (s *SetObj) Remove(key string) {
	if _, ok := s.Elems[key]; !ok {
		return
	}
	delete(s.Elems, key)
	for i, k := range s.keys {
		if k == key {
			s.keys = append(s.keys[:i], s.keys[i+1:]...)
			break
		}
	}
}

func (s *SetObj) Keys() []string {
	return s.keys
}

// IntMapObj is an int32-keyed map with insertion-ordered iteration
type IntMapObj struct {
	Entries map[int32]Value
	keys    []int32
}

func NewIntMapObj() *IntMapObj {
	return &IntMapObj{Entries: make(map[int32]Value)}
}

func (m *IntMapObj) Set(key int32, v Value) {
	if _, ok := m.Entries[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.Entries[key] = v
}

func (m *IntMapObj) Get(key int32) (Value, bool) {
	v, ok := m.Entries[key]
	return v, ok
}

func (m *IntMapObj) Remove(key int32) {
	if _, ok := m.Entries[key]; !ok {
		return
	}
	delete(m.Entries, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

func (m *IntMapObj) Keys() []int32 {
	return m.keys
}

// IntSetObj is an int32 set with insertion-ordered iteration
type IntSetObj struct {
	Elems map[int32]struct{}
	keys  []int32
}

func NewIntSetObj() *IntSetObj {
	return &IntSetObj{Elems: make(map[int32]struct{})}
}

func (s *IntSetObj) Add(key int32) {
	if _, ok := s.Elems[key]; ok {
		return
	}
	s.Elems[key] = struct{}{}
	s.keys = append(s.keys, key)
}

func (s *IntSetObj) Has(key int32) bool {
	_, ok := s.Elems[key]
	return ok
}

func (s *IntSetObj) Remove(key int32) {
	if _, ok := s.Elems[key]; !ok {
		return
	}
	delete(s.Elems, key)
	for i, k := range s.keys {
		if k == key {
			s.keys = append(s.keys[:i], s.keys[i+1:]...)
			break
		}
	}
}

func (s *IntSetObj) Keys() []int32 {
	return s.keys
}

// Lambda is a first-class function value: an entry instruction index plus
// the values captured at creation time. Captured values are appended to the
// callee's registers right after the declared parameters on INVOKE_LAMBDA.
type Lambda struct {
	CodeIndex     int
	ParamCount    int
	RegisterCount int
	Captured      []Value
}
