package vm

// ConstKind tags a constant-pool entry. Function and class metadata are
// explicit kinds resolved once at load time, never recovered by downcast.
type ConstKind uint8

const (
	ConstValue ConstKind = iota
	ConstFunction
	ConstClass
)

// FunctionMeta describes a bytecode function referenced by CALL/ASYNC_CALL
// and lambda creation
type FunctionMeta struct {
	Name          string
	ParamCount    int
	RegisterCount int
	CodeIndex     int
}

// ClassMeta describes a class referenced by NEW_OBJECT
type ClassMeta struct {
	Name        string
	FieldCount  int
	MethodCount int
	Fields      []string
}

// Constant is one constant-pool entry: a plain Value or one of the two
// metadata records. Exactly one of the fields past Kind is meaningful.
type Constant struct {
	Kind     ConstKind
	Value    Value
	Function *FunctionMeta
	Class    *ClassMeta
}

// Program is a loaded bytecode unit: the immutable constant pool, the
// instruction sequence, the entry point and the global slot count. Shared
// read-only between the main interpreter and async interpreters, so it is
// safe to reference without locking once loading completes.
type Program struct {
	Version      string
	Constants    []Constant
	Instructions []Instruction
	EntryPoint   int
	GlobalCount  int
	Debug        *DebugInfo // nil when the document carries no usable debug section
}

// Function returns the function metadata at constant index idx.
func (p *Program) Function(idx int) (*FunctionMeta, error) {
	if idx < 0 || idx >= len(p.Constants) {
		return nil, faultf(FaultBadConstant, "constant index %d out of range (pool size %d)", idx, len(p.Constants))
	}
	c := p.Constants[idx]
	if c.Kind != ConstFunction {
		return nil, faultf(FaultBadConstant, "constant %d is not a function", idx)
	}
	return c.Function, nil
}

// Class returns the class metadata at constant index idx.
func (p *Program) Class(idx int) (*ClassMeta, error) {
	if idx < 0 || idx >= len(p.Constants) {
		return nil, faultf(FaultBadConstant, "constant index %d out of range (pool size %d)", idx, len(p.Constants))
	}
	c := p.Constants[idx]
	if c.Kind != ConstClass {
		return nil, faultf(FaultBadConstant, "constant %d is not a class", idx)
	}
	return c.Class, nil
}

// constantValue returns the plain value at idx, faulting on metadata entries.
func (p *Program) constantValue(idx int) Value {
	if checksEnabled && (idx < 0 || idx >= len(p.Constants)) {
		panic(faultf(FaultBadConstant, "constant index %d out of range (pool size %d)", idx, len(p.Constants)))
	}
	c := p.Constants[idx]
	if checksEnabled && c.Kind != ConstValue {
		panic(faultf(FaultBadConstant, "constant %d is metadata, not a value", idx))
	}
	return c.Value
}
