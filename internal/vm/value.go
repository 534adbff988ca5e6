// Package vm implements the Velox register-based bytecode virtual machine
package vm

import (
	"fmt"
	"math"
	"strconv"
)

// Kind identifies the active variant of a Value
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindDouble
	KindChar
	KindString
	KindObject
	KindArray
	KindMap
	KindSet
	KindIntMap
	KindIntSet
	KindLambda
	KindIterator
	KindFuture
)

var kindNames = map[Kind]string{
	KindNull:     "null",
	KindBool:     "bool",
	KindInt:      "int",
	KindFloat:    "float",
	KindDouble:   "double",
	KindChar:     "char",
	KindString:   "string",
	KindObject:   "object",
	KindArray:    "array",
	KindMap:      "map",
	KindSet:      "set",
	KindIntMap:   "intmap",
	KindIntSet:   "intset",
	KindLambda:   "lambda",
	KindIterator: "iterator",
	KindFuture:   "future",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "<?>"
}

// Value is a tagged union. Primitives are stored inline and copied by value.
// Reference kinds hold a pointer in obj: multiple registers, constant slots
// and container elements may alias the same backing instance, and mutation
// through one alias is visible through all others.
type Value struct {
	kind Kind
	bits uint64 // int32/float32/float64/bool/char payloads
	str  string
	obj  any // container/lambda/iterator/future pointer
}

// Constructors

func Null() Value {
	return Value{kind: KindNull}
}

func Bool(v bool) Value {
	var bits uint64
	if v {
		bits = 1
	}
	return Value{kind: KindBool, bits: bits}
}

func Int(v int32) Value {
	return Value{kind: KindInt, bits: uint64(uint32(v))}
}

func Float(v float32) Value {
	return Value{kind: KindFloat, bits: uint64(math.Float32bits(v))}
}

func Double(v float64) Value {
	return Value{kind: KindDouble, bits: math.Float64bits(v)}
}

func Char(v rune) Value {
	return Value{kind: KindChar, bits: uint64(uint32(v))}
}

func Str(v string) Value {
	return Value{kind: KindString, str: v}
}

func objectVal(o *Object) Value      { return Value{kind: KindObject, obj: o} }
func arrayVal(a *Array) Value        { return Value{kind: KindArray, obj: a} }
func mapVal(m *MapObj) Value         { return Value{kind: KindMap, obj: m} }
func setVal(s *SetObj) Value         { return Value{kind: KindSet, obj: s} }
func intMapVal(m *IntMapObj) Value   { return Value{kind: KindIntMap, obj: m} }
func intSetVal(s *IntSetObj) Value   { return Value{kind: KindIntSet, obj: s} }
func lambdaVal(l *Lambda) Value      { return Value{kind: KindLambda, obj: l} }
func iteratorVal(it *Iterator) Value { return Value{kind: KindIterator, obj: it} }
func futureVal(f *Future) Value      { return Value{kind: KindFuture, obj: f} }

// Kind checks

func (v Value) Kind() Kind     { return v.kind }
func (v Value) IsNull() bool   { return v.kind == KindNull }
func (v Value) IsFuture() bool { return v.kind == KindFuture }
func (v Value) IsRef() bool    { return v.kind >= KindObject }

// Typed accessors. Accessing a variant through the wrong accessor is a
// programming error in the bytecode: in checked builds it raises a typed
// runtime fault rather than silently coercing.

func (v Value) checkKind(want Kind) {
	if checksEnabled && v.kind != want {
		panic(faultf(FaultWrongType, "value is %s, not %s", v.kind, want))
	}
}

func (v Value) Bool() bool {
	v.checkKind(KindBool)
	return v.bits == 1
}

func (v Value) Int() int32 {
	v.checkKind(KindInt)
	return int32(uint32(v.bits))
}

func (v Value) Float() float32 {
	v.checkKind(KindFloat)
	return math.Float32frombits(uint32(v.bits))
}

func (v Value) Double() float64 {
	v.checkKind(KindDouble)
	return math.Float64frombits(v.bits)
}

func (v Value) Char() rune {
	v.checkKind(KindChar)
	return rune(uint32(v.bits))
}

func (v Value) Str() string {
	v.checkKind(KindString)
	return v.str
}

func (v Value) Object() *Object {
	v.checkKind(KindObject)
	return v.obj.(*Object)
}

func (v Value) Array() *Array {
	v.checkKind(KindArray)
	return v.obj.(*Array)
}

func (v Value) Map() *MapObj {
	v.checkKind(KindMap)
	return v.obj.(*MapObj)
}

func (v Value) Set() *SetObj {
	v.checkKind(KindSet)
	return v.obj.(*SetObj)
}

func (v Value) IntMap() *IntMapObj {
	v.checkKind(KindIntMap)
	return v.obj.(*IntMapObj)
}

func (v Value) IntSet() *IntSetObj {
	v.checkKind(KindIntSet)
	return v.obj.(*IntSetObj)
}

func (v Value) Lambda() *Lambda {
	v.checkKind(KindLambda)
	return v.obj.(*Lambda)
}

func (v Value) Iterator() *Iterator {
	v.checkKind(KindIterator)
	return v.obj.(*Iterator)
}

func (v Value) Future() *Future {
	v.checkKind(KindFuture)
	return v.obj.(*Future)
}

// SameRef reports reference identity for reference kinds. Used by EQ_OBJECT:
// two objects are equal iff they are the same backing instance.
func (v Value) SameRef(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	if v.kind == KindNull {
		return true
	}
	return v.obj == other.obj
}

// Inspect returns a display representation for state dumps, the disassembler
// and the DAP variables view.
func (v Value) Inspect() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		return strconv.FormatBool(v.bits == 1)
	case KindInt:
		return strconv.FormatInt(int64(int32(uint32(v.bits))), 10)
	case KindFloat:
		return strconv.FormatFloat(float64(math.Float32frombits(uint32(v.bits))), 'g', -1, 32)
	case KindDouble:
		return strconv.FormatFloat(math.Float64frombits(v.bits), 'g', -1, 64)
	case KindChar:
		return "'" + string(rune(uint32(v.bits))) + "'"
	case KindString:
		return strconv.Quote(v.str)
	case KindObject:
		o := v.obj.(*Object)
		if o.Class != nil {
			return fmt.Sprintf("<object %s>", o.Class.Name)
		}
		return "<object>"
	case KindArray:
		return fmt.Sprintf("<array len=%d>", len(v.obj.(*Array).Elems))
	case KindMap:
		return fmt.Sprintf("<map size=%d>", len(v.obj.(*MapObj).Entries))
	case KindSet:
		return fmt.Sprintf("<set size=%d>", len(v.obj.(*SetObj).Elems))
	case KindIntMap:
		return fmt.Sprintf("<intmap size=%d>", len(v.obj.(*IntMapObj).Entries))
	case KindIntSet:
		return fmt.Sprintf("<intset size=%d>", len(v.obj.(*IntSetObj).Elems))
	case KindLambda:
		return fmt.Sprintf("<lambda @%d>", v.obj.(*Lambda).CodeIndex)
	case KindIterator:
		return "<iterator>"
	case KindFuture:
		return "<future>"
	default:
		return "<?>"
	}
}

// bitsEqual is the EQ_FLOAT/EQ_DOUBLE contract: IEEE-754 bitwise equality,
// no epsilon. NaN == NaN holds under this comparison while NaN <= x stays
// false in the ordered comparisons.
func (v Value) bitsEqual(other Value) bool {
	return v.kind == other.kind && v.bits == other.bits
}
