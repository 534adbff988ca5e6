package vm

import "strconv"

// Arithmetic, comparison, conversion and container opcode bodies. All of
// these execute in place: no frame change, IP already advanced by the loop.

// intArith implements the ADD_INT family. Arithmetic is wrapping 32-bit
// two's complement; only division and modulo are checked, for a zero
// divisor.
func (m *VM) intArith(ins Instruction, f *Frame) {
	if ins.Op == OpNegInt {
		f.setReg(ins.A, Int(-f.reg(ins.B).Int()))
		return
	}
	b := f.reg(ins.B).Int()
	c := f.reg(ins.C).Int()
	var r int32
	switch ins.Op {
	case OpAddInt:
		r = b + c
	case OpSubInt:
		r = b - c
	case OpMulInt:
		r = b * c
	case OpDivInt:
		if checksEnabled && c == 0 {
			panic(faultf(FaultDivByZero, "DIV_INT by zero"))
		}
		r = b / c
	case OpModInt:
		if checksEnabled && c == 0 {
			panic(faultf(FaultDivByZero, "MOD_INT by zero"))
		}
		r = b % c
	}
	f.setReg(ins.A, Int(r))
}

func (m *VM) floatArith(ins Instruction, f *Frame) {
	if ins.Op == OpNegFloat {
		f.setReg(ins.A, Float(-f.reg(ins.B).Float()))
		return
	}
	b := f.reg(ins.B).Float()
	c := f.reg(ins.C).Float()
	var r float32
	switch ins.Op {
	case OpAddFloat:
		r = b + c
	case OpSubFloat:
		r = b - c
	case OpMulFloat:
		r = b * c
	case OpDivFloat:
		r = b / c // IEEE: inf/NaN, never a fault
	}
	f.setReg(ins.A, Float(r))
}

func (m *VM) doubleArith(ins Instruction, f *Frame) {
	if ins.Op == OpNegDouble {
		f.setReg(ins.A, Double(-f.reg(ins.B).Double()))
		return
	}
	b := f.reg(ins.B).Double()
	c := f.reg(ins.C).Double()
	var r float64
	switch ins.Op {
	case OpAddDouble:
		r = b + c
	case OpSubDouble:
		r = b - c
	case OpMulDouble:
		r = b * c
	case OpDivDouble:
		r = b / c
	}
	f.setReg(ins.A, Double(r))
}

func (m *VM) intCompare(ins Instruction, f *Frame) {
	b := f.reg(ins.B).Int()
	c := f.reg(ins.C).Int()
	var r bool
	switch ins.Op {
	case OpEqInt:
		r = b == c
	case OpNeInt:
		r = b != c
	case OpLtInt:
		r = b < c
	case OpLeInt:
		r = b <= c
	case OpGtInt:
		r = b > c
	case OpGeInt:
		r = b >= c
	}
	f.setReg(ins.A, Bool(r))
}

// floatCompare: equality is bitwise (NaN equals NaN, +0 differs from -0);
// the ordered comparisons use IEEE semantics, so any comparison against NaN
// is false.
func (m *VM) floatCompare(ins Instruction, f *Frame) {
	var r bool
	switch ins.Op {
	case OpEqFloat, OpEqDouble:
		b := f.reg(ins.B)
		c := f.reg(ins.C)
		if ins.Op == OpEqFloat {
			b.checkKind(KindFloat)
			c.checkKind(KindFloat)
		} else {
			b.checkKind(KindDouble)
			c.checkKind(KindDouble)
		}
		r = b.bitsEqual(c)
	case OpLtFloat:
		r = f.reg(ins.B).Float() < f.reg(ins.C).Float()
	case OpLeFloat:
		r = f.reg(ins.B).Float() <= f.reg(ins.C).Float()
	case OpLtDouble:
		r = f.reg(ins.B).Double() < f.reg(ins.C).Double()
	case OpLeDouble:
		r = f.reg(ins.B).Double() <= f.reg(ins.C).Double()
	}
	f.setReg(ins.A, Bool(r))
}

func (m *VM) convert(ins Instruction, f *Frame) {
	b := f.reg(ins.B)
	var out Value
	switch ins.Op {
	case OpIntToFloat:
		out = Float(float32(b.Int()))
	case OpIntToDouble:
		out = Double(float64(b.Int()))
	case OpFloatToInt:
		out = Int(int32(b.Float()))
	case OpFloatToDouble:
		out = Double(float64(b.Float()))
	case OpDoubleToInt:
		out = Int(int32(b.Double()))
	case OpDoubleToFloat:
		out = Float(float32(b.Double()))
	case OpIntToString:
		out = Str(strconv.FormatInt(int64(b.Int()), 10))
	case OpFloatToString:
		out = Str(strconv.FormatFloat(float64(b.Float()), 'g', -1, 32))
	case OpDoubleToString:
		out = Str(strconv.FormatFloat(b.Double(), 'g', -1, 64))
	case OpCharToString:
		out = Str(string(b.Char()))
	case OpBoolToString:
		out = Str(strconv.FormatBool(b.Bool()))
	}
	f.setReg(ins.A, out)
}

func (m *VM) opCharAt(ins Instruction, f *Frame) {
	runes := []rune(f.reg(ins.B).Str())
	idx := int(f.reg(ins.C).Int())
	if checksEnabled && (idx < 0 || idx >= len(runes)) {
		panic(faultf(FaultBadIndex, "string index %d out of range (length %d)", idx, len(runes)))
	}
	f.setReg(ins.A, Char(runes[idx]))
}

func (m *VM) fieldOp(ins Instruction, f *Frame) {
	switch ins.Op {
	case OpGetField:
		obj := f.reg(ins.B).Object()
		idx := int(ins.C)
		if checksEnabled && idx >= len(obj.Fields) {
			panic(faultf(FaultBadField, "field %d out of range for %s", idx, obj.Class.Name))
		}
		f.setReg(ins.A, obj.Fields[idx])
	case OpSetField:
		obj := f.reg(ins.A).Object()
		idx := int(ins.C)
		if checksEnabled && idx >= len(obj.Fields) {
			panic(faultf(FaultBadField, "field %d out of range for %s", idx, obj.Class.Name))
		}
		obj.Fields[idx] = f.reg(ins.B)
	}
}

func (m *VM) arrayOp(ins Instruction, f *Frame) {
	switch ins.Op {
	case OpNewArray:
		f.setReg(ins.A, arrayVal(&Array{}))
	case OpPushArray:
		arr := f.reg(ins.A).Array()
		arr.Elems = append(arr.Elems, f.reg(ins.B))
	case OpGetArray:
		arr := f.reg(ins.B).Array()
		idx := int(f.reg(ins.C).Int())
		if checksEnabled && (idx < 0 || idx >= len(arr.Elems)) {
			panic(faultf(FaultBadIndex, "array index %d out of range (length %d)", idx, len(arr.Elems)))
		}
		f.setReg(ins.A, arr.Elems[idx])
	case OpSetArray:
		// writes through a, reads index from b, value from c
		arr := f.reg(ins.A).Array()
		idx := int(f.reg(ins.B).Int())
		if checksEnabled && (idx < 0 || idx >= len(arr.Elems)) {
			panic(faultf(FaultBadIndex, "array index %d out of range (length %d)", idx, len(arr.Elems)))
		}
		arr.Elems[idx] = f.reg(ins.C)
	case OpSizeArray:
		f.setReg(ins.A, Int(int32(len(f.reg(ins.B).Array().Elems))))
	}
}

func (m *VM) mapOp(ins Instruction, f *Frame) {
	switch ins.Op {
	case OpNewMap:
		f.setReg(ins.A, mapVal(NewMapObj()))
	case OpSetMap:
		f.reg(ins.A).Map().Set(f.reg(ins.B).Str(), f.reg(ins.C))
	case OpGetMap:
		v, ok := f.reg(ins.B).Map().Get(f.reg(ins.C).Str())
		if !ok {
			v = Null()
		}
		f.setReg(ins.A, v)
	case OpHasKeyMap:
		_, ok := f.reg(ins.B).Map().Get(f.reg(ins.C).Str())
		f.setReg(ins.A, Bool(ok))
	case OpRemoveMap:
		f.reg(ins.A).Map().Remove(f.reg(ins.B).Str())
	case OpSizeMap:
		f.setReg(ins.A, Int(int32(len(f.reg(ins.B).Map().Entries))))
	}
}

func (m *VM) setOp(ins Instruction, f *Frame) {
	switch ins.Op {
	case OpNewSet:
		f.setReg(ins.A, setVal(NewSetObj()))
	case OpAddSet:
		f.reg(ins.A).Set().Add(f.reg(ins.B).Str())
	case OpHasSet:
		f.setReg(ins.A, Bool(f.reg(ins.B).Set().Has(f.reg(ins.C).Str())))
	case OpRemoveSet:
		f.reg(ins.A).Set().Remove(f.reg(ins.B).Str())
	case OpSizeSet:
		f.setReg(ins.A, Int(int32(len(f.reg(ins.B).Set().Elems))))
	}
}

func (m *VM) intMapOp(ins Instruction, f *Frame) {
	switch ins.Op {
	case OpNewIntMap:
		f.setReg(ins.A, intMapVal(NewIntMapObj()))
	case OpSetIntMap:
		f.reg(ins.A).IntMap().Set(f.reg(ins.B).Int(), f.reg(ins.C))
	case OpGetIntMap:
		v, ok := f.reg(ins.B).IntMap().Get(f.reg(ins.C).Int())
		if !ok {
			v = Null()
		}
		f.setReg(ins.A, v)
	case OpHasKeyIntMap:
		_, ok := f.reg(ins.B).IntMap().Get(f.reg(ins.C).Int())
		f.setReg(ins.A, Bool(ok))
	case OpRemoveIntMap:
		f.reg(ins.A).IntMap().Remove(f.reg(ins.B).Int())
	case OpSizeIntMap:
		f.setReg(ins.A, Int(int32(len(f.reg(ins.B).IntMap().Entries))))
	}
}

func (m *VM) intSetOp(ins Instruction, f *Frame) {
	switch ins.Op {
	case OpNewIntSet:
		f.setReg(ins.A, intSetVal(NewIntSetObj()))
	case OpAddIntSet:
		f.reg(ins.A).IntSet().Add(f.reg(ins.B).Int())
	case OpHasIntSet:
		f.setReg(ins.A, Bool(f.reg(ins.B).IntSet().Has(f.reg(ins.C).Int())))
	case OpRemoveIntSet:
		f.reg(ins.A).IntSet().Remove(f.reg(ins.B).Int())
	case OpSizeIntSet:
		f.setReg(ins.A, Int(int32(len(f.reg(ins.B).IntSet().Elems))))
	}
}

func (m *VM) iterOp(ins Instruction, f *Frame) {
	switch ins.Op {
	case OpNewIter:
		f.setReg(ins.A, iteratorVal(NewIterator(f.reg(ins.B))))
	case OpIterHasNext:
		f.setReg(ins.A, Bool(f.reg(ins.B).Iterator().HasNext()))
	case OpIterValue:
		f.setReg(ins.A, f.reg(ins.B).Iterator().Value())
	case OpIterKey:
		f.setReg(ins.A, f.reg(ins.B).Iterator().Key())
	case OpIterAdvance:
		f.reg(ins.A).Iterator().Advance()
	}
}
