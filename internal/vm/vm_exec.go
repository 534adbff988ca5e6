package vm

// dispatchResult tells the outer loop what just happened. FrameChanged means
// a call/return/lambda-invoke altered the stack and the active frame must be
// re-acquired before the next fetch.
type dispatchResult uint8

const (
	resContinue dispatchResult = iota
	resFrameChanged
	resHalted
)

// execute runs one instruction. The caller has already advanced f.IP to
// ip+1; jump opcodes overwrite it relative to ip.
func (m *VM) execute(ins Instruction, f *Frame, ip int) dispatchResult {
	switch ins.Op {

	// Control

	case OpHalt:
		if checksEnabled && len(m.frames) > 1 {
			panic(faultf(FaultBadOpcode, "HALT at call depth %d", len(m.frames)))
		}
		m.result = f.reg(0)
		m.frames = m.frames[:0]
		m.halted = true
		return resHalted

	case OpMove:
		f.setReg(ins.A, f.reg(ins.B))

	case OpJmp:
		f.IP = ip + int(ins.SBX())

	case OpJmpIfTrue:
		if f.reg(ins.A).Bool() {
			f.IP = ip + int(ins.SBX())
		}

	case OpJmpIfFalse:
		if !f.reg(ins.A).Bool() {
			f.IP = ip + int(ins.SBX())
		}

	// Loads

	case OpLoadConst:
		f.setReg(ins.A, m.prog.constantValue(int(ins.UBX())))

	case OpLoadKInt16:
		f.setReg(ins.A, Int(int32(ins.SBX())))

	case OpLoadNull:
		f.setReg(ins.A, Null())

	case OpLoadTrue:
		f.setReg(ins.A, Bool(true))

	case OpLoadFalse:
		f.setReg(ins.A, Bool(false))

	// Globals

	case OpGetGlobal:
		f.setReg(ins.A, m.globals.Get(int(ins.UBX())))

	case OpSetGlobal:
		m.globals.Set(int(ins.UBX()), f.reg(ins.A))

	// Arithmetic, comparisons, logic, conversions, strings

	case OpAddInt, OpSubInt, OpMulInt, OpDivInt, OpModInt, OpNegInt:
		m.intArith(ins, f)

	case OpAddFloat, OpSubFloat, OpMulFloat, OpDivFloat, OpNegFloat:
		m.floatArith(ins, f)

	case OpAddDouble, OpSubDouble, OpMulDouble, OpDivDouble, OpNegDouble:
		m.doubleArith(ins, f)

	case OpEqInt, OpNeInt, OpLtInt, OpLeInt, OpGtInt, OpGeInt:
		m.intCompare(ins, f)

	case OpEqFloat, OpLtFloat, OpLeFloat, OpEqDouble, OpLtDouble, OpLeDouble:
		m.floatCompare(ins, f)

	case OpEqBool:
		f.setReg(ins.A, Bool(f.reg(ins.B).Bool() == f.reg(ins.C).Bool()))

	case OpEqChar:
		f.setReg(ins.A, Bool(f.reg(ins.B).Char() == f.reg(ins.C).Char()))

	case OpEqString:
		f.setReg(ins.A, Bool(f.reg(ins.B).Str() == f.reg(ins.C).Str()))

	case OpEqObject:
		f.setReg(ins.A, Bool(f.reg(ins.B).SameRef(f.reg(ins.C))))

	case OpAnd:
		f.setReg(ins.A, Bool(f.reg(ins.B).Bool() && f.reg(ins.C).Bool()))

	case OpOr:
		f.setReg(ins.A, Bool(f.reg(ins.B).Bool() || f.reg(ins.C).Bool()))

	case OpNot:
		f.setReg(ins.A, Bool(!f.reg(ins.B).Bool()))

	case OpIntToFloat, OpIntToDouble, OpFloatToInt, OpFloatToDouble,
		OpDoubleToInt, OpDoubleToFloat, OpIntToString, OpFloatToString,
		OpDoubleToString, OpCharToString, OpBoolToString:
		m.convert(ins, f)

	case OpConcat:
		f.setReg(ins.A, Str(f.reg(ins.B).Str()+f.reg(ins.C).Str()))

	case OpStrLen:
		f.setReg(ins.A, Int(int32(len([]rune(f.reg(ins.B).Str())))))

	case OpCharAt:
		m.opCharAt(ins, f)

	// Objects, arrays, maps, sets, iterators

	case OpNewObject:
		class, err := m.prog.Class(int(ins.UBX()))
		if err != nil {
			panic(err)
		}
		f.setReg(ins.A, objectVal(NewObject(class)))

	case OpGetField, OpSetField:
		m.fieldOp(ins, f)

	case OpNewArray, OpPushArray, OpGetArray, OpSetArray, OpSizeArray:
		m.arrayOp(ins, f)

	case OpNewMap, OpSetMap, OpGetMap, OpHasKeyMap, OpRemoveMap, OpSizeMap:
		m.mapOp(ins, f)

	case OpNewSet, OpAddSet, OpHasSet, OpRemoveSet, OpSizeSet:
		m.setOp(ins, f)

	case OpNewIntMap, OpSetIntMap, OpGetIntMap, OpHasKeyIntMap, OpRemoveIntMap, OpSizeIntMap:
		m.intMapOp(ins, f)

	case OpNewIntSet, OpAddIntSet, OpHasIntSet, OpRemoveIntSet, OpSizeIntSet:
		m.intSetOp(ins, f)

	case OpNewIter, OpIterHasNext, OpIterValue, OpIterKey, OpIterAdvance:
		m.iterOp(ins, f)

	// Calls

	case OpCall:
		return m.opCall(ins, f)

	case OpReturn:
		return m.opReturn(ins, f)

	case OpNewLambda:
		m.opNewLambda(ins, f)

	case OpInvokeLambda:
		return m.opInvokeLambda(ins, f)

	case OpAsyncCall:
		m.opAsyncCall(ins, f)

	case OpAwait:
		m.opAwait(ins, f)

	case OpCallExtern:
		m.opCallExtern(ins, f)

	default:
		panic(faultf(FaultBadOpcode, "opcode %d", byte(ins.Op)))
	}

	return resContinue
}
