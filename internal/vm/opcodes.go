package vm

// Opcode is the operation selector byte of an instruction
type Opcode byte

const (
	// Control
	OpHalt       Opcode = iota
	OpMove              // a = b
	OpJmp               // ip += sbx
	OpJmpIfTrue         // if a { ip += sbx }
	OpJmpIfFalse        // if !a { ip += sbx }

	// Loads
	OpLoadConst  // a = constants[ubx]
	OpLoadKInt16 // a = int(sbx)
	OpLoadNull   // a = null
	OpLoadTrue   // a = true
	OpLoadFalse  // a = false

	// Globals
	OpGetGlobal // a = globals[ubx]
	OpSetGlobal // globals[ubx] = a

	// Integer arithmetic. 32-bit wrapping two's complement: overflow wraps,
	// it does not trap.
	OpAddInt
	OpSubInt
	OpMulInt
	OpDivInt
	OpModInt
	OpNegInt

	// Float arithmetic
	OpAddFloat
	OpSubFloat
	OpMulFloat
	OpDivFloat
	OpNegFloat

	// Double arithmetic
	OpAddDouble
	OpSubDouble
	OpMulDouble
	OpDivDouble
	OpNegDouble

	// Comparisons
	OpEqInt
	OpNeInt
	OpLtInt
	OpLeInt
	OpGtInt
	OpGeInt
	OpEqFloat // IEEE-754 bitwise equality
	OpLtFloat // ordered: false for NaN operands
	OpLeFloat
	OpEqDouble // IEEE-754 bitwise equality
	OpLtDouble
	OpLeDouble
	OpEqBool
	OpEqChar
	OpEqString
	OpEqObject // reference identity, not structural

	// Logic
	OpAnd
	OpOr
	OpNot

	// Conversions
	OpIntToFloat
	OpIntToDouble
	OpFloatToInt
	OpFloatToDouble
	OpDoubleToInt
	OpDoubleToFloat
	OpIntToString
	OpFloatToString
	OpDoubleToString
	OpCharToString
	OpBoolToString

	// Strings
	OpConcat // a = b ++ c
	OpStrLen // a = len(b) in runes
	OpCharAt // a = b[c] as char

	// Objects
	OpNewObject // a = new instance of class constants[ubx]
	OpGetField  // a = b.fields[c]
	OpSetField  // a.fields[c] = b

	// Arrays
	OpNewArray
	OpPushArray // a.push(b)
	OpGetArray  // a = b[c]
	OpSetArray  // a[b] = c
	OpSizeArray // a = len(b)

	// String-keyed maps
	OpNewMap
	OpSetMap    // a[b] = c
	OpGetMap    // a = b[c]
	OpHasKeyMap // a = b has key c
	OpRemoveMap // delete a[b]
	OpSizeMap   // a = size(b)

	// String sets
	OpNewSet
	OpAddSet    // a.add(b)
	OpHasSet    // a = b has c
	OpRemoveSet // a.remove(b)
	OpSizeSet   // a = size(b)

	// Int-keyed maps
	OpNewIntMap
	OpSetIntMap
	OpGetIntMap
	OpHasKeyIntMap
	OpRemoveIntMap
	OpSizeIntMap

	// Int sets
	OpNewIntSet
	OpAddIntSet
	OpHasIntSet
	OpRemoveIntSet
	OpSizeIntSet

	// Iterators
	OpNewIter     // a = iterator over container b
	OpIterHasNext // a = b.hasNext
	OpIterValue   // a = b.value
	OpIterKey     // a = b.key (map kinds only)
	OpIterAdvance // a.advance()

	// Calls
	OpCall         // call constants[b] with c args from r[a..]; result into caller r0
	OpReturn       // return r[a]
	OpNewLambda    // a = lambda over constants[b], capturing c regs from r[a+1..]
	OpInvokeLambda // invoke lambda r[b] with c args from r[a..]
	OpAsyncCall    // a = future running constants[b] with c args from r[a+1..]
	OpAwait        // a = await b (pass-through for non-futures)
	OpCallExtern   // a = extern constants[b](c args from r[a..])
)

// OperandShape classifies how an instruction's operand bytes are read.
// Several opcodes overload the same register for different roles depending
// on shape (SET_ARRAY writes through a, reads index from b, value from c),
// so the disassembler and the loader validation both key off this.
type OperandShape uint8

const (
	ShapeThreeReg OperandShape = iota // a, b, c all registers
	ShapeTwoReg                       // a, b registers; c register or immediate
	ShapeOther                        // opcode-specific encoding
)

var opcodeNames = map[Opcode]string{
	OpHalt:       "HALT",
	OpMove:       "MOVE",
	OpJmp:        "JMP",
	OpJmpIfTrue:  "JMP_IF_TRUE",
	OpJmpIfFalse: "JMP_IF_FALSE",

	OpLoadConst:  "LOADK",
	OpLoadKInt16: "LOADK_INT16",
	OpLoadNull:   "LOAD_NULL",
	OpLoadTrue:   "LOAD_TRUE",
	OpLoadFalse:  "LOAD_FALSE",

	OpGetGlobal: "GET_GLOBAL",
	OpSetGlobal: "SET_GLOBAL",

	OpAddInt: "ADD_INT",
	OpSubInt: "SUB_INT",
	OpMulInt: "MUL_INT",
	OpDivInt: "DIV_INT",
	OpModInt: "MOD_INT",
	OpNegInt: "NEG_INT",

	OpAddFloat: "ADD_FLOAT",
	OpSubFloat: "SUB_FLOAT",
	OpMulFloat: "MUL_FLOAT",
	OpDivFloat: "DIV_FLOAT",
	OpNegFloat: "NEG_FLOAT",

	OpAddDouble: "ADD_DOUBLE",
	OpSubDouble: "SUB_DOUBLE",
	OpMulDouble: "MUL_DOUBLE",
	OpDivDouble: "DIV_DOUBLE",
	OpNegDouble: "NEG_DOUBLE",

	OpEqInt:    "EQ_INT",
	OpNeInt:    "NE_INT",
	OpLtInt:    "LT_INT",
	OpLeInt:    "LE_INT",
	OpGtInt:    "GT_INT",
	OpGeInt:    "GE_INT",
	OpEqFloat:  "EQ_FLOAT",
	OpLtFloat:  "LT_FLOAT",
	OpLeFloat:  "LE_FLOAT",
	OpEqDouble: "EQ_DOUBLE",
	OpLtDouble: "LT_DOUBLE",
	OpLeDouble: "LE_DOUBLE",
	OpEqBool:   "EQ_BOOL",
	OpEqChar:   "EQ_CHAR",
	OpEqString: "EQ_STRING",
	OpEqObject: "EQ_OBJECT",

	OpAnd: "AND",
	OpOr:  "OR",
	OpNot: "NOT",

	OpIntToFloat:     "INT_TO_FLOAT",
	OpIntToDouble:    "INT_TO_DOUBLE",
	OpFloatToInt:     "FLOAT_TO_INT",
	OpFloatToDouble:  "FLOAT_TO_DOUBLE",
	OpDoubleToInt:    "DOUBLE_TO_INT",
	OpDoubleToFloat:  "DOUBLE_TO_FLOAT",
	OpIntToString:    "INT_TO_STRING",
	OpFloatToString:  "FLOAT_TO_STRING",
	OpDoubleToString: "DOUBLE_TO_STRING",
	OpCharToString:   "CHAR_TO_STRING",
	OpBoolToString:   "BOOL_TO_STRING",

	OpConcat: "CONCAT",
	OpStrLen: "STR_LEN",
	OpCharAt: "CHAR_AT",

	OpNewObject: "NEW_OBJECT",
	OpGetField:  "GET_FIELD",
	OpSetField:  "SET_FIELD",

	OpNewArray:  "NEW_ARRAY",
	OpPushArray: "PUSH_ARRAY",
	OpGetArray:  "GET_ARRAY",
	OpSetArray:  "SET_ARRAY",
	OpSizeArray: "SIZE_ARRAY",

	OpNewMap:    "NEW_MAP",
	OpSetMap:    "SET_MAP",
	OpGetMap:    "GET_MAP",
	OpHasKeyMap: "HAS_KEY_MAP",
	OpRemoveMap: "REMOVE_MAP",
	OpSizeMap:   "SIZE_MAP",

	OpNewSet:    "NEW_SET",
	OpAddSet:    "ADD_SET",
	OpHasSet:    "HAS_SET",
	OpRemoveSet: "REMOVE_SET",
	OpSizeSet:   "SIZE_SET",

	OpNewIntMap:    "NEW_INT_MAP",
	OpSetIntMap:    "SET_INT_MAP",
	OpGetIntMap:    "GET_INT_MAP",
	OpHasKeyIntMap: "HAS_KEY_INT_MAP",
	OpRemoveIntMap: "REMOVE_INT_MAP",
	OpSizeIntMap:   "SIZE_INT_MAP",

	OpNewIntSet:    "NEW_INT_SET",
	OpAddIntSet:    "ADD_INT_SET",
	OpHasIntSet:    "HAS_INT_SET",
	OpRemoveIntSet: "REMOVE_INT_SET",
	OpSizeIntSet:   "SIZE_INT_SET",

	OpNewIter:     "NEW_ITER",
	OpIterHasNext: "ITER_HAS_NEXT",
	OpIterValue:   "ITER_VALUE",
	OpIterKey:     "ITER_KEY",
	OpIterAdvance: "ITER_ADVANCE",

	OpCall:         "CALL",
	OpReturn:       "RETURN",
	OpNewLambda:    "NEW_LAMBDA",
	OpInvokeLambda: "INVOKE_LAMBDA",
	OpAsyncCall:    "ASYNC_CALL",
	OpAwait:        "AWAIT",
	OpCallExtern:   "CALL_EXTERN",
}

var opcodeShapes = map[Opcode]OperandShape{
	OpHalt:       ShapeOther,
	OpMove:       ShapeTwoReg,
	OpJmp:        ShapeOther,
	OpJmpIfTrue:  ShapeOther,
	OpJmpIfFalse: ShapeOther,

	OpLoadConst:  ShapeOther,
	OpLoadKInt16: ShapeOther,
	OpLoadNull:   ShapeOther,
	OpLoadTrue:   ShapeOther,
	OpLoadFalse:  ShapeOther,

	OpGetGlobal: ShapeOther,
	OpSetGlobal: ShapeOther,

	OpAddInt: ShapeThreeReg,
	OpSubInt: ShapeThreeReg,
	OpMulInt: ShapeThreeReg,
	OpDivInt: ShapeThreeReg,
	OpModInt: ShapeThreeReg,
	OpNegInt: ShapeTwoReg,

	OpAddFloat: ShapeThreeReg,
	OpSubFloat: ShapeThreeReg,
	OpMulFloat: ShapeThreeReg,
	OpDivFloat: ShapeThreeReg,
	OpNegFloat: ShapeTwoReg,

	OpAddDouble: ShapeThreeReg,
	OpSubDouble: ShapeThreeReg,
	OpMulDouble: ShapeThreeReg,
	OpDivDouble: ShapeThreeReg,
	OpNegDouble: ShapeTwoReg,

	OpEqInt:    ShapeThreeReg,
	OpNeInt:    ShapeThreeReg,
	OpLtInt:    ShapeThreeReg,
	OpLeInt:    ShapeThreeReg,
	OpGtInt:    ShapeThreeReg,
	OpGeInt:    ShapeThreeReg,
	OpEqFloat:  ShapeThreeReg,
	OpLtFloat:  ShapeThreeReg,
	OpLeFloat:  ShapeThreeReg,
	OpEqDouble: ShapeThreeReg,
	OpLtDouble: ShapeThreeReg,
	OpLeDouble: ShapeThreeReg,
	OpEqBool:   ShapeThreeReg,
	OpEqChar:   ShapeThreeReg,
	OpEqString: ShapeThreeReg,
	OpEqObject: ShapeThreeReg,

	OpAnd: ShapeThreeReg,
	OpOr:  ShapeThreeReg,
	OpNot: ShapeTwoReg,

	OpIntToFloat:     ShapeTwoReg,
	OpIntToDouble:    ShapeTwoReg,
	OpFloatToInt:     ShapeTwoReg,
	OpFloatToDouble:  ShapeTwoReg,
	OpDoubleToInt:    ShapeTwoReg,
	OpDoubleToFloat:  ShapeTwoReg,
	OpIntToString:    ShapeTwoReg,
	OpFloatToString:  ShapeTwoReg,
	OpDoubleToString: ShapeTwoReg,
	OpCharToString:   ShapeTwoReg,
	OpBoolToString:   ShapeTwoReg,

	OpConcat: ShapeThreeReg,
	OpStrLen: ShapeTwoReg,
	OpCharAt: ShapeThreeReg,

	OpNewObject: ShapeOther,
	OpGetField:  ShapeTwoReg,
	OpSetField:  ShapeTwoReg,

	OpNewArray:  ShapeOther,
	OpPushArray: ShapeTwoReg,
	OpGetArray:  ShapeThreeReg,
	OpSetArray:  ShapeThreeReg,
	OpSizeArray: ShapeTwoReg,

	OpNewMap:    ShapeOther,
	OpSetMap:    ShapeThreeReg,
	OpGetMap:    ShapeThreeReg,
	OpHasKeyMap: ShapeThreeReg,
	OpRemoveMap: ShapeTwoReg,
	OpSizeMap:   ShapeTwoReg,

	OpNewSet:    ShapeOther,
	OpAddSet:    ShapeTwoReg,
	OpHasSet:    ShapeThreeReg,
	OpRemoveSet: ShapeTwoReg,
	OpSizeSet:   ShapeTwoReg,

	OpNewIntMap:    ShapeOther,
	OpSetIntMap:    ShapeThreeReg,
	OpGetIntMap:    ShapeThreeReg,
	OpHasKeyIntMap: ShapeThreeReg,
	OpRemoveIntMap: ShapeTwoReg,
	OpSizeIntMap:   ShapeTwoReg,

	OpNewIntSet:    ShapeOther,
	OpAddIntSet:    ShapeTwoReg,
	OpHasIntSet:    ShapeThreeReg,
	OpRemoveIntSet: ShapeTwoReg,
	OpSizeIntSet:   ShapeTwoReg,

	OpNewIter:     ShapeTwoReg,
	OpIterHasNext: ShapeTwoReg,
	OpIterValue:   ShapeTwoReg,
	OpIterKey:     ShapeTwoReg,
	OpIterAdvance: ShapeOther,

	OpCall:         ShapeOther,
	OpReturn:       ShapeOther,
	OpNewLambda:    ShapeOther,
	OpInvokeLambda: ShapeOther,
	OpAsyncCall:    ShapeOther,
	OpAwait:        ShapeTwoReg,
	OpCallExtern:   ShapeOther,
}

// Name returns the mnemonic for disassembly and logging.
func (op Opcode) Name() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return "UNKNOWN"
}

// Shape returns the operand classification for op.
func (op Opcode) Shape() OperandShape {
	if shape, ok := opcodeShapes[op]; ok {
		return shape
	}
	return ShapeOther
}

// Valid reports whether op is a defined opcode.
func (op Opcode) Valid() bool {
	_, ok := opcodeNames[op]
	return ok
}
