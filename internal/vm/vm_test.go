package vm

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/veloxvm/velox/internal/config"
)

func newProg(instructions []Instruction, constants ...Constant) *Program {
	return &Program{
		Version:      config.FormatVersion,
		Constants:    constants,
		Instructions: instructions,
		EntryPoint:   0,
	}
}

func run(t *testing.T, prog *Program) Value {
	t.Helper()
	m := New(prog, nil)
	result, err := m.Run()
	if err != nil {
		t.Fatalf("runtime error: %s", err)
	}
	return result
}

func runExpectFault(t *testing.T, prog *Program, kind FaultKind) *Fault {
	t.Helper()
	m := New(prog, nil)
	_, err := m.Run()
	if err == nil {
		t.Fatalf("expected a runtime fault, got none")
	}
	var fault *Fault
	if !errors.As(err, &fault) {
		t.Fatalf("error is not a Fault. got=%T (%v)", err, err)
	}
	if fault.Kind != kind {
		t.Errorf("wrong fault kind. got=%s, want=%s", faultKindNames[fault.Kind], faultKindNames[kind])
	}
	return fault
}

func testInt(t *testing.T, v Value, expected int32) {
	t.Helper()
	if v.Kind() != KindInt {
		t.Fatalf("value is not int. got=%s (%s)", v.Kind(), v.Inspect())
	}
	if v.Int() != expected {
		t.Errorf("wrong value. got=%d, want=%d", v.Int(), expected)
	}
}

func testBool(t *testing.T, v Value, expected bool) {
	t.Helper()
	if v.Kind() != KindBool {
		t.Fatalf("value is not bool. got=%s (%s)", v.Kind(), v.Inspect())
	}
	if v.Bool() != expected {
		t.Errorf("wrong value. got=%t, want=%t", v.Bool(), expected)
	}
}

func testStr(t *testing.T, v Value, expected string) {
	t.Helper()
	if v.Kind() != KindString {
		t.Fatalf("value is not string. got=%s (%s)", v.Kind(), v.Inspect())
	}
	if v.Str() != expected {
		t.Errorf("wrong value. got=%q, want=%q", v.Str(), expected)
	}
}

func TestHaltReturnsRegisterZero(t *testing.T) {
	result := run(t, newProg([]Instruction{
		MakeSBX(OpLoadKInt16, 0, 99),
		{Op: OpHalt},
	}))
	testInt(t, result, 99)
}

func TestIntArithmetic(t *testing.T) {
	tests := []struct {
		op       Opcode
		b, c     int16
		expected int32
	}{
		{OpAddInt, 20, 22, 42},
		{OpSubInt, 7, 10, -3},
		{OpMulInt, 6, 7, 42},
		{OpDivInt, 17, 5, 3},
		{OpModInt, 17, 5, 2},
	}
	for _, tt := range tests {
		result := run(t, newProg([]Instruction{
			MakeSBX(OpLoadKInt16, 1, tt.b),
			MakeSBX(OpLoadKInt16, 2, tt.c),
			{Op: tt.op, A: 0, B: 1, C: 2},
			{Op: OpHalt},
		}))
		testInt(t, result, tt.expected)
	}
}

func TestIntOverflowWraps(t *testing.T) {
	result := run(t, newProg([]Instruction{
		MakeUBX(OpLoadConst, 1, 0),
		MakeSBX(OpLoadKInt16, 2, 1),
		{Op: OpAddInt, A: 0, B: 1, C: 2},
		{Op: OpHalt},
	}, Constant{Kind: ConstValue, Value: Int(2147483647)}))
	testInt(t, result, -2147483648)
}

func TestDivByZeroFault(t *testing.T) {
	fault := runExpectFault(t, newProg([]Instruction{
		MakeSBX(OpLoadKInt16, 1, 1),
		MakeSBX(OpLoadKInt16, 2, 0),
		{Op: OpDivInt, A: 0, B: 1, C: 2},
		{Op: OpHalt},
	}), FaultDivByZero)
	if fault.Dump == "" {
		t.Errorf("fault is missing the state dump")
	}
	if fault.IP != 2 {
		t.Errorf("wrong fault instruction. got=%d, want=2", fault.IP)
	}
}

func TestWrongTypeFault(t *testing.T) {
	runExpectFault(t, newProg([]Instruction{
		{Op: OpLoadTrue, A: 1},
		{Op: OpLoadTrue, A: 2},
		{Op: OpAddInt, A: 0, B: 1, C: 2},
		{Op: OpHalt},
	}), FaultWrongType)
}

// Backward jump loop summing 1..5.
func TestJumpLoop(t *testing.T) {
	result := run(t, newProg([]Instruction{
		MakeSBX(OpLoadKInt16, 1, 0), // acc
		MakeSBX(OpLoadKInt16, 2, 1), // i
		MakeSBX(OpLoadKInt16, 3, 5), // limit
		MakeSBX(OpLoadKInt16, 5, 1), // step
		{Op: OpLeInt, A: 4, B: 2, C: 3},
		MakeSBX(OpJmpIfFalse, 4, 4),
		{Op: OpAddInt, A: 1, B: 1, C: 2},
		{Op: OpAddInt, A: 2, B: 2, C: 5},
		MakeSBX(OpJmp, 0, -4),
		{Op: OpMove, A: 0, B: 1},
		{Op: OpHalt},
	}))
	testInt(t, result, 15)
}

func TestCallAndReturn(t *testing.T) {
	result := run(t, newProg([]Instruction{
		MakeSBX(OpLoadKInt16, 1, 20),
		MakeSBX(OpLoadKInt16, 2, 22),
		{Op: OpCall, A: 1, B: 0, C: 2},
		{Op: OpHalt},
		// add(a, b) at 4
		{Op: OpAddInt, A: 3, B: 1, C: 2},
		{Op: OpReturn, A: 3},
	}, Constant{Kind: ConstFunction, Function: &FunctionMeta{
		Name: "add", ParamCount: 2, RegisterCount: 8, CodeIndex: 4,
	}}))
	testInt(t, result, 42)
}

// The callee must not observe caller registers beyond its copied arguments,
// and the caller's registers other than r0 must survive the call.
func TestCallPreservesCallerRegisters(t *testing.T) {
	result := run(t, newProg([]Instruction{
		MakeSBX(OpLoadKInt16, 1, 7),
		MakeSBX(OpLoadKInt16, 5, 1000),
		{Op: OpCall, A: 1, B: 0, C: 1},
		{Op: OpAddInt, A: 0, B: 0, C: 5},
		{Op: OpHalt},
		// clobber(x) at 5: writes its own r5 before returning
		MakeSBX(OpLoadKInt16, 5, -1),
		{Op: OpAddInt, A: 2, B: 1, C: 1},
		{Op: OpReturn, A: 2},
	}, Constant{Kind: ConstFunction, Function: &FunctionMeta{
		Name: "clobber", ParamCount: 1, RegisterCount: 8, CodeIndex: 5,
	}}))
	testInt(t, result, 1014) // 7+7 from callee, +1000 from untouched caller r5
}

func TestHaltInCalleeFaults(t *testing.T) {
	runExpectFault(t, newProg([]Instruction{
		{Op: OpCall, A: 1, B: 0, C: 0},
		{Op: OpHalt},
		// body at 2
		{Op: OpHalt},
	}, Constant{Kind: ConstFunction, Function: &FunctionMeta{
		Name: "bad", RegisterCount: 4, CodeIndex: 2,
	}}), FaultBadOpcode)
}

func TestStackOverflowFault(t *testing.T) {
	prog := newProg([]Instruction{
		{Op: OpCall, A: 1, B: 0, C: 0},
		{Op: OpHalt},
		// loop() at 2 calls itself forever
		{Op: OpCall, A: 1, B: 0, C: 0},
		{Op: OpReturn, A: 0},
	}, Constant{Kind: ConstFunction, Function: &FunctionMeta{
		Name: "loop", RegisterCount: 4, CodeIndex: 2,
	}})

	cfg := config.Default()
	cfg.MaxFrames = 16
	m := New(prog, cfg)
	_, err := m.Run()
	var fault *Fault
	if !errors.As(err, &fault) || fault.Kind != FaultStackOverflow {
		t.Fatalf("expected stack overflow fault, got %v", err)
	}
}

func TestGlobals(t *testing.T) {
	prog := newProg([]Instruction{
		MakeSBX(OpLoadKInt16, 1, 7),
		MakeUBX(OpSetGlobal, 1, 0),
		MakeUBX(OpGetGlobal, 0, 0),
		{Op: OpHalt},
	})
	prog.GlobalCount = 2
	testInt(t, run(t, prog), 7)
}

func TestGlobalOutOfRangeFault(t *testing.T) {
	prog := newProg([]Instruction{
		MakeUBX(OpGetGlobal, 0, 5),
		{Op: OpHalt},
	})
	prog.GlobalCount = 2
	runExpectFault(t, prog, FaultBadIndex)
}

func TestStringOps(t *testing.T) {
	result := run(t, newProg([]Instruction{
		MakeUBX(OpLoadConst, 1, 0),
		MakeUBX(OpLoadConst, 2, 1),
		{Op: OpConcat, A: 0, B: 1, C: 2},
		{Op: OpHalt},
	}, Constant{Kind: ConstValue, Value: Str("velo")},
		Constant{Kind: ConstValue, Value: Str("x")}))
	testStr(t, result, "velox")
}

// STR_LEN and CHAR_AT count runes, not bytes.
func TestStringRuneIndexing(t *testing.T) {
	prog := newProg([]Instruction{
		MakeUBX(OpLoadConst, 1, 0),
		{Op: OpStrLen, A: 0, B: 1},
		{Op: OpHalt},
	}, Constant{Kind: ConstValue, Value: Str("héllo")})
	testInt(t, run(t, prog), 5)

	result := run(t, newProg([]Instruction{
		MakeUBX(OpLoadConst, 1, 0),
		MakeSBX(OpLoadKInt16, 2, 1),
		{Op: OpCharAt, A: 0, B: 1, C: 2},
		{Op: OpHalt},
	}, Constant{Kind: ConstValue, Value: Str("héllo")}))
	if result.Char() != 'é' {
		t.Errorf("wrong char. got=%q, want='é'", result.Char())
	}
}

func TestCharAtOutOfRangeFault(t *testing.T) {
	runExpectFault(t, newProg([]Instruction{
		MakeUBX(OpLoadConst, 1, 0),
		MakeSBX(OpLoadKInt16, 2, 3),
		{Op: OpCharAt, A: 0, B: 1, C: 2},
		{Op: OpHalt},
	}, Constant{Kind: ConstValue, Value: Str("abc")}), FaultBadIndex)
}

// EQ_DOUBLE is bitwise: NaN equals NaN, while the ordered comparison stays
// false for NaN operands.
func TestDoubleNaNComparisons(t *testing.T) {
	nan := Constant{Kind: ConstValue, Value: Double(math.NaN())}

	eq := run(t, newProg([]Instruction{
		MakeUBX(OpLoadConst, 1, 0),
		MakeUBX(OpLoadConst, 2, 0),
		{Op: OpEqDouble, A: 0, B: 1, C: 2},
		{Op: OpHalt},
	}, nan))
	testBool(t, eq, true)

	lt := run(t, newProg([]Instruction{
		MakeUBX(OpLoadConst, 1, 0),
		MakeUBX(OpLoadConst, 2, 1),
		{Op: OpLtDouble, A: 0, B: 1, C: 2},
		{Op: OpHalt},
	}, nan, Constant{Kind: ConstValue, Value: Double(1.0)}))
	testBool(t, lt, false)
}

func TestObjectFields(t *testing.T) {
	result := run(t, newProg([]Instruction{
		MakeUBX(OpNewObject, 1, 0),
		MakeSBX(OpLoadKInt16, 2, 11),
		{Op: OpSetField, A: 1, B: 2, C: 1},
		{Op: OpGetField, A: 0, B: 1, C: 1},
		{Op: OpHalt},
	}, Constant{Kind: ConstClass, Class: &ClassMeta{
		Name: "Point", FieldCount: 2, Fields: []string{"x", "y"},
	}}))
	testInt(t, result, 11)
}

func TestObjectIdentityEquality(t *testing.T) {
	// two distinct instances of the same class are not EQ_OBJECT equal
	result := run(t, newProg([]Instruction{
		MakeUBX(OpNewObject, 1, 0),
		MakeUBX(OpNewObject, 2, 0),
		{Op: OpMove, A: 3, B: 1},
		{Op: OpEqObject, A: 4, B: 1, C: 2},
		{Op: OpEqObject, A: 0, B: 1, C: 3},
		{Op: OpAnd, A: 5, B: 4, C: 0},
		{Op: OpHalt},
	}, Constant{Kind: ConstClass, Class: &ClassMeta{Name: "T", FieldCount: 1}}))
	testBool(t, result, true) // r0 = same-instance comparison
}

func TestArrayOps(t *testing.T) {
	result := run(t, newProg([]Instruction{
		{Op: OpNewArray, A: 1},
		MakeSBX(OpLoadKInt16, 2, 10),
		{Op: OpPushArray, A: 1, B: 2},
		MakeSBX(OpLoadKInt16, 2, 20),
		{Op: OpPushArray, A: 1, B: 2},
		MakeSBX(OpLoadKInt16, 3, 0),
		MakeSBX(OpLoadKInt16, 4, 99),
		{Op: OpSetArray, A: 1, B: 3, C: 4},
		{Op: OpGetArray, A: 0, B: 1, C: 3},
		{Op: OpHalt},
	}))
	testInt(t, result, 99)
}

func TestArrayIndexFault(t *testing.T) {
	runExpectFault(t, newProg([]Instruction{
		{Op: OpNewArray, A: 1},
		MakeSBX(OpLoadKInt16, 2, 0),
		{Op: OpGetArray, A: 0, B: 1, C: 2},
		{Op: OpHalt},
	}), FaultBadIndex)
}

func TestMapMissingKeyYieldsNull(t *testing.T) {
	result := run(t, newProg([]Instruction{
		{Op: OpNewMap, A: 1},
		MakeUBX(OpLoadConst, 2, 0),
		{Op: OpGetMap, A: 0, B: 1, C: 2},
		{Op: OpHalt},
	}, Constant{Kind: ConstValue, Value: Str("absent")}))
	if !result.IsNull() {
		t.Errorf("expected null for missing key, got %s", result.Inspect())
	}
}

func TestStringMapOps(t *testing.T) {
	hello := Constant{Kind: ConstValue, Value: Str("hello")}
	world := Constant{Kind: ConstValue, Value: Str("world")}

	got := run(t, newProg([]Instruction{
		{Op: OpNewMap, A: 1},
		MakeUBX(OpLoadConst, 2, 0),
		MakeUBX(OpLoadConst, 3, 1),
		{Op: OpSetMap, A: 1, B: 2, C: 3},
		{Op: OpGetMap, A: 0, B: 1, C: 2},
		{Op: OpHalt},
	}, hello, world))
	testStr(t, got, "world")

	has := run(t, newProg([]Instruction{
		{Op: OpNewMap, A: 1},
		MakeUBX(OpLoadConst, 2, 0),
		MakeUBX(OpLoadConst, 3, 1),
		{Op: OpSetMap, A: 1, B: 2, C: 3},
		{Op: OpHasKeyMap, A: 0, B: 1, C: 2},
		{Op: OpHalt},
	}, hello, world))
	testBool(t, has, true)

	size := run(t, newProg([]Instruction{
		{Op: OpNewMap, A: 1},
		MakeUBX(OpLoadConst, 2, 0),
		MakeUBX(OpLoadConst, 3, 1),
		{Op: OpSetMap, A: 1, B: 2, C: 3},
		{Op: OpSetMap, A: 1, B: 2, C: 3}, // same key twice stays one entry
		{Op: OpSizeMap, A: 0, B: 1},
		{Op: OpHalt},
	}, hello, world))
	testInt(t, size, 1)
}

func TestStringMapRemove(t *testing.T) {
	hello := Constant{Kind: ConstValue, Value: Str("hello")}
	world := Constant{Kind: ConstValue, Value: Str("world")}

	has := run(t, newProg([]Instruction{
		{Op: OpNewMap, A: 1},
		MakeUBX(OpLoadConst, 2, 0),
		MakeUBX(OpLoadConst, 3, 1),
		{Op: OpSetMap, A: 1, B: 2, C: 3},
		{Op: OpRemoveMap, A: 1, B: 2},
		{Op: OpHasKeyMap, A: 0, B: 1, C: 2},
		{Op: OpHalt},
	}, hello, world))
	testBool(t, has, false)

	size := run(t, newProg([]Instruction{
		{Op: OpNewMap, A: 1},
		MakeUBX(OpLoadConst, 2, 0),
		MakeUBX(OpLoadConst, 3, 1),
		{Op: OpSetMap, A: 1, B: 2, C: 3},
		{Op: OpRemoveMap, A: 1, B: 2},
		{Op: OpSizeMap, A: 0, B: 1},
		{Op: OpHalt},
	}, hello, world))
	testInt(t, size, 0)
}

func TestStringSetOps(t *testing.T) {
	apple := Constant{Kind: ConstValue, Value: Str("apple")}
	banana := Constant{Kind: ConstValue, Value: Str("banana")}
	cherry := Constant{Kind: ConstValue, Value: Str("cherry")}

	// apple added twice still counts once
	size := run(t, newProg([]Instruction{
		{Op: OpNewSet, A: 1},
		MakeUBX(OpLoadConst, 2, 0),
		{Op: OpAddSet, A: 1, B: 2},
		MakeUBX(OpLoadConst, 2, 1),
		{Op: OpAddSet, A: 1, B: 2},
		MakeUBX(OpLoadConst, 2, 0),
		{Op: OpAddSet, A: 1, B: 2},
		{Op: OpSizeSet, A: 0, B: 1},
		{Op: OpHalt},
	}, apple, banana))
	testInt(t, size, 2)

	hasApple := run(t, newProg([]Instruction{
		{Op: OpNewSet, A: 1},
		MakeUBX(OpLoadConst, 2, 0),
		{Op: OpAddSet, A: 1, B: 2},
		{Op: OpHasSet, A: 0, B: 1, C: 2},
		{Op: OpHalt},
	}, apple))
	testBool(t, hasApple, true)

	hasCherry := run(t, newProg([]Instruction{
		{Op: OpNewSet, A: 1},
		MakeUBX(OpLoadConst, 2, 0),
		{Op: OpAddSet, A: 1, B: 2},
		MakeUBX(OpLoadConst, 3, 1),
		{Op: OpHasSet, A: 0, B: 1, C: 3},
		{Op: OpHalt},
	}, apple, cherry))
	testBool(t, hasCherry, false)
}

func TestStringSetRemove(t *testing.T) {
	apple := Constant{Kind: ConstValue, Value: Str("apple")}
	banana := Constant{Kind: ConstValue, Value: Str("banana")}

	size := run(t, newProg([]Instruction{
		{Op: OpNewSet, A: 1},
		MakeUBX(OpLoadConst, 2, 0),
		{Op: OpAddSet, A: 1, B: 2},
		MakeUBX(OpLoadConst, 3, 1),
		{Op: OpAddSet, A: 1, B: 3},
		{Op: OpRemoveSet, A: 1, B: 2},
		{Op: OpSizeSet, A: 0, B: 1},
		{Op: OpHalt},
	}, apple, banana))
	testInt(t, size, 1)
}

func TestIntMapOps(t *testing.T) {
	got := run(t, newProg([]Instruction{
		{Op: OpNewIntMap, A: 1},
		MakeSBX(OpLoadKInt16, 2, 7),
		MakeSBX(OpLoadKInt16, 3, 42),
		{Op: OpSetIntMap, A: 1, B: 2, C: 3},
		{Op: OpGetIntMap, A: 0, B: 1, C: 2},
		{Op: OpHalt},
	}))
	testInt(t, got, 42)

	missing := run(t, newProg([]Instruction{
		{Op: OpNewIntMap, A: 1},
		MakeSBX(OpLoadKInt16, 2, 7),
		{Op: OpGetIntMap, A: 0, B: 1, C: 2},
		{Op: OpHalt},
	}))
	if !missing.IsNull() {
		t.Errorf("expected null for missing key, got %s", missing.Inspect())
	}

	size := run(t, newProg([]Instruction{
		{Op: OpNewIntMap, A: 1},
		MakeSBX(OpLoadKInt16, 2, 7),
		MakeSBX(OpLoadKInt16, 3, 42),
		{Op: OpSetIntMap, A: 1, B: 2, C: 3},
		{Op: OpRemoveIntMap, A: 1, B: 2},
		{Op: OpSizeIntMap, A: 0, B: 1},
		{Op: OpHalt},
	}))
	testInt(t, size, 0)
}

func TestIntSetOps(t *testing.T) {
	size := run(t, newProg([]Instruction{
		{Op: OpNewIntSet, A: 1},
		MakeSBX(OpLoadKInt16, 2, 1),
		{Op: OpAddIntSet, A: 1, B: 2},
		MakeSBX(OpLoadKInt16, 2, 2),
		{Op: OpAddIntSet, A: 1, B: 2},
		MakeSBX(OpLoadKInt16, 2, 1), // duplicate
		{Op: OpAddIntSet, A: 1, B: 2},
		{Op: OpSizeIntSet, A: 0, B: 1},
		{Op: OpHalt},
	}))
	testInt(t, size, 2)

	has := run(t, newProg([]Instruction{
		{Op: OpNewIntSet, A: 1},
		MakeSBX(OpLoadKInt16, 2, 1),
		{Op: OpAddIntSet, A: 1, B: 2},
		{Op: OpRemoveIntSet, A: 1, B: 2},
		{Op: OpHasIntSet, A: 0, B: 1, C: 2},
		{Op: OpHalt},
	}))
	testBool(t, has, false)
}

func TestLambdaCapture(t *testing.T) {
	result := run(t, newProg([]Instruction{
		MakeSBX(OpLoadKInt16, 2, 100), // capture source at dest+1
		{Op: OpNewLambda, A: 1, B: 0, C: 1},
		MakeSBX(OpLoadKInt16, 3, 5),
		{Op: OpInvokeLambda, A: 3, B: 1, C: 1},
		{Op: OpHalt},
		// body at 5: r1 = param, r2 = capture
		{Op: OpAddInt, A: 3, B: 1, C: 2},
		{Op: OpReturn, A: 3},
	}, Constant{Kind: ConstFunction, Function: &FunctionMeta{
		Name: "addCap", ParamCount: 1, RegisterCount: 8, CodeIndex: 5,
	}}))
	testInt(t, result, 105)
}

func TestLambdaArityFault(t *testing.T) {
	runExpectFault(t, newProg([]Instruction{
		{Op: OpNewLambda, A: 1, B: 0, C: 0},
		{Op: OpInvokeLambda, A: 2, B: 1, C: 2}, // body wants 1 arg
		{Op: OpHalt},
		{Op: OpReturn, A: 1},
	}, Constant{Kind: ConstFunction, Function: &FunctionMeta{
		Name: "one", ParamCount: 1, RegisterCount: 4, CodeIndex: 3,
	}}), FaultBadOpcode)
}

func TestExternCall(t *testing.T) {
	prog := newProg([]Instruction{
		MakeSBX(OpLoadKInt16, 1, 21),
		{Op: OpCallExtern, A: 1, B: 0, C: 1},
		{Op: OpMove, A: 0, B: 1},
		{Op: OpHalt},
	}, Constant{Kind: ConstValue, Value: Str("double")})

	m := New(prog, nil)
	m.Externs().Register("double", func(args []Value) (Value, error) {
		return Int(args[0].Int() * 2), nil
	})
	result, err := m.Run()
	if err != nil {
		t.Fatalf("runtime error: %s", err)
	}
	testInt(t, result, 42)
}

func TestUnknownExternFault(t *testing.T) {
	runExpectFault(t, newProg([]Instruction{
		{Op: OpCallExtern, A: 1, B: 0, C: 0},
		{Op: OpHalt},
	}, Constant{Kind: ConstValue, Value: Str("no_such_fn")}), FaultBadExtern)
}

func TestPrintlnWritesOutput(t *testing.T) {
	prog := newProg([]Instruction{
		MakeUBX(OpLoadConst, 1, 0),
		{Op: OpCallExtern, A: 1, B: 1, C: 1},
		{Op: OpHalt},
	}, Constant{Kind: ConstValue, Value: Str("hello")},
		Constant{Kind: ConstValue, Value: Str("println")})

	m := New(prog, nil)
	var out bytes.Buffer
	m.SetOutput(&out)
	if _, err := m.Run(); err != nil {
		t.Fatalf("runtime error: %s", err)
	}
	if out.String() != "hello\n" {
		t.Errorf("wrong output. got=%q, want=%q", out.String(), "hello\n")
	}
}

func TestAsyncCallAndAwait(t *testing.T) {
	prog := newProg([]Instruction{
		MakeSBX(OpLoadKInt16, 2, 21),
		{Op: OpAsyncCall, A: 1, B: 0, C: 1},
		{Op: OpAwait, A: 0, B: 1},
		{Op: OpHalt},
		// work(x) at 4
		{Op: OpAddInt, A: 2, B: 1, C: 1},
		{Op: OpReturn, A: 2},
	}, Constant{Kind: ConstFunction, Function: &FunctionMeta{
		Name: "work", ParamCount: 1, RegisterCount: 8, CodeIndex: 4,
	}})

	m := New(prog, nil)
	defer m.Close()
	result, err := m.Run()
	if err != nil {
		t.Fatalf("runtime error: %s", err)
	}
	testInt(t, result, 42)
}

func TestAwaitPassThrough(t *testing.T) {
	result := run(t, newProg([]Instruction{
		MakeSBX(OpLoadKInt16, 1, 42),
		{Op: OpAwait, A: 0, B: 1},
		{Op: OpHalt},
	}))
	testInt(t, result, 42)
}

// A fault inside an async body is recorded on the task and re-raised in the
// awaiting interpreter, not swallowed.
func TestAsyncFaultPropagatesAtAwait(t *testing.T) {
	prog := newProg([]Instruction{
		{Op: OpAsyncCall, A: 1, B: 0, C: 0},
		{Op: OpAwait, A: 0, B: 1},
		{Op: OpHalt},
		// body at 3: divides by zero
		MakeSBX(OpLoadKInt16, 1, 1),
		MakeSBX(OpLoadKInt16, 2, 0),
		{Op: OpDivInt, A: 3, B: 1, C: 2},
		{Op: OpReturn, A: 3},
	}, Constant{Kind: ConstFunction, Function: &FunctionMeta{
		Name: "boom", RegisterCount: 8, CodeIndex: 3,
	}})

	m := New(prog, nil)
	defer m.Close()
	_, err := m.Run()
	var fault *Fault
	if !errors.As(err, &fault) || fault.Kind != FaultDivByZero {
		t.Fatalf("expected div-by-zero fault from awaited task, got %v", err)
	}
}

// Await is idempotent: two awaits on the same future see the same result.
func TestAwaitIdempotent(t *testing.T) {
	prog := newProg([]Instruction{
		{Op: OpAsyncCall, A: 1, B: 0, C: 0},
		{Op: OpAwait, A: 2, B: 1},
		{Op: OpAwait, A: 3, B: 1},
		{Op: OpAddInt, A: 0, B: 2, C: 3},
		{Op: OpHalt},
		// body at 5
		MakeSBX(OpLoadKInt16, 1, 21),
		{Op: OpReturn, A: 1},
	}, Constant{Kind: ConstFunction, Function: &FunctionMeta{
		Name: "value", RegisterCount: 4, CodeIndex: 5,
	}})

	m := New(prog, nil)
	defer m.Close()
	result, err := m.Run()
	if err != nil {
		t.Fatalf("runtime error: %s", err)
	}
	testInt(t, result, 42)
}

func TestAsyncSharesGlobals(t *testing.T) {
	prog := newProg([]Instruction{
		{Op: OpAsyncCall, A: 1, B: 0, C: 0},
		{Op: OpAwait, A: 2, B: 1},
		MakeUBX(OpGetGlobal, 0, 0),
		{Op: OpHalt},
		// body at 4: globals[0] = 7
		MakeSBX(OpLoadKInt16, 1, 7),
		MakeUBX(OpSetGlobal, 1, 0),
		{Op: OpReturn, A: 1},
	}, Constant{Kind: ConstFunction, Function: &FunctionMeta{
		Name: "setter", RegisterCount: 4, CodeIndex: 4,
	}})
	prog.GlobalCount = 1

	m := New(prog, nil)
	defer m.Close()
	result, err := m.Run()
	if err != nil {
		t.Fatalf("runtime error: %s", err)
	}
	testInt(t, result, 7)
}

func TestConversions(t *testing.T) {
	result := run(t, newProg([]Instruction{
		MakeSBX(OpLoadKInt16, 1, 3),
		{Op: OpIntToDouble, A: 2, B: 1},
		{Op: OpDoubleToInt, A: 0, B: 2},
		{Op: OpHalt},
	}))
	testInt(t, result, 3)

	str := run(t, newProg([]Instruction{
		MakeSBX(OpLoadKInt16, 1, -17),
		{Op: OpIntToString, A: 0, B: 1},
		{Op: OpHalt},
	}))
	testStr(t, str, "-17")
}

func TestBadConstantReferenceFault(t *testing.T) {
	runExpectFault(t, newProg([]Instruction{
		MakeUBX(OpLoadConst, 0, 9),
		{Op: OpHalt},
	}), FaultBadConstant)
}

func TestRegisterOutOfRangeFault(t *testing.T) {
	prog := newProg([]Instruction{
		{Op: OpCall, A: 1, B: 0, C: 0},
		{Op: OpHalt},
		// tiny frame at 2: touches r7 with only 4 registers
		{Op: OpMove, A: 7, B: 0},
		{Op: OpReturn, A: 0},
	}, Constant{Kind: ConstFunction, Function: &FunctionMeta{
		Name: "tiny", RegisterCount: 4, CodeIndex: 2,
	}})
	runExpectFault(t, prog, FaultBadRegister)
}
