package vm

// lambdaFuncIndex marks frames that execute a lambda or async body rather
// than a named function constant
const lambdaFuncIndex = -1

// Frame is one active call: a fixed-capacity register file sized by the
// callee's declared register count, the instruction pointer, and the
// constant-pool index of the executing function. Register 0 is reserved for
// the return value written by the callee's RETURN.
type Frame struct {
	Registers []Value
	IP        int
	FuncIndex int
}

func newFrame(registerCount, codeIndex, funcIndex int) *Frame {
	return &Frame{
		Registers: make([]Value, registerCount),
		IP:        codeIndex,
		FuncIndex: funcIndex,
	}
}

// reg reads register i, faulting on out-of-range access in checked builds.
func (f *Frame) reg(i byte) Value {
	if checksEnabled && int(i) >= len(f.Registers) {
		panic(faultf(FaultBadRegister, "r%d out of range (frame has %d registers)", i, len(f.Registers)))
	}
	return f.Registers[i]
}

// setReg writes register i.
func (f *Frame) setReg(i byte, v Value) {
	if checksEnabled && int(i) >= len(f.Registers) {
		panic(faultf(FaultBadRegister, "r%d out of range (frame has %d registers)", i, len(f.Registers)))
	}
	f.Registers[i] = v
}
