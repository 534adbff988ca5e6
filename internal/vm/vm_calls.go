package vm

// Call protocol. CALL copies numArgs contiguous caller registers starting at
// operand a into callee registers 1..N; register 0 of the callee frame is
// reserved for the value its RETURN writes back into the caller. The caller
// resumes at the instruction after the call (its IP was advanced by the
// fetch step before dispatch).

// opCall: a = argument base, b = function constant index, c = argument count
func (m *VM) opCall(ins Instruction, f *Frame) dispatchResult {
	meta, err := m.prog.Function(int(ins.B))
	if err != nil {
		panic(err)
	}
	m.checkFrameDepth()

	callee := newFrame(meta.RegisterCount, meta.CodeIndex, int(ins.B))
	numArgs := int(ins.C)
	for i := 0; i < numArgs; i++ {
		callee.setReg(byte(i+1), f.reg(ins.A+byte(i)))
	}
	m.frames = append(m.frames, callee)
	return resFrameChanged
}

// opReturn: capture r[a], pop the frame, deliver into the caller's r0 or
// record the overall result when the stack empties.
func (m *VM) opReturn(ins Instruction, f *Frame) dispatchResult {
	captured := f.reg(ins.A)
	m.frames = m.frames[:len(m.frames)-1]
	if len(m.frames) == 0 {
		m.result = captured
		m.halted = true
		return resHalted
	}
	m.frames[len(m.frames)-1].Registers[0] = captured
	return resFrameChanged
}

// opNewLambda: a = destination, b = function constant index, c = capture
// count. Captured values are read from the c registers following a at
// creation time.
func (m *VM) opNewLambda(ins Instruction, f *Frame) {
	meta, err := m.prog.Function(int(ins.B))
	if err != nil {
		panic(err)
	}
	captured := make([]Value, int(ins.C))
	for i := range captured {
		captured[i] = f.reg(ins.A + 1 + byte(i))
	}
	f.setReg(ins.A, lambdaVal(&Lambda{
		CodeIndex:     meta.CodeIndex,
		ParamCount:    meta.ParamCount,
		RegisterCount: meta.RegisterCount,
		Captured:      captured,
	}))
}

// opInvokeLambda: a = argument base, b = lambda register, c = argument
// count. Parameters land in callee registers 1..P, captured values in the
// registers immediately following them.
func (m *VM) opInvokeLambda(ins Instruction, f *Frame) dispatchResult {
	lam := f.reg(ins.B).Lambda()
	m.checkFrameDepth()

	callee := newFrame(lam.RegisterCount, lam.CodeIndex, lambdaFuncIndex)
	numArgs := int(ins.C)
	if checksEnabled && numArgs != lam.ParamCount {
		panic(faultf(FaultBadOpcode, "lambda expects %d arguments, got %d", lam.ParamCount, numArgs))
	}
	for i := 0; i < lam.ParamCount; i++ {
		callee.setReg(byte(i+1), f.reg(ins.A+byte(i)))
	}
	for i, cv := range lam.Captured {
		callee.setReg(byte(lam.ParamCount+1+i), cv)
	}
	m.frames = append(m.frames, callee)
	return resFrameChanged
}

// opAsyncCall: a = future destination, b = function constant index, c =
// argument count from r[a+1..]. The arguments are snapshotted, a fresh
// interpreter sharing globals and externs runs the function to completion
// on its own goroutine, and the future handle binds immediately. The
// current frame does not change.
func (m *VM) opAsyncCall(ins Instruction, f *Frame) {
	meta, err := m.prog.Function(int(ins.B))
	if err != nil {
		panic(err)
	}

	args := make([]Value, int(ins.C))
	for i := range args {
		args[i] = f.reg(ins.A + 1 + byte(i))
	}

	task := newTask()
	worker := m.spawn()
	m.tasks.add()
	go func() {
		defer m.tasks.done()
		result, err := worker.RunFunction(meta, args)
		if err != nil {
			if fault, ok := err.(*Fault); ok {
				task.complete(Null(), fault)
			} else {
				task.complete(Null(), faultf(FaultBadOpcode, "async task: %v", err))
			}
			m.log.Errorf("async task %s faulted: %v", task.ID, err)
			return
		}
		task.complete(result, nil)
	}()

	f.setReg(ins.A, futureVal(&Future{Task: task}))
}

// opAwait: non-futures pass through unchanged; futures block the calling
// thread until the task completes. A recorded task fault is re-raised here,
// in the awaiting thread.
func (m *VM) opAwait(ins Instruction, f *Frame) {
	v := f.reg(ins.B)
	if !v.IsFuture() {
		f.setReg(ins.A, v)
		return
	}
	result, fault := v.Future().Task.Await()
	if fault != nil {
		panic(fault)
	}
	f.setReg(ins.A, result)
}

// opCallExtern: a = destination and argument base, b = name constant index,
// c = argument count from r[a..]. The result overwrites r[a].
func (m *VM) opCallExtern(ins Instruction, f *Frame) {
	name := m.prog.constantValue(int(ins.B)).Str()
	fn, ok := m.externs.Lookup(name)
	if !ok {
		panic(faultf(FaultBadExtern, "%q", name))
	}

	args := make([]Value, int(ins.C))
	for i := range args {
		args[i] = f.reg(ins.A + byte(i))
	}
	result, err := fn(args)
	if err != nil {
		panic(faultf(FaultBadExtern, "%s: %v", name, err))
	}
	f.setReg(ins.A, result)
}
