package vm

import (
	"io"
	"os"
	"sync"

	"github.com/tliron/commonlog"

	"github.com/veloxvm/velox/internal/config"
)

// StopReason describes why execution paused for the debugger
type StopReason string

const (
	StopEntry      StopReason = "entry"
	StopBreakpoint StopReason = "breakpoint"
	StopStep       StopReason = "step"
	StopPause      StopReason = "pause"
)

// VM is one interpreter: a call stack executing a loaded Program. The
// constant pool, globals table, extern registry and task registry are shared
// with async interpreters spawned by ASYNC_CALL; everything else is owned by
// this instance and must not be touched from other goroutines while Run is
// active, except through Pause/Resume.
type VM struct {
	prog    *Program
	cfg     *config.Config
	globals *Globals
	externs *Externs
	tasks   *TaskRegistry

	frames []*Frame
	result Value
	halted bool

	out io.Writer
	log commonlog.Logger

	debugger *Debugger

	// OnStop is invoked on the interpreter goroutine right before it blocks
	// on a debug stop. The DAP handler uses it to emit stopped events.
	OnStop func(reason StopReason)

	// Cooperative pause: the interpreter waits on the condvar at the next
	// instruction boundary after Pause, and resumes when Resume signals.
	pauseMu       sync.Mutex
	pauseCond     *sync.Cond
	paused        bool
	pauseExternal bool
}

// New creates an interpreter for prog with fresh shared state.
func New(prog *Program, cfg *config.Config) *VM {
	if cfg == nil {
		cfg = config.Default()
	}
	m := &VM{
		prog:    prog,
		cfg:     cfg,
		globals: NewGlobals(prog.GlobalCount),
		externs: NewExterns(),
		tasks:   NewTaskRegistry(),
		out:     os.Stdout,
		log:     commonlog.GetLogger("velox.vm"),
	}
	m.pauseCond = sync.NewCond(&m.pauseMu)
	m.externs.RegisterBuiltins(m.out)
	return m
}

// spawn creates the independent interpreter behind an ASYNC_CALL: a new
// call stack sharing this VM's program, globals, externs and task registry.
// Async interpreters run undebugged.
func (m *VM) spawn() *VM {
	child := &VM{
		prog:    m.prog,
		cfg:     m.cfg,
		globals: m.globals,
		externs: m.externs,
		tasks:   m.tasks,
		out:     m.out,
		log:     m.log,
	}
	child.pauseCond = sync.NewCond(&child.pauseMu)
	return child
}

// SetOutput redirects extern print output, re-registering the builtins so
// they write to w.
func (m *VM) SetOutput(w io.Writer) {
	m.out = w
	m.externs.RegisterBuiltins(w)
}

// Externs exposes the registry for host bindings.
func (m *VM) Externs() *Externs { return m.externs }

// Globals exposes the shared global table.
func (m *VM) Globals() *Globals { return m.globals }

// Program returns the loaded program.
func (m *VM) Program() *Program { return m.prog }

// EnableDebugger attaches a debug state; must happen before Run.
func (m *VM) EnableDebugger() *Debugger {
	if m.debugger == nil {
		m.debugger = NewDebugger(m.prog.Debug)
	}
	return m.debugger
}

// Debugger returns the attached debug state, nil when not debugging.
func (m *VM) Debugger() *Debugger { return m.debugger }

// Result returns the overall result recorded by the last Run.
func (m *VM) Result() Value { return m.result }

// Close joins outstanding async tasks. In-flight work is completed, not
// cancelled.
func (m *VM) Close() {
	m.tasks.Wait()
}

// Pause requests a cooperative pause. The interpreter stops at the next
// instruction boundary it reaches; resumption latency is bounded by Resume.
func (m *VM) Pause() {
	m.pauseMu.Lock()
	defer m.pauseMu.Unlock()
	m.paused = true
	m.pauseExternal = true
}

// Resume releases a paused interpreter.
func (m *VM) Resume() {
	m.pauseMu.Lock()
	defer m.pauseMu.Unlock()
	m.paused = false
	m.pauseCond.Broadcast()
}

// Paused reports whether the interpreter is currently held.
func (m *VM) Paused() bool {
	m.pauseMu.Lock()
	defer m.pauseMu.Unlock()
	return m.paused
}

// pausePoint blocks while paused. Called once per instruction; an
// externally requested pause reports StopPause through OnStop before
// blocking.
func (m *VM) pausePoint() {
	m.pauseMu.Lock()
	if !m.paused {
		m.pauseMu.Unlock()
		return
	}
	external := m.pauseExternal
	m.pauseExternal = false
	m.pauseMu.Unlock()

	if external && m.OnStop != nil {
		m.OnStop(StopPause)
	}

	m.pauseMu.Lock()
	for m.paused {
		m.pauseCond.Wait()
	}
	m.pauseMu.Unlock()
}

// stopAndWait is the debug-stop path: mark paused, notify, block until the
// protocol thread resumes us.
func (m *VM) stopAndWait(reason StopReason) {
	m.pauseMu.Lock()
	m.paused = true
	m.pauseMu.Unlock()

	if m.OnStop != nil {
		m.OnStop(reason)
	}

	m.pauseMu.Lock()
	for m.paused {
		m.pauseCond.Wait()
	}
	m.pauseMu.Unlock()
}

// Depth returns the current call stack depth.
func (m *VM) Depth() int { return len(m.frames) }

// Frames returns the live call stack, outermost first. Meaningful only
// while the interpreter is paused.
func (m *VM) Frames() []*Frame { return m.frames }

// FrameName returns a display name for the frame at stack index i, using
// the constant pool's function metadata when the frame belongs to one.
func (m *VM) FrameName(i int) string {
	if i < 0 || i >= len(m.frames) {
		return "?"
	}
	f := m.frames[i]
	if i == 0 {
		return "main"
	}
	if f.FuncIndex >= 0 && f.FuncIndex < len(m.prog.Constants) {
		c := m.prog.Constants[f.FuncIndex]
		if c.Kind == ConstFunction && c.Function.Name != "" {
			return c.Function.Name
		}
	}
	return "lambda"
}

// CurrentIP returns the instruction pointer of the active frame.
func (m *VM) CurrentIP() int {
	if len(m.frames) == 0 {
		return -1
	}
	return m.frames[len(m.frames)-1].IP
}

// Run executes the program from its entry point to completion. Runtime
// faults raised by checked builds abort the run with the fault's state dump
// attached.
func (m *VM) Run() (result Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			fault, ok := r.(*Fault)
			if !ok {
				panic(r)
			}
			if fault.IP < 0 {
				fault.IP = m.CurrentIP()
			}
			fault.Dump = m.StateDump()
			err = fault
		}
	}()

	entry := newFrame(m.cfg.DefaultRegisterCount, m.prog.EntryPoint, lambdaFuncIndex)
	m.frames = []*Frame{entry}
	m.halted = false
	m.result = Null()

	// Fetch-decode-execute. Dispatch returns an explicit result so the loop
	// re-fetches the active frame after any stack-mutating opcode.
	for {
		frame := m.frames[len(m.frames)-1]
		ip := frame.IP

		if checksEnabled && (ip < 0 || ip >= len(m.prog.Instructions)) {
			panic(faultf(FaultBadIndex, "instruction pointer %d out of range", ip))
		}

		if m.debugger != nil {
			if reason, brk := m.debugger.CheckBreak(ip, len(m.frames)); brk {
				m.stopAndWait(reason)
			}
		}
		m.pausePoint()

		ins := m.prog.Instructions[ip]
		frame.IP = ip + 1

		switch m.execute(ins, frame, ip) {
		case resContinue:
			// next instruction in the same frame
		case resFrameChanged:
			if m.halted {
				return m.result, nil
			}
		case resHalted:
			return m.result, nil
		}
	}
}

// RunFunction executes a single function to completion on this VM with the
// given arguments in registers 1..len(args). Used for async task bodies.
func (m *VM) RunFunction(meta *FunctionMeta, args []Value) (result Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			fault, ok := r.(*Fault)
			if !ok {
				panic(r)
			}
			if fault.IP < 0 {
				fault.IP = m.CurrentIP()
			}
			fault.Dump = m.StateDump()
			err = fault
		}
	}()

	frame := newFrame(meta.RegisterCount, meta.CodeIndex, lambdaFuncIndex)
	for i, a := range args {
		if i+1 >= len(frame.Registers) {
			break
		}
		frame.Registers[i+1] = a
	}
	m.frames = []*Frame{frame}
	m.halted = false
	m.result = Null()

	for {
		f := m.frames[len(m.frames)-1]
		ip := f.IP
		if checksEnabled && (ip < 0 || ip >= len(m.prog.Instructions)) {
			panic(faultf(FaultBadIndex, "instruction pointer %d out of range", ip))
		}
		ins := m.prog.Instructions[ip]
		f.IP = ip + 1

		switch m.execute(ins, f, ip) {
		case resContinue:
		case resFrameChanged:
			if m.halted {
				return m.result, nil
			}
		case resHalted:
			return m.result, nil
		}
	}
}

// fault helpers used by dispatch

func (m *VM) checkFrameDepth() {
	if len(m.frames) >= m.cfg.MaxFrames {
		panic(faultf(FaultStackOverflow, "call depth exceeds %d frames", m.cfg.MaxFrames))
	}
}
