package dap

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/veloxvm/velox/internal/config"
	"github.com/veloxvm/velox/internal/vm"
)

// mainThreadID is the single interpreter thread a session reports
const mainThreadID = 1

// globalsReference is the variablesReference for the Globals scope;
// register scopes use frameRefBase plus the frame index
const (
	globalsReference = 1
	frameRefBase     = 1000
)

type sessionState int

const (
	stateUninitialized sessionState = iota
	stateInitialized
	stateLaunched
	stateRunning
	statePaused
	stateTerminated
)

// Session is one debugger client attached to one VM instance. Inbound
// requests are handled on the Serve goroutine; stopped events originate on
// the interpreter goroutine via the VM's OnStop callback.
type Session struct {
	ID  uuid.UUID
	ch  *Channel
	cfg *config.Config
	log commonlog.Logger

	mu           sync.Mutex
	state        sessionState
	seq          int
	prog         *vm.Program
	machine      *vm.VM
	stopOnEntry  bool
	entryPending bool // next pause stop is the stop-on-entry stop
	started      bool // interpreter goroutine started, at most once per session
	done         chan struct{}
}

// NewSession wraps a channel. prog may be nil when the client is expected
// to provide the program via uploadBytecode.
func NewSession(ch *Channel, prog *vm.Program, cfg *config.Config) *Session {
	if cfg == nil {
		cfg = config.Discover()
	}
	return &Session{
		ID:    uuid.New(),
		ch:    ch,
		cfg:   cfg,
		log:   commonlog.GetLogger("velox.dap"),
		prog:  prog,
		state: stateUninitialized,
		done:  make(chan struct{}),
	}
}

// Serve reads and dispatches messages until disconnect or transport EOF.
// A malformed message is logged and the session continues.
func (s *Session) Serve() error {
	s.log.Infof("session %s started", s.ID)
	for {
		payload, err := s.ch.ReadMessage()
		if err != nil {
			if err == io.EOF {
				s.log.Infof("session %s: transport closed", s.ID)
				return nil
			}
			s.log.Errorf("session %s: read error: %v", s.ID, err)
			return err
		}

		var msg Message
		if err := json.Unmarshal(payload, &msg); err != nil {
			s.log.Warningf("session %s: malformed message ignored: %v", s.ID, err)
			continue
		}
		if msg.Type != "request" {
			s.log.Warningf("session %s: ignoring non-request message type %q", s.ID, msg.Type)
			continue
		}

		if s.handleRequest(&msg) {
			return nil
		}
	}
}

// handleRequest dispatches one request and reports whether the session is
// over. Every request gets exactly one response.
func (s *Session) handleRequest(req *Message) (terminated bool) {
	switch req.Command {
	case "initialize":
		s.handleInitialize(req)
	case "launch":
		s.handleLaunch(req)
	case "configurationDone":
		s.respondSuccess(req, nil)
	case "setBreakpoints":
		s.handleSetBreakpoints(req)
	case "continue":
		s.handleContinue(req)
	case "next":
		s.handleNext(req)
	case "stepIn":
		s.handleStepIn(req)
	case "stepOut":
		s.handleStepOut(req)
	case "pause":
		s.handlePause(req)
	case "threads":
		s.respondSuccess(req, ThreadsResponseBody{Threads: []Thread{{ID: mainThreadID, Name: "main"}}})
	case "stackTrace":
		s.handleStackTrace(req)
	case "scopes":
		s.handleScopes(req)
	case "variables":
		s.handleVariables(req)
	case "evaluate":
		s.respondFailure(req, "evaluate is not supported")
	case "uploadBytecode":
		s.handleUploadBytecode(req)
	case "disconnect":
		s.respondSuccess(req, nil)
		s.emitEvent("terminated", nil)
		s.setState(stateTerminated)
		return true
	default:
		s.respondFailure(req, fmt.Sprintf("unsupported command %q", req.Command))
	}
	return false
}

// --- lifecycle requests ---

func (s *Session) handleInitialize(req *Message) {
	s.setState(stateInitialized)
	s.respondSuccess(req, Capabilities{SupportsConfigurationDoneRequest: true})
	s.emitEvent("initialized", nil)
}

func (s *Session) handleLaunch(req *Message) {
	var args LaunchArguments
	if len(req.Arguments) > 0 {
		if err := json.Unmarshal(req.Arguments, &args); err != nil {
			s.respondFailure(req, fmt.Sprintf("malformed launch arguments: %v", err))
			return
		}
	}

	if args.Program != "" {
		data, err := os.ReadFile(args.Program)
		if err != nil {
			s.respondFailure(req, fmt.Sprintf("cannot read program: %v", err))
			return
		}
		prog, err := vm.Load(data)
		if err != nil {
			s.respondFailure(req, fmt.Sprintf("cannot load program: %v", err))
			return
		}
		s.mu.Lock()
		s.prog = prog
		s.mu.Unlock()
	}

	s.mu.Lock()
	if s.prog == nil {
		s.mu.Unlock()
		s.respondFailure(req, "no program: launch with a program path or uploadBytecode first")
		return
	}
	s.stopOnEntry = args.StopOnEntry
	s.state = stateLaunched
	s.mu.Unlock()

	s.respondSuccess(req, nil)
	s.emitEvent("process", ProcessEventBody{
		Name:           args.Program,
		IsLocalProcess: true,
		StartMethod:    "launch",
	})
}

func (s *Session) handleUploadBytecode(req *Message) {
	var args UploadBytecodeArguments
	if len(req.Arguments) == 0 {
		s.respondFailure(req, "uploadBytecode: missing arguments")
		return
	}
	if err := json.Unmarshal(req.Arguments, &args); err != nil {
		s.respondFailure(req, fmt.Sprintf("uploadBytecode: malformed arguments: %v", err))
		return
	}
	if args.Bytecode == "" {
		s.respondFailure(req, "uploadBytecode: empty bytecode argument")
		return
	}
	prog, err := vm.Load([]byte(args.Bytecode))
	if err != nil {
		s.respondFailure(req, fmt.Sprintf("uploadBytecode: %v", err))
		return
	}

	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		s.respondFailure(req, "uploadBytecode: program already running")
		return
	}
	s.prog = prog
	s.machine = nil
	s.mu.Unlock()
	s.respondSuccess(req, nil)
}

// --- execution control ---

// ensureMachine builds the VM lazily so uploadBytecode can replace the
// pending program up to the first continue.
func (s *Session) ensureMachine() *vm.VM {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.machine == nil && s.prog != nil {
		machine := vm.New(s.prog, s.cfg)
		machine.SetOutput(&eventWriter{session: s, category: "stdout"})
		machine.EnableDebugger()
		machine.OnStop = s.onStop
		s.machine = machine
	}
	return s.machine
}

// startOnce launches the interpreter goroutine; subsequent calls only
// resume. Returns false when there is nothing to run.
func (s *Session) startOnce() bool {
	machine := s.ensureMachine()
	if machine == nil {
		return false
	}

	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		machine.Resume()
		return true
	}
	s.started = true
	stopOnEntry := s.stopOnEntry
	s.mu.Unlock()

	if stopOnEntry {
		s.mu.Lock()
		s.entryPending = true
		s.mu.Unlock()
		machine.Pause()
	}

	go func() {
		result, err := machine.Run()
		machine.Close()
		if err != nil {
			s.emitEvent("output", OutputEventBody{Category: "stderr", Output: err.Error() + "\n"})
			if fault, ok := err.(*vm.Fault); ok && fault.Dump != "" {
				s.emitEvent("output", OutputEventBody{Category: "stderr", Output: fault.Dump})
			}
		} else {
			s.emitEvent("output", OutputEventBody{Category: "stdout", Output: "result: " + result.Inspect() + "\n"})
		}
		s.setState(stateTerminated)
		s.emitEvent("terminated", nil)
		close(s.done)
	}()
	return true
}

func (s *Session) handleContinue(req *Message) {
	if !s.startOnce() {
		s.respondFailure(req, "no program loaded")
		return
	}
	s.setState(stateRunning)
	s.respondSuccess(req, ContinueResponseBody{AllThreadsContinued: true})
}

func (s *Session) handleNext(req *Message) {
	machine := s.ensureMachine()
	if machine == nil {
		s.respondFailure(req, "no program loaded")
		return
	}
	machine.Debugger().SetStepOver(machine.Depth())
	s.respondSuccess(req, nil)
	s.resumeOrStart()
}

func (s *Session) handleStepIn(req *Message) {
	machine := s.ensureMachine()
	if machine == nil {
		s.respondFailure(req, "no program loaded")
		return
	}
	machine.Debugger().SetStepIn()
	s.respondSuccess(req, nil)
	s.resumeOrStart()
}

func (s *Session) handleStepOut(req *Message) {
	machine := s.ensureMachine()
	if machine == nil {
		s.respondFailure(req, "no program loaded")
		return
	}
	machine.Debugger().SetStepOut(machine.Depth())
	s.respondSuccess(req, nil)
	s.resumeOrStart()
}

func (s *Session) resumeOrStart() {
	s.startOnce()
	s.setState(stateRunning)
	s.machineResume()
}

func (s *Session) machineResume() {
	s.mu.Lock()
	machine := s.machine
	s.mu.Unlock()
	if machine != nil {
		machine.Resume()
	}
}

func (s *Session) handlePause(req *Message) {
	s.mu.Lock()
	machine := s.machine
	s.mu.Unlock()
	if machine == nil {
		s.respondFailure(req, "no program running")
		return
	}
	machine.Pause()
	s.respondSuccess(req, nil)
}

// onStop runs on the interpreter goroutine right before it blocks.
func (s *Session) onStop(reason vm.StopReason) {
	s.mu.Lock()
	s.state = statePaused
	machine := s.machine
	if s.entryPending && reason == vm.StopPause {
		reason = vm.StopEntry
		s.entryPending = false
	}
	s.mu.Unlock()

	if machine != nil && machine.Debugger() != nil {
		machine.Debugger().RecordPosition(machine.CurrentIP())
	}
	s.emitEvent("stopped", StoppedEventBody{
		Reason:            string(reason),
		ThreadID:          mainThreadID,
		AllThreadsStopped: true,
	})
}

// --- breakpoints ---

func (s *Session) handleSetBreakpoints(req *Message) {
	var args SetBreakpointsArguments
	if err := json.Unmarshal(req.Arguments, &args); err != nil {
		s.respondFailure(req, fmt.Sprintf("malformed setBreakpoints arguments: %v", err))
		return
	}

	machine := s.ensureMachine()
	if machine == nil {
		s.respondFailure(req, "no program loaded")
		return
	}

	lines := make([]int, 0, len(args.Breakpoints)+len(args.Lines))
	for _, sb := range args.Breakpoints {
		lines = append(lines, sb.Line)
	}
	lines = append(lines, args.Lines...)

	resolved := machine.Debugger().SetBreakpoints(args.Source.Path, lines)
	body := SetBreakpointsResponseBody{Breakpoints: make([]Breakpoint, len(resolved))}
	for i, bp := range resolved {
		body.Breakpoints[i] = Breakpoint{
			ID:       bp.ID,
			Verified: bp.Verified,
			Message:  bp.Message,
			Line:     bp.Line,
			Source:   &Source{Path: args.Source.Path},
		}
	}
	s.respondSuccess(req, body)
}

// --- inspection ---

func (s *Session) handleStackTrace(req *Message) {
	machine := s.pausedMachine()
	if machine == nil {
		s.respondFailure(req, "interpreter is not paused")
		return
	}

	info := machine.Program().Debug
	frames := machine.Frames()
	body := StackTraceResponseBody{TotalFrames: len(frames)}

	// innermost first, per protocol
	for i := len(frames) - 1; i >= 0; i-- {
		f := frames[i]
		name := machine.FrameName(i)
		sf := StackFrame{ID: i, Name: name}
		if entry, ok := info.Lookup(f.IP); ok {
			sf.Line = entry.Line
			sf.Column = entry.Column
			if entry.File >= 0 && entry.File < len(info.Files) {
				sf.Source = &Source{Path: info.Files[entry.File].Path}
			}
		}
		body.StackFrames = append(body.StackFrames, sf)
	}
	s.respondSuccess(req, body)
}

func (s *Session) handleScopes(req *Message) {
	var args ScopesArguments
	if err := json.Unmarshal(req.Arguments, &args); err != nil {
		s.respondFailure(req, fmt.Sprintf("malformed scopes arguments: %v", err))
		return
	}
	s.respondSuccess(req, ScopesResponseBody{Scopes: []Scope{
		{Name: "Registers", VariablesReference: frameRefBase + args.FrameID},
		{Name: "Globals", VariablesReference: globalsReference, Expensive: true},
	}})
}

func (s *Session) handleVariables(req *Message) {
	var args VariablesArguments
	if err := json.Unmarshal(req.Arguments, &args); err != nil {
		s.respondFailure(req, fmt.Sprintf("malformed variables arguments: %v", err))
		return
	}

	machine := s.pausedMachine()
	if machine == nil {
		s.respondFailure(req, "interpreter is not paused")
		return
	}

	var body VariablesResponseBody
	if args.VariablesReference == globalsReference {
		for i, g := range machine.Globals().Snapshot() {
			if g.IsNull() {
				continue
			}
			body.Variables = append(body.Variables, Variable{
				Name:  fmt.Sprintf("g%d", i),
				Value: g.Inspect(),
				Type:  g.Kind().String(),
			})
		}
	} else {
		frameIdx := args.VariablesReference - frameRefBase
		frames := machine.Frames()
		if frameIdx < 0 || frameIdx >= len(frames) {
			s.respondFailure(req, fmt.Sprintf("unknown variables reference %d", args.VariablesReference))
			return
		}
		f := frames[frameIdx]
		named := map[int]string{}
		if info := machine.Program().Debug; info != nil {
			for _, vr := range info.VariablesAt(f.IP) {
				if vr.Storage == vm.StorageRegister {
					named[vr.Index] = vr.Name
				}
			}
		}
		for i, r := range f.Registers {
			if r.IsNull() {
				continue
			}
			name := fmt.Sprintf("r%d", i)
			if n, ok := named[i]; ok {
				name = fmt.Sprintf("%s (r%d)", n, i)
			}
			body.Variables = append(body.Variables, Variable{
				Name:  name,
				Value: r.Inspect(),
				Type:  r.Kind().String(),
			})
		}
	}
	s.respondSuccess(req, body)
}

// pausedMachine returns the VM only when it is safely inspectable.
func (s *Session) pausedMachine() *vm.VM {
	s.mu.Lock()
	machine := s.machine
	s.mu.Unlock()
	if machine == nil || !machine.Paused() {
		return nil
	}
	return machine
}

// --- plumbing ---

func (s *Session) setState(st sessionState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Session) nextSeq() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}

func (s *Session) respondSuccess(req *Message, body any) {
	s.send(&Message{
		Seq:        s.nextSeq(),
		Type:       "response",
		RequestSeq: req.Seq,
		Command:    req.Command,
		Success:    true,
		Body:       body,
	})
}

func (s *Session) respondFailure(req *Message, message string) {
	s.send(&Message{
		Seq:        s.nextSeq(),
		Type:       "response",
		RequestSeq: req.Seq,
		Command:    req.Command,
		Success:    false,
		ErrMessage: message,
	})
}

func (s *Session) emitEvent(event string, body any) {
	s.send(&Message{
		Seq:   s.nextSeq(),
		Type:  "event",
		Event: event,
		Body:  body,
	})
}

func (s *Session) send(msg *Message) {
	if err := s.ch.WriteMessage(msg); err != nil {
		s.log.Errorf("session %s: write failed: %v", s.ID, err)
	}
}

// eventWriter forwards interpreter output into DAP output events
type eventWriter struct {
	session  *Session
	category string
}

func (w *eventWriter) Write(p []byte) (int, error) {
	w.session.emitEvent("output", OutputEventBody{Category: w.category, Output: string(p)})
	return len(p), nil
}
