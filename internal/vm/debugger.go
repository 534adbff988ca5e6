package vm

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
)

// StepMode controls when execution next pauses
type StepMode int

const (
	StepNone StepMode = iota
	StepIn
	StepOver
	StepOut
)

// Breakpoint is a source-line request resolved to an instruction index via
// the source map. An unresolvable request yields Verified=false with a
// human-readable reason; that is not an error.
type Breakpoint struct {
	ID          int
	Instruction int
	Line        int
	File        int
	Enabled     bool
	Condition   string
	Verified    bool
	Message     string
}

// Debugger is the debug state consulted by the interpreter on every
// instruction: the breakpoint table, the stepping state machine and the
// source-map lookups. It is written by the protocol-handling goroutine and
// read by the interpreter goroutine, so every access takes the mutex.
type Debugger struct {
	mu sync.Mutex

	info *DebugInfo

	breakpoints map[int]*Breakpoint // instruction index -> breakpoint
	nextBPID    int

	mode StepMode

	// last stop position; a fresh step with no recorded position breaks
	// immediately
	hasLast  bool
	lastLine int
	lastFile int

	stepOverDepth int
	stepOutDepth  int
}

func NewDebugger(info *DebugInfo) *Debugger {
	return &Debugger{
		info:        info,
		breakpoints: make(map[int]*Breakpoint),
		nextBPID:    1,
	}
}

// Info returns the read-only debug tables.
func (d *Debugger) Info() *DebugInfo { return d.info }

// ResolveFile matches a client path to a file index: exact normalized
// match, then suffix match in either direction, then the sole file when
// only one exists.
func (d *Debugger) ResolveFile(path string) (int, bool) {
	if d.info == nil {
		return 0, false
	}
	norm := filepath.Clean(path)
	for i, f := range d.info.Files {
		if filepath.Clean(f.Path) == norm {
			return i, true
		}
	}
	for i, f := range d.info.Files {
		fp := filepath.Clean(f.Path)
		if strings.HasSuffix(fp, norm) || strings.HasSuffix(norm, fp) {
			return i, true
		}
	}
	if len(d.info.Files) == 1 {
		return 0, true
	}
	return 0, false
}

// SetBreakpoints replaces all breakpoints for path with the given lines and
// returns the resulting table entries, verified or not.
func (d *Debugger) SetBreakpoints(path string, lines []int) []*Breakpoint {
	d.mu.Lock()
	defer d.mu.Unlock()

	fileIdx, fileOK := d.ResolveFile(path)

	// drop previous breakpoints for this file
	if fileOK {
		for ins, bp := range d.breakpoints {
			if bp.File == fileIdx {
				delete(d.breakpoints, ins)
			}
		}
	}

	out := make([]*Breakpoint, 0, len(lines))
	for _, line := range lines {
		bp := &Breakpoint{ID: d.nextBPID, Line: line, Enabled: true}
		d.nextBPID++
		if !fileOK {
			bp.Message = fmt.Sprintf("cannot resolve source file %q", path)
		} else if ins, ok := d.info.InstructionForLine(line, fileIdx); ok {
			bp.Instruction = ins
			bp.File = fileIdx
			bp.Verified = true
			d.breakpoints[ins] = bp
		} else {
			bp.Message = fmt.Sprintf("no instruction mapped to line %d", line)
		}
		out = append(out, bp)
	}
	return out
}

// SetStepIn arms a single-step.
func (d *Debugger) SetStepIn() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mode = StepIn
}

// SetStepOver arms a step that skips deeper calls, recorded at depth.
func (d *Debugger) SetStepOver(depth int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mode = StepOver
	d.stepOverDepth = depth
}

// SetStepOut arms a step that runs until the current call returns.
func (d *Debugger) SetStepOut(depth int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mode = StepOut
	d.stepOutDepth = depth
}

// ClearStep returns the state machine to free running.
func (d *Debugger) ClearStep() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mode = StepNone
}

// CheckBreak decides whether the interpreter should stop before executing
// the instruction at ip with the given call depth. Breakpoints win over
// step state; a stop records the position so the next step compares
// against it.
func (d *Debugger) CheckBreak(ip, depth int) (StopReason, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if bp, ok := d.breakpoints[ip]; ok && bp.Enabled {
		// a breakpoint hit on the line we are already stopped at would
		// retrigger forever; the recorded position guards against that
		if entry, mapped := d.info.Lookup(ip); mapped {
			if d.hasLast && entry.Line == d.lastLine && entry.File == d.lastFile {
				// fall through to step logic
			} else {
				d.recordStop(ip)
				d.mode = StepNone
				return StopBreakpoint, true
			}
		} else {
			return StopBreakpoint, true
		}
	}

	if d.mode == StepNone {
		d.forgetIfMoved(ip)
		return "", false
	}

	entry, ok := d.info.Lookup(ip)
	if !ok {
		return "", false
	}

	if !d.hasLast {
		d.recordStop(ip)
		d.mode = StepNone
		return StopStep, true
	}

	differentLine := entry.Line != d.lastLine || entry.File != d.lastFile

	switch d.mode {
	case StepIn:
		if differentLine {
			d.recordStop(ip)
			d.mode = StepNone
			return StopStep, true
		}
	case StepOver:
		if differentLine && depth <= d.stepOverDepth {
			d.recordStop(ip)
			d.mode = StepNone
			return StopStep, true
		}
	case StepOut:
		if depth < d.stepOutDepth {
			d.recordStop(ip)
			d.mode = StepNone
			return StopStep, true
		}
	}
	return "", false
}

// recordStop stores the source position of ip as the step-from point.
// Callers hold the mutex.
func (d *Debugger) recordStop(ip int) {
	if entry, ok := d.info.Lookup(ip); ok {
		d.hasLast = true
		d.lastLine = entry.Line
		d.lastFile = entry.File
	}
}

// forgetIfMoved clears the recorded position once execution has left the
// stop line, so re-entering it hits breakpoints again. Callers hold the
// mutex.
func (d *Debugger) forgetIfMoved(ip int) {
	if !d.hasLast {
		return
	}
	entry, ok := d.info.Lookup(ip)
	if !ok {
		return
	}
	if entry.Line != d.lastLine || entry.File != d.lastFile {
		d.hasLast = false
	}
}

// RecordPosition notes the current position without a step decision, used
// when the session stops for external reasons (entry, pause).
func (d *Debugger) RecordPosition(ip int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.recordStop(ip)
}

// Breakpoints returns the live table, for tests and diagnostics.
func (d *Debugger) Breakpoints() []*Breakpoint {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Breakpoint, 0, len(d.breakpoints))
	for _, bp := range d.breakpoints {
		out = append(out, bp)
	}
	return out
}
