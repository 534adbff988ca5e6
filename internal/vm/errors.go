package vm

import (
	"errors"
	"fmt"
	"strings"
)

// Load errors are fatal: execution never starts.
var (
	ErrBadDocument   = errors.New("malformed bytecode document")
	ErrMissingField  = errors.New("missing required bytecode field")
	ErrBadEntryPoint = errors.New("entry point out of range")
)

// FaultKind classifies runtime faults raised by checked builds
type FaultKind uint8

const (
	FaultWrongType FaultKind = iota
	FaultBadRegister
	FaultBadConstant
	FaultBadIndex
	FaultDivByZero
	FaultBadField
	FaultStackOverflow
	FaultBadOpcode
	FaultBadExtern
)

var faultKindNames = map[FaultKind]string{
	FaultWrongType:     "wrong value type",
	FaultBadRegister:   "register out of range",
	FaultBadConstant:   "bad constant reference",
	FaultBadIndex:      "index out of range",
	FaultDivByZero:     "division by zero",
	FaultBadField:      "field out of range",
	FaultStackOverflow: "call stack overflow",
	FaultBadOpcode:     "illegal opcode",
	FaultBadExtern:     "unknown extern function",
}

// Fault is a typed runtime fault. In checked builds it aborts the current
// Run call and carries a full state dump (call stack, live registers, live
// globals) for diagnosis. Faults travel as panics inside the dispatch loop
// and are recovered at the Run boundary, the same way truncated-bytecode
// panics are handled.
type Fault struct {
	Kind    FaultKind
	Message string
	IP      int    // instruction index at the fault site, -1 if unknown
	Dump    string // filled in at the Run boundary
}

func (f *Fault) Error() string {
	name := faultKindNames[f.Kind]
	if f.IP >= 0 {
		return fmt.Sprintf("runtime fault at instruction %d: %s: %s", f.IP, name, f.Message)
	}
	return fmt.Sprintf("runtime fault: %s: %s", name, f.Message)
}

func faultf(kind FaultKind, format string, args ...any) *Fault {
	return &Fault{Kind: kind, Message: fmt.Sprintf(format, args...), IP: -1}
}

// StateDump renders the call stack, live registers and live globals.
// Attached to strict-mode faults and exposed through the embed API.
func (m *VM) StateDump() string {
	var sb strings.Builder

	sb.WriteString("=== call stack ===\n")
	for i := len(m.frames) - 1; i >= 0; i-- {
		f := m.frames[i]
		name := "<entry>"
		if f.FuncIndex >= 0 && f.FuncIndex < len(m.prog.Constants) {
			if c := m.prog.Constants[f.FuncIndex]; c.Kind == ConstFunction {
				name = c.Function.Name
			}
		} else if f.FuncIndex == lambdaFuncIndex {
			name = "<lambda>"
		}
		sb.WriteString(fmt.Sprintf("  #%d %s ip=%d\n", i, name, f.IP))
	}

	if len(m.frames) > 0 {
		sb.WriteString("=== registers (top frame) ===\n")
		top := m.frames[len(m.frames)-1]
		for i, r := range top.Registers {
			if r.IsNull() {
				continue
			}
			sb.WriteString(fmt.Sprintf("  r%-3d = %s\n", i, r.Inspect()))
		}
	}

	sb.WriteString("=== globals ===\n")
	for i, g := range m.globals.Snapshot() {
		if g.IsNull() {
			continue
		}
		sb.WriteString(fmt.Sprintf("  g%-3d = %s\n", i, g.Inspect()))
	}

	return sb.String()
}
