package vm

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// ExternFunc is a host-provided callable referenced by name from bytecode
// via CALL_EXTERN. The args slice is owned by the callee for the duration of
// the call only.
type ExternFunc func(args []Value) (Value, error)

// Externs is the extern-function registry, shared between the main
// interpreter and async interpreters. Registration after execution has
// started is allowed, hence the lock.
type Externs struct {
	mu  sync.RWMutex
	fns map[string]ExternFunc
}

func NewExterns() *Externs {
	return &Externs{fns: make(map[string]ExternFunc)}
}

// Register binds a host function under name, replacing any previous binding.
func (e *Externs) Register(name string, fn ExternFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fns[name] = fn
}

func (e *Externs) Lookup(name string) (ExternFunc, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	fn, ok := e.fns[name]
	return fn, ok
}

// RegisterBuiltins installs the standard host functions. Output goes through
// w so a debug session can redirect it into DAP output events.
func (e *Externs) RegisterBuiltins(w io.Writer) {
	e.Register("print", func(args []Value) (Value, error) {
		for i, a := range args {
			if i > 0 {
				fmt.Fprint(w, " ")
			}
			fmt.Fprint(w, externDisplay(a))
		}
		return Null(), nil
	})
	e.Register("println", func(args []Value) (Value, error) {
		for i, a := range args {
			if i > 0 {
				fmt.Fprint(w, " ")
			}
			fmt.Fprint(w, externDisplay(a))
		}
		fmt.Fprintln(w)
		return Null(), nil
	})
	e.Register("clock_ms", func(args []Value) (Value, error) {
		return Int(int32(time.Now().UnixMilli() & 0x7fffffff)), nil
	})
}

// externDisplay is Inspect without string quoting, matching what print
// should emit for user-facing output.
func externDisplay(v Value) string {
	if v.Kind() == KindString {
		return v.Str()
	}
	return v.Inspect()
}
