// Package velox is the high-level embedding API: load a bytecode document,
// run it, bind host functions, and optionally expose a debug server.
package velox

import (
	"fmt"
	"os"

	"github.com/veloxvm/velox/internal/config"
	"github.com/veloxvm/velox/internal/dap"
	"github.com/veloxvm/velox/internal/vm"
)

// VM wraps the interpreter for host applications.
type VM struct {
	cfg     *config.Config
	prog    *vm.Program
	machine *vm.VM
	server  *dap.Server
}

// Option configures a VM at construction.
type Option func(*VM)

// WithConfig overrides the discovered configuration.
func WithConfig(cfg *config.Config) Option {
	return func(v *VM) { v.cfg = cfg }
}

// New creates an empty VM; load a program before running.
func New(opts ...Option) *VM {
	v := &VM{cfg: config.Discover()}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// LoadBytecode loads a JSON bytecode document.
func (v *VM) LoadBytecode(data []byte) error {
	prog, err := vm.Load(data)
	if err != nil {
		return err
	}
	v.prog = prog
	v.machine = vm.New(prog, v.cfg)
	return nil
}

// LoadFile loads a bytecode document from disk.
func (v *VM) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return v.LoadBytecode(data)
}

// Bind registers a host function callable from bytecode via CALL_EXTERN.
// Must be called before Run; bindings replace builtins of the same name.
func (v *VM) Bind(name string, fn func(args []vm.Value) (vm.Value, error)) error {
	if v.machine == nil {
		return fmt.Errorf("no program loaded")
	}
	v.machine.Externs().Register(name, fn)
	return nil
}

// Run executes the loaded program to completion and returns its result.
func (v *VM) Run() (vm.Value, error) {
	if v.machine == nil {
		return vm.Null(), fmt.Errorf("no program loaded")
	}
	return v.machine.Run()
}

// Pause requests a cooperative pause of a running program.
func (v *VM) Pause() {
	if v.machine != nil {
		v.machine.Pause()
	}
}

// Resume releases a paused program.
func (v *VM) Resume() {
	if v.machine != nil {
		v.machine.Resume()
	}
}

// LastResult returns the result recorded by the last Run.
func (v *VM) LastResult() vm.Value {
	if v.machine == nil {
		return vm.Null()
	}
	return v.machine.Result()
}

// StateDump renders the interpreter state for diagnostics.
func (v *VM) StateDump() string {
	if v.machine == nil {
		return "<no program>"
	}
	return v.machine.StateDump()
}

// Disassemble returns a listing of the loaded program.
func (v *VM) Disassemble(name string) (string, error) {
	if v.prog == nil {
		return "", fmt.Errorf("no program loaded")
	}
	return vm.Disassemble(v.prog, name), nil
}

// StartDebugServer exposes the loaded program to DAP clients on port.
// Each attaching client debugs its own interpreter instance; onConnect,
// when non-nil, receives the running connection count per attach.
func (v *VM) StartDebugServer(port int, onConnect func(count int)) error {
	if v.prog == nil {
		return fmt.Errorf("no program loaded")
	}
	if v.server != nil {
		return fmt.Errorf("debug server already running")
	}
	server := dap.NewServer(v.prog, v.cfg)
	server.OnConnect = onConnect
	if err := server.Listen(port); err != nil {
		return err
	}
	v.server = server
	return nil
}

// StopDebugServer shuts the debug server down, waiting for sessions.
func (v *VM) StopDebugServer() error {
	if v.server == nil {
		return nil
	}
	err := v.server.Close()
	v.server = nil
	return err
}

// Close joins outstanding async tasks and stops the debug server.
func (v *VM) Close() error {
	if v.machine != nil {
		v.machine.Close()
	}
	return v.StopDebugServer()
}
