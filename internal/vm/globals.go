package vm

import "sync"

// Globals is the global-variable table shared between the main interpreter
// and every async interpreter it spawns. Every read and write takes the
// mutex; that single critical section per access is the only cross-thread
// ordering guarantee the VM gives for globals.
type Globals struct {
	mu    sync.RWMutex
	slots []Value
}

func NewGlobals(count int) *Globals {
	return &Globals{slots: make([]Value, count)}
}

func (g *Globals) Get(i int) Value {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if checksEnabled && (i < 0 || i >= len(g.slots)) {
		panic(faultf(FaultBadIndex, "global %d out of range (count %d)", i, len(g.slots)))
	}
	return g.slots[i]
}

func (g *Globals) Set(i int, v Value) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if checksEnabled && (i < 0 || i >= len(g.slots)) {
		panic(faultf(FaultBadIndex, "global %d out of range (count %d)", i, len(g.slots)))
	}
	g.slots[i] = v
}

// Snapshot copies the table for state dumps and the DAP variables view.
func (g *Globals) Snapshot() []Value {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Value, len(g.slots))
	copy(out, g.slots)
	return out
}
