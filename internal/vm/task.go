package vm

import (
	"sync"

	"github.com/google/uuid"
)

type taskState uint8

const (
	taskRunning taskState = iota
	taskCompleted
)

// Task is the result cell of one background interpreter run: state plus a
// result value guarded by a mutex/condvar pair. A fault raised inside the
// task is recorded and re-raised in the awaiting thread; it is not
// swallowed into a null result.
type Task struct {
	ID uuid.UUID

	mu     sync.Mutex
	done   *sync.Cond
	state  taskState
	result Value
	fault  *Fault
}

func newTask() *Task {
	t := &Task{ID: uuid.New(), state: taskRunning}
	t.done = sync.NewCond(&t.mu)
	return t
}

func (t *Task) complete(result Value, fault *Fault) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == taskCompleted {
		return
	}
	t.state = taskCompleted
	t.result = result
	t.fault = fault
	t.done.Broadcast()
}

// Await blocks until the task completes. Idempotent: every call returns the
// same stored result.
func (t *Task) Await() (Value, *Fault) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for t.state != taskCompleted {
		t.done.Wait()
	}
	return t.result, t.fault
}

// Future is a shared read handle to exactly one task
type Future struct {
	Task *Task
}

// TaskRegistry tracks spawned async tasks so the owning VM can join them on
// teardown instead of leaking detached goroutines.
type TaskRegistry struct {
	wg sync.WaitGroup
}

func NewTaskRegistry() *TaskRegistry {
	return &TaskRegistry{}
}

func (r *TaskRegistry) add()  { r.wg.Add(1) }
func (r *TaskRegistry) done() { r.wg.Done() }

// Wait blocks until every registered task has completed.
func (r *TaskRegistry) Wait() {
	r.wg.Wait()
}
