// Package task implements §3/§4.G: task creation, the ready queue, context
// switch, suspend/resume/terminate, and timer-driven preemption.
//
// There is no real CPU context to save/restore on a development host, so
// "context switch" is modeled the way biscuit itself models a kernel
// thread: one goroutine per task, parked and woken with a dedicated
// channel standing in for the saved/restored instruction pointer. This
// keeps every ordering guarantee (exactly one task runs "on" a given
// simulated CPU at a time, FIFO-within-priority dispatch, the after-hook
// running before the next task resumes) identical to the spec while
// letting the whole thing run under `go test`.
package task

import (
	"sync/atomic"
)

// State is one of the four task states of §3.
type State int

const (
	Ready State = iota
	Running
	Suspended
	Terminated
)

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Suspended:
		return "suspended"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// NumPriorities bounds the priority range; 0 is lowest, NumPriorities-1
// highest, matching "A.priority > B.priority" from invariant 4.
const NumPriorities = 16

// UserMemory is the external linear-memory-manager contract a user task
// carries (§3): released on termination.
type UserMemory interface {
	Release()
}

// V86Context is the virtual-8086 specialization of §4.G, kept narrow and
// x86-only per the spec's design note: not part of the portable scheduler
// surface.
type V86Context struct {
	CSIP         uint32
	StackBottom  uint32
	StackTop     uint32
}

// TrapHandler is a per-task syscall trap override (§3: "optional per-task
// syscall trap handler").
type TrapHandler func(p any)

var nextID uint64

// Task is the Task of §3. id is the stable identity ("kernel-space
// pointer" in the original; here a monotonic counter is equally stable and
// comparable).
type Task struct {
	id       uint64
	name     string
	priority int
	state    State

	mm  UserMemory
	v86 *V86Context
	trap TrapHandler

	wake chan struct{} // buffered(1): signalled to resume this task's goroutine
	done chan struct{} // closed when the task's body returns

	qnext *Task // intrusive link, shared by ready queue and wait queues
}

// ID returns the task's stable identity.
func (t *Task) ID() uint64 { return t.id }

// Priority returns the task's scheduling priority.
func (t *Task) Priority() int { return t.priority }

// State returns the task's current state.
func (t *Task) State() State { return t.state }

// Name returns the task's diagnostic name.
func (t *Task) Name() string { return t.name }

// SetTrapHandler installs a per-task syscall trap override.
func (t *Task) SetTrapHandler(h TrapHandler) { t.trap = h }

// TrapHandlerFn returns the installed per-task syscall trap override, or nil.
func (t *Task) TrapHandlerFn() TrapHandler { return t.trap }

// V86 returns the task's virtual-8086 context, or nil for non-V86 tasks.
func (t *Task) V86() *V86Context { return t.v86 }

func newTask(name string, priority int) *Task {
	if priority < 0 || priority >= NumPriorities {
		panic("task: priority out of range")
	}
	return &Task{
		id:       atomic.AddUint64(&nextID, 1),
		name:     name,
		priority: priority,
		state:    Suspended,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}
