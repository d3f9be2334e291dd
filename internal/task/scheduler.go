package task

import (
	"github.com/nehcdnr/gokernel/internal/arch"
	"github.com/nehcdnr/gokernel/internal/spinlock"
)

// AfterHook runs deferred bookkeeping for the outgoing task once the next
// task has been selected but before it is resumed (§4.G: "performs
// deferred actions that must not run on the old stack"). Typical uses:
// push prev back onto the ready queue (preemption), or link prev onto a
// semaphore's wait queue (blocking acquire).
type AfterHook func(prev *Task, arg any)

// Manager is the TaskManager + scheduler of §4.G, scoped to one simulated
// CPU (ProcessorLocal owns exactly one Manager). Every task created by this
// Manager is "owned" by it for its lifetime: tasks are not migrated across
// CPUs (§5 baseline), so Resume always targets the owning Manager's ready
// queue even when called from another CPU's interrupt context, hence the
// lock.
type Manager struct {
	lock  spinlock.Lock
	ready [NumPriorities]Queue
	current *Task
}

// NewManager returns an empty task manager with no current task; the
// caller is expected to run an idle loop or immediately resume a task
// before the first Schedule call.
func NewManager() *Manager {
	return &Manager{}
}

// Current returns the task currently running on this CPU, or nil before
// the first schedule.
func (m *Manager) Current() *Task {
	return m.current
}

// CreateKernelTask allocates a kernel task running fn, initially
// SUSPENDED (§3 lifetime). The task's body is: wait to be scheduled in,
// run fn, then terminate itself.
func (m *Manager) CreateKernelTask(ops arch.Ops, name string, priority int, fn func(t *Task)) *Task {
	t := newTask(name, priority)
	go func() {
		<-t.wake
		fn(t)
		m.TerminateCurrentTask(ops, t)
	}()
	return t
}

// EntryFunc is a user task's entry point, invoked once any loader has
// finished initializing the task's user memory manager.
type EntryFunc func(t *Task)

// CreateUserTaskWithoutLoader allocates a user task that will, once
// resumed, run directly into entry (§4.G). The task starts SUSPENDED.
func (m *Manager) CreateUserTaskWithoutLoader(ops arch.Ops, name string, priority int, entry EntryFunc) *Task {
	return m.CreateKernelTask(ops, name, priority, entry)
}

// Loader initializes a user task's linear-memory manager before entry
// runs, and returns it so the task can release it on termination.
type Loader func(t *Task) UserMemory

// CreateUserTask allocates a user task that runs loader first -- which
// must initialize the user linear-block manager -- and only then jumps to
// entry (§4.G).
func (m *Manager) CreateUserTask(ops arch.Ops, name string, priority int, loader Loader, entry EntryFunc) *Task {
	return m.CreateKernelTask(ops, name, priority, func(t *Task) {
		t.mm = loader(t)
		entry(t)
	})
}

// ELFFileService is the narrow file-service contract createUserTaskFromELF
// needs (§6 "File/driver tasks").
type ELFFileService interface {
	ReadFile(name string) ([]byte, bool)
}

// CreateUserTaskFromELF additionally reads an ELF image by name via fs
// before running loader/entry (§4.G). Returns nil if the image cannot be
// read (resource-exhaustion-class failure, §7).
func (m *Manager) CreateUserTaskFromELF(ops arch.Ops, fs ELFFileService, name string, priority int, loader Loader, entry EntryFunc) *Task {
	image, ok := fs.ReadFile(name)
	if !ok {
		return nil
	}
	return m.CreateUserTask(ops, name, priority, func(t *Task) UserMemory {
		mm := loader(t)
		_ = image // a real loader would map image's segments via mm
		return mm
	}, entry)
}

// SwitchToVirtual8086Mode configures t as a §4.G virtual-8086
// specialization: saved EFLAGS VM bit (modeled here simply as the presence
// of v86) and the V86 stack window.
func SwitchToVirtual8086Mode(t *Task, csip uint32, stackBottom, stackTop uint32) {
	t.v86 = &V86Context{CSIP: csip, StackBottom: stackBottom, StackTop: stackTop}
}

// Resume implements §4.G resume(task): set READY and push onto the owning
// manager's ready queue. Must be called after SuspendCurrent (or at task
// creation) to make a task schedulable.
func (m *Manager) Resume(ops arch.Ops, t *Task) {
	m.lock.Acquire(ops)
	t.state = Ready
	m.ready[t.priority].PushTail(t)
	m.lock.Release(ops)
}

// SuspendCurrent implements §4.G suspendCurrent(tm): mark the running task
// SUSPENDED and return it. The caller is responsible for later passing it
// to Resume, and for actually yielding the CPU (via Schedule or the
// internal Switch primitive) -- marking SUSPENDED alone does not stop the
// task from running until the next switch point.
func (m *Manager) SuspendCurrent(ops arch.Ops) *Task {
	m.lock.Acquire(ops)
	cur := m.current
	if cur != nil {
		cur.state = Suspended
	}
	m.lock.Release(ops)
	return cur
}

// popReady pops the highest-priority ready task, FIFO within a priority
// (invariant 4). Caller must hold m.lock.
func (m *Manager) popReady() *Task {
	for p := NumPriorities - 1; p >= 0; p-- {
		if !m.ready[p].Empty() {
			return m.ready[p].PopHead()
		}
	}
	return nil
}

// Switch is the taskSwitch(after, arg) primitive of §4.G: called only with
// interrupts disabled. It selects the next runnable task, invokes after
// for the outgoing task before the incoming one resumes, and parks the
// caller's goroutine until it is itself resumed again. If no other task is
// ready and the caller left itself RUNNING (a plain yield), it returns
// immediately and the caller keeps running. If no other task is ready and
// the caller suspended or terminated itself first, there is nothing left
// to run on this CPU: the caller parks until some other context resumes it
// and reschedules, exactly as a real idle CPU would wait for the next
// interrupt.
func (m *Manager) Switch(ops arch.Ops, after AfterHook, arg any) {
	m.lock.Acquire(ops)
	next := m.popReady()
	prev := m.current
	if next == nil {
		if prev != nil && prev.state == Running {
			m.lock.Release(ops)
			return
		}
		m.current = nil
		m.lock.Release(ops)
		if after != nil {
			after(prev, arg)
		}
		if prev != nil && prev.state != Running {
			<-prev.wake
		}
		return
	}
	next.state = Running
	m.current = next
	m.lock.Release(ops)

	if after != nil {
		after(prev, arg)
	}

	next.wake <- struct{}{}
	if prev != nil && prev != next {
		<-prev.wake
	}
}

// Schedule implements §4.G schedule(): triggers a context switch if a
// different task is eligible. Preempted tasks (still RUNNING at the time
// Schedule is called, i.e. not already suspended/terminated by the
// caller) are put back on the ready queue by the after-hook, per §4.G's
// context-switch contract.
func (m *Manager) Schedule(ops arch.Ops) {
	m.Switch(ops, func(prev *Task, _ any) {
		if prev != nil && prev.state == Running {
			prev.state = Ready
			m.lock.Acquire(ops)
			m.ready[prev.priority].PushTail(prev)
			m.lock.Release(ops)
		}
	}, nil)
}

// TerminateCurrentTask implements §4.G terminateCurrentTask(): mark t
// TERMINATED, release its user memory, and force a context switch that
// will never schedule it again. done is closed directly before the switch,
// which runs with no after-hook (the goroutine that called this is about
// to return).
func (m *Manager) TerminateCurrentTask(ops arch.Ops, t *Task) {
	m.lock.Acquire(ops)
	t.state = Terminated
	if m.current == t {
		m.current = nil
	}
	m.lock.Release(ops)

	if t.mm != nil {
		t.mm.Release()
	}
	close(t.done)

	m.Switch(ops, nil, nil)
}

// Wait blocks until t's body has returned and it has terminated; useful in
// tests and for a parent task joining a child.
func (t *Task) Wait() {
	<-t.done
}
