package task_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nehcdnr/gokernel/internal/hostsim"
	"github.com/nehcdnr/gokernel/internal/task"
)

func newCPU(t *testing.T) *hostsim.CPU {
	t.Helper()
	m, err := hostsim.NewMachine(4096)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m.NewCPU(0)
}

// invariant 4: among READY tasks, strictly higher priority always runs
// next, and within a priority the earliest-resumed task runs first. Every
// task records its dispatch order, then suspends and yields itself, which
// lets the scheduler cascade straight into the next-highest-priority
// waiter with no further driving from the test.
func TestPriorityFIFODispatch(t *testing.T) {
	ops := newCPU(t)
	tm := task.NewManager()

	ran := make(chan string, 5)
	yieldForever := func(self *task.Task) {
		tm.SuspendCurrent(ops)
		tm.Schedule(ops)
	}

	mk := func(name string, prio int) *task.Task {
		return tm.CreateKernelTask(ops, name, prio, func(self *task.Task) {
			ran <- name
			yieldForever(self)
		})
	}

	// Resumed out of both priority and arrival order on purpose.
	low1 := mk("low1", 1)
	high := mk("high", 5)
	mid := mk("mid", 3)
	low2 := mk("low2", 1)

	tm.Resume(ops, low1)
	tm.Resume(ops, high)
	tm.Resume(ops, mid)
	tm.Resume(ops, low2)

	tm.Schedule(ops) // kicks off the cascade

	var order []string
	for i := 0; i < 4; i++ {
		select {
		case name := <-ran:
			order = append(order, name)
		case <-time.After(time.Second):
			t.Fatalf("dispatch cascade stalled after %v", order)
		}
	}
	require.Equal(t, []string{"high", "mid", "low1", "low2"}, order)
}

// suspend/resume/terminate lifecycle: a task parks itself on an explicit
// resume point, is observed SUSPENDED while parked, and on being resumed
// runs to completion and is observed TERMINATED.
func TestSuspendResumeTerminateLifecycle(t *testing.T) {
	ops := newCPU(t)
	tm := task.NewManager()

	reachedCheckpoint := make(chan struct{})
	w := tm.CreateKernelTask(ops, "w", 1, func(self *task.Task) {
		tm.SuspendCurrent(ops)
		close(reachedCheckpoint)
		tm.Schedule(ops)
	})

	require.Equal(t, task.Suspended, w.State())
	tm.Resume(ops, w)
	tm.Schedule(ops)

	select {
	case <-reachedCheckpoint:
	case <-time.After(time.Second):
		t.Fatal("task never reached its suspend checkpoint")
	}
	// Give the task's own Schedule call time to finish parking before
	// asserting its state.
	time.Sleep(5 * time.Millisecond)
	require.Equal(t, task.Suspended, w.State())

	tm.Resume(ops, w)
	tm.Schedule(ops)
	w.Wait()
	require.Equal(t, task.Terminated, w.State())
}
