// Package sem implements the counting semaphore of §3/§4.H: a signed
// quota, a spinlock, and a FIFO wait queue of blocked tasks. Quota >= 0
// while the queue is empty; queue non-empty implies quota == 0 (§3
// invariant).
package sem

import (
	"github.com/nehcdnr/gokernel/internal/arch"
	"github.com/nehcdnr/gokernel/internal/spinlock"
	"github.com/nehcdnr/gokernel/internal/task"
)

// Semaphore is the Semaphore of §3.
type Semaphore struct {
	lock    spinlock.Lock
	quota   int
	waiters task.Queue
}

// New returns a semaphore with the given initial quota.
func New(initial int) *Semaphore {
	return &Semaphore{quota: initial}
}

// Acquire implements acquireSemaphore(s) (§4.H): with interrupts disabled,
// take the lock; if quota > 0, decrement and return immediately; otherwise
// suspend the caller, enqueue it FIFO, release the lock, and hand off to
// the scheduler. On return -- whenever this task is next resumed and
// scheduled -- the permit has already been transferred by Release.
func (s *Semaphore) Acquire(ops arch.Ops, tm *task.Manager) {
	s.lock.Acquire(ops)

	if s.quota > 0 {
		s.quota--
		s.lock.Release(ops)
		return
	}

	cur := tm.SuspendCurrent(ops)
	s.waiters.PushTail(cur)
	s.lock.Release(ops)

	tm.Schedule(ops)
}

// Release implements releaseSemaphore(s) (§4.H): if waiters exist, pop the
// head (strict FIFO, testable property 2/S3) and resume it directly
// (transferring the permit without ever incrementing quota); otherwise
// increment quota.
func (s *Semaphore) Release(ops arch.Ops, tm *task.Manager) {
	s.lock.Acquire(ops)

	if w := s.waiters.PopHead(); w != nil {
		s.lock.Release(ops)
		tm.Resume(ops, w)
	} else {
		s.quota++
		s.lock.Release(ops)
	}
}

// Quota returns the current permit count, for diagnostics/tests.
func (s *Semaphore) Quota() int {
	return s.quota
}
