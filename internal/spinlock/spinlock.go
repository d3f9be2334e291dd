// Package spinlock implements interrupt-aware mutual exclusion and a
// counting barrier, per §4.B. Acquiring a non-IGNORED lock disables
// interrupts so an interrupt handler touching the same data cannot run
// concurrently with the critical section; the previous interrupt-enable
// state is saved so nested acquire/release around code that is sometimes
// called with interrupts already off is transparent.
package spinlock

import (
	"runtime"
	"sync/atomic"

	"github.com/nehcdnr/gokernel/internal/arch"
)

// acquirable states for Lock.acquirable.
const (
	acquirable    uint32 = 0
	notAcquirable uint32 = 1
	ignored       uint32 = 2
)

// Lock is the tri-state acquirable spinlock of §3/§4.B.
type Lock struct {
	acquirable uint32
	// interruptFlag holds the caller's EFLAGS.IF snapshot at acquire
	// time, restored on release. Only ever touched by the current owner,
	// so it needs no synchronization of its own.
	interruptFlag bool
	held          bool
}

// New returns a released, acquirable lock.
func New() *Lock {
	return &Lock{acquirable: acquirable}
}

// NewIgnored returns a lock whose Acquire/Release are no-ops, for code paths
// that are compiled once but sometimes run where locking is not needed
// (e.g. a uniprocessor build).
func NewIgnored() *Lock {
	return &Lock{acquirable: ignored}
}

// Acquire implements acquire(lock): spin until the lock is taken, disabling
// interrupts around every poll so an interrupt handler can never observe the
// lock half-acquired. Returns the number of spin iterations, purely for
// diagnostics/tests (S2).
func (l *Lock) Acquire(ops arch.Ops) int {
	if l.acquirable == ignored {
		return 0
	}
	spins := 0
	for {
		wasSet := ops.DisableInterrupts()
		if ops.Exchange32(&l.acquirable, notAcquirable) == acquirable {
			l.interruptFlag = wasSet
			l.held = true
			return spins
		}
		if wasSet {
			ops.EnableInterrupts()
		}
		spins++
		for atomic.LoadUint32(&l.acquirable) == notAcquirable {
			runtime.Gosched()
		}
	}
}

// Release implements release(lock): the caller must currently hold the
// lock with interrupts disabled. Panics (programmer invariant violated) on
// double release, matching §7's taxonomy.
func (l *Lock) Release(ops arch.Ops) {
	if l.acquirable == ignored {
		return
	}
	if !l.held {
		panic("spinlock: release of unheld lock")
	}
	l.held = false
	wasSet := l.interruptFlag
	ops.Exchange32(&l.acquirable, acquirable)
	if wasSet {
		ops.EnableInterrupts()
	}
}

// Held reports whether the lock is currently held, for assertions in
// callers that require "caller already holds this lock".
func (l *Lock) Held() bool {
	return l.held
}
