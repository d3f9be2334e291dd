package sem

import (
	"github.com/nehcdnr/gokernel/internal/arch"
	"github.com/nehcdnr/gokernel/internal/task"
)

// RWLock is the reader-writer lock of §4.H: built atop three semaphores (a
// shared resource permit, a reader-count lock, and a writer-first reader
// gate) plus a writer-first
// flag selecting between the classic reader-preference and
// writer-preference constructions, exactly the construction-time option
// §4.H calls for.
//
// Grounded on original_source/src/kernel/task/exclusivelock.h's
// createReaderWriterLock(writerFirst)/acquireReaderLock/acquireWriterLock/
// releaseReaderWriterLock contract: a single release entry point serves
// both roles, so the lock itself remembers whether a writer currently
// holds it -- at most one writer is ever in the critical section at a
// time, so that is unambiguous.
type RWLock struct {
	writerFirst bool

	resource      *Semaphore // held by a writer, or by the first/only reader
	readCountLock *Semaphore // protects readCount
	readTry       *Semaphore // writer-first gate: held by an active/waiting writer to block new readers

	readCount int
	writing   bool
}

// NewRWLock implements createReaderWriterLock(writerFirst).
func NewRWLock(writerFirst bool) *RWLock {
	return &RWLock{
		writerFirst:   writerFirst,
		resource:      New(1),
		readCountLock: New(1),
		readTry:       New(1),
	}
}

// AcquireReaderLock implements acquireReaderLock(rwl): any number of
// readers may hold the lock concurrently. The first reader acquires the
// shared resource permit on behalf of every reader that follows; the last
// reader to leave releases it. When writerFirst, a reader must first pass
// readTry -- held by a writer that is running or waiting -- so new
// readers cannot keep starving it.
func (l *RWLock) AcquireReaderLock(ops arch.Ops, tm *task.Manager) {
	if l.writerFirst {
		l.readTry.Acquire(ops, tm)
		l.readTry.Release(ops, tm)
	}

	l.readCountLock.Acquire(ops, tm)
	l.readCount++
	if l.readCount == 1 {
		l.resource.Acquire(ops, tm)
	}
	l.readCountLock.Release(ops, tm)
}

// AcquireWriterLock implements acquireWriterLock(rwl): exclusive access
// to the resource. When writerFirst, the writer takes readTry before
// requesting the resource, so any reader that arrives afterward blocks
// behind it instead of cutting in line.
func (l *RWLock) AcquireWriterLock(ops arch.Ops, tm *task.Manager) {
	if l.writerFirst {
		l.readTry.Acquire(ops, tm)
	}
	l.resource.Acquire(ops, tm)
	l.writing = true
}

// ReleaseReaderWriterLock implements releaseReaderWriterLock(rwl): the
// single release entry point for both roles. A writer release always
// releases the resource permit directly (and readTry, if writerFirst); a
// reader release decrements readCount and only releases the resource
// permit when it was the last reader out.
func (l *RWLock) ReleaseReaderWriterLock(ops arch.Ops, tm *task.Manager) {
	if l.writing {
		l.writing = false
		l.resource.Release(ops, tm)
		if l.writerFirst {
			l.readTry.Release(ops, tm)
		}
		return
	}

	l.readCountLock.Acquire(ops, tm)
	l.readCount--
	last := l.readCount == 0
	l.readCountLock.Release(ops, tm)
	if last {
		l.resource.Release(ops, tm)
	}
}
