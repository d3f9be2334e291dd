// Package hostsim's allocator.go backs the §6 "Allocator" collaborator
// contract (allocate/free, typed newOne/newArray helpers) with a simple
// free-list over the Machine's mmap'd arena.
//
// original_source/src/kernel/memory/buddy.h describes a real buddy
// allocator with per-order free lists; SPEC_FULL §3.1 keeps only the
// allocate/free/newOne/newArray contract the core actually calls through
// and gives it this simpler bump-then-free-list implementation, enough to
// let task/semaphore/timer tests run end-to-end without reimplementing
// buddy.h's order bookkeeping.
package hostsim

import (
	"fmt"
	"sync"
	"unsafe"
)

type freeBlock struct {
	offset, size int
	next         *freeBlock
}

// Allocator is the §6 Allocator contract, implemented as a first-fit
// free-list over a fixed-size arena.
type Allocator struct {
	mu     sync.Mutex
	arena  []byte
	bump   int
	free   *freeBlock
	// live maps a returned pointer's arena offset to its size, so Free can
	// validate and recycle it.
	live map[int]int
	// refs backs original_source/src/kernel/memory/referencecount.c's
	// page reference counting (§3.1): every live block starts at 1, and
	// Free only returns the block to the free list once the count reaches
	// zero, so a page shared via AddRef survives until its last owner
	// frees it.
	refs map[int]*RefCount
}

// NewAllocator returns an allocator drawing from arena (typically
// Machine.Arena()).
func NewAllocator(arena []byte) *Allocator {
	return &Allocator{arena: arena, live: make(map[int]int), refs: make(map[int]*RefCount)}
}

// Allocate implements allocate(size): first-fit against the free list,
// falling back to bumping the arena's high-water mark. Returns nil if the
// arena is exhausted (§7 resource-exhaustion class). Every returned block
// starts with a reference count of 1 (see AddRef/Free).
func (a *Allocator) Allocate(size int) []byte {
	if size <= 0 {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	var prev *freeBlock
	for b := a.free; b != nil; b = b.next {
		if b.size >= size {
			if prev == nil {
				a.free = b.next
			} else {
				prev.next = b.next
			}
			a.live[b.offset] = size
			a.refs[b.offset] = NewRefCount(1)
			return a.arena[b.offset : b.offset+size]
		}
		prev = b
	}

	if a.bump+size > len(a.arena) {
		return nil
	}
	off := a.bump
	a.bump += size
	a.live[off] = size
	a.refs[off] = NewRefCount(1)
	return a.arena[off : off+size]
}

// offsetOf computes p's offset into a.arena, panicking (programmer
// invariant violated) if p does not alias the arena -- a caller passing a
// foreign pointer to Free is a kernel bug, not a recoverable condition.
func (a *Allocator) offsetOf(p []byte) int {
	for i := range a.arena {
		if &a.arena[i] == &p[0] {
			return i
		}
	}
	panic("hostsim: Free of pointer not owned by this allocator's arena")
}

// AddRef bumps p's reference count (e.g. the page is being mapped into a
// second address space) and returns the new total, mirroring
// referencecount.c's addReference.
func (a *Allocator) AddRef(p []byte) int {
	if len(p) == 0 {
		return 0
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	off := a.offsetOf(p)
	rc, ok := a.refs[off]
	if !ok {
		panic("hostsim: AddRef of pointer not owned by this allocator's arena")
	}
	return rc.Add(1)
}

// Free implements free(pointer): decrements p's reference count, and only
// returns the block to the free list once it reaches zero. Panics on
// double-free (programmer invariant violated, §7).
func (a *Allocator) Free(p []byte) {
	if len(p) == 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	off := a.offsetOf(p)
	size, ok := a.live[off]
	if !ok {
		panic(fmt.Sprintf("hostsim: double free at offset %d", off))
	}
	if rc, ok := a.refs[off]; ok && rc.Add(-1) > 0 {
		return
	}
	delete(a.live, off)
	delete(a.refs, off)
	a.free = &freeBlock{offset: off, size: size, next: a.free}
}

// Memset0 zeroes p, standing in for the §6 "allocate memory is zeroed on
// demand by callers" contract.
func Memset0(p []byte) {
	for i := range p {
		p[i] = 0
	}
}

// NewOne implements the §6 "new one" typed allocator helper: allocate and
// zero enough space for a single T and reinterpret it as *T. Returns nil
// if the arena is exhausted.
func NewOne[T any](a *Allocator) *T {
	var zero T
	p := a.Allocate(int(unsafe.Sizeof(zero)))
	if p == nil {
		return nil
	}
	Memset0(p)
	return (*T)(unsafe.Pointer(&p[0]))
}

// NewArray implements the §6 "new array" typed allocator helper: allocate
// and zero enough space for n contiguous Ts and reinterpret it as []T.
// Returns nil if the arena is exhausted.
func NewArray[T any](a *Allocator, n int) []T {
	if n <= 0 {
		return nil
	}
	var zero T
	p := a.Allocate(int(unsafe.Sizeof(zero)) * n)
	if p == nil {
		return nil
	}
	Memset0(p)
	return unsafe.Slice((*T)(unsafe.Pointer(&p[0])), n)
}
