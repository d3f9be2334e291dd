// Package service implements the ServiceName registry of §3/§4.J: a
// unique, bounded-length name mapped to a syscall slot, guarded by a
// spinlock. Grounded on original_source/src/task/servicename.c, which keeps
// a lock-protected linked list of fixed-size name buffers and rejects
// names that do not fit or already exist; SPEC_FULL additionally keeps
// the distinct TOO_MANY_SERVICE case that systemcall.h's
// ServiceNameError enum names but servicename.c's simpler list-based
// implementation has no need for (a map has no analogous capacity limit,
// but the syscall table's fixed slot range does).
package service

import (
	"errors"

	"github.com/nehcdnr/gokernel/internal/arch"
	"github.com/nehcdnr/gokernel/internal/spinlock"
)

// MaxNameLength is the maximum name length including the implicit
// terminator, per §3/§4.J.
const MaxNameLength = 16

// Registration failure modes (§4.J, §7).
var (
	ErrInvalidName     = errors.New("service: invalid name")
	ErrServiceExisting  = errors.New("service: name already registered")
	ErrTooManyServices = errors.New("service: no slots remain")
)

// Registry is the name -> slot map of §3/§4.J.
type Registry struct {
	lock     spinlock.Lock
	byName   map[string]int
	capacity int
}

// NewRegistry returns an empty registry that will refuse to register more
// than capacity names (the syscall table's [16,32) dynamic slot range in
// practice).
func NewRegistry(capacity int) *Registry {
	return &Registry{byName: make(map[string]int), capacity: capacity}
}

// validName reports whether name is non-empty and fits in MaxNameLength-1
// bytes plus a terminator, matching servicename.c's "name[a] != '\0'"
// overflow check.
func validName(name string) bool {
	return len(name) > 0 && len(name) < MaxNameLength
}

// Register assigns slot to name, failing with ErrInvalidName,
// ErrServiceExisting, or ErrTooManyServices per §4.J/§7.
func (r *Registry) Register(ops arch.Ops, name string, slot int) error {
	if !validName(name) {
		return ErrInvalidName
	}
	r.lock.Acquire(ops)
	defer r.lock.Release(ops)

	if _, exists := r.byName[name]; exists {
		return ErrServiceExisting
	}
	if len(r.byName) >= r.capacity {
		return ErrTooManyServices
	}
	r.byName[name] = slot
	return nil
}

// Query implements querySystemService(name) -> slot, bounded equality
// against the registered names (§4.J).
func (r *Registry) Query(ops arch.Ops, name string) (int, bool) {
	r.lock.Acquire(ops)
	defer r.lock.Release(ops)
	slot, ok := r.byName[name]
	return slot, ok
}
