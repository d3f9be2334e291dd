// Package syscall implements the fixed-slot SystemCallTable of §3/§4.I:
// 32 call slots, the first 16 reserved for the kernel (suspend,
// task-defined, semaphore acquire/release, I/O, alarm, ...), the rest
// dynamically handed out to named services via package service.
//
// Grounded on original_source/src/interrupt/systemcall.c: a fixed-size
// array of function pointers, a single assert-checked dispatch handler
// bound to the syscall vector, and registerSystemCall's
// "assert(s->call[systemCall] == NULL)" double-registration guard.
package syscall

import (
	"fmt"

	"github.com/nehcdnr/gokernel/internal/arch"
	"github.com/nehcdnr/gokernel/internal/service"
	"github.com/nehcdnr/gokernel/internal/trap"
)

// Reserved syscall slots (§6). Slots 16..31 are handed out dynamically by
// RegisterSystemService.
const (
	Suspend           = 0
	TaskDefined       = 1
	AcquireSemaphore  = 2
	ReleaseSemaphore  = 3

	NumReserved = 16
	NumSlots    = 32
)

// IOFailure is the sentinel return value for a failed I/O request (§6).
const IOFailure = 0

// Func is the system-call handler bound to a slot. p is the trap frame
// delivered to the syscall vector; arg is the opaque value bound at
// registration time.
type Func func(p *trap.Frame, arg any)

type slot struct {
	fn     Func
	arg    any
	bound  bool
}

// Table is the SystemCallTable of §3: NumSlots entries, argument passing
// via ebx/ecx/edx/esi/edi (Arg below), return value in eax.
type Table struct {
	ops      arch.Ops
	slots    [NumSlots]slot
	names    *service.Registry
	nextFree int
}

// Init implements initSystemCall(idt): allocates the table and binds
// vector 126 (trap.SyscallVector) to a trampoline that validates eax,
// asserts the slot is bound, invokes it, and re-enables interrupts
// (§4.I), matching systemCallHandler's "sti()" tail call.
func Init(ops arch.Ops, idt *trap.Table) *Table {
	t := &Table{ops: ops, names: service.NewRegistry(NumSlots - NumReserved), nextFree: NumReserved}
	idt.RegisterInterrupt(ops, trap.SyscallVector, t.dispatch, nil)
	return t
}

func (t *Table) dispatch(p *trap.Frame, _ any) {
	if p.EAX >= NumSlots {
		panic(fmt.Sprintf("syscall: out-of-range number %d", p.EAX))
	}
	s := &t.slots[p.EAX]
	if !s.bound {
		panic(fmt.Sprintf("syscall: unbound slot %d", p.EAX))
	}
	s.fn(p, s.arg)
	t.ops.EnableInterrupts()
}

// Arg reads the n-th syscall argument (0-indexed) from p, following the
// ebx, ecx, edx, esi, edi register order of §4.I.
func Arg(p *trap.Frame, n int) uint32 {
	switch n {
	case 0:
		return p.EBX
	case 1:
		return p.ECX
	case 2:
		return p.EDX
	case 3:
		return p.ESI
	default:
		return p.EDI
	}
}

// Return sets the syscall's return value (eax) on p.
func Return(p *trap.Frame, v uint32) {
	p.EAX = v
}

// RegisterSystemCall binds a reserved slot (< NumReserved). Panics
// (programmer invariant violated, §7) on double-registration, matching
// registerSystemCall's assert.
func (t *Table) RegisterSystemCall(slotNum int, fn Func, arg any) {
	if slotNum < 0 || slotNum >= NumReserved {
		panic("syscall: not a reserved slot")
	}
	s := &t.slots[slotNum]
	if s.bound {
		panic("syscall: slot already bound")
	}
	s.fn, s.arg, s.bound = fn, arg, true
}

// RegisterSystemService assigns the next free slot in [16,32), records
// the name -> slot mapping via package service, and binds fn to it
// (§4.I/§4.J). Returns the assigned slot, or an error from package
// service.
func (t *Table) RegisterSystemService(ops arch.Ops, name string, fn Func, arg any) (int, error) {
	if t.nextFree >= NumSlots {
		return 0, service.ErrTooManyServices
	}
	slotNum := t.nextFree
	if err := t.names.Register(ops, name, slotNum); err != nil {
		return 0, err
	}
	t.nextFree++
	t.slots[slotNum].fn, t.slots[slotNum].arg, t.slots[slotNum].bound = fn, arg, true
	return slotNum, nil
}

// QuerySystemService implements querySystemService(name) -> slot (§4.I).
func (t *Table) QuerySystemService(ops arch.Ops, name string) (int, bool) {
	return t.names.Query(ops, name)
}
