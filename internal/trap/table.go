// Package trap implements the interrupt vector table and dispatch glue of
// §3/§4.C: a table of 256 vector entries, first-fit allocation of
// general-purpose vectors, binding of reserved vectors, and the dispatch
// path interrupt handlers run through.
//
// The table itself needs no locking beyond per-vector spinlocks: dispatch
// only ever reads one vector's (handler, arg) pair, and registration only
// ever writes one vector's pair, so contention is naturally scoped to a
// single InterruptVector.
package trap

import (
	"fmt"

	"github.com/nehcdnr/gokernel/internal/arch"
	"github.com/nehcdnr/gokernel/internal/klog"
	"github.com/nehcdnr/gokernel/internal/spinlock"
)

// Vector layout, per §3/§6.
const (
	NumVectors       = 256
	ExceptionsBase   = 0
	ExceptionsLast   = 31
	GeneralBase      = 32
	GeneralLast      = 95
	IRQBaseDefault   = 32
	NumIRQs          = 16
	SyscallVector    = 126
	SpuriousVector   = 127
)

// Handler is a bound interrupt service routine. p is the trap frame
// delivered by the dispatch stub; arg is the opaque argument bound at
// registration time.
type Handler func(p *Frame, arg any)

// Frame is the saved machine state presented to handlers (§4.C invariant):
// the vector that fired, segment and general registers, the
// CPU-pushed error code (0 if the vector has none), EIP/CS/EFLAGS, and
// ESP/SS when a privilege change occurred. V86 holds the additional
// virtual-8086 segment snapshot when the interrupted task was in V86 mode
// (nil otherwise).
type Frame struct {
	Vector   uint8
	GS, FS, ES, DS uint32
	EAX, ECX, EDX, EBX uint32
	ESP0, EBP, ESI, EDI uint32
	ErrorCode uint32
	EIP, CS, EFLAGS uint32
	ESP, SS uint32
	PrivilegeChange bool
	V86 *V86Frame
}

// V86Frame carries the extra segment registers pushed only when returning
// to virtual-8086 mode (§4.G).
type V86Frame struct {
	ES, DS, FS, GS uint32
}

// Vector is one InterruptVector (§3): at most one handler bound at a time,
// replacement atomic with respect to dispatch.
type Vector struct {
	number  uint8
	irq     int // -1 if this vector is not bound to an IRQ line
	lock    spinlock.Lock
	handler Handler
	arg     any
	bound   bool
}

// Number returns the vector's 8-bit CPU vector number.
func (v *Vector) Number() uint8 { return v.number }

// IRQ returns the bound IRQ line, or -1 if none.
func (v *Vector) IRQ() int { return v.irq }

// Table is the InterruptTable of §3: a fixed array of 256 vectors.
type Table struct {
	vectors [NumVectors]Vector
	log     *klog.Logger
}

// NewTable constructs a table with all 256 vectors numbered but unbound.
func NewTable(log *klog.Logger) *Table {
	t := &Table{log: log}
	for i := range t.vectors {
		t.vectors[i].number = uint8(i)
		t.vectors[i].irq = -1
	}
	return t
}

// RegisterGeneralInterrupt allocates the first unused vector in [32,96),
// binds (handler, arg), and returns it. Returns nil if none are free.
func (t *Table) RegisterGeneralInterrupt(ops arch.Ops, h Handler, arg any) *Vector {
	for i := GeneralBase; i <= GeneralLast; i++ {
		v := &t.vectors[i]
		v.lock.Acquire(ops)
		if !v.bound {
			v.handler = h
			v.arg = arg
			v.bound = true
			v.lock.Release(ops)
			return v
		}
		v.lock.Release(ops)
	}
	return nil
}

// RegisterIRQs allocates count contiguous vectors starting at irqBase, each
// tagged with its corresponding IRQ line (0..count-1), and returns the base
// vector. The caller (the PIC implementation) is responsible for binding
// handlers to each returned vector separately.
func (t *Table) RegisterIRQs(irqBase uint8, count int) *Vector {
	for i := 0; i < count; i++ {
		t.vectors[int(irqBase)+i].irq = i
	}
	return &t.vectors[irqBase]
}

// RegisterInterrupt binds a specific reserved vector (CPU exceptions,
// syscall gate, spurious vector) to (handler, arg).
func (t *Table) RegisterInterrupt(ops arch.Ops, reservedID uint8, h Handler, arg any) {
	v := &t.vectors[reservedID]
	v.lock.Acquire(ops)
	v.handler = h
	v.arg = arg
	v.bound = true
	v.lock.Release(ops)
}

// ReplaceHandler swaps the bound handler and argument for v, writing the
// previous values back into *h and *arg. The swap is atomic with respect to
// CallHandler (Open Question #3, decided in DESIGN.md): both fields are
// read and written under the vector's own lock, so dispatch can never
// observe a new handler paired with a stale argument.
func (v *Vector) ReplaceHandler(ops arch.Ops, h *Handler, arg *any) {
	v.lock.Acquire(ops)
	oldH, oldArg := v.handler, v.arg
	v.handler, v.arg = *h, *arg
	v.bound = true
	v.lock.Release(ops)
	*h, *arg = oldH, oldArg
}

// Vector looks up a vector by number for direct binding by collaborators
// (e.g. the PIC implementations binding each IRQ vector individually).
func (t *Table) Vector(number uint8) *Vector {
	return &t.vectors[number]
}

// CallHandler dispatches to the bound handler for vectorNumber, or to the
// default handler (print + halt) if none is bound.
func (t *Table) CallHandler(ops arch.Ops, vectorNumber uint8, p *Frame) {
	v := &t.vectors[vectorNumber]
	v.lock.Acquire(ops)
	h, arg, bound := v.handler, v.arg, v.bound
	v.lock.Release(ops)

	if !bound {
		t.defaultHandler(p)
		return
	}
	h(p, arg)
}

// defaultHandler implements §7's "CPU-generated exceptions without handler"
// path: print the vector and register dump, then halt. Logging (when a
// logger is bound) never substitutes for halting -- klog.Fatal only
// prints, per its own doc comment the caller must still stop immediately
// after -- so this always panics once the dump is out, whether or not a
// logger is bound.
func (t *Table) defaultHandler(p *Frame) {
	msg := fmt.Sprintf("unhandled vector %d: eip=%#x cs=%#x eflags=%#x err=%#x",
		p.Vector, p.EIP, p.CS, p.EFLAGS, p.ErrorCode)
	if t.log != nil {
		t.log.Fatal(msg, "vector", p.Vector, "eip", p.EIP)
	}
	panic(msg)
}
