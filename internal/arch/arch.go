// Package arch isolates every instruction-level operation the kernel core
// needs behind a small interface, the way tamago's amd64 package keeps
// load_idt/irq_enable/irq_disable as the only assembly-adjacent primitives
// and lets the rest of the tree call plain Go functions.
//
// On real 32-bit x86 hardware these operations bottom out in IN/OUT, RDMSR/
// WRMSR, CPUID, LOCK XCHG/CMPXCHG and friends. Under `go test` on a
// development host there is no such hardware, so Ops is implemented by
// internal/hostsim instead; every other package only ever sees this
// interface.
package arch

// EFLAGS interrupt-enable bit, matching the x86 IF flag position (bit 9).
const EFLAGSInterruptFlag = 1 << 9

// Ops is the complete contract of §4.A: pure, infallible wrappers over
// single CPU instructions. No operation here has scheduling implications.
type Ops interface {
	// In8/In16/In32 read from the given I/O port.
	In8(port uint16) uint8
	In16(port uint16) uint16
	In32(port uint16) uint32

	// Out8/Out16/Out32 write to the given I/O port.
	Out8(port uint16, v uint8)
	Out16(port uint16, v uint16)
	Out32(port uint16, v uint32)

	// Exchange32 atomically stores new at *addr and returns the previous
	// value (x86 XCHG semantics: no LOCK prefix needed, XCHG with memory
	// is implicitly locked).
	Exchange32(addr *uint32, new uint32) uint32

	// CompareAndExchange32 atomically compares *addr to old; if equal,
	// stores new and returns (old, true); otherwise returns (*addr,
	// false), mirroring CMPXCHG's semantics without consuming the flags
	// register.
	CompareAndExchange32(addr *uint32, old, new uint32) (uint32, bool)

	// LockedAdd32 atomically adds delta to *addr and returns the new
	// value.
	LockedAdd32(addr *uint32, delta int32) uint32

	// ReadCR0/WriteCR0 and ReadCR3/WriteCR3 access control registers.
	ReadCR0() uint32
	WriteCR0(v uint32)
	ReadCR3() uint32
	WriteCR3(v uint32)

	// EFLAGS returns the current EFLAGS snapshot.
	EFLAGS() uint32

	// Halt stops the CPU until the next interrupt (HLT).
	Halt()

	// EnableInterrupts/DisableInterrupts are STI/CLI; each returns the
	// prior interrupt-enable state so callers can restore it.
	EnableInterrupts() bool
	DisableInterrupts() bool

	// ReadMSR/WriteMSR access a model-specific register.
	ReadMSR(msr uint32) uint64
	WriteMSR(msr uint32, v uint64)

	// CPUID returns eax/ebx/ecx/edx for the given leaf/subleaf.
	CPUID(leaf, subleaf uint32) (eax, ebx, ecx, edx uint32)

	// HasLocalAPIC reports whether CPUID advertises an on-chip local
	// APIC (leaf 1, edx bit 9).
	HasLocalAPIC() bool

	// InitialAPICID returns the initial APIC ID (leaf 1, ebx[31:24]),
	// used to index ProcessorLocal on SMP.
	InitialAPICID() uint8
}

// IFSet reports whether the interrupt-enable bit is set in an EFLAGS value.
func IFSet(eflags uint32) bool {
	return eflags&EFLAGSInterruptFlag != 0
}
