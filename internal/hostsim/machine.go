// Package hostsim backs every external contract the kernel core depends on
// (§6) with a software simulation, so the core is exercisable under `go
// test` on an ordinary development host instead of only on booted 32-bit x86
// iron. This mirrors how usbarmory/tamago isolates every instruction-level
// operation behind a handful of Go functions (load_idt, irq_enable,
// irq_disable) and how gvisor runs a whole kernel's worth of logic as an
// ordinary userspace process: the algorithms are real, the substrate under
// them is a simulation.
package hostsim

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/nehcdnr/gokernel/internal/arch"
)

// Machine is a software model of one 32-bit x86 system: an I/O port space,
// control/MSR registers, and a CPUID reply table. One Machine exists per
// simulated system; each simulated CPU additionally carries its own
// interrupt-flag bit (see CPU).
type Machine struct {
	mu sync.Mutex

	ports  [65536]uint32
	cr0    uint32
	cr3    uint32
	msrs   map[uint32]uint64
	apicID uint8
	hasLAPIC bool

	// arena is the simulated physical address space, backing
	// hostsim.Allocator. It is mmap'd via golang.org/x/sys/unix so that
	// physical-address arithmetic in tests aliases real memory the same
	// way it would against a real BIOS-reported region, rather than
	// against a Go slice that the garbage collector may move or that
	// aliases differently.
	arena []byte
}

// NewMachine allocates a simulated system with an arenaSize-byte physical
// arena (rounded up to the host page size).
func NewMachine(arenaSize int) (*Machine, error) {
	m := &Machine{msrs: make(map[uint32]uint64), hasLAPIC: true, apicID: 0}
	arena, err := unix.Mmap(-1, 0, arenaSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, err
	}
	m.arena = arena
	return m, nil
}

// Close releases the simulated physical arena.
func (m *Machine) Close() error {
	if m.arena == nil {
		return nil
	}
	err := unix.Munmap(m.arena)
	m.arena = nil
	return err
}

// Arena exposes the simulated physical memory to hostsim.Allocator.
func (m *Machine) Arena() []byte { return m.arena }

// CPU is one simulated hardware thread's view of Machine: its own
// interrupt-enable flag and APIC id. Real x86 keeps IF in EFLAGS per-CPU;
// Machine's ports/registers are shared, matching real chipset registers
// being visible to every CPU.
type CPU struct {
	m       *Machine
	apicID  uint8
	ifSet   atomic.Bool
}

// NewCPU returns a CPU bound to m with the given simulated APIC id and
// interrupts initially enabled, matching the state the BSP finds itself in
// after firmware hands off control.
func (m *Machine) NewCPU(apicID uint8) *CPU {
	c := &CPU{m: m, apicID: apicID}
	c.ifSet.Store(true)
	return c
}

var _ arch.Ops = (*CPU)(nil)

func (c *CPU) In8(port uint16) uint8 {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	return uint8(c.m.ports[port])
}

func (c *CPU) In16(port uint16) uint16 {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	return uint16(c.m.ports[port])
}

func (c *CPU) In32(port uint16) uint32 {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	return c.m.ports[port]
}

func (c *CPU) Out8(port uint16, v uint8) {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	c.m.ports[port] = uint32(v)
}

func (c *CPU) Out16(port uint16, v uint16) {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	c.m.ports[port] = uint32(v)
}

func (c *CPU) Out32(port uint16, v uint32) {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	c.m.ports[port] = v
}

func (c *CPU) Exchange32(addr *uint32, new uint32) uint32 {
	return atomic.SwapUint32(addr, new)
}

func (c *CPU) CompareAndExchange32(addr *uint32, old, new uint32) (uint32, bool) {
	prev := atomic.LoadUint32(addr)
	ok := atomic.CompareAndSwapUint32(addr, old, new)
	if ok {
		return old, true
	}
	return prev, false
}

func (c *CPU) LockedAdd32(addr *uint32, delta int32) uint32 {
	return atomic.AddUint32(addr, uint32(delta))
}

func (c *CPU) ReadCR0() uint32 {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	return c.m.cr0
}

func (c *CPU) WriteCR0(v uint32) {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	c.m.cr0 = v
}

func (c *CPU) ReadCR3() uint32 {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	return c.m.cr3
}

func (c *CPU) WriteCR3(v uint32) {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	c.m.cr3 = v
}

func (c *CPU) EFLAGS() uint32 {
	if c.ifSet.Load() {
		return arch.EFLAGSInterruptFlag
	}
	return 0
}

func (c *CPU) Halt() {
	// A real HLT stops fetch until the next interrupt; the host simulation
	// does nothing here and returns immediately.
}

func (c *CPU) EnableInterrupts() bool {
	return c.ifSet.Swap(true)
}

func (c *CPU) DisableInterrupts() bool {
	return c.ifSet.Swap(false)
}

func (c *CPU) ReadMSR(msr uint32) uint64 {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	return c.m.msrs[msr]
}

func (c *CPU) WriteMSR(msr uint32, v uint64) {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	c.m.msrs[msr] = v
}

func (c *CPU) CPUID(leaf, subleaf uint32) (eax, ebx, ecx, edx uint32) {
	switch leaf {
	case 1:
		ebx = uint32(c.apicID) << 24
		if c.m.hasLAPIC {
			edx = 1 << 9
		}
		return 0, ebx, 0, edx
	default:
		return 0, 0, 0, 0
	}
}

func (c *CPU) HasLocalAPIC() bool {
	_, _, _, edx := c.CPUID(1, 0)
	return edx&(1<<9) != 0
}

func (c *CPU) InitialAPICID() uint8 {
	_, ebx, _, _ := c.CPUID(1, 0)
	return uint8(ebx >> 24)
}
