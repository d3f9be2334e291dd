package hostsim

import "sync"

// LAPIC simulates the 4KB Local APIC register page the apic.Controller
// expects behind its apic.MMIO contract, standing in for the real
// memory-mapped register block usually found at physical address
// 0xFEE00000.
type LAPIC struct {
	mu   sync.Mutex
	regs [4096 / 4]uint32
	id   uint8
}

// NewLAPIC returns a simulated LAPIC with the given identification value
// pre-loaded into the ID register.
func NewLAPIC(id uint8) *LAPIC {
	l := &LAPIC{id: id}
	l.regs[0x20/4] = uint32(id) << 24
	return l
}

func (l *LAPIC) Read32(offset uint32) uint32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.regs[offset/4]
}

func (l *LAPIC) Write32(offset uint32, v uint32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	// Writing the low ICR word is how callers trigger IPI delivery; the
	// simulated LAPIC delivers instantly, so the "send pending" bit is
	// never left set for a caller to observe -- matching a real LAPIC
	// from the point of view of software that merely polls it dry.
	l.regs[offset/4] = v
}
