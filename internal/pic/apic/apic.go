// Package apic implements the SMP PIC variant of §4.D: an I/O APIC plus one
// Local APIC per processor. Register offsets and bit positions follow the
// naming used by usbarmory/tamago's amd64/lapic package (itself citing the
// Intel SDM, Volume 3A, Chapter 10), adapted here to a host-simulated MMIO
// region instead of real memory-mapped registers.
package apic

import (
	"sync"

	"github.com/nehcdnr/gokernel/internal/arch"
	"github.com/nehcdnr/gokernel/internal/pic"
	"github.com/nehcdnr/gokernel/internal/trap"
)

// LAPIC register offsets (Intel SDM Vol. 3A §10.4.1), mirroring
// tamago/amd64/lapic's naming.
const (
	lapicID  = 0x20
	lapicEOI = 0xB0
	lapicICRLow  = 0x300
	lapicICRHigh = 0x310
)

// ICR delivery-mode / destination-shorthand fields, mirroring
// tamago/amd64/lapic's ICR_* constants.
const (
	icrDstShift   = 18
	icrDstAllButSelf = 0b11 << icrDstShift

	icrDeliveryShift = 8
	icrDeliveryInit  = 0b101 << icrDeliveryShift
	icrDeliverySIPI  = 0b110 << icrDeliveryShift

	icrSendPending = 1 << 12
)

// MMIO is the narrow register-file contract the APIC needs from the
// simulated machine: 32-bit reads/writes at a byte offset from a fixed
// LAPIC base, standing in for real memory-mapped I/O.
type MMIO interface {
	Read32(offset uint32) uint32
	Write32(offset uint32, v uint32)
}

// Controller is the APIC PIC variant, composing one I/O APIC (modeled here
// simply as the per-IRQ mask bits of the registered vectors, since the
// interrupt-routing table itself lives in Table) and a LAPIC per
// processor.
type Controller struct {
	ops   arch.Ops
	table *trap.Table
	lapic MMIO

	mu        sync.Mutex
	masked    [trap.NumIRQs]bool
	irqVector uint8
	cpus      []uint8 // known LAPIC ids, for NumberOfProcessors/InterruptAllOther
}

var _ pic.Controller = (*Controller)(nil)

// New registers the 16 IRQ vectors starting at irqBase and returns an APIC
// controller backed by lapic. cpuIDs lists every LAPIC id discovered during
// AP enumeration (at minimum the BSP's own id).
func New(ops arch.Ops, table *trap.Table, lapicMMIO MMIO, irqBase uint8, cpuIDs []uint8) *Controller {
	table.RegisterIRQs(irqBase, trap.NumIRQs)
	c := &Controller{ops: ops, table: table, lapic: lapicMMIO, irqVector: irqBase, cpus: append([]uint8{}, cpuIDs...)}
	for i := range c.masked {
		c.masked[i] = true
	}
	return c
}

// SetMask masks or unmasks irq on the (simulated) I/O APIC's redirection
// table entry.
func (c *Controller) SetMask(irq int, masked bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.masked[irq] = masked
}

// IRQToVector returns the vector bound to irq.
func (c *Controller) IRQToVector(irq int) *trap.Vector {
	return c.table.Vector(c.irqVector + uint8(irq))
}

// EndOfInterrupt writes the LAPIC EOI register.
func (c *Controller) EndOfInterrupt(vector uint8) {
	c.lapic.Write32(lapicEOI, 0)
}

// InterruptAllOther issues an IPI carrying vector with the "all excluding
// self" destination shorthand.
func (c *Controller) InterruptAllOther(vector uint8) {
	c.lapic.Write32(lapicICRHigh, 0)
	c.lapic.Write32(lapicICRLow, icrDstAllButSelf|uint32(vector))
	for c.lapic.Read32(lapicICRLow)&icrSendPending != 0 {
	}
}

// NumberOfProcessors equals the count of enumerated LAPIC ids.
func (c *Controller) NumberOfProcessors() int {
	return len(c.cpus)
}

// InterprocessorINIT sends an INIT IPI to target, the first step of AP
// bring-up (§4.D).
func (c *Controller) InterprocessorINIT(target uint8) {
	c.lapic.Write32(lapicICRHigh, uint32(target)<<24)
	c.lapic.Write32(lapicICRLow, icrDeliveryInit)
	for c.lapic.Read32(lapicICRLow)&icrSendPending != 0 {
	}
}

// InterprocessorSTARTUP sends a SIPI carrying the AP entry page (entryVector
// is the physical page >> 12, per the SIPI wire format) to target, the
// second step of AP bring-up.
func (c *Controller) InterprocessorSTARTUP(target, entryVector uint8) {
	c.lapic.Write32(lapicICRHigh, uint32(target)<<24)
	c.lapic.Write32(lapicICRLow, icrDeliverySIPI|uint32(entryVector))
	for c.lapic.Read32(lapicICRLow)&icrSendPending != 0 {
	}
}
