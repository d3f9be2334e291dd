// Package pic8259 implements the legacy dual-8259 PIC variant of §4.D,
// grounded on original_source/src/interrupt/controller/pic8259.c's
// initialization sequence and port layout.
package pic8259

import (
	"github.com/nehcdnr/gokernel/internal/arch"
	"github.com/nehcdnr/gokernel/internal/pic"
	"github.com/nehcdnr/gokernel/internal/trap"
)

// I/O ports and command/data register layout for the master/slave 8259s.
const (
	masterCommand = 0x20
	masterData    = 0x21
	slaveCommand  = 0xA0
	slaveData     = 0xA1

	icw1Init     = 0x11 // ICW1: edge-triggered, cascade, ICW4 needed
	icw4_8086    = 0x01
	slaveCascade = 2 // IRQ2 carries the slave's output on the master
	nonSpecificEOI = 0x20
)

// Controller is the uniprocessor PIC8259 variant: numberOfProcessors is
// always 1 and InterruptAllOther is a no-op (no IPI mechanism exists).
type Controller struct {
	ops   arch.Ops
	table *trap.Table
	base  uint8
}

var _ pic.Controller = (*Controller)(nil)

// New programs both 8259s per §4.D's initialization sequence (S5) with
// vectorBase as the master's vector base (slave is vectorBase+8), registers
// the 16 contiguous IRQ vectors on table, and unmasks IRQ2 (the slave
// cascade line) once the remap is complete.
func New(ops arch.Ops, table *trap.Table, vectorBase uint8) *Controller {
	c := &Controller{ops: ops, base: vectorBase, table: table}

	// mask all, per §8 S5's exact port sequence
	ops.Out8(masterData, 0xFF)
	ops.Out8(slaveData, 0xFF)

	// master: ICW1, ICW2 (vector base), ICW3 (cascade identity), ICW4
	ops.Out8(masterCommand, icw1Init)
	ops.Out8(masterData, vectorBase)
	ops.Out8(masterData, 1<<slaveCascade)
	ops.Out8(masterData, icw4_8086)

	// slave: ICW1, ICW2 (vector base), ICW3 (cascade identity), ICW4
	ops.Out8(slaveCommand, icw1Init)
	ops.Out8(slaveData, vectorBase+8)
	ops.Out8(slaveData, slaveCascade)
	ops.Out8(slaveData, icw4_8086)

	// remask all
	ops.Out8(masterData, 0xFF)
	ops.Out8(slaveData, 0xFF)

	table.RegisterIRQs(vectorBase, trap.NumIRQs)

	c.SetMask(slaveCascade, false)

	return c
}

// SetMask implements §4.D's OCW1 masking, routing to the master or slave
// data port depending on which 8259 owns irq.
func (c *Controller) SetMask(irq int, masked bool) {
	port := uint16(masterData)
	bit := uint(irq)
	if irq >= 8 {
		port = slaveData
		bit = uint(irq - 8)
	}
	cur := c.ops.In8(port)
	if masked {
		cur |= 1 << bit
	} else {
		cur &^= 1 << bit
	}
	c.ops.Out8(port, cur)
}

// IRQToVector maps irq to its contiguous vector, per the base registered at
// New.
func (c *Controller) IRQToVector(irq int) *trap.Vector {
	return c.table.Vector(c.base + uint8(irq))
}

// EndOfInterrupt writes non-specific EOI to the slave then master for IRQs
// >= 8, and to the master alone otherwise.
func (c *Controller) EndOfInterrupt(vector uint8) {
	irq := int(vector) - int(c.base)
	if irq >= 8 {
		c.ops.Out8(slaveCommand, nonSpecificEOI)
	}
	c.ops.Out8(masterCommand, nonSpecificEOI)
}

// InterruptAllOther is a no-op: the 8259 has no IPI mechanism.
func (c *Controller) InterruptAllOther(vector uint8) {}

// NumberOfProcessors is always 1 for the legacy PIC.
func (c *Controller) NumberOfProcessors() int { return 1 }
