// Package pic defines the polymorphic programmable-interrupt-controller
// capability set of §3/§4.D. Exactly one concrete Controller
// (pic8259.Controller or apic.Controller) exists per booted system; every
// call site dispatches through this interface rather than downcasting, per
// the spec's own redesign flag replacing the original's hand-rolled
// embedded-struct v-table.
package pic

import "github.com/nehcdnr/gokernel/internal/trap"

// Controller is the capability set every concrete PIC variant implements.
type Controller interface {
	// SetMask masks or unmasks irq.
	SetMask(irq int, masked bool)

	// IRQToVector returns the vector bound to irq.
	IRQToVector(irq int) *trap.Vector

	// EndOfInterrupt signals completion of the interrupt that arrived on
	// vector.
	EndOfInterrupt(vector uint8)

	// InterruptAllOther sends an IPI carrying vector to every processor
	// except the caller. A no-op on uniprocessor controllers.
	InterruptAllOther(vector uint8)

	// NumberOfProcessors reports how many CPUs this controller believes
	// are present.
	NumberOfProcessors() int
}
