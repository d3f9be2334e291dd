// Package i8254x is a supplemented driver task (SPEC_FULL §3.1/§4.L): a
// kernel task simulating an Intel 8254x-style NIC's TX/RX descriptor
// rings over hostsim.Nic, registering the "i8254x0" syscall service.
// Grounded on original_source/src/kernel/io/network/ethernet.h's
// descriptor-ring framing, reduced to a transmit-tail (TDT) / receive-tail
// (RDT) counter pair rather than a full descriptor memory layout.
package i8254x

import (
	"sync/atomic"

	"github.com/nehcdnr/gokernel/internal/arch"
	"github.com/nehcdnr/gokernel/internal/hostsim"
	"github.com/nehcdnr/gokernel/internal/sem"
	"github.com/nehcdnr/gokernel/internal/syscall"
	"github.com/nehcdnr/gokernel/internal/task"
	"github.com/nehcdnr/gokernel/internal/trap"
)

// ServiceName is this driver's registered syscall service name.
const ServiceName = "i8254x0"

// Driver is the i8254x driver task's state: TDT/RDT descriptor-ring
// tail counters plus the NIC's simulated loopback queue.
type Driver struct {
	nic *hostsim.Nic
	tdt uint32 // transmit descriptor tail: frames posted
	rdt uint32 // receive descriptor tail: frames delivered to software

	frameReady *sem.Semaphore
	mu         chan []byte // delivered-frame mailbox, drained by the task body
}

// Start creates and resumes the driver's kernel task on tm, and registers
// its syscall service on calls. The task body services the NIC's receive
// ring: every frame the loopback model delivers increments RDT and is
// queued for WaitFrame/syscallReceive.
func Start(ops arch.Ops, tm *task.Manager, calls *syscall.Table, nic *hostsim.Nic) *Driver {
	d := &Driver{nic: nic, frameReady: sem.New(0), mu: make(chan []byte, 64)}

	t := tm.CreateKernelTask(ops, "i8254x", 2, func(_ *task.Task) {
		for {
			frame := nic.Receive()
			atomic.AddUint32(&d.rdt, 1)
			d.mu <- frame
			d.frameReady.Release(ops, tm)
		}
	})
	tm.Resume(ops, t)

	_, _ = calls.RegisterSystemService(ops, ServiceName, d.syscallTransmit, nil)
	return d
}

// Transmit posts frame to the TX descriptor ring (TDT advances by one).
func (d *Driver) Transmit(frame []byte) {
	atomic.AddUint32(&d.tdt, 1)
	d.nic.Transmit(frame)
}

// WaitFrame blocks (via the per-frame semaphore) until a received frame
// is available and returns it.
func (d *Driver) WaitFrame(ops arch.Ops, tm *task.Manager) []byte {
	d.frameReady.Acquire(ops, tm)
	return <-d.mu
}

// TDT and RDT report the descriptor-ring tail counters, for diagnostics
// and tests.
func (d *Driver) TDT() uint32 { return atomic.LoadUint32(&d.tdt) }
func (d *Driver) RDT() uint32 { return atomic.LoadUint32(&d.rdt) }

// syscallTransmit is the registered SYSCALL handler: arg carries the
// frame bytes to transmit (host simulation stands in for a real
// user-memory copy-in of the frame).
func (d *Driver) syscallTransmit(p *trap.Frame, arg any) {
	frame, _ := arg.([]byte)
	if frame == nil {
		syscall.Return(p, 0)
		return
	}
	d.Transmit(frame)
	syscall.Return(p, 1)
}
