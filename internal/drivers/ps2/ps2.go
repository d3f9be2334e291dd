// Package ps2 is a supplemented driver task (SPEC_FULL §3.1/§4.L):
// the distilled spec.md names PS/2 only as an external collaborator, but
// original_source/src/kernel/io/keyboard.h shows the real tree runs it as
// an ordinary kernel task that drains a scancode queue and hands
// translated bytes to whoever registered interest. Here it is a
// task.Manager kernel task reading from a simulated scancode FIFO
// (hostsim.Keyboard) and registering a "ps2kbd" syscall service that
// returns the most recently translated byte.
package ps2

import (
	"sync"

	"github.com/nehcdnr/gokernel/internal/arch"
	"github.com/nehcdnr/gokernel/internal/hostsim"
	"github.com/nehcdnr/gokernel/internal/sem"
	"github.com/nehcdnr/gokernel/internal/syscall"
	"github.com/nehcdnr/gokernel/internal/task"
	"github.com/nehcdnr/gokernel/internal/trap"
)

// ServiceName is the registered syscall service name for this driver,
// matching original_source/src/interrupt/systemcall.h's
// KEYBOARD_SERVICE_NAME.
const ServiceName = "ps2kbd"

// scancodeToASCII is a minimal, intentionally partial set-1 translation
// table: enough to demonstrate the driver's translate step without
// reproducing a full keymap.
var scancodeToASCII = map[byte]byte{
	0x1E: 'a', 0x30: 'b', 0x2E: 'c', 0x20: 'd', 0x12: 'e',
	0x21: 'f', 0x22: 'g', 0x23: 'h', 0x17: 'i', 0x24: 'j',
	0x39: ' ',
}

// Driver is the ps2 driver task's state, shared between the kernel task
// body and the registered syscall handler.
type Driver struct {
	mu    sync.Mutex
	last  byte
	Ready *sem.Semaphore // released once per translated scancode
	kbd   *hostsim.Keyboard
}

// Start creates and resumes the driver's kernel task on tm, and registers
// its syscall service on calls. Returns the driver for tests that want to
// assert on translated output directly.
func Start(ops arch.Ops, tm *task.Manager, calls *syscall.Table, kbd *hostsim.Keyboard) *Driver {
	d := &Driver{Ready: sem.New(0), kbd: kbd}

	t := tm.CreateKernelTask(ops, "ps2", 1, func(_ *task.Task) {
		for {
			sc := kbd.ReadScancode()
			ch, ok := scancodeToASCII[sc]
			if !ok {
				continue
			}
			d.mu.Lock()
			d.last = ch
			d.mu.Unlock()
			d.Ready.Release(ops, tm)
		}
	})
	tm.Resume(ops, t)

	_, _ = calls.RegisterSystemService(ops, ServiceName, d.syscallRead, nil)
	return d
}

// syscallRead is the registered SYSCALL handler: returns the most recently
// translated byte in eax without blocking (Ready is not consulted).
func (d *Driver) syscallRead(p *trap.Frame, _ any) {
	syscall.Return(p, uint32(d.LastByte()))
}

// LastByte returns the most recently translated ASCII byte, for direct
// use by tests and by syscallRead.
func (d *Driver) LastByte() byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

