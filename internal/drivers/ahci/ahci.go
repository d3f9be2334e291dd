// Package ahci is a supplemented driver task (SPEC_FULL §3.1/§4.L): a
// kernel task servicing a simulated AHCI command queue against an
// in-memory block array (hostsim.Disk) instead of real MMIO command
// lists, registering the "ahci0" syscall service. Grounded on
// original_source/src/io/*'s pattern of a driver task draining a request
// queue and signalling completion per request via a semaphore.
package ahci

import (
	"sync"

	"github.com/nehcdnr/gokernel/internal/arch"
	"github.com/nehcdnr/gokernel/internal/hostsim"
	"github.com/nehcdnr/gokernel/internal/sem"
	"github.com/nehcdnr/gokernel/internal/syscall"
	"github.com/nehcdnr/gokernel/internal/task"
	"github.com/nehcdnr/gokernel/internal/trap"
)

// ServiceName is this driver's registered syscall service name.
const ServiceName = "ahci0"

// command is one queued read/write request, standing in for an AHCI
// command-list entry.
type command struct {
	write  bool
	sector int
	buf    []byte
	done   *sem.Semaphore
}

// Driver is the ahci driver task's state.
type Driver struct {
	disk *hostsim.Disk

	mu    sync.Mutex
	queue []*command

	pending *sem.Semaphore // counts queued-but-unserviced commands
}

// Start creates and resumes the driver's kernel task on tm, and registers
// its syscall service on calls.
func Start(ops arch.Ops, tm *task.Manager, calls *syscall.Table, disk *hostsim.Disk) *Driver {
	d := &Driver{disk: disk, pending: sem.New(0)}

	t := tm.CreateKernelTask(ops, "ahci", 2, func(_ *task.Task) {
		for {
			d.pending.Acquire(ops, tm)
			cmd := d.pop()
			if cmd == nil {
				continue
			}
			if cmd.write {
				disk.WriteSector(cmd.sector, cmd.buf)
			} else {
				disk.ReadSector(cmd.sector, cmd.buf)
			}
			cmd.done.Release(ops, tm)
		}
	})
	tm.Resume(ops, t)

	_, _ = calls.RegisterSystemService(ops, ServiceName, d.syscallRequest, nil)
	return d
}

func (d *Driver) pop() *command {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.queue) == 0 {
		return nil
	}
	c := d.queue[0]
	d.queue = d.queue[1:]
	return c
}

func (d *Driver) push(c *command) {
	d.mu.Lock()
	d.queue = append(d.queue, c)
	d.mu.Unlock()
}

// ReadSector queues a read of sector n into buf and blocks (via the
// completion semaphore) until it has been serviced.
func (d *Driver) ReadSector(ops arch.Ops, tm *task.Manager, n int, buf []byte) {
	c := &command{sector: n, buf: buf, done: sem.New(0)}
	d.push(c)
	d.pending.Release(ops, tm)
	c.done.Acquire(ops, tm)
}

// WriteSector queues a write of buf to sector n and blocks until it has
// been serviced.
func (d *Driver) WriteSector(ops arch.Ops, tm *task.Manager, n int, buf []byte) {
	c := &command{write: true, sector: n, buf: buf, done: sem.New(0)}
	d.push(c)
	d.pending.Release(ops, tm)
	c.done.Acquire(ops, tm)
}

// syscallRequest is the registered SYSCALL handler: ebx selects
// read(0)/write(1), ecx the sector; the caller-owned SectorSize buffer
// is passed as a Go []byte via arg and edx is not read (host
// simulation has no real user/kernel address translation to perform
// here, matching §6's "File/driver tasks ... interact via the syscall
// table and semaphores").
func (d *Driver) syscallRequest(p *trap.Frame, arg any) {
	buf, _ := arg.([]byte)
	if buf == nil {
		syscall.Return(p, 0)
		return
	}
	sector := int(syscall.Arg(p, 1))
	if syscall.Arg(p, 0) == 1 {
		d.disk.WriteSector(sector, buf)
	} else {
		d.disk.ReadSector(sector, buf)
	}
	syscall.Return(p, 1)
}
