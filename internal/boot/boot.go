// Package boot wires together the external contracts of §6 and the core
// components of §4 into a bootable Kernel, following the BSP control flow
// of §2: "A→memory→console→GDT→IDT→syscall→task→PIC→per-CPU timer; APs
// repeat from GDT."
//
// The *Kernel that Boot constructs and returns stands in for the original
// tree's global SystemGlobal (§9 design note); the package keeps no
// package-level variable holding it. Every CPU that joins afterward only ever adds
// a proclocal.Record to it -- the IDT and syscall table are shared and
// immutable once Boot returns.
//
// AP bring-up is modeled the way biscuit's cpus_start/ap_entry pair
// brings up real application processors (INIT IPI, then STARTUP IPI, then
// a rendezvous barrier before the BSP proceeds) but with goroutines
// standing in for hardware threads: each simulated AP is a goroutine
// pinned with runtime.LockOSThread, fanned out and joined with
// golang.org/x/sync/errgroup instead of a raw secret-storage handshake
// page.
package boot

import (
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/nehcdnr/gokernel/internal/arch"
	"github.com/nehcdnr/gokernel/internal/bootcfg"
	"github.com/nehcdnr/gokernel/internal/hostsim"
	"github.com/nehcdnr/gokernel/internal/klog"
	"github.com/nehcdnr/gokernel/internal/pic"
	"github.com/nehcdnr/gokernel/internal/pic/apic"
	"github.com/nehcdnr/gokernel/internal/pic/pic8259"
	"github.com/nehcdnr/gokernel/internal/proclocal"
	"github.com/nehcdnr/gokernel/internal/spinlock"
	"github.com/nehcdnr/gokernel/internal/syscall"
	"github.com/nehcdnr/gokernel/internal/task"
	"github.com/nehcdnr/gokernel/internal/timer"
	"github.com/nehcdnr/gokernel/internal/trap"
)

// CPU bundles one simulated hardware thread's arch.Ops with the per-CPU
// state the boot sequence installs for it (§4.F's ProcessorLocal tuple,
// materialized concretely).
type CPU struct {
	Ops     arch.Ops
	Manager *task.Manager
	Timer   *timer.EventList
	GDT     *hostsim.SegmentTable
	LAPIC   *hostsim.LAPIC
}

// Kernel is the booted system: the shared SystemGlobal-equivalent state
// (IDT, syscall table, PIC, proclocal directory) plus every CPU that has
// joined.
type Kernel struct {
	Config  bootcfg.Config
	Machine *hostsim.Machine
	Console *hostsim.Console
	Log     *klog.Logger

	IDT   *trap.Table
	Calls *syscall.Table
	PIC   pic.Controller
	Proc  *proclocal.Table

	BSP *CPU
	APs []*CPU
}

// Boot runs the BSP control flow of §2 and, for an APIC configuration
// with more than one CPU, brings up the remaining APs before returning.
func Boot(cfg bootcfg.Config) (*Kernel, error) {
	machine, err := hostsim.NewMachine(cfg.PhysicalMemory)
	if err != nil {
		return nil, fmt.Errorf("boot: %w", err)
	}
	console := hostsim.NewConsole(cfg.ConsoleCapacity)
	log := klog.New(console)

	bspOps := machine.NewCPU(0)
	idt := trap.NewTable(log)
	calls := syscall.Init(bspOps, idt)
	proc := proclocal.Init(cfg.CPUs)

	bsp := &CPU{
		Ops:     bspOps,
		Manager: task.NewManager(),
		Timer:   timer.NewEventList(),
		GDT:     hostsim.NewSegmentTable(),
	}

	k := &Kernel{
		Config:  cfg,
		Machine: machine,
		Console: console,
		Log:     log,
		IDT:     idt,
		Calls:   calls,
		Proc:    proc,
		BSP:     bsp,
	}

	switch cfg.PIC {
	case bootcfg.PIC8259:
		k.PIC = pic8259.New(bspOps, idt, trap.IRQBaseDefault)
	case bootcfg.APIC:
		bsp.LAPIC = hostsim.NewLAPIC(0)
		ids := make([]uint8, cfg.CPUs)
		for i := range ids {
			ids[i] = uint8(i)
		}
		k.PIC = apic.New(bspOps, idt, bsp.LAPIC, trap.IRQBaseDefault, ids)
	default:
		return nil, fmt.Errorf("boot: unknown pic variant %q", cfg.PIC)
	}

	proc.Set(bspOps, k.PIC, bsp.GDT, bsp.Manager, bsp.Timer)
	timer.SetFrequency(bspOps, cfg.TimerFrequency)
	log.Info("bsp online", "cpus", cfg.CPUs, "pic", string(cfg.PIC))

	if cfg.CPUs > 1 {
		if cfg.PIC != bootcfg.APIC {
			return nil, fmt.Errorf("boot: %d cpus requires pic: apic", cfg.CPUs)
		}
		if err := k.bringUpAPs(); err != nil {
			return nil, err
		}
	}

	return k, nil
}

// bringUpAPs repeats the GDT-onward portion of the BSP's control flow
// (§2: "APs repeat from GDT") for every remaining simulated CPU, each on
// its own OS thread so the goroutine scheduler cannot interleave two
// "CPUs'" work onto one another the way real SMP hardware never would
// either.
func (k *Kernel) bringUpAPs() error {
	apController, ok := k.PIC.(*apic.Controller)
	if !ok {
		return fmt.Errorf("boot: AP bring-up requires the apic controller")
	}

	barrier := &spinlock.Barrier{}
	target := uint32(k.Config.CPUs)

	g := new(errgroup.Group)
	k.APs = make([]*CPU, k.Config.CPUs-1)
	for i := 1; i < k.Config.CPUs; i++ {
		apicID := uint8(i)
		idx := i - 1
		g.Go(func() error {
			runtime.LockOSThread()
			defer runtime.UnlockOSThread()

			ops := k.Machine.NewCPU(apicID)
			apController.InterprocessorINIT(apicID)
			apController.InterprocessorSTARTUP(apicID, 0)

			ap := &CPU{
				Ops:     ops,
				Manager: task.NewManager(),
				Timer:   timer.NewEventList(),
				GDT:     hostsim.NewSegmentTable(),
				LAPIC:   hostsim.NewLAPIC(apicID),
			}
			k.Proc.Set(ops, k.PIC, ap.GDT, ap.Manager, ap.Timer)
			k.APs[idx] = ap

			barrier.AddAndWait(ops, target)
			k.Log.Info("ap online", "apic_id", apicID)
			return nil
		})
	}
	barrier.AddAndWait(k.BSP.Ops, target)
	return g.Wait()
}
