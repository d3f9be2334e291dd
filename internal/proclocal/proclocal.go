// Package proclocal implements the ProcessorLocal record of §3/§4.F: the
// per-CPU (PIC, SegmentTable, TaskManager, TimerEventList) tuple, looked
// up by LAPIC id on SMP or by the fixed index 0 on a uniprocessor build.
//
// Grounded on original_source/src/kernel/multiprocessor/processorlocal.c
// style per-CPU arrays indexed by APIC id seen throughout the
// multiprocessor/ tree, generalized here into a typed Go table instead of
// void* slots.
package proclocal

import (
	"fmt"
	"sync"

	"github.com/nehcdnr/gokernel/internal/arch"
)

// Record is one CPU's ProcessorLocal tuple (§3). Fields are set exactly
// once by Set and are stable thereafter (§3 invariant).
type Record struct {
	PIC     any
	GDT     any
	TM      any
	Timer   any
	present bool
}

// Table is the per-LAPIC-id array of §4.F.
type Table struct {
	mu      sync.RWMutex
	records map[uint8]*Record
	maxCPUs int
}

// Init implements initProcessorLocal(maxCpus): allocates a zeroed table
// indexed by LAPIC id, or by the fixed index 0 if maxCPUs == 1.
func Init(maxCPUs int) *Table {
	return &Table{records: make(map[uint8]*Record), maxCPUs: maxCPUs}
}

// key maps a CPU's arch.Ops identity to its index: fixed 0 on UP, the
// CPU's initial APIC id on SMP (§4.F).
func (t *Table) key(ops arch.Ops) uint8 {
	if t.maxCPUs <= 1 {
		return 0
	}
	return ops.InitialAPICID()
}

// Set implements setProcessorLocal(pic, gdt, tm, timer): populates the
// calling CPU's record. Panics if called twice for the same CPU --
// ProcessorLocal pointers are meant to be installed exactly once (§3).
func (t *Table) Set(ops arch.Ops, pic, gdt, tm, timer any) {
	k := t.key(ops)
	t.mu.Lock()
	defer t.mu.Unlock()
	if r, ok := t.records[k]; ok && r.present {
		panic(fmt.Sprintf("proclocal: cpu %d already initialized", k))
	}
	t.records[k] = &Record{PIC: pic, GDT: gdt, TM: tm, Timer: timer, present: true}
}

// record fetches the calling CPU's record, disabling interrupts across
// the load iff they were enabled, then restoring, per §4.F's guarantee
// that the returned pointer refers to the CPU that executed the call.
func (t *Table) record(ops arch.Ops) *Record {
	wasSet := ops.DisableInterrupts()
	k := t.key(ops)
	t.mu.RLock()
	r := t.records[k]
	t.mu.RUnlock()
	if wasSet {
		ops.EnableInterrupts()
	}
	if r == nil {
		panic(fmt.Sprintf("proclocal: cpu %d not initialized", k))
	}
	return r
}

// PIC implements processorLocalPIC().
func (t *Table) PIC(ops arch.Ops) any { return t.record(ops).PIC }

// GDT implements processorLocalGDT().
func (t *Table) GDT(ops arch.Ops) any { return t.record(ops).GDT }

// TaskManager implements processorLocalTaskManager().
func (t *Table) TaskManager(ops arch.Ops) any { return t.record(ops).TM }

// Timer implements processorLocalTimer().
func (t *Table) Timer(ops arch.Ops) any { return t.record(ops).Timer }
