package ahci_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nehcdnr/gokernel/internal/drivers/ahci"
	"github.com/nehcdnr/gokernel/internal/hostsim"
	"github.com/nehcdnr/gokernel/internal/klog"
	"github.com/nehcdnr/gokernel/internal/syscall"
	"github.com/nehcdnr/gokernel/internal/task"
	"github.com/nehcdnr/gokernel/internal/trap"
)

func newCPU(t *testing.T) *hostsim.CPU {
	t.Helper()
	m, err := hostsim.NewMachine(4096)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m.NewCPU(0)
}

// ReadSector/WriteSector are meant to be called from a task's own
// context (they block on a completion semaphore), so the test drives
// them from a dedicated requester task rather than the test goroutine
// itself.
func TestWriteThenReadRoundTrips(t *testing.T) {
	ops := newCPU(t)
	tm := task.NewManager()
	idt := trap.NewTable(klog.Discard())
	calls := syscall.Init(ops, idt)
	disk := hostsim.NewDisk(4)

	drv := ahci.Start(ops, tm, calls, disk)

	want := make([]byte, hostsim.SectorSize)
	for i := range want {
		want[i] = byte(i)
	}

	got := make([]byte, hostsim.SectorSize)
	done := make(chan struct{})
	req := tm.CreateKernelTask(ops, "req", 1, func(_ *task.Task) {
		drv.WriteSector(ops, tm, 1, want)
		drv.ReadSector(ops, tm, 1, got)
		close(done)
	})
	tm.Resume(ops, req)
	tm.Schedule(ops) // kicks off the ahci task / requester cascade

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("requester task never completed")
	}
	require.Equal(t, want, got)
}

func TestServiceIsRegisteredUnderItsName(t *testing.T) {
	ops := newCPU(t)
	tm := task.NewManager()
	idt := trap.NewTable(klog.Discard())
	calls := syscall.Init(ops, idt)
	disk := hostsim.NewDisk(2)

	ahci.Start(ops, tm, calls, disk)
	slot, ok := calls.QuerySystemService(ops, ahci.ServiceName)
	require.True(t, ok)
	require.GreaterOrEqual(t, slot, syscall.NumReserved)
}
