package proclocal_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nehcdnr/gokernel/internal/hostsim"
	"github.com/nehcdnr/gokernel/internal/proclocal"
)

func newMachine(t *testing.T) *hostsim.Machine {
	t.Helper()
	m, err := hostsim.NewMachine(4096)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestUniprocessorUsesFixedIndex(t *testing.T) {
	m := newMachine(t)
	ops := m.NewCPU(7) // APIC id must not matter on UP
	tbl := proclocal.Init(1)

	tbl.Set(ops, "pic", "gdt", "tm", "timer")
	require.Equal(t, "pic", tbl.PIC(ops))
	require.Equal(t, "tm", tbl.TaskManager(ops))
}

func TestSetTwiceForSameCPUPanics(t *testing.T) {
	m := newMachine(t)
	ops := m.NewCPU(0)
	tbl := proclocal.Init(1)

	tbl.Set(ops, "pic", "gdt", "tm", "timer")
	require.Panics(t, func() { tbl.Set(ops, "pic2", "gdt2", "tm2", "timer2") })
}

func TestLookupBeforeSetPanics(t *testing.T) {
	m := newMachine(t)
	ops := m.NewCPU(0)
	tbl := proclocal.Init(1)

	require.Panics(t, func() { tbl.PIC(ops) })
}

func TestSMPRecordsAreKeyedByAPICID(t *testing.T) {
	m := newMachine(t)
	bsp := m.NewCPU(0)
	ap := m.NewCPU(1)
	tbl := proclocal.Init(2)

	tbl.Set(bsp, "bsp-pic", "bsp-gdt", "bsp-tm", "bsp-timer")
	tbl.Set(ap, "ap-pic", "ap-gdt", "ap-tm", "ap-timer")

	require.Equal(t, "bsp-pic", tbl.PIC(bsp))
	require.Equal(t, "ap-pic", tbl.PIC(ap))
}
