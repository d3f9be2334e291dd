package pic8259_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nehcdnr/gokernel/internal/hostsim"
	"github.com/nehcdnr/gokernel/internal/klog"
	"github.com/nehcdnr/gokernel/internal/pic/pic8259"
	"github.com/nehcdnr/gokernel/internal/trap"
)

// tracingCPU records every Out8 issued to it, atop a real simulated CPU,
// so the test can assert on the exact port sequence (S5).
type tracingCPU struct {
	*hostsim.CPU
	writes []write
}

type write struct {
	port uint16
	val  uint8
}

func (c *tracingCPU) Out8(port uint16, v uint8) {
	c.writes = append(c.writes, write{port, v})
	c.CPU.Out8(port, v)
}

func newTracingCPU(t *testing.T) *tracingCPU {
	t.Helper()
	m, err := hostsim.NewMachine(4096)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return &tracingCPU{CPU: m.NewCPU(0)}
}

// S5: 8259 init with vectorBase=0x20.
func TestInitPortSequence(t *testing.T) {
	ops := newTracingCPU(t)
	table := trap.NewTable(klog.Discard())

	pic8259.New(ops, table, 0x20)

	want := []write{
		{0x21, 0xFF}, {0xA1, 0xFF},
		{0x20, 0x11}, {0x21, 0x20}, {0x21, 0x04}, {0x21, 0x01},
		{0xA0, 0x11}, {0xA1, 0x28}, {0xA1, 0x02}, {0xA1, 0x01},
		{0x21, 0xFF}, {0xA1, 0xFF},
		// SetMask(2, false) unmasking the slave cascade line last:
		{0x21, 0xFB},
	}
	require.Equal(t, len(want), len(ops.writes))
	for i, w := range want {
		require.Equal(t, w, ops.writes[i], "write #%d", i)
	}
}

func TestIRQToVectorContiguous(t *testing.T) {
	ops := newTracingCPU(t)
	table := trap.NewTable(klog.Discard())
	p := pic8259.New(ops, table, 0x20)

	require.Equal(t, uint8(0x20), p.IRQToVector(0).Number())
	require.Equal(t, uint8(0x2F), p.IRQToVector(15).Number())
}

func TestEndOfInterruptRoutesByIRQ(t *testing.T) {
	ops := newTracingCPU(t)
	table := trap.NewTable(klog.Discard())
	p := pic8259.New(ops, table, 0x20)
	ops.writes = nil

	p.EndOfInterrupt(0x20) // IRQ 0: master only
	require.Equal(t, []write{{0x20, 0x20}}, ops.writes)

	ops.writes = nil
	p.EndOfInterrupt(0x28) // IRQ 8: slave then master
	require.Equal(t, []write{{0xA0, 0x20}, {0x20, 0x20}}, ops.writes)
}

func TestNumberOfProcessorsAndInterruptAllOther(t *testing.T) {
	ops := newTracingCPU(t)
	table := trap.NewTable(klog.Discard())
	p := pic8259.New(ops, table, 0x20)

	require.Equal(t, 1, p.NumberOfProcessors())
	require.NotPanics(t, func() { p.InterruptAllOther(0x20) })
}
