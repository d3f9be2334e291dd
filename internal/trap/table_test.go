package trap_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nehcdnr/gokernel/internal/hostsim"
	"github.com/nehcdnr/gokernel/internal/klog"
	"github.com/nehcdnr/gokernel/internal/trap"
)

func newCPU(t *testing.T) *hostsim.CPU {
	t.Helper()
	m, err := hostsim.NewMachine(4096)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m.NewCPU(0)
}

func TestRegisterGeneralInterruptFirstFit(t *testing.T) {
	ops := newCPU(t)
	table := trap.NewTable(klog.Discard())

	v1 := table.RegisterGeneralInterrupt(ops, func(*trap.Frame, any) {}, nil)
	require.NotNil(t, v1)
	require.Equal(t, uint8(trap.GeneralBase), v1.Number())

	v2 := table.RegisterGeneralInterrupt(ops, func(*trap.Frame, any) {}, nil)
	require.Equal(t, uint8(trap.GeneralBase+1), v2.Number())
}

func TestRegisterGeneralInterruptExhaustion(t *testing.T) {
	ops := newCPU(t)
	table := trap.NewTable(klog.Discard())

	for i := trap.GeneralBase; i <= trap.GeneralLast; i++ {
		require.NotNil(t, table.RegisterGeneralInterrupt(ops, func(*trap.Frame, any) {}, nil))
	}
	require.Nil(t, table.RegisterGeneralInterrupt(ops, func(*trap.Frame, any) {}, nil))
}

func TestRegisterIRQsTagsLines(t *testing.T) {
	table := trap.NewTable(klog.Discard())

	base := table.RegisterIRQs(32, 16)
	require.Equal(t, uint8(32), base.Number())
	require.Equal(t, 0, base.IRQ())
	require.Equal(t, 15, table.Vector(47).IRQ())
}

func TestCallHandlerDispatchesBoundHandler(t *testing.T) {
	ops := newCPU(t)
	table := trap.NewTable(klog.Discard())

	called := false
	var gotArg any
	table.RegisterInterrupt(ops, 40, func(p *trap.Frame, arg any) {
		called = true
		gotArg = arg
	}, "payload")

	table.CallHandler(ops, 40, &trap.Frame{Vector: 40})
	require.True(t, called)
	require.Equal(t, "payload", gotArg)
}

// §7: an unhandled CPU exception must halt, whether or not a logger is
// bound -- logging the register dump is never a substitute for stopping.
func TestCallHandlerUnboundLogsThenHalts(t *testing.T) {
	ops := newCPU(t)
	log := klog.Discard()
	table := trap.NewTable(log)

	require.Panics(t, func() {
		table.CallHandler(ops, 50, &trap.Frame{Vector: 50, EIP: 0x1000})
	})
}

func TestCallHandlerUnboundWithoutLoggerHalts(t *testing.T) {
	ops := newCPU(t)
	table := trap.NewTable(nil)

	require.Panics(t, func() {
		table.CallHandler(ops, 51, &trap.Frame{Vector: 51})
	})
}

// Open Question #3 decision: ReplaceHandler reports the previous
// handler+arg pair, and a subsequent dispatch observes only the new pair
// -- never a new handler paired with the old argument.
func TestReplaceHandlerSwapsAtomically(t *testing.T) {
	ops := newCPU(t)
	table := trap.NewTable(klog.Discard())

	table.RegisterInterrupt(ops, 60, func(*trap.Frame, any) {}, "old")

	v := table.Vector(60)
	var sawArg any
	h := trap.Handler(func(_ *trap.Frame, a any) { sawArg = a })
	arg := any("new")
	v.ReplaceHandler(ops, &h, &arg)

	require.Equal(t, "old", arg, "ReplaceHandler must write the previous argument back")

	table.CallHandler(ops, 60, &trap.Frame{})
	require.Equal(t, "new", sawArg, "dispatch must see the new argument, not the old one")
}
