package timer_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nehcdnr/gokernel/internal/hostsim"
	"github.com/nehcdnr/gokernel/internal/timer"
)

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

// S1: 100Hz rate-generator programming, period=round(1193182/100)=11932,
// lo byte then hi byte.
func TestSetFrequencyPortSequence(t *testing.T) {
	ops := newTracingCPU(t)
	timer.SetFrequency(ops, timer.TimerFrequency)

	want := []write{
		{0x43, 0x34},
		{0x40, 0x9C}, // 11932 & 0xFF
		{0x40, 0x2E}, // 11932 >> 8
	}
	require.Equal(t, want, ops.writes)
}

// S4: kernelSleep(35ms) waits ceil(100*35/1000) = 4 ticks, no more, no
// fewer.
func TestKernelSleepFiresAfterExactTickCount(t *testing.T) {
	ops := newTracingCPU(t)
	l := timer.NewEventList()

	done := make(chan struct{})
	go func() {
		timer.KernelSleep(ops, l, 35)
		close(done)
	}()
	time.Sleep(10 * time.Millisecond) // let the goroutine link its event

	eoiCalls := 0
	eoi := func() { eoiCalls++ }
	for i := 0; i < 3; i++ {
		timer.Tick(ops, l, eoi, nil)
		select {
		case <-done:
			t.Fatalf("kernelSleep fired after %d ticks, want 4", i+1)
		default:
		}
	}

	timer.Tick(ops, l, eoi, nil)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("kernelSleep never fired after its waitTicks elapsed")
	}
	require.Equal(t, 4, eoiCalls)
}

// A short and a long sleep linked together: Tick must fire only the one
// whose waitTicks has elapsed and leave the other pending.
func TestTickFiresOnlyExpiredEvents(t *testing.T) {
	ops := newTracingCPU(t)
	l := timer.NewEventList()

	short := make(chan struct{})
	long := make(chan struct{})
	go func() { timer.KernelSleep(ops, l, 10); close(short) }() // 1 tick
	go func() { timer.KernelSleep(ops, l, 1000); close(long) }() // 100 ticks
	time.Sleep(10 * time.Millisecond)

	timer.Tick(ops, l, func() {}, nil)

	select {
	case <-short:
	case <-time.After(time.Second):
		t.Fatal("short sleep never fired")
	}
	select {
	case <-long:
		t.Fatal("long sleep fired after a single tick")
	default:
	}
}

// invariant 6: cancel and wait never both observe the event -- canceling
// before it fires wins the race and WaitIO is left moot.
func TestCancelIOBeatsFiring(t *testing.T) {
	ops := newTracingCPU(t)
	l := timer.NewEventList()

	h := timer.SetAlarm(ops, l, 1000, false) // 100 ticks out, plenty of time to cancel
	require.True(t, h.CancelIO(ops))
	require.False(t, h.CancelIO(ops), "cancel is not idempotent once it already won")

	for i := 0; i < 100; i++ {
		timer.Tick(ops, l, func() {}, nil)
	}
}

// invariant 6, the other side: once the event has fired, cancellation no
// longer has anything to remove.
func TestCancelIOLosesAfterFiring(t *testing.T) {
	ops := newTracingCPU(t)
	l := timer.NewEventList()

	h := timer.SetAlarm(ops, l, 10, false) // 1 tick out
	timer.Tick(ops, l, func() {}, nil)
	h.WaitIO()

	require.False(t, h.CancelIO(ops))
}

// A periodic alarm re-links itself on every firing.
func TestPeriodicAlarmRefires(t *testing.T) {
	ops := newTracingCPU(t)
	l := timer.NewEventList()

	h := timer.SetAlarm(ops, l, 10, true) // 1 tick period
	for i := 0; i < 3; i++ {
		timer.Tick(ops, l, func() {}, nil)
		h.WaitIO()
	}
	require.True(t, h.CancelIO(ops), "periodic event must still be linked after each firing")
}
