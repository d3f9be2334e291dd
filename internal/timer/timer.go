// Package timer implements §3/§4.E: PIT programming, the per-CPU pending
// timer-event list, kernel-level sleep, and the alarm syscalls. The event
// list is touched only from timer-interrupt context and from the issuing
// task with interrupts disabled, so per §5 it needs no spinlock of its own
// -- disabling interrupts is the critical section.
package timer

import (
	"github.com/nehcdnr/gokernel/internal/arch"
)

// TimerFrequency is the fixed PIT tick rate (§6): 100 Hz, 10ms per tick.
const TimerFrequency = 100

// pit8254InputFrequency is the PIT's crystal frequency in Hz.
const pit8254InputFrequency = 1193182

const (
	pitChannel0Data = 0x40
	pitModeCommand  = 0x43
	pitMode2RateGen = 0x34 // channel 0, lo/hi access, mode 2, binary
)

// SetFrequency programs PIT channel 0 for rate-generator mode at freq Hz
// (S1): period = round(1_193_182 / freq), lo-byte then hi-byte.
func SetFrequency(ops arch.Ops, freq int) {
	period := (pit8254InputFrequency + freq/2) / freq
	ops.Out8(pitModeCommand, pitMode2RateGen)
	ops.Out8(pitChannel0Data, uint8(period&0xFF))
	ops.Out8(pitChannel0Data, uint8((period>>8)&0xFF))
}

// Callback is fired when a TimerEvent's wait expires. Per §3, callbacks
// must not block and must return quickly -- they run with interrupts
// disabled, inside the tick handler.
type Callback func(arg any)

// Event is the TimerEvent of §3: owned by the issuing stack frame for
// blocking sleeps, owned by the event list for detached alarms.
type Event struct {
	waitTicks int
	callback  Callback
	arg       any
	next      *Event
	linked    bool
}

// pending reports whether the event is still linked on its list.
func (e *Event) pending() bool { return e.linked }

// EventList is the per-processor TimerEventList of §3.
type EventList struct {
	head *Event
}

// NewEventList returns an empty list (createTimer()).
func NewEventList() *EventList {
	return &EventList{}
}

// link pushes e onto the list head. Caller must hold interrupts disabled.
func (l *EventList) link(e *Event) {
	e.next = l.head
	e.linked = true
	l.head = e
}

// unlink removes e from the list if present. Caller must hold interrupts
// disabled. O(n) in the number of pending events, matching the original's
// singly-linked list.
func (l *EventList) unlink(e *Event) bool {
	if l.head == e {
		l.head = e.next
		e.linked = false
		e.next = nil
		return true
	}
	for p := l.head; p != nil && p.next != nil; p = p.next {
		if p.next == e {
			p.next = e.next
			e.linked = false
			e.next = nil
			return true
		}
	}
	return false
}

// Scheduler is the narrow slice of the task manager the tick handler needs:
// the ability to trigger a context switch at nesting depth zero. Modeled as
// an interface, rather than importing package task directly, so that timer
// does not depend on package task (timer's tick handler calls back into the
// scheduler through this interface only).
type Scheduler interface {
	Schedule(ops arch.Ops)
}

// nestDepth tracks interrupt nesting per call to Tick; the scheduler is
// only invoked when a tick fires at depth zero (§4.E, §4.G preemption
// policy).
var nestDepth int

// Tick is the timer IRQ handler (§4.E "Tick handler"). It walks l,
// decrementing waitTicks and unlinking any event that reaches zero, fires
// each expired callback, then signals EOI via eoi -- matching §4.E's
// ordering ("unlink and fire its callback... Call endOfInterrupt") -- and
// finally, at nesting depth zero, re-enables interrupts and hands control
// to sched (Open Question #1, decided in DESIGN.md: this implementation
// re-enables interrupts before calling Schedule).
func Tick(ops arch.Ops, l *EventList, eoi func(), sched Scheduler) {
	nestDepth++

	var fired []*Event
	prev := (*Event)(nil)
	cur := l.head
	for cur != nil {
		next := cur.next
		cur.waitTicks--
		if cur.waitTicks <= 0 {
			if prev == nil {
				l.head = next
			} else {
				prev.next = next
			}
			cur.linked = false
			cur.next = nil
			fired = append(fired, cur)
		} else {
			prev = cur
		}
		cur = next
	}

	for _, e := range fired {
		e.callback(e.arg)
	}

	eoi()

	nestDepth--
	if nestDepth == 0 {
		ops.EnableInterrupts()
		if sched != nil {
			sched.Schedule(ops)
		}
	}
}

// KernelSleep implements §4.E's kernelSleep: block the calling goroutine
// (standing in for the calling task) for ms milliseconds, computed as
// waitTicks = ceil(TimerFrequency * ms / 1000) (S4).
func KernelSleep(ops arch.Ops, l *EventList, ms int) {
	waitTicks := (TimerFrequency*ms + 999) / 1000

	done := make(chan struct{})
	ev := &Event{
		waitTicks: waitTicks,
		callback: func(any) {
			close(done)
		},
	}

	wasSet := ops.DisableInterrupts()
	if waitTicks <= 0 {
		ev.callback(nil)
	} else {
		l.link(ev)
	}
	if wasSet {
		ops.EnableInterrupts()
	}

	<-done
}

// Handle is the opaque identifier returned by SetAlarm, used by WaitIO and
// CancelIO.
type Handle struct {
	event    *Event
	list     *EventList
	periodic bool
	waitTicks int
	fired    chan struct{}
}

// SetAlarm implements systemCall_setAlarm: allocate a detached event on l.
// If periodic, the callback re-links itself with the same waitTicks on
// every firing.
func SetAlarm(ops arch.Ops, l *EventList, ms int, periodic bool) *Handle {
	waitTicks := (TimerFrequency*ms + 999) / 1000
	h := &Handle{list: l, periodic: periodic, waitTicks: waitTicks, fired: make(chan struct{}, 1)}
	h.event = &Event{waitTicks: waitTicks, callback: h.onFire}

	wasSet := ops.DisableInterrupts()
	l.link(h.event)
	if wasSet {
		ops.EnableInterrupts()
	}
	return h
}

func (h *Handle) onFire(any) {
	select {
	case h.fired <- struct{}{}:
	default:
	}
	if h.periodic {
		h.event.waitTicks = h.waitTicks
		h.list.link(h.event)
	}
}

// WaitIO implements systemCall_waitIO: block until h's event fires.
func (h *Handle) WaitIO() {
	<-h.fired
}

// CancelIO implements systemCall_cancelIO: remove h's event if still
// pending. Returns true iff cancellation won the race against firing
// (testable property 6: exactly one of cancel/wait observes the event).
func (h *Handle) CancelIO(ops arch.Ops) bool {
	wasSet := ops.DisableInterrupts()
	removed := h.list.unlink(h.event)
	if wasSet {
		ops.EnableInterrupts()
	}
	return removed
}
