package spinlock

import (
	"runtime"
	"sync/atomic"

	"github.com/nehcdnr/gokernel/internal/arch"
)

// Barrier is the counting barrier of §3/§4.B, used only to synchronize SMP
// bring-up (every AP arrives before the BSP proceeds).
type Barrier struct {
	count uint32
}

// AddAndWait implements Barrier.addAndWait(N): locked-increment, then
// spin-pause until the counter reaches target. No thread returns before the
// N-th arrival (testable property 7).
func (b *Barrier) AddAndWait(ops arch.Ops, target uint32) {
	ops.LockedAdd32(&b.count, 1)
	for atomic.LoadUint32(&b.count) < target {
		runtime.Gosched()
	}
}

// Reset zeroes the counter for reuse across multiple bring-up phases.
func (b *Barrier) Reset(ops arch.Ops) {
	ops.Exchange32(&b.count, 0)
}
