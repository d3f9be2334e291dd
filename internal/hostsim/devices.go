package hostsim

import "sync"

// RefCount mirrors original_source/src/kernel/memory/referencecount.c's
// lock-protected increment/decrement pattern, reused here to back the
// allocator's page reference counting (§3.1).
type RefCount struct {
	mu    sync.Mutex
	value int
}

// NewRefCount implements initReferenceCount(rc, value).
func NewRefCount(value int) *RefCount {
	return &RefCount{value: value}
}

// Add implements addReference(rc, changeValue): applies changeValue and
// returns the new total.
func (r *RefCount) Add(changeValue int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.value += changeValue
	return r.value
}

// Keyboard simulates the PS/2 scancode FIFO drivers/ps2 reads from,
// grounded on original_source/src/kernel/io/keyboard.h's scancode-queue
// device model.
type Keyboard struct {
	mu   sync.Mutex
	cond *sync.Cond
	fifo []byte
}

// NewKeyboard returns an empty simulated PS/2 keyboard.
func NewKeyboard() *Keyboard {
	k := &Keyboard{}
	k.cond = sync.NewCond(&k.mu)
	return k
}

// PushScancode simulates a keypress arriving at the controller, e.g. from
// a test driving the ps2 driver task.
func (k *Keyboard) PushScancode(b byte) {
	k.mu.Lock()
	k.fifo = append(k.fifo, b)
	k.mu.Unlock()
	k.cond.Signal()
}

// ReadScancode blocks until a scancode is available and returns it, the
// simulated equivalent of the ps2 driver's IRQ-driven read.
func (k *Keyboard) ReadScancode() byte {
	k.mu.Lock()
	defer k.mu.Unlock()
	for len(k.fifo) == 0 {
		k.cond.Wait()
	}
	b := k.fifo[0]
	k.fifo = k.fifo[1:]
	return b
}

// Disk simulates the block device drivers/ahci and drivers/fat32 operate
// over: a fixed array of fixed-size sectors instead of a real AHCI
// command queue and SATA device.
type Disk struct {
	mu      sync.Mutex
	sectors [][]byte
}

// SectorSize matches the conventional 512-byte disk sector.
const SectorSize = 512

// NewDisk returns a simulated disk with numSectors zeroed sectors.
func NewDisk(numSectors int) *Disk {
	d := &Disk{sectors: make([][]byte, numSectors)}
	for i := range d.sectors {
		d.sectors[i] = make([]byte, SectorSize)
	}
	return d
}

// ReadSector copies sector n into dst (must be >= SectorSize), standing
// in for an AHCI command-queue read completion.
func (d *Disk) ReadSector(n int, dst []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	copy(dst, d.sectors[n])
}

// WriteSector writes src into sector n, seeding a simulated disk image
// (e.g. a FAT32 filesystem) for drivers/fat32 to read back.
func (d *Disk) WriteSector(n int, src []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	copy(d.sectors[n], src)
}

// NumSectors reports the disk's capacity.
func (d *Disk) NumSectors() int {
	return len(d.sectors)
}

// Nic simulates the i8254x-style NIC's TX/RX descriptor rings as a
// loopback queue: every transmitted frame is immediately available to
// receive, enough to exercise drivers/i8254x end-to-end without a real
// Ethernet segment.
type Nic struct {
	mu   sync.Mutex
	cond *sync.Cond
	rx   [][]byte
}

// NewNic returns a simulated NIC with an empty receive queue.
func NewNic() *Nic {
	n := &Nic{}
	n.cond = sync.NewCond(&n.mu)
	return n
}

// Transmit simulates posting frame to the TX descriptor ring; the
// loopback model immediately makes it available to Receive.
func (n *Nic) Transmit(frame []byte) {
	cp := make([]byte, len(frame))
	copy(cp, frame)
	n.mu.Lock()
	n.rx = append(n.rx, cp)
	n.mu.Unlock()
	n.cond.Signal()
}

// Receive blocks until a frame is available on the RX descriptor ring and
// returns it.
func (n *Nic) Receive() []byte {
	n.mu.Lock()
	defer n.mu.Unlock()
	for len(n.rx) == 0 {
		n.cond.Wait()
	}
	f := n.rx[0]
	n.rx = n.rx[1:]
	return f
}
