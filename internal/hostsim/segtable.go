package hostsim

import "sync"

// kernelCodeSelector is the fixed GDT selector the simulated segment table
// reports for ring-0 code, matching a conventional flat-model GDT layout
// (null, kernel code, kernel data, ...).
const kernelCodeSelector = 0x08

// SegmentTable stands in for the §6 segment-table contract
// (createSegmentTable, loadgdt, setTSSKernelStack, getKernelCodeSelector):
// a fixed kernel code selector plus the most recently programmed TSS
// kernel-stack pointer (esp0), which is what taskSwitch actually needs to
// observe changing across a context switch.
type SegmentTable struct {
	mu    sync.Mutex
	esp0  uint32
}

// NewSegmentTable implements createSegmentTable().
func NewSegmentTable() *SegmentTable {
	return &SegmentTable{}
}

// Loadgdt implements loadgdt(gdt): on real hardware this loads GDTR; there
// is nothing to simulate beyond the table already being "current".
func (s *SegmentTable) Loadgdt() {}

// SetTSSKernelStack implements setTSSKernelStack(gdt, esp0): records the
// kernel-stack pointer the next privilege-level transition into ring 0
// should use.
func (s *SegmentTable) SetTSSKernelStack(esp0 uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.esp0 = esp0
}

// TSSKernelStack returns the most recently programmed kernel-stack
// pointer, for tests asserting that Switch reprograms the TSS.
func (s *SegmentTable) TSSKernelStack() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.esp0
}

// GetKernelCodeSelector implements getKernelCodeSelector(gdt).
func (s *SegmentTable) GetKernelCodeSelector() uint32 {
	return kernelCodeSelector
}
