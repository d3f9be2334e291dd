package hostsim

import "sync"

// PageTable stands in for the §6 paging contract (createPageTable,
// mapKernelPage, unmapPage, translatePage): a map[linear]physical instead
// of real multi-level page-table walks. SetCR3 is recorded on the owning
// Machine's simulated CR3 register so CreateUserTask-style code that
// checks "did the loader switch address spaces" observes the same effect
// a real mapKernelPage/setCR3 pair would have.
type PageTable struct {
	mu   sync.Mutex
	m    map[uint32]uint32
	cr3  uint32
}

// NewPageTable implements createPageTable(). cr3Value is an opaque token
// identifying this table, written to the CPU's CR3 by SetCR3.
func NewPageTable(cr3Value uint32) *PageTable {
	return &PageTable{m: make(map[uint32]uint32), cr3: cr3Value}
}

// SetCR3 implements setCR3(pt): writes the table's identifying CR3 value
// to the calling CPU.
func (p *PageTable) SetCR3(c *CPU) {
	c.WriteCR3(p.cr3)
}

// MapKernelPage implements mapKernelPage(pt, lin, phys).
func (p *PageTable) MapKernelPage(lin, phys uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.m[lin] = phys
}

// UnmapPage implements unmapPage(pt, lin).
func (p *PageTable) UnmapPage(lin uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.m, lin)
}

// TranslatePage implements translatePage(pt, lin) -> phys-or-null.
func (p *PageTable) TranslatePage(lin uint32) (uint32, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	phys, ok := p.m[lin]
	return phys, ok
}
