// Package pgtbl is the kernel's page-table manager: it owns the single
// Sv39 root table, allocates backing frames for new mappings through a
// pmm.Allocator, and exposes the high-level mapping operations the rest
// of the kernel calls instead of touching sv39 directly. Grounded on
// original_source's vanadinite/src/mem/paging/manager.rs, translated
// from its global-singleton-plus-unsafe-pointer style into an ordinary
// Go type with an explicit spinlock.
package pgtbl

import (
	"vanadinite/addr"
	"vanadinite/kernerr"
	"vanadinite/pmm"
	"vanadinite/spinlock"
	"vanadinite/sv39"
)

// MMIODeviceOffset is added to a device's physical base address to
// produce the virtual address MapMMIO maps it at, matching the
// original's MMIO_DEVICE_OFFSET.
const MMIODeviceOffset = 0xFFFFFFE000000000

// SatpModeSv39 is the mode field value that selects Sv39 paging in the
// satp CSR.
const SatpModeSv39 = 8

// Manager owns one Sv39 root table and the allocator backing new
// mappings. All mapping operations are serialized by a single spinlock,
// matching the original's PAGE_TABLE_MANAGER mutex.
type Manager struct {
	mu        spinlock.Mutex
	root      *sv39.Table
	rootPhys  addr.Physical
	alloc     *pmm.Allocator
	phys2virt func(addr.Physical) *sv39.Table
}

// New allocates a zeroed root table from alloc and returns a Manager
// ready to take mappings. phys2virt must dereference any physical
// address pmm hands back into the corresponding *sv39.Table, i.e. the
// kernel's direct map.
func New(alloc *pmm.Allocator, phys2virt func(addr.Physical) *sv39.Table) (*Manager, error) {
	phys, ok := alloc.Alloc()
	if !ok {
		return nil, kernerr.New(kernerr.OutOfMemory, "pgtbl: no frame for root table")
	}
	return &Manager{root: phys2virt(phys), rootPhys: phys, alloc: alloc, phys2virt: phys2virt}, nil
}

// RootPhys returns the physical address of the root table, for
// installing into satp or handing to a child Vmspace.
func (m *Manager) RootPhys() addr.Physical { return m.rootPhys }

func (m *Manager) newTable() (*sv39.Table, addr.Physical) {
	phys, ok := m.alloc.Alloc()
	if !ok {
		panic("pgtbl: out of physical memory for page table")
	}
	return m.phys2virt(phys), phys
}

// AllocVirtualRange allocates and maps size/PageSize fresh, zeroed
// frames starting at start, one 4 KiB page at a time.
func (m *Manager) AllocVirtualRange(start addr.Virtual, size uintptr, perm sv39.Perm, user bool) error {
	if size%addr.PageSize != 0 {
		return kernerr.New(kernerr.InvalidArgument, "pgtbl: range size %#x not page aligned", size)
	}
	for off := uintptr(0); off < size; off += addr.PageSize {
		if err := m.AllocVirtual(start.Offset(off), perm, user); err != nil {
			return err
		}
	}
	return nil
}

// AllocVirtual allocates one fresh, zeroed frame and maps it at mapTo.
func (m *Manager) AllocVirtual(mapTo addr.Virtual, perm sv39.Perm, user bool) error {
	phys, ok := m.alloc.Alloc()
	if !ok {
		return kernerr.New(kernerr.OutOfMemory, "pgtbl: no frame to back %s", mapTo)
	}
	m.alloc.Refup(phys)
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := sv39.Map(m.root, phys, mapTo, sv39.Page4K, perm, user, m.newTable, m.phys2virt); err != nil {
		m.alloc.Refdown(phys)
		return err
	}
	return nil
}

// MapDirect maps an already-owned physical range at mapTo, taking no
// new frame from the allocator (the caller owns mapFrom's lifetime).
func (m *Manager) MapDirect(mapFrom addr.Physical, mapTo addr.Virtual, size sv39.PageSize, perm sv39.Perm, user bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sv39.Map(m.root, mapFrom, mapTo, size, perm, user, m.newTable, m.phys2virt)
}

// MapMMIO maps size bytes of MMIO register space at mapFrom into the
// kernel's fixed MMIO window, returning the virtual address it lands
// at.
func (m *Manager) MapMMIO(mapFrom addr.Physical, size uintptr) (addr.Virtual, error) {
	if size%addr.PageSize != 0 {
		return 0, kernerr.New(kernerr.InvalidArgument, "pgtbl: mmio size %#x not page aligned", size)
	}
	mapTo := addr.NewVirtual(MMIODeviceOffset + mapFrom.Uintptr())
	for off := uintptr(0); off < size; off += addr.PageSize {
		if err := m.MapDirect(mapFrom.Offset(off), mapTo.Offset(off), sv39.Page4K, sv39.Read|sv39.Write, false); err != nil {
			return 0, err
		}
	}
	return mapTo, nil
}

// Unmap clears whatever leaf mapping covers v. The underlying frame is
// not freed; ownership of that frame's lifetime belongs to whichever
// caller originally allocated it.
func (m *Manager) Unmap(v addr.Virtual) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sv39.Unmap(m.root, v, m.phys2virt)
}

// IsMapped reports whether a mapping covers v.
func (m *Manager) IsMapped(v addr.Virtual) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sv39.IsMapped(m.root, v, m.phys2virt)
}

// Translate resolves v to its backing physical address.
func (m *Manager) Translate(v addr.Virtual) (addr.Physical, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sv39.Translate(m.root, v, m.phys2virt)
}

// Satp returns the value to install into the satp CSR to activate this
// manager's root table under the given address-space id.
func (m *Manager) Satp(asid uint16) uint64 {
	return uint64(SatpModeSv39)<<60 | uint64(asid)<<44 | uint64(m.rootPhys.Uintptr())>>addr.PageShift
}
