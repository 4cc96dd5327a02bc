package sv39

import (
	"vanadinite/addr"
	"vanadinite/kernerr"
)

// entriesPerTable is fixed by the architecture: a table occupies one
// 4 KiB page of 8-byte entries.
const entriesPerTable = 512

// Table is one level of an Sv39 page table: 512 eight-byte entries
// filling exactly one page.
type Table [entriesPerTable]PTE

// PageSize names one of Sv39's three mappable granules: level 0 leaves
// are 4 KiB, level 1 leaves are 2 MiB (a "megapage"), and level 2
// leaves are 1 GiB (a "gigapage"), mirroring manager.rs's PageSize enum.
type PageSize int

const (
	Page4K PageSize = iota
	Page2M
	Page1G
)

// level returns the root-relative table level a PageSize is mapped at:
// 0 for a leaf planted directly in the root (1 GiB), 1 for one branch
// down (2 MiB), 2 for two branches down (4 KiB).
func (s PageSize) level() int {
	switch s {
	case Page1G:
		return 0
	case Page2M:
		return 1
	default:
		return 2
	}
}

func (s PageSize) Bytes() uintptr {
	switch s {
	case Page1G:
		return 1 << 30
	case Page2M:
		return 1 << 21
	default:
		return 1 << 12
	}
}

func (s PageSize) String() string {
	switch s {
	case Page1G:
		return "1GiB"
	case Page2M:
		return "2MiB"
	default:
		return "4KiB"
	}
}

// vpn returns the index into the table at the given root-relative
// level (0, 1, or 2) for a virtual address, generalizing biscuit's
// dmap.go shl(c) = 12 + 9*c per-level shift to Sv39's three levels.
func vpn(v addr.Virtual, level int) uintptr {
	shift := uintptr(12 + 9*(2-level))
	return (v.Uintptr() >> shift) & 0x1ff
}

// AllocTable returns a freshly zeroed table and the physical address it
// lives at, so the walker can plant it as a branch PTE without knowing
// how tables are backed.
type AllocTable func() (*Table, addr.Physical)

// Phys2Virt dereferences the physical address of a table (as stored in
// a branch PTE's PPN) into the *Table the walker can index, mirroring
// the kernel's direct map.
type Phys2Virt func(addr.Physical) *Table

// Map installs a single mapping of size `size` from the physical page
// mapFrom to the virtual page mapTo, walking down from root and
// allocating any missing intermediate tables via alloc. It rejects
// addresses misaligned to the requested page size and refuses to plant
// a leaf over an already-valid entry.
func Map(root *Table, mapFrom addr.Physical, mapTo addr.Virtual, size PageSize, perm Perm, user bool, alloc AllocTable, p2v Phys2Virt) error {
	if !perm.Valid() {
		return kernerr.New(kernerr.InvalidArgument, "sv39: write-without-read permission is reserved")
	}
	if !mapFrom.AlignedTo(size.Bytes()) || !mapTo.AlignedTo(size.Bytes()) {
		return kernerr.New(kernerr.InvalidMapping, "sv39: map %s/%s misaligned for %s page", mapFrom, mapTo, size)
	}

	target := size.level()
	table := root
	for lvl := 0; lvl < target; lvl++ {
		idx := vpn(mapTo, lvl)
		e := table[idx]
		switch {
		case !e.Valid():
			next, phys := alloc()
			table[idx] = NewBranch(phys)
			table = next
		case e.IsLeaf():
			return kernerr.New(kernerr.InvalidMapping, "sv39: map %s crosses an existing leaf at level %d", mapTo, lvl)
		default:
			table = p2v(e.PhysicalAddress())
		}
	}

	idx := vpn(mapTo, target)
	if table[idx].Valid() {
		return kernerr.New(kernerr.InvalidMapping, "sv39: map %s already has a mapping at level %d", mapTo, target)
	}
	leaf, err := NewLeaf(mapFrom, perm, user)
	if err != nil {
		return err
	}
	table[idx] = leaf
	return nil
}

// walk descends from root following v's indices, returning the leaf
// entry and the level it was found at, or ok=false if no valid mapping
// covers v.
func walk(root *Table, v addr.Virtual, p2v Phys2Virt) (e PTE, level int, ok bool) {
	table := root
	for lvl := 0; lvl < 3; lvl++ {
		idx := vpn(v, lvl)
		cur := table[idx]
		if !cur.Valid() {
			return 0, 0, false
		}
		if cur.IsLeaf() {
			return cur, lvl, true
		}
		table = p2v(cur.PhysicalAddress())
	}
	return 0, 0, false
}

// IsMapped reports whether a valid leaf mapping covers the virtual
// address v.
func IsMapped(root *Table, v addr.Virtual, p2v Phys2Virt) bool {
	_, _, ok := walk(root, v, p2v)
	return ok
}

// Translate resolves a virtual address to the physical address it
// maps to, including the intra-page offset appropriate to whatever
// page size the covering leaf was mapped at.
func Translate(root *Table, v addr.Virtual, p2v Phys2Virt) (addr.Physical, bool) {
	e, level, ok := walk(root, v, p2v)
	if !ok {
		return 0, false
	}
	leafBytes := PageSize(level2size(level)).Bytes()
	pageBase := e.PhysicalAddress()
	offset := v.Uintptr() & (leafBytes - 1)
	return pageBase.Offset(offset), true
}

func level2size(level int) PageSize {
	switch level {
	case 0:
		return Page1G
	case 1:
		return Page2M
	default:
		return Page4K
	}
}

// Unmap clears the leaf mapping covering v, returning an error if no
// mapping exists there. It does not free the physical page nor any
// intermediate tables; that is the page-table manager's concern.
func Unmap(root *Table, v addr.Virtual, p2v Phys2Virt) error {
	table := root
	for lvl := 0; lvl < 3; lvl++ {
		idx := vpn(v, lvl)
		cur := table[idx]
		if !cur.Valid() {
			return kernerr.New(kernerr.InvalidMapping, "sv39: unmap %s: no mapping", v)
		}
		if cur.IsLeaf() {
			table[idx] = 0
			return nil
		}
		table = p2v(cur.PhysicalAddress())
	}
	return kernerr.New(kernerr.InvalidMapping, "sv39: unmap %s: no mapping", v)
}
