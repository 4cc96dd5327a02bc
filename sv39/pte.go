// Package sv39 implements the three-level Sv39 page table: the PTE wire
// format, per-level indexing, and the walker that map/unmap/translate
// build on. It is grounded on the teacher's x86-64 four-level page table
// code (biscuit's mem/dmap.go, generalized from its shl(c)=12+9*c level
// math down to Sv39's three levels) and, for the exact RISC-V bit
// semantics, on the original Rust kernel's shared/librust/src/mem.rs and
// vanadinite/src/mem/paging/manager.rs.
package sv39

import (
	"vanadinite/addr"
	"vanadinite/kernerr"
)

// PTE is a single 64-bit Sv39 page table entry.
type PTE uint64

const (
	bitValid    = 1 << 0
	bitRead     = 1 << 1
	bitWrite    = 1 << 2
	bitExecute  = 1 << 3
	bitUser     = 1 << 4
	bitGlobal   = 1 << 5
	bitAccessed = 1 << 6
	bitDirty    = 1 << 7

	ppnShift = 10
	ppnBits  = 44
	ppnMask  = (uint64(1)<<ppnBits - 1) << ppnShift
)

// Perm is a composition of Read, Write, and Execute permission bits. It
// is a subset of PTE's bits and is validated independently of any
// particular mapping.
type Perm uint8

const (
	Read Perm = 1 << iota
	Write
	Execute
)

// Valid reports whether the permission set is legal on Sv39: a
// writable-only mapping (write set, read clear) is reserved and must be
// rejected, while an execute-only mapping is legal.
func (p Perm) Valid() bool {
	if p&Write != 0 && p&Read == 0 {
		return false
	}
	return true
}

// Valid reports whether the entry's valid bit is set.
func (e PTE) Valid() bool { return e&bitValid != 0 }

// IsLeaf reports whether a valid entry is a leaf (any of R/W/X set) as
// opposed to a branch pointing at the next-level table.
func (e PTE) IsLeaf() bool { return e.Valid() && e&(bitRead|bitWrite|bitExecute) != 0 }

// IsBranch reports whether a valid entry is a branch.
func (e PTE) IsBranch() bool { return e.Valid() && e&(bitRead|bitWrite|bitExecute) == 0 }

// Perm extracts the R/W/X bits of the entry.
func (e PTE) Perm() Perm {
	var p Perm
	if e&bitRead != 0 {
		p |= Read
	}
	if e&bitWrite != 0 {
		p |= Write
	}
	if e&bitExecute != 0 {
		p |= Execute
	}
	return p
}

// PPN returns the entry's 44-bit physical page number.
func (e PTE) PPN() uint64 { return (uint64(e) & ppnMask) >> ppnShift }

// PhysicalAddress returns the entry's PPN shifted back into a byte
// address (the intra-page offset is the caller's to add).
func (e PTE) PhysicalAddress() addr.Physical {
	return addr.NewPhysical(uintptr(e.PPN() << addr.PageShift))
}

// User reports whether the entry is user-accessible.
func (e PTE) User() bool { return e&bitUser != 0 }

// Global reports whether the entry is marked global.
func (e PTE) Global() bool { return e&bitGlobal != 0 }

// Accessed reports the entry's accessed bit.
func (e PTE) Accessed() bool { return e&bitAccessed != 0 }

// Dirty reports the entry's dirty bit.
func (e PTE) Dirty() bool { return e&bitDirty != 0 }

// NewLeaf builds a leaf PTE mapping the given physical page with the
// given permissions. user selects the user-accessible bit.
func NewLeaf(phys addr.Physical, perm Perm, user bool) (PTE, error) {
	if !perm.Valid() {
		return 0, kernerr.New(kernerr.InvalidArgument, "sv39: write-without-read permission is reserved")
	}
	ppn := uint64(phys.Uintptr()) >> addr.PageShift
	e := PTE(bitValid) | PTE(ppn<<ppnShift)
	if perm&Read != 0 {
		e |= bitRead
	}
	if perm&Write != 0 {
		e |= bitWrite
	}
	if perm&Execute != 0 {
		e |= bitExecute
	}
	if user {
		e |= bitUser
	}
	return e, nil
}

// NewBranch builds a branch PTE pointing at the next-level table located
// at phys.
func NewBranch(phys addr.Physical) PTE {
	ppn := uint64(phys.Uintptr()) >> addr.PageShift
	return PTE(bitValid) | PTE(ppn<<ppnShift)
}
