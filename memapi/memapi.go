// Package memapi is the capability-backed virtual allocation syscall
// surface user tasks call into: MemoryAllocation's public_rw/private_rw
// constructors from the original, reworked as kernel-side syscall
// handlers that return a handle plus the mapped bytes instead of a
// user-space NonNull<[u8]>. Grounded on
// original_source/shared/librust/src/mem.rs's MemoryAllocation and
// AllocationOptions.
package memapi

import (
	"vanadinite/addr"
	"vanadinite/capability"
	"vanadinite/kernerr"
	"vanadinite/pgtbl"
	"vanadinite/pmm"
	"vanadinite/spinlock"
	"vanadinite/sv39"
)

// Options is the allocation option bitmask a syscall caller passes.
type Options uint32

const (
	None    Options = 0
	Private Options = 1 << 0
	Zero    Options = 1 << 1
)

// Permissions mirrors MemoryPermissions: the R/W/X bits a caller wants
// the mapping to carry.
type Permissions uint8

const (
	PermRead Permissions = 1 << iota
	PermWrite
	PermExecute
)

func (p Permissions) sv39() sv39.Perm {
	var out sv39.Perm
	if p&PermRead != 0 {
		out |= sv39.Read
	}
	if p&PermWrite != 0 {
		out |= sv39.Write
	}
	if p&PermExecute != 0 {
		out |= sv39.Execute
	}
	return out
}

// Allocation is what a successful AllocVirtualMemory call returns to
// its caller: the capability naming the mapping, and the mapped bytes
// themselves.
type Allocation struct {
	Cap   capability.Ptr
	Bytes []byte
}

// region is the object a memory-allocation capability names.
type region struct {
	base addr.Virtual
	size uintptr
}

// Syscalls implements the kernel side of the memory allocation syscall
// surface: AllocVirtualMemory. It hands out virtual address space from
// a simple bump allocator (this core does not reclaim user virtual
// address ranges) and backs each allocation with a genuinely contiguous
// physical run so the returned byte slice is a faithful view of the
// mapping.
type Syscalls struct {
	mu       spinlock.Mutex
	pt       *pgtbl.Manager
	phys     *pmm.Allocator
	caps     *capability.Table
	nextVirt addr.Virtual
}

// New builds a Syscalls handler that maps new allocations starting at
// userBase.
func New(pt *pgtbl.Manager, phys *pmm.Allocator, caps *capability.Table, userBase addr.Virtual) *Syscalls {
	return &Syscalls{pt: pt, phys: phys, caps: caps, nextVirt: userBase}
}

// AllocVirtualMemory is the general-purpose entry point; public_rw and
// private_rw below are its two callable shapes.
func (s *Syscalls) AllocVirtualMemory(size uintptr, options Options, perms Permissions) (Allocation, error) {
	if size == 0 || size%addr.PageSize != 0 {
		return Allocation{}, kernerr.New(kernerr.InvalidArgument, "memapi: size %#x not a multiple of the page size", size)
	}

	nframes := int(size / addr.PageSize)
	base, ok := s.phys.AllocContiguous(nframes)
	if !ok {
		return Allocation{}, kernerr.New(kernerr.OutOfMemory, "memapi: no contiguous run of %d frames", nframes)
	}
	for i := 0; i < nframes; i++ {
		s.phys.Refup(base.Offset(uintptr(i) * addr.PageSize))
	}

	s.mu.Lock()
	vbase := s.nextVirt
	s.nextVirt = s.nextVirt.Offset(size)
	s.mu.Unlock()

	if err := s.pt.MapDirect(base, vbase, sv39.Page4K, perms.sv39(), true); err != nil {
		return Allocation{}, err
	}
	for i := uintptr(addr.PageSize); i < size; i += addr.PageSize {
		if err := s.pt.MapDirect(base.Offset(i), vbase.Offset(i), sv39.Page4K, perms.sv39(), true); err != nil {
			return Allocation{}, err
		}
	}

	bytes := s.phys.DmapRange(base, nframes)
	if options&Zero != 0 {
		for i := range bytes {
			bytes[i] = 0
		}
	}

	cap := s.caps.Insert(region{base: vbase, size: size}, capability.Read|capability.Write|capability.Grant)
	if options&Private != 0 {
		cap = capability.Sentinel
	}

	return Allocation{Cap: cap, Bytes: bytes}, nil
}

// PublicRW allocates a shareable read-write mapping.
func (s *Syscalls) PublicRW(size uintptr) (Allocation, error) {
	return s.AllocVirtualMemory(size, None, PermRead|PermWrite)
}

// PrivateRW allocates a read-write mapping whose capability can never
// be exported, mirroring private_rw's sentinel substitution.
func (s *Syscalls) PrivateRW(size uintptr) (Allocation, error) {
	return s.AllocVirtualMemory(size, Private, PermRead|PermWrite)
}
