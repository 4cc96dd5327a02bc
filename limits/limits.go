// Package limits tracks system-wide resource ceilings for the memory and
// Vmspace subsystems; boot.Bringup loads them into boot.Kernel.Limits,
// and no allocation path in this repository takes from them. The
// counting discipline (atomically decrement-and-check, give back on
// failure) is the teacher's: only the resources being counted changed.
package limits

import "sync/atomic"

// Atomic is a resource quota that can be taken and given back from
// multiple harts without a lock.
type Atomic int64

func (s *Atomic) ptr() *int64 { return (*int64)(s) }

// Given increases the quota by n.
func (s *Atomic) Given(n uint) {
	atomic.AddInt64(s.ptr(), int64(n))
}

// Taken tries to decrement the quota by n, returning false (and leaving
// the quota unchanged) if that would drive it negative.
func (s *Atomic) Taken(n uint) bool {
	if atomic.AddInt64(s.ptr(), -int64(n)) >= 0 {
		return true
	}
	atomic.AddInt64(s.ptr(), int64(n))
	return false
}

// Take decrements the quota by one and reports whether it succeeded.
func (s *Atomic) Take() bool { return s.Taken(1) }

// Give increments the quota by one.
func (s *Atomic) Give() { s.Given(1) }

// Remaining reads the current quota value.
func (s *Atomic) Remaining() int64 { return atomic.LoadInt64(s.ptr()) }

// Kernel holds the system-wide resource ceilings. pgtbl, memapi, dma and
// vmspace do not check these quotas before committing frames; running
// out of frames surfaces only as the physical allocator's own
// exhaustion.
type Kernel struct {
	// Frames is the number of 4 KiB physical frames available to
	// hand out via alloc_virtual/alloc_virtual_range/DMA allocation.
	Frames Atomic
	// HeapBytes is the remaining byte budget for kernel heap
	// allocations, independent of the free list's own fragmentation.
	HeapBytes Atomic
	// Vmspaces is the number of concurrently live (created but not
	// yet torn down) child address spaces.
	Vmspaces Atomic
	// Capabilities is the number of live entries in the capability
	// table across all processes.
	Capabilities Atomic
}

// Default returns the kernel's compiled-in resource ceilings. bootcfg may
// override these from a parsed boot configuration blob.
func Default() *Kernel {
	return &Kernel{
		Frames:       Atomic(1 << 16), // 256MiB of 4KiB frames
		HeapBytes:    Atomic(1 << 24), // 16MiB kernel heap arena
		Vmspaces:     Atomic(4096),
		Capabilities: Atomic(1 << 20),
	}
}
