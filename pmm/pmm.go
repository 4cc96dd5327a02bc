// Package pmm is the physical frame allocator: a refcounted free list over
// a contiguous arena of frame-sized memory, in the spirit of biscuit's
// Physmem_t but scoped down to this kernel's single-hart model (no
// per-CPU free lists, since there is exactly one hart running kernel
// code at a time in this spec).
package pmm

import (
	"vanadinite/addr"
	"vanadinite/spinlock"
)

const frameSize = addr.PageSize

const sentinel = ^uint32(0)

type frame struct {
	refcnt int32
	nexti  uint32
}

// Allocator hands out and reclaims frame-sized physical memory backed by
// a single contiguous arena. Allocation and refcounting are guarded by
// one spinlock, matching the teacher's Physmem_t discipline of a single
// mutex protecting the free list and refcount array together.
type Allocator struct {
	mu      spinlock.Mutex
	arena   []byte
	base    addr.Physical
	frames  []frame
	freei   uint32
	freelen int
}

// New builds an Allocator over arena, whose length must be a multiple of
// the frame size, reporting addresses as offsets from base. The entire
// arena starts free.
func New(base addr.Physical, arena []byte) *Allocator {
	if len(arena)%frameSize != 0 {
		panic("pmm: arena size must be a multiple of the frame size")
	}
	n := len(arena) / frameSize
	a := &Allocator{arena: arena, base: base, frames: make([]frame, n), freelen: n}
	for i := 0; i < n; i++ {
		if i == n-1 {
			a.frames[i].nexti = sentinel
		} else {
			a.frames[i].nexti = uint32(i + 1)
		}
	}
	if n == 0 {
		a.freei = sentinel
	}
	return a
}

func (a *Allocator) indexOf(p addr.Physical) uint32 {
	return uint32((p.Uintptr() - a.base.Uintptr()) / frameSize)
}

func (a *Allocator) physOf(idx uint32) addr.Physical {
	return a.base.Offset(uintptr(idx) * frameSize)
}

// AllocNoZero removes a frame from the free list without clearing its
// contents. The returned frame's refcount starts at zero; the caller
// must Refup it before it can survive a Refdown.
func (a *Allocator) AllocNoZero() (addr.Physical, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.freei == sentinel {
		return 0, false
	}
	idx := a.freei
	a.freei = a.frames[idx].nexti
	a.freelen--
	a.frames[idx].refcnt = 0
	return a.physOf(idx), true
}

// Alloc removes a frame from the free list and zeroes it, the usual
// allocation path for page tables and user pages that must not leak
// stale contents across ownership boundaries.
func (a *Allocator) Alloc() (addr.Physical, bool) {
	p, ok := a.AllocNoZero()
	if !ok {
		return 0, false
	}
	clear(a.Dmap(p))
	return p, true
}

// Dmap returns the direct-mapped byte view of the frame at p, for
// reading or writing its contents (e.g. installing a zeroed page table).
func (a *Allocator) Dmap(p addr.Physical) []byte {
	idx := a.indexOf(p)
	off := uint32(idx) * uint32(frameSize)
	return a.arena[off : off+uint32(frameSize)]
}

// DmapRange returns the direct-mapped byte view of n consecutive frames
// starting at p, as AllocContiguous hands back. The caller is
// responsible for p and the following n-1 frames actually being
// contiguous.
func (a *Allocator) DmapRange(p addr.Physical, n int) []byte {
	idx := a.indexOf(p)
	off := uint32(idx) * uint32(frameSize)
	return a.arena[off : off+uint32(n)*uint32(frameSize)]
}

// Refup increments the reference count of the frame at p.
func (a *Allocator) Refup(p addr.Physical) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.frames[a.indexOf(p)].refcnt++
}

// Refdown decrements the reference count of the frame at p, returning
// to the free list and reporting true when the count reaches zero.
func (a *Allocator) Refdown(p addr.Physical) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	idx := a.indexOf(p)
	a.frames[idx].refcnt--
	if a.frames[idx].refcnt < 0 {
		panic("pmm: refcount underflow")
	}
	if a.frames[idx].refcnt == 0 {
		a.frames[idx].nexti = a.freei
		a.freei = idx
		a.freelen++
		return true
	}
	return false
}

// Refcnt reports the current reference count of the frame at p.
func (a *Allocator) Refcnt(p addr.Physical) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return int(a.frames[a.indexOf(p)].refcnt)
}

// Free reports the number of frames currently on the free list.
func (a *Allocator) Free() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.freelen
}

// AllocContiguous reserves n adjacent frames as a single block, for
// callers that need genuinely contiguous physical memory (DMA regions,
// bulk virtual-memory allocations). Unlike Alloc, which pulls from
// whatever the free list's head happens to be, this scans the frame
// array for a free run of the requested length and rebuilds the free
// list around it.
func (a *Allocator) AllocContiguous(n int) (addr.Physical, bool) {
	if n <= 0 {
		return 0, false
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	free := make([]bool, len(a.frames))
	for i := a.freei; i != sentinel; i = a.frames[i].nexti {
		free[i] = true
	}

	run := 0
	for i := 0; i < len(a.frames); i++ {
		if free[i] {
			run++
		} else {
			run = 0
		}
		if run == n {
			start := uint32(i - n + 1)
			a.removeRun(start, n)
			return a.physOf(start), true
		}
	}
	return 0, false
}

// removeRun rebuilds the free list excluding the frames [start,
// start+n), resetting their refcounts to zero.
func (a *Allocator) removeRun(start uint32, n int) {
	end := start + uint32(n)
	var newHead uint32 = sentinel
	tail := &newHead
	for i := a.freei; i != sentinel; {
		next := a.frames[i].nexti
		if i < start || i >= end {
			*tail = i
			tail = &a.frames[i].nexti
		}
		i = next
	}
	*tail = sentinel
	a.freei = newHead
	a.freelen -= n
	for i := start; i < end; i++ {
		a.frames[i].refcnt = 0
	}
}

// Total reports the arena's total frame count.
func (a *Allocator) Total() int {
	return len(a.frames)
}
