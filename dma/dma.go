// Package dma implements DMA-coherent memory regions: physically
// contiguous allocations whose physical address is readable alongside
// a kernel-visible view of their contents, plus the fence primitives
// callers must issue around device-visible writes. Grounded on
// original_source's shared/librust/src/mem.rs DmaRegion<MaybeUninit<T>>/
// DmaRegion<[MaybeUninit<T>]>/DmaRegion<T: ?Sized>/DmaElement/FenceMode,
// reworked from raw-pointer/PhantomData machinery into Go generics
// backed directly by a pmm.Allocator. Every factory returns an
// uninitialized region; AssumeInit converts it to an initialized one
// without reallocating, mirroring the original's two-phase
// new()/zeroed() -> assume_init() handshake.
package dma

import (
	"sync/atomic"
	"unsafe"

	"vanadinite/addr"
	"vanadinite/kernerr"
	"vanadinite/pmm"
)

func framesFor(size uintptr) int {
	n := int((size + addr.PageSize - 1) / addr.PageSize)
	if n == 0 {
		return 1
	}
	return n
}

func allocFrames(alloc *pmm.Allocator, nframes int, zero bool) (addr.Physical, []byte, error) {
	phys, ok := alloc.AllocContiguous(nframes)
	if !ok {
		return 0, nil, kernerr.New(kernerr.OutOfMemory, "dma: no contiguous run of %d frames", nframes)
	}
	for i := 0; i < nframes; i++ {
		alloc.Refup(phys.Offset(uintptr(i) * addr.PageSize))
	}
	buf := alloc.DmapRange(phys, nframes)
	if zero {
		clear(buf)
	}
	return phys, buf, nil
}

// UninitRegion is a DMA-coherent allocation sized for one T whose bytes
// have not yet been established as a valid T. Get is not reachable
// until AssumeInit converts it to a Region.
type UninitRegion[T any] struct {
	phys    addr.Physical
	buf     []byte
	nframes int
}

// New allocates an uninitialized Region-sized slot; its bytes carry
// whatever the underlying frames previously held.
func New[T any](alloc *pmm.Allocator) (*UninitRegion[T], error) {
	var zero T
	nframes := framesFor(unsafe.Sizeof(zero))
	phys, buf, err := allocFrames(alloc, nframes, false)
	if err != nil {
		return nil, err
	}
	return &UninitRegion[T]{phys: phys, buf: buf, nframes: nframes}, nil
}

// Zeroed is like New but the slot's bytes are zeroed before return.
func Zeroed[T any](alloc *pmm.Allocator) (*UninitRegion[T], error) {
	var zero T
	nframes := framesFor(unsafe.Sizeof(zero))
	phys, buf, err := allocFrames(alloc, nframes, true)
	if err != nil {
		return nil, err
	}
	return &UninitRegion[T]{phys: phys, buf: buf, nframes: nframes}, nil
}

// PhysicalAddress returns the region's physical base, readable without
// any unsafe operation on the caller's part, even before AssumeInit.
func (u *UninitRegion[T]) PhysicalAddress() addr.Physical { return u.phys }

// AssumeInit asserts the caller has established a valid T in the
// region's bytes and returns the initialized Region. It transfers
// ownership of the same backing frames without reallocating.
func (u *UninitRegion[T]) AssumeInit() *Region[T] {
	return &Region[T]{phys: u.phys, value: (*T)(unsafe.Pointer(&u.buf[0])), nframes: u.nframes}
}

// Region is a DMA-coherent allocation holding one initialized value of
// type T. It owns the frames backing it; nothing frees them until
// Release is called explicitly by the syscall layer that tore down the
// capability naming this region; there is no finalizer-driven release,
// since a Go GC pass has no relationship to when a capability is
// actually revoked.
type Region[T any] struct {
	phys    addr.Physical
	value   *T
	nframes int
}

// PhysicalAddress returns the region's physical base.
func (r *Region[T]) PhysicalAddress() addr.Physical { return r.phys }

// Get returns a pointer to the region's single element.
func (r *Region[T]) Get() *T { return r.value }

// Release drops this region's hold on its backing frames. Calling it
// while any Get()-returned pointer is still in use is a use-after-free
// by the caller, the same contract the capability table's Revoke
// carries for any other kind of object.
func (r *Region[T]) Release(alloc *pmm.Allocator) {
	for i := 0; i < r.nframes; i++ {
		alloc.Refdown(r.phys.Offset(uintptr(i) * addr.PageSize))
	}
}

// UninitSliceRegion is a DMA-coherent allocation sized for n contiguous
// elements of T, not yet established as valid. AssumeInit converts it
// to a SliceRegion.
type UninitSliceRegion[T any] struct {
	phys    addr.Physical
	buf     []byte
	n       int
	nframes int
}

// NewMany allocates an uninitialized SliceRegion of n elements.
func NewMany[T any](alloc *pmm.Allocator, n int) (*UninitSliceRegion[T], error) {
	if n <= 0 {
		return nil, kernerr.New(kernerr.InvalidArgument, "dma: element count must be positive, got %d", n)
	}
	var zero T
	nframes := framesFor(unsafe.Sizeof(zero) * uintptr(n))
	phys, buf, err := allocFrames(alloc, nframes, false)
	if err != nil {
		return nil, err
	}
	return &UninitSliceRegion[T]{phys: phys, buf: buf, n: n, nframes: nframes}, nil
}

// ZeroedMany is like NewMany but every element's bytes are zeroed
// before return.
func ZeroedMany[T any](alloc *pmm.Allocator, n int) (*UninitSliceRegion[T], error) {
	if n <= 0 {
		return nil, kernerr.New(kernerr.InvalidArgument, "dma: element count must be positive, got %d", n)
	}
	var zero T
	nframes := framesFor(unsafe.Sizeof(zero) * uintptr(n))
	phys, buf, err := allocFrames(alloc, nframes, true)
	if err != nil {
		return nil, err
	}
	return &UninitSliceRegion[T]{phys: phys, buf: buf, n: n, nframes: nframes}, nil
}

// Len reports the element count.
func (u *UninitSliceRegion[T]) Len() int { return u.n }

// PhysicalAddress returns the region's physical base.
func (u *UninitSliceRegion[T]) PhysicalAddress() addr.Physical { return u.phys }

// AssumeInit asserts every element has been established as valid and
// returns the initialized SliceRegion.
func (u *UninitSliceRegion[T]) AssumeInit() *SliceRegion[T] {
	data := unsafe.Slice((*T)(unsafe.Pointer(&u.buf[0])), u.n)
	return &SliceRegion[T]{phys: u.phys, data: data, nframes: u.nframes}
}

// SliceRegion is a DMA-coherent allocation holding n initialized,
// contiguous elements of type T.
type SliceRegion[T any] struct {
	phys    addr.Physical
	data    []T
	nframes int
}

// PhysicalAddress returns the region's physical base.
func (r *SliceRegion[T]) PhysicalAddress() addr.Physical { return r.phys }

// Len reports the element count.
func (r *SliceRegion[T]) Len() int { return len(r.data) }

// Release drops this region's hold on its backing frames; see
// Region.Release for the use-after-free contract this carries.
func (r *SliceRegion[T]) Release(alloc *pmm.Allocator) {
	for i := 0; i < r.nframes; i++ {
		alloc.Refdown(r.phys.Offset(uintptr(i) * addr.PageSize))
	}
}

// Get borrows the element at index, whose lifetime is bounded by the
// region's (the Element carries no reference back to prevent use after
// the region itself is discarded, matching the caller discipline the
// original enforces through Rust's borrow checker instead).
func (r *SliceRegion[T]) Get(index int) (Element[T], bool) {
	if index < 0 || index >= len(r.data) {
		return Element[T]{}, false
	}
	var zero T
	elemSize := unsafe.Sizeof(zero)
	return Element[T]{
		phys:  r.phys.Offset(uintptr(index) * elemSize),
		value: &r.data[index],
	}, true
}

// Element is a borrowed view of one slot inside a SliceRegion.
type Element[T any] struct {
	phys  addr.Physical
	value *T
}

// PhysicalAddress returns region.PhysicalAddress() + index*sizeof(T).
func (e Element[T]) PhysicalAddress() addr.Physical { return e.phys }

// Get returns a pointer to the element.
func (e Element[T]) Get() *T { return e.value }

// UninitRawRegion is a DMA-coherent allocation sized for a
// dynamically-sized payload whose length is only known at allocation
// time, not yet established as valid. Go has no unsized-type metadata
// to thread through the way original_source's new_raw(metadata, zero)
// does over a core::ptr::Pointee; the caller supplies the byte length
// directly instead.
type UninitRawRegion struct {
	phys    addr.Physical
	buf     []byte
	nframes int
}

// NewRaw allocates an uninitialized dynamically-sized region of size
// bytes, optionally zeroed.
func NewRaw(alloc *pmm.Allocator, size uintptr, zero bool) (*UninitRawRegion, error) {
	if size == 0 {
		return nil, kernerr.New(kernerr.InvalidArgument, "dma: raw region size must be positive")
	}
	nframes := framesFor(size)
	phys, buf, err := allocFrames(alloc, nframes, zero)
	if err != nil {
		return nil, err
	}
	return &UninitRawRegion{phys: phys, buf: buf[:size], nframes: nframes}, nil
}

// PhysicalAddress returns the region's physical base.
func (u *UninitRawRegion) PhysicalAddress() addr.Physical { return u.phys }

// AssumeInit asserts the payload has been established as valid and
// returns the initialized RawRegion.
func (u *UninitRawRegion) AssumeInit() *RawRegion {
	return &RawRegion{phys: u.phys, buf: u.buf, nframes: u.nframes}
}

// RawRegion is a DMA-coherent allocation holding an initialized
// dynamically-sized payload.
type RawRegion struct {
	phys    addr.Physical
	buf     []byte
	nframes int
}

// PhysicalAddress returns the region's physical base.
func (r *RawRegion) PhysicalAddress() addr.Physical { return r.phys }

// Bytes returns the region's backing bytes.
func (r *RawRegion) Bytes() []byte { return r.buf }

// Release drops this region's hold on its backing frames; see
// Region.Release for the use-after-free contract this carries.
func (r *RawRegion) Release(alloc *pmm.Allocator) {
	for i := 0; i < r.nframes; i++ {
		alloc.Refdown(r.phys.Offset(uintptr(i) * addr.PageSize))
	}
}

// Mode names one of the architecture's I/O fence strengths.
type Mode int

const (
	Full Mode = iota
	ReadFence
	WriteFence
)

func (m Mode) String() string {
	switch m {
	case Full:
		return "full"
	case ReadFence:
		return "read"
	case WriteFence:
		return "write"
	default:
		return "unknown"
	}
}

var fenceSeq uint64

// Fence issues the memory barrier appropriate to mode. On real
// hardware this is a RISC-V `fence` instruction emitted by boot
// assembly, a collaborator outside this core's scope; the Go memory
// model guarantees the same publication property for an atomic
// read-modify-write, which is what this stands in with.
func Fence(mode Mode) {
	switch mode {
	case Full, ReadFence, WriteFence:
		atomic.AddUint64(&fenceSeq, 1)
	}
}
