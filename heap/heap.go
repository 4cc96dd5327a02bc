// Package heap is the kernel's general-purpose allocator: a singly
// linked free list with an in-band header, splitting nodes that are
// larger than requested and never coalescing freed ones. Grounded on
// original_source's vanadinite/src/mem/heap/free_list.rs, translated
// from its GlobalAlloc trait impl into an explicit Heap type callers
// invoke directly.
package heap

import (
	"unsafe"

	"vanadinite/spinlock"
	"vanadinite/util"
)

type node struct {
	next *node
	size uintptr
}

const nodeSize = unsafe.Sizeof(node{})
const wordSize = unsafe.Sizeof(uintptr(0))

// Heap is a free-list allocator over a single caller-provided arena.
type Heap struct {
	mu   spinlock.Mutex
	head *node
}

// Init backs the heap with arena, which must be at least large enough
// to hold one header. The whole arena starts as a single free node.
func (h *Heap) Init(arena []byte) {
	if len(arena) < int(nodeSize) {
		panic("heap: arena too small to hold one node header")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	n := (*node)(unsafe.Pointer(&arena[0]))
	n.next = nil
	n.size = uintptr(len(arena)) - nodeSize
	h.head = n
}

func (n *node) data() unsafe.Pointer {
	return unsafe.Pointer(uintptr(unsafe.Pointer(n)) + nodeSize)
}

// Alloc returns a byte slice of at least size bytes, or ok=false if no
// free node is large enough. align above word size is not a recoverable
// allocation failure but an unimplemented request: this allocator's
// in-band header only ever yields word-aligned data, and no caller
// should be asking it for more; callers that need more than 8-byte
// alignment must get it from a different allocator (e.g. a whole-frame
// allocation from pmm).
func (h *Heap) Alloc(size uintptr, align uintptr) ([]byte, bool) {
	if align > wordSize {
		panic("heap: alignment above word size is not implemented")
	}
	size = util.Roundup(size, wordSize)

	h.mu.Lock()
	defer h.mu.Unlock()

	var prev *node
	for n := h.head; n != nil; prev, n = n, n.next {
		enoughForSplit := n.size >= size+nodeSize+wordSize
		if n.size < size {
			continue
		}
		if enoughForSplit {
			newNode := n.split(size)
			if prev != nil {
				prev.next = newNode
			} else {
				h.head = newNode
			}
		} else {
			if prev != nil {
				prev.next = n.next
			} else {
				h.head = n.next
			}
		}
		return unsafe.Slice((*byte)(n.data()), size), true
	}
	return nil, false
}

// split carves a newSize-byte node (plus its own header) off the front
// of n, leaving the remainder as a fresh node linked in n's place. n
// must have at least newSize+nodeSize+wordSize bytes available.
func (n *node) split(newSize uintptr) *node {
	if n.size <= newSize+nodeSize {
		panic("heap: trying to split off more than is available")
	}
	otherSize := n.size - newSize - nodeSize
	n.size = newSize
	nextAddr := uintptr(unsafe.Pointer(n)) + nodeSize + n.size
	next := (*node)(unsafe.Pointer(nextAddr))
	next.next = n.next
	next.size = otherSize
	return next
}

// Free returns b, previously returned by Alloc, to the free list. It
// does not coalesce with neighboring free nodes.
func (h *Heap) Free(b []byte) {
	if len(b) == 0 {
		panic("heap: free of empty slice")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	hdrAddr := uintptr(unsafe.Pointer(&b[0])) - nodeSize
	n := (*node)(unsafe.Pointer(hdrAddr))
	n.next = h.head
	h.head = n
}
