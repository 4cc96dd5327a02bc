// Package spinlock provides the kernel's single concurrency primitive: a
// busy-wait lock suitable for a single-hart kernel with no cooperative
// suspension in its critical paths, plus a small generic cell for values
// that start life as "not yet initialized by boot" static state.
package spinlock

import (
	"runtime"
	"sync/atomic"
)

// Mutex is a spinlock. Unlike sync.Mutex it never parks the calling
// goroutine on a semaphore; it busy-loops with a runtime.Gosched yield,
// matching the single-hart "acquired immediately or spun on" contract
// described for the page-table manager, the kernel heap, and the
// physical frame allocator.
type Mutex struct {
	held int32
}

// Lock spins until the lock is acquired.
func (m *Mutex) Lock() {
	for !atomic.CompareAndSwapInt32(&m.held, 0, 1) {
		runtime.Gosched()
	}
}

// TryLock attempts to acquire the lock without spinning.
func (m *Mutex) TryLock() bool {
	return atomic.CompareAndSwapInt32(&m.held, 0, 1)
}

// Unlock releases the lock. Unlock of an unheld lock panics.
func (m *Mutex) Unlock() {
	if !atomic.CompareAndSwapInt32(&m.held, 1, 0) {
		panic("spinlock: unlock of unheld lock")
	}
}

// Cell holds a value that is written exactly once during boot bring-up
// (e.g. the page-table manager's root, the physical allocator's arena)
// and read freely afterward. It mirrors the source's StaticMut: a
// statically allocated mutable cell whose single-writer discipline is
// enforced by the caller, not by the type. Get panics before Set has run
// so that a forgotten boot step fails loudly instead of silently reading
// zero-valued state.
type Cell[T any] struct {
	set   bool
	value T
}

// Set installs the cell's value. Calling Set twice panics: the whole
// point of this type is that boot bring-up publishes kernel state
// exactly once.
func (c *Cell[T]) Set(v T) {
	if c.set {
		panic("spinlock: cell already initialized")
	}
	c.value = v
	c.set = true
}

// Get returns the cell's value, panicking if Set has not yet run.
func (c *Cell[T]) Get() T {
	if !c.set {
		panic("spinlock: cell read before initialization")
	}
	return c.value
}

// Ready reports whether Set has been called.
func (c *Cell[T]) Ready() bool { return c.set }
