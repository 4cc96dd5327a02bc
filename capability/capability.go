// Package capability is the process-global capability table: an
// unforgeable handle space mediating every reference a user task holds
// to a kernel object (a memory allocation, an IPC channel endpoint, a
// vmspace). Grounded on the rights/CapabilityPtr split used throughout
// original_source's userspace/libs/std/src/vmspace.rs and
// shared/librust/src/mem.rs, reworked into an explicit owned table
// instead of a bare syscall-number convention.
package capability

import "vanadinite/spinlock"

// Rights is a bitmask of the operations a handle's holder may perform
// on the object it names.
type Rights uint32

const (
	Read Rights = 1 << iota
	Write
	Grant
)

// Ptr is an opaque, process-local capability handle.
type Ptr uint64

// Sentinel marks a capability that cannot be shared: a private
// allocation's handle is replaced with this value so that attempting to
// grant it is visibly meaningless rather than silently wrong.
const Sentinel Ptr = ^Ptr(0)

type entry struct {
	object any
	rights Rights
}

// Table owns the handle→object mapping for one task (or, in this
// single-address-space teaching kernel, the one running task). All
// methods are safe for concurrent use.
type Table struct {
	mu      spinlock.Mutex
	next    Ptr
	entries map[Ptr]entry
}

// NewTable returns an empty capability table.
func NewTable() *Table {
	return &Table{entries: make(map[Ptr]entry)}
}

// Insert allocates a fresh handle naming object with the given rights.
func (t *Table) Insert(object any, rights Rights) Ptr {
	t.mu.Lock()
	defer t.mu.Unlock()
	h := t.next
	t.next++
	t.entries[h] = entry{object: object, rights: rights}
	return h
}

// Lookup resolves a handle to its object and rights. ok is false if the
// handle is absent or has been revoked.
func (t *Table) Lookup(h Ptr) (object any, rights Rights, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, present := t.entries[h]
	return e.object, e.rights, present
}

// Has reports whether rights includes every bit of want.
func (r Rights) Has(want Rights) bool { return r&want == want }

// Revoke removes a handle from the table, reporting whether it was
// present.
func (t *Table) Revoke(h Ptr) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.entries[h]; !ok {
		return false
	}
	delete(t.entries, h)
	return true
}
