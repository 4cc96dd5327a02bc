// Package vmspace implements the virtual address space spawn protocol:
// a kernel-side syscall surface (create_vmspace, alloc_vmspace_object,
// spawn_vmspace) plus the caller-side Vmspace builder that stages
// capability grants and performs the post-spawn hand-off, exactly
// mirroring original_source's userspace/libs/std/src/vmspace.rs split
// between kernel syscalls and the Vmspace wrapper that drives them.
package vmspace

import (
	"vanadinite/addr"
	"vanadinite/ipc"
	"vanadinite/kernerr"
	"vanadinite/pgtbl"
	"vanadinite/pmm"
	"vanadinite/spinlock"
	"vanadinite/sv39"
)

// ObjectID identifies a child address space under construction.
type ObjectID uint64

// Tid identifies a runnable task.
type Tid uint64

// ObjectMapping describes the region alloc_vmspace_object should map
// into the child.
type ObjectMapping struct {
	Address addr.Virtual
	Size    uintptr
	Perms   sv39.Perm
}

// SpawnEnv carries the entry environment handed to a freshly spawned
// task.
type SpawnEnv struct {
	EntryPC      addr.Virtual
	StackPointer addr.Virtual
	Argv         []string
	EnvPointer   addr.Virtual
}

type childSpace struct {
	pt      *pgtbl.Manager
	nextVirt addr.Virtual
	spawned bool
}

// Kernel is the kernel-side implementation of the vmspace syscalls. One
// Kernel backs every child address space created by create_vmspace.
type Kernel struct {
	mu        spinlock.Mutex
	phys      *pmm.Allocator
	phys2virt func(addr.Physical) *sv39.Table
	nextID    ObjectID
	nextTid   Tid
	spaces    map[ObjectID]*childSpace
}

// NewKernel builds a vmspace syscall handler sharing phys with the rest
// of the kernel's memory subsystem.
func NewKernel(phys *pmm.Allocator, phys2virt func(addr.Physical) *sv39.Table) *Kernel {
	return &Kernel{phys: phys, phys2virt: phys2virt, spaces: make(map[ObjectID]*childSpace)}
}

// CreateVmspace allocates a fresh root page table for a child and
// returns its opaque id.
func (k *Kernel) CreateVmspace() (ObjectID, error) {
	pt, err := pgtbl.New(k.phys, k.phys2virt)
	if err != nil {
		return 0, kernerr.Wrap(kernerr.OutOfMemory, err, "vmspace: create_vmspace")
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	id := k.nextID
	k.nextID++
	k.spaces[id] = &childSpace{pt: pt, nextVirt: addr.NewVirtual(0x5000_0000)}
	return id, nil
}

func (k *Kernel) lookup(id ObjectID) (*childSpace, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	cs, ok := k.spaces[id]
	if !ok {
		return nil, kernerr.New(kernerr.InvalidCapability, "vmspace: unknown vmspace id %d", id)
	}
	return cs, nil
}

// AllocVmspaceObject allocates size bytes of physical frames, maps them
// into the child at mapping.Address with mapping.Perms, and maps them
// into the caller at a kernel-chosen address, returning the caller's
// byte view and the child-visible address.
func (k *Kernel) AllocVmspaceObject(id ObjectID, mapping ObjectMapping) (callerBytes []byte, childAddress addr.Virtual, err error) {
	cs, err := k.lookup(id)
	if err != nil {
		return nil, 0, err
	}
	if mapping.Size == 0 || mapping.Size%addr.PageSize != 0 {
		return nil, 0, kernerr.New(kernerr.InvalidArgument, "vmspace: object size %#x not page aligned", mapping.Size)
	}

	nframes := int(mapping.Size / addr.PageSize)
	phys, ok := k.phys.AllocContiguous(nframes)
	if !ok {
		return nil, 0, kernerr.New(kernerr.OutOfMemory, "vmspace: no contiguous run of %d frames", nframes)
	}
	for i := 0; i < nframes; i++ {
		k.phys.Refup(phys.Offset(uintptr(i) * addr.PageSize))
	}

	for off := uintptr(0); off < mapping.Size; off += addr.PageSize {
		if err := cs.pt.MapDirect(phys.Offset(off), mapping.Address.Offset(off), sv39.Page4K, mapping.Perms, true); err != nil {
			return nil, 0, err
		}
	}

	k.mu.Lock()
	cs.nextVirt = cs.nextVirt.Offset(mapping.Size)
	k.mu.Unlock()

	return k.phys.DmapRange(phys, nframes), mapping.Address, nil
}

// SpawnVmspace makes the child runnable with env and returns its task
// id and a channel pre-connected to it, sized to hold pendingGrants
// name+capability pairs plus the final "done" message.
func (k *Kernel) SpawnVmspace(id ObjectID, env SpawnEnv, pendingGrants int) (Tid, *ipc.Channel, error) {
	cs, err := k.lookup(id)
	if err != nil {
		return 0, nil, err
	}
	k.mu.Lock()
	cs.spawned = true
	tid := k.nextTid
	k.nextTid++
	k.mu.Unlock()

	_ = env // the entry environment is consumed by the scheduler, out of this core's scope
	return tid, ipc.NewChannel(2*pendingGrants + 1), nil
}
