package vmspace

import (
	"vanadinite/addr"
	"vanadinite/capability"
	"vanadinite/ipc"
	"vanadinite/ustr"
)

// Grant is a staged (name, capability, rights) entry awaiting delivery
// at spawn time. Name is a Ustr rather than a string so staging a
// grant from bytes already sitting in a syscall argument buffer costs
// no copy.
type Grant struct {
	Name   ustr.Ustr
	Cap    capability.Ptr
	Rights capability.Rights
}

// MappedObject is the caller's view of a region allocated with
// CreateObject: the caller's own writable bytes, and the address the
// child will see the same bytes at once it runs.
type MappedObject struct {
	ChildAddress addr.Virtual
	Bytes        []byte
}

// ChannelHandle is the capability handle Spawn returns for the IPC
// channel pre-connected to the freshly spawned child.
type ChannelHandle struct {
	Channel *ipc.Channel
}

// Vmspace is the caller-side handle on a child address space under
// construction. It mirrors the original's Vmspace: it owns the id
// returned by create_vmspace and a staging list of capability grants
// that are only actually delivered once Spawn runs.
type Vmspace struct {
	kernel *Kernel
	id     ObjectID
	toSend []Grant
}

// New creates a fresh child address space.
func New(k *Kernel) (*Vmspace, error) {
	id, err := k.CreateVmspace()
	if err != nil {
		return nil, err
	}
	return &Vmspace{kernel: k, id: id}, nil
}

// CreateObject allocates and bidirectionally maps a memory object, per
// AllocVmspaceObject.
func (v *Vmspace) CreateObject(mapping ObjectMapping) (*MappedObject, error) {
	bytes, childAddr, err := v.kernel.AllocVmspaceObject(v.id, mapping)
	if err != nil {
		return nil, err
	}
	return &MappedObject{ChildAddress: childAddr, Bytes: bytes}, nil
}

// Grant stages a capability transfer request. It takes effect only when
// Spawn runs the hand-off.
func (v *Vmspace) Grant(name ustr.Ustr, cap capability.Ptr, rights capability.Rights) {
	v.toSend = append(v.toSend, Grant{Name: name, Cap: cap, Rights: rights})
}

var doneMessage = ustr.Ustr("done")

// Spawn makes the child runnable and then performs the capability
// hand-off over the channel the kernel hands back: for every staged
// grant, a name message followed by the capability itself, finishing
// with a literal "done" message. The Nth capability always follows the
// Nth name, and the receiver stops at "done".
func (v *Vmspace) Spawn(env SpawnEnv) (Tid, *ChannelHandle, error) {
	tid, ch, err := v.kernel.SpawnVmspace(v.id, env, len(v.toSend))
	if err != nil {
		return 0, nil, err
	}
	for _, g := range v.toSend {
		if err := ch.SendMessage(g.Name); err != nil {
			return 0, nil, err
		}
		if err := ch.SendCapability(g.Cap, g.Rights); err != nil {
			return 0, nil, err
		}
	}
	if err := ch.SendMessage(doneMessage); err != nil {
		return 0, nil, err
	}
	return tid, &ChannelHandle{ch}, nil
}
