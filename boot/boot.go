// Package boot is the kernel's bring-up orchestrator: the sequence
// original_source's kernel_entry runs before handing control to the
// syscall dispatcher — discover RAM via the FDT, stand up the frame
// allocator and kernel heap over it, build the root Sv39 table, and
// compute the satp value that installs it. Everything past that point is syscall dispatch
// through memapi/vmspace, out of this package's scope.
package boot

import (
	"vanadinite/addr"
	"vanadinite/bootcfg"
	"vanadinite/capability"
	"vanadinite/exitdoor"
	"vanadinite/heap"
	"vanadinite/kernerr"
	"vanadinite/limits"
	"vanadinite/memapi"
	"vanadinite/mmiodev"
	"vanadinite/pgtbl"
	"vanadinite/pmm"
	"vanadinite/sv39"
	"vanadinite/uartlog"
	"vanadinite/vmspace"

	"vanadinite/fdt"
)

// uartDeviceID names the single 16550 this boot sequence expects,
// instance 0: the only UART this platform wires up before the logger
// exists to report on any others.
var uartDeviceID = mmiodev.ID(mmiodev.ClassUART, 0)

// heapFraction is the portion of discovered RAM handed to the kernel
// heap; the remainder backs the physical frame allocator. Matches the
// teacher's own rough split between a fixed-size kernel heap arena and
// a much larger general frame pool.
const heapFraction = 16 // heap gets 1/16th of RAM, frames get the rest

// Kernel is the fully wired-up bring-up result: every subsystem boot
// constructs, ready for a syscall dispatcher to start calling into.
type Kernel struct {
	Limits  *limits.Kernel
	Phys    *pmm.Allocator
	Heap    *heap.Heap
	PGTbl   *pgtbl.Manager
	Caps    *capability.Table
	Mem     *memapi.Syscalls
	Vmspace *vmspace.Kernel
	Satp    uint64
}

// Bring-up parameters that a real boot loader hands to the kernel:
// the raw FDT blob, an optional TOML config blob, the UART's mapped
// MMIO window, and the byte-level view of physical RAM the kernel is
// allowed to carve up (backed by actual machine memory on real
// hardware, a plain slice in tests).
type Params struct {
	FDTBlob    []byte
	ConfigBlob []byte
	UARTRegs   []byte
	RAM        []byte
	RAMBase    addr.Physical
	UserBase   addr.Virtual
	Phys2Virt  func(addr.Physical) *sv39.Table
}

// Bringup runs the bring-up sequence and returns the wired Kernel.
// Any failure here is fatal: there is no partially-booted state a
// caller can recover from, so Bringup returns an error only for the
// caller's own panic/exitdoor.Fail(1) handling, matching
// original_source's kernel_entry, which never returns on success
// either (the caller proceeds straight into syscall dispatch).
func Bringup(p Params) (*Kernel, error) {
	uartlog.Init(uartlog.NewWriter(p.UARTRegs))
	log := uartlog.For("boot")
	class, instance := mmiodev.Decode(uartDeviceID)
	log.Infof("%s%d online", class, instance)

	reg, err := fdt.FindMemoryReg(p.FDTBlob)
	if err != nil {
		return nil, kernerr.Wrap(kernerr.InvalidArgument, err, "boot: fdt")
	}
	log.Info(uartlog.Countf("ram bytes", int64(reg.Size)))

	lim, err := bootcfg.Load(p.ConfigBlob)
	if err != nil {
		return nil, err
	}

	heapBytes := len(p.RAM) / heapFraction
	heapBytes -= heapBytes % addr.PageSize
	heapArena := p.RAM[:heapBytes]
	frameArena := p.RAM[heapBytes:]

	h := &heap.Heap{}
	h.Init(heapArena)

	phys := pmm.New(p.RAMBase.Offset(uintptr(heapBytes)), frameArena)
	log.Info(uartlog.Countf("frames free", int64(phys.Free())))

	pt, err := pgtbl.New(phys, p.Phys2Virt)
	if err != nil {
		return nil, err
	}

	caps := capability.NewTable()
	mem := memapi.New(pt, phys, caps, p.UserBase)
	vms := vmspace.NewKernel(phys, p.Phys2Virt)

	satp := pt.Satp(0)
	log.Info("page table root installed")

	return &Kernel{
		Limits:  lim,
		Phys:    phys,
		Heap:    h,
		PGTbl:   pt,
		Caps:    caps,
		Mem:     mem,
		Vmspace: vms,
		Satp:    satp,
	}, nil
}

// Halt writes a platform exit code and never returns. Called from the
// collaborator panic handler on a fatal kernel error, and optionally
// from a clean shutdown path.
func Halt(door *exitdoor.Door, code exitdoor.Code) {
	door.Exit(code)
	select {}
}
