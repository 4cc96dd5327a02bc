// Package mmiodev names the MMIO devices this kernel's boot bring-up
// expects to find on the virtual platform and encodes them the way the
// teacher encodes filesystem device numbers: a class in the high bits,
// an instance index in the low bits.
package mmiodev

import "vanadinite/util"

// Class identifies a family of MMIO device.
type Class uint

const (
	ClassUART  Class = 1 // 16550-compatible UART
	ClassPLIC  Class = 2 // platform-level interrupt controller
	ClassCLINT Class = 3 // core-local interruptor (timer/soft-irq)
	ClassVirtioBlk Class = 4
	ClassVirtioNet Class = 5
	ClassFirst = ClassUART
	ClassLast  = ClassVirtioNet
)

// ID encodes a device class and instance number into a single 64-bit
// identifier, mirroring defs.Mkdev/Unmkdev.
func ID(class Class, instance uint) uint64 {
	if instance > 0xff {
		panic("mmiodev: instance out of range")
	}
	return uint64(class)<<40 | uint64(instance)<<32
}

// Decode recovers the class and instance from an ID produced by ID.
func Decode(id uint64) (Class, uint) {
	return Class(id >> 40), uint(uint8(id >> 32))
}

// Field reads a width-byte register (1, 2, 4, or 8) at offset within a
// device's mapped MMIO window, e.g. a virtio device's 16-bit
// queue-size field sitting next to its 64-bit queue-address field in
// the same config space.
func Field(regs []byte, width, offset int) uintptr {
	return util.Readn(regs, width, offset)
}

// SetField writes val as a width-byte register at offset within a
// device's mapped MMIO window.
func SetField(regs []byte, width, offset int, val uintptr) {
	util.Writen(regs, width, offset, val)
}

func (c Class) String() string {
	switch c {
	case ClassUART:
		return "uart"
	case ClassPLIC:
		return "plic"
	case ClassCLINT:
		return "clint"
	case ClassVirtioBlk:
		return "virtio-blk"
	case ClassVirtioNet:
		return "virtio-net"
	default:
		return "unknown-device"
	}
}
