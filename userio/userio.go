// Package userio copies bytes between kernel space and a user task's
// mapped memory, one page at a time so a single copy can span several
// pages with a different physical frame backing each. Grounded on
// biscuit's vm/userbuf.go Userbuf_t._tx page-walking copy loop,
// rewritten against this kernel's pgtbl.Manager/pmm.Allocator instead
// of biscuit's Vm_t/Userdmap8_inner.
package userio

import (
	"vanadinite/addr"
	"vanadinite/kernerr"
	"vanadinite/pgtbl"
	"vanadinite/pmm"
	"vanadinite/util"
)

// Buffer describes a user virtual range pending a copy. Its off field
// advances as bytes are transferred, so a short copy caused by an
// unmapped page partway through can be resumed by further CopyIn/
// CopyOut calls exactly where it stopped.
type Buffer struct {
	pt   *pgtbl.Manager
	phys *pmm.Allocator
	va   addr.Virtual
	len  uintptr
	off  uintptr
}

// NewBuffer describes the range [va, va+length) in a user address
// space managed by pt, backed by frames from phys.
func NewBuffer(pt *pgtbl.Manager, phys *pmm.Allocator, va addr.Virtual, length uintptr) *Buffer {
	return &Buffer{pt: pt, phys: phys, va: va, len: length}
}

// Remain reports the number of bytes left to transfer.
func (b *Buffer) Remain() uintptr { return b.len - b.off }

// CopyOut copies from the user buffer into dst.
func (b *Buffer) CopyOut(dst []byte) (int, error) {
	return b.tx(dst, false)
}

// CopyIn copies src into the user buffer.
func (b *Buffer) CopyIn(src []byte) (int, error) {
	return b.tx(src, true)
}

func (b *Buffer) tx(buf []byte, write bool) (int, error) {
	done := 0
	for len(buf) != 0 && b.off != b.len {
		va := b.va.Offset(b.off)
		phys, ok := b.pt.Translate(va)
		if !ok {
			return done, kernerr.New(kernerr.InvalidMapping, "userio: %s not mapped", va)
		}
		pageOff := phys.PageOffset()
		frameBase := addr.NewPhysical(phys.Uintptr() - pageOff)
		page := b.phys.Dmap(frameBase)
		chunk := page[pageOff:]

		n := util.Min(util.Min(len(chunk), int(b.Remain())), len(buf))

		if write {
			copy(chunk[:n], buf[:n])
		} else {
			copy(buf[:n], chunk[:n])
		}

		buf = buf[n:]
		b.off += uintptr(n)
		done += n
	}
	return done, nil
}
