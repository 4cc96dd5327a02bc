package sv39

import (
	"testing"

	"vanadinite/addr"
	"vanadinite/kernerr"
)

// arena is a trivial backing store for tables, standing in for the
// physical allocator during unit tests: each AllocTable call hands out
// the next slot and its index doubles as a fabricated physical address.
type arena struct {
	tables []*Table
}

func (a *arena) alloc() (*Table, addr.Physical) {
	t := &Table{}
	a.tables = append(a.tables, t)
	phys := addr.NewPhysical(uintptr(len(a.tables)-1) << addr.PageShift)
	return t, phys
}

func (a *arena) p2v(p addr.Physical) *Table {
	idx := p.Uintptr() >> addr.PageShift
	return a.tables[idx]
}

func TestThreeLevelWalkTranslate(t *testing.T) {
	root := &Table{}
	a := &arena{}

	const ppn = uintptr(0xCAFEB)
	phys := addr.NewPhysical(ppn << addr.PageShift)
	virt := addr.MakeVirtual(0x03, 0xF5, 0xDB, 0xEEF)

	if err := Map(root, phys, virt, Page4K, Read|Write, false, a.alloc, a.p2v); err != nil {
		t.Fatalf("Map: %v", err)
	}

	if !IsMapped(root, virt, a.p2v) {
		t.Fatalf("expected mapping to be present")
	}

	got, ok := Translate(root, virt, a.p2v)
	if !ok {
		t.Fatalf("Translate: no mapping found")
	}
	want := addr.NewPhysical(ppn<<addr.PageShift | 0xEEF)
	if got.Uintptr() != want.Uintptr() {
		t.Fatalf("Translate = %s, want %s", got, want)
	}
}

func TestMisalignedMapRejected(t *testing.T) {
	root := &Table{}
	a := &arena{}

	phys := addr.NewPhysical(0xCAFEB000 + 1)
	virt := addr.NewVirtual(0x1000)

	err := Map(root, phys, virt, Page4K, Read|Write, false, a.alloc, a.p2v)
	if err == nil {
		t.Fatalf("expected misalignment error")
	}
	if !kernerr.Is(err, kernerr.InvalidMapping) {
		t.Fatalf("expected InvalidMapping, got %v", err)
	}
}

func TestWriteWithoutReadRejected(t *testing.T) {
	root := &Table{}
	a := &arena{}

	phys := addr.NewPhysical(0x1000)
	virt := addr.NewVirtual(0x2000)

	err := Map(root, phys, virt, Page4K, Write, false, a.alloc, a.p2v)
	if err == nil {
		t.Fatalf("expected write-without-read to be rejected")
	}
	if !kernerr.Is(err, kernerr.InvalidArgument) {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

func TestMapOverExistingLeafRejected(t *testing.T) {
	root := &Table{}
	a := &arena{}

	virt := addr.NewVirtual(0x3000)
	if err := Map(root, addr.NewPhysical(0x1000), virt, Page4K, Read, false, a.alloc, a.p2v); err != nil {
		t.Fatalf("first Map: %v", err)
	}
	err := Map(root, addr.NewPhysical(0x4000), virt, Page4K, Read, false, a.alloc, a.p2v)
	if err == nil {
		t.Fatalf("expected remap rejection")
	}
}

func TestUnmapThenTranslateFails(t *testing.T) {
	root := &Table{}
	a := &arena{}

	virt := addr.NewVirtual(0x5000)
	if err := Map(root, addr.NewPhysical(0x6000), virt, Page4K, Read|Execute, false, a.alloc, a.p2v); err != nil {
		t.Fatalf("Map: %v", err)
	}
	if err := Unmap(root, virt, a.p2v); err != nil {
		t.Fatalf("Unmap: %v", err)
	}
	if IsMapped(root, virt, a.p2v) {
		t.Fatalf("expected mapping gone after Unmap")
	}
	if err := Unmap(root, virt, a.p2v); err == nil {
		t.Fatalf("expected second Unmap to fail")
	}
}

func TestGigapageMapping(t *testing.T) {
	root := &Table{}
	a := &arena{}

	phys := addr.NewPhysical(1 << 30)
	virt := addr.NewVirtual(1 << 30)
	if err := Map(root, phys, virt, Page1G, Read|Write|Execute, true, a.alloc, a.p2v); err != nil {
		t.Fatalf("Map: %v", err)
	}
	got, ok := Translate(root, addr.NewVirtual(1<<30+0x123), a.p2v)
	if !ok {
		t.Fatalf("Translate: no mapping")
	}
	if got.Uintptr() != 1<<30+0x123 {
		t.Fatalf("Translate = %#x", got.Uintptr())
	}
}
