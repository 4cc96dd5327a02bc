package pgtbl

import (
	"testing"
	"unsafe"

	"vanadinite/addr"
	"vanadinite/pmm"
	"vanadinite/sv39"
)

func phys2virt(alloc *pmm.Allocator) func(addr.Physical) *sv39.Table {
	return func(p addr.Physical) *sv39.Table {
		b := alloc.Dmap(p)
		return (*sv39.Table)(unsafe.Pointer(&b[0]))
	}
}

func newTestManager(t *testing.T) (*Manager, *pmm.Allocator) {
	t.Helper()
	base := addr.NewPhysical(0x8000_0000)
	alloc := pmm.New(base, make([]byte, 64*addr.PageSize))
	m, err := New(alloc, phys2virt(alloc))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m, alloc
}

func TestAllocVirtualMapsAndTranslates(t *testing.T) {
	m, _ := newTestManager(t)
	v := addr.NewVirtual(0x1000_0000)
	if err := m.AllocVirtual(v, sv39.Read|sv39.Write, true); err != nil {
		t.Fatalf("AllocVirtual: %v", err)
	}
	if !m.IsMapped(v) {
		t.Fatalf("expected mapping")
	}
	if _, ok := m.Translate(v); !ok {
		t.Fatalf("expected translate to succeed")
	}
}

func TestMapMMIOUsesFixedWindow(t *testing.T) {
	m, _ := newTestManager(t)
	dev := addr.NewPhysical(0x1000_1000)
	v, err := m.MapMMIO(dev, addr.PageSize)
	if err != nil {
		t.Fatalf("MapMMIO: %v", err)
	}
	want := addr.NewVirtual(MMIODeviceOffset + dev.Uintptr())
	if v.Uintptr() != want.Uintptr() {
		t.Fatalf("MapMMIO landed at %s, want %s", v, want)
	}
	got, ok := m.Translate(v)
	if !ok || got.Uintptr() != dev.Uintptr() {
		t.Fatalf("Translate(%s) = %s, %v", v, got, ok)
	}
}

func TestAllocVirtualRangeCoversWholeRange(t *testing.T) {
	m, _ := newTestManager(t)
	start := addr.NewVirtual(0x2000_0000)
	if err := m.AllocVirtualRange(start, 4*addr.PageSize, sv39.Read|sv39.Write, true); err != nil {
		t.Fatalf("AllocVirtualRange: %v", err)
	}
	for i := uintptr(0); i < 4; i++ {
		if !m.IsMapped(start.Offset(i * addr.PageSize)) {
			t.Fatalf("page %d not mapped", i)
		}
	}
}

func TestUnmapClearsTranslation(t *testing.T) {
	m, _ := newTestManager(t)
	v := addr.NewVirtual(0x3000_0000)
	if err := m.AllocVirtual(v, sv39.Read, false); err != nil {
		t.Fatalf("AllocVirtual: %v", err)
	}
	if err := m.Unmap(v); err != nil {
		t.Fatalf("Unmap: %v", err)
	}
	if m.IsMapped(v) {
		t.Fatalf("expected unmapped")
	}
}

func TestSatpEncodesMode(t *testing.T) {
	m, _ := newTestManager(t)
	satp := m.Satp(0)
	if satp>>60 != SatpModeSv39 {
		t.Fatalf("satp mode = %d, want %d", satp>>60, SatpModeSv39)
	}
}
