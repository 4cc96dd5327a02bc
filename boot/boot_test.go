package boot

import (
	"encoding/binary"
	"testing"
	"unsafe"

	"vanadinite/addr"
	"vanadinite/pgtbl"
	"vanadinite/sv39"
)

func phys2virt(ram []byte, ramBase addr.Physical) func(addr.Physical) *sv39.Table {
	return func(p addr.Physical) *sv39.Table {
		off := p.Uintptr() - ramBase.Uintptr()
		return (*sv39.Table)(unsafe.Pointer(&ram[off]))
	}
}

func fakeFDT(base uint64, size uint64) []byte {
	const headerLen = 40
	var strct, strs []byte

	tok := func(t uint32) []byte {
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, t)
		return b
	}
	strct = append(strct, tok(1)...) // FDT_BEGIN_NODE
	strct = append(strct, 0, 0, 0, 0)
	strct = append(strct, tok(1)...)
	strct = append(strct, []byte("memory@0\x00\x00\x00\x00")...) // padded to 4
	reg := make([]byte, 16)
	binary.BigEndian.PutUint64(reg[0:8], base)
	binary.BigEndian.PutUint64(reg[8:16], size)
	var propHdr [8]byte
	binary.BigEndian.PutUint32(propHdr[0:4], uint32(len(reg)))
	binary.BigEndian.PutUint32(propHdr[4:8], 0)
	strct = append(strct, tok(3)...) // FDT_PROP
	strct = append(strct, propHdr[:]...)
	strct = append(strct, reg...)
	strct = append(strct, tok(2)...) // FDT_END_NODE
	strct = append(strct, tok(2)...) // FDT_END_NODE (root)
	strct = append(strct, tok(9)...) // FDT_END

	strs = append(strs, []byte("reg\x00")...)

	offStruct := uint32(headerLen)
	offStrings := offStruct + uint32(len(strct))
	total := offStrings + uint32(len(strs))

	out := make([]byte, headerLen)
	binary.BigEndian.PutUint32(out[0:4], 0xD00DFEED)
	binary.BigEndian.PutUint32(out[4:8], total)
	binary.BigEndian.PutUint32(out[8:12], offStruct)
	binary.BigEndian.PutUint32(out[12:16], offStrings)
	out = append(out, strct...)
	out = append(out, strs...)
	return out
}

func TestBringupWiresEverySubsystem(t *testing.T) {
	const ramBase = 0x8000_0000
	ram := make([]byte, 256*addr.PageSize)
	uartRegs := make([]byte, 6)
	uartRegs[5] = 0x20

	k, err := Bringup(Params{
		FDTBlob:   fakeFDT(ramBase, uint64(len(ram))),
		UARTRegs:  uartRegs,
		RAM:       ram,
		RAMBase:   addr.NewPhysical(ramBase),
		UserBase:  addr.NewVirtual(0x4000_0000),
		Phys2Virt: phys2virt(ram, addr.NewPhysical(ramBase)),
	})
	if err != nil {
		t.Fatalf("Bringup: %v", err)
	}
	if k.Phys.Free() == 0 {
		t.Fatalf("expected free frames after bring-up")
	}
	if k.Satp != k.PGTbl.Satp(0) {
		t.Fatalf("Satp = %#x, want %#x", k.Satp, k.PGTbl.Satp(0))
	}
	if mode := k.Satp >> 60; mode != pgtbl.SatpModeSv39 {
		t.Fatalf("satp mode = %d, want %d", mode, pgtbl.SatpModeSv39)
	}

	alloc, err := k.Mem.PublicRW(addr.PageSize)
	if err != nil {
		t.Fatalf("PublicRW: %v", err)
	}
	if len(alloc.Bytes) != addr.PageSize {
		t.Fatalf("len(Bytes) = %d, want %d", len(alloc.Bytes), addr.PageSize)
	}
}

func TestBringupFailsOnMissingMemoryNode(t *testing.T) {
	ram := make([]byte, 32*addr.PageSize)
	uartRegs := make([]byte, 6)
	uartRegs[5] = 0x20

	_, err := Bringup(Params{
		FDTBlob:   make([]byte, 64),
		UARTRegs:  uartRegs,
		RAM:       ram,
		RAMBase:   addr.NewPhysical(0x8000_0000),
		UserBase:  addr.NewVirtual(0x4000_0000),
		Phys2Virt: phys2virt(ram, addr.NewPhysical(0x8000_0000)),
	})
	if err == nil {
		t.Fatalf("expected failure with a malformed FDT blob")
	}
}
