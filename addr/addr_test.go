package addr

import "testing"

func TestVPNRoundTrip(t *testing.T) {
	v := MakeVirtual(0x03, 0xF5, 0xDB, 0xEEF)
	vpn2, vpn1, vpn0, off := v.VPN()
	if vpn2 != 0x03 || vpn1 != 0xF5 || vpn0 != 0xDB || off != 0xEEF {
		t.Fatalf("got (%#x,%#x,%#x,%#x)", vpn2, vpn1, vpn0, off)
	}
}

func TestCanonical(t *testing.T) {
	low := MakeVirtual(0, 0, 0, 0)
	if !low.Canonical() {
		t.Fatalf("expected canonical low address")
	}
	high := Virtual(uintptr(1) << 38)
	high = MakeVirtual(0x1ff, 0x1ff, 0x1ff, 0xfff)
	if !high.Canonical() {
		t.Fatalf("expected canonical high address")
	}
	bad := Virtual(uintptr(1) << 40)
	if bad.Canonical() {
		t.Fatalf("expected non-canonical address to be rejected")
	}
}

func TestAlignedTo(t *testing.T) {
	p := NewPhysical(0x1000)
	if !p.AlignedTo(0x1000) {
		t.Fatalf("expected alignment")
	}
	if NewPhysical(0x1001).AlignedTo(0x1000) {
		t.Fatalf("expected misalignment to be detected")
	}
}
