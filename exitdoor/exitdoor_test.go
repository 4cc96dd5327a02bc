package exitdoor

import (
	"encoding/binary"
	"testing"
)

func TestExitWritesPassCode(t *testing.T) {
	reg := make([]byte, 4)
	New(reg).Exit(Pass)
	if got := binary.LittleEndian.Uint32(reg); got != 0x5555 {
		t.Fatalf("reg = %#x, want 0x5555", got)
	}
}

func TestFailEncodesStatusInHighBits(t *testing.T) {
	reg := make([]byte, 4)
	New(reg).Exit(Fail(1))
	got := binary.LittleEndian.Uint32(reg)
	if got&0xffff != 0x3333 {
		t.Fatalf("low bits = %#x, want 0x3333", got&0xffff)
	}
	if got>>16 != 1 {
		t.Fatalf("status = %d, want 1", got>>16)
	}
}
