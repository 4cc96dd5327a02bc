package kernerr

import "testing"

func TestErrnoMapping(t *testing.T) {
	cases := map[Kind]Errno{
		OutOfMemory:       ENOMEM,
		InvalidMapping:    EFAULT,
		InvalidCapability: ENOCAP,
		InvalidArgument:   EINVAL,
		WouldBlock:        EAGAIN,
	}
	for kind, want := range cases {
		if got := kind.Errno(); got != want {
			t.Fatalf("%s: got %d want %d", kind, got, want)
		}
	}
}

func TestWrapAndIs(t *testing.T) {
	base := New(InvalidArgument, "bad size %d", 3)
	wrapped := Wrap(InvalidArgument, base, "alloc_virtual_range")
	if !Is(wrapped, InvalidArgument) {
		t.Fatalf("expected Is to match InvalidArgument")
	}
	if Is(wrapped, OutOfMemory) {
		t.Fatalf("expected Is to reject OutOfMemory")
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(OutOfMemory, nil, "x") != nil {
		t.Fatalf("expected nil passthrough")
	}
}
