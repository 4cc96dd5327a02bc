package util

import "testing"

func TestRoundupRounddown(t *testing.T) {
	if Roundup(13, 8) != 16 {
		t.Fatalf("roundup got %d", Roundup(13, 8))
	}
	if Roundup(16, 8) != 16 {
		t.Fatalf("roundup of aligned value changed")
	}
	if Rounddown(13, 8) != 8 {
		t.Fatalf("rounddown got %d", Rounddown(13, 8))
	}
}

func TestMin(t *testing.T) {
	if Min(3, 5) != 3 || Min(5, 3) != 3 {
		t.Fatalf("min incorrect")
	}
}

func TestReadnWriten(t *testing.T) {
	buf := make([]uint8, 16)
	Writen(buf, 8, 4, 0x1122334455)
	if got := Readn(buf, 8, 4); got != 0x1122334455 {
		t.Fatalf("got %#x", got)
	}
}

func TestReadnOutOfBoundsPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	Readn(make([]uint8, 2), 8, 0)
}
