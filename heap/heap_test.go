package heap

import "testing"

func TestAllocWriteReadRoundTrip(t *testing.T) {
	var h Heap
	h.Init(make([]byte, 4096))

	b, ok := h.Alloc(64, 8)
	if !ok {
		t.Fatalf("Alloc failed")
	}
	if len(b) < 64 {
		t.Fatalf("len(b) = %d, want >= 64", len(b))
	}
	for i := range b {
		b[i] = byte(i)
	}
	for i, v := range b {
		if v != byte(i) {
			t.Fatalf("byte %d = %d", i, v)
		}
	}
}

func TestAllocSplitsLargeNode(t *testing.T) {
	var h Heap
	h.Init(make([]byte, 4096))

	a, ok := h.Alloc(32, 8)
	if !ok {
		t.Fatalf("first Alloc failed")
	}
	b2, ok := h.Alloc(32, 8)
	if !ok {
		t.Fatalf("second Alloc failed")
	}
	// Distinct backing storage: writing to one must not affect the other.
	for i := range a {
		a[i] = 0xAA
	}
	for i := range b2 {
		b2[i] = 0xBB
	}
	for _, v := range a {
		if v != 0xAA {
			t.Fatalf("first allocation corrupted")
		}
	}
}

func TestFreeThenReallocReusesSpace(t *testing.T) {
	var h Heap
	h.Init(make([]byte, 256))

	a, ok := h.Alloc(64, 8)
	if !ok {
		t.Fatalf("Alloc failed")
	}
	h.Free(a)

	b, ok := h.Alloc(64, 8)
	if !ok {
		t.Fatalf("realloc after free failed")
	}
	_ = b
}

func TestAllocExhaustsArena(t *testing.T) {
	var h Heap
	h.Init(make([]byte, 64))

	if _, ok := h.Alloc(1000, 8); ok {
		t.Fatalf("expected allocation larger than arena to fail")
	}
}

func TestAllocPanicsOnOverAlignment(t *testing.T) {
	var h Heap
	h.Init(make([]byte, 4096))

	defer func() {
		if recover() == nil {
			t.Fatalf("expected alignment above word size to panic")
		}
	}()
	h.Alloc(16, 16)
}
