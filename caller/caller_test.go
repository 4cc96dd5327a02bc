package caller

import "testing"

func TestDistinctCallerDedupes(t *testing.T) {
	var dc DistinctCaller
	dc.Enabled = true

	first, trace := dc.Distinct()
	if !first {
		t.Fatalf("expected first call from this path to be distinct")
	}
	if trace == "" {
		t.Fatalf("expected a non-empty trace on first sighting")
	}

	second, _ := dc.Distinct()
	if second {
		t.Fatalf("expected repeat call from the same path to not be distinct")
	}
	if dc.Len() != 1 {
		t.Fatalf("expected exactly one recorded path, got %d", dc.Len())
	}
}

func TestDistinctCallerDisabled(t *testing.T) {
	var dc DistinctCaller
	ok, trace := dc.Distinct()
	if ok || trace != "" {
		t.Fatalf("expected disabled tracker to report nothing")
	}
}

func TestDistinctCallerWhitelist(t *testing.T) {
	var dc DistinctCaller
	dc.Enabled = true
	dc.Whitelist = map[string]bool{
		"vanadinite/caller.TestDistinctCallerWhitelist": true,
	}
	ok, _ := dc.Distinct()
	if ok {
		t.Fatalf("expected whitelisted caller to be suppressed")
	}
}

func TestStackFormatsFrames(t *testing.T) {
	s := Stack(0)
	if s == "" {
		t.Fatalf("expected a non-empty stack trace")
	}
}
