package idgen

import (
	"strings"
	"testing"
)

func TestNanoID_Length(t *testing.T) {
	for _, length := range []int{5, 8, 12} {
		gen := NanoID(length)
		id := gen()
		if len(id) != length {
			t.Fatalf("NanoID(%d): got length %d", length, len(id))
		}
	}
}

func TestNanoID_Alphabet(t *testing.T) {
	gen := NanoID(100)
	id := gen()
	for _, c := range id {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'z')) {
			t.Fatalf("NanoID: unexpected character %q in %q", c, id)
		}
	}
}

func TestNanoID_Uniqueness(t *testing.T) {
	gen := NanoID(12)
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		id := gen()
		if _, ok := seen[id]; ok {
			t.Fatalf("NanoID: duplicate at iteration %d: %q", i, id)
		}
		seen[id] = struct{}{}
	}
}

func TestTimestamped_Format(t *testing.T) {
	gen := Timestamped(NanoID(6))
	id := gen()
	if !strings.Contains(id, "T") || !strings.Contains(id, "Z_") {
		t.Fatalf("Timestamped: bad format %q", id)
	}
}

func TestTimestamped_SortsChronologically(t *testing.T) {
	gen := Timestamped(NanoID(4))
	a := gen()
	b := gen()
	// Same-second IDs differ only in suffix; later seconds sort after.
	if a[:16] > b[:16] {
		t.Fatalf("Timestamped: %q sorts after %q", a, b)
	}
}

func TestPrefixed(t *testing.T) {
	gen := Prefixed("snap_", NanoID(8))
	id := gen()
	if !strings.HasPrefix(id, "snap_") {
		t.Fatalf("Prefixed: expected prefix 'snap_', got %q", id)
	}
	if len(id) != 5+8 {
		t.Fatalf("Prefixed: expected length 13, got %d", len(id))
	}
}

func TestNewRunID_Shape(t *testing.T) {
	id := NewRunID()
	if !strings.HasPrefix(id, "run_") {
		t.Fatalf("NewRunID: expected run_ prefix, got %q", id)
	}
	if len(id) != 4+36 {
		t.Fatalf("NewRunID: expected run_ plus 36-char UUID, got length %d", len(id))
	}
}

func TestNewCaptureID_Unique(t *testing.T) {
	a := NewCaptureID()
	b := NewCaptureID()
	if a == b {
		t.Fatalf("NewCaptureID: duplicate %q", a)
	}
}
