package credstore

import "testing"

// All tests run the store in memory-only mode; the Redis write-through
// follows the same Put/Get path and needs a live server to exercise.

func TestRoundTripAndOverwrite(t *testing.T) {
	s := New("", "")

	s.Put("esp32-01", "tok123")
	if got := s.Get("esp32-01"); got != "tok123" {
		t.Fatalf("Get() = %q, want tok123", got)
	}

	// Last write wins.
	s.Put("esp32-01", "tok456")
	if got := s.Get("esp32-01"); got != "tok456" {
		t.Fatalf("Get() after overwrite = %q, want tok456", got)
	}
}

func TestGetUnknownDevice(t *testing.T) {
	s := New("", "")
	if got := s.Get("never-seen"); got != "" {
		t.Fatalf("Get(unknown) = %q, want empty", got)
	}
	if got := s.Get(""); got != "" {
		t.Fatalf("Get(\"\") = %q, want empty", got)
	}
}

func TestResolvePrecedence(t *testing.T) {
	s := New("", "fallback-token")
	s.Put("esp32-01", "cached-token")

	// Explicit beats cached beats default.
	if got := s.Resolve("esp32-01", "explicit-token"); got != "explicit-token" {
		t.Fatalf("Resolve(explicit) = %q", got)
	}
	if got := s.Resolve("esp32-01", ""); got != "cached-token" {
		t.Fatalf("Resolve(cached) = %q", got)
	}
	if got := s.Resolve("esp32-02", ""); got != "fallback-token" {
		t.Fatalf("Resolve(default) = %q", got)
	}
}

func TestResolveWithoutDefault(t *testing.T) {
	s := New("", "")
	if got := s.Resolve("esp32-01", ""); got != "" {
		t.Fatalf("Resolve() with nothing known = %q, want empty", got)
	}
}
