package crypto

import "testing"

func TestCanonicalizeJCS_KeyOrdering(t *testing.T) {
	a, err := CanonicalizeJCS(map[string]any{"b": 1, "a": 2})
	if err != nil {
		t.Fatalf("CanonicalizeJCS() error = %v", err)
	}

	b, err := CanonicalizeJCS(map[string]any{"a": 2, "b": 1})
	if err != nil {
		t.Fatalf("CanonicalizeJCS() error = %v", err)
	}

	if string(a) != string(b) {
		t.Errorf("canonical forms differ by input key order: %s vs %s", a, b)
	}
	if string(a) != `{"a":2,"b":1}` {
		t.Errorf("canonical form = %s, want alphabetically sorted keys", a)
	}
}
