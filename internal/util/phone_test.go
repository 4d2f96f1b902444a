package util

import "testing"

func TestCanonicalizePhone(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"9876543210", "+919876543210"},
		{"09876543210", "+919876543210"},
		{"+91 98765 43210", "+919876543210"},
		{"919876543210", "+919876543210"},
		{"+1 (415) 555-0100", "+14155550100"},
	}
	for _, c := range cases {
		got, err := CanonicalizePhone(c.in)
		if err != nil {
			t.Fatalf("CanonicalizePhone(%q) returned error: %v", c.in, err)
		}
		if got != c.want {
			t.Errorf("CanonicalizePhone(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestCanonicalizePhoneRejectsEmpty(t *testing.T) {
	if _, err := CanonicalizePhone("not a number"); err == nil {
		t.Error("expected error for input with no digits")
	}
}

func TestSamePhone(t *testing.T) {
	if !SamePhone("9876543210", "+91 98765 43210") {
		t.Error("expected numbers to match after canonicalization")
	}
	if SamePhone("9876543210", "9876543211") {
		t.Error("different numbers must not match")
	}
	if SamePhone("abc", "abc") {
		t.Error("invalid numbers must not match")
	}
}
