package util

import (
	"fmt"
	"strings"
)

// DefaultCountryCode is prepended to bare national numbers.
const DefaultCountryCode = "91"

// CanonicalizePhone normalizes a phone number to E.164-like digits with a
// leading +. Bare 10-digit numbers get the default country code. Returns an
// error when the input has no digits at all.
func CanonicalizePhone(raw string) (string, error) {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	if d == "" {
		return "", fmt.Errorf("phone number %q contains no digits", raw)
	}
	switch {
	case len(d) == 10:
		d = DefaultCountryCode + d
	case len(d) == 11 && strings.HasPrefix(d, "0"):
		d = DefaultCountryCode + d[1:]
	}
	return "+" + d, nil
}

// CanonicalizeOrRaw normalizes a phone number, falling back to the trimmed
// input when it cannot be canonicalized.
func CanonicalizeOrRaw(raw string) string {
	c, err := CanonicalizePhone(raw)
	if err != nil {
		return strings.TrimSpace(raw)
	}
	return c
}

// SamePhone reports whether two raw phone numbers canonicalize to the same
// number. Invalid inputs never match.
func SamePhone(a, b string) bool {
	ca, err := CanonicalizePhone(a)
	if err != nil {
		return false
	}
	cb, err := CanonicalizePhone(b)
	if err != nil {
		return false
	}
	return ca == cb
}
