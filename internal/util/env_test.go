package util

import "testing"

func TestParseBoolEnv(t *testing.T) {
	cases := []struct {
		value string
		def   bool
		want  bool
	}{
		{"true", false, true},
		{"1", false, true},
		{"YES", false, true},
		{"on", false, true},
		{"false", true, false},
		{"0", true, false},
		{"No", true, false},
		{"off", true, false},
		{" true ", false, true},
		{"maybe", true, true},
		{"maybe", false, false},
	}
	for _, c := range cases {
		t.Setenv("LEADPILOT_TEST_BOOL", c.value)
		if got := ParseBoolEnv("LEADPILOT_TEST_BOOL", c.def); got != c.want {
			t.Errorf("ParseBoolEnv(%q, %v) = %v, want %v", c.value, c.def, got, c.want)
		}
	}
}

func TestParseBoolEnvUnset(t *testing.T) {
	if !ParseBoolEnv("LEADPILOT_TEST_BOOL_UNSET", true) {
		t.Error("unset variable must return the default")
	}
	if ParseBoolEnv("LEADPILOT_TEST_BOOL_UNSET", false) {
		t.Error("unset variable must return the default")
	}
}
