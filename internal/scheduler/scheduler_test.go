package scheduler

import (
	"testing"
)

func TestAddJobValidatesExpression(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	if err := s.AddJob("0 9 * * 1", func() {}); err != nil {
		t.Errorf("valid expression rejected: %v", err)
	}
	if err := s.AddJob("not a cron expression", func() {}); err == nil {
		t.Error("invalid expression accepted")
	}
	// 6-field (with seconds) expressions are not part of the configured format.
	if err := s.AddJob("* * * * * *", func() {}); err == nil {
		t.Error("6-field expression accepted")
	}
}
