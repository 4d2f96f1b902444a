package flow

import (
	"testing"
	"time"

	"github.com/richa-2701/leadpilot/internal/models"
)

func TestContextStoreOverwrites(t *testing.T) {
	cs := NewContextStore()
	if _, ok := cs.Get("+911111111111"); ok {
		t.Fatal("expected no context initially")
	}

	cs.Set("+911111111111", PendingContext{State: models.StateQualificationPending})
	cs.Set("+911111111111", PendingContext{
		State:   models.StateAwaitingFourPhaseDecision,
		Company: "Acme",
	})

	pc, ok := cs.Get("+911111111111")
	if !ok {
		t.Fatal("expected a context")
	}
	if pc.State != models.StateAwaitingFourPhaseDecision || pc.Company != "Acme" {
		t.Errorf("second Set did not replace the first: %+v", pc)
	}

	cs.Clear("+911111111111")
	if _, ok := cs.Get("+911111111111"); ok {
		t.Error("expected Clear to remove the context")
	}
}

func TestContextStoreIsPerSender(t *testing.T) {
	cs := NewContextStore()
	cs.Set("+911111111111", PendingContext{State: models.StateQualificationPending})
	if _, ok := cs.Get("+912222222222"); ok {
		t.Error("context leaked across senders")
	}
}

func TestTempStoreExpiry(t *testing.T) {
	ts := NewTempStore(time.Minute)
	now := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	ts.now = func() time.Time { return now }

	ts.Set("k", "Acme")
	if v, ok := ts.Get("k"); !ok || v != "Acme" {
		t.Fatalf("Get = %q, %v", v, ok)
	}

	now = now.Add(61 * time.Second)
	if _, ok := ts.Get("k"); ok {
		t.Error("expected the entry to expire")
	}

	// Setting again restarts the TTL.
	ts.Set("k", "Beta")
	now = now.Add(59 * time.Second)
	if v, ok := ts.Get("k"); !ok || v != "Beta" {
		t.Errorf("Get after refresh = %q, %v", v, ok)
	}
}
