package events

import (
	"context"
	"errors"
	"testing"
)

func TestDispatcher_PublishRoutesByType(t *testing.T) {
	d := NewInMemoryDispatcher()
	var got []EventType
	d.Subscribe(EventTheftDetected, func(_ context.Context, e Event) error {
		got = append(got, e.Type)
		return nil
	})

	if err := d.Publish(context.Background(), NewEvent(EventSessionIssued, "u1", "d1", nil)); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := d.Publish(context.Background(), NewEvent(EventTheftDetected, "u1", "d1", nil)); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(got) != 1 || got[0] != EventTheftDetected {
		t.Errorf("handled = %v", got)
	}
}

func TestDispatcher_PublishJoinsHandlerErrors(t *testing.T) {
	d := NewInMemoryDispatcher()
	errA := errors.New("a")
	errB := errors.New("b")
	calls := 0
	d.Subscribe(EventSessionRevoked, func(context.Context, Event) error { calls++; return errA })
	d.Subscribe(EventSessionRevoked, func(context.Context, Event) error { calls++; return errB })

	err := d.Publish(context.Background(), NewEvent(EventSessionRevoked, "u1", "d1", nil))
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Fatalf("Publish error = %v", err)
	}
	if calls != 2 {
		t.Errorf("handler calls = %d, want 2", calls)
	}
}

func TestNewEventStampsIDs(t *testing.T) {
	a := NewEvent(EventSessionIssued, "u1", "d1", nil)
	b := NewEvent(EventSessionIssued, "u1", "d1", nil)
	if a.ID == "" || a.ID == b.ID {
		t.Errorf("event ids %q / %q", a.ID, b.ID)
	}
	if a.Timestamp.IsZero() {
		t.Error("timestamp not set")
	}
}

func TestDispatcher_PanickingHandlerIsContained(t *testing.T) {
	d := NewInMemoryDispatcher()
	reached := false
	d.Subscribe(EventTheftDetected, func(context.Context, Event) error { panic("boom") })
	d.Subscribe(EventTheftDetected, func(context.Context, Event) error { reached = true; return nil })

	err := d.Publish(context.Background(), NewEvent(EventTheftDetected, "u1", "d1", nil))
	if err == nil {
		t.Fatal("panic not reported")
	}
	if !reached {
		t.Error("handler after the panicking one did not run")
	}
}
