package service

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/board-api/internal/events"
	"github.com/spec-kit/board-api/internal/observability"
)

func TestAuditService_RecordsSessionEvents(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	metrics := observability.NewMetrics("test")
	dispatcher := events.NewInMemoryDispatcher()
	NewAuditService(dispatcher, zap.New(core), metrics).RegisterHandlers()

	ctx := context.Background()
	_ = dispatcher.Publish(ctx, events.NewEvent(events.EventSessionIssued, "u1", "d1", nil))
	_ = dispatcher.Publish(ctx, events.NewEvent(events.EventTheftDetected, "u1", "d1",
		events.TheftPayload{Reason: events.ReasonCacheMismatch, Credential: "access"}))

	if n := logs.FilterMessage("session event").Len(); n != 1 {
		t.Errorf("session event logs = %d, want 1", n)
	}
	alerts := logs.FilterMessage("security alert").All()
	if len(alerts) != 1 || alerts[0].Level != zap.WarnLevel {
		t.Fatalf("security alerts = %+v", alerts)
	}
	got, err := testutil.GatherAndCount(metrics.Registry(), "test_session_events_total")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if got != 2 {
		t.Errorf("session_events_total series = %d, want 2", got)
	}
}
