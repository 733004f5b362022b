package trigger

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/tessera-io/tessera/model"
)

func TestLogMessengerRecordsDelivery(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	m := NewLogMessenger(zap.New(core), "noreply@example.com")

	err := m.Send(context.Background(), model.OutboundMessage{
		Template:   "approval-request",
		To:         "manager@example.com",
		Subject:    "Approval needed",
		InstanceID: "wi-1",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d log entries, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["from"] != "noreply@example.com" {
		t.Errorf("from = %v, want noreply@example.com", fields["from"])
	}
	if fields["template"] != "approval-request" || fields["to"] != "manager@example.com" {
		t.Errorf("fields = %v", fields)
	}
}

func TestLogMessengerNilLogger(t *testing.T) {
	m := NewLogMessenger(nil, "")
	if err := m.Send(context.Background(), model.OutboundMessage{Template: "t"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
}
