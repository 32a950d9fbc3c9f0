package mq

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/scroungers/courier/internal/domain"
)

func TestParsePayload_EventReceived(t *testing.T) {
	accountID := uuid.New()
	msg := &Message{
		ID:   uuid.New().String(),
		Type: MessageTypeEventReceived,
		Payload: EventReceivedPayload{
			EventType: domain.EventPostPublished,
			Data:      map[string]any{"post_id": "42"},
			AccountID: &accountID,
		},
		Timestamp: time.Now(),
	}

	// Конверт проходит через брокер как JSON: payload приходит
	// к consumer'у уже в виде map[string]any
	raw, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal message: %v", err)
	}
	var received Message
	if err := json.Unmarshal(raw, &received); err != nil {
		t.Fatalf("unmarshal message: %v", err)
	}

	payload, err := ParsePayload[EventReceivedPayload](&received)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if payload.EventType != domain.EventPostPublished {
		t.Errorf("event type = %q, want %q", payload.EventType, domain.EventPostPublished)
	}
	if payload.Data["post_id"] != "42" {
		t.Errorf("data[post_id] = %v, want 42", payload.Data["post_id"])
	}
	if payload.AccountID == nil || *payload.AccountID != accountID {
		t.Errorf("account_id = %v, want %s", payload.AccountID, accountID)
	}
}

func TestParsePayload_TypeMismatch(t *testing.T) {
	msg := &Message{
		ID:      uuid.New().String(),
		Type:    MessageTypeEventReceived,
		Payload: map[string]any{"event_type": []any{"not", "a", "string"}},
	}

	if _, err := ParsePayload[EventReceivedPayload](msg); err == nil {
		t.Error("expected error for payload with wrong field types")
	}
}
