package domain

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"
)

func TestEventType_IsValid(t *testing.T) {
	for _, e := range AllEventTypes() {
		if !e.IsValid() {
			t.Errorf("%s should be valid", e)
		}
	}

	invalid := []EventType{"", "post", "post.exploded", "POST.CREATED"}
	for _, e := range invalid {
		if e.IsValid() {
			t.Errorf("%q should not be valid", e)
		}
	}
}

func TestNewEnvelope(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	env := NewEnvelope(EventPostPublished, map[string]any{"post_id": "42"}, now)

	if env.Event != EventPostPublished {
		t.Errorf("expected %s, got %s", EventPostPublished, env.Event)
	}
	if env.Timestamp != "2025-06-01T12:30:00Z" {
		t.Errorf("unexpected timestamp: %s", env.Timestamp)
	}
	if env.Data["post_id"] != "42" {
		t.Error("data should be carried as-is")
	}
}

func TestNewEnvelope_NilData(t *testing.T) {
	env := NewEnvelope(EventUserDeleted, nil, time.Now())

	b, err := env.Bytes()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("envelope is not valid JSON: %v", err)
	}

	// data присутствует как пустой объект, а не null
	data, ok := decoded["data"].(map[string]any)
	if !ok {
		t.Fatalf("data should be an object, got %T", decoded["data"])
	}
	if len(data) != 0 {
		t.Error("data should be empty")
	}
}

func TestEnvelope_Bytes_Deterministic(t *testing.T) {
	now := time.Now()
	env := NewEnvelope(EventCommentCreated, map[string]any{
		"comment_id": "7",
		"post_id":    "42",
		"author":     "rms",
	}, now)

	first, err := env.Bytes()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 0; i < 10; i++ {
		again, err := env.Bytes()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatal("envelope serialization must be deterministic")
		}
	}
}
