package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewDelivery(t *testing.T) {
	now := time.Now()
	subID := uuid.New()
	payload := []byte(`{"event":"post.published"}`)

	d := NewDelivery(subID, EventPostPublished, payload, now)

	if d.Status != DeliveryStatusPending {
		t.Errorf("expected pending, got %s", d.Status)
	}
	if d.AttemptCount != 0 {
		t.Errorf("expected 0 attempts, got %d", d.AttemptCount)
	}
	if d.SubscriptionID != subID {
		t.Error("subscription id should be set")
	}
	if string(d.Payload) != string(payload) {
		t.Error("payload should be stored as-is")
	}
	if d.IsTerminal() {
		t.Error("new delivery must not be terminal")
	}
}

func TestNextRetryDelay(t *testing.T) {
	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{1, 60 * time.Second},
		{2, 300 * time.Second},
		{3, 900 * time.Second},
		{4, 3600 * time.Second},
		{5, 7200 * time.Second},
		// За пределами таблицы задержка прижимается к последней ступени
		{6, 7200 * time.Second},
		{100, 7200 * time.Second},
		{0, 60 * time.Second},
	}

	for _, tt := range tests {
		if got := NextRetryDelay(tt.attempts); got != tt.want {
			t.Errorf("NextRetryDelay(%d) = %v, want %v", tt.attempts, got, tt.want)
		}
	}
}

func TestDelivery_MarkFailed_BackoffProgression(t *testing.T) {
	now := time.Now()
	d := NewDelivery(uuid.New(), EventPostPublished, []byte(`{}`), now)

	wantDelays := []time.Duration{
		60 * time.Second,
		300 * time.Second,
		900 * time.Second,
		3600 * time.Second,
	}

	for i, want := range wantDelays {
		d.MarkFailed(nil, "", "connection refused", now)

		if d.AttemptCount != i+1 {
			t.Fatalf("attempt %d: count = %d", i+1, d.AttemptCount)
		}
		if d.NextRetryAt == nil {
			t.Fatalf("attempt %d: next retry should be scheduled", i+1)
		}
		if got := d.NextRetryAt.Sub(now); got != want {
			t.Errorf("attempt %d: delay = %v, want %v", i+1, got, want)
		}
		if d.IsTerminal() {
			t.Fatalf("attempt %d: must not be terminal yet", i+1)
		}
	}

	// Пятая неудача исчерпывает попытки
	d.MarkFailed(nil, "", "connection refused", now)

	if d.AttemptCount != MaxRetries {
		t.Errorf("expected %d attempts, got %d", MaxRetries, d.AttemptCount)
	}
	if d.NextRetryAt != nil {
		t.Error("exhausted delivery must not be rescheduled")
	}
	if !d.IsTerminal() {
		t.Error("exhausted delivery should be terminal")
	}
	if d.CanRetry() {
		t.Error("exhausted delivery must not allow retry")
	}
}

func TestDelivery_MarkSucceeded(t *testing.T) {
	now := time.Now()
	d := NewDelivery(uuid.New(), EventPostPublished, []byte(`{}`), now)
	d.MarkFailed(nil, "", "timeout", now)

	later := now.Add(time.Minute)
	d.MarkSucceeded(200, "ok", later)

	if d.Status != DeliveryStatusSuccess {
		t.Fatalf("expected success, got %s", d.Status)
	}
	if d.AttemptCount != 2 {
		t.Errorf("expected 2 attempts, got %d", d.AttemptCount)
	}
	if d.StatusCode == nil || *d.StatusCode != 200 {
		t.Error("status code should be recorded")
	}
	if d.ErrorMessage != "" {
		t.Error("error message should be cleared on success")
	}
	if d.NextRetryAt != nil {
		t.Error("next retry should be cleared on success")
	}
	if d.DeliveredAt == nil || !d.DeliveredAt.Equal(later) {
		t.Error("delivered_at should be set")
	}
	if !d.IsTerminal() {
		t.Error("successful delivery should be terminal")
	}
}

func TestDelivery_MarkFailed_RecordsResponse(t *testing.T) {
	now := time.Now()
	d := NewDelivery(uuid.New(), EventPostPublished, []byte(`{}`), now)

	code := 503
	d.MarkFailed(&code, "overloaded", "unexpected status: 503 Service Unavailable", now)

	if d.StatusCode == nil || *d.StatusCode != 503 {
		t.Error("status code should be recorded")
	}
	if d.ResponseBody != "overloaded" {
		t.Error("response body should be recorded")
	}
	if d.ErrorMessage == "" {
		t.Error("error message should be recorded")
	}
}

func TestDelivery_MarkAbandoned(t *testing.T) {
	now := time.Now()
	d := NewDelivery(uuid.New(), EventPostPublished, []byte(`{}`), now)
	d.MarkFailed(nil, "", "timeout", now)

	d.MarkAbandoned("subscription disabled", now)

	if d.Status != DeliveryStatusFailed {
		t.Fatalf("expected failed, got %s", d.Status)
	}
	// Попытка не выполнялась, счётчик не растёт
	if d.AttemptCount != 1 {
		t.Errorf("expected 1 attempt, got %d", d.AttemptCount)
	}
	if d.NextRetryAt != nil {
		t.Error("abandoned delivery must not be rescheduled")
	}
	if !d.IsTerminal() {
		t.Error("abandoned delivery should be terminal")
	}
}

func TestDeliveryStatus_IsTerminal(t *testing.T) {
	if DeliveryStatusPending.IsTerminal() {
		t.Error("pending is not terminal")
	}
	if !DeliveryStatusSuccess.IsTerminal() {
		t.Error("success is terminal")
	}
	// Терминальность failed зависит от NextRetryAt и решается на Delivery
	if DeliveryStatusFailed.IsTerminal() {
		t.Error("failed alone does not imply terminal")
	}
}
