package scheduler

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/scroungers/courier/internal/domain"
	"github.com/scroungers/courier/internal/repo"
	"github.com/scroungers/courier/internal/sender"
)

// --- Fakes ---

type fakeDeliveryStore struct {
	mu      sync.Mutex
	due     []domain.Delivery
	stalled []domain.Delivery
	updated []domain.Delivery
}

func (f *fakeDeliveryStore) ClaimDue(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]domain.Delivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	due := f.due
	f.due = nil
	return due, nil
}

func (f *fakeDeliveryStore) Update(ctx context.Context, d *domain.Delivery) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, *d)
	return nil
}

func (f *fakeDeliveryStore) ListStalledPending(ctx context.Context, olderThan time.Time, limit int) ([]domain.Delivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stalled := f.stalled
	f.stalled = nil
	return stalled, nil
}

func (f *fakeDeliveryStore) lastUpdated(t *testing.T) *domain.Delivery {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.updated) == 0 {
		t.Fatal("no delivery records were updated")
	}
	return &f.updated[len(f.updated)-1]
}

type fakeSubStore struct {
	subs map[uuid.UUID]*domain.Subscription
	err  error
}

func (f *fakeSubStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Subscription, error) {
	if f.err != nil {
		return nil, f.err
	}
	sub, ok := f.subs[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return sub, nil
}

type fakeSender struct {
	mu       sync.Mutex
	payloads [][]byte
	succeed  bool
}

func (f *fakeSender) Deliver(ctx context.Context, url, secret string, eventType domain.EventType, deliveryID uuid.UUID, payload []byte) sender.Result {
	f.mu.Lock()
	f.payloads = append(f.payloads, payload)
	f.mu.Unlock()

	if f.succeed {
		code := 200
		return sender.Result{Success: true, StatusCode: &code, ResponseBody: "ok"}
	}
	code := 500
	return sender.Result{
		StatusCode:   &code,
		ResponseBody: "boom",
		ErrorMessage: "unexpected status: 500 Internal Server Error",
	}
}

func (f *fakeSender) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

func newTestScheduler(deliveries *fakeDeliveryStore, subs *fakeSubStore, snd *fakeSender) *Scheduler {
	return New(Config{
		Deliveries:    deliveries,
		Subscriptions: subs,
		Sender:        snd,
		Logger:        slog.New(slog.DiscardHandler),
	})
}

func failedDelivery(subID uuid.UUID, attempts int) domain.Delivery {
	d := domain.NewDelivery(subID, domain.EventPostPublished, []byte(`{"event":"post.published"}`), time.Now().Add(-time.Hour))
	for i := 0; i < attempts; i++ {
		d.MarkFailed(nil, "", "connection refused", time.Now().Add(-time.Hour))
	}
	return *d
}

func activeSubscription() *domain.Subscription {
	return &domain.Subscription{
		ID:     uuid.New(),
		URL:    "https://subscriber.example.com/hook",
		Secret: "whsec_test",
		Events: []domain.EventType{domain.EventPostPublished},
		Active: true,
	}
}

// --- Tests ---

func TestScheduler_Tick_RetrySuccessClearsSchedule(t *testing.T) {
	sub := activeSubscription()
	deliveries := &fakeDeliveryStore{due: []domain.Delivery{failedDelivery(sub.ID, 1)}}
	subs := &fakeSubStore{subs: map[uuid.UUID]*domain.Subscription{sub.ID: sub}}
	snd := &fakeSender{succeed: true}

	s := newTestScheduler(deliveries, subs, snd)
	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec := deliveries.lastUpdated(t)
	if rec.Status != domain.DeliveryStatusSuccess {
		t.Fatalf("expected success, got %s", rec.Status)
	}
	if rec.AttemptCount != 2 {
		t.Errorf("expected attempt count 2, got %d", rec.AttemptCount)
	}
	if rec.NextRetryAt != nil {
		t.Error("next_retry_at should be cleared on success")
	}
	if rec.DeliveredAt == nil {
		t.Error("delivered_at should be set")
	}
}

func TestScheduler_Tick_FailureSchedulesNextRetry(t *testing.T) {
	sub := activeSubscription()
	deliveries := &fakeDeliveryStore{due: []domain.Delivery{failedDelivery(sub.ID, 1)}}
	subs := &fakeSubStore{subs: map[uuid.UUID]*domain.Subscription{sub.ID: sub}}
	snd := &fakeSender{}

	s := newTestScheduler(deliveries, subs, snd)
	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec := deliveries.lastUpdated(t)
	if rec.Status != domain.DeliveryStatusFailed {
		t.Fatalf("expected failed, got %s", rec.Status)
	}
	if rec.AttemptCount != 2 {
		t.Errorf("expected attempt count 2, got %d", rec.AttemptCount)
	}
	if rec.NextRetryAt == nil {
		t.Fatal("next retry should be scheduled")
	}

	// После второй неудачи задержка берётся из второй ступени backoff
	wantDelay := domain.RetryDelays[1]
	gotDelay := time.Until(*rec.NextRetryAt)
	if gotDelay < wantDelay-time.Minute || gotDelay > wantDelay+time.Minute {
		t.Errorf("expected next retry in ~%v, got %v", wantDelay, gotDelay)
	}
}

func TestScheduler_Tick_ExhaustedBecomesTerminal(t *testing.T) {
	sub := activeSubscription()
	rec := failedDelivery(sub.ID, domain.MaxRetries-1)
	deliveries := &fakeDeliveryStore{due: []domain.Delivery{rec}}
	subs := &fakeSubStore{subs: map[uuid.UUID]*domain.Subscription{sub.ID: sub}}
	snd := &fakeSender{}

	s := newTestScheduler(deliveries, subs, snd)
	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := deliveries.lastUpdated(t)
	if got.AttemptCount != domain.MaxRetries {
		t.Errorf("expected attempt count %d, got %d", domain.MaxRetries, got.AttemptCount)
	}
	if got.NextRetryAt != nil {
		t.Error("exhausted delivery must not be rescheduled")
	}
	if !got.IsTerminal() {
		t.Error("exhausted delivery should be terminal")
	}
}

func TestScheduler_Tick_DeletedSubscriptionAbandons(t *testing.T) {
	deliveries := &fakeDeliveryStore{due: []domain.Delivery{failedDelivery(uuid.New(), 1)}}
	subs := &fakeSubStore{subs: map[uuid.UUID]*domain.Subscription{}}
	snd := &fakeSender{}

	s := newTestScheduler(deliveries, subs, snd)
	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if snd.callCount() != 0 {
		t.Error("no HTTP attempt should be made for deleted subscription")
	}

	rec := deliveries.lastUpdated(t)
	if !rec.IsTerminal() {
		t.Error("abandoned delivery should be terminal")
	}
	if rec.ErrorMessage != "subscription deleted" {
		t.Errorf("unexpected error message: %q", rec.ErrorMessage)
	}
}

func TestScheduler_Tick_DisabledSubscriptionAbandons(t *testing.T) {
	sub := activeSubscription()
	sub.Active = false
	deliveries := &fakeDeliveryStore{due: []domain.Delivery{failedDelivery(sub.ID, 2)}}
	subs := &fakeSubStore{subs: map[uuid.UUID]*domain.Subscription{sub.ID: sub}}
	snd := &fakeSender{}

	s := newTestScheduler(deliveries, subs, snd)
	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if snd.callCount() != 0 {
		t.Error("no HTTP attempt should be made for disabled subscription")
	}

	rec := deliveries.lastUpdated(t)
	if !rec.IsTerminal() {
		t.Error("abandoned delivery should be terminal")
	}
	if rec.ErrorMessage != "subscription disabled" {
		t.Errorf("unexpected error message: %q", rec.ErrorMessage)
	}
}

func TestScheduler_Tick_SubscriptionLookupErrorSkips(t *testing.T) {
	rec := failedDelivery(uuid.New(), 1)
	deliveries := &fakeDeliveryStore{due: []domain.Delivery{rec}}
	subs := &fakeSubStore{err: errors.New("connection reset")}
	snd := &fakeSender{}

	s := newTestScheduler(deliveries, subs, snd)
	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if snd.callCount() != 0 {
		t.Error("no HTTP attempt should be made when subscription lookup fails")
	}
	if len(deliveries.updated) != 0 {
		t.Error("delivery should stay leased, not be updated")
	}

	// Пропуск по ошибке хранилища — не abandoned
	if got := s.retry(context.Background(), &rec); got != outcomeSkipped {
		t.Errorf("retry outcome = %v, want outcomeSkipped", got)
	}
}

func TestScheduler_Tick_RetryReusesStoredPayload(t *testing.T) {
	sub := activeSubscription()
	rec := failedDelivery(sub.ID, 1)
	deliveries := &fakeDeliveryStore{due: []domain.Delivery{rec}}
	subs := &fakeSubStore{subs: map[uuid.UUID]*domain.Subscription{sub.ID: sub}}
	snd := &fakeSender{succeed: true}

	s := newTestScheduler(deliveries, subs, snd)
	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if snd.callCount() != 1 {
		t.Fatalf("expected 1 attempt, got %d", snd.callCount())
	}
	if !bytes.Equal(snd.payloads[0], rec.Payload) {
		t.Error("retry must reuse stored payload byte-for-byte")
	}
}

func TestScheduler_Tick_EmptySweep(t *testing.T) {
	deliveries := &fakeDeliveryStore{}
	s := newTestScheduler(deliveries, &fakeSubStore{}, &fakeSender{})

	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(deliveries.updated) != 0 {
		t.Error("nothing should be updated on empty sweep")
	}
}

func TestScheduler_RecoverStalled(t *testing.T) {
	sub := activeSubscription()
	stalled := *domain.NewDelivery(sub.ID, domain.EventPostPublished, []byte(`{}`), time.Now().Add(-time.Hour))

	deliveries := &fakeDeliveryStore{stalled: []domain.Delivery{stalled}}
	s := newTestScheduler(deliveries, &fakeSubStore{}, &fakeSender{})

	if err := s.RecoverStalled(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec := deliveries.lastUpdated(t)
	if rec.Status != domain.DeliveryStatusFailed {
		t.Fatalf("expected failed, got %s", rec.Status)
	}
	if rec.AttemptCount != 1 {
		t.Errorf("expected attempt count 1, got %d", rec.AttemptCount)
	}
	if rec.NextRetryAt == nil {
		t.Error("recovered delivery should be scheduled for retry")
	}
}
