package dispatcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/scroungers/courier/internal/domain"
	"github.com/scroungers/courier/internal/sender"
)

// --- Fakes ---

type fakeSubStore struct {
	subs []domain.Subscription
	err  error
}

func (f *fakeSubStore) ListForEvent(ctx context.Context, eventType domain.EventType, accountID *uuid.UUID) ([]domain.Subscription, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.subs, nil
}

type fakeDeliveryStore struct {
	mu      sync.Mutex
	created []domain.Delivery
	updated []domain.Delivery

	// failCreateFor — подписки, для которых Create возвращает ошибку
	failCreateFor map[uuid.UUID]bool
}

func (f *fakeDeliveryStore) Create(ctx context.Context, d *domain.Delivery) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreateFor[d.SubscriptionID] {
		return errors.New("insert failed")
	}
	f.created = append(f.created, *d)
	return nil
}

func (f *fakeDeliveryStore) Update(ctx context.Context, d *domain.Delivery) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, *d)
	return nil
}

func (f *fakeDeliveryStore) updatedFor(subID uuid.UUID) *domain.Delivery {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.updated {
		if f.updated[i].SubscriptionID == subID {
			return &f.updated[i]
		}
	}
	return nil
}

type fakeSender struct {
	mu       sync.Mutex
	payloads [][]byte
	urls     []string

	// failURLs — адреса, для которых попытка завершается неуспехом
	failURLs map[string]bool

	// delay имитирует медленного подписчика
	delay time.Duration
}

func (f *fakeSender) Deliver(ctx context.Context, url, secret string, eventType domain.EventType, deliveryID uuid.UUID, payload []byte) sender.Result {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.payloads = append(f.payloads, payload)
	f.urls = append(f.urls, url)
	f.mu.Unlock()

	if f.failURLs[url] {
		code := 503
		return sender.Result{
			StatusCode:   &code,
			ResponseBody: "overloaded",
			ErrorMessage: "unexpected status: 503 Service Unavailable",
		}
	}

	code := 200
	return sender.Result{
		Success:      true,
		StatusCode:   &code,
		ResponseBody: "ok",
	}
}

func (f *fakeSender) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

func newTestDispatcher(subs *fakeSubStore, deliveries *fakeDeliveryStore, snd *fakeSender) *Dispatcher {
	return New(Config{
		Subscriptions: subs,
		Deliveries:    deliveries,
		Sender:        snd,
		Logger:        slog.New(slog.DiscardHandler),
	})
}

func testSubscription(url string) domain.Subscription {
	return domain.Subscription{
		ID:     uuid.New(),
		URL:    url,
		Secret: "whsec_test",
		Events: []domain.EventType{domain.EventPostPublished},
		Active: true,
	}
}

// --- Tests ---

func TestDispatcher_Dispatch_UnknownEventType(t *testing.T) {
	subs := &fakeSubStore{}
	deliveries := &fakeDeliveryStore{}
	snd := &fakeSender{}
	d := newTestDispatcher(subs, deliveries, snd)

	err := d.Dispatch(context.Background(), "what.is.this", nil, nil)

	if !errors.Is(err, ErrUnknownEventType) {
		t.Fatalf("expected ErrUnknownEventType, got %v", err)
	}
	if snd.callCount() != 0 {
		t.Error("sender should not be called")
	}
}

func TestDispatcher_Dispatch_NoSubscriptions(t *testing.T) {
	subs := &fakeSubStore{}
	deliveries := &fakeDeliveryStore{}
	snd := &fakeSender{}
	d := newTestDispatcher(subs, deliveries, snd)

	err := d.Dispatch(context.Background(), domain.EventPostPublished, map[string]any{"id": "42"}, nil)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(deliveries.created) != 0 {
		t.Error("no delivery records should be created")
	}
	if snd.callCount() != 0 {
		t.Error("sender should not be called")
	}
}

func TestDispatcher_Dispatch_LookupError(t *testing.T) {
	subs := &fakeSubStore{err: errors.New("db down")}
	d := newTestDispatcher(subs, &fakeDeliveryStore{}, &fakeSender{})

	err := d.Dispatch(context.Background(), domain.EventPostPublished, nil, nil)

	if err == nil {
		t.Fatal("expected error when subscription lookup fails")
	}
}

func TestDispatcher_Dispatch_FanOut(t *testing.T) {
	subs := &fakeSubStore{subs: []domain.Subscription{
		testSubscription("https://a.example.com/hook"),
		testSubscription("https://b.example.com/hook"),
		testSubscription("https://c.example.com/hook"),
	}}
	deliveries := &fakeDeliveryStore{}
	snd := &fakeSender{}
	d := newTestDispatcher(subs, deliveries, snd)

	err := d.Dispatch(context.Background(), domain.EventPostPublished, map[string]any{"post_id": "42"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(deliveries.created) != 3 {
		t.Fatalf("expected 3 delivery records, got %d", len(deliveries.created))
	}
	if len(deliveries.updated) != 3 {
		t.Fatalf("expected 3 updated records, got %d", len(deliveries.updated))
	}
	if snd.callCount() != 3 {
		t.Fatalf("expected 3 delivery attempts, got %d", snd.callCount())
	}

	// Все подписчики получают байт-в-байт одинаковый конверт
	for i := 1; i < len(snd.payloads); i++ {
		if !bytes.Equal(snd.payloads[0], snd.payloads[i]) {
			t.Error("all subscribers must receive identical payload bytes")
		}
	}

	for _, rec := range deliveries.updated {
		if rec.Status != domain.DeliveryStatusSuccess {
			t.Errorf("expected success status, got %s", rec.Status)
		}
		if rec.AttemptCount != 1 {
			t.Errorf("expected attempt count 1, got %d", rec.AttemptCount)
		}
		if rec.DeliveredAt == nil {
			t.Error("delivered_at should be set")
		}
	}
}

func TestDispatcher_Dispatch_FailureIsolation(t *testing.T) {
	good := testSubscription("https://good.example.com/hook")
	bad := testSubscription("https://bad.example.com/hook")

	subs := &fakeSubStore{subs: []domain.Subscription{good, bad}}
	deliveries := &fakeDeliveryStore{}
	snd := &fakeSender{failURLs: map[string]bool{bad.URL: true}}
	d := newTestDispatcher(subs, deliveries, snd)

	err := d.Dispatch(context.Background(), domain.EventPostPublished, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	goodRec := deliveries.updatedFor(good.ID)
	if goodRec == nil {
		t.Fatal("record for healthy subscriber not found")
	}
	if goodRec.Status != domain.DeliveryStatusSuccess {
		t.Errorf("healthy subscriber should succeed, got %s", goodRec.Status)
	}

	badRec := deliveries.updatedFor(bad.ID)
	if badRec == nil {
		t.Fatal("record for failing subscriber not found")
	}
	if badRec.Status != domain.DeliveryStatusFailed {
		t.Errorf("failing subscriber should be failed, got %s", badRec.Status)
	}
	if badRec.NextRetryAt == nil {
		t.Error("failed delivery should be scheduled for retry")
	}
	if badRec.StatusCode == nil || *badRec.StatusCode != 503 {
		t.Error("failed delivery should record status code 503")
	}
}

func TestDispatcher_Dispatch_CreateFailureIsolation(t *testing.T) {
	good := testSubscription("https://good.example.com/hook")
	broken := testSubscription("https://broken.example.com/hook")

	subs := &fakeSubStore{subs: []domain.Subscription{good, broken}}
	deliveries := &fakeDeliveryStore{failCreateFor: map[uuid.UUID]bool{broken.ID: true}}
	snd := &fakeSender{}
	d := newTestDispatcher(subs, deliveries, snd)

	err := d.Dispatch(context.Background(), domain.EventPostPublished, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Для сломанной записи попытка не выполняется, остальные не страдают
	if snd.callCount() != 1 {
		t.Fatalf("expected 1 delivery attempt, got %d", snd.callCount())
	}
	if snd.urls[0] != good.URL {
		t.Errorf("expected attempt to %s, got %s", good.URL, snd.urls[0])
	}
}

func TestDispatcher_Dispatch_Parallel(t *testing.T) {
	var list []domain.Subscription
	for i := 0; i < 5; i++ {
		list = append(list, testSubscription(fmt.Sprintf("https://sub%d.example.com/hook", i)))
	}

	subs := &fakeSubStore{subs: list}
	deliveries := &fakeDeliveryStore{}
	snd := &fakeSender{delay: 100 * time.Millisecond}
	d := newTestDispatcher(subs, deliveries, snd)

	start := time.Now()
	if err := d.Dispatch(context.Background(), domain.EventPostPublished, nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	elapsed := time.Since(start)

	// Последовательно было бы >= 500ms
	if elapsed > 400*time.Millisecond {
		t.Errorf("dispatch took %v, deliveries do not run in parallel", elapsed)
	}
	if snd.callCount() != 5 {
		t.Fatalf("expected 5 attempts, got %d", snd.callCount())
	}
}
