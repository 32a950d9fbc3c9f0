package sender

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/scroungers/courier/internal/domain"
	"github.com/scroungers/courier/internal/signature"
)

func TestDeliver_Success(t *testing.T) {
	payload := []byte(`{"event":"post.created","timestamp":"2026-01-01T00:00:00Z","data":{"id":"p1"}}`)
	deliveryID := uuid.New()

	var gotBody string
	var gotHeaders http.Header

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		buf, _ := io.ReadAll(r.Body)
		gotBody = string(buf)
		gotHeaders = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	s := New()
	result := s.Deliver(context.Background(), server.URL, "whsec_test", domain.EventPostCreated, deliveryID, payload)

	if !result.Success {
		t.Fatalf("expected success, got error %q", result.ErrorMessage)
	}
	if result.StatusCode == nil || *result.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %v", result.StatusCode)
	}
	if result.ResponseBody != "ok" {
		t.Errorf("expected response body 'ok', got %q", result.ResponseBody)
	}

	// Тело — байт-в-байт payload
	if gotBody != string(payload) {
		t.Errorf("body mismatch: %q", gotBody)
	}

	// Проверяем заголовки контракта
	if ct := gotHeaders.Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}
	if ev := gotHeaders.Get(HeaderEvent); ev != "post.created" {
		t.Errorf("expected event header post.created, got %s", ev)
	}
	if id := gotHeaders.Get(HeaderDeliveryID); id != deliveryID.String() {
		t.Errorf("expected delivery id header %s, got %s", deliveryID, id)
	}

	// Подпись должна сходиться по телу и заголовку timestamp —
	// ровно так её проверяет внешний подписчик
	ts, err := strconv.ParseInt(gotHeaders.Get(HeaderTimestamp), 10, 64)
	if err != nil {
		t.Fatalf("invalid timestamp header: %v", err)
	}
	sig := gotHeaders.Get(HeaderSignature)
	if !strings.HasPrefix(sig, "v1=") {
		t.Errorf("signature should be versioned, got %s", sig)
	}
	if !signature.Verify(payload, sig, "whsec_test", ts, signature.DefaultTolerance) {
		t.Error("receiver-side verification of the sent signature failed")
	}
}

func TestDeliver_Non2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("try later"))
	}))
	defer server.Close()

	s := New()
	result := s.Deliver(context.Background(), server.URL, "whsec_test", domain.EventPostCreated, uuid.New(), []byte("{}"))

	if result.Success {
		t.Fatal("5xx should not be success")
	}
	if result.StatusCode == nil || *result.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %v", result.StatusCode)
	}
	if result.ResponseBody != "try later" {
		t.Errorf("expected response body captured, got %q", result.ResponseBody)
	}
	if !strings.Contains(result.ErrorMessage, "503") {
		t.Errorf("error message should mention the status, got %q", result.ErrorMessage)
	}
}

func TestDeliver_BodyTruncated(t *testing.T) {
	big := strings.Repeat("x", 5000)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(big))
	}))
	defer server.Close()

	s := New()
	result := s.Deliver(context.Background(), server.URL, "whsec_test", domain.EventPostCreated, uuid.New(), []byte("{}"))

	if len(result.ResponseBody) != responseBodyLimit {
		t.Errorf("response body should be capped at %d bytes, got %d", responseBodyLimit, len(result.ResponseBody))
	}
}

func TestDeliver_Timeout(t *testing.T) {
	done := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-done // висим до конца теста
	}))
	defer server.Close()
	defer close(done)

	s := New(WithTimeout(100 * time.Millisecond))
	start := time.Now()
	result := s.Deliver(context.Background(), server.URL, "whsec_test", domain.EventPostCreated, uuid.New(), []byte("{}"))

	if result.Success {
		t.Fatal("timed-out delivery should not be success")
	}
	if result.ErrorMessage != "Request timed out" {
		t.Errorf("expected timeout error message, got %q", result.ErrorMessage)
	}
	if result.StatusCode != nil {
		t.Errorf("no status code expected on timeout, got %v", result.StatusCode)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("delivery should respect the timeout, took %v", elapsed)
	}
}

func TestDeliver_ConnectionRefused(t *testing.T) {
	// Закрываем сервер сразу — порт свободен, соединение отклоняется
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	s := New()
	result := s.Deliver(context.Background(), url, "whsec_test", domain.EventPostCreated, uuid.New(), []byte("{}"))

	if result.Success {
		t.Fatal("refused connection should not be success")
	}
	if result.StatusCode != nil {
		t.Errorf("no status code expected on network error, got %v", result.StatusCode)
	}
	if result.ErrorMessage == "" {
		t.Error("network error should carry an error message")
	}
}

func TestDeliver_SecretNeverInResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	secret := "whsec_super_secret_value"
	s := New()
	result := s.Deliver(context.Background(), server.URL, secret, domain.EventPostCreated, uuid.New(), []byte("{}"))

	if strings.Contains(result.ErrorMessage, secret) || strings.Contains(result.ResponseBody, secret) {
		t.Error("secret must never appear in the delivery result")
	}
}
