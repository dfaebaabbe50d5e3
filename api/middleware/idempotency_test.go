package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type fakeStore struct {
	data map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]string)}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	return f.data[key], nil
}

func (f *fakeStore) SetNX(_ context.Context, key, value string, _ time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.data[key] = value
	return true, nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("fake:%s:%s", scope, id)
}

func requestFor(method, url string, body io.Reader) *http.Request {
	return httptest.NewRequest(method, url, body)
}

func TestRouteTTLSelection(t *testing.T) {
	tests := []struct {
		method  string
		pattern string
		want    time.Duration
		covered bool
	}{
		{http.MethodPost, "/api/v1/payments/mpesa", criticalIdempotencyTTL, true},
		{http.MethodPost, "/api/v1/listings", defaultIdempotencyTTL, true},
		{http.MethodPost, "/api/v1/subscriptions/cancel", defaultIdempotencyTTL, true},
		{http.MethodGet, "/api/v1/listings", 0, false},
		{http.MethodPost, "/api/v1/listings/search", 0, false},
	}
	for _, tc := range tests {
		got, ok := routeTTL(tc.method, tc.pattern)
		if ok != tc.covered {
			t.Fatalf("%s %s: covered=%v, want %v", tc.method, tc.pattern, ok, tc.covered)
		}
		if got != tc.want {
			t.Fatalf("%s %s: ttl=%s, want %s", tc.method, tc.pattern, got, tc.want)
		}
	}
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]int{"call": calls})
	}))

	send := func() *httptest.ResponseRecorder {
		req := requestFor(http.MethodPost, "/api/v1/payments/mpesa", strings.NewReader(`{"plan":"premium"}`))
		req.Header.Set("Idempotency-Key", "key-1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	first := send()
	second := send()

	if calls != 1 {
		t.Fatalf("handler ran %d times, want 1", calls)
	}
	if first.Code != http.StatusCreated || second.Code != http.StatusCreated {
		t.Fatalf("status mismatch: %d vs %d", first.Code, second.Code)
	}
	if first.Body.String() != second.Body.String() {
		t.Fatalf("replayed body differs: %q vs %q", first.Body.String(), second.Body.String())
	}
}

func TestIdempotencyRejectsKeyReuseWithDifferentBody(t *testing.T) {
	store := newFakeStore()
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	req := requestFor(http.MethodPost, "/api/v1/payments/mpesa", strings.NewReader(`{"plan":"premium"}`))
	req.Header.Set("Idempotency-Key", "key-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	req = requestFor(http.MethodPost, "/api/v1/payments/mpesa", strings.NewReader(`{"plan":"other"}`))
	req.Header.Set("Idempotency-Key", "key-1")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for key reuse, got %d", rec.Code)
	}
}

func TestIdempotencyRequiresHeaderOnCoveredRoute(t *testing.T) {
	store := newFakeStore()
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	req := requestFor(http.MethodPost, "/api/v1/payments/mpesa", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without Idempotency-Key, got %d", rec.Code)
	}
}

func TestIdempotencySkipsUncoveredRoutes(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		req := requestFor(http.MethodGet, "/api/v1/listings", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
	}
	if calls != 2 {
		t.Fatalf("uncovered route should always hit the handler, got %d calls", calls)
	}
}
