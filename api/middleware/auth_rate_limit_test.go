package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type fakeLimiter struct {
	counts map[string]int64
}

func newFakeLimiter() *fakeLimiter {
	return &fakeLimiter{counts: make(map[string]int64)}
}

func (f *fakeLimiter) FixedWindowAllow(_ context.Context, bucket string, limit int64, _ time.Duration) (bool, error) {
	f.counts[bucket]++
	return f.counts[bucket] <= limit, nil
}

func TestAuthRateLimitBlocksEmailAfterLimit(t *testing.T) {
	limiter := newFakeLimiter()
	policy := NewAuthRateLimitPolicy("login", time.Minute, 0, 2)
	handler := AuthRateLimit(policy, limiter, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"email":"Bob@Example.com","password":"x"}`))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if send() != http.StatusOK || send() != http.StatusOK {
		t.Fatal("first two attempts should pass")
	}
	if code := send(); code != http.StatusTooManyRequests {
		t.Fatalf("third attempt should be limited, got %d", code)
	}
	if len(limiter.counts) != 1 {
		t.Fatalf("email casing should collapse to one bucket, got %d", len(limiter.counts))
	}
}

func TestAuthRateLimitBlocksByIP(t *testing.T) {
	limiter := newFakeLimiter()
	policy := NewAuthRateLimitPolicy("register", time.Minute, 1, 0)
	handler := AuthRateLimit(policy, limiter, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	send := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(`{}`))
		req.Header.Set("X-Forwarded-For", ip)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if send("10.0.0.1") != http.StatusCreated {
		t.Fatal("first attempt should pass")
	}
	if code := send("10.0.0.1"); code != http.StatusTooManyRequests {
		t.Fatalf("second attempt from same ip should be limited, got %d", code)
	}
	if send("10.0.0.2") != http.StatusCreated {
		t.Fatal("different ip should not be limited")
	}
}

func TestAuthRateLimitDisabledPolicyPassesThrough(t *testing.T) {
	policy := NewAuthRateLimitPolicy("login", 0, 0, 0)
	calls := 0
	handler := AuthRateLimit(policy, newFakeLimiter(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{}`))
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
	if calls != 5 {
		t.Fatalf("disabled policy must not block, got %d calls", calls)
	}
}
