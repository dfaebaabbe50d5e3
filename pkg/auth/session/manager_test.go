package session

import (
	"context"
	"testing"
	"time"
)

type memoryStore struct {
	data map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[string]string)}
}

func (m *memoryStore) Set(_ context.Context, key, value string, _ time.Duration) error {
	m.data[key] = value
	return nil
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	return m.data[key], nil
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

type plainKeyer struct{}

func (plainKeyer) AccessSessionKey(accessID string) string { return "session:" + accessID }

func newTestManager(store *memoryStore) *Manager {
	return &Manager{store: store, keyer: plainKeyer{}, ttl: time.Hour}
}

func TestGenerateThenRotate(t *testing.T) {
	store := newMemoryStore()
	m := newTestManager(store)
	ctx := context.Background()

	accessID := NewAccessID()
	token, err := m.Generate(ctx, accessID)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if token == "" {
		t.Fatal("expected a refresh token")
	}

	newAccessID, newToken, err := m.Rotate(ctx, accessID, token)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if newAccessID == accessID || newToken == token {
		t.Fatal("rotation must issue fresh credentials")
	}

	// old session is gone
	if _, _, err := m.Rotate(ctx, accessID, token); err != ErrInvalidRefreshToken {
		t.Fatalf("expected ErrInvalidRefreshToken for consumed session, got %v", err)
	}

	ok, err := m.HasSession(ctx, newAccessID)
	if err != nil || !ok {
		t.Fatalf("new session should be live, ok=%v err=%v", ok, err)
	}
}

func TestRotateRejectsWrongToken(t *testing.T) {
	store := newMemoryStore()
	m := newTestManager(store)
	ctx := context.Background()

	accessID := NewAccessID()
	if _, err := m.Generate(ctx, accessID); err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, _, err := m.Rotate(ctx, accessID, "forged-token"); err != ErrInvalidRefreshToken {
		t.Fatalf("expected ErrInvalidRefreshToken, got %v", err)
	}
	// the wrong token must not burn the session
	if ok, _ := m.HasSession(ctx, accessID); !ok {
		t.Fatal("session should survive a failed rotation")
	}
}

func TestRevokeEndsSession(t *testing.T) {
	store := newMemoryStore()
	m := newTestManager(store)
	ctx := context.Background()

	accessID := NewAccessID()
	if _, err := m.Generate(ctx, accessID); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if err := m.Revoke(ctx, accessID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if ok, _ := m.HasSession(ctx, accessID); ok {
		t.Fatal("revoked session should not be live")
	}
}
