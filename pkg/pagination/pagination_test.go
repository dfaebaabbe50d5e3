package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNormalizeLimit(t *testing.T) {
	if got := NormalizeLimit(0); got != DefaultLimit {
		t.Fatalf("zero limit: got %d", got)
	}
	if got := NormalizeLimit(-5); got != DefaultLimit {
		t.Fatalf("negative limit: got %d", got)
	}
	if got := NormalizeLimit(500); got != MaxLimit {
		t.Fatalf("oversized limit: got %d", got)
	}
	if got := NormalizeLimit(10); got != 10 {
		t.Fatalf("in-range limit: got %d", got)
	}
}

func TestCursorRoundTrip(t *testing.T) {
	id := uuid.New()
	createdAt := time.Date(2025, 6, 1, 12, 30, 0, 123456789, time.UTC)

	cursor, err := ParseCursor(EncodeCursor(createdAt, id))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !cursor.CreatedAt.Equal(createdAt) {
		t.Fatalf("createdAt mismatch: %s vs %s", cursor.CreatedAt, createdAt)
	}
	if cursor.ID != id {
		t.Fatalf("id mismatch: %s vs %s", cursor.ID, id)
	}
}

func TestParseCursorEmpty(t *testing.T) {
	cursor, err := ParseCursor("")
	if err != nil || cursor != nil {
		t.Fatalf("empty cursor should be nil, nil; got %v, %v", cursor, err)
	}
}

func TestParseCursorMalformed(t *testing.T) {
	if _, err := ParseCursor("not-base64!!"); err == nil {
		t.Fatal("expected error for bad encoding")
	}
	if _, err := ParseCursor("bm8tcGlwZQ"); err == nil {
		t.Fatal("expected error for missing separator")
	}
}
