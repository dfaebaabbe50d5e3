package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/davidnjeri/carhub-backend/pkg/migrate"
)

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration matching %q", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func TestSubscriptionsMigrationEnforcesSingleActiveRow(t *testing.T) {
	content := readMigration(t, "*_create_user_subscriptions.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS user_subscriptions",
		"uq_user_subscriptions_single_active",
		"WHERE status = 'active'",
		"DROP TABLE IF EXISTS user_subscriptions",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestPaymentRequestsMigrationKeyedByCheckoutID(t *testing.T) {
	content := readMigration(t, "*_create_payment_requests.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS payment_requests",
		"checkout_request_id",
		"UNIQUE",
		"DROP TABLE IF EXISTS payment_requests",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestMigrationDirValidates(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("migration dir invalid: %v", err)
	}
}
