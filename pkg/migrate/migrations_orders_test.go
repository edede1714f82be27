package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestOrdersMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_orders.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no orders migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TYPE order_status AS ENUM ('processing', 'shipped', 'delivered', 'cancelled')",
		"CREATE TABLE IF NOT EXISTS orders",
		"CHECK (total_paise >= 0)",
		"shipping_address JSONB NOT NULL",
		"FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE",
		"DROP TABLE IF EXISTS order_items",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestOutboxMigrationContainsDedupIndex(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_outbox_events.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no outbox migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS outbox_events",
		"ux_outbox_events_event_aggregate",
		"WHERE published_at IS NULL",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}
