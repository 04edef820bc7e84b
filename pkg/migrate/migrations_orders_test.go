package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mallhive/mallhive-backend/pkg/migrate"
)

func TestMigrationDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations dir: %v", err)
	}
}

func TestProductsMigrationGuardsStock(t *testing.T) {
	content := readMigration(t, "*_create_shops_and_products.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS products",
		"CHECK (stock_qty >= 0)",
		"CHECK (price_cents > 0)",
		"FOREIGN KEY (shop_id) REFERENCES shops(id) ON DELETE CASCADE",
		"DROP TABLE IF EXISTS products",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestOrdersMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "*_create_orders.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS orders",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_order_number",
		"CREATE TABLE IF NOT EXISTS order_status_entries",
		"FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE",
		"DROP TABLE IF EXISTS orders",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestPaymentsMigrationBoundsRefunds(t *testing.T) {
	content := readMigration(t, "*_create_payments.sql")

	checks := []string{
		"CHECK (refunded_cents <= amount_cents)",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_order",
		"DROP TABLE IF EXISTS payments",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

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
