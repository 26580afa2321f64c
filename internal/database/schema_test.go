package database

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const migrationsDir = "../../migrations"

func readMigration(t *testing.T, name string) string {
	t.Helper()
	content, err := os.ReadFile(filepath.Join(migrationsDir, name))
	if err != nil {
		t.Fatalf("Failed to read migration %s: %v", name, err)
	}
	return string(content)
}

// Feature: storefront, Property 20: Every table has a migration that creates and drops it
func TestMigrationFilesCreateExpectedTables(t *testing.T) {
	expectedTables := map[string]string{
		"categories":             "00001_create_categories_table.sql",
		"products":               "00002_create_products_table.sql",
		"product_images":         "00003_create_product_images_table.sql",
		"product_specifications": "00004_create_product_specifications_table.sql",
		"addresses":              "00005_create_addresses_table.sql",
		"cart_items":             "00006_create_cart_items_table.sql",
		"coupons":                "00007_create_coupons_table.sql",
		"user_coupons":           "00008_create_user_coupons_table.sql",
		"orders":                 "00009_create_orders_table.sql",
		"order_items":            "00010_create_order_items_table.sql",
		"banners":                "00011_create_banners_table.sql",
	}

	for tableName, migrationFile := range expectedTables {
		contentStr := readMigration(t, migrationFile)

		if !strings.Contains(contentStr, "CREATE TABLE IF NOT EXISTS "+tableName+" (") {
			t.Errorf("Migration file %s does not create table %s", migrationFile, tableName)
		}
		if !strings.Contains(contentStr, "DROP TABLE IF EXISTS "+tableName+";") {
			t.Errorf("Migration file %s does not drop table %s in down section", migrationFile, tableName)
		}
	}
}

func TestMigrationFilesHaveUpAndDown(t *testing.T) {
	files, err := os.ReadDir(migrationsDir)
	if err != nil {
		t.Fatalf("Failed to read migrations directory: %v", err)
	}

	sqlFileCount := 0
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".sql") {
			continue
		}
		sqlFileCount++
		contentStr := readMigration(t, file.Name())

		for _, directive := range []string{
			"-- +goose Up",
			"-- +goose Down",
			"-- +goose StatementBegin",
			"-- +goose StatementEnd",
		} {
			if !strings.Contains(contentStr, directive) {
				t.Errorf("Migration file %s missing '%s' directive", file.Name(), directive)
			}
		}
	}

	if sqlFileCount == 0 {
		t.Error("No SQL migration files found")
	}
}

func TestProductsTableGuardsStock(t *testing.T) {
	contentStr := readMigration(t, "00002_create_products_table.sql")

	for _, fragment := range []string{
		"price NUMERIC(12, 2)",
		"original_price NUMERIC(12, 2)",
		"CHECK (stock >= 0)",
		"CHECK (status IN ('ACTIVE', 'INACTIVE'))",
		"FOREIGN KEY (category_id) REFERENCES categories(id)",
	} {
		if !strings.Contains(contentStr, fragment) {
			t.Errorf("Products migration missing %q", fragment)
		}
	}
}

func TestCartItemsTableHasLineUniqueness(t *testing.T) {
	contentStr := readMigration(t, "00006_create_cart_items_table.sql")

	if !strings.Contains(contentStr, "UNIQUE (user_id, product_id, specs)") {
		t.Error("Cart items table missing unique constraint on (user_id, product_id, specs)")
	}
	if !strings.Contains(contentStr, "specs TEXT NOT NULL DEFAULT ''") {
		t.Error("Cart items specs column must be non-null so the unique constraint applies")
	}
}

func TestOrdersTableConstraints(t *testing.T) {
	contentStr := readMigration(t, "00009_create_orders_table.sql")

	for _, status := range []string{"PENDING", "PAID", "SHIPPING", "COMPLETED", "CANCELLED"} {
		if !strings.Contains(contentStr, "'"+status+"'") {
			t.Errorf("Orders table status constraint missing value: %s", status)
		}
	}
	for _, fragment := range []string{
		"CREATE SEQUENCE IF NOT EXISTS order_no_seq",
		"UNIQUE (order_no)",
		"UNIQUE (user_coupon_id)",
		"discount_amount <= total_amount",
		"final_amount = total_amount - discount_amount",
	} {
		if !strings.Contains(contentStr, fragment) {
			t.Errorf("Orders migration missing %q", fragment)
		}
	}
}

func TestUserCouponsStatusConstraint(t *testing.T) {
	contentStr := readMigration(t, "00008_create_user_coupons_table.sql")

	if !strings.Contains(contentStr, "CHECK (status IN ('UNUSED', 'USED'))") {
		t.Error("User coupons table missing status constraint")
	}
}
