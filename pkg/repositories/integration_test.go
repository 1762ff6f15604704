//go:build integration

package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/siselab/sise-engine/pkg/database"
	"github.com/siselab/sise-engine/pkg/models"
	"github.com/siselab/sise-engine/pkg/testhelpers"
)

// repoTestContext holds the shared container connection plus seed helpers.
// The container is shared across the package, so every test starts by wiping
// the tables it touches via cleanup.
type repoTestContext struct {
	t  *testing.T
	db *database.DB
}

func setupRepoTest(t *testing.T) *repoTestContext {
	t.Helper()
	tdb := testhelpers.GetTestDB(t)
	tc := &repoTestContext{t: t, db: tdb.DB}
	tc.cleanup()
	t.Cleanup(tc.cleanup)
	return tc
}

func (tc *repoTestContext) cleanup() {
	tc.t.Helper()
	ctx := context.Background()
	// Reverse foreign-key order.
	for _, table := range []string{
		"pipeline_runs", "pipeline_state", "price_stats",
		"sku_attributes", "skus",
		"item_attribute_values", "items",
		"category_attributes", "attribute_options", "attributes",
		"categories", "regions",
	} {
		if _, err := tc.db.Exec(ctx, "DELETE FROM "+table); err != nil {
			tc.t.Fatalf("failed to clean %s: %v", table, err)
		}
	}
}

func (tc *repoTestContext) seedCategory(name string) int64 {
	tc.t.Helper()
	var id int64
	err := tc.db.QueryRow(context.Background(),
		`INSERT INTO categories (name) VALUES ($1) RETURNING id`, name).Scan(&id)
	if err != nil {
		tc.t.Fatalf("failed to seed category: %v", err)
	}
	return id
}

func (tc *repoTestContext) seedAttribute(code string, datatype models.Datatype) int64 {
	tc.t.Helper()
	var id int64
	err := tc.db.QueryRow(context.Background(),
		`INSERT INTO attributes (code, label, datatype) VALUES ($1, $1, $2) RETURNING id`,
		code, datatype).Scan(&id)
	if err != nil {
		tc.t.Fatalf("failed to seed attribute: %v", err)
	}
	return id
}

func (tc *repoTestContext) seedOption(attributeID int64, value string) int64 {
	tc.t.Helper()
	var id int64
	err := tc.db.QueryRow(context.Background(),
		`INSERT INTO attribute_options (attribute_id, value) VALUES ($1, $2) RETURNING id`,
		attributeID, value).Scan(&id)
	if err != nil {
		tc.t.Fatalf("failed to seed option: %v", err)
	}
	return id
}

func (tc *repoTestContext) bindAttribute(categoryID, attributeID int64, required bool) {
	tc.t.Helper()
	_, err := tc.db.Exec(context.Background(),
		`INSERT INTO category_attributes (category_id, attribute_id, is_required) VALUES ($1, $2, $3)`,
		categoryID, attributeID, required)
	if err != nil {
		tc.t.Fatalf("failed to bind attribute: %v", err)
	}
}

func (tc *repoTestContext) seedRegion(parentID *int64, level models.RegionLevel, name string) int64 {
	tc.t.Helper()
	var id int64
	err := tc.db.QueryRow(context.Background(),
		`INSERT INTO regions (parent_id, level, name) VALUES ($1, $2, $3) RETURNING id`,
		parentID, level, name).Scan(&id)
	if err != nil {
		tc.t.Fatalf("failed to seed region: %v", err)
	}
	return id
}

func (tc *repoTestContext) seedItem(categoryID, regionID int64, price int64, status models.ItemStatus, createdAt time.Time) int64 {
	tc.t.Helper()
	var id int64
	err := tc.db.QueryRow(context.Background(), `
		INSERT INTO items (category_id, region_id, title, price, status, created_at, updated_at)
		VALUES ($1, $2, 'test listing', $3, $4, $5, $5)
		RETURNING id`,
		categoryID, regionID, price, status, createdAt).Scan(&id)
	if err != nil {
		tc.t.Fatalf("failed to seed item: %v", err)
	}
	return id
}

func (tc *repoTestContext) seedItemValue(itemID, attributeID int64, column string, value any) {
	tc.t.Helper()
	_, err := tc.db.Exec(context.Background(),
		`INSERT INTO item_attribute_values (item_id, attribute_id, `+column+`) VALUES ($1, $2, $3)`,
		itemID, attributeID, value)
	if err != nil {
		tc.t.Fatalf("failed to seed item value: %v", err)
	}
}

func (tc *repoTestContext) seedSKU(categoryID int64, fingerprint string) int64 {
	tc.t.Helper()
	var id int64
	err := tc.db.QueryRow(context.Background(),
		`INSERT INTO skus (category_id, fingerprint) VALUES ($1, $2) RETURNING id`,
		categoryID, fingerprint).Scan(&id)
	if err != nil {
		tc.t.Fatalf("failed to seed sku: %v", err)
	}
	return id
}
