//go:build integration

package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siselab/sise-engine/pkg/models"
)

func TestItemRepository_Stamps(t *testing.T) {
	tc := setupRepoTest(t)
	ctx := context.Background()
	repo := NewItemRepository(tc.db)

	categoryID := tc.seedCategory("phones")
	regionID := tc.seedRegion(nil, models.RegionLevelProvince, "Seoul")

	early := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	late := time.Date(2025, 3, 14, 15, 0, 0, 0, time.UTC)
	earlyID := tc.seedItem(categoryID, regionID, 100, models.ItemStatusActive, early)
	lateID := tc.seedItem(categoryID, regionID, 200, models.ItemStatusActive, late)

	all, err := repo.ListStamps(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	since, err := repo.ListStampsSince(ctx, time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, since, 1)
	assert.Equal(t, lateID, since[0].ID)

	// The boundary itself is excluded: a mark equal to updated_at means the
	// item was already covered.
	sinceExact, err := repo.ListStampsSince(ctx, late)
	require.NoError(t, err)
	assert.Empty(t, sinceExact)

	_ = earlyID
}

func TestItemRepository_ListWindow(t *testing.T) {
	tc := setupRepoTest(t)
	ctx := context.Background()
	repo := NewItemRepository(tc.db)

	categoryID := tc.seedCategory("phones")
	regionID := tc.seedRegion(nil, models.RegionLevelProvince, "Seoul")

	from := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)
	inID := tc.seedItem(categoryID, regionID, 750000, models.ItemStatusActive, from.Add(9*time.Hour))
	tc.seedItem(categoryID, regionID, 800000, models.ItemStatusActive, to.Add(time.Hour))
	tc.seedItem(categoryID, regionID, 700000, models.ItemStatusActive, from.Add(-time.Hour))

	items, err := repo.ListWindow(ctx, from, to)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, inID, items[0].ID)
	assert.Equal(t, int64(750000), items[0].Price)
	assert.Equal(t, models.ItemStatusActive, items[0].Status)
}

func TestItemRepository_ListValues(t *testing.T) {
	tc := setupRepoTest(t)
	ctx := context.Background()
	repo := NewItemRepository(tc.db)

	categoryID := tc.seedCategory("phones")
	regionID := tc.seedRegion(nil, models.RegionLevelProvince, "Seoul")
	modelAttr := tc.seedAttribute("model", models.DatatypeText)
	storageAttr := tc.seedAttribute("storage_gb", models.DatatypeInt)
	screenAttr := tc.seedAttribute("screen_in", models.DatatypeDecimal)
	fiveGAttr := tc.seedAttribute("supports_5g", models.DatatypeBool)
	colorAttr := tc.seedAttribute("color", models.DatatypeText)
	optionID := tc.seedOption(colorAttr, "Black")

	created := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	itemID := tc.seedItem(categoryID, regionID, 750000, models.ItemStatusActive, created)
	tc.seedItemValue(itemID, modelAttr, "value_text", "iPhone 15 Pro")
	tc.seedItemValue(itemID, storageAttr, "value_int", 256)
	tc.seedItemValue(itemID, screenAttr, "value_decimal", "6.1")
	tc.seedItemValue(itemID, fiveGAttr, "value_bool", true)
	tc.seedItemValue(itemID, colorAttr, "option_id", optionID)

	values, err := repo.ListValues(ctx, []int64{itemID})
	require.NoError(t, err)
	require.Len(t, values[itemID], 5)

	byAttr := map[int64]models.AttrValue{}
	for _, v := range values[itemID] {
		byAttr[v.AttributeID] = v.Value
	}
	assert.Equal(t, models.TextValue("iPhone 15 Pro"), byAttr[modelAttr])
	assert.Equal(t, models.IntValue(256), byAttr[storageAttr])
	assert.Equal(t, models.KindDecimal, byAttr[screenAttr].Kind)
	assert.True(t, decimal.RequireFromString("6.1").Equal(byAttr[screenAttr].Decimal))
	assert.Equal(t, models.BoolValue(true), byAttr[fiveGAttr])
	assert.Equal(t, models.OptionValue(optionID), byAttr[colorAttr])
}

func TestItemRepository_ListValuesEmptyIDs(t *testing.T) {
	tc := setupRepoTest(t)
	repo := NewItemRepository(tc.db)

	values, err := repo.ListValues(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, values)
}
