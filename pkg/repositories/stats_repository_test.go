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

func TestStatsRepository_ReplaceBucket(t *testing.T) {
	tc := setupRepoTest(t)
	ctx := context.Background()
	repo := NewStatsRepository(tc.db)

	categoryID := tc.seedCategory("phones")
	skuID := tc.seedSKU(categoryID, "aaaa0000bbbb1111cccc2222dddd3333")
	province := tc.seedRegion(nil, models.RegionLevelProvince, "Seoul")
	district := tc.seedRegion(&province, models.RegionLevelDistrict, "Gangnam-gu")

	bucket := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	rows := []*models.PriceStats{
		{SKUID: skuID, RegionID: &district, BucketTS: bucket, Count: 2, Sum: 1530000,
			Avg: decimal.NewFromInt(765000), Min: 750000, Max: 780000},
		{SKUID: skuID, BucketTS: bucket, Count: 2, Sum: 1530000,
			Avg: decimal.NewFromInt(765000), Min: 750000, Max: 780000},
	}
	require.NoError(t, repo.ReplaceBucket(ctx, bucket, rows))

	national, err := repo.Series(ctx, skuID, nil, 10)
	require.NoError(t, err)
	require.Len(t, national, 1)
	assert.Nil(t, national[0].RegionID)
	assert.Equal(t, int64(2), national[0].Count)
	assert.True(t, decimal.NewFromInt(765000).Equal(national[0].Avg))

	regional, err := repo.Series(ctx, skuID, &district, 10)
	require.NoError(t, err)
	require.Len(t, regional, 1)
	require.NotNil(t, regional[0].RegionID)
	assert.Equal(t, district, *regional[0].RegionID)

	// Replacing the bucket with a smaller row set removes the rest.
	require.NoError(t, repo.ReplaceBucket(ctx, bucket, []*models.PriceStats{
		{SKUID: skuID, BucketTS: bucket, Count: 1, Sum: 750000,
			Avg: decimal.NewFromInt(750000), Min: 750000, Max: 750000},
	}))

	regional, err = repo.Series(ctx, skuID, &district, 10)
	require.NoError(t, err)
	assert.Empty(t, regional)

	national, err = repo.Series(ctx, skuID, nil, 10)
	require.NoError(t, err)
	require.Len(t, national, 1)
	assert.Equal(t, int64(1), national[0].Count)
}

func TestStatsRepository_ReplaceBucketScopedToBucket(t *testing.T) {
	tc := setupRepoTest(t)
	ctx := context.Background()
	repo := NewStatsRepository(tc.db)

	categoryID := tc.seedCategory("phones")
	skuID := tc.seedSKU(categoryID, "aaaa0000bbbb1111cccc2222dddd3333")

	day1 := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	require.NoError(t, repo.ReplaceBucket(ctx, day1, []*models.PriceStats{
		{SKUID: skuID, BucketTS: day1, Count: 1, Sum: 100, Avg: decimal.NewFromInt(100), Min: 100, Max: 100},
	}))
	require.NoError(t, repo.ReplaceBucket(ctx, day2, []*models.PriceStats{
		{SKUID: skuID, BucketTS: day2, Count: 1, Sum: 200, Avg: decimal.NewFromInt(200), Min: 200, Max: 200},
	}))

	// Emptying day2 must not touch day1.
	require.NoError(t, repo.ReplaceBucket(ctx, day2, nil))

	series, err := repo.Series(ctx, skuID, nil, 10)
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.True(t, day1.Equal(series[0].BucketTS))
}

func TestStatsRepository_PruneBucketsExcept(t *testing.T) {
	tc := setupRepoTest(t)
	ctx := context.Background()
	repo := NewStatsRepository(tc.db)

	categoryID := tc.seedCategory("phones")
	skuID := tc.seedSKU(categoryID, "aaaa0000bbbb1111cccc2222dddd3333")

	// Two daily buckets plus one floored under an older weekly policy.
	day1 := time.Date(2025, 3, 13, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	oldWeek := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	for _, bucket := range []time.Time{day1, day2, oldWeek} {
		require.NoError(t, repo.ReplaceBucket(ctx, bucket, []*models.PriceStats{
			{SKUID: skuID, BucketTS: bucket, Count: 1, Sum: 750000,
				Avg: decimal.NewFromInt(750000), Min: 750000, Max: 750000},
		}))
	}

	pruned, err := repo.PruneBucketsExcept(ctx, []time.Time{day1, day2})
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)

	series, err := repo.Series(ctx, skuID, nil, 10)
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.True(t, day2.Equal(series[0].BucketTS))
	assert.True(t, day1.Equal(series[1].BucketTS))

	// An empty keep set clears the table, the no-items full-rebuild case.
	pruned, err = repo.PruneBucketsExcept(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), pruned)

	series, err = repo.Series(ctx, skuID, nil, 10)
	require.NoError(t, err)
	assert.Empty(t, series)
}

func TestStatsRepository_SeriesOrderAndLimit(t *testing.T) {
	tc := setupRepoTest(t)
	ctx := context.Background()
	repo := NewStatsRepository(tc.db)

	categoryID := tc.seedCategory("phones")
	skuID := tc.seedSKU(categoryID, "aaaa0000bbbb1111cccc2222dddd3333")

	base := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	for d := 0; d < 5; d++ {
		bucket := base.AddDate(0, 0, d)
		require.NoError(t, repo.ReplaceBucket(ctx, bucket, []*models.PriceStats{
			{SKUID: skuID, BucketTS: bucket, Count: 1, Sum: int64(100 + d),
				Avg: decimal.NewFromInt(int64(100 + d)), Min: int64(100 + d), Max: int64(100 + d)},
		}))
	}

	series, err := repo.Series(ctx, skuID, nil, 3)
	require.NoError(t, err)
	require.Len(t, series, 3)
	assert.True(t, base.AddDate(0, 0, 4).Equal(series[0].BucketTS), "newest bucket first")
	assert.True(t, series[0].BucketTS.After(series[1].BucketTS))
	assert.True(t, series[1].BucketTS.After(series[2].BucketTS))
}
