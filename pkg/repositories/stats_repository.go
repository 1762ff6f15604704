package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/siselab/sise-engine/pkg/database"
	"github.com/siselab/sise-engine/pkg/models"
)

// StatsRepository persists aggregated price statistics. Writes are scoped to
// whole buckets: a bucket's rows are computed fully in memory and replaced in
// one transaction, so re-runs are idempotent and a cancelled run never leaves
// a partially written bucket.
type StatsRepository interface {
	// ReplaceBucket overwrites every stats row of one time bucket.
	ReplaceBucket(ctx context.Context, bucketTS time.Time, rows []*models.PriceStats) error

	// PruneBucketsExcept deletes every stats row whose bucket timestamp is
	// not in keep, returning the number of rows removed. A full rebuild ends
	// with this so buckets floored under an earlier boundary policy do not
	// linger beside the recomputed ones.
	PruneBucketsExcept(ctx context.Context, keep []time.Time) (int64, error)

	// Series returns up to limit buckets for a SKU ordered by bucket
	// descending. A nil regionID selects the national rows.
	Series(ctx context.Context, skuID int64, regionID *int64, limit int) ([]*models.PriceStats, error)
}

type statsRepository struct {
	db *database.DB
}

// NewStatsRepository creates a new StatsRepository.
func NewStatsRepository(db *database.DB) StatsRepository {
	return &statsRepository{db: db}
}

var _ StatsRepository = (*statsRepository)(nil)

func (r *statsRepository) ReplaceBucket(ctx context.Context, bucketTS time.Time, rows []*models.PriceStats) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin stats transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM price_stats WHERE bucket_ts = $1`, bucketTS); err != nil {
		return fmt.Errorf("failed to clear bucket %s: %w", bucketTS.Format(time.RFC3339), err)
	}

	insert := `
		INSERT INTO price_stats (sku_id, region_id, bucket_ts, items_count, price_sum, price_avg, price_min, price_max)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	for _, row := range rows {
		if row.Count == 0 {
			// Empty buckets are deleted, never stored as zero rows.
			continue
		}
		if _, err := tx.Exec(ctx, insert,
			row.SKUID, row.RegionID, row.BucketTS,
			row.Count, row.Sum, row.Avg.String(), row.Min, row.Max); err != nil {
			return fmt.Errorf("failed to insert stats row (sku=%d): %w", row.SKUID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit stats transaction: %w", err)
	}
	return nil
}

func (r *statsRepository) PruneBucketsExcept(ctx context.Context, keep []time.Time) (int64, error) {
	// A nil slice would encode as SQL NULL and match nothing, so the
	// keep-none case gets its own statement.
	if len(keep) == 0 {
		tag, err := r.db.Exec(ctx, `DELETE FROM price_stats`)
		if err != nil {
			return 0, fmt.Errorf("failed to clear stats: %w", err)
		}
		return tag.RowsAffected(), nil
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM price_stats WHERE bucket_ts <> ALL($1)`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune stale stats buckets: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *statsRepository) Series(ctx context.Context, skuID int64, regionID *int64, limit int) ([]*models.PriceStats, error) {
	query := `
		SELECT sku_id, region_id, bucket_ts, items_count, price_sum, price_avg::text, price_min, price_max
		FROM price_stats
		WHERE sku_id = $1 AND region_id IS NOT DISTINCT FROM $2
		ORDER BY bucket_ts DESC
		LIMIT $3`

	rows, err := r.db.Query(ctx, query, skuID, regionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query price stats series: %w", err)
	}
	defer rows.Close()

	var series []*models.PriceStats
	for rows.Next() {
		var (
			ps     models.PriceStats
			avgStr string
		)
		if err := rows.Scan(&ps.SKUID, &ps.RegionID, &ps.BucketTS,
			&ps.Count, &ps.Sum, &avgStr, &ps.Min, &ps.Max); err != nil {
			return nil, fmt.Errorf("failed to scan price stats row: %w", err)
		}
		avg, err := decimal.NewFromString(avgStr)
		if err != nil {
			return nil, fmt.Errorf("invalid stored average %q: %w", avgStr, err)
		}
		ps.Avg = avg
		series = append(series, &ps)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating price stats: %w", err)
	}
	return series, nil
}
