package services

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/siselab/sise-engine/pkg/models"
	"github.com/siselab/sise-engine/pkg/regions"
	"github.com/siselab/sise-engine/pkg/repositories"
	"github.com/siselab/sise-engine/pkg/retry"
)

// avgScale is the stored precision of bucket averages.
const avgScale = 2

// PricedItem is one qualifying price observation: an item already resolved
// onto the SKU catalog.
type PricedItem struct {
	SKUID    int64
	RegionID int64 // leaf region
	Price    int64
}

// PriceAggregator turns one bucket's price observations into PriceStats rows:
// per leaf region, per rolled-up district/province (when materialized), and a
// national row per SKU.
type PriceAggregator interface {
	// AggregateBucket computes and writes all rows of one bucket. Returns the
	// number of rows written.
	AggregateBucket(ctx context.Context, bucketTS time.Time, observations []PricedItem) (int, error)
}

type priceAggregator struct {
	stats              repositories.StatsRepository
	tree               *regions.Tree
	materializeRollups bool
	retryCfg           *retry.Config
	logger             *zap.Logger
}

// NewPriceAggregator creates a PriceAggregator over the region tree.
func NewPriceAggregator(stats repositories.StatsRepository, tree *regions.Tree, materializeRollups bool, logger *zap.Logger) PriceAggregator {
	return &priceAggregator{
		stats:              stats,
		tree:               tree,
		materializeRollups: materializeRollups,
		retryCfg:           retry.DefaultConfig(),
		logger:             logger.Named("price-aggregator"),
	}
}

var _ PriceAggregator = (*priceAggregator)(nil)

// statsKey addresses one accumulator. Region 0 is the national row; real
// region IDs start at 1.
type statsKey struct {
	skuID    int64
	regionID int64
}

type accumulator struct {
	count    int64
	sum      int64
	min, max int64
}

func (a *accumulator) add(price int64) {
	if a.count == 0 || price < a.min {
		a.min = price
	}
	if a.count == 0 || price > a.max {
		a.max = price
	}
	a.count++
	a.sum += price
}

// merge folds a child accumulator into a parent: counts and sums add, min
// and max take the extremum. Averages are never merged; they are recomputed
// from sum and count at render time.
func (a *accumulator) merge(child *accumulator) {
	if child.count == 0 {
		return
	}
	if a.count == 0 || child.min < a.min {
		a.min = child.min
	}
	if a.count == 0 || child.max > a.max {
		a.max = child.max
	}
	a.count += child.count
	a.sum += child.sum
}

func (p *priceAggregator) AggregateBucket(ctx context.Context, bucketTS time.Time, observations []PricedItem) (int, error) {
	leaves := make(map[statsKey]*accumulator)
	for _, obs := range observations {
		key := statsKey{skuID: obs.SKUID, regionID: obs.RegionID}
		acc := leaves[key]
		if acc == nil {
			acc = &accumulator{}
			leaves[key] = acc
		}
		acc.add(obs.Price)
	}

	// Bottom-up fold: every leaf accumulator flows into its region's
	// ancestors and into the SKU's national accumulator.
	all := make(map[statsKey]*accumulator, len(leaves)*2)
	for key, acc := range leaves {
		all[key] = acc
	}
	for key, acc := range leaves {
		if p.materializeRollups {
			for _, ancestorID := range p.tree.Ancestors(key.regionID) {
				upKey := statsKey{skuID: key.skuID, regionID: ancestorID}
				up := all[upKey]
				if up == nil {
					up = &accumulator{}
					all[upKey] = up
				}
				up.merge(acc)
			}
		}
		natKey := statsKey{skuID: key.skuID}
		nat := all[natKey]
		if nat == nil {
			nat = &accumulator{}
			all[natKey] = nat
		}
		nat.merge(acc)
	}

	rows := make([]*models.PriceStats, 0, len(all))
	for key, acc := range all {
		if acc.count == 0 {
			continue
		}
		row := &models.PriceStats{
			SKUID:    key.skuID,
			BucketTS: bucketTS,
			Count:    acc.count,
			Sum:      acc.sum,
			Avg:      decimal.NewFromInt(acc.sum).Div(decimal.NewFromInt(acc.count)).Round(avgScale),
			Min:      acc.min,
			Max:      acc.max,
		}
		if key.regionID != 0 {
			regionID := key.regionID
			row.RegionID = &regionID
		}
		rows = append(rows, row)
	}

	// Deterministic write order keeps re-runs byte-identical.
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].SKUID != rows[j].SKUID {
			return rows[i].SKUID < rows[j].SKUID
		}
		ri, rj := int64(0), int64(0)
		if rows[i].RegionID != nil {
			ri = *rows[i].RegionID
		}
		if rows[j].RegionID != nil {
			rj = *rows[j].RegionID
		}
		return ri < rj
	})

	err := retry.Do(ctx, p.retryCfg, func() error {
		return p.stats.ReplaceBucket(ctx, bucketTS, rows)
	})
	if err != nil {
		return 0, err
	}

	p.logger.Debug("Bucket aggregated",
		zap.Time("bucket_ts", bucketTS),
		zap.Int("observations", len(observations)),
		zap.Int("rows", len(rows)))
	return len(rows), nil
}
