package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/siselab/sise-engine/pkg/apperrors"
	"github.com/siselab/sise-engine/pkg/config"
	"github.com/siselab/sise-engine/pkg/identity"
	"github.com/siselab/sise-engine/pkg/models"
	"github.com/siselab/sise-engine/pkg/regions"
	"github.com/siselab/sise-engine/pkg/repositories"
	"github.com/siselab/sise-engine/pkg/retry"
	"github.com/siselab/sise-engine/pkg/schema"
)

// RebuildService drives full and incremental passes of the
// fingerprint -> resolve -> aggregate pipeline over the item backlog.
type RebuildService interface {
	Run(ctx context.Context, mode models.RunMode) (*models.PipelineRun, error)
}

type rebuildService struct {
	schemaRepo repositories.SchemaRepository
	items      repositories.ItemRepository
	skus       repositories.SKURepository
	stats      repositories.StatsRepository
	state      repositories.StateRepository

	bucketer           Bucketer
	workers            int
	materializeRollups bool
	retryCfg           *retry.Config
	logger             *zap.Logger
}

// NewRebuildService wires the rebuild orchestrator from its repositories and
// the pipeline configuration.
func NewRebuildService(
	schemaRepo repositories.SchemaRepository,
	items repositories.ItemRepository,
	skus repositories.SKURepository,
	stats repositories.StatsRepository,
	state repositories.StateRepository,
	cfg *config.PipelineConfig,
	logger *zap.Logger,
) (RebuildService, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	bucketer, err := NewBucketer(cfg.Bucket, loc)
	if err != nil {
		return nil, err
	}
	return &rebuildService{
		schemaRepo:         schemaRepo,
		items:              items,
		skus:               skus,
		stats:              stats,
		state:              state,
		bucketer:           bucketer,
		workers:            cfg.Workers,
		materializeRollups: cfg.MaterializeRollups,
		retryCfg:           retry.DefaultConfig(),
		logger:             logger.Named("rebuild"),
	}, nil
}

var _ RebuildService = (*rebuildService)(nil)

func (s *rebuildService) Run(ctx context.Context, mode models.RunMode) (*models.PipelineRun, error) {
	run := &models.PipelineRun{Mode: mode}
	if err := s.state.CreateRun(ctx, run); err != nil {
		return nil, err
	}

	if err := s.run(ctx, run); err != nil {
		run.Status = models.RunStatusFailed
		run.Error = err.Error()
		if finishErr := s.state.FinishRun(ctx, run, nil); finishErr != nil {
			s.logger.Error("Failed to record failed run", zap.Error(finishErr))
		}
		return run, err
	}
	return run, nil
}

func (s *rebuildService) run(ctx context.Context, run *models.PipelineRun) error {
	reg, err := schema.Load(ctx, s.schemaRepo)
	if err != nil {
		return err
	}
	version := reg.Version(identity.RuleVersion, s.bucketer.Granularity(), s.bucketer.Timezone())

	st, err := s.state.GetState(ctx)
	if err != nil {
		return err
	}

	// Fingerprints computed under a different schema are not comparable, so
	// drift escalates an incremental request to a full rebuild.
	if run.Mode == models.RunModeIncremental {
		switch {
		case st.LastFullRebuildAt.IsZero():
			s.logger.Info("No prior full rebuild, escalating to full")
			run.Mode = models.RunModeFull
		case st.SchemaVersion != version:
			s.logger.Warn("Schema drift detected, escalating to full rebuild",
				zap.String("stored_version", st.SchemaVersion),
				zap.String("live_version", version),
				zap.Error(apperrors.ErrSchemaDrift))
			run.Mode = models.RunModeFull
		}
	}

	var stamps []models.ItemStamp
	err = retry.Do(ctx, s.retryCfg, func() error {
		var err error
		if run.Mode == models.RunModeFull {
			stamps, err = s.items.ListStamps(ctx)
		} else {
			stamps, err = s.items.ListStampsSince(ctx, st.HighWaterMark)
		}
		return err
	})
	if err != nil {
		return err
	}

	newState := &models.PipelineState{
		HighWaterMark:     st.HighWaterMark,
		SchemaVersion:     version,
		LastFullRebuildAt: st.LastFullRebuildAt,
	}
	if run.Mode == models.RunModeFull {
		newState.LastFullRebuildAt = time.Now()
	}

	buckets := make(map[time.Time]struct{})
	for _, stamp := range stamps {
		buckets[s.bucketer.Floor(stamp.CreatedAt)] = struct{}{}
		if stamp.UpdatedAt.After(newState.HighWaterMark) {
			newState.HighWaterMark = stamp.UpdatedAt
		}
	}

	bucketList := make([]time.Time, 0, len(buckets))
	for b := range buckets {
		bucketList = append(bucketList, b)
	}
	sort.Slice(bucketList, func(i, j int) bool { return bucketList[i].Before(bucketList[j]) })

	s.logger.Info("Rebuild pass planned",
		zap.String("mode", string(run.Mode)),
		zap.Int("items_changed", len(stamps)),
		zap.Int("buckets", len(bucketList)))

	if len(bucketList) > 0 {
		regionRows, err := s.schemaRepo.ListRegions(ctx)
		if err != nil {
			return err
		}
		tree, err := regions.NewTree(regionRows)
		if err != nil {
			return err
		}

		engine := identity.NewEngine(reg, s.logger)
		resolver := NewSKUResolver(engine, s.skus, s.logger)
		aggregator := NewPriceAggregator(s.stats, tree, s.materializeRollups, s.logger)

		for _, bucketTS := range bucketList {
			if err := s.processBucket(ctx, run, bucketTS, resolver, aggregator); err != nil {
				return err
			}
		}
	}

	// A full pass recomputed everything, so whatever it did not write is
	// stale: buckets floored under an earlier granularity or timezone, and
	// SKUs fingerprinted under a retired rule that no stats row references.
	if run.Mode == models.RunModeFull {
		var statsPruned int64
		err = retry.Do(ctx, s.retryCfg, func() error {
			var err error
			statsPruned, err = s.stats.PruneBucketsExcept(ctx, bucketList)
			return err
		})
		if err != nil {
			return err
		}
		skusPruned, err := s.skus.PruneUnreferenced(ctx)
		if err != nil {
			return err
		}
		if statsPruned > 0 || skusPruned > 0 {
			s.logger.Info("Pruned stale rows after full rebuild",
				zap.Int64("stats_rows", statsPruned),
				zap.Int64("skus", skusPruned))
		}
	}

	run.Status = models.RunStatusSucceeded
	if err := s.state.FinishRun(ctx, run, newState); err != nil {
		return err
	}

	s.logger.Info("Rebuild pass finished",
		zap.String("run_id", run.ID.String()),
		zap.String("mode", string(run.Mode)),
		zap.Int64("items_processed", run.ItemsProcessed),
		zap.Int64("items_skipped_bad", run.ItemsSkippedBad),
		zap.Int64("items_skipped_ineligible", run.ItemsIneligible),
		zap.Int64("skus_created", run.SKUsCreated),
		zap.Int64("buckets_written", run.BucketsWritten))
	return nil
}

// processBucket re-derives every item of one bucket against the catalog and
// replaces the bucket's statistics. Incremental runs land here for each
// touched bucket: the whole bucket is recomputed, not patched, so re-runs
// and backfills stay idempotent.
func (s *rebuildService) processBucket(ctx context.Context, run *models.PipelineRun, bucketTS time.Time,
	resolver SKUResolver, aggregator PriceAggregator) error {

	var bucketItems []*models.Item
	err := retry.Do(ctx, s.retryCfg, func() error {
		var err error
		bucketItems, err = s.items.ListWindow(ctx, bucketTS, s.bucketer.Next(bucketTS))
		return err
	})
	if err != nil {
		return err
	}

	itemIDs := make([]int64, len(bucketItems))
	for i, it := range bucketItems {
		itemIDs[i] = it.ID
	}
	var values map[int64][]models.ItemAttributeValue
	err = retry.Do(ctx, s.retryCfg, func() error {
		var err error
		values, err = s.items.ListValues(ctx, itemIDs)
		return err
	})
	if err != nil {
		return err
	}

	// Shard by category: workers own disjoint item sets, so the only
	// cross-worker contention left is the resolver's insert-if-absent.
	shards := make(map[int64][]*models.Item)
	for _, it := range bucketItems {
		shards[it.CategoryID] = append(shards[it.CategoryID], it)
	}

	var (
		mu       sync.Mutex
		observed []PricedItem
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, shard := range shards {
		shard := shard
		g.Go(func() error {
			var local []PricedItem
			var processed, skippedBad, ineligible, created int64

			for _, it := range shard {
				res, err := resolver.Resolve(gctx, it, values[it.ID])
				switch {
				case errors.Is(err, apperrors.ErrIneligible):
					ineligible++
					s.logger.Debug("Item ineligible for fingerprinting",
						zap.Int64("item_id", it.ID), zap.Error(err))
					continue
				case errors.Is(err, apperrors.ErrDataIntegrity):
					skippedBad++
					s.logger.Warn("Item skipped on data-integrity error",
						zap.Int64("item_id", it.ID), zap.Error(err))
					continue
				case err != nil:
					return fmt.Errorf("resolving item %d: %w", it.ID, err)
				}

				processed++
				if res.Created {
					created++
				}
				if it.Status.Qualifies() {
					local = append(local, PricedItem{SKUID: res.SKUID, RegionID: it.RegionID, Price: it.Price})
				}
			}

			mu.Lock()
			observed = append(observed, local...)
			run.ItemsProcessed += processed
			run.ItemsSkippedBad += skippedBad
			run.ItemsIneligible += ineligible
			run.SKUsCreated += created
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if _, err := aggregator.AggregateBucket(ctx, bucketTS, observed); err != nil {
		return err
	}
	run.BucketsWritten++
	return nil
}
