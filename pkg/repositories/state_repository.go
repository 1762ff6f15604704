package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/siselab/sise-engine/pkg/database"
	"github.com/siselab/sise-engine/pkg/models"
)

// StateRepository persists the pipeline's resume state and run bookkeeping.
// The state row is a singleton updated only when a run completes, which keeps
// crashes safe: a dead run is simply re-attempted from the previous mark.
type StateRepository interface {
	// GetState returns the pipeline state, or a zero state before the first
	// successful run.
	GetState(ctx context.Context) (*models.PipelineState, error)

	// SaveState upserts the singleton state row.
	SaveState(ctx context.Context, state *models.PipelineState) error

	// CreateRun records the start of a rebuild pass.
	CreateRun(ctx context.Context, run *models.PipelineRun) error

	// FinishRun records a run's outcome and, on success, atomically saves the
	// new pipeline state in the same transaction.
	FinishRun(ctx context.Context, run *models.PipelineRun, state *models.PipelineState) error
}

type stateRepository struct {
	db *database.DB
}

// NewStateRepository creates a new StateRepository.
func NewStateRepository(db *database.DB) StateRepository {
	return &stateRepository{db: db}
}

var _ StateRepository = (*stateRepository)(nil)

func (r *stateRepository) GetState(ctx context.Context) (*models.PipelineState, error) {
	query := `
		SELECT high_water_mark, schema_version, last_full_rebuild_at
		FROM pipeline_state
		WHERE id = 1`

	var st models.PipelineState
	err := r.db.QueryRow(ctx, query).Scan(&st.HighWaterMark, &st.SchemaVersion, &st.LastFullRebuildAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &models.PipelineState{}, nil // First run: nothing processed yet
		}
		return nil, fmt.Errorf("failed to query pipeline state: %w", err)
	}
	return &st, nil
}

func (r *stateRepository) SaveState(ctx context.Context, state *models.PipelineState) error {
	_, err := r.db.Exec(ctx, saveStateQuery,
		state.HighWaterMark, state.SchemaVersion, state.LastFullRebuildAt)
	if err != nil {
		return fmt.Errorf("failed to save pipeline state: %w", err)
	}
	return nil
}

const saveStateQuery = `
	INSERT INTO pipeline_state (id, high_water_mark, schema_version, last_full_rebuild_at)
	VALUES (1, $1, $2, $3)
	ON CONFLICT (id) DO UPDATE
	SET high_water_mark = EXCLUDED.high_water_mark,
	    schema_version = EXCLUDED.schema_version,
	    last_full_rebuild_at = EXCLUDED.last_full_rebuild_at`

func (r *stateRepository) CreateRun(ctx context.Context, run *models.PipelineRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	run.Status = models.RunStatusRunning
	run.StartedAt = time.Now()

	query := `
		INSERT INTO pipeline_runs (id, mode, status, started_at)
		VALUES ($1, $2, $3, $4)`

	if _, err := r.db.Exec(ctx, query, run.ID, run.Mode, run.Status, run.StartedAt); err != nil {
		return fmt.Errorf("failed to create pipeline run: %w", err)
	}
	return nil
}

func (r *stateRepository) FinishRun(ctx context.Context, run *models.PipelineRun, state *models.PipelineState) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin finish-run transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now()
	run.FinishedAt = &now

	update := `
		UPDATE pipeline_runs
		SET status = $2, items_processed = $3, items_skipped_bad = $4,
		    items_skipped_ineligible = $5, skus_created = $6, buckets_written = $7,
		    error = $8, finished_at = $9
		WHERE id = $1`

	if _, err := tx.Exec(ctx, update, run.ID, run.Status,
		run.ItemsProcessed, run.ItemsSkippedBad, run.ItemsIneligible,
		run.SKUsCreated, run.BucketsWritten, run.Error, run.FinishedAt); err != nil {
		return fmt.Errorf("failed to finish pipeline run: %w", err)
	}

	if state != nil {
		if _, err := tx.Exec(ctx, saveStateQuery,
			state.HighWaterMark, state.SchemaVersion, state.LastFullRebuildAt); err != nil {
			return fmt.Errorf("failed to save pipeline state: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit finish-run transaction: %w", err)
	}
	return nil
}
