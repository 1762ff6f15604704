package models

import (
	"time"

	"github.com/google/uuid"
)

// RunMode selects how much of the item backlog a rebuild pass covers.
type RunMode string

const (
	RunModeFull        RunMode = "full"
	RunModeIncremental RunMode = "incremental"
)

// PipelineState is the singleton resume state read at the start of every run
// and updated only on successful completion.
type PipelineState struct {
	// HighWaterMark is the latest item updated_at covered by a successful
	// run. Incremental runs process items updated after it.
	HighWaterMark time.Time `json:"high_water_mark"`
	// SchemaVersion is the registry version the stored fingerprints were
	// computed under. A differing live version forces a full rebuild.
	SchemaVersion string `json:"schema_version"`
	// LastFullRebuildAt is when the catalog was last rebuilt from scratch.
	LastFullRebuildAt time.Time `json:"last_full_rebuild_at"`
}

// RunStatus is the lifecycle state of one pipeline run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// PipelineRun records one rebuild pass and its outcome counters.
type PipelineRun struct {
	ID              uuid.UUID  `json:"id"`
	Mode            RunMode    `json:"mode"`
	Status          RunStatus  `json:"status"`
	ItemsProcessed  int64      `json:"items_processed"`
	ItemsSkippedBad int64      `json:"items_skipped_bad"`        // data-integrity skips
	ItemsIneligible int64      `json:"items_skipped_ineligible"` // required attribute missing
	SKUsCreated     int64      `json:"skus_created"`
	BucketsWritten  int64      `json:"buckets_written"`
	Error           string     `json:"error,omitempty"`
	StartedAt       time.Time  `json:"started_at"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
}
