// Package storage persists ingestion run history.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/feedsearch/internal/models"
)

// ErrRunNotFound is returned when a run ID is unknown.
var ErrRunNotFound = errors.New("run not found")

// RunStore records ingestion runs and their per-item failures.
type RunStore interface {
	// CreateRun inserts run in the running state, assigning ID and StartedAt if unset.
	CreateRun(ctx context.Context, run *models.Run) error
	// FinishRun stores the final counts and status of run.
	FinishRun(ctx context.Context, run *models.Run) error
	RecordFailure(ctx context.Context, failure *models.RunFailure) error
	// ListRuns returns the most recent runs first.
	ListRuns(ctx context.Context, limit int) ([]*models.Run, error)
	GetRun(ctx context.Context, id string) (*models.Run, error)
	ListFailures(ctx context.Context, runID string) ([]*models.RunFailure, error)
	Close() error
}
