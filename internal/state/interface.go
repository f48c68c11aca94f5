package state

import (
	"context"
	"io"
	"time"

	"github.com/ShayCichocki/sagent/pkg/models"
)

// RunStore handles run history persistence.
type RunStore interface {
	SaveRun(ctx context.Context, r *models.RunRecord) error
	GetRun(ctx context.Context, id string) (*models.RunRecord, error)
	ListRuns(ctx context.Context, limit int) ([]models.RunRecord, error)
	AppendSteps(ctx context.Context, runID string, steps ...models.StepRecord) error
	PurgeRuns(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Migrator handles database schema migrations.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// HistoryStore defines the interface for run history persistence.
type HistoryStore interface {
	io.Closer
	Migrator
	RunStore
}

// Compile-time verification that DB implements all interfaces.
var (
	_ HistoryStore = (*DB)(nil)
	_ Migrator     = (*DB)(nil)
	_ RunStore     = (*DB)(nil)
)
