package storage

import (
	"context"
	"errors"

	v1 "github.com/vigorlab/statistics-service/internal/api/v1"
	"github.com/vigorlab/statistics-service/internal/core/period"
)

// ErrNotFound is returned when no snapshot exists for the requested id.
var ErrNotFound = errors.New("snapshot not found")

// Metric selects the ranking column for top-N queries.
type Metric string

const (
	// MetricUsage ranks by the domain's primary usage counter
	// (total_uses, or total_completions for training plans).
	MetricUsage Metric = "usage"

	// MetricPopularity ranks by popularity_score.
	MetricPopularity Metric = "popularity"
)

// SnapshotStore persists statistics snapshots and their breakdown rows.
// One implementation serves all five domains; the domain field of each call
// selects the backing tables.
type SnapshotStore interface {
	// FindInBucket returns the snapshot whose anchor date falls inside r
	// for (domain, entityID, period), or (nil, nil) when none exists.
	// entityID is nil for the user domain.
	FindInBucket(ctx context.Context, domain v1.Domain, entityID *int64, p period.Period, r period.Range) (*v1.Snapshot, error)

	// Create inserts a new snapshot together with its breakdown rows in a
	// single transaction. The caller assigns the id.
	Create(ctx context.Context, snap *v1.Snapshot) error

	// Replace updates the snapshot's scalars and swaps all breakdown rows
	// (delete-all-then-recreate) in a single transaction, keyed by snap.ID.
	Replace(ctx context.Context, snap *v1.Snapshot) error

	// FindByID loads one snapshot with all its breakdown rows.
	// Returns ErrNotFound when absent.
	FindByID(ctx context.Context, domain v1.Domain, id string) (*v1.Snapshot, error)

	// Delete removes the snapshot's breakdown rows, then the snapshot row,
	// in one transaction. Returns ErrNotFound when absent.
	Delete(ctx context.Context, domain v1.Domain, id string) error

	// List returns one page of snapshots ordered by date descending,
	// breakdown rows included, plus the total row count.
	List(ctx context.Context, domain v1.Domain, page, limit int) ([]*v1.Snapshot, int64, error)

	// TopByMetric returns up to limit snapshots inside r ordered by the
	// metric descending, ties broken by id ascending. Gender breakdowns
	// are included, other axes are not loaded.
	TopByMetric(ctx context.Context, domain v1.Domain, metric Metric, r period.Range, limit int) ([]*v1.Snapshot, error)

	// SumByAxis sums one breakdown axis across all snapshots inside r,
	// grouped by dimension value, ordered by total descending.
	SumByAxis(ctx context.Context, domain v1.Domain, axis v1.Axis, r period.Range) ([]v1.AxisTotal, error)
}
