package stats

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	v1 "github.com/vigorlab/statistics-service/internal/api/v1"
	apperr "github.com/vigorlab/statistics-service/internal/core/errors"
	"github.com/vigorlab/statistics-service/internal/core/period"
	"github.com/vigorlab/statistics-service/internal/core/storage"
	"github.com/vigorlab/statistics-service/internal/observability"
	"github.com/vigorlab/statistics-service/internal/provider"
	"golang.org/x/sync/errgroup"
)

// Engine runs the statistics aggregation algorithm for one domain. All five
// domains share this implementation; the Descriptor supplies the per-domain
// specialization.
type Engine struct {
	desc     Descriptor
	store    storage.SnapshotStore
	provider provider.FactProvider
	nowFn    func() time.Time
}

// NewEngine wires an engine for one domain. The store and provider are
// injected capabilities; the engine holds no ambient global state.
func NewEngine(desc Descriptor, store storage.SnapshotStore, factProvider provider.FactProvider) *Engine {
	return &Engine{
		desc:     desc,
		store:    store,
		provider: factProvider,
		nowFn:    func() time.Time { return time.Now().UTC() },
	}
}

// NewEngines builds one engine per registered domain.
func NewEngines(store storage.SnapshotStore, factProvider provider.FactProvider) map[v1.Domain]*Engine {
	engines := make(map[v1.Domain]*Engine, len(Descriptors))
	for domain, desc := range Descriptors {
		engines[domain] = NewEngine(desc, store, factProvider)
	}
	return engines
}

// Generate upserts the snapshot for (entity, period, bucket-of-date).
//
// The existing-snapshot lookup and the fact collection run concurrently;
// both complete before any write starts, so the write never mixes a stale
// existence check with facts from a different instant. The call is
// idempotent with respect to identity: repeated calls for the same bucket
// return the same snapshot id with refreshed content.
func (e *Engine) Generate(ctx context.Context, entityID *int64, p period.Period, date time.Time) (*v1.Snapshot, error) {
	if e.desc.HasEntity() && entityID == nil {
		return nil, apperr.InvalidRequest("entityId is required for %s statistics", e.desc.Label)
	}

	bucket := period.Resolve(p, date)

	var (
		existing *v1.Snapshot
		facts    Facts
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		existing, err = e.store.FindInBucket(gctx, e.desc.Domain, entityID, p, bucket)
		return err
	})
	g.Go(func() error {
		var err error
		facts, err = e.collectFacts(gctx, entityID, bucket)
		return err
	})
	if err := g.Wait(); err != nil {
		observability.RecordEngineFailure(string(e.desc.Domain), "generate")
		return nil, apperr.Classify(err, "Error generating "+e.desc.Label+" statistics")
	}

	now := e.nowFn()

	if existing != nil {
		existing.Scalars = facts.Scalars
		existing.Breakdowns = facts.Breakdowns
		existing.UpdatedAt = now
		if err := e.store.Replace(ctx, existing); err != nil {
			observability.RecordEngineFailure(string(e.desc.Domain), "generate")
			return nil, apperr.Classify(err, "Error generating "+e.desc.Label+" statistics")
		}

		slog.Info("Statistics updated",
			"domain", e.desc.Domain, "id", existing.ID, "period", p, "date", date)
		observability.RecordSnapshotGenerated(string(e.desc.Domain), false)
		return existing, nil
	}

	snap := &v1.Snapshot{
		ID:         uuid.NewString(),
		Domain:     e.desc.Domain,
		EntityID:   entityID,
		Period:     p,
		Date:       date,
		Scalars:    facts.Scalars,
		Breakdowns: facts.Breakdowns,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := e.store.Create(ctx, snap); err != nil {
		observability.RecordEngineFailure(string(e.desc.Domain), "generate")
		return nil, apperr.Classify(err, "Error generating "+e.desc.Label+" statistics")
	}

	slog.Info("Statistics created",
		"domain", e.desc.Domain, "id", snap.ID, "period", p, "date", date)
	observability.RecordSnapshotGenerated(string(e.desc.Domain), true)
	return snap, nil
}

// Report computes the rollup for the bucket containing date.
//
// Entity domains return top-5 lists plus grouped totals; the user domain
// returns the single global snapshot of the bucket. NOT_FOUND when the
// bucket holds no data at all.
func (e *Engine) Report(ctx context.Context, p period.Period, date time.Time) (*v1.Report, error) {
	bucket := period.Resolve(p, date)

	if !e.desc.HasEntity() {
		return e.userReport(ctx, p, bucket)
	}

	report := &v1.Report{Totals: make(map[v1.Axis][]v1.AxisTotal, len(e.desc.GroupedAxes))}
	axisTotals := make([][]v1.AxisTotal, len(e.desc.GroupedAxes))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		popular, err := e.store.TopByMetric(gctx, e.desc.Domain, storage.MetricUsage, bucket, topItemsLimit)
		report.Popular = popular
		return err
	})
	if e.desc.HasPopularity {
		g.Go(func() error {
			top, err := e.store.TopByMetric(gctx, e.desc.Domain, storage.MetricPopularity, bucket, topItemsLimit)
			report.TopRated = top
			return err
		})
	}
	// Each goroutine writes its own slot; the shared map is filled after Wait.
	for i, axis := range e.desc.GroupedAxes {
		i, axis := i, axis
		g.Go(func() error {
			totals, err := e.store.SumByAxis(gctx, e.desc.Domain, axis, bucket)
			if err != nil {
				return err
			}
			axisTotals[i] = totals
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		observability.RecordEngineFailure(string(e.desc.Domain), "report")
		return nil, apperr.Classify(err, "Error retrieving "+e.desc.Label+" statistics")
	}
	for i, axis := range e.desc.GroupedAxes {
		report.Totals[axis] = axisTotals[i]
	}

	// Partial results are fine; only a fully empty bucket is an error.
	if len(report.Popular) == 0 && len(report.TopRated) == 0 {
		return nil, apperr.NotFound("No data found for the specified period.")
	}

	observability.RecordReportServed(string(e.desc.Domain))
	return report, nil
}

func (e *Engine) userReport(ctx context.Context, p period.Period, bucket period.Range) (*v1.Report, error) {
	snap, err := e.store.FindInBucket(ctx, e.desc.Domain, nil, p, bucket)
	if err != nil {
		observability.RecordEngineFailure(string(e.desc.Domain), "report")
		return nil, apperr.Classify(err, "Error retrieving user statistics")
	}
	if snap == nil {
		return nil, apperr.NotFound("Statistics not found for the specified period")
	}

	// Reload by id to attach the breakdown rows.
	full, err := e.store.FindByID(ctx, e.desc.Domain, snap.ID)
	if err != nil {
		observability.RecordEngineFailure(string(e.desc.Domain), "report")
		return nil, apperr.Classify(err, "Error retrieving user statistics")
	}

	observability.RecordReportServed(string(e.desc.Domain))
	return &v1.Report{Snapshot: full}, nil
}

// FindByID loads one snapshot with all breakdown rows.
func (e *Engine) FindByID(ctx context.Context, id string) (*v1.Snapshot, error) {
	snap, err := e.store.FindByID(ctx, e.desc.Domain, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound("Statistics with ID %s not found.", id)
	}
	if err != nil {
		return nil, apperr.Classify(err, "Error retrieving "+e.desc.Label+" statistics with ID "+id)
	}
	return snap, nil
}

// Delete removes a snapshot and its breakdown rows, children first, and
// returns the pre-deletion payload.
func (e *Engine) Delete(ctx context.Context, id string) (*v1.DeleteResult, error) {
	snap, err := e.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := e.store.Delete(ctx, e.desc.Domain, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.NotFound("Statistics with ID %s not found.", id)
		}
		observability.RecordEngineFailure(string(e.desc.Domain), "delete")
		return nil, apperr.Classify(err, "Error deleting "+e.desc.Label+" statistics with ID "+id)
	}

	slog.Info("Statistics deleted", "domain", e.desc.Domain, "id", id)
	return &v1.DeleteResult{
		Message:      "Statistics deleted successfully",
		DeletedStats: snap,
	}, nil
}

// List returns one page of snapshots, newest bucket first.
func (e *Engine) List(ctx context.Context, page, limit int) (*v1.SnapshotPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	snaps, total, err := e.store.List(ctx, e.desc.Domain, page, limit)
	if err != nil {
		return nil, apperr.Classify(err, "Error retrieving all "+e.desc.Label+" statistics")
	}
	if snaps == nil {
		snaps = []*v1.Snapshot{}
	}

	return &v1.SnapshotPage{
		Data: snaps,
		Meta: v1.PageMeta{
			TotalStats: total,
			Page:       page,
			LastPage:   lastPage(total, limit),
		},
	}, nil
}

func lastPage(total int64, limit int) int {
	return int((total + int64(limit) - 1) / int64(limit))
}
