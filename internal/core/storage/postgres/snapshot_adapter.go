package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"

	v1 "github.com/vigorlab/statistics-service/internal/api/v1"
	"github.com/vigorlab/statistics-service/internal/core/period"
	"github.com/vigorlab/statistics-service/internal/core/storage"
)

type scanner interface {
	Scan(dest ...interface{}) error
}

// scanSnapshot scans one parent row into a Snapshot. Compatible with both
// sql.Row and sql.Rows. Breakdown maps start empty; children are loaded
// separately.
func (s domainSchema) scanSnapshot(row scanner) (*v1.Snapshot, error) {
	snap := &v1.Snapshot{
		Domain:     s.domain,
		Breakdowns: make(map[v1.Axis][]v1.BreakdownRow, len(s.axes)),
	}

	dests := []interface{}{&snap.ID}
	var entityID sql.NullInt64
	if s.entityColumn != "" {
		dests = append(dests, &entityID)
	}
	dests = append(dests, &snap.Period, &snap.Date)
	for _, col := range s.scalarColumns {
		dests = append(dests, scalarDest(col, &snap.Scalars))
	}
	dests = append(dests, &snap.CreatedAt, &snap.UpdatedAt)

	if err := row.Scan(dests...); err != nil {
		return nil, err
	}

	if entityID.Valid {
		id := entityID.Int64
		snap.EntityID = &id
	}
	return snap, nil
}

// parentValues builds the insert argument list in parentColumns order.
func (s domainSchema) parentValues(snap *v1.Snapshot) []interface{} {
	args := []interface{}{snap.ID}
	if s.entityColumn != "" {
		args = append(args, snap.EntityID)
	}
	args = append(args, string(snap.Period), snap.Date)
	for _, col := range s.scalarColumns {
		args = append(args, scalarValue(col, snap.Scalars))
	}
	return append(args, snap.CreatedAt, snap.UpdatedAt)
}

// FindInBucket returns the snapshot inside the resolved bucket, or nil.
func (a *Adapter) FindInBucket(
	ctx context.Context,
	domain v1.Domain,
	entityID *int64,
	p period.Period,
	r period.Range,
) (*v1.Snapshot, error) {
	s, err := schemaFor(domain)
	if err != nil {
		return nil, err
	}

	args := []interface{}{string(p), r.Start, r.End}
	if s.entityColumn != "" {
		if entityID == nil {
			return nil, fmt.Errorf("domain %s requires an entity id", domain)
		}
		args = append(args, *entityID)
	}

	snap, err := s.scanSnapshot(a.db.QueryRowContext(ctx, s.q.selectInBucket, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find %s snapshot in bucket: %w", domain, err)
	}
	return snap, nil
}

// Create inserts the parent row and all breakdown rows in one transaction.
func (a *Adapter) Create(ctx context.Context, snap *v1.Snapshot) error {
	s, err := schemaFor(snap.Domain)
	if err != nil {
		return err
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.q.insertParent, s.parentValues(snap)...); err != nil {
		return fmt.Errorf("insert %s snapshot: %w", snap.Domain, err)
	}

	if err := s.insertChildren(ctx, tx, snap); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create tx: %w", err)
	}

	slog.Info("[SnapshotStore] Snapshot created",
		"domain", snap.Domain, "id", snap.ID, "period", snap.Period)
	return nil
}

// Replace updates the scalars and swaps every breakdown collection
// (delete-all-then-recreate) as one logical update.
func (a *Adapter) Replace(ctx context.Context, snap *v1.Snapshot) error {
	s, err := schemaFor(snap.Domain)
	if err != nil {
		return err
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace tx: %w", err)
	}
	defer tx.Rollback()

	args := make([]interface{}, 0, len(s.scalarColumns)+2)
	for _, col := range s.scalarColumns {
		args = append(args, scalarValue(col, snap.Scalars))
	}
	args = append(args, snap.UpdatedAt, snap.ID)

	res, err := tx.ExecContext(ctx, s.q.updateParent, args...)
	if err != nil {
		return fmt.Errorf("update %s snapshot: %w", snap.Domain, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return storage.ErrNotFound
	}

	for _, axis := range s.axisOrder {
		if _, err := tx.ExecContext(ctx, s.q.deleteChildren[axis], snap.ID); err != nil {
			return fmt.Errorf("delete %s %s rows: %w", snap.Domain, axis, err)
		}
	}
	if err := s.insertChildren(ctx, tx, snap); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace tx: %w", err)
	}

	slog.Info("[SnapshotStore] Snapshot replaced",
		"domain", snap.Domain, "id", snap.ID, "period", snap.Period)
	return nil
}

func (s domainSchema) insertChildren(ctx context.Context, tx *sql.Tx, snap *v1.Snapshot) error {
	for _, axis := range s.axisOrder {
		for _, row := range snap.Breakdowns[axis] {
			if _, err := tx.ExecContext(ctx, s.q.insertChild[axis], snap.ID, row.Key, row.Count); err != nil {
				return fmt.Errorf("insert %s %s row: %w", snap.Domain, axis, err)
			}
		}
	}
	return nil
}

// FindByID loads a snapshot with all breakdown rows.
func (a *Adapter) FindByID(ctx context.Context, domain v1.Domain, id string) (*v1.Snapshot, error) {
	s, err := schemaFor(domain)
	if err != nil {
		return nil, err
	}

	snap, err := s.scanSnapshot(a.db.QueryRowContext(ctx, s.q.selectByID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find %s snapshot %s: %w", domain, id, err)
	}

	if err := a.loadChildren(ctx, s, snap, s.axisOrder); err != nil {
		return nil, err
	}
	return snap, nil
}

// Delete removes breakdown rows first, then the parent. The cascade is
// explicit rather than relying on the FK constraint.
func (a *Adapter) Delete(ctx context.Context, domain v1.Domain, id string) error {
	s, err := schemaFor(domain)
	if err != nil {
		return err
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete tx: %w", err)
	}
	defer tx.Rollback()

	for _, axis := range s.axisOrder {
		if _, err := tx.ExecContext(ctx, s.q.deleteChildren[axis], id); err != nil {
			return fmt.Errorf("delete %s %s rows: %w", domain, axis, err)
		}
	}

	res, err := tx.ExecContext(ctx, s.q.deleteParent, id)
	if err != nil {
		return fmt.Errorf("delete %s snapshot %s: %w", domain, id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return storage.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete tx: %w", err)
	}

	slog.Info("[SnapshotStore] Snapshot deleted", "domain", domain, "id", id)
	return nil
}

// List returns one page ordered by date descending plus the total count.
func (a *Adapter) List(ctx context.Context, domain v1.Domain, page, limit int) ([]*v1.Snapshot, int64, error) {
	s, err := schemaFor(domain)
	if err != nil {
		return nil, 0, err
	}

	var total int64
	if err := a.db.QueryRowContext(ctx, s.q.countAll).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count %s snapshots: %w", domain, err)
	}

	offset := (page - 1) * limit
	snaps, err := a.querySnapshots(ctx, s, s.q.listPage, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	for _, snap := range snaps {
		if err := a.loadChildren(ctx, s, snap, s.axisOrder); err != nil {
			return nil, 0, err
		}
	}
	return snaps, total, nil
}

// LastPage computes the ceil(total/limit) pagination metadata value.
func LastPage(total int64, limit int) int {
	if limit <= 0 {
		return 0
	}
	return int(math.Ceil(float64(total) / float64(limit)))
}

// TopByMetric returns the top snapshots by the metric, ties broken by id.
// Only gender breakdowns are attached, matching the report payload shape.
func (a *Adapter) TopByMetric(
	ctx context.Context,
	domain v1.Domain,
	metric storage.Metric,
	r period.Range,
	limit int,
) ([]*v1.Snapshot, error) {
	s, err := schemaFor(domain)
	if err != nil {
		return nil, err
	}

	query, ok := s.q.topByMetric[metric]
	if !ok {
		return nil, fmt.Errorf("domain %s has no %s metric", domain, metric)
	}

	snaps, err := a.querySnapshots(ctx, s, query, r.Start, r.End, limit)
	if err != nil {
		return nil, err
	}

	if _, hasGender := s.axes[v1.AxisGender]; hasGender {
		for _, snap := range snaps {
			if err := a.loadChildren(ctx, s, snap, []v1.Axis{v1.AxisGender}); err != nil {
				return nil, err
			}
		}
	}
	return snaps, nil
}

// SumByAxis sums one breakdown axis across the range, grouped by key.
func (a *Adapter) SumByAxis(ctx context.Context, domain v1.Domain, axis v1.Axis, r period.Range) ([]v1.AxisTotal, error) {
	s, err := schemaFor(domain)
	if err != nil {
		return nil, err
	}

	query, ok := s.q.sumChildren[axis]
	if !ok {
		return nil, fmt.Errorf("domain %s has no %s axis", domain, axis)
	}

	rows, err := a.db.QueryContext(ctx, query, r.Start, r.End)
	if err != nil {
		return nil, fmt.Errorf("sum %s %s: %w", domain, axis, err)
	}
	defer rows.Close()

	var totals []v1.AxisTotal
	for rows.Next() {
		var t v1.AxisTotal
		if err := rows.Scan(&t.Key, &t.Total); err != nil {
			return nil, fmt.Errorf("scan %s total: %w", axis, err)
		}
		totals = append(totals, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s totals: %w", axis, err)
	}
	return totals, nil
}

func (a *Adapter) querySnapshots(ctx context.Context, s domainSchema, query string, args ...interface{}) ([]*v1.Snapshot, error) {
	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s snapshots: %w", s.domain, err)
	}
	defer rows.Close()

	var snaps []*v1.Snapshot
	for rows.Next() {
		snap, err := s.scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s snapshot: %w", s.domain, err)
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s snapshots: %w", s.domain, err)
	}
	return snaps, nil
}

func (a *Adapter) loadChildren(ctx context.Context, s domainSchema, snap *v1.Snapshot, axes []v1.Axis) error {
	for _, axis := range axes {
		rows, err := a.db.QueryContext(ctx, s.q.selectChildren[axis], snap.ID)
		if err != nil {
			return fmt.Errorf("load %s %s rows: %w", s.domain, axis, err)
		}

		breakdown := []v1.BreakdownRow{}
		for rows.Next() {
			var row v1.BreakdownRow
			if err := rows.Scan(&row.Key, &row.Count); err != nil {
				rows.Close()
				return fmt.Errorf("scan %s %s row: %w", s.domain, axis, err)
			}
			breakdown = append(breakdown, row)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return fmt.Errorf("iterate %s %s rows: %w", s.domain, axis, err)
		}
		rows.Close()

		snap.Breakdowns[axis] = breakdown
	}
	return nil
}
