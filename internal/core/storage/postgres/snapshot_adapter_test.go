package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	v1 "github.com/vigorlab/statistics-service/internal/api/v1"
	"github.com/vigorlab/statistics-service/internal/core/period"
	"github.com/vigorlab/statistics-service/internal/core/storage"
)

func newMockAdapter(t *testing.T) (*Adapter, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewAdapterWithDB(db), mock
}

func equipmentColumns() []string {
	return []string{"id", "equipment_id", "period", "date",
		"total_uses", "popularity_score", "created_at", "updated_at"}
}

func int64Ptr(v int64) *int64 { return &v }

func TestAdapter_Create_InsertsParentAndChildrenInOneTx(t *testing.T) {
	adapter, mock := newMockAdapter(t)
	q := domainSchemas[v1.DomainEquipment].q
	now := time.Date(2025, 2, 3, 12, 0, 0, 0, time.UTC)

	snap := &v1.Snapshot{
		ID:       "snap-1",
		Domain:   v1.DomainEquipment,
		EntityID: int64Ptr(1),
		Period:   period.Daily,
		Date:     time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC),
		Scalars: v1.Scalars{
			TotalUses:       10,
			PopularityScore: decimal.RequireFromString("4.5"),
		},
		Breakdowns: map[v1.Axis][]v1.BreakdownRow{
			v1.AxisGender: {
				{Key: v1.GenderMale, Count: 7},
				{Key: v1.GenderFemale, Count: 3},
			},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(q.insertParent)).
		WithArgs("snap-1", snap.EntityID, "DAILY", snap.Date,
			int64(10), snap.Scalars.PopularityScore, now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(q.insertChild[v1.AxisGender])).
		WithArgs("snap-1", v1.GenderMale, int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(q.insertChild[v1.AxisGender])).
		WithArgs("snap-1", v1.GenderFemale, int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, adapter.Create(context.Background(), snap))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_Replace_SwapsChildrenWholesale(t *testing.T) {
	adapter, mock := newMockAdapter(t)
	q := domainSchemas[v1.DomainEquipment].q
	now := time.Date(2025, 2, 3, 14, 0, 0, 0, time.UTC)

	snap := &v1.Snapshot{
		ID:       "snap-1",
		Domain:   v1.DomainEquipment,
		EntityID: int64Ptr(1),
		Period:   period.Daily,
		Scalars: v1.Scalars{
			TotalUses:       15,
			PopularityScore: decimal.RequireFromString("4.8"),
		},
		Breakdowns: map[v1.Axis][]v1.BreakdownRow{
			v1.AxisGender: {{Key: v1.GenderFemale, Count: 9}},
		},
		UpdatedAt: now,
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(q.updateParent)).
		WithArgs(int64(15), snap.Scalars.PopularityScore, now, "snap-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(q.deleteChildren[v1.AxisGender])).
		WithArgs("snap-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta(q.insertChild[v1.AxisGender])).
		WithArgs("snap-1", v1.GenderFemale, int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, adapter.Replace(context.Background(), snap))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_Replace_MissingSnapshotIsNotFound(t *testing.T) {
	adapter, mock := newMockAdapter(t)
	q := domainSchemas[v1.DomainEquipment].q

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(q.updateParent)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := adapter.Replace(context.Background(), &v1.Snapshot{
		ID:     "ghost",
		Domain: v1.DomainEquipment,
	})
	require.ErrorIs(t, err, storage.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_Delete_RemovesChildrenBeforeParent(t *testing.T) {
	adapter, mock := newMockAdapter(t)
	s := domainSchemas[v1.DomainExercise]

	mock.ExpectBegin()
	for _, axis := range s.axisOrder {
		mock.ExpectExec(regexp.QuoteMeta(s.q.deleteChildren[axis])).
			WithArgs("snap-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectExec(regexp.QuoteMeta(s.q.deleteParent)).
		WithArgs("snap-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, adapter.Delete(context.Background(), v1.DomainExercise, "snap-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_Delete_MissingSnapshotIsNotFound(t *testing.T) {
	adapter, mock := newMockAdapter(t)
	s := domainSchemas[v1.DomainEquipment]

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(s.q.deleteChildren[v1.AxisGender])).
		WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(s.q.deleteParent)).
		WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := adapter.Delete(context.Background(), v1.DomainEquipment, "ghost")
	require.ErrorIs(t, err, storage.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_FindInBucket(t *testing.T) {
	q := domainSchemas[v1.DomainEquipment].q
	now := time.Date(2025, 2, 3, 12, 0, 0, 0, time.UTC)
	r := period.Range{
		Start: time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 2, 3, 23, 59, 59, 999000000, time.UTC),
	}

	t.Run("hit", func(t *testing.T) {
		adapter, mock := newMockAdapter(t)
		mock.ExpectQuery(regexp.QuoteMeta(q.selectInBucket)).
			WithArgs("DAILY", r.Start, r.End, int64(1)).
			WillReturnRows(sqlmock.NewRows(equipmentColumns()).
				AddRow("snap-1", int64(1), "DAILY", r.Start, int64(10), "4.5", now, now))

		snap, err := adapter.FindInBucket(context.Background(),
			v1.DomainEquipment, int64Ptr(1), period.Daily, r)
		require.NoError(t, err)
		require.Equal(t, "snap-1", snap.ID)
		require.Equal(t, int64(1), *snap.EntityID)
		require.Equal(t, int64(10), snap.Scalars.TotalUses)
		require.True(t, snap.Scalars.PopularityScore.Equal(decimal.RequireFromString("4.5")))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("miss returns nil without error", func(t *testing.T) {
		adapter, mock := newMockAdapter(t)
		mock.ExpectQuery(regexp.QuoteMeta(q.selectInBucket)).
			WithArgs("DAILY", r.Start, r.End, int64(1)).
			WillReturnRows(sqlmock.NewRows(equipmentColumns()))

		snap, err := adapter.FindInBucket(context.Background(),
			v1.DomainEquipment, int64Ptr(1), period.Daily, r)
		require.NoError(t, err)
		require.Nil(t, snap)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("entity domain requires entity id", func(t *testing.T) {
		adapter, _ := newMockAdapter(t)
		_, err := adapter.FindInBucket(context.Background(),
			v1.DomainEquipment, nil, period.Daily, r)
		require.Error(t, err)
	})
}

func TestAdapter_FindByID(t *testing.T) {
	s := domainSchemas[v1.DomainEquipment]
	now := time.Date(2025, 2, 3, 12, 0, 0, 0, time.UTC)

	t.Run("loads breakdown rows", func(t *testing.T) {
		adapter, mock := newMockAdapter(t)
		mock.ExpectQuery(regexp.QuoteMeta(s.q.selectByID)).
			WithArgs("snap-1").
			WillReturnRows(sqlmock.NewRows(equipmentColumns()).
				AddRow("snap-1", int64(1), "DAILY", now, int64(10), "4.5", now, now))
		mock.ExpectQuery(regexp.QuoteMeta(s.q.selectChildren[v1.AxisGender])).
			WithArgs("snap-1").
			WillReturnRows(sqlmock.NewRows([]string{"gender", "use_count"}).
				AddRow(v1.GenderFemale, int64(3)).
				AddRow(v1.GenderMale, int64(7)))

		snap, err := adapter.FindByID(context.Background(), v1.DomainEquipment, "snap-1")
		require.NoError(t, err)
		require.Equal(t, []v1.BreakdownRow{
			{Key: v1.GenderFemale, Count: 3},
			{Key: v1.GenderMale, Count: 7},
		}, snap.Breakdowns[v1.AxisGender])
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing id maps to ErrNotFound", func(t *testing.T) {
		adapter, mock := newMockAdapter(t)
		mock.ExpectQuery(regexp.QuoteMeta(s.q.selectByID)).
			WithArgs("ghost").
			WillReturnRows(sqlmock.NewRows(equipmentColumns()))

		_, err := adapter.FindByID(context.Background(), v1.DomainEquipment, "ghost")
		require.ErrorIs(t, err, storage.ErrNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAdapter_List_PagesAndCounts(t *testing.T) {
	adapter, mock := newMockAdapter(t)
	s := domainSchemas[v1.DomainEquipment]
	now := time.Date(2025, 2, 3, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(s.q.countAll)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(15)))
	mock.ExpectQuery(regexp.QuoteMeta(s.q.listPage)).
		WithArgs(10, 10).
		WillReturnRows(sqlmock.NewRows(equipmentColumns()).
			AddRow("snap-15", int64(3), "DAILY", now, int64(2), "1.0", now, now))
	mock.ExpectQuery(regexp.QuoteMeta(s.q.selectChildren[v1.AxisGender])).
		WithArgs("snap-15").
		WillReturnRows(sqlmock.NewRows([]string{"gender", "use_count"}))

	snaps, total, err := adapter.List(context.Background(), v1.DomainEquipment, 2, 10)
	require.NoError(t, err)
	require.Equal(t, int64(15), total)
	require.Len(t, snaps, 1)
	require.Empty(t, snaps[0].Breakdowns[v1.AxisGender])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLastPage(t *testing.T) {
	require.Equal(t, 2, LastPage(15, 10))
	require.Equal(t, 1, LastPage(10, 10))
	require.Equal(t, 0, LastPage(0, 10))
	require.Equal(t, 0, LastPage(5, 0))
}

func TestAdapter_TopByMetric(t *testing.T) {
	s := domainSchemas[v1.DomainEquipment]
	now := time.Date(2025, 2, 3, 12, 0, 0, 0, time.UTC)
	r := period.Range{
		Start: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 2, 28, 23, 59, 59, 999000000, time.UTC),
	}

	t.Run("preserves ranking order and loads gender rows", func(t *testing.T) {
		adapter, mock := newMockAdapter(t)
		mock.ExpectQuery(regexp.QuoteMeta(s.q.topByMetric[storage.MetricUsage])).
			WithArgs(r.Start, r.End, 5).
			WillReturnRows(sqlmock.NewRows(equipmentColumns()).
				AddRow("snap-a", int64(1), "MONTHLY", now, int64(30), "4.9", now, now).
				AddRow("snap-b", int64(2), "MONTHLY", now, int64(20), "4.1", now, now))
		for _, id := range []string{"snap-a", "snap-b"} {
			mock.ExpectQuery(regexp.QuoteMeta(s.q.selectChildren[v1.AxisGender])).
				WithArgs(id).
				WillReturnRows(sqlmock.NewRows([]string{"gender", "use_count"}).
					AddRow(v1.GenderMale, int64(5)))
		}

		snaps, err := adapter.TopByMetric(context.Background(),
			v1.DomainEquipment, storage.MetricUsage, r, 5)
		require.NoError(t, err)
		require.Len(t, snaps, 2)
		require.Equal(t, "snap-a", snaps[0].ID)
		require.Equal(t, "snap-b", snaps[1].ID)
		require.Len(t, snaps[0].Breakdowns[v1.AxisGender], 1)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown metric for domain", func(t *testing.T) {
		adapter, _ := newMockAdapter(t)
		_, err := adapter.TopByMetric(context.Background(),
			v1.DomainTrainingPlan, storage.MetricPopularity, r, 5)
		require.Error(t, err)
	})
}

func TestAdapter_SumByAxis(t *testing.T) {
	adapter, mock := newMockAdapter(t)
	s := domainSchemas[v1.DomainExercise]
	r := period.Range{
		Start: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 2, 28, 23, 59, 59, 999000000, time.UTC),
	}

	mock.ExpectQuery(regexp.QuoteMeta(s.q.sumChildren[v1.AxisCategory])).
		WithArgs(r.Start, r.End).
		WillReturnRows(sqlmock.NewRows([]string{"category", "sum"}).
			AddRow(v1.CategoryCardio, int64(40)).
			AddRow(v1.CategoryStrength, int64(25)))

	totals, err := adapter.SumByAxis(context.Background(), v1.DomainExercise, v1.AxisCategory, r)
	require.NoError(t, err)
	require.Equal(t, []v1.AxisTotal{
		{Key: v1.CategoryCardio, Total: 40},
		{Key: v1.CategoryStrength, Total: 25},
	}, totals)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_SumByAxis_UnknownAxis(t *testing.T) {
	adapter, _ := newMockAdapter(t)
	_, err := adapter.SumByAxis(context.Background(),
		v1.DomainEquipment, v1.AxisGoal, period.Range{})
	require.Error(t, err)
}
