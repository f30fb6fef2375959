package stats

import (
	"context"
	"fmt"

	v1 "github.com/vigorlab/statistics-service/internal/api/v1"
	"github.com/vigorlab/statistics-service/internal/core/period"
	"github.com/vigorlab/statistics-service/internal/provider"
	"golang.org/x/sync/errgroup"
)

// Facts is the normalized output of one fact-collection pass: the scalar
// aggregates plus one row list per breakdown axis. Axes with no data carry
// an empty list, which is valid and means "no data".
type Facts struct {
	Scalars    v1.Scalars
	Breakdowns map[v1.Axis][]v1.BreakdownRow
}

// collectFacts gathers fresh facts for the upsert. Entity domains issue the
// entity lookup and the gender breakdown concurrently; the user domain fans
// out its global calls. Any single provider failure fails the collection as
// a whole; there are no retries at this layer.
func (e *Engine) collectFacts(ctx context.Context, entityID *int64, r period.Range) (Facts, error) {
	if !e.desc.HasEntity() {
		return e.collectUserFacts(ctx, r)
	}
	if entityID == nil {
		return Facts{}, fmt.Errorf("%s statistics require an entity id", e.desc.Label)
	}
	return e.collectEntityFacts(ctx, *entityID)
}

func (e *Engine) collectEntityFacts(ctx context.Context, entityID int64) (Facts, error) {
	var (
		entity provider.EntityFacts
		gender []provider.GenderCount
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		entity, err = e.provider.FindEntityByID(gctx, e.desc.Target, entityID)
		return err
	})
	g.Go(func() error {
		var err error
		gender, err = e.provider.GenderStatsByTarget(gctx, entityID, e.desc.Target)
		return err
	})
	if err := g.Wait(); err != nil {
		return Facts{}, err
	}

	facts := Facts{
		Scalars: v1.Scalars{
			TotalUses: entity.TotalRatings,
		},
		Breakdowns: emptyBreakdowns(e.desc.Axes),
	}
	if e.desc.HasPopularity {
		facts.Scalars.PopularityScore = entity.Score
	}

	facts.Breakdowns[v1.AxisGender] = genderRows(gender)

	// Category and difficulty mirror the entity's own classification,
	// weighted by its usage total.
	if hasAxis(e.desc.Axes, v1.AxisCategory) && entity.Category != "" {
		facts.Breakdowns[v1.AxisCategory] = []v1.BreakdownRow{
			{Key: entity.Category, Count: entity.TotalRatings},
		}
	}
	if hasAxis(e.desc.Axes, v1.AxisDifficulty) && entity.Level != "" {
		facts.Breakdowns[v1.AxisDifficulty] = []v1.BreakdownRow{
			{Key: entity.Level, Count: entity.TotalRatings},
		}
	}

	return facts, nil
}

func (e *Engine) collectUserFacts(ctx context.Context, r period.Range) (Facts, error) {
	var (
		totalUsers int64
		newUsers   int64
		activity   provider.UserActivity
		gender     []provider.GenderCount
		goals      []provider.GoalCount
		ages       []provider.AgeRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		totalUsers, err = e.provider.TotalUsers(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		newUsers, err = e.provider.NewUsers(gctx, r.Start, r.End)
		return err
	})
	g.Go(func() error {
		var err error
		activity, err = e.provider.UserActivity(gctx, r.Start, r.End)
		return err
	})
	g.Go(func() error {
		var err error
		gender, err = e.provider.GenderStats(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		goals, err = e.provider.GoalStats(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		ages, err = e.provider.ActiveUsersWithAge(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Facts{}, err
	}

	facts := Facts{
		Scalars: v1.Scalars{
			TotalUsers:    totalUsers,
			NewUsers:      newUsers,
			ActiveUsers:   activity.ActiveUsers,
			InactiveUsers: activity.InactiveUsers,
		},
		Breakdowns: emptyBreakdowns(e.desc.Axes),
	}
	facts.Breakdowns[v1.AxisGender] = genderRows(gender)
	facts.Breakdowns[v1.AxisAgeRange] = BucketAges(ages)

	goalRows := make([]v1.BreakdownRow, 0, len(goals))
	for _, gc := range goals {
		goalRows = append(goalRows, v1.BreakdownRow{Key: gc.Goal, Count: gc.Count})
	}
	facts.Breakdowns[v1.AxisGoal] = goalRows

	return facts, nil
}

func genderRows(counts []provider.GenderCount) []v1.BreakdownRow {
	rows := make([]v1.BreakdownRow, 0, len(counts))
	for _, gc := range counts {
		rows = append(rows, v1.BreakdownRow{Key: gc.Gender, Count: gc.Count})
	}
	return rows
}

func emptyBreakdowns(axes []v1.Axis) map[v1.Axis][]v1.BreakdownRow {
	out := make(map[v1.Axis][]v1.BreakdownRow, len(axes))
	for _, axis := range axes {
		out[axis] = []v1.BreakdownRow{}
	}
	return out
}

func hasAxis(axes []v1.Axis, axis v1.Axis) bool {
	for _, a := range axes {
		if a == axis {
			return true
		}
	}
	return false
}
