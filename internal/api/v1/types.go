package v1

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vigorlab/statistics-service/internal/core/period"
)

// Domain identifies one statistics family. Each domain owns its snapshot
// table and breakdown tables but shares the same aggregation algorithm.
type Domain string

const (
	DomainUser         Domain = "user"
	DomainExercise     Domain = "exercise"
	DomainWorkout      Domain = "workout"
	DomainTrainingPlan Domain = "training_plan"
	DomainEquipment    Domain = "equipment"
)

// TargetType is the entity kind passed to the fact provider when requesting
// a gender breakdown for a specific target.
type TargetType string

const (
	TargetExercise     TargetType = "EXERCISE"
	TargetWorkout      TargetType = "WORKOUT"
	TargetTrainingPlan TargetType = "TRAINING"
	TargetEquipment    TargetType = "EQUIPMENT"
)

// Dimension enums. Breakdown rows store these as plain strings so one row
// shape serves every axis; the constants document the vocabulary.
const (
	GenderMale   = "MALE"
	GenderFemale = "FEMALE"
	GenderOther  = "OTHER"

	CategoryCardio      = "CARDIO"
	CategoryStrength    = "STRENGTH"
	CategoryFlexibility = "FLEXIBILITY"

	DifficultyBasic        = "BASIC"
	DifficultyIntermediate = "INTERMEDIATE"
	DifficultyAdvanced     = "ADVANCED"

	CompletionCompleted  = "COMPLETED"
	CompletionAbandoned  = "ABANDONED"
	CompletionInProgress = "IN_PROGRESS"

	AgeUnder18 = "UNDER_18"
	Age18To24  = "AGE_18_24"
	Age25To34  = "AGE_25_34"
	Age35To44  = "AGE_35_44"
	Age45To54  = "AGE_45_54"
	Age55Plus  = "AGE_55_PLUS"

	GoalLoseWeight       = "LOSE_WEIGHT"
	GoalGainMuscle       = "GAIN_MUSCLE"
	GoalImproveEndurance = "IMPROVE_ENDURANCE"
	GoalMaintain         = "MAINTAIN"
)

// Axis names one breakdown dimension of a snapshot.
type Axis string

const (
	AxisGender     Axis = "gender"
	AxisCategory   Axis = "category"
	AxisDifficulty Axis = "difficulty"
	AxisCompletion Axis = "completion"
	AxisAgeRange   Axis = "age_range"
	AxisGoal       Axis = "goal"
)

// BreakdownRow is one (dimension value, count) pair of a breakdown axis.
// Rows are owned exclusively by their snapshot and replaced wholesale on
// every regeneration.
type BreakdownRow struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// Scalars holds the aggregate counters of a snapshot. Each domain uses a
// subset; the unused fields stay zero.
type Scalars struct {
	// Entity domains. TotalUses doubles as totalCompletions for the
	// training plan domain.
	TotalUses       int64           `json:"totalUses"`
	PopularityScore decimal.Decimal `json:"popularityScore"`

	// User domain (global, no entity id).
	TotalUsers    int64 `json:"totalUsers,omitempty"`
	NewUsers      int64 `json:"newUsers,omitempty"`
	ActiveUsers   int64 `json:"activeUsers,omitempty"`
	InactiveUsers int64 `json:"inactiveUsers,omitempty"`
}

// Snapshot is a persisted statistics record for one entity (or global, for
// the user domain) within one calendar bucket. At most one snapshot exists
// per (domain, entityId, period, bucket).
type Snapshot struct {
	ID       string        `json:"id"`
	Domain   Domain        `json:"domain"`
	EntityID *int64        `json:"entityId,omitempty"`
	Period   period.Period `json:"period"`

	// Date is the anchor date of the bucket, not the resolved range. The
	// range is always derived via period.Resolve and never stored.
	Date time.Time `json:"date"`

	Scalars    Scalars                 `json:"scalars"`
	Breakdowns map[Axis][]BreakdownRow `json:"breakdowns"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AxisTotal is one bucket of a dimension-grouped rollup.
type AxisTotal struct {
	Key   string `json:"key"`
	Total int64  `json:"total"`
}

// Report is the rollup result for one (domain, period, bucket).
// Entity domains fill Popular/TopRated/Totals; the user domain returns the
// bucket's snapshot instead.
type Report struct {
	Popular  []*Snapshot          `json:"popular,omitempty"`
	TopRated []*Snapshot          `json:"topRated,omitempty"`
	Totals   map[Axis][]AxisTotal `json:"totals,omitempty"`
	Snapshot *Snapshot            `json:"snapshot,omitempty"`
}

// PageMeta describes an offset-paginated listing.
type PageMeta struct {
	TotalStats int64 `json:"totalStats"`
	Page       int   `json:"page"`
	LastPage   int   `json:"lastPage"`
}

// SnapshotPage is one page of snapshots, newest bucket first.
type SnapshotPage struct {
	Data []*Snapshot `json:"data"`
	Meta PageMeta    `json:"meta"`
}

// DeleteResult confirms a cascade deletion and echoes the removed snapshot.
type DeleteResult struct {
	Message      string    `json:"message"`
	DeletedStats *Snapshot `json:"deletedStats"`
}

// GenerateRequest is the inbound payload triggering a snapshot upsert.
type GenerateRequest struct {
	EntityID *int64 `json:"entityId"`
	Period   string `json:"period" binding:"required"`
	Date     string `json:"date" binding:"required"` // ISO date, e.g. "2025-02-03"
}

// Resolve parses the request's period and anchor date.
func (r GenerateRequest) Resolve() (period.Period, time.Time, error) {
	p, err := period.Parse(r.Period)
	if err != nil {
		return "", time.Time{}, err
	}
	date, err := ParseDate(r.Date)
	if err != nil {
		return "", time.Time{}, err
	}
	return p, date, nil
}

// ParseDate accepts an ISO calendar date or a full RFC 3339 timestamp.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (expected YYYY-MM-DD or RFC 3339)", s)
	}
	return t.UTC(), nil
}
