package provider

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	v1 "github.com/vigorlab/statistics-service/internal/api/v1"
)

// EntityFacts are the live aggregate facts the provider holds for one
// entity. Level and Category are empty for entity kinds that do not carry
// them (e.g. equipment).
type EntityFacts struct {
	TotalRatings int64           `json:"totalRatings"`
	Score        decimal.Decimal `json:"score"`
	Level        string          `json:"level,omitempty"`
	Category     string          `json:"category,omitempty"`
}

// GenderCount is one gender bucket of a provider-side breakdown.
type GenderCount struct {
	Gender string `json:"gender"`
	Count  int64  `json:"count"`
}

// GoalCount is one training-goal bucket of the global user breakdown.
type GoalCount struct {
	Goal  string `json:"goal"`
	Count int64  `json:"count"`
}

// UserActivity splits the user base into active and inactive within a window.
type UserActivity struct {
	ActiveUsers   int64 `json:"activeUsers"`
	InactiveUsers int64 `json:"inactiveUsers"`
}

// AgeRecord is one active user's age; age-range bucketing happens locally.
type AgeRecord struct {
	Age int `json:"age"`
}

// FactProvider is the external collaborator supplying live entity facts and
// breakdowns. Every call is a single request/response round trip; no
// retries happen at this layer; a failed call fails the whole aggregation.
type FactProvider interface {
	// FindEntityByID fetches current aggregate facts for one entity.
	FindEntityByID(ctx context.Context, target v1.TargetType, id int64) (EntityFacts, error)

	// GenderStatsByTarget fetches the gender-count breakdown for one entity.
	GenderStatsByTarget(ctx context.Context, targetID int64, target v1.TargetType) ([]GenderCount, error)

	// Global user-domain facts.
	TotalUsers(ctx context.Context) (int64, error)
	NewUsers(ctx context.Context, start, end time.Time) (int64, error)
	UserActivity(ctx context.Context, start, end time.Time) (UserActivity, error)
	GenderStats(ctx context.Context) ([]GenderCount, error)
	GoalStats(ctx context.Context) ([]GoalCount, error)
	ActiveUsersWithAge(ctx context.Context) ([]AgeRecord, error)
}
