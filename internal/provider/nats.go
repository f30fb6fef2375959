package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	v1 "github.com/vigorlab/statistics-service/internal/api/v1"
	apperr "github.com/vigorlab/statistics-service/internal/core/errors"
)

// Request/reply subjects understood by the fitness core services.
const (
	subjectFindExercise     = "find.exercise.by.id"
	subjectFindWorkout      = "find.workout.by.id"
	subjectFindTrainingPlan = "find.training.plan.by.id"
	subjectFindEquipment    = "find.equipment.by.id"

	subjectGenderByTarget = "calculate.gender.stats.by.target"

	subjectTotalUsers   = "calculate.total.users"
	subjectNewUsers     = "calculate.new.users"
	subjectUserActivity = "calculate.user.activity"
	subjectGenderStats  = "calculate.gender.stats"
	subjectGoalStats    = "calculate.goal.stats"
	subjectUsersWithAge = "get.active.users.with.age"
)

var findSubjects = map[v1.TargetType]string{
	v1.TargetExercise:     subjectFindExercise,
	v1.TargetWorkout:      subjectFindWorkout,
	v1.TargetTrainingPlan: subjectFindTrainingPlan,
	v1.TargetEquipment:    subjectFindEquipment,
}

// NATSProvider implements FactProvider over NATS request/reply.
// The connection is injected; the provider never owns process-wide state.
type NATSProvider struct {
	conn    *nats.Conn
	timeout time.Duration
}

// Connect dials the NATS servers and wraps the connection in a provider.
// timeout bounds every request round trip.
func Connect(servers, name string, timeout time.Duration) (*NATSProvider, error) {
	conn, err := nats.Connect(servers, nats.Name(name))
	if err != nil {
		return nil, fmt.Errorf("connect to nats %q: %w", servers, err)
	}
	slog.Info("[NATS] Connected", "servers", servers)
	return &NATSProvider{conn: conn, timeout: timeout}, nil
}

// NewNATSProvider wraps an existing connection (used by tests).
func NewNATSProvider(conn *nats.Conn) *NATSProvider {
	return &NATSProvider{conn: conn, timeout: 5 * time.Second}
}

// Close drains the underlying connection.
func (p *NATSProvider) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}

// errorEnvelope is the structured application error shape collaborating
// services reply with instead of a payload. Status is only meaningful when
// it carries an HTTP-like failure code.
type errorEnvelope struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// request performs one round trip and decodes the reply into out.
// A structured application error in the reply is surfaced as a classified
// error so callers re-raise it verbatim.
func (p *NATSProvider) request(ctx context.Context, subject string, payload, out interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request for %s: %w", subject, err)
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	msg, err := p.conn.RequestWithContext(ctx, subject, data)
	if err != nil {
		return fmt.Errorf("request %s: %w", subject, err)
	}

	var envelope errorEnvelope
	if json.Unmarshal(msg.Data, &envelope) == nil && envelope.Status >= 400 && envelope.Message != "" {
		return &apperr.Error{
			Status:  envelope.Status,
			Type:    apperr.TypeInternal,
			Message: envelope.Message,
		}
	}

	if err := json.Unmarshal(msg.Data, out); err != nil {
		return fmt.Errorf("decode reply from %s: %w", subject, err)
	}
	return nil
}

func (p *NATSProvider) FindEntityByID(ctx context.Context, target v1.TargetType, id int64) (EntityFacts, error) {
	subject, ok := findSubjects[target]
	if !ok {
		return EntityFacts{}, fmt.Errorf("no lookup subject for target type %q", target)
	}

	var facts EntityFacts
	err := p.request(ctx, subject, map[string]int64{"id": id}, &facts)
	return facts, err
}

func (p *NATSProvider) GenderStatsByTarget(ctx context.Context, targetID int64, target v1.TargetType) ([]GenderCount, error) {
	var counts []GenderCount
	err := p.request(ctx, subjectGenderByTarget, map[string]interface{}{
		"targetId":   targetID,
		"targetType": target,
	}, &counts)
	return counts, err
}

func (p *NATSProvider) TotalUsers(ctx context.Context) (int64, error) {
	var total int64
	err := p.request(ctx, subjectTotalUsers, struct{}{}, &total)
	return total, err
}

func (p *NATSProvider) NewUsers(ctx context.Context, start, end time.Time) (int64, error) {
	var count int64
	err := p.request(ctx, subjectNewUsers, windowPayload(start, end), &count)
	return count, err
}

func (p *NATSProvider) UserActivity(ctx context.Context, start, end time.Time) (UserActivity, error) {
	var activity UserActivity
	err := p.request(ctx, subjectUserActivity, windowPayload(start, end), &activity)
	return activity, err
}

func (p *NATSProvider) GenderStats(ctx context.Context) ([]GenderCount, error) {
	var counts []GenderCount
	err := p.request(ctx, subjectGenderStats, struct{}{}, &counts)
	return counts, err
}

func (p *NATSProvider) GoalStats(ctx context.Context) ([]GoalCount, error) {
	var counts []GoalCount
	err := p.request(ctx, subjectGoalStats, struct{}{}, &counts)
	return counts, err
}

func (p *NATSProvider) ActiveUsersWithAge(ctx context.Context) ([]AgeRecord, error) {
	var records []AgeRecord
	err := p.request(ctx, subjectUsersWithAge, struct{}{}, &records)
	return records, err
}

func windowPayload(start, end time.Time) map[string]string {
	return map[string]string{
		"startDate": start.UTC().Format(time.RFC3339Nano),
		"endDate":   end.UTC().Format(time.RFC3339Nano),
	}
}
