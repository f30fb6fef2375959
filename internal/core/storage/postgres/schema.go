package postgres

import (
	"fmt"
	"strings"

	v1 "github.com/vigorlab/statistics-service/internal/api/v1"
	"github.com/vigorlab/statistics-service/internal/core/storage"
)

// Scalar column names shared across the domain schemas.
const (
	colTotalUses        = "total_uses"
	colTotalCompletions = "total_completions"
	colPopularityScore  = "popularity_score"
	colTotalUsers       = "total_users"
	colNewUsers         = "new_users"
	colActiveUsers      = "active_users"
	colInactiveUsers    = "inactive_users"
)

// axisTable maps one breakdown axis to its child table.
type axisTable struct {
	table       string
	keyColumn   string
	countColumn string
}

// domainSchema describes the tables backing one statistics domain. The five
// domains run the same SQL shapes over different tables; every identifier
// below is a compile-time constant, never user input.
type domainSchema struct {
	domain        v1.Domain
	table         string
	entityColumn  string // empty for the user domain
	scalarColumns []string
	axisOrder     []v1.Axis
	axes          map[v1.Axis]axisTable

	q domainQueries
}

type domainQueries struct {
	insertParent   string
	updateParent   string
	selectInBucket string
	selectByID     string
	deleteParent   string
	countAll       string
	listPage       string
	topByMetric    map[storage.Metric]string
	insertChild    map[v1.Axis]string
	deleteChildren map[v1.Axis]string
	selectChildren map[v1.Axis]string
	sumChildren    map[v1.Axis]string
}

var domainSchemas = buildSchemas()

func schemaFor(domain v1.Domain) (domainSchema, error) {
	s, ok := domainSchemas[domain]
	if !ok {
		return domainSchema{}, fmt.Errorf("unknown statistics domain %q", domain)
	}
	return s, nil
}

func buildSchemas() map[v1.Domain]domainSchema {
	schemas := []domainSchema{
		{
			domain:        v1.DomainUser,
			table:         "user_statistics",
			scalarColumns: []string{colTotalUsers, colNewUsers, colActiveUsers, colInactiveUsers},
			axisOrder:     []v1.Axis{v1.AxisGender, v1.AxisGoal, v1.AxisAgeRange},
			axes: map[v1.Axis]axisTable{
				v1.AxisGender:   {table: "user_gender_stats", keyColumn: "gender", countColumn: "count"},
				v1.AxisGoal:     {table: "user_goal_stats", keyColumn: "goal", countColumn: "count"},
				v1.AxisAgeRange: {table: "user_age_range_stats", keyColumn: "age_range", countColumn: "count"},
			},
		},
		{
			domain:        v1.DomainExercise,
			table:         "exercise_statistics",
			entityColumn:  "exercise_id",
			scalarColumns: []string{colTotalUses, colPopularityScore},
			axisOrder:     []v1.Axis{v1.AxisGender, v1.AxisCategory, v1.AxisDifficulty},
			axes: map[v1.Axis]axisTable{
				v1.AxisGender:     {table: "exercise_gender_stats", keyColumn: "gender", countColumn: "use_count"},
				v1.AxisCategory:   {table: "exercise_category_stats", keyColumn: "category", countColumn: "use_count"},
				v1.AxisDifficulty: {table: "exercise_difficulty_stats", keyColumn: "difficulty", countColumn: "use_count"},
			},
		},
		{
			domain:        v1.DomainWorkout,
			table:         "workout_statistics",
			entityColumn:  "workout_id",
			scalarColumns: []string{colTotalUses, colPopularityScore},
			axisOrder:     []v1.Axis{v1.AxisGender, v1.AxisCategory, v1.AxisDifficulty, v1.AxisCompletion},
			axes: map[v1.Axis]axisTable{
				v1.AxisGender:     {table: "workout_gender_stats", keyColumn: "gender", countColumn: "use_count"},
				v1.AxisCategory:   {table: "workout_category_stats", keyColumn: "category", countColumn: "use_count"},
				v1.AxisDifficulty: {table: "workout_difficulty_stats", keyColumn: "difficulty", countColumn: "use_count"},
				v1.AxisCompletion: {table: "workout_completion_stats", keyColumn: "completion_status", countColumn: "count"},
			},
		},
		{
			domain:        v1.DomainTrainingPlan,
			table:         "training_plan_statistics",
			entityColumn:  "training_plan_id",
			scalarColumns: []string{colTotalCompletions},
			axisOrder:     []v1.Axis{v1.AxisGender, v1.AxisDifficulty, v1.AxisCompletion},
			axes: map[v1.Axis]axisTable{
				v1.AxisGender:     {table: "training_plan_gender_stats", keyColumn: "gender", countColumn: "completion_count"},
				v1.AxisDifficulty: {table: "training_plan_difficulty_stats", keyColumn: "difficulty", countColumn: "completion_count"},
				v1.AxisCompletion: {table: "training_plan_completion_stats", keyColumn: "completion_status", countColumn: "count"},
			},
		},
		{
			domain:        v1.DomainEquipment,
			table:         "equipment_statistics",
			entityColumn:  "equipment_id",
			scalarColumns: []string{colTotalUses, colPopularityScore},
			axisOrder:     []v1.Axis{v1.AxisGender},
			axes: map[v1.Axis]axisTable{
				v1.AxisGender: {table: "equipment_gender_stats", keyColumn: "gender", countColumn: "use_count"},
			},
		},
	}

	out := make(map[v1.Domain]domainSchema, len(schemas))
	for _, s := range schemas {
		s.q = buildQueries(s)
		out[s.domain] = s
	}
	return out
}

// usageColumn is the primary usage metric column of an entity domain.
func (s domainSchema) usageColumn() string {
	if s.scalarColumns[0] == colTotalCompletions {
		return colTotalCompletions
	}
	return colTotalUses
}

func (s domainSchema) hasPopularity() bool {
	for _, c := range s.scalarColumns {
		if c == colPopularityScore {
			return true
		}
	}
	return false
}

// parentColumns is the full select/insert column list of the parent table.
func (s domainSchema) parentColumns() []string {
	cols := []string{"id"}
	if s.entityColumn != "" {
		cols = append(cols, s.entityColumn)
	}
	cols = append(cols, "period", "date")
	cols = append(cols, s.scalarColumns...)
	return append(cols, "created_at", "updated_at")
}

// scalarValue maps a scalar column to its value in the snapshot.
func scalarValue(col string, sc v1.Scalars) interface{} {
	switch col {
	case colTotalUses, colTotalCompletions:
		return sc.TotalUses
	case colPopularityScore:
		return sc.PopularityScore
	case colTotalUsers:
		return sc.TotalUsers
	case colNewUsers:
		return sc.NewUsers
	case colActiveUsers:
		return sc.ActiveUsers
	case colInactiveUsers:
		return sc.InactiveUsers
	}
	return nil
}

// scalarDest maps a scalar column to its scan destination. popularity_score
// is stored as NUMERIC and scanned through decimal's sql.Scanner.
func scalarDest(col string, sc *v1.Scalars) interface{} {
	switch col {
	case colTotalUses, colTotalCompletions:
		return &sc.TotalUses
	case colPopularityScore:
		return &sc.PopularityScore
	case colTotalUsers:
		return &sc.TotalUsers
	case colNewUsers:
		return &sc.NewUsers
	case colActiveUsers:
		return &sc.ActiveUsers
	case colInactiveUsers:
		return &sc.InactiveUsers
	}
	var discard interface{}
	return &discard
}

func buildQueries(s domainSchema) domainQueries {
	cols := s.parentColumns()
	colList := strings.Join(cols, ", ")

	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	q := domainQueries{
		insertParent: fmt.Sprintf(
			"INSERT INTO %s (%s) VALUES (%s)",
			s.table, colList, strings.Join(placeholders, ", "),
		),
		selectByID:   fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", colList, s.table),
		deleteParent: fmt.Sprintf("DELETE FROM %s WHERE id = $1", s.table),
		countAll:     fmt.Sprintf("SELECT COUNT(*) FROM %s", s.table),
		listPage: fmt.Sprintf(
			"SELECT %s FROM %s ORDER BY date DESC, id ASC LIMIT $1 OFFSET $2",
			colList, s.table,
		),
		topByMetric:    map[storage.Metric]string{},
		insertChild:    map[v1.Axis]string{},
		deleteChildren: map[v1.Axis]string{},
		selectChildren: map[v1.Axis]string{},
		sumChildren:    map[v1.Axis]string{},
	}

	// UPDATE <table> SET <scalar> = $1, ..., updated_at = $n WHERE id = $n+1
	sets := make([]string, 0, len(s.scalarColumns)+1)
	i := 1
	for _, col := range s.scalarColumns {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, i))
		i++
	}
	sets = append(sets, fmt.Sprintf("updated_at = $%d", i))
	q.updateParent = fmt.Sprintf(
		"UPDATE %s SET %s WHERE id = $%d",
		s.table, strings.Join(sets, ", "), i+1,
	)

	// Bucket lookup matches the anchor's containing window, not exact date.
	bucket := fmt.Sprintf(
		"SELECT %s FROM %s WHERE period = $1 AND date >= $2 AND date <= $3",
		colList, s.table,
	)
	if s.entityColumn != "" {
		bucket += fmt.Sprintf(" AND %s = $4", s.entityColumn)
	}
	q.selectInBucket = bucket + " ORDER BY date ASC, id ASC LIMIT 1"

	rangeFilter := "WHERE date >= $1 AND date <= $2"
	if s.entityColumn != "" {
		q.topByMetric[storage.MetricUsage] = fmt.Sprintf(
			"SELECT %s FROM %s %s ORDER BY %s DESC, id ASC LIMIT $3",
			colList, s.table, rangeFilter, s.usageColumn(),
		)
	}
	if s.hasPopularity() {
		q.topByMetric[storage.MetricPopularity] = fmt.Sprintf(
			"SELECT %s FROM %s %s ORDER BY %s DESC, id ASC LIMIT $3",
			colList, s.table, rangeFilter, colPopularityScore,
		)
	}

	for axis, child := range s.axes {
		q.insertChild[axis] = fmt.Sprintf(
			"INSERT INTO %s (snapshot_id, %s, %s) VALUES ($1, $2, $3)",
			child.table, child.keyColumn, child.countColumn,
		)
		q.deleteChildren[axis] = fmt.Sprintf(
			"DELETE FROM %s WHERE snapshot_id = $1",
			child.table,
		)
		q.selectChildren[axis] = fmt.Sprintf(
			"SELECT %s, %s FROM %s WHERE snapshot_id = $1 ORDER BY %s ASC",
			child.keyColumn, child.countColumn, child.table, child.keyColumn,
		)
		q.sumChildren[axis] = fmt.Sprintf(
			"SELECT c.%s, COALESCE(SUM(c.%s), 0) FROM %s c JOIN %s p ON c.snapshot_id = p.id "+
				"WHERE p.date >= $1 AND p.date <= $2 GROUP BY c.%s ORDER BY 2 DESC, 1 ASC",
			child.keyColumn, child.countColumn, child.table, s.table, child.keyColumn,
		)
	}

	return q
}
