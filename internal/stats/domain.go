package stats

import (
	v1 "github.com/vigorlab/statistics-service/internal/api/v1"
)

// topItemsLimit is the fixed size of every top-N report list.
const topItemsLimit = 5

// Descriptor parameterizes the generic engine for one statistics domain.
// The five domains share the same upsert/report/delete algorithm; only the
// fact shape, breakdown axes and report composition differ.
type Descriptor struct {
	Domain v1.Domain

	// Label is the human-readable domain name used in error messages.
	Label string

	// Target is the provider-side target type. Empty for the user domain,
	// which aggregates global facts instead of a single entity.
	Target v1.TargetType

	// Axes lists every breakdown dimension the domain persists.
	Axes []v1.Axis

	// HasPopularity marks domains that store a popularity score and serve
	// a top-rated report list.
	HasPopularity bool

	// GroupedAxes are the axes summed into grouped totals in reports.
	GroupedAxes []v1.Axis
}

// HasEntity reports whether snapshots of this domain reference an external
// entity. The user domain is global.
func (d Descriptor) HasEntity() bool {
	return d.Target != ""
}

// Descriptors is the registry of all statistic domains. Adding a domain
// means adding an entry here plus its schema tables; no engine code changes.
var Descriptors = map[v1.Domain]Descriptor{
	v1.DomainUser: {
		Domain: v1.DomainUser,
		Label:  "user",
		Axes:   []v1.Axis{v1.AxisGender, v1.AxisGoal, v1.AxisAgeRange},
	},
	v1.DomainExercise: {
		Domain:        v1.DomainExercise,
		Label:         "exercise",
		Target:        v1.TargetExercise,
		Axes:          []v1.Axis{v1.AxisGender, v1.AxisCategory, v1.AxisDifficulty},
		HasPopularity: true,
		GroupedAxes:   []v1.Axis{v1.AxisCategory, v1.AxisDifficulty},
	},
	v1.DomainWorkout: {
		Domain:        v1.DomainWorkout,
		Label:         "workout",
		Target:        v1.TargetWorkout,
		Axes:          []v1.Axis{v1.AxisGender, v1.AxisCategory, v1.AxisDifficulty, v1.AxisCompletion},
		HasPopularity: true,
		GroupedAxes:   []v1.Axis{v1.AxisCategory, v1.AxisDifficulty},
	},
	v1.DomainTrainingPlan: {
		Domain:      v1.DomainTrainingPlan,
		Label:       "training plan",
		Target:      v1.TargetTrainingPlan,
		Axes:        []v1.Axis{v1.AxisGender, v1.AxisDifficulty, v1.AxisCompletion},
		GroupedAxes: []v1.Axis{v1.AxisDifficulty},
	},
	v1.DomainEquipment: {
		Domain:        v1.DomainEquipment,
		Label:         "equipment",
		Target:        v1.TargetEquipment,
		Axes:          []v1.Axis{v1.AxisGender},
		HasPopularity: true,
	},
}
