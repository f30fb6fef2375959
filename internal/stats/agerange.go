package stats

import (
	v1 "github.com/vigorlab/statistics-service/internal/api/v1"
	"github.com/vigorlab/statistics-service/internal/provider"
)

// ageRangeOrder fixes the bucket iteration order so the resulting breakdown
// is deterministic.
var ageRangeOrder = []string{
	v1.AgeUnder18,
	v1.Age18To24,
	v1.Age25To34,
	v1.Age35To44,
	v1.Age45To54,
	v1.Age55Plus,
}

// ageRangeFor maps an age to its fixed bucket.
func ageRangeFor(age int) string {
	switch {
	case age < 18:
		return v1.AgeUnder18
	case age < 25:
		return v1.Age18To24
	case age < 35:
		return v1.Age25To34
	case age < 45:
		return v1.Age35To44
	case age < 55:
		return v1.Age45To54
	default:
		return v1.Age55Plus
	}
}

// BucketAges counts users per age range. Buckets with no members are
// omitted; the total count across buckets equals len(records).
func BucketAges(records []provider.AgeRecord) []v1.BreakdownRow {
	counts := make(map[string]int64, len(ageRangeOrder))
	for _, r := range records {
		counts[ageRangeFor(r.Age)]++
	}

	rows := make([]v1.BreakdownRow, 0, len(counts))
	for _, bucket := range ageRangeOrder {
		if n := counts[bucket]; n > 0 {
			rows = append(rows, v1.BreakdownRow{Key: bucket, Count: n})
		}
	}
	return rows
}
