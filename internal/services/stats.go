package services

import "github.com/tracklog/apiserver/types"

// Aggregate summarizes activities by category and by UTC calendar day.
// Ties for the most common category go to the lexicographically smallest name.
func Aggregate(activities []types.Activity) types.ActivityStats {
	stats := types.ActivityStats{
		TotalCount: len(activities),
		ByCategory: make(map[string]int),
		ByDay:      make(map[string]int),
	}

	for _, activity := range activities {
		stats.ByCategory[activity.Category]++
		stats.ByDay[activity.CreatedAt.UTC().Format(types.DayLayout)]++
	}

	var (
		best      string
		bestCount int
	)
	for category, count := range stats.ByCategory {
		if count > bestCount || (count == bestCount && category < best) {
			best, bestCount = category, count
		}
	}
	if bestCount > 0 {
		stats.MostCommonCategory = &best
	}
	return stats
}
