package api

import (
	"sort"
	"time"
)

// SortTasksNewestFirst orders tasks by CreatedAt descending, breaking ties by
// ID descending.
func SortTasksNewestFirst(tasks []TaskView) []TaskView {
	if len(tasks) == 0 {
		return nil
	}
	sorted := make([]TaskView, len(tasks))
	copy(sorted, tasks)
	sort.Slice(sorted, func(i, j int) bool {
		ti := parseTaskTime(sorted[i].CreatedAt)
		tj := parseTaskTime(sorted[j].CreatedAt)
		if ti.Equal(tj) {
			return sorted[i].ID > sorted[j].ID
		}
		return ti.After(tj)
	})
	return sorted
}

func parseTaskTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	return time.Time{}
}

// ParseTaskTime exposes task timestamp parsing for consumers that need
// display formatting.
func ParseTaskTime(value string) time.Time {
	return parseTaskTime(value)
}
