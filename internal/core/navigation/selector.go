package navigation

import (
	"sort"

	"github.com/samirrijal/taskpin/internal/core/domain"
	"github.com/samirrijal/taskpin/internal/pkg/geospatial"
)

// SortByDistance ranks tasks by distance from pos, nearest first.
// Equal distances keep their input order. The input slice is not modified.
func SortByDistance(pos domain.GeoPoint, tasks []domain.Task) []domain.RankedTask {
	ranked := make([]domain.RankedTask, len(tasks))
	for i, t := range tasks {
		ranked[i] = domain.RankedTask{Task: t, DistanceKm: geospatial.DistanceKm(pos, t.Location)}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].DistanceKm < ranked[j].DistanceKm
	})
	return ranked
}

// Nearest returns the task closest to pos. ok is false for an empty set,
// which callers treat as "no active target".
func Nearest(pos domain.GeoPoint, tasks []domain.Task) (nearest domain.RankedTask, ok bool) {
	for i, t := range tasks {
		d := geospatial.DistanceKm(pos, t.Location)
		// strict < keeps the earliest task on ties
		if i == 0 || d < nearest.DistanceKm {
			nearest = domain.RankedTask{Task: t, DistanceKm: d}
		}
	}
	return nearest, len(tasks) > 0
}
