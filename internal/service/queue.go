package service

import (
	"sort"

	"crm-engine/internal/model"
)

// RankQueue orders a member's open records for display: overdue first by
// ascending due date (most overdue on top), then everything else by its
// effective deadline — SnoozedUntil for snoozed records, DueDate otherwise.
// The sort is stable, so records with equal keys keep their storage order.
// Pure function, no side effects.
func RankQueue(tasks []model.Task) []model.Task {
	ranked := make([]model.Task, len(tasks))
	copy(ranked, tasks)

	sort.SliceStable(ranked, func(i, j int) bool {
		overdueI := ranked[i].Status == model.StatusOverdue
		overdueJ := ranked[j].Status == model.StatusOverdue
		if overdueI != overdueJ {
			return overdueI
		}
		if overdueI {
			return ranked[i].DueDate.Before(ranked[j].DueDate)
		}
		return ranked[i].EffectiveDue().Before(ranked[j].EffectiveDue())
	})
	return ranked
}
