package service

import (
	"testing"
	"time"

	"crm-engine/internal/model"
)

func TestRankQueueOverdueFirstThenEffectiveDue(t *testing.T) {
	t.Parallel()

	now := time.Now()
	snoozeAt := now.Add(2 * time.Hour)

	tasks := []model.Task{
		{ID: "pending", Status: model.StatusPending, DueDate: now.Add(24 * time.Hour)},
		{ID: "snoozed", Status: model.StatusSnoozed, DueDate: now.Add(-time.Hour), SnoozedUntil: &snoozeAt},
		{ID: "overdue", Status: model.StatusOverdue, DueDate: now.Add(-24 * time.Hour)},
	}

	ranked := RankQueue(tasks)

	want := []string{"overdue", "snoozed", "pending"}
	for i, id := range want {
		if ranked[i].ID != id {
			t.Fatalf("position %d = %s, want %s (full order %v)", i, ranked[i].ID, id, ids(ranked))
		}
	}
}

func TestRankQueueOverdueOrderedMostOverdueFirst(t *testing.T) {
	t.Parallel()

	now := time.Now()
	tasks := []model.Task{
		{ID: "barely", Status: model.StatusOverdue, DueDate: now.Add(-time.Hour)},
		{ID: "ancient", Status: model.StatusOverdue, DueDate: now.Add(-72 * time.Hour)},
		{ID: "pending", Status: model.StatusPending, DueDate: now.Add(-time.Minute)},
	}

	ranked := RankQueue(tasks)
	want := []string{"ancient", "barely", "pending"}
	for i, id := range want {
		if ranked[i].ID != id {
			t.Fatalf("position %d = %s, want %s", i, ranked[i].ID, id)
		}
	}
}

func TestRankQueueStableForEqualKeys(t *testing.T) {
	t.Parallel()

	due := time.Now().Add(time.Hour)
	tasks := []model.Task{
		{ID: "first", Status: model.StatusPending, DueDate: due},
		{ID: "second", Status: model.StatusPending, DueDate: due},
		{ID: "third", Status: model.StatusPending, DueDate: due},
	}

	ranked := RankQueue(tasks)
	for i, id := range []string{"first", "second", "third"} {
		if ranked[i].ID != id {
			t.Fatalf("equal keys must keep storage order, got %v", ids(ranked))
		}
	}
}

func TestRankQueueDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	now := time.Now()
	tasks := []model.Task{
		{ID: "b", Status: model.StatusPending, DueDate: now.Add(2 * time.Hour)},
		{ID: "a", Status: model.StatusOverdue, DueDate: now.Add(-time.Hour)},
	}

	_ = RankQueue(tasks)
	if tasks[0].ID != "b" || tasks[1].ID != "a" {
		t.Fatalf("input slice was reordered: %v", ids(tasks))
	}
}

func ids(tasks []model.Task) []string {
	out := make([]string, len(tasks))
	for i, task := range tasks {
		out[i] = task.ID
	}
	return out
}
