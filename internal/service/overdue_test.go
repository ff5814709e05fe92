package service

import (
	"context"
	"testing"
	"time"

	"crm-engine/internal/model"
)

func TestOverdueScanFlagsOnce(t *testing.T) {
	t.Parallel()

	svc, taskRepo, _ := newTestService(t)
	ctx := context.Background()

	late := mustCreateTask(t, svc, "tenant-a", baseInput(time.Now().Add(-time.Hour)))
	future := mustCreateTask(t, svc, "tenant-a", baseInput(time.Now().Add(time.Hour)))
	done := mustCreateTask(t, svc, "tenant-a", baseInput(time.Now().Add(-time.Hour)))
	if _, err := svc.CompleteTask(ctx, "tenant-a", done.ID); err != nil {
		t.Fatalf("CompleteTask error: %v", err)
	}

	processor := NewOverdueProcessor(taskRepo, discardLogger(), 10)

	result, err := processor.Run(ctx)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(result.Flagged) != 1 || result.Flagged[0].ID != late.ID {
		t.Fatalf("expected exactly the late task flagged, got %v", ids(result.Flagged))
	}

	flagged, err := svc.GetTask(ctx, "tenant-a", late.ID)
	if err != nil {
		t.Fatalf("GetTask error: %v", err)
	}
	if flagged.Status != model.StatusOverdue {
		t.Fatalf("status = %s, want overdue", flagged.Status)
	}
	if flagged.OverdueNotifiedAt == nil {
		t.Fatalf("overdueNotifiedAt must be set on the transition")
	}
	notifiedAt := *flagged.OverdueNotifiedAt

	// Second run: no duplicate side effects.
	again, err := processor.Run(ctx)
	if err != nil {
		t.Fatalf("second Run error: %v", err)
	}
	if len(again.Flagged) != 0 {
		t.Fatalf("second run must flag nothing, got %v", ids(again.Flagged))
	}
	reloaded, err := svc.GetTask(ctx, "tenant-a", late.ID)
	if err != nil {
		t.Fatalf("GetTask error: %v", err)
	}
	if !reloaded.OverdueNotifiedAt.Equal(notifiedAt) {
		t.Fatalf("overdueNotifiedAt changed across runs: %v -> %v", notifiedAt, reloaded.OverdueNotifiedAt)
	}

	untouched, err := svc.GetTask(ctx, "tenant-a", future.ID)
	if err != nil {
		t.Fatalf("GetTask error: %v", err)
	}
	if untouched.Status != model.StatusPending {
		t.Fatalf("future-due task must stay pending, got %s", untouched.Status)
	}
	completed, err := svc.GetTask(ctx, "tenant-a", done.ID)
	if err != nil {
		t.Fatalf("GetTask error: %v", err)
	}
	if completed.Status != model.StatusCompleted {
		t.Fatalf("completed task must never change, got %s", completed.Status)
	}
}

func TestOverdueScanSkipsActiveSnooze(t *testing.T) {
	t.Parallel()

	svc, taskRepo, _ := newTestService(t)
	ctx := context.Background()

	task := mustCreateTask(t, svc, "tenant-a", baseInput(time.Now().Add(-time.Hour)))
	if _, err := svc.SnoozeTask(ctx, "tenant-a", task.ID, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("SnoozeTask error: %v", err)
	}

	processor := NewOverdueProcessor(taskRepo, discardLogger(), 10)
	result, err := processor.Run(ctx)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(result.Flagged) != 0 || result.Woken != 0 {
		t.Fatalf("snoozed record must be skipped while the window is open: %+v", result)
	}

	got, err := svc.GetTask(ctx, "tenant-a", task.ID)
	if err != nil {
		t.Fatalf("GetTask error: %v", err)
	}
	if got.Status != model.StatusSnoozed {
		t.Fatalf("status = %s, want snoozed", got.Status)
	}
}

func TestOverdueScanWakesExpiredSnooze(t *testing.T) {
	t.Parallel()

	svc, taskRepo, db := newTestService(t)
	ctx := context.Background()

	task := mustCreateTask(t, svc, "tenant-a", baseInput(time.Now().Add(-2*time.Hour)))
	if _, err := svc.SnoozeTask(ctx, "tenant-a", task.ID, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("SnoozeTask error: %v", err)
	}

	// Simulate the snooze window elapsing.
	expired := time.Now().Add(-time.Minute)
	if err := db.Model(&model.Task{}).
		Where("tenant_id = ? AND id = ?", "tenant-a", task.ID).
		Update("snoozed_until", expired).Error; err != nil {
		t.Fatalf("expire snooze: %v", err)
	}

	processor := NewOverdueProcessor(taskRepo, discardLogger(), 10)
	result, err := processor.Run(ctx)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if result.Woken != 1 {
		t.Fatalf("expected 1 woken record, got %d", result.Woken)
	}
	// Due date is long past, so the same run flags it.
	if len(result.Flagged) != 1 || result.Flagged[0].ID != task.ID {
		t.Fatalf("expected the woken record flagged, got %v", ids(result.Flagged))
	}

	got, err := svc.GetTask(ctx, "tenant-a", task.ID)
	if err != nil {
		t.Fatalf("GetTask error: %v", err)
	}
	if got.Status != model.StatusOverdue {
		t.Fatalf("status = %s, want overdue", got.Status)
	}
	if got.SnoozedUntil != nil {
		t.Fatalf("snoozedUntil must be cleared on wake")
	}
}

func TestOverdueScanWakesSnoozeWithFutureDue(t *testing.T) {
	t.Parallel()

	svc, taskRepo, db := newTestService(t)
	ctx := context.Background()

	// Snooze elapsed but the original due date is still ahead: the record
	// returns to pending and only turns overdue once the due date passes.
	task := mustCreateTask(t, svc, "tenant-a", baseInput(time.Now().Add(24*time.Hour)))
	if _, err := svc.SnoozeTask(ctx, "tenant-a", task.ID, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("SnoozeTask error: %v", err)
	}
	if err := db.Model(&model.Task{}).
		Where("tenant_id = ? AND id = ?", "tenant-a", task.ID).
		Update("snoozed_until", time.Now().Add(-time.Minute)).Error; err != nil {
		t.Fatalf("expire snooze: %v", err)
	}

	processor := NewOverdueProcessor(taskRepo, discardLogger(), 10)
	result, err := processor.Run(ctx)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if result.Woken != 1 || len(result.Flagged) != 0 {
		t.Fatalf("expected wake without flag, got %+v", result)
	}

	got, err := svc.GetTask(ctx, "tenant-a", task.ID)
	if err != nil {
		t.Fatalf("GetTask error: %v", err)
	}
	if got.Status != model.StatusPending {
		t.Fatalf("status = %s, want pending", got.Status)
	}
}

func TestOverdueScanIsolatesTenants(t *testing.T) {
	t.Parallel()

	svc, taskRepo, _ := newTestService(t)
	ctx := context.Background()

	lateA := mustCreateTask(t, svc, "tenant-a", baseInput(time.Now().Add(-time.Hour)))
	lateB := mustCreateTask(t, svc, "tenant-b", baseInput(time.Now().Add(-time.Hour)))

	processor := NewOverdueProcessor(taskRepo, discardLogger(), 10)
	result, err := processor.Run(ctx)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(result.Flagged) != 2 {
		t.Fatalf("both tenants must be processed, got %v", ids(result.Flagged))
	}
	for _, task := range []*model.Task{lateA, lateB} {
		got, err := svc.GetTask(ctx, task.TenantID, task.ID)
		if err != nil {
			t.Fatalf("GetTask error: %v", err)
		}
		if got.Status != model.StatusOverdue {
			t.Fatalf("tenant %s task not flagged", task.TenantID)
		}
	}
}
