package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"crm-engine/internal/model"
)

// TaskFilter narrows a task listing. Zero values mean "no constraint".
type TaskFilter struct {
	Status          string
	Priority        string
	AssignedTo      string
	LinkedLeadID    string
	LinkedContactID string
	Kind            string
	ActivityType    string
	DueAfter        *time.Time
	DueBefore       *time.Time
}

// TaskRepository handles tenant-scoped persistence for tasks. Unknown ids and
// ids belonging to another tenant both surface as model.ErrNotFound.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("create task: %w", errors.Join(model.ErrInternal, err))
	}
	return nil
}

func (r *TaskRepository) FindByID(ctx context.Context, tenantID, taskID string) (*model.Task, error) {
	var task model.Task
	err := r.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, taskID).First(&task).Error
	switch {
	case err == nil:
		return &task, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("task %s: %w", taskID, model.ErrNotFound)
	default:
		return nil, fmt.Errorf("find task: %w", errors.Join(model.ErrInternal, err))
	}
}

// Mutate applies fn to a freshly loaded record inside a transaction and
// persists the result when fn returns save=true. This is the single-record
// atomic read-modify-write every synchronous transition goes through.
func (r *TaskRepository) Mutate(ctx context.Context, tenantID, taskID string, fn func(*model.Task) (save bool, err error)) (*model.Task, error) {
	var task model.Task
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("tenant_id = ? AND id = ?", tenantID, taskID).First(&task).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("task %s: %w", taskID, model.ErrNotFound)
			}
			return fmt.Errorf("find task: %w", errors.Join(model.ErrInternal, err))
		}
		save, err := fn(&task)
		if err != nil {
			return err
		}
		if !save {
			return nil
		}
		if err := tx.Save(&task).Error; err != nil {
			return fmt.Errorf("save task: %w", errors.Join(model.ErrInternal, err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *TaskRepository) List(ctx context.Context, tenantID string, filter TaskFilter, limit, offset int) ([]model.Task, error) {
	q := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Priority != "" {
		q = q.Where("priority = ?", filter.Priority)
	}
	if filter.AssignedTo != "" {
		q = q.Where("assigned_to = ?", filter.AssignedTo)
	}
	if filter.LinkedLeadID != "" {
		q = q.Where("linked_lead_id = ?", filter.LinkedLeadID)
	}
	if filter.LinkedContactID != "" {
		q = q.Where("linked_contact_id = ?", filter.LinkedContactID)
	}
	if filter.Kind != "" {
		q = q.Where("kind = ?", filter.Kind)
	}
	if filter.ActivityType != "" {
		q = q.Where("activity_type = ?", filter.ActivityType)
	}
	if filter.DueAfter != nil {
		q = q.Where("due_date >= ?", *filter.DueAfter)
	}
	if filter.DueBefore != nil {
		q = q.Where("due_date < ?", *filter.DueBefore)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}

	var tasks []model.Task
	if err := q.Order("due_date ASC, created_at ASC, id ASC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", errors.Join(model.ErrInternal, err))
	}
	return tasks, nil
}

// ListOpenByAssignee returns a member's non-completed records in storage
// order, the input the queue ranker expects.
func (r *TaskRepository) ListOpenByAssignee(ctx context.Context, tenantID, memberID string) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND assigned_to = ? AND status <> ?", tenantID, memberID, model.StatusCompleted).
		Order("created_at ASC, id ASC").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list queue: %w", errors.Join(model.ErrInternal, err))
	}
	return tasks, nil
}

// ListPendingDue returns pending records whose due date has passed.
func (r *TaskRepository) ListPendingDue(ctx context.Context, tenantID string, asOf time.Time, limit int) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND status = ? AND due_date < ?", tenantID, model.StatusPending, asOf).
		Order("due_date ASC, id ASC").
		Limit(limit).
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list pending due: %w", errors.Join(model.ErrInternal, err))
	}
	return tasks, nil
}

// ListSnoozeExpired returns snoozed records whose snooze window has elapsed.
func (r *TaskRepository) ListSnoozeExpired(ctx context.Context, tenantID string, asOf time.Time, limit int) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND status = ? AND snoozed_until <= ?", tenantID, model.StatusSnoozed, asOf).
		Order("snoozed_until ASC, id ASC").
		Limit(limit).
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list snooze expired: %w", errors.Join(model.ErrInternal, err))
	}
	return tasks, nil
}

// ListRecurringResolved pages through recurring records that have reached a
// resolving state: completed, or pending/overdue with the due date in the
// past. Only records that existed at asOf are returned, so successors
// created during the same scan never feed back into it.
func (r *TaskRepository) ListRecurringResolved(ctx context.Context, tenantID string, asOf time.Time, limit, offset int) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND recurrence_pattern <> '' AND created_at < ?", tenantID, asOf).
		Where("status = ? OR (status IN ? AND due_date < ?)",
			model.StatusCompleted, []string{model.StatusPending, model.StatusOverdue}, asOf).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Offset(offset).
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list recurring resolved: %w", errors.Join(model.ErrInternal, err))
	}
	return tasks, nil
}

// HasSuccessor reports whether any record was already generated from the
// given parent occurrence.
func (r *TaskRepository) HasSuccessor(ctx context.Context, tenantID, parentID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("tenant_id = ? AND parent_occurrence_id = ?", tenantID, parentID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("count successors: %w", errors.Join(model.ErrInternal, err))
	}
	return count > 0, nil
}

// DeleteAndDetach removes a record and clears the parent back-reference of
// any record generated from it, so successor chains never dangle.
func (r *TaskRepository) DeleteAndDetach(ctx context.Context, tenantID, taskID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("tenant_id = ? AND id = ?", tenantID, taskID).Delete(&model.Task{})
		if res.Error != nil {
			return fmt.Errorf("delete task: %w", errors.Join(model.ErrInternal, res.Error))
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("task %s: %w", taskID, model.ErrNotFound)
		}
		if err := tx.Model(&model.Task{}).
			Where("tenant_id = ? AND parent_occurrence_id = ?", tenantID, taskID).
			Update("parent_occurrence_id", "").Error; err != nil {
			return fmt.Errorf("detach successors: %w", errors.Join(model.ErrInternal, err))
		}
		return nil
	})
}

// TenantIDs lists every tenant that owns at least one task. Periodic jobs
// iterate this to process tenants independently.
func (r *TaskRepository) TenantIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := r.db.WithContext(ctx).Model(&model.Task{}).
		Distinct("tenant_id").
		Order("tenant_id ASC").
		Pluck("tenant_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list tenants: %w", errors.Join(model.ErrInternal, err))
	}
	return ids, nil
}

// Search matches query against title and description. Title hits rank ahead
// of description-only hits.
func (r *TaskRepository) Search(ctx context.Context, tenantID, query string, limit int) ([]model.Task, error) {
	pattern := "%" + query + "%"
	var tasks []model.Task
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND (title LIKE ? OR description LIKE ?)", tenantID, pattern, pattern).
		Order(clause.OrderBy{Expression: clause.Expr{
			SQL:                "CASE WHEN title LIKE ? THEN 0 ELSE 1 END, due_date ASC",
			Vars:               []interface{}{pattern},
			WithoutParentheses: true,
		}}).
		Limit(limit).
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("search tasks: %w", errors.Join(model.ErrInternal, err))
	}
	return tasks, nil
}
