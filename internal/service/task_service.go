package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"crm-engine/internal/model"
	"crm-engine/internal/repository"
)

// TaskInput carries the fields for creating a task or reminder.
type TaskInput struct {
	Kind            string
	Title           string
	Description     string
	Priority        string
	ActivityType    string
	DueDate         time.Time
	AssignedTo      string
	LinkedLeadID    string
	LinkedContactID string
	Recurrence      *model.RecurrenceRule
	Checklist       []model.ChecklistItem
	Tags            []string
}

// TaskUpdate is a partial update; nil fields are left untouched.
// ClearRecurrence removes the rule when no replacement is supplied.
type TaskUpdate struct {
	Title           *string
	Description     *string
	Priority        *string
	ActivityType    *string
	DueDate         *time.Time
	AssignedTo      *string
	LinkedLeadID    *string
	LinkedContactID *string
	Tags            *[]string
	Recurrence      *model.RecurrenceRule
	ClearRecurrence bool
}

// CompleteResult reports the outcome of one id inside a bulk completion.
type CompleteResult struct {
	ID   string
	Task *model.Task
	Err  error
}

// TaskService wraps the synchronous task operations: CRUD, the manual state
// transitions, checklist replacement, comments, queue ranking and search.
// The caller's tenant is assumed to be authenticated upstream.
type TaskService struct {
	taskRepo    *repository.TaskRepository
	commentRepo *repository.CommentRepository
	now         func() time.Time
}

func NewTaskService(taskRepo *repository.TaskRepository, commentRepo *repository.CommentRepository) *TaskService {
	return &TaskService{
		taskRepo:    taskRepo,
		commentRepo: commentRepo,
		now:         time.Now,
	}
}

func (s *TaskService) CreateTask(ctx context.Context, tenantID string, input TaskInput) (*model.Task, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, fmt.Errorf("tenant id is required: %w", model.ErrInvalidArgument)
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, fmt.Errorf("title is required: %w", model.ErrInvalidArgument)
	}
	if input.DueDate.IsZero() {
		return nil, fmt.Errorf("due date is required: %w", model.ErrInvalidArgument)
	}

	kind := input.Kind
	if kind == "" {
		kind = model.KindTask
	}
	if !model.ValidKind(kind) {
		return nil, fmt.Errorf("unknown kind %q: %w", kind, model.ErrInvalidArgument)
	}

	priority := input.Priority
	if priority == "" {
		priority = model.PriorityMedium
	}
	if !model.ValidPriority(priority) {
		return nil, fmt.Errorf("unknown priority %q: %w", priority, model.ErrInvalidArgument)
	}

	if input.Recurrence != nil && !model.ValidRecurrencePattern(input.Recurrence.Pattern) {
		return nil, fmt.Errorf("unknown recurrence pattern %q: %w", input.Recurrence.Pattern, model.ErrInvalidArgument)
	}

	checklist, err := normalizeChecklist(input.Checklist)
	if err != nil {
		return nil, err
	}

	task := model.Task{
		ID:              uuid.NewString(),
		TenantID:        tenantID,
		Kind:            kind,
		Title:           input.Title,
		Description:     input.Description,
		Priority:        priority,
		ActivityType:    input.ActivityType,
		DueDate:         input.DueDate,
		Status:          model.StatusPending,
		AssignedTo:      input.AssignedTo,
		LinkedLeadID:    input.LinkedLeadID,
		LinkedContactID: input.LinkedContactID,
		Checklist:       checklist,
		Tags:            input.Tags,
	}
	task.SetRecurrence(input.Recurrence)

	if err := s.taskRepo.Create(ctx, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (s *TaskService) GetTask(ctx context.Context, tenantID, taskID string) (*model.Task, error) {
	return s.taskRepo.FindByID(ctx, tenantID, taskID)
}

func (s *TaskService) ListTasks(ctx context.Context, tenantID string, filter repository.TaskFilter, limit, offset int) ([]model.Task, error) {
	if filter.Status != "" {
		switch filter.Status {
		case model.StatusPending, model.StatusCompleted, model.StatusOverdue, model.StatusSnoozed:
		default:
			return nil, fmt.Errorf("unknown status %q: %w", filter.Status, model.ErrInvalidArgument)
		}
	}
	if filter.Priority != "" && !model.ValidPriority(filter.Priority) {
		return nil, fmt.Errorf("unknown priority %q: %w", filter.Priority, model.ErrInvalidArgument)
	}
	if filter.Kind != "" && !model.ValidKind(filter.Kind) {
		return nil, fmt.Errorf("unknown kind %q: %w", filter.Kind, model.ErrInvalidArgument)
	}
	return s.taskRepo.List(ctx, tenantID, filter, limit, offset)
}

func (s *TaskService) UpdateTask(ctx context.Context, tenantID, taskID string, update TaskUpdate) (*model.Task, error) {
	if update.Priority != nil && !model.ValidPriority(*update.Priority) {
		return nil, fmt.Errorf("unknown priority %q: %w", *update.Priority, model.ErrInvalidArgument)
	}
	if update.Recurrence != nil && !model.ValidRecurrencePattern(update.Recurrence.Pattern) {
		return nil, fmt.Errorf("unknown recurrence pattern %q: %w", update.Recurrence.Pattern, model.ErrInvalidArgument)
	}
	if update.Title != nil && strings.TrimSpace(*update.Title) == "" {
		return nil, fmt.Errorf("title is required: %w", model.ErrInvalidArgument)
	}
	if update.DueDate != nil && update.DueDate.IsZero() {
		return nil, fmt.Errorf("due date is required: %w", model.ErrInvalidArgument)
	}

	return s.taskRepo.Mutate(ctx, tenantID, taskID, func(task *model.Task) (bool, error) {
		if update.Title != nil {
			task.Title = *update.Title
		}
		if update.Description != nil {
			task.Description = *update.Description
		}
		if update.Priority != nil {
			task.Priority = *update.Priority
		}
		if update.ActivityType != nil {
			task.ActivityType = *update.ActivityType
		}
		if update.DueDate != nil {
			task.DueDate = *update.DueDate
		}
		if update.AssignedTo != nil {
			task.AssignedTo = *update.AssignedTo
		}
		if update.LinkedLeadID != nil {
			task.LinkedLeadID = *update.LinkedLeadID
		}
		if update.LinkedContactID != nil {
			task.LinkedContactID = *update.LinkedContactID
		}
		if update.Tags != nil {
			task.Tags = *update.Tags
		}
		if update.Recurrence != nil {
			task.SetRecurrence(update.Recurrence)
		} else if update.ClearRecurrence {
			task.SetRecurrence(nil)
		}
		return true, nil
	})
}

// CompleteTask marks a record completed and clears snooze and overdue
// bookkeeping. Completing an already-completed record is a no-op success so
// client retries stay idempotent; the record is not rewritten.
func (s *TaskService) CompleteTask(ctx context.Context, tenantID, taskID string) (*model.Task, error) {
	return s.taskRepo.Mutate(ctx, tenantID, taskID, func(task *model.Task) (bool, error) {
		if task.Status == model.StatusCompleted {
			return false, nil
		}
		task.Status = model.StatusCompleted
		task.SnoozedUntil = nil
		task.OverdueNotifiedAt = nil
		return true, nil
	})
}

// BulkComplete applies CompleteTask to each id independently. One failing id
// never rolls back the others; the caller gets a per-id result.
func (s *TaskService) BulkComplete(ctx context.Context, tenantID string, taskIDs []string) []CompleteResult {
	results := make([]CompleteResult, 0, len(taskIDs))
	for _, id := range taskIDs {
		task, err := s.CompleteTask(ctx, tenantID, id)
		results = append(results, CompleteResult{ID: id, Task: task, Err: err})
	}
	return results
}

// SnoozeTask applies the snoozed transition. The target instant must be
// strictly in the future.
func (s *TaskService) SnoozeTask(ctx context.Context, tenantID, taskID string, until time.Time) (*model.Task, error) {
	if !until.After(s.now()) {
		return nil, fmt.Errorf("snooze time must be in the future: %w", model.ErrInvalidArgument)
	}
	return s.taskRepo.Mutate(ctx, tenantID, taskID, func(task *model.Task) (bool, error) {
		if task.Status == model.StatusCompleted {
			return false, fmt.Errorf("task %s is completed: %w", taskID, model.ErrConflict)
		}
		task.Status = model.StatusSnoozed
		u := until
		task.SnoozedUntil = &u
		task.OverdueNotifiedAt = nil
		return true, nil
	})
}

// DeleteTask removes a record. Successors generated from it keep existing
// but lose their parent back-reference.
func (s *TaskService) DeleteTask(ctx context.Context, tenantID, taskID string) error {
	return s.taskRepo.DeleteAndDetach(ctx, tenantID, taskID)
}

// ListMyQueue returns a member's open records ranked by urgency.
func (s *TaskService) ListMyQueue(ctx context.Context, tenantID, memberID string, limit int) ([]model.Task, error) {
	tasks, err := s.taskRepo.ListOpenByAssignee(ctx, tenantID, memberID)
	if err != nil {
		return nil, err
	}
	ranked := RankQueue(tasks)
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

// ReplaceChecklist swaps the whole checklist. Partial patches are not
// supported; the supplied list must carry unique item ids.
func (s *TaskService) ReplaceChecklist(ctx context.Context, tenantID, taskID string, items []model.ChecklistItem) (*model.Task, error) {
	checklist, err := normalizeChecklist(items)
	if err != nil {
		return nil, err
	}
	return s.taskRepo.Mutate(ctx, tenantID, taskID, func(task *model.Task) (bool, error) {
		task.Checklist = checklist
		return true, nil
	})
}

func (s *TaskService) AddComment(ctx context.Context, tenantID, taskID, author, body string) (*model.Comment, error) {
	if strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("comment body is required: %w", model.ErrInvalidArgument)
	}
	if _, err := s.taskRepo.FindByID(ctx, tenantID, taskID); err != nil {
		return nil, err
	}
	comment := model.Comment{
		ID:       uuid.NewString(),
		TenantID: tenantID,
		TaskID:   taskID,
		Author:   author,
		Body:     body,
	}
	if err := s.commentRepo.Create(ctx, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

func (s *TaskService) ListComments(ctx context.Context, tenantID, taskID string) ([]model.Comment, error) {
	if _, err := s.taskRepo.FindByID(ctx, tenantID, taskID); err != nil {
		return nil, err
	}
	return s.commentRepo.ListByTask(ctx, tenantID, taskID)
}

func (s *TaskService) SearchTasks(ctx context.Context, tenantID, query string, limit int) ([]model.Task, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("search query is required: %w", model.ErrInvalidArgument)
	}
	if limit <= 0 {
		limit = 50
	}
	return s.taskRepo.Search(ctx, tenantID, query, limit)
}

// normalizeChecklist assigns ids to new items and rejects duplicates.
func normalizeChecklist(items []model.ChecklistItem) ([]model.ChecklistItem, error) {
	if len(items) == 0 {
		return nil, nil
	}
	out := make([]model.ChecklistItem, len(items))
	seen := make(map[string]struct{}, len(items))
	for i, item := range items {
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		if _, dup := seen[item.ID]; dup {
			return nil, fmt.Errorf("duplicate checklist item id %q: %w", item.ID, model.ErrInvalidArgument)
		}
		seen[item.ID] = struct{}{}
		out[i] = item
	}
	return out, nil
}
