package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"crm-engine/internal/model"
	"crm-engine/internal/repository"
)

// RegenerateResult summarizes one regenerator run.
type RegenerateResult struct {
	Created int
	Skipped int
}

// Regenerator is the periodic job that creates the next occurrence of a
// recurring task once its current occurrence is resolved: completed, or
// pending/overdue past its due date. The source record is never mutated, so
// the operation is naturally idempotent — a second run finds the successor
// by its parent back-reference and moves on.
type Regenerator struct {
	taskRepo  *repository.TaskRepository
	log       zerolog.Logger
	batchSize int
	now       func() time.Time
}

func NewRegenerator(taskRepo *repository.TaskRepository, log zerolog.Logger, batchSize int) *Regenerator {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Regenerator{
		taskRepo:  taskRepo,
		log:       log.With().Str("job", "recurrence-regenerate").Logger(),
		batchSize: batchSize,
		now:       time.Now,
	}
}

// Run processes tenants independently; one tenant failing never blocks the
// rest, and one record failing never aborts its batch.
func (r *Regenerator) Run(ctx context.Context) (RegenerateResult, error) {
	var result RegenerateResult

	tenants, err := r.taskRepo.TenantIDs(ctx)
	if err != nil {
		return result, err
	}

	for _, tenant := range tenants {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := r.runTenant(ctx, tenant, &result); err != nil {
			r.log.Error().Err(err).Str("tenant", tenant).Msg("tenant regeneration failed")
		}
	}

	r.log.Info().
		Int("created", result.Created).
		Int("skipped", result.Skipped).
		Msg("regeneration finished")
	return result, nil
}

func (r *Regenerator) runTenant(ctx context.Context, tenant string, result *RegenerateResult) error {
	asOf := r.now()
	for offset := 0; ; {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch, err := r.taskRepo.ListRecurringResolved(ctx, tenant, asOf, r.batchSize, offset)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		for _, source := range batch {
			if err := r.regenerate(ctx, tenant, source, result); err != nil {
				result.Skipped++
				r.log.Error().Err(err).Str("tenant", tenant).Str("task", source.ID).Msg("regenerate failed")
			}
		}
		offset += len(batch)
	}
}

func (r *Regenerator) regenerate(ctx context.Context, tenant string, source model.Task, result *RegenerateResult) error {
	exists, err := r.taskRepo.HasSuccessor(ctx, tenant, source.ID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	// The next due date is anchored to the source's schedule, not to when
	// this job happens to run: a missed cycle produces the next date in
	// sequence instead of skipping ahead to now.
	next, ok, err := NextOccurrence(source.Recurrence(), source.DueDate)
	if err != nil {
		return err
	}
	if !ok {
		// End of the chain; terminal, not an error.
		return nil
	}

	successor := model.Task{
		ID:              uuid.NewString(),
		TenantID:        tenant,
		Kind:            source.Kind,
		Title:           source.Title,
		Description:     source.Description,
		Priority:        source.Priority,
		ActivityType:    source.ActivityType,
		DueDate:         next,
		Status:          model.StatusPending,
		AssignedTo:      source.AssignedTo,
		LinkedLeadID:    source.LinkedLeadID,
		LinkedContactID: source.LinkedContactID,
		Checklist:       templateChecklist(source.Checklist),
		Tags:            source.Tags,

		ParentOccurrenceID: source.ID,
		RecurrencePattern:  source.RecurrencePattern,
		RecurrenceEndDate:  source.RecurrenceEndDate,
	}

	if err := r.taskRepo.Create(ctx, &successor); err != nil {
		return err
	}
	result.Created++
	r.log.Debug().
		Str("tenant", tenant).
		Str("source", source.ID).
		Str("successor", successor.ID).
		Time("due", next).
		Msg("successor created")
	return nil
}

// templateChecklist copies the checklist with every completed flag reset:
// the successor starts from the template, not the historical instance.
func templateChecklist(items []model.ChecklistItem) []model.ChecklistItem {
	if len(items) == 0 {
		return nil
	}
	out := make([]model.ChecklistItem, len(items))
	for i, item := range items {
		item.Completed = false
		out[i] = item
	}
	return out
}
