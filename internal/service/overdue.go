package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"crm-engine/internal/model"
	"crm-engine/internal/repository"
)

// OverdueResult summarizes one processor run. Flagged holds the records that
// transitioned to overdue during this run, for the calling layer to feed
// into whatever alert channel it owns.
type OverdueResult struct {
	Flagged []model.Task
	Woken   int
	Skipped int
}

// OverdueProcessor is the periodic job that flags pending records past
// their due date, exactly once per overdue transition. It is the sole
// writer of the pending -> overdue transition and never completes or
// deletes anything. Repeated runs are idempotent: a record that is already
// overdue with OverdueNotifiedAt set is not touched again.
type OverdueProcessor struct {
	taskRepo  *repository.TaskRepository
	log       zerolog.Logger
	batchSize int
	now       func() time.Time
}

func NewOverdueProcessor(taskRepo *repository.TaskRepository, log zerolog.Logger, batchSize int) *OverdueProcessor {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &OverdueProcessor{
		taskRepo:  taskRepo,
		log:       log.With().Str("job", "overdue-scan").Logger(),
		batchSize: batchSize,
		now:       time.Now,
	}
}

// Run scans every tenant independently; a failure inside one tenant's batch
// is logged and does not block the others.
func (p *OverdueProcessor) Run(ctx context.Context) (OverdueResult, error) {
	var result OverdueResult

	tenants, err := p.taskRepo.TenantIDs(ctx)
	if err != nil {
		return result, err
	}

	for _, tenant := range tenants {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := p.runTenant(ctx, tenant, &result); err != nil {
			p.log.Error().Err(err).Str("tenant", tenant).Msg("tenant scan failed")
		}
	}

	p.log.Info().
		Int("flagged", len(result.Flagged)).
		Int("woken", result.Woken).
		Int("skipped", result.Skipped).
		Msg("overdue scan finished")
	return result, nil
}

func (p *OverdueProcessor) runTenant(ctx context.Context, tenant string, result *OverdueResult) error {
	if err := p.wakeSnoozed(ctx, tenant, result); err != nil {
		return err
	}
	return p.flagOverdue(ctx, tenant, result)
}

// wakeSnoozed reverts snoozed records whose window elapsed back to pending,
// so the same run's overdue pass picks them up when their due date has also
// passed.
func (p *OverdueProcessor) wakeSnoozed(ctx context.Context, tenant string, result *OverdueResult) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch, err := p.taskRepo.ListSnoozeExpired(ctx, tenant, p.now(), p.batchSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		progressed := 0
		for _, task := range batch {
			_, err := p.taskRepo.Mutate(ctx, tenant, task.ID, func(t *model.Task) (bool, error) {
				if t.Status != model.StatusSnoozed || t.SnoozedUntil == nil || t.SnoozedUntil.After(p.now()) {
					return false, nil
				}
				t.Status = model.StatusPending
				t.SnoozedUntil = nil
				return true, nil
			})
			if err != nil {
				result.Skipped++
				p.log.Error().Err(err).Str("tenant", tenant).Str("task", task.ID).Msg("wake snoozed failed")
				continue
			}
			progressed++
			result.Woken++
		}
		// Every record either left the snoozed state or errored; bail out if
		// nothing moved so a poisoned batch cannot spin forever.
		if progressed == 0 {
			return nil
		}
	}
}

func (p *OverdueProcessor) flagOverdue(ctx context.Context, tenant string, result *OverdueResult) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch, err := p.taskRepo.ListPendingDue(ctx, tenant, p.now(), p.batchSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		progressed := 0
		for _, task := range batch {
			updated, err := p.taskRepo.Mutate(ctx, tenant, task.ID, func(t *model.Task) (bool, error) {
				if t.Status != model.StatusPending || !t.DueDate.Before(p.now()) {
					return false, nil
				}
				t.Status = model.StatusOverdue
				if t.OverdueNotifiedAt == nil {
					notified := p.now()
					t.OverdueNotifiedAt = &notified
				}
				return true, nil
			})
			if err != nil {
				result.Skipped++
				p.log.Error().Err(err).Str("tenant", tenant).Str("task", task.ID).Msg("flag overdue failed")
				continue
			}
			if updated.Status == model.StatusOverdue {
				progressed++
				result.Flagged = append(result.Flagged, *updated)
			}
		}
		if progressed == 0 {
			return nil
		}
	}
}
