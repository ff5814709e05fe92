package model

import "time"

// Record kinds.
const (
	KindTask     = "task"
	KindReminder = "reminder"
)

// Task statuses.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusOverdue   = "overdue"
	StatusSnoozed   = "snoozed"
)

// Priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Recurrence patterns.
const (
	RecurDaily    = "daily"
	RecurWeekly   = "weekly"
	RecurBiweekly = "biweekly"
	RecurMonthly  = "monthly"
)

// RecurrenceRule describes how a task repeats. A nil rule means the task
// never generates successors.
type RecurrenceRule struct {
	Pattern string     `json:"pattern"`
	EndDate *time.Time `json:"end_date,omitempty"`
}

// ChecklistItem is an embedded checklist entry. Order inside a task is
// insertion order and survives updates.
type ChecklistItem struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// Task represents a task or reminder owned by a single tenant. Every query
// against this table is partitioned by TenantID.
type Task struct {
	ID                 string `gorm:"primaryKey"`
	TenantID           string `gorm:"index:idx_tasks_tenant_status;index:idx_tasks_tenant_parent"`
	Kind               string
	Title              string
	Description        string
	Priority           string
	ActivityType       string
	DueDate            time.Time
	Status             string `gorm:"index:idx_tasks_tenant_status"`
	AssignedTo         string
	LinkedLeadID       string
	LinkedContactID    string
	RecurrencePattern  string
	RecurrenceEndDate  *time.Time
	ParentOccurrenceID string          `gorm:"index:idx_tasks_tenant_parent"`
	Checklist          []ChecklistItem `gorm:"serializer:json"`
	Tags               []string        `gorm:"serializer:json"`
	SnoozedUntil       *time.Time
	OverdueNotifiedAt  *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Recurrence returns the task's recurrence rule, or nil for one-shot tasks.
func (t *Task) Recurrence() *RecurrenceRule {
	if t.RecurrencePattern == "" {
		return nil
	}
	return &RecurrenceRule{Pattern: t.RecurrencePattern, EndDate: t.RecurrenceEndDate}
}

// SetRecurrence flattens a rule into the stored columns.
func (t *Task) SetRecurrence(rule *RecurrenceRule) {
	if rule == nil {
		t.RecurrencePattern = ""
		t.RecurrenceEndDate = nil
		return
	}
	t.RecurrencePattern = rule.Pattern
	t.RecurrenceEndDate = rule.EndDate
}

// EffectiveDue is the deadline that currently matters for ordering: once a
// task is snoozed, SnoozedUntil replaces the original due date.
func (t *Task) EffectiveDue() time.Time {
	if t.Status == StatusSnoozed && t.SnoozedUntil != nil {
		return *t.SnoozedUntil
	}
	return t.DueDate
}

// ValidPriority reports whether p is one of the known priority values.
func ValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// ValidKind reports whether k is a known record kind.
func ValidKind(k string) bool {
	return k == KindTask || k == KindReminder
}

// ValidRecurrencePattern reports whether p is a known recurrence pattern.
func ValidRecurrencePattern(p string) bool {
	switch p {
	case RecurDaily, RecurWeekly, RecurBiweekly, RecurMonthly:
		return true
	}
	return false
}
