package model

import "time"

// Comment is an append-only note on a task. Comments never affect
// scheduling decisions.
type Comment struct {
	ID        string `gorm:"primaryKey"`
	TenantID  string `gorm:"index:idx_comments_tenant_task"`
	TaskID    string `gorm:"index:idx_comments_tenant_task"`
	Author    string
	Body      string
	CreatedAt time.Time
}
