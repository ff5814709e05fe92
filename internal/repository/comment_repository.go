package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"crm-engine/internal/model"
)

// CommentRepository stores the append-only comment log per task.
type CommentRepository struct {
	db *gorm.DB
}

func NewCommentRepository(db *gorm.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

func (r *CommentRepository) Create(ctx context.Context, comment *model.Comment) error {
	if err := r.db.WithContext(ctx).Create(comment).Error; err != nil {
		return fmt.Errorf("create comment: %w", errors.Join(model.ErrInternal, err))
	}
	return nil
}

func (r *CommentRepository) ListByTask(ctx context.Context, tenantID, taskID string) ([]model.Comment, error) {
	var comments []model.Comment
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND task_id = ?", tenantID, taskID).
		Order("created_at ASC, id ASC").
		Find(&comments).Error; err != nil {
		return nil, fmt.Errorf("list comments: %w", errors.Join(model.ErrInternal, err))
	}
	return comments, nil
}
