package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"crm-engine/internal/model"
	"crm-engine/internal/repository"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "engine.db")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&model.Task{}, &model.Comment{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func newTestService(t *testing.T) (*TaskService, *repository.TaskRepository, *gorm.DB) {
	t.Helper()

	db := newTestDB(t)
	taskRepo := repository.NewTaskRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	return NewTaskService(taskRepo, commentRepo), taskRepo, db
}

func mustCreateTask(t *testing.T, svc *TaskService, tenantID string, input TaskInput) *model.Task {
	t.Helper()

	task, err := svc.CreateTask(context.Background(), tenantID, input)
	if err != nil {
		t.Fatalf("failed to prepare task: %v", err)
	}
	return task
}

func discardLogger() zerolog.Logger {
	return zerolog.Nop()
}

func timePtr(v time.Time) *time.Time {
	return &v
}
