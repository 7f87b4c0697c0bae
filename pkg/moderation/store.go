package moderation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Store is the durable source of truth for moderation tasks.
type Store interface {
	CreatePending(ctx context.Context, itemID int64) (*Task, error)
	GetByID(ctx context.Context, taskID int64) (*Task, error)
	UpdateResult(ctx context.Context, taskID int64, res Result) error
	TaskIDsByItem(ctx context.Context, itemID int64) ([]int64, error)
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) AutoMigrate() error {
	return s.db.AutoMigrate(&Task{})
}

func (s *GormStore) CreatePending(ctx context.Context, itemID int64) (*Task, error) {
	task := &Task{
		ItemID:    itemID,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(task).Error; err != nil {
		return nil, fmt.Errorf("create pending task for item %d: %w", itemID, err)
	}
	return task, nil
}

func (s *GormStore) GetByID(ctx context.Context, taskID int64) (*Task, error) {
	var task Task
	result := s.db.WithContext(ctx).First(&task, "id = ?", taskID)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrTaskNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &task, nil
}

// UpdateResult applies the terminal transition in one conditional UPDATE so
// only a pending row moves. When nothing moved, the row is inspected:
// re-applying the identical outcome is a no-op, any other outcome is
// rejected with ErrTaskFinalized and the stored one is kept.
func (s *GormStore) UpdateResult(ctx context.Context, taskID int64, res Result) error {
	if err := res.Validate(); err != nil {
		return err
	}

	result := s.db.WithContext(ctx).Model(&Task{}).
		Where("id = ? AND status = ?", taskID, StatusPending).
		Updates(map[string]interface{}{
			"status":        res.Status,
			"is_violation":  res.IsViolation,
			"probability":   res.Probability,
			"error_message": res.ErrorMessage,
			"processed_at":  time.Now().UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("update task %d: %w", taskID, result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	current, err := s.GetByID(ctx, taskID)
	if err != nil {
		return err
	}
	if current.Matches(res) {
		return nil
	}
	return fmt.Errorf("%w: task %d is already %s with a different outcome, refusing %s", ErrTaskFinalized, taskID, current.Status, res.Status)
}

func (s *GormStore) TaskIDsByItem(ctx context.Context, itemID int64) ([]int64, error) {
	var ids []int64
	err := s.db.WithContext(ctx).Model(&Task{}).Where("item_id = ?", itemID).Order("id").Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list tasks for item %d: %w", itemID, err)
	}
	return ids, nil
}
