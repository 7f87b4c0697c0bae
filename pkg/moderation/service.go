package moderation

import (
	"context"
	"fmt"

	"github.com/admoderation/platform/pkg/advertisement"
	"github.com/admoderation/platform/pkg/common/logger"
	"github.com/admoderation/platform/pkg/observability/metrics"
)

type ItemChecker interface {
	Exists(ctx context.Context, itemID int64) (bool, error)
}

type Publisher interface {
	PublishJSON(ctx context.Context, key string, v interface{}) error
}

type TaskReader interface {
	GetByID(ctx context.Context, taskID int64) (*Task, error)
}

type TaskCreator interface {
	TaskReader
	CreatePending(ctx context.Context, itemID int64) (*Task, error)
}

type StartResult struct {
	TaskID  int64  `json:"task_id"`
	Status  Status `json:"status"`
	Message string `json:"message"`
}

// Service is the request-facing side of the pipeline.
type Service struct {
	items    ItemChecker
	tasks    TaskCreator
	producer Publisher
}

func NewService(items ItemChecker, tasks TaskCreator, producer Publisher) *Service {
	return &Service{items: items, tasks: tasks, producer: producer}
}

// StartModeration records a pending task for an existing advertisement and
// enqueues its envelope.
//
// If the publish fails the task stays pending with nothing to pick it up;
// that case is logged with orphaned_pending=true and counted.
func (s *Service) StartModeration(ctx context.Context, itemID int64) (*StartResult, error) {
	exists, err := s.items.Exists(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("advertisement %d: %w", itemID, advertisement.ErrNotFound)
	}

	task, err := s.tasks.CreatePending(ctx, itemID)
	if err != nil {
		return nil, err
	}
	metrics.TaskStarted()

	env := NewEnvelope(task.ID, itemID)
	if err := s.producer.PublishJSON(ctx, env.Key(), env); err != nil {
		metrics.EnvelopePublishFailed()
		logger.Log.WithError(err).WithFields(map[string]interface{}{
			"task_id":          task.ID,
			"item_id":          itemID,
			"orphaned_pending": true,
		}).Error("moderation task left pending: envelope publish failed")
		return nil, fmt.Errorf("publish moderation envelope for task %d: %w", task.ID, err)
	}

	logger.Log.WithFields(map[string]interface{}{
		"task_id": task.ID,
		"item_id": itemID,
	}).Info("Moderation request accepted")

	return &StartResult{
		TaskID:  task.ID,
		Status:  StatusPending,
		Message: "Moderation request accepted",
	}, nil
}

func (s *Service) GetStatus(ctx context.Context, taskID int64) (*Task, error) {
	return s.tasks.GetByID(ctx, taskID)
}
