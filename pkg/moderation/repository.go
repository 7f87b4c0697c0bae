package moderation

import (
	"context"
	"time"

	"github.com/admoderation/platform/pkg/cache"
	"github.com/admoderation/platform/pkg/common/logger"
)

// Repository layers cache-aside over the Store. Only terminal snapshots are
// ever cached: they are immutable, so an entry cannot go stale, and a
// pending snapshot can never outlive the write that completes it.
type Repository struct {
	store Store
	cache cache.Cache
	ttl   time.Duration
}

func NewRepository(store Store, c cache.Cache, ttl time.Duration) *Repository {
	return &Repository{store: store, cache: c, ttl: ttl}
}

// CreatePending writes straight to the store; pending tasks are not cached.
func (r *Repository) CreatePending(ctx context.Context, itemID int64) (*Task, error) {
	task, err := r.store.CreatePending(ctx, itemID)
	if err != nil {
		return nil, err
	}
	logger.Log.WithFields(map[string]interface{}{
		"task_id": task.ID,
		"item_id": itemID,
	}).Info("Pending moderation created")
	return task, nil
}

func (r *Repository) GetByID(ctx context.Context, taskID int64) (*Task, error) {
	key := cache.ModerationKey(taskID)
	log := logger.Log.WithField("task_id", taskID)

	var cached Task
	found, err := cache.GetJSON(ctx, r.cache, key, &cached)
	if err != nil {
		log.WithError(err).Warn("moderation cache read failed, falling back to store")
	}
	if found {
		log.Debug("moderation cache hit")
		return &cached, nil
	}

	task, err := r.store.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if task.Status.Terminal() {
		if err := cache.SetJSON(ctx, r.cache, key, task, r.ttl); err != nil {
			log.WithError(err).Warn("moderation cache write failed")
		}
	}
	return task, nil
}

// UpdateResult writes the terminal fields, then drops the cache entry for
// the task whatever the write's outcome.
func (r *Repository) UpdateResult(ctx context.Context, taskID int64, res Result) error {
	err := r.store.UpdateResult(ctx, taskID, res)
	r.invalidate(ctx, taskID)
	if err != nil {
		return err
	}

	logger.Log.WithFields(map[string]interface{}{
		"task_id": taskID,
		"status":  res.Status,
	}).Info("Moderation result stored")
	return nil
}

func (r *Repository) TaskIDsByItem(ctx context.Context, itemID int64) ([]int64, error) {
	return r.store.TaskIDsByItem(ctx, itemID)
}

// InvalidateAllForItem enumerates the item's tasks and drops their cache
// entries. It holds no lock: a task created for the same item between the
// two steps keeps whatever entry it gets later, until its TTL.
func (r *Repository) InvalidateAllForItem(ctx context.Context, itemID int64) error {
	ids, err := r.store.TaskIDsByItem(ctx, itemID)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = cache.ModerationKey(id)
	}
	if err := r.cache.Delete(ctx, keys...); err != nil {
		return err
	}

	logger.Log.WithFields(map[string]interface{}{
		"item_id": itemID,
		"tasks":   len(ids),
	}).Info("Moderation cache invalidated for item")
	return nil
}

func (r *Repository) invalidate(ctx context.Context, taskID int64) {
	if err := r.cache.Delete(ctx, cache.ModerationKey(taskID)); err != nil {
		logger.Log.WithError(err).WithField("task_id", taskID).Warn("moderation cache invalidation failed")
	}
}
