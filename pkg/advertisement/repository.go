package advertisement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/admoderation/platform/pkg/cache"
	"github.com/admoderation/platform/pkg/common/logger"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("advertisement not found")

// TaskCacheInvalidator purges cached moderation tasks that belong to an item.
type TaskCacheInvalidator interface {
	InvalidateAllForItem(ctx context.Context, itemID int64) error
}

type Repository struct {
	db    *gorm.DB
	cache cache.Cache
	ttl   time.Duration
	tasks TaskCacheInvalidator
}

func NewRepository(db *gorm.DB, c cache.Cache, ttl time.Duration, tasks TaskCacheInvalidator) *Repository {
	return &Repository{db: db, cache: c, ttl: ttl, tasks: tasks}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&User{}, &Advertisement{})
}

func (r *Repository) CreateUser(ctx context.Context, u *User) error {
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *Repository) Create(ctx context.Context, ad *Advertisement) error {
	now := time.Now().UTC()
	ad.CreatedAt, ad.UpdatedAt = now, now
	if err := r.db.WithContext(ctx).Create(ad).Error; err != nil {
		return fmt.Errorf("create advertisement: %w", err)
	}
	logger.Log.WithFields(map[string]interface{}{
		"item_id":   ad.ID,
		"seller_id": ad.SellerID,
	}).Info("Advertisement created")
	return nil
}

// Exists is a dedicated existence query; callers must not infer existence
// from a failed insert.
func (r *Repository) Exists(ctx context.Context, itemID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&Advertisement{}).Where("id = ?", itemID).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check advertisement %d: %w", itemID, err)
	}
	return count > 0, nil
}

// GetWithSeller reads the scoring snapshot cache-first and repopulates the
// cache on a store hit.
func (r *Repository) GetWithSeller(ctx context.Context, itemID int64) (*Snapshot, error) {
	key := cache.AdvertisementKey(itemID)

	var cached Snapshot
	found, err := cache.GetJSON(ctx, r.cache, key, &cached)
	if err != nil {
		logger.Log.WithError(err).WithField("item_id", itemID).Warn("advertisement cache read failed")
	}
	if found {
		logger.Log.WithField("item_id", itemID).Debug("advertisement cache hit")
		return &cached, nil
	}

	var snap Snapshot
	res := r.db.WithContext(ctx).
		Table("advertisements AS a").
		Select("a.id AS item_id, a.seller_id, a.name, a.description, a.category, a.images_qty, u.is_verified_seller").
		Joins("JOIN users u ON a.seller_id = u.id").
		Where("a.id = ?", itemID).
		Limit(1).
		Scan(&snap)
	if res.Error != nil {
		return nil, fmt.Errorf("load advertisement %d: %w", itemID, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}

	if err := cache.SetJSON(ctx, r.cache, key, snap, r.ttl); err != nil {
		logger.Log.WithError(err).WithField("item_id", itemID).Warn("advertisement cache write failed")
	}
	return &snap, nil
}

// Close removes the advertisement. Its moderation rows go with it through
// the cascading foreign key, so their cache entries are purged first while
// the ids can still be enumerated.
//
// Enumeration and deletion are not coordinated with concurrent task
// creation for the same item: a task created in between can leave a cache
// entry behind until its TTL expires.
func (r *Repository) Close(ctx context.Context, itemID int64) error {
	log := logger.Log.WithField("item_id", itemID)

	if r.tasks != nil {
		if err := r.tasks.InvalidateAllForItem(ctx, itemID); err != nil {
			log.WithError(err).Warn("failed to invalidate moderation cache for item")
		}
	}

	res := r.db.WithContext(ctx).Delete(&Advertisement{}, itemID)
	if res.Error != nil {
		return fmt.Errorf("delete advertisement %d: %w", itemID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}

	if err := r.cache.Delete(ctx, cache.AdvertisementKey(itemID)); err != nil {
		log.WithError(err).Warn("failed to invalidate advertisement cache")
	}
	log.Info("Advertisement closed")
	return nil
}
