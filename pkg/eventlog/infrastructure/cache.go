package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/akeemphilbert/eventcore/pkg/eventlog/domain"
)

// aggregateCacheRecord is the aggregate_cache table row.
type aggregateCacheRecord struct {
	ID   string    `gorm:"primaryKey"`
	Data string    `gorm:"type:text"`
	Time time.Time `gorm:"index"`
}

func (aggregateCacheRecord) TableName() string { return "aggregate_cache" }

// GormCache is a relational aggregation cache (C3), sharing the same
// *gorm.DB as GormStore: one connection pool, two tables.
type GormCache struct {
	db *gorm.DB
}

// NewGormCache opens the aggregate_cache table, migrating it idempotently.
func NewGormCache(db *gorm.DB) (*GormCache, error) {
	if err := db.AutoMigrate(&aggregateCacheRecord{}); err != nil {
		return nil, fmt.Errorf("%w: migrate aggregate_cache table: %v", domain.ErrFatal, err)
	}
	return &GormCache{db: db}, nil
}

func (c *GormCache) Read(ctx context.Context, fingerprint string, dest any) (time.Time, bool, error) {
	var row aggregateCacheRecord
	err := c.db.WithContext(ctx).Where("id = ?", fingerprint).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: read cache %s: %v", domain.ErrTransient, fingerprint, err)
	}
	if err := json.Unmarshal([]byte(row.Data), dest); err != nil {
		return time.Time{}, false, fmt.Errorf("%w: decode cached snapshot %s: %v", domain.ErrCorrupt, fingerprint, err)
	}
	return row.Time, true, nil
}

func (c *GormCache) Save(ctx context.Context, fingerprint string, snapshot any) error {
	encoded, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode cache snapshot %s: %w", fingerprint, err)
	}

	row := aggregateCacheRecord{ID: fingerprint, Data: string(encoded), Time: time.Now().UTC()}
	err = c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "time"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("%w: save cache %s: %v", domain.ErrTransient, fingerprint, err)
	}
	return nil
}

// MemoryCache is a sync.RWMutex-guarded in-process cache. Module does not
// use it: CacheProvider always builds a GormCache. Snapshots are stored
// already-encoded so Read
// always produces an independent copy; callers can never mutate cached
// state through a pointer returned from a previous Read.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryCacheEntry
}

type memoryCacheEntry struct {
	cutoff   time.Time
	snapshot []byte
}

// NewMemoryCache returns an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryCacheEntry)}
}

func (c *MemoryCache) Read(ctx context.Context, fingerprint string, dest any) (time.Time, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[fingerprint]
	c.mu.RUnlock()
	if !ok {
		return time.Time{}, false, nil
	}
	if err := json.Unmarshal(entry.snapshot, dest); err != nil {
		return time.Time{}, false, fmt.Errorf("%w: decode cached snapshot %s: %v", domain.ErrCorrupt, fingerprint, err)
	}
	return entry.cutoff, true, nil
}

func (c *MemoryCache) Save(ctx context.Context, fingerprint string, snapshot any) error {
	encoded, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode cache snapshot %s: %w", fingerprint, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[fingerprint] = memoryCacheEntry{cutoff: time.Now().UTC(), snapshot: encoded}
	return nil
}
