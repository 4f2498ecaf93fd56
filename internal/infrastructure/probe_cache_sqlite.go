package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/yourusername/vidsplit-go/internal/domain"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// probeCacheEntry is one cached probe result
type probeCacheEntry struct {
	URL       string `gorm:"primaryKey"`
	VideoID   string `gorm:"index"`
	Payload   string
	UpdatedAt time.Time `gorm:"index"`
}

func (probeCacheEntry) TableName() string {
	return "probe_cache"
}

// SQLiteProbeCache implements domain.ProbeCache using SQLite
type SQLiteProbeCache struct {
	db *gorm.DB
}

// NewSQLiteProbeCache opens (or creates) the cache database
func NewSQLiteProbeCache(dbPath string) (*SQLiteProbeCache, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&probeCacheEntry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &SQLiteProbeCache{db: db}, nil
}

// Get returns the cached metadata for url if it is younger than maxAge.
// A miss returns nil without error.
func (c *SQLiteProbeCache) Get(url string, maxAge time.Duration) (*domain.VideoMetadata, error) {
	var entry probeCacheEntry
	err := c.db.Where("url = ? AND updated_at > ?", url, time.Now().Add(-maxAge)).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var meta domain.VideoMetadata
	if err := json.Unmarshal([]byte(entry.Payload), &meta); err != nil {
		return nil, fmt.Errorf("corrupt cache entry for %s: %w", url, err)
	}
	return &meta, nil
}

// Put inserts or replaces the cached metadata for url
func (c *SQLiteProbeCache) Put(url string, meta *domain.VideoMetadata) error {
	payload, err := json.Marshal(meta)
	if err != nil {
		return err
	}

	entry := probeCacheEntry{
		URL:       url,
		VideoID:   meta.ID,
		Payload:   string(payload),
		UpdatedAt: time.Now(),
	}
	return c.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "url"}},
		DoUpdates: clause.AssignmentColumns([]string{"video_id", "payload", "updated_at"}),
	}).Create(&entry).Error
}

// Prune deletes entries older than maxAge and returns how many were removed
func (c *SQLiteProbeCache) Prune(maxAge time.Duration) (int64, error) {
	result := c.db.Where("updated_at <= ?", time.Now().Add(-maxAge)).Delete(&probeCacheEntry{})
	return result.RowsAffected, result.Error
}

// Count returns the number of cached entries
func (c *SQLiteProbeCache) Count() (int64, error) {
	var count int64
	err := c.db.Model(&probeCacheEntry{}).Count(&count).Error
	return count, err
}

// Close closes the database connection
func (c *SQLiteProbeCache) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CachingProber serves probe results from a cache before asking the backend
type CachingProber struct {
	next   domain.MetadataProber
	cache  domain.ProbeCache
	maxAge time.Duration
	logger *zap.Logger
}

// NewCachingProber wraps next with cache
func NewCachingProber(next domain.MetadataProber, cache domain.ProbeCache, maxAge time.Duration, logger *zap.Logger) *CachingProber {
	return &CachingProber{next: next, cache: cache, maxAge: maxAge, logger: logger}
}

// Probe returns a cached result when fresh, otherwise probes and stores.
// Cache errors are logged and never fail the probe.
func (p *CachingProber) Probe(ctx context.Context, url string) (*domain.VideoMetadata, error) {
	cached, err := p.cache.Get(url, p.maxAge)
	if err != nil {
		p.logger.Warn("Probe cache read failed", zap.String("url", url), zap.Error(err))
	}
	if cached != nil {
		p.logger.Debug("Probe cache hit", zap.String("url", url), zap.String("video_id", cached.ID))
		return cached, nil
	}

	meta, err := p.next.Probe(ctx, url)
	if err != nil {
		return nil, err
	}

	if err := p.cache.Put(url, meta); err != nil {
		p.logger.Warn("Probe cache write failed", zap.String("url", url), zap.Error(err))
	}
	return meta, nil
}
