package credentials

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/xanderlab/labauth/services/logging"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Entry is one row of the database-backed store. Keys are stored as SHA-256
// digests so raw tokens and email addresses never reach the table.
type Entry struct {
	KeyHash   string    `gorm:"primaryKey;size:64"`
	Value     string    `gorm:"type:text;not null"`
	ExpiresAt time.Time `gorm:"index;not null"`
	CreatedAt time.Time
}

func (Entry) TableName() string {
	return "credential_entries"
}

type DatabaseStore struct {
	db     *gorm.DB
	prefix string
	now    func() time.Time
	logger *logging.Service
}

type DatabaseOption func(*DatabaseStore)

func WithDatabaseClock(now func() time.Time) DatabaseOption {
	return func(d *DatabaseStore) {
		d.now = now
	}
}

func NewDatabaseStore(db *gorm.DB, prefix string, logger *logging.Service, opts ...DatabaseOption) *DatabaseStore {
	d := &DatabaseStore{
		db:     db,
		prefix: prefix,
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *DatabaseStore) Migrate() error {
	return d.db.AutoMigrate(&Entry{})
}

func (d *DatabaseStore) hash(ns Namespace, key string) string {
	sum := sha256.Sum256([]byte(fullKey(d.prefix, ns, key)))
	return hex.EncodeToString(sum[:])
}

func (d *DatabaseStore) SetWithTTL(ctx context.Context, ns Namespace, key, value string, ttl time.Duration) error {
	if err := checkEntry(key, ttl); err != nil {
		return err
	}

	now := d.now().UTC()
	entry := Entry{
		KeyHash:   d.hash(ns, key),
		Value:     value,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}

	err := d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key_hash"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at", "created_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("failed to store credential entry: %w", err)
	}

	return nil
}

func (d *DatabaseStore) Get(ctx context.Context, ns Namespace, key string) (string, bool, error) {
	var entries []Entry
	err := d.db.WithContext(ctx).
		Where("key_hash = ? AND expires_at > ?", d.hash(ns, key), d.now().UTC()).
		Limit(1).
		Find(&entries).Error
	if err != nil {
		return "", false, fmt.Errorf("failed to read credential entry: %w", err)
	}
	if len(entries) == 0 {
		return "", false, nil
	}
	return entries[0].Value, true, nil
}

func (d *DatabaseStore) Exists(ctx context.Context, ns Namespace, key string) (bool, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&Entry{}).
		Where("key_hash = ? AND expires_at > ?", d.hash(ns, key), d.now().UTC()).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check credential entry: %w", err)
	}
	return count > 0, nil
}

func (d *DatabaseStore) Delete(ctx context.Context, ns Namespace, key string) error {
	if err := d.db.WithContext(ctx).Where("key_hash = ?", d.hash(ns, key)).Delete(&Entry{}).Error; err != nil {
		return fmt.Errorf("failed to delete credential entry: %w", err)
	}
	return nil
}

// SetIfAbsent purges an expired row for the key and then inserts with
// ON CONFLICT DO NOTHING; the row count tells whether this caller won.
func (d *DatabaseStore) SetIfAbsent(ctx context.Context, ns Namespace, key, value string, ttl time.Duration) (bool, error) {
	if err := checkEntry(key, ttl); err != nil {
		return false, err
	}

	now := d.now().UTC()
	keyHash := d.hash(ns, key)
	db := d.db.WithContext(ctx)

	if err := db.Where("key_hash = ? AND expires_at <= ?", keyHash, now).Delete(&Entry{}).Error; err != nil {
		return false, fmt.Errorf("failed to purge expired credential entry: %w", err)
	}

	result := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&Entry{
		KeyHash:   keyHash,
		Value:     value,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	})
	if result.Error != nil {
		return false, fmt.Errorf("failed to store credential entry: %w", result.Error)
	}

	return result.RowsAffected == 1, nil
}

func (d *DatabaseStore) Sweep(ctx context.Context) (int, error) {
	result := d.db.WithContext(ctx).Where("expires_at <= ?", d.now().UTC()).Delete(&Entry{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to sweep credential entries: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		d.logger.Debug("swept expired credential entries", zap.Int64("expired_count", result.RowsAffected))
	}

	return int(result.RowsAffected), nil
}
