package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/authhub/internal/models"
)

var errStoreNotReady = errors.New("cache: database store not initialised")

// key is reserved in MySQL, so the column is always referenced through quoted clauses.
var (
	keyColumn   = clause.Column{Name: "key"}
	valueColumn = clause.Column{Name: "value"}
)

// DatabaseStore keeps cache entries in the primary SQL database so OTP
// records and rate counters stay shared between nodes when Redis is disabled.
// Expired rows are ignored on read and removed by PurgeExpired.
type DatabaseStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewDatabaseStore constructs a database-backed Store.
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	if db == nil {
		return nil
	}
	return &DatabaseStore{db: db, now: time.Now}
}

// WithClock overrides the time source used for expiry checks.
func (s *DatabaseStore) WithClock(now func() time.Time) *DatabaseStore {
	if s != nil && now != nil {
		s.now = now
	}
	return s
}

func (s *DatabaseStore) session(ctx context.Context) (*gorm.DB, error) {
	if s == nil || s.db == nil {
		return nil, errStoreNotReady
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return s.db.WithContext(ctx), nil
}

// IncrementWithTTL bumps a fixed-window counter. The window opens on the first
// hit and is not extended by later ones.
func (s *DatabaseStore) IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	db, err := s.session(ctx)
	if err != nil {
		return 0, 0, err
	}
	if window <= 0 {
		window = time.Minute
	}

	now := s.now()
	var entry models.CacheEntry
	err = db.Transaction(func(tx *gorm.DB) error {
		// Seed a zero counter so concurrent first hits serialise on the row lock
		// instead of racing to insert.
		seed := models.CacheEntry{Key: key, Value: []byte("0"), ExpiresAt: now.Add(window)}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{keyColumn},
			DoNothing: true,
		}).Create(&seed).Error; err != nil {
			return err
		}
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where(clause.Eq{Column: keyColumn, Value: key}).Take(&entry).Error; err != nil {
			return err
		}

		count := int64(1)
		if entry.ExpiresAt.After(now) {
			current, _ := strconv.ParseInt(string(entry.Value), 10, 64)
			count = current + 1
		} else {
			entry.ExpiresAt = now.Add(window)
		}
		entry.Value = []byte(strconv.FormatInt(count, 10))
		return tx.Save(&entry).Error
	})
	if err != nil {
		return 0, 0, err
	}

	count, _ := strconv.ParseInt(string(entry.Value), 10, 64)
	return count, entry.ExpiresAt.Sub(now), nil
}

// Set upserts key. A non-positive ttl stores the entry without expiry.
func (s *DatabaseStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	db, err := s.session(ctx)
	if err != nil {
		return err
	}

	entry := models.CacheEntry{Key: key, Value: value}
	if ttl > 0 {
		entry.ExpiresAt = s.now().Add(ttl)
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{keyColumn},
		DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at", "updated_at"}),
	}).Create(&entry).Error
}

// Get returns the live value for key.
func (s *DatabaseStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	db, err := s.session(ctx)
	if err != nil {
		return nil, false, err
	}

	var entry models.CacheEntry
	err = db.Where(clause.Eq{Column: keyColumn, Value: key}).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if entry.Expired(s.now()) {
		return nil, false, nil
	}
	return entry.Value, true, nil
}

// Delete removes keys from the store.
func (s *DatabaseStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	db, err := s.session(ctx)
	if err != nil {
		return err
	}

	values := make([]any, len(keys))
	for i, key := range keys {
		values[i] = key
	}
	return db.Where(clause.IN{Column: keyColumn, Values: values}).Delete(&models.CacheEntry{}).Error
}

// CompareAndDelete removes key only while it still holds expected.
func (s *DatabaseStore) CompareAndDelete(ctx context.Context, key string, expected []byte) (bool, error) {
	db, err := s.session(ctx)
	if err != nil {
		return false, err
	}

	result := db.
		Where(clause.Eq{Column: keyColumn, Value: key}).
		Where(clause.Eq{Column: valueColumn, Value: expected}).
		Delete(&models.CacheEntry{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// PurgeExpired deletes entries whose expiry has passed and reports how many.
func (s *DatabaseStore) PurgeExpired(ctx context.Context) (int64, error) {
	db, err := s.session(ctx)
	if err != nil {
		return 0, err
	}

	result := db.
		Where("expires_at > ? AND expires_at < ?", time.Time{}, s.now()).
		Delete(&models.CacheEntry{})
	return result.RowsAffected, result.Error
}
