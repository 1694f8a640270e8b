// Package store persists the world's control state in a local sqlite
// database: the maintenance window, per-run uptime records and the rotating
// account standings.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const keyNextMaintenance = "next_maintenance_date"

// Store wraps the sqlite handle. Safe for concurrent use.
type Store struct {
	db *gorm.DB
}

// Open creates the database file (and its directory) if needed, switches it
// to WAL mode and migrates the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	if _, err := sqlDB.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := db.AutoMigrate(&SavedVariable{}, &UptimeRecord{}, &Standing{}); err != nil {
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// LoadNextMaintenance reads the persisted maintenance window. found is false
// when no window has been seeded yet.
func (s *Store) LoadNextMaintenance(ctx context.Context) (time.Time, bool, error) {
	var row SavedVariable
	err := s.db.WithContext(ctx).Where("key = ?", keyNextMaintenance).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("load %s: %w", keyNextMaintenance, err)
	}
	unix, err := strconv.ParseInt(row.Value, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse %s=%q: %w", keyNextMaintenance, row.Value, err)
	}
	return time.Unix(unix, 0), true, nil
}

// SaveNextMaintenance upserts the maintenance window.
func (s *Store) SaveNextMaintenance(ctx context.Context, next time.Time) error {
	value := strconv.FormatInt(next.Unix(), 10)
	return s.db.WithContext(ctx).
		Where("key = ?", keyNextMaintenance).
		Assign(SavedVariable{Value: value}).
		FirstOrCreate(&SavedVariable{Key: keyNextMaintenance, Value: value}).Error
}

// RotateStandings closes the live scoring window: every week-zero row gets
// stamped with the cutoff, after which fresh week-zero rows accumulate the
// next window.
func (s *Store) RotateStandings(ctx context.Context, cutoff time.Time) error {
	return s.db.WithContext(ctx).Model(&Standing{}).
		Where("week = 0").
		Update("week", cutoff.Unix()).Error
}

// AwardPoints adds points to an account's live standing row, creating it on
// first award.
func (s *Store) AwardPoints(ctx context.Context, accountID uint32, points int64) error {
	row := Standing{AccountID: accountID, Week: 0}
	if err := s.db.WithContext(ctx).
		Where("account_id = ? AND week = 0", accountID).
		FirstOrCreate(&row).Error; err != nil {
		return fmt.Errorf("ensure standing for account %d: %w", accountID, err)
	}
	return s.db.WithContext(ctx).Model(&Standing{}).
		Where("id = ?", row.ID).
		Update("points", gorm.Expr("points + ?", points)).Error
}

// TopStandings lists the live window's best accounts, highest first.
func (s *Store) TopStandings(ctx context.Context, limit int) ([]Standing, error) {
	if limit <= 0 {
		limit = 10
	}
	var rows []Standing
	err := s.db.WithContext(ctx).
		Where("week = 0").
		Order("points DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// InsertUptime records the start of a run. Idempotent for the same start
// time, so a quick restart with a coarse clock cannot duplicate the row.
func (s *Store) InsertUptime(ctx context.Context, start time.Time) error {
	row := UptimeRecord{StartTime: start.Unix()}
	return s.db.WithContext(ctx).
		Where("start_time = ?", row.StartTime).
		FirstOrCreate(&row).Error
}

// UpdateUptime refreshes the run's uptime and session high-water mark.
func (s *Store) UpdateUptime(ctx context.Context, start time.Time, uptime time.Duration, maxActive int) error {
	return s.db.WithContext(ctx).Model(&UptimeRecord{}).
		Where("start_time = ?", start.Unix()).
		Updates(map[string]any{
			"uptime_sec": int64(uptime.Seconds()),
			"max_active": maxActive,
		}).Error
}

// RecentUptimes lists the latest runs, newest first.
func (s *Store) RecentUptimes(ctx context.Context, limit int) ([]UptimeRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	var rows []UptimeRecord
	err := s.db.WithContext(ctx).
		Order("start_time DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
