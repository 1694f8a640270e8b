package store

import "time"

// SavedVariable is one named control value that must survive restarts.
type SavedVariable struct {
	Key       string    `gorm:"primaryKey;size:64" json:"key"`
	Value     string    `gorm:"not null" json:"value"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// UptimeRecord tracks one run of the process, keyed by its start time. The
// row is inserted at boot and refreshed on the uptime interval, so a crash
// leaves the last written uptime behind.
type UptimeRecord struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	StartTime int64     `gorm:"uniqueIndex;not null" json:"start_time"`
	UptimeSec int64     `gorm:"not null;default:0" json:"uptime_sec"`
	MaxActive int       `gorm:"not null;default:0" json:"max_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Standing is a per-account score row. Week zero is the live window; the
// maintenance rotation stamps live rows with the window cutoff and the next
// window starts fresh.
type Standing struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID uint32    `gorm:"not null;uniqueIndex:idx_account_week" json:"account_id"`
	Week      int64     `gorm:"not null;default:0;uniqueIndex:idx_account_week" json:"week"`
	Points    int64     `gorm:"not null;default:0" json:"points"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
