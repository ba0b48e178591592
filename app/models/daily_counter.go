package models

import (
	"time"
)

// DailyCounter is one row per calendar date holding the count of regular
// (free-tier) messages admitted that day. Created on first message of the
// day, incremented per accepted message, reset by the scheduled job.
type DailyCounter struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Date         string    `gorm:"uniqueIndex;type:varchar(10);not null" json:"date"` // YYYY-MM-DD
	RegularCount int       `gorm:"default:0" json:"regular_count"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// CounterDate formats a timestamp to the counter's calendar-date key.
func CounterDate(t time.Time) string {
	return t.Format("2006-01-02")
}
