package model

import (
	"time"
)

// DailyClick holds one counter row per (link, UTC calendar day). Rows are
// created on the first click of the day and incremented afterwards, never
// decremented.
type DailyClick struct {
	ID     uint      `gorm:"primarykey" json:"id"`
	LinkID uint      `gorm:"not null;uniqueIndex:idx_link_day" json:"link_id"`
	Date   time.Time `gorm:"not null;uniqueIndex:idx_link_day" json:"date"`
	Clicks int64     `gorm:"not null;default:0" json:"clicks"`
}

// TableName sets the table name.
func (DailyClick) TableName() string {
	return "daily_clicks"
}
