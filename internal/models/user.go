package models

import "time"

// DateLayout is the calendar-date format stored in usage records.
const DateLayout = "2006-01-02"

// EpochDate is written as LastUsageDate for new users so their first
// quota check always lands on a "new day".
const EpochDate = "1970-01-01"

// UsageRecord tracks one Telegram user's daily face-swap consumption.
// UsageCount only counts usage on LastUsageDate; on any other date it is
// treated as zero.
type UsageRecord struct {
	UserID        int64     `gorm:"column:user_id;primaryKey;autoIncrement:false" json:"user_id"`
	Username      string    `gorm:"column:username;size:255" json:"username"`
	FirstName     string    `gorm:"column:first_name;size:255" json:"first_name"`
	UsageCount    int       `gorm:"column:usage_count;not null;default:0" json:"usage_count"`
	LastUsageDate string    `gorm:"column:last_usage_date;size:10;not null" json:"last_usage_date"`
	FirstSeenDate string    `gorm:"column:first_seen_date;size:10;not null" json:"first_seen_date"`
	CreatedAt     time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (UsageRecord) TableName() string {
	return "users"
}
