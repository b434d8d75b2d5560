package model

import "time"

// NotificationTypeDaily marks the once-per-day prompt record.
const NotificationTypeDaily = "daily"

// Notification is the prompt moment for one local calendar day.
type Notification struct {
	ID          string    `gorm:"primaryKey;size:36"`
	Type        string    `gorm:"size:16;not null;index:idx_notification_day,priority:4"`
	Year        int       `gorm:"not null;index:idx_notification_day,priority:1"`
	Month       int       `gorm:"not null;index:idx_notification_day,priority:2"`
	Day         int       `gorm:"not null;index:idx_notification_day,priority:3"`
	ScheduledAt time.Time `gorm:"not null"` // UTC
	// DispatchedAt is set once, by whichever dispatcher invocation claims the record.
	DispatchedAt *time.Time
	CreatedAt    time.Time `gorm:"not null"`
}
