package model

import "time"

// Post is a user's daily photo. Photo storage is handled elsewhere; only the
// reference and the capture time are tracked here.
type Post struct {
	ID        int64     `gorm:"primaryKey"`
	UserID    string    `gorm:"size:64;not null;index:idx_post_user_time,priority:1;uniqueIndex:idx_post_user_day,priority:1"`
	PhotoID   string    `gorm:"size:128;not null"`
	Caption   string    `gorm:"size:512"`
	Timestamp time.Time `gorm:"not null;index:idx_post_user_time,priority:2;index"`
	// LocalDay is the reference-zone date (YYYY-MM-DD) of a post made through
	// the gated endpoint. Posts written by other services leave it NULL.
	LocalDay *string `gorm:"size:10;uniqueIndex:idx_post_user_day,priority:2"`
}

// Friendship is one directed edge of the friend graph.
type Friendship struct {
	UserID   string `gorm:"primaryKey;size:64"`
	FriendID string `gorm:"primaryKey;size:64"`
}
