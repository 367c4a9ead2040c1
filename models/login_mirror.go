// models/login_mirror.go
package models

import "time"

// LoginMirror is a local copy of one student login day, mirrored from the
// platform's session service. One row per user per calendar day; the mirror
// is the only login source the streak detector reads.
// Table name: login_mirror
type LoginMirror struct {
	ID         string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID     string    `gorm:"type:uuid;not null;uniqueIndex:idx_login_user_date,priority:1" json:"user_id"`
	LoginDate  string    `gorm:"type:varchar(10);not null;uniqueIndex:idx_login_user_date,priority:2" json:"login_date"` // YYYY-MM-DD
	RecordedAt time.Time `gorm:"autoCreateTime" json:"recorded_at"`
}

func (LoginMirror) TableName() string { return "login_mirror" }
