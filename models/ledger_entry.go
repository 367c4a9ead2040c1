package models

import "time"

// SourceType is the coarse category of the real-world fact that produced a
// ledger entry. Together with UserID and SourceID it forms the dedup
// coordinate: at most one live entry may exist per (user, type, id) triple.
type SourceType string

const (
	SourceAttendance  SourceType = "attendance"
	SourceAchievement SourceType = "achievement"
	SourceAssignment  SourceType = "assignment"
	SourceBonus       SourceType = "bonus"
	SourceExam        SourceType = "exam"
)

// LedgerEntry is one immutable signed point adjustment for one user.
// Entries are never updated in place: a correction deletes the stale entry
// and writes a fresh one. Hard delete only: a soft-delete column would keep
// the dedup triple occupied in the unique index and block the replacement.
type LedgerEntry struct {
	ID         string     `gorm:"primaryKey;type:uuid" json:"id"`
	UserID     string     `gorm:"type:uuid;not null;uniqueIndex:idx_ledger_dedup,priority:1" json:"user_id"`
	Points     int        `gorm:"not null" json:"points"`
	Reason     string     `gorm:"not null" json:"reason"`
	SourceType SourceType `gorm:"type:varchar(32);not null;uniqueIndex:idx_ledger_dedup,priority:2" json:"source_type"`
	SourceID   string     `gorm:"not null;uniqueIndex:idx_ledger_dedup,priority:3" json:"source_id"`
	AwardedBy  string     `gorm:"not null;default:'system'" json:"awarded_by"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (LedgerEntry) TableName() string { return "ledger_entries" }
