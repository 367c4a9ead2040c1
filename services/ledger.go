// services/ledger.go
package services

import (
	"context"
	"fmt"
	"log"

	"cohort-points-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Notifier receives award notifications for asynchronous dispatch. Enqueue
// must never block; it reports false when the notification was dropped.
type Notifier interface {
	Enqueue(n models.Notification) bool
}

type LedgerService struct {
	DB       *gorm.DB
	Notifier Notifier // optional; nil disables notifications
}

func NewLedgerService(db *gorm.DB, notifier Notifier) *LedgerService {
	return &LedgerService{DB: db, Notifier: notifier}
}

// AwardResult is the executor outcome. Awarded=false with a nil error means
// an entry for the same (user, source_type, source_id) already existed,
// a normal outcome under at-least-once delivery rather than a failure.
type AwardResult struct {
	Awarded bool
	Entry   *models.LedgerEntry
}

// Award performs the conditional write for one candidate. The insert and the
// existence check are a single statement (ON CONFLICT DO NOTHING on the
// dedup index), so concurrent duplicate deliveries, including the login
// hook racing the nightly sweep for the same milestone, produce exactly one
// row. A read-then-write here would be a race window.
func (s *LedgerService) Award(ctx context.Context, userID string, cand Candidate) (*AwardResult, error) {
	entry := models.LedgerEntry{
		ID:         uuid.NewString(),
		UserID:     userID,
		Points:     cand.Points,
		Reason:     cand.Reason,
		SourceType: cand.SourceType,
		SourceID:   cand.SourceID,
		AwardedBy:  "system",
	}

	res := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "user_id"}, {Name: "source_type"}, {Name: "source_id"},
		},
		DoNothing: true,
	}).Create(&entry)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return &AwardResult{Awarded: false}, nil
	}

	s.notify(entry)
	return &AwardResult{Awarded: true, Entry: &entry}, nil
}

// Reverse hard-deletes the live entry for one dedup triple and returns how
// many rows went away (0 or 1). Deleting frees the unique index slot so the
// corrected fact can be re-awarded under the same key.
func (s *LedgerService) Reverse(ctx context.Context, userID string, sourceType models.SourceType, sourceID string) (int64, error) {
	res := s.DB.WithContext(ctx).
		Where("user_id = ? AND source_type = ? AND source_id = ?", userID, sourceType, sourceID).
		Delete(&models.LedgerEntry{})
	return res.RowsAffected, res.Error
}

// Reaward handles an authoritative update of a previously-rewarded fact:
// the stale entry (if the prior value produced one) is deleted before the
// new value is put through the normal award path. priorUserID is the owner
// of the stale entry; it differs from userID when the update reassigned the
// record to another student. prior/next are nil when the respective value
// maps to no entry.
func (s *LedgerService) Reaward(ctx context.Context, priorUserID, userID string, prior, next *Candidate) (*AwardResult, error) {
	if prior != nil {
		if _, err := s.Reverse(ctx, priorUserID, prior.SourceType, prior.SourceID); err != nil {
			return nil, err
		}
	}
	if next == nil {
		return &AwardResult{Awarded: false}, nil
	}
	return s.Award(ctx, userID, *next)
}

// notify hands the entry to the dispatch worker. Best-effort only: the
// ledger write has already committed and is never rolled back or retried on
// notification failure.
func (s *LedgerService) notify(entry models.LedgerEntry) {
	if s.Notifier == nil {
		return
	}

	title := "Points earned!"
	if entry.Points < 0 {
		title = "Points deducted"
	}
	n := models.Notification{
		UserID:          entry.UserID,
		Type:            "points_" + string(entry.SourceType),
		Title:           title,
		Message:         fmt.Sprintf("%+d points (%s)", entry.Points, entry.Reason),
		LinkURL:         "/points",
		RelatedEntityID: entry.ID,
	}
	if !s.Notifier.Enqueue(n) {
		log.Printf("⚠️ Notification queue full, dropped notification for entry %s", entry.ID)
	}
}
