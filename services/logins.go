// services/logins.go
package services

import (
	"context"
	"log"
	"time"

	"cohort-points-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm/clause"
)

// How far back the detector reads login days. A streak that spans the whole
// window reached the query edge rather than a real gap, so its true length
// is unknown; CheckLoginMilestones refuses to claim a bonus for it.
const loginWindowDays = 90

// LoginMilestoneResult reports what the streak check did for one user on one
// reference date.
type LoginMilestoneResult struct {
	StreakLength   int
	StreakHit      bool
	StreakAwarded  bool
	AbsenceHit     bool
	AbsenceAwarded bool
}

// RecordLogin upserts one login day into the mirror. Duplicate deliveries of
// the same login are absorbed by the (user_id, login_date) unique index.
func (s *LedgerService) RecordLogin(ctx context.Context, userID string, loginTime time.Time) error {
	row := models.LoginMirror{
		ID:        uuid.NewString(),
		UserID:    userID,
		LoginDate: loginTime.UTC().Format(DateLayout),
	}
	return s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "login_date"}},
		DoNothing: true,
	}).Create(&row).Error
}

// CheckLoginMilestones runs the streak detector for one user against the
// reference date and pushes any milestone through the idempotent award path.
// The login hook and the nightly sweep both call this, so the two trigger
// paths share one predicate and one dedup key format.
func (s *LedgerService) CheckLoginMilestones(ctx context.Context, userID string, ref time.Time) (*LoginMilestoneResult, error) {
	dates, err := s.loginDates(ctx, userID, ref)
	if err != nil {
		return nil, err
	}

	m := DetectMilestones(dates, ref)
	// The walk consumed every day the query can see: the streak continues
	// past the window edge, so its length modulo 7 is meaningless. Without
	// this guard a >= 91-day streak would measure as exactly 91 (a multiple
	// of 7) on every following day and fire the bonus daily.
	if m.StreakLength > loginWindowDays {
		m.Streak = false
	}
	out := &LoginMilestoneResult{
		StreakLength: m.StreakLength,
		StreakHit:    m.Streak,
		AbsenceHit:   m.Absence,
	}

	if m.Streak {
		res, err := s.Award(ctx, userID, StreakBonusCandidate(ref))
		if err != nil {
			return nil, err
		}
		out.StreakAwarded = res.Awarded
	}
	if m.Absence {
		res, err := s.Award(ctx, userID, AbsencePenaltyCandidate(ref))
		if err != nil {
			return nil, err
		}
		out.AbsenceAwarded = res.Awarded
	}
	return out, nil
}

// RunStreakSweep iterates every user present in the login mirror and applies
// the milestone check with ref as "today". Users are processed sequentially;
// racing the login hook for the same milestone is safe because the award is
// conditional on the dedup index.
func (s *LedgerService) RunStreakSweep(ctx context.Context, ref time.Time) error {
	var userIDs []string
	if err := s.DB.WithContext(ctx).
		Model(&models.LoginMirror{}).
		Distinct("user_id").
		Pluck("user_id", &userIDs).Error; err != nil {
		return err
	}

	streaks, absences := 0, 0
	for _, userID := range userIDs {
		res, err := s.CheckLoginMilestones(ctx, userID, ref)
		if err != nil {
			log.Printf("[StreakSweep] milestone check failed for user %s: %v", userID, err)
			continue
		}
		if res.StreakAwarded {
			streaks++
		}
		if res.AbsenceAwarded {
			absences++
		}
	}
	log.Printf("[StreakSweep] %d users checked, %d streak bonuses, %d absence penalties", len(userIDs), streaks, absences)
	return nil
}

func (s *LedgerService) loginDates(ctx context.Context, userID string, ref time.Time) ([]string, error) {
	since := truncateToDay(ref).AddDate(0, 0, -loginWindowDays).Format(DateLayout)
	var dates []string
	err := s.DB.WithContext(ctx).
		Model(&models.LoginMirror{}).
		Where("user_id = ? AND login_date >= ?", userID, since).
		Pluck("login_date", &dates).Error
	return dates, err
}
