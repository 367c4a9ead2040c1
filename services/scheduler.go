// services/scheduler.go
package services

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"cohort-points-system/models"
	"cohort-points-system/utils"

	"github.com/go-co-op/gocron/v2"
)

// StartSchedulers runs the two periodic jobs of the engine: the daily streak
// sweep and, when the archive bucket is configured, the nightly ledger
// export. Both jobs only touch the ledger through the same idempotent award
// path as the hook handlers.
func (s *LedgerService) StartSchedulers(archiveEnabled bool) {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	// Daily: streak/absence milestones for every mirrored user
	_, _ = sched.NewJob(
		gocron.DurationJob(24*time.Hour),
		gocron.NewTask(func() {
			if err := s.RunStreakSweep(context.Background(), time.Now()); err != nil {
				log.Printf("[Scheduler] streak sweep failed: %v", err)
			}
		}),
	)

	if !archiveEnabled {
		log.Println("⚠️  Ledger archive disabled (R2 not configured)")
		return
	}

	// Nightly: export yesterday's entries to the archive bucket
	_, _ = sched.NewJob(
		gocron.DurationJob(24*time.Hour),
		gocron.NewTask(func() {
			day := time.Now().UTC().AddDate(0, 0, -1)
			if err := s.ArchiveDay(context.Background(), day); err != nil {
				log.Printf("[Scheduler] ledger archive failed for %s: %v", day.Format(DateLayout), err)
			}
		}),
	)
}

// ArchiveDay exports every entry written on the given calendar day as one
// JSON object to the archive bucket. Best-effort: failures are logged by the
// caller and not retried in-process; the ledger itself stays the system of
// record.
func (s *LedgerService) ArchiveDay(ctx context.Context, day time.Time) error {
	from := truncateToDay(day)
	to := from.AddDate(0, 0, 1)

	var entries []models.LedgerEntry
	if err := s.DB.WithContext(ctx).
		Where("created_at >= ? AND created_at < ?", from, to).
		Order("created_at ASC").
		Find(&entries).Error; err != nil {
		return err
	}

	data, err := json.Marshal(map[string]any{
		"day":     from.Format(DateLayout),
		"count":   len(entries),
		"entries": entries,
	})
	if err != nil {
		return err
	}

	key := "ledger/" + from.Format(DateLayout) + ".json"
	if err := utils.UploadLedgerArchive(ctx, key, data); err != nil {
		return err
	}
	log.Printf("📦 Archived %d ledger entries to %s", len(entries), key)
	return nil
}
