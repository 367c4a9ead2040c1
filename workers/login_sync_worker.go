// workers/login_sync_worker.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"cohort-points-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RemoteLogin matches one login event from the platform session service.
type RemoteLogin struct {
	UserID    string    `json:"user_id"`
	LoginTime time.Time `json:"login_time"`
}

// GetLoginChangesResponse is the top-level structure of the session service
// response.
type GetLoginChangesResponse struct {
	Logins []RemoteLogin `json:"logins"`
}

// LoginSyncWorker keeps the login_mirror table current by polling the
// session service. The nightly streak sweep reads only the mirror, so a
// student who never hits the login hook (e.g. SSO path) is still swept.
type LoginSyncWorker struct {
	db           *gorm.DB
	interval     time.Duration
	baseURL      string // e.g., "http://localhost:8400"
	endpointPath string // e.g., "/api/v1/public/logins"
	serviceToken string
	httpClient   *http.Client
}

func NewLoginSyncWorker(db *gorm.DB, sessionServiceBaseURL, endpointPath, serviceToken string) *LoginSyncWorker {
	return &LoginSyncWorker{
		db:           db,
		interval:     5 * time.Minute,
		baseURL:      sessionServiceBaseURL,
		endpointPath: endpointPath,
		serviceToken: serviceToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (w *LoginSyncWorker) Start(ctx context.Context) {
	log.Println("🔁 Starting Login Sync Worker (session-service → login_mirror)…")
	go w.run(ctx)
}

func (w *LoginSyncWorker) run(ctx context.Context) {
	// Initial backfill: one streak window is all the detector ever reads
	lastSyncTime := time.Now().UTC().AddDate(0, 0, -90)
	if err := w.syncBatch(ctx, lastSyncTime); err != nil {
		log.Printf("⚠️ Initial login sync failed: %v", err)
	} else {
		lastSyncTime = time.Now().UTC()
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			batchStart := time.Now().UTC()
			if err := w.syncBatch(ctx, lastSyncTime); err != nil {
				log.Printf("❌ Login sync batch failed: %v", err)
				// keep lastSyncTime so the same window is retried next tick
				continue
			}
			lastSyncTime = batchStart
		case <-ctx.Done():
			log.Println("⏹️ Login Sync Worker stopped")
			return
		}
	}
}

// syncBatch fetches login events since the cursor and upserts them into
// login_mirror. One row per user per calendar day; duplicates are absorbed
// by the unique index.
func (w *LoginSyncWorker) syncBatch(ctx context.Context, since time.Time) error {
	sinceStr := since.UTC().Format(time.RFC3339)

	base, err := url.Parse(w.baseURL)
	if err != nil {
		return fmt.Errorf("invalid session service URL '%s': %w", w.baseURL, err)
	}
	endpointURL := base.JoinPath(w.endpointPath)
	q := endpointURL.Query()
	q.Set("since", sinceStr)
	endpointURL.RawQuery = q.Encode()
	finalURL := endpointURL.String()

	req, err := http.NewRequestWithContext(ctx, "GET", finalURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request to %s: %w", finalURL, err)
	}
	req.Header.Set("X-Service-Token", w.serviceToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request to session service failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("session service non-200 response: %d: %s", resp.StatusCode, string(body))
	}

	var response GetLoginChangesResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return fmt.Errorf("failed to decode session service response: %w", err)
	}

	if len(response.Logins) == 0 {
		return nil
	}

	rows := make([]models.LoginMirror, 0, len(response.Logins))
	for _, remote := range response.Logins {
		if remote.UserID == "" || remote.LoginTime.IsZero() {
			continue
		}
		rows = append(rows, models.LoginMirror{
			ID:        uuid.NewString(),
			UserID:    remote.UserID,
			LoginDate: remote.LoginTime.UTC().Format("2006-01-02"),
		})
	}
	if len(rows) == 0 {
		return nil
	}

	if err := w.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "login_date"}},
		DoNothing: true,
	}).Create(&rows).Error; err != nil {
		return fmt.Errorf("failed to upsert %d login(s) into login_mirror: %w", len(rows), err)
	}

	log.Printf("📥 Upserted %d login day(s) into login_mirror.", len(rows))
	return nil
}
