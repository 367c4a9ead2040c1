// workers/notify_worker.go
package workers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"cohort-points-system/models"
)

// NotifyWorker delivers award notifications to the platform notification
// service from a bounded in-process queue. Producers never block and never
// learn about delivery failures: points are the system of record,
// notifications are best-effort.
type NotifyWorker struct {
	queue   chan models.Notification
	baseURL string
	token   string
	client  *http.Client
}

func NewNotifyWorker(notificationServiceBaseURL, serviceToken string) *NotifyWorker {
	return &NotifyWorker{
		queue:   make(chan models.Notification, 256),
		baseURL: notificationServiceBaseURL,
		token:   serviceToken,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Enqueue hands a notification to the dispatch goroutine. Returns false when
// the queue is full; the caller logs and moves on.
func (w *NotifyWorker) Enqueue(n models.Notification) bool {
	select {
	case w.queue <- n:
		return true
	default:
		return false
	}
}

func (w *NotifyWorker) Start(ctx context.Context) {
	log.Println("🔁 Starting Notification Dispatch Worker…")
	go w.run(ctx)
}

func (w *NotifyWorker) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			log.Println("⏹️ Notification Dispatch Worker stopped")
			return
		case n := <-w.queue:
			if err := w.send(ctx, n); err != nil {
				log.Printf("⚠️ Notification dispatch failed for user %s: %v", n.UserID, err)
			}
		}
	}
}

// send POSTs one notification. No retry: a lost notification is acceptable,
// a duplicate ledger entry is not.
func (w *NotifyWorker) send(ctx context.Context, n models.Notification) error {
	jsonData, err := json.Marshal(n)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/api/v1/internal/notifications", w.baseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Service-Token", w.token)

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("notification service returned %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
