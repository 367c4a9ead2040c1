package models

// Notification is the payload shape of the platform notification API. Not a
// table: notifications are owned by the notification service, this engine
// only posts them best-effort after a ledger write.
type Notification struct {
	UserID          string `json:"user_id"`
	Type            string `json:"type"`
	Title           string `json:"title"`
	Message         string `json:"message"`
	LinkURL         string `json:"link_url"`
	RelatedEntityID string `json:"related_entity_id"`
}
