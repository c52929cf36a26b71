package models

// Delivery is one recorded outbound delivery outcome: one row per
// destination per triggered batch.
type Delivery struct {
	ID           string `json:"id"`
	BatchID      string `json:"batch_id"`
	URL          string `json:"url"`
	Success      bool   `json:"success"`
	Skipped      bool   `json:"skipped"`
	Attempts     int    `json:"attempts"`
	Error        string `json:"error,omitempty"`
	WebhookCount int    `json:"webhook_count"`
	CreatedAt    int64  `json:"created_at"`
}
