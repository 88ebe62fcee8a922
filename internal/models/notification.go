package models

import "time"

// Notification is a persisted in-app message for one recipient.
type Notification struct {
	ID          string    `db:"id" json:"id"`
	RecipientID string    `db:"recipient_id" json:"recipient_id"`
	Title       string    `db:"title" json:"title"`
	Body        string    `db:"body" json:"body"`
	SourceLabel string    `db:"source_label" json:"source_label"`
	IsRead      bool      `db:"is_read" json:"is_read"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// NotificationEvent is the payload queued for asynchronous fan-out to all
// recipients. Delivery is fire-and-forget for the scheduling flows.
type NotificationEvent struct {
	RecipientIDs []string `json:"recipient_ids"`
	Title        string   `json:"title"`
	Body         string   `json:"body"`
	SourceLabel  string   `json:"source_label"`
}
