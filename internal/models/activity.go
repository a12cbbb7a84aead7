package models

import "time"

// Activity is a logged note about a student (the recipient), written by a
// staff member (the logger).
type Activity struct {
	ID          string    `db:"id" json:"id"`
	SchoolID    string    `db:"school_id" json:"school_id"`
	LoggerID    string    `db:"logger_id" json:"logger_id"`
	RecipientID string    `db:"recipient_id" json:"recipient_id"`
	Message     string    `db:"message" json:"message"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
