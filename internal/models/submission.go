package models

import "time"

// SubmissionStatus is assigned once at creation and never silently
// overwritten.
type SubmissionStatus string

const (
	SubmissionOnTime       SubmissionStatus = "ONTIME"
	SubmissionLate         SubmissionStatus = "LATE"
	SubmissionNotSubmitted SubmissionStatus = "NOT_SUBMITTED"
	SubmissionExcused      SubmissionStatus = "EXCUSED"
)

// Valid reports whether the status belongs to the recognized set.
func (s SubmissionStatus) Valid() bool {
	switch s {
	case SubmissionOnTime, SubmissionLate, SubmissionNotSubmitted, SubmissionExcused:
		return true
	}
	return false
}

// Submission records that a student turned in (or failed to turn in) an
// assessment. One per (student, assessment) pair, enforced by a storage
// uniqueness constraint.
type Submission struct {
	ID           string           `db:"id" json:"id"`
	AssessmentID string           `db:"assessment_id" json:"assessment_id"`
	StudentID    string           `db:"student_id" json:"student_id"`
	Status       SubmissionStatus `db:"status" json:"status"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
}
