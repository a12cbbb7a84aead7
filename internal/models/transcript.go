package models

import "time"

// Transcript is the scored outcome of a student's submission for one
// assessment. One per (student, assessment) pair. When ModeratedScore is
// present it supersedes Score for weighting purposes.
type Transcript struct {
	ID             string    `db:"id" json:"id"`
	AssessmentID   string    `db:"assessment_id" json:"assessment_id"`
	StudentID      string    `db:"student_id" json:"student_id"`
	Score          float64   `db:"score" json:"score"`
	ModeratedScore *float64  `db:"moderated_score" json:"moderated_score,omitempty"`
	PercentScore   float64   `db:"percent_score" json:"percent_score"`
	WeightedScore  float64   `db:"weighted_score" json:"weighted_score"`
	Percentile     *float64  `db:"percentile" json:"percentile,omitempty"`
	GraderID       string    `db:"grader_id" json:"grader_id"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// ChosenScore returns the moderated score when present, else the raw score.
func (t Transcript) ChosenScore() float64 {
	if t.ModeratedScore != nil {
		return *t.ModeratedScore
	}
	return t.Score
}

// ReportCardRow is a flattened transcript row for term report exports.
type ReportCardRow struct {
	AssessmentTitle string   `db:"assessment_title" json:"assessment_title"`
	SubjectName     string   `db:"subject_name" json:"subject_name"`
	Total           float64  `db:"total" json:"total"`
	Score           float64  `db:"score" json:"score"`
	ModeratedScore  *float64 `db:"moderated_score" json:"moderated_score,omitempty"`
	PercentScore    float64  `db:"percent_score" json:"percent_score"`
	WeightedScore   float64  `db:"weighted_score" json:"weighted_score"`
}
