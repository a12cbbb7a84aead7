package models

import "time"

// AssessmentState models the assessment lifecycle as an explicit state
// machine. States are strictly ordered and never regress.
type AssessmentState string

const (
	StateDue             AssessmentState = "DUE"
	StateCollected       AssessmentState = "COLLECTED"
	StateGradesReleasing AssessmentState = "GRADES_RELEASING"
	StateGradesReleased  AssessmentState = "GRADES_RELEASED"
)

var stateRank = map[AssessmentState]int{
	StateDue:             0,
	StateCollected:       1,
	StateGradesReleasing: 2,
	StateGradesReleased:  3,
}

// Valid reports whether the state belongs to the recognized set.
func (s AssessmentState) Valid() bool {
	_, ok := stateRank[s]
	return ok
}

// Rank returns the position of the state in the lifecycle order.
func (s AssessmentState) Rank() int {
	return stateRank[s]
}

// AtLeast reports whether the state has reached the given state.
func (s AssessmentState) AtLeast(other AssessmentState) bool {
	return stateRank[s] >= stateRank[other]
}

// CanAdvanceTo reports whether next is the immediate successor state.
// Transitions are monotonic single steps: DUE → COLLECTED →
// GRADES_RELEASING → GRADES_RELEASED.
func (s AssessmentState) CanAdvanceTo(next AssessmentState) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	return stateRank[next] == stateRank[s]+1
}

// Assessment is a gradable task scoped to a classroom or grade within a
// term. Grading of any submission requires the state to have reached
// COLLECTED.
type Assessment struct {
	ID                        string          `db:"id" json:"id"`
	SchoolID                  string          `db:"school_id" json:"school_id"`
	GradeID                   string          `db:"grade_id" json:"grade_id"`
	ClassroomID               *string         `db:"classroom_id" json:"classroom_id,omitempty"`
	TermID                    string          `db:"term_id" json:"term_id"`
	SubjectID                 string          `db:"subject_id" json:"subject_id"`
	AssessorID                string          `db:"assessor_id" json:"assessor_id"`
	ModeratorID               *string         `db:"moderator_id" json:"moderator_id,omitempty"`
	Title                     string          `db:"title" json:"title"`
	Total                     float64         `db:"total" json:"total"`
	PercentageTowardsTermMark float64         `db:"percentage_towards_term_mark" json:"percentage_towards_term_mark"`
	Formal                    bool            `db:"formal" json:"formal"`
	DueDate                   time.Time       `db:"due_date" json:"due_date"`
	DeadLine                  time.Time       `db:"dead_line" json:"dead_line"`
	State                     AssessmentState `db:"state" json:"state"`
	CreatedAt                 time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt                 time.Time       `db:"updated_at" json:"updated_at"`
}

// Collected reports whether submissions have been collected.
func (a Assessment) Collected() bool {
	return a.State.AtLeast(StateCollected)
}

// IsModerator reports whether the given account is the assigned moderator.
func (a Assessment) IsModerator(accountID string) bool {
	return a.ModeratorID != nil && *a.ModeratorID == accountID
}
