package models

import "time"

// Classroom belongs to exactly one school and grade. SubjectID and
// RegisterClassroom are mutually exclusive: a classroom is either a subject
// classroom or the register (home) classroom, never both.
type Classroom struct {
	ID                string    `db:"id" json:"id"`
	SchoolID          string    `db:"school_id" json:"school_id"`
	GradeID           string    `db:"grade_id" json:"grade_id"`
	SubjectID         *string   `db:"subject_id" json:"subject_id,omitempty"`
	RegisterClassroom bool      `db:"register_classroom" json:"register_classroom"`
	TeacherID         *string   `db:"teacher_id" json:"teacher_id,omitempty"`
	Name              string    `db:"name" json:"name"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}
