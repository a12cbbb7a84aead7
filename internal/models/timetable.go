package models

import "time"

// GroupTimetable is a shared timetable scoped to a grade; students
// subscribe to it directly.
type GroupTimetable struct {
	ID        string    `db:"id" json:"id"`
	SchoolID  string    `db:"school_id" json:"school_id"`
	GradeID   string    `db:"grade_id" json:"grade_id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
