package models

import "time"

// School is the tenant boundary; every scoped entity references exactly one.
type School struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Grade is a year level within a school.
type Grade struct {
	ID       string `db:"id" json:"id"`
	SchoolID string `db:"school_id" json:"school_id"`
	Level    int    `db:"level" json:"level"`
	Name     string `db:"name" json:"name"`
}

// Term is an academic period within a school year.
type Term struct {
	ID        string    `db:"id" json:"id"`
	SchoolID  string    `db:"school_id" json:"school_id"`
	Name      string    `db:"name" json:"name"`
	StartDate time.Time `db:"start_date" json:"start_date"`
	EndDate   time.Time `db:"end_date" json:"end_date"`
}

// Subject is a taught discipline.
type Subject struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}
