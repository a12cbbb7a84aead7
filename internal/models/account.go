package models

import "time"

// Role is the closed set of account roles. An account's role is immutable
// after creation.
type Role string

const (
	RolePrincipal Role = "PRINCIPAL"
	RoleAdmin     Role = "ADMIN"
	RoleTeacher   Role = "TEACHER"
	RoleParent    Role = "PARENT"
	RoleStudent   Role = "STUDENT"
	RoleFounder   Role = "FOUNDER"
)

// Roles returns every recognized role in declaration order.
func Roles() []Role {
	return []Role{RolePrincipal, RoleAdmin, RoleTeacher, RoleParent, RoleStudent, RoleFounder}
}

// Valid reports whether the role belongs to the recognized set.
func (r Role) Valid() bool {
	switch r {
	case RolePrincipal, RoleAdmin, RoleTeacher, RoleParent, RoleStudent, RoleFounder:
		return true
	}
	return false
}

// Account represents a person in the system. SchoolID is nil only for
// FOUNDER accounts; GradeID is set only for students.
type Account struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	FullName     string    `db:"full_name" json:"full_name"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         Role      `db:"role" json:"role"`
	SchoolID     *string   `db:"school_id" json:"school_id,omitempty"`
	GradeID      *string   `db:"grade_id" json:"grade_id,omitempty"`
	Active       bool      `db:"active" json:"active"`
	LastLoginAt  *time.Time `db:"last_login_at" json:"last_login_at,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// AccountContext is the resolved view of an account used by every
// authorization decision: identity, school scope and the relationship sets
// relevant to the account's role.
type AccountContext struct {
	ID       string `json:"id"`
	Role     Role   `json:"role"`
	SchoolID string `json:"school_id,omitempty"`
	GradeID  string `json:"grade_id,omitempty"`

	ChildIDs             []string `json:"child_ids,omitempty"`
	TaughtClassroomIDs   []string `json:"taught_classroom_ids,omitempty"`
	EnrolledClassroomIDs []string `json:"enrolled_classroom_ids,omitempty"`
}

// SameSchool reports whether the context belongs to the given school.
func (a AccountContext) SameSchool(schoolID string) bool {
	return a.SchoolID != "" && a.SchoolID == schoolID
}

// TeachesClassroom reports whether the classroom is among the taught set.
func (a AccountContext) TeachesClassroom(classroomID string) bool {
	for _, id := range a.TaughtClassroomIDs {
		if id == classroomID {
			return true
		}
	}
	return false
}

// EnrolledIn reports whether the classroom is among the enrolled set.
func (a AccountContext) EnrolledIn(classroomID string) bool {
	for _, id := range a.EnrolledClassroomIDs {
		if id == classroomID {
			return true
		}
	}
	return false
}

// HasChild reports whether the account id is among the children set.
func (a AccountContext) HasChild(studentID string) bool {
	for _, id := range a.ChildIDs {
		if id == studentID {
			return true
		}
	}
	return false
}
