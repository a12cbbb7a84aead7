package models

import "time"

// Audit actions. The action and outcome vocabularies are a stable contract
// with downstream reporting and must not change meaning.
const (
	AuditActionViewAccount        = "VIEW_ACCOUNT"
	AuditActionUpdateAccount      = "UPDATE_ACCOUNT"
	AuditActionMessage            = "MESSAGE"
	AuditActionViewClassroom      = "VIEW_CLASSROOM"
	AuditActionViewActivity       = "VIEW_ACTIVITY"
	AuditActionViewGroupTimetable = "VIEW_GROUP_TIMETABLE"
	AuditActionCreateAssessment   = "CREATE_ASSESSMENT"
	AuditActionCollectAssessment  = "COLLECT_ASSESSMENT"
	AuditActionReleaseGrades      = "RELEASE_GRADES"
	AuditActionCreateSubmission   = "CREATE_SUBMISSION"
	AuditActionExcuseSubmission   = "EXCUSE_SUBMISSION"
	AuditActionGradeTranscript    = "GRADE_TRANSCRIPT"
	AuditActionLogin              = "LOGIN"
	AuditActionLogout             = "LOGOUT"
	AuditActionPasswordChange     = "PASSWORD_CHANGE"
)

// AuditOutcome classifies how an audited operation ended.
type AuditOutcome string

const (
	AuditCreated   AuditOutcome = "CREATED"
	AuditUpdated   AuditOutcome = "UPDATED"
	AuditDeleted   AuditOutcome = "DELETED"
	AuditDenied    AuditOutcome = "DENIED"
	AuditError     AuditOutcome = "ERROR"
	AuditGraded    AuditOutcome = "GRADED"
	AuditViewed    AuditOutcome = "VIEWED"
	AuditSubmitted AuditOutcome = "SUBMITTED"
	AuditCollected AuditOutcome = "COLLECTED"
	AuditReleased  AuditOutcome = "RELEASED"
)

// AuditFact is the structured record emitted for every decision and
// mutation. Denial reasons are carried verbatim in Message.
type AuditFact struct {
	ID          string       `db:"id" json:"id"`
	ActorID     string       `db:"actor_id" json:"actor_id"`
	Action      string       `db:"action" json:"action"`
	TargetModel string       `db:"target_model" json:"target_model"`
	TargetID    string       `db:"target_id" json:"target_id"`
	Outcome     AuditOutcome `db:"outcome" json:"outcome"`
	Message     string       `db:"message" json:"message"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
}
