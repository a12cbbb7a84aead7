package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// RelationshipRepository answers the relationship-traversal questions the
// authorization engine asks. Each check is a single EXISTS-style query so
// decisions see a consistent snapshot of the relationship tables.
type RelationshipRepository struct {
	db *sqlx.DB
}

// NewRelationshipRepository constructs the repository.
func NewRelationshipRepository(db *sqlx.DB) *RelationshipRepository {
	return &RelationshipRepository{db: db}
}

func (r *RelationshipRepository) exists(ctx context.Context, label, query string, args ...interface{}) (bool, error) {
	var one int
	if err := r.db.GetContext(ctx, &one, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("%s: %w", label, err)
	}
	return true, nil
}

// IsChildOf reports whether the student is a child of the parent.
func (r *RelationshipRepository) IsChildOf(ctx context.Context, parentID, studentID string) (bool, error) {
	const query = `SELECT 1 FROM parent_children WHERE parent_id = $1 AND student_id = $2 LIMIT 1`
	return r.exists(ctx, "check child", query, parentID, studentID)
}

// Teaches reports whether the student is enrolled in a classroom taught by
// the teacher.
func (r *RelationshipRepository) Teaches(ctx context.Context, teacherID, studentID string) (bool, error) {
	const query = `SELECT 1 FROM classroom_students cs
        JOIN classrooms c ON c.id = cs.classroom_id
        WHERE c.teacher_id = $1 AND cs.student_id = $2 LIMIT 1`
	return r.exists(ctx, "check taught student", query, teacherID, studentID)
}

// TeachesChildOf reports whether any child of the parent is taught by the
// teacher.
func (r *RelationshipRepository) TeachesChildOf(ctx context.Context, teacherID, parentID string) (bool, error) {
	const query = `SELECT 1 FROM parent_children pc
        JOIN classroom_students cs ON cs.student_id = pc.student_id
        JOIN classrooms c ON c.id = cs.classroom_id
        WHERE c.teacher_id = $1 AND pc.parent_id = $2 LIMIT 1`
	return r.exists(ctx, "check taught child", query, teacherID, parentID)
}

// SharesChild reports whether two parents have at least one child in common.
func (r *RelationshipRepository) SharesChild(ctx context.Context, parentID, otherParentID string) (bool, error) {
	const query = `SELECT 1 FROM parent_children a
        JOIN parent_children b ON b.student_id = a.student_id
        WHERE a.parent_id = $1 AND b.parent_id = $2 LIMIT 1`
	return r.exists(ctx, "check shared child", query, parentID, otherParentID)
}

// HasChildInSchool reports whether any child of the parent belongs to the
// school.
func (r *RelationshipRepository) HasChildInSchool(ctx context.Context, parentID, schoolID string) (bool, error) {
	const query = `SELECT 1 FROM parent_children pc
        JOIN accounts s ON s.id = pc.student_id
        WHERE pc.parent_id = $1 AND s.school_id = $2 LIMIT 1`
	return r.exists(ctx, "check child school", query, parentID, schoolID)
}

// HasChildInClassroom reports whether any child of the parent is enrolled
// in the classroom.
func (r *RelationshipRepository) HasChildInClassroom(ctx context.Context, parentID, classroomID string) (bool, error) {
	const query = `SELECT 1 FROM parent_children pc
        JOIN classroom_students cs ON cs.student_id = pc.student_id
        WHERE pc.parent_id = $1 AND cs.classroom_id = $2 LIMIT 1`
	return r.exists(ctx, "check child classroom", query, parentID, classroomID)
}

// IsTimetableSubscriber reports whether the student subscribes to the
// group timetable.
func (r *RelationshipRepository) IsTimetableSubscriber(ctx context.Context, studentID, timetableID string) (bool, error) {
	const query = `SELECT 1 FROM timetable_subscribers WHERE student_id = $1 AND timetable_id = $2 LIMIT 1`
	return r.exists(ctx, "check timetable subscriber", query, studentID, timetableID)
}

// HasSubscribedChild reports whether any child of the parent subscribes to
// the group timetable.
func (r *RelationshipRepository) HasSubscribedChild(ctx context.Context, parentID, timetableID string) (bool, error) {
	const query = `SELECT 1 FROM parent_children pc
        JOIN timetable_subscribers ts ON ts.student_id = pc.student_id
        WHERE pc.parent_id = $1 AND ts.timetable_id = $2 LIMIT 1`
	return r.exists(ctx, "check subscribed child", query, parentID, timetableID)
}
