package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/thutoworks/thuto-api/internal/models"
)

// ClassroomRepository handles persistence of classrooms and enrollment.
type ClassroomRepository struct {
	db *sqlx.DB
}

// NewClassroomRepository constructs the repository.
func NewClassroomRepository(db *sqlx.DB) *ClassroomRepository {
	return &ClassroomRepository{db: db}
}

// FindByID returns a classroom by its ID.
func (r *ClassroomRepository) FindByID(ctx context.Context, id string) (*models.Classroom, error) {
	const query = `SELECT id, school_id, grade_id, subject_id, register_classroom, teacher_id, name, created_at
        FROM classrooms WHERE id = $1`
	var classroom models.Classroom
	if err := r.db.GetContext(ctx, &classroom, query, id); err != nil {
		return nil, err
	}
	return &classroom, nil
}

// StudentIDs returns the students enrolled in a classroom.
func (r *ClassroomRepository) StudentIDs(ctx context.Context, classroomID string) ([]string, error) {
	const query = `SELECT student_id FROM classroom_students WHERE classroom_id = $1 ORDER BY student_id`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, classroomID); err != nil {
		return nil, fmt.Errorf("list classroom students: %w", err)
	}
	return ids, nil
}

// StudentIDsByGrade returns the students belonging to a grade. Used for
// grade-scoped assessments without a classroom.
func (r *ClassroomRepository) StudentIDsByGrade(ctx context.Context, gradeID string) ([]string, error) {
	const query = `SELECT id FROM accounts WHERE grade_id = $1 AND role = $2 ORDER BY id`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, gradeID, models.RoleStudent); err != nil {
		return nil, fmt.Errorf("list grade students: %w", err)
	}
	return ids, nil
}

// IsEnrolled reports whether a student is enrolled in a classroom.
func (r *ClassroomRepository) IsEnrolled(ctx context.Context, studentID, classroomID string) (bool, error) {
	const query = `SELECT 1 FROM classroom_students WHERE student_id = $1 AND classroom_id = $2 LIMIT 1`
	var one int
	if err := r.db.GetContext(ctx, &one, query, studentID, classroomID); err != nil {
		if isNoRows(err) {
			return false, nil
		}
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return true, nil
}
