package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/thutoworks/thuto-api/internal/models"
)

// isNoRows reports whether the error is the sqlx/database "no rows" marker.
func isNoRows(err error) bool {
	return err == sql.ErrNoRows
}

// AssessmentRepository handles persistence of assessments.
type AssessmentRepository struct {
	db *sqlx.DB
}

// NewAssessmentRepository constructs the repository.
func NewAssessmentRepository(db *sqlx.DB) *AssessmentRepository {
	return &AssessmentRepository{db: db}
}

const assessmentColumns = `id, school_id, grade_id, classroom_id, term_id, subject_id, assessor_id, moderator_id,
        title, total, percentage_towards_term_mark, formal, due_date, dead_line, state, created_at, updated_at`

// Create persists a new assessment in the DUE state.
func (r *AssessmentRepository) Create(ctx context.Context, assessment *models.Assessment) error {
	if assessment.ID == "" {
		assessment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if assessment.CreatedAt.IsZero() {
		assessment.CreatedAt = now
	}
	assessment.UpdatedAt = now
	if assessment.State == "" {
		assessment.State = models.StateDue
	}
	const query = `INSERT INTO assessments (id, school_id, grade_id, classroom_id, term_id, subject_id, assessor_id, moderator_id,
        title, total, percentage_towards_term_mark, formal, due_date, dead_line, state, created_at, updated_at)
        VALUES (:id, :school_id, :grade_id, :classroom_id, :term_id, :subject_id, :assessor_id, :moderator_id,
        :title, :total, :percentage_towards_term_mark, :formal, :due_date, :dead_line, :state, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, assessment); err != nil {
		return fmt.Errorf("create assessment: %w", err)
	}
	return nil
}

// FindByID returns an assessment by its ID.
func (r *AssessmentRepository) FindByID(ctx context.Context, id string) (*models.Assessment, error) {
	query := fmt.Sprintf(`SELECT %s FROM assessments WHERE id = $1`, assessmentColumns)
	var assessment models.Assessment
	if err := r.db.GetContext(ctx, &assessment, query, id); err != nil {
		return nil, err
	}
	return &assessment, nil
}

// AdvanceState moves an assessment from one lifecycle state to its
// successor. The WHERE clause on the current state is the isolation
// boundary: a concurrent writer racing the same transition loses and the
// call reports no advancement.
func (r *AssessmentRepository) AdvanceState(ctx context.Context, id string, from, to models.AssessmentState) (bool, error) {
	const query = `UPDATE assessments SET state = $3, updated_at = $4 WHERE id = $1 AND state = $2`
	result, err := r.db.ExecContext(ctx, query, id, from, to, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("advance assessment state: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("advance assessment state: %w", err)
	}
	return affected == 1, nil
}

// ListByTermAndStudent returns report-card rows for a student's released
// assessments in a term.
func (r *AssessmentRepository) ListByTermAndStudent(ctx context.Context, termID, studentID string) ([]models.ReportCardRow, error) {
	const query = `SELECT a.title AS assessment_title, s.name AS subject_name, a.total,
        t.score, t.moderated_score, t.percent_score, t.weighted_score
        FROM transcripts t
        JOIN assessments a ON a.id = t.assessment_id
        JOIN subjects s ON s.id = a.subject_id
        WHERE a.term_id = $1 AND t.student_id = $2 AND a.state = $3
        ORDER BY s.name, a.due_date`
	var rows []models.ReportCardRow
	if err := r.db.SelectContext(ctx, &rows, query, termID, studentID, models.StateGradesReleased); err != nil {
		return nil, fmt.Errorf("list report card rows: %w", err)
	}
	return rows, nil
}
