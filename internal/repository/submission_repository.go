package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/thutoworks/thuto-api/internal/models"
	appErrors "github.com/thutoworks/thuto-api/pkg/errors"
)

const pqUniqueViolation = "23505"

// SubmissionRepository handles persistence of submissions. The
// (assessment_id, student_id) uniqueness constraint is the authoritative
// guard against duplicate submissions; concurrent creators race on it and
// the loser surfaces DUPLICATE_SUBMISSION.
type SubmissionRepository struct {
	db *sqlx.DB
}

// NewSubmissionRepository constructs the repository.
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// Create persists a submission. A unique violation on the
// (assessment, student) pair maps to ErrDuplicateSubmission so callers can
// branch on it rather than on a generic failure.
func (r *SubmissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}
	if submission.CreatedAt.IsZero() {
		submission.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO submissions (id, assessment_id, student_id, status, created_at)
        VALUES (:id, :assessment_id, :student_id, :status, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, submission); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return appErrors.Wrap(err, appErrors.ErrDuplicateSubmission.Code, appErrors.ErrDuplicateSubmission.Status, appErrors.ErrDuplicateSubmission.Message)
		}
		return fmt.Errorf("create submission: %w", err)
	}
	return nil
}

// FindByStudentAndAssessment returns the submission for a pair.
func (r *SubmissionRepository) FindByStudentAndAssessment(ctx context.Context, studentID, assessmentID string) (*models.Submission, error) {
	const query = `SELECT id, assessment_id, student_id, status, created_at
        FROM submissions WHERE student_id = $1 AND assessment_id = $2`
	var submission models.Submission
	if err := r.db.GetContext(ctx, &submission, query, studentID, assessmentID); err != nil {
		return nil, err
	}
	return &submission, nil
}

// FindByID returns a submission by its ID.
func (r *SubmissionRepository) FindByID(ctx context.Context, id string) (*models.Submission, error) {
	const query = `SELECT id, assessment_id, student_id, status, created_at FROM submissions WHERE id = $1`
	var submission models.Submission
	if err := r.db.GetContext(ctx, &submission, query, id); err != nil {
		return nil, err
	}
	return &submission, nil
}

// ListByAssessment returns every submission for an assessment.
func (r *SubmissionRepository) ListByAssessment(ctx context.Context, assessmentID string) ([]models.Submission, error) {
	const query = `SELECT id, assessment_id, student_id, status, created_at
        FROM submissions WHERE assessment_id = $1 ORDER BY created_at`
	var submissions []models.Submission
	if err := r.db.SelectContext(ctx, &submissions, query, assessmentID); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return submissions, nil
}

// CountByAssessment returns the number of submissions for an assessment.
func (r *SubmissionRepository) CountByAssessment(ctx context.Context, assessmentID string) (int, error) {
	const query = `SELECT COUNT(*) FROM submissions WHERE assessment_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, assessmentID); err != nil {
		return 0, fmt.Errorf("count submissions: %w", err)
	}
	return count, nil
}

// BulkCreateMissing inserts NOT_SUBMITTED submissions for the listed
// students, skipping pairs that already exist. Used by the collection
// transition back-fill.
func (r *SubmissionRepository) BulkCreateMissing(ctx context.Context, assessmentID string, studentIDs []string, status models.SubmissionStatus) error {
	if len(studentIDs) == 0 {
		return nil
	}
	const query = `INSERT INTO submissions (id, assessment_id, student_id, status, created_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (assessment_id, student_id) DO NOTHING`
	now := time.Now().UTC()
	for _, studentID := range studentIDs {
		if _, err := r.db.ExecContext(ctx, query, uuid.NewString(), assessmentID, studentID, status, now); err != nil {
			return fmt.Errorf("backfill submission: %w", err)
		}
	}
	return nil
}

// UpdateStatus replaces a submission's status. Reserved for the explicit
// excuse operation; classified statuses are never silently overwritten.
func (r *SubmissionRepository) UpdateStatus(ctx context.Context, id string, status models.SubmissionStatus) error {
	const query = `UPDATE submissions SET status = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status); err != nil {
		return fmt.Errorf("update submission status: %w", err)
	}
	return nil
}
