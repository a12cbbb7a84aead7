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

// TranscriptRepository handles persistence of transcripts.
type TranscriptRepository struct {
	db *sqlx.DB
}

// NewTranscriptRepository constructs the repository.
func NewTranscriptRepository(db *sqlx.DB) *TranscriptRepository {
	return &TranscriptRepository{db: db}
}

const transcriptColumns = `id, assessment_id, student_id, score, moderated_score, percent_score, weighted_score,
        percentile, grader_id, created_at, updated_at`

// Create persists a new transcript. The (assessment, student) uniqueness
// constraint guards against concurrent double grading.
func (r *TranscriptRepository) Create(ctx context.Context, transcript *models.Transcript) error {
	if transcript.ID == "" {
		transcript.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if transcript.CreatedAt.IsZero() {
		transcript.CreatedAt = now
	}
	transcript.UpdatedAt = now
	const query = `INSERT INTO transcripts (id, assessment_id, student_id, score, moderated_score, percent_score,
        weighted_score, percentile, grader_id, created_at, updated_at)
        VALUES (:id, :assessment_id, :student_id, :score, :moderated_score, :percent_score,
        :weighted_score, :percentile, :grader_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, transcript); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return appErrors.Clone(appErrors.ErrConflict, "a transcript already exists for this student and assessment")
		}
		return fmt.Errorf("create transcript: %w", err)
	}
	return nil
}

// Update recomputes an existing transcript's scores in place.
func (r *TranscriptRepository) Update(ctx context.Context, transcript *models.Transcript) error {
	transcript.UpdatedAt = time.Now().UTC()
	const query = `UPDATE transcripts SET score = :score, moderated_score = :moderated_score,
        percent_score = :percent_score, weighted_score = :weighted_score, grader_id = :grader_id,
        updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, transcript); err != nil {
		return fmt.Errorf("update transcript: %w", err)
	}
	return nil
}

// FindByStudentAndAssessment returns the transcript for a pair.
func (r *TranscriptRepository) FindByStudentAndAssessment(ctx context.Context, studentID, assessmentID string) (*models.Transcript, error) {
	query := fmt.Sprintf(`SELECT %s FROM transcripts WHERE student_id = $1 AND assessment_id = $2`, transcriptColumns)
	var transcript models.Transcript
	if err := r.db.GetContext(ctx, &transcript, query, studentID, assessmentID); err != nil {
		return nil, err
	}
	return &transcript, nil
}

// ListByAssessment returns every transcript for an assessment.
func (r *TranscriptRepository) ListByAssessment(ctx context.Context, assessmentID string) ([]models.Transcript, error) {
	query := fmt.Sprintf(`SELECT %s FROM transcripts WHERE assessment_id = $1 ORDER BY percent_score DESC`, transcriptColumns)
	var transcripts []models.Transcript
	if err := r.db.SelectContext(ctx, &transcripts, query, assessmentID); err != nil {
		return nil, fmt.Errorf("list transcripts: %w", err)
	}
	return transcripts, nil
}

// CountByAssessment returns the number of transcripts for an assessment.
func (r *TranscriptRepository) CountByAssessment(ctx context.Context, assessmentID string) (int, error) {
	const query = `SELECT COUNT(*) FROM transcripts WHERE assessment_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, assessmentID); err != nil {
		return 0, fmt.Errorf("count transcripts: %w", err)
	}
	return count, nil
}

// BulkCreateMissing inserts zero-score transcripts for the listed students,
// skipping pairs that already exist. Used by the release back-fill so every
// enrolled student holds exactly one transcript once grades are released.
func (r *TranscriptRepository) BulkCreateMissing(ctx context.Context, assessmentID, graderID string, studentIDs []string) error {
	if len(studentIDs) == 0 {
		return nil
	}
	const query = `INSERT INTO transcripts (id, assessment_id, student_id, score, percent_score, weighted_score, grader_id, created_at, updated_at)
        VALUES ($1, $2, $3, 0, 0, 0, $4, $5, $5)
        ON CONFLICT (assessment_id, student_id) DO NOTHING`
	now := time.Now().UTC()
	for _, studentID := range studentIDs {
		if _, err := r.db.ExecContext(ctx, query, uuid.NewString(), assessmentID, studentID, graderID, now); err != nil {
			return fmt.Errorf("backfill transcript: %w", err)
		}
	}
	return nil
}

// UpdatePercentile stores the computed percentile for a transcript.
func (r *TranscriptRepository) UpdatePercentile(ctx context.Context, id string, percentile float64) error {
	const query = `UPDATE transcripts SET percentile = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, percentile, time.Now().UTC()); err != nil {
		return fmt.Errorf("update percentile: %w", err)
	}
	return nil
}
