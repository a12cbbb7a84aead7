package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/thutoworks/thuto-api/internal/models"
	appErrors "github.com/thutoworks/thuto-api/pkg/errors"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestSubmissionRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSubmissionRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO submissions")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	submission := &models.Submission{
		AssessmentID: "a1",
		StudentID:    "st1",
		Status:       models.SubmissionOnTime,
	}
	require.NoError(t, repo.Create(context.Background(), submission))
	require.NotEmpty(t, submission.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryCreateDuplicate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSubmissionRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO submissions")).
		WillReturnError(&pq.Error{Code: pqUniqueViolation, Constraint: "submissions_assessment_student_key"})

	err := repo.Create(context.Background(), &models.Submission{
		AssessmentID: "a1",
		StudentID:    "st1",
		Status:       models.SubmissionLate,
	})
	require.ErrorIs(t, err, appErrors.ErrDuplicateSubmission)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryFindByStudentAndAssessment(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSubmissionRepository(db)
	rows := sqlmock.NewRows([]string{"id", "assessment_id", "student_id", "status", "created_at"}).
		AddRow("sub1", "a1", "st1", "ONTIME", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, assessment_id, student_id, status, created_at")).
		WithArgs("st1", "a1").
		WillReturnRows(rows)

	found, err := repo.FindByStudentAndAssessment(context.Background(), "st1", "a1")
	require.NoError(t, err)
	require.Equal(t, models.SubmissionOnTime, found.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryBulkCreateMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSubmissionRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (assessment_id, student_id) DO NOTHING")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (assessment_id, student_id) DO NOTHING")).
		WillReturnResult(sqlmock.NewResult(1, 0))

	err := repo.BulkCreateMissing(context.Background(), "a1", []string{"st1", "st2"}, models.SubmissionNotSubmitted)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	require.NoError(t, repo.BulkCreateMissing(context.Background(), "a1", nil, models.SubmissionNotSubmitted))
}
