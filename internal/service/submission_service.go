package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/thutoworks/thuto-api/internal/models"
	appErrors "github.com/thutoworks/thuto-api/pkg/errors"
)

type submissionRepository interface {
	Create(ctx context.Context, submission *models.Submission) error
	FindByID(ctx context.Context, id string) (*models.Submission, error)
	FindByStudentAndAssessment(ctx context.Context, studentID, assessmentID string) (*models.Submission, error)
	ListByAssessment(ctx context.Context, assessmentID string) ([]models.Submission, error)
	UpdateStatus(ctx context.Context, id string, status models.SubmissionStatus) error
}

type submissionAssessmentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Assessment, error)
}

type submissionStudentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Account, error)
}

type enrollmentChecker interface {
	IsEnrolled(ctx context.Context, studentID, classroomID string) (bool, error)
}

// Classify assigns the status of a fresh submission from the assessment's
// deadline and collection state. Once an assessment is collected every new
// submission is late regardless of the deadline.
func Classify(assessment models.Assessment, now time.Time) models.SubmissionStatus {
	if !now.After(assessment.DeadLine) && !assessment.Collected() {
		return models.SubmissionOnTime
	}
	return models.SubmissionLate
}

// CreateSubmissionRequest records that a student turned in work.
type CreateSubmissionRequest struct {
	AssessmentID string `json:"assessment_id" validate:"required"`
	StudentID    string `json:"student_id" validate:"required"`
}

// SubmissionService records and excuses submissions.
type SubmissionService struct {
	repo        submissionRepository
	assessments submissionAssessmentRepository
	students    submissionStudentRepository
	enrollments enrollmentChecker
	audit       AuditRecorder
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewSubmissionService constructs the submission service.
func NewSubmissionService(repo submissionRepository, assessments submissionAssessmentRepository, students submissionStudentRepository, enrollments enrollmentChecker, audit AuditRecorder, validate *validator.Validate, logger *zap.Logger) *SubmissionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubmissionService{
		repo:        repo,
		assessments: assessments,
		students:    students,
		enrollments: enrollments,
		audit:       audit,
		validator:   validate,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *SubmissionService) record(ctx context.Context, actorID, action, targetModel, targetID string, outcome models.AuditOutcome, message string) {
	if s.audit != nil {
		s.audit.Record(ctx, actorID, action, targetModel, targetID, outcome, message)
	}
}

func (s *SubmissionService) loadAssessment(ctx context.Context, id string) (*models.Assessment, error) {
	assessment, err := s.assessments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assessment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assessment")
	}
	return assessment, nil
}

// inScope verifies the student belongs to the assessment's classroom when
// one is set, or its grade otherwise.
func (s *SubmissionService) inScope(ctx context.Context, studentID string, assessment *models.Assessment) error {
	if assessment.ClassroomID != nil {
		enrolled, err := s.enrollments.IsEnrolled(ctx, studentID, *assessment.ClassroomID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
		}
		if !enrolled {
			return appErrors.Clone(appErrors.ErrInvalidScope, "student is not enrolled in the assessment's classroom")
		}
		return nil
	}

	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.Role != models.RoleStudent || student.GradeID == nil || *student.GradeID != assessment.GradeID {
		return appErrors.Clone(appErrors.ErrInvalidScope, "student does not belong to the assessment's grade")
	}
	return nil
}

// Create records a submission for a student. The status is classified from
// the deadline and collection state at the moment of creation; a second
// submission for the same (student, assessment) pair fails with a
// duplicate error the caller can branch on.
func (s *SubmissionService) Create(ctx context.Context, actor models.AccountContext, req CreateSubmissionRequest) (*models.Submission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission payload")
	}

	assessment, err := s.loadAssessment(ctx, req.AssessmentID)
	if err != nil {
		return nil, err
	}

	if !canManageAssessment(actor, *assessment) {
		reason := "only the assessor, an assigned moderator or school officials can record submissions"
		s.record(ctx, actor.ID, models.AuditActionCreateSubmission, "assessment", assessment.ID, models.AuditDenied, reason)
		return nil, appErrors.Denied(reason)
	}

	if err := s.inScope(ctx, req.StudentID, assessment); err != nil {
		if errors.Is(err, appErrors.ErrInvalidScope) {
			s.record(ctx, actor.ID, models.AuditActionCreateSubmission, "assessment", assessment.ID, models.AuditError, appErrors.FromError(err).Message)
		}
		return nil, err
	}

	submission := &models.Submission{
		AssessmentID: assessment.ID,
		StudentID:    req.StudentID,
		Status:       Classify(*assessment, s.now()),
	}
	if err := s.repo.Create(ctx, submission); err != nil {
		if errors.Is(err, appErrors.ErrDuplicateSubmission) {
			s.record(ctx, actor.ID, models.AuditActionCreateSubmission, "assessment", assessment.ID, models.AuditError, appErrors.FromError(err).Message)
			return nil, err
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create submission")
	}

	s.record(ctx, actor.ID, models.AuditActionCreateSubmission, "submission", submission.ID, models.AuditSubmitted, string(submission.Status))
	return submission, nil
}

// Excuse marks a submission as excused. This is the only way a submission
// status changes after creation.
func (s *SubmissionService) Excuse(ctx context.Context, actor models.AccountContext, submissionID string) (*models.Submission, error) {
	submission, err := s.repo.FindByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}

	assessment, err := s.loadAssessment(ctx, submission.AssessmentID)
	if err != nil {
		return nil, err
	}

	if !canManageAssessment(actor, *assessment) {
		reason := "only the assessor, an assigned moderator or school officials can excuse submissions"
		s.record(ctx, actor.ID, models.AuditActionExcuseSubmission, "submission", submissionID, models.AuditDenied, reason)
		return nil, appErrors.Denied(reason)
	}

	if err := s.repo.UpdateStatus(ctx, submissionID, models.SubmissionExcused); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to excuse submission")
	}
	submission.Status = models.SubmissionExcused

	s.record(ctx, actor.ID, models.AuditActionExcuseSubmission, "submission", submissionID, models.AuditUpdated, "")
	return submission, nil
}

// ListByAssessment returns all submissions for an assessment the actor
// manages.
func (s *SubmissionService) ListByAssessment(ctx context.Context, actor models.AccountContext, assessmentID string) ([]models.Submission, error) {
	assessment, err := s.loadAssessment(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	if !canManageAssessment(actor, *assessment) {
		return nil, appErrors.Denied("only the assessor, an assigned moderator or school officials can list submissions")
	}
	listed, err := s.repo.ListByAssessment(ctx, assessmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}
	return listed, nil
}
