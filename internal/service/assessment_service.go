package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/thutoworks/thuto-api/internal/models"
	appErrors "github.com/thutoworks/thuto-api/pkg/errors"
	"github.com/thutoworks/thuto-api/pkg/jobs"
)

type assessmentRepository interface {
	Create(ctx context.Context, assessment *models.Assessment) error
	FindByID(ctx context.Context, id string) (*models.Assessment, error)
	AdvanceState(ctx context.Context, id string, from, to models.AssessmentState) (bool, error)
}

type assessmentSubmissionRepository interface {
	CountByAssessment(ctx context.Context, assessmentID string) (int, error)
	BulkCreateMissing(ctx context.Context, assessmentID string, studentIDs []string, status models.SubmissionStatus) error
}

type assessmentTranscriptRepository interface {
	CountByAssessment(ctx context.Context, assessmentID string) (int, error)
	BulkCreateMissing(ctx context.Context, assessmentID, graderID string, studentIDs []string) error
	ListByAssessment(ctx context.Context, assessmentID string) ([]models.Transcript, error)
	UpdatePercentile(ctx context.Context, id string, percentile float64) error
}

type rosterRepository interface {
	StudentIDs(ctx context.Context, classroomID string) ([]string, error)
	StudentIDsByGrade(ctx context.Context, gradeID string) ([]string, error)
}

type releaseEnqueuer interface {
	Enqueue(job jobs.Job[ReleaseGradesPayload]) error
}

// ReleaseGradesPayload is the payload of a grades release job.
type ReleaseGradesPayload struct {
	AssessmentID string `json:"assessment_id"`
	ActorID      string `json:"actor_id"`
}

// canManageAssessment gates every lifecycle transition and grading action.
// Principals and admins of the assessment's school bypass the
// assessor-identity check; everyone else must be the assessor or the
// assigned moderator.
func canManageAssessment(actor models.AccountContext, assessment models.Assessment) bool {
	switch actor.Role {
	case models.RolePrincipal, models.RoleAdmin:
		return actor.SameSchool(assessment.SchoolID)
	}
	return actor.ID == assessment.AssessorID || assessment.IsModerator(actor.ID)
}

// CreateAssessmentRequest is the payload for creating an assessment.
type CreateAssessmentRequest struct {
	GradeID                   string    `json:"grade_id" validate:"required"`
	ClassroomID               *string   `json:"classroom_id,omitempty"`
	TermID                    string    `json:"term_id" validate:"required"`
	SubjectID                 string    `json:"subject_id" validate:"required"`
	ModeratorID               *string   `json:"moderator_id,omitempty"`
	Title                     string    `json:"title" validate:"required"`
	Total                     float64   `json:"total" validate:"required,gt=0"`
	PercentageTowardsTermMark float64   `json:"percentage_towards_term_mark" validate:"gte=0,lte=100"`
	Formal                    bool      `json:"formal"`
	DueDate                   time.Time `json:"due_date" validate:"required"`
	DeadLine                  time.Time `json:"dead_line" validate:"required"`
}

// AssessmentService owns the assessment lifecycle: creation, collection and
// the two-phase grades release.
type AssessmentService struct {
	repo        assessmentRepository
	submissions assessmentSubmissionRepository
	transcripts assessmentTranscriptRepository
	rosters     rosterRepository
	queue       releaseEnqueuer
	audit       AuditRecorder
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewAssessmentService constructs the assessment service.
func NewAssessmentService(repo assessmentRepository, submissions assessmentSubmissionRepository, transcripts assessmentTranscriptRepository, rosters rosterRepository, queue releaseEnqueuer, audit AuditRecorder, validate *validator.Validate, logger *zap.Logger) *AssessmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssessmentService{
		repo:        repo,
		submissions: submissions,
		transcripts: transcripts,
		rosters:     rosters,
		queue:       queue,
		audit:       audit,
		validator:   validate,
		logger:      logger,
	}
}

func (s *AssessmentService) record(ctx context.Context, actorID, action, targetID string, outcome models.AuditOutcome, message string) {
	if s.audit != nil {
		s.audit.Record(ctx, actorID, action, "assessment", targetID, outcome, message)
	}
}

// Create creates a new assessment in the DUE state with the actor as
// assessor. Only school staff create assessments, and only inside their
// own school.
func (s *AssessmentService) Create(ctx context.Context, actor models.AccountContext, req CreateAssessmentRequest) (*models.Assessment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assessment payload")
	}
	switch actor.Role {
	case models.RolePrincipal, models.RoleAdmin, models.RoleTeacher:
	default:
		return nil, appErrors.Denied("only teachers, admins and principals can create assessments")
	}
	if actor.SchoolID == "" {
		return nil, appErrors.Clone(appErrors.ErrInvalidScope, "actor has no school scope")
	}
	if req.DeadLine.Before(req.DueDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "deadline cannot precede the due date")
	}

	assessment := &models.Assessment{
		SchoolID:                  actor.SchoolID,
		GradeID:                   req.GradeID,
		ClassroomID:               req.ClassroomID,
		TermID:                    req.TermID,
		SubjectID:                 req.SubjectID,
		AssessorID:                actor.ID,
		ModeratorID:               req.ModeratorID,
		Title:                     req.Title,
		Total:                     req.Total,
		PercentageTowardsTermMark: req.PercentageTowardsTermMark,
		Formal:                    req.Formal,
		DueDate:                   req.DueDate,
		DeadLine:                  req.DeadLine,
		State:                     models.StateDue,
	}
	if err := s.repo.Create(ctx, assessment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create assessment")
	}

	s.record(ctx, actor.ID, models.AuditActionCreateAssessment, assessment.ID, models.AuditCreated, "")
	return assessment, nil
}

// Find returns an assessment the actor may manage.
func (s *AssessmentService) Find(ctx context.Context, actor models.AccountContext, assessmentID string) (*models.Assessment, error) {
	assessment, err := s.load(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	if !canManageAssessment(actor, *assessment) {
		return nil, appErrors.Denied("only the assessor, an assigned moderator or school officials can view this assessment")
	}
	return assessment, nil
}

func (s *AssessmentService) load(ctx context.Context, id string) (*models.Assessment, error) {
	assessment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assessment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assessment")
	}
	return assessment, nil
}

// roster returns the students the assessment is scoped to: the classroom
// roster when a classroom is set, the whole grade otherwise.
func (s *AssessmentService) roster(ctx context.Context, assessment *models.Assessment) ([]string, error) {
	if assessment.ClassroomID != nil {
		return s.rosters.StudentIDs(ctx, *assessment.ClassroomID)
	}
	return s.rosters.StudentIDsByGrade(ctx, assessment.GradeID)
}

// Collect moves an assessment from DUE to COLLECTED and backfills a
// NOT_SUBMITTED submission for every enrolled student without one. The
// state flip is a compare-and-swap so two concurrent collectors cannot
// both succeed.
func (s *AssessmentService) Collect(ctx context.Context, actor models.AccountContext, assessmentID string) (*models.Assessment, error) {
	assessment, err := s.load(ctx, assessmentID)
	if err != nil {
		return nil, err
	}

	if !canManageAssessment(actor, *assessment) {
		reason := "only the assessor, an assigned moderator or school officials can collect an assessment"
		s.record(ctx, actor.ID, models.AuditActionCollectAssessment, assessmentID, models.AuditDenied, reason)
		return nil, appErrors.Denied(reason)
	}

	advanced, err := s.repo.AdvanceState(ctx, assessmentID, models.StateDue, models.StateCollected)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to advance assessment state")
	}
	if !advanced {
		return nil, appErrors.Clone(appErrors.ErrConflict, "assessment is not awaiting collection")
	}
	assessment.State = models.StateCollected

	students, err := s.roster(ctx, assessment)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assessment roster")
	}
	if err := s.submissions.BulkCreateMissing(ctx, assessmentID, students, models.SubmissionNotSubmitted); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to backfill missing submissions")
	}

	s.record(ctx, actor.ID, models.AuditActionCollectAssessment, assessmentID, models.AuditCollected, "")
	return assessment, nil
}

// ReleaseGrades moves an assessment from COLLECTED to GRADES_RELEASING and
// schedules the background job that finishes the release. The transition
// requires every submission to have been scored.
func (s *AssessmentService) ReleaseGrades(ctx context.Context, actor models.AccountContext, assessmentID string) (*models.Assessment, error) {
	assessment, err := s.load(ctx, assessmentID)
	if err != nil {
		return nil, err
	}

	if !canManageAssessment(actor, *assessment) {
		reason := "only the assessor, an assigned moderator or school officials can release grades"
		s.record(ctx, actor.ID, models.AuditActionReleaseGrades, assessmentID, models.AuditDenied, reason)
		return nil, appErrors.Denied(reason)
	}

	submitted, err := s.submissions.CountByAssessment(ctx, assessmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count submissions")
	}
	scored, err := s.transcripts.CountByAssessment(ctx, assessmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count transcripts")
	}
	if submitted != scored {
		message := fmt.Sprintf("%d of %d submissions are graded", scored, submitted)
		s.record(ctx, actor.ID, models.AuditActionReleaseGrades, assessmentID, models.AuditError, message)
		return nil, appErrors.Clone(appErrors.ErrIncompleteGrading, message)
	}

	advanced, err := s.repo.AdvanceState(ctx, assessmentID, models.StateCollected, models.StateGradesReleasing)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to advance assessment state")
	}
	if !advanced {
		return nil, appErrors.Clone(appErrors.ErrConflict, "assessment grades are not ready for release")
	}
	assessment.State = models.StateGradesReleasing

	job := jobs.Job[ReleaseGradesPayload]{
		ID:      uuid.NewString(),
		Payload: ReleaseGradesPayload{AssessmentID: assessmentID, ActorID: actor.ID},
	}
	if err := s.queue.Enqueue(job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to schedule grades release")
	}

	s.record(ctx, actor.ID, models.AuditActionReleaseGrades, assessmentID, models.AuditUpdated, "grades release scheduled")
	return assessment, nil
}

// HandleReleaseJob finishes a grades release: every student on the roster
// who never submitted gets a zero transcript, percentiles are computed
// over the final transcript set, and the assessment lands in
// GRADES_RELEASED. Re-delivery of the same job is harmless.
func (s *AssessmentService) HandleReleaseJob(ctx context.Context, job jobs.Job[ReleaseGradesPayload]) error {
	payload := job.Payload

	assessment, err := s.load(ctx, payload.AssessmentID)
	if err != nil {
		return err
	}
	if assessment.State == models.StateGradesReleased {
		return nil
	}
	if assessment.State != models.StateGradesReleasing {
		return fmt.Errorf("assessment %s is %s, expected %s", assessment.ID, assessment.State, models.StateGradesReleasing)
	}

	students, err := s.roster(ctx, assessment)
	if err != nil {
		return fmt.Errorf("load roster: %w", err)
	}
	if err := s.transcripts.BulkCreateMissing(ctx, assessment.ID, payload.ActorID, students); err != nil {
		return fmt.Errorf("backfill transcripts: %w", err)
	}

	if err := s.computePercentiles(ctx, assessment.ID); err != nil {
		return fmt.Errorf("compute percentiles: %w", err)
	}

	advanced, err := s.repo.AdvanceState(ctx, assessment.ID, models.StateGradesReleasing, models.StateGradesReleased)
	if err != nil {
		return fmt.Errorf("advance state: %w", err)
	}
	if !advanced {
		s.logger.Warn("grades release finished by a concurrent worker", zap.String("assessment_id", assessment.ID))
		return nil
	}

	s.record(ctx, payload.ActorID, models.AuditActionReleaseGrades, assessment.ID, models.AuditReleased, "")
	return nil
}

// computePercentiles assigns each transcript the share of transcripts that
// scored strictly below it. Equal scores share a percentile.
func (s *AssessmentService) computePercentiles(ctx context.Context, assessmentID string) error {
	transcripts, err := s.transcripts.ListByAssessment(ctx, assessmentID)
	if err != nil {
		return err
	}
	n := len(transcripts)
	if n == 0 {
		return nil
	}
	for _, transcript := range transcripts {
		below := 0
		for _, other := range transcripts {
			if other.PercentScore < transcript.PercentScore {
				below++
			}
		}
		percentile := float64(below) / float64(n) * 100
		if err := s.transcripts.UpdatePercentile(ctx, transcript.ID, percentile); err != nil {
			return err
		}
	}
	return nil
}
