package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/thutoworks/thuto-api/internal/models"
	appErrors "github.com/thutoworks/thuto-api/pkg/errors"
	"github.com/thutoworks/thuto-api/pkg/export"
)

type transcriptRepository interface {
	Create(ctx context.Context, transcript *models.Transcript) error
	Update(ctx context.Context, transcript *models.Transcript) error
	FindByStudentAndAssessment(ctx context.Context, studentID, assessmentID string) (*models.Transcript, error)
}

type transcriptSubmissionRepository interface {
	FindByStudentAndAssessment(ctx context.Context, studentID, assessmentID string) (*models.Submission, error)
}

type reportCardRepository interface {
	ListByTermAndStudent(ctx context.Context, termID, studentID string) ([]models.ReportCardRow, error)
}

// GradeTranscriptRequest scores a student's submission. A present
// ModeratedScore supersedes Score for weighting.
type GradeTranscriptRequest struct {
	AssessmentID   string   `json:"assessment_id" validate:"required"`
	StudentID      string   `json:"student_id" validate:"required"`
	Score          float64  `json:"score"`
	ModeratedScore *float64 `json:"moderated_score,omitempty"`
}

// computeTranscriptScores derives the percent and weighted scores from the
// chosen score. Informal assessments never contribute to the term mark.
func computeTranscriptScores(assessment models.Assessment, chosen float64) (percent, weighted float64) {
	percent = chosen / assessment.Total * 100
	if assessment.Formal {
		weighted = percent * (assessment.PercentageTowardsTermMark / 100)
	}
	return percent, weighted
}

// TranscriptService scores submissions and assembles term report cards.
type TranscriptService struct {
	repo        transcriptRepository
	submissions transcriptSubmissionRepository
	assessments submissionAssessmentRepository
	reports     reportCardRepository
	students    submissionStudentRepository
	audit       AuditRecorder
	validator   *validator.Validate
	logger      *zap.Logger
	csv         *export.CSVExporter
	pdf         *export.PDFExporter
}

// NewTranscriptService constructs the transcript service.
func NewTranscriptService(repo transcriptRepository, submissions transcriptSubmissionRepository, assessments submissionAssessmentRepository, reports reportCardRepository, students submissionStudentRepository, audit AuditRecorder, validate *validator.Validate, logger *zap.Logger) *TranscriptService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TranscriptService{
		repo:        repo,
		submissions: submissions,
		assessments: assessments,
		reports:     reports,
		students:    students,
		audit:       audit,
		validator:   validate,
		logger:      logger,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
	}
}

func (s *TranscriptService) record(ctx context.Context, actorID, action, targetModel, targetID string, outcome models.AuditOutcome, message string) {
	if s.audit != nil {
		s.audit.Record(ctx, actorID, action, targetModel, targetID, outcome, message)
	}
}

// gradeFailure records a grading precondition failure before surfacing it.
// The fact carries the failure message verbatim.
func (s *TranscriptService) gradeFailure(ctx context.Context, actorID, assessmentID string, err *appErrors.Error) error {
	s.record(ctx, actorID, models.AuditActionGradeTranscript, "assessment", assessmentID, models.AuditError, err.Message)
	return err
}

// Grade scores, or re-scores, a student's submission. Preconditions are
// checked in a fixed order so each failure mode is distinct: the
// assessment must be collected, the submission must exist, and the chosen
// score must fall within [0, total]. Re-grading re-runs all three and
// recomputes both derived fields.
func (s *TranscriptService) Grade(ctx context.Context, actor models.AccountContext, req GradeTranscriptRequest) (*models.Transcript, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid transcript payload")
	}

	assessment, err := s.assessments.FindByID(ctx, req.AssessmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assessment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assessment")
	}

	if !canManageAssessment(actor, *assessment) {
		reason := "only the assessor, an assigned moderator or school officials can grade submissions"
		s.record(ctx, actor.ID, models.AuditActionGradeTranscript, "assessment", assessment.ID, models.AuditDenied, reason)
		return nil, appErrors.Denied(reason)
	}

	if !assessment.Collected() {
		return nil, s.gradeFailure(ctx, actor.ID, assessment.ID,
			appErrors.Clone(appErrors.ErrNotCollected, "assessment submissions have not been collected"))
	}

	if _, err := s.submissions.FindByStudentAndAssessment(ctx, req.StudentID, req.AssessmentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.gradeFailure(ctx, actor.ID, assessment.ID,
				appErrors.Clone(appErrors.ErrNotSubmitted, "student has no submission for this assessment"))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}

	if req.Score < 0 || req.Score > assessment.Total {
		return nil, s.gradeFailure(ctx, actor.ID, assessment.ID, appErrors.Clone(appErrors.ErrOutOfRange,
			fmt.Sprintf("score %.2f is outside [0, %.2f]", req.Score, assessment.Total)))
	}
	chosen := req.Score
	if req.ModeratedScore != nil {
		if *req.ModeratedScore < 0 || *req.ModeratedScore > assessment.Total {
			return nil, s.gradeFailure(ctx, actor.ID, assessment.ID, appErrors.Clone(appErrors.ErrOutOfRange,
				fmt.Sprintf("moderated score %.2f is outside [0, %.2f]", *req.ModeratedScore, assessment.Total)))
		}
		chosen = *req.ModeratedScore
	}

	percent, weighted := computeTranscriptScores(*assessment, chosen)

	transcript, err := s.repo.FindByStudentAndAssessment(ctx, req.StudentID, req.AssessmentID)
	switch {
	case err == nil:
		transcript.Score = req.Score
		transcript.ModeratedScore = req.ModeratedScore
		transcript.PercentScore = percent
		transcript.WeightedScore = weighted
		transcript.GraderID = actor.ID
		if err := s.repo.Update(ctx, transcript); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update transcript")
		}
	case errors.Is(err, sql.ErrNoRows):
		transcript = &models.Transcript{
			AssessmentID:   req.AssessmentID,
			StudentID:      req.StudentID,
			Score:          req.Score,
			ModeratedScore: req.ModeratedScore,
			PercentScore:   percent,
			WeightedScore:  weighted,
			GraderID:       actor.ID,
		}
		if err := s.repo.Create(ctx, transcript); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create transcript")
		}
	default:
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load transcript")
	}

	s.record(ctx, actor.ID, models.AuditActionGradeTranscript, "transcript", transcript.ID, models.AuditGraded, "")
	return transcript, nil
}

// canViewReportCard gates term report access: the student, their parents
// and same-school staff.
func (s *TranscriptService) canViewReportCard(ctx context.Context, actor models.AccountContext, studentID string) error {
	if actor.ID == studentID || actor.HasChild(studentID) {
		return nil
	}
	switch actor.Role {
	case models.RolePrincipal, models.RoleAdmin, models.RoleTeacher:
	default:
		return appErrors.Denied("you can only view report cards of yourself or your own children")
	}
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.SchoolID == nil || !actor.SameSchool(*student.SchoolID) {
		return appErrors.Denied("you can only view report cards of students in your own school")
	}
	return nil
}

// ReportCard returns the released transcript rows of a student for a term.
func (s *TranscriptService) ReportCard(ctx context.Context, actor models.AccountContext, studentID, termID string) ([]models.ReportCardRow, error) {
	if err := s.canViewReportCard(ctx, actor, studentID); err != nil {
		return nil, err
	}
	rows, err := s.reports.ListByTermAndStudent(ctx, termID, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report card")
	}
	return rows, nil
}

func reportCardDataset(rows []models.ReportCardRow) export.Dataset {
	data := export.Dataset{
		Headers: []string{"Subject", "Assessment", "Score", "Total", "Percent", "Weighted"},
	}
	for _, row := range rows {
		score := row.Score
		if row.ModeratedScore != nil {
			score = *row.ModeratedScore
		}
		data.Rows = append(data.Rows, map[string]string{
			"Subject":    row.SubjectName,
			"Assessment": row.AssessmentTitle,
			"Score":      strconv.FormatFloat(score, 'f', 2, 64),
			"Total":      strconv.FormatFloat(row.Total, 'f', 2, 64),
			"Percent":    strconv.FormatFloat(row.PercentScore, 'f', 2, 64),
			"Weighted":   strconv.FormatFloat(row.WeightedScore, 'f', 2, 64),
		})
	}
	return data
}

// ExportReportCard renders a student's term report card as CSV or PDF.
func (s *TranscriptService) ExportReportCard(ctx context.Context, actor models.AccountContext, studentID, termID, format string) ([]byte, string, error) {
	rows, err := s.ReportCard(ctx, actor, studentID, termID)
	if err != nil {
		return nil, "", err
	}
	data := reportCardDataset(rows)

	switch strings.ToLower(format) {
	case "csv", "":
		payload, err := s.csv.Render(data)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return payload, "text/csv", nil
	case "pdf":
		payload, err := s.pdf.Render(data, fmt.Sprintf("Term Report Card (%s)", termID))
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return payload, "application/pdf", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
}
