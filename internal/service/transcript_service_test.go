package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thutoworks/thuto-api/internal/models"
	appErrors "github.com/thutoworks/thuto-api/pkg/errors"
)

type mockTranscriptRepo struct {
	transcripts map[string]*models.Transcript
	updates     int
}

func (m *mockTranscriptRepo) Create(ctx context.Context, transcript *models.Transcript) error {
	if m.transcripts == nil {
		m.transcripts = map[string]*models.Transcript{}
	}
	key := submissionKey(transcript.StudentID, transcript.AssessmentID)
	if _, exists := m.transcripts[key]; exists {
		return appErrors.Clone(appErrors.ErrConflict, "a transcript already exists for this student and assessment")
	}
	transcript.ID = "tr-" + transcript.StudentID
	m.transcripts[key] = transcript
	return nil
}

func (m *mockTranscriptRepo) Update(ctx context.Context, transcript *models.Transcript) error {
	key := submissionKey(transcript.StudentID, transcript.AssessmentID)
	if _, exists := m.transcripts[key]; !exists {
		return sql.ErrNoRows
	}
	m.transcripts[key] = transcript
	m.updates++
	return nil
}

func (m *mockTranscriptRepo) FindByStudentAndAssessment(ctx context.Context, studentID, assessmentID string) (*models.Transcript, error) {
	transcript, ok := m.transcripts[submissionKey(studentID, assessmentID)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *transcript
	return &copied, nil
}

type mockReportCardRepo struct {
	rows []models.ReportCardRow
}

func (m *mockReportCardRepo) ListByTermAndStudent(ctx context.Context, termID, studentID string) ([]models.ReportCardRow, error) {
	return m.rows, nil
}

type transcriptFixture struct {
	svc         *TranscriptService
	repo        *mockTranscriptRepo
	submissions *mockSubmissionRepo
	assessments *mockAssessmentStore
	audit       *mockAudit
}

func newTranscriptFixture(state models.AssessmentState) *transcriptFixture {
	assessment := fixtureAssessment()
	assessment.State = state
	repo := &mockTranscriptRepo{}
	submissions := &mockSubmissionRepo{}
	assessments := &mockAssessmentStore{assessments: map[string]*models.Assessment{"a1": assessment}}
	students := &mockStudentStore{accounts: map[string]*models.Account{
		"st1": {ID: "st1", Role: models.RoleStudent, SchoolID: strptr("s1"), GradeID: strptr("g1")},
	}}
	reports := &mockReportCardRepo{rows: []models.ReportCardRow{
		{AssessmentTitle: "Algebra test", SubjectName: "Mathematics", Total: 100, Score: 85, PercentScore: 85, WeightedScore: 42.5},
	}}
	audit := &mockAudit{}
	svc := NewTranscriptService(repo, submissions, assessments, reports, students, audit, nil, nil)
	return &transcriptFixture{svc: svc, repo: repo, submissions: submissions, assessments: assessments, audit: audit}
}

func (f *transcriptFixture) submit(t *testing.T, studentID string) {
	t.Helper()
	require.NoError(t, f.submissions.Create(context.Background(), &models.Submission{
		AssessmentID: "a1",
		StudentID:    studentID,
		Status:       models.SubmissionOnTime,
	}))
}

func TestGradePreconditionOrder(t *testing.T) {
	// An uncollected assessment fails first, before the missing submission
	// or the absurd score are even looked at.
	f := newTranscriptFixture(models.StateDue)
	_, err := f.svc.Grade(context.Background(), assessor(), GradeTranscriptRequest{AssessmentID: "a1", StudentID: "st1", Score: 500})
	require.ErrorIs(t, err, appErrors.ErrNotCollected)

	f = newTranscriptFixture(models.StateCollected)
	_, err = f.svc.Grade(context.Background(), assessor(), GradeTranscriptRequest{AssessmentID: "a1", StudentID: "st1", Score: 500})
	require.ErrorIs(t, err, appErrors.ErrNotSubmitted)

	f.submit(t, "st1")
	_, err = f.svc.Grade(context.Background(), assessor(), GradeTranscriptRequest{AssessmentID: "a1", StudentID: "st1", Score: 500})
	require.ErrorIs(t, err, appErrors.ErrOutOfRange)

	_, err = f.svc.Grade(context.Background(), assessor(), GradeTranscriptRequest{AssessmentID: "a1", StudentID: "st1", Score: -1})
	require.ErrorIs(t, err, appErrors.ErrOutOfRange)
}

func TestGradeFailuresLeaveAuditFacts(t *testing.T) {
	// Every grading precondition failure is recorded as an ERROR fact with
	// the failure message carried verbatim.
	f := newTranscriptFixture(models.StateDue)
	_, err := f.svc.Grade(context.Background(), assessor(), GradeTranscriptRequest{AssessmentID: "a1", StudentID: "st1", Score: 80})
	require.ErrorIs(t, err, appErrors.ErrNotCollected)
	require.NotEmpty(t, f.audit.facts)
	fact := f.audit.last()
	assert.Equal(t, models.AuditError, fact.Outcome)
	assert.Equal(t, "assessment submissions have not been collected", fact.Message)

	f = newTranscriptFixture(models.StateCollected)
	_, err = f.svc.Grade(context.Background(), assessor(), GradeTranscriptRequest{AssessmentID: "a1", StudentID: "st1", Score: 80})
	require.ErrorIs(t, err, appErrors.ErrNotSubmitted)
	fact = f.audit.last()
	assert.Equal(t, models.AuditError, fact.Outcome)
	assert.Equal(t, "student has no submission for this assessment", fact.Message)

	f.submit(t, "st1")
	_, err = f.svc.Grade(context.Background(), assessor(), GradeTranscriptRequest{AssessmentID: "a1", StudentID: "st1", Score: 500})
	require.ErrorIs(t, err, appErrors.ErrOutOfRange)
	fact = f.audit.last()
	assert.Equal(t, models.AuditError, fact.Outcome)
	assert.Equal(t, "score 500.00 is outside [0, 100.00]", fact.Message)

	moderated := 120.0
	_, err = f.svc.Grade(context.Background(), assessor(), GradeTranscriptRequest{AssessmentID: "a1", StudentID: "st1", Score: 80, ModeratedScore: &moderated})
	require.ErrorIs(t, err, appErrors.ErrOutOfRange)
	fact = f.audit.last()
	assert.Equal(t, models.AuditError, fact.Outcome)
	assert.Equal(t, "moderated score 120.00 is outside [0, 100.00]", fact.Message)
}

func TestGradeComputesDerivedScores(t *testing.T) {
	f := newTranscriptFixture(models.StateCollected)
	f.submit(t, "st1")

	transcript, err := f.svc.Grade(context.Background(), assessor(), GradeTranscriptRequest{AssessmentID: "a1", StudentID: "st1", Score: 85})
	require.NoError(t, err)
	assert.InDelta(t, 85.0, transcript.PercentScore, 1e-9)
	assert.InDelta(t, 42.5, transcript.WeightedScore, 1e-9)
	assert.Equal(t, "t1", transcript.GraderID)
	assert.Equal(t, models.AuditGraded, f.audit.last().Outcome)
}

func TestGradeModeratedScoreSupersedes(t *testing.T) {
	f := newTranscriptFixture(models.StateCollected)
	f.submit(t, "st1")

	moderated := 90.0
	transcript, err := f.svc.Grade(context.Background(), assessor(), GradeTranscriptRequest{AssessmentID: "a1", StudentID: "st1", Score: 85, ModeratedScore: &moderated})
	require.NoError(t, err)
	assert.InDelta(t, 90.0, transcript.PercentScore, 1e-9)
	assert.InDelta(t, 45.0, transcript.WeightedScore, 1e-9)

	outOfRange := 120.0
	_, err = f.svc.Grade(context.Background(), assessor(), GradeTranscriptRequest{AssessmentID: "a1", StudentID: "st1", Score: 85, ModeratedScore: &outOfRange})
	require.ErrorIs(t, err, appErrors.ErrOutOfRange)
}

func TestGradeInformalAssessmentHasZeroWeight(t *testing.T) {
	f := newTranscriptFixture(models.StateCollected)
	f.assessments.assessments["a1"].Formal = false
	f.submit(t, "st1")

	transcript, err := f.svc.Grade(context.Background(), assessor(), GradeTranscriptRequest{AssessmentID: "a1", StudentID: "st1", Score: 85})
	require.NoError(t, err)
	assert.InDelta(t, 85.0, transcript.PercentScore, 1e-9)
	assert.Zero(t, transcript.WeightedScore)
}

func TestRegradeRecomputesInPlace(t *testing.T) {
	f := newTranscriptFixture(models.StateCollected)
	f.submit(t, "st1")

	first, err := f.svc.Grade(context.Background(), assessor(), GradeTranscriptRequest{AssessmentID: "a1", StudentID: "st1", Score: 70})
	require.NoError(t, err)

	second, err := f.svc.Grade(context.Background(), assessor(), GradeTranscriptRequest{AssessmentID: "a1", StudentID: "st1", Score: 70})
	require.NoError(t, err)
	assert.Equal(t, first.PercentScore, second.PercentScore)
	assert.Equal(t, first.WeightedScore, second.WeightedScore)
	assert.Equal(t, 1, f.repo.updates)

	regraded, err := f.svc.Grade(context.Background(), assessor(), GradeTranscriptRequest{AssessmentID: "a1", StudentID: "st1", Score: 80})
	require.NoError(t, err)
	assert.InDelta(t, 80.0, regraded.PercentScore, 1e-9)
	assert.InDelta(t, 40.0, regraded.WeightedScore, 1e-9)
}

func TestGradeDeniedForStudentsAndParents(t *testing.T) {
	f := newTranscriptFixture(models.StateCollected)
	f.submit(t, "st1")

	student := models.AccountContext{ID: "st1", Role: models.RoleStudent, SchoolID: "s1"}
	_, err := f.svc.Grade(context.Background(), student, GradeTranscriptRequest{AssessmentID: "a1", StudentID: "st1", Score: 85})
	require.ErrorIs(t, err, appErrors.ErrDenied)

	parent := models.AccountContext{ID: "p1", Role: models.RoleParent, SchoolID: "s1", ChildIDs: []string{"st1"}}
	_, err = f.svc.Grade(context.Background(), parent, GradeTranscriptRequest{AssessmentID: "a1", StudentID: "st1", Score: 85})
	require.ErrorIs(t, err, appErrors.ErrDenied)
	assert.Equal(t, models.AuditDenied, f.audit.last().Outcome)
}

func TestReportCardAccess(t *testing.T) {
	f := newTranscriptFixture(models.StateGradesReleased)

	self := models.AccountContext{ID: "st1", Role: models.RoleStudent, SchoolID: "s1"}
	rows, err := f.svc.ReportCard(context.Background(), self, "st1", "term1")
	require.NoError(t, err)
	require.Len(t, rows, 1)

	parent := models.AccountContext{ID: "p1", Role: models.RoleParent, SchoolID: "s1", ChildIDs: []string{"st1"}}
	_, err = f.svc.ReportCard(context.Background(), parent, "st1", "term1")
	require.NoError(t, err)

	stranger := models.AccountContext{ID: "p2", Role: models.RoleParent, SchoolID: "s1"}
	_, err = f.svc.ReportCard(context.Background(), stranger, "st1", "term1")
	require.ErrorIs(t, err, appErrors.ErrDenied)

	teacher := models.AccountContext{ID: "t1", Role: models.RoleTeacher, SchoolID: "s1"}
	_, err = f.svc.ReportCard(context.Background(), teacher, "st1", "term1")
	require.NoError(t, err)

	foreignTeacher := models.AccountContext{ID: "t2", Role: models.RoleTeacher, SchoolID: "s2"}
	_, err = f.svc.ReportCard(context.Background(), foreignTeacher, "st1", "term1")
	require.ErrorIs(t, err, appErrors.ErrDenied)
}

func TestExportReportCard(t *testing.T) {
	f := newTranscriptFixture(models.StateGradesReleased)
	self := models.AccountContext{ID: "st1", Role: models.RoleStudent, SchoolID: "s1"}

	payload, contentType, err := f.svc.ExportReportCard(context.Background(), self, "st1", "term1", "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)
	assert.True(t, strings.HasPrefix(string(payload), "Subject,Assessment,Score,Total,Percent,Weighted"))
	assert.Contains(t, string(payload), "Mathematics")

	payload, contentType, err = f.svc.ExportReportCard(context.Background(), self, "st1", "term1", "pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", contentType)
	assert.NotEmpty(t, payload)

	_, _, err = f.svc.ExportReportCard(context.Background(), self, "st1", "term1", "xlsx")
	require.ErrorIs(t, err, appErrors.ErrValidation)
}
