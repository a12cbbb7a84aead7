package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thutoworks/thuto-api/internal/models"
	appErrors "github.com/thutoworks/thuto-api/pkg/errors"
	"github.com/thutoworks/thuto-api/pkg/jobs"
)

type mockAssessmentRepo struct {
	assessments map[string]*models.Assessment
}

func (m *mockAssessmentRepo) Create(ctx context.Context, assessment *models.Assessment) error {
	if m.assessments == nil {
		m.assessments = map[string]*models.Assessment{}
	}
	if assessment.ID == "" {
		assessment.ID = fmt.Sprintf("a%d", len(m.assessments)+1)
	}
	m.assessments[assessment.ID] = assessment
	return nil
}

func (m *mockAssessmentRepo) FindByID(ctx context.Context, id string) (*models.Assessment, error) {
	assessment, ok := m.assessments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *assessment
	return &copied, nil
}

func (m *mockAssessmentRepo) AdvanceState(ctx context.Context, id string, from, to models.AssessmentState) (bool, error) {
	assessment, ok := m.assessments[id]
	if !ok || assessment.State != from {
		return false, nil
	}
	assessment.State = to
	return true, nil
}

type mockBulkSubmissionRepo struct {
	count      int
	backfilled map[string]models.SubmissionStatus
}

func (m *mockBulkSubmissionRepo) CountByAssessment(ctx context.Context, assessmentID string) (int, error) {
	return m.count, nil
}

func (m *mockBulkSubmissionRepo) BulkCreateMissing(ctx context.Context, assessmentID string, studentIDs []string, status models.SubmissionStatus) error {
	if m.backfilled == nil {
		m.backfilled = map[string]models.SubmissionStatus{}
	}
	for _, id := range studentIDs {
		m.backfilled[id] = status
	}
	return nil
}

type mockBulkTranscriptRepo struct {
	transcripts map[string]*models.Transcript
	percentiles map[string]float64
}

func (m *mockBulkTranscriptRepo) CountByAssessment(ctx context.Context, assessmentID string) (int, error) {
	return len(m.transcripts), nil
}

func (m *mockBulkTranscriptRepo) BulkCreateMissing(ctx context.Context, assessmentID, graderID string, studentIDs []string) error {
	if m.transcripts == nil {
		m.transcripts = map[string]*models.Transcript{}
	}
	for _, studentID := range studentIDs {
		if _, exists := m.transcripts[studentID]; exists {
			continue
		}
		m.transcripts[studentID] = &models.Transcript{
			ID:           "tr-" + studentID,
			AssessmentID: assessmentID,
			StudentID:    studentID,
			GraderID:     graderID,
		}
	}
	return nil
}

func (m *mockBulkTranscriptRepo) ListByAssessment(ctx context.Context, assessmentID string) ([]models.Transcript, error) {
	var result []models.Transcript
	for _, transcript := range m.transcripts {
		result = append(result, *transcript)
	}
	return result, nil
}

func (m *mockBulkTranscriptRepo) UpdatePercentile(ctx context.Context, id string, percentile float64) error {
	if m.percentiles == nil {
		m.percentiles = map[string]float64{}
	}
	m.percentiles[id] = percentile
	return nil
}

type mockRosterRepo struct {
	byClassroom map[string][]string
	byGrade     map[string][]string
}

func (m *mockRosterRepo) StudentIDs(ctx context.Context, classroomID string) ([]string, error) {
	return m.byClassroom[classroomID], nil
}

func (m *mockRosterRepo) StudentIDsByGrade(ctx context.Context, gradeID string) ([]string, error) {
	return m.byGrade[gradeID], nil
}

type mockQueue struct {
	enqueued []jobs.Job[ReleaseGradesPayload]
}

func (m *mockQueue) Enqueue(job jobs.Job[ReleaseGradesPayload]) error {
	m.enqueued = append(m.enqueued, job)
	return nil
}

type assessmentFixture struct {
	svc         *AssessmentService
	repo        *mockAssessmentRepo
	submissions *mockBulkSubmissionRepo
	transcripts *mockBulkTranscriptRepo
	queue       *mockQueue
	audit       *mockAudit
}

func newAssessmentFixture(state models.AssessmentState) *assessmentFixture {
	assessment := fixtureAssessment()
	assessment.State = state
	repo := &mockAssessmentRepo{assessments: map[string]*models.Assessment{"a1": assessment}}
	submissions := &mockBulkSubmissionRepo{}
	transcripts := &mockBulkTranscriptRepo{}
	rosters := &mockRosterRepo{
		byClassroom: map[string][]string{"c1": {"st1", "st2", "st3"}},
		byGrade:     map[string][]string{"g1": {"st1", "st2", "st3", "st4"}},
	}
	queue := &mockQueue{}
	audit := &mockAudit{}
	svc := NewAssessmentService(repo, submissions, transcripts, rosters, queue, audit, nil, nil)
	return &assessmentFixture{svc: svc, repo: repo, submissions: submissions, transcripts: transcripts, queue: queue, audit: audit}
}

func TestCreateAssessment(t *testing.T) {
	f := newAssessmentFixture(models.StateDue)

	req := CreateAssessmentRequest{
		GradeID:                   "g1",
		TermID:                    "term1",
		SubjectID:                 "subj1",
		Title:                     "Essay",
		Total:                     40,
		PercentageTowardsTermMark: 20,
		Formal:                    true,
		DueDate:                   time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC),
		DeadLine:                  time.Date(2026, 4, 3, 17, 0, 0, 0, time.UTC),
	}

	created, err := f.svc.Create(context.Background(), assessor(), req)
	require.NoError(t, err)
	assert.Equal(t, models.StateDue, created.State)
	assert.Equal(t, "t1", created.AssessorID)
	assert.Equal(t, "s1", created.SchoolID)
	assert.Equal(t, models.AuditCreated, f.audit.last().Outcome)

	student := models.AccountContext{ID: "st1", Role: models.RoleStudent, SchoolID: "s1"}
	_, err = f.svc.Create(context.Background(), student, req)
	require.ErrorIs(t, err, appErrors.ErrDenied)

	bad := req
	bad.DeadLine = req.DueDate.Add(-time.Hour)
	_, err = f.svc.Create(context.Background(), assessor(), bad)
	require.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestCollectBackfillsNotSubmitted(t *testing.T) {
	f := newAssessmentFixture(models.StateDue)

	collected, err := f.svc.Collect(context.Background(), assessor(), "a1")
	require.NoError(t, err)
	assert.Equal(t, models.StateCollected, collected.State)
	assert.Equal(t, models.AuditCollected, f.audit.last().Outcome)

	for _, studentID := range []string{"st1", "st2", "st3"} {
		assert.Equal(t, models.SubmissionNotSubmitted, f.submissions.backfilled[studentID])
	}

	// Collection is one way; a second attempt finds no DUE assessment.
	_, err = f.svc.Collect(context.Background(), assessor(), "a1")
	require.ErrorIs(t, err, appErrors.ErrConflict)
}

func TestCollectDenied(t *testing.T) {
	f := newAssessmentFixture(models.StateDue)

	otherTeacher := models.AccountContext{ID: "t9", Role: models.RoleTeacher, SchoolID: "s1"}
	_, err := f.svc.Collect(context.Background(), otherTeacher, "a1")
	require.ErrorIs(t, err, appErrors.ErrDenied)
	assert.Equal(t, models.AuditDenied, f.audit.last().Outcome)

	// Principals of the same school bypass the assessor-identity check.
	principal := models.AccountContext{ID: "pr1", Role: models.RolePrincipal, SchoolID: "s1"}
	_, err = f.svc.Collect(context.Background(), principal, "a1")
	require.NoError(t, err)
}

func TestCollectModerator(t *testing.T) {
	f := newAssessmentFixture(models.StateDue)
	moderatorID := "mod1"
	f.repo.assessments["a1"].ModeratorID = &moderatorID

	moderator := models.AccountContext{ID: "mod1", Role: models.RoleTeacher, SchoolID: "s1"}
	_, err := f.svc.Collect(context.Background(), moderator, "a1")
	require.NoError(t, err)
}

func TestReleaseGradesIncompleteGrading(t *testing.T) {
	f := newAssessmentFixture(models.StateCollected)
	f.submissions.count = 3
	f.transcripts.transcripts = map[string]*models.Transcript{
		"st1": {ID: "tr-st1"},
	}

	_, err := f.svc.ReleaseGrades(context.Background(), assessor(), "a1")
	require.ErrorIs(t, err, appErrors.ErrIncompleteGrading)
	assert.Empty(t, f.queue.enqueued)

	// The refusal leaves an audit fact carrying the grading gap verbatim.
	fact := f.audit.last()
	assert.Equal(t, models.AuditError, fact.Outcome)
	assert.Equal(t, "1 of 3 submissions are graded", fact.Message)
}

func TestReleaseGradesEnqueuesJob(t *testing.T) {
	f := newAssessmentFixture(models.StateCollected)
	f.submissions.count = 1
	f.transcripts.transcripts = map[string]*models.Transcript{
		"st1": {ID: "tr-st1", PercentScore: 85},
	}

	releasing, err := f.svc.ReleaseGrades(context.Background(), assessor(), "a1")
	require.NoError(t, err)
	assert.Equal(t, models.StateGradesReleasing, releasing.State)

	require.Len(t, f.queue.enqueued, 1)
	job := f.queue.enqueued[0]
	assert.Equal(t, "a1", job.Payload.AssessmentID)
	assert.Equal(t, "t1", job.Payload.ActorID)

	// The state machine never regresses or repeats a transition.
	_, err = f.svc.ReleaseGrades(context.Background(), assessor(), "a1")
	require.ErrorIs(t, err, appErrors.ErrConflict)
}

func TestHandleReleaseJob(t *testing.T) {
	f := newAssessmentFixture(models.StateGradesReleasing)
	f.transcripts.transcripts = map[string]*models.Transcript{
		"st1": {ID: "tr-st1", PercentScore: 85},
		"st2": {ID: "tr-st2", PercentScore: 60},
	}

	job := jobs.Job[ReleaseGradesPayload]{Payload: ReleaseGradesPayload{AssessmentID: "a1", ActorID: "t1"}}
	require.NoError(t, f.svc.HandleReleaseJob(context.Background(), job))

	assert.Equal(t, models.StateGradesReleased, f.repo.assessments["a1"].State)

	// st3 never submitted and gets a zero transcript during release.
	require.Contains(t, f.transcripts.transcripts, "st3")
	assert.Zero(t, f.transcripts.transcripts["st3"].Score)

	assert.Equal(t, float64(2)/3*100, f.transcripts.percentiles["tr-st1"])
	assert.Equal(t, float64(1)/3*100, f.transcripts.percentiles["tr-st2"])
	assert.Equal(t, 0.0, f.transcripts.percentiles["tr-st3"])

	assert.Equal(t, models.AuditReleased, f.audit.last().Outcome)

	// Re-delivery after completion is a no-op.
	require.NoError(t, f.svc.HandleReleaseJob(context.Background(), job))
}

func TestHandleReleaseJobWrongState(t *testing.T) {
	f := newAssessmentFixture(models.StateDue)

	job := jobs.Job[ReleaseGradesPayload]{Payload: ReleaseGradesPayload{AssessmentID: "a1", ActorID: "t1"}}
	require.Error(t, f.svc.HandleReleaseJob(context.Background(), job))
}

func TestStateMachineSingleStep(t *testing.T) {
	assert.True(t, models.StateDue.CanAdvanceTo(models.StateCollected))
	assert.True(t, models.StateCollected.CanAdvanceTo(models.StateGradesReleasing))
	assert.True(t, models.StateGradesReleasing.CanAdvanceTo(models.StateGradesReleased))

	assert.False(t, models.StateDue.CanAdvanceTo(models.StateGradesReleasing))
	assert.False(t, models.StateCollected.CanAdvanceTo(models.StateDue))
	assert.False(t, models.StateGradesReleased.CanAdvanceTo(models.StateDue))
}
