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
)

type recordedFact struct {
	ActorID string
	Action  string
	Outcome models.AuditOutcome
	Message string
}

type mockAudit struct {
	facts []recordedFact
}

func (m *mockAudit) Record(ctx context.Context, actorID, action, targetModel, targetID string, outcome models.AuditOutcome, message string) {
	m.facts = append(m.facts, recordedFact{ActorID: actorID, Action: action, Outcome: outcome, Message: message})
}

func (m *mockAudit) last() recordedFact {
	if len(m.facts) == 0 {
		return recordedFact{}
	}
	return m.facts[len(m.facts)-1]
}

type mockSubmissionRepo struct {
	submissions map[string]*models.Submission
	nextID      int
	listErr     error
}

func submissionKey(studentID, assessmentID string) string {
	return studentID + "/" + assessmentID
}

func (m *mockSubmissionRepo) Create(ctx context.Context, submission *models.Submission) error {
	if m.submissions == nil {
		m.submissions = map[string]*models.Submission{}
	}
	key := submissionKey(submission.StudentID, submission.AssessmentID)
	if _, exists := m.submissions[key]; exists {
		return appErrors.Clone(appErrors.ErrDuplicateSubmission, "a submission already exists for this student and assessment")
	}
	m.nextID++
	submission.ID = fmt.Sprintf("sub%d", m.nextID)
	m.submissions[key] = submission
	return nil
}

func (m *mockSubmissionRepo) FindByID(ctx context.Context, id string) (*models.Submission, error) {
	for _, submission := range m.submissions {
		if submission.ID == id {
			return submission, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockSubmissionRepo) FindByStudentAndAssessment(ctx context.Context, studentID, assessmentID string) (*models.Submission, error) {
	submission, ok := m.submissions[submissionKey(studentID, assessmentID)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return submission, nil
}

func (m *mockSubmissionRepo) ListByAssessment(ctx context.Context, assessmentID string) ([]models.Submission, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var result []models.Submission
	for _, submission := range m.submissions {
		if submission.AssessmentID == assessmentID {
			result = append(result, *submission)
		}
	}
	return result, nil
}

func (m *mockSubmissionRepo) UpdateStatus(ctx context.Context, id string, status models.SubmissionStatus) error {
	for _, submission := range m.submissions {
		if submission.ID == id {
			submission.Status = status
			return nil
		}
	}
	return sql.ErrNoRows
}

type mockAssessmentStore struct {
	assessments map[string]*models.Assessment
}

func (m *mockAssessmentStore) FindByID(ctx context.Context, id string) (*models.Assessment, error) {
	assessment, ok := m.assessments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return assessment, nil
}

type mockStudentStore struct {
	accounts map[string]*models.Account
}

func (m *mockStudentStore) FindByID(ctx context.Context, id string) (*models.Account, error) {
	account, ok := m.accounts[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return account, nil
}

type mockEnrollment struct {
	enrolled map[string]bool
}

func (m *mockEnrollment) IsEnrolled(ctx context.Context, studentID, classroomID string) (bool, error) {
	return m.enrolled[studentID+"/"+classroomID], nil
}

func fixtureAssessment() *models.Assessment {
	classroom := "c1"
	return &models.Assessment{
		ID:                        "a1",
		SchoolID:                  "s1",
		GradeID:                   "g1",
		ClassroomID:               &classroom,
		TermID:                    "term1",
		SubjectID:                 "subj1",
		AssessorID:                "t1",
		Title:                     "Algebra test",
		Total:                     100,
		PercentageTowardsTermMark: 50,
		Formal:                    true,
		DueDate:                   time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
		DeadLine:                  time.Date(2026, 3, 5, 17, 0, 0, 0, time.UTC),
		State:                     models.StateDue,
	}
}

func newSubmissionFixture() (*SubmissionService, *mockSubmissionRepo, *mockAssessmentStore, *mockAudit) {
	submissions := &mockSubmissionRepo{}
	assessments := &mockAssessmentStore{assessments: map[string]*models.Assessment{"a1": fixtureAssessment()}}
	students := &mockStudentStore{accounts: map[string]*models.Account{
		"st1": {ID: "st1", Role: models.RoleStudent, SchoolID: strptr("s1"), GradeID: strptr("g1")},
		"st2": {ID: "st2", Role: models.RoleStudent, SchoolID: strptr("s1"), GradeID: strptr("g2")},
	}}
	enrollments := &mockEnrollment{enrolled: map[string]bool{"st1/c1": true}}
	audit := &mockAudit{}
	svc := NewSubmissionService(submissions, assessments, students, enrollments, audit, nil, nil)
	return svc, submissions, assessments, audit
}

func assessor() models.AccountContext {
	return models.AccountContext{ID: "t1", Role: models.RoleTeacher, SchoolID: "s1", TaughtClassroomIDs: []string{"c1"}}
}

func TestClassify(t *testing.T) {
	assessment := *fixtureAssessment()
	beforeDeadline := assessment.DeadLine.Add(-time.Hour)
	afterDeadline := assessment.DeadLine.Add(time.Hour)

	assert.Equal(t, models.SubmissionOnTime, Classify(assessment, beforeDeadline))
	assert.Equal(t, models.SubmissionOnTime, Classify(assessment, assessment.DeadLine))
	assert.Equal(t, models.SubmissionLate, Classify(assessment, afterDeadline))

	assessment.State = models.StateCollected
	assert.Equal(t, models.SubmissionLate, Classify(assessment, beforeDeadline),
		"a collected assessment only accepts late submissions")
}

func TestCreateSubmissionOnTime(t *testing.T) {
	svc, _, _, audit := newSubmissionFixture()
	svc.now = func() time.Time { return time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC) }

	submission, err := svc.Create(context.Background(), assessor(), CreateSubmissionRequest{AssessmentID: "a1", StudentID: "st1"})
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionOnTime, submission.Status)
	assert.Equal(t, models.AuditSubmitted, audit.last().Outcome)
}

func TestCreateSubmissionLateAfterDeadline(t *testing.T) {
	svc, _, _, _ := newSubmissionFixture()
	svc.now = func() time.Time { return time.Date(2026, 3, 6, 12, 0, 0, 0, time.UTC) }

	submission, err := svc.Create(context.Background(), assessor(), CreateSubmissionRequest{AssessmentID: "a1", StudentID: "st1"})
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionLate, submission.Status)
}

func TestCreateSubmissionDuplicate(t *testing.T) {
	svc, _, _, audit := newSubmissionFixture()

	_, err := svc.Create(context.Background(), assessor(), CreateSubmissionRequest{AssessmentID: "a1", StudentID: "st1"})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), assessor(), CreateSubmissionRequest{AssessmentID: "a1", StudentID: "st1"})
	require.ErrorIs(t, err, appErrors.ErrDuplicateSubmission)

	// The rejected attempt still lands in the audit trail.
	fact := audit.last()
	assert.Equal(t, models.AuditError, fact.Outcome)
	assert.Equal(t, appErrors.FromError(err).Message, fact.Message)
}

func TestCreateSubmissionOutOfScope(t *testing.T) {
	svc, _, assessments, audit := newSubmissionFixture()

	_, err := svc.Create(context.Background(), assessor(), CreateSubmissionRequest{AssessmentID: "a1", StudentID: "st2"})
	require.ErrorIs(t, err, appErrors.ErrInvalidScope)
	fact := audit.last()
	assert.Equal(t, models.AuditError, fact.Outcome)
	assert.Equal(t, "student is not enrolled in the assessment's classroom", fact.Message)

	// Without a classroom the grade decides scope.
	assessments.assessments["a1"].ClassroomID = nil
	_, err = svc.Create(context.Background(), assessor(), CreateSubmissionRequest{AssessmentID: "a1", StudentID: "st2"})
	require.ErrorIs(t, err, appErrors.ErrInvalidScope)

	_, err = svc.Create(context.Background(), assessor(), CreateSubmissionRequest{AssessmentID: "a1", StudentID: "st1"})
	require.NoError(t, err)
}

func TestCreateSubmissionDeniedForOutsiders(t *testing.T) {
	svc, _, _, audit := newSubmissionFixture()

	otherTeacher := models.AccountContext{ID: "t2", Role: models.RoleTeacher, SchoolID: "s1"}
	_, err := svc.Create(context.Background(), otherTeacher, CreateSubmissionRequest{AssessmentID: "a1", StudentID: "st1"})
	require.ErrorIs(t, err, appErrors.ErrDenied)
	assert.Equal(t, models.AuditDenied, audit.last().Outcome)

	student := models.AccountContext{ID: "st1", Role: models.RoleStudent, SchoolID: "s1"}
	_, err = svc.Create(context.Background(), student, CreateSubmissionRequest{AssessmentID: "a1", StudentID: "st1"})
	require.ErrorIs(t, err, appErrors.ErrDenied)
}

func TestCreateSubmissionPrincipalBypass(t *testing.T) {
	svc, _, _, _ := newSubmissionFixture()

	principal := models.AccountContext{ID: "pr1", Role: models.RolePrincipal, SchoolID: "s1"}
	_, err := svc.Create(context.Background(), principal, CreateSubmissionRequest{AssessmentID: "a1", StudentID: "st1"})
	require.NoError(t, err)

	foreignAdmin := models.AccountContext{ID: "ad2", Role: models.RoleAdmin, SchoolID: "s2"}
	_, err = svc.Create(context.Background(), foreignAdmin, CreateSubmissionRequest{AssessmentID: "a1", StudentID: "st1"})
	require.ErrorIs(t, err, appErrors.ErrDenied)
}

func TestExcuseSubmission(t *testing.T) {
	svc, _, _, audit := newSubmissionFixture()

	created, err := svc.Create(context.Background(), assessor(), CreateSubmissionRequest{AssessmentID: "a1", StudentID: "st1"})
	require.NoError(t, err)

	excused, err := svc.Excuse(context.Background(), assessor(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionExcused, excused.Status)
	assert.Equal(t, models.AuditActionExcuseSubmission, audit.last().Action)

	student := models.AccountContext{ID: "st1", Role: models.RoleStudent, SchoolID: "s1"}
	_, err = svc.Excuse(context.Background(), student, created.ID)
	require.ErrorIs(t, err, appErrors.ErrDenied)
}

func TestListSubmissionsWrapsStorageError(t *testing.T) {
	svc, submissions, _, _ := newSubmissionFixture()
	submissions.listErr = fmt.Errorf("connection reset")

	_, err := svc.ListByAssessment(context.Background(), assessor(), "a1")
	require.ErrorIs(t, err, appErrors.ErrInternal)
}
