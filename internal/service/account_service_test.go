package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thutoworks/thuto-api/internal/authz"
	"github.com/thutoworks/thuto-api/internal/models"
	appErrors "github.com/thutoworks/thuto-api/pkg/errors"
)

type mockDecider struct {
	decision authz.Decision
	seen     []authz.Action
}

func (m *mockDecider) Decide(ctx context.Context, action authz.Action, actor models.AccountContext, target interface{}) (authz.Decision, error) {
	m.seen = append(m.seen, action)
	return m.decision, nil
}

type mockResolver struct {
	contexts    map[string]*models.AccountContext
	invalidated []string
}

func (m *mockResolver) Resolve(ctx context.Context, accountID string, role models.Role) (*models.AccountContext, error) {
	acctx, ok := m.contexts[accountID]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "account not found")
	}
	return acctx, nil
}

func (m *mockResolver) Invalidate(ctx context.Context, accountID string) {
	m.invalidated = append(m.invalidated, accountID)
}

type mockAccountRepo struct {
	accounts map[string]*models.Account
	updated  bool
}

func (m *mockAccountRepo) FindByID(ctx context.Context, id string) (*models.Account, error) {
	account, ok := m.accounts[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return account, nil
}

func (m *mockAccountRepo) UpdateProfile(ctx context.Context, id, email, fullName string, active bool) error {
	account, ok := m.accounts[id]
	if !ok {
		return sql.ErrNoRows
	}
	account.Email = email
	account.FullName = fullName
	account.Active = active
	m.updated = true
	return nil
}

func newAccountFixture(decision authz.Decision) (*AccountService, *mockAccountRepo, *mockResolver, *mockDecider, *mockAudit) {
	repo := &mockAccountRepo{accounts: map[string]*models.Account{
		"st1": {ID: "st1", Email: "st1@school.test", FullName: "Student One", Role: models.RoleStudent, SchoolID: strptr("s1"), Active: true},
	}}
	resolver := &mockResolver{contexts: map[string]*models.AccountContext{
		"st1": {ID: "st1", Role: models.RoleStudent, SchoolID: "s1"},
	}}
	engine := &mockDecider{decision: decision}
	audit := &mockAudit{}
	svc := NewAccountService(repo, resolver, engine, audit, nil, nil)
	return svc, repo, resolver, engine, audit
}

func TestViewAccount(t *testing.T) {
	svc, _, _, engine, audit := newAccountFixture(authz.Permit())
	actor := models.AccountContext{ID: "t1", Role: models.RoleTeacher, SchoolID: "s1"}

	account, err := svc.View(context.Background(), actor, "st1")
	require.NoError(t, err)
	assert.Equal(t, "st1", account.ID)
	assert.Equal(t, []authz.Action{authz.ActionViewAccount}, engine.seen)
	assert.Equal(t, models.AuditViewed, audit.last().Outcome)

	_, err = svc.View(context.Background(), actor, "missing")
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestViewAccountDeniedCarriesReason(t *testing.T) {
	svc, _, _, _, audit := newAccountFixture(authz.Deny("you can only view profiles of students you teach"))
	actor := models.AccountContext{ID: "t1", Role: models.RoleTeacher, SchoolID: "s1"}

	_, err := svc.View(context.Background(), actor, "st1")
	require.ErrorIs(t, err, appErrors.ErrDenied)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "you can only view profiles of students you teach", appErr.Message)
	assert.Equal(t, models.AuditDenied, audit.last().Outcome)
	assert.Equal(t, "you can only view profiles of students you teach", audit.last().Message)
}

func TestUpdateAccountInvalidatesContext(t *testing.T) {
	svc, repo, resolver, _, audit := newAccountFixture(authz.Permit())
	actor := models.AccountContext{ID: "ad1", Role: models.RoleAdmin, SchoolID: "s1"}

	updated, err := svc.Update(context.Background(), actor, "st1", UpdateAccountRequest{
		Email:    "new@school.test",
		FullName: "Student Renamed",
		Active:   true,
	})
	require.NoError(t, err)
	assert.True(t, repo.updated)
	assert.Equal(t, "new@school.test", updated.Email)
	assert.Equal(t, []string{"st1"}, resolver.invalidated)
	assert.Equal(t, models.AuditUpdated, audit.last().Outcome)

	_, err = svc.Update(context.Background(), actor, "st1", UpdateAccountRequest{Email: "not-an-email", FullName: "x"})
	require.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestCanMessageAuditsOnlyDenials(t *testing.T) {
	svc, _, _, _, audit := newAccountFixture(authz.Permit())
	actor := models.AccountContext{ID: "p1", Role: models.RoleParent, SchoolID: "s1"}

	decision, err := svc.CanMessage(context.Background(), actor, "st1")
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Empty(t, audit.facts)

	denied, _, _, _, deniedAudit := newAccountFixture(authz.Deny("you can only message accounts you have a school or family relationship with"))
	decision, err = denied.CanMessage(context.Background(), actor, "st1")
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	require.Len(t, deniedAudit.facts, 1)
	assert.Equal(t, models.AuditDenied, deniedAudit.last().Outcome)
}
