package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/thutoworks/thuto-api/internal/models"
	appErrors "github.com/thutoworks/thuto-api/pkg/errors"
)

type mockResolverAccountRepo struct {
	accounts  map[string]*models.Account
	children  map[string][]string
	taught    map[string][]string
	enrolled  map[string][]string
	findCalls int
}

func (m *mockResolverAccountRepo) FindByIDAndRole(ctx context.Context, id string, role models.Role) (*models.Account, error) {
	m.findCalls++
	account, ok := m.accounts[id]
	if !ok || account.Role != role {
		return nil, sql.ErrNoRows
	}
	return account, nil
}

func (m *mockResolverAccountRepo) ChildIDs(ctx context.Context, parentID string) ([]string, error) {
	return m.children[parentID], nil
}

func (m *mockResolverAccountRepo) TaughtClassroomIDs(ctx context.Context, teacherID string) ([]string, error) {
	return m.taught[teacherID], nil
}

func (m *mockResolverAccountRepo) EnrolledClassroomIDs(ctx context.Context, studentID string) ([]string, error) {
	return m.enrolled[studentID], nil
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string][]byte{}}
}

func (c *memoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	payload, ok := c.entries[key]
	if !ok {
		return nil, errors.New("cache: miss")
	}
	return payload, nil
}

func (c *memoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	return nil
}

func (c *memoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func strptr(s string) *string { return &s }

func TestResolveLoadsRoleSpecificSets(t *testing.T) {
	repo := &mockResolverAccountRepo{
		accounts: map[string]*models.Account{
			"p1":  {ID: "p1", Role: models.RoleParent, SchoolID: strptr("s1")},
			"t1":  {ID: "t1", Role: models.RoleTeacher, SchoolID: strptr("s1")},
			"st1": {ID: "st1", Role: models.RoleStudent, SchoolID: strptr("s1"), GradeID: strptr("g1")},
		},
		children: map[string][]string{"p1": {"st1", "st2"}},
		taught:   map[string][]string{"t1": {"c1"}},
		enrolled: map[string][]string{"st1": {"c1", "c2"}},
	}
	svc := NewResolverService(repo, nil, 0, nil)

	parent, err := svc.Resolve(context.Background(), "p1", models.RoleParent)
	require.NoError(t, err)
	require.Equal(t, []string{"st1", "st2"}, parent.ChildIDs)
	require.Empty(t, parent.TaughtClassroomIDs)

	teacher, err := svc.Resolve(context.Background(), "t1", models.RoleTeacher)
	require.NoError(t, err)
	require.Equal(t, []string{"c1"}, teacher.TaughtClassroomIDs)

	student, err := svc.Resolve(context.Background(), "st1", models.RoleStudent)
	require.NoError(t, err)
	require.Equal(t, []string{"c1", "c2"}, student.EnrolledClassroomIDs)
	require.Equal(t, "g1", student.GradeID)
	require.Equal(t, "s1", student.SchoolID)
}

func TestResolveRoleMismatchIsNotFound(t *testing.T) {
	repo := &mockResolverAccountRepo{
		accounts: map[string]*models.Account{
			"t1": {ID: "t1", Role: models.RoleTeacher, SchoolID: strptr("s1")},
		},
	}
	svc := NewResolverService(repo, nil, 0, nil)

	_, err := svc.Resolve(context.Background(), "t1", models.RoleParent)
	require.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = svc.Resolve(context.Background(), "missing", models.RoleTeacher)
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestResolveRejectsUnknownRole(t *testing.T) {
	svc := NewResolverService(&mockResolverAccountRepo{}, nil, 0, nil)

	_, err := svc.Resolve(context.Background(), "a1", models.Role("SUPERUSER"))
	require.ErrorIs(t, err, appErrors.ErrInvalidRole)
}

func TestResolveUsesCache(t *testing.T) {
	repo := &mockResolverAccountRepo{
		accounts: map[string]*models.Account{
			"p1": {ID: "p1", Role: models.RoleParent, SchoolID: strptr("s1")},
		},
		children: map[string][]string{"p1": {"st1"}},
	}
	contexts := newMemoryCache()
	svc := NewResolverService(repo, contexts, time.Minute, nil)

	first, err := svc.Resolve(context.Background(), "p1", models.RoleParent)
	require.NoError(t, err)
	second, err := svc.Resolve(context.Background(), "p1", models.RoleParent)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, repo.findCalls)

	svc.Invalidate(context.Background(), "p1")
	_, err = svc.Resolve(context.Background(), "p1", models.RoleParent)
	require.NoError(t, err)
	require.Equal(t, 2, repo.findCalls)
}
