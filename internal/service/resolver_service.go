package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/thutoworks/thuto-api/internal/models"
	"github.com/thutoworks/thuto-api/pkg/cache"
	appErrors "github.com/thutoworks/thuto-api/pkg/errors"
)

type resolverAccountRepository interface {
	FindByIDAndRole(ctx context.Context, id string, role models.Role) (*models.Account, error)
	ChildIDs(ctx context.Context, parentID string) ([]string, error)
	TaughtClassroomIDs(ctx context.Context, teacherID string) ([]string, error)
	EnrolledClassroomIDs(ctx context.Context, studentID string) ([]string, error)
}

// ResolverService turns an authenticated identity into an AccountContext.
// An account is only resolved under the role it actually holds; a mismatch
// between the claimed role and the stored one is indistinguishable from a
// missing account.
type ResolverService struct {
	repo     resolverAccountRepository
	contexts cache.Cache
	ttl      time.Duration
	logger   *zap.Logger
}

// NewResolverService constructs the resolver. A nil cache disables caching.
func NewResolverService(repo resolverAccountRepository, contexts cache.Cache, ttl time.Duration, logger *zap.Logger) *ResolverService {
	if contexts == nil {
		contexts = cache.Noop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResolverService{repo: repo, contexts: contexts, ttl: ttl, logger: logger}
}

func contextCacheKey(accountID string, role models.Role) string {
	return fmt.Sprintf("account_context:%s:%s", accountID, role)
}

// Resolve loads the AccountContext for an account under a claimed role.
func (s *ResolverService) Resolve(ctx context.Context, accountID string, role models.Role) (*models.AccountContext, error) {
	if !role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrInvalidRole, fmt.Sprintf("unknown role %q", role))
	}

	key := contextCacheKey(accountID, role)
	if payload, err := s.contexts.Get(ctx, key); err == nil {
		var cached models.AccountContext
		if err := json.Unmarshal(payload, &cached); err == nil {
			return &cached, nil
		}
		s.logger.Warn("discarding corrupt cached account context", zap.String("key", key))
	} else if !errors.Is(err, cache.ErrMiss) {
		s.logger.Warn("account context cache read failed", zap.String("key", key), zap.Error(err))
	}

	account, err := s.repo.FindByIDAndRole(ctx, accountID, role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "account not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve account")
	}

	acctx := &models.AccountContext{
		ID:   account.ID,
		Role: account.Role,
	}
	if account.SchoolID != nil {
		acctx.SchoolID = *account.SchoolID
	}
	if account.GradeID != nil {
		acctx.GradeID = *account.GradeID
	}

	switch account.Role {
	case models.RoleParent:
		acctx.ChildIDs, err = s.repo.ChildIDs(ctx, account.ID)
	case models.RoleTeacher:
		acctx.TaughtClassroomIDs, err = s.repo.TaughtClassroomIDs(ctx, account.ID)
	case models.RoleStudent:
		acctx.EnrolledClassroomIDs, err = s.repo.EnrolledClassroomIDs(ctx, account.ID)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account relationships")
	}

	if payload, err := json.Marshal(acctx); err == nil {
		if err := s.contexts.Set(ctx, key, payload, s.ttl); err != nil {
			s.logger.Warn("account context cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return acctx, nil
}

// Invalidate drops the cached context for an account under every role.
// Called after profile updates so stale relationships do not linger.
func (s *ResolverService) Invalidate(ctx context.Context, accountID string) {
	for _, role := range models.Roles() {
		if err := s.contexts.Delete(ctx, contextCacheKey(accountID, role)); err != nil {
			s.logger.Warn("account context cache invalidation failed",
				zap.String("account_id", accountID), zap.Error(err))
		}
	}
}
