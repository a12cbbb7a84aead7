package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/thutoworks/thuto-api/internal/authz"
	"github.com/thutoworks/thuto-api/internal/models"
	appErrors "github.com/thutoworks/thuto-api/pkg/errors"
)

type decider interface {
	Decide(ctx context.Context, action authz.Action, actor models.AccountContext, target interface{}) (authz.Decision, error)
}

type contextResolver interface {
	Resolve(ctx context.Context, accountID string, role models.Role) (*models.AccountContext, error)
	Invalidate(ctx context.Context, accountID string)
}

type accountRepository interface {
	FindByID(ctx context.Context, id string) (*models.Account, error)
	UpdateProfile(ctx context.Context, id, email, fullName string, active bool) error
}

// UpdateAccountRequest holds the mutable profile fields. Role is immutable
// and deliberately absent.
type UpdateAccountRequest struct {
	Email    string `json:"email" validate:"required,email"`
	FullName string `json:"full_name" validate:"required"`
	Active   bool   `json:"active"`
}

// AccountService exposes account viewing, updating and messaging checks.
// Every operation is decided by the authorization engine against the
// actor's resolved context and recorded in the audit trail.
type AccountService struct {
	repo      accountRepository
	resolver  contextResolver
	engine    decider
	audit     AuditRecorder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAccountService constructs the account service.
func NewAccountService(repo accountRepository, resolver contextResolver, engine decider, audit AuditRecorder, validate *validator.Validate, logger *zap.Logger) *AccountService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountService{repo: repo, resolver: resolver, engine: engine, audit: audit, validator: validate, logger: logger}
}

func (s *AccountService) targetContext(ctx context.Context, targetID string) (*models.Account, *models.AccountContext, error) {
	account, err := s.repo.FindByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "account not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
	}
	target, err := s.resolver.Resolve(ctx, account.ID, account.Role)
	if err != nil {
		return nil, nil, err
	}
	return account, target, nil
}

func (s *AccountService) record(ctx context.Context, actorID, action, targetID string, outcome models.AuditOutcome, message string) {
	if s.audit != nil {
		s.audit.Record(ctx, actorID, action, "account", targetID, outcome, message)
	}
}

// View returns the target account's profile if the actor may see it.
func (s *AccountService) View(ctx context.Context, actor models.AccountContext, targetID string) (*models.Account, error) {
	account, target, err := s.targetContext(ctx, targetID)
	if err != nil {
		return nil, err
	}

	decision, err := s.engine.Decide(ctx, authz.ActionViewAccount, actor, *target)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "authorization check failed")
	}
	if !decision.Allowed {
		s.record(ctx, actor.ID, models.AuditActionViewAccount, targetID, models.AuditDenied, decision.Reason)
		return nil, appErrors.Denied(decision.Reason)
	}

	s.record(ctx, actor.ID, models.AuditActionViewAccount, targetID, models.AuditViewed, "")
	return account, nil
}

// Update modifies the target account's profile if the actor may do so.
func (s *AccountService) Update(ctx context.Context, actor models.AccountContext, targetID string, req UpdateAccountRequest) (*models.Account, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid account payload")
	}

	_, target, err := s.targetContext(ctx, targetID)
	if err != nil {
		return nil, err
	}

	decision, err := s.engine.Decide(ctx, authz.ActionUpdateAccount, actor, *target)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "authorization check failed")
	}
	if !decision.Allowed {
		s.record(ctx, actor.ID, models.AuditActionUpdateAccount, targetID, models.AuditDenied, decision.Reason)
		return nil, appErrors.Denied(decision.Reason)
	}

	if err := s.repo.UpdateProfile(ctx, targetID, req.Email, req.FullName, req.Active); err != nil {
		s.record(ctx, actor.ID, models.AuditActionUpdateAccount, targetID, models.AuditError, "profile update failed")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update account")
	}
	s.resolver.Invalidate(ctx, targetID)

	updated, err := s.repo.FindByID(ctx, targetID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload account")
	}

	s.record(ctx, actor.ID, models.AuditActionUpdateAccount, targetID, models.AuditUpdated, "")
	return updated, nil
}

// CanMessage reports whether the actor may open a message thread with the
// target. Only denials are audited.
func (s *AccountService) CanMessage(ctx context.Context, actor models.AccountContext, targetID string) (authz.Decision, error) {
	_, target, err := s.targetContext(ctx, targetID)
	if err != nil {
		return authz.Decision{}, err
	}

	decision, err := s.engine.Decide(ctx, authz.ActionMessage, actor, *target)
	if err != nil {
		return authz.Decision{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "authorization check failed")
	}
	if !decision.Allowed {
		s.record(ctx, actor.ID, models.AuditActionMessage, targetID, models.AuditDenied, decision.Reason)
	}
	return decision, nil
}
