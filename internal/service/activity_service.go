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

type activityRepository interface {
	Create(ctx context.Context, activity *models.Activity) error
	FindByID(ctx context.Context, id string) (*models.Activity, error)
}

// LogActivityRequest is the payload for recording a new activity.
type LogActivityRequest struct {
	RecipientID string `json:"recipient_id" validate:"required"`
	Message     string `json:"message" validate:"required"`
}

// ActivityService handles school activity feeds.
type ActivityService struct {
	repo      activityRepository
	engine    decider
	audit     AuditRecorder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewActivityService constructs the activity service.
func NewActivityService(repo activityRepository, engine decider, audit AuditRecorder, validate *validator.Validate, logger *zap.Logger) *ActivityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityService{repo: repo, engine: engine, audit: audit, validator: validate, logger: logger}
}

// Log records an activity authored by the actor. Only teachers, admins and
// principals log activities, and only inside their own school.
func (s *ActivityService) Log(ctx context.Context, actor models.AccountContext, req LogActivityRequest) (*models.Activity, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid activity payload")
	}
	switch actor.Role {
	case models.RolePrincipal, models.RoleAdmin, models.RoleTeacher:
	default:
		return nil, appErrors.Denied("only school staff can log activities")
	}
	if actor.SchoolID == "" {
		return nil, appErrors.Clone(appErrors.ErrInvalidScope, "actor has no school scope")
	}

	activity := &models.Activity{
		SchoolID:    actor.SchoolID,
		LoggerID:    actor.ID,
		RecipientID: req.RecipientID,
		Message:     req.Message,
	}
	if err := s.repo.Create(ctx, activity); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to log activity")
	}
	return activity, nil
}

// View returns the activity if the actor may see it.
func (s *ActivityService) View(ctx context.Context, actor models.AccountContext, activityID string) (*models.Activity, error) {
	activity, err := s.repo.FindByID(ctx, activityID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "activity not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load activity")
	}

	decision, err := s.engine.Decide(ctx, authz.ActionViewActivity, actor, *activity)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "authorization check failed")
	}
	if !decision.Allowed {
		if s.audit != nil {
			s.audit.Record(ctx, actor.ID, models.AuditActionViewActivity, "activity", activityID, models.AuditDenied, decision.Reason)
		}
		return nil, appErrors.Denied(decision.Reason)
	}

	if s.audit != nil {
		s.audit.Record(ctx, actor.ID, models.AuditActionViewActivity, "activity", activityID, models.AuditViewed, "")
	}
	return activity, nil
}
