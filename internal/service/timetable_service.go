package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/thutoworks/thuto-api/internal/authz"
	"github.com/thutoworks/thuto-api/internal/models"
	appErrors "github.com/thutoworks/thuto-api/pkg/errors"
)

type timetableRepository interface {
	FindByID(ctx context.Context, id string) (*models.GroupTimetable, error)
	SubscriberIDs(ctx context.Context, timetableID string) ([]string, error)
}

// TimetableService exposes authorized group timetable reads.
type TimetableService struct {
	repo   timetableRepository
	engine decider
	audit  AuditRecorder
	logger *zap.Logger
}

// NewTimetableService constructs the timetable service.
func NewTimetableService(repo timetableRepository, engine decider, audit AuditRecorder, logger *zap.Logger) *TimetableService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableService{repo: repo, engine: engine, audit: audit, logger: logger}
}

// View returns the timetable if the actor may see it.
func (s *TimetableService) View(ctx context.Context, actor models.AccountContext, timetableID string) (*models.GroupTimetable, error) {
	timetable, err := s.repo.FindByID(ctx, timetableID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}

	decision, err := s.engine.Decide(ctx, authz.ActionViewGroupTimetable, actor, *timetable)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "authorization check failed")
	}
	if !decision.Allowed {
		if s.audit != nil {
			s.audit.Record(ctx, actor.ID, models.AuditActionViewGroupTimetable, "group_timetable", timetableID, models.AuditDenied, decision.Reason)
		}
		return nil, appErrors.Denied(decision.Reason)
	}

	if s.audit != nil {
		s.audit.Record(ctx, actor.ID, models.AuditActionViewGroupTimetable, "group_timetable", timetableID, models.AuditViewed, "")
	}
	return timetable, nil
}
