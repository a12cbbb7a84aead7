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

type classroomRepository interface {
	FindByID(ctx context.Context, id string) (*models.Classroom, error)
	StudentIDs(ctx context.Context, classroomID string) ([]string, error)
}

// ClassroomService exposes authorized classroom reads.
type ClassroomService struct {
	repo   classroomRepository
	engine decider
	audit  AuditRecorder
	logger *zap.Logger
}

// NewClassroomService constructs the classroom service.
func NewClassroomService(repo classroomRepository, engine decider, audit AuditRecorder, logger *zap.Logger) *ClassroomService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassroomService{repo: repo, engine: engine, audit: audit, logger: logger}
}

// View returns the classroom if the actor may see it.
func (s *ClassroomService) View(ctx context.Context, actor models.AccountContext, classroomID string) (*models.Classroom, error) {
	classroom, err := s.repo.FindByID(ctx, classroomID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "classroom not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classroom")
	}

	decision, err := s.engine.Decide(ctx, authz.ActionViewClassroom, actor, *classroom)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "authorization check failed")
	}
	if !decision.Allowed {
		if s.audit != nil {
			s.audit.Record(ctx, actor.ID, models.AuditActionViewClassroom, "classroom", classroomID, models.AuditDenied, decision.Reason)
		}
		return nil, appErrors.Denied(decision.Reason)
	}

	if s.audit != nil {
		s.audit.Record(ctx, actor.ID, models.AuditActionViewClassroom, "classroom", classroomID, models.AuditViewed, "")
	}
	return classroom, nil
}

// Roster returns the student IDs of a classroom the actor may view.
func (s *ClassroomService) Roster(ctx context.Context, actor models.AccountContext, classroomID string) ([]string, error) {
	if _, err := s.View(ctx, actor, classroomID); err != nil {
		return nil, err
	}
	return s.repo.StudentIDs(ctx, classroomID)
}
