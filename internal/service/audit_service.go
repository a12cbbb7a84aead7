package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/thutoworks/thuto-api/internal/models"
)

type auditRepository interface {
	Create(ctx context.Context, fact *models.AuditFact) error
	ListByActor(ctx context.Context, actorID string, limit, offset int) ([]models.AuditFact, error)
}

// AuditRecorder records audit facts for sensitive operations.
// Recording failures are logged and never surfaced to callers.
type AuditRecorder interface {
	Record(ctx context.Context, actorID, action, targetModel, targetID string, outcome models.AuditOutcome, message string)
}

// AuditService persists audit facts through the audit repository.
type AuditService struct {
	repo   auditRepository
	logger *zap.Logger
}

// NewAuditService constructs the audit service.
func NewAuditService(repo auditRepository, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{repo: repo, logger: logger}
}

// Record writes a single audit fact. A write failure must not fail the
// operation being audited, so errors are logged and swallowed here.
func (s *AuditService) Record(ctx context.Context, actorID, action, targetModel, targetID string, outcome models.AuditOutcome, message string) {
	fact := &models.AuditFact{
		ActorID:     actorID,
		Action:      action,
		TargetModel: targetModel,
		TargetID:    targetID,
		Outcome:     outcome,
		Message:     message,
	}
	if err := s.repo.Create(ctx, fact); err != nil {
		s.logger.Error("failed to record audit fact",
			zap.String("actor_id", actorID),
			zap.String("action", action),
			zap.String("outcome", string(outcome)),
			zap.Error(err))
	}
}

// ListByActor returns the most recent facts for an actor.
func (s *AuditService) ListByActor(ctx context.Context, actorID string, limit, offset int) ([]models.AuditFact, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByActor(ctx, actorID, limit, offset)
}
