package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/thutoworks/thuto-api/internal/models"
)

// AuditRepository persists immutable audit facts.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository constructs the repository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create inserts a new audit fact. Facts are append only.
func (r *AuditRepository) Create(ctx context.Context, fact *models.AuditFact) error {
	if fact.ID == "" {
		fact.ID = uuid.NewString()
	}
	if fact.CreatedAt.IsZero() {
		fact.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_facts (id, actor_id, action, target_model, target_id, outcome, message, created_at)
        VALUES (:id, :actor_id, :action, :target_model, :target_id, :outcome, :message, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, fact); err != nil {
		return fmt.Errorf("create audit fact: %w", err)
	}
	return nil
}

// ListByActor returns the most recent facts recorded for an actor.
func (r *AuditRepository) ListByActor(ctx context.Context, actorID string, limit, offset int) ([]models.AuditFact, error) {
	const query = `SELECT id, actor_id, action, target_model, target_id, outcome, message, created_at
        FROM audit_facts WHERE actor_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	facts := []models.AuditFact{}
	if err := r.db.SelectContext(ctx, &facts, query, actorID, limit, offset); err != nil {
		return nil, err
	}
	return facts, nil
}
