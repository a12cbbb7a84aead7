package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/thutoworks/thuto-api/internal/models"
)

// ActivityRepository handles persistence of logged student activities.
type ActivityRepository struct {
	db *sqlx.DB
}

// NewActivityRepository constructs the repository.
func NewActivityRepository(db *sqlx.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Create persists a new activity.
func (r *ActivityRepository) Create(ctx context.Context, activity *models.Activity) error {
	if activity.ID == "" {
		activity.ID = uuid.NewString()
	}
	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO activities (id, school_id, logger_id, recipient_id, message, created_at)
        VALUES (:id, :school_id, :logger_id, :recipient_id, :message, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, activity); err != nil {
		return fmt.Errorf("create activity: %w", err)
	}
	return nil
}

// FindByID returns an activity by its ID.
func (r *ActivityRepository) FindByID(ctx context.Context, id string) (*models.Activity, error) {
	const query = `SELECT id, school_id, logger_id, recipient_id, message, created_at FROM activities WHERE id = $1`
	var activity models.Activity
	if err := r.db.GetContext(ctx, &activity, query, id); err != nil {
		return nil, err
	}
	return &activity, nil
}
