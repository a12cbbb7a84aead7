package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/thutoworks/thuto-api/internal/models"
)

// TimetableRepository handles lookups of group timetables and their subscribers.
type TimetableRepository struct {
	db *sqlx.DB
}

// NewTimetableRepository constructs the repository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

// FindByID returns a group timetable by its ID.
func (r *TimetableRepository) FindByID(ctx context.Context, id string) (*models.GroupTimetable, error) {
	const query = `SELECT id, school_id, grade_id, name, created_at, updated_at FROM group_timetables WHERE id = $1`
	var timetable models.GroupTimetable
	if err := r.db.GetContext(ctx, &timetable, query, id); err != nil {
		return nil, err
	}
	return &timetable, nil
}

// SubscriberIDs returns the account IDs subscribed to a timetable.
func (r *TimetableRepository) SubscriberIDs(ctx context.Context, timetableID string) ([]string, error) {
	const query = `SELECT account_id FROM timetable_subscribers WHERE timetable_id = $1`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, timetableID); err != nil {
		return nil, err
	}
	return ids, nil
}
