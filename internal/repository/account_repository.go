package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/thutoworks/thuto-api/internal/models"
)

// AccountRepository handles persistence of accounts, their relationship
// sets and auth credentials.
type AccountRepository struct {
	db *sqlx.DB
}

// NewAccountRepository constructs the repository.
func NewAccountRepository(db *sqlx.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

const accountColumns = `id, email, full_name, password_hash, role, school_id, grade_id, active, last_login_at, created_at, updated_at`

// FindByIDAndRole returns the account matching both id and role. A role
// mismatch surfaces as sql.ErrNoRows just like true absence.
func (r *AccountRepository) FindByIDAndRole(ctx context.Context, id string, role models.Role) (*models.Account, error) {
	query := fmt.Sprintf(`SELECT %s FROM accounts WHERE id = $1 AND role = $2`, accountColumns)
	var account models.Account
	if err := r.db.GetContext(ctx, &account, query, id, role); err != nil {
		return nil, err
	}
	return &account, nil
}

// FindByID returns an account by its ID.
func (r *AccountRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	query := fmt.Sprintf(`SELECT %s FROM accounts WHERE id = $1`, accountColumns)
	var account models.Account
	if err := r.db.GetContext(ctx, &account, query, id); err != nil {
		return nil, err
	}
	return &account, nil
}

// FindByEmail returns an account by email for authentication.
func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := fmt.Sprintf(`SELECT %s FROM accounts WHERE email = $1`, accountColumns)
	var account models.Account
	if err := r.db.GetContext(ctx, &account, query, email); err != nil {
		return nil, err
	}
	return &account, nil
}

// ChildIDs returns the student ids linked to a parent.
func (r *AccountRepository) ChildIDs(ctx context.Context, parentID string) ([]string, error) {
	const query = `SELECT student_id FROM parent_children WHERE parent_id = $1 ORDER BY student_id`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, parentID); err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	return ids, nil
}

// TaughtClassroomIDs returns the classrooms taught by a teacher.
func (r *AccountRepository) TaughtClassroomIDs(ctx context.Context, teacherID string) ([]string, error) {
	const query = `SELECT id FROM classrooms WHERE teacher_id = $1 ORDER BY id`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, teacherID); err != nil {
		return nil, fmt.Errorf("list taught classrooms: %w", err)
	}
	return ids, nil
}

// EnrolledClassroomIDs returns the classrooms a student is enrolled in.
func (r *AccountRepository) EnrolledClassroomIDs(ctx context.Context, studentID string) ([]string, error) {
	const query = `SELECT classroom_id FROM classroom_students WHERE student_id = $1 ORDER BY classroom_id`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, studentID); err != nil {
		return nil, fmt.Errorf("list enrolled classrooms: %w", err)
	}
	return ids, nil
}

// UpdateProfile updates the mutable profile fields of an account. Role is
// immutable and deliberately not updatable here.
func (r *AccountRepository) UpdateProfile(ctx context.Context, id, email, fullName string, active bool) error {
	const query = `UPDATE accounts SET email = $2, full_name = $3, active = $4, updated_at = $5 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, email, fullName, active, time.Now().UTC()); err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	return nil
}

// UpdateLastLogin stamps the last successful login.
func (r *AccountRepository) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	const query = `UPDATE accounts SET last_login_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, ts); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// UpdatePassword replaces the password hash.
func (r *AccountRepository) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	const query = `UPDATE accounts SET password_hash = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, passwordHash, updatedAt); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// CreateRefreshToken persists a refresh token.
func (r *AccountRepository) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	const query = `INSERT INTO refresh_tokens (id, account_id, token, expires_at, created_at, revoked, revoked_at, ip_address, user_agent)
        VALUES (:id, :account_id, :token, :expires_at, :created_at, :revoked, :revoked_at, :ip_address, :user_agent)`
	if _, err := r.db.NamedExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}
	return nil
}

// FindRefreshToken looks a refresh token up by its opaque value.
func (r *AccountRepository) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	const query = `SELECT id, account_id, token, expires_at, created_at, revoked, revoked_at, ip_address, user_agent
        FROM refresh_tokens WHERE token = $1`
	var stored models.RefreshToken
	if err := r.db.GetContext(ctx, &stored, query, token); err != nil {
		return nil, err
	}
	return &stored, nil
}

// RevokeRefreshToken marks a single token revoked.
func (r *AccountRepository) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	const query = `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, revokedAt); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// RevokeAccountRefreshTokens revokes every live token for an account.
func (r *AccountRepository) RevokeAccountRefreshTokens(ctx context.Context, accountID string) error {
	const query = `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE account_id = $1 AND revoked = FALSE`
	if _, err := r.db.ExecContext(ctx, query, accountID, time.Now().UTC()); err != nil {
		return fmt.Errorf("revoke account refresh tokens: %w", err)
	}
	return nil
}
