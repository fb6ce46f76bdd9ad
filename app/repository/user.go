package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/linkloop/auth-service/app/entity"
)

// executor is satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const userColumns = `id, email, first_name, last_name, password_hash, provider, provider_id, is_email_verified,
	       verify_token_hash, verify_token_expires_at, reset_token_hash, reset_token_expires_at,
	       grant_type, grant_start, grant_end, grant_active, last_payment_at, created_at, updated_at`

type UserRepository struct {
	db executor
}

func NewUserRepository(db executor) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *entity.User) error {
	if err := user.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO users (email, first_name, last_name, password_hash, provider, provider_id, is_email_verified,
			verify_token_hash, verify_token_expires_at, grant_type, grant_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		user.Email,
		user.FirstName,
		user.LastName,
		user.PasswordHash,
		user.Provider,
		user.ProviderID,
		user.IsEmailVerified,
		user.VerifyTokenHash,
		user.VerifyTokenExpires,
		user.GrantType,
		user.GrantActive,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	user.ID = uint64(id)
	return nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users WHERE email = ?
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, entity.NormalizeEmail(email)))
}

func (r *UserRepository) FindByID(ctx context.Context, id uint64) (*entity.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users WHERE id = ?
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *UserRepository) FindByVerifyTokenHash(ctx context.Context, tokenHash string) (*entity.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users WHERE verify_token_hash = ?
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, tokenHash))
}

func (r *UserRepository) FindByResetTokenHash(ctx context.Context, tokenHash string) (*entity.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users WHERE reset_token_hash = ?
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, tokenHash))
}

func (r *UserRepository) Update(ctx context.Context, user *entity.User) error {
	if err := user.Validate(); err != nil {
		return err
	}

	query := `
		UPDATE users SET
			email = ?,
			first_name = ?,
			last_name = ?,
			password_hash = ?,
			is_email_verified = ?,
			verify_token_hash = ?,
			verify_token_expires_at = ?,
			reset_token_hash = ?,
			reset_token_expires_at = ?,
			updated_at = ?
		WHERE id = ?
	`
	user.UpdatedAt = time.Now()
	_, err := r.db.ExecContext(ctx, query,
		user.Email,
		user.FirstName,
		user.LastName,
		user.PasswordHash,
		user.IsEmailVerified,
		user.VerifyTokenHash,
		user.VerifyTokenExpires,
		user.ResetTokenHash,
		user.ResetTokenExpires,
		user.UpdatedAt,
		user.ID,
	)
	return err
}

func (r *UserRepository) scanOne(row *sql.Row) (*entity.User, error) {
	user := &entity.User{}
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.FirstName,
		&user.LastName,
		&user.PasswordHash,
		&user.Provider,
		&user.ProviderID,
		&user.IsEmailVerified,
		&user.VerifyTokenHash,
		&user.VerifyTokenExpires,
		&user.ResetTokenHash,
		&user.ResetTokenExpires,
		&user.GrantType,
		&user.GrantStart,
		&user.GrantEnd,
		&user.GrantActive,
		&user.LastPaymentAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

type RefreshTokenRepository struct {
	db executor
}

func NewRefreshTokenRepository(db executor) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

func (r *RefreshTokenRepository) Create(ctx context.Context, token *entity.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (user_id, token_hash, expires_at, revoked, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		token.UserID,
		token.TokenHash,
		token.ExpiresAt,
		token.Revoked,
		token.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	token.ID = uint64(id)
	return nil
}

// FindValidByHash returns the token only while it is unrevoked and
// unexpired; revoked or expired rows are indistinguishable from absent ones.
func (r *RefreshTokenRepository) FindValidByHash(ctx context.Context, tokenHash string) (*entity.RefreshToken, error) {
	query := `
		SELECT id, user_id, token_hash, expires_at, revoked, created_at
		FROM refresh_tokens WHERE token_hash = ? AND revoked = 0 AND expires_at > ?
	`
	rt := &entity.RefreshToken{}
	err := r.db.QueryRowContext(ctx, query, tokenHash, time.Now()).Scan(
		&rt.ID,
		&rt.UserID,
		&rt.TokenHash,
		&rt.ExpiresAt,
		&rt.Revoked,
		&rt.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rt, nil
}

// RevokeByHash flips the revoked flag. Rows are kept as an audit trail,
// never deleted.
func (r *RefreshTokenRepository) RevokeByHash(ctx context.Context, tokenHash string) (int64, error) {
	query := `UPDATE refresh_tokens SET revoked = 1 WHERE token_hash = ? AND revoked = 0`
	result, err := r.db.ExecContext(ctx, query, tokenHash)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *RefreshTokenRepository) RevokeAllForUser(ctx context.Context, userID uint64) error {
	query := `UPDATE refresh_tokens SET revoked = 1 WHERE user_id = ? AND revoked = 0`
	_, err := r.db.ExecContext(ctx, query, userID)
	return err
}
