package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"

	"alumnihub/api/internal/models"
)

var ErrRefreshTokenNotFound = errors.New("refresh token not found")

const refreshTokenColumns = `id, user_id, token_hash, user_agent, ip_address, created_at, expires_at`

type RefreshTokenRepository struct {
	pool *pgxpool.Pool
}

func NewRefreshTokenRepository(pool *pgxpool.Pool) *RefreshTokenRepository {
	return &RefreshTokenRepository{pool: pool}
}

func (r *RefreshTokenRepository) Create(ctx context.Context, token models.RefreshToken) error {
	const query = `
		INSERT INTO refresh_tokens (
			id, user_id, token_hash, user_agent, ip_address, created_at, expires_at
		) VALUES (
			$1, $2, $3, $4, $5, NOW(), $6
		)
	`

	_, err := r.pool.Exec(ctx, query,
		token.ID,
		token.UserID,
		token.TokenHash,
		token.UserAgent,
		token.IPAddress,
		token.ExpiresAt,
	)
	return err
}

// ListActiveByUser returns unexpired records only; an expired row is never
// treated as a live session.
func (r *RefreshTokenRepository) ListActiveByUser(ctx context.Context, userID string) ([]models.RefreshToken, error) {
	const query = `
		SELECT ` + refreshTokenColumns + `
		FROM refresh_tokens
		WHERE user_id = $1 AND expires_at > NOW()
		ORDER BY created_at DESC
	`
	return r.list(ctx, query, userID)
}

// ListByUser returns every record, expired or not. Logout scans all of them
// so a stale cookie still removes its row.
func (r *RefreshTokenRepository) ListByUser(ctx context.Context, userID string) ([]models.RefreshToken, error) {
	const query = `
		SELECT ` + refreshTokenColumns + `
		FROM refresh_tokens
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	return r.list(ctx, query, userID)
}

// DeleteByID consumes a token record. The rows-affected check makes rotation
// a single atomic conditional delete: of two concurrent refreshes presenting
// the same token, exactly one sees the row.
func (r *RefreshTokenRepository) DeleteByID(ctx context.Context, id string) error {
	const query = `DELETE FROM refresh_tokens WHERE id = $1`
	cmd, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrRefreshTokenNotFound
	}
	return nil
}

// DeleteByIDForUser deletes one of the user's own records; other users'
// sessions are unreachable by construction.
func (r *RefreshTokenRepository) DeleteByIDForUser(ctx context.Context, userID string, id string) error {
	const query = `DELETE FROM refresh_tokens WHERE id = $1 AND user_id = $2`
	cmd, err := r.pool.Exec(ctx, query, id, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrRefreshTokenNotFound
	}
	return nil
}

func (r *RefreshTokenRepository) DeleteAllByUser(ctx context.Context, userID string) error {
	const query = `DELETE FROM refresh_tokens WHERE user_id = $1`
	_, err := r.pool.Exec(ctx, query, userID)
	return err
}

// DeleteExpired garbage-collects rows past their expiry. Validity checks
// never rely on this running; it only keeps the table small.
func (r *RefreshTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	const query = `DELETE FROM refresh_tokens WHERE expires_at <= NOW()`
	cmd, err := r.pool.Exec(ctx, query)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *RefreshTokenRepository) list(ctx context.Context, query string, userID string) ([]models.RefreshToken, error) {
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []models.RefreshToken
	for rows.Next() {
		var token models.RefreshToken
		if err := rows.Scan(
			&token.ID,
			&token.UserID,
			&token.TokenHash,
			&token.UserAgent,
			&token.IPAddress,
			&token.CreatedAt,
			&token.ExpiresAt,
		); err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	return tokens, rows.Err()
}
