package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"alumnihub/api/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

const userColumns = `
	id, email, password_hash, google_id, first_name, last_name, avatar_url,
	is_email_verified, is_suspended, created_at, updated_at, deleted_at
`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) Create(ctx context.Context, user models.User) error {
	const query = `
		INSERT INTO users (
			id, email, password_hash, google_id, first_name, last_name, avatar_url,
			is_email_verified, is_suspended, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, FALSE, NOW(), NOW()
		)
	`

	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.GoogleID,
		user.FirstName,
		user.LastName,
		user.AvatarURL,
		user.IsEmailVerified,
	)
	return err
}

// EmailExists deliberately does not filter soft-deleted rows: a deleted
// account's email stays reserved and cannot be re-registered.
func (r *UserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, email).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1 AND deleted_at IS NULL`, email)
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (models.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 AND deleted_at IS NULL`, id)
}

func (r *UserRepository) FindByGoogleID(ctx context.Context, googleID string) (models.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE google_id = $1 AND deleted_at IS NULL`, googleID)
}

// FindByEmailWithRoles loads the user plus the full role/permission graph.
func (r *UserRepository) FindByEmailWithRoles(ctx context.Context, email string) (models.User, error) {
	user, err := r.FindByEmail(ctx, email)
	if err != nil {
		return models.User{}, err
	}
	user.Roles, err = r.loadRoles(ctx, user.ID)
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (r *UserRepository) GetByIDWithRoles(ctx context.Context, id string) (models.User, error) {
	user, err := r.GetByID(ctx, id)
	if err != nil {
		return models.User{}, err
	}
	user.Roles, err = r.loadRoles(ctx, user.ID)
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (r *UserRepository) LinkGoogleID(ctx context.Context, userID string, googleID string) error {
	const query = `
		UPDATE users SET google_id = $2, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`
	cmd, err := r.pool.Exec(ctx, query, userID, googleID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) SetEmailVerified(ctx context.Context, userID string) error {
	const query = `
		UPDATE users SET is_email_verified = TRUE, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`
	cmd, err := r.pool.Exec(ctx, query, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) SetSuspended(ctx context.Context, userID string, suspended bool) error {
	const query = `
		UPDATE users SET is_suspended = $2, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`
	cmd, err := r.pool.Exec(ctx, query, userID, suspended)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) findOne(ctx context.Context, query string, arg any) (models.User, error) {
	row := r.pool.QueryRow(ctx, query, arg)
	var user models.User
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.GoogleID,
		&user.FirstName,
		&user.LastName,
		&user.AvatarURL,
		&user.IsEmailVerified,
		&user.IsSuspended,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.DeletedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

func (r *UserRepository) loadRoles(ctx context.Context, userID string) ([]models.Role, error) {
	const query = `
		SELECT r.id, r.name, r.description, r.is_system, p.id, p.name, p.description
		FROM user_roles ur
		JOIN roles r ON r.id = ur.role_id
		LEFT JOIN role_permissions rp ON rp.role_id = r.id
		LEFT JOIN permissions p ON p.id = rp.permission_id
		WHERE ur.user_id = $1
		ORDER BY r.name, p.name
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []models.Role
	index := make(map[string]int)
	for rows.Next() {
		var (
			role     models.Role
			permID   *string
			permName *string
			permDesc *string
		)
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.IsSystem, &permID, &permName, &permDesc); err != nil {
			return nil, err
		}

		i, ok := index[role.ID]
		if !ok {
			i = len(roles)
			index[role.ID] = i
			roles = append(roles, role)
		}
		if permID != nil {
			perm := models.Permission{ID: *permID, Name: *permName}
			if permDesc != nil {
				perm.Description = *permDesc
			}
			roles[i].Permissions = append(roles[i].Permissions, perm)
		}
	}
	return roles, rows.Err()
}
