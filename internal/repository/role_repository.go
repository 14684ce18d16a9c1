package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"alumnihub/api/internal/models"
)

var ErrRoleNotFound = errors.New("role not found")

type RoleRepository struct {
	pool *pgxpool.Pool
}

func NewRoleRepository(pool *pgxpool.Pool) *RoleRepository {
	return &RoleRepository{pool: pool}
}

func (r *RoleRepository) FindByName(ctx context.Context, name string) (models.Role, error) {
	const query = `SELECT id, name, description, is_system FROM roles WHERE name = $1`

	row := r.pool.QueryRow(ctx, query, name)
	var role models.Role
	if err := row.Scan(&role.ID, &role.Name, &role.Description, &role.IsSystem); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Role{}, ErrRoleNotFound
		}
		return models.Role{}, err
	}
	return role, nil
}

func (r *RoleRepository) AssignToUser(ctx context.Context, userID string, roleID string) error {
	const query = `
		INSERT INTO user_roles (user_id, role_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, role_id) DO NOTHING
	`
	_, err := r.pool.Exec(ctx, query, userID, roleID)
	return err
}
