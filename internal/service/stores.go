package service

import (
	"context"

	"alumnihub/api/internal/models"
)

// Store interfaces the auth core depends on. The pgx repositories satisfy
// them in production; tests substitute in-memory fakes.

type UserStore interface {
	Create(ctx context.Context, user models.User) error
	EmailExists(ctx context.Context, email string) (bool, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByEmailWithRoles(ctx context.Context, email string) (models.User, error)
	GetByID(ctx context.Context, id string) (models.User, error)
	GetByIDWithRoles(ctx context.Context, id string) (models.User, error)
	FindByGoogleID(ctx context.Context, googleID string) (models.User, error)
	LinkGoogleID(ctx context.Context, userID string, googleID string) error
	SetEmailVerified(ctx context.Context, userID string) error
	SetSuspended(ctx context.Context, userID string, suspended bool) error
}

type RoleStore interface {
	FindByName(ctx context.Context, name string) (models.Role, error)
	AssignToUser(ctx context.Context, userID string, roleID string) error
}

type RefreshTokenStore interface {
	Create(ctx context.Context, token models.RefreshToken) error
	ListActiveByUser(ctx context.Context, userID string) ([]models.RefreshToken, error)
	ListByUser(ctx context.Context, userID string) ([]models.RefreshToken, error)
	DeleteByID(ctx context.Context, id string) error
	DeleteByIDForUser(ctx context.Context, userID string, id string) error
	DeleteAllByUser(ctx context.Context, userID string) error
}

// Notifier dispatches out-of-band messages. Delivery is fire-and-forget from
// the auth core's point of view: a failed enqueue never fails the operation.
type Notifier interface {
	EnqueueVerificationEmail(ctx context.Context, userID string, email string) error
}
