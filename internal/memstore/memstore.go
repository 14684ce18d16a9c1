// Package memstore is an in-memory implementation of the auth store
// interfaces, mirroring the pgx repositories' semantics (soft-delete
// filtering, conditional deletes). Tests use it in place of Postgres.
package memstore

import (
	"context"
	"sync"
	"time"

	"alumnihub/api/internal/models"
	"alumnihub/api/internal/repository"
)

type Store struct {
	mu        sync.Mutex
	users     map[string]models.User
	roles     map[string]models.Role
	userRoles map[string][]string
	tokens    map[string]models.RefreshToken

	// Notifications records fire-and-forget enqueues for assertions.
	Notifications []string
}

func New() *Store {
	return &Store{
		users:     make(map[string]models.User),
		roles:     make(map[string]models.Role),
		userRoles: make(map[string][]string),
		tokens:    make(map[string]models.RefreshToken),
	}
}

// Users, Roles, and Tokens expose the store-interface views over the shared
// data; Create needs a distinct receiver per entity type.
func (s *Store) Users() Users   { return Users{s} }
func (s *Store) Roles() Roles   { return Roles{s} }
func (s *Store) Tokens() Tokens { return Tokens{s} }

// SeedRole registers a role with its permission grants.
func (s *Store) SeedRole(role models.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles[role.ID] = role
}

// PutUser inserts or replaces a user record directly.
func (s *Store) PutUser(user models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
}

// AssignRole links a user to a seeded role directly.
func (s *Store) AssignRole(userID string, roleID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userRoles[userID] = append(s.userRoles[userID], roleID)
}

// TokenCount reports the number of stored refresh-token records for a user.
func (s *Store) TokenCount(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tokens {
		if t.UserID == userID {
			n++
		}
	}
	return n
}

func (s *Store) rolesOf(userID string) []models.Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	var roles []models.Role
	for _, roleID := range s.userRoles[userID] {
		if role, ok := s.roles[roleID]; ok {
			roles = append(roles, role)
		}
	}
	return roles
}

// Users implements service.UserStore.
type Users struct{ s *Store }

func (u Users) Create(_ context.Context, user models.User) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	u.s.users[user.ID] = user
	return nil
}

func (u Users) EmailExists(_ context.Context, email string) (bool, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	for _, rec := range u.s.users {
		// Soft-deleted rows still reserve the email.
		if rec.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (u Users) FindByEmail(_ context.Context, email string) (models.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	for _, rec := range u.s.users {
		if rec.Email == email && rec.DeletedAt == nil {
			return rec, nil
		}
	}
	return models.User{}, repository.ErrUserNotFound
}

func (u Users) FindByEmailWithRoles(ctx context.Context, email string) (models.User, error) {
	user, err := u.FindByEmail(ctx, email)
	if err != nil {
		return models.User{}, err
	}
	user.Roles = u.s.rolesOf(user.ID)
	return user, nil
}

func (u Users) GetByID(_ context.Context, id string) (models.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	rec, ok := u.s.users[id]
	if !ok || rec.DeletedAt != nil {
		return models.User{}, repository.ErrUserNotFound
	}
	return rec, nil
}

func (u Users) GetByIDWithRoles(ctx context.Context, id string) (models.User, error) {
	user, err := u.GetByID(ctx, id)
	if err != nil {
		return models.User{}, err
	}
	user.Roles = u.s.rolesOf(user.ID)
	return user, nil
}

func (u Users) FindByGoogleID(_ context.Context, googleID string) (models.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	for _, rec := range u.s.users {
		if rec.GoogleID != nil && *rec.GoogleID == googleID && rec.DeletedAt == nil {
			return rec, nil
		}
	}
	return models.User{}, repository.ErrUserNotFound
}

func (u Users) LinkGoogleID(_ context.Context, userID string, googleID string) error {
	return u.mutate(userID, func(rec *models.User) { rec.GoogleID = &googleID })
}

func (u Users) SetEmailVerified(_ context.Context, userID string) error {
	return u.mutate(userID, func(rec *models.User) { rec.IsEmailVerified = true })
}

func (u Users) SetSuspended(_ context.Context, userID string, suspended bool) error {
	return u.mutate(userID, func(rec *models.User) { rec.IsSuspended = suspended })
}

func (u Users) mutate(userID string, fn func(*models.User)) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	rec, ok := u.s.users[userID]
	if !ok || rec.DeletedAt != nil {
		return repository.ErrUserNotFound
	}
	fn(&rec)
	u.s.users[userID] = rec
	return nil
}

// Roles implements service.RoleStore.
type Roles struct{ s *Store }

func (r Roles) FindByName(_ context.Context, name string) (models.Role, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, role := range r.s.roles {
		if role.Name == name {
			return role, nil
		}
	}
	return models.Role{}, repository.ErrRoleNotFound
}

func (r Roles) AssignToUser(_ context.Context, userID string, roleID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.userRoles[userID] {
		if existing == roleID {
			return nil
		}
	}
	r.s.userRoles[userID] = append(r.s.userRoles[userID], roleID)
	return nil
}

// Tokens implements service.RefreshTokenStore.
type Tokens struct{ s *Store }

func (t Tokens) Create(_ context.Context, token models.RefreshToken) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now()
	}
	t.s.tokens[token.ID] = token
	return nil
}

func (t Tokens) ListActiveByUser(_ context.Context, userID string) ([]models.RefreshToken, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	now := time.Now()
	var out []models.RefreshToken
	for _, rec := range t.s.tokens {
		if rec.UserID == userID && rec.ExpiresAt.After(now) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (t Tokens) ListByUser(_ context.Context, userID string) ([]models.RefreshToken, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	var out []models.RefreshToken
	for _, rec := range t.s.tokens {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (t Tokens) DeleteByID(_ context.Context, id string) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if _, ok := t.s.tokens[id]; !ok {
		return repository.ErrRefreshTokenNotFound
	}
	delete(t.s.tokens, id)
	return nil
}

func (t Tokens) DeleteByIDForUser(_ context.Context, userID string, id string) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	rec, ok := t.s.tokens[id]
	if !ok || rec.UserID != userID {
		return repository.ErrRefreshTokenNotFound
	}
	delete(t.s.tokens, id)
	return nil
}

func (t Tokens) DeleteAllByUser(_ context.Context, userID string) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for id, rec := range t.s.tokens {
		if rec.UserID == userID {
			delete(t.s.tokens, id)
		}
	}
	return nil
}

// Notifier

func (s *Store) EnqueueVerificationEmail(_ context.Context, userID string, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Notifications = append(s.Notifications, userID)
	return nil
}
