package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"alumnihub/api/internal/ids"
	"alumnihub/api/internal/models"
	"alumnihub/api/internal/rbac"
	"alumnihub/api/internal/repository"
	"alumnihub/api/internal/security"
)

var (
	ErrEmailTaken          = errors.New("email already registered")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidRefreshToken = errors.New("invalid or expired refresh token")
	ErrUserSuspended       = errors.New("account suspended")
	ErrUserNotFound        = errors.New("user not found")
	ErrSessionNotFound     = errors.New("session not found")
)

// AuthService is the sole writer of session state: registration, credential
// validation, token issuance and rotation, and revocation all go through it.
type AuthService struct {
	users    UserStore
	roles    RoleStore
	tokens   RefreshTokenStore
	issuer   *security.TokenIssuer
	notifier Notifier
	log      zerolog.Logger

	defaultRole string
	// sentinelHash absorbs the password comparison when the account lookup
	// fails, keeping "unknown email" and "wrong password" close in timing.
	sentinelHash []byte
}

func NewAuthService(
	users UserStore,
	roles RoleStore,
	tokens RefreshTokenStore,
	issuer *security.TokenIssuer,
	notifier Notifier,
	defaultRole string,
	log zerolog.Logger,
) *AuthService {
	return &AuthService{
		users:        users,
		roles:        roles,
		tokens:       tokens,
		issuer:       issuer,
		notifier:     notifier,
		log:          log,
		defaultRole:  defaultRole,
		sentinelHash: security.SentinelHash(),
	}
}

type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// UserSummary is the client-facing shape of an authenticated user, with the
// permission set resolved at issuance time.
type UserSummary struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	FirstName   string   `json:"firstName"`
	LastName    string   `json:"lastName"`
	AvatarURL   *string  `json:"avatarUrl"`
	Permissions []string `json:"permissions"`
}

// AuthResult carries both raw tokens to the HTTP layer, which returns the
// access token in the body and sets the refresh token as an HttpOnly cookie.
type AuthResult struct {
	AccessToken  string
	RefreshToken string
	User         UserSummary
}

// Register creates a password account and enqueues a verification email.
// It does not log the user in. Emails are stored lowercased; a soft-deleted
// account's email still counts as taken.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) error {
	email := normalizeEmail(input.Email)

	taken, err := s.users.EmailExists(ctx, email)
	if err != nil {
		return err
	}
	if taken {
		return ErrEmailTaken
	}

	passwordHash, err := security.HashSecret(input.Password)
	if err != nil {
		return err
	}

	user := models.User{
		ID:           ids.New(),
		Email:        email,
		PasswordHash: passwordHash,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return err
	}

	s.assignDefaultRole(ctx, user.ID)

	if err := s.notifier.EnqueueVerificationEmail(ctx, user.ID, user.Email); err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("enqueue verification email failed")
	}

	return nil
}

type LoginInput struct {
	Email     string
	Password  string
	UserAgent string
	IPAddress string
}

// Login validates credentials and issues a token pair. The password hash
// comparison runs even when the lookup fails; suspension is only reported
// after the password matched.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (AuthResult, error) {
	user, err := s.users.FindByEmailWithRoles(ctx, normalizeEmail(input.Email))
	if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		return AuthResult{}, err
	}

	if err != nil || !user.HasPassword() {
		_, _ = security.VerifySecret(input.Password, s.sentinelHash)
		return AuthResult{}, ErrInvalidCredentials
	}

	ok, err := security.VerifySecret(input.Password, user.PasswordHash)
	if err != nil || !ok {
		return AuthResult{}, ErrInvalidCredentials
	}

	if user.IsSuspended {
		return AuthResult{}, ErrUserSuspended
	}

	return s.issueTokenPair(ctx, user, input.UserAgent, input.IPAddress)
}

type GoogleProfile struct {
	GoogleID  string
	Email     string
	FirstName string
	LastName  string
	AvatarURL *string
}

// FindOrCreateFromGoogle resolves a Google identity to a local account:
// already linked, linkable by email, or freshly created. Accounts created
// here are email-verified up front, since Google already verified the address.
func (s *AuthService) FindOrCreateFromGoogle(ctx context.Context, profile GoogleProfile) (models.User, error) {
	user, err := s.users.FindByGoogleID(ctx, profile.GoogleID)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrUserNotFound):
		user, err = s.linkOrCreateFromGoogle(ctx, profile)
		if err != nil {
			return models.User{}, err
		}
	default:
		return models.User{}, err
	}

	if user.IsSuspended {
		return models.User{}, ErrUserSuspended
	}
	return user, nil
}

func (s *AuthService) linkOrCreateFromGoogle(ctx context.Context, profile GoogleProfile) (models.User, error) {
	email := normalizeEmail(profile.Email)

	existing, err := s.users.FindByEmail(ctx, email)
	if err == nil {
		if err := s.users.LinkGoogleID(ctx, existing.ID, profile.GoogleID); err != nil {
			return models.User{}, err
		}
		googleID := profile.GoogleID
		existing.GoogleID = &googleID
		s.log.Info().Str("user_id", existing.ID).Msg("linked google identity to existing account")
		return existing, nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return models.User{}, err
	}

	googleID := profile.GoogleID
	user := models.User{
		ID:              ids.New(),
		Email:           email,
		GoogleID:        &googleID,
		FirstName:       profile.FirstName,
		LastName:        profile.LastName,
		AvatarURL:       profile.AvatarURL,
		IsEmailVerified: true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return models.User{}, err
	}

	s.assignDefaultRole(ctx, user.ID)

	return user, nil
}

// LoginWithGoogle issues a token pair for an account FindOrCreateFromGoogle
// already resolved, re-fetching it with the full role/permission graph.
func (s *AuthService) LoginWithGoogle(ctx context.Context, userID string, userAgent string, ipAddress string) (AuthResult, error) {
	user, err := s.users.GetByIDWithRoles(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return AuthResult{}, ErrUserNotFound
		}
		return AuthResult{}, err
	}
	return s.issueTokenPair(ctx, user, userAgent, ipAddress)
}

// RefreshTokens rotates a refresh token: the presented raw token is matched
// against the user's live records by hash verification, its record is
// consumed, and a brand-new pair is issued. A consumed or unknown token is
// indistinguishable from an invalid one.
func (s *AuthService) RefreshTokens(ctx context.Context, userID string, rawRefreshToken string, userAgent string, ipAddress string) (AuthResult, error) {
	stored, err := s.tokens.ListActiveByUser(ctx, userID)
	if err != nil {
		return AuthResult{}, err
	}

	matched := ""
	for _, token := range stored {
		ok, err := security.VerifySecret(rawRefreshToken, token.TokenHash)
		if err == nil && ok {
			matched = token.ID
			break
		}
	}
	if matched == "" {
		return AuthResult{}, ErrInvalidRefreshToken
	}

	// Conditional consume: a concurrent refresh that already deleted the row
	// wins; this caller is rejected instead of minting a second pair.
	if err := s.tokens.DeleteByID(ctx, matched); err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) {
			return AuthResult{}, ErrInvalidRefreshToken
		}
		return AuthResult{}, err
	}

	user, err := s.users.GetByIDWithRoles(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return AuthResult{}, ErrInvalidRefreshToken
		}
		return AuthResult{}, err
	}
	if user.IsSuspended {
		return AuthResult{}, ErrUserSuspended
	}

	return s.issueTokenPair(ctx, user, userAgent, ipAddress)
}

// Logout revokes the session matching the presented refresh token. It scans
// every record regardless of expiry and is a no-op when nothing matches.
func (s *AuthService) Logout(ctx context.Context, userID string, rawRefreshToken string) error {
	stored, err := s.tokens.ListByUser(ctx, userID)
	if err != nil {
		return err
	}

	for _, token := range stored {
		ok, err := security.VerifySecret(rawRefreshToken, token.TokenHash)
		if err != nil || !ok {
			continue
		}
		if err := s.tokens.DeleteByID(ctx, token.ID); err != nil && !errors.Is(err, repository.ErrRefreshTokenNotFound) {
			return err
		}
		return nil
	}
	return nil
}

// LogoutAll revokes every session for the user across all devices.
func (s *AuthService) LogoutAll(ctx context.Context, userID string) error {
	return s.tokens.DeleteAllByUser(ctx, userID)
}

// VerifyEmail marks the user's email address as verified.
func (s *AuthService) VerifyEmail(ctx context.Context, userID string) error {
	if err := s.users.SetEmailVerified(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	return nil
}

// ListSessions returns the user's live sessions (unexpired refresh-token
// records) for the device-management view.
func (s *AuthService) ListSessions(ctx context.Context, userID string) ([]models.RefreshToken, error) {
	return s.tokens.ListActiveByUser(ctx, userID)
}

// RevokeSession deletes one of the caller's own sessions by record id.
func (s *AuthService) RevokeSession(ctx context.Context, userID string, sessionID string) error {
	if err := s.tokens.DeleteByIDForUser(ctx, userID, sessionID); err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) {
			return ErrSessionNotFound
		}
		return err
	}
	return nil
}

// SetSuspended flips the suspension flag. Suspension takes effect on the
// next authenticated request via the access middleware's store re-check.
func (s *AuthService) SetSuspended(ctx context.Context, userID string, suspended bool) error {
	if err := s.users.SetSuspended(ctx, userID, suspended); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	return nil
}

func (s *AuthService) assignDefaultRole(ctx context.Context, userID string) {
	if s.defaultRole == "" {
		return
	}
	role, err := s.roles.FindByName(ctx, s.defaultRole)
	if err != nil {
		if !errors.Is(err, repository.ErrRoleNotFound) {
			s.log.Warn().Err(err).Str("role", s.defaultRole).Msg("default role lookup failed")
		}
		return
	}
	if err := s.roles.AssignToUser(ctx, userID, role.ID); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Str("role", role.Name).Msg("default role assignment failed")
	}
}

func (s *AuthService) issueTokenPair(ctx context.Context, user models.User, userAgent string, ipAddress string) (AuthResult, error) {
	permissions := rbac.Resolve(user.Roles)

	accessToken, err := s.issuer.SignAccess(user.ID, user.Email, permissions)
	if err != nil {
		return AuthResult{}, err
	}

	refreshToken, err := s.issuer.SignRefresh(user.ID, user.Email, permissions)
	if err != nil {
		return AuthResult{}, err
	}

	tokenHash, err := security.HashSecret(refreshToken)
	if err != nil {
		return AuthResult{}, err
	}

	record := models.RefreshToken{
		ID:        ids.New(),
		UserID:    user.ID,
		TokenHash: tokenHash,
		UserAgent: userAgent,
		IPAddress: ipAddress,
		// Same TTL as the signed refresh expiry claim, so the record and the
		// signature always expire together.
		ExpiresAt: time.Now().Add(s.issuer.RefreshTTL()),
	}
	if err := s.tokens.Create(ctx, record); err != nil {
		return AuthResult{}, err
	}

	return AuthResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User: UserSummary{
			ID:          user.ID,
			Email:       user.Email,
			FirstName:   user.FirstName,
			LastName:    user.LastName,
			AvatarURL:   user.AvatarURL,
			Permissions: permissions,
		},
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
