// Package oauth implements the Google OIDC login flow: consent redirect,
// state validation, code exchange, and ID-token verification.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
)

var ErrInvalidState = errors.New("invalid oauth state")

const stateTTL = 10 * time.Minute

// Profile is the subset of Google's ID-token claims the auth core needs.
type Profile struct {
	Sub       string
	Email     string
	FirstName string
	LastName  string
	AvatarURL *string
}

type GoogleProvider struct {
	oauth2Config *oauth2.Config
	verifier     *oidc.IDTokenVerifier
	states       *redis.Client
}

func NewGoogleProvider(ctx context.Context, issuerURL, clientID, clientSecret, redirectURL string, states *redis.Client) (*GoogleProvider, error) {
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("discover oidc provider: %w", err)
	}

	return &GoogleProvider{
		oauth2Config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  redirectURL,
			Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
		},
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
		states:   states,
	}, nil
}

// AuthURL mints a single-use state value and returns the consent-screen URL.
func (p *GoogleProvider) AuthURL(ctx context.Context) (string, error) {
	state := uuid.NewString()
	if err := p.states.Set(ctx, stateKey(state), "1", stateTTL).Err(); err != nil {
		return "", fmt.Errorf("store oauth state: %w", err)
	}
	return p.oauth2Config.AuthCodeURL(state), nil
}

// Exchange validates the callback state, exchanges the code, verifies the
// ID token, and maps its claims to a Profile.
func (p *GoogleProvider) Exchange(ctx context.Context, state string, code string) (Profile, error) {
	// Single use: the delete result doubles as the existence check.
	deleted, err := p.states.Del(ctx, stateKey(state)).Result()
	if err != nil {
		return Profile{}, fmt.Errorf("check oauth state: %w", err)
	}
	if deleted == 0 {
		return Profile{}, ErrInvalidState
	}

	token, err := p.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return Profile{}, fmt.Errorf("exchange code: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return Profile{}, fmt.Errorf("missing id_token in token response")
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return Profile{}, fmt.Errorf("verify id token: %w", err)
	}

	var claims struct {
		Email      string `json:"email"`
		GivenName  string `json:"given_name"`
		FamilyName string `json:"family_name"`
		Picture    string `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return Profile{}, fmt.Errorf("parse id token claims: %w", err)
	}
	if claims.Email == "" {
		return Profile{}, fmt.Errorf("no email in google profile")
	}

	profile := Profile{
		Sub:       idToken.Subject,
		Email:     claims.Email,
		FirstName: claims.GivenName,
		LastName:  claims.FamilyName,
	}
	if claims.Picture != "" {
		picture := claims.Picture
		profile.AvatarURL = &picture
	}
	return profile, nil
}

func stateKey(state string) string {
	return "oauth:state:" + state
}
