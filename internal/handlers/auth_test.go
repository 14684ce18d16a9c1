package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alumnihub/api/internal/config"
	"alumnihub/api/internal/memstore"
	"alumnihub/api/internal/middleware"
	"alumnihub/api/internal/models"
	"alumnihub/api/internal/security"
	"alumnihub/api/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testAPI struct {
	router *gin.Engine
	store  *memstore.Store
}

func newTestAPI(t *testing.T) testAPI {
	t.Helper()

	cfg := &config.AppConfig{
		Environment: "development",
		FrontendURL: "http://localhost:3000",
		Security: config.SecurityConfig{
			JWTAccessTTL:  15 * time.Minute,
			JWTRefreshTTL: 7 * 24 * time.Hour,
			DefaultRole:   "guest",
		},
	}

	store := memstore.New()
	issuer := security.NewTokenIssuer("access-secret", "refresh-secret", cfg.Security.JWTAccessTTL, cfg.Security.JWTRefreshTTL)
	svc := service.NewAuthService(
		store.Users(),
		store.Roles(),
		store.Tokens(),
		issuer,
		store,
		cfg.Security.DefaultRole,
		zerolog.Nop(),
	)

	h := HandlerSet{
		log:         zerolog.Nop(),
		cfg:         cfg,
		authService: svc,
		issuer:      issuer,
		users:       store.Users(),
	}

	router := gin.New()
	h.Register(router.Group("/api"))
	return testAPI{router: router, store: store}
}

func (api testAPI) do(t *testing.T, method, path, body, bearer string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	return rec
}

func refreshCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == middleware.RefreshCookieName {
			return cookie
		}
	}
	t.Fatal("no refresh cookie set")
	return nil
}

const registerBody = `{"email":"a@x.com","password":"P@ssw0rd1","firstName":"Ann","lastName":"Lee"}`
const loginBody = `{"email":"a@x.com","password":"P@ssw0rd1"}`

func TestRegisterEndpoint(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/v1/auth/register", registerBody, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), "Registration successful")

	// Registration does not log in: no refresh cookie, no token in the body.
	assert.Empty(t, rec.Result().Cookies())
	assert.NotContains(t, rec.Body.String(), "accessToken")

	rec = api.do(t, http.MethodPost, "/api/v1/auth/register", registerBody, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRegisterValidation(t *testing.T) {
	api := newTestAPI(t)

	tests := []struct {
		name string
		body string
	}{
		{"bad email", `{"email":"nope","password":"P@ssw0rd1","firstName":"A","lastName":"B"}`},
		{"short password", `{"email":"a@x.com","password":"P@s1","firstName":"A","lastName":"B"}`},
		{"no uppercase", `{"email":"a@x.com","password":"p@ssw0rd1","firstName":"A","lastName":"B"}`},
		{"no symbol", `{"email":"a@x.com","password":"Passw0rd1","firstName":"A","lastName":"B"}`},
		{"no digit", `{"email":"a@x.com","password":"P@ssword!","firstName":"A","lastName":"B"}`},
		{"missing name", `{"email":"a@x.com","password":"P@ssw0rd1"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(t, http.MethodPost, "/api/v1/auth/register", tt.body, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestLoginRefreshLogoutFlow(t *testing.T) {
	api := newTestAPI(t)

	require.Equal(t, http.StatusCreated,
		api.do(t, http.MethodPost, "/api/v1/auth/register", registerBody, "").Code)

	// Login returns the access token in the body and the refresh token only
	// as an HttpOnly cookie scoped to the auth routes.
	rec := api.do(t, http.MethodPost, "/api/v1/auth/login", loginBody, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var loginResp struct {
		AccessToken string `json:"accessToken"`
		User        struct {
			ID          string   `json:"id"`
			Email       string   `json:"email"`
			Permissions []string `json:"permissions"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &loginResp))
	assert.NotEmpty(t, loginResp.AccessToken)
	assert.Equal(t, "a@x.com", loginResp.User.Email)
	assert.Equal(t, []string{}, loginResp.User.Permissions)

	cookie := refreshCookie(t, rec)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, "/api/v1/auth", cookie.Path)
	assert.NotEqual(t, loginResp.AccessToken, cookie.Value)

	// Authenticated identity endpoint.
	rec = api.do(t, http.MethodGet, "/api/v1/auth/me", "", loginResp.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "a@x.com")

	// Refresh rotates the cookie.
	rec = api.do(t, http.MethodPost, "/api/v1/auth/refresh", "", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	rotated := refreshCookie(t, rec)
	assert.NotEqual(t, cookie.Value, rotated.Value)

	// The consumed cookie is single-use.
	rec = api.do(t, http.MethodPost, "/api/v1/auth/refresh", "", "", cookie)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Logout revokes the current session and clears the cookie.
	rec = api.do(t, http.MethodPost, "/api/v1/auth/logout", "", loginResp.AccessToken, rotated)
	require.Equal(t, http.StatusNoContent, rec.Code)
	cleared := refreshCookie(t, rec)
	assert.Empty(t, cleared.Value)

	rec = api.do(t, http.MethodPost, "/api/v1/auth/refresh", "", "", rotated)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginFailures(t *testing.T) {
	api := newTestAPI(t)
	require.Equal(t, http.StatusCreated,
		api.do(t, http.MethodPost, "/api/v1/auth/register", registerBody, "").Code)

	rec := api.do(t, http.MethodPost, "/api/v1/auth/login",
		`{"email":"a@x.com","password":"wrong-pass"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/v1/auth/login",
		`{"email":"nobody@x.com","password":"P@ssw0rd1"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminSuspension(t *testing.T) {
	api := newTestAPI(t)

	api.store.SeedRole(models.Role{
		ID:   "role-admin",
		Name: "admin",
		Permissions: []models.Permission{
			{ID: "users:suspend", Name: "users:suspend"},
		},
	})

	// Target account.
	require.Equal(t, http.StatusCreated,
		api.do(t, http.MethodPost, "/api/v1/auth/register", registerBody, "").Code)

	// Admin account.
	adminBody := `{"email":"root@x.com","password":"P@ssw0rd1","firstName":"Roo","lastName":"Tan"}`
	require.Equal(t, http.StatusCreated,
		api.do(t, http.MethodPost, "/api/v1/auth/register", adminBody, "").Code)

	rec := api.do(t, http.MethodPost, "/api/v1/auth/login", `{"email":"root@x.com","password":"P@ssw0rd1"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var adminLogin struct {
		AccessToken string `json:"accessToken"`
		User        struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &adminLogin))

	rec = api.do(t, http.MethodPost, "/api/v1/auth/login", loginBody, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var targetLogin struct {
		AccessToken string `json:"accessToken"`
		User        struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &targetLogin))

	// Without the grant, the guard denies even authenticated callers.
	rec = api.do(t, http.MethodPost, "/api/v1/admin/users/"+targetLogin.User.ID+"/suspend", "", adminLogin.AccessToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Grant the role and mint a fresh token carrying the permission.
	api.store.AssignRole(adminLogin.User.ID, "role-admin")
	rec = api.do(t, http.MethodPost, "/api/v1/auth/login", `{"email":"root@x.com","password":"P@ssw0rd1"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &adminLogin))

	rec = api.do(t, http.MethodPost, "/api/v1/admin/users/"+targetLogin.User.ID+"/suspend", "", adminLogin.AccessToken)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// Suspended: correct credentials are now forbidden, not unauthorized.
	rec = api.do(t, http.MethodPost, "/api/v1/auth/login", loginBody, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// And the suspended user's live token stops working immediately.
	rec = api.do(t, http.MethodGet, "/api/v1/auth/me", "", targetLogin.AccessToken)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/v1/admin/users/"+targetLogin.User.ID+"/unsuspend", "", adminLogin.AccessToken)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = api.do(t, http.MethodPost, "/api/v1/auth/login", loginBody, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSessionEndpoints(t *testing.T) {
	api := newTestAPI(t)
	require.Equal(t, http.StatusCreated,
		api.do(t, http.MethodPost, "/api/v1/auth/register", registerBody, "").Code)

	first := api.do(t, http.MethodPost, "/api/v1/auth/login", loginBody, "")
	require.Equal(t, http.StatusOK, first.Code)
	second := api.do(t, http.MethodPost, "/api/v1/auth/login", loginBody, "")
	require.Equal(t, http.StatusOK, second.Code)

	var loginResp struct {
		AccessToken string `json:"accessToken"`
	}
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &loginResp))

	rec := api.do(t, http.MethodGet, "/api/v1/auth/sessions", "", loginResp.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)

	var sessionsResp struct {
		Sessions []struct {
			ID string `json:"id"`
		} `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sessionsResp))
	require.Len(t, sessionsResp.Sessions, 2)

	rec = api.do(t, http.MethodDelete, "/api/v1/auth/sessions/"+sessionsResp.Sessions[0].ID, "", loginResp.AccessToken)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = api.do(t, http.MethodDelete, "/api/v1/auth/sessions/unknown-id", "", loginResp.AccessToken)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/v1/auth/sessions", "", loginResp.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sessionsResp))
	assert.Len(t, sessionsResp.Sessions, 1)
}
