package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"alumnihub/api/internal/config"
	"alumnihub/api/internal/middleware"
	"alumnihub/api/internal/notify"
	"alumnihub/api/internal/oauth"
	"alumnihub/api/internal/repository"
	"alumnihub/api/internal/security"
	"alumnihub/api/internal/service"
)

type HandlerSet struct {
	log         zerolog.Logger
	cfg         *config.AppConfig
	authService *service.AuthService
	issuer      *security.TokenIssuer
	google      *oauth.GoogleProvider
	users       service.UserStore
	db          *pgxpool.Pool
	cache       *redis.Client
}

func NewHandlerSet(
	log zerolog.Logger,
	db *pgxpool.Pool,
	cache *redis.Client,
	google *oauth.GoogleProvider,
	cfg *config.AppConfig,
) HandlerSet {
	userRepo := repository.NewUserRepository(db)
	roleRepo := repository.NewRoleRepository(db)
	tokenRepo := repository.NewRefreshTokenRepository(db)
	issuer := security.NewTokenIssuer(
		cfg.Security.JWTAccessSecret,
		cfg.Security.JWTRefreshSecret,
		cfg.Security.JWTAccessTTL,
		cfg.Security.JWTRefreshTTL,
	)
	auth := service.NewAuthService(
		userRepo,
		roleRepo,
		tokenRepo,
		issuer,
		notify.NewQueue(cache, log),
		cfg.Security.DefaultRole,
		log,
	)

	return HandlerSet{
		log:         log,
		cfg:         cfg,
		authService: auth,
		issuer:      issuer,
		google:      google,
		users:       userRepo,
		db:          db,
		cache:       cache,
	}
}

// Register mounts the route tree. Public routes simply carry no auth
// middleware; everything else declares its requirements at registration.
func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	v1 := router.Group("/v1")
	{
		auth := v1.Group("/auth")
		auth.POST("/register", h.RegisterUser)
		auth.POST("/login", h.Login)
		auth.POST("/refresh", middleware.RefreshCookie(h.issuer), h.Refresh)
		auth.GET("/google", h.GoogleLogin)
		auth.GET("/google/callback", h.GoogleCallback)

		protected := v1.Group("/auth")
		protected.Use(middleware.Auth(h.issuer, h.users))
		protected.POST("/logout", h.Logout)
		protected.POST("/logout-all", h.LogoutAll)
		protected.POST("/verify-email", h.VerifyEmail)
		protected.GET("/me", h.Me)
		protected.GET("/sessions", h.ListSessions)
		protected.DELETE("/sessions/:id", h.RevokeSession)

		admin := v1.Group("/admin")
		admin.Use(
			middleware.Auth(h.issuer, h.users),
			middleware.RequirePermissions("users:suspend"),
		)
		admin.POST("/users/:id/suspend", h.SuspendUser)
		admin.POST("/users/:id/unsuspend", h.UnsuspendUser)
	}
}
