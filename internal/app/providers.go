package app

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/casimir/freon/internal/config"
	"github.com/casimir/freon/internal/database"
	"github.com/casimir/freon/internal/http/handler"
	"github.com/casimir/freon/internal/http/middleware"
	"github.com/casimir/freon/internal/http/router"
	"github.com/casimir/freon/internal/observability"
	"github.com/casimir/freon/internal/repository"
	"github.com/casimir/freon/internal/security"
	"github.com/casimir/freon/internal/service"
	"github.com/casimir/freon/internal/wallabag"
)

func ProvideDatabase(cfg *config.Config, runtime *observability.Runtime) (*gorm.DB, error) {
	db, err := database.Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, err
	}
	if err := database.EnsureDefaultSuperuser(db, cfg, runtime.Logger, security.SetPassword); err != nil {
		return nil, err
	}
	return db, nil
}

func ProvideJWTManager(cfg *config.Config) *security.JWTManager {
	return security.NewJWTManager("freon", "freon-control", cfg.ControlJWTSecret, cfg.ControlSessionTTL)
}

// ProvideRedisClient returns nil when no redis address is configured; rate
// limiting then stays process-local.
func ProvideRedisClient(cfg *config.Config) (redis.UniversalClient, func()) {
	if cfg.RedisAddr == "" {
		return nil, func() {}
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	return client, func() { _ = client.Close() }
}

// ProvideRateLimiters builds the global and login limiters, distributed when
// redis is available. The global limiter fails open so a redis outage slows
// nothing down; the login limiter fails closed to keep brute force expensive.
func ProvideRateLimiters(cfg *config.Config, client redis.UniversalClient) (global, auth func(http.Handler) http.Handler) {
	if client == nil {
		global = middleware.NewRateLimiter(cfg.APIRateLimitRPM, time.Minute).Middleware()
		auth = middleware.NewRateLimiter(cfg.AuthRateLimitRPM, time.Minute).Middleware()
		return global, auth
	}
	limiter := middleware.NewRedisFixedWindowLimiter(client, "freon:ratelimit")
	global = middleware.NewDistributedRateLimiter(limiter, cfg.APIRateLimitRPM, time.Minute, middleware.FailOpen, "api").Middleware()
	auth = middleware.NewDistributedRateLimiter(limiter, cfg.AuthRateLimitRPM, time.Minute, middleware.FailClosed, "auth").Middleware()
	return global, auth
}

func ProvideRouter(
	cfg *config.Config,
	db *gorm.DB,
	jwtMgr *security.JWTManager,
	client redis.UniversalClient,
) http.Handler {
	users := repository.NewUserRepository(db)
	tokens := repository.NewTokenRepository(db)
	scopes := repository.NewScopeRepository(db)
	creds := repository.NewWallabagCredentialsRepository(db)

	sessions := wallabag.NewSessionManager(wallabag.NewClient(cfg.WallabagTimeout), creds)
	userService := service.NewUserService(users)

	globalLimiter, authLimiter := ProvideRateLimiters(cfg, client)

	return router.NewRouter(router.Dependencies{
		InfoHandler:           handler.NewInfoHandler(),
		ProxyHandler:          handler.NewProxyHandler(sessions),
		ControlHandler:        handler.NewControlHandler(userService, jwtMgr, cfg.OTELEnvironment != "dev"),
		TokenHandler:          handler.NewTokenHandler(service.NewTokenService(tokens, scopes)),
		CredentialsHandler:    handler.NewCredentialsHandler(service.NewCredentialsService(creds)),
		AdminHandler:          handler.NewAdminHandler(userService),
		TokenAuthenticator:    service.NewTokenAuthenticator(tokens, scopes),
		WallabagAuthenticator: service.NewWallabagAuthenticator(tokens, scopes, creds),
		JWTManager:            jwtMgr,
		APIRateLimitRPM:       cfg.APIRateLimitRPM,
		AuthRateLimitRPM:      cfg.AuthRateLimitRPM,
		GlobalRateLimiter:     globalLimiter,
		AuthRateLimiter:       authLimiter,
		Readiness:             databaseReadiness(db),
		EnableOTelHTTP:        cfg.OTELTracesEnabled,
	})
}

func ProvideServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func databaseReadiness(db *gorm.DB) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
}
