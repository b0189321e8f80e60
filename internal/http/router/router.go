package router

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/casimir/freon/internal/http/handler"
	"github.com/casimir/freon/internal/http/middleware"
	"github.com/casimir/freon/internal/http/response"
	"github.com/casimir/freon/internal/security"
	"github.com/casimir/freon/internal/service"
)

type Dependencies struct {
	InfoHandler        *handler.InfoHandler
	ProxyHandler       *handler.ProxyHandler
	ControlHandler     *handler.ControlHandler
	TokenHandler       *handler.TokenHandler
	CredentialsHandler *handler.CredentialsHandler
	AdminHandler       *handler.AdminHandler

	TokenAuthenticator    *service.TokenAuthenticator
	WallabagAuthenticator *service.WallabagAuthenticator
	JWTManager            *security.JWTManager

	APIRateLimitRPM   int
	AuthRateLimitRPM  int
	GlobalRateLimiter func(http.Handler) http.Handler
	AuthRateLimiter   func(http.Handler) http.Handler
	Readiness         func(ctx context.Context) error
	EnableOTelHTTP    bool
}

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.StructuredRequestLogger)
	r.Use(middleware.BodyLimit(8 << 20))
	if dep.GlobalRateLimiter != nil {
		r.Use(dep.GlobalRateLimiter)
	} else {
		r.Use(middleware.NewRateLimiter(dep.APIRateLimitRPM, time.Minute).Middleware())
	}

	authLimiter := dep.AuthRateLimiter
	if authLimiter == nil {
		authLimiter = middleware.NewRateLimiter(dep.AuthRateLimitRPM, time.Minute).Middleware()
	}

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if dep.Readiness != nil {
			if err := dep.Readiness(r.Context()); err != nil {
				response.Error(w, r, http.StatusServiceUnavailable, "DEPENDENCY_UNREADY", "dependencies are not ready", nil)
				return
			}
		}
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/info", dep.InfoHandler.Info)
		r.With(middleware.TokenAuth(dep.TokenAuthenticator)).Get("/me", dep.InfoHandler.Me)
	})

	r.With(middleware.WallabagAuth(dep.WallabagAuthenticator)).
		HandleFunc("/wallabag/api/*", dep.ProxyHandler.Relay)

	r.Route("/control", func(r chi.Router) {
		r.With(authLimiter).Post("/login", dep.ControlHandler.Login)
		r.Post("/logout", dep.ControlHandler.Logout)
		r.Group(func(r chi.Router) {
			r.Use(middleware.ControlSession(dep.JWTManager))
			r.Get("/me", dep.ControlHandler.Me)
			r.Get("/tokens", dep.TokenHandler.List)
			r.Post("/tokens", dep.TokenHandler.Create)
			r.Get("/tokens/{id}", dep.TokenHandler.Get)
			r.Delete("/tokens/{id}", dep.TokenHandler.Delete)
			r.Get("/wallabag", dep.CredentialsHandler.Get)
			r.Put("/wallabag", dep.CredentialsHandler.Put)
			r.Delete("/wallabag", dep.CredentialsHandler.Delete)
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireSuperuser)
				r.Get("/users", dep.AdminHandler.ListUsers)
				r.Post("/users", dep.AdminHandler.CreateUser)
				r.Get("/users/{id}", dep.AdminHandler.GetUser)
				r.Delete("/users/{id}", dep.AdminHandler.DeleteUser)
			})
		})
	})

	var h http.Handler = r
	if dep.EnableOTelHTTP {
		h = otelhttp.NewHandler(r, "http.server")
	}
	return h
}
