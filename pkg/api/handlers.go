package api

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/rolodex/pkg/auth"
	"github.com/platinummonkey/rolodex/pkg/config"
	"github.com/platinummonkey/rolodex/pkg/httputil"
	"github.com/platinummonkey/rolodex/pkg/middleware"
	"github.com/platinummonkey/rolodex/pkg/observability"
	"github.com/platinummonkey/rolodex/pkg/session"
	"github.com/platinummonkey/rolodex/pkg/storage"
)

// SessionService is the account and session surface the API depends on
type SessionService interface {
	middleware.IdentityResolver

	Signup(ctx context.Context, in session.SignupInput) (*auth.User, error)
	Login(ctx context.Context, email, password string) (*auth.TokenPair, error)
	ConfirmEmail(ctx context.Context, token string) (string, error)
	RequestConfirmation(ctx context.Context, email string) (string, error)
	RequestPasswordReset(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, token, password1, password2 string) (string, error)
	Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error)
	Logout(ctx context.Context, user *auth.User) error
	UpdateAvatar(ctx context.Context, user *auth.User, url string) (*auth.User, error)
}

var _ SessionService = (*session.Manager)(nil)

// AvatarUploader stores avatar images and returns their public URL
type AvatarUploader interface {
	UploadAvatar(ctx context.Context, userID int64, content io.Reader, contentType string) (string, error)
}

// Dependencies are the collaborators of a Server. Avatars, Limiter and Metrics are optional.
type Dependencies struct {
	Sessions SessionService
	Contacts storage.ContactStore
	Avatars  AvatarUploader
	Limiter  middleware.Limiter

	RateLimits     config.RateLimitConfig
	AllowedOrigins []string
	MaxBodyBytes   int64

	Metrics *observability.Metrics
	Logger  logrus.FieldLogger

	// Now is the clock used for upcoming birthdays
	Now func() time.Time
}

// Server is the HTTP API
type Server struct {
	router  *mux.Router
	deps    Dependencies
	authMW  *middleware.AuthMiddleware
	handler http.Handler
}

// NewServer creates the API server and registers every route under /api
func NewServer(deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = observability.NewNopLogger()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MaxBodyBytes <= 0 {
		deps.MaxBodyBytes = 5 << 20
	}

	s := &Server{
		router: mux.NewRouter(),
		deps:   deps,
		authMW: middleware.NewAuthMiddleware(deps.Sessions, deps.Logger),
	}

	s.setupRoutes()

	s.handler = httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(deps.Logger),
		httputil.RecoveryMiddleware(deps.Logger),
		httputil.CORSMiddleware(deps.AllowedOrigins),
		httputil.MaxBytesMiddleware(deps.MaxBodyBytes),
	)(s.router)

	return s
}

// setupRoutes registers all API routes
func (s *Server) setupRoutes() {
	s.router.Use(observability.HTTPMetricsMiddleware(s.deps.Metrics))
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteNotFoundError(w, "Not Found")
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteDetail(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	api := s.router.PathPrefix("/api").Subrouter()

	s.RegisterRoutes(api, NewAuthHandlers(s.deps.Sessions, s.authMW, s.deps.Logger))
	s.RegisterRoutes(api, NewUserHandlers(s.deps.Sessions, s.deps.Avatars, s.authMW, s.deps.Logger))
	s.RegisterRoutes(api, NewContactHandlers(s.deps.Contacts, s.guard, s.deps.Now, s.deps.Logger))
}

// guard wraps a protected handler: the route quota is checked first, then the bearer token
func (s *Server) guard(route string, h http.HandlerFunc) http.Handler {
	var handler http.Handler = s.authMW.Handler(h)

	if s.deps.Limiter == nil || !s.deps.RateLimits.Enabled {
		return handler
	}

	quota, ok := s.deps.RateLimits.Quota(route)
	if !ok {
		return handler
	}
	return middleware.RateLimitMiddleware(s.deps.Limiter, quota, s.deps.RateLimits.TrustedProxies, s.deps.Logger, s.deps.Metrics)(handler)
}

// Handler returns the fully wrapped handler, traced when a tracer provider is installed
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.handler, "rolodex.api",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// RouteRegistrar is an interface for types that can register routes
type RouteRegistrar interface {
	RegisterRoutes(router *mux.Router)
}

// RegisterRoutes registers routes from a RouteRegistrar
func (s *Server) RegisterRoutes(router *mux.Router, registrar RouteRegistrar) {
	registrar.RegisterRoutes(router)
}
