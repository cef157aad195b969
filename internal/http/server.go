// Package http exposes the JSON API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/shopspring/decimal"

	"fintrack/internal/auth"
	"fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
	"fintrack/internal/rates"
	"fintrack/internal/services"
)

// RateProvider is the exchange rate client as used by the API.
// *rates.Client satisfies it.
type RateProvider interface {
	FetchRates(ctx context.Context, base string) (rates.Rates, error)
	ConvertAsync(ctx context.Context, amount decimal.Decimal, from, to string) <-chan rates.Conversion
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the services behind the API. All are required except Ready.
type Deps struct {
	Auth         *auth.Service
	Tokens       *auth.TokenService
	Transactions *services.TransactionService
	Profiles     *services.ProfileService
	Dashboard    *services.DashboardService
	Rates        RateProvider
	Ready        Pinger
}

// Options configures the server. Zero values select defaults.
type Options struct {
	Addr               string
	Logger             *log.Logger
	CORSAllowedOrigins []string
	RateLimitPerMinute int
	TrustedProxies     []string
	DefaultCurrency    string
}

// Server is the API server. Handler is a chi router.
type Server struct {
	http.Server

	deps            Deps
	logger          *log.Logger
	limiter         *ratelimit.Limiter
	detector        *security.Detector
	trace           *trace.Middleware
	defaultCurrency string
	startedAt       time.Time
	shutdownOnce    sync.Once
}

// NewServer wires middleware and routes and returns a server ready for
// ListenAndServe.
func NewServer(opts Options, deps Deps) (*Server, error) {
	if deps.Auth == nil || deps.Tokens == nil || deps.Transactions == nil ||
		deps.Profiles == nil || deps.Dashboard == nil || deps.Rates == nil {
		return nil, errors.New("http: missing service dependency")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	detector, err := security.NewDetector(opts.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("http: %w", err)
	}
	origins := opts.CORSAllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	defaultCurrency := opts.DefaultCurrency
	if defaultCurrency == "" {
		defaultCurrency = "USD"
	}

	s := &Server{
		deps:            deps,
		logger:          logger.WithComponent(log.ComponentHTTP),
		limiter:         ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		detector:        detector,
		trace:           trace.NewMiddleware(logger, detector.ExtractClientIP),
		defaultCurrency: defaultCurrency,
		startedAt:       time.Now(),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.trace.Middleware)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(s.detector.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", trace.HeaderRequestID},
		ExposedHeaders: []string{"Location", trace.HeaderRequestID, "Retry-After"},
		MaxAge:         300,
	}))
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		NotFoundError("route not found").Write(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, CodeMethodNotAllowed, "method not allowed").Write(w)
	})

	s.routes(r)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

func (s *Server) routes(r chi.Router) {
	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", s.handleMetrics)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.limiter.Middleware(s.detector.ExtractClientIP, handleRateLimited))

		r.With(log.ComponentMiddleware(log.ComponentAuth)).Post("/auth/signup", s.handleSignUp)
		r.With(log.ComponentMiddleware(log.ComponentAuth)).Post("/auth/signin", s.handleSignIn)
		r.Get("/currencies", handleCurrencies)
		r.Get("/categories", handleCategories)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(s.deps.Tokens))

			r.With(log.ComponentMiddleware(log.ComponentAuth)).Get("/me", s.handleMe)

			r.Group(func(r chi.Router) {
				r.Use(log.ComponentMiddleware(log.ComponentProfile))
				r.Get("/profile", s.handleGetProfile)
				r.Put("/profile/salary", s.handleUpdateSalary)
				r.Put("/profile/currency", s.handleUpdateCurrency)
			})

			r.Group(func(r chi.Router) {
				r.Use(log.ComponentMiddleware(log.ComponentTransaction))
				r.Get("/transactions", s.handleListTransactions)
				r.Post("/transactions", s.handleCreateTransaction)
				r.Get("/transactions/{id}", s.handleGetTransaction)
				r.Put("/transactions/{id}", s.handleUpdateTransaction)
				r.Delete("/transactions/{id}", s.handleDeleteTransaction)
			})

			r.Group(func(r chi.Router) {
				r.Use(log.ComponentMiddleware(log.ComponentDashboard))
				r.Get("/dashboard", s.handleDashboard)
				r.Get("/reports", s.handleReports)
			})

			r.Group(func(r chi.Router) {
				r.Use(log.ComponentMiddleware(log.ComponentRates))
				r.Get("/rates", s.handleRates)
				r.Get("/convert", s.handleConvert)
			})
		})
	})
}

func handleRateLimited(w http.ResponseWriter, _ *http.Request) {
	ErrorResponse(http.StatusTooManyRequests, CodeRateLimited, "rate limit exceeded, try again later").Write(w)
}

// Shutdown stops background work and gracefully shuts down the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// userID returns the authenticated user or writes a 401.
func userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		UnauthorizedError("missing credentials").Write(w)
	}
	return id, ok
}
