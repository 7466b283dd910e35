package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"github.com/leadintake/internal/api/auth"
	"github.com/leadintake/internal/intake"
	"github.com/leadintake/pkg/models"
)

// LeadLister reads a contractor's leads for the dashboard
type LeadLister interface {
	ListByContractor(ctx context.Context, contractorID int64) ([]*models.Lead, error)
}

// Deps are the services the HTTP layer routes to
type Deps struct {
	Intake *intake.Service
	Leads  LeadLister
	Auth   *auth.Service

	// RateLimit is requests per second allowed per client IP on public
	// routes; zero disables limiting.
	RateLimit      float64
	RateLimitBurst int
}

// Server represents the API server
type Server struct {
	echo *echo.Echo
	port int
	deps Deps
}

// NewServer creates a new API server
func NewServer(port int, deps Deps) (*Server, error) {
	if deps.Intake == nil || deps.Leads == nil || deps.Auth == nil {
		return nil, errors.New("api: intake, leads and auth services are required")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(requestLogger())
	e.Use(middleware.CORS())
	e.Use(middleware.BodyLimit("64K"))

	server := &Server{
		echo: e,
		port: port,
		deps: deps,
	}

	server.setupRoutes()

	return server, nil
}

// setupRoutes configures all API endpoints
func (s *Server) setupRoutes() {
	s.echo.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})

	// Public routes share one per-IP limiter.
	limit := rateLimiter(s.deps.RateLimit, s.deps.RateLimitBurst)

	intakeHandlers := &intakeHandlers{service: s.deps.Intake}
	s.echo.POST("/start", intakeHandlers.start, limit)
	s.echo.POST("/chat", intakeHandlers.answer, limit)
	s.echo.POST("/answer", intakeHandlers.answer, limit)
	s.echo.POST("/complete", intakeHandlers.complete, limit)

	authHandlers := auth.NewAuthHandlers(s.deps.Auth)
	s.echo.POST("/register", authHandlers.Register, limit)
	s.echo.POST("/login", authHandlers.Login, limit)

	requireAuth := auth.RequireAuth(s.deps.Auth.Tokens())
	s.echo.POST("/logout", authHandlers.Logout, requireAuth)

	dashboard := &dashboardHandlers{leads: s.deps.Leads}
	s.echo.GET("/dashboard-data", dashboard.data, requireAuth)
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", s.port).Msg("API server listening")
		if err := s.echo.Start(fmt.Sprintf(":%d", s.port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("api server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info().Msg("Shutting down API server")
	return s.echo.Shutdown(shutdownCtx)
}

func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			evt := log.Info()
			if v.Status >= http.StatusInternalServerError {
				evt = log.Error().Err(v.Error)
			}
			evt.Str("request_id", v.RequestID).
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Msg("request")
			return nil
		},
	})
}
