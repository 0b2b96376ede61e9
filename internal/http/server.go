package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/Clark-Hu/tourbook/internal/config"
	"github.com/Clark-Hu/tourbook/internal/domain"
	"github.com/Clark-Hu/tourbook/internal/lib/logger/sl"
	"github.com/Clark-Hu/tourbook/internal/service"
	"github.com/Clark-Hu/tourbook/internal/store"
)

// Service is the booking core as seen by the HTTP adapter.
type Service interface {
	CreateTour(ctx context.Context, p domain.Principal, in service.CreateTourInput) (domain.Tour, error)
	UpdateTour(ctx context.Context, p domain.Principal, id string, patch domain.TourPatch) (domain.Tour, error)
	DeactivateTour(ctx context.Context, p domain.Principal, id string) (domain.Tour, error)
	GetTour(ctx context.Context, id string) (domain.Tour, error)
	ListTours(ctx context.Context, q domain.TourQuery) ([]domain.Tour, error)

	CreateBooking(ctx context.Context, p domain.Principal, in service.CreateBookingInput) (domain.Booking, error)
	GetBooking(ctx context.Context, p domain.Principal, id string) (domain.Booking, error)
	ListMyBookings(ctx context.Context, p domain.Principal) ([]domain.Booking, error)
	ListTourBookings(ctx context.Context, p domain.Principal, tourID string) ([]domain.Booking, error)
	CancelBooking(ctx context.Context, p domain.Principal, id, reason string) (domain.Booking, error)
	ChangeBookingStatus(ctx context.Context, p domain.Principal, id string, target domain.BookingStatus, reason string) (domain.Booking, error)

	CreateReview(ctx context.Context, p domain.Principal, in service.CreateReviewInput) (domain.Review, error)
	UpdateReview(ctx context.Context, p domain.Principal, id string, in service.UpdateReviewInput) (domain.Review, error)
	DeleteReview(ctx context.Context, p domain.Principal, id string) error
	ListTourReviews(ctx context.Context, tourID string) ([]domain.Review, error)

	Popular(ctx context.Context, limit int) ([]domain.Tour, error)
	Seasonal(ctx context.Context, limit int, asOf time.Time) ([]domain.Tour, error)
	Personalized(ctx context.Context, userID string, limit int) (service.Personalized, error)
	Overview(ctx context.Context, userID string, limit int, asOf time.Time) (service.Overview, error)
}

// HealthChecker reports whether the backing store is reachable and how its
// connection pool is used.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
	Stats() store.PoolStats
}

type healthResponse struct {
	Status string          `json:"status"`
	Pool   store.PoolStats `json:"pool"`
}

// Server wires HTTP routing, middleware, and handlers.
type Server struct {
	cfg      config.Config
	health   HealthChecker
	svc      Service
	logger   *slog.Logger
	validate *validator.Validate
	router   chi.Router
	httpSrv  *http.Server
}

// New constructs the HTTP server with base middleware and routes.
func New(cfg config.Config, health HealthChecker, svc Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	s := &Server{
		cfg:      cfg,
		health:   health,
		svc:      svc,
		logger:   logger.With(slog.String("component", "http")),
		validate: newValidator(),
		router:   r,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.Get("/healthz", s.handleHealthz)

	s.router.Group(func(r chi.Router) {
		r.Use(s.authenticate)

		r.Route("/tours", func(r chi.Router) {
			r.Get("/", s.handleListTours)
			r.With(s.requirePrincipal).Post("/", s.handleCreateTour)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetTour)
				r.Get("/reviews", s.handleListTourReviews)
				r.Group(func(r chi.Router) {
					r.Use(s.requirePrincipal)
					r.Patch("/", s.handleUpdateTour)
					r.Delete("/", s.handleDeactivateTour)
					r.Get("/bookings", s.handleListTourBookings)
				})
			})
		})

		r.Route("/bookings", func(r chi.Router) {
			r.Use(s.requirePrincipal)
			r.Post("/", s.handleCreateBooking)
			r.Get("/mine", s.handleListMyBookings)
			r.Get("/{id}", s.handleGetBooking)
			r.Post("/{id}/cancel", s.handleCancelBooking)
			r.Patch("/{id}/status", s.handleChangeBookingStatus)
		})

		r.Route("/reviews", func(r chi.Router) {
			r.Use(s.requirePrincipal)
			r.Post("/", s.handleCreateReview)
			r.Patch("/{id}", s.handleUpdateReview)
			r.Delete("/{id}", s.handleDeleteReview)
		})

		r.Route("/recommendations", func(r chi.Router) {
			r.Get("/popular", s.handlePopular)
			r.Get("/seasonal", s.handleSeasonal)
			r.With(s.requirePrincipal).Get("/personalized", s.handlePersonalized)
			r.With(s.requirePrincipal).Get("/overview", s.handleOverview)
		})
	})
}

// newValidator reports field errors under their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start boots the HTTP server and blocks until ctx ends or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:         ":" + s.cfg.Port,
		Handler:      s.router,
		ReadTimeout:  s.cfg.HTTP.ReadTimeout,
		WriteTimeout: s.cfg.HTTP.WriteTimeout,
		IdleTimeout:  s.cfg.HTTP.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", slog.String("addr", s.httpSrv.Addr))
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpSrv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if s.health == nil {
		s.respondError(w, r, http.StatusServiceUnavailable, "UNAVAILABLE", "store not configured")
		return
	}
	if err := s.health.HealthCheck(ctx); err != nil {
		s.logger.Warn("health check failed", slog.Any("pool", s.health.Stats()), sl.Err(err))
		s.respondError(w, r, http.StatusServiceUnavailable, "UNAVAILABLE", http.StatusText(http.StatusServiceUnavailable))
		return
	}
	s.respondJSON(w, r, http.StatusOK, healthResponse{Status: "ok", Pool: s.health.Stats()})
}
