// Package service implements the booking lifecycle, rating aggregation and
// recommendation reads on top of the repository ports in internal/domain.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Clark-Hu/tourbook/internal/domain"
	"github.com/Clark-Hu/tourbook/internal/notify"
	"github.com/Clark-Hu/tourbook/internal/textgen"
)

const (
	defaultOpTimeout      = 3 * time.Second
	defaultNotifyTimeout  = 5 * time.Second
	defaultExplainTimeout = 5 * time.Second
)

// Deps wires the service to its collaborators. Explainer is optional.
type Deps struct {
	Tours    domain.TourRepository
	Bookings domain.BookingRepository
	Reviews  domain.ReviewRepository
	Users    domain.UserRepository

	Notifier  notify.Notifier
	Explainer textgen.Client
	Logger    *slog.Logger

	// OpTimeout bounds each store round trip.
	OpTimeout     time.Duration
	NotifyTimeout time.Duration
	// ExplainTimeout bounds one recommendation explanation.
	ExplainTimeout   time.Duration
	EnforceGroupSize bool
	Now              func() time.Time
}

// Service is the booking core.
type Service struct {
	tours    domain.TourRepository
	bookings domain.BookingRepository
	reviews  domain.ReviewRepository
	users    domain.UserRepository

	notifier  notify.Notifier
	explainer textgen.Client
	logger    *slog.Logger

	opTimeout        time.Duration
	notifyTimeout    time.Duration
	explainTimeout   time.Duration
	staleBatch       int
	enforceGroupSize bool
	now              func() time.Time
}

// New constructs a Service.
func New(d Deps) *Service {
	s := &Service{
		tours:            d.Tours,
		bookings:         d.Bookings,
		reviews:          d.Reviews,
		users:            d.Users,
		notifier:         d.Notifier,
		explainer:        d.Explainer,
		logger:           d.Logger,
		opTimeout:        d.OpTimeout,
		notifyTimeout:    d.NotifyTimeout,
		explainTimeout:   d.ExplainTimeout,
		staleBatch:       staleBatchSize,
		enforceGroupSize: d.EnforceGroupSize,
		now:              d.Now,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.notifier == nil {
		s.notifier = notify.NewLogNotifier(s.logger)
	}
	if s.opTimeout <= 0 {
		s.opTimeout = defaultOpTimeout
	}
	if s.notifyTimeout <= 0 {
		s.notifyTimeout = defaultNotifyTimeout
	}
	if s.explainTimeout <= 0 {
		s.explainTimeout = defaultExplainTimeout
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// query runs one store call under the operation timeout.
func query[T any](ctx context.Context, s *Service, fn func(ctx context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	v, err := fn(ctx)
	return v, unavailable(err)
}

func (s *Service) exec(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	return unavailable(fn(ctx))
}

// unavailable classifies an expired store deadline as retryable.
func unavailable(err error) error {
	if err == nil || errors.Is(err, domain.ErrUnavailable) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", domain.ErrUnavailable, err)
	}
	return err
}

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrValidation, fmt.Sprintf(format, args...))
}
