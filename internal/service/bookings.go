package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Clark-Hu/tourbook/internal/authz"
	"github.com/Clark-Hu/tourbook/internal/domain"
	"github.com/Clark-Hu/tourbook/internal/lib/logger/sl"
	"github.com/Clark-Hu/tourbook/internal/notify"
)

const (
	// StaleCancellationReason is recorded on bookings the scheduler cancels.
	StaleCancellationReason = "not confirmed before start date"

	staleBatchSize = 100
)

// CreateBookingInput is a reservation request for one slot.
type CreateBookingInput struct {
	TourID       string
	StartDate    time.Time
	Participants int
}

// CreateBooking admits a pending booking for the principal. Admission and
// insertion happen in a single store operation, so of any number of
// concurrent requests for one slot exactly one succeeds and the rest fail
// with domain.ErrSlotConflict.
func (s *Service) CreateBooking(ctx context.Context, p domain.Principal, in CreateBookingInput) (domain.Booking, error) {
	const op = "service.CreateBooking"

	log := s.logger.With(
		slog.String("op", op),
		slog.String("tour_id", in.TourID),
		slog.String("user_id", p.ID),
	)

	if p.ID == "" {
		return domain.Booking{}, fmt.Errorf("%s: %w", op, domain.ErrForbidden)
	}
	if in.Participants < 1 {
		return domain.Booking{}, fmt.Errorf("%s: %w", op, validationf("participants must be at least 1"))
	}
	if in.StartDate.IsZero() {
		return domain.Booking{}, fmt.Errorf("%s: %w", op, validationf("start date is required"))
	}
	start := domain.DateOnly(in.StartDate)
	if start.Before(domain.DateOnly(s.now())) {
		return domain.Booking{}, fmt.Errorf("%s: %w", op, validationf("start date %s is in the past", start.Format(time.DateOnly)))
	}

	tour, err := query(ctx, s, func(ctx context.Context) (domain.Tour, error) {
		return s.tours.GetByID(ctx, in.TourID)
	})
	if err != nil {
		return domain.Booking{}, fmt.Errorf("%s: %w", op, err)
	}
	if !tour.Active {
		return domain.Booking{}, fmt.Errorf("%s: %w", op, validationf("tour is not open for booking"))
	}
	if s.enforceGroupSize && in.Participants > tour.MaxGroupSize {
		return domain.Booking{}, fmt.Errorf("%s: %w", op,
			validationf("participants %d exceed the tour's maximum group size %d", in.Participants, tour.MaxGroupSize))
	}

	booking, err := query(ctx, s, func(ctx context.Context) (domain.Booking, error) {
		return s.bookings.Insert(ctx, domain.NewBooking(tour, p.ID, start, in.Participants))
	})
	if err != nil {
		if errors.Is(err, domain.ErrSlotConflict) {
			log.Info("slot already taken", slog.String("start_date", start.Format(time.DateOnly)))
		}
		return domain.Booking{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("booking created", slog.String("booking_id", booking.ID))
	return booking, nil
}

// GetBooking returns a booking visible to its owner, the tour's guide or an admin.
func (s *Service) GetBooking(ctx context.Context, p domain.Principal, id string) (domain.Booking, error) {
	const op = "service.GetBooking"

	booking, tour, err := s.loadBooking(ctx, id)
	if err != nil {
		return domain.Booking{}, fmt.Errorf("%s: %w", op, err)
	}
	if err := authz.Authorize(p, authz.ForBooking(booking, tour), authz.ActionViewBooking); err != nil {
		return domain.Booking{}, fmt.Errorf("%s: %w", op, err)
	}
	return booking, nil
}

// ListMyBookings returns the principal's own bookings.
func (s *Service) ListMyBookings(ctx context.Context, p domain.Principal) ([]domain.Booking, error) {
	const op = "service.ListMyBookings"

	if p.ID == "" {
		return nil, fmt.Errorf("%s: %w", op, domain.ErrForbidden)
	}
	bookings, err := query(ctx, s, func(ctx context.Context) ([]domain.Booking, error) {
		return s.bookings.ListByUser(ctx, p.ID)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return bookings, nil
}

// ListTourBookings returns every booking of a tour to its guide or an admin.
func (s *Service) ListTourBookings(ctx context.Context, p domain.Principal, tourID string) ([]domain.Booking, error) {
	const op = "service.ListTourBookings"

	tour, err := query(ctx, s, func(ctx context.Context) (domain.Tour, error) {
		return s.tours.GetByID(ctx, tourID)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := authz.Authorize(p, authz.ForTour(tour), authz.ActionListTourBookings); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	bookings, err := query(ctx, s, func(ctx context.Context) ([]domain.Booking, error) {
		return s.bookings.ListByTour(ctx, tourID)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return bookings, nil
}

// CancelBooking is the explicit cancel path for the booking's owner or an admin.
// Only pending bookings can be cancelled.
func (s *Service) CancelBooking(ctx context.Context, p domain.Principal, id, reason string) (domain.Booking, error) {
	return s.transition(ctx, "service.CancelBooking", p, id, authz.ActionCancelBooking, domain.StatusCancelled, reason)
}

// ChangeBookingStatus is the guide/admin status path.
func (s *Service) ChangeBookingStatus(ctx context.Context, p domain.Principal, id string, target domain.BookingStatus, reason string) (domain.Booking, error) {
	return s.transition(ctx, "service.ChangeBookingStatus", p, id, authz.ActionChangeBookingStatus, target, reason)
}

func (s *Service) transition(
	ctx context.Context,
	op string,
	p domain.Principal,
	id string,
	action authz.Action,
	target domain.BookingStatus,
	reason string,
) (domain.Booking, error) {
	log := s.logger.With(
		slog.String("op", op),
		slog.String("booking_id", id),
		slog.String("target", string(target)),
	)

	booking, tour, err := s.loadBooking(ctx, id)
	if err != nil {
		return domain.Booking{}, fmt.Errorf("%s: %w", op, err)
	}
	if err := authz.Authorize(p, authz.ForBooking(booking, tour), action); err != nil {
		return domain.Booking{}, fmt.Errorf("%s: %w", op, err)
	}

	next, err := booking.Transition(target, reason)
	if err != nil {
		return domain.Booking{}, fmt.Errorf("%s: %w", op, err)
	}

	stored, err := query(ctx, s, func(ctx context.Context) (domain.Booking, error) {
		return s.bookings.UpdateStatus(ctx, booking.Status, next)
	})
	if err != nil {
		return domain.Booking{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("booking status changed",
		slog.String("from", string(booking.Status)),
		slog.String("actor", p.ID),
	)
	s.notifyTransition(ctx, p, tour, stored)
	return stored, nil
}

// CancelStaleBookings cancels pending bookings whose start date is before
// asOf. It returns the number cancelled; per-booking failures are joined and
// a booking that fails is not retried within the same sweep.
func (s *Service) CancelStaleBookings(ctx context.Context, asOf time.Time) (int, error) {
	const op = "service.CancelStaleBookings"

	log := s.logger.With(slog.String("op", op))

	var (
		cancelled int
		errs      []error
		failed    = map[string]struct{}{}
	)
	for {
		// Failed bookings stay pending and come back in every listing.
		limit := s.staleBatch + len(failed)
		batch, err := query(ctx, s, func(ctx context.Context) ([]domain.Booking, error) {
			return s.bookings.ListPendingStartingBefore(ctx, asOf, limit)
		})
		if err != nil {
			return cancelled, fmt.Errorf("%s: %w", op, err)
		}

		progressed := 0
		for _, booking := range batch {
			if _, seen := failed[booking.ID]; seen {
				continue
			}
			_, err := s.transition(ctx, op, domain.SystemPrincipal, booking.ID, authz.ActionChangeBookingStatus,
				domain.StatusCancelled, StaleCancellationReason)
			switch {
			case err == nil:
				progressed++
			case errors.Is(err, domain.ErrInvalidTransition):
				// confirmed concurrently; nothing to do
			default:
				log.Error("failed to cancel stale booking", slog.String("booking_id", booking.ID), sl.Err(err))
				failed[booking.ID] = struct{}{}
				errs = append(errs, err)
			}
		}
		cancelled += progressed

		if len(batch) < limit || progressed == 0 {
			break
		}
	}

	if cancelled > 0 {
		log.Info("stale bookings cancelled", slog.Int("count", cancelled))
	}
	return cancelled, errors.Join(errs...)
}

func (s *Service) loadBooking(ctx context.Context, id string) (domain.Booking, domain.Tour, error) {
	booking, err := query(ctx, s, func(ctx context.Context) (domain.Booking, error) {
		return s.bookings.GetByID(ctx, id)
	})
	if err != nil {
		return domain.Booking{}, domain.Tour{}, err
	}
	tour, err := query(ctx, s, func(ctx context.Context) (domain.Tour, error) {
		return s.tours.GetByID(ctx, booking.TourID)
	})
	if err != nil {
		return domain.Booking{}, domain.Tour{}, err
	}
	return booking, tour, nil
}

// notifyTransition tells the affected party about a confirmation or
// cancellation. Failures are logged and never undo the transition.
func (s *Service) notifyTransition(ctx context.Context, actor domain.Principal, tour domain.Tour, b domain.Booking) {
	switch b.Status {
	case domain.StatusConfirmed:
		s.notifyUser(ctx, b.UserID, notify.KindBookingConfirmed, notify.Data{
			"TourTitle":    tour.Title,
			"StartDate":    b.StartDate.Format(time.DateOnly),
			"Participants": b.Participants,
		}, "UserName")
	case domain.StatusCancelled:
		reason := ""
		if b.CancellationReason != nil {
			reason = *b.CancellationReason
		}
		for _, recipient := range cancellationRecipients(actor, tour, b) {
			s.notifyUser(ctx, recipient, notify.KindBookingCancelled, notify.Data{
				"TourTitle": tour.Title,
				"StartDate": b.StartDate.Format(time.DateOnly),
				"Reason":    reason,
			}, "RecipientName")
		}
	}
}

// cancellationRecipients picks the counter-party of whoever cancelled.
// Admin and system cancellations inform both sides.
func cancellationRecipients(actor domain.Principal, tour domain.Tour, b domain.Booking) []string {
	switch {
	case actor.ID == b.UserID:
		if tour.GuideID != nil {
			return []string{*tour.GuideID}
		}
		return nil
	case tour.GuidedBy(actor.ID):
		return []string{b.UserID}
	default:
		recipients := []string{b.UserID}
		if tour.GuideID != nil && *tour.GuideID != b.UserID {
			recipients = append(recipients, *tour.GuideID)
		}
		return recipients
	}
}

// notifyUser resolves userID's address and sends kind. nameKey receives the
// recipient's display name in data.
func (s *Service) notifyUser(ctx context.Context, userID string, kind notify.Kind, data notify.Data, nameKey string) {
	const op = "service.notifyUser"

	log := s.logger.With(
		slog.String("op", op),
		slog.String("kind", string(kind)),
		slog.String("recipient_id", userID),
	)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
	defer cancel()

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		log.Warn("failed to resolve notification recipient", sl.Err(err))
		return
	}

	payload := make(notify.Data, len(data)+1)
	for k, v := range data {
		payload[k] = v
	}
	payload[nameKey] = user.Name

	if err := s.notifier.Notify(ctx, user.Email, kind, payload); err != nil {
		log.Warn("notification not delivered", sl.Err(err))
	}
}
