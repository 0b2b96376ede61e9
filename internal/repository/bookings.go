package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/tourbook/internal/domain"
)

// BookingsRepository provides persistence helpers for bookings.
type BookingsRepository struct {
	pool *pgxpool.Pool
}

var _ domain.BookingRepository = (*BookingsRepository)(nil)

const bookingColumns = `
    id,
    tour_id,
    user_id,
    start_date,
    end_date,
    participants,
    total_price,
    status,
    cancellation_reason,
    created_at,
    updated_at
`

// Insert admits a booking. The partial unique index uq_bookings_active_slot
// makes the availability check and the insert a single atomic statement; a
// concurrent winner surfaces here as domain.ErrSlotConflict.
func (r *BookingsRepository) Insert(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	query := fmt.Sprintf(`
        INSERT INTO bookings (tour_id, user_id, start_date, end_date, participants, total_price, status)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING %s
    `, bookingColumns)

	row := r.pool.QueryRow(ctx, query, b.TourID, b.UserID, b.StartDate, b.EndDate, b.Participants,
		b.TotalPrice, string(b.Status))
	booking, err := scanBooking(row)
	if err != nil {
		return domain.Booking{}, translate("insert booking", err)
	}
	return booking, nil
}

// GetByID fetches a booking by its identifier.
func (r *BookingsRepository) GetByID(ctx context.Context, id string) (domain.Booking, error) {
	query := fmt.Sprintf(`SELECT %s FROM bookings WHERE id = $1`, bookingColumns)
	booking, err := scanBooking(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return domain.Booking{}, translate("get booking", err)
	}
	return booking, nil
}

// UpdateStatus is a compare-and-set on the status column.
func (r *BookingsRepository) UpdateStatus(ctx context.Context, from domain.BookingStatus, next domain.Booking) (domain.Booking, error) {
	query := fmt.Sprintf(`
        UPDATE bookings
        SET status = $3,
            cancellation_reason = COALESCE($4, cancellation_reason),
            updated_at = now()
        WHERE id = $1 AND status = $2
        RETURNING %s
    `, bookingColumns)

	row := r.pool.QueryRow(ctx, query, next.ID, string(from), string(next.Status), next.CancellationReason)
	booking, err := scanBooking(row)
	if err == nil {
		return booking, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Booking{}, translate("update booking status", err)
	}

	// Either the booking is gone or someone else moved it first.
	if _, getErr := r.GetByID(ctx, next.ID); getErr != nil {
		return domain.Booking{}, getErr
	}
	return domain.Booking{}, fmt.Errorf("update booking status: %w: status is no longer %s", domain.ErrInvalidTransition, from)
}

// ListByUser returns a user's bookings, most recent start date first.
func (r *BookingsRepository) ListByUser(ctx context.Context, userID string) ([]domain.Booking, error) {
	query := fmt.Sprintf(`SELECT %s FROM bookings WHERE user_id = $1 ORDER BY start_date DESC, created_at DESC`, bookingColumns)
	return r.list(ctx, "list user bookings", query, userID)
}

// ListByTour returns a tour's bookings ordered by start date.
func (r *BookingsRepository) ListByTour(ctx context.Context, tourID string) ([]domain.Booking, error) {
	query := fmt.Sprintf(`SELECT %s FROM bookings WHERE tour_id = $1 ORDER BY start_date, created_at`, bookingColumns)
	return r.list(ctx, "list tour bookings", query, tourID)
}

// ListCompleted returns the user's completed bookings of a tour.
func (r *BookingsRepository) ListCompleted(ctx context.Context, userID, tourID string) ([]domain.Booking, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM bookings
        WHERE user_id = $1 AND tour_id = $2 AND status = 'completed'
        ORDER BY start_date
    `, bookingColumns)
	return r.list(ctx, "list completed bookings", query, userID, tourID)
}

// ListPendingStartingBefore returns pending bookings whose start date is before the given day.
func (r *BookingsRepository) ListPendingStartingBefore(ctx context.Context, before time.Time, limit int) ([]domain.Booking, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	query := fmt.Sprintf(`
        SELECT %s FROM bookings
        WHERE status = 'pending' AND start_date < $1
        ORDER BY start_date
        LIMIT %d
    `, bookingColumns, limit)
	return r.list(ctx, "list stale pending bookings", query, domain.DateOnly(before))
}

func (r *BookingsRepository) list(ctx context.Context, op, query string, args ...interface{}) ([]domain.Booking, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, translate(op, err)
	}
	defer rows.Close()

	bookings := make([]domain.Booking, 0)
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, translate(op, err)
		}
		bookings = append(bookings, booking)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(op, err)
	}
	return bookings, nil
}

func scanBooking(row pgx.Row) (domain.Booking, error) {
	var (
		booking domain.Booking
		status  string
	)

	err := row.Scan(
		&booking.ID,
		&booking.TourID,
		&booking.UserID,
		&booking.StartDate,
		&booking.EndDate,
		&booking.Participants,
		&booking.TotalPrice,
		&status,
		&booking.CancellationReason,
		&booking.CreatedAt,
		&booking.UpdatedAt,
	)
	if err != nil {
		return domain.Booking{}, err
	}

	booking.Status = domain.BookingStatus(status)
	booking.StartDate = domain.DateOnly(booking.StartDate)
	booking.EndDate = domain.DateOnly(booking.EndDate)
	return booking, nil
}
