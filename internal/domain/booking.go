package domain

import (
	"fmt"
	"strings"
	"time"
)

// BookingStatus is a reservation's lifecycle state.
type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusConfirmed BookingStatus = "confirmed"
	StatusCancelled BookingStatus = "cancelled"
	StatusCompleted BookingStatus = "completed"
)

// validTransitions is the booking state machine. Confirmed bookings cannot be
// cancelled through any path.
var validTransitions = map[BookingStatus][]BookingStatus{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted},
	StatusCancelled: {},
	StatusCompleted: {},
}

// ParseBookingStatus converts s to a BookingStatus.
func ParseBookingStatus(s string) (BookingStatus, error) {
	status := BookingStatus(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := validTransitions[status]; !ok {
		return "", fmt.Errorf("%w: unknown booking status %q", ErrValidation, s)
	}
	return status, nil
}

// CanTransitionTo reports whether the state machine allows s -> target.
func (s BookingStatus) CanTransitionTo(target BookingStatus) bool {
	for _, next := range validTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// Occupying reports whether a booking in this status holds its slot.
func (s BookingStatus) Occupying() bool {
	return s == StatusPending || s == StatusConfirmed
}

// Terminal reports whether no transition leaves s.
func (s BookingStatus) Terminal() bool {
	return len(validTransitions[s]) == 0
}

// Booking is one user's reservation of a tour slot. Price and end date are
// captured at creation and never follow later tour edits.
type Booking struct {
	ID                 string
	TourID             string
	UserID             string
	StartDate          time.Time
	EndDate            time.Time
	Participants       int
	TotalPrice         int64
	Status             BookingStatus
	CancellationReason *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NewBooking builds a pending booking for tour starting on startDate.
func NewBooking(tour Tour, userID string, startDate time.Time, participants int) Booking {
	start := DateOnly(startDate)
	return Booking{
		TourID:       tour.ID,
		UserID:       userID,
		StartDate:    start,
		EndDate:      start.AddDate(0, 0, tour.DurationDays),
		Participants: participants,
		TotalPrice:   tour.Price * int64(participants),
		Status:       StatusPending,
	}
}

// Transition validates and applies s -> target on a copy of b.
func (b Booking) Transition(target BookingStatus, reason string) (Booking, error) {
	if b.Status.Terminal() {
		return b, fmt.Errorf("%w: booking is already %s", ErrInvalidTransition, b.Status)
	}
	if !b.Status.CanTransitionTo(target) {
		return b, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, b.Status, target)
	}
	if target == StatusCancelled {
		reason = strings.TrimSpace(reason)
		if reason == "" {
			return b, fmt.Errorf("%w: cancellation reason is required", ErrValidation)
		}
		b.CancellationReason = &reason
	}
	b.Status = target
	return b, nil
}

// DateOnly truncates t to its UTC calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
