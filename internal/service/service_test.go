package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Clark-Hu/tourbook/internal/domain"
	"github.com/Clark-Hu/tourbook/internal/lib/logger/slogdiscard"
)

var testNow = time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	ctx      context.Context
	store    *memStore
	svc      *Service
	notifier *mockNotifier

	admin domain.User
	guide domain.User
	alice domain.User
	bob   domain.User
}

type harnessOption func(*Deps)

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	st := newMemStore()
	notifier := &mockNotifier{}
	deps := Deps{
		Tours:     memTours{st},
		Bookings:  memBookings{st},
		Reviews:   memReviews{st},
		Users:     memUsers{st},
		Notifier:  notifier,
		Logger:    slogdiscard.NewDiscardLogger(),
		OpTimeout: time.Second,
		Now:       func() time.Time { return testNow },
	}
	for _, opt := range opts {
		opt(&deps)
	}

	return &harness{
		ctx:      context.Background(),
		store:    st,
		svc:      New(deps),
		notifier: notifier,
		admin:    st.addUser("Admin", domain.RoleAdmin),
		guide:    st.addUser("Guide", domain.RoleGuide),
		alice:    st.addUser("Alice", domain.RoleUser),
		bob:      st.addUser("Bob", domain.RoleUser),
	}
}

func principal(u domain.User) domain.Principal {
	return domain.Principal{ID: u.ID, Role: u.Role}
}

// quietNotifications accepts any notification.
func (h *harness) quietNotifications() {
	h.notifier.On("Notify", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
}

func (h *harness) createTour(t *testing.T, mutate func(*CreateTourInput)) domain.Tour {
	t.Helper()
	in := CreateTourInput{
		Title:        "Alpine Trek",
		Price:        35000,
		DurationDays: 2,
		MaxGroupSize: 4,
		Category:     "hiking",
		Region:       "alps",
		Difficulty:   domain.DifficultyModerate,
		Seasons:      []domain.Season{domain.SeasonSummer},
	}
	if mutate != nil {
		mutate(&in)
	}
	tour, err := h.svc.CreateTour(h.ctx, principal(h.guide), in)
	require.NoError(t, err)
	return tour
}

func (h *harness) book(t *testing.T, u domain.User, tour domain.Tour, start time.Time) domain.Booking {
	t.Helper()
	b, err := h.svc.CreateBooking(h.ctx, principal(u), CreateBookingInput{TourID: tour.ID, StartDate: start, Participants: 1})
	require.NoError(t, err)
	return b
}

// complete drives a fresh booking through pending -> confirmed -> completed.
func (h *harness) complete(t *testing.T, u domain.User, tour domain.Tour, start time.Time) domain.Booking {
	t.Helper()
	b := h.book(t, u, tour, start)
	_, err := h.svc.ChangeBookingStatus(h.ctx, principal(h.guide), b.ID, domain.StatusConfirmed, "")
	require.NoError(t, err)
	b, err = h.svc.ChangeBookingStatus(h.ctx, principal(h.guide), b.ID, domain.StatusCompleted, "")
	require.NoError(t, err)
	return b
}

func day(offset int) time.Time {
	return domain.DateOnly(testNow).AddDate(0, 0, offset)
}
