package httpserver

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/Clark-Hu/tourbook/internal/domain"
	"github.com/Clark-Hu/tourbook/internal/service"
	"github.com/Clark-Hu/tourbook/internal/store"
)

type mockService struct {
	mock.Mock
}

func (m *mockService) CreateTour(ctx context.Context, p domain.Principal, in service.CreateTourInput) (domain.Tour, error) {
	args := m.Called(ctx, p, in)
	return args.Get(0).(domain.Tour), args.Error(1)
}

func (m *mockService) UpdateTour(ctx context.Context, p domain.Principal, id string, patch domain.TourPatch) (domain.Tour, error) {
	args := m.Called(ctx, p, id, patch)
	return args.Get(0).(domain.Tour), args.Error(1)
}

func (m *mockService) DeactivateTour(ctx context.Context, p domain.Principal, id string) (domain.Tour, error) {
	args := m.Called(ctx, p, id)
	return args.Get(0).(domain.Tour), args.Error(1)
}

func (m *mockService) GetTour(ctx context.Context, id string) (domain.Tour, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Tour), args.Error(1)
}

func (m *mockService) ListTours(ctx context.Context, q domain.TourQuery) ([]domain.Tour, error) {
	args := m.Called(ctx, q)
	return args.Get(0).([]domain.Tour), args.Error(1)
}

func (m *mockService) CreateBooking(ctx context.Context, p domain.Principal, in service.CreateBookingInput) (domain.Booking, error) {
	args := m.Called(ctx, p, in)
	return args.Get(0).(domain.Booking), args.Error(1)
}

func (m *mockService) GetBooking(ctx context.Context, p domain.Principal, id string) (domain.Booking, error) {
	args := m.Called(ctx, p, id)
	return args.Get(0).(domain.Booking), args.Error(1)
}

func (m *mockService) ListMyBookings(ctx context.Context, p domain.Principal) ([]domain.Booking, error) {
	args := m.Called(ctx, p)
	return args.Get(0).([]domain.Booking), args.Error(1)
}

func (m *mockService) ListTourBookings(ctx context.Context, p domain.Principal, tourID string) ([]domain.Booking, error) {
	args := m.Called(ctx, p, tourID)
	return args.Get(0).([]domain.Booking), args.Error(1)
}

func (m *mockService) CancelBooking(ctx context.Context, p domain.Principal, id, reason string) (domain.Booking, error) {
	args := m.Called(ctx, p, id, reason)
	return args.Get(0).(domain.Booking), args.Error(1)
}

func (m *mockService) ChangeBookingStatus(ctx context.Context, p domain.Principal, id string, target domain.BookingStatus, reason string) (domain.Booking, error) {
	args := m.Called(ctx, p, id, target, reason)
	return args.Get(0).(domain.Booking), args.Error(1)
}

func (m *mockService) CreateReview(ctx context.Context, p domain.Principal, in service.CreateReviewInput) (domain.Review, error) {
	args := m.Called(ctx, p, in)
	return args.Get(0).(domain.Review), args.Error(1)
}

func (m *mockService) UpdateReview(ctx context.Context, p domain.Principal, id string, in service.UpdateReviewInput) (domain.Review, error) {
	args := m.Called(ctx, p, id, in)
	return args.Get(0).(domain.Review), args.Error(1)
}

func (m *mockService) DeleteReview(ctx context.Context, p domain.Principal, id string) error {
	return m.Called(ctx, p, id).Error(0)
}

func (m *mockService) ListTourReviews(ctx context.Context, tourID string) ([]domain.Review, error) {
	args := m.Called(ctx, tourID)
	return args.Get(0).([]domain.Review), args.Error(1)
}

func (m *mockService) Popular(ctx context.Context, limit int) ([]domain.Tour, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]domain.Tour), args.Error(1)
}

func (m *mockService) Seasonal(ctx context.Context, limit int, asOf time.Time) ([]domain.Tour, error) {
	args := m.Called(ctx, limit, asOf)
	return args.Get(0).([]domain.Tour), args.Error(1)
}

func (m *mockService) Personalized(ctx context.Context, userID string, limit int) (service.Personalized, error) {
	args := m.Called(ctx, userID, limit)
	return args.Get(0).(service.Personalized), args.Error(1)
}

func (m *mockService) Overview(ctx context.Context, userID string, limit int, asOf time.Time) (service.Overview, error) {
	args := m.Called(ctx, userID, limit, asOf)
	return args.Get(0).(service.Overview), args.Error(1)
}

type mockHealth struct {
	mock.Mock
}

func (m *mockHealth) HealthCheck(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockHealth) Stats() store.PoolStats {
	return m.Called().Get(0).(store.PoolStats)
}
