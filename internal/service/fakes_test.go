package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/Clark-Hu/tourbook/internal/domain"
	"github.com/Clark-Hu/tourbook/internal/notify"
	"github.com/Clark-Hu/tourbook/internal/textgen"
)

// memStore is an in-memory store with the same atomicity contract as the
// Postgres repositories: slot admission and status updates are atomic and
// review units of work serialize per tour.
type memStore struct {
	mu        sync.Mutex
	seq       int
	tours     map[string]domain.Tour
	bookings  map[string]domain.Booking
	reviews   map[string]domain.Review
	users     map[string]domain.User
	tourLocks map[string]*sync.Mutex

	// tourDelay stalls tour reads to exercise store timeouts.
	tourDelay time.Duration
	// statusErr fails status updates of the listed bookings.
	statusErr map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		tours:     map[string]domain.Tour{},
		bookings:  map[string]domain.Booking{},
		reviews:   map[string]domain.Review{},
		users:     map[string]domain.User{},
		tourLocks: map[string]*sync.Mutex{},
	}
}

func (m *memStore) tick() time.Time {
	m.seq++
	return time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(m.seq) * time.Second)
}

func (m *memStore) addUser(name string, role domain.Role) domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := domain.User{ID: uuid.NewString(), Email: strings.ToLower(name) + "@example.com", Name: name, Role: role, CreatedAt: m.tick()}
	m.users[u.ID] = u
	return u
}

func (m *memStore) booking(id string) domain.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bookings[id]
}

func (m *memStore) tour(id string) domain.Tour {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tours[id]
}

type memTours struct{ *memStore }
type memBookings struct{ *memStore }
type memReviews struct{ *memStore }
type memUsers struct{ *memStore }

func (m memTours) Create(_ context.Context, t domain.Tour) (domain.Tour, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.ID = uuid.NewString()
	t.Active = true
	t.Rating = domain.RatingSummary{}
	t.CreatedAt = m.tick()
	t.UpdatedAt = t.CreatedAt
	m.tours[t.ID] = t
	return t, nil
}

func (m memTours) GetByID(ctx context.Context, id string) (domain.Tour, error) {
	if m.tourDelay > 0 {
		select {
		case <-time.After(m.tourDelay):
		case <-ctx.Done():
			return domain.Tour{}, ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tours[id]
	if !ok {
		return domain.Tour{}, fmt.Errorf("get tour: %w", domain.ErrNotFound)
	}
	return t, nil
}

func (m memTours) Update(_ context.Context, id string, patch domain.TourPatch) (domain.Tour, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tours[id]
	if !ok {
		return domain.Tour{}, fmt.Errorf("update tour: %w", domain.ErrNotFound)
	}
	t = applyPatch(t, patch)
	t.UpdatedAt = m.tick()
	m.tours[id] = t
	return t, nil
}

func (m memTours) SetActive(_ context.Context, id string, active bool) (domain.Tour, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tours[id]
	if !ok {
		return domain.Tour{}, fmt.Errorf("set tour active: %w", domain.ErrNotFound)
	}
	t.Active = active
	m.tours[id] = t
	return t, nil
}

func (m memTours) List(_ context.Context, q domain.TourQuery) ([]domain.Tour, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.Tour, 0)
	for _, t := range m.tours {
		if q.ActiveOnly && !t.Active {
			continue
		}
		if q.Category != "" && !strings.EqualFold(q.Category, t.Category) {
			continue
		}
		if q.Region != "" && !strings.EqualFold(q.Region, t.Region) {
			continue
		}
		if q.Difficulty != "" && q.Difficulty != t.Difficulty {
			continue
		}
		if q.Season != "" && !t.HasSeason(q.Season) {
			continue
		}
		if q.MatchAny != nil && !matchesAny(t, *q.MatchAny) {
			continue
		}
		out = append(out, t)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if q.ByRating {
			if a.Rating.AverageRating != b.Rating.AverageRating {
				return a.Rating.AverageRating > b.Rating.AverageRating
			}
			if a.Rating.RatingCount != b.Rating.RatingCount {
				return a.Rating.RatingCount > b.Rating.RatingCount
			}
		}
		return a.CreatedAt.After(b.CreatedAt)
	})

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func matchesAny(t domain.Tour, f domain.TourFacets) bool {
	for _, c := range f.Categories {
		if c == t.Category {
			return true
		}
	}
	for _, r := range f.Regions {
		if r == t.Region {
			return true
		}
	}
	for _, d := range f.Difficulties {
		if d == t.Difficulty {
			return true
		}
	}
	return false
}

func (m memTours) EngagedBy(_ context.Context, userID string) ([]domain.Tour, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := map[string]struct{}{}
	for _, b := range m.bookings {
		if b.UserID == userID {
			ids[b.TourID] = struct{}{}
		}
	}
	for _, r := range m.reviews {
		if r.UserID == userID {
			ids[r.TourID] = struct{}{}
		}
	}
	out := make([]domain.Tour, 0, len(ids))
	for id := range ids {
		out = append(out, m.tours[id])
	}
	return out, nil
}

func (m memBookings) Insert(_ context.Context, b domain.Booking) (domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tours[b.TourID]; !ok {
		return domain.Booking{}, fmt.Errorf("insert booking: %w", domain.ErrNotFound)
	}
	for _, existing := range m.bookings {
		if existing.TourID == b.TourID && existing.StartDate.Equal(b.StartDate) && existing.Status.Occupying() {
			return domain.Booking{}, fmt.Errorf("insert booking: %w", domain.ErrSlotConflict)
		}
	}
	b.ID = uuid.NewString()
	b.CreatedAt = m.tick()
	b.UpdatedAt = b.CreatedAt
	m.bookings[b.ID] = b
	return b, nil
}

func (m memBookings) GetByID(_ context.Context, id string) (domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return domain.Booking{}, fmt.Errorf("get booking: %w", domain.ErrNotFound)
	}
	return b, nil
}

func (m memBookings) UpdateStatus(_ context.Context, from domain.BookingStatus, next domain.Booking) (domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[next.ID]
	if !ok {
		return domain.Booking{}, fmt.Errorf("update booking status: %w", domain.ErrNotFound)
	}
	if err := m.statusErr[next.ID]; err != nil {
		return domain.Booking{}, fmt.Errorf("update booking status: %w", err)
	}
	if b.Status != from {
		return domain.Booking{}, fmt.Errorf("update booking status: %w", domain.ErrInvalidTransition)
	}
	b.Status = next.Status
	if next.CancellationReason != nil {
		b.CancellationReason = next.CancellationReason
	}
	b.UpdatedAt = m.tick()
	m.bookings[b.ID] = b
	return b, nil
}

func (m memBookings) filter(keep func(domain.Booking) bool) []domain.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Booking, 0)
	for _, b := range m.bookings {
		if keep(b) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out
}

func (m memBookings) ListByUser(_ context.Context, userID string) ([]domain.Booking, error) {
	return m.filter(func(b domain.Booking) bool { return b.UserID == userID }), nil
}

func (m memBookings) ListByTour(_ context.Context, tourID string) ([]domain.Booking, error) {
	return m.filter(func(b domain.Booking) bool { return b.TourID == tourID }), nil
}

func (m memBookings) ListCompleted(_ context.Context, userID, tourID string) ([]domain.Booking, error) {
	return m.filter(func(b domain.Booking) bool {
		return b.UserID == userID && b.TourID == tourID && b.Status == domain.StatusCompleted
	}), nil
}

func (m memBookings) ListPendingStartingBefore(_ context.Context, before time.Time, limit int) ([]domain.Booking, error) {
	cutoff := domain.DateOnly(before)
	out := m.filter(func(b domain.Booking) bool {
		return b.Status == domain.StatusPending && b.StartDate.Before(cutoff)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m memReviews) GetByID(_ context.Context, id string) (domain.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reviews[id]
	if !ok {
		return domain.Review{}, fmt.Errorf("get review: %w", domain.ErrNotFound)
	}
	return r, nil
}

func (m memReviews) ListByTour(_ context.Context, tourID string) ([]domain.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Review, 0)
	for _, r := range m.reviews {
		if r.TourID == tourID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// WithTourLocked serializes units of work per tour and restores the tour's
// reviews and summary when fn fails.
func (m memReviews) WithTourLocked(ctx context.Context, tourID string, fn func(tx domain.ReviewTx) error) error {
	m.mu.Lock()
	lock, ok := m.tourLocks[tourID]
	if !ok {
		lock = &sync.Mutex{}
		m.tourLocks[tourID] = lock
	}
	m.mu.Unlock()

	lock.Lock()
	defer lock.Unlock()

	m.mu.Lock()
	tour, ok := m.tours[tourID]
	snapshot := map[string]domain.Review{}
	for id, r := range m.reviews {
		if r.TourID == tourID {
			snapshot[id] = r
		}
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("lock tour: %w", domain.ErrNotFound)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := fn(memReviewTx{m.memStore}); err != nil {
		m.mu.Lock()
		for id, r := range m.reviews {
			if r.TourID == tourID {
				delete(m.reviews, id)
			}
		}
		for id, r := range snapshot {
			m.reviews[id] = r
		}
		t := m.tours[tourID]
		t.Rating = tour.Rating
		m.tours[tourID] = t
		m.mu.Unlock()
		return err
	}
	return nil
}

type memReviewTx struct{ *memStore }

func (m memReviewTx) GetByID(_ context.Context, id string) (domain.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reviews[id]
	if !ok {
		return domain.Review{}, fmt.Errorf("get review: %w", domain.ErrNotFound)
	}
	return r, nil
}

func (m memReviewTx) Insert(_ context.Context, r domain.Review) (domain.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.reviews {
		if existing.UserID == r.UserID && existing.TourID == r.TourID && existing.BookingID == r.BookingID {
			return domain.Review{}, fmt.Errorf("insert review: %w", domain.ErrDuplicateReview)
		}
	}
	r.ID = uuid.NewString()
	r.CreatedAt = m.tick()
	r.UpdatedAt = r.CreatedAt
	m.reviews[r.ID] = r
	return r, nil
}

func (m memReviewTx) Update(_ context.Context, r domain.Review) (domain.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.reviews[r.ID]
	if !ok {
		return domain.Review{}, fmt.Errorf("update review: %w", domain.ErrNotFound)
	}
	existing.Rating = r.Rating
	existing.Comment = r.Comment
	existing.UpdatedAt = m.tick()
	m.reviews[r.ID] = existing
	return existing, nil
}

func (m memReviewTx) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reviews[id]; !ok {
		return fmt.Errorf("delete review: %w", domain.ErrNotFound)
	}
	delete(m.reviews, id)
	return nil
}

func (m memReviewTx) TourRatings(_ context.Context, tourID string) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int, 0)
	for _, r := range m.reviews {
		if r.TourID == tourID {
			out = append(out, r.Rating)
		}
	}
	return out, nil
}

func (m memReviewTx) SaveRatingSummary(_ context.Context, tourID string, s domain.RatingSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tours[tourID]
	if !ok {
		return fmt.Errorf("save rating summary: %w", domain.ErrNotFound)
	}
	t.Rating = s
	m.tours[tourID] = t
	return nil
}

func (m memUsers) GetByID(_ context.Context, id string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return domain.User{}, fmt.Errorf("get user: %w", domain.ErrNotFound)
	}
	return u, nil
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(ctx context.Context, to string, kind notify.Kind, data notify.Data) error {
	return m.Called(ctx, to, kind, data).Error(0)
}

type mockExplainer struct {
	mock.Mock
}

func (m *mockExplainer) Explain(ctx context.Context, req textgen.ExplainRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}
