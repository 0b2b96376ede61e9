package domain

import (
	"context"
	"time"
)

// TourFacets are the classification values a user has engaged with.
type TourFacets struct {
	Categories   []string
	Regions      []string
	Difficulties []Difficulty
}

// Empty reports whether no facet is set.
func (f TourFacets) Empty() bool {
	return len(f.Categories) == 0 && len(f.Regions) == 0 && len(f.Difficulties) == 0
}

// TourQuery filters and orders tour listings.
type TourQuery struct {
	Category   string
	Region     string
	Difficulty Difficulty
	Season     Season
	// MatchAny keeps tours sharing at least one facet value.
	MatchAny   *TourFacets
	ActiveOnly bool
	// ByRating orders by (average rating desc, rating count desc); otherwise newest first.
	ByRating bool
	Limit    int
}

// TourPatch carries optional tour field updates. The rating summary is not patchable.
type TourPatch struct {
	Title        *string
	Description  *string
	Price        *int64
	DurationDays *int
	MaxGroupSize *int
	Category     *string
	Region       *string
	Difficulty   *Difficulty
	Seasons      []Season
	GuideID      *string
}

// TourRepository persists tours.
type TourRepository interface {
	Create(ctx context.Context, t Tour) (Tour, error)
	GetByID(ctx context.Context, id string) (Tour, error)
	Update(ctx context.Context, id string, patch TourPatch) (Tour, error)
	SetActive(ctx context.Context, id string, active bool) (Tour, error)
	List(ctx context.Context, q TourQuery) ([]Tour, error)
	// EngagedBy returns the distinct tours the user has booked or reviewed.
	EngagedBy(ctx context.Context, userID string) ([]Tour, error)
}

// BookingRepository persists bookings.
type BookingRepository interface {
	// Insert admits b atomically: it fails with ErrSlotConflict when another
	// pending or confirmed booking holds (b.TourID, b.StartDate).
	Insert(ctx context.Context, b Booking) (Booking, error)
	GetByID(ctx context.Context, id string) (Booking, error)
	// UpdateStatus writes next only if the stored status still equals from;
	// otherwise it fails with ErrInvalidTransition.
	UpdateStatus(ctx context.Context, from BookingStatus, next Booking) (Booking, error)
	ListByUser(ctx context.Context, userID string) ([]Booking, error)
	ListByTour(ctx context.Context, tourID string) ([]Booking, error)
	ListCompleted(ctx context.Context, userID, tourID string) ([]Booking, error)
	ListPendingStartingBefore(ctx context.Context, before time.Time, limit int) ([]Booking, error)
}

// ReviewTx is the set of writes allowed while a tour's reviews are locked.
type ReviewTx interface {
	GetByID(ctx context.Context, id string) (Review, error)
	Insert(ctx context.Context, r Review) (Review, error)
	Update(ctx context.Context, r Review) (Review, error)
	Delete(ctx context.Context, id string) error
	TourRatings(ctx context.Context, tourID string) ([]int, error)
	SaveRatingSummary(ctx context.Context, tourID string, s RatingSummary) error
}

// ReviewRepository persists reviews. Mutations run inside WithTourLocked so
// that concurrent changes to one tour's reviews serialize.
type ReviewRepository interface {
	GetByID(ctx context.Context, id string) (Review, error)
	ListByTour(ctx context.Context, tourID string) ([]Review, error)
	WithTourLocked(ctx context.Context, tourID string, fn func(tx ReviewTx) error) error
}

// UserRepository resolves notification addresses.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (User, error)
}
