package domain

import "time"

const (
	MinRating = 1
	MaxRating = 5
)

// Review is one user's rating of a tour, tied to a completed booking.
type Review struct {
	ID        string
	UserID    string
	TourID    string
	BookingID string
	Rating    int
	Comment   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ValidRating reports whether r is within the accepted range.
func ValidRating(r int) bool {
	return r >= MinRating && r <= MaxRating
}

// Summarize recomputes a rating summary from the full set of current ratings.
func Summarize(ratings []int) RatingSummary {
	if len(ratings) == 0 {
		return RatingSummary{}
	}
	var sum int
	for _, r := range ratings {
		sum += r
	}
	return RatingSummary{
		AverageRating: float64(sum) / float64(len(ratings)),
		RatingCount:   len(ratings),
	}
}
