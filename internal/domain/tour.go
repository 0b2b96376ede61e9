package domain

import "time"

// Difficulty classifies how demanding a tour is.
type Difficulty string

const (
	DifficultyEasy     Difficulty = "easy"
	DifficultyModerate Difficulty = "moderate"
	DifficultyHard     Difficulty = "hard"
)

// Valid reports whether d is a known difficulty.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyModerate, DifficultyHard:
		return true
	}
	return false
}

// RatingSummary is the derived aggregate stored on a tour. Only the rating
// aggregator writes it.
type RatingSummary struct {
	AverageRating float64
	RatingCount   int
}

// Tour is a fixed-itinerary excursion offered by at most one guide.
type Tour struct {
	ID           string
	GuideID      *string
	Title        string
	Description  string
	Price        int64
	DurationDays int
	MaxGroupSize int
	Category     string
	Region       string
	Difficulty   Difficulty
	Seasons      []Season
	Rating       RatingSummary
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// GuidedBy reports whether userID is the tour's guide.
func (t Tour) GuidedBy(userID string) bool {
	return t.GuideID != nil && *t.GuideID == userID
}

// HasSeason reports whether the tour is tagged with s.
func (t Tour) HasSeason(s Season) bool {
	for _, tag := range t.Seasons {
		if tag == s {
			return true
		}
	}
	return false
}
