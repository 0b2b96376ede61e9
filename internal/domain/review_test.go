package domain

import (
	"math"
	"testing"
)

func TestSummarize(t *testing.T) {
	tests := []struct {
		name    string
		ratings []int
		want    RatingSummary
	}{
		{"empty", nil, RatingSummary{}},
		{"single", []int{4}, RatingSummary{AverageRating: 4, RatingCount: 1}},
		{"pair", []int{4, 2}, RatingSummary{AverageRating: 3, RatingCount: 2}},
		{"thirds", []int{5, 4, 4}, RatingSummary{AverageRating: 13.0 / 3.0, RatingCount: 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Summarize(tt.ratings)
			if got.RatingCount != tt.want.RatingCount {
				t.Fatalf("RatingCount = %d, want %d", got.RatingCount, tt.want.RatingCount)
			}
			if math.Abs(got.AverageRating-tt.want.AverageRating) > 1e-9 {
				t.Fatalf("AverageRating = %v, want %v", got.AverageRating, tt.want.AverageRating)
			}
		})
	}
}

func TestValidRating(t *testing.T) {
	for r := 1; r <= 5; r++ {
		if !ValidRating(r) {
			t.Fatalf("rating %d should be valid", r)
		}
	}
	for _, r := range []int{-1, 0, 6} {
		if ValidRating(r) {
			t.Fatalf("rating %d should be invalid", r)
		}
	}
}
