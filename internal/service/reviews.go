package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/Clark-Hu/tourbook/internal/authz"
	"github.com/Clark-Hu/tourbook/internal/domain"
	"github.com/Clark-Hu/tourbook/internal/notify"
)

const maxCommentLength = 2000

// CreateReviewInput is a new review. BookingID may be empty when the author
// holds exactly one completed booking of the tour.
type CreateReviewInput struct {
	TourID    string
	BookingID string
	Rating    int
	Comment   string
}

// UpdateReviewInput carries optional review changes.
type UpdateReviewInput struct {
	Rating  *int
	Comment *string
}

// CreateReview records a review against one of the principal's completed
// bookings and recomputes the tour's rating summary in the same unit of work.
func (s *Service) CreateReview(ctx context.Context, p domain.Principal, in CreateReviewInput) (domain.Review, error) {
	const op = "service.CreateReview"

	log := s.logger.With(
		slog.String("op", op),
		slog.String("tour_id", in.TourID),
		slog.String("user_id", p.ID),
	)

	if p.ID == "" {
		return domain.Review{}, fmt.Errorf("%s: %w", op, domain.ErrForbidden)
	}
	comment, err := validateReviewFields(in.Rating, in.Comment)
	if err != nil {
		return domain.Review{}, fmt.Errorf("%s: %w", op, err)
	}

	tour, err := query(ctx, s, func(ctx context.Context) (domain.Tour, error) {
		return s.tours.GetByID(ctx, in.TourID)
	})
	if err != nil {
		return domain.Review{}, fmt.Errorf("%s: %w", op, err)
	}

	completed, err := query(ctx, s, func(ctx context.Context) ([]domain.Booking, error) {
		return s.bookings.ListCompleted(ctx, p.ID, tour.ID)
	})
	if err != nil {
		return domain.Review{}, fmt.Errorf("%s: %w", op, err)
	}
	booking, err := pickReviewedBooking(completed, strings.TrimSpace(in.BookingID))
	if err != nil {
		return domain.Review{}, fmt.Errorf("%s: %w", op, err)
	}

	var (
		created domain.Review
		summary domain.RatingSummary
	)
	err = s.exec(ctx, func(ctx context.Context) error {
		return s.reviews.WithTourLocked(ctx, tour.ID, func(tx domain.ReviewTx) error {
			var err error
			created, err = tx.Insert(ctx, domain.Review{
				UserID:    p.ID,
				TourID:    tour.ID,
				BookingID: booking.ID,
				Rating:    in.Rating,
				Comment:   comment,
			})
			if err != nil {
				return err
			}
			summary, err = recompute(ctx, tx, tour.ID)
			return err
		})
	})
	if err != nil {
		return domain.Review{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("review created",
		slog.String("review_id", created.ID),
		slog.Float64("average_rating", summary.AverageRating),
		slog.Int("rating_count", summary.RatingCount),
	)

	if tour.GuideID != nil {
		s.notifyUser(ctx, *tour.GuideID, notify.KindReviewCreated, notify.Data{
			"TourTitle": tour.Title,
			"Rating":    created.Rating,
			"Comment":   created.Comment,
		}, "GuideName")
	}
	return created, nil
}

// pickReviewedBooking resolves which completed booking a review is tied to.
func pickReviewedBooking(completed []domain.Booking, bookingID string) (domain.Booking, error) {
	if bookingID != "" {
		for _, b := range completed {
			if b.ID == bookingID {
				return b, nil
			}
		}
		return domain.Booking{}, validationf("booking %s is not a completed booking of this tour", bookingID)
	}
	switch len(completed) {
	case 0:
		return domain.Booking{}, validationf("a completed booking of this tour is required to review it")
	case 1:
		return completed[0], nil
	default:
		return domain.Booking{}, validationf("bookingId is required: %d completed bookings of this tour", len(completed))
	}
}

// UpdateReview changes a review's rating or comment and recomputes the summary.
func (s *Service) UpdateReview(ctx context.Context, p domain.Principal, id string, in UpdateReviewInput) (domain.Review, error) {
	const op = "service.UpdateReview"

	if in.Rating == nil && in.Comment == nil {
		return domain.Review{}, fmt.Errorf("%s: %w", op, validationf("nothing to update"))
	}

	review, err := query(ctx, s, func(ctx context.Context) (domain.Review, error) {
		return s.reviews.GetByID(ctx, id)
	})
	if err != nil {
		return domain.Review{}, fmt.Errorf("%s: %w", op, err)
	}
	if err := authz.Authorize(p, authz.ForReview(review), authz.ActionEditReview); err != nil {
		return domain.Review{}, fmt.Errorf("%s: %w", op, err)
	}

	var updated domain.Review
	err = s.exec(ctx, func(ctx context.Context) error {
		return s.reviews.WithTourLocked(ctx, review.TourID, func(tx domain.ReviewTx) error {
			// Patch the locked row so concurrent edits of other fields survive.
			current, err := tx.GetByID(ctx, id)
			if err != nil {
				return err
			}
			if in.Rating != nil {
				current.Rating = *in.Rating
			}
			if in.Comment != nil {
				current.Comment = *in.Comment
			}
			if current.Comment, err = validateReviewFields(current.Rating, current.Comment); err != nil {
				return err
			}
			if updated, err = tx.Update(ctx, current); err != nil {
				return err
			}
			_, err = recompute(ctx, tx, current.TourID)
			return err
		})
	})
	if err != nil {
		return domain.Review{}, fmt.Errorf("%s: %w", op, err)
	}

	s.logger.Info("review updated", slog.String("op", op), slog.String("review_id", id))
	return updated, nil
}

// DeleteReview removes a review and recomputes the summary; the last review
// leaving resets it to zero.
func (s *Service) DeleteReview(ctx context.Context, p domain.Principal, id string) error {
	const op = "service.DeleteReview"

	review, err := query(ctx, s, func(ctx context.Context) (domain.Review, error) {
		return s.reviews.GetByID(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := authz.Authorize(p, authz.ForReview(review), authz.ActionDeleteReview); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = s.exec(ctx, func(ctx context.Context) error {
		return s.reviews.WithTourLocked(ctx, review.TourID, func(tx domain.ReviewTx) error {
			if err := tx.Delete(ctx, id); err != nil {
				return err
			}
			_, err := recompute(ctx, tx, review.TourID)
			return err
		})
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.logger.Info("review deleted", slog.String("op", op), slog.String("review_id", id))
	return nil
}

// ListTourReviews returns a tour's reviews.
func (s *Service) ListTourReviews(ctx context.Context, tourID string) ([]domain.Review, error) {
	const op = "service.ListTourReviews"

	if _, err := query(ctx, s, func(ctx context.Context) (domain.Tour, error) {
		return s.tours.GetByID(ctx, tourID)
	}); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	reviews, err := query(ctx, s, func(ctx context.Context) ([]domain.Review, error) {
		return s.reviews.ListByTour(ctx, tourID)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return reviews, nil
}

// RecomputeRatingSummary rebuilds a tour's summary from its current reviews.
func (s *Service) RecomputeRatingSummary(ctx context.Context, tourID string) (domain.RatingSummary, error) {
	const op = "service.RecomputeRatingSummary"

	var summary domain.RatingSummary
	err := s.exec(ctx, func(ctx context.Context) error {
		return s.reviews.WithTourLocked(ctx, tourID, func(tx domain.ReviewTx) error {
			var err error
			summary, err = recompute(ctx, tx, tourID)
			return err
		})
	})
	if err != nil {
		return domain.RatingSummary{}, fmt.Errorf("%s: %w", op, err)
	}
	return summary, nil
}

// recompute is a full read-aggregate-write; callers hold the tour lock.
func recompute(ctx context.Context, tx domain.ReviewTx, tourID string) (domain.RatingSummary, error) {
	ratings, err := tx.TourRatings(ctx, tourID)
	if err != nil {
		return domain.RatingSummary{}, err
	}
	summary := domain.Summarize(ratings)
	if err := tx.SaveRatingSummary(ctx, tourID, summary); err != nil {
		return domain.RatingSummary{}, err
	}
	return summary, nil
}

func validateReviewFields(rating int, comment string) (string, error) {
	if !domain.ValidRating(rating) {
		return "", validationf("rating must be between %d and %d", domain.MinRating, domain.MaxRating)
	}
	comment = strings.TrimSpace(comment)
	if utf8.RuneCountInString(comment) > maxCommentLength {
		return "", validationf("comment must be at most %d characters", maxCommentLength)
	}
	return comment, nil
}
