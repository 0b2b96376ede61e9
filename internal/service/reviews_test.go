package service

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Clark-Hu/tourbook/internal/domain"
	"github.com/Clark-Hu/tourbook/internal/notify"
)

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func TestReviewAggregateScenario(t *testing.T) {
	h := newHarness(t)
	h.quietNotifications()
	tour := h.createTour(t, nil)

	aliceBooking := h.complete(t, h.alice, tour, day(1))
	bobBooking := h.complete(t, h.bob, tour, day(2))

	first, err := h.svc.CreateReview(h.ctx, principal(h.alice), CreateReviewInput{TourID: tour.ID, Rating: 4, Comment: "lovely"})
	require.NoError(t, err)
	assert.Equal(t, aliceBooking.ID, first.BookingID)
	assert.Equal(t, domain.RatingSummary{AverageRating: 4, RatingCount: 1}, h.store.tour(tour.ID).Rating)

	_, err = h.svc.CreateReview(h.ctx, principal(h.bob), CreateReviewInput{TourID: tour.ID, BookingID: bobBooking.ID, Rating: 2})
	require.NoError(t, err)
	assert.Equal(t, domain.RatingSummary{AverageRating: 3, RatingCount: 2}, h.store.tour(tour.ID).Rating)

	require.NoError(t, h.svc.DeleteReview(h.ctx, principal(h.alice), first.ID))
	assert.Equal(t, domain.RatingSummary{AverageRating: 2, RatingCount: 1}, h.store.tour(tour.ID).Rating)
}

func TestReviewSummaryResetsWhenEmpty(t *testing.T) {
	h := newHarness(t)
	h.quietNotifications()
	tour := h.createTour(t, nil)
	h.complete(t, h.alice, tour, day(1))

	review, err := h.svc.CreateReview(h.ctx, principal(h.alice), CreateReviewInput{TourID: tour.ID, Rating: 5})
	require.NoError(t, err)
	require.NoError(t, h.svc.DeleteReview(h.ctx, principal(h.admin), review.ID))

	assert.Equal(t, domain.RatingSummary{}, h.store.tour(tour.ID).Rating)
	reviews, err := h.svc.ListTourReviews(h.ctx, tour.ID)
	require.NoError(t, err)
	assert.Empty(t, reviews)
}

func TestDuplicateReviewLeavesAggregate(t *testing.T) {
	h := newHarness(t)
	h.quietNotifications()
	tour := h.createTour(t, nil)
	h.complete(t, h.alice, tour, day(1))

	_, err := h.svc.CreateReview(h.ctx, principal(h.alice), CreateReviewInput{TourID: tour.ID, Rating: 4})
	require.NoError(t, err)
	before := h.store.tour(tour.ID).Rating

	_, err = h.svc.CreateReview(h.ctx, principal(h.alice), CreateReviewInput{TourID: tour.ID, Rating: 1})
	assert.ErrorIs(t, err, domain.ErrDuplicateReview)
	assert.Equal(t, before, h.store.tour(tour.ID).Rating)

	reviews, err := h.svc.ListTourReviews(h.ctx, tour.ID)
	require.NoError(t, err)
	assert.Len(t, reviews, 1)
}

func TestCreateReviewPreconditions(t *testing.T) {
	h := newHarness(t)
	h.quietNotifications()
	tour := h.createTour(t, nil)
	other := h.createTour(t, func(in *CreateTourInput) { in.Title = "Other" })

	pending := h.book(t, h.bob, tour, day(1))
	otherDone := h.complete(t, h.bob, other, day(2))
	h.complete(t, h.alice, tour, day(3))
	h.complete(t, h.alice, tour, day(4))

	testCases := []struct {
		name    string
		p       domain.Principal
		in      CreateReviewInput
		wantErr error
	}{
		{"rating too low", principal(h.alice), CreateReviewInput{TourID: tour.ID, Rating: 0}, domain.ErrValidation},
		{"rating too high", principal(h.alice), CreateReviewInput{TourID: tour.ID, Rating: 6}, domain.ErrValidation},
		{"comment too long", principal(h.alice), CreateReviewInput{TourID: tour.ID, Rating: 3, Comment: strings.Repeat("x", maxCommentLength+1)}, domain.ErrValidation},
		{"unknown tour", principal(h.alice), CreateReviewInput{TourID: "missing", Rating: 3}, domain.ErrNotFound},
		{"no completed booking", principal(h.bob), CreateReviewInput{TourID: tour.ID, Rating: 3}, domain.ErrValidation},
		{"pending booking named", principal(h.bob), CreateReviewInput{TourID: tour.ID, BookingID: pending.ID, Rating: 3}, domain.ErrValidation},
		{"booking of another tour", principal(h.bob), CreateReviewInput{TourID: tour.ID, BookingID: otherDone.ID, Rating: 3}, domain.ErrValidation},
		{"ambiguous completed bookings", principal(h.alice), CreateReviewInput{TourID: tour.ID, Rating: 3}, domain.ErrValidation},
		{"anonymous", domain.Principal{}, CreateReviewInput{TourID: tour.ID, Rating: 3}, domain.ErrForbidden},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.svc.CreateReview(h.ctx, tc.p, tc.in)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}

	assert.Equal(t, domain.RatingSummary{}, h.store.tour(tour.ID).Rating)
}

func TestCreateReviewNotifiesGuide(t *testing.T) {
	h := newHarness(t)
	tour := h.createTour(t, nil)
	// Confirming notifies the user; completing sends nothing.
	h.notifier.On("Notify", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
	h.complete(t, h.alice, tour, day(1))

	h.notifier.On("Notify", mock.Anything, h.guide.Email, notify.KindReviewCreated,
		mock.MatchedBy(func(d notify.Data) bool { return d["Rating"] == 5 && d["GuideName"] == h.guide.Name })).
		Return(errors.New("mailer down")).Once()

	created, err := h.svc.CreateReview(h.ctx, principal(h.alice), CreateReviewInput{TourID: tour.ID, Rating: 5, Comment: "wow"})
	require.NoError(t, err, "notification failure must not fail the review")
	h.notifier.AssertExpectations(t)

	reviews, err := h.svc.ListTourReviews(h.ctx, tour.ID)
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, created.ID, reviews[0].ID)
	assert.Equal(t, domain.RatingSummary{AverageRating: 5, RatingCount: 1}, h.store.tour(tour.ID).Rating)
}

func TestUpdateReview(t *testing.T) {
	h := newHarness(t)
	h.quietNotifications()
	tour := h.createTour(t, nil)
	h.complete(t, h.alice, tour, day(1))
	h.complete(t, h.bob, tour, day(2))

	review, err := h.svc.CreateReview(h.ctx, principal(h.alice), CreateReviewInput{TourID: tour.ID, Rating: 5})
	require.NoError(t, err)
	_, err = h.svc.CreateReview(h.ctx, principal(h.bob), CreateReviewInput{TourID: tour.ID, Rating: 3})
	require.NoError(t, err)
	assert.Equal(t, 4.0, h.store.tour(tour.ID).Rating.AverageRating)

	updated, err := h.svc.UpdateReview(h.ctx, principal(h.alice), review.ID, UpdateReviewInput{Rating: intPtr(1), Comment: strPtr(" meh ")})
	require.NoError(t, err)
	assert.Equal(t, 1, updated.Rating)
	assert.Equal(t, "meh", updated.Comment)
	assert.Equal(t, domain.RatingSummary{AverageRating: 2, RatingCount: 2}, h.store.tour(tour.ID).Rating)

	_, err = h.svc.UpdateReview(h.ctx, principal(h.bob), review.ID, UpdateReviewInput{Rating: intPtr(5)})
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = h.svc.UpdateReview(h.ctx, principal(h.guide), review.ID, UpdateReviewInput{Rating: intPtr(5)})
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = h.svc.UpdateReview(h.ctx, principal(h.alice), review.ID, UpdateReviewInput{Rating: intPtr(9)})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = h.svc.UpdateReview(h.ctx, principal(h.alice), review.ID, UpdateReviewInput{})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = h.svc.UpdateReview(h.ctx, principal(h.alice), "missing", UpdateReviewInput{Rating: intPtr(2)})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = h.svc.UpdateReview(h.ctx, principal(h.admin), review.ID, UpdateReviewInput{Rating: intPtr(3)})
	require.NoError(t, err)
	assert.Equal(t, domain.RatingSummary{AverageRating: 3, RatingCount: 2}, h.store.tour(tour.ID).Rating)
}

func TestConcurrentPartialReviewUpdatesKeepBothFields(t *testing.T) {
	h := newHarness(t)
	h.quietNotifications()
	tour := h.createTour(t, nil)
	h.complete(t, h.alice, tour, day(1))

	review, err := h.svc.CreateReview(h.ctx, principal(h.alice), CreateReviewInput{TourID: tour.ID, Rating: 1, Comment: "start"})
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		rating := i%5 + 1
		comment := fmt.Sprintf("edit %d", i)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := h.svc.UpdateReview(h.ctx, principal(h.alice), review.ID, UpdateReviewInput{Rating: intPtr(rating)})
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := h.svc.UpdateReview(h.ctx, principal(h.alice), review.ID, UpdateReviewInput{Comment: strPtr(comment)})
			assert.NoError(t, err)
		}()
		wg.Wait()

		reviews, err := h.svc.ListTourReviews(h.ctx, tour.ID)
		require.NoError(t, err)
		require.Len(t, reviews, 1)
		assert.Equal(t, rating, reviews[0].Rating, "round %d", i)
		assert.Equal(t, comment, reviews[0].Comment, "round %d", i)
		assert.Equal(t, domain.RatingSummary{AverageRating: float64(rating), RatingCount: 1}, h.store.tour(tour.ID).Rating)
	}
}

func TestDeleteReviewAuthorization(t *testing.T) {
	h := newHarness(t)
	h.quietNotifications()
	tour := h.createTour(t, nil)
	h.complete(t, h.alice, tour, day(1))

	review, err := h.svc.CreateReview(h.ctx, principal(h.alice), CreateReviewInput{TourID: tour.ID, Rating: 4})
	require.NoError(t, err)

	assert.ErrorIs(t, h.svc.DeleteReview(h.ctx, principal(h.bob), review.ID), domain.ErrForbidden)
	assert.ErrorIs(t, h.svc.DeleteReview(h.ctx, principal(h.guide), review.ID), domain.ErrForbidden)
	assert.Equal(t, 1, h.store.tour(tour.ID).Rating.RatingCount)

	require.NoError(t, h.svc.DeleteReview(h.ctx, principal(h.alice), review.ID))
	assert.ErrorIs(t, h.svc.DeleteReview(h.ctx, principal(h.alice), review.ID), domain.ErrNotFound)
}

func TestConcurrentReviewsKeepAggregateConsistent(t *testing.T) {
	h := newHarness(t)
	h.quietNotifications()
	tour := h.createTour(t, nil)

	const reviewers = 20
	users := make([]domain.User, reviewers)
	for i := range users {
		users[i] = h.store.addUser(fmt.Sprintf("Reviewer%d", i), domain.RoleUser)
		h.complete(t, users[i], tour, day(i+1))
	}

	var wg sync.WaitGroup
	sum := 0
	for i, u := range users {
		rating := i%5 + 1
		sum += rating
		wg.Add(1)
		go func(u domain.User, rating int) {
			defer wg.Done()
			if _, err := h.svc.CreateReview(h.ctx, principal(u), CreateReviewInput{TourID: tour.ID, Rating: rating}); err != nil {
				t.Errorf("create review: %v", err)
			}
		}(u, rating)
	}
	wg.Wait()

	got := h.store.tour(tour.ID).Rating
	assert.Equal(t, reviewers, got.RatingCount)
	assert.InDelta(t, float64(sum)/reviewers, got.AverageRating, 1e-9)

	summary, err := h.svc.RecomputeRatingSummary(h.ctx, tour.ID)
	require.NoError(t, err)
	assert.Equal(t, got, summary)
}

func TestRecomputeRatingSummaryUnknownTour(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.RecomputeRatingSummary(h.ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = h.svc.ListTourReviews(h.ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPickReviewedBooking(t *testing.T) {
	a := domain.Booking{ID: "a"}
	b := domain.Booking{ID: "b"}

	got, err := pickReviewedBooking([]domain.Booking{a}, "")
	require.NoError(t, err)
	assert.Equal(t, "a", got.ID)

	got, err = pickReviewedBooking([]domain.Booking{a, b}, "b")
	require.NoError(t, err)
	assert.Equal(t, "b", got.ID)

	_, err = pickReviewedBooking([]domain.Booking{a, b}, "")
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = pickReviewedBooking(nil, "")
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = pickReviewedBooking([]domain.Booking{a}, "zzz")
	assert.ErrorIs(t, err, domain.ErrValidation)
}
