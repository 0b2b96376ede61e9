package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/tourbook/internal/domain"
	"github.com/Clark-Hu/tourbook/internal/store"
)

// ReviewsRepository provides helpers for tour reviews.
type ReviewsRepository struct {
	pool *pgxpool.Pool
}

var _ domain.ReviewRepository = (*ReviewsRepository)(nil)

const reviewColumns = `
    id,
    user_id,
    tour_id,
    booking_id,
    rating,
    comment,
    created_at,
    updated_at
`

// GetByID retrieves a single review.
func (r *ReviewsRepository) GetByID(ctx context.Context, id string) (domain.Review, error) {
	query := fmt.Sprintf(`SELECT %s FROM reviews WHERE id = $1`, reviewColumns)
	review, err := scanReview(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return domain.Review{}, translate("get review", err)
	}
	return review, nil
}

// ListByTour returns a tour's reviews, newest first.
func (r *ReviewsRepository) ListByTour(ctx context.Context, tourID string) ([]domain.Review, error) {
	query := fmt.Sprintf(`SELECT %s FROM reviews WHERE tour_id = $1 ORDER BY created_at DESC, id`, reviewColumns)
	rows, err := r.pool.Query(ctx, query, tourID)
	if err != nil {
		return nil, translate("list tour reviews", err)
	}
	defer rows.Close()

	reviews := make([]domain.Review, 0)
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, translate("list tour reviews", err)
		}
		reviews = append(reviews, review)
	}
	if err := rows.Err(); err != nil {
		return nil, translate("list tour reviews", err)
	}
	return reviews, nil
}

// WithTourLocked opens a transaction, takes a row lock on the tour and runs
// fn. Concurrent review mutations on the same tour queue behind the lock, so
// each rating recompute sees every earlier committed change.
func (r *ReviewsRepository) WithTourLocked(ctx context.Context, tourID string, fn func(tx domain.ReviewTx) error) error {
	return store.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var id string
		if err := tx.QueryRow(ctx, `SELECT id FROM tours WHERE id = $1 FOR UPDATE`, tourID).Scan(&id); err != nil {
			return translate("lock tour", err)
		}
		return fn(&reviewTx{tx: tx})
	})
}

type reviewTx struct {
	tx pgx.Tx
}

func (t *reviewTx) GetByID(ctx context.Context, id string) (domain.Review, error) {
	query := fmt.Sprintf(`SELECT %s FROM reviews WHERE id = $1 FOR UPDATE`, reviewColumns)
	review, err := scanReview(t.tx.QueryRow(ctx, query, id))
	if err != nil {
		return domain.Review{}, translate("get review", err)
	}
	return review, nil
}

func (t *reviewTx) Insert(ctx context.Context, rv domain.Review) (domain.Review, error) {
	query := fmt.Sprintf(`
        INSERT INTO reviews (user_id, tour_id, booking_id, rating, comment)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING %s
    `, reviewColumns)
	review, err := scanReview(t.tx.QueryRow(ctx, query, rv.UserID, rv.TourID, rv.BookingID, rv.Rating, rv.Comment))
	if err != nil {
		return domain.Review{}, translate("insert review", err)
	}
	return review, nil
}

func (t *reviewTx) Update(ctx context.Context, rv domain.Review) (domain.Review, error) {
	query := fmt.Sprintf(`
        UPDATE reviews SET rating = $2, comment = $3, updated_at = now()
        WHERE id = $1
        RETURNING %s
    `, reviewColumns)
	review, err := scanReview(t.tx.QueryRow(ctx, query, rv.ID, rv.Rating, rv.Comment))
	if err != nil {
		return domain.Review{}, translate("update review", err)
	}
	return review, nil
}

func (t *reviewTx) Delete(ctx context.Context, id string) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM reviews WHERE id = $1`, id)
	if err != nil {
		return translate("delete review", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete review: %w", domain.ErrNotFound)
	}
	return nil
}

func (t *reviewTx) TourRatings(ctx context.Context, tourID string) ([]int, error) {
	rows, err := t.tx.Query(ctx, `SELECT rating FROM reviews WHERE tour_id = $1`, tourID)
	if err != nil {
		return nil, translate("tour ratings", err)
	}
	ratings, err := pgx.CollectRows(rows, pgx.RowTo[int])
	if err != nil {
		return nil, translate("tour ratings", err)
	}
	return ratings, nil
}

func (t *reviewTx) SaveRatingSummary(ctx context.Context, tourID string, s domain.RatingSummary) error {
	tag, err := t.tx.Exec(ctx, `
        UPDATE tours SET average_rating = $2, rating_count = $3, updated_at = now()
        WHERE id = $1
    `, tourID, s.AverageRating, s.RatingCount)
	if err != nil {
		return translate("save rating summary", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("save rating summary: %w", domain.ErrNotFound)
	}
	return nil
}

func scanReview(row pgx.Row) (domain.Review, error) {
	var review domain.Review
	err := row.Scan(
		&review.ID,
		&review.UserID,
		&review.TourID,
		&review.BookingID,
		&review.Rating,
		&review.Comment,
		&review.CreatedAt,
		&review.UpdatedAt,
	)
	return review, err
}
