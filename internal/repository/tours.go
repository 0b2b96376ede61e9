package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/tourbook/internal/domain"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// ToursRepository provides persistence helpers for tour entities.
type ToursRepository struct {
	pool *pgxpool.Pool
}

var _ domain.TourRepository = (*ToursRepository)(nil)

const tourColumns = `
    t.id,
    t.guide_id,
    t.title,
    t.description,
    t.price,
    t.duration_days,
    t.max_group_size,
    t.category,
    t.region,
    t.difficulty,
    t.seasons,
    t.average_rating,
    t.rating_count,
    t.active,
    t.created_at,
    t.updated_at
`

// Create inserts a new tour row and returns the stored entity. The rating
// summary always starts empty.
func (r *ToursRepository) Create(ctx context.Context, t domain.Tour) (domain.Tour, error) {
	query := fmt.Sprintf(`
        INSERT INTO tours AS t (guide_id, title, description, price, duration_days, max_group_size,
                                category, region, difficulty, seasons, active)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,TRUE)
        RETURNING %s
    `, tourColumns)

	row := r.pool.QueryRow(ctx, query, t.GuideID, t.Title, t.Description, t.Price, t.DurationDays,
		t.MaxGroupSize, t.Category, t.Region, string(t.Difficulty), seasonStrings(t.Seasons))
	tour, err := scanTour(row)
	if err != nil {
		return domain.Tour{}, translate("create tour", err)
	}
	return tour, nil
}

// GetByID fetches a tour by its identifier.
func (r *ToursRepository) GetByID(ctx context.Context, id string) (domain.Tour, error) {
	query := fmt.Sprintf(`SELECT %s FROM tours t WHERE t.id = $1`, tourColumns)
	tour, err := scanTour(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return domain.Tour{}, translate("get tour", err)
	}
	return tour, nil
}

// Update applies the non-nil fields of patch.
func (r *ToursRepository) Update(ctx context.Context, id string, patch domain.TourPatch) (domain.Tour, error) {
	var difficulty *string
	if patch.Difficulty != nil {
		d := string(*patch.Difficulty)
		difficulty = &d
	}
	var seasons []string
	if patch.Seasons != nil {
		seasons = seasonStrings(patch.Seasons)
	}

	query := fmt.Sprintf(`
        UPDATE tours t
        SET title = COALESCE($2, title),
            description = COALESCE($3, description),
            price = COALESCE($4, price),
            duration_days = COALESCE($5, duration_days),
            max_group_size = COALESCE($6, max_group_size),
            category = COALESCE($7, category),
            region = COALESCE($8, region),
            difficulty = COALESCE($9, difficulty),
            seasons = COALESCE($10, seasons),
            guide_id = COALESCE($11, guide_id),
            updated_at = now()
        WHERE t.id = $1
        RETURNING %s
    `, tourColumns)

	row := r.pool.QueryRow(ctx, query, id, patch.Title, patch.Description, patch.Price, patch.DurationDays,
		patch.MaxGroupSize, patch.Category, patch.Region, difficulty, seasons, patch.GuideID)
	tour, err := scanTour(row)
	if err != nil {
		return domain.Tour{}, translate("update tour", err)
	}
	return tour, nil
}

// SetActive flips the tour's active flag. Tours are never hard-deleted.
func (r *ToursRepository) SetActive(ctx context.Context, id string, active bool) (domain.Tour, error) {
	query := fmt.Sprintf(`
        UPDATE tours t SET active = $2, updated_at = now()
        WHERE t.id = $1
        RETURNING %s
    `, tourColumns)
	tour, err := scanTour(r.pool.QueryRow(ctx, query, id, active))
	if err != nil {
		return domain.Tour{}, translate("set tour active", err)
	}
	return tour, nil
}

// List returns tours matching q.
func (r *ToursRepository) List(ctx context.Context, q domain.TourQuery) ([]domain.Tour, error) {
	if q.Limit <= 0 {
		q.Limit = defaultListLimit
	} else if q.Limit > maxListLimit {
		q.Limit = maxListLimit
	}

	where := make([]string, 0)
	args := make([]interface{}, 0)
	arg := func(value interface{}) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	if q.ActiveOnly {
		where = append(where, "t.active")
	}
	if v := strings.TrimSpace(q.Category); v != "" {
		where = append(where, fmt.Sprintf("t.category ILIKE %s", arg(v)))
	}
	if v := strings.TrimSpace(q.Region); v != "" {
		where = append(where, fmt.Sprintf("t.region ILIKE %s", arg(v)))
	}
	if q.Difficulty != "" {
		where = append(where, fmt.Sprintf("t.difficulty = %s", arg(string(q.Difficulty))))
	}
	if q.Season != "" {
		where = append(where, fmt.Sprintf("%s = ANY(t.seasons)", arg(string(q.Season))))
	}
	if q.MatchAny != nil {
		facets := *q.MatchAny
		where = append(where, fmt.Sprintf("(t.category = ANY(%s) OR t.region = ANY(%s) OR t.difficulty = ANY(%s))",
			arg(nonNil(facets.Categories)), arg(nonNil(facets.Regions)), arg(difficultyStrings(facets.Difficulties))))
	}

	queryBuilder := strings.Builder{}
	queryBuilder.WriteString("SELECT ")
	queryBuilder.WriteString(tourColumns)
	queryBuilder.WriteString(" FROM tours t")
	if len(where) > 0 {
		queryBuilder.WriteString(" WHERE ")
		queryBuilder.WriteString(strings.Join(where, " AND "))
	}
	if q.ByRating {
		queryBuilder.WriteString(" ORDER BY t.average_rating DESC, t.rating_count DESC, t.created_at DESC, t.id")
	} else {
		queryBuilder.WriteString(" ORDER BY t.created_at DESC, t.id DESC")
	}
	queryBuilder.WriteString(fmt.Sprintf(" LIMIT %d", q.Limit))

	rows, err := r.pool.Query(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, translate("list tours", err)
	}
	tours, err := collectTours(rows)
	if err != nil {
		return nil, translate("list tours", err)
	}
	return tours, nil
}

// EngagedBy returns the distinct tours the user has booked or reviewed.
func (r *ToursRepository) EngagedBy(ctx context.Context, userID string) ([]domain.Tour, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM tours t
        WHERE t.id IN (
            SELECT b.tour_id FROM bookings b WHERE b.user_id = $1
            UNION
            SELECT rv.tour_id FROM reviews rv WHERE rv.user_id = $1
        )
        ORDER BY t.created_at DESC
    `, tourColumns)

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, translate("tours engaged by user", err)
	}
	tours, err := collectTours(rows)
	if err != nil {
		return nil, translate("tours engaged by user", err)
	}
	return tours, nil
}

func collectTours(rows pgx.Rows) ([]domain.Tour, error) {
	defer rows.Close()

	tours := make([]domain.Tour, 0)
	for rows.Next() {
		tour, err := scanTour(rows)
		if err != nil {
			return nil, err
		}
		tours = append(tours, tour)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tours, nil
}

func scanTour(row pgx.Row) (domain.Tour, error) {
	var (
		tour       domain.Tour
		difficulty string
		seasons    []string
	)

	err := row.Scan(
		&tour.ID,
		&tour.GuideID,
		&tour.Title,
		&tour.Description,
		&tour.Price,
		&tour.DurationDays,
		&tour.MaxGroupSize,
		&tour.Category,
		&tour.Region,
		&difficulty,
		&seasons,
		&tour.Rating.AverageRating,
		&tour.Rating.RatingCount,
		&tour.Active,
		&tour.CreatedAt,
		&tour.UpdatedAt,
	)
	if err != nil {
		return domain.Tour{}, err
	}

	tour.Difficulty = domain.Difficulty(difficulty)
	tour.Seasons = make([]domain.Season, 0, len(seasons))
	for _, s := range seasons {
		tour.Seasons = append(tour.Seasons, domain.Season(s))
	}
	return tour, nil
}

func seasonStrings(seasons []domain.Season) []string {
	out := make([]string, 0, len(seasons))
	for _, s := range seasons {
		out = append(out, string(s))
	}
	return out
}

func difficultyStrings(ds []domain.Difficulty) []string {
	out := make([]string, 0, len(ds))
	for _, d := range ds {
		out = append(out, string(d))
	}
	return out
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
