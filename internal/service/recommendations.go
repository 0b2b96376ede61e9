package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Clark-Hu/tourbook/internal/domain"
	"github.com/Clark-Hu/tourbook/internal/lib/logger/sl"
	"github.com/Clark-Hu/tourbook/internal/textgen"
)

const (
	defaultRecommendationLimit = 10
	maxRecommendationLimit     = 50
	explainTitles              = 5
)

// Personalized is a ranked list derived from a user's history.
type Personalized struct {
	Tours  []domain.Tour
	Facets domain.TourFacets
	// Explanation is optional narration; ranking never depends on it.
	Explanation string
}

// Overview bundles the three recommendation lists.
type Overview struct {
	Season       domain.Season
	Popular      []domain.Tour
	Seasonal     []domain.Tour
	Personalized Personalized
}

// Popular ranks active tours by (average rating, rating count).
func (s *Service) Popular(ctx context.Context, limit int) ([]domain.Tour, error) {
	tours, err := s.rank(ctx, domain.TourQuery{Limit: clampLimit(limit)})
	if err != nil {
		return nil, fmt.Errorf("service.Popular: %w", err)
	}
	return tours, nil
}

// Seasonal ranks active tours tagged with the season asOf falls in. A zero
// asOf means now.
func (s *Service) Seasonal(ctx context.Context, limit int, asOf time.Time) ([]domain.Tour, error) {
	if asOf.IsZero() {
		asOf = s.now()
	}
	tours, err := s.rank(ctx, domain.TourQuery{Season: domain.SeasonOf(asOf), Limit: clampLimit(limit)})
	if err != nil {
		return nil, fmt.Errorf("service.Seasonal: %w", err)
	}
	return tours, nil
}

// Personalized ranks active tours sharing any category, region or difficulty
// with tours the user booked or reviewed. A user with no history gets an
// empty list.
func (s *Service) Personalized(ctx context.Context, userID string, limit int) (Personalized, error) {
	const op = "service.Personalized"

	if userID == "" {
		return Personalized{}, fmt.Errorf("%s: %w", op, domain.ErrForbidden)
	}

	engaged, err := query(ctx, s, func(ctx context.Context) ([]domain.Tour, error) {
		return s.tours.EngagedBy(ctx, userID)
	})
	if err != nil {
		return Personalized{}, fmt.Errorf("%s: %w", op, err)
	}

	facets := facetsOf(engaged)
	result := Personalized{Tours: []domain.Tour{}, Facets: facets}
	if facets.Empty() {
		return result, nil
	}

	result.Tours, err = s.rank(ctx, domain.TourQuery{MatchAny: &facets, Limit: clampLimit(limit)})
	if err != nil {
		return Personalized{}, fmt.Errorf("%s: %w", op, err)
	}
	result.Explanation = s.explain(ctx, userID, facets, result.Tours)
	return result, nil
}

// Overview fetches the popular, seasonal and personalized lists concurrently.
func (s *Service) Overview(ctx context.Context, userID string, limit int, asOf time.Time) (Overview, error) {
	if asOf.IsZero() {
		asOf = s.now()
	}
	out := Overview{Season: domain.SeasonOf(asOf)}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		out.Popular, err = s.Popular(gctx, limit)
		return err
	})
	g.Go(func() error {
		var err error
		out.Seasonal, err = s.Seasonal(gctx, limit, asOf)
		return err
	})
	g.Go(func() error {
		var err error
		out.Personalized, err = s.Personalized(gctx, userID, limit)
		return err
	})
	if err := g.Wait(); err != nil {
		return Overview{}, fmt.Errorf("service.Overview: %w", err)
	}
	return out, nil
}

func (s *Service) rank(ctx context.Context, q domain.TourQuery) ([]domain.Tour, error) {
	q.ActiveOnly = true
	q.ByRating = true
	return query(ctx, s, func(ctx context.Context) ([]domain.Tour, error) {
		return s.tours.List(ctx, q)
	})
}

func (s *Service) explain(ctx context.Context, userID string, facets domain.TourFacets, tours []domain.Tour) string {
	if s.explainer == nil || len(tours) == 0 {
		return ""
	}

	titles := make([]string, 0, explainTitles)
	for i := 0; i < len(tours) && i < explainTitles; i++ {
		titles = append(titles, tours[i].Title)
	}
	difficulties := make([]string, 0, len(facets.Difficulties))
	for _, d := range facets.Difficulties {
		difficulties = append(difficulties, string(d))
	}

	ctx, cancel := context.WithTimeout(ctx, s.explainTimeout)
	defer cancel()

	text, err := s.explainer.Explain(ctx, textgen.ExplainRequest{
		UserID:       userID,
		Categories:   facets.Categories,
		Regions:      facets.Regions,
		Difficulties: difficulties,
		TourTitles:   titles,
	})
	if err != nil {
		if !errors.Is(err, textgen.ErrNoExplanation) {
			s.logger.Warn("recommendation explanation unavailable",
				slog.String("op", "service.explain"),
				slog.String("user_id", userID),
				sl.Err(err),
			)
		}
		return ""
	}
	return text
}

// facetsOf collects the distinct classification values of tours, sorted.
func facetsOf(tours []domain.Tour) domain.TourFacets {
	categories := map[string]struct{}{}
	regions := map[string]struct{}{}
	difficulties := map[string]struct{}{}
	for _, t := range tours {
		categories[t.Category] = struct{}{}
		regions[t.Region] = struct{}{}
		difficulties[string(t.Difficulty)] = struct{}{}
	}

	facets := domain.TourFacets{
		Categories: sortedKeys(categories),
		Regions:    sortedKeys(regions),
	}
	for _, d := range sortedKeys(difficulties) {
		facets.Difficulties = append(facets.Difficulties, domain.Difficulty(d))
	}
	return facets
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		if k != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultRecommendationLimit
	case limit > maxRecommendationLimit:
		return maxRecommendationLimit
	}
	return limit
}
