package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Clark-Hu/tourbook/internal/authz"
	"github.com/Clark-Hu/tourbook/internal/domain"
)

// CreateTourInput describes a new tour. GuideID is honoured for admins only;
// a guide always owns the tours they create.
type CreateTourInput struct {
	GuideID      *string
	Title        string
	Description  string
	Price        int64
	DurationDays int
	MaxGroupSize int
	Category     string
	Region       string
	Difficulty   domain.Difficulty
	Seasons      []domain.Season
}

// CreateTour creates an active tour with an empty rating summary.
func (s *Service) CreateTour(ctx context.Context, p domain.Principal, in CreateTourInput) (domain.Tour, error) {
	const op = "service.CreateTour"

	if err := authz.Authorize(p, authz.Resource{}, authz.ActionCreateTour); err != nil {
		return domain.Tour{}, fmt.Errorf("%s: %w", op, err)
	}

	tour := domain.Tour{
		GuideID:      in.GuideID,
		Title:        strings.TrimSpace(in.Title),
		Description:  strings.TrimSpace(in.Description),
		Price:        in.Price,
		DurationDays: in.DurationDays,
		MaxGroupSize: in.MaxGroupSize,
		Category:     strings.TrimSpace(in.Category),
		Region:       strings.TrimSpace(in.Region),
		Difficulty:   in.Difficulty,
		Seasons:      dedupeSeasons(in.Seasons),
	}
	if p.Role == domain.RoleGuide {
		guideID := p.ID
		tour.GuideID = &guideID
	}
	if err := validateTour(tour); err != nil {
		return domain.Tour{}, fmt.Errorf("%s: %w", op, err)
	}

	created, err := query(ctx, s, func(ctx context.Context) (domain.Tour, error) {
		return s.tours.Create(ctx, tour)
	})
	if err != nil {
		return domain.Tour{}, fmt.Errorf("%s: %w", op, err)
	}

	s.logger.Info("tour created", slog.String("op", op), slog.String("tour_id", created.ID))
	return created, nil
}

// UpdateTour applies patch for the tour's guide or an admin. Only admins may
// reassign the guide.
func (s *Service) UpdateTour(ctx context.Context, p domain.Principal, id string, patch domain.TourPatch) (domain.Tour, error) {
	const op = "service.UpdateTour"

	tour, err := query(ctx, s, func(ctx context.Context) (domain.Tour, error) {
		return s.tours.GetByID(ctx, id)
	})
	if err != nil {
		return domain.Tour{}, fmt.Errorf("%s: %w", op, err)
	}
	if err := authz.Authorize(p, authz.ForTour(tour), authz.ActionUpdateTour); err != nil {
		return domain.Tour{}, fmt.Errorf("%s: %w", op, err)
	}
	if patch.GuideID != nil && p.Role != domain.RoleAdmin {
		return domain.Tour{}, fmt.Errorf("%s: reassign guide: %w", op, domain.ErrForbidden)
	}

	patch = normalizePatch(patch)
	if err := validateTour(applyPatch(tour, patch)); err != nil {
		return domain.Tour{}, fmt.Errorf("%s: %w", op, err)
	}

	updated, err := query(ctx, s, func(ctx context.Context) (domain.Tour, error) {
		return s.tours.Update(ctx, id, patch)
	})
	if err != nil {
		return domain.Tour{}, fmt.Errorf("%s: %w", op, err)
	}

	s.logger.Info("tour updated", slog.String("op", op), slog.String("tour_id", id))
	return updated, nil
}

// DeactivateTour hides a tour from booking and recommendations. Tours keep
// their bookings and reviews, so they are never deleted.
func (s *Service) DeactivateTour(ctx context.Context, p domain.Principal, id string) (domain.Tour, error) {
	const op = "service.DeactivateTour"

	tour, err := query(ctx, s, func(ctx context.Context) (domain.Tour, error) {
		return s.tours.GetByID(ctx, id)
	})
	if err != nil {
		return domain.Tour{}, fmt.Errorf("%s: %w", op, err)
	}
	if err := authz.Authorize(p, authz.ForTour(tour), authz.ActionDeactivateTour); err != nil {
		return domain.Tour{}, fmt.Errorf("%s: %w", op, err)
	}
	if !tour.Active {
		return tour, nil
	}

	updated, err := query(ctx, s, func(ctx context.Context) (domain.Tour, error) {
		return s.tours.SetActive(ctx, id, false)
	})
	if err != nil {
		return domain.Tour{}, fmt.Errorf("%s: %w", op, err)
	}

	s.logger.Info("tour deactivated", slog.String("op", op), slog.String("tour_id", id))
	return updated, nil
}

// GetTour returns a tour by id.
func (s *Service) GetTour(ctx context.Context, id string) (domain.Tour, error) {
	tour, err := query(ctx, s, func(ctx context.Context) (domain.Tour, error) {
		return s.tours.GetByID(ctx, id)
	})
	if err != nil {
		return domain.Tour{}, fmt.Errorf("service.GetTour: %w", err)
	}
	return tour, nil
}

// ListTours returns tours matching q.
func (s *Service) ListTours(ctx context.Context, q domain.TourQuery) ([]domain.Tour, error) {
	if q.Difficulty != "" && !q.Difficulty.Valid() {
		return nil, fmt.Errorf("service.ListTours: %w", validationf("unknown difficulty %q", q.Difficulty))
	}
	tours, err := query(ctx, s, func(ctx context.Context) ([]domain.Tour, error) {
		return s.tours.List(ctx, q)
	})
	if err != nil {
		return nil, fmt.Errorf("service.ListTours: %w", err)
	}
	return tours, nil
}

func validateTour(t domain.Tour) error {
	switch {
	case t.Title == "":
		return validationf("title is required")
	case t.Price <= 0:
		return validationf("price must be positive")
	case t.DurationDays < 1:
		return validationf("duration must be at least 1 day")
	case t.MaxGroupSize < 1:
		return validationf("max group size must be at least 1")
	case t.Category == "":
		return validationf("category is required")
	case t.Region == "":
		return validationf("region is required")
	case !t.Difficulty.Valid():
		return validationf("difficulty must be one of easy, moderate, hard")
	}
	for _, season := range t.Seasons {
		if _, err := domain.ParseSeason(string(season)); err != nil {
			return err
		}
	}
	return nil
}

func normalizePatch(patch domain.TourPatch) domain.TourPatch {
	trim := func(v *string) *string {
		if v == nil {
			return nil
		}
		out := strings.TrimSpace(*v)
		return &out
	}
	patch.Title = trim(patch.Title)
	patch.Description = trim(patch.Description)
	patch.Category = trim(patch.Category)
	patch.Region = trim(patch.Region)
	if patch.Seasons != nil {
		patch.Seasons = dedupeSeasons(patch.Seasons)
	}
	return patch
}

// applyPatch previews the patched tour for validation.
func applyPatch(t domain.Tour, patch domain.TourPatch) domain.Tour {
	if patch.Title != nil {
		t.Title = *patch.Title
	}
	if patch.Description != nil {
		t.Description = *patch.Description
	}
	if patch.Price != nil {
		t.Price = *patch.Price
	}
	if patch.DurationDays != nil {
		t.DurationDays = *patch.DurationDays
	}
	if patch.MaxGroupSize != nil {
		t.MaxGroupSize = *patch.MaxGroupSize
	}
	if patch.Category != nil {
		t.Category = *patch.Category
	}
	if patch.Region != nil {
		t.Region = *patch.Region
	}
	if patch.Difficulty != nil {
		t.Difficulty = *patch.Difficulty
	}
	if patch.Seasons != nil {
		t.Seasons = patch.Seasons
	}
	if patch.GuideID != nil {
		t.GuideID = patch.GuideID
	}
	return t
}

func dedupeSeasons(seasons []domain.Season) []domain.Season {
	out := make([]domain.Season, 0, len(seasons))
	seen := make(map[domain.Season]struct{}, len(seasons))
	for _, season := range seasons {
		season = domain.Season(strings.ToLower(strings.TrimSpace(string(season))))
		if _, ok := seen[season]; ok {
			continue
		}
		seen[season] = struct{}{}
		out = append(out, season)
	}
	return out
}
