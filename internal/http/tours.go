package httpserver

import (
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Clark-Hu/tourbook/internal/domain"
	"github.com/Clark-Hu/tourbook/internal/service"
)

const (
	dateLayout       = "2006-01-02"
	defaultListLimit = 20
	maxListLimit     = 100
)

type tourCreateRequest struct {
	GuideID      *string  `json:"guideId" validate:"omitempty,uuid"`
	Title        string   `json:"title" validate:"required,max=200"`
	Description  string   `json:"description" validate:"max=5000"`
	Price        int64    `json:"price" validate:"required,gt=0"`
	DurationDays int      `json:"durationDays" validate:"required,min=1"`
	MaxGroupSize int      `json:"maxGroupSize" validate:"required,min=1"`
	Category     string   `json:"category" validate:"required"`
	Region       string   `json:"region" validate:"required"`
	Difficulty   string   `json:"difficulty" validate:"required,oneof=easy moderate hard"`
	Seasons      []string `json:"seasons" validate:"dive,oneof=spring summer autumn winter"`
}

type tourUpdateRequest struct {
	GuideID      *string  `json:"guideId" validate:"omitempty,uuid"`
	Title        *string  `json:"title" validate:"omitempty,max=200"`
	Description  *string  `json:"description" validate:"omitempty,max=5000"`
	Price        *int64   `json:"price" validate:"omitempty,gt=0"`
	DurationDays *int     `json:"durationDays" validate:"omitempty,min=1"`
	MaxGroupSize *int     `json:"maxGroupSize" validate:"omitempty,min=1"`
	Category     *string  `json:"category"`
	Region       *string  `json:"region"`
	Difficulty   *string  `json:"difficulty" validate:"omitempty,oneof=easy moderate hard"`
	Seasons      []string `json:"seasons" validate:"omitempty,dive,oneof=spring summer autumn winter"`
}

type tourResponse struct {
	ID            string    `json:"id"`
	GuideID       *string   `json:"guideId,omitempty"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	Price         int64     `json:"price"`
	DurationDays  int       `json:"durationDays"`
	MaxGroupSize  int       `json:"maxGroupSize"`
	Category      string    `json:"category"`
	Region        string    `json:"region"`
	Difficulty    string    `json:"difficulty"`
	Seasons       []string  `json:"seasons"`
	AverageRating float64   `json:"averageRating"`
	RatingCount   int       `json:"ratingCount"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type tourListResponse struct {
	Items []tourResponse `json:"items"`
}

func (s *Server) handleListTours(w http.ResponseWriter, r *http.Request) {
	q, err := buildTourQuery(r.URL.Query())
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	tours, err := s.svc.ListTours(r.Context(), q)
	if err != nil {
		s.respondServiceError(w, r, "http.handleListTours", err)
		return
	}
	s.respondJSON(w, r, http.StatusOK, tourListResponse{Items: toTourResponses(tours)})
}

// buildTourQuery parses listing filters. Tours are active-only unless the
// caller passes active=false explicitly.
func buildTourQuery(query url.Values) (domain.TourQuery, error) {
	q := domain.TourQuery{ActiveOnly: true, Limit: defaultListLimit}

	q.Category = strings.TrimSpace(query.Get("category"))
	q.Region = strings.TrimSpace(query.Get("region"))
	if val := strings.TrimSpace(query.Get("difficulty")); val != "" {
		d := domain.Difficulty(strings.ToLower(val))
		if !d.Valid() {
			return q, fmt.Errorf("invalid difficulty value")
		}
		q.Difficulty = d
	}
	if val := strings.TrimSpace(query.Get("season")); val != "" {
		season, err := domain.ParseSeason(strings.ToLower(val))
		if err != nil {
			return q, fmt.Errorf("invalid season value")
		}
		q.Season = season
	}
	if val := strings.TrimSpace(query.Get("active")); val != "" {
		active, err := strconv.ParseBool(val)
		if err != nil {
			return q, fmt.Errorf("invalid active value")
		}
		q.ActiveOnly = active
	}
	if val := strings.TrimSpace(query.Get("sort")); val != "" {
		switch val {
		case "rating":
			q.ByRating = true
		case "newest":
		default:
			return q, fmt.Errorf("invalid sort value")
		}
	}
	limit, err := parseLimit(query, defaultListLimit, maxListLimit)
	if err != nil {
		return q, err
	}
	q.Limit = limit
	return q, nil
}

// parseLimit reads ?limit, falling back to def and capping at max.
func parseLimit(query url.Values, def, max int) (int, error) {
	val := strings.TrimSpace(query.Get("limit"))
	if val == "" {
		return def, nil
	}
	limit, err := strconv.Atoi(val)
	if err != nil || limit < 1 {
		return 0, fmt.Errorf("invalid limit value")
	}
	if limit > max {
		limit = max
	}
	return limit, nil
}

func (s *Server) handleCreateTour(w http.ResponseWriter, r *http.Request) {
	var req tourCreateRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	seasons := make([]domain.Season, 0, len(req.Seasons))
	for _, season := range req.Seasons {
		seasons = append(seasons, domain.Season(season))
	}

	tour, err := s.svc.CreateTour(r.Context(), s.principal(r), service.CreateTourInput{
		GuideID:      req.GuideID,
		Title:        req.Title,
		Description:  req.Description,
		Price:        req.Price,
		DurationDays: req.DurationDays,
		MaxGroupSize: req.MaxGroupSize,
		Category:     req.Category,
		Region:       req.Region,
		Difficulty:   domain.Difficulty(req.Difficulty),
		Seasons:      seasons,
	})
	if err != nil {
		s.respondServiceError(w, r, "http.handleCreateTour", err)
		return
	}

	w.Header().Set("Location", "/tours/"+tour.ID)
	s.respondJSON(w, r, http.StatusCreated, toTourResponse(tour))
}

func (s *Server) handleGetTour(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	tour, err := s.svc.GetTour(r.Context(), id)
	if err != nil {
		s.respondServiceError(w, r, "http.handleGetTour", err)
		return
	}
	s.respondJSON(w, r, http.StatusOK, toTourResponse(tour))
}

func (s *Server) handleUpdateTour(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	var req tourUpdateRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	patch := domain.TourPatch{
		GuideID:      req.GuideID,
		Title:        req.Title,
		Description:  req.Description,
		Price:        req.Price,
		DurationDays: req.DurationDays,
		MaxGroupSize: req.MaxGroupSize,
		Category:     req.Category,
		Region:       req.Region,
	}
	if req.Difficulty != nil {
		d := domain.Difficulty(*req.Difficulty)
		patch.Difficulty = &d
	}
	if req.Seasons != nil {
		patch.Seasons = make([]domain.Season, 0, len(req.Seasons))
		for _, season := range req.Seasons {
			patch.Seasons = append(patch.Seasons, domain.Season(season))
		}
	}

	tour, err := s.svc.UpdateTour(r.Context(), s.principal(r), id, patch)
	if err != nil {
		s.respondServiceError(w, r, "http.handleUpdateTour", err)
		return
	}
	s.respondJSON(w, r, http.StatusOK, toTourResponse(tour))
}

func (s *Server) handleDeactivateTour(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	tour, err := s.svc.DeactivateTour(r.Context(), s.principal(r), id)
	if err != nil {
		s.respondServiceError(w, r, "http.handleDeactivateTour", err)
		return
	}
	s.respondJSON(w, r, http.StatusOK, toTourResponse(tour))
}

func toTourResponse(t domain.Tour) tourResponse {
	seasons := make([]string, 0, len(t.Seasons))
	for _, season := range t.Seasons {
		seasons = append(seasons, string(season))
	}
	return tourResponse{
		ID:            t.ID,
		GuideID:       t.GuideID,
		Title:         t.Title,
		Description:   t.Description,
		Price:         t.Price,
		DurationDays:  t.DurationDays,
		MaxGroupSize:  t.MaxGroupSize,
		Category:      t.Category,
		Region:        t.Region,
		Difficulty:    string(t.Difficulty),
		Seasons:       seasons,
		AverageRating: roundToOneDecimal(t.Rating.AverageRating),
		RatingCount:   t.Rating.RatingCount,
		Active:        t.Active,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

func toTourResponses(tours []domain.Tour) []tourResponse {
	out := make([]tourResponse, 0, len(tours))
	for _, t := range tours {
		out = append(out, toTourResponse(t))
	}
	return out
}

func roundToOneDecimal(value float64) float64 {
	return math.Round(value*10) / 10.0
}
