package httpserver

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Clark-Hu/tourbook/internal/service"
)

type personalizedResponse struct {
	Items        []tourResponse `json:"items"`
	Categories   []string       `json:"categories"`
	Regions      []string       `json:"regions"`
	Difficulties []string       `json:"difficulties"`
	Explanation  string         `json:"explanation,omitempty"`
}

type overviewResponse struct {
	Season       string               `json:"season"`
	Popular      []tourResponse       `json:"popular"`
	Seasonal     []tourResponse       `json:"seasonal"`
	Personalized personalizedResponse `json:"personalized"`
}

// recommendationParams reads ?limit and ?asOf. Limit clamping happens in the
// service; here it is only parsed.
func recommendationParams(query url.Values) (int, time.Time, error) {
	limit, err := parseLimit(query, 0, 1<<16)
	if err != nil {
		return 0, time.Time{}, err
	}
	var asOf time.Time
	if val := strings.TrimSpace(query.Get("asOf")); val != "" {
		asOf, err = time.Parse(dateLayout, val)
		if err != nil {
			return 0, time.Time{}, errInvalidAsOf
		}
	}
	return limit, asOf, nil
}

func (s *Server) handlePopular(w http.ResponseWriter, r *http.Request) {
	limit, _, err := recommendationParams(r.URL.Query())
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	tours, err := s.svc.Popular(r.Context(), limit)
	if err != nil {
		s.respondServiceError(w, r, "http.handlePopular", err)
		return
	}
	s.respondJSON(w, r, http.StatusOK, tourListResponse{Items: toTourResponses(tours)})
}

func (s *Server) handleSeasonal(w http.ResponseWriter, r *http.Request) {
	limit, asOf, err := recommendationParams(r.URL.Query())
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	tours, err := s.svc.Seasonal(r.Context(), limit, asOf)
	if err != nil {
		s.respondServiceError(w, r, "http.handleSeasonal", err)
		return
	}
	s.respondJSON(w, r, http.StatusOK, tourListResponse{Items: toTourResponses(tours)})
}

func (s *Server) handlePersonalized(w http.ResponseWriter, r *http.Request) {
	limit, _, err := recommendationParams(r.URL.Query())
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	result, err := s.svc.Personalized(r.Context(), s.principal(r).ID, limit)
	if err != nil {
		s.respondServiceError(w, r, "http.handlePersonalized", err)
		return
	}
	s.respondJSON(w, r, http.StatusOK, toPersonalizedResponse(result))
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	limit, asOf, err := recommendationParams(r.URL.Query())
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	overview, err := s.svc.Overview(r.Context(), s.principal(r).ID, limit, asOf)
	if err != nil {
		s.respondServiceError(w, r, "http.handleOverview", err)
		return
	}
	s.respondJSON(w, r, http.StatusOK, overviewResponse{
		Season:       string(overview.Season),
		Popular:      toTourResponses(overview.Popular),
		Seasonal:     toTourResponses(overview.Seasonal),
		Personalized: toPersonalizedResponse(overview.Personalized),
	})
}

func toPersonalizedResponse(p service.Personalized) personalizedResponse {
	difficulties := make([]string, 0, len(p.Facets.Difficulties))
	for _, d := range p.Facets.Difficulties {
		difficulties = append(difficulties, string(d))
	}
	return personalizedResponse{
		Items:        toTourResponses(p.Tours),
		Categories:   nonNil(p.Facets.Categories),
		Regions:      nonNil(p.Facets.Regions),
		Difficulties: difficulties,
		Explanation:  p.Explanation,
	}
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
