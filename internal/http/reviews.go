package httpserver

import (
	"net/http"
	"time"

	"github.com/Clark-Hu/tourbook/internal/domain"
	"github.com/Clark-Hu/tourbook/internal/service"
)

type reviewCreateRequest struct {
	TourID    string `json:"tourId" validate:"required,uuid"`
	BookingID string `json:"bookingId" validate:"omitempty,uuid"`
	Rating    int    `json:"rating" validate:"required,min=1,max=5"`
	Comment   string `json:"comment" validate:"max=2000"`
}

type reviewUpdateRequest struct {
	Rating  *int    `json:"rating" validate:"omitempty,min=1,max=5"`
	Comment *string `json:"comment" validate:"omitempty,max=2000"`
}

type reviewResponse struct {
	ID        string    `json:"id"`
	TourID    string    `json:"tourId"`
	UserID    string    `json:"userId"`
	BookingID string    `json:"bookingId"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type reviewListResponse struct {
	Items []reviewResponse `json:"items"`
}

func (s *Server) handleCreateReview(w http.ResponseWriter, r *http.Request) {
	var req reviewCreateRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	review, err := s.svc.CreateReview(r.Context(), s.principal(r), service.CreateReviewInput{
		TourID:    req.TourID,
		BookingID: req.BookingID,
		Rating:    req.Rating,
		Comment:   req.Comment,
	})
	if err != nil {
		s.respondServiceError(w, r, "http.handleCreateReview", err)
		return
	}
	s.respondJSON(w, r, http.StatusCreated, toReviewResponse(review))
}

func (s *Server) handleUpdateReview(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	var req reviewUpdateRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	review, err := s.svc.UpdateReview(r.Context(), s.principal(r), id, service.UpdateReviewInput{
		Rating:  req.Rating,
		Comment: req.Comment,
	})
	if err != nil {
		s.respondServiceError(w, r, "http.handleUpdateReview", err)
		return
	}
	s.respondJSON(w, r, http.StatusOK, toReviewResponse(review))
}

func (s *Server) handleDeleteReview(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	if err := s.svc.DeleteReview(r.Context(), s.principal(r), id); err != nil {
		s.respondServiceError(w, r, "http.handleDeleteReview", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListTourReviews(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	reviews, err := s.svc.ListTourReviews(r.Context(), id)
	if err != nil {
		s.respondServiceError(w, r, "http.handleListTourReviews", err)
		return
	}

	items := make([]reviewResponse, 0, len(reviews))
	for _, review := range reviews {
		items = append(items, toReviewResponse(review))
	}
	s.respondJSON(w, r, http.StatusOK, reviewListResponse{Items: items})
}

func toReviewResponse(r domain.Review) reviewResponse {
	return reviewResponse{
		ID:        r.ID,
		TourID:    r.TourID,
		UserID:    r.UserID,
		BookingID: r.BookingID,
		Rating:    r.Rating,
		Comment:   r.Comment,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}
