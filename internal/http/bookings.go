package httpserver

import (
	"net/http"
	"time"

	"github.com/Clark-Hu/tourbook/internal/domain"
	"github.com/Clark-Hu/tourbook/internal/service"
)

type bookingCreateRequest struct {
	TourID       string `json:"tourId" validate:"required,uuid"`
	StartDate    string `json:"startDate" validate:"required,datetime=2006-01-02"`
	Participants int    `json:"participants" validate:"required,min=1"`
}

type bookingCancelRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type bookingStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=confirmed cancelled completed"`
	Reason string `json:"reason" validate:"max=500"`
}

type bookingResponse struct {
	ID                 string    `json:"id"`
	TourID             string    `json:"tourId"`
	UserID             string    `json:"userId"`
	StartDate          string    `json:"startDate"`
	EndDate            string    `json:"endDate"`
	Participants       int       `json:"participants"`
	TotalPrice         int64     `json:"totalPrice"`
	Status             string    `json:"status"`
	CancellationReason *string   `json:"cancellationReason,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

type bookingListResponse struct {
	Items []bookingResponse `json:"items"`
}

func (s *Server) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var req bookingCreateRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	start, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		s.respondError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "startDate must follow YYYY-MM-DD format")
		return
	}

	booking, err := s.svc.CreateBooking(r.Context(), s.principal(r), service.CreateBookingInput{
		TourID:       req.TourID,
		StartDate:    start,
		Participants: req.Participants,
	})
	if err != nil {
		s.respondServiceError(w, r, "http.handleCreateBooking", err)
		return
	}

	w.Header().Set("Location", "/bookings/"+booking.ID)
	s.respondJSON(w, r, http.StatusCreated, toBookingResponse(booking))
}

func (s *Server) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	booking, err := s.svc.GetBooking(r.Context(), s.principal(r), id)
	if err != nil {
		s.respondServiceError(w, r, "http.handleGetBooking", err)
		return
	}
	s.respondJSON(w, r, http.StatusOK, toBookingResponse(booking))
}

func (s *Server) handleListMyBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := s.svc.ListMyBookings(r.Context(), s.principal(r))
	if err != nil {
		s.respondServiceError(w, r, "http.handleListMyBookings", err)
		return
	}
	s.respondJSON(w, r, http.StatusOK, bookingListResponse{Items: toBookingResponses(bookings)})
}

func (s *Server) handleListTourBookings(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	bookings, err := s.svc.ListTourBookings(r.Context(), s.principal(r), id)
	if err != nil {
		s.respondServiceError(w, r, "http.handleListTourBookings", err)
		return
	}
	s.respondJSON(w, r, http.StatusOK, bookingListResponse{Items: toBookingResponses(bookings)})
}

func (s *Server) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	var req bookingCancelRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	booking, err := s.svc.CancelBooking(r.Context(), s.principal(r), id, req.Reason)
	if err != nil {
		s.respondServiceError(w, r, "http.handleCancelBooking", err)
		return
	}
	s.respondJSON(w, r, http.StatusOK, toBookingResponse(booking))
}

func (s *Server) handleChangeBookingStatus(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	var req bookingStatusRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	target, err := domain.ParseBookingStatus(req.Status)
	if err != nil {
		s.respondServiceError(w, r, "http.handleChangeBookingStatus", err)
		return
	}

	booking, err := s.svc.ChangeBookingStatus(r.Context(), s.principal(r), id, target, req.Reason)
	if err != nil {
		s.respondServiceError(w, r, "http.handleChangeBookingStatus", err)
		return
	}
	s.respondJSON(w, r, http.StatusOK, toBookingResponse(booking))
}

func toBookingResponse(b domain.Booking) bookingResponse {
	return bookingResponse{
		ID:                 b.ID,
		TourID:             b.TourID,
		UserID:             b.UserID,
		StartDate:          b.StartDate.Format(dateLayout),
		EndDate:            b.EndDate.Format(dateLayout),
		Participants:       b.Participants,
		TotalPrice:         b.TotalPrice,
		Status:             string(b.Status),
		CancellationReason: b.CancellationReason,
		CreatedAt:          b.CreatedAt,
		UpdatedAt:          b.UpdatedAt,
	}
}

func toBookingResponses(bookings []domain.Booking) []bookingResponse {
	out := make([]bookingResponse, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, toBookingResponse(b))
	}
	return out
}
