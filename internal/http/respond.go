package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/Clark-Hu/tourbook/internal/domain"
	"github.com/Clark-Hu/tourbook/internal/lib/logger/sl"
)

const (
	maxRequestBody = 1 << 20 // 1 MiB
	retryAfterSecs = "1"
)

var (
	errBadID       = errors.New("id must be a UUID")
	errInvalidAsOf = errors.New("asOf must follow YYYY-MM-DD format")
)

type errorResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (s *Server) respondJSON(w http.ResponseWriter, r *http.Request, status int, payload interface{}) {
	render.Status(r, status)
	render.JSON(w, r, payload)
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	s.respondJSON(w, r, status, errorResponse{Code: code, Message: message})
}

// respondServiceError maps the domain error taxonomy onto HTTP statuses.
func (s *Server) respondServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		s.respondError(w, r, http.StatusNotFound, "NOT_FOUND", "Resource not found")
	case errors.Is(err, domain.ErrForbidden):
		s.respondError(w, r, http.StatusForbidden, "FORBIDDEN", "Not permitted")
	case errors.Is(err, domain.ErrSlotConflict):
		s.respondError(w, r, http.StatusConflict, "SLOT_CONFLICT", "This tour date is already booked")
	case errors.Is(err, domain.ErrDuplicateReview):
		s.respondError(w, r, http.StatusConflict, "DUPLICATE_REVIEW", "This booking has already been reviewed")
	case errors.Is(err, domain.ErrInvalidTransition):
		s.respondError(w, r, http.StatusConflict, "INVALID_TRANSITION", trimSentinel(err, domain.ErrInvalidTransition))
	case errors.Is(err, domain.ErrValidation):
		s.respondError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", trimSentinel(err, domain.ErrValidation))
	case errors.Is(err, domain.ErrUnavailable):
		s.logger.Warn("store unavailable", slog.String("op", op), sl.Err(err))
		w.Header().Set("Retry-After", retryAfterSecs)
		s.respondError(w, r, http.StatusServiceUnavailable, "UNAVAILABLE", "Service temporarily unavailable, retry later")
	default:
		s.logger.Error("request failed", slog.String("op", op), sl.Err(err))
		s.respondError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}

// trimSentinel returns the detail that follows the sentinel in a wrapped
// error chain such as "op: validation failed: rating must be 1..5".
func trimSentinel(err, sentinel error) string {
	msg := err.Error()
	marker := sentinel.Error() + ": "
	if i := strings.LastIndex(msg, marker); i >= 0 {
		return msg[i+len(marker):]
	}
	return sentinel.Error()
}

// decodeAndValidate reads a JSON body into dst and runs struct validation.
// It writes the error response itself and reports whether decoding succeeded.
func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		s.respondDecodeError(w, r, err)
		return false
	}

	if err := s.validate.Struct(dst); err != nil {
		var validateErr validator.ValidationErrors
		if errors.As(err, &validateErr) {
			s.respondJSON(w, r, http.StatusUnprocessableEntity, errorResponse{
				Code:    "VALIDATION_ERROR",
				Message: "Request validation failed",
				Details: validationDetails(validateErr),
			})
			return false
		}
		s.respondError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Unable to validate request body")
		return false
	}
	return true
}

func (s *Server) respondDecodeError(w http.ResponseWriter, r *http.Request, err error) {
	var syntaxError *json.SyntaxError
	var typeError *json.UnmarshalTypeError
	var maxBytesError *http.MaxBytesError
	switch {
	case errors.As(err, &syntaxError), errors.Is(err, io.ErrUnexpectedEOF):
		s.respondError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Malformed JSON payload")
	case errors.As(err, &typeError):
		s.respondError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", fmt.Sprintf("Invalid value for field %s", typeError.Field))
	case errors.As(err, &maxBytesError):
		s.respondError(w, r, http.StatusRequestEntityTooLarge, "BAD_REQUEST", "Request body too large")
	case errors.Is(err, io.EOF):
		s.respondError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Request body cannot be empty")
	default:
		s.respondError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Unable to parse request body")
	}
}

func validationDetails(errs validator.ValidationErrors) map[string]string {
	out := make(map[string]string, len(errs))
	for _, fe := range errs {
		switch fe.Tag() {
		case "required":
			out[fe.Field()] = "is required"
		case "min", "gte":
			out[fe.Field()] = "must be at least " + fe.Param()
		case "max", "lte":
			out[fe.Field()] = "must be at most " + fe.Param()
		case "oneof":
			out[fe.Field()] = "must be one of " + fe.Param()
		case "uuid":
			out[fe.Field()] = "must be a UUID"
		case "datetime":
			out[fe.Field()] = "must follow " + fe.Param()
		default:
			out[fe.Field()] = "is not valid"
		}
	}
	return out
}

// idParam returns the {id} path parameter once it parses as a UUID.
func idParam(r *http.Request) (string, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "id"))
	if _, err := uuid.Parse(raw); err != nil {
		return "", errBadID
	}
	return raw, nil
}

func (s *Server) principal(r *http.Request) domain.Principal {
	p, _ := principalFrom(r.Context())
	return p
}
