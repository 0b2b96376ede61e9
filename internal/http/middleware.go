package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v4"

	"github.com/Clark-Hu/tourbook/internal/domain"
)

type principalKey struct{}

// requestLogger logs one entry per request once the handler has finished.
func requestLogger(log *slog.Logger) func(next http.Handler) http.Handler {
	log = log.With(slog.String("component", "middleware/logger"))

	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			entry := log.With(
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			started := time.Now()
			defer func() {
				entry.Info("request completed",
					slog.Int("status", ww.Status()),
					slog.Int("bytes", ww.BytesWritten()),
					slog.String("duration", time.Since(started).String()),
				)
			}()

			next.ServeHTTP(ww, r)
		}
		return http.HandlerFunc(fn)
	}
}

// tokenClaims are the bearer token claims the service reads. Tokens are issued
// elsewhere; only verification happens here.
type tokenClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// authenticate resolves the principal from an HS256 bearer token. Requests
// without a token continue anonymously; a malformed or invalid token is
// rejected.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}

		p, err := parseBearer(header, []byte(s.cfg.Auth.JWTSecret))
		if err != nil {
			s.logger.Debug("rejecting bearer token", slog.String("reason", err.Error()))
			s.respondError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid authentication information")
			return
		}
		next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), p)))
	})
}

// requirePrincipal rejects anonymous requests.
func (s *Server) requirePrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := principalFrom(r.Context()); !ok {
			s.respondError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid authentication information")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func parseBearer(header string, secret []byte) (domain.Principal, error) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return domain.Principal{}, errors.New("authorization header is not a bearer token")
	}
	raw := strings.TrimSpace(strings.TrimPrefix(header, prefix))

	var claims tokenClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return domain.Principal{}, err
	}
	if !token.Valid {
		return domain.Principal{}, errors.New("token is not valid")
	}

	role := domain.Role(strings.ToLower(claims.Role))
	if claims.Subject == "" || !role.Valid() {
		return domain.Principal{}, errors.New("token lacks a subject or known role")
	}
	return domain.Principal{ID: claims.Subject, Role: role}, nil
}

func withPrincipal(ctx context.Context, p domain.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func principalFrom(ctx context.Context) (domain.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(domain.Principal)
	return p, ok
}
