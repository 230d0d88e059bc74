package httputil

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bagtrack/bagtrack-backend/pkg/config"
	"github.com/bagtrack/bagtrack-backend/pkg/errors"
	"github.com/bagtrack/bagtrack-backend/pkg/logger"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type contextKey string

const (
	RequestIDKey  contextKey = "request_id"
	OperatorIDKey contextKey = "operator_id"
	TerminalIDKey contextKey = "terminal_id"
)

// Headers carrying caller identity
const (
	HeaderOperatorID = "X-Operator-ID"
	HeaderTerminalID = "X-Terminal-ID"
)

// RequestID middleware adds a request ID to each request
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Logger middleware logs HTTP requests
func Logger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap response writer to capture status code
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			log.WithRequestID(GetRequestID(r.Context())).Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", wrapped.statusCode).
				Dur("duration", time.Since(start)).
				Str("operator_id", GetOperatorID(r.Context())).
				Str("terminal_id", GetTerminalID(r.Context())).
				Str("remote_addr", r.RemoteAddr).
				Msg("HTTP request")
		})
	}
}

// Recoverer middleware recovers from panics
func Recoverer(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.Error().
						Interface("panic", err).
						Str("path", r.URL.Path).
						Msg("panic recovered")

					Error(w, errors.Internal("an unexpected error occurred"))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// GetOperatorID retrieves the authenticated operator from context
func GetOperatorID(ctx context.Context) string {
	if id, ok := ctx.Value(OperatorIDKey).(string); ok {
		return id
	}
	return ""
}

// GetTerminalID retrieves the scanning terminal from context
func GetTerminalID(ctx context.Context) string {
	if id, ok := ctx.Value(TerminalIDKey).(string); ok {
		return id
	}
	return ""
}

// WithOperatorContext adds operator and terminal identity to the context
func WithOperatorContext(ctx context.Context, operatorID, terminalID string) context.Context {
	ctx = context.WithValue(ctx, OperatorIDKey, operatorID)
	ctx = context.WithValue(ctx, TerminalIDKey, terminalID)
	return ctx
}

// OperatorMiddleware establishes who is calling and from which terminal.
//
// With a JWT secret configured the operator is the "sub" claim of an HS256
// bearer token. Without one, the operator is taken from X-Operator-ID as set
// by an upstream gateway. The terminal comes from X-Terminal-ID and falls back
// to the operator, so a single-device operator still gets its own pending
// confirmation slot.
//
// publicPaths (health checks) are served without identity. They match exactly.
func OperatorMiddleware(cfg config.AuthConfig, publicPaths ...string) func(http.Handler) http.Handler {
	public := make(map[string]bool, len(publicPaths))
	for _, p := range publicPaths {
		public[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if public[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			var operatorID string
			if cfg.JWTSecret != "" {
				id, err := operatorFromToken(r.Header.Get("Authorization"), cfg)
				if err != nil {
					Error(w, err)
					return
				}
				operatorID = id
			} else {
				operatorID = strings.TrimSpace(r.Header.Get(HeaderOperatorID))
			}

			if operatorID == "" {
				Error(w, errors.Unauthorized("missing operator identity"))
				return
			}

			terminalID := strings.TrimSpace(r.Header.Get(HeaderTerminalID))
			if terminalID == "" {
				terminalID = operatorID
			}

			ctx := WithOperatorContext(r.Context(), operatorID, terminalID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func operatorFromToken(authHeader string, cfg config.AuthConfig) (string, error) {
	if authHeader == "" {
		return "", errors.Unauthorized("missing authorization header")
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", errors.Unauthorized("invalid authorization header format")
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(cfg.JWTSecret), nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", errors.Unauthorized("token expired")
		}
		return "", errors.Unauthorized("invalid token")
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", errors.Unauthorized("token has no subject")
	}
	return sub, nil
}
