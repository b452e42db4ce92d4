package handlers

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/checkfox/go_reachout/internal/config"
	"github.com/checkfox/go_reachout/internal/logger"
	"github.com/google/uuid"
)

// CorrelationMiddleware tags every request with a correlation id, reusing the caller's X-Correlation-ID
func CorrelationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Correlation-ID")
		if id == "" {
			id = uuid.New().String()
		}
		ctx := context.WithValue(r.Context(), logger.CorrelationIDKey, id)
		w.Header().Set("X-Correlation-ID", id)

		start := time.Now()
		next.ServeHTTP(w, r.WithContext(ctx))
		logger.LogSlowOperation(ctx, r.Method+" "+r.URL.Path, time.Since(start))
	})
}

// AuthMiddleware checks the shared secret on backend requests
type AuthMiddleware struct {
	config *config.Config
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(cfg *config.Config) *AuthMiddleware {
	return &AuthMiddleware{
		config: cfg,
	}
}

// Authenticate validates the shared secret header if authentication is enabled
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.config.Auth.Enabled {
			next.ServeHTTP(w, r)
			return
		}
		ctx := r.Context()

		providedSecret := r.Header.Get("X-Shared-Secret")
		if providedSecret == "" {
			logger.Warn(ctx, "Authentication failed: missing X-Shared-Secret header", "path", r.URL.Path)
			respondError(w, ctx, http.StatusUnauthorized, "missing authentication header")
			return
		}

		if subtle.ConstantTimeCompare([]byte(providedSecret), []byte(m.config.Auth.SharedSecret)) != 1 {
			logger.Warn(ctx, "Authentication failed: invalid shared secret", "path", r.URL.Path)
			respondError(w, ctx, http.StatusUnauthorized, "invalid authentication credentials")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RecoveryMiddleware recovers from panics and returns 500 Internal Server Error
type RecoveryMiddleware struct{}

// NewRecoveryMiddleware creates a new RecoveryMiddleware
func NewRecoveryMiddleware() *RecoveryMiddleware {
	return &RecoveryMiddleware{}
}

// Recover wraps a handler with panic recovery
func (m *RecoveryMiddleware) Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				ctx := r.Context()
				logger.Error(ctx, "Panic recovered", "panic", rec, "path", r.URL.Path)
				respondError(w, ctx, http.StatusInternalServerError, "internal server error")
			}
		}()

		next.ServeHTTP(w, r)
	})
}
