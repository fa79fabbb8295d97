package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"ironlog/backend/internal/auth"
	"ironlog/backend/internal/observability"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Constants for context keys
const (
	ContextUserSubKey   = "userSub"
	ContextUsernameKey  = "username"
	ContextRequestIDKey = "requestID"
)

// AuthMiddleware creates a Gin middleware that verifies the bearer token and
// stores the caller's subject identifier in the request context. Every core
// operation downstream is scoped by that identifier.
func AuthMiddleware(verifier auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortWithError(c, http.StatusUnauthorized, "Authorization header is missing")
			return
		}

		// Expecting "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			abortWithError(c, http.StatusUnauthorized, "Authorization header format must be Bearer {token}")
			return
		}

		claims, err := verifier.Verify(c.Request.Context(), strings.TrimSpace(parts[1]))
		if err != nil {
			if errors.Is(err, auth.ErrMissingToken) {
				abortWithError(c, http.StatusUnauthorized, "No token provided")
				return
			}
			abortWithError(c, http.StatusUnauthorized, "Token verification failed")
			return
		}

		c.Set(ContextUserSubKey, claims.Sub)
		c.Set(ContextUsernameKey, claims.Username)
		c.Next()
	}
}

// RequestIDMiddleware tags every request with a generated id, echoed in the
// response header and attached to log lines.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(ContextRequestIDKey, requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// RequestLoggerMiddleware logs each request with logrus fields and records
// prometheus counters/latency, using the route template to bound label
// cardinality.
func RequestLoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		status := c.Writer.Status()
		route := c.FullPath()
		observability.RecordRequest(c.Request.Method, route, status, elapsed)

		entry := logrus.WithFields(logrus.Fields{
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"status":    status,
			"latency":   elapsed.String(),
			"requestId": c.GetString(ContextRequestIDKey),
		})
		if status >= http.StatusInternalServerError {
			entry.Error("request failed")
		} else {
			entry.Debug("request handled")
		}
	}
}

// Helper to return JSON error response and abort request
func abortWithError(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, gin.H{"error": message})
}

// Helper function to get the caller's subject from context (used by handlers)
func getUserSubFromContext(c *gin.Context) (string, error) {
	subRaw, exists := c.Get(ContextUserSubKey)
	if !exists {
		return "", errors.New("user identifier not found in context")
	}
	sub, ok := subRaw.(string)
	if !ok || sub == "" {
		return "", errors.New("invalid user identifier in context")
	}
	return sub, nil
}
