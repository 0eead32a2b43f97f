package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/VCalixtoR/gestaomt-back/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	RequestIDKey    = "request_id"
	RequestIDHeader = "X-Request-ID"
)

// RequestID propagates the caller's X-Request-ID or generates one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(RequestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// ErrorHandler renders the last error a handler attached with c.Error.
// Classified errors keep their status and message; anything else is a 500
// whose details only reach the log.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		status := apierror.Status(err)
		event := log.Warn()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		}
		event.
			Str("request_id", c.GetString(RequestIDKey)).
			Str("path", c.FullPath()).
			Str("method", c.Request.Method).
			Int("status", status).
			Err(err).
			Msg("request failed")

		c.AbortWithStatusJSON(status, apierror.New(apierror.Message(err)))
	}
}

// Recovery handles panics and converts them into 500 responses.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Str("request_id", c.GetString(RequestIDKey)).
					Interface("panic", r).
					Msg("panic recovered")
				c.AbortWithStatusJSON(http.StatusInternalServerError, apierror.New("Error interno del servidor"))
			}
		}()
		c.Next()
	}
}

// Logger logs each request with method, path, status, latency, and request_id.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info().
			Str("request_id", c.GetString(RequestIDKey)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

// Pinger is satisfied by the supervised database.
type Pinger interface {
	EnsureAlive(ctx context.Context) error
}

// RequireDatabase answers 503 while the data store cannot be reached.
func RequireDatabase(db Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.EnsureAlive(c.Request.Context()); err != nil {
			log.Error().Err(err).Str("request_id", c.GetString(RequestIDKey)).Msg("database unavailable")
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, apierror.New("Base de datos no disponible"))
			return
		}
		c.Next()
	}
}
