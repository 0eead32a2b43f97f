package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/VCalixtoR/gestaomt-back/internal/infra"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// DBPinger is the slice of infra.Database the health check needs.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// Health returns a JSON health check response.
// Checks DB and, when configured, Redis; never exposes credentials or internals.
// An open SMTP breaker is reported but does not fail the check.
func Health(db DBPinger, rdb *redis.Client, smtpCB *infra.CircuitBreaker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		dbStatus := "connected"
		if db.Ping(ctx) != nil {
			dbStatus = "error"
		}

		redisStatus := "disabled"
		if rdb != nil {
			redisStatus = "connected"
			if rdb.Ping(ctx).Err() != nil {
				redisStatus = "error"
			}
		}

		status := http.StatusOK
		if dbStatus != "connected" || redisStatus == "error" {
			status = http.StatusServiceUnavailable
		}

		smtpStatus := "unknown"
		if smtpCB != nil {
			smtpStatus = smtpCB.State().String()
		}

		c.JSON(status, gin.H{
			"ok":    status == http.StatusOK,
			"db":    dbStatus,
			"redis": redisStatus,
			"smtp":  smtpStatus,
		})
	}
}
