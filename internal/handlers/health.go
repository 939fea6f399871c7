package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
)

// Pinger checks a backing service
type Pinger interface {
	Ping(ctx context.Context) error
}

type redisPinger struct{ client *redis.Client }

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// RedisPinger adapts a Redis client to Pinger
func RedisPinger(client *redis.Client) Pinger {
	return redisPinger{client: client}
}

// healthCheck reports the database and cache state. Only the database is
// required; a cache outage degrades to uncached responses.
func healthCheck(db, cache Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := gin.H{"status": "healthy", "database": "up", "cache": "disabled"}

		if db != nil {
			if err := db.Ping(ctx); err != nil {
				status = http.StatusServiceUnavailable
				body["status"] = "unhealthy"
				body["database"] = err.Error()
			}
		}
		if cache != nil {
			body["cache"] = "up"
			if err := cache.Ping(ctx); err != nil {
				body["cache"] = err.Error()
				if status == http.StatusOK {
					body["status"] = "degraded"
				}
			}
		}
		c.JSON(status, body)
	}
}
