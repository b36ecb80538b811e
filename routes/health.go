package routes

import (
	"context"
	"net/http"
	"time"

	"customer-support-rag/internal/vectorstore"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

func SetupHealthRoutes(router *gin.Engine, mongoClient *mongo.Client, rdb *redis.Client, store *vectorstore.Store) {
	router.GET("/health", HealthCheck(mongoClient, rdb, store))
	router.GET("/ready", ReadyCheck(store))
}

// HealthCheck pings each dependency and reports 200 only when all of
// them answer. A missing vector collection is reported but does not
// mark the service unhealthy; it is a setup step, not an outage.
func HealthCheck(mongoClient *mongo.Client, rdb *redis.Client, store *vectorstore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		checks := gin.H{}
		healthy := true

		if err := mongoClient.Ping(ctx, nil); err != nil {
			checks["mongodb"] = "unreachable"
			healthy = false
		} else {
			checks["mongodb"] = "ok"
		}

		if err := rdb.Ping(ctx).Err(); err != nil {
			checks["redis"] = "unreachable"
			healthy = false
		} else {
			checks["redis"] = "ok"
		}

		if exists, err := store.Exists(ctx); err != nil {
			checks["milvus"] = "unreachable"
			healthy = false
		} else if !exists {
			checks["milvus"] = "collection missing"
		} else {
			checks["milvus"] = "ok"
		}

		status := http.StatusOK
		overall := "healthy"
		if !healthy {
			status = http.StatusServiceUnavailable
			overall = "degraded"
		}

		c.JSON(status, gin.H{
			"status":    overall,
			"timestamp": time.Now(),
			"checks":    checks,
		})
	}
}

// ReadyCheck reports whether the service can answer questions, which
// requires the vector collection to exist. Load balancers should route
// traffic only to ready instances.
func ReadyCheck(store *vectorstore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		exists, err := store.Exists(ctx)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"ready": false, "reason": "vector store unreachable"})
			return
		}
		if !exists {
			c.JSON(http.StatusServiceUnavailable, gin.H{"ready": false, "reason": "collection not created"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ready": true})
	}
}
