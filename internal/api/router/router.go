package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/mibrahim/cutout/internal/api/handler"
)

// RateLimits holds the per-route admission windows. The submission route
// carries two stacked fixed windows (burst and sustained); download has a
// single wider one.
type RateLimits struct {
	BurstLimit      int
	BurstWindow     time.Duration
	SustainedLimit  int
	SustainedWindow time.Duration
	DownloadLimit   int
	DownloadWindow  time.Duration
}

// Setup configures and returns the Gin router with all routes. The Redis
// client backs the rate-limit counters; a nil client disables limiting
// (used by tests).
func Setup(deps *handler.Dependencies, redisClient *redis.Client, limits RateLimits) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "cutout-service",
		})
	})

	taskHandler := handler.NewTaskHandler(deps)

	submitGuards := []gin.HandlerFunc{}
	downloadGuards := []gin.HandlerFunc{}
	if redisClient != nil {
		submitGuards = append(submitGuards,
			RateLimiter(RateLimitConfig{
				RedisClient: redisClient,
				Limit:       limits.BurstLimit,
				Window:      limits.BurstWindow,
				KeyPrefix:   "rl:process:burst:",
			}),
			RateLimiter(RateLimitConfig{
				RedisClient: redisClient,
				Limit:       limits.SustainedLimit,
				Window:      limits.SustainedWindow,
				KeyPrefix:   "rl:process:sustained:",
			}),
		)
		downloadGuards = append(downloadGuards,
			RateLimiter(RateLimitConfig{
				RedisClient: redisClient,
				Limit:       limits.DownloadLimit,
				Window:      limits.DownloadWindow,
				KeyPrefix:   "rl:download:",
			}),
		)
	}

	r.POST("/process", append(submitGuards, taskHandler.CreateTask)...)
	r.GET("/status/:task_id", taskHandler.GetStatus)
	r.GET("/download/:task_id", append(downloadGuards, taskHandler.Download)...)

	return r
}
