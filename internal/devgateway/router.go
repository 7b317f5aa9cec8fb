package devgateway

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rpsoft/examflow/internal/config"
	"github.com/rpsoft/examflow/internal/middleware"
	"github.com/rpsoft/examflow/internal/response"
)

// SetupRouter configures the dev gateway routes. Paths mirror the
// remote exam API consumed by the gateway client, trailing slashes
// included.
func SetupRouter(handler *Handler, cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for attempt starts (30 per minute per IP).
	startLimiter := middleware.NewRateLimiter(30, time.Minute)

	api := router.Group("/api", middleware.RequireToken(cfg.JWTSecret))
	{
		api.GET("/exams/:id/view/", handler.GetExamView)
		api.GET("/exams/:id/active-attempt/", handler.GetActiveAttempt)
		api.POST("/exams/:id/start/", startLimiter.Middleware(), handler.StartAttempt)
		api.POST("/exam-attempts/:id/answers/", handler.SaveAnswer)
		api.POST("/exam-attempts/:id/answers/batch/", handler.SaveAnswersBatch)
		api.POST("/exam-attempts/:id/grade/", handler.GradeAttempt)
	}

	return router
}
