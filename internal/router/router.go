package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/tryout-backend/internal/config"
	"github.com/stemsi/tryout-backend/internal/handler"
	"github.com/stemsi/tryout-backend/internal/metrics"
	"github.com/stemsi/tryout-backend/internal/middleware"
	"github.com/stemsi/tryout-backend/internal/response"
	"github.com/stemsi/tryout-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth    *handler.AuthHandler
	Test    *handler.TestHandler
	Attempt *handler.AttemptHandler
	WS      *handler.WSHandler
	System  *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	m *metrics.Metrics,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// Restrict to AllowedOrigins when set; otherwise allow all so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.Metrics(m))
	router.Use(middleware.Brotli())

	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/ready", handlers.System.Ready)
	router.GET("/metrics", m.Handler())

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	authed := []gin.HandlerFunc{
		middleware.RequireJWT(authService),
		middleware.CheckSingleDeviceSession(authService),
	}

	// ─── 1. Auth Group (Rate Limited) ──────────────────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(limiter.Middleware())
	{
		auth.POST("/login", handlers.Auth.Login)
		auth.POST("/logout", append(authed, handlers.Auth.Logout)...)
		auth.GET("/me", append(authed, handlers.Auth.Me)...)
	}

	// ─── 2. Shared Read Group (Any Role) ───────────────────────────────
	tests := router.Group("/api/v1/tests")
	tests.Use(limiter.Middleware())
	tests.Use(authed...)
	tests.Use(middleware.NoStore())
	{
		tests.GET("", handlers.Test.ListTests)
		tests.GET("/:test_id", handlers.Test.GetTest)
		tests.GET("/:test_id/leaderboard", middleware.CacheControl(5), handlers.Test.GetLeaderboard)
	}

	// ─── 3. Student Group (JWT + Single Device) ─────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(limiter.Middleware())
	studentAPI.Use(authed...)
	studentAPI.Use(middleware.RequireStudent(), middleware.NoStore())
	{
		studentAPI.GET("/tests/:test_id/sections/:section/paper", handlers.Test.GetPaper)
		studentAPI.POST("/tests/:test_id/attempts", handlers.Attempt.Start)

		studentAPI.GET("/attempts", handlers.Attempt.ListMine)
		studentAPI.GET("/attempts/:attempt_id", handlers.Attempt.GetAttempt)
		studentAPI.GET("/attempts/:attempt_id/state", handlers.Attempt.GetState)
		studentAPI.GET("/attempts/:attempt_id/result", handlers.Attempt.GetResult)
		studentAPI.PUT("/attempts/:attempt_id/answers", handlers.Attempt.Autosave)
		studentAPI.POST("/attempts/:attempt_id/sections/:section/start", handlers.Attempt.StartSection)
		studentAPI.POST("/attempts/:attempt_id/sections/:section/submit", handlers.Attempt.SubmitSection)
	}

	// ─── 4. WebSocket Group (token in query) ───────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(authed...)
	ws.Use(middleware.RequireStudent())
	{
		ws.GET("/student/attempts/:attempt_id/stream", handlers.WS.AttemptStream)
	}

	// ─── 5. Admin Group (JWT + Role) ───────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(authed...)
	adminAPI.Use(middleware.RequireAdmin())
	{
		adminAPI.POST("/questions", handlers.Test.CreateQuestions)
		adminAPI.POST("/tests", handlers.Test.CreateTest)
		adminAPI.PATCH("/tests/:test_id/active", handlers.Test.SetActive)
		adminAPI.GET("/system/metrics", handlers.System.SystemMetricsSSE)
	}

	return router
}
