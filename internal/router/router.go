package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/mocksh/mocksh-backend/internal/config"
	"github.com/mocksh/mocksh-backend/internal/handler"
	"github.com/mocksh/mocksh-backend/internal/middleware"
	"github.com/mocksh/mocksh-backend/internal/response"
	"github.com/mocksh/mocksh-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth  *handler.AuthHandler
	Exam  *handler.ExamHandler
	Stats *handler.StatsHandler
	WS    *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
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

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for auth routes (30 requests per minute per IP).
	authLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/signup", handlers.Auth.Signup)
		auth.POST("/login", handlers.Auth.Login)

		// Authenticated profile routes
		auth.POST("/logout", middleware.RequireUserJWT(authService), handlers.Auth.Logout)
		auth.GET("/me", middleware.RequireUserJWT(authService), handlers.Auth.Me)
	}

	// ─── 2. Exam Group (JWT + Single Device) ───────────────────────────
	examAPI := router.Group("/api/v1/exam")
	examAPI.Use(
		middleware.RequireUserJWT(authService),
		middleware.CheckSingleDeviceSession(authService),
	)
	{
		examAPI.GET("/info", handlers.Exam.Info)
		examAPI.POST("/start", handlers.Exam.Start)
		examAPI.POST("/restart", handlers.Exam.Restart)
		examAPI.GET("/session", handlers.Exam.Session)
		examAPI.POST("/answer", handlers.Exam.Answer)
		examAPI.POST("/navigate", handlers.Exam.Navigate)
		examAPI.POST("/submit", handlers.Exam.Submit)
		examAPI.GET("/review", handlers.Exam.Review)
	}

	// ─── 3. Profile & Leaderboard Group (JWT + Single Device) ──────────
	profileAPI := router.Group("/api/v1/profile")
	profileAPI.Use(
		middleware.RequireUserJWT(authService),
		middleware.CheckSingleDeviceSession(authService),
	)
	{
		profileAPI.GET("/stats", handlers.Stats.Stats)
		profileAPI.GET("/history", handlers.Stats.History)
		profileAPI.GET("/preferences", handlers.Stats.GetPreferences)
		profileAPI.PUT("/preferences", handlers.Stats.SetPreferences)
	}

	router.GET("/api/v1/leaderboard",
		middleware.RequireUserJWT(authService),
		middleware.CheckSingleDeviceSession(authService),
		handlers.Stats.Leaderboard,
	)

	// ─── 4. WebSocket Group (WS Auth via query token) ──────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireUserWSAuth(authService))
	{
		ws.GET("/exam/stream", handlers.WS.ExamStream)
	}

	return router
}
