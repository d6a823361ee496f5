package http

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/screamboard/screamboard/internal/ws"
)

// SetupRoutes configures all application routes and middleware.
func SetupRoutes(router *gin.Engine, env *Env, hub *ws.Hub, limiter *IPRateLimiter, corsOrigin string) {
	router.Use(RequestIDMiddleware())
	router.Use(GinLoggerMiddleware())
	router.Use(gin.Recovery())
	router.Use(MetricsMiddleware())
	router.Use(SecurityHeadersMiddleware())

	if corsOrigin == "" {
		corsOrigin = "*"
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{corsOrigin},
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "X-Request-ID"},
		ExposeHeaders: []string{"Content-Length", "X-Request-ID"},
	}))

	api := router.Group("/api")
	{
		api.POST("/screams", RateLimitMiddleware(limiter), env.CreateScream)
		api.POST("/react", env.React)
		api.GET("/feed/:user_id", env.NextScream)
		api.GET("/top", env.TopScreams)
		api.GET("/stats/:user_id", env.UserStats)
		api.GET("/stress", env.Stress)
		api.GET("/history", env.ListArchivedWeeks)
		api.GET("/history/:week_id", env.GetArchivedWeek)
	}

	admin := RequireAdmin(env.Board, env.Hasher)
	api.POST("/history/:week_id", admin, env.ArchiveWeek)

	adminGroup := api.Group("/admin", admin)
	{
		adminGroup.POST("/screams", env.ListUnmoderated)
		adminGroup.POST("/confirm", env.ConfirmScream)
		adminGroup.POST("/delete", env.DeleteScream)
		adminGroup.POST("/create", env.CreateAdmin)
		adminGroup.POST("/review/start", env.StartReview)
		adminGroup.POST("/review/current", env.CurrentReview)
		adminGroup.POST("/review/step", env.StepReview)
		adminGroup.POST("/review/resolve", env.ResolveReview)
	}

	router.GET("/ws", func(c *gin.Context) {
		ws.ServeWs(hub, c.Writer, c.Request)
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", env.Health)
}
