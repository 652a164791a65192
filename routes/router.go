package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/halaqa/passport/config"
	"github.com/halaqa/passport/controllers"
	"github.com/halaqa/passport/middleware"
	"github.com/halaqa/passport/utils"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(db *gorm.DB) *gin.Engine {
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Replace default console logger with file-based zap logger
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, false))
	} else {
		// fallback to default recovery if logger failed to init
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	checkInController := controllers.NewCheckInController(db)
	participantController := controllers.NewParticipantController(db)
	statsController := controllers.NewStatsController(db)
	rewardsController := controllers.NewRewardsController(db)
	avatarController := controllers.NewAvatarController(db)
	seriesController := controllers.NewSeriesController(db)

	api := r.Group("/api/v1")

	// The check-in callable is public: possession of a live session token
	// inside its window is the credential. Rate limited per client.
	checkin := api.Group("/checkin")
	checkin.Use(middleware.RateLimitMiddleware())
	checkin.POST("", checkInController.CheckIn)
	checkin.POST("/scan", checkInController.ScanCheckIn)

	// Registration issues the device token used by everything under /me.
	api.POST("/participants", middleware.RateLimitMiddleware(), participantController.Register)

	// Public series metadata
	api.GET("/series", seriesController.ListActiveSeries)

	me := api.Group("/me")
	me.Use(middleware.AuthRequired(), middleware.RateLimitMiddleware())
	me.GET("", participantController.Me)
	me.PATCH("/profile", participantController.UpdateProfile)
	me.POST("/notifications/enable", participantController.EnableNotifications)
	me.POST("/notifications/disable", participantController.DisableNotifications)
	me.GET("/stats", statsController.GetMyStats)
	me.GET("/badges", statsController.GetMyBadges)
	me.GET("/series", seriesController.MySeries)
	me.POST("/series/:seriesId/subscribe", participantController.Subscribe)
	me.GET("/series/:seriesId/streak", statsController.GetSeriesStreak)
	me.GET("/series/:seriesId/rewards", rewardsController.GetRewardStatus)
	me.POST("/series/:seriesId/rewards/claim", rewardsController.ClaimReward)
	me.GET("/avatar", avatarController.GetAvatar)
	me.POST("/avatar/evolve", avatarController.Evolve)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "api route not found")
	})

	return r
}
