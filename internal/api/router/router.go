package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"slatrack/backend/config"
	"slatrack/backend/internal/api/handler"
	"slatrack/backend/internal/api/middleware"
	"slatrack/backend/pkg/jwt"
	"slatrack/backend/pkg/redis"
)

// Setup 初始化并返回 Gin 路由引擎
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(1 << 20))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// ── API v1（全部接口要求服务间认证） ──
	v1 := r.Group("/api/v1")
	v1.Use(middleware.ServiceAuth(jwtMgr))
	v1.Use(middleware.RateLimit(rdb, 300, time.Minute))
	{
		// 工作时间计划模块
		schedules := v1.Group("/schedules")
		{
			schedules.GET("", h.Schedule.ListSchedules)
			schedules.GET("/:id", h.Schedule.GetSchedule)
			schedules.POST("", h.Schedule.CreateSchedule)
			schedules.PUT("/:id", h.Schedule.UpdateSchedule)
			schedules.DELETE("/:id", h.Schedule.DeleteSchedule)
		}

		// 节假日日历模块
		calendars := v1.Group("/holiday-calendars")
		{
			calendars.GET("", h.Holiday.ListCalendars)
			calendars.GET("/:id", h.Holiday.GetCalendar)
			calendars.POST("", h.Holiday.CreateCalendar)
			calendars.PUT("/:id", h.Holiday.UpdateCalendar)
			calendars.DELETE("/:id", h.Holiday.DeleteCalendar)
			calendars.POST("/:id/holidays", h.Holiday.AddHoliday)
			calendars.DELETE("/:id/holidays/:holiday_id", h.Holiday.DeleteHoliday)
			calendars.POST("/:id/import", h.Holiday.ImportICS)
		}

		// 承诺定义模块
		definitions := v1.Group("/definitions")
		{
			definitions.GET("", h.Definition.ListDefinitions)
			definitions.GET("/:id", h.Definition.GetDefinition)
			definitions.POST("", h.Definition.CreateDefinition)
			definitions.PUT("/:id", h.Definition.UpdateDefinition)
			definitions.DELETE("/:id", h.Definition.DeleteDefinition)
			definitions.POST("/match", h.Definition.MatchDefinition)
		}

		// 承诺跟踪模块
		trackers := v1.Group("/trackers")
		{
			trackers.POST("", h.Tracker.StartTracker)
			trackers.GET("", h.Tracker.ListTrackers)
			trackers.GET("/:id", h.Tracker.GetTracker)
			trackers.GET("/:id/events", h.Tracker.ListTrackerEvents)
			trackers.POST("/:id/pause", h.Tracker.PauseTracker)
			trackers.POST("/:id/resume", h.Tracker.ResumeTracker)
			trackers.POST("/:id/stop", h.Tracker.StopTracker)
			trackers.POST("/:id/cancel", h.Tracker.CancelTracker)
		}

		// 合规指标模块
		metrics := v1.Group("/metrics")
		{
			metrics.GET("", h.Metrics.ListMetrics)
			metrics.GET("/export", h.Metrics.ExportMetrics)
		}
	}

	return r
}
