package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/workpulse/survey/config"
	"github.com/workpulse/survey/internal/admin"
	"github.com/workpulse/survey/internal/auth"
	"github.com/workpulse/survey/internal/middleware"
	"github.com/workpulse/survey/internal/surveys"
	"github.com/workpulse/survey/internal/web"
)

// New builds the HTTP routes. limiter may be nil.
func New(cfg *config.Config, repo surveys.Repository, limiter auth.Limiter, logger *zap.Logger) *gin.Engine {
	surveyHandler := surveys.NewHandler(repo, cfg.Survey.Location, logger)
	adminHandler := admin.NewHandler(repo, cfg.Admin.RecentLimit, cfg.Survey.Location, logger)
	guard := auth.NewGuard(cfg.Admin, limiter, logger)
	if !guard.Configured() {
		logger.Warn("admin credentials not configured, /admin will reject every request")
	}

	r := gin.New()
	// The failed-login limiter keys on ClientIP, so X-Forwarded-For is honoured only from listed proxies.
	if err := r.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		logger.Error("invalid trusted proxies, trusting none", zap.Error(err))
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Timeout(time.Duration(cfg.Server.RequestTimeout) * time.Second))
	r.SetHTMLTemplate(web.Templates())

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
	r.GET("/readyz", func(c *gin.Context) {
		if err := repo.Ping(c.Request.Context()); err != nil {
			logger.Warn("readiness check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	r.GET("/", surveyHandler.Form)
	r.GET("/form", surveyHandler.Form)
	r.POST("/submit", surveyHandler.Submit)
	r.GET("/success", surveyHandler.Success)

	adminGroup := r.Group("/admin", guard.Middleware())
	adminGroup.GET("", adminHandler.Summary)
	adminGroup.GET("/export.xlsx", adminHandler.Export)

	return r
}
