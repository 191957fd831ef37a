// Package main runs the survey HTTP server with graceful shutdown.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/workpulse/survey/config"
	"github.com/workpulse/survey/internal/auth"
	"github.com/workpulse/survey/internal/router"
	"github.com/workpulse/survey/internal/surveys"
	applog "github.com/workpulse/survey/pkg/logger"
	"github.com/workpulse/survey/pkg/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := applog.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer logger.Sync()

	gin.SetMode(cfg.Server.GinMode)

	ctx := context.Background()
	repo, err := surveys.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer repo.Close()

	var limiter auth.Limiter
	if cfg.Redis.Addr != "" {
		rdb, err := redis.NewClient(ctx, cfg.Redis, logger)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
		limiter = auth.NewRedisLimiter(rdb.Client, cfg.Admin.MaxFailures, cfg.Admin.FailureWindow)
		logger.Info("admin failed-login limiter enabled",
			zap.Int("max_failures", cfg.Admin.MaxFailures),
			zap.Duration("window", cfg.Admin.FailureWindow),
		)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router.New(cfg, repo, limiter, logger),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening",
			zap.String("port", cfg.Server.Port),
			zap.String("driver", cfg.Database.Driver()),
			zap.String("timezone", cfg.Survey.TimezoneName),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}
