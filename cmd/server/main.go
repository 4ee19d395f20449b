package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/app"
	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/config"
	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/handlers"
	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/logger"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewWithLevel(cfg.Server.Env, cfg.Server.LogLevel)
	log.Info("Starting realtor API", map[string]interface{}{
		"version":     handlers.APIVersion,
		"environment": cfg.Server.Env,
		"port":        cfg.Server.Port,
		"store":       cfg.Store.Driver,
		"storage":     cfg.Storage.Driver,
		"cache":       cfg.Cache.Driver,
	})

	ctx := context.Background()
	application, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize application", err, map[string]interface{}{
			"store": cfg.Store.Driver,
		})
	}

	if err := application.Drafts.Start(cfg.Drafts.SweepSchedule); err != nil {
		log.Fatal("Failed to start draft sweeper", err, map[string]interface{}{
			"schedule": cfg.Drafts.SweepSchedule,
		})
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := application.Router()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Server listening", map[string]interface{}{
			"port": cfg.Server.Port,
			"addr": srv.Addr,
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start", err, nil)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", err, map[string]interface{}{
			"timeout": shutdownTimeout.String(),
		})
	}
	if err := application.Close(shutdownCtx); err != nil {
		log.Error("Failed to release backends", err, nil)
	}

	log.Info("Server exited", nil)
}
