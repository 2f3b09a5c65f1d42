package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"activitylog/internal/amqp"
	"activitylog/internal/auth"
	"activitylog/internal/cache"
	"activitylog/internal/cli"
	"activitylog/internal/core"
	apphttp "activitylog/internal/http"
	"activitylog/internal/log"
	"activitylog/internal/services"
)

const snapshotCacheSize = 64

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentApp)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	be := cli.InitBackend(ctx, logger, cfg)
	defer func() {
		if err := be.Close(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err.Error())
		}
	}()

	var publisher amqp.Publisher
	if client := cli.InitAMQP(logger, cfg); client != nil {
		defer client.Close()
		publisher = client
	}

	// CACHE_TTL=0 disables snapshot caching.
	var snapshots *cache.Loader[[]core.ActivityRecord]
	if cfg.CacheTTL > 0 {
		lru := cache.NewLRUCache[[]core.ActivityRecord](snapshotCacheSize, cfg.CacheTTL)
		cacheManager := cache.NewManager(logger)
		cacheManager.Register(lru)
		cacheManager.StartCleanup(max(cfg.CacheTTL, time.Minute))
		defer cacheManager.Stop()
		snapshots = cache.NewLoader[[]core.ActivityRecord](lru)
	}

	activities := services.NewActivityService(be.Store, publisher, snapshots, logger)

	authSvc := auth.NewService(be.Users, auth.TokenConfig{
		Secret: cfg.JWTSecret,
		Issuer: cfg.JWTIssuer,
		TTL:    cfg.JWTTTL,
	}, logger)
	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET not set, login disabled")
		authSvc = nil
	} else if err := authSvc.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		logger.Error("Failed to provision admin account", log.FieldError, err.Error())
		os.Exit(1)
	}

	srv := apphttp.NewServer(apphttp.Options{
		Addr:               ":" + cfg.Port,
		Activities:         activities,
		Auth:               authSvc,
		AuthRequired:       cfg.AuthRequired,
		Ready:              be.Ready,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		AllowedOrigins:     cfg.CORSAllowedOrigins,
		TrustedProxies:     cfg.TrustedProxies,
		Logger:             logger,
	})

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err.Error())
		}
	}()

	logger.Info("Starting activitylog server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"auth_required", cfg.AuthRequired,
		"amqp", publisher != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err.Error(), "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
