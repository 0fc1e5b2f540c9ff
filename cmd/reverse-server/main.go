package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iwvelando/reverse-consolidation/internal/cache"
	"github.com/iwvelando/reverse-consolidation/internal/config"
	"github.com/iwvelando/reverse-consolidation/internal/engine"
	"github.com/iwvelando/reverse-consolidation/internal/server"
	"github.com/iwvelando/reverse-consolidation/pkg/constants"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

var version = "dev"

func main() {
	configLocation := flag.String("config", constants.DefaultServerConfigFile, "path to server configuration file")
	envFile := flag.String("env-file", ".env", "optional dotenv file with environment overrides")
	logLevel := flag.String("log-level", "", "log level override (debug, info, warn, error)")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to load env file %s\", \"error\": \"%v\"}\n", *envFile, err)
		os.Exit(1)
	}

	cfg, err := server.LoadConfig(*configLocation)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to load server configuration at %s\", \"error\": \"%v\"}\n", *configLocation, err)
		os.Exit(1)
	}
	cfg.ApplyEnvironment(os.Getenv)

	logger, err := config.NewLogger(cfg.Logging, *logLevel)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to initialize logger\", \"error\": \"%v\"}\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	evalCache, err := cache.New(cfg.Cache.Backend, cfg.Cache.RedisURL)
	if err != nil {
		logger.Fatal("failed to configure evaluation cache",
			zap.String("op", "main"),
			zap.Error(err),
		)
	}
	if rc, ok := evalCache.(*cache.RedisCache); ok {
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := rc.Ping(pingCtx); err != nil {
			logger.Warn("redis is not reachable, evaluations will not be cached until it is",
				zap.String("op", "main"),
				zap.Error(err),
			)
		}
		cancel()
		defer func() {
			_ = rc.Close()
		}()
	}

	var opts []engine.Option
	if evalCache != nil {
		opts = append(opts, engine.WithCache(evalCache, cfg.CacheTTL()))
		logger.Info("evaluation cache enabled",
			zap.String("op", "main"),
			zap.String("backend", cfg.Cache.Backend),
			zap.Duration("ttl", cfg.CacheTTL()),
		)
	}

	handler := server.NewHandler(logger, engine.NewCalculator(logger, opts...), server.Options{
		MaxUploadSize: cfg.UploadSizeBytes(),
		Version:       version,
	})

	srv := &http.Server{
		Addr:         cfg.Address,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("reverse consolidation server listening",
			zap.String("op", "main"),
			zap.String("address", cfg.Address),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error",
				zap.String("op", "main"),
				zap.Error(err),
			)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server", zap.String("op", "main"))
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed",
			zap.String("op", "main"),
			zap.Error(err),
		)
	}
}
