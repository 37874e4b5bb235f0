package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/damacus/iron-folders/internal/backend"
	"github.com/damacus/iron-folders/internal/backend/factory"
	"github.com/damacus/iron-folders/internal/backend/proxy"
	"github.com/damacus/iron-folders/internal/config"
	"github.com/damacus/iron-folders/internal/handlers"
	"github.com/damacus/iron-folders/internal/logging"
	"github.com/damacus/iron-folders/internal/metrics"
	customMiddleware "github.com/damacus/iron-folders/internal/middleware"
	"github.com/damacus/iron-folders/internal/upload"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

func main() {
	// IRON_CONFIG points at an optional YAML file; env vars override it
	cfg, err := config.Load(os.Getenv("IRON_CONFIG"))
	if err != nil {
		logging.Fatal("load config", zap.Error(err))
	}
	if err := logging.Init(cfg.Log); err != nil {
		logging.Fatal("init logging", zap.Error(err))
	}
	defer func() { _ = logging.Sync() }()

	e := newServer(cfg, factory.New(directFactoryConfig(cfg)))

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		logging.Info("proxy listening", zap.String("addr", cfg.Addr()))
		if err := e.Start(cfg.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal("listen", zap.Error(err))
		}
	}()

	<-done
	logging.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logging.Error("shutdown", zap.Error(err))
	}
}

// directFactoryConfig reaches every service directly; the proxy never
// forwards to another proxy.
func directFactoryConfig(cfg *config.Config) factory.Config {
	fc := cfg.FactoryConfig()
	for name, s := range fc.Services {
		s.Mode = factory.ModeDirect
		fc.Services[name] = s
	}
	return fc
}

func newServer(cfg *config.Config, f backend.Factory) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	storageHandler := handlers.NewStorageHandler(
		f,
		upload.NewValidator(cfg.Upload.AllowedExtensions),
		cfg.AdapterTTL(),
		cfg.CallTimeout(),
	)

	// Middleware
	e.Use(customMiddleware.RequestID())
	e.Use(customMiddleware.RequestLogger())
	e.Use(middleware.Recover())
	e.Use(customMiddleware.SecurityHeaders())

	// Public Routes
	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	// Storage Routes, credentials travel in each request body
	storage := e.Group("/:service", customMiddleware.Credentials())
	storage.POST("/"+proxy.EndpointFetchContent, storageHandler.FetchContent)
	storage.POST("/"+proxy.EndpointCreateFolder, storageHandler.CreateFolder)
	storage.POST("/"+proxy.EndpointUploadFile, storageHandler.UploadFile)

	return e
}
