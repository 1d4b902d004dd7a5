package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"approval-routing/internal/api"
	"approval-routing/internal/app"
	"approval-routing/internal/config"
	"approval-routing/internal/logging"
	"approval-routing/internal/mcp"
	"approval-routing/internal/metrics"
	"approval-routing/internal/services"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the REST API and MCP endpoints",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	logger := logging.NewLogger(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting approval routing service",
		"environment", cfg.Environment,
		"store", cfg.Store.Driver)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	recorder := metrics.Noop()
	var provider *metrics.Provider
	if cfg.Metrics.Enabled {
		provider, err = metrics.NewPrometheusProvider()
		if err != nil {
			return err
		}
		defer func() { _ = provider.Shutdown(context.Background()) }()
		if recorder, err = metrics.NewRecorder(provider.Meter()); err != nil {
			return err
		}
	}

	store, closeStore, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	svc := services.NewRoutingService(store,
		services.WithDirectory(app.NewDirectory(cfg)),
		services.WithLogger(logger),
		services.WithMetrics(recorder))

	e := newEcho(cfg, logger, svc, provider)

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      e,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "address", cfg.Server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
		if err := server.Close(); err != nil {
			logger.Error("Server close error", "error", err)
		}
		return err
	}
	logger.Info("Server stopped gracefully")
	return nil
}

func newEcho(cfg *config.Config, logger *slog.Logger, svc *services.RoutingService, provider *metrics.Provider) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = api.ErrorHandler(logger)

	e.Use(otelecho.Middleware(api.ServiceName))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
				logger.LogAttrs(c.Request().Context(), slog.LevelWarn, "request", attrs...)
				return nil
			}
			logger.LogAttrs(c.Request().Context(), slog.LevelInfo, "request", attrs...)
			return nil
		},
	}))
	e.Use(middleware.Recover())

	apiGroup := e.Group("/api/v1")
	api.RegisterHandlers(apiGroup, api.NewServer(svc))
	logger.Info("REST API handlers mounted")

	if cfg.MCP.Enabled {
		mcpServer := mcp.NewServer(svc)
		mcpHandlers := http.NewServeMux()
		mcp.MountHTTPHandlers(mcpHandlers, mcpServer.GetMCPServer())
		e.Any("/mcp/*", echo.WrapHandler(mcpHandlers))
		logger.Info("MCP protocol handlers mounted")
	}

	if provider != nil {
		e.GET(cfg.Metrics.Path, echo.WrapHandler(provider.Handler()))
	}

	e.GET("/openapi.yaml", echo.WrapHandler(api.SpecHandler(cfg.Server.PublicURL)))
	e.GET("/docs", echo.WrapHandler(api.SwaggerHandler()))
	return e
}
