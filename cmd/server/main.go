package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/line-kiosk/backend/internal/api"
	"github.com/line-kiosk/backend/internal/broker"
	"github.com/line-kiosk/backend/internal/config"
	"github.com/line-kiosk/backend/internal/hub"
	"github.com/line-kiosk/backend/internal/observability"
	"github.com/line-kiosk/backend/internal/storage"
	"github.com/line-kiosk/backend/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Get the executable's directory for config resolution
	exePath, err := os.Executable()
	if err != nil {
		fmt.Printf("Failed to get executable path: %v\n", err)
		os.Exit(1)
	}
	exeDir := filepath.Dir(exePath)

	// Load XML configuration
	configPath := filepath.Join(exeDir, "LineKiosk.exe.config")
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Ensure all data directories exist
	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Printf("Failed to create directories: %v\n", err)
		os.Exit(1)
	}

	// Metrics registry
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	// Layout document persistence
	layoutStore, err := storage.NewLayoutStore(cfg.Layout.DocumentFile)
	if err != nil {
		fmt.Printf("Failed to initialize layout store: %v\n", err)
		os.Exit(1)
	}

	// Media asset storage
	mediaStore, err := storage.NewMediaStore(cfg.Storage.MediaDirectory, "/media")
	if err != nil {
		fmt.Printf("Failed to initialize media store: %v\n", err)
		os.Exit(1)
	}

	// Vendor mapping presets
	presets, err := config.LoadPresets(cfg.Telemetry.MappingPresetsFile)
	if err != nil {
		fmt.Printf("Warning: failed to load mapping presets: %v\n", err)
		presets = &config.PresetFile{}
	} else if len(presets.Presets) > 0 {
		fmt.Printf("Loaded %d mapping presets\n", len(presets.Presets))
	}

	// Telemetry store and staleness watchdog
	telemetryStore := telemetry.NewStore(
		cfg.Telemetry.TrendDepth,
		time.Duration(cfg.Telemetry.ErrorClearSeconds)*time.Second,
	)
	defer telemetryStore.Close()

	watchdog := telemetry.NewWatchdog(
		telemetryStore,
		time.Duration(cfg.Telemetry.WatchdogTimeoutSeconds)*time.Second,
		time.Duration(cfg.Telemetry.WatchdogIntervalSeconds)*time.Second,
	)
	watchdog.Start()
	defer watchdog.Stop()

	// Telemetry fan-out hub
	telemetryHub := hub.NewHub(metrics)
	go telemetryHub.Run()
	defer telemetryHub.Stop()

	// Lock broker over the layout document
	lockBroker := broker.New(layoutStore, metrics, cfg.Layout.SaveRequiresLock)

	// API handlers
	h := api.NewHandler(layoutStore, mediaStore, telemetryStore, watchdog, telemetryHub, presets, metrics, Version)
	wsHandler := api.NewWebSocketHandler(h, telemetryHub, lockBroker, cfg.Advanced.WebSocketMaxMessageSize)

	// Optional upstream telemetry feed
	var upstream *telemetry.Transport
	if cfg.Telemetry.SourceURL != "" {
		upstream = telemetry.NewTransport(
			cfg.Telemetry.SourceURL,
			time.Duration(cfg.Telemetry.ReconnectDelaySeconds)*time.Second,
		)
		upstream.OnStatus(telemetryStore.SetConnectionStatus)
		upstream.OnError(telemetryStore.SetError)
		upstream.OnRaw(func(frame []byte) {
			if bytes.HasPrefix(frame, []byte("PARSE_ERROR")) {
				return // debug marker, not a frame
			}
			if _, err := h.Ingest(frame); err != nil {
				fmt.Printf("[Upstream] Dropped malformed frame: %v\n", err)
			}
		})
		if err := upstream.Connect(); err != nil {
			fmt.Printf("Warning: upstream telemetry connect failed, will retry: %v\n", err)
		}
		defer upstream.Close()
	} else {
		// Push-only ingest: sources connect to us, so the feed is
		// considered up as long as the server runs.
		telemetryStore.SetConnectionStatus(telemetry.StatusConnected)
	}

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = api.ErrorHandler

	// Configure middleware
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Skipper: func(c echo.Context) bool {
			if !cfg.Advanced.EnableRequestLogging {
				return true
			}
			path := c.Request().URL.Path
			return strings.HasPrefix(path, "/ws/") ||
				strings.HasSuffix(path, "/status") ||
				path == "/api/health" || path == "/metrics"
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize:         1024 * 4,
		DisablePrintStack: false,
	}))

	e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	// CORS configuration
	if cfg.Server.EnableCORS {
		origins := strings.Split(cfg.Server.AllowOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		if len(origins) == 0 || (len(origins) == 1 && origins[0] == "") {
			origins = []string{"*"}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: origins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		}))
	}

	// API Routes
	apiGroup := e.Group("/api")

	apiGroup.GET("/health", h.HandleHealth)
	apiGroup.GET("/layout", h.HandleGetLayout)

	apiGroup.GET("/telemetry/snapshot", h.HandleTelemetrySnapshot)
	apiGroup.GET("/telemetry/snapshot.msgpack", h.HandleTelemetrySnapshotMsgpack)
	apiGroup.GET("/telemetry/status", h.HandleTelemetryStatus)
	apiGroup.POST("/telemetry", h.HandleIngestTelemetry)

	apiGroup.GET("/mappings/presets", h.HandleGetPresets)
	apiGroup.GET("/mappings/presets/:name", h.HandleGetPreset)

	apiGroup.POST("/media", h.HandleUploadMedia)
	apiGroup.GET("/media", h.HandleListMedia)
	apiGroup.DELETE("/media/:id", h.HandleDeleteMedia)

	e.GET("/media/:id", h.HandleServeMedia)

	// Realtime endpoints
	e.GET("/ws/telemetry", wsHandler.HandleTelemetrySocket)
	e.GET("/ws/telemetry/ingest", wsHandler.HandleTelemetryIngestSocket)
	e.GET("/ws/layout", wsHandler.HandleLayoutSocket)

	// Prometheus metrics
	if cfg.Advanced.EnableMetrics {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	// Configure server with settings from XML config
	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           Line Kiosk Server                               ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", configPath)
	fmt.Printf("║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("║  Data Dir:  %-46s║\n", cfg.Storage.DataDirectory)
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")

	// Serve until interrupted, then drain connections
	go func() {
		if err := e.StartServer(s); err != nil && err != http.ErrServerClosed {
			e.Logger.Fatal(err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	fmt.Println("\nShutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		fmt.Printf("Forced shutdown: %v\n", err)
	}
}
