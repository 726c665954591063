package main

import (
	"context"
	"errors"
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

	"github.com/moodboard/backend/internal/api"
	"github.com/moodboard/backend/internal/config"
	"github.com/moodboard/backend/internal/logging"
	"github.com/moodboard/backend/internal/session"
	"github.com/moodboard/backend/internal/storage"
	"github.com/moodboard/backend/internal/tagging"
	"github.com/moodboard/backend/internal/upload"
	"github.com/moodboard/backend/internal/web"
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
	configPath := filepath.Join(exeDir, "moodboard.config.xml")
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Advanced.LogLevel
	logCfg.Format = cfg.Advanced.LogFormat
	logging.Init(logCfg)

	// Ensure all data directories exist
	if err := cfg.EnsureDirectories(); err != nil {
		logging.Fatal().Err(err).Msg("failed to create directories")
	}

	// Check if running in embedded mode (frontend built into binary)
	embeddedMode := web.HasEmbeddedFiles()

	// Initialize storage
	mediaStore, err := storage.NewLocalStore(cfg.Storage.MediaDirectory)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to initialize media storage")
	}
	boardStore, err := storage.NewDuckStore(cfg.Storage.DatabaseFile, storage.DuckOptions{
		Threads:     cfg.Advanced.DuckDBThreads,
		MemoryLimit: cfg.Advanced.DuckDBMemoryLimit,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to open board database")
	}
	defer boardStore.Close()

	// Tagging is optional; without it items are simply left untagged
	var tagger tagging.Tagger = tagging.Nop{}
	var taggingStatus api.TaggingStatus
	if cfg.Tagging.Enabled {
		vocab := tagging.DefaultVocabulary()
		if cfg.Tagging.VocabularyFile != "" {
			if vocab, err = tagging.LoadVocabulary(cfg.Tagging.VocabularyFile); err != nil {
				logging.Fatal().Err(err).Str("file", cfg.Tagging.VocabularyFile).Msg("failed to load tag vocabulary")
			}
		}
		tcfg := tagging.DefaultConfig(cfg.Tagging.Endpoint, cfg.Tagging.Model)
		tcfg.APIKey = cfg.Tagging.APIKey
		tcfg.Timeout = time.Duration(cfg.Tagging.TimeoutSeconds) * time.Second
		tcfg.RequestsPerMinute = cfg.Tagging.RequestsPerMinute
		tcfg.BreakerFailures = cfg.Tagging.BreakerFailures
		tcfg.BreakerOpen = time.Duration(cfg.Tagging.BreakerOpenSecs) * time.Second
		client := tagging.NewClient(tcfg, vocab)
		tagger = client
		taggingStatus = client
	}

	sessionMgr := session.NewManager()
	uploadMgr := upload.NewManager(mediaStore, boardStore, tagger)

	// Start background session and job cleanup
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go runCleanup(ctx, cfg, sessionMgr, uploadMgr)

	handlers := api.NewHandlers(&api.Dependencies{
		Board:       boardStore,
		Media:       mediaStore,
		SessionMgr:  sessionMgr,
		UploadMgr:   uploadMgr,
		Tagging:     taggingStatus,
		Version:     Version,
		MaxUpload:   cfg.MaxUploadBytes(),
		PaletteSize: cfg.Processing.PaletteSize,
		WSReadLimit: int64(cfg.Advanced.WebSocketMaxMessageSize) * 1024,
	})

	e := echo.New()
	e.HideBanner = true
	api.SetupMiddleware(e)

	isSocket := func(c echo.Context) bool {
		return strings.HasPrefix(c.Request().URL.Path, "/api/ws/")
	}

	// Configure middleware
	reqLog := logging.Component("http")
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			// Skip logging if disabled in config
			if !cfg.Advanced.EnableRequestLogging {
				return true
			}
			path := c.Request().URL.Path
			return path == "/api/health" || strings.HasPrefix(path, "/api/uploads/")
		},
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			ev := reqLog.Info()
			if v.Error != nil {
				ev = reqLog.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Msg("request")
			return nil
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			logging.Error().Err(err).Str("stack", string(stack)).Msg("panic recovered")
			return err
		},
	}))

	e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Timeout: time.Duration(cfg.Server.ReadTimeout) * time.Second,
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return isSocket(c) ||
				strings.HasPrefix(path, "/api/media/") ||
				strings.HasSuffix(path, "/tags")
		},
		ErrorMessage: "Request timeout",
	}))

	// Compression middleware
	if cfg.Processing.EnableCompression {
		e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
			Level: cfg.Processing.CompressionLevel,
			Skipper: func(c echo.Context) bool {
				return isSocket(c) || strings.HasPrefix(c.Request().URL.Path, "/api/media/")
			},
		}))
	}

	// Body limit middleware
	e.Use(middleware.BodyLimitWithConfig(middleware.BodyLimitConfig{
		Limit:   cfg.Server.BodyLimit,
		Skipper: isSocket,
	}))

	// CORS configuration
	if cfg.Server.EnableCORS {
		if embeddedMode {
			origins := strings.Split(cfg.Server.AllowOrigins, ",")
			for i := range origins {
				origins[i] = strings.TrimSpace(origins[i])
			}
			if len(origins) == 0 || (len(origins) == 1 && origins[0] == "") {
				origins = []string{"*"}
			}
			e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
				AllowOrigins: origins,
				AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
				AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
			}))
		} else {
			// Development mode - only allow localhost
			e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
				AllowOrigins: []string{
					"http://localhost:5173", "http://127.0.0.1:5173",
					"http://localhost:3000", "http://127.0.0.1:3000",
				},
				AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
				AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
			}))
		}
	}

	// API Routes
	api.RegisterRoutes(e.Group("/api"), handlers)

	// Register embedded frontend if available
	if embeddedMode {
		if err := web.RegisterStaticRoutes(e); err != nil {
			logging.Warn().Err(err).Msg("failed to register static routes")
		} else {
			logging.Info().Msg("serving embedded frontend from binary")
		}
	}

	// Configure server with settings from XML config
	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	printBanner(cfg, configPath, embeddedMode, taggingStatus)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			logging.Warn().Err(err).Msg("shutdown incomplete")
		}
	}()

	if err := e.StartServer(s); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logging.Error().Err(err).Msg("server stopped")
	}
}

// runCleanup evicts idle canvas sessions and finished upload jobs
func runCleanup(ctx context.Context, cfg *config.AppConfig, sessions *session.Manager, uploads *upload.Manager) {
	interval := time.Duration(cfg.Processing.CleanupIntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	log := logging.Component("cleanup")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			evicted := sessions.CleanupOldSessions(time.Duration(cfg.Processing.SessionTimeoutMinutes) * time.Minute)
			jobs := uploads.CleanupOldJobs(time.Duration(cfg.Processing.JobRetentionMinutes) * time.Minute)
			if evicted > 0 || jobs > 0 {
				log.Info().Int("sessions", evicted).Int("jobs", jobs).Msg("cleanup")
			}
		}
	}
}

func printBanner(cfg *config.AppConfig, configPath string, embeddedMode bool, taggingStatus api.TaggingStatus) {
	mode := "Development"
	if embeddedMode {
		mode = "Embedded"
	}
	tagState := "disabled"
	if taggingStatus != nil {
		tagState = cfg.Tagging.Model + " (" + taggingStatus.State() + ")"
	}

	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           Weekly Moodboard Server                         ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("║  Mode:       %-45s║\n", mode)
	fmt.Printf("║  Tagging:    %-45s║\n", tagState)
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", configPath)
	fmt.Printf("║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("║  Data Dir:  %-46s║\n", cfg.GetDataDir())
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")

	if embeddedMode {
		fmt.Printf("Open http://localhost:%d in your browser\n\n", cfg.Server.Port)
	}
}
