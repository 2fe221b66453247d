package main

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/frma/frma/internal/config"
	"github.com/frma/frma/internal/domain/assessment"
	"github.com/frma/frma/internal/domain/catalog"
	"github.com/frma/frma/internal/domain/chat"
	"github.com/frma/frma/internal/domain/profile"
	"github.com/frma/frma/internal/platform/auth"
	"github.com/frma/frma/internal/platform/db"
	"github.com/frma/frma/internal/platform/inference"
	"github.com/frma/frma/internal/platform/middleware"
	"github.com/frma/frma/internal/platform/telemetry"
	"github.com/frma/frma/internal/platform/websocket"
	"github.com/frma/frma/migrations"
)

const shutdownTimeout = 15 * time.Second

func main() {
	rootCmd := &cobra.Command{
		Use:   "frma-server",
		Short: "First-aid emergency assessment API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(catalogCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the assessment API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

// migrationSource returns the embedded schema unless dir points elsewhere.
func migrationSource(dir string) fs.FS {
	if dir == "" {
		return migrations.FS
	}
	return os.DirFS(dir)
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	withMigrator := func(c *cobra.Command, fn func(ctx context.Context, m *db.Migrator) error) error {
		dir, _ := c.Flags().GetString("dir")
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if err := cfg.RequireDatabase(); err != nil {
			return err
		}
		ctx := context.Background()
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns, newLogger(cfg.Env, cfg.LogLevel))
		if err != nil {
			return err
		}
		defer pool.Close()
		return fn(ctx, db.NewMigrator(pool, migrationSource(dir)))
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(ctx context.Context, m *db.Migrator) error {
				count, err := m.Up(ctx)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	}
	upCmd.Flags().String("dir", "", "Path to migrations directory (defaults to the embedded schema)")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(ctx context.Context, m *db.Migrator) error {
				statuses, err := m.Status(ctx)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				printStatuses(cmd.OutOrStdout(), statuses)
				return nil
			})
		},
	}
	statusCmd.Flags().String("dir", "", "Path to migrations directory (defaults to the embedded schema)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func printStatuses(w io.Writer, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func catalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the emergency-type catalog",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List emergency types",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("path")
			svc, err := loadCatalog(path)
			if err != nil {
				return err
			}
			printCatalog(cmd.OutOrStdout(), svc.List())
			return nil
		},
	}
	listCmd.Flags().String("path", "", "Catalog YAML file (defaults to the built-in catalog)")
	cmd.AddCommand(listCmd)

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a catalog for broken references",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("path")
			svc, err := loadCatalog(path)
			if err != nil {
				return err
			}
			if err := svc.Validate(); err != nil {
				return fmt.Errorf("catalog invalid: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Catalog OK: %d emergency type(s).\n", len(svc.List()))
			return nil
		},
	}
	validateCmd.Flags().String("path", "", "Catalog YAML file (defaults to the built-in catalog)")
	cmd.AddCommand(validateCmd)

	return cmd
}

func printCatalog(w io.Writer, types []catalog.Summary) {
	fmt.Fprintf(w, "%-24s %-32s %-9s %s\n", "ID", "TITLE", "PRIORITY", "QUESTIONS")
	for _, t := range types {
		priority := "normal"
		if t.HighPriority {
			priority = "high"
		}
		fmt.Fprintf(w, "%-24s %-32s %-9s %d\n", t.ID, t.Title, priority, t.QuestionCount)
	}
}

func loadCatalog(path string) (*catalog.Service, error) {
	var (
		types []catalog.EmergencyType
		err   error
	)
	if path == "" {
		types, err = catalog.Default()
	} else {
		types, err = catalog.LoadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return catalog.NewService(types), nil
}

// newLogger writes JSON, or console output in development.
func newLogger(env, level string) zerolog.Logger {
	var out io.Writer = os.Stdout
	if env == "development" {
		out = zerolog.ConsoleWriter{Out: os.Stdout}
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

// buildBackend selects the inference backend and the probe that reports its
// health. Gemini has no probe.
func buildBackend(ctx context.Context, cfg *config.Config) (inference.Backend, db.Probe, error) {
	switch cfg.InferenceBackend {
	case "gemini":
		b, err := inference.NewGeminiBackend(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, nil, fmt.Errorf("create gemini backend: %w", err)
		}
		return b, nil, nil
	case "http", "":
		b := inference.NewHTTPBackend(cfg.InferenceURL, inference.WithTimeout(cfg.InferenceTimeout))
		return b, b.Ping, nil
	default:
		return nil, nil, fmt.Errorf("unknown inference backend %q", cfg.InferenceBackend)
	}
}

// backendName describes the backend for startup logs.
func backendName(b inference.Backend) string {
	if n, ok := b.(interface{ Name() string }); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", b)
}

func workflowConfig(cfg *config.Config) assessment.WorkflowConfig {
	return assessment.WorkflowConfig{
		MaxNewTokens: cfg.InferenceMaxTokens,
		Temperature:  cfg.InferenceTemperature,
		TopP:         cfg.InferenceTopP,
		Timeout:      cfg.InferenceTimeout,
	}
}

func rateLimitConfig(cfg *config.Config) middleware.RateLimitConfig {
	rl := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitRPS > 0 {
		rl.RequestsPerSecond = cfg.RateLimitRPS
	}
	if cfg.RateLimitBurst > 0 {
		rl.BurstSize = cfg.RateLimitBurst
	}
	return rl
}

func runServer() error {
	// Config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Logger
	logger := newLogger(cfg.Env, cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}
	if err := cfg.RequireDatabase(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Catalog
	catalogSvc, err := loadCatalog(cfg.CatalogPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load catalog")
	}
	if err := catalogSvc.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("catalog invalid")
	}

	// Inference
	backend, backendProbe, err := buildBackend(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create inference backend")
	}
	logger.Info().Str("backend", backendName(backend)).Msg("inference backend ready")
	probes := map[string]db.Probe{}
	if backendProbe != nil {
		probes["inference"] = backendProbe
	}
	rdb, err := inference.NewRedisClient(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid REDIS_URL")
	}
	if rdb != nil {
		defer rdb.Close()
		probes["answer_cache"] = redisProbe(rdb)
		logger.Info().Dur("ttl", cfg.AnswerCacheTTL).Msg("answer cache enabled")
	}
	cached := inference.NewCachedBackend(backend, rdb, cfg.AnswerCacheTTL, logger)

	// Live events
	hub := websocket.NewHub(logger)
	defer hub.Close()

	// Assessment engine
	workflow := assessment.NewWorkflow(cached, workflowConfig(cfg), logger)
	store := assessment.NewMemoryStore(cfg.SessionMax, cfg.SessionTTL)
	recordRepo := assessment.NewRecordRepoPG(pool)

	profileSvc := profile.NewService(profile.NewRepoPG(pool))
	profileSvc.SetRecordEraser(recordRepo)
	profileSvc.SetTransactor(db.Transactor(pool))

	assessmentSvc := assessment.NewService(catalogSvc, workflow, store, logger)
	assessmentSvc.SetProfileProvider(profileSvc)
	assessmentSvc.SetRecordRepository(recordRepo)
	assessmentSvc.SetEventPublisher(hub)

	chatSvc := chat.NewService(cached, cfg.InferenceTimeout, logger)
	chatSvc.SetProfileProvider(profileSvc)

	// Metrics
	metrics := telemetry.NewProvider()
	metrics.RegisterGauge("assessment_live_sessions", func() int64 { return int64(store.Len()) })
	metrics.RegisterGauge("websocket_clients", func() int64 { return int64(hub.ClientCount()) })
	assessmentSvc.SetObserver(metrics)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(metrics.Middleware())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader, auth.DevUserHeader},
	}))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.Sanitize(logger))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	// Auth middleware
	if cfg.IsDev() {
		logger.Warn().Msg("development auth enabled; requests are trusted as " + auth.DevUserID)
		e.Use(auth.DevAuthMiddleware(auth.AuthSkipper))
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			JWKSURL:    cfg.AuthJWKSURL,
			SigningKey: []byte(cfg.AuthSigningKey),
			Skipper:    auth.AuthSkipper,
		}))
	}

	// Health
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(pool))
	e.GET("/health/inference", db.ProbeHandler(probes))
	e.GET("/metrics", metrics.Handler())

	// API
	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.RateLimit(rateLimitConfig(cfg)))

	catalog.NewHandler(catalogSvc).RegisterRoutes(apiV1)
	assessment.NewHandler(assessmentSvc).RegisterRoutes(apiV1)
	profile.NewHandler(profileSvc).RegisterRoutes(apiV1)
	chat.NewHandler(chatSvc).RegisterRoutes(apiV1)
	websocket.NewHandler(hub, logger,
		websocket.WithAuthorizer(assessmentSvc),
		websocket.WithAllowedOrigins(cfg.CORSOrigins),
	).RegisterRoutes(apiV1)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Int("emergency_types", len(catalogSvc.List())).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	if err := assessmentSvc.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("in-flight submissions did not settle")
	}
	logger.Info().Msg("server stopped")
	return nil
}

func redisProbe(rdb *redis.Client) db.Probe {
	return func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}
}
