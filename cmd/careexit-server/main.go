package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/careexit/careexit/internal/config"
	"github.com/careexit/careexit/internal/domain/appointment"
	"github.com/careexit/careexit/internal/domain/calling"
	"github.com/careexit/careexit/internal/domain/chat"
	"github.com/careexit/careexit/internal/domain/discharge"
	"github.com/careexit/careexit/internal/domain/emr"
	"github.com/careexit/careexit/internal/domain/instructions"
	"github.com/careexit/careexit/internal/domain/medrec"
	"github.com/careexit/careexit/internal/domain/meeting"
	"github.com/careexit/careexit/internal/domain/patient"
	"github.com/careexit/careexit/internal/domain/voice"
	"github.com/careexit/careexit/internal/platform/auth"
	"github.com/careexit/careexit/internal/platform/db"
	"github.com/careexit/careexit/internal/platform/epic"
	"github.com/careexit/careexit/internal/platform/llm"
	"github.com/careexit/careexit/internal/platform/middleware"
	"github.com/careexit/careexit/internal/platform/tts"
	"github.com/careexit/careexit/internal/platform/websocket"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "careexit-server",
		Short: "CareExit discharge planning API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if dir == "" {
				dir = cfg.MigrationsDir
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Path to migrations directory (defaults to MIGRATIONS_DIR)")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if dir == "" {
				dir = cfg.MigrationsDir
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "Path to migrations directory (defaults to MIGRATIONS_DIR)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func runServer() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Gemini client; generation falls back to templates without a key.
	var llmClient llm.Client
	if cfg.GeminiAPIKey != "" {
		gemini, err := llm.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to init gemini client")
		}
		llmClient = gemini
		logger.Info().Str("model", cfg.GeminiModel).Msg("gemini client ready")
	}

	epicClient := epic.NewClient(cfg.EpicBaseURL, "careexit", logger)

	ttsService, err := tts.New(cfg.ElevenLabsAPIKey, cfg.ElevenLabsVoice, cfg.TTSCacheDir, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init tts cache")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.SanitizeWithLogger(logger))
	e.Use(middleware.BodyLimit("1M", "20M"))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{Secret: []byte(cfg.JWTSecret)}))
	}
	e.Use(middleware.BreakGlass(logger))
	e.Use(middleware.Audit(logger))

	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.RequestTimeout(60 * time.Second))
	apiV1.Use(middleware.ConditionalGET(middleware.DefaultCachePolicy()))

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	quotaLimiter := middleware.NewQuotaLimiter()
	apiV1.Use(middleware.Quota(quotaLimiter))

	e.GET("/health", db.HealthHandler(pool))

	// Repositories
	patientRepo := patient.NewRepoPG(pool)
	emrRepo := emr.NewRepoPG(pool)
	instructionsRepo := instructions.NewRepoPG(pool)
	medrecRepo := medrec.NewRepoPG(pool)
	meetingRepo := meeting.NewRepoPG(pool)
	chatRepo := chat.NewRepoPG(pool)
	callingRepo := calling.NewRepoPG(pool)
	appointmentRepo := appointment.NewRepoPG(pool)
	dischargeRepo := discharge.NewRepoPG(pool)

	// Services
	patientSvc := patient.NewService(patientRepo)
	emrSvc := emr.NewService(emrRepo, llmClient, epicClient, logger)
	instructionsSvc := instructions.NewService(instructionsRepo, emrRepo, llmClient, logger)
	medrecSvc := medrec.NewService(medrecRepo, emrRepo, llmClient, logger)
	meetingSvc := meeting.NewService(meetingRepo, emrRepo, llmClient, logger)
	appointmentSvc := appointment.NewService(appointmentRepo)
	callingSvc := calling.NewService(callingRepo, appointmentSvc, logger)
	dischargeSvc := discharge.NewService(dischargeRepo, emrRepo, instructionsRepo, medrecRepo, appointmentRepo, logger)

	hub := websocket.NewHub()
	chatSvc := chat.NewService(chatRepo, hub, llmClient, logger)

	// Handlers
	patient.NewHandler(patientSvc).RegisterRoutes(apiV1)
	emr.NewHandler(emrSvc).RegisterRoutes(apiV1)
	instructions.NewHandler(instructionsSvc).RegisterRoutes(apiV1)
	medrec.NewHandler(medrecSvc).RegisterRoutes(apiV1)
	meeting.NewHandler(meetingSvc).RegisterRoutes(apiV1)
	appointment.NewHandler(appointmentSvc).RegisterRoutes(apiV1)
	calling.NewHandler(callingSvc).RegisterRoutes(apiV1)
	discharge.NewHandler(dischargeSvc).RegisterRoutes(apiV1)
	voice.NewHandler(ttsService, logger).RegisterRoutes(apiV1)

	chatHandler := chat.NewHandler(chatSvc, hub)
	chatHandler.RegisterRoutes(apiV1)
	chatHandler.RegisterWS(e)

	adminV1 := apiV1.Group("/admin", auth.RequireRole("admin"))
	middleware.NewQuotaHandler(quotaLimiter).RegisterRoutes(adminV1)

	addr := ":" + cfg.Port
	go func() {
		logger.Info().Str("addr", addr).Str("version", version).Msg("server starting")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
