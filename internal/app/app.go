package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"

	"flow-stream/backend/internal/api"
	"flow-stream/backend/internal/config"
	"flow-stream/backend/internal/database"
	"flow-stream/backend/internal/llm"
	"flow-stream/backend/internal/reaper"
	"flow-stream/backend/internal/repository"
	"flow-stream/backend/internal/service"
	"flow-stream/backend/internal/stream"
)

const (
	shutdownTimeout = 15 * time.Second
	sweepInterval   = time.Minute
)

// App holds the wired server and the resources it owns.
type App struct {
	Config  *config.Config
	DB      *sql.DB
	Redis   *redis.Client
	Service *service.ChatService
	Reaper  *reaper.Reaper
	Server  *http.Server

	memory *stream.MemoryRegistry
}

// NewApp builds every component from cfg without starting anything.
func NewApp(cfg *config.Config) (*App, error) {
	db, err := database.InitDB(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	a := &App{Config: cfg, DB: db}

	var registry stream.Registry
	switch cfg.RegistryBackend {
	case "redis":
		a.Redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		hostname, _ := os.Hostname()
		registry = stream.NewRedisRegistry(a.Redis, hostname+"-"+uuid.NewString()[:8], cfg.StreamTTL, cfg.StreamMaxLifetime)
	default:
		a.memory = stream.NewMemoryRegistry(cfg.StreamTTL, cfg.StreamMaxLifetime)
		registry = a.memory
	}

	repo := repository.NewSQLiteRepository(db)
	a.Service = service.NewChatService(
		repo,
		llm.NewOllamaProvider(cfg.OllamaURL),
		registry,
		service.OwnerChecker{Repo: repo},
		service.BaseURLResolver{BaseURL: cfg.AttachmentBaseURL},
		service.Options{
			DefaultModel:    cfg.DefaultModel,
			SupportModel:    cfg.SupportModel,
			SystemPrompt:    cfg.InitialSystemPrompt,
			PersistInterval: cfg.StreamPersistInterval,
			StopGrace:       cfg.StopGracePeriod,
			MaxLifetime:     cfg.StreamMaxLifetime,
		},
	)

	a.Reaper, err = reaper.New(repo, registry, cfg.ReaperCron, cfg.StreamMaxLifetime)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	router := api.NewRouter(api.NewChatHandler(a.Service), api.RouterOptions{
		ChatRateLimit: cfg.ChatRateLimit,
		ChatRateBurst: cfg.ChatRateBurst,
	})
	port := cfg.AppPort
	if port == 0 {
		port = 8000
	}
	a.Server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 20 * time.Second,
		WriteTimeout:      0, // Disabled for streaming endpoints
		IdleTimeout:       120 * time.Second,
	}
	return a, nil
}

// Start launches the background loops. The returned function stops them.
func (a *App) Start(ctx context.Context) context.CancelFunc {
	ctx, cancel := context.WithCancel(ctx)
	if a.memory != nil {
		go a.memory.Run(ctx, sweepInterval)
	}
	stopReaper := a.Reaper.Start(ctx)
	return func() {
		stopReaper()
		cancel()
	}
}

// Shutdown stops accepting requests, then lets running generations write
// their final state.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if err := a.Server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown: %w", err))
	}
	if err := a.Service.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("generation shutdown: %w", err))
	}
	return errors.Join(errs...)
}

// Close releases the database and Redis connections.
func (a *App) Close() error {
	var errs []error
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}

func Run() int {
	cfg, err := config.LoadConfig()
	if err != nil {
		// slog is not yet configured, so use the default logger for this critical error.
		slog.Error("Failed to load configuration", "error", err)
		return 1
	}

	setupLogger(cfg.LogLevel)

	logConfigSource()

	waitForOllama(cfg.OllamaURL)

	a, err := NewApp(cfg)
	if err != nil {
		slog.Error("Failed to initialize application", "error", err)
		return 1
	}
	defer func() {
		if err := a.Close(); err != nil {
			slog.Error("Failed to close connections", "error", err)
		}
	}()
	slog.Info("Application initialized", "registry", cfg.RegistryBackend, "default_model", cfg.DefaultModel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	stopLoops := a.Start(ctx)
	defer stopLoops()

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("Starting server", "addr", a.Server.Addr)
		serveErr <- a.Server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			return 1
		}
		return 0
	case <-ctx.Done():
		slog.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.Shutdown(shutdownCtx); err != nil {
		slog.Error("Graceful shutdown incomplete", "error", err)
		return 1
	}
	return 0
}

func logConfigSource() {
	configFileUsed := viper.ConfigFileUsed()
	if configFileUsed != "" {
		slog.Info("Successfully loaded configuration from file.", "file", configFileUsed)
	} else {
		slog.Info("Configuration file not found. Using environment variables and defaults.")
	}
}

func setupLogger(logLevel string) {
	var level slog.Level
	switch strings.ToUpper(logLevel) {
	case "DEBUG":
		level = slog.LevelDebug
	case "WARN":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
}

func waitForOllama(ollamaURL string) {
	slog.Info("Waiting for Ollama to be ready...")
	client := &http.Client{Timeout: 2 * time.Second}
	for {
		resp, err := client.Get(ollamaURL)
		if err == nil && resp.StatusCode == http.StatusOK {
			if bErr := resp.Body.Close(); bErr != nil {
				slog.Warn("Failed to close response body in ollama health check", "error", bErr)
			}
			slog.Info("Ollama is ready.")
			return
		}
		if resp != nil {
			if bErr := resp.Body.Close(); bErr != nil {
				slog.Warn("Failed to close response body in ollama health check (retry path)", "error", bErr)
			}
		}
		slog.Debug("Ollama not ready yet, retrying in 3 seconds...", "url", ollamaURL, "error", err)
		time.Sleep(3 * time.Second)
	}
}
