package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/yourusername/vidsplit-go/api"
	"github.com/yourusername/vidsplit-go/internal/app"
	"github.com/yourusername/vidsplit-go/internal/bot"
	"github.com/yourusername/vidsplit-go/internal/domain"
	"github.com/yourusername/vidsplit-go/internal/infrastructure"
	"github.com/yourusername/vidsplit-go/internal/source"
	"github.com/yourusername/vidsplit-go/pkg/logger"
)

const shutdownTimeout = 30 * time.Second

// Components holds the wired session pipeline
type Components struct {
	Config      *domain.Config
	Logger      *zap.Logger
	MultiLogger *logger.MultiLogger
	Guard       *infrastructure.PathGuard
	YTDLP       *infrastructure.YTDLP
	FFmpeg      *infrastructure.FFmpeg
	Notifier    *infrastructure.NotificationService
	Fetcher     *app.Fetcher
	Splitter    *app.Splitter
	Coordinator *app.Coordinator

	closers []func() error
}

// NewLogger creates the process logger from logging configuration
func NewLogger(config domain.LoggingConfig) (*zap.Logger, error) {
	return logger.New(logger.Config{
		Level:      config.Level,
		Format:     config.Format,
		OutputPath: config.OutputPath,
		MaxSizeMB:  config.MaxSizeMB,
		MaxBackups: config.MaxBackups,
		MaxAgeDays: config.MaxAgeDays,
		Compress:   config.Compress,
	})
}

// Build creates the directories and wires every component. The returned
// components must be closed.
func Build(ctx context.Context, config *domain.Config, log *zap.Logger) (*Components, error) {
	if err := createDirectories(config); err != nil {
		return nil, err
	}

	c := &Components{Config: config, Logger: log}

	multiLog, err := logger.NewMultiLogger(logger.MultiLoggerConfig{
		Level:   config.Logging.Level,
		LogsDir: config.Download.LogsDir(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize category logs: %w", err)
	}
	c.MultiLogger = multiLog
	c.closers = append(c.closers, multiLog.Close)

	guard, err := infrastructure.NewPathGuard(config.Download.IncomingDir())
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Guard = guard

	runner := infrastructure.NewExecRunner()
	processLog := infrastructure.NewProcessLog(config.Download.LogsDir())

	c.YTDLP = infrastructure.NewYTDLP(&config.Download, runner, processLog, log)
	c.FFmpeg = infrastructure.NewFFmpeg(&config.Split, runner, processLog)
	c.Notifier = infrastructure.NewNotificationService(&config.Notification, runner, log)

	var prober domain.MetadataProber = c.YTDLP
	if config.Cache.Enabled {
		cache, err := infrastructure.NewSQLiteProbeCache(config.Cache.DatabasePath)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.closers = append(c.closers, cache.Close)

		if pruned, err := cache.Prune(config.Cache.TTL); err != nil {
			log.Warn("Failed to prune probe cache", zap.Error(err))
		} else if pruned > 0 {
			log.Info("Pruned probe cache", zap.Int64("entries", pruned))
		}
		if count, err := cache.Count(); err == nil {
			log.Info("Probe cache opened",
				zap.String("path", config.Cache.DatabasePath),
				zap.Int64("entries", count))
		}
		prober = infrastructure.NewCachingProber(c.YTDLP, cache, config.Cache.TTL, log)
	}

	registry, err := newRegistry(ctx, c, log)
	if err != nil {
		c.Close()
		return nil, err
	}

	var reporter domain.Reporter = infrastructure.NewCompletedDirReporter(guard, config.Download.CompletedDir(), log)
	if config.Notification.Enabled {
		reporter = infrastructure.NewNotifyingReporter(c.Notifier, reporter)
	}

	c.Fetcher = app.NewFetcher(c.YTDLP, guard, log)
	c.Splitter = app.NewSplitter(c.FFmpeg, guard, &config.Split, log)

	resolver := source.NewResolver(source.DefaultHandlers(source.PolicyFromConfig(config.Transport))...)
	c.Coordinator = app.NewCoordinator(
		resolver,
		prober,
		c.Fetcher,
		c.Splitter,
		registry,
		guard,
		reporter,
		config,
		multiLog,
		log,
	)

	return c, nil
}

func newRegistry(ctx context.Context, c *Components, log *zap.Logger) (domain.SessionRegistry, error) {
	switch c.Config.Session.Registry {
	case "redis":
		registry, err := infrastructure.NewRedisRegistry(ctx, &c.Config.Session, log)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, registry.Close)
		log.Info("Using redis session registry", zap.String("addr", c.Config.Session.RedisAddr))
		return registry, nil
	default:
		return infrastructure.NewMemoryRegistry(), nil
	}
}

// Serve runs the HTTP API and, when enabled, the Telegram bot until ctx is
// done or one of them fails. Sessions are drained before it returns.
func (c *Components) Serve(ctx context.Context) error {
	log := c.Logger

	router := api.SetupRouter(api.RouterDeps{
		Sessions:    c.Coordinator,
		YTDLP:       c.YTDLP,
		MultiLogger: c.MultiLogger,
		Logger:      log,
	})

	addr := fmt.Sprintf("%s:%d", c.Config.Server.Host, c.Config.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	errCh := make(chan error, 2)

	go func() {
		log.Info("HTTP server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	botCtx, botCancel := context.WithCancel(ctx)
	defer botCancel()

	if c.Config.Telegram.Enabled {
		client, err := tgbotapi.NewBotAPI(c.Config.Telegram.Token)
		if err != nil {
			_ = srv.Close()
			return fmt.Errorf("failed to connect to Telegram: %w", err)
		}
		log.Info("Telegram bot authorized", zap.String("username", client.Self.UserName))

		b := bot.New(client, c.Coordinator, &c.Config.Telegram, log)
		go func() {
			if err := b.Run(botCtx); err != nil {
				errCh <- fmt.Errorf("telegram bot: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("Received shutdown signal")
	case runErr = <-errCh:
		log.Error("Component failed", zap.Error(runErr))
	}

	log.Info("Shutting down server...")
	botCancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := c.Coordinator.Shutdown(shutdownCtx); err != nil {
		log.Error("Sessions did not drain before timeout", zap.Error(err))
	}

	log.Info("Server exited")
	return runErr
}

// Close stops the coordinator and releases stores in reverse order
func (c *Components) Close() error {
	if c.Coordinator != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		_ = c.Coordinator.Shutdown(ctx)
		cancel()
	}

	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

func createDirectories(config *domain.Config) error {
	dirs := []string{
		config.Download.BaseDir,
		config.Download.IncomingDir(),
		config.Download.CompletedDir(),
		config.Download.LogsDir(),
	}
	if config.Cache.Enabled {
		dirs = append(dirs, filepath.Dir(config.Cache.DatabasePath))
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
