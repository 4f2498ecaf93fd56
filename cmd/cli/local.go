package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yourusername/vidsplit-go/internal/app"
	"github.com/yourusername/vidsplit-go/internal/domain"
	"github.com/yourusername/vidsplit-go/internal/infrastructure"
	"github.com/yourusername/vidsplit-go/internal/server"
	"github.com/yourusername/vidsplit-go/pkg/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the server in the foreground",
	Run: func(cmd *cobra.Command, args []string) {
		config, err := app.LoadConfig(configPath)
		exitOnError(err)

		log, err := server.NewLogger(config.Logging)
		exitOnError(err)
		defer log.Sync()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		components, err := server.Build(ctx, config, log)
		exitOnError(err)
		defer components.Close()

		exitOnError(components.Serve(ctx))
	},
}

var splitCmd = &cobra.Command{
	Use:   "split [file]",
	Short: "Split a local video into parts under the size limit",
	Long: `Split a local video into parts under the size limit.

Parts are written next to the source as <name>_part<N>.mp4. The source file
is left untouched.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		config, err := app.LoadConfig(configPath)
		exitOnError(err)

		limitMB, _ := cmd.Flags().GetFloat64("limit-mb")
		limit := config.Transport.LimitBytes
		if limitMB > 0 {
			limit = int64(limitMB * 1024 * 1024)
		}

		log := cliLogger(config)
		defer log.Sync()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		parts, err := splitLocalFile(ctx, config, args[0], limit, log)
		exitOnError(err)

		fmt.Printf("Split into %d parts:\n", len(parts))
		for i, p := range parts {
			fmt.Printf("  %d. %s (%s)\n", i+1, p.Path, domain.FormatSize(p.Size))
		}
	},
}

var fetchCmd = &cobra.Command{
	Use:   "fetch [url]",
	Short: "Run a session in-process and move the result to the completed directory",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		config, err := app.LoadConfig(configPath)
		exitOnError(err)

		if notify, _ := cmd.Flags().GetBool("notify"); notify {
			config.Notification.Enabled = true
		}
		// in-process sessions stay off the shared registry and cache
		config.Session.Registry = "memory"
		config.Cache.Enabled = false

		log := cliLogger(config)
		defer log.Sync()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		components, err := server.Build(context.Background(), config, log)
		exitOnError(err)
		defer components.Close()

		handle, err := components.Coordinator.Submit(ctx, app.SubmitRequest{
			RequesterID: "cli",
			URL:         args[0],
			OnStage: func(s domain.Session) {
				fmt.Fprintf(os.Stderr, "%s...\n", s.Stage)
			},
		})
		exitOnError(err)

		// Ctrl-C cancels the session; the outcome is still reported
		go func() {
			<-ctx.Done()
			_ = components.Coordinator.Cancel("cli")
		}()

		outcome, err := handle.Wait(context.Background())
		exitOnError(err)

		printOutcome(os.Stdout, outcome)
		if outcome.Kind != domain.OutcomeDelivered {
			os.Exit(1)
		}
	},
}

func init() {
	splitCmd.Flags().Float64("limit-mb", 0, "Part size limit in MB (defaults to transport.limit_bytes)")
	fetchCmd.Flags().Bool("notify", false, "Show a desktop notification when the session finishes")
}

// splitLocalFile splits path in place. The directory holding path becomes the
// guarded work directory for the parts.
func splitLocalFile(ctx context.Context, config *domain.Config, path string, limit int64, log *zap.Logger) ([]domain.LocalMediaFile, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	guard, err := infrastructure.NewPathGuard(filepath.Dir(abs))
	if err != nil {
		return nil, err
	}

	size, err := guard.Stat(abs)
	if err != nil {
		return nil, err
	}
	if size <= limit {
		return nil, fmt.Errorf("%s is %s, already within %s", filepath.Base(abs), domain.FormatSize(size), domain.FormatSize(limit))
	}

	runner := infrastructure.NewExecRunner()
	tool := infrastructure.NewFFmpeg(&config.Split, runner, infrastructure.NewProcessLog(config.Download.LogsDir()))
	splitter := app.NewSplitter(tool, guard, &config.Split, log)

	source := domain.LocalMediaFile{Path: guard.Join(filepath.Base(abs)), Size: size}
	checkpoint := func() error {
		if ctx.Err() != nil {
			return domain.ErrCancelled
		}
		return nil
	}

	return splitter.Split(context.Background(), source, limit, checkpoint)
}

func cliLogger(config *domain.Config) *zap.Logger {
	log, err := logger.New(logger.Config{
		Level:      config.Logging.Level,
		Format:     "console",
		OutputPath: "stderr",
	})
	if err != nil {
		return zap.NewNop()
	}
	return log
}
