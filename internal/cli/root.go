package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"ragline/features/ask"
	"ragline/features/document"
	"ragline/internal/app"
	"ragline/internal/config"
	"ragline/internal/logger"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:           "ragline",
	Short:         "Retrieval augmented question answering over your documents",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	// cobra prints to stderr unless an output is set.
	rootCmd.SetOut(os.Stdout)
	return rootCmd.Execute()
}

// session is the wired pipeline a one-shot command runs against.
type session struct {
	ingestor  document.Ingestor
	retriever ask.Service
	close     func()
}

// openSession is swapped in tests.
var openSession = func(ctx context.Context) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	// One-shot commands keep stdout for results.
	log := logger.New(os.Stderr, cfg.LogLevel)
	slog.SetDefault(log)

	a, closeAll, err := build(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	return &session{ingestor: a.Ingestion, retriever: a.Retrieval, close: closeAll}, nil
}

func build(ctx context.Context, cfg *config.Config, log *slog.Logger) (*app.App, func(), error) {
	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	providers, err := app.NewProviders(ctx, cfg)
	if err != nil {
		_ = deps.Close()
		return nil, nil, err
	}
	closeAll := func() {
		if err := providers.Close(); err != nil {
			log.Warn("failed to close providers", "error", err)
		}
		if err := deps.Close(); err != nil {
			log.Warn("failed to close dependencies", "error", err)
		}
	}

	a, err := app.New(cfg, deps, providers, log)
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	return a, closeAll, nil
}
