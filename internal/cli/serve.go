package cli

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ragline/internal/config"
	"ragline/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the reindex worker",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(os.Stdout, cfg.LogLevel)
	slog.SetDefault(log)

	a, closeAll, err := build(ctx, cfg, log)
	if err != nil {
		log.Error("failed to bootstrap", "error", err)
		return err
	}
	defer closeAll()

	if cfg.EnableWorker {
		consumer, err := a.StartReindexWorker(cfg.NSQLookupd)
		if err != nil {
			log.Error("failed to start reindex worker", "error", err)
			return err
		}
		defer consumer.Stop()
		log.Info("reindex worker started", "topic", config.TopicReindex, "channel", config.ChannelReindex)
	}

	return a.Run(ctx)
}

