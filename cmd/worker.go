package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/skillmatch/internal/store"
	"github.com/spigell/skillmatch/internal/worker"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume standardization and match requests from RabbitMQ",
	Run: func(_ *cobra.Command, _ []string) {
		logger, config := setup()
		if err := runWorker(config, logger); err != nil {
			logger.Fatal("running the worker", zap.Error(err))
		}
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(config *Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var db *store.DB
	if config.Database != nil && (config.Database.URL != "" || config.Database.URLFile != "") {
		var err error
		if db, err = openStore(ctx, config); err != nil {
			return err
		}
		defer db.Close()
	} else {
		logger.Info("no database configured, results are not stored")
	}

	svc, err := newService(ctx, config, db, true, logger)
	if err != nil {
		return err
	}

	consumer := worker.NewConsumer(config.Worker.AMQP, worker.NewHandler(svc, logger), logger)
	if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}

	logger.Info("worker stopped")
	return nil
}
