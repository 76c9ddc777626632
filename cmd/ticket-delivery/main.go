// Command ticket-delivery runs the ticket email worker on its own, for
// deployments that scale delivery separately from the HTTP service.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"gameday-ticketing/internal/app"
	"gameday-ticketing/internal/config"
	"gameday-ticketing/internal/logger"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Log.Dir, "ticket-delivery", cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, cfg, log)
	stop()
	if err != nil {
		log.Error("APP", err.Error())
	}
	log.Close()
	if err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	if !cfg.Kafka.Enabled {
		return errors.New("KAFKA_ENABLED is false; the delivery worker has nothing to consume")
	}
	if cfg.Services.NotificationURL == "" {
		return errors.New("NOTIFICATION_SERVICE_URL not set")
	}

	cfg.Database.AutoMigrate = false
	a, err := app.Connect(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	orders, err := a.OrderService(a.TicketService(nil))
	if err != nil {
		return fmt.Errorf("failed to build order service: %w", err)
	}

	worker, consumer := a.DeliveryWorker(orders)
	defer consumer.Close()

	log.Info("APP", fmt.Sprintf("Delivering tickets from %s", cfg.Kafka.Topics.OrderCompleted))
	if err := worker.Run(ctx, consumer, cfg.Kafka.Topics.OrderCompleted); err != nil {
		return fmt.Errorf("delivery worker stopped: %w", err)
	}
	return nil
}
