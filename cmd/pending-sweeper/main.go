// Command pending-sweeper fails pending orders whose payment never completed
// and releases their held seats. It runs once or on an interval.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gameday-ticketing/internal/app"
	"gameday-ticketing/internal/config"
	"gameday-ticketing/internal/logger"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	once := flag.Bool("once", false, "sweep a single time and exit")
	ttl := flag.Duration("ttl", cfg.Ticketing.PendingOrderTTL, "age after which a pending order is expired")
	interval := flag.Duration("interval", cfg.Ticketing.SweepInterval, "time between sweeps")
	flag.Parse()

	log, err := logger.NewLogger(cfg.Log.Dir, "pending-sweeper", cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, cfg, log, *once, *ttl, *interval)
	stop()
	if err != nil {
		log.Error("SWEEP", err.Error())
	}
	log.Close()
	if err != nil {
		os.Exit(1)
	}
}

// run returns instead of exiting so the connections are closed on every path.
func run(ctx context.Context, cfg *config.Config, log *logger.Logger, once bool, ttl, interval time.Duration) error {
	// The sweeper never applies migrations; the service owns the schema.
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
	orders.Settings.PendingOrderTTL = ttl

	if once {
		n, err := orders.ExpireStalePendingOrders(ctx, ttl)
		if err != nil {
			return err
		}
		log.Info("SWEEP", fmt.Sprintf("Expired %d pending orders older than %s", n, ttl))
		return nil
	}

	orders.RunSweeper(ctx, interval)
	return nil
}
