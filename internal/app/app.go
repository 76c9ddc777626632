// Package app builds the shared runtime graph used by the HTTP service and
// the auxiliary binaries under cmd/.
package app

import (
	"context"
	"fmt"
	"net/http"

	"gameday-ticketing/internal/auth"
	"gameday-ticketing/internal/config"
	"gameday-ticketing/internal/database"
	"gameday-ticketing/internal/database/migrations"
	"gameday-ticketing/internal/delivery"
	"gameday-ticketing/internal/fees"
	"gameday-ticketing/internal/kafka"
	"gameday-ticketing/internal/logger"
	"gameday-ticketing/internal/order"
	orderdb "gameday-ticketing/internal/order/db"
	orderredis "gameday-ticketing/internal/order/redis"
	"gameday-ticketing/internal/payment"
	ticketdb "gameday-ticketing/internal/tickets/db"
	tickets "gameday-ticketing/internal/tickets/service"

	"github.com/go-redis/redis/v8"
	"github.com/uptrace/bun"
)

// App owns the connections. Services are built from it on demand.
type App struct {
	Config   *config.Config
	Log      *logger.Logger
	DB       *bun.DB
	Redis    *redis.Client
	Producer *kafka.Producer
	Tokens   *auth.TokenProvider
	HTTP     *http.Client
}

// Connect opens PostgreSQL and Redis, applies migrations when enabled and
// prepares the Kafka producer.
func Connect(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	bunDB, err := database.Open(ctx, cfg.Database, log)
	if err != nil {
		return nil, err
	}

	if cfg.Database.AutoMigrate {
		// The runner is not closed: its driver would close the shared pool.
		if err := migrations.NewRunner(bunDB, cfg.Database.MigrationsDir, log).Up(); err != nil {
			bunDB.Close()
			return nil, err
		}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		bunDB.Close()
		return nil, fmt.Errorf("redis connection error: %w", err)
	}
	log.Info("REDIS", fmt.Sprintf("Connected to Redis at %s (DB: %d)", cfg.Redis.Addr, cfg.Redis.DB))

	a := &App{
		Config: cfg,
		Log:    log,
		DB:     bunDB,
		Redis:  rdb,
		HTTP:   &http.Client{Timeout: cfg.Services.Timeout},
	}

	if cfg.Kafka.Enabled {
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, cfg.Kafka.Topics.All(), log); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}
		a.Producer = kafka.NewProducer(cfg.Kafka.Brokers, log)
		log.Info("KAFKA", fmt.Sprintf("Producer ready for %v", cfg.Kafka.Brokers))
	} else {
		log.Warn("KAFKA", "Kafka disabled, order and scan events will not be published")
	}

	if cfg.Auth.KeycloakURL != "" && cfg.Auth.ClientID != "" {
		a.Tokens = auth.NewTokenProvider(auth.M2MConfig{
			KeycloakURL:   cfg.Auth.KeycloakURL,
			KeycloakRealm: cfg.Auth.KeycloakRealm,
			ClientID:      cfg.Auth.ClientID,
			ClientSecret:  cfg.Auth.ClientSecret,
		}, a.HTTP, auth.NewRedisTokenCache(rdb), log)
	}

	return a, nil
}

func (a *App) Close() {
	if a.Producer != nil {
		if err := a.Producer.Close(); err != nil {
			a.Log.Warn("KAFKA", fmt.Sprintf("Failed to close producer: %v", err))
		}
	}
	if err := a.Redis.Close(); err != nil {
		a.Log.Warn("REDIS", fmt.Sprintf("Failed to close client: %v", err))
	}
	if err := a.DB.Close(); err != nil {
		a.Log.Warn("DATABASE", fmt.Sprintf("Failed to close database: %v", err))
	}
}

func (a *App) tokenSource() delivery.TokenSource {
	if a.Tokens == nil {
		return nil
	}
	return a.Tokens
}

// TicketService wires scanning and ticket lookup. broadcaster may be nil.
func (a *App) TicketService(broadcaster tickets.ScanBroadcaster) *tickets.TicketService {
	svc := tickets.NewTicketService(&ticketdb.DB{Bun: a.DB}, a.Log, a.Config.Ticketing.Location())
	svc.Broadcaster = broadcaster
	if a.Producer != nil {
		svc.Events = a.Producer
		svc.ScanTopic = a.Config.Kafka.Topics.TicketScanned
	}
	if a.Config.Services.WalletURL != "" {
		svc.Wallet = delivery.NewWalletClient(a.Config.Services.WalletURL, a.HTTP, a.tokenSource())
	}
	return svc
}

func (a *App) ConfigService() *tickets.ConfigService {
	return tickets.NewConfigService(&ticketdb.DB{Bun: a.DB}, a.Config.Ticketing.DefaultMaxPerOrder, a.Log)
}

// OrderService wires checkout, capture and the sweeper against Stripe.
func (a *App) OrderService(ticketService *tickets.TicketService) (*order.OrderService, error) {
	cfg := a.Config

	calc, err := fees.NewCalculator(cfg.Fees.Percent, cfg.Fees.FixedPerTicket)
	if err != nil {
		return nil, err
	}

	stripeGateway, err := payment.NewStripeGateway(cfg.Stripe.SecretKey, cfg.Stripe.Currency, nil, a.Log)
	if err != nil {
		return nil, err
	}
	gateway := payment.NewResilient(stripeGateway, cfg.Stripe.RequestTimeout, cfg.Stripe.RetryDelay, a.Log)

	svc := order.NewOrderService(
		&orderdb.DB{Bun: a.DB},
		&ticketdb.DB{Bun: a.DB},
		ticketService,
		gateway,
		orderredis.NewRedis(a.Redis, cfg.Redis.CaptureLockTTL),
		calc,
		order.Settings{
			Currency:           cfg.Stripe.Currency,
			DefaultMaxPerOrder: cfg.Ticketing.DefaultMaxPerOrder,
			PendingOrderTTL:    cfg.Ticketing.PendingOrderTTL,
			SweepBatchSize:     cfg.Ticketing.SweepBatchSize,
			CompletedTopic:     cfg.Kafka.Topics.OrderCompleted,
			FailedTopic:        cfg.Kafka.Topics.OrderFailed,
		},
		a.Log,
	)
	if a.Producer != nil {
		svc.Events = a.Producer
	}
	if cfg.Services.NotificationURL != "" {
		svc.Notifier = delivery.NewHTTPNotifier(cfg.Services.NotificationURL, a.HTTP, a.tokenSource(), a.Log)
	} else {
		a.Log.Warn("DELIVERY", "NOTIFICATION_SERVICE_URL not set, tickets will not be emailed")
	}
	return svc, nil
}

// DeliveryWorker consumes completed orders and emails their tickets.
func (a *App) DeliveryWorker(orders *order.OrderService) (*delivery.Worker, *kafka.Consumer) {
	topic := a.Config.Kafka.Topics.OrderCompleted
	consumer := kafka.NewConsumer(a.Config.Kafka.Brokers, topic, a.Config.Kafka.GroupID, a.Log)
	return delivery.NewWorker(orders, a.Log), consumer
}
