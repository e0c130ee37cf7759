package bootstrap

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/booking-engine/internal/appointments"
	"github.com/wolfman30/booking-engine/internal/assignment"
	"github.com/wolfman30/booking-engine/internal/availability"
	appconfig "github.com/wolfman30/booking-engine/internal/config"
	"github.com/wolfman30/booking-engine/internal/directory"
	"github.com/wolfman30/booking-engine/internal/events"
	"github.com/wolfman30/booking-engine/internal/generation"
	"github.com/wolfman30/booking-engine/internal/observability/metrics"
	"github.com/wolfman30/booking-engine/internal/orgconfig"
	"github.com/wolfman30/booking-engine/internal/reservation"
	"github.com/wolfman30/booking-engine/internal/slotfinder"
	"github.com/wolfman30/booking-engine/pkg/logging"
)

// ConfigStore reads and writes business configurations.
type ConfigStore interface {
	orgconfig.Provider
	Set(ctx context.Context, cfg *orgconfig.BusinessConfiguration) error
}

// Backends are the external clients a production stack runs on. Any of them
// may be nil when UseMemoryStores is set.
type Backends struct {
	Redis    *redis.Client
	Postgres *pgxpool.Pool
	Dynamo   *dynamodb.Client
	SQS      *sqs.Client
}

// Stack is the wired booking core.
type Stack struct {
	Availability *availability.Service
	Directory    directory.Directory
	Configs      ConfigStore
	Finder       *slotfinder.Finder
	Generator    *generation.Generator
	Ledger       reservation.Ledger
	Reservations *reservation.Manager
	Sweeper      *reservation.Sweeper
	Appointments *appointments.Service
	// Deliverer is nil in memory mode.
	Deliverer *events.Deliverer
	Metrics   *metrics.BookingMetrics
}

// BuildStack wires the booking core onto memory stores or onto b, depending
// on cfg.UseMemoryStores.
func BuildStack(cfg *appconfig.Config, b Backends, reg prometheus.Registerer, logger *logging.Logger) (*Stack, error) {
	if cfg == nil {
		return nil, errors.New("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	var (
		availStore availability.Store
		dir        directory.Directory
		configs    ConfigStore
		ledger     reservation.Ledger
		repo       appointments.Repository
		outbox     *events.OutboxStore
	)
	if cfg.UseMemoryStores {
		logger.Warn("using in-memory stores; data is lost on restart")
		availStore = availability.NewMemoryStore()
		dir = directory.NewMemoryRepository()
		configs = orgconfig.NewMemoryStore()
		ledger = reservation.NewMemoryLedger()
		repo = appointments.NewMemoryRepository()
	} else {
		if b.Redis == nil || b.Postgres == nil || b.Dynamo == nil {
			return nil, errors.New("bootstrap: redis, postgres and dynamodb are required unless USE_MEMORY_STORES is set")
		}
		availStore = availability.NewDynamoStore(b.Dynamo, cfg.AvailabilityTable, logger)
		dir = directory.NewPostgresRepository(b.Postgres)
		configs = orgconfig.NewRedisStore(b.Redis)
		ledger = reservation.NewRedisLedger(b.Redis)
		repo = appointments.NewPostgresRepository(b.Postgres)
		outbox = events.NewOutboxStore(b.Postgres)
	}

	bookingMetrics := metrics.NewBookingMetrics(reg)
	avail := availability.NewService(availStore, logger, availability.WithMaxAttempts(cfg.MutationMaxAttempts))
	finder := slotfinder.New(avail, dir, logger, slotfinder.Options{MergeAdjacent: cfg.MergeAdjacentSlots})
	manager := reservation.NewManager(finder, avail, ledger, logger)

	apptOpts := []appointments.Option{appointments.WithSink(bookingMetrics)}
	if outbox != nil {
		apptOpts = append(apptOpts, appointments.WithPublisher(outbox))
	}
	appts := appointments.NewService(repo, configs, assignment.New(finder, logger), manager, logger, apptOpts...)

	gen := generation.New(avail, dir, configs, logger,
		generation.WithLivenessChecker(appts),
		generation.WithSink(bookingMetrics),
		generation.WithDefaultSlotMinutes(cfg.DefaultSlotMinutes),
	)
	sweeper := reservation.NewSweeper(ledger, manager, appts, cfg.ReservationTTL, logger,
		reservation.WithObserver(bookingMetrics))

	stack := &Stack{
		Availability: avail,
		Directory:    dir,
		Configs:      configs,
		Finder:       finder,
		Generator:    gen,
		Ledger:       ledger,
		Reservations: manager,
		Sweeper:      sweeper,
		Appointments: appts,
		Metrics:      bookingMetrics,
	}
	if outbox != nil {
		stack.Deliverer = events.NewDeliverer(outbox, deliveryHandler(cfg, b, logger), logger).
			WithInterval(cfg.OutboxPollInterval)
	}
	return stack, nil
}

// deliveryHandler publishes to SQS when a queue is configured and logs
// otherwise.
func deliveryHandler(cfg *appconfig.Config, b Backends, logger *logging.Logger) events.DeliveryHandler {
	if b.SQS != nil && cfg.NotificationQueueURL != "" {
		return events.NewSQSHandler(b.SQS, cfg.NotificationQueueURL)
	}
	return events.LogHandler{Logger: logger}
}
