package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	httpapi "github.com/estate-hub/estate-hub/internal/api/http"
	adminapp "github.com/estate-hub/estate-hub/internal/application/admin"
	assignmentapp "github.com/estate-hub/estate-hub/internal/application/assignment"
	auditapp "github.com/estate-hub/estate-hub/internal/application/audit"
	offerapp "github.com/estate-hub/estate-hub/internal/application/offer"
	"github.com/estate-hub/estate-hub/internal/application/policy"
	propertyapp "github.com/estate-hub/estate-hub/internal/application/property"
	reservationapp "github.com/estate-hub/estate-hub/internal/application/reservation"
	"github.com/estate-hub/estate-hub/internal/application/sweep"
	"github.com/estate-hub/estate-hub/internal/application/txn"
	visitapp "github.com/estate-hub/estate-hub/internal/application/visit"
	"github.com/estate-hub/estate-hub/internal/config"
	"github.com/estate-hub/estate-hub/internal/domain/notification"
	"github.com/estate-hub/estate-hub/internal/domain/property"
	"github.com/estate-hub/estate-hub/internal/domain/store"
	"github.com/estate-hub/estate-hub/internal/infrastructure/memory"
	"github.com/estate-hub/estate-hub/internal/infrastructure/mq"
	"github.com/estate-hub/estate-hub/internal/infrastructure/omise"
	otpinfra "github.com/estate-hub/estate-hub/internal/infrastructure/otp"
	"github.com/estate-hub/estate-hub/internal/infrastructure/postgres"
	"github.com/estate-hub/estate-hub/internal/infrastructure/redis"
	"github.com/estate-hub/estate-hub/internal/infrastructure/sse"
	"github.com/estate-hub/estate-hub/internal/infrastructure/tracing"
	"github.com/estate-hub/estate-hub/internal/migrations"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("config error")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(level)
	}
	signingKey, _ := cfg.AuditSigningKey()
	if signingKey == nil {
		logger.Warn().Msg("AUDIT_SIGNING_KEY not set; audit entries will not be signed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, "estate-hub", cfg.OTLPEndpoint)
	if err != nil {
		logger.Fatal().Err(err).Msg("tracing error")
	}

	// store
	var st store.Store
	switch cfg.StoreDriver {
	case "memory":
		logger.Warn().Msg("using in-memory store; state is lost on exit")
		st = memory.NewStore()
	default:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, cfg.MaxConns)
		if err != nil {
			logger.Fatal().Err(err).Msg("db error")
		}
		defer pool.Close()
		if err := postgres.RunMigrations(ctx, pool, migrations.FS); err != nil {
			logger.Fatal().Err(err).Msg("migration error")
		}
		st = postgres.NewStore(pool)
	}

	// notification fan-out
	hub := sse.NewHub()
	defer hub.Stop()
	publishers := notification.Fanout{hub}

	var otpSender otpinfra.Sender = otpinfra.LogSender{Logger: logger}
	if cfg.RabbitMQURL != "" {
		pub, err := mq.NewPublisher(cfg.RabbitMQURL, cfg.NotifyExchange)
		if err != nil {
			logger.Fatal().Err(err).Msg("rabbitmq error")
		}
		defer pub.Close()
		publishers = append(publishers, pub)
		otpSender = pub
	} else {
		logger.Warn().Msg("RABBITMQ_URL not set; OTP codes are written to the log")
	}

	var index *redis.SearchIndex
	if cfg.RedisAddr != "" {
		client := redis.NewClient(cfg.RedisAddr, cfg.RedisPassword)
		defer client.Close()
		index = redis.NewSearchIndex(client)
		if err := rebuildIndex(ctx, st, index); err != nil {
			logger.Warn().Err(err).Msg("search index rebuild failed; searches fall back to the database")
		}
		publishers = append(publishers, index)
	}

	gateway, err := omise.FromKeys(cfg.OmisePublicKey, cfg.OmiseSecretKey, cfg.PaymentCurrency, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("payment gateway error")
	}
	issuer := otpinfra.NewIssuer(otpSender, cfg.OTPTTL, logger)

	lowball, err := policy.NewLowballRule(cfg.LowballRule)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid LOWBALL_RULE")
	}

	// services
	runner := txn.NewRunner(st, publishers, signingKey, logger)
	var searchIndex propertyapp.SearchIndex
	if index != nil {
		searchIndex = index
	}
	services := httpapi.Services{
		Properties:  propertyapp.NewService(runner, searchIndex, logger),
		Assignments: assignmentapp.NewService(runner, logger),
		Visits:      visitapp.NewService(runner, issuer, cfg.MaxCounterRounds, logger),
		Offers: offerapp.NewService(runner, lowball, offerapp.Config{
			TTL:                   cfg.OfferTTL,
			MaxCounterRounds:      cfg.MaxCounterRounds,
			RequireCompletedVisit: cfg.RequireCompletedVisit,
		}, logger),
		Reservations: reservationapp.NewService(runner, gateway, issuer, cfg.ReservationWindow, logger),
		Admin:        adminapp.NewService(runner, logger),
		Audit:        auditapp.NewService(st.Repos().Audit, signingKey, logger),
	}

	// background sweeps
	scheduler := sweep.NewScheduler(cfg.SweepInterval, logger,
		sweep.Job{Name: "offer_expiry", Run: services.Offers.ExpireLapsed},
		sweep.Job{Name: "orphaned_acceptances", Run: services.Offers.DetectOrphanedAcceptances},
		sweep.Job{Name: "reservation_expiry", Run: services.Reservations.ExpireLapsed},
		sweep.Job{Name: "sla_breaches", Run: services.Assignments.DetectSLABreaches},
	)
	go scheduler.Start(ctx)

	apiServer := httpapi.NewServer(services, hub, []byte(cfg.JWTSecret), logger)
	httpServer := &http.Server{
		Addr:        cfg.ServerAddr,
		Handler:     apiServer.Router(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.ServerAddr).Str("store", cfg.StoreDriver).Msg("http server started")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	// graceful shutdown
	<-ctx.Done()
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctxShutdown)
	_ = shutdownTracing(ctxShutdown)
	logger.Info().Msg("shut down")
}

func rebuildIndex(ctx context.Context, st store.Store, index *redis.SearchIndex) error {
	const batch = 500
	var active []*property.Property
	for offset := 0; ; offset += batch {
		page, err := st.Repos().Properties.ListByStatus(ctx, property.StatusActive, batch, offset)
		if err != nil {
			return err
		}
		active = append(active, page...)
		if len(page) < batch {
			break
		}
	}
	return index.Rebuild(ctx, active)
}
