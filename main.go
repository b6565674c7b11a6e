package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	apihttp "residential-cloud/internal/api/http"
	assemblyapp "residential-cloud/internal/assembly/application"
	assemblyrepo "residential-cloud/internal/assembly/infrastructure/postgres"
	assemblyinterfaces "residential-cloud/internal/assembly/interfaces"
	"residential-cloud/internal/audit"
	"residential-cloud/internal/auth"
	billingapp "residential-cloud/internal/billing/application"
	"residential-cloud/internal/billing/infrastructure/formula"
	billingrepo "residential-cloud/internal/billing/infrastructure/postgres"
	billinginterfaces "residential-cloud/internal/billing/interfaces"
	"residential-cloud/internal/config"
	"residential-cloud/internal/eventing"
	eventingrepo "residential-cloud/internal/eventing/infrastructure/postgres"
	"residential-cloud/internal/observability/metrics"
	"residential-cloud/internal/tenant"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("service stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	policy, err := config.LoadPolicy(cfg.BillingPolicyFile)
	if err != nil {
		return err
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return err
	}

	metrics.Init(db, logger)
	directory := tenant.NewPostgresDirectory(db)
	gate := tenant.NewGate(directory)
	auditor := apihttp.NewAuditor(audit.NewRepository(db), logger)

	// Services write events to the outbox; the relay job forwards them.
	var downstream eventing.Publisher = eventing.NewLoggingPublisher(logger)
	if cfg.RabbitMQURL != "" {
		rabbit, err := eventing.NewRabbitPublisher(cfg.RabbitMQURL, cfg.RabbitMQExchange)
		if err != nil {
			return err
		}
		defer rabbit.Close()
		downstream = rabbit
	}
	outbox := eventingrepo.NewOutboxStore(db)
	relay := eventing.NewRelay(outbox, downstream, logger)
	emitter := eventing.NewEmitter(eventing.NewOutboxPublisher(outbox), logger)

	billingModule, billService, err := wireBilling(db, directory, gate, policy, emitter, auditor, logger)
	if err != nil {
		return err
	}
	assemblyModule, err := wireAssembly(db, directory, gate, policy, emitter, auditor, logger)
	if err != nil {
		return err
	}

	complexes, err := cfg.ScheduledComplexes()
	if err != nil {
		return err
	}
	scheduler, err := billinginterfaces.NewScheduler(billService, gate, relay, billingapp.SystemClock{}, logger, billinginterfaces.SchedulerConfig{
		BillingSpec: cfg.BillingCron,
		Complexes:   complexes,
		RelaySpec:   cfg.OutboxRelayCron,
	})
	if err != nil {
		return err
	}
	if err := scheduler.Start(); err != nil {
		return err
	}
	defer func() {
		<-scheduler.Stop().Done()
	}()

	authMiddleware := &auth.Middleware{
		Secret:   []byte(cfg.JWTSecret),
		Policy:   auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil),
		Disabled: cfg.AuthDisabled,
	}
	if cfg.AuthDisabled {
		logger.Warn("authentication disabled")
	}
	router := apihttp.NewRouter(apihttp.RouterConfig{
		Auth:           authMiddleware,
		Timeout:        cfg.HTTPTimeout,
		AllowedOrigins: cfg.AllowedOrigins(),
		Logger:         logger,
		Ready: func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return db.PingContext(ctx)
		},
	}, billingModule, assemblyModule)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", "addr", cfg.HTTPAddr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func wireBilling(
	db *sql.DB,
	directory tenant.Directory,
	gate *tenant.Gate,
	policy config.Policy,
	emitter *eventing.Emitter,
	auditor *apihttp.Auditor,
	logger *slog.Logger,
) (*billinginterfaces.Handler, *billingapp.BillService, error) {
	store, err := billingrepo.NewStore(db, "pgx", directory)
	if err != nil {
		return nil, nil, err
	}
	evaluator := formula.NewEvaluator()
	clock := billingapp.SystemClock{}

	fees, err := billingapp.NewFeeService(store, evaluator, clock)
	if err != nil {
		return nil, nil, err
	}
	bills, err := billingapp.NewBillService(store, evaluator,
		billingapp.WithBillEvents(emitter),
		billingapp.WithBillPolicy(policy),
		billingapp.WithBillClock(clock),
		billingapp.WithBillLogger(logger),
	)
	if err != nil {
		return nil, nil, err
	}
	payments, err := billingapp.NewPaymentService(store, emitter, clock, logger)
	if err != nil {
		return nil, nil, err
	}
	lateFees, err := billingapp.NewLateFeeService(store, policy, clock)
	if err != nil {
		return nil, nil, err
	}
	reports, err := billingapp.NewReportService(store)
	if err != nil {
		return nil, nil, err
	}
	handler, err := billinginterfaces.NewHandler(billinginterfaces.Services{
		Fees:     fees,
		Bills:    bills,
		Payments: payments,
		LateFees: lateFees,
		Reports:  reports,
	}, gate, auditor, logger)
	if err != nil {
		return nil, nil, err
	}
	return handler, bills, nil
}

func wireAssembly(
	db *sql.DB,
	directory tenant.Directory,
	gate *tenant.Gate,
	policy config.Policy,
	emitter *eventing.Emitter,
	auditor *apihttp.Auditor,
	logger *slog.Logger,
) (*assemblyinterfaces.Handler, error) {
	store, err := assemblyrepo.NewStore(db, "pgx", directory)
	if err != nil {
		return nil, err
	}
	service, err := assemblyapp.NewService(store,
		assemblyapp.WithPolicy(policy),
		assemblyapp.WithEvents(emitter),
		assemblyapp.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	return assemblyinterfaces.NewHandler(service, gate, auditor, logger)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
