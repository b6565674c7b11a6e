package interfaces

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"residential-cloud/internal/billing/application"
	billing "residential-cloud/internal/billing/domain"
	"residential-cloud/internal/observability/metrics"
	"residential-cloud/internal/tenant"
)

const relayBatchSize = 100

// Dispatcher drains pending outbox events.
type Dispatcher interface {
	Dispatch(ctx context.Context, limit int) (int, error)
}

// SchedulerConfig configures the billing jobs.
type SchedulerConfig struct {
	BillingSpec string
	Complexes   []int64
	RelaySpec   string
	JobTimeout  time.Duration
}

// Scheduler runs monthly bill generation and the outbox relay on cron
// schedules.
type Scheduler struct {
	cron   *cron.Cron
	bills  *application.BillService
	gate   PlanGate
	relay  Dispatcher
	clock  application.Clock
	logger *slog.Logger
	config SchedulerConfig
}

// NewScheduler constructs a scheduler. relay may be nil when no outbox is
// configured.
func NewScheduler(bills *application.BillService, gate PlanGate, relay Dispatcher, clock application.Clock, logger *slog.Logger, cfg SchedulerConfig) (*Scheduler, error) {
	if bills == nil {
		return nil, errors.New("billing scheduler: nil bill service")
	}
	if gate == nil {
		return nil, errors.New("billing scheduler: nil plan gate")
	}
	if clock == nil {
		clock = application.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 5 * time.Minute
	}
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	return &Scheduler{
		cron:   cron.New(cron.WithChain(cron.Recover(cronLogger))),
		bills:  bills,
		gate:   gate,
		relay:  relay,
		clock:  clock,
		logger: logger,
		config: cfg,
	}, nil
}

// Start registers the jobs and starts the cron scheduler.
func (s *Scheduler) Start() error {
	if s.config.BillingSpec != "" && len(s.config.Complexes) > 0 {
		if _, err := s.cron.AddFunc(s.config.BillingSpec, s.runBillingJob); err != nil {
			return err
		}
		s.logger.Info("scheduled bill generation job", "schedule", s.config.BillingSpec, "complexes", len(s.config.Complexes))
	}
	if s.relay != nil && s.config.RelaySpec != "" {
		if _, err := s.cron.AddFunc(s.config.RelaySpec, s.runRelayJob); err != nil {
			return err
		}
		s.logger.Info("scheduled outbox relay job", "schedule", s.config.RelaySpec)
	}
	s.cron.Start()
	return nil
}

// Stop stops the scheduler; the returned context is done when running jobs
// have finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) runBillingJob() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.JobTimeout)
	defer cancel()
	s.GenerateCurrentPeriod(ctx)
}

func (s *Scheduler) runRelayJob() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.JobTimeout)
	defer cancel()
	s.RelayOutbox(ctx)
}

// GenerateCurrentPeriod generates the bills of the current period for every
// configured complex. Complexes that already have bills for the period are
// skipped. It returns the number of complexes billed.
func (s *Scheduler) GenerateCurrentPeriod(ctx context.Context) int {
	period := billing.CurrentPeriod(s.clock.Now())
	s.logger.Info("starting bill generation job", "period", period.String())
	billed := 0
	for _, complexID := range s.config.Complexes {
		err := s.generate(ctx, complexID, period)
		result := metrics.ResultOf(err)
		metrics.IncSchedulerRun("bill_generation", result)
		switch {
		case err == nil:
			billed++
		case errors.Is(err, billing.ErrDuplicateBill):
			s.logger.Info("bills already generated", "complex_id", complexID, "period", period.String())
		default:
			s.logger.Error("bill generation failed", "complex_id", complexID, "period", period.String(), "error", err)
		}
	}
	s.logger.Info("bill generation job finished", "period", period.String(), "billed", billed)
	return billed
}

func (s *Scheduler) generate(ctx context.Context, complexID int64, period billing.BillingPeriod) error {
	authz, err := s.gate.Authorize(ctx, complexID, tenant.FeatureBilling)
	if err != nil {
		return err
	}
	_, err = s.bills.Generate(ctx, complexID, period, authz)
	return err
}

// RelayOutbox forwards one batch of pending events.
func (s *Scheduler) RelayOutbox(ctx context.Context) int {
	if s.relay == nil {
		return 0
	}
	sent, err := s.relay.Dispatch(ctx, relayBatchSize)
	metrics.IncSchedulerRun("outbox_relay", metrics.ResultOf(err))
	if err != nil {
		s.logger.Error("outbox relay failed", "error", err)
	}
	return sent
}
