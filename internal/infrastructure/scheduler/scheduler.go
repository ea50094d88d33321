// Package scheduler runs periodic pointer reconciliation and balance refresh.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"vault_aggregator/internal/app/port"

	"github.com/go-co-op/gocron/v2"
)

// Options configures the periodic jobs. A zero interval disables that job.
type Options struct {
	ReconcileInterval time.Duration
	RefreshInterval   time.Duration
	FiatCurrency      string
	ChainTimeout      time.Duration
}

// Scheduler wraps a gocron scheduler around the coordinator and aggregator.
type Scheduler struct {
	sched       gocron.Scheduler
	coordinator port.MigrationCoordinator
	repo        port.VaultRepository
	aggregator  port.BalanceAggregator
	opts        Options
	logger      port.Logger
}

// New creates the scheduler and registers the enabled jobs. Call Start to run them.
func New(
	coordinator port.MigrationCoordinator,
	repo port.VaultRepository,
	aggregator port.BalanceAggregator,
	opts Options,
	l port.Logger,
) (*Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	s := &Scheduler{
		sched:       sched,
		coordinator: coordinator,
		repo:        repo,
		aggregator:  aggregator,
		opts:        opts,
		logger:      l,
	}

	if opts.ReconcileInterval > 0 {
		if _, err := sched.NewJob(
			gocron.DurationJob(opts.ReconcileInterval),
			gocron.NewTask(s.RunReconcile, context.Background()),
			gocron.WithName("reconcile-pointers"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		); err != nil {
			return nil, fmt.Errorf("register reconcile job: %w", err)
		}
	}
	if opts.RefreshInterval > 0 {
		if _, err := sched.NewJob(
			gocron.DurationJob(opts.RefreshInterval),
			gocron.NewTask(s.RunRefresh, context.Background()),
			gocron.WithName("refresh-active-balances"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		); err != nil {
			return nil, fmt.Errorf("register refresh job: %w", err)
		}
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.logger.Info("Scheduler started", "jobs", len(s.sched.Jobs()))
	s.sched.Start()
}

// Shutdown stops the scheduler and waits for running jobs.
func (s *Scheduler) Shutdown() error {
	return s.sched.Shutdown()
}

// RunReconcile runs one pointer reconciliation.
func (s *Scheduler) RunReconcile(ctx context.Context) {
	if err := s.coordinator.Reconcile(ctx); err != nil {
		s.logger.Error("Scheduled reconciliation failed", "error", err)
	}
}

// RunRefresh aggregates balances of the active multichain vault so the
// cache stays warm. Nothing happens when no vault is active.
func (s *Scheduler) RunRefresh(ctx context.Context) {
	vault, err := s.repo.GetActiveMultichainVault(ctx)
	if err != nil {
		s.logger.Error("Scheduled refresh could not read active vault", "error", err)
		return
	}
	if vault == nil {
		s.logger.Debug("No active multichain vault, skipping refresh")
		return
	}
	result, err := s.aggregator.LoadAggregatedBalances(ctx, *vault, s.opts.FiatCurrency, s.opts.ChainTimeout)
	if err != nil {
		s.logger.Warn("Scheduled refresh failed", "vault", vault.Address.Hex(), "error", err)
		return
	}
	s.logger.Info("Active vault balances refreshed",
		"vault", vault.Address.Hex(),
		"run_id", result.RunID,
		"succeeded", len(result.SucceededChains),
		"failed", len(result.FailedChains),
		"total", result.TotalFiatAmount.StringFixed(2),
	)
}
