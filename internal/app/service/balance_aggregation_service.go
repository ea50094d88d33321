package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vault_aggregator/internal/app/port"
	"vault_aggregator/internal/domain/entity"
	"vault_aggregator/internal/domain/grouping"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// BalanceAggregationServiceImpl implements port.BalanceAggregator.
type BalanceAggregationServiceImpl struct {
	client  port.ChainBalanceClient
	namer   port.ChainNamer
	metrics port.MetricsRecorder
	logger  port.Logger
	now     func() time.Time
}

// NewBalanceAggregationService creates a new instance of BalanceAggregationServiceImpl.
func NewBalanceAggregationService(
	client port.ChainBalanceClient,
	namer port.ChainNamer,
	metrics port.MetricsRecorder,
	l port.Logger,
) *BalanceAggregationServiceImpl {
	if metrics == nil {
		metrics = port.NopMetrics{}
	}
	return &BalanceAggregationServiceImpl{
		client:  client,
		namer:   namer,
		metrics: metrics,
		logger:  l,
		now:     time.Now,
	}
}

type chainOutcome struct {
	chainID  uint64
	snapshot *entity.BalanceSnapshot
	failure  *entity.ChainFetchFailure
}

// LoadAggregatedBalances fetches every deployment concurrently and folds the
// results. Per-chain failures, including all chains failing, are recorded in
// the result and never returned as an error. timeout bounds each chain on its
// own; a non-positive timeout leaves chains bounded only by ctx.
//
// If ctx is cancelled the whole call fails with ctx.Err() and settled
// per-chain results are discarded.
func (s *BalanceAggregationServiceImpl) LoadAggregatedBalances(
	ctx context.Context,
	vault entity.MultichainVault,
	fiatCurrency string,
	timeout time.Duration,
) (*entity.AggregationResult, error) {
	if len(vault.Deployments) == 0 {
		return nil, entity.ErrEmptyVault
	}

	runID := uuid.NewString()
	started := s.now()
	log := s.logger.With("run_id", runID, "vault", vault.Address.Hex())
	log.Debug("Starting aggregation run",
		"chains", len(vault.Deployments), "currency", fiatCurrency, "timeout", timeout)

	outcomes, err := s.fetchAll(ctx, vault, fiatCurrency, timeout)
	if err != nil {
		log.Warn("Aggregation run cancelled", "error", err)
		return nil, err
	}

	result := s.fold(runID, vault, fiatCurrency, outcomes)
	elapsed := s.now().Sub(started)
	s.metrics.ObserveAggregation(len(result.SucceededChains), len(result.FailedChains), elapsed)

	if result.AllFailed() {
		log.Warn("Every chain failed during aggregation",
			"failed_chains", result.FailedChainIDs())
	} else {
		log.Info("Aggregation run completed",
			"succeeded", len(result.SucceededChains), "failed", len(result.FailedChains),
			"total_fiat", result.TotalFiatAmount.String(), "currency", fiatCurrency, "elapsed", elapsed)
	}
	return result, nil
}

// LoadBalanceForSingleChain passes straight through to the chain client.
func (s *BalanceAggregationServiceImpl) LoadBalanceForSingleChain(
	ctx context.Context,
	vault entity.PerChainVault,
	fiatCurrency string,
) (*entity.BalanceSnapshot, error) {
	snapshot, err := s.client.FetchBalance(ctx, vault, fiatCurrency)
	if err != nil {
		return nil, fmt.Errorf("fetch balance for %s on chain %d: %w", vault.Address.Hex(), vault.ChainID, err)
	}
	return snapshot, nil
}

// RetryFailedChains re-fetches only the chains without a snapshot in
// previous and merges them with its successful chains. Chains deployed since
// previous was produced are fetched as well.
func (s *BalanceAggregationServiceImpl) RetryFailedChains(
	ctx context.Context,
	vault entity.MultichainVault,
	previous *entity.AggregationResult,
	timeout time.Duration,
) (*entity.AggregationResult, error) {
	if previous == nil {
		return nil, errors.New("no previous aggregation result to retry")
	}

	pending := make([]uint64, 0, len(previous.FailedChains))
	for _, id := range vault.ChainIDs() {
		if _, ok := previous.Snapshots[id]; !ok {
			pending = append(pending, id)
		}
	}
	if len(pending) == 0 {
		return previous, nil
	}

	s.logger.Info("Retrying failed chains", "vault", vault.Address.Hex(), "chains", pending)
	retried, err := s.fetchAll(ctx, vault.Subset(pending), previous.FiatCurrency, timeout)
	if err != nil {
		return nil, err
	}
	byChain := make(map[uint64]chainOutcome, len(retried))
	for _, o := range retried {
		byChain[o.chainID] = o
	}

	outcomes := make([]chainOutcome, 0, len(vault.Deployments))
	for _, id := range vault.ChainIDs() {
		if snap, ok := previous.Snapshots[id]; ok {
			outcomes = append(outcomes, chainOutcome{chainID: id, snapshot: &snap})
			continue
		}
		outcomes = append(outcomes, byChain[id])
	}

	result := s.fold(uuid.NewString(), vault, previous.FiatCurrency, outcomes)
	s.logger.Info("Retry completed", "run_id", result.RunID, "vault", vault.Address.Hex(),
		"recovered", len(pending)-len(result.FailedChains), "still_failed", len(result.FailedChains))
	return result, nil
}

// fetchAll starts one call per deployment and waits for all of them. The
// returned outcomes are in ascending chain id order.
func (s *BalanceAggregationServiceImpl) fetchAll(
	ctx context.Context,
	vault entity.MultichainVault,
	fiatCurrency string,
	timeout time.Duration,
) ([]chainOutcome, error) {
	chainIDs := vault.ChainIDs()
	outcomes := make([]chainOutcome, len(chainIDs))

	// Goroutines never return an error so one chain cannot cancel another.
	var g errgroup.Group
	for i, chainID := range chainIDs {
		deployment := vault.Deployments[chainID]
		g.Go(func() error {
			outcomes[i] = s.fetchOne(ctx, deployment, fiatCurrency, timeout)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

func (s *BalanceAggregationServiceImpl) fetchOne(
	ctx context.Context,
	deployment entity.PerChainVault,
	fiatCurrency string,
	timeout time.Duration,
) chainOutcome {
	chainCtx, cancel := ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		chainCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	type reply struct {
		snapshot *entity.BalanceSnapshot
		err      error
	}
	replies := make(chan reply, 1)
	started := s.now()

	go func() {
		snap, err := s.client.FetchBalance(chainCtx, deployment, fiatCurrency)
		replies <- reply{snapshot: snap, err: err}
	}()

	var (
		snap *entity.BalanceSnapshot
		err  error
	)
	select {
	case r := <-replies:
		snap, err = r.snapshot, r.err
	case <-chainCtx.Done():
		err = chainCtx.Err()
	}
	elapsed := s.now().Sub(started)

	outcome := chainOutcome{chainID: deployment.ChainID}
	if err == nil && snap == nil {
		err = errors.New("balance client returned no snapshot")
	}
	if err != nil {
		timedOut := errors.Is(err, context.DeadlineExceeded)
		outcome.failure = &entity.ChainFetchFailure{
			ChainID:   deployment.ChainID,
			ChainName: s.namer.ChainName(deployment.ChainID),
			Reason:    err.Error(),
			TimedOut:  timedOut,
		}
		metricOutcome := port.OutcomeError
		if timedOut {
			metricOutcome = port.OutcomeTimeout
		}
		s.metrics.ObserveChainFetch(deployment.ChainID, metricOutcome, elapsed)
		s.logger.Warn("Chain balance fetch failed", "chain_id", deployment.ChainID,
			"vault", deployment.Address.Hex(), "timed_out", timedOut, "error", err)
		return outcome
	}

	s.metrics.ObserveChainFetch(deployment.ChainID, port.OutcomeSuccess, elapsed)
	normalized := *snap
	normalized.ChainID = deployment.ChainID
	normalized.Entries = make([]entity.BalanceEntry, len(snap.Entries))
	for i, e := range snap.Entries {
		e.ChainID = deployment.ChainID
		normalized.Entries[i] = e
	}
	outcome.snapshot = &normalized
	return outcome
}

// fold builds the result from outcomes given in ascending chain id order.
func (s *BalanceAggregationServiceImpl) fold(
	runID string,
	vault entity.MultichainVault,
	fiatCurrency string,
	outcomes []chainOutcome,
) *entity.AggregationResult {
	result := &entity.AggregationResult{
		RunID:           runID,
		VaultAddress:    vault.Address,
		FiatCurrency:    fiatCurrency,
		TotalFiatAmount: decimal.Zero,
		Groups:          []entity.AggregatedBalanceGroup{},
		SucceededChains: []uint64{},
		FailedChains:    make(map[uint64]entity.ChainFetchFailure),
		Snapshots:       make(map[uint64]entity.BalanceSnapshot),
	}

	chains := make([]grouping.ChainBalances, 0, len(outcomes))
	for _, o := range outcomes {
		if o.failure != nil {
			result.FailedChains[o.chainID] = *o.failure
			continue
		}
		result.SucceededChains = append(result.SucceededChains, o.chainID)
		result.Snapshots[o.chainID] = *o.snapshot
		chains = append(chains, grouping.ChainBalances{
			ChainID:   o.chainID,
			ChainName: s.namer.ChainName(o.chainID),
			Entries:   o.snapshot.Entries,
		})
	}

	result.Groups = grouping.Fold(chains)
	for _, g := range result.Groups {
		result.TotalFiatAmount = result.TotalFiatAmount.Add(g.TotalFiatAmount)
	}
	result.CompletedAt = s.now()
	return result
}
