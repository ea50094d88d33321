package service

import (
	"context"
	"strings"
	"time"

	"vault_aggregator/internal/app/port"
	"vault_aggregator/internal/domain/entity"

	"github.com/ethereum/go-ethereum/common"
	"github.com/patrickmn/go-cache"
)

// CachedAggregator keeps the last result per vault and currency that had at
// least one successful chain. When a later run fails on every chain the
// cached result is served instead, flagged Stale.
type CachedAggregator struct {
	inner  port.BalanceAggregator
	cache  *cache.Cache
	logger port.Logger
}

// NewCachedAggregator creates a new instance of CachedAggregator.
func NewCachedAggregator(inner port.BalanceAggregator, ttl, cleanup time.Duration, l port.Logger) *CachedAggregator {
	return &CachedAggregator{
		inner:  inner,
		cache:  cache.New(ttl, cleanup),
		logger: l,
	}
}

func cacheKey(addr common.Address, fiatCurrency string) string {
	return addr.Hex() + "|" + strings.ToUpper(fiatCurrency)
}

func latestKey(addr common.Address, fiatCurrency string) string {
	return "latest|" + cacheKey(addr, fiatCurrency)
}

func (c *CachedAggregator) LoadAggregatedBalances(
	ctx context.Context,
	vault entity.MultichainVault,
	fiatCurrency string,
	timeout time.Duration,
) (*entity.AggregationResult, error) {
	result, err := c.inner.LoadAggregatedBalances(ctx, vault, fiatCurrency, timeout)
	if err != nil {
		return nil, err
	}
	return c.settle(vault.Address, fiatCurrency, result), nil
}

func (c *CachedAggregator) LoadBalanceForSingleChain(
	ctx context.Context,
	vault entity.PerChainVault,
	fiatCurrency string,
) (*entity.BalanceSnapshot, error) {
	return c.inner.LoadBalanceForSingleChain(ctx, vault, fiatCurrency)
}

func (c *CachedAggregator) RetryFailedChains(
	ctx context.Context,
	vault entity.MultichainVault,
	previous *entity.AggregationResult,
	timeout time.Duration,
) (*entity.AggregationResult, error) {
	// A stale result carries no snapshots, so every chain is fetched again.
	result, err := c.inner.RetryFailedChains(ctx, vault, previous, timeout)
	if err != nil {
		return nil, err
	}
	return c.settle(vault.Address, result.FiatCurrency, result), nil
}

// Cached returns the last good result for a vault, if any.
func (c *CachedAggregator) Cached(addr common.Address, fiatCurrency string) (*entity.AggregationResult, bool) {
	return c.lookup(cacheKey(addr, fiatCurrency))
}

// Latest returns the result most recently handed out for a vault, stale or
// not. Retries start from it so chains failing right now are re-fetched.
func (c *CachedAggregator) Latest(addr common.Address, fiatCurrency string) (*entity.AggregationResult, bool) {
	return c.lookup(latestKey(addr, fiatCurrency))
}

func (c *CachedAggregator) lookup(key string) (*entity.AggregationResult, bool) {
	v, ok := c.cache.Get(key)
	if !ok {
		return nil, false
	}
	return v.(*entity.AggregationResult), true
}

// settle caches a result with at least one succeeded chain. A run where
// every chain failed is answered with the last good groups and totals,
// while run id, chain outcomes and snapshots come from the failed run.
func (c *CachedAggregator) settle(addr common.Address, fiatCurrency string, result *entity.AggregationResult) *entity.AggregationResult {
	key := cacheKey(addr, fiatCurrency)
	if !result.AllFailed() {
		c.cache.SetDefault(key, result)
		c.cache.SetDefault(latestKey(addr, fiatCurrency), result)
		return result
	}

	out := result
	if good, ok := c.lookup(key); ok {
		stale := *good
		stale.RunID = result.RunID
		stale.SucceededChains = result.SucceededChains
		stale.FailedChains = result.FailedChains
		stale.Snapshots = result.Snapshots
		stale.CompletedAt = result.CompletedAt
		stale.Stale = true
		stale.StaleRunID = good.RunID
		c.logger.Warn("Serving last good aggregation result", "vault", addr.Hex(), "currency", fiatCurrency,
			"cached_run_id", good.RunID, "failed_run_id", result.RunID)
		out = &stale
	}
	c.cache.SetDefault(latestKey(addr, fiatCurrency), out)
	return out
}
