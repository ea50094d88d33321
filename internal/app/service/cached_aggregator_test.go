package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"vault_aggregator/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachedAggregatorServesStaleWhenEveryChainFails(t *testing.T) {
	var down atomic.Bool
	healthy := ethSnapshot(chainSepolia, 9, "9")
	client := newFakeChainClient(map[uint64]fetchFunc{
		chainSepolia: func(ctx context.Context) (*entity.BalanceSnapshot, error) {
			if down.Load() {
				return nil, errors.New("rpc down")
			}
			return healthy(ctx)
		},
	})
	cached := NewCachedAggregator(newAggregator(client), time.Minute, time.Minute, nopLogger())
	vault := multichain(chainSepolia)

	fresh, err := cached.LoadAggregatedBalances(context.Background(), vault, "usd", time.Second)
	require.NoError(t, err)
	assert.False(t, fresh.Stale)

	down.Store(true)
	stale, err := cached.LoadAggregatedBalances(context.Background(), vault, "USD", time.Second)
	require.NoError(t, err)
	assert.True(t, stale.Stale)
	assert.NotEqual(t, fresh.RunID, stale.RunID)
	assert.Equal(t, fresh.RunID, stale.StaleRunID)
	require.Len(t, stale.Groups, 1)
	assert.Equal(t, "9", stale.Groups[0].TotalRawAmount.String())
	assert.Empty(t, stale.SucceededChains)
	assert.Equal(t, []uint64{chainSepolia}, stale.FailedChainIDs())

	latest, ok := cached.Latest(vaultX, "USD")
	require.True(t, ok)
	assert.Same(t, stale, latest)

	again, ok := cached.Cached(vaultX, "USD")
	require.True(t, ok)
	assert.False(t, again.Stale)
}

func TestCachedAggregatorWithoutHistoryReturnsFailedResult(t *testing.T) {
	client := newFakeChainClient(map[uint64]fetchFunc{chainSepolia: failWith(errors.New("rpc down"))})
	cached := NewCachedAggregator(newAggregator(client), time.Minute, time.Minute, nopLogger())

	result, err := cached.LoadAggregatedBalances(context.Background(), multichain(chainSepolia), "USD", time.Second)
	require.NoError(t, err)
	assert.True(t, result.AllFailed())
	assert.False(t, result.Stale)

	_, ok := cached.Cached(vaultX, "USD")
	assert.False(t, ok)
}

func TestCachedAggregatorRetryRecoversFromOutage(t *testing.T) {
	var down atomic.Bool
	client := newFakeChainClient(map[uint64]fetchFunc{
		chainSepolia: func(ctx context.Context) (*entity.BalanceSnapshot, error) {
			if down.Load() {
				return nil, errors.New("rpc down")
			}
			return ethSnapshot(chainSepolia, 9, "9")(ctx)
		},
		chainBaseSepolia: func(ctx context.Context) (*entity.BalanceSnapshot, error) {
			if down.Load() {
				return nil, errors.New("rpc down")
			}
			return ethSnapshot(chainBaseSepolia, 4, "4")(ctx)
		},
	})
	cached := NewCachedAggregator(newAggregator(client), time.Minute, time.Minute, nopLogger())
	vault := multichain(chainSepolia, chainBaseSepolia)
	ctx := context.Background()

	_, err := cached.LoadAggregatedBalances(ctx, vault, "USD", time.Second)
	require.NoError(t, err)

	down.Store(true)
	stale, err := cached.LoadAggregatedBalances(ctx, vault, "USD", time.Second)
	require.NoError(t, err)
	require.True(t, stale.Stale)

	down.Store(false)
	previous, ok := cached.Latest(vaultX, "USD")
	require.True(t, ok)
	recovered, err := cached.RetryFailedChains(ctx, vault, previous, time.Second)
	require.NoError(t, err)

	assert.False(t, recovered.Stale)
	assert.Empty(t, recovered.FailedChains)
	assert.ElementsMatch(t, []uint64{chainBaseSepolia, chainSepolia}, recovered.SucceededChains)
	assert.Equal(t, 3, client.callCount(chainSepolia))
	assert.Equal(t, 3, client.callCount(chainBaseSepolia))

	latest, ok := cached.Latest(vaultX, "USD")
	require.True(t, ok)
	assert.Same(t, recovered, latest)
}
