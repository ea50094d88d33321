package provider

import (
	"context"
	"errors"
	"testing"

	"vault_aggregator/internal/domain/entity"
	"vault_aggregator/internal/infrastructure/vaultstore/memory"
	"vault_aggregator/internal/pkg/logger"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingSource struct {
	calls  int
	tokens map[uint64][]entity.TokenInfo
	err    error
}

func (s *countingSource) GetTokensByNetwork([]entity.NetworkDefinition) (map[uint64][]entity.TokenInfo, error) {
	s.calls++
	return s.tokens, s.err
}

func TestTokenProviderCachesFirstLoad(t *testing.T) {
	src := &countingSource{tokens: map[uint64][]entity.TokenInfo{
		11155111: {{Symbol: "USDC", Decimals: 6, ChainID: 11155111}},
	}}
	p := NewTokenProvider(src, logger.NewZapAdapter(zap.NewNop()))

	first, err := p.GetTokensByNetwork(nil)
	require.NoError(t, err)
	second, err := p.GetTokensByNetwork(nil)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, src.calls)
}

func TestTokenProviderRetriesAfterError(t *testing.T) {
	src := &countingSource{err: errors.New("bad token file")}
	p := NewTokenProvider(src, logger.NewZapAdapter(zap.NewNop()))

	_, err := p.GetTokensByNetwork(nil)
	require.Error(t, err)

	src.err = nil
	src.tokens = map[uint64][]entity.TokenInfo{}
	_, err = p.GetTokensByNetwork(nil)
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
}

func TestVaultSeederImports(t *testing.T) {
	store := memory.NewStore()
	addr := common.HexToAddress("0xAC00000000000000000000000000000000000B08")
	seeder := NewVaultSeeder(func() ([]entity.PerChainVault, error) {
		return []entity.PerChainVault{
			{Address: addr, ChainID: 84532, DisplayName: "Treasury"},
			{Address: addr, ChainID: 11155111, DisplayName: "Treasury"},
		}, nil
	}, store, logger.NewZapAdapter(zap.NewNop()))

	n, err := seeder.Seed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	records, err := store.ListAllPerChainVaults(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestVaultSeederSourceError(t *testing.T) {
	seeder := NewVaultSeeder(func() ([]entity.PerChainVault, error) {
		return nil, errors.New("missing file")
	}, memory.NewStore(), logger.NewZapAdapter(zap.NewNop()))

	n, err := seeder.Seed(context.Background())
	assert.Error(t, err)
	assert.Zero(t, n)
}
