package networkdefinition

import (
	"testing"

	"vault_aggregator/internal/domain/entity"
	"vault_aggregator/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestProviderWithoutConfigActivatesBuiltins(t *testing.T) {
	p := NewNetworkDefinitionProvider(logger.NewZapAdapter(zap.NewNop()), nil)

	all := p.GetAllNetworkDefinitions()
	require.Len(t, all, len(allKnownDefinitions))
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].ChainID, all[i].ChainID)
	}

	def, ok := p.GetNetworkDefinitionByChainID(84532)
	require.True(t, ok)
	assert.Equal(t, "Base Sepolia", def.Name)
	assert.True(t, def.Testnet)
}

func TestProviderMergesConfiguredNetworks(t *testing.T) {
	p := NewNetworkDefinitionProvider(logger.NewZapAdapter(zap.NewNop()), []entity.NetworkDefinition{
		{ChainID: 11155111, PrimaryRPCURL: "https://sepolia.internal"},
		{ChainID: 999999, Name: "Devnet", Identifier: "devnet", NativeSymbol: "DEV", Decimals: 18},
	})

	all := p.GetAllNetworkDefinitions()
	require.Len(t, all, 2)
	assert.EqualValues(t, 999999, all[0].ChainID)

	sepolia, ok := p.GetNetworkDefinitionByChainID(11155111)
	require.True(t, ok)
	assert.Equal(t, "Sepolia", sepolia.Name)
	assert.Equal(t, "https://sepolia.internal", sepolia.PrimaryRPCURL)
	assert.Equal(t, "ethereum", sepolia.CoinGeckoNativeID)

	_, ok = p.GetNetworkDefinitionByChainID(1)
	assert.False(t, ok)

	devnet, ok := p.GetNetworkDefinitionByName("devnet")
	require.True(t, ok)
	assert.Equal(t, "DEV", devnet.NativeSymbol)
}

func TestChainName(t *testing.T) {
	p := NewNetworkDefinitionProvider(logger.NewZapAdapter(zap.NewNop()), []entity.NetworkDefinition{{ChainID: 11155111}})

	assert.Equal(t, "Sepolia", p.ChainName(11155111))
	assert.Equal(t, "Rootstock", p.ChainName(30))
	assert.Equal(t, "chain-424242", p.ChainName(424242))
}
