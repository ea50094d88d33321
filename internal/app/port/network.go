package port

import (
	"context"

	"vault_aggregator/internal/domain/entity"
)

// ChainBalanceClient fetches the balances of one vault deployment. Any error
// (network, timeout, rate limit, remote) means "this chain failed".
type ChainBalanceClient interface {
	FetchBalance(ctx context.Context, vault entity.PerChainVault, fiatCurrency string) (*entity.BalanceSnapshot, error)
}

// NetworkDefinitionProvider defines the interface for providing network definitions.
type NetworkDefinitionProvider interface {
	// GetAllNetworkDefinitions returns all active network definitions as a slice.
	GetAllNetworkDefinitions() []entity.NetworkDefinition

	// GetNetworkDefinitionByChainID returns the definition for a chain id.
	GetNetworkDefinitionByChainID(chainID uint64) (entity.NetworkDefinition, bool)
}

// ChainNamer resolves a chain id to its display name.
type ChainNamer interface {
	ChainName(chainID uint64) string
}

// BlockchainClient reads balances from one network.
type BlockchainClient interface {
	// GetBalances resolves a batch of native and token balance requests.
	// Per-item failures are reported in BalanceResultItem.Error; a returned
	// error means the whole batch failed.
	GetBalances(ctx context.Context, requests []entity.BalanceRequestItem) ([]entity.BalanceResultItem, error)
	// Definition returns the network definition for this client.
	Definition() entity.NetworkDefinition
}

// BlockchainClientProvider hands out clients per network.
type BlockchainClientProvider interface {
	GetClient(ctx context.Context, netDef entity.NetworkDefinition) (BlockchainClient, error)
}
