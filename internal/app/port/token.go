package port

import (
	"context"

	"vault_aggregator/internal/domain/entity"

	"github.com/shopspring/decimal"
)

// TokenProvider defines the interface for fetching tracked token definitions.
type TokenProvider interface {
	// GetTokensByNetwork returns tokens keyed by chain id for the given networks.
	GetTokensByNetwork(activeNetworkDefs []entity.NetworkDefinition) (map[uint64][]entity.TokenInfo, error)
}

// PriceProvider quotes unit prices in a fiat currency.
type PriceProvider interface {
	// NativePrice returns the price of one whole unit of a chain's native currency.
	NativePrice(ctx context.Context, netDef entity.NetworkDefinition, fiatCurrency string) (decimal.Decimal, error)
	// TokenPrices returns prices keyed by lower-cased token address. Tokens
	// without a quote are absent from the map.
	TokenPrices(ctx context.Context, netDef entity.NetworkDefinition, tokenAddresses []string, fiatCurrency string) (map[string]decimal.Decimal, error)
}
