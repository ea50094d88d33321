package entity

// NetworkDefinition holds the configuration for a specific blockchain network.
// This structure is defined at the domain level to be used across application and infrastructure layers.
type NetworkDefinition struct {
	ChainID           uint64   `json:"chainId" yaml:"chainId"`
	Name              string   `json:"name" yaml:"name"`
	Identifier        string   `json:"identifier" yaml:"identifier"`
	NativeSymbol      string   `json:"nativeSymbol" yaml:"nativeSymbol"`
	Decimals          uint8    `json:"decimals" yaml:"decimals"`
	PrimaryRPCURL     string   `json:"primaryRpcUrl" yaml:"primaryRpcUrl"`
	FallbackRPCURLs   []string `json:"fallbackRpcUrls" yaml:"fallbackRpcUrls"`
	BlockExplorerURL  string   `json:"blockExplorerUrl,omitempty" yaml:"blockExplorerUrl,omitempty"`
	CoinGeckoPlatform string   `json:"coinGeckoPlatform,omitempty" yaml:"coinGeckoPlatform,omitempty"` // asset platform for token prices
	CoinGeckoNativeID string   `json:"coinGeckoNativeId,omitempty" yaml:"coinGeckoNativeId,omitempty"` // coin id for the native currency
	Testnet           bool     `json:"testnet" yaml:"testnet"`
}
