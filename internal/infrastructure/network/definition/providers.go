package networkdefinition

import (
	"fmt"
	"sort"

	"vault_aggregator/internal/app/port"
	"vault_aggregator/internal/domain/entity"
)

// NetworkDefinitionProvider provides network definitions.
type NetworkDefinitionProvider struct {
	logger            port.Logger
	activeNetworkDefs []entity.NetworkDefinition
	byChainID         map[uint64]entity.NetworkDefinition
}

// Predefined network definitions
var ( //nolint:gochecknoglobals // Global for definitions
	Ethereum = entity.NetworkDefinition{
		ChainID:           1,
		Name:              "Ethereum",
		Identifier:        "ethereum",
		NativeSymbol:      "ETH",
		Decimals:          18,
		PrimaryRPCURL:     "https://ethereum-rpc.publicnode.com",
		FallbackRPCURLs:   []string{"https://rpc.ankr.com/eth"},
		BlockExplorerURL:  "https://etherscan.io",
		CoinGeckoPlatform: "ethereum",
		CoinGeckoNativeID: "ethereum",
	}
	Optimism = entity.NetworkDefinition{
		ChainID:           10,
		Name:              "Optimism",
		Identifier:        "optimism",
		NativeSymbol:      "ETH",
		Decimals:          18,
		PrimaryRPCURL:     "https://mainnet.optimism.io",
		FallbackRPCURLs:   []string{"https://optimism.publicnode.com"},
		BlockExplorerURL:  "https://optimistic.etherscan.io",
		CoinGeckoPlatform: "optimistic-ethereum",
		CoinGeckoNativeID: "ethereum",
	}
	Rootstock = entity.NetworkDefinition{
		ChainID:           30,
		Name:              "Rootstock",
		Identifier:        "rootstock",
		NativeSymbol:      "RBTC",
		Decimals:          18,
		PrimaryRPCURL:     "https://public-node.rsk.co",
		BlockExplorerURL:  "https://rootstock.blockscout.com",
		CoinGeckoPlatform: "rootstock",
		CoinGeckoNativeID: "rootstock",
	}
	BSC = entity.NetworkDefinition{
		ChainID:           56,
		Name:              "BNB Smart Chain",
		Identifier:        "bsc",
		NativeSymbol:      "BNB",
		Decimals:          18,
		PrimaryRPCURL:     "https://1rpc.io/bnb",
		FallbackRPCURLs:   []string{"https://bsc-dataseed2.binance.org/", "https://bsc.publicnode.com"},
		BlockExplorerURL:  "https://bscscan.com",
		CoinGeckoPlatform: "binance-smart-chain",
		CoinGeckoNativeID: "binancecoin",
	}
	Gnosis = entity.NetworkDefinition{
		ChainID:           100,
		Name:              "Gnosis",
		Identifier:        "gnosis",
		NativeSymbol:      "xDAI",
		Decimals:          18,
		PrimaryRPCURL:     "https://rpc.gnosischain.com",
		FallbackRPCURLs:   []string{"https://gnosis.publicnode.com"},
		BlockExplorerURL:  "https://gnosisscan.io",
		CoinGeckoPlatform: "xdai",
		CoinGeckoNativeID: "xdai",
	}
	Polygon = entity.NetworkDefinition{
		ChainID:           137,
		Name:              "Polygon",
		Identifier:        "polygon",
		NativeSymbol:      "POL",
		Decimals:          18,
		PrimaryRPCURL:     "https://polygon-rpc.com/",
		FallbackRPCURLs:   []string{"https://polygon.publicnode.com"},
		BlockExplorerURL:  "https://polygonscan.com",
		CoinGeckoPlatform: "polygon-pos",
		CoinGeckoNativeID: "polygon-ecosystem-token",
	}
	ZkSync = entity.NetworkDefinition{
		ChainID:           324,
		Name:              "zkSync Era",
		Identifier:        "zksync",
		NativeSymbol:      "ETH",
		Decimals:          18,
		PrimaryRPCURL:     "https://mainnet.era.zksync.io",
		BlockExplorerURL:  "https://explorer.zksync.io",
		CoinGeckoPlatform: "zksync",
		CoinGeckoNativeID: "ethereum",
	}
	Base = entity.NetworkDefinition{
		ChainID:           8453,
		Name:              "Base",
		Identifier:        "base",
		NativeSymbol:      "ETH",
		Decimals:          18,
		PrimaryRPCURL:     "https://1rpc.io/base",
		FallbackRPCURLs:   []string{"https://base.publicnode.com", "https://base.llamarpc.com"},
		BlockExplorerURL:  "https://basescan.org",
		CoinGeckoPlatform: "base",
		CoinGeckoNativeID: "ethereum",
	}
	Arbitrum = entity.NetworkDefinition{
		ChainID:           42161,
		Name:              "Arbitrum One",
		Identifier:        "arbitrum",
		NativeSymbol:      "ETH",
		Decimals:          18,
		PrimaryRPCURL:     "https://arb1.arbitrum.io/rpc",
		FallbackRPCURLs:   []string{"https://arbitrum.publicnode.com"},
		BlockExplorerURL:  "https://arbiscan.io",
		CoinGeckoPlatform: "arbitrum-one",
		CoinGeckoNativeID: "ethereum",
	}
	Avalanche = entity.NetworkDefinition{
		ChainID:           43114,
		Name:              "Avalanche C-Chain",
		Identifier:        "avalanche",
		NativeSymbol:      "AVAX",
		Decimals:          18,
		PrimaryRPCURL:     "https://api.avax.network/ext/bc/C/rpc",
		FallbackRPCURLs:   []string{"https://rpc.ankr.com/avalanche"},
		BlockExplorerURL:  "https://snowtrace.io",
		CoinGeckoPlatform: "avalanche",
		CoinGeckoNativeID: "avalanche-2",
	}
	Linea = entity.NetworkDefinition{
		ChainID:           59144,
		Name:              "Linea",
		Identifier:        "linea",
		NativeSymbol:      "ETH",
		Decimals:          18,
		PrimaryRPCURL:     "https://rpc.linea.build",
		BlockExplorerURL:  "https://lineascan.build",
		CoinGeckoPlatform: "linea",
		CoinGeckoNativeID: "ethereum",
	}
	BaseSepolia = entity.NetworkDefinition{
		ChainID:           84532,
		Name:              "Base Sepolia",
		Identifier:        "base-sepolia",
		NativeSymbol:      "ETH",
		Decimals:          18,
		PrimaryRPCURL:     "https://sepolia.base.org",
		BlockExplorerURL:  "https://sepolia.basescan.org",
		CoinGeckoNativeID: "ethereum",
		Testnet:           true,
	}
	Scroll = entity.NetworkDefinition{
		ChainID:           534352,
		Name:              "Scroll",
		Identifier:        "scroll",
		NativeSymbol:      "ETH",
		Decimals:          18,
		PrimaryRPCURL:     "https://rpc.scroll.io",
		BlockExplorerURL:  "https://scrollscan.com",
		CoinGeckoPlatform: "scroll",
		CoinGeckoNativeID: "ethereum",
	}
	Sepolia = entity.NetworkDefinition{
		ChainID:           11155111,
		Name:              "Sepolia",
		Identifier:        "sepolia",
		NativeSymbol:      "ETH",
		Decimals:          18,
		PrimaryRPCURL:     "https://ethereum-sepolia-rpc.publicnode.com",
		FallbackRPCURLs:   []string{"https://rpc.sepolia.org"},
		BlockExplorerURL:  "https://sepolia.etherscan.io",
		CoinGeckoNativeID: "ethereum",
		Testnet:           true,
	}
)

// allKnownDefinitions is a helper to quickly access all hardcoded definitions.
var allKnownDefinitions = []entity.NetworkDefinition{
	Ethereum, Optimism, Rootstock, BSC, Gnosis, Polygon, ZkSync, Base,
	Arbitrum, Avalanche, Linea, BaseSepolia, Scroll, Sepolia,
}

// NewNetworkDefinitionProvider creates a new NetworkDefinitionProvider.
// Configured networks are merged over the built-in definition with the same
// chain id; when none are configured every built-in network is active.
func NewNetworkDefinitionProvider(log port.Logger, configured []entity.NetworkDefinition) *NetworkDefinitionProvider {
	p := &NetworkDefinitionProvider{
		logger:    log,
		byChainID: make(map[uint64]entity.NetworkDefinition),
	}

	known := make(map[uint64]entity.NetworkDefinition, len(allKnownDefinitions))
	for _, def := range allKnownDefinitions {
		known[def.ChainID] = def
	}

	if len(configured) == 0 {
		for _, def := range allKnownDefinitions {
			p.byChainID[def.ChainID] = def
		}
	}
	for _, cfgDef := range configured {
		base, ok := known[cfgDef.ChainID]
		if !ok {
			p.logger.Debug("Network has no built-in definition, using configuration only",
				"chain_id", cfgDef.ChainID, "name", cfgDef.Name)
		}
		p.byChainID[cfgDef.ChainID] = merge(base, cfgDef)
	}

	for _, def := range p.byChainID {
		p.activeNetworkDefs = append(p.activeNetworkDefs, def)
	}
	sort.Slice(p.activeNetworkDefs, func(i, j int) bool {
		return p.activeNetworkDefs[i].ChainID < p.activeNetworkDefs[j].ChainID
	})

	p.logger.Info("NetworkDefinitionProvider initialized", "active_networks", len(p.activeNetworkDefs))
	for _, netDef := range p.activeNetworkDefs {
		p.logger.Debug("Active network", "name", netDef.Name, "identifier", netDef.Identifier,
			"chain_id", netDef.ChainID, "testnet", netDef.Testnet)
	}
	return p
}

// merge overlays the non-empty fields of override on base.
func merge(base, override entity.NetworkDefinition) entity.NetworkDefinition {
	out := base
	out.ChainID = override.ChainID
	if override.Name != "" {
		out.Name = override.Name
	}
	if override.Identifier != "" {
		out.Identifier = override.Identifier
	}
	if override.NativeSymbol != "" {
		out.NativeSymbol = override.NativeSymbol
	}
	if override.Decimals != 0 {
		out.Decimals = override.Decimals
	}
	if override.PrimaryRPCURL != "" {
		out.PrimaryRPCURL = override.PrimaryRPCURL
	}
	if len(override.FallbackRPCURLs) > 0 {
		out.FallbackRPCURLs = override.FallbackRPCURLs
	}
	if override.BlockExplorerURL != "" {
		out.BlockExplorerURL = override.BlockExplorerURL
	}
	if override.CoinGeckoPlatform != "" {
		out.CoinGeckoPlatform = override.CoinGeckoPlatform
	}
	if override.CoinGeckoNativeID != "" {
		out.CoinGeckoNativeID = override.CoinGeckoNativeID
	}
	out.Testnet = base.Testnet || override.Testnet
	return out
}

// GetAllNetworkDefinitions returns the active networks ordered by chain id.
func (p *NetworkDefinitionProvider) GetAllNetworkDefinitions() []entity.NetworkDefinition {
	if p == nil {
		return []entity.NetworkDefinition{}
	}
	defsCopy := make([]entity.NetworkDefinition, len(p.activeNetworkDefs))
	copy(defsCopy, p.activeNetworkDefs)
	return defsCopy
}

// GetNetworkDefinitionByName returns a specific network definition by its identifier if it's active.
func (p *NetworkDefinitionProvider) GetNetworkDefinitionByName(identifier string) (entity.NetworkDefinition, bool) {
	if p == nil {
		return entity.NetworkDefinition{}, false
	}
	for _, def := range p.activeNetworkDefs {
		if def.Identifier == identifier {
			return def, true
		}
	}
	return entity.NetworkDefinition{}, false
}

// GetNetworkDefinitionByChainID returns a specific network definition by its chain ID if it's active.
func (p *NetworkDefinitionProvider) GetNetworkDefinitionByChainID(chainID uint64) (entity.NetworkDefinition, bool) {
	if p == nil {
		return entity.NetworkDefinition{}, false
	}
	def, ok := p.byChainID[chainID]
	return def, ok
}

// ChainName returns the display name of a chain, falling back to chain-<id>
// for chains that are not active.
func (p *NetworkDefinitionProvider) ChainName(chainID uint64) string {
	if def, ok := p.GetNetworkDefinitionByChainID(chainID); ok && def.Name != "" {
		return def.Name
	}
	for _, def := range allKnownDefinitions {
		if def.ChainID == chainID {
			return def.Name
		}
	}
	return fmt.Sprintf("chain-%d", chainID)
}
