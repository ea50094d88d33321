package provider

import (
	"sync"

	"vault_aggregator/internal/app/port"
	"vault_aggregator/internal/domain/entity"
)

type tokenProviderImpl struct {
	source port.TokenProvider
	logger port.Logger

	mu          sync.Mutex
	tokensCache map[uint64][]entity.TokenInfo
}

// NewTokenProvider wraps source so token files are read once per process.
func NewTokenProvider(source port.TokenProvider, logger port.Logger) port.TokenProvider {
	return &tokenProviderImpl{source: source, logger: logger}
}

// GetTokensByNetwork loads token definitions for the active networks and
// caches the result after the first successful load.
func (p *tokenProviderImpl) GetTokensByNetwork(activeNetworkDefs []entity.NetworkDefinition) (map[uint64][]entity.TokenInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.tokensCache != nil {
		p.logger.Debug("Returning cached tokens by network")
		return p.tokensCache, nil
	}

	tokens, err := p.source.GetTokensByNetwork(activeNetworkDefs)
	if err != nil {
		p.logger.Error("Failed to load tokens", "error", err)
		return nil, err
	}

	p.tokensCache = tokens
	p.logger.Info("Tokens loaded and cached", "networks_with_tokens", len(tokens))
	return tokens, nil
}
