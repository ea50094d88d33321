package client

import (
	"context"
	"fmt"
	"sync"

	"vault_aggregator/internal/app/port"
	"vault_aggregator/internal/domain/entity"
)

// EVMClientProvider implements the port.BlockchainClientProvider interface.
type EVMClientProvider struct {
	clients map[uint64]*EVMClient
	mu      sync.Mutex
	logger  port.Logger
	opts    EVMClientOptions
}

// NewEVMClientProvider creates a new EVMClientProvider.
func NewEVMClientProvider(opts EVMClientOptions, l port.Logger) *EVMClientProvider {
	return &EVMClientProvider{
		clients: make(map[uint64]*EVMClient),
		logger:  l,
		opts:    opts,
	}
}

// GetClient retrieves a blockchain client for the given network definition.
// It caches clients to avoid reconnecting repeatedly.
func (p *EVMClientProvider) GetClient(ctx context.Context, netDef entity.NetworkDefinition) (port.BlockchainClient, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if client, exists := p.clients[netDef.ChainID]; exists {
		return client, nil
	}

	p.logger.Info("Creating new EVM client", "network", netDef.Name, "chain_id", netDef.ChainID, "rpc_primary", netDef.PrimaryRPCURL)
	newClient, err := NewEVMClient(ctx, netDef, p.opts)
	if err != nil {
		p.logger.Error("Failed to create EVM client", "network", netDef.Name, "error", err)
		return nil, fmt.Errorf("failed to create EVM client for %s: %w", netDef.Name, err)
	}

	p.clients[netDef.ChainID] = newClient
	return newClient, nil
}

// Close closes every cached client.
func (p *EVMClientProvider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for id, c := range p.clients {
		c.Close()
		delete(p.clients, id)
	}
}
