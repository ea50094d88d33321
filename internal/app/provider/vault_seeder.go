package provider

import (
	"context"
	"fmt"

	"vault_aggregator/internal/app/port"
	"vault_aggregator/internal/domain/entity"
)

// VaultSource returns per-chain vault records to import.
type VaultSource func() ([]entity.PerChainVault, error)

// VaultSeeder imports per-chain vault records into a store.
type VaultSeeder struct {
	source   VaultSource
	importer port.VaultImporter
	logger   port.Logger
}

// NewVaultSeeder creates a new VaultSeeder.
func NewVaultSeeder(source VaultSource, importer port.VaultImporter, logger port.Logger) *VaultSeeder {
	return &VaultSeeder{source: source, importer: importer, logger: logger}
}

// Seed loads the records and upserts them, returning how many were written.
func (s *VaultSeeder) Seed(ctx context.Context) (int, error) {
	vaults, err := s.source()
	if err != nil {
		s.logger.Error("Failed to load vault records", "error", err)
		return 0, fmt.Errorf("load vaults: %w", err)
	}
	if len(vaults) == 0 {
		s.logger.Info("No vault records to import")
		return 0, nil
	}
	if err := s.importer.UpsertPerChainVaults(ctx, vaults); err != nil {
		return 0, fmt.Errorf("%w: %v", entity.ErrStoreWrite, err)
	}
	s.logger.Info("Vault records imported", "count", len(vaults))
	return len(vaults), nil
}
