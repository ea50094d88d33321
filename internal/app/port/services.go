package port

import (
	"context"
	"time"

	"vault_aggregator/internal/domain/entity"

	"github.com/ethereum/go-ethereum/common"
)

// VaultRepository groups per-chain vault records into multichain vaults and
// owns the multichain active pointer.
type VaultRepository interface {
	ListMultichainVaults(ctx context.Context) ([]entity.MultichainVault, error)
	FindMultichainVaultByAddress(ctx context.Context, addr common.Address) (*entity.MultichainVault, error)
	GetActiveMultichainVault(ctx context.Context) (*entity.MultichainVault, error)
	SetActiveMultichainVault(ctx context.Context, vault entity.MultichainVault) error
	ActiveVaultChanges(ctx context.Context) (<-chan entity.ActiveVaultEvent, error)
}

// BalanceAggregator loads balances for a multichain vault.
type BalanceAggregator interface {
	LoadAggregatedBalances(ctx context.Context, vault entity.MultichainVault, fiatCurrency string, timeout time.Duration) (*entity.AggregationResult, error)
	LoadBalanceForSingleChain(ctx context.Context, vault entity.PerChainVault, fiatCurrency string) (*entity.BalanceSnapshot, error)
	RetryFailedChains(ctx context.Context, vault entity.MultichainVault, previous *entity.AggregationResult, timeout time.Duration) (*entity.AggregationResult, error)
}

// MigrationCoordinator reconciles the legacy and multichain active pointers.
type MigrationCoordinator interface {
	OnAppStart(ctx context.Context) error
	Reconcile(ctx context.Context) error
	OnModeToggled(ctx context.Context, enabled bool) error
	SelectMultichainVault(ctx context.Context, vault entity.MultichainVault) error
	SelectSingleChainVault(ctx context.Context, vault entity.PerChainVault) error
	GetMigrationStatus(ctx context.Context) (entity.MigrationStatus, error)
}
