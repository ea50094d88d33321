package port

import (
	"context"

	"vault_aggregator/internal/domain/entity"

	"github.com/ethereum/go-ethereum/common"
)

// VaultStore is the persistence boundary for per-chain vault records and the
// two active-vault pointers. Getters return nil when a pointer is unset.
type VaultStore interface {
	ListAllPerChainVaults(ctx context.Context) ([]entity.PerChainVault, error)

	GetLegacyPointer(ctx context.Context) (*entity.LegacyPointer, error)
	SetLegacyPointer(ctx context.Context, p entity.LegacyPointer) error

	GetMultichainPointer(ctx context.Context) (*common.Address, error)
	SetMultichainPointer(ctx context.Context, addr common.Address) error
}

// VaultImporter is implemented by stores that accept new per-chain records.
type VaultImporter interface {
	UpsertPerChainVaults(ctx context.Context, vaults []entity.PerChainVault) error
}
