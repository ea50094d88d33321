package service

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"vault_aggregator/internal/app/port"
	"vault_aggregator/internal/domain/entity"

	"github.com/ethereum/go-ethereum/common"
)

// VaultRepositoryImpl implements port.VaultRepository on top of a VaultStore.
type VaultRepositoryImpl struct {
	store  port.VaultStore
	logger port.Logger

	// notifyMu orders pointer writes against new subscriptions so a
	// subscriber never misses a write that happened after its initial value.
	notifyMu sync.Mutex
	changes  *broadcaster[entity.ActiveVaultEvent]
}

// NewVaultRepository creates a new instance of VaultRepositoryImpl.
func NewVaultRepository(store port.VaultStore, l port.Logger) *VaultRepositoryImpl {
	return &VaultRepositoryImpl{
		store:   store,
		logger:  l,
		changes: newBroadcaster[entity.ActiveVaultEvent](),
	}
}

// ListMultichainVaults groups every per-chain record by address and sorts the
// result by display name.
func (r *VaultRepositoryImpl) ListMultichainVaults(ctx context.Context) ([]entity.MultichainVault, error) {
	records, err := r.store.ListAllPerChainVaults(ctx)
	if err != nil {
		r.logger.Error("Failed to list per-chain vaults", "error", err)
		return nil, fmt.Errorf("%w: %w", entity.ErrStoreRead, err)
	}
	vaults := r.groupByAddress(records)
	r.logger.Debug("Grouped per-chain vaults", "records", len(records), "vaults", len(vaults))
	return vaults, nil
}

// FindMultichainVaultByAddress returns nil without error when the address
// has no deployment.
func (r *VaultRepositoryImpl) FindMultichainVaultByAddress(ctx context.Context, addr common.Address) (*entity.MultichainVault, error) {
	records, err := r.store.ListAllPerChainVaults(ctx)
	if err != nil {
		r.logger.Error("Failed to list per-chain vaults", "address", addr.Hex(), "error", err)
		return nil, fmt.Errorf("%w: %w", entity.ErrStoreRead, err)
	}

	matching := make([]entity.PerChainVault, 0, 4)
	for _, rec := range records {
		if rec.Address == addr {
			matching = append(matching, rec)
		}
	}
	if len(matching) == 0 {
		return nil, nil
	}
	vault := r.groupByAddress(matching)[0]
	return &vault, nil
}

// GetActiveMultichainVault resolves the multichain pointer. A dangling
// pointer resolves to nil like an unset one.
func (r *VaultRepositoryImpl) GetActiveMultichainVault(ctx context.Context) (*entity.MultichainVault, error) {
	ptr, err := r.store.GetMultichainPointer(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", entity.ErrStoreRead, err)
	}
	if ptr == nil {
		return nil, nil
	}
	vault, err := r.FindMultichainVaultByAddress(ctx, *ptr)
	if err != nil {
		return nil, err
	}
	if vault == nil {
		r.logger.Debug("Multichain pointer is dangling", "address", ptr.Hex())
	}
	return vault, nil
}

// SetActiveMultichainVault persists the pointer and emits one notification
// per call.
func (r *VaultRepositoryImpl) SetActiveMultichainVault(ctx context.Context, vault entity.MultichainVault) error {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()

	if err := r.store.SetMultichainPointer(ctx, vault.Address); err != nil {
		r.logger.Error("Failed to persist multichain pointer", "address", vault.Address.Hex(), "error", err)
		return fmt.Errorf("%w: %w", entity.ErrStoreWrite, err)
	}

	v := vault
	r.changes.publish(entity.ActiveVaultEvent{Vault: &v})
	r.logger.Info("Active multichain vault set", "address", vault.Address.Hex(), "chains", len(vault.Deployments))
	return nil
}

// ActiveVaultChanges emits the current active vault immediately and then one
// event per SetActiveMultichainVault call until ctx is done. Subscribing
// again restarts the stream with a fresh current value.
func (r *VaultRepositoryImpl) ActiveVaultChanges(ctx context.Context) (<-chan entity.ActiveVaultEvent, error) {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()

	current, err := r.GetActiveMultichainVault(ctx)
	if err != nil {
		return nil, err
	}
	return r.changes.subscribe(ctx, entity.ActiveVaultEvent{Vault: current}), nil
}

func (r *VaultRepositoryImpl) groupByAddress(records []entity.PerChainVault) []entity.MultichainVault {
	byAddr := make(map[common.Address]*entity.MultichainVault)
	for _, rec := range records {
		v, ok := byAddr[rec.Address]
		if !ok {
			v = &entity.MultichainVault{
				Address:     rec.Address,
				Deployments: make(map[uint64]entity.PerChainVault),
			}
			byAddr[rec.Address] = v
		}
		if _, dup := v.Deployments[rec.ChainID]; dup {
			r.logger.Warn("Duplicate per-chain vault record, keeping the last one",
				"address", rec.Address.Hex(), "chain_id", rec.ChainID)
		}
		v.Deployments[rec.ChainID] = rec
	}

	out := make([]entity.MultichainVault, 0, len(byAddr))
	for _, v := range byAddr {
		v.DisplayName = displayNameOf(*v)
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool {
		ni, nj := strings.ToLower(out[i].DisplayName), strings.ToLower(out[j].DisplayName)
		if ni != nj {
			return ni < nj
		}
		return bytes.Compare(out[i].Address[:], out[j].Address[:]) < 0
	})
	return out
}

// displayNameOf takes the name of the lowest-chain deployment that has one.
func displayNameOf(v entity.MultichainVault) string {
	for _, id := range v.ChainIDs() {
		if name := strings.TrimSpace(v.Deployments[id].DisplayName); name != "" {
			return name
		}
	}
	return ""
}
