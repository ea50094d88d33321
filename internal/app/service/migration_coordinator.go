package service

import (
	"context"
	"fmt"
	"sync"

	"vault_aggregator/internal/app/port"
	"vault_aggregator/internal/domain/entity"
)

// MigrationCoordinatorImpl owns every transition of the legacy and
// multichain active pointers. All triggers run under one writer mutex since
// the scheduler reconciles concurrently with user actions.
type MigrationCoordinatorImpl struct {
	mu          sync.Mutex
	store       port.VaultStore
	repo        port.VaultRepository
	metrics     port.MetricsRecorder
	logger      port.Logger
	modeEnabled bool
}

// NewMigrationCoordinator creates a new instance of MigrationCoordinatorImpl.
// multichainEnabled is the mode decided by the rollout gate at startup.
func NewMigrationCoordinator(
	store port.VaultStore,
	repo port.VaultRepository,
	multichainEnabled bool,
	metrics port.MetricsRecorder,
	l port.Logger,
) *MigrationCoordinatorImpl {
	if metrics == nil {
		metrics = port.NopMetrics{}
	}
	return &MigrationCoordinatorImpl{
		store:       store,
		repo:        repo,
		metrics:     metrics,
		logger:      l,
		modeEnabled: multichainEnabled,
	}
}

// OnAppStart reconciles the pointers when multichain mode is enabled. It is
// a no-op otherwise.
func (c *MigrationCoordinatorImpl) OnAppStart(ctx context.Context) error {
	c.logger.Info("Reconciling active pointers on start")
	return c.Reconcile(ctx)
}

// Reconcile runs the start-up reconciliation. The scheduler calls it
// periodically.
func (c *MigrationCoordinatorImpl) Reconcile(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.modeEnabled {
		c.logger.Debug("Multichain mode disabled, skipping reconciliation")
		return nil
	}
	return c.reconcileLocked(ctx, true)
}

// OnModeToggled records the new mode. Enabling derives the multichain
// pointer from the legacy one; disabling derives the legacy pointer from the
// multichain vault and leaves the multichain pointer in place.
func (c *MigrationCoordinatorImpl) OnModeToggled(ctx context.Context, enabled bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.modeEnabled = enabled
	c.logger.Info("Multichain mode toggled", "enabled", enabled)

	if enabled {
		return c.reconcileLocked(ctx, false)
	}

	state, err := c.readState(ctx)
	if err != nil {
		return err
	}
	if state.Multichain == nil {
		return nil
	}
	vault, err := c.repo.FindMultichainVaultByAddress(ctx, *state.Multichain)
	if err != nil {
		return err
	}
	if vault == nil {
		c.logger.Warn("Multichain pointer has no deployments, legacy pointer left as is",
			"address", state.Multichain.Hex())
		return nil
	}
	if err := c.setLegacyFrom(ctx, *vault); err != nil {
		return err
	}
	return c.recordSync(ctx)
}

// SelectMultichainVault makes vault the active one for both pointers.
func (c *MigrationCoordinatorImpl) SelectMultichainVault(ctx context.Context, vault entity.MultichainVault) error {
	if len(vault.Deployments) == 0 {
		return entity.ErrEmptyVault
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.repo.SetActiveMultichainVault(ctx, vault); err != nil {
		return err
	}
	if err := c.setLegacyFrom(ctx, vault); err != nil {
		return err
	}
	c.metrics.SetPointersSynchronized(true)
	c.logger.Info("Multichain vault selected", "address", vault.Address.Hex(), "name", vault.DisplayName)
	return nil
}

// SelectSingleChainVault records a legacy-flow selection. The multichain
// pointer is left for the next reconciliation.
func (c *MigrationCoordinatorImpl) SelectSingleChainVault(ctx context.Context, vault entity.PerChainVault) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ptr := entity.LegacyPointer{Address: vault.Address, DisplayName: vault.DisplayName, ChainID: vault.ChainID}
	if err := c.store.SetLegacyPointer(ctx, ptr); err != nil {
		return fmt.Errorf("%w: %w", entity.ErrStoreWrite, err)
	}
	c.logger.Info("Single-chain vault selected", "address", vault.Address.Hex(), "chain_id", vault.ChainID)
	return c.recordSync(ctx)
}

// GetMigrationStatus reports the mode and whether both pointers agree.
func (c *MigrationCoordinatorImpl) GetMigrationStatus(ctx context.Context) (entity.MigrationStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	state, err := c.readState(ctx)
	if err != nil {
		return entity.MigrationStatus{}, err
	}
	status := entity.MigrationStatus{
		MultichainModeEnabled: c.modeEnabled,
		PointersSynchronized:  state.Synchronized(),
	}
	if !status.PointersSynchronized {
		status.Divergence = &entity.PointerDivergence{
			LegacyAddress:     state.Legacy.Address,
			MultichainAddress: *state.Multichain,
		}
	}
	return status, nil
}

// reconcileLocked applies the start-up transitions. deriveLegacy enables the
// multichain-to-legacy case, which a mode toggle does not run.
func (c *MigrationCoordinatorImpl) reconcileLocked(ctx context.Context, deriveLegacy bool) error {
	state, err := c.readState(ctx)
	if err != nil {
		return err
	}

	switch {
	case state.Legacy != nil && state.Multichain == nil:
		vault, err := c.repo.FindMultichainVaultByAddress(ctx, state.Legacy.Address)
		if err != nil {
			return err
		}
		if vault == nil {
			c.logger.Warn("Legacy pointer has no multichain deployments", "address", state.Legacy.Address.Hex())
			return nil
		}
		if err := c.repo.SetActiveMultichainVault(ctx, *vault); err != nil {
			return err
		}
		c.logger.Info("Derived multichain pointer from legacy pointer", "address", vault.Address.Hex())
		c.metrics.SetPointersSynchronized(true)

	case state.Legacy != nil && state.Multichain != nil && !state.Synchronized():
		// Legacy wins until the next explicit selection.
		c.logger.Warn("Active pointers diverge, keeping legacy pointer",
			"legacy", state.Legacy.Address.Hex(), "multichain", state.Multichain.Hex())
		c.metrics.SetPointersSynchronized(false)

	case deriveLegacy && state.Legacy == nil && state.Multichain != nil:
		vault, err := c.repo.FindMultichainVaultByAddress(ctx, *state.Multichain)
		if err != nil {
			return err
		}
		if vault == nil {
			c.logger.Warn("Multichain pointer is dangling", "address", state.Multichain.Hex())
			return nil
		}
		if err := c.setLegacyFrom(ctx, *vault); err != nil {
			return err
		}
		c.metrics.SetPointersSynchronized(true)

	default:
		c.metrics.SetPointersSynchronized(state.Synchronized())
	}
	return nil
}

func (c *MigrationCoordinatorImpl) readState(ctx context.Context) (entity.ActiveSelectionState, error) {
	legacy, err := c.store.GetLegacyPointer(ctx)
	if err != nil {
		return entity.ActiveSelectionState{}, fmt.Errorf("%w: %w", entity.ErrStoreRead, err)
	}
	multichain, err := c.store.GetMultichainPointer(ctx)
	if err != nil {
		return entity.ActiveSelectionState{}, fmt.Errorf("%w: %w", entity.ErrStoreRead, err)
	}
	return entity.ActiveSelectionState{Legacy: legacy, Multichain: multichain}, nil
}

// setLegacyFrom points the legacy pointer at the vault's lowest chain id.
func (c *MigrationCoordinatorImpl) setLegacyFrom(ctx context.Context, vault entity.MultichainVault) error {
	chainID, ok := vault.LowestChainID()
	if !ok {
		return entity.ErrEmptyVault
	}
	ptr := entity.LegacyPointer{Address: vault.Address, DisplayName: vault.DisplayName, ChainID: chainID}
	if err := c.store.SetLegacyPointer(ctx, ptr); err != nil {
		c.logger.Error("Failed to persist legacy pointer", "address", vault.Address.Hex(), "error", err)
		return fmt.Errorf("%w: %w", entity.ErrStoreWrite, err)
	}
	c.logger.Debug("Legacy pointer set", "address", vault.Address.Hex(), "chain_id", chainID)
	return nil
}

func (c *MigrationCoordinatorImpl) recordSync(ctx context.Context) error {
	state, err := c.readState(ctx)
	if err != nil {
		return err
	}
	c.metrics.SetPointersSynchronized(state.Synchronized())
	return nil
}
