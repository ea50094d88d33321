package service

import (
	"context"
	"fmt"
	"math/big"
	"testing"
	"time"

	"vault_aggregator/internal/domain/entity"
	"vault_aggregator/internal/infrastructure/vaultstore/memory"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListMultichainVaultsPartitionsRecords(t *testing.T) {
	var records []entity.PerChainVault
	for a := 0; a < 7; a++ {
		addr := common.BigToAddress(big.NewInt(int64(1000 + a)))
		for c := 0; c <= a%4; c++ {
			records = append(records, deployment(addr, uint64(1+c*100), fmt.Sprintf("vault-%d", a)))
		}
	}

	repo := NewVaultRepository(memory.NewStore(records...), nopLogger())
	vaults, err := repo.ListMultichainVaults(context.Background())
	require.NoError(t, err)

	seen := make(map[common.Address]bool)
	total := 0
	for _, v := range vaults {
		assert.False(t, seen[v.Address], "address %s appears in two vaults", v.Address.Hex())
		seen[v.Address] = true
		require.NotEmpty(t, v.Deployments)
		for chainID, d := range v.Deployments {
			assert.Equal(t, v.Address, d.Address)
			assert.Equal(t, chainID, d.ChainID)
			total++
		}
	}
	assert.Equal(t, len(records), total)
	assert.Len(t, vaults, 7)
}

func TestListMultichainVaultsSortsByDisplayName(t *testing.T) {
	store := memory.NewStore(
		deployment(vaultX, 1, "Treasury"),
		deployment(vaultY, 1, "alpha"),
		deployment(vaultZ, 10, "Ops"),
		deployment(vaultZ, 8453, "Ops"),
	)
	repo := NewVaultRepository(store, nopLogger())

	vaults, err := repo.ListMultichainVaults(context.Background())
	require.NoError(t, err)
	require.Len(t, vaults, 3)
	assert.Equal(t, []string{"alpha", "Ops", "Treasury"}, []string{vaults[0].DisplayName, vaults[1].DisplayName, vaults[2].DisplayName})
	assert.Equal(t, []uint64{10, 8453}, vaults[1].ChainIDs())
}

func TestFindMultichainVaultByAddress(t *testing.T) {
	repo := NewVaultRepository(memory.NewStore(
		deployment(vaultX, 11155111, "Main"),
		deployment(vaultX, 84532, "Main"),
		deployment(vaultY, 1, "Other"),
	), nopLogger())

	v, err := repo.FindMultichainVaultByAddress(context.Background(), vaultX)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "Main", v.DisplayName)
	assert.Equal(t, []uint64{84532, 11155111}, v.ChainIDs())

	missing, err := repo.FindMultichainVaultByAddress(context.Background(), vaultZ)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestGetActiveMultichainVaultUnsetAndDangling(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(deployment(vaultX, 1, "Main"))
	repo := NewVaultRepository(store, nopLogger())

	active, err := repo.GetActiveMultichainVault(ctx)
	require.NoError(t, err)
	assert.Nil(t, active)

	require.NoError(t, store.SetMultichainPointer(ctx, vaultZ))
	active, err = repo.GetActiveMultichainVault(ctx)
	require.NoError(t, err)
	assert.Nil(t, active, "dangling pointer resolves to absent")

	require.NoError(t, store.SetMultichainPointer(ctx, vaultX))
	active, err = repo.GetActiveMultichainVault(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, vaultX, active.Address)
}

func TestStoreReadFailurePropagates(t *testing.T) {
	repo := NewVaultRepository(failingStore{}, nopLogger())
	ctx := context.Background()

	_, err := repo.ListMultichainVaults(ctx)
	assert.ErrorIs(t, err, entity.ErrStoreRead)
	assert.ErrorIs(t, err, errStoreDown)

	_, err = repo.FindMultichainVaultByAddress(ctx, vaultX)
	assert.ErrorIs(t, err, entity.ErrStoreRead)

	_, err = repo.GetActiveMultichainVault(ctx)
	assert.ErrorIs(t, err, entity.ErrStoreRead)

	_, err = repo.ActiveVaultChanges(ctx)
	assert.ErrorIs(t, err, entity.ErrStoreRead)

	err = repo.SetActiveMultichainVault(ctx, entity.MultichainVault{Address: vaultX})
	assert.ErrorIs(t, err, entity.ErrStoreWrite)
}

func TestSetActiveMultichainVaultEmitsOncePerCall(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo := NewVaultRepository(memory.NewStore(deployment(vaultX, 1, "Main"), deployment(vaultX, 8453, "Main")), nopLogger())
	vault, err := repo.FindMultichainVaultByAddress(ctx, vaultX)
	require.NoError(t, err)

	ch, err := repo.ActiveVaultChanges(ctx)
	require.NoError(t, err)

	initial, ok := receive(ch)
	require.True(t, ok)
	assert.Nil(t, initial.Vault)

	require.NoError(t, repo.SetActiveMultichainVault(ctx, *vault))
	require.NoError(t, repo.SetActiveMultichainVault(ctx, *vault))

	for i := 0; i < 2; i++ {
		ev, ok := receive(ch)
		require.True(t, ok, "notification %d missing", i+1)
		require.NotNil(t, ev.Vault)
		assert.Equal(t, vaultX, ev.Vault.Address)
	}

	select {
	case ev := <-ch:
		t.Fatalf("unexpected extra notification: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}

	active, err := repo.GetActiveMultichainVault(ctx)
	require.NoError(t, err)
	assert.Equal(t, vaultX, active.Address)
}

func TestActiveVaultChangesReplaysCurrentValue(t *testing.T) {
	ctx := context.Background()
	repo := NewVaultRepository(memory.NewStore(deployment(vaultY, 30, "Rootstock vault")), nopLogger())
	vault, err := repo.FindMultichainVaultByAddress(ctx, vaultY)
	require.NoError(t, err)
	require.NoError(t, repo.SetActiveMultichainVault(ctx, *vault))

	for attempt := 0; attempt < 2; attempt++ {
		subCtx, cancel := context.WithCancel(ctx)
		ch, err := repo.ActiveVaultChanges(subCtx)
		require.NoError(t, err)

		ev, ok := receive(ch)
		require.True(t, ok)
		require.NotNil(t, ev.Vault)
		assert.Equal(t, vaultY, ev.Vault.Address)

		cancel()
		for range ch {
		}
	}
	assert.Eventually(t, func() bool { return repo.changes.subscriberCount() == 0 }, time.Second, 10*time.Millisecond)
}
