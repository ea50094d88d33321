package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"vault_aggregator/internal/domain/entity"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	treasury = common.HexToAddress("0xAC00000000000000000000000000000000000B08")
	ops      = common.HexToAddress("0x00000000000000000000000000000000000000a1")
)

func openMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUpsertAndList(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)

	require.NoError(t, s.UpsertPerChainVaults(ctx, []entity.PerChainVault{
		{Address: treasury, ChainID: 84532, DisplayName: "Treasury", SignerThreshold: 2, Version: "1.4.1"},
		{Address: treasury, ChainID: 11155111, DisplayName: "Treasury", SignerThreshold: 2, Version: "1.4.1", Nonce: 3},
		{Address: ops, ChainID: 1, DisplayName: "Ops"},
	}))
	require.NoError(t, s.UpsertPerChainVaults(ctx, []entity.PerChainVault{
		{Address: treasury, ChainID: 84532, DisplayName: "Treasury Base", SignerThreshold: 3, Version: "1.4.1", Nonce: 9},
	}))

	vaults, err := s.ListAllPerChainVaults(ctx)
	require.NoError(t, err)
	require.Len(t, vaults, 3)

	assert.Equal(t, ops, vaults[0].Address)
	assert.Equal(t, treasury, vaults[1].Address)
	assert.EqualValues(t, 84532, vaults[1].ChainID)
	assert.Equal(t, "Treasury Base", vaults[1].DisplayName)
	assert.EqualValues(t, 3, vaults[1].SignerThreshold)
	assert.EqualValues(t, 9, vaults[1].Nonce)
	assert.EqualValues(t, 11155111, vaults[2].ChainID)
}

func TestPointers(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)

	legacy, err := s.GetLegacyPointer(ctx)
	require.NoError(t, err)
	assert.Nil(t, legacy)
	multi, err := s.GetMultichainPointer(ctx)
	require.NoError(t, err)
	assert.Nil(t, multi)

	require.NoError(t, s.SetLegacyPointer(ctx, entity.LegacyPointer{Address: ops, DisplayName: "Ops", ChainID: 10}))
	require.NoError(t, s.SetMultichainPointer(ctx, treasury))
	require.NoError(t, s.SetMultichainPointer(ctx, ops))

	legacy, err = s.GetLegacyPointer(ctx)
	require.NoError(t, err)
	assert.Equal(t, entity.LegacyPointer{Address: ops, DisplayName: "Ops", ChainID: 10}, *legacy)

	multi, err = s.GetMultichainPointer(ctx)
	require.NoError(t, err)
	assert.Equal(t, ops, *multi)
}

func TestOpenPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vaults.db")

	s, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.SetMultichainPointer(ctx, treasury))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()
	multi, err := s.GetMultichainPointer(ctx)
	require.NoError(t, err)
	require.NotNil(t, multi)
	assert.Equal(t, treasury, *multi)
}
