package service

import (
	"context"
	"errors"
	"time"

	"vault_aggregator/internal/app/port"
	"vault_aggregator/internal/domain/entity"
	"vault_aggregator/internal/pkg/logger"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

var (
	vaultX = common.HexToAddress("0xAC00000000000000000000000000000000000B08")
	vaultY = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	vaultZ = common.HexToAddress("0x7a00000000000000000000000000000000000003")
)

func nopLogger() port.Logger {
	return logger.NewZapAdapter(zap.NewNop())
}

func deployment(addr common.Address, chainID uint64, name string) entity.PerChainVault {
	return entity.PerChainVault{Address: addr, ChainID: chainID, DisplayName: name, SignerThreshold: 2, Version: "1.4.1"}
}

var errStoreDown = errors.New("store unreachable")

// failingStore fails every call.
type failingStore struct{}

func (failingStore) ListAllPerChainVaults(context.Context) ([]entity.PerChainVault, error) {
	return nil, errStoreDown
}
func (failingStore) GetLegacyPointer(context.Context) (*entity.LegacyPointer, error) {
	return nil, errStoreDown
}
func (failingStore) SetLegacyPointer(context.Context, entity.LegacyPointer) error {
	return errStoreDown
}
func (failingStore) GetMultichainPointer(context.Context) (*common.Address, error) {
	return nil, errStoreDown
}
func (failingStore) SetMultichainPointer(context.Context, common.Address) error {
	return errStoreDown
}

func receive(ch <-chan entity.ActiveVaultEvent) (entity.ActiveVaultEvent, bool) {
	select {
	case ev, ok := <-ch:
		return ev, ok
	case <-time.After(2 * time.Second):
		return entity.ActiveVaultEvent{}, false
	}
}
