// Package memory is an in-process VaultStore used by tests and by the
// "memory" database driver.
package memory

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"vault_aggregator/internal/domain/entity"

	"github.com/ethereum/go-ethereum/common"
)

type vaultKey struct {
	address common.Address
	chainID uint64
}

// Store keeps vault records and pointers in memory.
type Store struct {
	mu         sync.RWMutex
	vaults     map[vaultKey]entity.PerChainVault
	legacy     *entity.LegacyPointer
	multichain *common.Address
}

// NewStore returns a store seeded with the given records.
func NewStore(seed ...entity.PerChainVault) *Store {
	s := &Store{vaults: make(map[vaultKey]entity.PerChainVault)}
	for _, v := range seed {
		s.vaults[vaultKey{v.Address, v.ChainID}] = v
	}
	return s
}

// ListAllPerChainVaults returns records ordered by address then chain id.
func (s *Store) ListAllPerChainVaults(_ context.Context) ([]entity.PerChainVault, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]entity.PerChainVault, 0, len(s.vaults))
	for _, v := range s.vaults {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Address != out[j].Address {
			return bytes.Compare(out[i].Address[:], out[j].Address[:]) < 0
		}
		return out[i].ChainID < out[j].ChainID
	})
	return out, nil
}

// UpsertPerChainVaults inserts or replaces records keyed by address and chain.
func (s *Store) UpsertPerChainVaults(_ context.Context, vaults []entity.PerChainVault) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range vaults {
		s.vaults[vaultKey{v.Address, v.ChainID}] = v
	}
	return nil
}

// Remove deletes one record. Pointers referencing it are left as they are.
func (s *Store) Remove(addr common.Address, chainID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.vaults, vaultKey{addr, chainID})
}

func (s *Store) GetLegacyPointer(_ context.Context) (*entity.LegacyPointer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.legacy == nil {
		return nil, nil
	}
	p := *s.legacy
	return &p, nil
}

func (s *Store) SetLegacyPointer(_ context.Context, p entity.LegacyPointer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.legacy = &p
	return nil
}

func (s *Store) GetMultichainPointer(_ context.Context) (*common.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.multichain == nil {
		return nil, nil
	}
	a := *s.multichain
	return &a, nil
}

func (s *Store) SetMultichainPointer(_ context.Context, addr common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.multichain = &addr
	return nil
}
