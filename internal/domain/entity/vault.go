package entity

import (
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// PerChainVault is one deployment of a multisig vault on a single chain.
// Address and ChainID together identify the record in the vault store.
type PerChainVault struct {
	Address         common.Address `json:"address" yaml:"address"`
	ChainID         uint64         `json:"chainId" yaml:"chainId"`
	DisplayName     string         `json:"displayName" yaml:"displayName"`
	SignerThreshold uint32         `json:"signerThreshold" yaml:"signerThreshold"`
	Version         string         `json:"version" yaml:"version"`
	Nonce           uint64         `json:"nonce" yaml:"nonce"`
}

// MultichainVault groups every PerChainVault sharing one address.
// It is derived on demand and never persisted.
type MultichainVault struct {
	Address     common.Address           `json:"address"`
	DisplayName string                   `json:"displayName"`
	Deployments map[uint64]PerChainVault `json:"deployments"`
}

// ChainIDs returns the deployment chain ids in ascending order.
func (v MultichainVault) ChainIDs() []uint64 {
	ids := make([]uint64, 0, len(v.Deployments))
	for id := range v.Deployments {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// LowestChainID returns the representative chain used when a single-chain
// pointer has to be derived from the vault. ok is false for an empty vault.
func (v MultichainVault) LowestChainID() (uint64, bool) {
	ids := v.ChainIDs()
	if len(ids) == 0 {
		return 0, false
	}
	return ids[0], true
}

// Subset returns a copy of the vault restricted to the given chain ids.
// Unknown ids are ignored.
func (v MultichainVault) Subset(chainIDs []uint64) MultichainVault {
	out := MultichainVault{
		Address:     v.Address,
		DisplayName: v.DisplayName,
		Deployments: make(map[uint64]PerChainVault, len(chainIDs)),
	}
	for _, id := range chainIDs {
		if d, ok := v.Deployments[id]; ok {
			out.Deployments[id] = d
		}
	}
	return out
}
