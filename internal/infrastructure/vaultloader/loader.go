// Package vaultloader reads per-chain vault records from a YAML seed file.
package vaultloader

import (
	"fmt"
	"os"
	"strings"

	"vault_aggregator/internal/domain/entity"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

type seedFile struct {
	Vaults []seedVault `yaml:"vaults"`
}

type seedVault struct {
	Address         string `yaml:"address"`
	DisplayName     string `yaml:"displayName"`
	SignerThreshold uint32 `yaml:"signerThreshold"`
	Version         string `yaml:"version"`
	Deployments     []struct {
		ChainID     uint64 `yaml:"chainId"`
		DisplayName string `yaml:"displayName"`
		Nonce       uint64 `yaml:"nonce"`
	} `yaml:"deployments"`
}

// LoadVaults reads the seed file at path.
func LoadVaults(path string) ([]entity.PerChainVault, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open vault file %s: %w", path, err)
	}
	vaults, err := ParseVaults(data)
	if err != nil {
		return nil, fmt.Errorf("vault file %s: %w", path, err)
	}
	return vaults, nil
}

// ParseVaults expands every vault entry into one record per deployment.
// A deployment display name overrides the vault's.
func ParseVaults(data []byte) ([]entity.PerChainVault, error) {
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal vaults: %w", err)
	}

	type key struct {
		addr    common.Address
		chainID uint64
	}
	seen := make(map[key]struct{})
	out := make([]entity.PerChainVault, 0, len(seed.Vaults))

	for i, v := range seed.Vaults {
		addr := strings.TrimSpace(v.Address)
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("vault #%d has invalid address %q", i+1, v.Address)
		}
		if len(v.Deployments) == 0 {
			return nil, fmt.Errorf("vault %s has no deployments", addr)
		}
		for _, d := range v.Deployments {
			if d.ChainID == 0 {
				return nil, fmt.Errorf("vault %s has a deployment without chainId", addr)
			}
			k := key{common.HexToAddress(addr), d.ChainID}
			if _, dup := seen[k]; dup {
				return nil, fmt.Errorf("vault %s is listed twice on chain %d", addr, d.ChainID)
			}
			seen[k] = struct{}{}

			name := v.DisplayName
			if d.DisplayName != "" {
				name = d.DisplayName
			}
			out = append(out, entity.PerChainVault{
				Address:         k.addr,
				ChainID:         d.ChainID,
				DisplayName:     name,
				SignerThreshold: v.SignerThreshold,
				Version:         v.Version,
				Nonce:           d.Nonce,
			})
		}
	}
	return out, nil
}
