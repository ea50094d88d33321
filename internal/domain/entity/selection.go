package entity

import "github.com/ethereum/go-ethereum/common"

// LegacyPointer is the single-chain "currently selected vault" pointer.
type LegacyPointer struct {
	Address     common.Address `json:"address"`
	DisplayName string         `json:"displayName"`
	ChainID     uint64         `json:"chainId"`
}

// ActiveSelectionState holds both independently persisted pointers.
// Either may be nil.
type ActiveSelectionState struct {
	Legacy     *LegacyPointer  `json:"legacy,omitempty"`
	Multichain *common.Address `json:"multichain,omitempty"`
}

// Synchronized reports whether both pointers reference the same address.
// It is trivially true when either pointer is absent.
func (s ActiveSelectionState) Synchronized() bool {
	if s.Legacy == nil || s.Multichain == nil {
		return true
	}
	return s.Legacy.Address == *s.Multichain
}

// PointerDivergence describes a legacy/multichain pointer mismatch.
type PointerDivergence struct {
	LegacyAddress     common.Address `json:"legacyAddress"`
	MultichainAddress common.Address `json:"multichainAddress"`
}

// MigrationStatus is reported to the presentation layer.
type MigrationStatus struct {
	MultichainModeEnabled bool               `json:"multichainModeEnabled"`
	PointersSynchronized  bool               `json:"pointersSynchronized"`
	Divergence            *PointerDivergence `json:"divergence,omitempty"`
}

// ActiveVaultEvent is one emission of the active-vault stream. Vault is nil
// when no multichain vault is active or the pointer is dangling.
type ActiveVaultEvent struct {
	Vault *MultichainVault
}
