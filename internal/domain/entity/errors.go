package entity

import "errors"

var (
	// ErrStoreRead wraps any failure of the underlying vault store.
	ErrStoreRead = errors.New("vault store read failed")
	// ErrStoreWrite wraps a failed pointer write.
	ErrStoreWrite = errors.New("vault store write failed")
	// ErrUnsupportedChain is returned when no balance client serves a chain.
	ErrUnsupportedChain = errors.New("unsupported chain")
	// ErrPriceUnavailable is returned when no fiat quote exists for an asset.
	ErrPriceUnavailable = errors.New("price unavailable")
	// ErrEmptyVault is returned when an operation needs at least one deployment.
	ErrEmptyVault = errors.New("multichain vault has no deployments")
)
