package entity

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// TokenKind distinguishes a chain's native currency from contract tokens.
type TokenKind string

const (
	TokenKindNative   TokenKind = "NATIVE"
	TokenKindFungible TokenKind = "FUNGIBLE"
)

// BalanceEntry is one asset holding on one chain, in the canonical shape every
// chain balance client maps its responses to.
type BalanceEntry struct {
	TokenKind       TokenKind       `json:"tokenKind"`
	ChainID         uint64          `json:"chainId"`
	ContractAddress common.Address  `json:"contractAddress"` // zero address for NATIVE
	Symbol          string          `json:"symbol"`
	Decimals        uint8           `json:"decimals"`
	RawAmount       *big.Int        `json:"rawAmount"`
	FiatAmount      decimal.Decimal `json:"fiatAmount"`
	FiatCurrency    string          `json:"fiatCurrency"`
}

// BalanceSnapshot is the result of one successful per-chain balance fetch.
type BalanceSnapshot struct {
	ChainID      uint64          `json:"chainId"`
	Entries      []BalanceEntry  `json:"entries"`
	FiatTotal    decimal.Decimal `json:"fiatTotal"`
	FiatCurrency string          `json:"fiatCurrency"`
	FetchedAt    time.Time       `json:"fetchedAt"`
}
