package entity

import (
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// ChainAmount is a raw amount kept apart because its decimal scale differs
// from other chains folded into the same group.
type ChainAmount struct {
	ChainID   uint64   `json:"chainId"`
	ChainName string   `json:"chainName"`
	Decimals  uint8    `json:"decimals"`
	RawAmount *big.Int `json:"rawAmount"`
}

// AggregatedBalanceGroup folds the entries sharing one grouping key.
// Exactly one of TotalRawAmount and PerChainAmounts is set.
type AggregatedBalanceGroup struct {
	GroupKey        string          `json:"groupKey"`
	Symbol          string          `json:"symbol"`
	TokenKind       TokenKind       `json:"tokenKind"`
	Decimals        uint8           `json:"decimals"`
	TotalRawAmount  *big.Int        `json:"totalRawAmount,omitempty"`
	PerChainAmounts []ChainAmount   `json:"perChainAmounts,omitempty"`
	TotalFiatAmount decimal.Decimal `json:"totalFiatAmount"`
	ChainsPresent   []string        `json:"chainsPresent"`
	ChainsLabel     string          `json:"chainsLabel"`
}

// AggregationResult is the output of one aggregation run.
type AggregationResult struct {
	RunID           string                       `json:"runId"`
	VaultAddress    common.Address               `json:"vaultAddress"`
	FiatCurrency    string                       `json:"fiatCurrency"`
	TotalFiatAmount decimal.Decimal              `json:"totalFiatAmount"`
	Groups          []AggregatedBalanceGroup     `json:"groups"`
	SucceededChains []uint64                     `json:"succeededChains"`
	FailedChains    map[uint64]ChainFetchFailure `json:"failedChains"`
	Snapshots       map[uint64]BalanceSnapshot   `json:"-"`
	CompletedAt     time.Time                    `json:"completedAt"`
	Stale           bool                         `json:"stale"`
	// StaleRunID names the run whose groups and totals a stale result shows.
	StaleRunID string `json:"staleRunId,omitempty"`
}

// FailedChainIDs returns the failed chain ids in ascending order.
func (r *AggregationResult) FailedChainIDs() []uint64 {
	ids := make([]uint64, 0, len(r.FailedChains))
	for id := range r.FailedChains {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// AllFailed reports whether no chain contributed to the result.
func (r *AggregationResult) AllFailed() bool {
	return len(r.SucceededChains) == 0 && len(r.FailedChains) > 0
}
