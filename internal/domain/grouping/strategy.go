// Package grouping decides which balance entries from different chains
// represent the same asset and folds them into aggregated groups.
//
// Native currencies are grouped by symbol, because the native placeholder
// address is the zero address on every chain whatever the asset is.
// Fungible tokens are grouped by contract address, which is chain-local:
// only a literally identical address on two chains lands in one group.
package grouping

import (
	"math/big"
	"strings"

	"vault_aggregator/internal/domain/entity"

	"github.com/shopspring/decimal"
)

const (
	NativeKeyPrefix = "NATIVE:"
	TokenKeyPrefix  = "TOKEN:"
)

// KeyOf returns the grouping key of a balance entry.
func KeyOf(entry entity.BalanceEntry) string {
	if entry.TokenKind == entity.TokenKindNative {
		return NativeKeyPrefix + strings.ToUpper(strings.TrimSpace(entry.Symbol))
	}
	return TokenKeyPrefix + entry.ContractAddress.Hex()
}

// ChainListLabel renders chain display names for presentation.
func ChainListLabel(chainNames []string) string {
	return strings.Join(chainNames, ", ")
}

// ChainBalances are the entries one chain contributed to a fold.
type ChainBalances struct {
	ChainID   uint64
	ChainName string
	Entries   []entity.BalanceEntry
}

type accumulator struct {
	group     entity.AggregatedBalanceGroup
	amounts   []entity.ChainAmount
	lastChain uint64
	seenChain bool
	mixed     bool
}

// Fold combines per-chain balances into groups. chains must be supplied in a
// stable order (ascending chain id); ChainsPresent and the group order follow it,
// so equal inputs always produce equal output.
//
// Raw amounts are summed only when every folded entry has the same decimals.
// Otherwise the group carries PerChainAmounts and TotalRawAmount stays nil.
func Fold(chains []ChainBalances) []entity.AggregatedBalanceGroup {
	order := make([]string, 0)
	accs := make(map[string]*accumulator)

	for _, chain := range chains {
		for _, entry := range chain.Entries {
			key := KeyOf(entry)
			acc, ok := accs[key]
			if !ok {
				acc = &accumulator{group: entity.AggregatedBalanceGroup{
					GroupKey:        key,
					Symbol:          entry.Symbol,
					TokenKind:       entry.TokenKind,
					Decimals:        entry.Decimals,
					TotalFiatAmount: decimal.Zero,
				}}
				accs[key] = acc
				order = append(order, key)
			}
			acc.add(chain, entry)
		}
	}

	groups := make([]entity.AggregatedBalanceGroup, 0, len(order))
	for _, key := range order {
		groups = append(groups, accs[key].finish())
	}
	return groups
}

func (a *accumulator) add(chain ChainBalances, entry entity.BalanceEntry) {
	a.group.TotalFiatAmount = a.group.TotalFiatAmount.Add(entry.FiatAmount)
	if entry.Decimals != a.group.Decimals {
		a.mixed = true
	}

	raw := new(big.Int)
	if entry.RawAmount != nil {
		raw.Set(entry.RawAmount)
	}

	// A chain reporting the same key twice at the same scale is merged into
	// its existing amount.
	if a.seenChain && a.lastChain == chain.ChainID {
		last := &a.amounts[len(a.amounts)-1]
		if last.Decimals == entry.Decimals {
			last.RawAmount.Add(last.RawAmount, raw)
			return
		}
		a.amounts = append(a.amounts, entity.ChainAmount{
			ChainID: chain.ChainID, ChainName: chain.ChainName, Decimals: entry.Decimals, RawAmount: raw,
		})
		return
	}

	a.seenChain = true
	a.lastChain = chain.ChainID
	a.group.ChainsPresent = append(a.group.ChainsPresent, chain.ChainName)
	a.amounts = append(a.amounts, entity.ChainAmount{
		ChainID: chain.ChainID, ChainName: chain.ChainName, Decimals: entry.Decimals, RawAmount: raw,
	})
}

func (a *accumulator) finish() entity.AggregatedBalanceGroup {
	g := a.group
	g.ChainsLabel = ChainListLabel(g.ChainsPresent)
	if a.mixed {
		g.Decimals = 0
		g.PerChainAmounts = a.amounts
		return g
	}
	total := new(big.Int)
	for _, amt := range a.amounts {
		total.Add(total, amt.RawAmount)
	}
	g.TotalRawAmount = total
	return g
}
