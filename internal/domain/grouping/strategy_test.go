package grouping

import (
	"math/big"
	"testing"

	"vault_aggregator/internal/domain/entity"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func native(chainID uint64, symbol string, decimals uint8, raw int64, fiat string) entity.BalanceEntry {
	return entity.BalanceEntry{
		TokenKind:    entity.TokenKindNative,
		ChainID:      chainID,
		Symbol:       symbol,
		Decimals:     decimals,
		RawAmount:    big.NewInt(raw),
		FiatAmount:   decimal.RequireFromString(fiat),
		FiatCurrency: "USD",
	}
}

func token(chainID uint64, contract, symbol string, decimals uint8, raw int64, fiat string) entity.BalanceEntry {
	e := native(chainID, symbol, decimals, raw, fiat)
	e.TokenKind = entity.TokenKindFungible
	e.ContractAddress = common.HexToAddress(contract)
	return e
}

func TestKeyOfNativeMergesSameSymbolAcrossChains(t *testing.T) {
	a := native(1, "eth", 18, 1, "1")
	b := native(8453, "ETH", 18, 1, "1")
	assert.Equal(t, KeyOf(a), KeyOf(b))
	assert.Equal(t, "NATIVE:ETH", KeyOf(a))

	rbtc := native(30, "RBTC", 18, 1, "1")
	assert.NotEqual(t, KeyOf(a), KeyOf(rbtc))
}

func TestKeyOfFungibleUsesContractAddress(t *testing.T) {
	usdcA := token(1, "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48", "USDC", 6, 1, "1")
	usdcB := token(8453, "0x833589fcd6edb6e08f4c7c32d4f71b54bda02913", "USDC", 6, 1, "1")
	assert.NotEqual(t, KeyOf(usdcA), KeyOf(usdcB))
	assert.Equal(t, "TOKEN:0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", KeyOf(usdcA))

	sameAddrOtherChain := token(10, "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48", "USDC", 6, 1, "1")
	assert.Equal(t, KeyOf(usdcA), KeyOf(sameAddrOtherChain))
}

func TestKeyOfNativeIgnoresZeroContractAddress(t *testing.T) {
	eth := native(1, "ETH", 18, 1, "1")
	bnb := native(56, "BNB", 18, 1, "1")
	require.Equal(t, eth.ContractAddress, bnb.ContractAddress)
	assert.NotEqual(t, KeyOf(eth), KeyOf(bnb))
}

func TestFoldSumsMatchingDecimals(t *testing.T) {
	groups := Fold([]ChainBalances{
		{ChainID: 84532, ChainName: "Base Sepolia", Entries: []entity.BalanceEntry{native(84532, "ETH", 18, 10, "25.10")}},
		{ChainID: 11155111, ChainName: "Sepolia", Entries: []entity.BalanceEntry{native(11155111, "ETH", 18, 500, "1255.00")}},
	})

	require.Len(t, groups, 1)
	g := groups[0]
	assert.Equal(t, "NATIVE:ETH", g.GroupKey)
	assert.Equal(t, "510", g.TotalRawAmount.String())
	assert.Nil(t, g.PerChainAmounts)
	assert.True(t, decimal.RequireFromString("1280.10").Equal(g.TotalFiatAmount))
	assert.Equal(t, []string{"Base Sepolia", "Sepolia"}, g.ChainsPresent)
	assert.Equal(t, "Base Sepolia, Sepolia", g.ChainsLabel)
}

func TestFoldKeepsMismatchedDecimalsApart(t *testing.T) {
	groups := Fold([]ChainBalances{
		{ChainID: 1, ChainName: "Ethereum", Entries: []entity.BalanceEntry{native(1, "ETH", 18, 1_000_000, "2")}},
		{ChainID: 2, ChainName: "Odd", Entries: []entity.BalanceEntry{native(2, "ETH", 9, 7, "3")}},
	})

	require.Len(t, groups, 1)
	g := groups[0]
	assert.Nil(t, g.TotalRawAmount)
	require.Len(t, g.PerChainAmounts, 2)
	assert.Equal(t, uint8(18), g.PerChainAmounts[0].Decimals)
	assert.Equal(t, "1000000", g.PerChainAmounts[0].RawAmount.String())
	assert.Equal(t, uint8(9), g.PerChainAmounts[1].Decimals)
	assert.Equal(t, "7", g.PerChainAmounts[1].RawAmount.String())
	assert.True(t, decimal.NewFromInt(5).Equal(g.TotalFiatAmount))
}

func TestFoldMismatchedDecimalsAcrossManyCombinations(t *testing.T) {
	scales := []uint8{0, 6, 8, 9, 18}
	for _, a := range scales {
		for _, b := range scales {
			groups := Fold([]ChainBalances{
				{ChainID: 1, ChainName: "A", Entries: []entity.BalanceEntry{native(1, "X", a, 3, "0")}},
				{ChainID: 2, ChainName: "B", Entries: []entity.BalanceEntry{native(2, "X", b, 4, "0")}},
			})
			require.Len(t, groups, 1)
			if a == b {
				assert.Equal(t, "7", groups[0].TotalRawAmount.String())
				assert.Nil(t, groups[0].PerChainAmounts)
			} else {
				assert.Nil(t, groups[0].TotalRawAmount, "decimals %d/%d must not be summed", a, b)
				assert.Len(t, groups[0].PerChainAmounts, 2)
			}
		}
	}
}

func TestFoldOrderIsStable(t *testing.T) {
	input := []ChainBalances{
		{ChainID: 1, ChainName: "Ethereum", Entries: []entity.BalanceEntry{
			native(1, "ETH", 18, 1, "1"),
			token(1, "0x1111111111111111111111111111111111111111", "AAA", 18, 1, "1"),
		}},
		{ChainID: 30, ChainName: "Rootstock", Entries: []entity.BalanceEntry{native(30, "RBTC", 18, 1, "1")}},
	}

	first := Fold(input)
	second := Fold(input)
	assert.Equal(t, first, second)

	keys := make([]string, 0, len(first))
	for _, g := range first {
		keys = append(keys, g.GroupKey)
	}
	assert.Equal(t, []string{"NATIVE:ETH", "TOKEN:0x1111111111111111111111111111111111111111", "NATIVE:RBTC"}, keys)
}

func TestFoldEmpty(t *testing.T) {
	assert.Empty(t, Fold(nil))
}
