package client

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"vault_aggregator/internal/app/port"
	"vault_aggregator/internal/domain/entity"
	"vault_aggregator/internal/pkg/utils"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// VaultBalanceClient implements port.ChainBalanceClient on top of the EVM
// clients, the tracked token lists and a price provider.
type VaultBalanceClient struct {
	networks port.NetworkDefinitionProvider
	clients  port.BlockchainClientProvider
	tokens   map[uint64][]entity.TokenInfo
	prices   port.PriceProvider
	logger   port.Logger
	now      func() time.Time
}

// NewVaultBalanceClient creates a new instance of VaultBalanceClient.
// tokens are the tracked fungible tokens keyed by chain id.
func NewVaultBalanceClient(
	networks port.NetworkDefinitionProvider,
	clients port.BlockchainClientProvider,
	tokens map[uint64][]entity.TokenInfo,
	prices port.PriceProvider,
	l port.Logger,
) *VaultBalanceClient {
	return &VaultBalanceClient{
		networks: networks,
		clients:  clients,
		tokens:   tokens,
		prices:   prices,
		logger:   l,
		now:      time.Now,
	}
}

// FetchBalance reads the native balance and every tracked token balance of
// the vault on its chain and prices them in fiatCurrency.
//
// The native balance is always reported, even when zero; tokens with a zero
// balance are dropped. A failed native read fails the chain, a failed token
// read only drops that token. Missing prices leave the fiat amount at zero.
func (c *VaultBalanceClient) FetchBalance(ctx context.Context, vault entity.PerChainVault, fiatCurrency string) (*entity.BalanceSnapshot, error) {
	netDef, ok := c.networks.GetNetworkDefinitionByChainID(vault.ChainID)
	if !ok {
		return nil, fmt.Errorf("%w: %d", entity.ErrUnsupportedChain, vault.ChainID)
	}

	client, err := c.clients.GetClient(ctx, netDef)
	if err != nil {
		return nil, err
	}

	requests := c.buildRequests(vault, netDef)
	results, err := client.GetBalances(ctx, requests)
	if err != nil {
		return nil, err
	}

	entries := make([]entity.BalanceEntry, 0, len(results))
	tokenAddrs := make([]string, 0, len(results))
	for _, res := range results {
		if res.IsNative {
			if res.Error != nil {
				return nil, fmt.Errorf("native balance on %s: %w", netDef.Name, res.Error)
			}
			entries = append(entries, entity.BalanceEntry{
				TokenKind:    entity.TokenKindNative,
				ChainID:      netDef.ChainID,
				Symbol:       netDef.NativeSymbol,
				Decimals:     netDef.Decimals,
				RawAmount:    nonNil(res.Balance),
				FiatAmount:   decimal.Zero,
				FiatCurrency: fiatCurrency,
			})
			continue
		}

		if res.Error != nil {
			c.logger.Warn("Skipping token with failed balance read", "chain_id", netDef.ChainID,
				"token", res.TokenSymbol, "token_address", res.TokenAddress, "error", res.Error)
			continue
		}
		if res.Balance == nil || res.Balance.Sign() == 0 {
			continue
		}
		entries = append(entries, entity.BalanceEntry{
			TokenKind:       entity.TokenKindFungible,
			ChainID:         netDef.ChainID,
			ContractAddress: common.HexToAddress(res.TokenAddress),
			Symbol:          res.TokenSymbol,
			Decimals:        res.Decimals,
			RawAmount:       res.Balance,
			FiatAmount:      decimal.Zero,
			FiatCurrency:    fiatCurrency,
		})
		tokenAddrs = append(tokenAddrs, res.TokenAddress)
	}

	c.price(ctx, netDef, entries, tokenAddrs, fiatCurrency)

	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.FiatAmount)
	}

	c.logger.Debug("Fetched vault balance", "chain_id", netDef.ChainID, "vault", vault.Address.Hex(),
		"entries", len(entries), "fiat_total", total.String(), "currency", fiatCurrency)
	return &entity.BalanceSnapshot{
		ChainID:      netDef.ChainID,
		Entries:      entries,
		FiatTotal:    total,
		FiatCurrency: fiatCurrency,
		FetchedAt:    c.now(),
	}, nil
}

func (c *VaultBalanceClient) buildRequests(vault entity.PerChainVault, netDef entity.NetworkDefinition) []entity.BalanceRequestItem {
	tokens := c.tokens[netDef.ChainID]
	requests := make([]entity.BalanceRequestItem, 0, 1+len(tokens))
	requests = append(requests, entity.BalanceRequestItem{
		ID:            fmt.Sprintf("%d-native", netDef.ChainID),
		Type:          entity.NativeBalanceRequest,
		VaultAddress:  vault.Address.Hex(),
		TokenAddress:  entity.ZeroAddress,
		TokenSymbol:   netDef.NativeSymbol,
		TokenDecimals: netDef.Decimals,
	})
	for _, token := range tokens {
		requests = append(requests, entity.BalanceRequestItem{
			ID:            fmt.Sprintf("%d-%s", netDef.ChainID, strings.ToLower(token.Address)),
			Type:          entity.TokenBalanceRequest,
			VaultAddress:  vault.Address.Hex(),
			TokenAddress:  token.Address,
			TokenSymbol:   token.Symbol,
			TokenDecimals: token.Decimals,
		})
	}
	return requests
}

// price fills FiatAmount in place. Price lookups never fail the chain.
func (c *VaultBalanceClient) price(
	ctx context.Context,
	netDef entity.NetworkDefinition,
	entries []entity.BalanceEntry,
	tokenAddrs []string,
	fiatCurrency string,
) {
	if c.prices == nil {
		return
	}

	nativePrice, err := c.prices.NativePrice(ctx, netDef, fiatCurrency)
	if err != nil {
		c.logger.Warn("Native price unavailable", "chain_id", netDef.ChainID, "currency", fiatCurrency, "error", err)
	}

	var tokenPrices map[string]decimal.Decimal
	if len(tokenAddrs) > 0 {
		tokenPrices, err = c.prices.TokenPrices(ctx, netDef, tokenAddrs, fiatCurrency)
		if err != nil {
			c.logger.Warn("Token prices unavailable", "chain_id", netDef.ChainID, "currency", fiatCurrency, "error", err)
		}
	}

	for i := range entries {
		e := &entries[i]
		unit := nativePrice
		if e.TokenKind == entity.TokenKindFungible {
			p, ok := tokenPrices[strings.ToLower(e.ContractAddress.Hex())]
			if !ok {
				continue
			}
			unit = p
		}
		e.FiatAmount = utils.FiatValue(e.RawAmount, e.Decimals, unit)
	}
}

func nonNil(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
