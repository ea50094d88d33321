package client

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"vault_aggregator/internal/app/port"
	"vault_aggregator/internal/domain/entity"
	"vault_aggregator/internal/pkg/utils"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"golang.org/x/time/rate"
)

// EVMClient implements port.BlockchainClient for EVM-compatible chains.
type EVMClient struct {
	ethClient      *ethclient.Client
	netDef         entity.NetworkDefinition
	rpcCallTimeout time.Duration
	limiter        *rate.Limiter
	maxBatchSize   int
}

// EVMClientOptions tunes an EVMClient.
type EVMClientOptions struct {
	ConnectionTimeout time.Duration
	RPCCallTimeout    time.Duration
	RateLimit         float64 // batch calls per second, 0 disables limiting
	BurstLimit        int
	MaxBatchSize      int
}

// ERC20 ABI minimal part for balanceOf
const erc20ABI = `[{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"payable":false,"stateMutability":"view","type":"function"}]`

var (
	parsedERC20ABI  abi.ABI
	parsedERC20Once sync.Once
	erc20MethodID   []byte
)

func initParsedERC20ABI() {
	parsedERC20Once.Do(func() {
		var err error
		parsedERC20ABI, err = abi.JSON(strings.NewReader(erc20ABI))
		if err != nil {
			panic(fmt.Sprintf("failed to parse ERC20 ABI: %v", err))
		}
		balanceOfMethod, ok := parsedERC20ABI.Methods["balanceOf"]
		if !ok {
			panic("balanceOf method not found in parsed ERC20 ABI")
		}
		erc20MethodID = balanceOfMethod.ID
	})
}

// NewEVMClient dials the first reachable RPC endpoint of the network.
func NewEVMClient(ctx context.Context, netDef entity.NetworkDefinition, opts EVMClientOptions) (*EVMClient, error) {
	initParsedERC20ABI()

	rpcURLs := make([]string, 0, 1+len(netDef.FallbackRPCURLs))
	if netDef.PrimaryRPCURL != "" {
		rpcURLs = append(rpcURLs, netDef.PrimaryRPCURL)
	}
	rpcURLs = append(rpcURLs, netDef.FallbackRPCURLs...)
	if len(rpcURLs) == 0 {
		return nil, fmt.Errorf("network %s has no RPC endpoints", netDef.Name)
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := opts.BurstLimit
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	var lastErr error
	for _, rpcURL := range rpcURLs {
		dialCtx, cancel := ctx, context.CancelFunc(func() {})
		if opts.ConnectionTimeout > 0 {
			dialCtx, cancel = context.WithTimeout(ctx, opts.ConnectionTimeout)
		}
		client, err := ethclient.DialContext(dialCtx, rpcURL)
		cancel()

		if err == nil {
			return &EVMClient{
				ethClient:      client,
				netDef:         netDef,
				rpcCallTimeout: opts.RPCCallTimeout,
				limiter:        limiter,
				maxBatchSize:   opts.MaxBatchSize,
			}, nil
		}
		lastErr = fmt.Errorf("failed to connect to RPC %s: %w", rpcURL, err)
	}

	return nil, fmt.Errorf("all RPC connection attempts failed for network %s: %w", netDef.Name, lastErr)
}

// GetBalances fetches multiple balances using JSON-RPC batch requests.
func (c *EVMClient) GetBalances(ctx context.Context, requests []entity.BalanceRequestItem) ([]entity.BalanceResultItem, error) {
	if len(requests) == 0 {
		return []entity.BalanceResultItem{}, nil
	}

	results := make([]entity.BalanceResultItem, 0, len(requests))
	for _, chunk := range utils.Batch(requests, c.maxBatchSize) {
		chunkResults, err := c.getBalancesBatch(ctx, chunk)
		if err != nil {
			return nil, err
		}
		results = append(results, chunkResults...)
	}
	return results, nil
}

func (c *EVMClient) getBalancesBatch(ctx context.Context, requests []entity.BalanceRequestItem) ([]entity.BalanceResultItem, error) {
	batchElems := make([]rpc.BatchElem, 0, len(requests))
	elemIndex := make([]int, 0, len(requests))
	results := make([]entity.BalanceResultItem, len(requests))

	for i, reqItem := range requests {
		results[i] = entity.BalanceResultItem{
			RequestID:    reqItem.ID,
			VaultAddress: reqItem.VaultAddress,
			ChainID:      c.netDef.ChainID,
			TokenAddress: reqItem.TokenAddress,
			TokenSymbol:  reqItem.TokenSymbol,
			Decimals:     reqItem.TokenDecimals,
			IsNative:     reqItem.Type == entity.NativeBalanceRequest,
		}

		switch reqItem.Type {
		case entity.NativeBalanceRequest:
			batchElems = append(batchElems, rpc.BatchElem{
				Method: "eth_getBalance",
				Args:   []interface{}{common.HexToAddress(reqItem.VaultAddress), "latest"},
				Result: new(hexutil.Big),
			})
			elemIndex = append(elemIndex, i)
		case entity.TokenBalanceRequest:
			paddedVaultAddress := common.LeftPadBytes(common.HexToAddress(reqItem.VaultAddress).Bytes(), 32)
			callData := append(append([]byte{}, erc20MethodID...), paddedVaultAddress...)

			callArgs := map[string]interface{}{
				"to":   common.HexToAddress(reqItem.TokenAddress),
				"data": hexutil.Bytes(callData),
			}
			batchElems = append(batchElems, rpc.BatchElem{
				Method: "eth_call",
				Args:   []interface{}{callArgs, "latest"},
				Result: new(hexutil.Bytes),
			})
			elemIndex = append(elemIndex, i)
		default:
			results[i].Error = fmt.Errorf("unknown balance request type: %v for %s", reqItem.Type, reqItem.TokenSymbol)
		}
	}

	if len(batchElems) == 0 {
		return results, nil
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait on %s: %w", c.netDef.Name, err)
		}
	}

	rpcCallCtx, cancel := ctx, context.CancelFunc(func() {})
	if c.rpcCallTimeout > 0 {
		rpcCallCtx, cancel = context.WithTimeout(ctx, c.rpcCallTimeout)
	}
	defer cancel()

	if err := c.ethClient.Client().BatchCallContext(rpcCallCtx, batchElems); err != nil {
		return nil, fmt.Errorf("RPC batch call on %s failed: %w", c.netDef.Name, err)
	}

	for j, elem := range batchElems {
		i := elemIndex[j]
		if elem.Error != nil {
			results[i].Error = fmt.Errorf("failed to fetch %s for vault %s: %w",
				requests[i].TokenSymbol, requests[i].VaultAddress, elem.Error)
			continue
		}

		switch requests[i].Type {
		case entity.NativeBalanceRequest:
			result, ok := elem.Result.(*hexutil.Big)
			if !ok || result == nil {
				results[i].Error = fmt.Errorf("failed to decode native balance for %s", requests[i].TokenSymbol)
				continue
			}
			results[i].Balance = new(big.Int).Set((*big.Int)(result))
		case entity.TokenBalanceRequest:
			balance, err := decodeBalanceOf(elem.Result)
			if err != nil {
				results[i].Error = fmt.Errorf("failed to decode balanceOf for %s: %w", requests[i].TokenSymbol, err)
				continue
			}
			results[i].Balance = balance
		}
	}
	return results, nil
}

func decodeBalanceOf(raw interface{}) (*big.Int, error) {
	result, ok := raw.(*hexutil.Bytes)
	if !ok || result == nil {
		return nil, fmt.Errorf("unexpected result type %T", raw)
	}
	// Calls to an address without code return empty data.
	if len(*result) == 0 {
		return big.NewInt(0), nil
	}
	unpacked, err := parsedERC20ABI.Unpack("balanceOf", *result)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", hexutil.Encode(*result), err)
	}
	if len(unpacked) == 0 {
		return nil, fmt.Errorf("balanceOf unpack returned no data")
	}
	balance, ok := unpacked[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("balanceOf returned %T", unpacked[0])
	}
	return balance, nil
}

// Definition returns the network definition for this client.
func (c *EVMClient) Definition() entity.NetworkDefinition {
	return c.netDef
}

// Close releases the underlying RPC connection.
func (c *EVMClient) Close() {
	c.ethClient.Close()
}

var _ port.BlockchainClient = (*EVMClient)(nil)
