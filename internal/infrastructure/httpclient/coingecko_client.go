package httpclient

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"vault_aggregator/internal/domain/entity"
	"vault_aggregator/internal/pkg/utils"

	jsoniter "github.com/json-iterator/go"
	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const maxTokensPerRequest = 50

// simplePriceResponse maps an id or contract address to prices keyed by
// lower-case currency code.
type simplePriceResponse map[string]map[string]decimal.Decimal

// CoinGeckoClient implements port.PriceProvider against the CoinGecko
// simple price endpoints.
type CoinGeckoClient struct {
	client  *fasthttp.Client
	baseURL string
	apiKey  string
	timeout time.Duration
	cache   *cache.Cache
	logger  *zap.Logger
}

// NewCoinGeckoClient creates a new instance of CoinGeckoClient. Quotes are
// cached for cacheTTL.
func NewCoinGeckoClient(baseURL, apiKey string, timeout, cacheTTL time.Duration, logger *zap.Logger) *CoinGeckoClient {
	return &CoinGeckoClient{
		client:  &fasthttp.Client{},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		timeout: timeout,
		cache:   cache.New(cacheTTL, 2*cacheTTL),
		logger:  logger.Named("CoinGeckoClient"),
	}
}

// NativePrice returns the price of one whole unit of the network's native currency.
func (c *CoinGeckoClient) NativePrice(ctx context.Context, netDef entity.NetworkDefinition, fiatCurrency string) (decimal.Decimal, error) {
	if netDef.CoinGeckoNativeID == "" {
		return decimal.Zero, fmt.Errorf("%w: no coin id for %s", entity.ErrPriceUnavailable, netDef.Name)
	}
	currency := strings.ToLower(fiatCurrency)
	key := "native|" + netDef.CoinGeckoNativeID + "|" + currency
	if v, ok := c.cache.Get(key); ok {
		return v.(decimal.Decimal), nil
	}

	query := url.Values{}
	query.Set("ids", netDef.CoinGeckoNativeID)
	query.Set("vs_currencies", currency)

	var resp simplePriceResponse
	if err := c.get(ctx, "/simple/price?"+query.Encode(), &resp); err != nil {
		return decimal.Zero, err
	}
	price, ok := resp[netDef.CoinGeckoNativeID][currency]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s in %s", entity.ErrPriceUnavailable, netDef.CoinGeckoNativeID, currency)
	}
	c.cache.SetDefault(key, price)
	return price, nil
}

// TokenPrices returns prices keyed by lower-cased token address. Tokens
// CoinGecko does not know are absent from the result.
func (c *CoinGeckoClient) TokenPrices(
	ctx context.Context,
	netDef entity.NetworkDefinition,
	tokenAddresses []string,
	fiatCurrency string,
) (map[string]decimal.Decimal, error) {
	prices := make(map[string]decimal.Decimal, len(tokenAddresses))
	if netDef.CoinGeckoPlatform == "" {
		c.logger.Debug("Network has no CoinGecko platform, tokens stay unpriced", zap.Uint64("chainID", netDef.ChainID))
		return prices, nil
	}
	currency := strings.ToLower(fiatCurrency)

	missing := make([]string, 0, len(tokenAddresses))
	for _, addr := range tokenAddresses {
		addr = strings.ToLower(addr)
		if v, ok := c.cache.Get(tokenKey(netDef.CoinGeckoPlatform, addr, currency)); ok {
			prices[addr] = v.(decimal.Decimal)
			continue
		}
		missing = append(missing, addr)
	}

	for _, batch := range utils.Batch(missing, maxTokensPerRequest) {
		query := url.Values{}
		query.Set("contract_addresses", strings.Join(batch, ","))
		query.Set("vs_currencies", currency)

		var resp simplePriceResponse
		path := "/simple/token_price/" + url.PathEscape(netDef.CoinGeckoPlatform) + "?" + query.Encode()
		if err := c.get(ctx, path, &resp); err != nil {
			return prices, err
		}
		for addr, quotes := range resp {
			price, ok := quotes[currency]
			if !ok {
				continue
			}
			addr = strings.ToLower(addr)
			prices[addr] = price
			c.cache.SetDefault(tokenKey(netDef.CoinGeckoPlatform, addr, currency), price)
		}
	}

	c.logger.Debug("Resolved token prices",
		zap.String("platform", netDef.CoinGeckoPlatform),
		zap.Int("requested", len(tokenAddresses)),
		zap.Int("priced", len(prices)))
	return prices, nil
}

func tokenKey(platform, addr, currency string) string {
	return "token|" + platform + "|" + addr + "|" + currency
}

func (c *CoinGeckoClient) get(ctx context.Context, path string, out any) error {
	requestURL := c.baseURL + path

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(requestURL)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
	}

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	deadline, ok := ctx.Deadline()
	if !ok || (c.timeout > 0 && time.Until(deadline) > c.timeout) {
		deadline = time.Now().Add(c.timeout)
	}
	if err := c.client.DoDeadline(req, resp, deadline); err != nil {
		c.logger.Error("Failed to execute request to CoinGecko", zap.String("url", requestURL), zap.Error(err))
		return fmt.Errorf("failed to execute request to %s: %w", requestURL, err)
	}

	rawBody := resp.Body()
	if resp.StatusCode() != fasthttp.StatusOK {
		c.logger.Error("CoinGecko API request failed",
			zap.String("url", requestURL),
			zap.Int("statusCode", resp.StatusCode()),
			zap.ByteString("responseBody", rawBody))
		return fmt.Errorf("CoinGecko request to %s failed with status %d", requestURL, resp.StatusCode())
	}

	if err := json.Unmarshal(rawBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal CoinGecko response from %s: %w", requestURL, err)
	}
	return nil
}
