package restapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"vault_aggregator/internal/app/port"
	"vault_aggregator/internal/domain/entity"
	"vault_aggregator/internal/domain/rollout"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

// APIResponse is the envelope of every JSON response.
type APIResponse struct {
	Data          any    `json:"data,omitempty"`
	Error         string `json:"error,omitempty"`
	StatusMessage string `json:"status_message"`
}

// BalanceService is the aggregation boundary the handlers need. The cached
// aggregator satisfies it.
type BalanceService interface {
	port.BalanceAggregator
	Latest(addr common.Address, fiatCurrency string) (*entity.AggregationResult, bool)
}

// FeatureSettings are the rollout inputs reported by the features endpoint.
type FeatureSettings struct {
	Gate          rollout.Gate
	BuildKind     rollout.BuildKind
	StabilityFlag bool
	DefaultSeed   string
}

// HandlerOptions holds request defaults.
type HandlerOptions struct {
	FiatCurrency string
	ChainTimeout time.Duration
	MaxTimeout   time.Duration
}

// VaultHandler serves vault selection, balance and migration requests.
type VaultHandler struct {
	repo        port.VaultRepository
	coordinator port.MigrationCoordinator
	balances    BalanceService
	features    FeatureSettings
	opts        HandlerOptions
	logger      port.Logger
}

// NewVaultHandler creates a new instance of VaultHandler.
func NewVaultHandler(
	repo port.VaultRepository,
	coordinator port.MigrationCoordinator,
	balances BalanceService,
	features FeatureSettings,
	opts HandlerOptions,
	l port.Logger,
) *VaultHandler {
	if opts.FiatCurrency == "" {
		opts.FiatCurrency = "USD"
	}
	if opts.ChainTimeout <= 0 {
		opts.ChainTimeout = 15 * time.Second
	}
	if opts.MaxTimeout <= 0 {
		opts.MaxTimeout = 2 * time.Minute
	}
	return &VaultHandler{
		repo:        repo,
		coordinator: coordinator,
		balances:    balances,
		features:    features,
		opts:        opts,
		logger:      l,
	}
}

// VaultView is the JSON form of a multichain vault.
type VaultView struct {
	Address     common.Address         `json:"address"`
	DisplayName string                 `json:"displayName"`
	ChainIDs    []uint64               `json:"chainIds"`
	Deployments []entity.PerChainVault `json:"deployments"`
}

func newVaultView(v entity.MultichainVault) VaultView {
	ids := v.ChainIDs()
	deployments := make([]entity.PerChainVault, 0, len(ids))
	for _, id := range ids {
		deployments = append(deployments, v.Deployments[id])
	}
	return VaultView{Address: v.Address, DisplayName: v.DisplayName, ChainIDs: ids, Deployments: deployments}
}

type selectVaultRequest struct {
	Address string `json:"address" binding:"required"`
}

type selectLegacyRequest struct {
	Address string `json:"address" binding:"required"`
	ChainID uint64 `json:"chainId" binding:"required"`
}

type modeRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// ListVaults handles GET /vaults.
func (h *VaultHandler) ListVaults(c *gin.Context) {
	vaults, err := h.repo.ListMultichainVaults(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	views := make([]VaultView, 0, len(vaults))
	for _, v := range vaults {
		views = append(views, newVaultView(v))
	}
	c.JSON(http.StatusOK, APIResponse{Data: views, StatusMessage: "Vaults retrieved successfully."})
}

// GetActiveVault handles GET /vaults/active.
func (h *VaultHandler) GetActiveVault(c *gin.Context) {
	vault, err := h.repo.GetActiveMultichainVault(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	if vault == nil {
		c.JSON(http.StatusOK, APIResponse{StatusMessage: "No active vault."})
		return
	}
	c.JSON(http.StatusOK, APIResponse{Data: newVaultView(*vault), StatusMessage: "Active vault retrieved."})
}

// SelectVault handles PUT /vaults/active.
func (h *VaultHandler) SelectVault(c *gin.Context) {
	var req selectVaultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	vault, ok := h.lookup(c, req.Address)
	if !ok {
		return
	}
	if err := h.coordinator.SelectMultichainVault(c.Request.Context(), *vault); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, APIResponse{Data: newVaultView(*vault), StatusMessage: "Active vault selected."})
}

// SelectLegacyVault handles PUT /vaults/legacy-active.
func (h *VaultHandler) SelectLegacyVault(c *gin.Context) {
	var req selectLegacyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	vault, ok := h.lookup(c, req.Address)
	if !ok {
		return
	}
	deployment, ok := vault.Deployments[req.ChainID]
	if !ok {
		c.JSON(http.StatusNotFound, APIResponse{
			Error:         "vault is not deployed on chain " + strconv.FormatUint(req.ChainID, 10),
			StatusMessage: "Deployment not found.",
		})
		return
	}
	if err := h.coordinator.SelectSingleChainVault(c.Request.Context(), deployment); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, APIResponse{Data: deployment, StatusMessage: "Single-chain vault selected."})
}

// GetBalances handles GET /vaults/:address/balances.
func (h *VaultHandler) GetBalances(c *gin.Context) {
	vault, ok := h.lookup(c, c.Param("address"))
	if !ok {
		return
	}
	timeout, ok := h.timeout(c)
	if !ok {
		return
	}
	result, err := h.balances.LoadAggregatedBalances(c.Request.Context(), *vault, h.currency(c), timeout)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, APIResponse{Data: result, StatusMessage: balancesMessage(result)})
}

// RetryBalances handles POST /vaults/:address/balances/retry. It retries
// from the most recent result; without one it runs a full aggregation.
func (h *VaultHandler) RetryBalances(c *gin.Context) {
	vault, ok := h.lookup(c, c.Param("address"))
	if !ok {
		return
	}
	timeout, ok := h.timeout(c)
	if !ok {
		return
	}
	currency := h.currency(c)

	var (
		result *entity.AggregationResult
		err    error
	)
	if previous, found := h.balances.Latest(vault.Address, currency); found {
		result, err = h.balances.RetryFailedChains(c.Request.Context(), *vault, previous, timeout)
	} else {
		result, err = h.balances.LoadAggregatedBalances(c.Request.Context(), *vault, currency, timeout)
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, APIResponse{Data: result, StatusMessage: balancesMessage(result)})
}

// GetMigrationStatus handles GET /migration/status.
func (h *VaultHandler) GetMigrationStatus(c *gin.Context) {
	status, err := h.coordinator.GetMigrationStatus(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	msg := "Pointers synchronized."
	if !status.PointersSynchronized {
		msg = "Pointers diverge."
	}
	c.JSON(http.StatusOK, APIResponse{Data: status, StatusMessage: msg})
}

// SetMode handles POST /migration/mode.
func (h *VaultHandler) SetMode(c *gin.Context) {
	var req modeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()
	if err := h.coordinator.OnModeToggled(ctx, *req.Enabled); err != nil {
		h.fail(c, err)
		return
	}
	status, err := h.coordinator.GetMigrationStatus(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, APIResponse{Data: status, StatusMessage: "Multichain mode updated."})
}

// GetMultichainFeature handles GET /features/multichain.
func (h *VaultHandler) GetMultichainFeature(c *gin.Context) {
	seed := c.DefaultQuery("seed", h.features.DefaultSeed)
	visible := h.features.Gate.IsMultichainVisible(seed, h.features.BuildKind, h.features.StabilityFlag)
	c.JSON(http.StatusOK, APIResponse{
		Data: gin.H{
			"visible":        visible,
			"bucket":         rollout.Bucket(seed),
			"rolloutPercent": h.features.Gate.RolloutPercent,
			"buildKind":      h.features.BuildKind,
		},
		StatusMessage: "Feature state evaluated.",
	})
}

// StreamActiveVault handles GET /vaults/active/stream as server-sent events.
// The first event carries the current active vault.
func (h *VaultHandler) StreamActiveVault(c *gin.Context) {
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	events, err := h.repo.ActiveVaultChanges(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Stream(func(_ io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-events:
			if !ok {
				return false
			}
			var payload *VaultView
			if ev.Vault != nil {
				v := newVaultView(*ev.Vault)
				payload = &v
			}
			c.SSEvent("active-vault", gin.H{"vault": payload})
			return true
		}
	})
}

func (h *VaultHandler) lookup(c *gin.Context, raw string) (*entity.MultichainVault, bool) {
	if !common.IsHexAddress(raw) {
		badRequest(c, "invalid vault address: "+raw)
		return nil, false
	}
	vault, err := h.repo.FindMultichainVaultByAddress(c.Request.Context(), common.HexToAddress(raw))
	if err != nil {
		h.fail(c, err)
		return nil, false
	}
	if vault == nil {
		c.JSON(http.StatusNotFound, APIResponse{Error: "no deployments for " + raw, StatusMessage: "Vault not found."})
		return nil, false
	}
	return vault, true
}

func (h *VaultHandler) currency(c *gin.Context) string {
	return strings.ToUpper(c.DefaultQuery("currency", h.opts.FiatCurrency))
}

func (h *VaultHandler) timeout(c *gin.Context) (time.Duration, bool) {
	raw := c.Query("timeoutMs")
	if raw == "" {
		return h.opts.ChainTimeout, true
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || ms <= 0 {
		badRequest(c, "timeoutMs must be a positive integer")
		return 0, false
	}
	d := time.Duration(ms) * time.Millisecond
	if d > h.opts.MaxTimeout {
		d = h.opts.MaxTimeout
	}
	return d, true
}

func (h *VaultHandler) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, entity.ErrEmptyVault):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, entity.ErrStoreRead), errors.Is(err, entity.ErrStoreWrite):
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	h.logger.Error("Request failed", "path", c.FullPath(), "status", status, "error", err)
	c.JSON(status, APIResponse{Error: err.Error(), StatusMessage: http.StatusText(status)})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, APIResponse{Error: msg, StatusMessage: "Invalid request."})
}

func balancesMessage(r *entity.AggregationResult) string {
	switch {
	case r.Stale:
		return "Every chain failed. Showing the last good result."
	case r.AllFailed():
		return "Failed to load balances on every chain."
	case len(r.FailedChains) > 0:
		return "Balances retrieved. Some chains failed and can be retried."
	default:
		return "Balances retrieved successfully."
	}
}
