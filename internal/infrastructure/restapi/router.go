package restapi

import (
	"net/http/pprof"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// RouterOptions configures the non-API parts of the router.
type RouterOptions struct {
	Logger      *zap.Logger
	Gatherer    prometheus.Gatherer // nil uses prometheus.DefaultGatherer
	EnablePprof bool
}

// SetupRouter builds the gin engine with the API, metrics and optional pprof routes.
func SetupRouter(h *VaultHandler, opts RouterOptions) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}

	router := gin.New()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	router.Use(cors.New(corsConfig))
	router.Use(ZapLoggerMiddleware(opts.Logger))
	router.Use(gin.Recovery())

	v1 := router.Group("/api/v1")
	{
		v1.GET("/vaults", h.ListVaults)
		v1.GET("/vaults/active", h.GetActiveVault)
		v1.PUT("/vaults/active", h.SelectVault)
		v1.GET("/vaults/active/stream", h.StreamActiveVault)
		v1.PUT("/vaults/legacy-active", h.SelectLegacyVault)
		v1.GET("/vaults/:address/balances", h.GetBalances)
		v1.POST("/vaults/:address/balances/retry", h.RetryBalances)
		v1.GET("/migration/status", h.GetMigrationStatus)
		v1.POST("/migration/mode", h.SetMode)
		v1.GET("/features/multichain", h.GetMultichainFeature)
	}

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))

	if opts.EnablePprof {
		pprofRouter := router.Group("/debug/pprof")
		{
			pprofRouter.GET("/", gin.WrapF(pprof.Index))
			pprofRouter.GET("/cmdline", gin.WrapF(pprof.Cmdline))
			pprofRouter.GET("/profile", gin.WrapF(pprof.Profile))
			pprofRouter.POST("/symbol", gin.WrapF(pprof.Symbol))
			pprofRouter.GET("/symbol", gin.WrapF(pprof.Symbol))
			pprofRouter.GET("/trace", gin.WrapF(pprof.Trace))
			pprofRouter.GET("/allocs", gin.WrapH(pprof.Handler("allocs")))
			pprofRouter.GET("/goroutine", gin.WrapH(pprof.Handler("goroutine")))
			pprofRouter.GET("/heap", gin.WrapH(pprof.Handler("heap")))
		}
	}

	return router
}
