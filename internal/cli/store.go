package cli

import (
	"github.com/GoPolymarket/attestgate/internal/handler"
	"github.com/GoPolymarket/attestgate/internal/middleware"
	"github.com/GoPolymarket/attestgate/internal/service"
	"github.com/spf13/cobra"
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Run the trade store",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()
		d := newDeps(cfg)
		defer d.close()

		repo, err := d.tradeRepo()
		if err != nil {
			return err
		}
		rc := cfg.Retriever
		retriever := service.NewLocalRetriever(repo, d.priceFeed(), cfg.PriceFeed.QuoteAsset, rc.WindowRadius, rc.Limit)

		r, _, err := newRouter(cmd.Context(), "store", d)
		if err != nil {
			return err
		}
		storeHandler := handler.NewStoreHandler(retriever, repo)

		r.GET("/fetch_closest_trades", storeHandler.FetchClosestTrades)
		r.POST("/store_swap", middleware.IdempotencyMiddleware(d.idempotencyStore()), storeHandler.StoreSwap)

		return serve(cmd.Context(), "store", cfg.Server.StorePort, r, cfg.Server.ShutdownTTL)
	},
}
