package cli

import (
	"github.com/GoPolymarket/attestgate/internal/handler"
	"github.com/GoPolymarket/attestgate/internal/middleware"
	"github.com/GoPolymarket/attestgate/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var tradeCmd = &cobra.Command{
	Use:   "trade",
	Short: "Run the trade suggestion agent",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()
		d := newDeps(cfg)
		defer d.close()

		retriever, err := d.retriever()
		if err != nil {
			return err
		}
		suggester := service.NewTradeSuggester(d.advisor(), retriever, service.SuggesterOptions{
			AgentID:       cfg.Trade.AgentID,
			HistorySymbol: cfg.Trade.HistorySymbol,
			MaxNotional:   cfg.Trade.MaxNotional,
		})

		r, _, err := newRouter(cmd.Context(), "trade", d)
		if err != nil {
			return err
		}
		tradeHandler := handler.NewTradeHandler(suggester)

		api := r.Group("/")
		api.Use(middleware.CORSMiddleware(cfg.Server.CORSOrigins))
		{
			api.POST("/trade", tradeHandler.Suggest)
			// Preflight is answered by the CORS middleware.
			api.OPTIONS("/trade", func(c *gin.Context) {})
		}

		return serve(cmd.Context(), "trade", cfg.Server.TradePort, r, cfg.Server.ShutdownTTL)
	},
}
