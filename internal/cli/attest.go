package cli

import (
	"github.com/GoPolymarket/attestgate/internal/handler"
	"github.com/GoPolymarket/attestgate/internal/middleware"
	"github.com/GoPolymarket/attestgate/internal/model"
	"github.com/GoPolymarket/attestgate/internal/service"
	"github.com/spf13/cobra"
)

var attestCmd = &cobra.Command{
	Use:   "attest",
	Short: "Run the attestation agent",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()
		d := newDeps(cfg)
		defer d.close()

		retriever, err := d.retriever()
		if err != nil {
			return err
		}
		advisor := d.advisor()
		thresholdSvc := service.NewThresholdService(d.thresholdStore(), advisor, model.AnomalyThresholds{
			TradeAmount:         cfg.Anomaly.TradeAmount,
			PriceDeviation:      cfg.Anomaly.PriceDeviation,
			TradeFrequency:      cfg.Anomaly.TradeFrequency,
			VolatilityThreshold: cfg.Anomaly.Volatility,
		}, cfg.Anomaly.DynamicThresholds).WithReferencePrices(d.restClient(), cfg.PriceFeed.QuoteAsset)

		attestSvc := service.NewAttestationService(
			thresholdSvc,
			service.NewAnomalyClassifier(cfg.Anomaly.Rules),
			service.NewReputationScorer(advisor),
			service.NewAttestationPublisher(cfg.Attestation.Endpoint, cfg.Attestation.Timeout),
			retriever,
			service.AttestationOptions{
				HistoryWindow:   cfg.Anomaly.HistoryWindow,
				DeriveFrequency: cfg.Anomaly.DeriveFrequency,
			},
		)

		r, auditSvc, err := newRouter(cmd.Context(), "attest", d)
		if err != nil {
			return err
		}

		attestHandler := handler.NewAttestHandler(attestSvc)
		thresholdHandler := handler.NewThresholdHandler(thresholdSvc)
		auditHandler := handler.NewAuditHandler(auditSvc)

		r.POST("/attest", attestHandler.Attest)
		r.GET("/thresholds", thresholdHandler.Get)

		admin := r.Group("/admin")
		admin.Use(middleware.AdminMiddleware(cfg.Auth.AdminKey))
		{
			admin.PUT("/thresholds", thresholdHandler.Override)
			admin.DELETE("/thresholds", thresholdHandler.Reset)
			admin.GET("/audit", auditHandler.List)
		}

		return serve(cmd.Context(), "attest", cfg.Server.AttestPort, r, cfg.Server.ShutdownTTL)
	},
}
