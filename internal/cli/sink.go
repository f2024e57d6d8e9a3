package cli

import (
	"context"
	"fmt"

	"github.com/GoPolymarket/attestgate/internal/config"
	"github.com/GoPolymarket/attestgate/internal/eas"
	"github.com/GoPolymarket/attestgate/internal/handler"
	"github.com/GoPolymarket/attestgate/internal/pkg/logger"
	"github.com/GoPolymarket/attestgate/internal/service"
	"github.com/GoPolymarket/attestgate/internal/signer"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/spf13/cobra"
)

var sinkCmd = &cobra.Command{
	Use:   "sink",
	Short: "Run the attestation sink",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()
		d := newDeps(cfg)
		defer d.close()

		attester, err := newAttester(cmd.Context(), cfg.Chain, d)
		if err != nil {
			return err
		}
		sinkSvc := service.NewSinkService(attester, 0)

		r, _, err := newRouter(cmd.Context(), "sink", d)
		if err != nil {
			return err
		}
		sinkHandler := handler.NewSinkHandler(sinkSvc)

		r.POST("/attest", sinkHandler.Create)
		r.GET("/attestations", sinkHandler.List)

		return serve(cmd.Context(), "sink", cfg.Server.SinkPort, r, cfg.Server.ShutdownTTL)
	},
}

// newAttester submits on chain when both an RPC endpoint and a key are
// configured and signs off-chain otherwise.
func newAttester(ctx context.Context, cc config.ChainConfig, d *deps) (eas.Attester, error) {
	for name, value := range map[string]string{"chain.eas_address": cc.EASAddress, "chain.recipient": cc.Recipient} {
		if value != "" && !common.IsHexAddress(value) {
			return nil, fmt.Errorf("%s: invalid address %q", name, value)
		}
	}
	easAddr := common.HexToAddress(cc.EASAddress)
	schemaUID := common.HexToHash(cc.SchemaUID)
	recipient := common.HexToAddress(cc.Recipient)

	var (
		s   *signer.Signer
		err error
	)
	if cc.PrivateKey != "" {
		s, err = signer.NewSigner(cc.PrivateKey, cc.ChainID, easAddr)
	} else {
		s, err = signer.NewEphemeralSigner(cc.ChainID, easAddr)
	}
	if err != nil {
		return nil, err
	}

	if cc.RPCURL == "" || cc.PrivateKey == "" {
		logger.Info("Signing attestations off-chain", "attester", s.Address().Hex())
		return eas.NewOffchainAttester(s, schemaUID, recipient), nil
	}

	client, err := ethclient.DialContext(ctx, cc.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial chain rpc: %w", err)
	}
	d.onClose(client.Close)
	logger.Info("Submitting attestations on chain", "attester", s.Address().Hex(), "eas", easAddr.Hex())
	return eas.NewChainAttester(client, s, eas.ChainOptions{
		EASAddress:  easAddr,
		SchemaUID:   schemaUID,
		Recipient:   recipient,
		Timeout:     cc.Timeout,
		ReceiptPoll: cc.ReceiptPoll,
	})
}
