package eas

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/GoPolymarket/attestgate/internal/manager"
	"github.com/GoPolymarket/attestgate/internal/model"
	"github.com/GoPolymarket/attestgate/internal/pkg/logger"
	"github.com/GoPolymarket/attestgate/internal/signer"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

const easABI = `[
{"inputs":[{"components":[{"internalType":"bytes32","name":"schema","type":"bytes32"},{"components":[{"internalType":"address","name":"recipient","type":"address"},{"internalType":"uint64","name":"expirationTime","type":"uint64"},{"internalType":"bool","name":"revocable","type":"bool"},{"internalType":"bytes32","name":"refUID","type":"bytes32"},{"internalType":"bytes","name":"data","type":"bytes"},{"internalType":"uint256","name":"value","type":"uint256"}],"internalType":"struct AttestationRequestData","name":"data","type":"tuple"}],"internalType":"struct AttestationRequest","name":"request","type":"tuple"}],"name":"attest","outputs":[{"internalType":"bytes32","name":"","type":"bytes32"}],"stateMutability":"payable","type":"function"},
{"anonymous":false,"inputs":[{"indexed":true,"internalType":"address","name":"recipient","type":"address"},{"indexed":true,"internalType":"address","name":"attester","type":"address"},{"indexed":false,"internalType":"bytes32","name":"uid","type":"bytes32"},{"indexed":true,"internalType":"bytes32","name":"schemaUID","type":"bytes32"}],"name":"Attested","type":"event"}
]`

// Backend is the subset of *ethclient.Client the chain attester needs.
type Backend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

type attestationRequestData struct {
	Recipient      common.Address
	ExpirationTime uint64
	Revocable      bool
	RefUID         [32]byte
	Data           []byte
	Value          *big.Int
}

type attestationRequest struct {
	Schema [32]byte
	Data   attestationRequestData
}

type ChainOptions struct {
	EASAddress  common.Address
	SchemaUID   common.Hash
	Recipient   common.Address
	Timeout     time.Duration
	ReceiptPoll time.Duration
}

// ChainAttester submits EAS attest transactions and waits for the
// Attested event.
type ChainAttester struct {
	backend Backend
	signer  *signer.Signer
	nonces  *manager.NonceManager
	abi     abi.ABI
	opts    ChainOptions
}

func NewChainAttester(backend Backend, s *signer.Signer, opts ChainOptions) (*ChainAttester, error) {
	parsed, err := abi.JSON(strings.NewReader(easABI))
	if err != nil {
		return nil, fmt.Errorf("parse eas abi: %w", err)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Minute
	}
	if opts.ReceiptPoll <= 0 {
		opts.ReceiptPoll = 2 * time.Second
	}
	return &ChainAttester{
		backend: backend,
		signer:  s,
		nonces:  manager.NewNonceManager(backend),
		abi:     parsed,
		opts:    opts,
	}, nil
}

func (a *ChainAttester) Mode() string {
	return ModeOnchain
}

func (a *ChainAttester) Attest(ctx context.Context, agentID string, reputation uint8, outlier bool) (*model.Attestation, error) {
	ctx, cancel := context.WithTimeout(ctx, a.opts.Timeout)
	defer cancel()

	encoded, err := EncodeData(agentID, reputation, outlier)
	if err != nil {
		return nil, fmt.Errorf("encode attestation: %w", err)
	}
	callData, err := a.abi.Pack("attest", attestationRequest{
		Schema: a.opts.SchemaUID,
		Data: attestationRequestData{
			Recipient: a.opts.Recipient,
			Revocable: true,
			Data:      encoded,
			Value:     big.NewInt(0),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("pack attest call: %w", err)
	}

	tx, err := a.send(ctx, callData)
	if err != nil {
		return nil, err
	}
	logger.Info("Attestation submitted", "tx_hash", tx.Hash().Hex(), "agent_id", agentID)

	receipt, err := a.waitReceipt(ctx, tx.Hash())
	if err != nil {
		return nil, err
	}
	uid, err := a.attestedUID(receipt)
	if err != nil {
		return nil, err
	}

	return &model.Attestation{
		UID:         uid.Hex(),
		Mode:        ModeOnchain,
		AgentID:     agentID,
		Reputation:  reputation,
		Outlier:     outlier,
		EncodedData: hexutil.Encode(encoded),
		TxHash:      tx.Hash().Hex(),
		Attester:    a.signer.Address().Hex(),
		CreatedAt:   time.Now().UTC(),
	}, nil
}

func (a *ChainAttester) send(ctx context.Context, callData []byte) (*types.Transaction, error) {
	from := a.signer.Address()
	to := a.opts.EASAddress

	nonce, err := a.nonces.Next(ctx, from)
	if err != nil {
		return nil, err
	}
	tip, err := a.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest gas tip: %w", err)
	}
	head, err := a.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("latest header: %w", err)
	}
	baseFee := head.BaseFee
	if baseFee == nil {
		baseFee = big.NewInt(0)
	}
	feeCap := new(big.Int).Add(new(big.Int).Mul(baseFee, big.NewInt(2)), tip)

	gas, err := a.backend.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &to, Data: callData})
	if err != nil {
		return nil, fmt.Errorf("estimate gas: %w", err)
	}
	gas += gas / 5

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   a.signer.ChainID(),
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &to,
		Value:     big.NewInt(0),
		Data:      callData,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(a.signer.ChainID()), a.signer.PrivateKey())
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}
	if err := a.backend.SendTransaction(ctx, signed); err != nil {
		a.nonces.Reset(from)
		return nil, fmt.Errorf("send transaction: %w", err)
	}
	a.nonces.Increment(from)
	return signed, nil
}

func (a *ChainAttester) waitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(a.opts.ReceiptPoll)
	defer ticker.Stop()
	for {
		receipt, err := a.backend.TransactionReceipt(ctx, hash)
		if err == nil {
			if receipt.Status != types.ReceiptStatusSuccessful {
				return nil, fmt.Errorf("attest transaction %s reverted", hash.Hex())
			}
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("transaction receipt: %w", err)
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for %s: %w", hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

func (a *ChainAttester) attestedUID(receipt *types.Receipt) (common.Hash, error) {
	event := a.abi.Events["Attested"]
	for _, l := range receipt.Logs {
		if l.Address != a.opts.EASAddress || len(l.Topics) == 0 || l.Topics[0] != event.ID {
			continue
		}
		values, err := event.Inputs.NonIndexed().Unpack(l.Data)
		if err != nil {
			return common.Hash{}, fmt.Errorf("unpack Attested event: %w", err)
		}
		if len(values) == 1 {
			if uid, ok := values[0].([32]byte); ok {
				return common.Hash(uid), nil
			}
		}
	}
	return common.Hash{}, fmt.Errorf("no Attested event in receipt %s", receipt.TxHash.Hex())
}
