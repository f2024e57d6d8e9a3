// Package eas records trade verdicts as Ethereum Attestation Service
// attestations, either on chain or as signed off-chain records.
package eas

import (
	"context"
	"fmt"

	"github.com/GoPolymarket/attestgate/internal/model"
	"github.com/ethereum/go-ethereum/accounts/abi"
)

// SchemaDefinition is the EAS schema the verdicts are registered under.
const SchemaDefinition = "string agent_id,uint8 reputation,bool outlier"

const (
	ModeOnchain  = "onchain"
	ModeOffchain = "offchain"
)

var schemaArgs = mustArguments("string", "uint8", "bool")

func mustArguments(types ...string) abi.Arguments {
	args := make(abi.Arguments, 0, len(types))
	for _, t := range types {
		typ, err := abi.NewType(t, "", nil)
		if err != nil {
			panic(fmt.Sprintf("eas: bad abi type %q: %v", t, err))
		}
		args = append(args, abi.Argument{Type: typ})
	}
	return args
}

// EncodeData ABI-encodes a verdict with the schema layout.
func EncodeData(agentID string, reputation uint8, outlier bool) ([]byte, error) {
	return schemaArgs.Pack(agentID, reputation, outlier)
}

// DecodeData reverses EncodeData.
func DecodeData(data []byte) (agentID string, reputation uint8, outlier bool, err error) {
	values, err := schemaArgs.Unpack(data)
	if err != nil {
		return "", 0, false, fmt.Errorf("decode attestation data: %w", err)
	}
	if len(values) != 3 {
		return "", 0, false, fmt.Errorf("decode attestation data: got %d values", len(values))
	}
	var ok1, ok2, ok3 bool
	agentID, ok1 = values[0].(string)
	reputation, ok2 = values[1].(uint8)
	outlier, ok3 = values[2].(bool)
	if !ok1 || !ok2 || !ok3 {
		return "", 0, false, fmt.Errorf("decode attestation data: unexpected value types")
	}
	return agentID, reputation, outlier, nil
}

// Attester creates one attestation per verdict.
type Attester interface {
	Attest(ctx context.Context, agentID string, reputation uint8, outlier bool) (*model.Attestation, error)
	Mode() string
}
