package eas

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/GoPolymarket/attestgate/internal/model"
	"github.com/GoPolymarket/attestgate/internal/signer"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

// OffchainAttester signs attestations locally. It is used when no chain is
// configured.
type OffchainAttester struct {
	signer    *signer.Signer
	schema    common.Hash
	recipient common.Address
	now       func() time.Time
}

func NewOffchainAttester(s *signer.Signer, schemaUID common.Hash, recipient common.Address) *OffchainAttester {
	return &OffchainAttester{signer: s, schema: schemaUID, recipient: recipient, now: time.Now}
}

func (a *OffchainAttester) Mode() string {
	return ModeOffchain
}

func (a *OffchainAttester) Attest(ctx context.Context, agentID string, reputation uint8, outlier bool) (*model.Attestation, error) {
	data, err := EncodeData(agentID, reputation, outlier)
	if err != nil {
		return nil, fmt.Errorf("encode attestation: %w", err)
	}
	now := a.now().UTC()
	msg := &signer.OffchainAttestation{
		Schema:    a.schema,
		Recipient: a.recipient,
		Time:      uint64(now.Unix()),
		Revocable: true,
		Data:      data,
	}
	_, sig, err := a.signer.SignOffchain(msg)
	if err != nil {
		return nil, fmt.Errorf("sign attestation: %w", err)
	}

	return &model.Attestation{
		UID:         OffchainUID(msg, a.signer.Address(), salt()).Hex(),
		Mode:        ModeOffchain,
		AgentID:     agentID,
		Reputation:  reputation,
		Outlier:     outlier,
		EncodedData: hexutil.Encode(data),
		Attester:    a.signer.Address().Hex(),
		Signature:   sig,
		CreatedAt:   now,
	}, nil
}

// OffchainUID is keccak256 over the packed attestation fields, the attester
// and a salt so identical verdicts in the same second get distinct ids.
func OffchainUID(msg *signer.OffchainAttestation, attester common.Address, salt [16]byte) common.Hash {
	var word [8]byte
	buf := make([]byte, 0, 32+20+20+8+8+1+32+len(msg.Data)+16)
	buf = append(buf, msg.Schema.Bytes()...)
	buf = append(buf, msg.Recipient.Bytes()...)
	buf = append(buf, attester.Bytes()...)
	binary.BigEndian.PutUint64(word[:], msg.Time)
	buf = append(buf, word[:]...)
	binary.BigEndian.PutUint64(word[:], msg.ExpirationTime)
	buf = append(buf, word[:]...)
	if msg.Revocable {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = append(buf, msg.RefUID.Bytes()...)
	buf = append(buf, msg.Data...)
	buf = append(buf, salt[:]...)
	return crypto.Keccak256Hash(buf)
}

func salt() [16]byte {
	return uuid.New()
}
