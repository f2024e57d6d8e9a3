package signer

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// RecoverSigner returns the address that produced signature over digest.
// Both the 0/1 and 27/28 recovery id conventions are accepted.
func RecoverSigner(digest common.Hash, signature string) (common.Address, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("invalid signature encoding: %w", err)
	}
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("invalid signature length %d", len(sig))
	}
	sig = append([]byte(nil), sig...)
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	pub, err := crypto.SigToPub(digest.Bytes(), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("recover public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// VerifyOffchain checks that signature over att was made by expected.
func (s *Signer) VerifyOffchain(att *OffchainAttestation, signature string, expected common.Address) error {
	got, err := RecoverSigner(s.TypedDataHash(att), signature)
	if err != nil {
		return err
	}
	if got != expected {
		return fmt.Errorf("signature mismatch: signed by %s, expected %s", got.Hex(), expected.Hex())
	}
	return nil
}
