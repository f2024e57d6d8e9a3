package signer

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
)

type Signer struct {
	key             *ecdsa.PrivateKey
	address         common.Address
	chainID         *big.Int
	domainSeparator common.Hash
}

// NewSigner parses a hex private key (with or without 0x) and precomputes
// the EIP-712 domain separator for the EAS contract at verifyingContract.
func NewSigner(privateKeyHex string, chainID int64, verifyingContract common.Address) (*Signer, error) {
	privateKeyHex = strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x")
	if privateKeyHex == "" {
		return nil, fmt.Errorf("private key is required")
	}
	key, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return newSigner(key, chainID, verifyingContract), nil
}

// NewEphemeralSigner generates a throwaway key. Attestations it signs can be
// verified but not attributed to a known attester.
func NewEphemeralSigner(chainID int64, verifyingContract common.Address) (*Signer, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return newSigner(key, chainID, verifyingContract), nil
}

func newSigner(key *ecdsa.PrivateKey, chainID int64, verifyingContract common.Address) *Signer {
	address := crypto.PubkeyToAddress(key.PublicKey)

	// Every field of the domain encodes to one 32-byte word.
	domainData := make([]byte, 32*5)
	copy(domainData[0:32], EIP712DomainTypeHash.Bytes())
	copy(domainData[32:64], crypto.Keccak256([]byte(EIP712DomainName)))
	copy(domainData[64:96], crypto.Keccak256([]byte(EIP712DomainVersion)))
	copy(domainData[96:128], math.U256Bytes(big.NewInt(chainID)))
	copy(domainData[128+12:160], verifyingContract.Bytes())

	return &Signer{
		key:             key,
		address:         address,
		chainID:         big.NewInt(chainID),
		domainSeparator: crypto.Keccak256Hash(domainData),
	}
}

func (s *Signer) Address() common.Address {
	return s.address
}

func (s *Signer) ChainID() *big.Int {
	return new(big.Int).Set(s.chainID)
}

// PrivateKey is exposed for transaction signing.
func (s *Signer) PrivateKey() *ecdsa.PrivateKey {
	return s.key
}

func (s *Signer) DomainSeparator() common.Hash {
	return s.domainSeparator
}

// TypedDataHash returns keccak256("\x19\x01" || domainSeparator || hashStruct).
func (s *Signer) TypedDataHash(att *OffchainAttestation) common.Hash {
	return crypto.Keccak256Hash([]byte{0x19, 0x01}, s.domainSeparator.Bytes(), hashAttestation(att))
}

// SignOffchain signs the typed-data hash of att. The signature is 65 bytes
// hex with v in {27,28}.
func (s *Signer) SignOffchain(att *OffchainAttestation) (common.Hash, string, error) {
	digest := s.TypedDataHash(att)
	signature, err := crypto.Sign(digest.Bytes(), s.key)
	if err != nil {
		return common.Hash{}, "", err
	}
	if signature[64] < 27 {
		signature[64] += 27
	}
	return digest, "0x" + common.Bytes2Hex(signature), nil
}

// hashAttestation computes hashStruct(Attest). Dynamic bytes are hashed,
// static fields are padded to one word each.
func hashAttestation(att *OffchainAttestation) []byte {
	data := make([]byte, 32*8)
	copy(data[0:32], AttestTypeHash.Bytes())
	copy(data[32:64], att.Schema.Bytes())
	copy(data[64+12:96], att.Recipient.Bytes())
	copy(data[96:128], math.U256Bytes(new(big.Int).SetUint64(att.Time)))
	copy(data[128:160], math.U256Bytes(new(big.Int).SetUint64(att.ExpirationTime)))
	if att.Revocable {
		data[191] = 1
	}
	copy(data[192:224], att.RefUID.Bytes())
	copy(data[224:256], crypto.Keccak256(att.Data))
	return crypto.Keccak256(data)
}
