package signer

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// EIP-712 domain of EAS off-chain attestations.
const (
	EIP712DomainName    = "EAS Attestation"
	EIP712DomainVersion = "1.0.1"
)

var (
	EIP712DomainTypeHash = crypto.Keccak256Hash([]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"))

	AttestTypeHash = crypto.Keccak256Hash([]byte("Attest(bytes32 schema,address recipient,uint64 time,uint64 expirationTime,bool revocable,bytes32 refUID,bytes data)"))
)

// OffchainAttestation is the typed-data message signed for an off-chain
// attestation.
type OffchainAttestation struct {
	Schema         common.Hash
	Recipient      common.Address
	Time           uint64
	ExpirationTime uint64
	Revocable      bool
	RefUID         common.Hash
	Data           []byte
}
