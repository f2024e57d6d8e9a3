package signer

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var easSepolia = common.HexToAddress("0xC2679fBD37d54388Ce493F1DB75320D236e1815e")

func testAttestation() *OffchainAttestation {
	return &OffchainAttestation{
		Schema:    common.HexToHash("0x417e7ac933ef1ac79862fa06044e1cdbb65ebd62e5f2ab5816899dad06edf459"),
		Recipient: common.Address{},
		Time:      1717000000,
		Revocable: true,
		Data:      []byte{0x01, 0x02},
	}
}

func TestSigner_SignOffchain(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	keyHex := hexutil.Encode(crypto.FromECDSA(key))

	s, err := NewSigner(keyHex, 11155111, easSepolia)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), s.Address())

	att := testAttestation()
	digest, sig, err := s.SignOffchain(att)
	require.NoError(t, err)
	assert.Equal(t, 132, len(sig))
	assert.Equal(t, s.TypedDataHash(att), digest)

	require.NoError(t, s.VerifyOffchain(att, sig, s.Address()))
	assert.Error(t, s.VerifyOffchain(att, sig, common.HexToAddress("0x0000000000000000000000000000000000000001")))

	tampered := testAttestation()
	tampered.Data = []byte{0x03}
	assert.Error(t, s.VerifyOffchain(tampered, sig, s.Address()))
}

func TestSigner_DomainDependsOnChain(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	keyHex := hexutil.Encode(crypto.FromECDSA(key))[2:]

	a, err := NewSigner(keyHex, 1, easSepolia)
	require.NoError(t, err)
	b, err := NewSigner(keyHex, 11155111, easSepolia)
	require.NoError(t, err)
	assert.NotEqual(t, a.DomainSeparator(), b.DomainSeparator())
}

func TestNewSignerRejectsBadKey(t *testing.T) {
	_, err := NewSigner("", 1, easSepolia)
	assert.Error(t, err)
	_, err = NewSigner("zz", 1, easSepolia)
	assert.Error(t, err)
}

func TestRecoverSignerRejectsMalformed(t *testing.T) {
	_, err := RecoverSigner(common.Hash{}, "0x1234")
	assert.Error(t, err)
	_, err = RecoverSigner(common.Hash{}, "nothex")
	assert.Error(t, err)
}

func BenchmarkSignOffchain(b *testing.B) {
	s, _ := NewEphemeralSigner(11155111, easSepolia)
	att := testAttestation()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, _ = s.SignOffchain(att)
	}
}
