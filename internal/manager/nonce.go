package manager

import (
	"context"
	"fmt"
	"sync"

	"github.com/GoPolymarket/attestgate/internal/pkg/logger"
	"github.com/ethereum/go-ethereum/common"
)

// NonceSource reports the next pending nonce of an account.
// *ethclient.Client satisfies it.
type NonceSource interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
}

// NonceManager hands out transaction nonces optimistically so back-to-back
// attestations from one key do not wait for the mempool to catch up.
type NonceManager struct {
	source NonceSource
	mu     sync.Mutex
	nonces map[common.Address]uint64
}

func NewNonceManager(source NonceSource) *NonceManager {
	return &NonceManager{
		source: source,
		nonces: make(map[common.Address]uint64),
	}
}

// Next returns the nonce to use for the next transaction of addr. The first
// call for an address reads the pending nonce from the chain.
func (m *NonceManager) Next(ctx context.Context, addr common.Address) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if nonce, ok := m.nonces[addr]; ok {
		return nonce, nil
	}
	fetched, err := m.source.PendingNonceAt(ctx, addr)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch pending nonce: %w", err)
	}
	m.nonces[addr] = fetched
	return fetched, nil
}

// Increment advances the local nonce after a transaction was accepted.
func (m *NonceManager) Increment(addr common.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.nonces[addr]; ok {
		m.nonces[addr]++
	}
}

// Reset drops the local nonce so the next call re-reads the chain. Call it
// when a send fails with "nonce too low" or similar.
func (m *NonceManager) Reset(addr common.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.nonces, addr)
	logger.Info("Reset tx nonce", "address", addr.Hex())
}
