package repository

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/GoPolymarket/attestgate/internal/model"
)

// MemoryTradeRepo is the in-process trade store used when no database is
// configured. It answers ClosestTrades with the same window semantics as
// the SQL query.
type MemoryTradeRepo struct {
	mu           sync.RWMutex
	transactions map[string]model.Transaction
	swaps        map[string]model.Transaction
}

func NewMemoryTradeRepo() *MemoryTradeRepo {
	return &MemoryTradeRepo{
		transactions: make(map[string]model.Transaction),
		swaps:        make(map[string]model.Transaction),
	}
}

// InsertTransactions adds rows; existing transaction ids are rejected.
func (r *MemoryTradeRepo) InsertTransactions(ctx context.Context, rows []model.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range rows {
		if _, ok := r.transactions[row.TransactionID]; ok {
			return fmt.Errorf("insert transactions: duplicate transaction_id %s", row.TransactionID)
		}
	}
	for _, row := range rows {
		r.transactions[row.TransactionID] = row
	}
	return nil
}

func (r *MemoryTradeRepo) InsertSwap(ctx context.Context, swap model.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.swaps[swap.TransactionID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateSwap, swap.TransactionID)
	}
	r.swaps[swap.TransactionID] = swap
	return nil
}

func (r *MemoryTradeRepo) Swaps() []model.Transaction {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Transaction, 0, len(r.swaps))
	for _, s := range r.swaps {
		out = append(out, s)
	}
	sortByTime(out)
	return out
}

func (r *MemoryTradeRepo) ClosestTrades(ctx context.Context, token string, price float64, radius, limit int) ([]model.TradeWindowEntry, error) {
	r.mu.RLock()
	filtered := make([]model.Transaction, 0)
	for _, tx := range r.transactions {
		if tx.Token == token {
			filtered = append(filtered, tx)
		}
	}
	r.mu.RUnlock()

	return ClosestWindow(filtered, price, radius, limit), nil
}

// ClosestWindow ranks rows by (timestamp, transaction_id), finds the row
// whose amount is nearest to price and returns the rows within radius ranks
// of it, at most limit of them, in rank order. Rows must share one token.
func ClosestWindow(rows []model.Transaction, price float64, radius, limit int) []model.TradeWindowEntry {
	out := make([]model.TradeWindowEntry, 0)
	if len(rows) == 0 || limit <= 0 {
		return out
	}
	ranked := append([]model.Transaction(nil), rows...)
	sortByTime(ranked)

	// Rows are in tie-break order, so the first strict minimum wins.
	closest := 0
	best := math.Inf(1)
	for i, tx := range ranked {
		if d := math.Abs(tx.Amount - price); d < best {
			best = d
			closest = i
		}
	}

	lo := closest - radius
	if lo < 0 {
		lo = 0
	}
	hi := closest + radius
	if hi > len(ranked)-1 {
		hi = len(ranked) - 1
	}
	for i := lo; i <= hi && len(out) < limit; i++ {
		out = append(out, model.TradeWindowEntry{
			Transaction: ranked[i],
			AmountDiff:  math.Abs(ranked[i].Amount - price),
			RowNum:      int64(i + 1),
		})
	}
	return out
}

func sortByTime(rows []model.Transaction) {
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].Timestamp.Equal(rows[j].Timestamp) {
			return rows[i].Timestamp.Before(rows[j].Timestamp)
		}
		return rows[i].TransactionID < rows[j].TransactionID
	})
}
