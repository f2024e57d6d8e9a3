package importer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/GoPolymarket/attestgate/internal/model"
	"github.com/GoPolymarket/attestgate/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type batchRecorder struct {
	batches [][]model.Transaction
	failOn  int
}

func (w *batchRecorder) InsertTransactions(ctx context.Context, rows []model.Transaction) error {
	if w.failOn > 0 && len(w.batches)+1 == w.failOn {
		return errors.New("insert failed")
	}
	w.batches = append(w.batches, append([]model.Transaction(nil), rows...))
	return nil
}

const sample = `transaction_id,timestamp,token,amount,protocol
t1,2024-03-01T00:00:00Z,ETH,2500.5,uniswap
t2,1709251260,ETH,12,
t3,2024-03-01 00:02:00,BTC,0.5,curve
`

func TestImportBatches(t *testing.T) {
	w := &batchRecorder{}
	n, err := New(w, 2).Import(context.Background(), strings.NewReader(sample))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.Len(t, w.batches, 2)
	assert.Len(t, w.batches[0], 2)

	first := w.batches[0][0]
	assert.Equal(t, "t1", first.TransactionID)
	assert.Equal(t, 2500.5, first.Amount)
	require.NotNil(t, first.Protocol)
	assert.Equal(t, "uniswap", *first.Protocol)

	second := w.batches[0][1]
	assert.Nil(t, second.Protocol)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 1, 0, 0, time.UTC), second.Timestamp)
}

func TestImportIntoMemoryRepo(t *testing.T) {
	repo := repository.NewMemoryTradeRepo()
	n, err := New(repo, 0).Import(context.Background(), strings.NewReader(sample))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got, err := repo.ClosestTrades(context.Background(), "ETH", 2400, 200, 100)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "t1", got[0].TransactionID)
}

func TestImportAbortsOnFirstError(t *testing.T) {
	bad := "transaction_id,timestamp,token,amount\nt1,2024-03-01T00:00:00Z,ETH,1\nt2,yesterday,ETH,2\nt3,2024-03-01T00:00:00Z,ETH,3\n"
	w := &batchRecorder{}
	n, err := New(w, 1).Import(context.Background(), strings.NewReader(bad))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")
	assert.Equal(t, 1, n)

	w = &batchRecorder{failOn: 1}
	_, err = New(w, 10).Import(context.Background(), strings.NewReader(sample))
	assert.EqualError(t, err, "insert failed")
}

func TestImportRejectsMissingColumns(t *testing.T) {
	_, err := New(&batchRecorder{}, 0).Import(context.Background(), strings.NewReader("transaction_id,token,amount\n"))
	assert.EqualError(t, err, `missing column "timestamp"`)

	_, err = New(&batchRecorder{}, 0).Import(context.Background(), strings.NewReader(""))
	assert.Error(t, err)
}
