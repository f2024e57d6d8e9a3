package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/GoPolymarket/attestgate/internal/model"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDB starts a PostgreSQL container and applies the embedded
// migrations. Set ATTESTGATE_SKIP_DOCKER=1 to skip on machines without Docker.
func setupTestDB(t *testing.T) (*sqlx.DB, string) {
	t.Helper()
	if testing.Short() || os.Getenv("ATTESTGATE_SKIP_DOCKER") != "" {
		t.Skip("skipping postgres integration test")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("attestgate"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, RunMigrations(dsn))

	db, err := sqlx.Connect("pgx", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, dsn
}

func TestPostgresClosestTradesMatchesMemory(t *testing.T) {
	db, _ := setupTestDB(t)
	repo := NewPostgresTradeRepo(db)
	ctx := context.Background()

	rows := make([]model.Transaction, 0, 450)
	for i := 0; i < 450; i++ {
		token := "ETH"
		if i%7 == 0 {
			token = "BTC"
		}
		// Duplicate timestamps exercise the id tie-break.
		rows = append(rows, tx(fmt.Sprintf("tx-%04d", i), i/3, token, float64((i*37)%3000)))
	}
	require.NoError(t, repo.InsertTransactions(ctx, rows))

	eth := make([]model.Transaction, 0)
	for _, r := range rows {
		if r.Token == "ETH" {
			eth = append(eth, r)
		}
	}

	for _, price := range []float64{0, 1234.5, 2999, 10000} {
		got, err := repo.ClosestTrades(ctx, "ETH", price, 200, 100)
		require.NoError(t, err)
		want := ClosestWindow(eth, price, 200, 100)
		assert.Equal(t, ids(want), ids(got), "price %v", price)
	}

	empty, err := repo.ClosestTrades(ctx, "SOL", 1, 200, 100)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestPostgresInsertSwap(t *testing.T) {
	db, dsn := setupTestDB(t)
	repo := NewPostgresTradeRepo(db)
	ctx := context.Background()

	protocol := "uniswap"
	swap := tx("swap-1", 1, "ETH", 1.5)
	swap.Protocol = &protocol

	require.NoError(t, repo.InsertSwap(ctx, swap))
	err := repo.InsertSwap(ctx, swap)
	assert.True(t, errors.Is(err, ErrDuplicateSwap))

	var count int
	require.NoError(t, db.GetContext(ctx, &count, `SELECT COUNT(*) FROM swaps`))
	assert.Equal(t, 1, count)

	version, dirty, err := MigrationVersion(dsn)
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(2), version)
}

func TestPostgresAuditRepo(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()
	repo, err := NewPostgresAuditRepo(ctx, db)
	require.NoError(t, err)

	entry := &model.AuditLog{
		ID:        "req-1",
		Service:   "attest",
		Method:    "POST",
		Path:      "/attest",
		Context:   map[string]interface{}{"is_anomaly": true},
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.Insert(ctx, entry))

	got, err := repo.List(ctx, "attest", 10, nil, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, true, got[0].Context["is_anomaly"])
}
