package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/GoPolymarket/attestgate/internal/model"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
)

// ErrDuplicateSwap is returned when a swap with the same transaction id
// already exists.
var ErrDuplicateSwap = errors.New("swap already stored")

type PostgresTradeRepo struct {
	db *sqlx.DB
}

func NewPostgresTradeRepo(db *sqlx.DB) *PostgresTradeRepo {
	return &PostgresTradeRepo{db: db}
}

// The closest row is picked by amount distance, then earliest timestamp,
// then smallest transaction id. Ranks follow the same (timestamp, id) order.
const closestTradesQuery = `
	WITH token_filtered AS (
		SELECT transaction_id, timestamp, token, amount, protocol,
		       ABS(amount - $2) AS amount_diff,
		       ROW_NUMBER() OVER (ORDER BY timestamp ASC, transaction_id ASC) AS row_num
		FROM transactions
		WHERE token = $1
	),
	closest_trade AS (
		SELECT row_num
		FROM token_filtered
		ORDER BY amount_diff ASC, timestamp ASC, transaction_id ASC
		LIMIT 1
	)
	SELECT f.transaction_id, f.timestamp, f.token, f.amount, f.protocol, f.amount_diff, f.row_num
	FROM token_filtered f
	CROSS JOIN closest_trade c
	WHERE f.row_num BETWEEN c.row_num - $3 AND c.row_num + $3
	ORDER BY f.row_num ASC
	LIMIT $4
`

func (r *PostgresTradeRepo) ClosestTrades(ctx context.Context, token string, price float64, radius, limit int) ([]model.TradeWindowEntry, error) {
	entries := make([]model.TradeWindowEntry, 0, limit)
	if err := r.db.SelectContext(ctx, &entries, closestTradesQuery, token, price, radius, limit); err != nil {
		return nil, fmt.Errorf("query closest trades: %w", err)
	}
	return entries, nil
}

// InsertSwap stores one swap in its own transaction. Nothing is written on
// failure.
func (r *PostgresTradeRepo) InsertSwap(ctx context.Context, swap model.Transaction) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin swap insert: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO swaps (transaction_id, timestamp, token, amount, protocol)
		VALUES ($1, $2, $3, $4, $5)
	`, swap.TransactionID, swap.Timestamp, swap.Token, swap.Amount, swap.Protocol)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: %s", ErrDuplicateSwap, swap.TransactionID)
		}
		return fmt.Errorf("insert swap: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit swap insert: %w", err)
	}
	return nil
}

// InsertTransactions writes rows with a single multi-row statement per call.
func (r *PostgresTradeRepo) InsertTransactions(ctx context.Context, rows []model.Transaction) error {
	if len(rows) == 0 {
		return nil
	}
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO transactions (transaction_id, timestamp, token, amount, protocol)
		VALUES (:transaction_id, :timestamp, :token, :amount, :protocol)
	`, rows)
	if err != nil {
		return fmt.Errorf("insert transactions: %w", err)
	}
	return nil
}
