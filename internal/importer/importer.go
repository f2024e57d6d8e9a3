// Package importer loads historical trades from CSV exports into the
// transactions table.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/GoPolymarket/attestgate/internal/model"
	"github.com/GoPolymarket/attestgate/internal/pkg/logger"
)

const DefaultBatchSize = 1000

var requiredColumns = []string{"transaction_id", "timestamp", "token", "amount"}

// Writer persists one batch of transactions.
type Writer interface {
	InsertTransactions(ctx context.Context, rows []model.Transaction) error
}

type Importer struct {
	writer    Writer
	batchSize int
}

func New(writer Writer, batchSize int) *Importer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Importer{writer: writer, batchSize: batchSize}
}

// Import reads a header row followed by trade rows and writes them in
// batches. The first malformed row or write failure aborts the run; batches
// already written stay written. It returns the number of rows written.
func (im *Importer) Import(ctx context.Context, r io.Reader) (int, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return 0, errors.New("csv is empty")
		}
		return 0, fmt.Errorf("read header: %w", err)
	}
	cols, err := columnIndex(header)
	if err != nil {
		return 0, err
	}

	written := 0
	batch := make([]model.Transaction, 0, im.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := im.writer.InsertTransactions(ctx, batch); err != nil {
			return err
		}
		written += len(batch)
		logger.Info("Imported batch", "rows", len(batch), "total", written)
		batch = batch[:0]
		return nil
	}

	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return written, fmt.Errorf("line %d: %w", line, err)
		}
		row, err := parseRow(record, cols)
		if err != nil {
			return written, fmt.Errorf("line %d: %w", line, err)
		}
		batch = append(batch, row)
		if len(batch) >= im.batchSize {
			if err := flush(); err != nil {
				return written, err
			}
		}
	}
	if err := flush(); err != nil {
		return written, err
	}
	return written, nil
}

func columnIndex(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		cols[name] = i
	}
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}
	return cols, nil
}

func parseRow(record []string, cols map[string]int) (model.Transaction, error) {
	field := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var tx model.Transaction
	tx.TransactionID = field("transaction_id")
	if tx.TransactionID == "" {
		return tx, errors.New("empty transaction_id")
	}
	ts, err := model.ParseTime(field("timestamp"))
	if err != nil {
		return tx, err
	}
	tx.Timestamp = ts
	tx.Token = field("token")
	if tx.Token == "" {
		return tx, errors.New("empty token")
	}
	tx.Amount, err = strconv.ParseFloat(field("amount"), 64)
	if err != nil {
		return tx, fmt.Errorf("invalid amount: %w", err)
	}
	if p := field("protocol"); p != "" {
		tx.Protocol = &p
	}
	return tx, nil
}
