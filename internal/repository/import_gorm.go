package repository

import (
	"context"
	"fmt"

	"github.com/GoPolymarket/attestgate/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormTransactionWriter bulk loads transactions for the CSV importer.
type GormTransactionWriter struct {
	db        *gorm.DB
	batchSize int
}

func NewGormDB(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Warn),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open gorm db: %w", err)
	}
	return db, nil
}

func NewGormTransactionWriter(db *gorm.DB, batchSize int) *GormTransactionWriter {
	if batchSize <= 0 {
		batchSize = 1000
	}
	return &GormTransactionWriter{db: db, batchSize: batchSize}
}

func (w *GormTransactionWriter) InsertTransactions(ctx context.Context, rows []model.Transaction) error {
	if len(rows) == 0 {
		return nil
	}
	if err := w.db.WithContext(ctx).CreateInBatches(rows, w.batchSize).Error; err != nil {
		return fmt.Errorf("insert transactions: %w", err)
	}
	return nil
}
