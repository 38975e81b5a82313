package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"custseg/retail"
)

// IngestionConfig controls how the loaded tables are written to storage.
type IngestionConfig struct {
	BatchSize int `yaml:"batch_size"`
}

// Sources names the two input tables and their charset.
type Sources struct {
	TransactionsPath string
	CustomersPath    string
	Encoding         string
}

// Storage is the sink for loaded rows.
type Storage interface {
	ImportTransactions(ctx context.Context, rows []retail.Transaction) error
	ImportCustomers(ctx context.Context, rows []retail.CustomerAggregate) error
}

// IngestionStats 摄取统计
type IngestionStats struct {
	Transactions     int64         `json:"transactions"`
	Customers        int64         `json:"customers"`
	BatchesProcessed int64         `json:"batches_processed"`
	Duration         time.Duration `json:"duration"`
	LastIngestion    time.Time     `json:"last_ingestion"`
}

// DataIngester loads the CSV tables and writes them to storage in batches.
type DataIngester struct {
	config  IngestionConfig
	storage Storage
	log     *zap.Logger

	stats     IngestionStats
	statsLock sync.RWMutex
}

func NewDataIngester(config IngestionConfig, storage Storage, log *zap.Logger) *DataIngester {
	if config.BatchSize <= 0 {
		config.BatchSize = 1000
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &DataIngester{config: config, storage: storage, log: log}
}

// Run loads both tables from disk and stores them. Any read or write failure aborts the run.
func (di *DataIngester) Run(ctx context.Context, src Sources) (IngestionStats, error) {
	start := time.Now()

	transactions, err := LoadTransactions(src.TransactionsPath, src.Encoding)
	if err != nil {
		return IngestionStats{}, fmt.Errorf("load %s: %w", src.TransactionsPath, err)
	}
	di.log.Info("transactions loaded", zap.String("path", src.TransactionsPath), zap.Int("rows", len(transactions)))

	customers, err := LoadCustomers(src.CustomersPath, src.Encoding)
	if err != nil {
		return IngestionStats{}, fmt.Errorf("load %s: %w", src.CustomersPath, err)
	}
	di.log.Info("customers loaded", zap.String("path", src.CustomersPath), zap.Int("rows", len(customers)))

	if err := di.IngestTransactions(ctx, transactions); err != nil {
		return IngestionStats{}, err
	}
	if err := di.IngestCustomers(ctx, customers); err != nil {
		return IngestionStats{}, err
	}

	di.statsLock.Lock()
	di.stats.Duration = time.Since(start)
	di.stats.LastIngestion = time.Now()
	stats := di.stats
	di.statsLock.Unlock()

	di.log.Info("ingestion finished",
		zap.Int64("transactions", stats.Transactions),
		zap.Int64("customers", stats.Customers),
		zap.Int64("batches", stats.BatchesProcessed),
		zap.Duration("took", stats.Duration))
	return stats, nil
}

func (di *DataIngester) IngestTransactions(ctx context.Context, rows []retail.Transaction) error {
	for start := 0; start < len(rows); start += di.config.BatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+di.config.BatchSize, len(rows))
		if err := di.storage.ImportTransactions(ctx, rows[start:end]); err != nil {
			return fmt.Errorf("store transactions %d-%d: %w", start, end, err)
		}
		di.recordBatch(int64(end-start), 0)
	}
	return nil
}

func (di *DataIngester) IngestCustomers(ctx context.Context, rows []retail.CustomerAggregate) error {
	for start := 0; start < len(rows); start += di.config.BatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+di.config.BatchSize, len(rows))
		if err := di.storage.ImportCustomers(ctx, rows[start:end]); err != nil {
			return fmt.Errorf("store customers %d-%d: %w", start, end, err)
		}
		di.recordBatch(0, int64(end-start))
	}
	return nil
}

func (di *DataIngester) recordBatch(transactions, customers int64) {
	di.statsLock.Lock()
	defer di.statsLock.Unlock()
	di.stats.Transactions += transactions
	di.stats.Customers += customers
	di.stats.BatchesProcessed++
}

// GetStats 获取统计信息
func (di *DataIngester) GetStats() IngestionStats {
	di.statsLock.RLock()
	defer di.statsLock.RUnlock()
	return di.stats
}
