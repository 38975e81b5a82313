// Package app wires the store, the dashboard and the trained predictor together.
// Build does all loading and training up front; the returned App is read-only.
package app

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"custseg/config"
	"custseg/dashboard"
	"custseg/db"
	"custseg/ml"
	"custseg/pipeline"
)

type App struct {
	Store     *db.Store
	Dashboard *dashboard.Service
	Predictor *ml.Predictor
	Training  *ml.TrainingSummary
	Ingestion pipeline.IngestionStats
}

// Build opens the store, loads both tables, trains the predictor and prepares the
// dashboard. Any failure is returned and leaves nothing open.
func Build(ctx context.Context, cfg *config.Config, log *zap.Logger) (_ *App, err error) {
	if log == nil {
		log = zap.NewNop()
	}

	store, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", cfg.Database.Path, err)
	}
	defer func() {
		if err != nil {
			store.Close()
		}
	}()
	log.Info("database opened", zap.String("path", cfg.Database.Path))

	if err := store.Reset(ctx); err != nil {
		return nil, fmt.Errorf("reset database: %w", err)
	}
	ingester := pipeline.NewDataIngester(pipeline.IngestionConfig{BatchSize: cfg.Data.BatchSize}, store, log)
	stats, err := ingester.Run(ctx, cfg.Sources())
	if err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}

	customers, err := store.Customers(ctx)
	if err != nil {
		return nil, fmt.Errorf("read customers: %w", err)
	}
	predictor := ml.NewPredictor(ml.CustomerSchema(), cfg.Predictor())
	summary, err := predictor.FitAggregates(ctx, customers)
	if err != nil {
		return nil, fmt.Errorf("train predictor: %w", err)
	}
	logTraining(log, summary)

	if err := store.SaveTrainingLog(ctx, db.TrainingLog{
		ModelName:  summary.ModelType,
		Accuracy:   summary.Report.Accuracy,
		Precision:  summary.Report.MacroPrecision(),
		Recall:     summary.Report.MacroRecall(),
		TrainedAt:  summary.TrainedAt,
		DataPoints: summary.TrainSize,
	}); err != nil {
		return nil, fmt.Errorf("save training log: %w", err)
	}

	dash, err := dashboard.NewService(ctx, store, cfg.Dashboard, log)
	if err != nil {
		return nil, fmt.Errorf("dashboard: %w", err)
	}

	return &App{
		Store:     store,
		Dashboard: dash,
		Predictor: predictor,
		Training:  summary,
		Ingestion: stats,
	}, nil
}

func (a *App) Close() error {
	if a == nil {
		return nil
	}
	return a.Store.Close()
}

func logTraining(log *zap.Logger, s *ml.TrainingSummary) {
	log.Info("predictor trained",
		zap.String("model", s.ModelType),
		zap.Int("rows", s.RowsBefore),
		zap.String("classes_before", formatCounts(s.CountsBefore)),
		zap.String("classes_after", formatCounts(s.CountsAfter)),
		zap.Int("train_size", s.TrainSize),
		zap.Int("test_size", s.TestSize),
		zap.Float64("accuracy", s.Report.Accuracy),
		zap.Float64("macro_precision", s.Report.MacroPrecision()),
		zap.Float64("macro_recall", s.Report.MacroRecall()),
		zap.Duration("took", s.TrainDuration))
	log.Debug("evaluation report\n" + s.Report.String())
}

func formatCounts(counts map[int]int) string {
	labels := make([]int, 0, len(counts))
	for label := range counts {
		labels = append(labels, label)
	}
	sort.Ints(labels)
	out := ""
	for i, label := range labels {
		if i > 0 {
			out += " "
		}
		out += fmt.Sprintf("%d:%d", label, counts[label])
	}
	return out
}
