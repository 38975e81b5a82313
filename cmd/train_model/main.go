package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"

	"go.uber.org/zap"

	"custseg/config"
	"custseg/db"
	"custseg/logger"
	"custseg/ml"
	"custseg/pipeline"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	customersPath := flag.String("customers", "", "customer aggregate CSV (overrides data.customers_path)")
	modelType := flag.String("model", "", "classifier: random_forest or decision_tree")
	nEstimators := flag.Int("n_estimators", 0, "number of trees")
	maxDepth := flag.Int("max_depth", -1, "max tree depth, 0 for unlimited")
	testRatio := flag.Float64("test_ratio", 0, "held-out evaluation ratio")
	seed := flag.Int64("seed", 0, "random seed")
	saveLog := flag.Bool("save_log", false, "record the run in the database training log")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *customersPath != "" {
		cfg.Data.CustomersPath = *customersPath
	}
	if *modelType != "" {
		cfg.ML.ModelType = *modelType
	}
	if *nEstimators > 0 {
		cfg.ML.NEstimators = *nEstimators
	}
	if *maxDepth >= 0 {
		cfg.ML.MaxDepth = *maxDepth
	}
	if *testRatio > 0 {
		cfg.ML.TestRatio = *testRatio
	}
	if *seed != 0 {
		cfg.ML.Seed = *seed
	}

	lg, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer lg.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, *saveLog, lg.Logger); err != nil {
		lg.Error("training failed", zap.Error(err))
		lg.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, saveLog bool, log *zap.Logger) error {
	customers, err := pipeline.LoadCustomers(cfg.Data.CustomersPath, cfg.Data.Encoding)
	if err != nil {
		return fmt.Errorf("load %s: %w", cfg.Data.CustomersPath, err)
	}
	log.Info("customers loaded", zap.String("path", cfg.Data.CustomersPath), zap.Int("rows", len(customers)))

	predictor := ml.NewPredictor(ml.CustomerSchema(), cfg.Predictor())
	summary, err := predictor.FitAggregates(ctx, customers)
	if err != nil {
		return err
	}

	fmt.Printf("model=%s rows=%d train=%d test=%d took=%s\n",
		summary.ModelType, summary.RowsBefore, summary.TrainSize, summary.TestSize, summary.TrainDuration)
	fmt.Printf("class counts before oversampling: %s\n", counts(summary.CountsBefore))
	fmt.Printf("class counts after oversampling:  %s\n", counts(summary.CountsAfter))
	fmt.Print(summary.Report.String())

	if !saveLog {
		return nil
	}
	store, err := db.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.SaveTrainingLog(ctx, db.TrainingLog{
		ModelName:  summary.ModelType,
		Accuracy:   summary.Report.Accuracy,
		Precision:  summary.Report.MacroPrecision(),
		Recall:     summary.Report.MacroRecall(),
		TrainedAt:  summary.TrainedAt,
		DataPoints: summary.TrainSize,
	})
}

func counts(m map[int]int) string {
	labels := make([]int, 0, len(m))
	for label := range m {
		labels = append(labels, label)
	}
	sort.Ints(labels)
	out := ""
	for _, label := range labels {
		out += fmt.Sprintf("%d=%d ", label, m[label])
	}
	return out
}
