package ml

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"custseg/retail"
)

var (
	ErrNotFitted     = errors.New("predictor is not fitted")
	ErrAlreadyFitted = errors.New("predictor is already fitted")
)

type PredictorConfig struct {
	ModelType      string
	Seed           int64
	NEstimators    int
	MaxDepth       int
	TestRatio      float64
	SMOTENeighbors int
	Workers        int
}

func DefaultPredictorConfig() PredictorConfig {
	return PredictorConfig{
		ModelType:      ModelRandomForest,
		Seed:           42,
		NEstimators:    100,
		TestRatio:      0.2,
		SMOTENeighbors: 5,
	}
}

// TrainingSummary describes one completed fit.
type TrainingSummary struct {
	ModelType     string
	RowsBefore    int
	CountsBefore  map[int]int
	CountsAfter   map[int]int
	TrainSize     int
	TestSize      int
	Report        Report
	TrainedAt     time.Time
	TrainDuration time.Duration
}

// Predictor maps customer feature frames to cluster labels. It is fitted exactly once;
// after Fit returns it is read-only and safe for concurrent use.
type Predictor struct {
	schema *FeatureSchema
	config PredictorConfig

	mu      sync.RWMutex
	model   Classifier
	classes []int
	stats   []FeatureStat
	summary *TrainingSummary
}

func NewPredictor(schema *FeatureSchema, config PredictorConfig) *Predictor {
	defaults := DefaultPredictorConfig()
	if config.ModelType == "" {
		config.ModelType = defaults.ModelType
	}
	if config.NEstimators <= 0 {
		config.NEstimators = defaults.NEstimators
	}
	if config.TestRatio <= 0 || config.TestRatio >= 1 {
		config.TestRatio = defaults.TestRatio
	}
	if config.SMOTENeighbors <= 0 {
		config.SMOTENeighbors = defaults.SMOTENeighbors
	}
	return &Predictor{schema: schema, config: config}
}

// FitAggregates trains on the historical customer table.
func (p *Predictor) FitAggregates(ctx context.Context, rows []retail.CustomerAggregate) (*TrainingSummary, error) {
	features, labels, err := BuildTrainingSet(p.schema, rows)
	if err != nil {
		return nil, err
	}
	return p.Fit(ctx, features, labels)
}

// Fit balances the classes, holds out a stratified evaluation partition, fits the
// configured classifier and evaluates it.
func (p *Predictor) Fit(ctx context.Context, features [][]float64, labels []int) (*TrainingSummary, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.model != nil {
		return nil, ErrAlreadyFitted
	}
	if err := checkTrainingSet(features, labels); err != nil {
		return nil, err
	}
	if len(features[0]) != p.schema.Len() {
		return nil, fmt.Errorf("training rows have %d features, schema has %d", len(features[0]), p.schema.Len())
	}

	start := time.Now()
	stats, err := ComputeFeatureStats(p.schema, features)
	if err != nil {
		return nil, err
	}

	resampledX, resampledY, err := NewSMOTE(p.config.SMOTENeighbors, p.config.Seed).Resample(features, labels)
	if err != nil {
		return nil, fmt.Errorf("oversample: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	trainX, trainY, testX, testY, err := StratifiedSplit(resampledX, resampledY, p.config.TestRatio, p.config.Seed)
	if err != nil {
		return nil, fmt.Errorf("split: %w", err)
	}

	model, err := NewClassifier(p.config.ModelType, ClassifierOptions{
		Seed:        p.config.Seed,
		NEstimators: p.config.NEstimators,
		MaxDepth:    p.config.MaxDepth,
		Workers:     p.config.Workers,
	})
	if err != nil {
		return nil, err
	}
	if err := fitClassifier(ctx, model, trainX, trainY); err != nil {
		return nil, fmt.Errorf("fit %s: %w", p.config.ModelType, err)
	}

	report, err := Evaluate(model, testX, testY)
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}

	summary := &TrainingSummary{
		ModelType:     p.config.ModelType,
		RowsBefore:    len(features),
		CountsBefore:  ClassCounts(labels),
		CountsAfter:   ClassCounts(resampledY),
		TrainSize:     len(trainX),
		TestSize:      len(testX),
		Report:        report,
		TrainedAt:     time.Now().UTC(),
		TrainDuration: time.Since(start),
	}

	p.model = model
	p.classes = model.Classes()
	p.stats = stats
	p.summary = summary
	return summary, nil
}

func (p *Predictor) Ready() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.model != nil
}

// Predict validates frame against the schema and returns one cluster label.
// A frame that does not satisfy the schema yields a *ValidationError.
func (p *Predictor) Predict(ctx context.Context, frame Frame) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	p.mu.RLock()
	model := p.model
	p.mu.RUnlock()
	if model == nil {
		return 0, ErrNotFitted
	}

	vector, err := p.schema.Vector(frame)
	if err != nil {
		return 0, err
	}
	label, _, err := PredictLabel(model, vector)
	if err != nil {
		return 0, err
	}
	return label, nil
}

func (p *Predictor) PredictVector(ctx context.Context, v CustomerFeatureVector) (int, error) {
	return p.Predict(ctx, v.Frame())
}

func (p *Predictor) Schema() *FeatureSchema {
	return p.schema
}

func (p *Predictor) Classes() []int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]int(nil), p.classes...)
}

func (p *Predictor) FeatureStats() []FeatureStat {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]FeatureStat(nil), p.stats...)
}

func (p *Predictor) Summary() *TrainingSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.summary
}
