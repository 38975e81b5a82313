package ml

import (
	"fmt"
)

const (
	ModelRandomForest = "random_forest"
	ModelDecisionTree = "decision_tree"
)

// ClassifierOptions are the hyperparameters shared by the supported model types.
type ClassifierOptions struct {
	Seed        int64
	NEstimators int
	MaxDepth    int
	Workers     int
}

func NewClassifier(modelType string, opts ClassifierOptions) (Classifier, error) {
	switch modelType {
	case "", ModelRandomForest:
		return NewRandomForest(
			WithNEstimators(opts.NEstimators),
			WithMaxDepth(opts.MaxDepth),
			WithSeed(opts.Seed),
			WithWorkers(opts.Workers),
		), nil
	case ModelDecisionTree:
		return &DecisionTree{
			MaxDepth:        opts.MaxDepth,
			MinSamplesSplit: 2,
			Seed:            opts.Seed,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported model type %q", modelType)
	}
}
