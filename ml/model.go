package ml

import (
	"context"
	"errors"
)

// Classifier is a fitted mapping from a feature vector to class probabilities.
// PredictProba returns one probability per entry of Classes, in the same order.
type Classifier interface {
	Fit(features [][]float64, labels []int) error
	PredictProba(features []float64) ([]float64, error)
	Classes() []int
}

type contextFitter interface {
	FitContext(ctx context.Context, features [][]float64, labels []int) error
}

func fitClassifier(ctx context.Context, model Classifier, features [][]float64, labels []int) error {
	if cf, ok := model.(contextFitter); ok {
		return cf.FitContext(ctx, features, labels)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return model.Fit(features, labels)
}

// PredictLabel returns the most probable class and its probability.
// Ties go to the smallest label.
func PredictLabel(model Classifier, features []float64) (int, float64, error) {
	probas, err := model.PredictProba(features)
	if err != nil {
		return 0, 0, err
	}
	classes := model.Classes()
	if len(probas) == 0 || len(probas) != len(classes) {
		return 0, 0, errors.New("model not trained")
	}
	best := 0
	for i := 1; i < len(probas); i++ {
		if probas[i] > probas[best] {
			best = i
		}
	}
	return classes[best], probas[best], nil
}
