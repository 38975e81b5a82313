package ml

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestRandomForestSeparableClusters(t *testing.T) {
	features, labels := syntheticCustomers(map[int]int{0: 60, 1: 60, 2: 60}, 1)

	forest := NewRandomForest(WithNEstimators(25), WithSeed(7))
	if err := forest.Fit(features, labels); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if forest.Trees() != 25 {
		t.Fatalf("expected 25 trees, got %d", forest.Trees())
	}
	if !reflect.DeepEqual(forest.Classes(), []int{0, 1, 2}) {
		t.Fatalf("unexpected classes: %v", forest.Classes())
	}

	probe, probeLabels := syntheticCustomers(map[int]int{0: 10, 1: 10, 2: 10}, 99)
	report, err := Evaluate(forest, probe, probeLabels)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Accuracy < 0.9 {
		t.Fatalf("expected accuracy >= 0.9 on separable clusters, got %.2f\n%s", report.Accuracy, report)
	}

	probas, err := forest.PredictProba(probe[0])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var sum float64
	for _, p := range probas {
		sum += p
	}
	if sum < 0.999 || sum > 1.001 {
		t.Fatalf("expected probabilities to sum to 1, got %f", sum)
	}
}

func TestRandomForestDeterministic(t *testing.T) {
	features, labels := syntheticCustomers(map[int]int{0: 40, 1: 30, 2: 20}, 3)
	probe := []float64{10, 20, 15, 500, 25, 50, 10, 100}

	var results [][]float64
	for _, workers := range []int{1, 4} {
		forest := NewRandomForest(WithNEstimators(15), WithSeed(11), WithWorkers(workers))
		if err := forest.Fit(features, labels); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		probas, err := forest.PredictProba(probe)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		results = append(results, probas)
	}
	if !reflect.DeepEqual(results[0], results[1]) {
		t.Fatalf("expected identical probabilities, got %v and %v", results[0], results[1])
	}
}

func TestRandomForestCancelled(t *testing.T) {
	features, labels := syntheticCustomers(map[int]int{0: 10, 1: 10}, 5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	forest := NewRandomForest(WithNEstimators(5))
	if err := forest.FitContext(ctx, features, labels); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if _, err := forest.PredictProba(features[0]); err == nil {
		t.Fatal("expected untrained forest to refuse predictions")
	}
}

func TestNewClassifier(t *testing.T) {
	tests := []struct {
		modelType string
		want      string
		wantErr   bool
	}{
		{modelType: "", want: "*ml.RandomForest"},
		{modelType: ModelRandomForest, want: "*ml.RandomForest"},
		{modelType: ModelDecisionTree, want: "*ml.DecisionTree"},
		{modelType: "svm", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.modelType, func(t *testing.T) {
			model, err := NewClassifier(tt.modelType, ClassifierOptions{Seed: 1})
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewClassifier() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if got := reflect.TypeOf(model).String(); got != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, got)
			}
		})
	}
}
