package ml

import "testing"

func TestDecisionTreeTrainPredict(t *testing.T) {
	features := [][]float64{
		{0.1, 0.2},
		{0.2, 0.1},
		{0.9, 0.8},
		{0.8, 0.9},
	}
	labels := []int{0, 0, 2, 2}

	model := &DecisionTree{MinSamplesSplit: 2}
	if err := model.Fit(features, labels); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	label, confidence, err := PredictLabel(model, []float64{0.15, 0.15})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if label != 0 {
		t.Fatalf("expected label 0, got %d", label)
	}
	if confidence != 1 {
		t.Fatalf("expected pure leaf confidence 1, got %f", confidence)
	}
	if label, _, _ := PredictLabel(model, []float64{0.85, 0.85}); label != 2 {
		t.Fatalf("expected label 2, got %d", label)
	}
}

func TestDecisionTreeMaxDepth(t *testing.T) {
	features := [][]float64{{1}, {2}, {3}, {4}, {5}, {6}, {7}, {8}}
	labels := []int{0, 1, 0, 1, 0, 1, 0, 1}

	unlimited := &DecisionTree{}
	if err := unlimited.Fit(features, labels); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, row := range features {
		label, _, err := PredictLabel(unlimited, row)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if label != labels[i] {
			t.Fatalf("row %d: expected %d, got %d", i, labels[i], label)
		}
	}

	stump := &DecisionTree{MaxDepth: 1}
	if err := stump.Fit(features, labels); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if depth := stump.Depth(); depth != 1 {
		t.Fatalf("expected depth 1, got %d", depth)
	}
}

func TestDecisionTreeConstantFeatures(t *testing.T) {
	features := [][]float64{{1, 1}, {1, 1}, {1, 1}}
	labels := []int{0, 1, 1}

	model := &DecisionTree{}
	if err := model.Fit(features, labels); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	probas, err := model.PredictProba([]float64{1, 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(probas) != 2 || probas[1] < 0.66 || probas[1] > 0.67 {
		t.Fatalf("expected single leaf with class distribution, got %v", probas)
	}
}

func TestDecisionTreeErrors(t *testing.T) {
	model := &DecisionTree{}
	if _, err := model.PredictProba([]float64{1}); err == nil {
		t.Fatal("expected error before training")
	}
	if err := model.Fit(nil, nil); err == nil {
		t.Fatal("expected error for empty training set")
	}
	if err := model.Fit([][]float64{{1}, {2, 3}}, []int{0, 1}); err == nil {
		t.Fatal("expected error for ragged rows")
	}
	if err := model.Fit([][]float64{{1}}, []int{0, 1}); err == nil {
		t.Fatal("expected error for size mismatch")
	}
}
