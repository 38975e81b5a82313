package ml

import (
	"math"
	"strings"
	"testing"
)

// thresholdModel predicts class 1 when the first feature is above 5, class 0 otherwise.
type thresholdModel struct{}

func (thresholdModel) Fit([][]float64, []int) error { return nil }
func (thresholdModel) Classes() []int { return []int{0, 1} }
func (thresholdModel) PredictProba(x []float64) ([]float64, error) {
	if x[0] > 5 {
		return []float64{0, 1}, nil
	}
	return []float64{1, 0}, nil
}

func TestEvaluate(t *testing.T) {
	features := [][]float64{{1}, {2}, {9}, {8}, {7}, {3}}
	labels := []int{0, 0, 1, 1, 0, 1}

	report, err := Evaluate(thresholdModel{}, features, labels)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if report.Samples != 6 {
		t.Errorf("Samples = %d", report.Samples)
	}
	if math.Abs(report.Accuracy-4.0/6.0) > 1e-9 {
		t.Errorf("Accuracy = %v, want 4/6", report.Accuracy)
	}
	// predicted 1 for {9,8,7}: two right
	if math.Abs(report.Precision[1]-2.0/3.0) > 1e-9 {
		t.Errorf("Precision[1] = %v", report.Precision[1])
	}
	// actual 1 is {9,8,3}: two found
	if math.Abs(report.Recall[1]-2.0/3.0) > 1e-9 {
		t.Errorf("Recall[1] = %v", report.Recall[1])
	}
	if report.Confusion[0][1] != 1 || report.Confusion[1][0] != 1 || report.Confusion[0][0] != 2 {
		t.Errorf("Confusion = %v", report.Confusion)
	}
	if math.Abs(report.MacroPrecision()-2.0/3.0) > 1e-9 {
		t.Errorf("MacroPrecision = %v", report.MacroPrecision())
	}

	text := report.String()
	for _, want := range []string{"accuracy=0.6667", "confusion (rows=actual, cols=predicted)"} {
		if !strings.Contains(text, want) {
			t.Errorf("report missing %q:\n%s", want, text)
		}
	}
}

func TestEvaluateErrors(t *testing.T) {
	if _, err := Evaluate(thresholdModel{}, nil, nil); err == nil {
		t.Error("expected error for empty set")
	}
	if _, err := Evaluate(thresholdModel{}, [][]float64{{1}}, []int{0, 1}); err == nil {
		t.Error("expected error for size mismatch")
	}
}

func TestPredictLabelTieGoesToSmallestLabel(t *testing.T) {
	label, p, err := PredictLabel(tieModel{}, []float64{0})
	if err != nil {
		t.Fatalf("PredictLabel failed: %v", err)
	}
	if label != 3 || p != 0.5 {
		t.Errorf("got label %d p %v, want 3 0.5", label, p)
	}
}

type tieModel struct{}

func (tieModel) Fit([][]float64, []int) error { return nil }
func (tieModel) Classes() []int { return []int{3, 7} }
func (tieModel) PredictProba([]float64) ([]float64, error) { return []float64{0.5, 0.5}, nil }
