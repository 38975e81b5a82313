package ml

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Report is the held-out evaluation of a fitted classifier.
type Report struct {
	Samples   int
	Accuracy  float64
	Classes   []int
	Support   map[int]int
	Precision map[int]float64
	Recall    map[int]float64
	// Confusion[actual][predicted]
	Confusion map[int]map[int]int
}

func Evaluate(model Classifier, features [][]float64, labels []int) (Report, error) {
	if len(features) == 0 {
		return Report{}, errors.New("evaluation set is empty")
	}
	if len(features) != len(labels) {
		return Report{}, errors.New("features and labels size mismatch")
	}

	report := Report{
		Samples:   len(features),
		Classes:   model.Classes(),
		Support:   make(map[int]int),
		Precision: make(map[int]float64),
		Recall:    make(map[int]float64),
		Confusion: make(map[int]map[int]int),
	}
	predictedCount := make(map[int]int)
	truePositive := make(map[int]int)
	var correct int

	for i, row := range features {
		label, _, err := PredictLabel(model, row)
		if err != nil {
			return Report{}, err
		}
		actual := labels[i]
		report.Support[actual]++
		predictedCount[label]++
		if report.Confusion[actual] == nil {
			report.Confusion[actual] = make(map[int]int)
		}
		report.Confusion[actual][label]++
		if label == actual {
			correct++
			truePositive[actual]++
		}
	}

	report.Accuracy = float64(correct) / float64(len(features))
	for _, c := range report.Classes {
		if predictedCount[c] > 0 {
			report.Precision[c] = float64(truePositive[c]) / float64(predictedCount[c])
		}
		if report.Support[c] > 0 {
			report.Recall[c] = float64(truePositive[c]) / float64(report.Support[c])
		}
	}
	return report, nil
}

func (r Report) MacroPrecision() float64 {
	return macro(r.Classes, r.Precision)
}

func (r Report) MacroRecall() float64 {
	return macro(r.Classes, r.Recall)
}

func macro(classes []int, values map[int]float64) float64 {
	if len(classes) == 0 {
		return 0
	}
	var sum float64
	for _, c := range classes {
		sum += values[c]
	}
	return sum / float64(len(classes))
}

// String renders a per-class table followed by the confusion matrix.
func (r Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "samples=%d accuracy=%.4f macro_precision=%.4f macro_recall=%.4f\n",
		r.Samples, r.Accuracy, r.MacroPrecision(), r.MacroRecall())
	fmt.Fprintf(&b, "%-8s %9s %9s %8s\n", "cluster", "precision", "recall", "support")
	classes := append([]int(nil), r.Classes...)
	sort.Ints(classes)
	for _, c := range classes {
		fmt.Fprintf(&b, "%-8d %9.4f %9.4f %8d\n", c, r.Precision[c], r.Recall[c], r.Support[c])
	}
	b.WriteString("confusion (rows=actual, cols=predicted)\n")
	b.WriteString("        ")
	for _, c := range classes {
		fmt.Fprintf(&b, " %6d", c)
	}
	b.WriteString("\n")
	for _, actual := range classes {
		fmt.Fprintf(&b, "%-8d", actual)
		for _, predicted := range classes {
			fmt.Fprintf(&b, " %6d", r.Confusion[actual][predicted])
		}
		b.WriteString("\n")
	}
	return b.String()
}
