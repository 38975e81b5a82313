package ml

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"custseg/retail"
)

// BuildTrainingSet turns the historical aggregate table into a feature matrix in schema
// order and the matching cluster labels.
func BuildTrainingSet(schema *FeatureSchema, rows []retail.CustomerAggregate) ([][]float64, []int, error) {
	if len(rows) == 0 {
		return nil, nil, errors.New("customer table is empty")
	}
	features := make([][]float64, 0, len(rows))
	labels := make([]int, 0, len(rows))
	for i, row := range rows {
		vector, err := schema.Vector(VectorFromAggregate(row).Frame())
		if err != nil {
			return nil, nil, fmt.Errorf("customer row %d (%s): %w", i, row.CustomerID, err)
		}
		features = append(features, vector)
		labels = append(labels, row.Cluster)
	}
	return features, labels, nil
}

// StratifiedSplit holds out round(n*testRatio) rows of every class for evaluation,
// keeping at least one training row per class.
func StratifiedSplit(features [][]float64, labels []int, testRatio float64, seed int64) (trainX [][]float64, trainY []int, testX [][]float64, testY []int, err error) {
	if err := checkTrainingSet(features, labels); err != nil {
		return nil, nil, nil, nil, err
	}
	if testRatio <= 0 || testRatio >= 1 {
		testRatio = 0.2
	}

	byClass := make(map[int][]int)
	for i, label := range labels {
		byClass[label] = append(byClass[label], i)
	}

	rnd := rand.New(rand.NewSource(seed))
	for _, c := range uniqueLabels(labels) {
		idx := append([]int(nil), byClass[c]...)
		rnd.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

		nTest := int(math.Round(float64(len(idx)) * testRatio))
		if nTest >= len(idx) {
			nTest = len(idx) - 1
		}
		for i, row := range idx {
			if i < nTest {
				testX = append(testX, features[row])
				testY = append(testY, labels[row])
			} else {
				trainX = append(trainX, features[row])
				trainY = append(trainY, labels[row])
			}
		}
	}
	return trainX, trainY, testX, testY, nil
}
