package ml

import (
	"errors"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// FeatureStat summarises one feature column of the historical table.
type FeatureStat struct {
	Name string
	Min  float64
	Mean float64
	Max  float64
}

// ComputeFeatureStats returns min, mean and max per schema column.
func ComputeFeatureStats(schema *FeatureSchema, features [][]float64) ([]FeatureStat, error) {
	if len(features) == 0 {
		return nil, errors.New("features is empty")
	}
	names := schema.Names()
	column := make([]float64, len(features))
	stats := make([]FeatureStat, len(names))
	for j, name := range names {
		for i, row := range features {
			if len(row) != len(names) {
				return nil, errors.New("feature row width does not match schema")
			}
			column[i] = row[j]
		}
		stats[j] = FeatureStat{
			Name: name,
			Min:  floats.Min(column),
			Mean: stat.Mean(column, nil),
			Max:  floats.Max(column),
		}
	}
	return stats, nil
}
