package ml

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"custseg/retail"
)

const (
	TotalTransactions   = "total_transactions"
	TotalProducts       = "total_products"
	TotalUniqueProducts = "total_unique_products"
	TotalSales          = "total_sales"
	AvgProductValue     = "avg_product_value"
	AvgCartValue        = "avg_cart_value"
	MinCartValue        = "min_cart_value"
	MaxCartValue        = "max_cart_value"
)

// Unit is the measurement unit of a feature.
type Unit string

const (
	UnitCount    Unit = "count"
	UnitCurrency Unit = "currency"
)

// Feature describes one named input column. Values must be >= Min; there is no upper bound.
type Feature struct {
	Name  string
	Label string
	Unit  Unit
	Min   float64
}

// FeatureSchema is the ordered, named contract shared by training and inference.
type FeatureSchema struct {
	features []Feature
	index    map[string]int
}

func NewFeatureSchema(features ...Feature) (*FeatureSchema, error) {
	if len(features) == 0 {
		return nil, errors.New("schema requires at least one feature")
	}
	index := make(map[string]int, len(features))
	for i, f := range features {
		if f.Name == "" {
			return nil, fmt.Errorf("feature %d has no name", i)
		}
		if _, dup := index[f.Name]; dup {
			return nil, fmt.Errorf("duplicate feature %q", f.Name)
		}
		index[f.Name] = i
	}
	return &FeatureSchema{
		features: append([]Feature(nil), features...),
		index:    index,
	}, nil
}

// CustomerSchema returns the eight customer-aggregate features in training order.
func CustomerSchema() *FeatureSchema {
	schema, err := NewFeatureSchema(
		Feature{Name: TotalTransactions, Label: "Total Transactions", Unit: UnitCount},
		Feature{Name: TotalProducts, Label: "Total Products", Unit: UnitCount},
		Feature{Name: TotalUniqueProducts, Label: "Total Unique Products", Unit: UnitCount},
		Feature{Name: TotalSales, Label: "Total Sales", Unit: UnitCurrency},
		Feature{Name: AvgProductValue, Label: "Average Product Value", Unit: UnitCurrency},
		Feature{Name: AvgCartValue, Label: "Average Cart Value", Unit: UnitCurrency},
		Feature{Name: MinCartValue, Label: "Minimum Cart Value", Unit: UnitCurrency},
		Feature{Name: MaxCartValue, Label: "Maximum Cart Value", Unit: UnitCurrency},
	)
	if err != nil {
		panic(err)
	}
	return schema
}

func (s *FeatureSchema) Len() int {
	return len(s.features)
}

func (s *FeatureSchema) Features() []Feature {
	return append([]Feature(nil), s.features...)
}

func (s *FeatureSchema) Names() []string {
	names := make([]string, len(s.features))
	for i, f := range s.features {
		names[i] = f.Name
	}
	return names
}

// Has reports whether name is a schema column.
func (s *FeatureSchema) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Vector validates frame against the schema and returns its values in schema order.
// Every problem found is reported in a single *ValidationError.
func (s *FeatureSchema) Vector(frame Frame) ([]float64, error) {
	var problems []string
	if len(frame.Columns) != len(frame.Values) {
		return nil, &ValidationError{Problems: []string{
			fmt.Sprintf("frame has %d columns but %d values", len(frame.Columns), len(frame.Values)),
		}}
	}

	vector := make([]float64, len(s.features))
	seen := make(map[string]bool, len(frame.Columns))
	for i, name := range frame.Columns {
		pos, ok := s.index[name]
		if !ok {
			problems = append(problems, fmt.Sprintf("unexpected feature column %q", name))
			continue
		}
		if seen[name] {
			problems = append(problems, fmt.Sprintf("duplicate feature column %q", name))
			continue
		}
		seen[name] = true

		value := frame.Values[i]
		switch {
		case math.IsNaN(value) || math.IsInf(value, 0):
			problems = append(problems, fmt.Sprintf("feature %q must be a finite number", name))
		case value < s.features[pos].Min:
			problems = append(problems, fmt.Sprintf("feature %q must be >= %g, got %g", name, s.features[pos].Min, value))
		}
		vector[pos] = value
	}
	for _, f := range s.features {
		if !seen[f.Name] {
			problems = append(problems, fmt.Sprintf("missing feature column %q", f.Name))
		}
	}

	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}
	return vector, nil
}

// ValidationError is returned when an input frame does not satisfy the schema.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Problems, "; ")
}

// Frame is a single named input row.
type Frame struct {
	Columns []string
	Values  []float64
}

func (f *Frame) Add(name string, value float64) {
	f.Columns = append(f.Columns, name)
	f.Values = append(f.Values, value)
}

// CustomerFeatureVector is the typed form of one customer's eight aggregate features.
type CustomerFeatureVector struct {
	TotalTransactions   float64
	TotalProducts       float64
	TotalUniqueProducts float64
	TotalSales          float64
	AvgProductValue     float64
	AvgCartValue        float64
	MinCartValue        float64
	MaxCartValue        float64
}

func VectorFromAggregate(row retail.CustomerAggregate) CustomerFeatureVector {
	return CustomerFeatureVector{
		TotalTransactions:   row.TotalTransactions,
		TotalProducts:       row.TotalProducts,
		TotalUniqueProducts: row.TotalUniqueProducts,
		TotalSales:          row.TotalSales,
		AvgProductValue:     row.AvgProductValue,
		AvgCartValue:        row.AvgCartValue,
		MinCartValue:        row.MinCartValue,
		MaxCartValue:        row.MaxCartValue,
	}
}

// Frame names every field so the schema, not field order, decides the column mapping.
func (v CustomerFeatureVector) Frame() Frame {
	var frame Frame
	frame.Add(TotalTransactions, v.TotalTransactions)
	frame.Add(TotalProducts, v.TotalProducts)
	frame.Add(TotalUniqueProducts, v.TotalUniqueProducts)
	frame.Add(TotalSales, v.TotalSales)
	frame.Add(AvgProductValue, v.AvgProductValue)
	frame.Add(AvgCartValue, v.AvgCartValue)
	frame.Add(MinCartValue, v.MinCartValue)
	frame.Add(MaxCartValue, v.MaxCartValue)
	return frame
}
